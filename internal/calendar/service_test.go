package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/calbridge/calbridge/internal/credentials"
	"github.com/calbridge/calbridge/internal/google"
)

type apiFailure struct {
	status  int
	message string
	reason  string
}

// fakeProvider serves just enough of the Calendar v3 and OAuth token
// surfaces for the service to run against, and records what it was asked.
type fakeProvider struct {
	t  *testing.T
	mu sync.Mutex

	calendarPages [][]*calendarapi.CalendarListEntry
	eventPages    map[string][][]*calendarapi.Event
	failEvents    map[string]apiFailure

	calendarListCalls int
	eventCalls        map[string]int
	eventQueries      map[string][]url.Values
	eventAuthHeaders  []string

	created   *calendarapi.Event
	patched   *calendarapi.Event
	patchedID string
	deletedID string

	rotatedAccess  string
	rotatedRefresh string
	tokenCalls     int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	return &fakeProvider{
		t:            t,
		eventPages:   make(map[string][][]*calendarapi.Event),
		failEvents:   make(map[string]apiFailure),
		eventCalls:   make(map[string]int),
		eventQueries: make(map[string][]url.Values),
	}
}

func (f *fakeProvider) start() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", f.handleToken)
	mux.HandleFunc("/users/me/calendarList", f.handleCalendarList)
	mux.HandleFunc("/calendars/", f.handleCalendars)

	srv := httptest.NewServer(mux)
	f.t.Cleanup(srv.Close)
	return srv
}

func (f *fakeProvider) handleToken(w http.ResponseWriter, _ *http.Request) {
	f.mu.Lock()
	f.tokenCalls++
	f.mu.Unlock()

	writeJSON(w, map[string]any{
		"access_token":  f.rotatedAccess,
		"refresh_token": f.rotatedRefresh,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}

func (f *fakeProvider) handleCalendarList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calendarListCalls++
	f.mu.Unlock()

	idx := pageIndex(r.URL.Query().Get("pageToken"))
	page := &calendarapi.CalendarList{}
	if idx < len(f.calendarPages) {
		page.Items = f.calendarPages[idx]
	}
	if idx+1 < len(f.calendarPages) {
		page.NextPageToken = pageToken(idx + 1)
	}
	writeJSON(w, page)
}

func (f *fakeProvider) handleCalendars(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/calendars/"), "/")
	if len(parts) < 2 || parts[1] != "events" {
		http.NotFound(w, r)
		return
	}
	calendarID := parts[0]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		f.handleEventList(w, r, calendarID)
	case len(parts) == 2 && r.Method == http.MethodPost:
		f.handleEventInsert(w, r)
	case len(parts) == 3 && r.Method == http.MethodPatch:
		f.handleEventPatch(w, r, parts[2])
	case len(parts) == 3 && r.Method == http.MethodDelete:
		f.handleEventDelete(w, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeProvider) handleEventList(w http.ResponseWriter, r *http.Request, calendarID string) {
	f.mu.Lock()
	f.eventCalls[calendarID]++
	f.eventQueries[calendarID] = append(f.eventQueries[calendarID], r.URL.Query())
	f.eventAuthHeaders = append(f.eventAuthHeaders, r.Header.Get("Authorization"))
	f.mu.Unlock()

	if fail, ok := f.failEvents[calendarID]; ok {
		writeAPIError(w, fail)
		return
	}

	pages := f.eventPages[calendarID]
	idx := pageIndex(r.URL.Query().Get("pageToken"))
	page := &calendarapi.Events{}
	if idx < len(pages) {
		page.Items = pages[idx]
	}
	if idx+1 < len(pages) {
		page.NextPageToken = pageToken(idx + 1)
	}
	writeJSON(w, page)
}

func (f *fakeProvider) handleEventInsert(w http.ResponseWriter, r *http.Request) {
	var event calendarapi.Event
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&event))
	event.Id = "created-1"
	event.Status = "confirmed"

	f.mu.Lock()
	f.created = &event
	f.mu.Unlock()

	writeJSON(w, &event)
}

func (f *fakeProvider) handleEventPatch(w http.ResponseWriter, r *http.Request, eventID string) {
	var event calendarapi.Event
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&event))
	event.Id = eventID

	f.mu.Lock()
	f.patched = &event
	f.patchedID = eventID
	f.mu.Unlock()

	writeJSON(w, &event)
}

func (f *fakeProvider) handleEventDelete(w http.ResponseWriter, eventID string) {
	f.mu.Lock()
	f.deletedID = eventID
	f.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func pageToken(idx int) string {
	return fmt.Sprintf("page-%d", idx)
}

func pageIndex(token string) int {
	if token == "" {
		return 0
	}
	var idx int
	fmt.Sscanf(token, "page-%d", &idx)
	return idx
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, fail apiFailure) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(fail.status)
	body := map[string]any{
		"error": map[string]any{
			"code":    fail.status,
			"message": fail.message,
			"errors": []map[string]any{
				{"reason": fail.reason, "message": fail.message},
			},
		},
	}
	_ = json.NewEncoder(w).Encode(body)
}

func calendarEntry(id string) *calendarapi.CalendarListEntry {
	return &calendarapi.CalendarListEntry{Id: id, Summary: "Calendar " + id, AccessRole: "owner"}
}

func providerEvent(id string, start time.Time) *calendarapi.Event {
	return &calendarapi.Event{
		Id:      id,
		Summary: "Event " + id,
		Status:  "confirmed",
		Start:   &calendarapi.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     &calendarapi.EventDateTime{DateTime: start.Add(time.Hour).Format(time.RFC3339)},
	}
}

func newTestService(t *testing.T, store credentials.Store, baseURL string) *Service {
	cfg := &oauth2.Config{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   baseURL + "/auth",
			TokenURL:  baseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: google.DefaultOAuthScopes,
	}

	logger := testLogger()
	resolver := NewResolver(store, cfg, logger, option.WithEndpoint(baseURL))
	return NewService(resolver, logger, nil)
}

func eventIDs(events []Event) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestService_GetEvents_CalendarMajorOrder(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.calendarPages = [][]*calendarapi.CalendarListEntry{
		{calendarEntry("cal-a"), calendarEntry("cal-b")},
	}
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{
		{providerEvent("a1", base), providerEvent("a2", base.Add(time.Hour))},
		{providerEvent("a3", base.Add(2 * time.Hour))},
	}
	provider.eventPages["cal-b"] = [][]*calendarapi.Event{
		// b1 starts before every cal-a event; the merge must still keep
		// all of cal-a ahead of cal-b.
		{providerEvent("b1", base.Add(-time.Hour)), providerEvent("b2", base)},
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	events, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "b1", "b2"}, eventIDs(events))

	for _, e := range events[:3] {
		assert.Equal(t, "cal-a", e.CalendarID)
	}
	for _, e := range events[3:] {
		assert.Equal(t, "cal-b", e.CalendarID)
	}
}

func TestService_GetEvents_DrainsPagination(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{
		{providerEvent("a1", base)},
		{providerEvent("a2", base.Add(time.Hour))},
		{providerEvent("a3", base.Add(2 * time.Hour))},
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	events, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base}, "cal-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, eventIDs(events))
	assert.Equal(t, 3, provider.eventCalls["cal-a"], "one request per page, drained to the end")
	assert.Equal(t, 0, provider.calendarListCalls, "explicit calendar IDs skip enumeration")
}

func TestService_GetEvents_QueryShape(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	max := base.Add(14 * 24 * time.Hour)
	provider := newFakeProvider(t)
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{{providerEvent("a1", base)}}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	_, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base, Max: max}, "cal-a")
	require.NoError(t, err)

	require.Len(t, provider.eventQueries["cal-a"], 1)
	query := provider.eventQueries["cal-a"][0]
	assert.Equal(t, "true", query.Get("singleEvents"))
	assert.Equal(t, "startTime", query.Get("orderBy"))
	assert.Equal(t, "250", query.Get("maxResults"))
	assert.Equal(t, base.Format(time.RFC3339), query.Get("timeMin"))
	assert.Equal(t, max.Format(time.RFC3339), query.Get("timeMax"))
}

func TestService_GetEvents_RepeatedCallsReturnIdenticalResults(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.calendarPages = [][]*calendarapi.CalendarListEntry{
		{calendarEntry("cal-a"), calendarEntry("cal-b")},
	}
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{
		{providerEvent("a1", base), providerEvent("a2", base.Add(time.Hour))},
		{providerEvent("a3", base.Add(2 * time.Hour))},
	}
	provider.eventPages["cal-b"] = [][]*calendarapi.Event{
		{providerEvent("b1", base.Add(30 * time.Minute))},
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)
	window := TimeWindow{Min: base}

	// With no remote state change, repeating the same query must yield
	// element-wise identical results, whether the calendar set comes from
	// enumeration or is given explicitly.
	first, err := svc.GetEvents(context.Background(), "alice", window)
	require.NoError(t, err)
	second, err := svc.GetEvents(context.Background(), "alice", window)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	firstExplicit, err := svc.GetEvents(context.Background(), "alice", window, "cal-b", "cal-a")
	require.NoError(t, err)
	secondExplicit, err := svc.GetEvents(context.Background(), "alice", window, "cal-b", "cal-a")
	require.NoError(t, err)
	assert.Equal(t, firstExplicit, secondExplicit)
}

func TestService_GetEvents_DefaultWindowStartsNow(t *testing.T) {
	provider := newFakeProvider(t)
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{{providerEvent("a1", time.Now().Add(time.Hour))}}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	before := time.Now()
	_, err := svc.GetEvents(context.Background(), "alice", TimeWindow{}, "cal-a")
	require.NoError(t, err)
	after := time.Now()

	require.Len(t, provider.eventQueries["cal-a"], 1)
	query := provider.eventQueries["cal-a"][0]

	timeMin, err := time.Parse(time.RFC3339, query.Get("timeMin"))
	require.NoError(t, err)
	// RFC3339 formatting drops sub-second precision, so allow a second of
	// slack on the lower bound.
	assert.False(t, timeMin.Before(before.Add(-time.Second)), "timeMin %v predates the call at %v", timeMin, before)
	assert.False(t, timeMin.After(after), "timeMin %v postdates the call at %v", timeMin, after)

	_, hasMax := query["timeMax"]
	assert.False(t, hasMax, "an open-ended window must not send timeMax")
}

func TestService_GetEvents_AllOrNothing(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.calendarPages = [][]*calendarapi.CalendarListEntry{
		{calendarEntry("cal-a"), calendarEntry("cal-b")},
	}
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{{providerEvent("a1", base)}}
	provider.failEvents["cal-b"] = apiFailure{
		status:  403,
		message: "The caller does not have access to this calendar.",
		reason:  "forbidden",
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	events, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base})
	require.Error(t, err)
	assert.Equal(t, KindAccessDenied, KindOf(err))
	assert.Nil(t, events, "a failing calendar discards results from the ones before it")
}

func TestService_GetEvents_EmptyAccount(t *testing.T) {
	provider := newFakeProvider(t)
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	events, err := svc.GetEvents(context.Background(), "alice", TimeWindow{})
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, provider.calendarListCalls)
}

func TestService_GetEvents_ClassifiesAuthExpiry(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failEvents["cal-a"] = apiFailure{
		status:  401,
		message: "Invalid Credentials",
		reason:  "authError",
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	_, err := svc.GetEvents(context.Background(), "alice", TimeWindow{}, "cal-a")
	require.Error(t, err)
	assert.Equal(t, KindAuthExpired, KindOf(err))
}

func TestService_ListCalendars_DrainsPagination(t *testing.T) {
	provider := newFakeProvider(t)
	provider.calendarPages = [][]*calendarapi.CalendarListEntry{
		{calendarEntry("cal-a")},
		{calendarEntry("cal-b"), calendarEntry("cal-c")},
	}
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	infos, err := svc.ListCalendars(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "cal-a", infos[0].ID)
	assert.Equal(t, "cal-c", infos[2].ID)
	assert.Equal(t, 2, provider.calendarListCalls)
}

func TestService_CreateEvent_TargetsPrimary(t *testing.T) {
	provider := newFakeProvider(t)
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	event, err := svc.CreateEvent(context.Background(), "alice", EventDraft{
		Summary:   "Planning",
		Start:     EventTime{Time: start, TimeZone: "UTC"},
		End:       EventTime{Time: start.Add(time.Hour), TimeZone: "UTC"},
		Attendees: []string{"bob@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "created-1", event.ID)
	assert.Equal(t, "primary", event.CalendarID)

	require.NotNil(t, provider.created)
	assert.Equal(t, "Planning", provider.created.Summary)
	require.Len(t, provider.created.Attendees, 1)
	assert.Equal(t, "bob@example.com", provider.created.Attendees[0].Email)
}

func TestService_UpdateEvent_SendsOnlyDraftFields(t *testing.T) {
	provider := newFakeProvider(t)
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	event, err := svc.UpdateEvent(context.Background(), "alice", "evt-7", EventDraft{Summary: "Retitled"})
	require.NoError(t, err)
	assert.Equal(t, "evt-7", event.ID)

	assert.Equal(t, "evt-7", provider.patchedID)
	require.NotNil(t, provider.patched)
	assert.Equal(t, "Retitled", provider.patched.Summary)
	assert.Nil(t, provider.patched.Start, "a partial update must not touch the start time")
	assert.Nil(t, provider.patched.End)
}

func TestService_DeleteEvent(t *testing.T) {
	provider := newFakeProvider(t)
	srv := provider.start()

	svc := newTestService(t, newFakeStore(linkedRecord("alice")), srv.URL)

	require.NoError(t, svc.DeleteEvent(context.Background(), "alice", "evt-9"))
	assert.Equal(t, "evt-9", provider.deletedID)
}

func TestService_TokenRotation_PersistedOnce(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.rotatedAccess = "rotated-access"
	provider.rotatedRefresh = "rotated-refresh"
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{
		{providerEvent("a1", base)},
		{providerEvent("a2", base.Add(time.Hour))},
	}
	srv := provider.start()

	rec := linkedRecord("alice")
	rec.RefreshToken = "stored-refresh"
	store := newFakeStore(rec)

	svc := newTestService(t, store, srv.URL)

	// The stored token is treated as stale because a refresh token exists,
	// so the first remote call refreshes it and triggers the rotation.
	events, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base}, "cal-a")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, 1, provider.tokenCalls)

	got := store.waitForUpdate(t)
	assert.Equal(t, "alice", got.userID)
	require.NotNil(t, got.update.AccessToken)
	assert.Equal(t, "rotated-access", *got.update.AccessToken)
	require.NotNil(t, got.update.RefreshToken)
	assert.Equal(t, "rotated-refresh", *got.update.RefreshToken)

	// One rotation, one write; draining further pages must not write again.
	select {
	case <-store.updates:
		t.Fatal("the rotation was persisted more than once")
	case <-time.After(100 * time.Millisecond):
	}

	for _, auth := range provider.eventAuthHeaders {
		assert.Equal(t, "Bearer rotated-access", auth, "requests after the rotation carry the fresh token")
	}
}

func TestService_NoRefreshToken_UsesStoredTokenAsIs(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	provider := newFakeProvider(t)
	provider.eventPages["cal-a"] = [][]*calendarapi.Event{{providerEvent("a1", base)}}
	srv := provider.start()

	store := newFakeStore(linkedRecord("alice"))
	svc := newTestService(t, store, srv.URL)

	_, err := svc.GetEvents(context.Background(), "alice", TimeWindow{Min: base}, "cal-a")
	require.NoError(t, err)
	assert.Equal(t, 0, provider.tokenCalls, "without a refresh token there is nothing to refresh")

	require.Len(t, provider.eventAuthHeaders, 1)
	assert.Equal(t, "Bearer stored-access", provider.eventAuthHeaders[0])
}
