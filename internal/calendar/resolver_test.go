package calendar

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calbridge/calbridge/internal/credentials"
	"github.com/calbridge/calbridge/internal/google"
)

type storeUpdate struct {
	userID    string
	update    credentials.Update
	updatedAt time.Time
}

// fakeStore is an in-memory credentials.Store that publishes every Update
// call on a channel, so tests can observe the detached rotation writes.
type fakeStore struct {
	mu        sync.Mutex
	records   map[string]*credentials.Record
	updates   chan storeUpdate
	getErr    error
	updateErr error
}

func newFakeStore(recs ...*credentials.Record) *fakeStore {
	s := &fakeStore{
		records: make(map[string]*credentials.Record),
		updates: make(chan storeUpdate, 8),
	}
	for _, rec := range recs {
		s.records[rec.UserID] = rec
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, userID string) (*credentials.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[userID]
	if !ok {
		return nil, credentials.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) Update(_ context.Context, userID string, update credentials.Update, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates <- storeUpdate{userID: userID, update: update, updatedAt: updatedAt}
	return s.updateErr
}

// waitForUpdate blocks until the store receives an Update or the test times
// out.
func (s *fakeStore) waitForUpdate(t *testing.T) storeUpdate {
	t.Helper()
	select {
	case u := <-s.updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a store update")
		return storeUpdate{}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func linkedRecord(userID string) *credentials.Record {
	return &credentials.Record{
		UserID:      userID,
		AccessToken: "stored-access",
		Scope:       google.ScopeCalendar,
		UpdatedAt:   time.Now().UTC(),
	}
}

func TestResolve_NoLinkedAccount(t *testing.T) {
	r := NewResolver(newFakeStore(), google.OAuthConfig("id", "secret"), testLogger())

	_, err := r.Resolve(context.Background(), "nobody")
	require.Error(t, err)
	assert.Equal(t, KindNoLinkedAccount, KindOf(err))
	assert.Contains(t, err.Error(), "connect a Google account")
}

func TestResolve_MissingAccessToken(t *testing.T) {
	rec := linkedRecord("alice")
	rec.AccessToken = ""
	r := NewResolver(newFakeStore(rec), google.OAuthConfig("id", "secret"), testLogger())

	_, err := r.Resolve(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, KindMissingAccessToken, KindOf(err))
}

func TestResolve_InsufficientScope(t *testing.T) {
	rec := linkedRecord("alice")
	rec.Scope = "https://www.googleapis.com/auth/gmail.readonly openid"
	r := NewResolver(newFakeStore(rec), google.OAuthConfig("id", "secret"), testLogger())

	_, err := r.Resolve(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, KindInsufficientScope, KindOf(err))
}

func TestResolve_ReadonlyScopeAccepted(t *testing.T) {
	rec := linkedRecord("alice")
	rec.Scope = google.ScopeCalendarReadonly
	r := NewResolver(newFakeStore(rec), google.OAuthConfig("id", "secret"), testLogger())

	client, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", client.UserID())
}

func TestResolve_EmptyScopeTrusted(t *testing.T) {
	rec := linkedRecord("alice")
	rec.Scope = ""
	r := NewResolver(newFakeStore(rec), google.OAuthConfig("id", "secret"), testLogger())

	_, err := r.Resolve(context.Background(), "alice")
	require.NoError(t, err)
}

func TestResolve_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("database is locked")
	r := NewResolver(store, google.OAuthConfig("id", "secret"), testLogger())

	_, err := r.Resolve(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.ErrorIs(t, err, store.getErr)
}

func TestRotationObserver_PersistsChangedFields(t *testing.T) {
	store := newFakeStore(linkedRecord("alice"))
	r := NewResolver(store, google.OAuthConfig("id", "secret"), testLogger())
	stamp := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return stamp }

	r.rotationObserver("alice")(google.Rotation{
		AccessToken:  "rotated-access",
		RefreshToken: "rotated-refresh",
	})

	got := store.waitForUpdate(t)
	assert.Equal(t, "alice", got.userID)
	require.NotNil(t, got.update.AccessToken)
	assert.Equal(t, "rotated-access", *got.update.AccessToken)
	require.NotNil(t, got.update.RefreshToken)
	assert.Equal(t, "rotated-refresh", *got.update.RefreshToken)
	assert.Equal(t, stamp, got.updatedAt)
}

func TestRotationObserver_AccessTokenOnly(t *testing.T) {
	store := newFakeStore(linkedRecord("alice"))
	r := NewResolver(store, google.OAuthConfig("id", "secret"), testLogger())

	r.rotationObserver("alice")(google.Rotation{AccessToken: "rotated-access"})

	got := store.waitForUpdate(t)
	require.NotNil(t, got.update.AccessToken)
	assert.Nil(t, got.update.RefreshToken, "an unchanged refresh token must not be written")
}

func TestRotationObserver_EmptyRotationIgnored(t *testing.T) {
	store := newFakeStore(linkedRecord("alice"))
	r := NewResolver(store, google.OAuthConfig("id", "secret"), testLogger())

	r.rotationObserver("alice")(google.Rotation{})

	select {
	case <-store.updates:
		t.Fatal("an empty rotation must not touch the store")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRotationObserver_StoreFailureDoesNotPropagate(t *testing.T) {
	store := newFakeStore(linkedRecord("alice"))
	store.updateErr = errors.New("disk full")
	r := NewResolver(store, google.OAuthConfig("id", "secret"), testLogger())

	// Must not panic and must not surface the failure to the caller.
	r.rotationObserver("alice")(google.Rotation{AccessToken: "rotated-access"})
	store.waitForUpdate(t)
}
