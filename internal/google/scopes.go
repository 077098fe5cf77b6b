package google

import (
	"strings"

	calendar "google.golang.org/api/calendar/v3"
)

// Calendar capability scopes. A stored credential is usable when it grants
// at least one of the two: read-only integrations are valid.
const (
	ScopeCalendar         = calendar.CalendarScope
	ScopeCalendarReadonly = calendar.CalendarReadonlyScope
)

// DefaultOAuthScopes are requested during the consent flow.
var DefaultOAuthScopes = []string{
	ScopeCalendar,
}

// HasCalendarScope reports whether the space-delimited scope string grants
// read or manage access to calendar events.
func HasCalendarScope(scope string) bool {
	for _, s := range strings.Fields(scope) {
		if s == ScopeCalendar || s == ScopeCalendarReadonly {
			return true
		}
	}
	return false
}
