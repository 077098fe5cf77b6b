package calendar

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind enumerates the failure classes surfaced by the calendar core.
type Kind string

const (
	// Raised locally by the Resolver before any remote call.
	KindNoLinkedAccount    Kind = "no_linked_account"
	KindMissingAccessToken Kind = "missing_access_token"
	KindInsufficientScope  Kind = "insufficient_scope"

	// Raised by Classify after a remote call failed.
	KindAuthExpired            Kind = "auth_expired"
	KindAPINotEnabled          Kind = "api_not_enabled"
	KindInsufficientPermission Kind = "insufficient_permission"
	KindAccessDenied           Kind = "access_denied"
	KindRateLimited            Kind = "rate_limited"
	KindUpstream               Kind = "upstream_failure"
)

// Error is a classified calendar failure carrying an actionable message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying provider error, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a classified error without an underlying cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf returns the classification kind of err, or an empty Kind when err
// is not a classified calendar error.
func KindOf(err error) Kind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

// Classify maps a remote provider failure onto the error taxonomy.
//
// It prefers the machine-readable reason codes carried by googleapi errors
// and falls back to substring matching on the provider message. The
// substring heuristics track Google's current wording and are best-effort
// only.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	// Already classified errors pass through unchanged.
	var cerr *Error
	if errors.As(err, &cerr) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return &Error{
			Kind:    KindUpstream,
			Message: "Google Calendar request failed: " + err.Error(),
			cause:   err,
		}
	}

	switch gerr.Code {
	case http.StatusUnauthorized:
		return &Error{
			Kind:    KindAuthExpired,
			Message: "Google authorization has expired or been revoked. Please re-authenticate to restore calendar access.",
			cause:   gerr,
		}

	case http.StatusForbidden:
		switch {
		case hasReason(gerr, "accessNotConfigured") ||
			containsAny(gerr.Message, "not been enabled", "has not been used"):
			return &Error{
				Kind:    KindAPINotEnabled,
				Message: "The Google Calendar API is not enabled for this project. Enable it in the Google Cloud console, then retry.",
				cause:   gerr,
			}
		case hasReason(gerr, "insufficientPermissions") ||
			containsAny(gerr.Message, "insufficient", "scope"):
			return &Error{
				Kind:    KindInsufficientPermission,
				Message: "The granted Google permissions do not cover this operation. Please re-consent with calendar access.",
				cause:   gerr,
			}
		default:
			return &Error{
				Kind:    KindAccessDenied,
				Message: "Google denied access: " + gerr.Message,
				cause:   gerr,
			}
		}

	case http.StatusTooManyRequests:
		return &Error{
			Kind:    KindRateLimited,
			Message: "Google Calendar is rate limiting requests for this account. Retry later.",
			cause:   gerr,
		}

	default:
		return &Error{
			Kind:    KindUpstream,
			Message: "Google Calendar request failed: " + gerr.Message,
			cause:   gerr,
		}
	}
}

// hasReason reports whether any of the structured error items carries the
// given reason code.
func hasReason(gerr *googleapi.Error, reason string) bool {
	for _, item := range gerr.Errors {
		if item.Reason == reason {
			return true
		}
	}
	return false
}

// containsAny reports whether s contains any of the substrings,
// case-insensitively.
func containsAny(s string, substrings ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range substrings {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
