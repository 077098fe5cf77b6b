// Package calendar is the aggregation and credential-lifecycle core.
//
// The Resolver turns a user identity into an authenticated Client by loading
// the stored OAuth credential, validating its scope, and installing an
// observer that persists silently rotated tokens back to the credential
// store. The Service exposes the caller-facing operations on top: listing
// calendars, aggregating events across any number of calendars with full
// pagination, and mutating single events on the primary calendar.
//
// Every remote failure is classified into a fixed error taxonomy before it
// leaves this package; see Classify.
//
// Example usage:
//
//	resolver := calendar.NewResolver(store, oauthConfig, logger)
//	svc := calendar.NewService(resolver, logger, metrics)
//
//	events, err := svc.GetEvents(ctx, userID, calendar.TimeWindow{})
//	if err != nil {
//	    var cerr *calendar.Error
//	    if errors.As(err, &cerr) {
//	        // cerr.Kind tells the caller what to do next
//	    }
//	}
package calendar
