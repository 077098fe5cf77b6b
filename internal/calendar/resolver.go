package calendar

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/calbridge/calbridge/internal/credentials"
	"github.com/calbridge/calbridge/internal/google"
	"github.com/calbridge/calbridge/internal/instrumentation"
	"github.com/calbridge/calbridge/internal/logging"
)

// Resolver turns a user identity into an authenticated calendar client.
//
// It loads the user's stored credential, validates that the granted scope
// covers calendar access, and installs a rotation observer: whenever the
// transport silently replaces a token during use, the changed fields are
// written back to the credential store without blocking the in-flight call.
type Resolver struct {
	store   credentials.Store
	oauth   *oauth2.Config
	logger  *slog.Logger
	metrics *instrumentation.Metrics
	opts    []option.ClientOption
	now     func() time.Time
}

// NewResolver creates a resolver backed by the given credential store and
// oauth2 configuration. Extra client options are passed through to the
// calendar service; tests use them to point the client at a fake endpoint.
func NewResolver(store credentials.Store, oauth *oauth2.Config, logger *slog.Logger, opts ...option.ClientOption) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		oauth:  oauth,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// SetMetrics sets the metrics recorder used for resolution and rotation
// accounting. A nil recorder is a no-op.
func (r *Resolver) SetMetrics(metrics *instrumentation.Metrics) {
	r.metrics = metrics
}

// Resolve loads and validates the credential for userID and returns a
// ready-to-use client.
func (r *Resolver) Resolve(ctx context.Context, userID string) (*Client, error) {
	log := logging.WithOperation(r.logger, "resolve_credentials").
		With(logging.UserHash(userID))
	log.Debug("resolving credentials")

	client, err := r.resolve(ctx, userID)
	if err != nil {
		r.metrics.RecordCredentialResolution(ctx, logging.StatusError)
		log.Warn("credential resolution failed",
			slog.String(logging.KeyKind, string(KindOf(err))),
			logging.Err(err))
		return nil, err
	}

	r.metrics.RecordCredentialResolution(ctx, logging.StatusSuccess)
	log.Debug("credentials resolved")
	return client, nil
}

func (r *Resolver) resolve(ctx context.Context, userID string) (*Client, error) {
	rec, err := r.store.Get(ctx, userID)
	if errors.Is(err, credentials.ErrNotFound) {
		return nil, NewError(KindNoLinkedAccount,
			"No Google account is linked. Please connect a Google account first.")
	}
	if err != nil {
		return nil, &Error{
			Kind:    KindUpstream,
			Message: "Loading stored credentials failed.",
			cause:   err,
		}
	}

	if rec.AccessToken == "" {
		return nil, NewError(KindMissingAccessToken,
			"The linked Google account has no access token. Please re-authenticate.")
	}

	// Conservative scope check: either the read or the manage capability
	// is enough; read-only integrations are valid. An empty scope string
	// means the consent flow predates scope recording and is trusted.
	if rec.Scope != "" && !google.HasCalendarScope(rec.Scope) {
		return nil, NewError(KindInsufficientScope,
			"The linked Google account has not granted calendar access. Please re-consent with calendar permissions.")
	}

	token := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    "Bearer",
	}
	if rec.RefreshToken != "" {
		// Mark the token stale so the reuse source revalidates it before
		// first use instead of failing the first remote call.
		token.Expiry = time.Unix(1, 0)
	}

	base := r.oauth.TokenSource(ctx, token)
	src := google.NewNotifyingTokenSource(base, token, r.rotationObserver(userID))

	httpClient := google.NewHTTPClient(ctx, src)
	opts := append([]option.ClientOption{option.WithHTTPClient(httpClient)}, r.opts...)

	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, &Error{
			Kind:    KindUpstream,
			Message: "Creating the calendar service failed.",
			cause:   err,
		}
	}

	return &Client{
		svc:     svc,
		userID:  userID,
		logger:  r.logger,
		metrics: r.metrics,
	}, nil
}

// rotationObserver persists rotated token fields for userID. The store
// write runs detached so the in-flight call that triggered the rotation is
// never blocked or failed by it; a failed write is logged and counted only.
func (r *Resolver) rotationObserver(userID string) func(google.Rotation) {
	return func(rot google.Rotation) {
		update := credentials.Update{}
		if rot.AccessToken != "" {
			update.AccessToken = &rot.AccessToken
		}
		if rot.RefreshToken != "" {
			update.RefreshToken = &rot.RefreshToken
		}
		if update.Empty() {
			return
		}

		stamp := r.now()
		log := logging.WithOperation(r.logger, "persist_rotated_token").
			With(logging.UserHash(userID))

		go func() {
			ctx := context.Background()
			if err := r.store.Update(ctx, userID, update, stamp); err != nil {
				r.metrics.RecordTokenRotation(ctx, logging.StatusError)
				log.Warn("failed to persist rotated token", logging.Err(err))
				return
			}

			r.metrics.RecordTokenRotation(ctx, logging.StatusSuccess)
			log.Debug("persisted rotated token",
				slog.String("access_token", logging.SanitizeToken(rot.AccessToken)),
				slog.String("refresh_token", logging.SanitizeToken(rot.RefreshToken)))
		}()
	}
}
