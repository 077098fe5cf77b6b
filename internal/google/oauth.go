package google

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// OAuthConfig returns the oauth2 configuration used to mint token sources
// for stored credentials and to exchange consent-flow authorization codes.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	const oob = "urn:ietf:wg:oauth:2.0:oob"
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  oob,
		Scopes:       DefaultOAuthScopes,
	}
}

// OAuthConfigFromEnv builds the oauth2 configuration from the
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set")
	}
	return OAuthConfig(clientID, clientSecret), nil
}

// NewHTTPClient returns an HTTP client that authenticates requests with the
// given token source. The client is forced onto HTTP/1.1; the Google APIs
// intermittently fail with HTTP/2 protocol errors.
func NewHTTPClient(ctx context.Context, src oauth2.TokenSource) *http.Client {
	client := oauth2.NewClient(ctx, src)

	transport := client.Transport.(*oauth2.Transport)
	transport.Base = &http.Transport{
		ForceAttemptHTTP2: false,
	}

	return client
}
