package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/calbridge/calbridge/internal/credentials"
)

func newLinkCmd() *cobra.Command {
	var (
		user         string
		authCode     string
		accessToken  string
		refreshToken string
		scope        string
	)

	cmd := &cobra.Command{
		Use:   "link",
		Short: "Link a Google account by storing its OAuth credential",
		Long: `Link a Google account so calbridge can query its calendars.

Run without flags to print the consent URL. Open it in a browser, grant
calendar access, and rerun with --auth-code to exchange the code and
store the resulting tokens.

Tokens obtained elsewhere can be stored directly with --access-token
(and optionally --refresh-token and --scope).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := newApp(ctx, rootOpts)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			return runLink(ctx, app, user, authCode, accessToken, refreshToken, scope)
		},
	}

	cmd.Flags().StringVar(&user, "user", "default", "User identity to store the credential under")
	cmd.Flags().StringVar(&authCode, "auth-code", "", "Authorization code from the consent flow")
	cmd.Flags().StringVar(&accessToken, "access-token", "", "Store this access token directly instead of exchanging a code")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token to store alongside --access-token")
	cmd.Flags().StringVar(&scope, "scope", "", "Space-delimited scopes granted to the stored token (with --access-token)")

	return cmd
}

func runLink(ctx context.Context, a *app, user, authCode, accessToken, refreshToken, scope string) error {
	switch {
	case authCode != "":
		token, err := a.oauth.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange authorization code: %w", err)
		}

		granted, _ := token.Extra("scope").(string)
		if granted == "" {
			granted = strings.Join(a.oauth.Scopes, " ")
		}

		return storeCredential(ctx, a, &credentials.Record{
			UserID:       user,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			Scope:        granted,
			UpdatedAt:    time.Now().UTC(),
		})

	case accessToken != "":
		if scope == "" {
			scope = strings.Join(a.oauth.Scopes, " ")
		}

		return storeCredential(ctx, a, &credentials.Record{
			UserID:       user,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Scope:        scope,
			UpdatedAt:    time.Now().UTC(),
		})

	default:
		url := a.oauth.AuthCodeURL("state", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
		fmt.Println("Open the following URL in a browser, grant access, then rerun with --auth-code:")
		fmt.Println()
		fmt.Println("  " + url)
		return nil
	}
}

func storeCredential(ctx context.Context, a *app, rec *credentials.Record) error {
	if err := a.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	fmt.Printf("Linked Google account for user %q\n", rec.UserID)
	return nil
}
