// Package google holds the OAuth plumbing shared by all Google-facing code:
// the oauth2 configuration, the calendar capability scopes, and a token
// source that reports silent token rotations so they can be persisted.
package google
