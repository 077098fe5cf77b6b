package credentials

import "time"

// Record is the stored OAuth credential state for one user.
type Record struct {
	// UserID is the identity the record belongs to, as issued by the
	// authentication layer.
	UserID string

	// AccessToken is the short-lived bearer token. Empty when the user
	// must re-authenticate.
	AccessToken string

	// RefreshToken is the long-lived token used to mint new access
	// tokens. Optional; Google only returns it on some consent flows.
	RefreshToken string

	// Scope is the space-delimited capability string granted at consent
	// time. The access token, if present, was issued under this scope.
	Scope string

	// UpdatedAt is when any token field last changed.
	UpdatedAt time.Time
}

// Update carries the credential fields changed by a token rotation.
// Nil fields are left untouched by Store.Update.
type Update struct {
	AccessToken  *string
	RefreshToken *string
}

// Empty reports whether the update would change nothing.
func (u Update) Empty() bool {
	return u.AccessToken == nil && u.RefreshToken == nil
}
