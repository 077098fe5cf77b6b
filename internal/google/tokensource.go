package google

import (
	"sync"

	"golang.org/x/oauth2"
)

// Rotation describes the token fields the transport silently replaced while
// serving a request. A field is empty when it did not change.
type Rotation struct {
	AccessToken  string
	RefreshToken string
}

// NotifyingTokenSource wraps a token source and invokes a callback whenever
// the tokens it hands out differ from the ones it handed out before. The
// callback runs synchronously on the calling goroutine; anything slow, such
// as persisting the rotated tokens, is the callback's job to detach.
type NotifyingTokenSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	last     *oauth2.Token
	onRotate func(Rotation)
}

// NewNotifyingTokenSource creates a notifying source seeded with the token
// the credentials were loaded with, so the first Token call only notifies if
// the transport actually rotated something. onRotate may be nil.
func NewNotifyingTokenSource(base oauth2.TokenSource, current *oauth2.Token, onRotate func(Rotation)) *NotifyingTokenSource {
	return &NotifyingTokenSource{
		base:     base,
		last:     current,
		onRotate: onRotate,
	}
}

// Token returns a valid token from the underlying source and fires the
// rotation callback when any token field changed.
func (s *NotifyingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var rot Rotation
	if s.last == nil || tok.AccessToken != s.last.AccessToken {
		rot.AccessToken = tok.AccessToken
	}
	if tok.RefreshToken != "" && (s.last == nil || tok.RefreshToken != s.last.RefreshToken) {
		rot.RefreshToken = tok.RefreshToken
	}
	s.last = tok
	s.mu.Unlock()

	if (rot != Rotation{}) && s.onRotate != nil {
		s.onRotate(rot)
	}

	return tok, nil
}
