// Package auth verifies platform-issued session tokens. Verification is
// stateless: a token is accepted when its HMAC chain matches the bot token.
package auth

import (
	"time"

	"github.com/nanopets/giftbot/internal/domain/errs"
)

// DefaultMaxAge is how long a token stays fresh after issue.
const DefaultMaxAge = 24 * time.Hour

// Authenticator turns a raw token into an identity.
type Authenticator struct {
	verifier         Verifier
	enforceFreshness bool
	maxAge           time.Duration
	now              func() time.Time
}

type Option func(*Authenticator)

// WithFreshness enables rejection of tokens older than maxAge.
func WithFreshness(maxAge time.Duration) Option {
	return func(a *Authenticator) {
		a.enforceFreshness = true
		if maxAge > 0 {
			a.maxAge = maxAge
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		a.now = now
	}
}

func NewAuthenticator(verifier Verifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		maxAge:   DefaultMaxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Authenticator) Authenticate(token string) (*Identity, error) {
	if token == "" {
		return nil, errs.AuthFailure("missing authentication")
	}

	data, err := a.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	if a.enforceFreshness && !IsFresh(data.AuthDate, a.now(), a.maxAge) {
		return nil, errs.AuthFailure("authentication expired")
	}
	return data.User, nil
}
