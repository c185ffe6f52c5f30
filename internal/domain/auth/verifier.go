package auth

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nanopets/giftbot/internal/domain/errs"
)

// Mode selects the verifier implementation.
type Mode string

const (
	ModeSigned Mode = "signed"
	// ModeInsecure skips signature checks. Local development only.
	ModeInsecure Mode = "insecure"
)

// Verifier validates a raw token and returns its parsed contents.
type Verifier interface {
	Verify(token string) (*InitData, error)
}

// SignedVerifier checks the HMAC chain against a bot token.
type SignedVerifier struct {
	botToken string
}

func NewSignedVerifier(botToken string) *SignedVerifier {
	return &SignedVerifier{botToken: botToken}
}

func (v *SignedVerifier) Verify(token string) (*InitData, error) {
	values, data, err := ParseInitData(token)
	if err != nil {
		return nil, errs.Wrap(errs.KindAuthFailure, err, "invalid authentication")
	}
	if data.Hash == "" {
		return nil, errs.AuthFailure("invalid authentication")
	}

	expected := Sign(values, v.botToken)
	if !hmac.Equal([]byte(expected), []byte(data.Hash)) {
		return nil, errs.AuthFailure("invalid authentication")
	}

	if data.User == nil || data.User.ID == 0 {
		return nil, errs.AuthFailure("token carries no user")
	}
	return data, nil
}

// InsecureVerifier trusts a JSON identity document as the token. It exists
// for local testing and is only reachable through NewVerifier(ModeInsecure).
type InsecureVerifier struct {
	now func() time.Time
}

func (v *InsecureVerifier) Verify(token string) (*InitData, error) {
	var user Identity
	if err := json.Unmarshal([]byte(strings.TrimSpace(token)), &user); err != nil {
		return nil, errs.Wrap(errs.KindAuthFailure, err, "invalid authentication")
	}
	if user.ID == 0 {
		return nil, errs.AuthFailure("token carries no user")
	}
	if user.FirstName == "" {
		user.FirstName = fmt.Sprintf("Test User %d", user.ID)
	}
	if user.Username == "" {
		user.Username = fmt.Sprintf("testuser%d", user.ID)
	}
	if user.LanguageCode == "" {
		user.LanguageCode = "en"
	}
	return &InitData{User: &user, AuthDate: v.now()}, nil
}

// NewVerifier builds the verifier for mode. The insecure mode is logged
// loudly so it cannot be enabled silently.
func NewVerifier(mode Mode, botToken string) (Verifier, error) {
	switch mode {
	case ModeSigned, "":
		if botToken == "" {
			return nil, fmt.Errorf("bot token is required for signed verification")
		}
		return NewSignedVerifier(botToken), nil
	case ModeInsecure:
		slog.Warn("Token signatures are NOT verified",
			slog.String("type", "sys"),
			slog.String("auth_mode", string(mode)))
		return &InsecureVerifier{now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// CachingVerifier memoizes successful verifications of an inner verifier.
// Only verified tokens are cached; failures always hit the inner verifier.
type CachingVerifier struct {
	inner Verifier
	cache *lru.Cache
}

func NewCachingVerifier(inner Verifier, size int) (*CachingVerifier, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create verifier cache: %w", err)
	}
	return &CachingVerifier{inner: inner, cache: cache}, nil
}

func (v *CachingVerifier) Verify(token string) (*InitData, error) {
	if cached, ok := v.cache.Get(token); ok {
		return cached.(*InitData), nil
	}

	data, err := v.inner.Verify(token)
	if err != nil {
		return nil, err
	}
	v.cache.Add(token, data)
	return data, nil
}

func (v *CachingVerifier) Len() int {
	return v.cache.Len()
}
