package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"

	"storefront/internal/domain"
)

type devToken struct {
	user      domain.User
	expiresAt time.Time
}

// DevVerifier issues and checks opaque in-memory tokens. It stands in for
// the identity provider during local development.
type DevVerifier struct {
	mu     sync.RWMutex
	tokens map[string]devToken
	ttl    time.Duration
	now    func() time.Time
}

func NewDevVerifier(ttl time.Duration) *DevVerifier {
	return &DevVerifier{tokens: make(map[string]devToken), ttl: ttl, now: time.Now}
}

func (v *DevVerifier) Issue(u domain.User) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	v.tokens[token] = devToken{user: u, expiresAt: v.now().Add(v.ttl)}
	v.mu.Unlock()
	return token, nil
}

func (v *DevVerifier) Verify(_ context.Context, token string) (*domain.User, error) {
	v.mu.RLock()
	meta, ok := v.tokens[token]
	v.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidToken
	}
	if v.now().After(meta.expiresAt) {
		v.mu.Lock()
		delete(v.tokens, token)
		v.mu.Unlock()
		return nil, ErrInvalidToken
	}
	u := meta.user
	return &u, nil
}

// TTL is the lifetime of issued tokens.
func (v *DevVerifier) TTL() time.Duration {
	return v.ttl
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
