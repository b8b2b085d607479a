// Package identity integrates the Clerk identity provider: bearer-token
// verification for live requests and signed webhook events for user
// lifecycle changes.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier validates Clerk session tokens against the instance's JWKS.
//
// Keys are fetched from the issuer's well-known JWKS endpoint and cached
// with periodic refresh, so per-request verification never blocks on a
// network round trip once the cache is warm.
type Verifier struct {
	issuer string
	keySet jwk.Set
}

// NewVerifier builds a token verifier for the given Clerk issuer URL
// (e.g. "https://clerk.example.com"). The provided context bounds the
// lifetime of the background JWKS refresh.
func NewVerifier(ctx context.Context, issuer string) (*Verifier, error) {
	issuer = strings.TrimRight(issuer, "/")
	if issuer == "" {
		return nil, fmt.Errorf("identity: issuer is empty")
	}
	jwksURL := issuer + "/.well-known/jwks.json"

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("identity: register jwks url: %w", err)
	}

	return &Verifier{
		issuer: issuer,
		keySet: jwk.NewCachedSet(cache, jwksURL),
	}, nil
}

// Verify validates the raw token's signature, expiry, and issuer, and
// returns the subject claim — the Clerk user id.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (string, error) {
	token, err := jwt.ParseString(
		rawToken,
		jwt.WithKeySet(v.keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("identity: token verification failed: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return "", fmt.Errorf("identity: verified token missing sub claim")
	}
	return sub, nil
}
