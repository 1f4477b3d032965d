// Package auth guards the aggregator's single mutating endpoint,
// POST /api/inject, with OIDC bearer tokens. Every read endpoint stays
// open; only injecting a signal into the swarm requires a caller
// identity, so the guard validates exactly one thing: an RS256 token
// from the configured issuer, addressed to the configured audience.
package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pheromone-collective/swarm/internal/config"
)

// InjectorClaims identifies the human or service behind an accepted
// signal injection. The subject is recorded against the injected
// signal's audit trail.
type InjectorClaims struct {
	Subject   string
	Issuer    string
	ExpiresAt int64
}

type ctxKey struct{}

// Guard authenticates signal injection. A zero OIDC config leaves the
// guard disabled and every request passes through.
type Guard struct {
	issuer   string
	audience string
	keys     *keySource
	enabled  bool
}

// NewGuard builds a Guard from the loaded OIDC config. The guard is
// active only when a client id is configured.
func NewGuard(cfg *config.OIDCConfig) *Guard {
	return &Guard{
		issuer:   cfg.Issuer,
		audience: cfg.ClientID,
		keys:     newKeySource(cfg.Issuer),
		enabled:  cfg.ClientID != "",
	}
}

// Require wraps next with bearer-token validation, answering 401 for a
// missing, malformed, or invalid token. On success the injector's
// claims ride the request context for InjectorFrom.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.enabled {
			next.ServeHTTP(w, r)
			return
		}

		token, err := bearerToken(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		claims, err := g.verify(token)
		if err != nil {
			log.Printf("auth: reject inject: %v", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}

// InjectorFrom returns the claims Require stored on the request
// context, or nil when the request was not authenticated (guard
// disabled).
func InjectorFrom(ctx context.Context) *InjectorClaims {
	claims, _ := ctx.Value(ctxKey{}).(*InjectorClaims)
	return claims
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("authorization header required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errors.New("authorization header must carry a bearer token")
	}
	return token, nil
}

// verify parses and validates an RS256 token against the configured
// issuer and audience, resolving the signing key by the token's kid
// header.
func (g *Guard) verify(raw string) (*InjectorClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token missing kid header")
		}
		return g.keys.keyFor(kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(g.issuer),
		jwt.WithAudience(g.audience),
	)
	if err != nil {
		return nil, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims shape")
	}

	out := &InjectorClaims{}
	out.Subject, _ = mc["sub"].(string)
	out.Issuer, _ = mc["iss"].(string)
	if exp, ok := mc["exp"].(float64); ok {
		out.ExpiresAt = int64(exp)
	}
	if out.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return out, nil
}
