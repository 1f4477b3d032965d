package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"
)

// keySource resolves RS256 signing keys by kid from the issuer's
// published JWKS, walking OIDC discovery to find it. The key set is
// cached and re-fetched at most once per TTL, or immediately when a
// token presents a kid the cache has never seen (key rotation).
type keySource struct {
	issuer string
	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	refreshed time.Time
}

func newKeySource(issuer string) *keySource {
	return &keySource{
		issuer: issuer,
		client: &http.Client{Timeout: 10 * time.Second},
		ttl:    time.Hour,
	}
}

func (ks *keySource) keyFor(kid string) (*rsa.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if key, ok := ks.keys[kid]; ok && time.Since(ks.refreshed) < ks.ttl {
		return key, nil
	}
	if err := ks.refreshLocked(); err != nil {
		return nil, err
	}
	key, ok := ks.keys[kid]
	if !ok {
		return nil, fmt.Errorf("auth: issuer JWKS has no key %q", kid)
	}
	return key, nil
}

type discoveryDoc struct {
	JWKSURI string `json:"jwks_uri"`
}

type jwksDoc struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (ks *keySource) refreshLocked() error {
	discoveryURL := strings.TrimSuffix(ks.issuer, "/") + "/.well-known/openid-configuration"
	var disc discoveryDoc
	if err := ks.getJSON(discoveryURL, &disc); err != nil {
		return fmt.Errorf("auth: fetch discovery: %w", err)
	}

	var jwks jwksDoc
	if err := ks.getJSON(disc.JWKSURI, &jwks); err != nil {
		return fmt.Errorf("auth: fetch jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kty != "RSA" {
			continue
		}
		pub, err := rsaKey(k.N, k.E)
		if err != nil {
			continue // skip unparseable entries
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return errors.New("auth: issuer JWKS holds no usable RSA keys")
	}

	ks.keys = keys
	ks.refreshed = time.Now()
	return nil
}

func (ks *keySource) getJSON(url string, into interface{}) error {
	resp, err := ks.client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

// rsaKey assembles an RSA public key from a JWK's base64url-encoded
// modulus and exponent.
func rsaKey(n64, e64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(n64)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(e64)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := 0
	for _, b := range eBytes {
		e = e<<8 | int(b)
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: e}, nil
}
