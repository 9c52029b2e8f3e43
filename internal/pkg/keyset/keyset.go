package keyset

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync/atomic"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/opendiscourse/corpusd/internal/pkg/errors"
)

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// Cache holds the kid -> public key mapping fetched from a JWKS endpoint.
// Reads are lock-free; Refresh replaces the whole map atomically, so
// concurrent refreshes race harmlessly (last write wins).
type Cache struct {
	url    string
	client *http.Client
	keys   atomic.Pointer[map[string]crypto.PublicKey]
}

func NewCache(url string, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Cache{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
	empty := map[string]crypto.PublicKey{}
	c.keys.Store(&empty)
	return c
}

func (c *Cache) Get(kid string) (crypto.PublicKey, bool) {
	keys := *c.keys.Load()
	key, ok := keys[kid]
	return key, ok
}

func (c *Cache) Len() int {
	return len(*c.keys.Load())
}

func (c *Cache) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %s", resp.Status)
	}
	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kid == "" {
			continue
		}
		pub, err := parseKey(k)
		if err != nil {
			logutil.GetLogger(ctx).Warn("skipping unparsable jwk",
				zap.String("kid", k.Kid),
				zap.String("kty", k.Kty),
				zap.Error(err),
			)
			continue
		}
		keys[k.Kid] = pub
	}
	c.keys.Store(&keys)
	logutil.GetLogger(ctx).Info("key set refreshed", zap.Int("keys", len(keys)))
	return nil
}

func parseKey(k jwk) (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		nb, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return nil, fmt.Errorf("decode modulus: %w", err)
		}
		eb, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return nil, fmt.Errorf("decode exponent: %w", err)
		}
		return &rsa.PublicKey{
			N: new(big.Int).SetBytes(nb),
			E: int(new(big.Int).SetBytes(eb).Int64()),
		}, nil
	case "EC":
		var curve elliptic.Curve
		switch k.Crv {
		case "P-256":
			curve = elliptic.P256()
		case "P-384":
			curve = elliptic.P384()
		case "P-521":
			curve = elliptic.P521()
		default:
			return nil, fmt.Errorf("unsupported curve: %s", k.Crv)
		}
		xb, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("decode x: %w", err)
		}
		yb, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, fmt.Errorf("decode y: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: curve,
			X:     new(big.Int).SetBytes(xb),
			Y:     new(big.Int).SetBytes(yb),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported key type: %s", k.Kty)
	}
}

// Verifier validates bearer tokens against the cached key set. When auth is
// not required every token (including none) is accepted.
type Verifier struct {
	cache    *Cache
	required bool
}

func NewVerifier(cache *Cache, required bool) *Verifier {
	return &Verifier{cache: cache, required: required}
}

func (v *Verifier) Required() bool {
	return v.required
}

func (v *Verifier) Verify(ctx context.Context, token string) error {
	if !v.required {
		return nil
	}
	if token == "" {
		return appErr.ErrUnauthorized
	}
	_, err := jwtlib.Parse(token, v.keyfunc(ctx),
		jwtlib.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}),
	)
	if err != nil {
		logutil.GetLogger(ctx).Warn("token verification failed", zap.Error(err))
		return appErr.ErrUnauthorized
	}
	return nil
}

func (v *Verifier) keyfunc(ctx context.Context) jwtlib.Keyfunc {
	return func(token *jwtlib.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no kid header")
		}
		if key, ok := v.cache.Get(kid); ok {
			return key, nil
		}
		// Unknown kid: the set may have rotated, refresh exactly once.
		if err := v.cache.Refresh(ctx); err != nil {
			return nil, err
		}
		key, ok := v.cache.Get(kid)
		if !ok {
			return nil, fmt.Errorf("no key for kid %s", kid)
		}
		return key, nil
	}
}
