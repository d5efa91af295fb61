package services

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"
	googleKeysTTL  = 6 * time.Hour
	// minimum spacing between refreshes triggered by an unknown kid
	googleRefetchGap = time.Minute
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenVerifier checks a third-party ID token and returns its identity
// claims.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*GoogleClaims, error)
}

// GoogleClaims is the identity carried by a verified Google ID token.
type GoogleClaims struct {
	Sub           string
	Email         string
	EmailVerified interface{}
	Name          string
}

// Verified reports the email_verified claim, which Google sends as a bool and
// some clients forward as a string.
func (c *GoogleClaims) Verified() bool {
	switch v := c.EmailVerified.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

type googleTokenClaims struct {
	jwt.RegisteredClaims
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
	Name          string      `json:"name"`
}

type googleJWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// GoogleVerifier validates Google sign-in ID tokens against Google's published
// signing keys, cached in memory.
type GoogleVerifier struct {
	certsURL  string
	audiences []string
	client    *http.Client
	now       func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewGoogleVerifier(audiences []string) *GoogleVerifier {
	return &GoogleVerifier{
		certsURL:  googleCertsURL,
		audiences: audiences,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
		keys:      map[string]*rsa.PublicKey{},
	}
}

func (v *GoogleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*GoogleClaims, error) {
	if len(v.audiences) == 0 {
		return nil, errors.New("no google client ids configured")
	}

	var tc googleTokenClaims
	_, err := jwt.ParseWithClaims(idToken, &tc, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("google id token: %w", err)
	}

	if !slices.Contains(googleIssuers, tc.Issuer) {
		return nil, fmt.Errorf("google id token: unexpected issuer %q", tc.Issuer)
	}
	if !slices.ContainsFunc(tc.Audience, func(aud string) bool { return slices.Contains(v.audiences, aud) }) {
		return nil, fmt.Errorf("google id token: audience %v not accepted", []string(tc.Audience))
	}

	return &GoogleClaims{
		Sub:           tc.Subject,
		Email:         tc.Email,
		EmailVerified: tc.EmailVerified,
		Name:          tc.Name,
	}, nil
}

// key returns the signing key for kid, refreshing the set when it is stale or
// does not know kid.
func (v *GoogleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	k, ok := v.keys[kid]
	age := v.now().Sub(v.fetchedAt)
	v.mu.RUnlock()

	if ok && age < googleKeysTTL {
		return k, nil
	}
	if ok || age >= googleRefetchGap {
		if err := v.refresh(ctx); err != nil {
			if ok {
				return k, nil
			}
			return nil, err
		}
	}

	v.mu.RLock()
	defer v.mu.RUnlock()
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("unknown signing key %q", kid)
}

func (v *GoogleVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch google certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch google certs: status %d", resp.StatusCode)
	}

	var set struct {
		Keys []googleJWK `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode google certs: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || jwk.Kid == "" {
			continue
		}
		if pub, err := jwk.publicKey(); err == nil {
			keys[jwk.Kid] = pub
		}
	}
	if len(keys) == 0 {
		return errors.New("google certs contained no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = v.now()
	v.mu.Unlock()
	return nil
}

func (k googleJWK) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() < 3 {
		return nil, errors.New("bad exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}
