package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "roulette"

// ErrInvalidToken is returned for any token that does not verify
var ErrInvalidToken = errors.New("invalid token")

// Identity is a verified account identity
type Identity struct {
	AccountID int64
	Username  string
}

// IdentityVerifier resolves a bearer token to an account identity
type IdentityVerifier interface {
	Verify(token string) (Identity, error)
}

// Claims are the token claims. The subject carries the account id.
type Claims struct {
	Username string `json:"username"`

	jwt.RegisteredClaims
}

// JWT signs and verifies HS256 tokens
type JWT struct {
	Secret   []byte
	TokenTTL time.Duration
}

// NewJWT creates a verifier for the given shared secret
func NewJWT(secret string, tokenTTL time.Duration) JWT {
	return JWT{Secret: []byte(secret), TokenTTL: tokenTTL}
}

// Issue signs a token for an account. Credential checks happen elsewhere;
// this is used by the issue-token command and tests.
func (j JWT) Issue(identity Identity) (token string, expiresAt time.Time, err error) {
	if identity.AccountID <= 0 {
		return "", time.Time{}, fmt.Errorf("account id must be positive")
	}
	return j.Sign(Claims{
		Username: identity.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: strconv.FormatInt(identity.AccountID, 10),
		},
	})
}

func (j JWT) Sign(claims Claims) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	if claims.NotBefore == nil {
		claims.NotBefore = jwt.NewNumericDate(now.Add(-5 * time.Second))
	}
	if claims.ExpiresAt == nil {
		expiresAt = now.Add(j.TokenTTL)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	} else {
		expiresAt = claims.ExpiresAt.Time
	}
	if claims.Issuer == "" {
		claims.Issuer = issuer
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

// Verify checks signature, expiry and subject and returns the identity
func (j JWT) Verify(token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return j.Secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	accountID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || accountID <= 0 {
		return Identity{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, c.Subject)
	}
	username := strings.TrimSpace(c.Username)
	if username == "" {
		username = "player-" + c.Subject
	}
	return Identity{AccountID: accountID, Username: username}, nil
}

// BearerToken extracts the token from an Authorization header value
func BearerToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	parts := strings.SplitN(v, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
