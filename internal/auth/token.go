package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"delivery/internal/domain"
)

// ErrInvalidToken is returned when a token fails signature or claim
// validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload carried by customer and driver tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService mints and verifies HMAC-signed access tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service with the signing secret and
// token lifetime.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Mint issues a signed token for the given identity.
func (t *TokenService) Mint(id domain.Identity) (string, error) {
	if !id.Authenticated() {
		return "", ErrInvalidToken
	}
	now := time.Now()
	claims := Claims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses a token and returns the identity it asserts. Any
// failure degrades to Anonymous so callers hit the explicit role
// checks instead of branching on parse errors.
func (t *TokenService) Verify(tokenString string) domain.Identity {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.Subject == "" {
		return domain.Anonymous()
	}

	switch domain.Role(claims.Role) {
	case domain.RoleCustomer:
		return domain.CustomerIdentity(claims.Subject)
	case domain.RoleDriver:
		return domain.DriverIdentity(claims.Subject)
	}
	return domain.Anonymous()
}
