package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "korebank"

// Token types carried in the token_type claim. The auth middleware only
// accepts access tokens; refresh tokens are good for /auth/refresh alone.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrMissingSecret = errors.New("secret is required for token generation")
	ErrInvalidToken  = errors.New("invalid or expired token")
)

// AuthClaims is the JWT claim set carried by API tokens.
type AuthClaims struct {
	UserID    uint   `json:"user_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// GenerateAuthToken issues an HS256 access token for the user.
func GenerateAuthToken(userID uint, email, role string, ttl time.Duration, secret string) (string, error) {
	return generateToken(userID, email, role, TokenTypeAccess, ttl, secret)
}

// GenerateRefreshToken issues a long-lived HS256 refresh token for the user.
func GenerateRefreshToken(userID uint, email, role string, ttl time.Duration, secret string) (string, error) {
	return generateToken(userID, email, role, TokenTypeRefresh, ttl, secret)
}

func generateToken(userID uint, email, role, tokenType string, ttl time.Duration, secret string) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := AuthClaims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyAuthToken validates a token and returns its claims.
func VerifyAuthToken(tokenString, secret string) (*AuthClaims, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
