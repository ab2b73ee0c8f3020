package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// ErrInvalidToken covers every way a presented token can fail: bad
// signature, expired, wrong flag, malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// tokenFlag marks a session token as an auth token; tokens minted for
// other purposes (verification links and the like) carry other flags
// and never authenticate a request.
const tokenFlag = "auth"

type sessionClaims struct {
	UserID int64  `json:"id"`
	Flag   string `json:"flag"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token for the user.
func (i *TokenIssuer) Issue(userID int64) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		UserID: userID,
		Flag:   tokenFlag,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature, expiry, and flag, and returns the user id.
func (i *TokenIssuer) Verify(raw string) (int64, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, ErrInvalidToken
	}
	if claims.Flag != tokenFlag || claims.UserID == 0 {
		return 0, ErrInvalidToken
	}
	return claims.UserID, nil
}
