package auth

import (
	"time"

	"github.com/and161185/coursemart/internal/errs"
	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer   = "coursemart"
	tokenTTL = 24 * time.Hour
)

// Claims identifies a session. Roles are not embedded: they are read from
// storage on every request so a promotion or demotion applies at once.
type Claims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

type TokenManager struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewTokenManager(secretKey string) *TokenManager {
	return &TokenManager{secretKey: []byte(secretKey), ttl: tokenTTL, now: time.Now}
}

func (tm *TokenManager) GenerateToken(userID int64) (string, error) {
	now := tm.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secretKey)
}

// ParseToken returns the user id of a valid token. Every failure collapses
// into ErrInvalidToken.
func (tm *TokenManager) ParseToken(tokenStr string) (int64, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenStr, &claims,
		func(t *jwt.Token) (interface{}, error) { return tm.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return 0, errs.ErrInvalidToken
	}

	return claims.UserID, nil
}
