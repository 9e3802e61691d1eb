package utils

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const (
	PurposeSession = "session"
	PurposeReset   = "reset"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims represents the JWT claims
type Claims struct {
	UserID  string `json:"userId"`
	Purpose string `json:"purpose"`
	jwt.StandardClaims
}

// TokenManager signs and verifies HS256 tokens with a single secret.
type TokenManager struct {
	key []byte
	ttl time.Duration
}

func NewTokenManager(secret string, sessionTTL time.Duration) *TokenManager {
	return &TokenManager{key: []byte(secret), ttl: sessionTTL}
}

func (tm *TokenManager) SessionTTL() time.Duration {
	return tm.ttl
}

// GenerateJWT generates a session token for a user
func (tm *TokenManager) GenerateJWT(userID string) (string, error) {
	return tm.sign(userID, PurposeSession, tm.ttl)
}

// GenerateResetToken generates a short-lived password reset token.
func (tm *TokenManager) GenerateResetToken(userID string, ttl time.Duration) (string, error) {
	return tm.sign(userID, PurposeReset, ttl)
}

func (tm *TokenManager) sign(userID, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:  userID,
		Purpose: purpose,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.key)
}

// Parse verifies tokenStr and checks that it was issued for purpose.
func (tm *TokenManager) Parse(tokenStr, purpose string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return tm.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
