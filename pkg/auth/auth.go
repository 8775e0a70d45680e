package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookie is the cookie holding the signed admin session token.
const SessionCookie = "admin_session"

var ErrInvalidSession = errors.New("invalid or expired session")

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func ComparePasswords(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateSessionToken signs an admin session token valid for ttl.
func GenerateSessionToken(secret, username string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("session secret is not set")
	}

	claims := jwt.MapClaims{
		"iss":   "masterclass",
		"sub":   username,
		"admin": true,
		"exp":   time.Now().Add(ttl).Unix(),
		"iat":   time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken verifies the signature and expiry and returns the
// admin username.
func ParseSessionToken(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", errors.New("session secret is not set")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	if isAdmin, _ := claims["admin"].(bool); !isAdmin {
		return "", ErrInvalidSession
	}
	username, _ := claims["sub"].(string)
	if username == "" {
		return "", ErrInvalidSession
	}
	return username, nil
}
