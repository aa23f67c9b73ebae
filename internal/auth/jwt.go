package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var jwtSecret []byte

// ErrSecretNotInitialized is returned when InitializeJWT was never called
var ErrSecretNotInitialized = errors.New("JWT secret not initialized")

// JWTClaims represents the JWT token claims. The token id (jti) is what
// logout revokes.
type JWTClaims struct {
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	AuthMethod string `json:"auth_method"`
	jwt.RegisteredClaims
}

// InitializeJWT sets the JWT secret key
func InitializeJWT(secret string) {
	jwtSecret = []byte(secret)
}

// GenerateToken creates a new JWT token for a user valid for ttl
func GenerateToken(userID, username, authMethod string, ttl time.Duration) (string, *JWTClaims, error) {
	if len(jwtSecret) == 0 {
		return "", nil, ErrSecretNotInitialized
	}

	now := time.Now()
	claims := &JWTClaims{
		UserID:     userID,
		Username:   username,
		AuthMethod: authMethod,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(jwtSecret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	if len(jwtSecret) == 0 {
		return nil, ErrSecretNotInitialized
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtSecret, nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		if claims.ID == "" {
			return nil, fmt.Errorf("token has no id")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
