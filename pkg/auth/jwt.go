package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dotanrosenberg-oss/ImagineAgentClient/pkg/env"
)

// JWTSecretKey signs operator session tokens. Falls back to the operator
// secret so a single env var is enough to turn auth on.
var JWTSecretKey string

// SessionTTL bounds how long an operator session token stays valid.
var SessionTTL time.Duration

func init() {
	JWTSecretKey = env.GetEnvStringOrDefault("JWT_SECRET_KEY", "")
	if JWTSecretKey == "" {
		JWTSecretKey = OperatorSecretKey
	}
	SessionTTL = env.GetEnvDurationOrDefault("OPERATOR_SESSION_TTL", 12*time.Hour)
}

// OperatorClaims represents the claims in an operator session JWT
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken creates a bounded-lifetime JWT for a console session
func GenerateOperatorToken(operator string) (string, error) {
	if JWTSecretKey == "" {
		return "", errors.New("JWT secret not configured")
	}

	now := time.Now()
	claims := OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(JWTSecretKey))
}

// ValidateOperatorToken validates a session JWT and returns the claims
func ValidateOperatorToken(tokenString string) (*OperatorClaims, error) {
	if JWTSecretKey == "" {
		return nil, errors.New("JWT secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(JWTSecretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*OperatorClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}
