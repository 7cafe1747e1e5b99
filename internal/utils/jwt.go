package utils

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"carepulse-server/internal/models"
)

// Claims represents the JWT claims.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenConfig holds what is needed to sign access tokens.
type TokenConfig struct {
	Secret            string
	ExpirationMinutes int
}

// GenerateAccessToken signs an HS256 access token for subject with role.
func GenerateAccessToken(subject string, role models.Role, cfg TokenConfig) (string, time.Time, error) {
	now := time.Now()
	expirationTime := now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)
	claims := &Claims{
		UserID: subject,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, expirationTime, nil
}

// ValidateToken validates a JWT token.
func ValidateToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	switch claims.Role {
	case models.RoleAdmin, models.RolePatient:
	default:
		return nil, fmt.Errorf("token carries unknown role %q", claims.Role)
	}

	return claims, nil
}
