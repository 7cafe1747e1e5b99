package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"carepulse-server/internal/models"
)

func TestGenerateAndValidateToken(t *testing.T) {
	cfg := TokenConfig{Secret: "test-secret", ExpirationMinutes: 15}
	token, expires, err := GenerateAccessToken("user-1", models.RolePatient, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(expires) > 15*time.Minute || time.Until(expires) < 14*time.Minute {
		t.Errorf("unexpected expiry %v", expires)
	}

	claims, err := ValidateToken(token, cfg.Secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != models.RolePatient || claims.Subject != "user-1" {
		t.Errorf("unexpected claims %+v", claims)
	}

	if _, err := ValidateToken(token, "other-secret"); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, _, err := GenerateAccessToken("user-1", models.RoleAdmin, TokenConfig{Secret: "s", ExpirationMinutes: -1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ValidateToken(token, "s"); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateToken_UnknownRole(t *testing.T) {
	claims := &Claims{
		UserID: "x",
		Role:   "doctor",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ValidateToken(token, "s"); err == nil {
		t.Error("expected error for unknown role")
	}
}
