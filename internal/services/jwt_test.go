package services_test

import (
	"testing"
	"time"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := services.NewJWTService(&config.Config{JWTSecret: "secret", JWTTTL: time.Hour})

	token, err := svc.GenerateToken("alice", models.PlayerKindAgent)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.PlayerID != "alice" || claims.PlayerKind != models.PlayerKindAgent {
		t.Fatalf("claims = %+v", claims)
	}

	other := services.NewJWTService(&config.Config{JWTSecret: "other", JWTTTL: time.Hour})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret should not validate")
	}
	if _, err := svc.ValidateToken(token + "x"); err == nil {
		t.Fatal("tampered token should not validate")
	}
}

func TestJWTExpired(t *testing.T) {
	svc := services.NewJWTService(&config.Config{JWTSecret: "secret", JWTTTL: -time.Minute})

	token, err := svc.GenerateToken("alice", models.PlayerKindUser)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expired token should not validate")
	}
}
