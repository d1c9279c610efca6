package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/models"
)

// Claims identify the player a request acts for. Issuing them is the
// operator's concern; this service only signs and checks them.
type Claims struct {
	PlayerID   string            `json:"player_id"`
	PlayerKind models.PlayerKind `json:"player_kind"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTService(cfg *config.Config) *JWTService {
	return &JWTService{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.JWTTTL,
	}
}

func (s *JWTService) GenerateToken(playerID string, kind models.PlayerKind) (string, error) {
	now := time.Now()
	claims := Claims{
		PlayerID:   playerID,
		PlayerKind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if claims.PlayerID == "" {
		return nil, errors.New("token has no player id")
	}
	if !claims.PlayerKind.Valid() {
		return nil, fmt.Errorf("token has unknown player kind %q", claims.PlayerKind)
	}
	return &claims, nil
}
