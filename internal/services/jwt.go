package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"rewards-terminal/internal/config"
	"rewards-terminal/internal/models"
)

type Claims struct {
	Identity   models.Identity `json:"identity"`
	PlayerName string          `json:"player_name,omitempty"`
	SessionID  string          `json:"session_id"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(cfg *config.Config) *JWTService {
	expiry := cfg.JWTExpiry
	if expiry <= 0 {
		expiry = TTLUserSession
	}
	return &JWTService{
		secret: []byte(cfg.JWTSecret),
		expiry: expiry,
	}
}

func (s *JWTService) Expiry() time.Duration {
	return s.expiry
}

func (s *JWTService) GenerateToken(session *models.UserSession) (string, error) {
	now := time.Now()
	claims := Claims{
		Identity:   session.Identity,
		PlayerName: session.PlayerName,
		SessionID:  session.SessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(session.Identity),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Identity == "" || claims.SessionID == "" {
		return nil, errors.New("invalid token: missing identity or session")
	}
	return claims, nil
}
