package auth

import (
	"fmt"

	"chat-server/internal/config"
	"chat-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Service verifies bearer tokens issued by the authentication collaborator.
// Issuance lives with that collaborator; this side only checks the signature
// and extracts the identity claims.
type Service struct {
	cfg *config.Config
}

func NewService(cfg *config.Config) *Service {
	return &Service{cfg: cfg}
}

func (s *Service) ValidateToken(tokenString string) (*jwt.MapClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.cfg.JWT.Secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}

func (s *Service) IdentityFromToken(tokenString string) (*models.Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	userID, ok := (*claims)["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("invalid user ID in token")
	}

	username, ok := (*claims)["username"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid username in token")
	}

	return &models.Identity{ID: userID, Username: username}, nil
}
