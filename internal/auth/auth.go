// Package auth resolves bearer credentials to owner identities. Three
// credential kinds are accepted: persisted API tokens (looked up in the
// metadata store), statically configured API keys, and signed JWTs.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/mnemos/pkg/models"
)

var (
	ErrAuthDisabled = errors.New("auth disabled")
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("invalid api key")
)

// TokenResolver looks persisted bearer tokens up in the metadata store.
type TokenResolver interface {
	GetUserByToken(ctx context.Context, token string) (*models.User, error)
}

// Config configures authentication helpers.
type Config struct {
	JWTSecret   string
	TokenExpiry time.Duration
	APIKeys     []APIKeyConfig
}

// APIKeyConfig declares a static API key and associated identity.
type APIKeyConfig struct {
	Key    string
	UserID string
	Email  string
	Name   string
}

// Service validates bearer credentials.
type Service struct {
	mu      sync.RWMutex
	jwt     *JWTService
	apiKeys map[string]*models.User
	tokens  TokenResolver
}

// NewService constructs an auth service from static configuration and an
// optional token resolver backed by the metadata store.
func NewService(cfg Config, tokens TokenResolver) *Service {
	service := &Service{tokens: tokens}
	if strings.TrimSpace(cfg.JWTSecret) != "" {
		service.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	service.apiKeys = buildAPIKeyMap(cfg.APIKeys)
	return service
}

// Enabled reports whether auth checks should run.
func (s *Service) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jwt != nil || len(s.apiKeys) > 0 || s.tokens != nil
}

// Resolve maps a bearer credential to its user: persisted tokens first,
// then static API keys, then JWTs.
func (s *Service) Resolve(ctx context.Context, credential string) (*models.User, error) {
	if s == nil || !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, ErrInvalidToken
	}

	if s.tokens != nil {
		user, err := s.tokens.GetUserByToken(ctx, credential)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
	}

	if user, err := s.validateAPIKey(credential); err == nil {
		return user, nil
	}

	s.mu.RLock()
	jwtService := s.jwt
	s.mu.RUnlock()
	if jwtService != nil {
		if user, err := jwtService.Validate(credential); err == nil {
			return user, nil
		}
	}

	return nil, ErrInvalidToken
}

// GenerateJWT issues a signed token for the given user.
func (s *Service) GenerateJWT(user *models.User) (string, error) {
	if s == nil {
		return "", ErrAuthDisabled
	}
	s.mu.RLock()
	jwtService := s.jwt
	s.mu.RUnlock()
	if jwtService == nil {
		return "", ErrAuthDisabled
	}
	return jwtService.Generate(user)
}

// validateAPIKey checks static keys with constant-time comparison to
// prevent timing attacks.
func (s *Service) validateAPIKey(key string) (*models.User, error) {
	s.mu.RLock()
	apiKeys := s.apiKeys
	s.mu.RUnlock()

	if len(apiKeys) == 0 {
		return nil, ErrAuthDisabled
	}
	inputKey := strings.TrimSpace(key)
	var matchedUser *models.User
	for storedKey, user := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(inputKey), []byte(storedKey)) == 1 {
			matchedUser = user
		}
	}
	if matchedUser == nil {
		return nil, ErrInvalidKey
	}
	return matchedUser, nil
}

func buildAPIKeyMap(keys []APIKeyConfig) map[string]*models.User {
	out := map[string]*models.User{}
	for _, entry := range keys {
		key := strings.TrimSpace(entry.Key)
		if key == "" {
			continue
		}
		userID := strings.TrimSpace(entry.UserID)
		if userID == "" {
			sum := sha256.Sum256([]byte(key))
			userID = "api_" + hex.EncodeToString(sum[:8])
		}
		out[key] = &models.User{
			ID:    userID,
			Email: strings.TrimSpace(entry.Email),
			Name:  strings.TrimSpace(entry.Name),
		}
	}
	return out
}
