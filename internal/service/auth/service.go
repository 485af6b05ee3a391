package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"

	"github.com/mlavigne/notify-api/internal/config"
	apperrors "github.com/mlavigne/notify-api/pkg/errors"
)

const (
	tokenCacheTTL     = time.Minute
	tokenCacheCleanup = 5 * time.Minute
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type Servicer interface {
	Login(ctx context.Context, username, password string) (string, error)
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// Service implements the opaque bearer-token collaborator guarding the
// admin surface. Validated tokens are cached briefly to keep the signature
// check off the hot path.
type Service struct {
	cfg    config.AuthConfig
	tokens *cache.Cache
}

func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		cfg:    cfg,
		tokens: cache.New(tokenCacheTTL, tokenCacheCleanup),
	}
}

func (s *Service) Login(_ context.Context, username, password string) (string, error) {
	if username != s.cfg.AdminUsername {
		return "", apperrors.Unauthorized(fmt.Errorf("unknown user"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		return "", apperrors.Unauthorized(err)
	}

	now := time.Now()
	claims := &Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.cfg.ExpiryHours) * time.Hour)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return token, nil
}

func (s *Service) ValidateToken(_ context.Context, tokenString string) (*Claims, error) {
	if cached, found := s.tokens.Get(tokenString); found {
		return cached.(*Claims), nil
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthorized(err)
	}

	s.tokens.Set(tokenString, claims, cache.DefaultExpiration)
	return claims, nil
}
