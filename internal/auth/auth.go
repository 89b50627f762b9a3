package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yyup/kadmin/config"
	"github.com/yyup/kadmin/internal/models"
)

var (
	ErrSecretRequired     = errors.New("auth: jwt secret required")
	ErrUserExists         = errors.New("auth: user already exists")
	ErrUsernameRequired   = errors.New("auth: username is required")
	ErrPasswordTooWeak    = errors.New("auth: password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrInvalidToken       = errors.New("auth: invalid token")
)

type UserInput struct {
	Username string
	Password string
	Role     string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.User
}

// Claims is the token payload; Role mirrors the product's admin flag.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service keeps users in memory and issues HS256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration

	mu    sync.RWMutex
	users map[string]*models.User
}

func NewService(secret string, ttl time.Duration) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		users:  make(map[string]*models.User),
	}, nil
}

// NewSeededService builds a Service holding the admin account from cfg.
func NewSeededService(ctx context.Context, cfg config.DevStubConfig) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	svc, err := NewService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}

	if _, err := svc.AddUser(ctx, UserInput{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Role:     "admin",
	}); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) AddUser(ctx context.Context, input UserInput) (models.User, error) {
	_ = ctx

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return models.User{}, ErrUsernameRequired
	}
	if len(strings.TrimSpace(input.Password)) < 6 {
		return models.User{}, ErrPasswordTooWeak
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = "user"
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     username,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(username)
	if _, exists := s.users[key]; exists {
		return models.User{}, ErrUserExists
	}
	s.users[key] = user

	return user.Sanitize(), nil
}

func (s *Service) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	_ = ctx

	username := strings.TrimSpace(input.Username)
	if username == "" || strings.TrimSpace(input.Password) == "" {
		return nil, ErrInvalidCredentials
	}

	s.mu.RLock()
	user := s.users[strings.ToLower(username)]
	s.mu.RUnlock()

	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	s.mu.Lock()
	user.LastLoginAt = time.Now().UTC()
	snapshot := user.Sanitize()
	s.mu.Unlock()

	token, expiresAt, err := s.generateToken(snapshot)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      snapshot,
	}, nil
}

func (s *Service) VerifyToken(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) generateToken(user models.User) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}
