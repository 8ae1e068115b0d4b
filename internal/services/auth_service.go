package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"duka/internal/models"
	"duka/internal/repositories"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Token roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// AuthConfig holds signing and admin credentials.
type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	AdminEmail    string
	AdminPassword string
}

// RegisterInput is the sign-up request.
type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo repositories.UserRepository
	cfg      AuthConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &AuthService{
		userRepo: userRepo,
		cfg:      cfg,
		validate: newValidator(),
		logger:   logger,
	}
}

// Register creates a user with a hashed password and returns a token for it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (string, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(s.validate, in); err != nil {
		return "", err
	}

	if _, err := s.userRepo.GetByEmail(ctx, in.Email); err == nil {
		return "", conflictError("user already exists")
	} else if !errors.Is(err, repositories.ErrUserNotFound) {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Password: string(hashedPassword),
		CartData: models.CartData{},
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return "", fmt.Errorf("failed to register user: %w", err)
	}
	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return s.issue(user.ID, RoleUser)
}

// Login authenticates a user and returns a JWT token if successful.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return "", unauthorizedError("invalid credentials")
		}
		return "", fmt.Errorf("failed to load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", unauthorizedError("invalid credentials")
	}
	return s.issue(user.ID, RoleUser)
}

// AdminLogin checks the configured admin credentials and returns an admin token.
func (s *AuthService) AdminLogin(email, password string) (string, error) {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return "", unauthorizedError("admin login is disabled")
	}
	if email != s.cfg.AdminEmail || password != s.cfg.AdminPassword {
		return "", unauthorizedError("invalid credentials")
	}
	return s.issue(email, RoleAdmin)
}

// ValidateToken parses and validates a JWT token, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		s.logger.Debug("Token validation error", zap.Error(err))
		return nil, unauthorizedError("invalid or expired token")
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, unauthorizedError("invalid token")
}

func (s *AuthService) issue(subject, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": subject,
		"role":    role,
		"exp":     now.Add(s.cfg.TokenTTL).Unix(),
		"iat":     now.Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return tokenString, nil
}
