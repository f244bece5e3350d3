package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/msomdec/typing-exam/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

// AdminTokenTTL is the lifetime of an admin JWT.
const AdminTokenTTL = 24 * time.Hour

const roleAdmin = "admin"

// AuthService handles admin accounts, login, and JWT token operations.
type AuthService struct {
	admins     domain.AdminRepository
	jwtSecret  []byte
	bcryptCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(admins domain.AdminRepository, jwtSecret string, bcryptCost int) *AuthService {
	return &AuthService{
		admins:     admins,
		jwtSecret:  []byte(jwtSecret),
		bcryptCost: bcryptCost,
	}
}

// CreateAdmin creates a new admin account after validating inputs.
func (s *AuthService) CreateAdmin(ctx context.Context, email, displayName, password string) (*domain.Admin, error) {
	if email == "" || displayName == "" || password == "" {
		return nil, fmt.Errorf("%w: email, display name, and password are required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", domain.ErrInvalidInput)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &domain.Admin{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}

// Login verifies credentials and returns a signed JWT token string.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("get admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", domain.ErrUnauthorized
	}

	token, err := s.generateJWT(admin)
	if err != nil {
		return "", fmt.Errorf("generate jwt: %w", err)
	}
	return token, nil
}

// adminClaims is the payload of an admin JWT.
type adminClaims struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// ValidateToken checks an admin JWT and returns the admin ID from its
// subject. Tokens without an expiry or the admin role are refused.
func (s *AuthService) ValidateToken(tokenString string) (int64, error) {
	var claims adminClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return s.jwtSecret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Role != roleAdmin {
		return 0, domain.ErrUnauthorized
	}

	adminID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, domain.ErrUnauthorized
	}
	return adminID, nil
}

// GetAdminByID retrieves an admin by ID.
func (s *AuthService) GetAdminByID(ctx context.Context, id int64) (*domain.Admin, error) {
	return s.admins.GetByID(ctx, id)
}

func (s *AuthService) generateJWT(admin *domain.Admin) (string, error) {
	now := time.Now()
	claims := adminClaims{
		Email:       admin.Email,
		DisplayName: admin.DisplayName,
		Role:        roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(admin.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AdminTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
