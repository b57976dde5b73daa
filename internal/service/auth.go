package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/repository"
	"peer-rental-core/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
)

const minPasswordLength = 8

type authService struct {
	userRepo repository.UserRepository
	tokens   security.TokenManager
	validate *validator.Validate
}

func NewAuthService(userRepo repository.UserRepository, tokens security.TokenManager) AuthService {
	return &authService{
		userRepo: userRepo,
		tokens:   tokens,
		validate: validator.New(),
	}
}

func (s *authService) Signup(ctx context.Context, email, password, name string, intent domain.UserIntent) (*domain.User, string, string, error) {
	const op = "signup"
	logger.EnterMethod("authService.Signup", "email", email, "intent", intent)

	email = domain.NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, "", "", domain.NewValidationError(op, "invalid email %q", email)
	}
	if len(password) < minPasswordLength {
		return nil, "", "", domain.NewValidationError(op, "password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(name) == "" {
		return nil, "", "", domain.NewValidationError(op, "name is required")
	}
	if intent == "" {
		intent = domain.UserIntentUnset
	}
	if !intent.Valid() {
		return nil, "", "", domain.NewValidationError(op, "unknown intent %q", intent)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", "", err
	}

	user := &domain.User{
		Email:                email,
		PasswordHash:         string(hash),
		Name:                 strings.TrimSpace(name),
		Intent:               intent,
		IdentityVerification: domain.VerificationUnverified,
		PayoutVerification:   domain.VerificationUnverified,
		Active:               true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			err = domain.NewValidationError(op, "email %s is already registered", email)
		}
		logger.ExitMethodWithError("authService.Signup", err)
		return nil, "", "", err
	}

	access, refresh, err := s.generateTokens(user)
	if err != nil {
		return nil, "", "", err
	}
	logger.ExitMethod("authService.Signup", "userID", user.ID)
	return user, access, refresh, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	user, err := s.userRepo.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return "", "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}
	if !user.Active {
		return "", "", domain.NewGatingFailure("login", domain.PreconditionAccountActive, "account is deactivated")
	}
	return s.generateTokens(user)
}

func (s *authService) RefreshToken(ctx context.Context, refresh string) (string, string, error) {
	claims, err := s.tokens.ValidateToken(refresh)
	if err != nil || claims.Type != security.TokenTypeRefresh {
		return "", "", ErrInvalidToken
	}
	user, err := s.userRepo.GetByEmail(ctx, claims.Email)
	if err != nil || !user.Active {
		return "", "", ErrInvalidToken
	}
	return s.generateTokens(user)
}

func (s *authService) generateTokens(user *domain.User) (string, string, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}
