package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"kakeibo/internal/domain"
	"kakeibo/internal/errs"
	"kakeibo/internal/repository"
)

// AuthService owns registration, login and the session lifecycle.
type AuthService interface {
	Register(ctx context.Context, email, password, passwordConfirm string) (*domain.User, *domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error)
	Logout(ctx context.Context, token string) error
	// Resolve maps a session token to its user. An empty, unknown or expired
	// token, or a token whose user no longer exists, resolves to (nil, nil):
	// the caller is anonymous, not in error.
	Resolve(ctx context.Context, token string) (*domain.User, error)
}

type authService struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	sessionTTL time.Duration
}

func NewAuthService(users repository.UserRepository, sessions repository.SessionRepository, sessionTTL time.Duration) AuthService {
	return &authService{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
	}
}

func (s *authService) Register(ctx context.Context, email, password, passwordConfirm string) (*domain.User, *domain.Session, error) {
	email = strings.TrimSpace(email)

	ve := errs.NewValidationError()
	if email == "" {
		ve.Add("email", "email is required")
	}
	if password == "" {
		ve.Add("password", "password is required")
	}
	if passwordConfirm == "" {
		ve.Add("passwordConfirm", "password confirmation is required")
	} else if password != passwordConfirm {
		ve.Add("passwordConfirm", "passwords do not match")
	}
	if !ve.Empty() {
		return nil, nil, ve
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		return nil, nil, err
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return sanitizeUser(user), session, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*domain.User, *domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, nil, errs.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, errs.ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errs.ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return sanitizeUser(user), session, nil
}

// Logout destroys the session. Destroying an absent session is not an error.
func (s *authService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	return nil
}

func (s *authService) Resolve(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// account deleted since login: treat as anonymous
			return nil, nil
		}
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *authService) openSession(ctx context.Context, userID int64) (*domain.Session, error) {
	session := &domain.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(s.sessionTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
