// Package auth содержит бизнес-логику регистрации, проверки учётных данных
// и аутентификации запросов по bearer-токену.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/magabrotheeeer/entitlement-core/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/password"
	"github.com/magabrotheeeer/entitlement-core/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-core/internal/models"
	"github.com/magabrotheeeer/entitlement-core/internal/storage"
)

// UserRepository описывает контракт хранилища учётных записей.
type UserRepository interface {
	// CreateUser сохраняет нового пользователя и возвращает его UID.
	CreateUser(ctx context.Context, user models.User) (string, error)
	// GetUserByEmail возвращает пользователя по идентификатору или storage.ErrNotFound.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenMaker выпускает и проверяет bearer-токены.
type TokenMaker interface {
	GenerateToken(subject, role string) (string, error)
	ParseToken(tokenStr string) (*jwt.Claims, error)
}

// RegisterInput - данные для регистрации.
type RegisterInput struct {
	Identifier  string
	Secret      string
	DisplayName string
	Preferences []string
}

// Result - ответ на успешный вход или регистрацию.
type Result struct {
	Token       string         `json:"token"`
	Role        models.Role    `json:"role"`
	PrincipalID string         `json:"principalId"`
	Profile     models.Profile `json:"profile"`
}

// AuthService отвечает за регистрацию, вход и аутентификацию по токену.
type AuthService struct {
	users    UserRepository
	jwtMaker TokenMaker
	log      *slog.Logger
	hashCost int
}

// Option настраивает AuthService.
type Option func(*AuthService)

// WithHashCost задаёт стоимость bcrypt для новых паролей.
func WithHashCost(cost int) Option {
	return func(s *AuthService) {
		s.hashCost = cost
	}
}

// NewAuthService создаёт новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker TokenMaker, log *slog.Logger, opts ...Option) *AuthService {
	s := &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeIdentifier приводит идентификатор (email) к каноническому виду.
func NormalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// Register создаёт пользователя с ролью USER и неактивной подпиской и сразу выпускает токен.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	const op = "auth.Register"

	hashed, err := password.GetHashWithCost(in.Secret, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Email:        NormalizeIdentifier(in.Identifier),
		PasswordHash: hashed,
		Role:         models.RoleUser,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Preferences:  in.Preferences,
		Status:       models.StatusInactive,
	}

	uid, err := s.users.CreateUser(ctx, user)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDuplicateIdentifier)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	user.UUID = uid
	s.log.Info("user registered", slog.String("user_uid", uid))

	return s.issue(op, &user)
}

// Login проверяет учётные данные и выпускает токен.
func (s *AuthService) Login(ctx context.Context, identifier, secret string) (*Result, error) {
	const op = "auth.Login"

	user, err := s.VerifyCredentials(ctx, identifier, secret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.issue(op, user)
}

// VerifyCredentials сверяет пароль с сохранённым хешем.
// Неизвестный идентификатор и неверный пароль дают одну и ту же ошибку
// models.ErrInvalidCredentials; для неизвестного идентификатора всё равно
// выполняется сравнение bcrypt, чтобы время ответа не выдавало существование аккаунта.
func (s *AuthService) VerifyCredentials(ctx context.Context, identifier, secret string) (*models.User, error) {
	const op = "auth.VerifyCredentials"

	user, err := s.users.GetUserByEmail(ctx, NormalizeIdentifier(identifier))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			password.BurnCompare(secret)
			return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.CompareHash(user.PasswordHash, secret); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Error("stored password hash is unusable", slog.String("user_uid", user.UUID), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
	}
	return user, nil
}

// Authenticate проверяет токен и находит владельца subject.
//
// Ошибки: models.ErrInvalidToken (любая проблема с токеном, причина обёрнута),
// models.ErrRecordNotFound (subject больше не существует), ошибки контекста и хранилища как есть.
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Principal, error) {
	const op = "auth.Authenticate"

	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%s: %w: %w", op, models.ErrInvalidToken, err)
	}

	user, err := s.users.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Principal{}, fmt.Errorf("%s: %w", op, models.ErrRecordNotFound)
		}
		return models.Principal{}, fmt.Errorf("%s: %w", op, err)
	}

	principal := user.Principal()
	// роль фиксируется на момент выпуска токена
	if role, err := models.ParseRole(claims.Role); err == nil {
		principal.Role = role
	}
	return principal, nil
}

func (s *AuthService) issue(op string, user *models.User) (*Result, error) {
	token, err := s.jwtMaker.GenerateToken(user.Email, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Result{
		Token:       token,
		Role:        user.Role,
		PrincipalID: user.UUID,
		Profile:     user.Profile(),
	}, nil
}
