// Пакет service — бизнес-логика библиотечного сервиса.
// auth.go — проверка учётных данных и выпуск сессионных токенов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/domain/model"
	"github.com/bigkaa/golibrary/internal/repository"
)

// AuthError — ошибка аутентификации с HTTP-кодом.
type AuthError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoginResult — результат успешного логина.
type LoginResult struct {
	// Token — подписанный сессионный токен.
	Token string
	// ExpiresAt — время истечения токена.
	ExpiresAt time.Time
	// User — аутентифицированный пользователь.
	User *model.User
}

// AuthService — сервис аутентификации.
type AuthService struct {
	users  repository.UserRepository
	tokens *middleware.TokenAuth
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, tokens *middleware.TokenAuth, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет учётные данные и выпускает сессионный токен.
// Несуществующий пользователь и неверный пароль возвращают одинаковую
// ошибку, чтобы не раскрывать существование username.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, *AuthError) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidCredentials()
		}
		s.logger.Error("Ошибка чтения пользователя при логине",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, &AuthError{
			StatusCode: 503,
			Code:       apierrors.CodeStorageError,
			Message:    "База данных недоступна",
		}
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.logger.Debug("Неверный пароль", slog.String("username", username))
		return nil, invalidCredentials()
	}

	token, expiresAt, err := s.tokens.IssueToken(user.Username, user.Role)
	if err != nil {
		s.logger.Error("Ошибка выпуска токена",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, &AuthError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Внутренняя ошибка при выпуске токена",
		}
	}

	s.logger.Info("Пользователь аутентифицирован",
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}

// EnsureBootstrapAdmin создаёт начального администратора, если коллекция
// users пуста и заданы bootstrap-переменные. Повторные запуски — no-op.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, username, password string) error {
	if username == "" {
		return nil
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return fmt.Errorf("ошибка подсчёта пользователей: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	admin := &model.User{
		Username:     username,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		// Параллельный запуск второго экземпляра мог успеть раньше
		if errors.Is(err, repository.ErrConflict) {
			return nil
		}
		return fmt.Errorf("ошибка создания начального администратора: %w", err)
	}

	s.logger.Info("Создан начальный администратор", slog.String("username", username))
	return nil
}

// HashPassword возвращает bcrypt-хэш пароля.
// Пароли никогда не хранятся в открытом виде.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}

// invalidCredentials — единый ответ на неверные учётные данные.
func invalidCredentials() *AuthError {
	return &AuthError{
		StatusCode: 401,
		Code:       apierrors.CodeUnauthorized,
		Message:    "Неверное имя пользователя или пароль",
	}
}
