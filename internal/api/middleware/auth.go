// auth.go — JWT middleware для аутентификации и авторизации.
// Токены HS256, подписанные SECRET_KEY. Claims: sub (username), role.
// Токен принимается из заголовка Authorization (Bearer) или из
// HttpOnly cookie library_session, устанавливаемого при логине.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apierrors "github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/domain/model"
)

// SessionCookieName — имя cookie с сессионным токеном.
const SessionCookieName = "library_session"

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

const (
	// ContextKeyUsername — ключ для sub из JWT в контексте запроса.
	ContextKeyUsername contextKey = "jwt_username"
	// ContextKeyRole — ключ для role из JWT в контексте запроса.
	ContextKeyRole contextKey = "jwt_role"
)

// Claims — структура JWT claims сервиса.
type Claims struct {
	jwt.RegisteredClaims
	// Role — роль пользователя (Admin, Member).
	Role string `json:"role"`
}

// TokenAuth — выпуск и валидация сессионных токенов.
type TokenAuth struct {
	secret []byte
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenAuth создаёт TokenAuth с указанным ключом подписи и TTL токенов.
func NewTokenAuth(secret string, ttl time.Duration, logger *slog.Logger) *TokenAuth {
	return &TokenAuth{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.With(slog.String("component", "token_auth")),
	}
}

// TTL возвращает время жизни выпускаемых токенов.
func (t *TokenAuth) TTL() time.Duration {
	return t.ttl
}

// IssueToken выпускает подписанный HS256 токен для пользователя.
// Возвращает токен и время его истечения.
func (t *TokenAuth) IssueToken(username, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(t.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("ошибка подписи токена: %w", err)
	}

	return signed, expiresAt, nil
}

// ParseToken валидирует токен и возвращает claims.
func (t *TokenAuth) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(_ *jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenUnverifiable
	}
	if claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	if !model.ValidRole(claims.Role) {
		return nil, fmt.Errorf("недопустимая роль в токене: %q", claims.Role)
	}
	return claims, nil
}

// extractToken извлекает токен из заголовка Authorization или cookie.
// Возвращает пустую строку, если токен не передан.
func extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", fmt.Errorf("неверный формат Authorization: ожидается Bearer <token>")
		}
		return parts[1], nil
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", nil
	}
	return cookie.Value, nil
}

// Middleware возвращает HTTP middleware для аутентификации.
// Валидирует подпись и exp, помещает username и role в контекст запроса.
func (t *TokenAuth) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := extractToken(r)
			if err != nil {
				apierrors.Unauthorized(w, err.Error())
				return
			}
			if tokenString == "" {
				apierrors.Unauthorized(w, "Требуется аутентификация")
				return
			}

			claims, err := t.ParseToken(tokenString)
			if err != nil {
				t.logger.Debug("JWT валидация не пройдена",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				apierrors.Unauthorized(w, "Невалидный или просроченный токен")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUsername, claims.Subject)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole возвращает middleware, проверяющий роль пользователя.
// Роль Admin имеет доступ ко всем операциям; при недостаточной роли — 403.
// Должен использоваться ПОСЛЕ Middleware().
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole, ok := r.Context().Value(ContextKeyRole).(string)
			if !ok {
				apierrors.Forbidden(w, "Отсутствует роль в токене")
				return
			}

			if userRole == role || userRole == model.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			apierrors.Forbidden(w, "Недостаточно прав: требуется роль "+role)
		})
	}
}

// UsernameFromContext извлекает username из контекста запроса.
// Возвращает пустую строку, если пользователь не аутентифицирован.
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(ContextKeyUsername).(string)
	return username
}

// RoleFromContext извлекает роль из контекста запроса.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(ContextKeyRole).(string)
	return role
}
