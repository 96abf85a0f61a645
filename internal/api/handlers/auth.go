// auth.go — HTTP handlers аутентификации: логин и логаут.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/service"
)

// AuthHandler — обработчик endpoints аутентификации.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler создаёт обработчик endpoints аутентификации.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// loginRequest — тело запроса POST /api/v1/auth/login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// loginResponse — тело ответа успешного логина.
type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
}

// Login обрабатывает POST /api/v1/auth/login.
// Возвращает токен в JSON и дублирует его в HttpOnly cookie
// library_session для браузерных клиентов.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		errors.ValidationError(w, "Поля username и password обязательны")
		return
	}

	result, authErr := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if authErr != nil {
		errors.WriteError(w, authErr.StatusCode, authErr.Code, authErr.Message)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    result.Token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(result.ExpiresAt).Seconds()),
	})

	resp := loginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Username:  result.User.Username,
		Role:      result.User.Role,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// Logout обрабатывает POST /api/v1/auth/logout.
// Удаляет session cookie. Сам токен остаётся валидным до истечения —
// сервис не ведёт серверного списка отозванных токенов.
func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": "Сессия завершена"})
}
