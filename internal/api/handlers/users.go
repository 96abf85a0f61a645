// users.go — HTTP handlers управления пользователями. Все endpoints
// доступны только роли Admin.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/domain/model"
	"github.com/bigkaa/golibrary/internal/repository"
	"github.com/bigkaa/golibrary/internal/service"
)

// UsersHandler — обработчик endpoints управления пользователями.
type UsersHandler struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewUsersHandler создаёт обработчик endpoints пользователей.
func NewUsersHandler(users repository.UserRepository, logger *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		logger: logger.With(slog.String("component", "users_handler")),
	}
}

// createUserRequest — тело запроса POST /api/v1/users.
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// updateUserRequest — тело запроса PUT /api/v1/users/{user_id}.
// Nil-поля не меняются.
type updateUserRequest struct {
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

// userListResponse — тело ответа листинга пользователей.
type userListResponse struct {
	Items  []*model.User `json:"items"`
	Total  int64         `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ListUsers обрабатывает GET /api/v1/users.
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			errors.ValidationError(w, "Параметр limit должен быть от 1 до 1000")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			errors.ValidationError(w, "Параметр offset не может быть отрицательным")
			return
		}
		offset = n
	}

	items, total, err := h.users.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Ошибка листинга пользователей", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	resp := userListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetUser обрабатывает GET /api/v1/users/{user_id}.
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Пользователь %s не найден", userID))
			return
		}
		h.logger.Error("Ошибка чтения пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(user)
}

// CreateUser обрабатывает POST /api/v1/users.
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		errors.ValidationError(w, "Поля username и password обязательны")
		return
	}
	if !model.ValidRole(req.Role) {
		errors.ValidationError(w, fmt.Sprintf("Недопустимая роль %q, допустимые: Admin, Member", req.Role))
		return
	}

	hash, err := service.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
		errors.InternalError(w, "Внутренняя ошибка")
		return
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			errors.Conflict(w, fmt.Sprintf("Пользователь %q уже существует", req.Username))
			return
		}
		h.logger.Error("Ошибка создания пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	h.logger.Info("Пользователь создан",
		slog.String("username", user.Username),
		slog.String("role", user.Role),
		slog.String("created_by", middleware.UsernameFromContext(r.Context())),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(user)
}

// UpdateUser обрабатывает PUT /api/v1/users/{user_id}.
// Обновляет роль и/или пароль.
func (h *UsersHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if req.Password == nil && req.Role == nil {
		errors.ValidationError(w, "Необходимо указать хотя бы одно поле для обновления (password или role)")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Пользователь %s не найден", userID))
			return
		}
		h.logger.Error("Ошибка чтения пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			errors.ValidationError(w, fmt.Sprintf("Недопустимая роль %q, допустимые: Admin, Member", *req.Role))
			return
		}
		user.Role = *req.Role
	}
	if req.Password != nil {
		if *req.Password == "" {
			errors.ValidationError(w, "Пароль не может быть пустым")
			return
		}
		hash, err := service.HashPassword(*req.Password)
		if err != nil {
			h.logger.Error("Ошибка хэширования пароля", slog.String("error", err.Error()))
			errors.InternalError(w, "Внутренняя ошибка")
			return
		}
		user.PasswordHash = hash
	}

	if err := h.users.Update(r.Context(), user); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Пользователь %s не найден", userID))
			return
		}
		h.logger.Error("Ошибка обновления пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	h.logger.Info("Пользователь обновлён",
		slog.String("username", user.Username),
		slog.String("updated_by", middleware.UsernameFromContext(r.Context())),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(user)
}

// DeleteUser обрабатывает DELETE /api/v1/users/{user_id}.
// Администратор не может удалить собственную учётную запись.
func (h *UsersHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Пользователь %s не найден", userID))
			return
		}
		h.logger.Error("Ошибка чтения пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	if user.Username == middleware.UsernameFromContext(r.Context()) {
		errors.Conflict(w, "Нельзя удалить собственную учётную запись")
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			errors.NotFound(w, fmt.Sprintf("Пользователь %s не найден", userID))
			return
		}
		h.logger.Error("Ошибка удаления пользователя", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	h.logger.Info("Пользователь удалён",
		slog.String("username", user.Username),
		slog.String("deleted_by", middleware.UsernameFromContext(r.Context())),
	)

	w.WriteHeader(http.StatusNoContent)
}
