// Пакет server — HTTP-сервер библиотечного сервиса с graceful shutdown.
// Без TLS — сервис рассчитан на TLS termination на reverse proxy.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/golibrary/internal/api/handlers"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/config"
	"github.com/bigkaa/golibrary/internal/domain/model"
)

// Handlers — обработчики, монтируемые на маршруты сервера.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Books   *handlers.BooksHandler
	Users   *handlers.UsersHandler
	Health  *handlers.HealthHandler
	Storage *handlers.StorageHandler
}

// Server — HTTP-сервер библиотечного сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// tokens — middleware аутентификации для защищённых маршрутов.
func New(cfg *config.Config, logger *slog.Logger, h Handlers, tokens *middleware.TokenAuth) *Server {
	router := chi.NewRouter()

	// Общие middleware: логирование и метрики на всех маршрутах
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные endpoints
	router.Get("/", rootHandler)
	router.Get("/health/live", h.Health.HealthLive)
	router.Get("/health/ready", h.Health.HealthReady)
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Post("/api/v1/auth/login", h.Auth.Login)
	router.Post("/api/v1/auth/logout", h.Auth.Logout)

	// Каталог: чтение — любой аутентифицированный, изменение — Admin
	router.Route("/api/v1/books", func(r chi.Router) {
		r.Use(tokens.Middleware())

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleMember))
			r.Get("/", h.Books.ListBooks)
			r.Get("/{book_id}", h.Books.GetBook)
			r.Get("/{book_id}/download", h.Books.DownloadBook)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Post("/", h.Books.CreateBook)
			r.Put("/{book_id}", h.Books.UpdateBook)
			r.Delete("/{book_id}", h.Books.DeleteBook)
		})
	})

	// Управление пользователями и хранилищем: только Admin
	router.Group(func(r chi.Router) {
		r.Use(tokens.Middleware())
		r.Use(middleware.RequireRole(model.RoleAdmin))

		r.Route("/api/v1/users", func(r chi.Router) {
			r.Get("/", h.Users.ListUsers)
			r.Post("/", h.Users.CreateUser)
			r.Get("/{user_id}", h.Users.GetUser)
			r.Put("/{user_id}", h.Users.UpdateUser)
			r.Delete("/{user_id}", h.Users.DeleteUser)
		})

		r.Get("/api/v1/storage/info", h.Storage.GetStorageInfo)
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// rootHandler обрабатывает GET / — приветственное сообщение сервиса.
func rootHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"message": "Welcome to the Library Management System",
		"version": config.Version,
	})
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом
// LM_SHUTDOWN_TIMEOUT.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
