// Точка входа Library Module — сервиса управления библиотекой книг.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bigkaa/golibrary/internal/api/handlers"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/config"
	"github.com/bigkaa/golibrary/internal/database"
	"github.com/bigkaa/golibrary/internal/repository"
	"github.com/bigkaa/golibrary/internal/server"
	"github.com/bigkaa/golibrary/internal/service"
	"github.com/bigkaa/golibrary/internal/storage/filestore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Library Module запускается",
		slog.String("version", config.Version),
		slog.String("addr", cfg.Addr()),
		slog.String("db_name", cfg.DBName),
		slog.String("upload_dir", cfg.UploadDir),
	)

	// --- Инициализация компонентов ---

	// 1. Подключение к MongoDB
	ctx := context.Background()
	client, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к MongoDB", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer disconnect(client, logger)

	db := client.Database(cfg.DBName)
	if err := database.EnsureIndexes(ctx, db, logger); err != nil {
		logger.Error("Ошибка создания индексов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Файловое хранилище
	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации FileStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Репозитории
	users := repository.NewUserRepository(db)
	books := repository.NewBookRepository(db)

	// 4. Токены и сервисы
	tokens := middleware.NewTokenAuth(cfg.SecretKey, cfg.TokenTTL, logger)

	authSvc := service.NewAuthService(users, tokens, logger)
	if err := authSvc.EnsureBootstrapAdmin(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword); err != nil {
		logger.Error("Ошибка создания начального администратора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	catalogSvc := service.NewCatalogService(books, store, cache, cfg.MaxFileSize, logger)
	downloadSvc := service.NewDownloadService(catalogSvc, store, logger)

	// 5. Фоновая очистка осиротевших файлов
	gcSvc := service.NewGCService(store, books, cfg.GCInterval, logger)
	gcSvc.Start(ctx)
	defer gcSvc.Stop()

	// 6. HTTP handlers
	h := server.Handlers{
		Auth:  handlers.NewAuthHandler(authSvc),
		Books: handlers.NewBooksHandler(catalogSvc, downloadSvc),
		Users: handlers.NewUsersHandler(users, logger),
		Health: handlers.NewHealthHandler(cfg.UploadDir, func(ctx context.Context) error {
			return database.Ping(ctx, client)
		}),
		Storage: handlers.NewStorageHandler(books, cfg.UploadDir, func() (int64, int64, int64, error) {
			return getDiskUsage(cfg.UploadDir)
		}, logger),
	}

	// 7. HTTP-сервер с graceful shutdown
	srv := server.New(cfg, logger, h, tokens)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// disconnect закрывает подключение к MongoDB с таймаутом.
func disconnect(client *mongo.Client, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Disconnect(ctx); err != nil {
		logger.Error("Ошибка отключения от MongoDB", slog.String("error", err.Error()))
		return
	}
	logger.Info("Подключение к MongoDB закрыто")
}
