// Пакет database — подключение к MongoDB через официальный драйвер,
// создание индексов и проверка готовности.
package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bigkaa/golibrary/internal/config"
)

// Имена коллекций сервиса.
const (
	UsersCollection = "users"
	BooksCollection = "books"
)

// Connect создаёт клиент MongoDB и выполняет ping для проверки доступности.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB недоступна: %w", err)
	}

	logger.Info("Подключение к MongoDB установлено",
		slog.String("database", cfg.DBName),
	)

	return client, nil
}

// EnsureIndexes создаёт индексы коллекций. Идемпотентно:
// повторное создание существующего индекса — no-op для MongoDB.
// Аналог миграций схемы для документной базы.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	// users.username — уникальный индекс (инвариант уникальности username)
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индекса users.username: %w", err)
	}

	// books.title — для сортировки листинга каталога
	_, err = db.Collection(BooksCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "title", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индекса books.title: %w", err)
	}

	logger.Info("Индексы MongoDB проверены")
	return nil
}

// Ping проверяет доступность базы. Используется в /health/ready.
func Ping(ctx context.Context, client *mongo.Client) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Ping(pingCtx, nil)
}
