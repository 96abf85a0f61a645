// Пакет repository — доступ к коллекциям MongoDB (users, books).
// Репозитории определены интерфейсами, чтобы сервисный слой
// тестировался на in-memory реализациях.
package repository

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// Стандартные ошибки репозиториев.
var (
	// ErrNotFound — документ не найден.
	ErrNotFound = errors.New("документ не найден")
	// ErrConflict — нарушение уникальности (например, дубликат username).
	ErrConflict = errors.New("конфликт с существующим документом")
)

// isDuplicateKey проверяет, является ли ошибка нарушением уникального индекса.
func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
