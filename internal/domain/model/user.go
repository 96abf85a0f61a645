// Пакет model — доменные модели библиотечного сервиса.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Роли пользователей.
const (
	// RoleAdmin — полный доступ: управление книгами и пользователями.
	RoleAdmin = "Admin"
	// RoleMember — только чтение каталога и скачивание файлов.
	RoleMember = "Member"
)

// ValidRole проверяет, что строка является допустимой ролью.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleMember
}

// User — пользователь сервиса (коллекция users).
type User struct {
	// ID — идентификатор документа MongoDB.
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	// Username — уникальное имя пользователя (unique index).
	Username string `bson:"username" json:"username"`
	// PasswordHash — bcrypt-хэш пароля. Никогда не отдаётся в JSON.
	PasswordHash string `bson:"password" json:"-"`
	// Role — роль пользователя (Admin, Member).
	Role string `bson:"role" json:"role"`
	// CreatedAt — время создания записи.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	// UpdatedAt — время последнего изменения записи.
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// IsAdmin возвращает true для пользователей с ролью Admin.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
