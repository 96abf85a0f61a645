package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Book — книга каталога (коллекция books).
// FilePath — слабая ссылка на файл в UPLOAD_DIR: если файл удалён
// независимо от записи, скачивание возвращает NOT_FOUND, запись остаётся.
type Book struct {
	// ID — идентификатор документа MongoDB.
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	// Title — название книги.
	Title string `bson:"title" json:"title"`
	// Author — автор книги.
	Author string `bson:"author" json:"author"`
	// FilePath — относительный путь файла в UPLOAD_DIR.
	FilePath string `bson:"file_path" json:"file_path"`
	// OriginalFilename — имя файла, указанное при загрузке.
	OriginalFilename string `bson:"original_filename" json:"original_filename"`
	// ContentType — MIME-тип загруженного файла.
	ContentType string `bson:"content_type" json:"content_type"`
	// Size — размер файла в байтах.
	Size int64 `bson:"size" json:"size"`
	// Checksum — SHA-256 содержимого файла, используется как ETag.
	Checksum string `bson:"checksum" json:"checksum"`
	// UploadedBy — username пользователя, загрузившего файл.
	UploadedBy string `bson:"uploaded_by" json:"uploaded_by"`
	// CreatedAt — время создания записи.
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	// UpdatedAt — время последнего изменения записи.
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
