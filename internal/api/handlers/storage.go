// storage.go — обработчик GET /api/v1/storage/info (состояние хранилища).
// Только Admin: ёмкость диска под UPLOAD_DIR и количество книг.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/repository"
)

// DiskUsageFn возвращает total, used, available байт для директории загрузок.
// Платформозависимая реализация передаётся из main.
type DiskUsageFn func() (total, used, available int64, err error)

// StorageHandler — обработчик endpoint состояния хранилища.
type StorageHandler struct {
	books     repository.BookRepository
	uploadDir string
	diskUsage DiskUsageFn
	logger    *slog.Logger
}

// NewStorageHandler создаёт обработчик состояния хранилища.
func NewStorageHandler(books repository.BookRepository, uploadDir string, diskUsage DiskUsageFn, logger *slog.Logger) *StorageHandler {
	return &StorageHandler{
		books:     books,
		uploadDir: uploadDir,
		diskUsage: diskUsage,
		logger:    logger.With(slog.String("component", "storage_handler")),
	}
}

// storageInfoResponse — тело ответа GET /api/v1/storage/info.
type storageInfoResponse struct {
	UploadDir      string `json:"upload_dir"`
	BooksTotal     int64  `json:"books_total"`
	TotalBytes     int64  `json:"total_bytes"`
	UsedBytes      int64  `json:"used_bytes"`
	AvailableBytes int64  `json:"available_bytes"`
}

// GetStorageInfo обрабатывает GET /api/v1/storage/info.
func (h *StorageHandler) GetStorageInfo(w http.ResponseWriter, r *http.Request) {
	booksTotal, err := h.books.Count(r.Context())
	if err != nil {
		h.logger.Error("Ошибка подсчёта книг", slog.String("error", err.Error()))
		errors.StorageError(w, "База данных недоступна")
		return
	}

	total, used, available, err := h.diskUsage()
	if err != nil {
		h.logger.Error("Ошибка получения ёмкости диска", slog.String("error", err.Error()))
		errors.InternalError(w, "Ошибка получения ёмкости диска")
		return
	}

	resp := storageInfoResponse{
		UploadDir:      h.uploadDir,
		BooksTotal:     booksTotal,
		TotalBytes:     total,
		UsedBytes:      used,
		AvailableBytes: available,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}
