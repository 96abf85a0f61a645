// download.go — сервис скачивания файлов книг.
package service

import (
	"fmt"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/storage/filestore"
)

// DownloadService — сервис скачивания файлов книг.
type DownloadService struct {
	catalog *CatalogService
	store   *filestore.FileStore
	logger  *slog.Logger
}

// NewDownloadService создаёт сервис скачивания.
func NewDownloadService(catalog *CatalogService, store *filestore.FileStore, logger *slog.Logger) *DownloadService {
	return &DownloadService{
		catalog: catalog,
		store:   store,
		logger:  logger.With(slog.String("component", "download_service")),
	}
}

// DownloadError — ошибка скачивания с HTTP-кодом.
type DownloadError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Serve отдаёт файл книги клиенту через http.ServeContent.
// Поддерживает Range requests (206) и ETag (If-None-Match → 304).
// Запись с висящей ссылкой file_path (файл удалён независимо) —
// это 404, а не ошибка сервера.
func (s *DownloadService) Serve(w http.ResponseWriter, r *http.Request, bookID string) *DownloadError {
	// 1. Ищем запись книги (через кэш каталога)
	book, cerr := s.catalog.Get(r.Context(), bookID)
	if cerr != nil {
		return &DownloadError{
			StatusCode: cerr.StatusCode,
			Code:       cerr.Code,
			Message:    cerr.Message,
		}
	}

	// 2. Открываем файл
	file, err := s.store.ReadFile(book.FilePath)
	if err != nil {
		s.logger.Error("Файл книги не найден на диске",
			slog.String("book_id", bookID),
			slog.String("storage_path", book.FilePath),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: 404,
			Code:       apierrors.CodeNotFound,
			Message:    fmt.Sprintf("Файл книги %s не найден", bookID),
		}
	}
	defer file.Close()

	// 3. Получаем информацию о файле для http.ServeContent
	stat, err := file.Stat()
	if err != nil {
		s.logger.Error("Ошибка получения stat файла",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return &DownloadError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Ошибка чтения файла",
		}
	}

	// 4. Устанавливаем заголовки. X-Book-Title и X-Book-Author —
	// метаданные книги для клиентов, скачивающих без отдельного GET.
	contentType := book.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.OriginalFilename))
	w.Header().Set("X-Book-Title", book.Title)
	w.Header().Set("X-Book-Author", book.Author)
	w.Header().Set("ETag", fmt.Sprintf("%q", book.Checksum))
	w.Header().Set("Accept-Ranges", "bytes")

	// 5. http.ServeContent автоматически обрабатывает:
	//    - Range requests (206 Partial Content)
	//    - If-None-Match (304 Not Modified через ETag)
	//    - If-Modified-Since
	//    - Content-Length
	http.ServeContent(w, r, book.OriginalFilename, stat.ModTime(), file)

	// 6. Метрики
	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()

	s.logger.Debug("Файл книги скачан",
		slog.String("book_id", bookID),
		slog.String("filename", book.OriginalFilename),
		slog.Int64("size", book.Size),
	)

	return nil
}
