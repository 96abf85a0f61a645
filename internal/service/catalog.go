// catalog.go — сервис каталога книг: создание, обновление, удаление,
// чтение с LRU-кэшем. Координирует запись книги в MongoDB и файл в
// UPLOAD_DIR так, чтобы запись никогда не ссылалась на недописанный файл.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	apierrors "github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/domain/model"
	"github.com/bigkaa/golibrary/internal/repository"
	"github.com/bigkaa/golibrary/internal/storage/filestore"
)

// CatalogError — ошибка операции каталога с HTTP-кодом.
type CatalogError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// CreateBookParams — параметры создания книги.
type CreateBookParams struct {
	// Title — название книги (обязательно).
	Title string
	// Author — автор книги (обязательно).
	Author string
	// Reader — поток данных файла.
	Reader io.Reader
	// OriginalFilename — имя файла, указанное при загрузке.
	OriginalFilename string
	// ContentType — MIME-тип файла.
	ContentType string
	// Size — заявленный размер файла (из multipart заголовка).
	Size int64
	// UploadedBy — username пользователя (sub из JWT).
	UploadedBy string
}

// UpdateBookParams — параметры обновления книги. Nil-поля не меняются.
type UpdateBookParams struct {
	Title  *string
	Author *string
	// Reader — новый файл (опционально). При замене старый файл
	// удаляется после успешного обновления записи.
	Reader           io.Reader
	OriginalFilename string
	ContentType      string
	Size             int64
	UploadedBy       string
}

// BookPage — страница листинга каталога.
type BookPage struct {
	Items   []*model.Book
	Total   int64
	Limit   int
	Offset  int
	HasMore bool
}

// CatalogService — сервис каталога книг.
type CatalogService struct {
	books       repository.BookRepository
	store       *filestore.FileStore
	cache       *CacheService
	maxFileSize int64
	logger      *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
func NewCatalogService(
	books repository.BookRepository,
	store *filestore.FileStore,
	cache *CacheService,
	maxFileSize int64,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		books:       books,
		store:       store,
		cache:       cache,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "catalog_service")),
	}
}

// List возвращает страницу каталога с сортировкой по названию.
func (s *CatalogService) List(ctx context.Context, limit, offset int) (*BookPage, *CatalogError) {
	items, total, err := s.books.List(ctx, limit, offset)
	if err != nil {
		s.logger.Error("Ошибка листинга каталога", slog.String("error", err.Error()))
		return nil, storageUnavailable()
	}

	return &BookPage{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+limit) < total,
	}, nil
}

// Get возвращает книгу по id, используя LRU-кэш.
func (s *CatalogService) Get(ctx context.Context, bookID string) (*model.Book, *CatalogError) {
	if book, ok := s.cache.Get(bookID); ok {
		return book, nil
	}

	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookNotFound(bookID)
		}
		s.logger.Error("Ошибка чтения книги",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return nil, storageUnavailable()
	}

	s.cache.Set(bookID, book)
	return book, nil
}

// Create создаёт книгу: сначала файл (atomic rename), затем запись.
// При ошибке вставки записи файл удаляется — осиротевших файлов не остаётся,
// запись никогда не ссылается на недописанный файл.
func (s *CatalogService) Create(ctx context.Context, params CreateBookParams) (*model.Book, *CatalogError) {
	if params.Title == "" || params.Author == "" {
		return nil, &CatalogError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Поля title и author обязательны",
		}
	}
	if cerr := s.checkSize(params.Size); cerr != nil {
		return nil, cerr
	}

	saved, err := s.store.SaveFile(params.Reader, params.OriginalFilename, params.UploadedBy)
	if err != nil {
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", params.OriginalFilename),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, &CatalogError{
			StatusCode: 503,
			Code:       apierrors.CodeStorageError,
			Message:    "Ошибка записи файла в хранилище",
		}
	}

	book := &model.Book{
		Title:            params.Title,
		Author:           params.Author,
		FilePath:         saved.StoragePath,
		OriginalFilename: params.OriginalFilename,
		ContentType:      params.ContentType,
		Size:             saved.Size,
		Checksum:         saved.Checksum,
		UploadedBy:       params.UploadedBy,
	}

	if err := s.books.Create(ctx, book); err != nil {
		// Запись не создана — убираем уже сохранённый файл
		if delErr := s.store.DeleteFile(saved.StoragePath); delErr != nil {
			s.logger.Error("Ошибка удаления файла после неудачной вставки",
				slog.String("storage_path", saved.StoragePath),
				slog.String("error", delErr.Error()),
			)
		}
		s.logger.Error("Ошибка создания записи книги", slog.String("error", err.Error()))
		middleware.OperationsTotal.WithLabelValues("create", "error").Inc()
		return nil, storageUnavailable()
	}

	middleware.OperationsTotal.WithLabelValues("create", "success").Inc()
	s.logger.Info("Книга добавлена",
		slog.String("book_id", book.ID.Hex()),
		slog.String("title", book.Title),
		slog.String("uploaded_by", book.UploadedBy),
	)

	return book, nil
}

// Update обновляет метаданные книги и опционально заменяет файл.
// Старый файл удаляется только после успешного обновления записи.
func (s *CatalogService) Update(ctx context.Context, bookID string, params UpdateBookParams) (*model.Book, *CatalogError) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookNotFound(bookID)
		}
		s.logger.Error("Ошибка чтения книги",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return nil, storageUnavailable()
	}

	if params.Title == nil && params.Author == nil && params.Reader == nil {
		return nil, &CatalogError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Необходимо указать хотя бы одно поле для обновления (title, author или file)",
		}
	}

	if params.Title != nil {
		if *params.Title == "" {
			return nil, &CatalogError{
				StatusCode: 400,
				Code:       apierrors.CodeValidationError,
				Message:    "Поле title не может быть пустым",
			}
		}
		book.Title = *params.Title
	}
	if params.Author != nil {
		if *params.Author == "" {
			return nil, &CatalogError{
				StatusCode: 400,
				Code:       apierrors.CodeValidationError,
				Message:    "Поле author не может быть пустым",
			}
		}
		book.Author = *params.Author
	}

	oldPath := ""
	if params.Reader != nil {
		if cerr := s.checkSize(params.Size); cerr != nil {
			return nil, cerr
		}

		saved, err := s.store.SaveFile(params.Reader, params.OriginalFilename, params.UploadedBy)
		if err != nil {
			s.logger.Error("Ошибка сохранения нового файла",
				slog.String("book_id", bookID),
				slog.String("error", err.Error()),
			)
			middleware.OperationsTotal.WithLabelValues("update", "error").Inc()
			return nil, &CatalogError{
				StatusCode: 503,
				Code:       apierrors.CodeStorageError,
				Message:    "Ошибка записи файла в хранилище",
			}
		}

		oldPath = book.FilePath
		book.FilePath = saved.StoragePath
		book.OriginalFilename = params.OriginalFilename
		book.ContentType = params.ContentType
		book.Size = saved.Size
		book.Checksum = saved.Checksum
	}

	if err := s.books.Update(ctx, book); err != nil {
		// Новый файл остался без записи — убираем его, запись не тронута
		if book.FilePath != oldPath && oldPath != "" {
			_ = s.store.DeleteFile(book.FilePath)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, bookNotFound(bookID)
		}
		s.logger.Error("Ошибка обновления записи книги",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("update", "error").Inc()
		return nil, storageUnavailable()
	}

	// Запись обновлена — старый файл больше не нужен
	if oldPath != "" && oldPath != book.FilePath {
		if err := s.store.DeleteFile(oldPath); err != nil {
			// Файл подберёт сборщик осиротевших файлов
			s.logger.Warn("Ошибка удаления старого файла",
				slog.String("storage_path", oldPath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.cache.Delete(bookID)
	middleware.OperationsTotal.WithLabelValues("update", "success").Inc()
	s.logger.Info("Книга обновлена", slog.String("book_id", bookID))

	return book, nil
}

// Delete удаляет запись книги, затем её файл.
// Возвращает NOT_FOUND для несуществующего id.
func (s *CatalogService) Delete(ctx context.Context, bookID string) *CatalogError {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return bookNotFound(bookID)
		}
		s.logger.Error("Ошибка чтения книги",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		return storageUnavailable()
	}

	if err := s.books.Delete(ctx, bookID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return bookNotFound(bookID)
		}
		s.logger.Error("Ошибка удаления записи книги",
			slog.String("book_id", bookID),
			slog.String("error", err.Error()),
		)
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		return storageUnavailable()
	}

	// Запись удалена — файл больше не достижим, убираем его.
	// При ошибке файл подберёт сборщик осиротевших файлов.
	if book.FilePath != "" {
		if err := s.store.DeleteFile(book.FilePath); err != nil {
			s.logger.Warn("Ошибка удаления файла книги",
				slog.String("book_id", bookID),
				slog.String("storage_path", book.FilePath),
				slog.String("error", err.Error()),
			)
		}
	}

	s.cache.Delete(bookID)
	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Книга удалена",
		slog.String("book_id", bookID),
		slog.String("title", book.Title),
	)

	return nil
}

// checkSize проверяет заявленный размер файла против лимита.
func (s *CatalogService) checkSize(size int64) *CatalogError {
	if size > s.maxFileSize {
		return &CatalogError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", size, s.maxFileSize),
		}
	}
	return nil
}

// bookNotFound — 404 для отсутствующей книги.
func bookNotFound(bookID string) *CatalogError {
	return &CatalogError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Книга %s не найдена", bookID),
	}
}

// storageUnavailable — 503 при недоступности базы данных.
func storageUnavailable() *CatalogError {
	return &CatalogError{
		StatusCode: 503,
		Code:       apierrors.CodeStorageError,
		Message:    "База данных недоступна",
	}
}
