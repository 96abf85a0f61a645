// books.go — HTTP handlers каталога книг.
// List, Get, Create, Update, Delete, Download.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/domain/model"
	"github.com/bigkaa/golibrary/internal/service"
)

// multipartMemoryLimit — буфер парсинга multipart form в памяти,
// остальное уходит во временные файлы.
const multipartMemoryLimit = 32 << 20 // 32 MB

// BooksHandler — обработчик endpoints каталога книг.
type BooksHandler struct {
	catalog     *service.CatalogService
	downloadSvc *service.DownloadService
}

// NewBooksHandler создаёт обработчик endpoints каталога.
func NewBooksHandler(catalog *service.CatalogService, downloadSvc *service.DownloadService) *BooksHandler {
	return &BooksHandler{
		catalog:     catalog,
		downloadSvc: downloadSvc,
	}
}

// bookListResponse — тело ответа листинга каталога.
type bookListResponse struct {
	Items   []*model.Book `json:"items"`
	Total   int64         `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
}

// ListBooks обрабатывает GET /api/v1/books.
// Пагинация: limit (1-1000, по умолчанию 50), offset (по умолчанию 0).
func (h *BooksHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
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

	page, cerr := h.catalog.List(r.Context(), limit, offset)
	if cerr != nil {
		errors.WriteError(w, cerr.StatusCode, cerr.Code, cerr.Message)
		return
	}

	resp := bookListResponse{
		Items:   page.Items,
		Total:   page.Total,
		Limit:   page.Limit,
		Offset:  page.Offset,
		HasMore: page.HasMore,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetBook обрабатывает GET /api/v1/books/{book_id}.
func (h *BooksHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")

	book, cerr := h.catalog.Get(r.Context(), bookID)
	if cerr != nil {
		errors.WriteError(w, cerr.StatusCode, cerr.Code, cerr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(book)
}

// CreateBook обрабатывает POST /api/v1/books. Только Admin.
// Multipart form: title (обязательно), author (обязательно), file (обязательно).
func (h *BooksHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	username := middleware.UsernameFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errors.ValidationError(w, "Поле 'file' обязательно")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	book, cerr := h.catalog.Create(r.Context(), service.CreateBookParams{
		Title:            r.FormValue("title"),
		Author:           r.FormValue("author"),
		Reader:           file,
		OriginalFilename: header.Filename,
		ContentType:      contentType,
		Size:             header.Size,
		UploadedBy:       username,
	})
	if cerr != nil {
		errors.WriteError(w, cerr.StatusCode, cerr.Code, cerr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(book)
}

// UpdateBook обрабатывает PUT /api/v1/books/{book_id}. Только Admin.
// Multipart form, все поля опциональны: title, author, file.
func (h *BooksHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")
	username := middleware.UsernameFromContext(r.Context())

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга multipart: %s", err.Error()))
		return
	}

	params := service.UpdateBookParams{UploadedBy: username}

	if r.Form.Has("title") {
		title := r.FormValue("title")
		params.Title = &title
	}
	if r.Form.Has("author") {
		author := r.FormValue("author")
		params.Author = &author
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		params.Reader = file
		params.OriginalFilename = header.Filename
		params.ContentType = contentType
		params.Size = header.Size
	}

	book, cerr := h.catalog.Update(r.Context(), bookID, params)
	if cerr != nil {
		errors.WriteError(w, cerr.StatusCode, cerr.Code, cerr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(book)
}

// DeleteBook обрабатывает DELETE /api/v1/books/{book_id}. Только Admin.
func (h *BooksHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")

	if cerr := h.catalog.Delete(r.Context(), bookID); cerr != nil {
		errors.WriteError(w, cerr.StatusCode, cerr.Code, cerr.Message)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DownloadBook обрабатывает GET /api/v1/books/{book_id}/download.
func (h *BooksHandler) DownloadBook(w http.ResponseWriter, r *http.Request) {
	bookID := chi.URLParam(r, "book_id")

	if derr := h.downloadSvc.Serve(w, r, bookID); derr != nil {
		errors.WriteError(w, derr.StatusCode, derr.Code, derr.Message)
	}
}
