package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	apierrors "github.com/bigkaa/golibrary/internal/api/errors"
	"github.com/bigkaa/golibrary/internal/api/middleware"
	"github.com/bigkaa/golibrary/internal/domain/model"
	"github.com/bigkaa/golibrary/internal/repository"
	"github.com/bigkaa/golibrary/internal/service"
	"github.com/bigkaa/golibrary/internal/storage/filestore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- In-memory фейки репозиториев ---

type fakeUserRepo struct {
	users map[string]*model.User // username → user
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if _, ok := r.users[user.Username]; ok {
		return repository.ErrConflict
	}
	user.ID = primitive.NewObjectID()
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range r.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) List(_ context.Context, _, _ int) ([]*model.User, int64, error) {
	var out []*model.User
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	for name, u := range r.users {
		if u.ID.Hex() == id {
			delete(r.users, name)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeUserRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.users)), nil
}

type fakeBookRepo struct {
	books map[string]*model.Book
}

func newFakeBookRepo() *fakeBookRepo {
	return &fakeBookRepo{books: make(map[string]*model.Book)}
}

func (r *fakeBookRepo) Create(_ context.Context, book *model.Book) error {
	book.ID = primitive.NewObjectID()
	r.books[book.ID.Hex()] = book
	return nil
}

func (r *fakeBookRepo) GetByID(_ context.Context, id string) (*model.Book, error) {
	b, ok := r.books[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return b, nil
}

func (r *fakeBookRepo) List(_ context.Context, limit, offset int) ([]*model.Book, int64, error) {
	var all []*model.Book
	for _, b := range r.books {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeBookRepo) Update(_ context.Context, book *model.Book) error {
	if _, ok := r.books[book.ID.Hex()]; !ok {
		return repository.ErrNotFound
	}
	r.books[book.ID.Hex()] = book
	return nil
}

func (r *fakeBookRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.books[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.books, id)
	return nil
}

func (r *fakeBookRepo) ListFilePaths(_ context.Context) ([]string, error) {
	var paths []string
	for _, b := range r.books {
		paths = append(paths, b.FilePath)
	}
	return paths, nil
}

func (r *fakeBookRepo) Count(_ context.Context) (int64, error) {
	return int64(len(r.books)), nil
}

// --- Тестовое окружение ---

// testEnv — собранный router с фейковыми репозиториями.
type testEnv struct {
	router *chi.Mux
	users  *fakeUserRepo
	books  *fakeBookRepo
	tokens *middleware.TokenAuth
}

// newTestEnv строит router с маршрутами и ролевой защитой как в приложении.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newFakeUserRepo()
	books := newFakeBookRepo()
	logger := testLogger()

	store, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	tokens := middleware.NewTokenAuth("test-secret", time.Hour, logger)
	authSvc := service.NewAuthService(users, tokens, logger)
	cache := service.NewCacheService(100, time.Minute)
	catalog := service.NewCatalogService(books, store, cache, 1<<20, logger)
	download := service.NewDownloadService(catalog, store, logger)

	authH := NewAuthHandler(authSvc)
	booksH := NewBooksHandler(catalog, download)
	usersH := NewUsersHandler(users, logger)

	router := chi.NewRouter()
	router.Post("/api/v1/auth/login", authH.Login)
	router.Post("/api/v1/auth/logout", authH.Logout)

	router.Route("/api/v1/books", func(r chi.Router) {
		r.Use(tokens.Middleware())
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleMember))
			r.Get("/", booksH.ListBooks)
			r.Get("/{book_id}", booksH.GetBook)
			r.Get("/{book_id}/download", booksH.DownloadBook)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(model.RoleAdmin))
			r.Post("/", booksH.CreateBook)
			r.Put("/{book_id}", booksH.UpdateBook)
			r.Delete("/{book_id}", booksH.DeleteBook)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(tokens.Middleware())
		r.Use(middleware.RequireRole(model.RoleAdmin))
		r.Route("/api/v1/users", func(r chi.Router) {
			r.Get("/", usersH.ListUsers)
			r.Post("/", usersH.CreateUser)
			r.Get("/{user_id}", usersH.GetUser)
			r.Put("/{user_id}", usersH.UpdateUser)
			r.Delete("/{user_id}", usersH.DeleteUser)
		})
	})

	return &testEnv{router: router, users: users, books: books, tokens: tokens}
}

// seedUser добавляет пользователя с bcrypt-хэшем пароля.
func (e *testEnv) seedUser(t *testing.T, username, password, role string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("ошибка хэширования пароля: %v", err)
	}
	u := &model.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	e.users.users[username] = u
	return u
}

// tokenFor выпускает токен для пользователя.
func (e *testEnv) tokenFor(t *testing.T, username, role string) string {
	t.Helper()
	token, _, err := e.tokens.IssueToken(username, role)
	if err != nil {
		t.Fatalf("ошибка выпуска токена: %v", err)
	}
	return token
}

// do выполняет запрос через router и возвращает recorder.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeErrorCode извлекает машиночитаемый код из тела ошибки.
func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("ошибка декодирования тела ошибки: %v", err)
	}
	return envelope.Error.Code
}

// multipartBody строит multipart form с полями и файлом.
func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("ошибка записи поля %s: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("ошибка создания form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("ошибка записи файла: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("ошибка закрытия multipart writer: %v", err)
	}
	return body, mw.FormDataContentType()
}

// --- Аутентификация ---

func TestLoginEndpoint_Success(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "User_Admin", "User_Admin", model.RoleAdmin)

	body := bytes.NewBufferString(`{"username":"User_Admin","password":"User_Admin"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token    string `json:"token"`
		Username string `json:"username"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.Token == "" {
		t.Error("пустой токен в ответе")
	}
	if resp.Role != model.RoleAdmin {
		t.Errorf("role: ожидалось Admin, получено %s", resp.Role)
	}

	// Cookie library_session установлен и HttpOnly
	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("cookie library_session не установлен")
	}
	if !sessionCookie.HttpOnly {
		t.Error("cookie должен быть HttpOnly")
	}
	if sessionCookie.Value != resp.Token {
		t.Error("значение cookie не совпадает с токеном из ответа")
	}
}

func TestLoginEndpoint_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "User_Admin", "User_Admin", model.RoleAdmin)

	body := bytes.NewBufferString(`{"username":"User_Admin","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", body)
	rec := env.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался статус 401, получен %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != apierrors.CodeUnauthorized {
		t.Errorf("код ошибки: ожидалось UNAUTHORIZED, получено %s", code)
	}
}

func TestLogoutEndpoint_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rec := env.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge >= 0 {
			t.Error("cookie должен быть погашен (MaxAge < 0)")
		}
	}
}

// --- Ролевая защита ---

func TestBooks_Unauthenticated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books", nil)
	rec := env.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("ожидался статус 401, получен %d", rec.Code)
	}
}

func TestCreateBook_MemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "reader", model.RoleMember)

	body, contentType := multipartBody(t,
		map[string]string{"title": "Книга", "author": "Автор"},
		"book.pdf", []byte("текст"),
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("ожидался статус 403, получен %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != apierrors.CodeForbidden {
		t.Errorf("код ошибки: ожидалось FORBIDDEN, получено %s", code)
	}
}

func TestUsers_MemberForbidden(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "reader", model.RoleMember)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("ожидался статус 403, получен %d", rec.Code)
	}
}

// --- Каталог: полный цикл ---

func TestBooks_CRUDFlow(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.tokenFor(t, "User_Admin", model.RoleAdmin)
	memberToken := env.tokenFor(t, "reader", model.RoleMember)

	// Создание книги администратором
	content := []byte("содержимое загруженного файла")
	body, contentType := multipartBody(t,
		map[string]string{"title": "Война и мир", "author": "Лев Толстой"},
		"voyna-i-mir.pdf", content,
	)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/books", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := env.do(req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("ожидался статус 201, получен %d: %s", rec.Code, rec.Body.String())
	}

	var created model.Book
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if created.UploadedBy != "User_Admin" {
		t.Errorf("uploaded_by: ожидалось User_Admin, получено %s", created.UploadedBy)
	}

	// Member читает книгу
	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/"+created.ID.Hex(), nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec = env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET книги: ожидался статус 200, получен %d", rec.Code)
	}

	// Member скачивает файл
	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/"+created.ID.Hex()+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec = env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("скачивание: ожидался статус 200, получен %d", rec.Code)
	}
	downloaded, _ := io.ReadAll(rec.Body)
	if !bytes.Equal(downloaded, content) {
		t.Error("скачанное содержимое не совпадает с загруженным")
	}
	if got := rec.Header().Get("X-Book-Title"); got != "Война и мир" {
		t.Errorf("X-Book-Title: получено %q", got)
	}

	// Удаление книги администратором
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/books/"+created.ID.Hex(), nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = env.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("удаление: ожидался статус 204, получен %d", rec.Code)
	}

	// Повторный GET — 404
	req = httptest.NewRequest(http.MethodGet, "/api/v1/books/"+created.ID.Hex(), nil)
	req.Header.Set("Authorization", "Bearer "+memberToken)
	rec = env.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("после удаления: ожидался статус 404, получен %d", rec.Code)
	}
}

func TestListBooks_InvalidLimit(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "reader", model.RoleMember)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/books?limit=9999", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
}

// --- Пользователи ---

func TestCreateUser_InvalidRole(t *testing.T) {
	env := newTestEnv(t)
	token := env.tokenFor(t, "User_Admin", model.RoleAdmin)

	body := bytes.NewBufferString(`{"username":"new","password":"pass","role":"Superuser"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ожидался статус 400, получен %d", rec.Code)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "existing", "pass", model.RoleMember)
	token := env.tokenFor(t, "User_Admin", model.RoleAdmin)

	body := bytes.NewBufferString(`{"username":"existing","password":"pass","role":"Member"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users", body)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("ожидался статус 409, получен %d", rec.Code)
	}
}

func TestDeleteUser_Self(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "User_Admin", "User_Admin", model.RoleAdmin)
	token := env.tokenFor(t, "User_Admin", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/"+admin.ID.Hex(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("удаление себя: ожидался статус 409, получен %d", rec.Code)
	}
	if _, err := env.users.GetByUsername(context.Background(), "User_Admin"); err != nil {
		t.Error("учётная запись не должна быть удалена")
	}
}

func TestDeleteUser_Other(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "User_Admin", "User_Admin", model.RoleAdmin)
	reader := env.seedUser(t, "reader", "pass", model.RoleMember)
	token := env.tokenFor(t, "User_Admin", model.RoleAdmin)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/"+reader.ID.Hex(), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := env.do(req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("ожидался статус 204, получен %d", rec.Code)
	}
	if _, err := env.users.GetByUsername(context.Background(), "reader"); err == nil {
		t.Error("пользователь должен быть удалён")
	}
}
