package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.HealthLive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status: ожидалось ok, получено %v", resp["status"])
	}
	if resp["service"] != "library-module" {
		t.Errorf("service: получено %v", resp["service"])
	}
}

func TestHealthReady_OK(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), func(_ context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHealthReady_DatabaseDown(t *testing.T) {
	h := NewHealthHandler(t.TempDir(), func(_ context.Context) error {
		return fmt.Errorf("имитация недоступности базы")
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ожидался статус 503, получен %d", rec.Code)
	}

	var resp struct {
		Status string `json:"status"`
		Checks map[string]map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.Status != "fail" {
		t.Errorf("status: ожидалось fail, получено %s", resp.Status)
	}
	if resp.Checks["database"]["status"] != "fail" {
		t.Errorf("check database: ожидалось fail, получено %v", resp.Checks["database"])
	}
	if resp.Checks["filesystem"]["status"] != "ok" {
		t.Errorf("check filesystem: ожидалось ok, получено %v", resp.Checks["filesystem"])
	}
}

func TestHealthReady_FilesystemDown(t *testing.T) {
	// Несуществующая директория — запись probe-файла невозможна
	h := NewHealthHandler("/nonexistent/upload/dir", func(_ context.Context) error { return nil })

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ожидался статус 503, получен %d", rec.Code)
	}
}

func TestGetStorageInfo(t *testing.T) {
	books := newFakeBookRepo()
	dir := t.TempDir()

	h := NewStorageHandler(books, dir, func() (int64, int64, int64, error) {
		return 1000, 400, 600, nil
	}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storage/info", nil)
	rec := httptest.NewRecorder()
	h.GetStorageInfo(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ожидался статус 200, получен %d", rec.Code)
	}

	var resp struct {
		UploadDir      string `json:"upload_dir"`
		BooksTotal     int64  `json:"books_total"`
		TotalBytes     int64  `json:"total_bytes"`
		AvailableBytes int64  `json:"available_bytes"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("ошибка декодирования ответа: %v", err)
	}
	if resp.UploadDir != dir {
		t.Errorf("upload_dir: ожидалось %s, получено %s", dir, resp.UploadDir)
	}
	if resp.TotalBytes != 1000 || resp.AvailableBytes != 600 {
		t.Errorf("ёмкость диска: %+v", resp)
	}
}
