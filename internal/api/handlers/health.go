// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/golibrary/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// uploadDir — путь к директории загрузок (для проверки FS)
	uploadDir string
	// pingDB — проверка доступности MongoDB
	pingDB func(ctx context.Context) error
}

// NewHealthHandler создаёт обработчик health endpoints.
// pingDB — функция проверки базы (nil допустим в тестах: база считается живой).
func NewHealthHandler(uploadDir string, pingDB func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		uploadDir: uploadDir,
		pingDB:    pingDB,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "library-module",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: доступность MongoDB, запись в директорию загрузок.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	dbCheck := h.checkDatabase(r.Context())
	if dbCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	fsCheck := h.checkFilesystem()
	if fsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "library-module",
		"checks": map[string]any{
			"database":   dbCheck,
			"filesystem": fsCheck,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkDatabase проверяет доступность MongoDB через ping.
func (h *HealthHandler) checkDatabase(ctx context.Context) map[string]string {
	if h.pingDB == nil {
		return map[string]string{"status": "ok"}
	}
	if err := h.pingDB(ctx); err != nil {
		return map[string]string{"status": statusFail, "error": err.Error()}
	}
	return map[string]string{"status": "ok"}
}

// checkFilesystem проверяет возможность записи в директорию загрузок.
func (h *HealthHandler) checkFilesystem() map[string]string {
	probe := filepath.Join(h.uploadDir, ".health-probe")

	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return map[string]string{"status": statusFail, "error": err.Error()}
	}
	_ = os.Remove(probe)

	return map[string]string{"status": "ok"}
}
