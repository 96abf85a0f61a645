// Пакет config — загрузка и валидация конфигурации библиотечного
// сервиса из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Хост HTTP-сервера
	Host string
	// Порт HTTP-сервера
	Port int
	// Ключ подписи сессионных токенов (HS256)
	SecretKey string
	// Строка подключения к MongoDB
	MongoURI string
	// Имя базы данных
	DBName string
	// Путь к директории хранения загруженных файлов
	UploadDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Время жизни сессионного токена
	TokenTTL time.Duration
	// Интервал фоновой очистки осиротевших файлов
	GCInterval time.Duration
	// Максимальное количество записей в LRU-кэше книг
	CacheSize int
	// TTL записи в LRU-кэше книг
	CacheTTL time.Duration
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Имя начального администратора (создаётся при пустой коллекции users)
	BootstrapAdminUsername string
	// Пароль начального администратора
	BootstrapAdminPassword string
}

// Addr возвращает адрес прослушивания HTTP-сервера.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// SECRET_KEY — обязательный, ключ подписи токенов
	cfg.SecretKey, err = getEnvRequired("SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// MONGO_URI — строка подключения к MongoDB
	cfg.MongoURI = getEnvDefault("MONGO_URI", "mongodb://localhost:27017")

	// UPLOAD_DIR — обязательный, директория хранения файлов
	cfg.UploadDir, err = getEnvRequired("UPLOAD_DIR")
	if err != nil {
		return nil, err
	}

	// LM_DB_NAME — имя базы данных (по умолчанию "library")
	cfg.DBName = getEnvDefault("LM_DB_NAME", "library")

	// LM_HOST — хост HTTP-сервера (по умолчанию "localhost")
	cfg.Host = getEnvDefault("LM_HOST", "localhost")

	// LM_PORT — порт HTTP-сервера (по умолчанию 8000)
	port, err := getEnvInt("LM_PORT", 8000)
	if err != nil {
		return nil, fmt.Errorf("LM_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("LM_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// LM_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	maxFileSize, err := getEnvInt64("LM_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("LM_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("LM_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// LM_TOKEN_TTL — время жизни токена (по умолчанию 7 суток,
	// как у сессионного cookie оригинального сервиса)
	cfg.TokenTTL, err = getEnvDuration("LM_TOKEN_TTL", 168*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LM_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("LM_TOKEN_TTL: значение должно быть положительным")
	}

	// LM_GC_INTERVAL — интервал очистки осиротевших файлов (по умолчанию 1h)
	cfg.GCInterval, err = getEnvDuration("LM_GC_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("LM_GC_INTERVAL: %w", err)
	}

	// LM_CACHE_SIZE — размер LRU-кэша книг (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("LM_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("LM_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("LM_CACHE_SIZE: значение должно быть положительным")
	}

	// LM_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("LM_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("LM_CACHE_TTL: %w", err)
	}

	// LM_LOG_LEVEL — уровень логирования (по умолчанию info)
	levelStr := getEnvDefault("LM_LOG_LEVEL", "info")
	level, err := parseLogLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("LM_LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	// LM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("LM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("LM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// LM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 10s)
	cfg.ShutdownTimeout, err = getEnvDuration("LM_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("LM_SHUTDOWN_TIMEOUT: %w", err)
	}

	// LM_BOOTSTRAP_ADMIN_USERNAME / LM_BOOTSTRAP_ADMIN_PASSWORD —
	// начальный администратор, создаётся только при пустой коллекции users
	cfg.BootstrapAdminUsername = getEnvDefault("LM_BOOTSTRAP_ADMIN_USERNAME", "")
	cfg.BootstrapAdminPassword = getEnvDefault("LM_BOOTSTRAP_ADMIN_PASSWORD", "")
	if cfg.BootstrapAdminUsername != "" && cfg.BootstrapAdminPassword == "" {
		return nil, fmt.Errorf("LM_BOOTSTRAP_ADMIN_PASSWORD: обязателен при заданном LM_BOOTSTRAP_ADMIN_USERNAME")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
