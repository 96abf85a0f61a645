// gc.go — сервис фоновой очистки осиротевших файлов.
//
// Осиротевший файл — файл в UPLOAD_DIR, на который не ссылается ни одна
// запись книги: остаток от сбоя между записью файла и вставкой записи,
// либо от неудачного удаления файла при delete/update.
//
// Запускается как горутина с периодическим тикером (LM_GC_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/golibrary/internal/repository"
	"github.com/bigkaa/golibrary/internal/storage/filestore"
)

// Prometheus метрики GC
var (
	// gcRunsTotal — количество запусков GC.
	gcRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_gc_runs_total",
		Help: "Общее количество запусков очистки осиротевших файлов",
	})

	// gcFilesDeletedTotal — количество удалённых осиротевших файлов.
	gcFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_gc_files_deleted_total",
		Help: "Общее количество осиротевших файлов, удалённых GC",
	})

	// gcDurationSeconds — длительность выполнения GC.
	gcDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lm_gc_duration_seconds",
		Help:    "Длительность выполнения очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Файлы моложе orphanGracePeriod не трогаем: загрузка могла ещё
// не закончиться вставкой записи книги.
const orphanGracePeriod = 15 * time.Minute

// GCResult — результат одного запуска GC.
type GCResult struct {
	// ScannedCount — количество просмотренных файлов
	ScannedCount int
	// DeletedCount — количество удалённых осиротевших файлов
	DeletedCount int
	// Errors — количество ошибок при обработке файлов
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// GCService — сервис фоновой очистки осиротевших файлов.
type GCService struct {
	store    *filestore.FileStore
	books    repository.BookRepository
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
}

// NewGCService создаёт сервис GC.
func NewGCService(
	store *filestore.FileStore,
	books repository.BookRepository,
	interval time.Duration,
	logger *slog.Logger,
) *GCService {
	return &GCService{
		store:    store,
		books:    books,
		interval: interval,
		logger:   logger.With(slog.String("component", "gc")),
	}
}

// Start запускает фоновую горутину GC с периодическим тикером.
// Вызывается один раз при старте приложения.
func (gc *GCService) Start(ctx context.Context) {
	gcCtx, cancel := context.WithCancel(ctx)
	gc.cancel = cancel

	go gc.run(gcCtx)

	gc.logger.Info("GC запущен",
		slog.String("interval", gc.interval.String()),
	)
}

// Stop останавливает фоновый процесс GC.
func (gc *GCService) Stop() {
	if gc.cancel != nil {
		gc.cancel()
	}
	gc.logger.Info("GC остановлен")
}

// run — основной цикл фоновой горутины.
func (gc *GCService) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	gc.RunOnce(ctx)

	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			gc.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Порядок обработки:
//  1. Снимок file_path всех книг из MongoDB
//  2. Листинг файлов в UPLOAD_DIR
//  3. Удаление файлов без ссылки (с учётом grace-периода)
func (gc *GCService) RunOnce(ctx context.Context) *GCResult {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	start := time.Now()
	result := &GCResult{}

	gc.logger.Debug("GC запуск начат")

	referenced, err := gc.books.ListFilePaths(ctx)
	if err != nil {
		// База недоступна — ничего не удаляем, попробуем в следующий раз
		gc.logger.Error("GC: ошибка получения file_path из базы",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	refSet := make(map[string]struct{}, len(referenced))
	for _, p := range referenced {
		refSet[p] = struct{}{}
	}

	files, err := gc.store.ListFiles()
	if err != nil {
		gc.logger.Error("GC: ошибка листинга директории загрузок",
			slog.String("error", err.Error()),
		)
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	now := time.Now()
	for _, name := range files {
		result.ScannedCount++

		if _, ok := refSet[name]; ok {
			continue
		}

		// Свежие файлы (включая .tmp незавершённых загрузок) пропускаем
		modTime, err := gc.store.FileModTime(name)
		if err != nil {
			result.Errors++
			continue
		}
		if now.Sub(modTime) < orphanGracePeriod {
			continue
		}

		if err := gc.store.DeleteFile(name); err != nil {
			gc.logger.Error("GC: ошибка удаления осиротевшего файла",
				slog.String("storage_path", name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		gc.logger.Debug("GC: осиротевший файл удалён",
			slog.String("storage_path", name),
			slog.Bool("tmp", strings.HasSuffix(name, ".tmp")),
		)
		result.DeletedCount++
	}

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	gcRunsTotal.Inc()
	gcFilesDeletedTotal.Add(float64(result.DeletedCount))
	gcDurationSeconds.Observe(result.Duration.Seconds())

	gc.logger.Info("GC завершён",
		slog.Int("scanned", result.ScannedCount),
		slog.Int("deleted", result.DeletedCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
