// cache.go — LRU-кэш метаданных книг с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/golibrary/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш метаданных книг.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша метаданных книг.",
	})
)

// CacheService — LRU-кэш метаданных книг с автоматическим TTL.
// Снижает нагрузку на MongoDB при повторных GET и скачиваниях.
type CacheService struct {
	cache *expirable.LRU[string, *model.Book]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.Book](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает книгу из кэша по id.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(bookID string) (*model.Book, bool) {
	val, ok := c.cache.Get(bookID)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(bookID string, book *model.Book) {
	c.cache.Add(bookID, book)
}

// Delete удаляет запись из кэша (инвалидация при update/delete).
func (c *CacheService) Delete(bookID string) {
	c.cache.Remove(bookID)
}
