// cache.go — LRU-кэш записей файлов с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cumulus/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cumulus_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cumulus_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей файлов.",
	})
)

// RecordCache — LRU-кэш записей файлов по ключу с автоматическим TTL.
// Каждый экземпляр Cumulus имеет собственный in-memory кэш.
type RecordCache struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewRecordCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewRecordCache(maxSize int, ttl time.Duration) *RecordCache {
	cache := expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl)
	return &RecordCache{cache: cache}
}

// Get возвращает запись из кэша по ключу файла.
// Обновляет Prometheus-метрики hit/miss.
func (c *RecordCache) Get(fkey string) (*model.FileRecord, bool) {
	val, ok := c.cache.Get(fkey)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *RecordCache) Set(fkey string, record *model.FileRecord) {
	c.cache.Add(fkey, record)
}

// Delete удаляет запись из кэша (инвалидация при изменении или удалении).
func (c *RecordCache) Delete(fkey string) {
	c.cache.Remove(fkey)
}
