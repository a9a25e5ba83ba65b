// Пакет service — бизнес-логика Upload Module.
// resultcache.go — LRU-кэш результатов финализации с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Повторный Complete обязан возвращать тот же результат, что и первый,
// даже после того, как сессия вычищена из реестра. Кэш хранит
// результат по upload_id отдельно от жизни сессии.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/model"
)

// Prometheus-метрики кэша результатов.
var (
	resultCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "um_result_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш результатов финализации.",
	})
	resultCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "um_result_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша результатов финализации.",
	})
)

// ResultCache — LRU-кэш результатов финализации с автоматическим TTL.
// Каждый экземпляр UM имеет собственный in-memory кэш.
type ResultCache struct {
	cache *expirable.LRU[string, *model.CompletedResult]
}

// NewResultCache создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewResultCache(maxSize int, ttl time.Duration) *ResultCache {
	cache := expirable.NewLRU[string, *model.CompletedResult](maxSize, nil, ttl)
	return &ResultCache{cache: cache}
}

// Get возвращает результат финализации из кэша по uploadID.
// Возвращает (результат, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *ResultCache) Get(uploadID string) (*model.CompletedResult, bool) {
	val, ok := c.cache.Get(uploadID)
	if ok {
		resultCacheHitsTotal.Inc()
		return val, true
	}
	resultCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет результат финализации в кэш.
func (c *ResultCache) Set(uploadID string, result *model.CompletedResult) {
	c.cache.Add(uploadID, result)
}

// Delete удаляет запись из кэша.
func (c *ResultCache) Delete(uploadID string) {
	c.cache.Remove(uploadID)
}
