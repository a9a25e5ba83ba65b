// reaper.go — сервис фоновой очистки заброшенных сессий загрузки.
//
// Reaper выполняет три задачи:
//  1. Отменяет сессии, неактивные дольше TTL (staging-файл + манифест + реестр)
//  2. Вычищает из реестра терминальные сессии (completed остаётся в кэше результатов)
//  3. Удаляет осиротевшие staging-файлы без сессии в реестре
//
// Запускается как горутина с периодическим тикером (UM_REAPER_INTERVAL).
package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/govideolab/upload-module/internal/api/middleware"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/model"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/state"
	"github.com/bigkaa/govideolab/upload-module/internal/registry"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/chunkstore"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/manifest"
)

// Prometheus метрики reaper
var (
	// reaperRunsTotal — количество запусков reaper.
	reaperRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "um_reaper_runs_total",
		Help: "Общее количество запусков reaper",
	})

	// reaperDurationSeconds — длительность выполнения reaper.
	reaperDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "um_reaper_duration_seconds",
		Help:    "Длительность выполнения reaper в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// ReaperResult — результат одного запуска reaper.
type ReaperResult struct {
	// ExpiredCount — количество сессий, отменённых по TTL
	ExpiredCount int
	// PurgedCount — количество вычищенных терминальных сессий
	PurgedCount int
	// OrphanCount — количество удалённых осиротевших staging-файлов
	OrphanCount int
	// Errors — количество ошибок при обработке
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// Reaper — сервис фоновой очистки сессий.
type Reaper struct {
	reg      *registry.Registry
	store    *chunkstore.ChunkStore
	ttl      time.Duration
	interval time.Duration
	events   EventSink
	logger   *slog.Logger

	mu      sync.Mutex // защита от параллельного запуска RunOnce
	running bool       // флаг работы фонового процесса
	cancel  context.CancelFunc
}

// NewReaper создаёт сервис очистки.
// events может быть nil — события не публикуются.
func NewReaper(
	reg *registry.Registry,
	store *chunkstore.ChunkStore,
	ttl time.Duration,
	interval time.Duration,
	events EventSink,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		reg:      reg,
		store:    store,
		ttl:      ttl,
		interval: interval,
		events:   events,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Start запускает фоновую горутину reaper с периодическим тикером.
// Вызывается один раз при старте приложения.
func (rp *Reaper) Start(ctx context.Context) {
	reaperCtx, cancel := context.WithCancel(ctx)
	rp.cancel = cancel
	rp.running = true

	go rp.run(reaperCtx)

	rp.logger.Info("Reaper запущен",
		slog.String("ttl", rp.ttl.String()),
		slog.String("interval", rp.interval.String()),
	)
}

// Stop останавливает фоновый процесс reaper.
func (rp *Reaper) Stop() {
	if rp.cancel != nil {
		rp.cancel()
	}
	rp.running = false
	rp.logger.Info("Reaper остановлен")
}

// run — основной цикл фоновой горутины.
func (rp *Reaper) run(ctx context.Context) {
	// Первый запуск — сразу после старта
	rp.RunOnce()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rp.RunOnce()
		}
	}
}

// RunOnce выполняет один цикл очистки.
// Потокобезопасен: использует mutex для защиты от параллельного запуска.
//
// Порядок обработки:
//  1. Отмена сессий с истёкшим TTL
//  2. Вычистка терминальных сессий из реестра
//  3. Удаление осиротевших staging-файлов
func (rp *Reaper) RunOnce() *ReaperResult {
	rp.mu.Lock()
	defer rp.mu.Unlock()

	start := time.Now()
	result := &ReaperResult{}

	rp.logger.Debug("Reaper запуск начат")

	cutoff := time.Now().UTC().Add(-rp.ttl)

	for _, session := range rp.reg.List() {
		st := session.State()

		// Фаза 2: терминальные сессии вычищаются из реестра.
		// Для completed staging-файла уже нет, результат живёт в кэше.
		if st.IsTerminal() {
			rp.reg.Remove(session.UploadID)
			result.PurgedCount++
			continue
		}

		// Фаза 1: TTL-отмена неактивных сессий
		if session.IdleSince().Before(cutoff) {
			if err := rp.expireSession(session); err != nil {
				result.Errors++
				continue
			}
			result.ExpiredCount++
		}
	}

	// Фаза 3: осиротевшие staging-файлы
	orphans, errors := rp.cleanOrphans()
	result.OrphanCount = orphans
	result.Errors += errors

	result.Duration = time.Since(start)

	// Обновляем Prometheus метрики
	reaperRunsTotal.Inc()
	middleware.SessionsReapedTotal.Add(float64(result.ExpiredCount))
	middleware.OrphansCleanedTotal.Add(float64(result.OrphanCount))
	reaperDurationSeconds.Observe(result.Duration.Seconds())

	rp.logger.Info("Reaper завершён",
		slog.Int("expired", result.ExpiredCount),
		slog.Int("purged", result.PurgedCount),
		slog.Int("orphans", result.OrphanCount),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}

// expireSession отменяет сессию по TTL: staging-файл, манифест, реестр.
func (rp *Reaper) expireSession(session *model.UploadSession) error {
	if err := session.TransitionTo(state.StateFailed); err != nil {
		// Сессия успела перейти в терминальное состояние, вычистится
		// на следующем цикле
		return nil
	}

	if err := rp.store.Discard(session.StorageName); err != nil {
		rp.logger.Error("Reaper: ошибка удаления staging-файла",
			slog.String("upload_id", session.UploadID),
			slog.String("storage_name", session.StorageName),
			slog.String("error", err.Error()),
		)
		return err
	}
	_ = manifest.Delete(manifest.PathFor(rp.store.StagingPath(session.StorageName)))
	rp.reg.Remove(session.UploadID)
	middleware.ActiveSessions.Dec()

	rp.logger.Info("Reaper: сессия отменена по TTL",
		slog.String("upload_id", session.UploadID),
		slog.String("filename", session.OriginalFilename),
		slog.Int64("bytes_received", session.BytesReceived()),
		slog.Time("idle_since", session.IdleSince()),
	)

	if rp.events != nil {
		rp.events.Publish(UploadEvent{
			Type:     EventExpired,
			UploadID: session.UploadID,
			Filename: session.OriginalFilename,
		})
	}

	return nil
}

// cleanOrphans удаляет staging-файлы и манифесты, для которых нет
// сессии в реестре. Появляются после невосстановимых манифестов
// или рестарта с потерей манифеста.
func (rp *Reaper) cleanOrphans() (cleaned, errors int) {
	entries, err := os.ReadDir(rp.store.StagingDir())
	if err != nil {
		rp.logger.Error("Reaper: ошибка чтения staging-директории",
			slog.String("error", err.Error()),
		)
		return 0, 1
	}

	// Имена staging-файлов живых сессий
	known := make(map[string]bool)
	for _, session := range rp.reg.List() {
		known[session.StorageName] = true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		dataName := strings.TrimSuffix(name, manifest.Suffix)
		if known[dataName] {
			continue
		}

		// Свежие файлы не трогаем: init мог записать файл, но ещё
		// не зарегистрировать сессию
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < time.Minute {
			continue
		}

		if err := os.Remove(filepath.Join(rp.store.StagingDir(), name)); err != nil {
			rp.logger.Error("Reaper: ошибка удаления осиротевшего файла",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
			errors++
			continue
		}

		rp.logger.Debug("Reaper: осиротевший файл удалён", slog.String("name", name))
		if !manifest.IsManifestFile(name) {
			cleaned++
		}
	}

	return cleaned, errors
}
