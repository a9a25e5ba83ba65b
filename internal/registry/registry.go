// Пакет registry — потокобезопасный in-memory реестр активных
// сессий загрузки.
//
// Реестр строится при старте из манифестов staging-директории
// (BuildFromDir) и обновляется синхронно при операциях координатора
// (Add, Remove). Ключ — upload_id сессии.
//
// Не персистентный: при рестарте пересобирается из *.session.json.
// В отличие от записей реестр отдаёт живые указатели на сессии:
// каждая сессия защищена собственным мьютексом, и конкурентные
// чанки одной сессии сериализуются на ней, а не на реестре.
package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/model"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/state"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/chunkstore"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/manifest"
)

// Registry — потокобезопасный реестр сессий.
// Использует sync.RWMutex для конкурентного чтения и
// эксклюзивной записи.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*model.UploadSession // upload_id → session
	ready    bool                            // реестр построен и готов
	logger   *slog.Logger
}

// New создаёт пустой реестр. Для восстановления сессий после
// рестарта вызовите BuildFromDir.
func New(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*model.UploadSession),
		logger:   logger.With(slog.String("component", "registry")),
	}
}

// BuildFromDir восстанавливает реестр из манифестов staging-директории.
// Вызывается при старте сервера. Манифесты без staging-файла и
// манифесты терминальных состояний пропускаются: их staging-файлы
// подберёт reaper. Заменяет текущее содержимое реестра.
// После успешного построения реестр помечается как ready.
func (r *Registry) BuildFromDir(cs *chunkstore.ChunkStore) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	manifests, err := manifest.ScanDir(cs.StagingDir())
	if err != nil {
		return fmt.Errorf("ошибка сканирования staging-директории: %w", err)
	}

	r.sessions = make(map[string]*model.UploadSession, len(manifests))
	skipped := 0

	for _, m := range manifests {
		st, err := state.Parse(m.State)
		if err != nil || st.IsTerminal() {
			skipped++
			continue
		}
		if !cs.StagingExists(m.StorageName) {
			r.logger.Warn("Манифест без staging-файла, сессия пропущена",
				slog.String("upload_id", m.UploadID),
				slog.String("storage_name", m.StorageName),
			)
			skipped++
			continue
		}

		s := model.NewSession(m.UploadID, m.OriginalFilename, m.StorageName, m.DeclaredSize, m.CorrelationID)
		s.CreatedAt = m.CreatedAt
		if err := s.RestoreRanges(m.Ranges, st, m.LastChunkAt); err != nil {
			r.logger.Warn("Невалидные диапазоны в манифесте, сессия пропущена",
				slog.String("upload_id", m.UploadID),
				slog.String("error", err.Error()),
			)
			skipped++
			continue
		}

		r.sessions[s.UploadID] = s
	}

	r.ready = true

	r.logger.Info("Реестр сессий восстановлен",
		slog.Int("sessions", len(r.sessions)),
		slog.Int("skipped", skipped),
		slog.String("staging_dir", cs.StagingDir()),
	)

	return nil
}

// IsReady возвращает true, если реестр построен и готов к использованию.
func (r *Registry) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Add добавляет сессию в реестр.
// Возвращает ошибку при коллизии upload_id.
func (r *Registry) Add(s *model.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.UploadID]; ok {
		return fmt.Errorf("сессия %s уже существует в реестре", s.UploadID)
	}
	r.sessions[s.UploadID] = s
	return nil
}

// Get возвращает сессию по upload_id.
// Возвращает nil, если сессия не найдена.
func (r *Registry) Get(uploadID string) *model.UploadSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[uploadID]
}

// Remove удаляет сессию из реестра по upload_id.
// Возвращает true, если сессия была найдена и удалена.
func (r *Registry) Remove(uploadID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[uploadID]; !ok {
		return false
	}
	delete(r.sessions, uploadID)
	return true
}

// List возвращает все сессии реестра, отсортированные по дате
// создания (новые первые). Используется reaper'ом и /api/v1/info.
func (r *Registry) List() []*model.UploadSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*model.UploadSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result
}

// Count возвращает количество сессий в реестре.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountIdleSince возвращает количество сессий, неактивных дольше
// указанного момента.
func (r *Registry) CountIdleSince(cutoff time.Time) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, s := range r.sessions {
		if s.IdleSince().Before(cutoff) {
			count++
		}
	}
	return count
}
