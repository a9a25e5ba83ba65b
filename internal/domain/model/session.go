// Пакет model — доменные модели Upload Module.
// UploadSession — авторитетное состояние одной сессии загрузки:
// принятые диапазоны, состояние жизненного цикла, привязка к
// staging-файлу. Единственная разделяемая изменяемая структура
// подсистемы; защищена собственным мьютексом (per-session lock),
// чтобы конкурентные сессии не сериализовались через общий замок.
package model

import (
	"sync"
	"time"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/state"
)

// UploadSession — одна сессия загрузки файла.
// Неизменяемые поля (идентификаторы, размер) читаются без блокировки;
// изменяемое состояние — только через методы.
type UploadSession struct {
	// UploadID — уникальный идентификатор сессии (UUID v4).
	// Единственный «credential» для адресации сессии.
	UploadID string

	// OriginalFilename — имя файла, заявленное клиентом при init
	OriginalFilename string

	// StorageName — имя staging-файла в chunkstore.
	// Формат: {name}_{timestamp}_{uuid}.{ext}
	StorageName string

	// DeclaredSize — заявленный размер файла в байтах.
	// Неизменяем на всё время жизни сессии; основа валидации
	// диапазонов и проверки полноты.
	DeclaredSize int64

	// CorrelationID — опциональный идентификатор логической сессии
	// пользователя (sub из JWT или пустая строка)
	CorrelationID string

	// CreatedAt — время создания сессии (UTC)
	CreatedAt time.Time

	mu            sync.Mutex
	state         state.State
	ranges        *rangeset.Set
	lastChunkAt   time.Time
	completedPath string
}

// Status — снимок состояния сессии для API-ответов и reaper.
type Status struct {
	UploadID      string
	Filename      string
	BytesReceived int64
	DeclaredSize  int64
	Ranges        []rangeset.Range
	State         state.State
	CreatedAt     time.Time
	LastChunkAt   time.Time
}

// Progress возвращает процент полученных байт (0–100).
func (st *Status) Progress() float64 {
	if st.DeclaredSize <= 0 {
		return 0
	}
	return float64(st.BytesReceived) / float64(st.DeclaredSize) * 100
}

// IsComplete возвращает true при полном покрытии заявленного размера.
func (st *Status) IsComplete() bool {
	return st.BytesReceived == st.DeclaredSize
}

// CompletedResult — результат успешной финализации.
// Кэшируется отдельно от сессии, чтобы повторный Complete оставался
// идемпотентным после вычистки сессии из реестра.
type CompletedResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// NewSession создаёт сессию в состоянии initialized.
func NewSession(uploadID, filename, storageName string, declaredSize int64, correlationID string) *UploadSession {
	return &UploadSession{
		UploadID:         uploadID,
		OriginalFilename: filename,
		StorageName:      storageName,
		DeclaredSize:     declaredSize,
		CorrelationID:    correlationID,
		CreatedAt:        time.Now().UTC(),
		state:            state.StateInitialized,
		ranges:           rangeset.New(),
	}
}

// State возвращает текущее состояние жизненного цикла.
func (s *UploadSession) State() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TransitionTo выполняет валидированный переход состояния.
func (s *UploadSession) TransitionTo(to state.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := state.Transition(s.state, to)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// MergeRange сливает принятый диапазон [start, end] в учёт сессии.
// Возвращает количество новых (ранее не покрытых) байт: 0 — полностью
// идемпотентный повтор. Первый принятый чанк переводит сессию
// из initialized в receiving.
//
// Вызывается ПОСЛЕ успешной записи байт в chunkstore: при ошибке
// записи учёт не меняется. Потокобезопасен: конкурентные слияния
// для одной сессии сериализуются здесь, записи байт в staging-файл
// по непересекающимся смещениям идут без общего замка.
func (s *UploadSession) MergeRange(start, end int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	added, err := s.ranges.AddCounted(start, end)
	if err != nil {
		return 0, err
	}

	if s.state == state.StateInitialized {
		s.state = state.StateReceiving
	}
	s.lastChunkAt = time.Now().UTC()

	return added, nil
}

// Snapshot возвращает согласованный снимок состояния сессии.
func (s *UploadSession) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		UploadID:      s.UploadID,
		Filename:      s.OriginalFilename,
		BytesReceived: s.ranges.Bytes(),
		DeclaredSize:  s.DeclaredSize,
		Ranges:        s.ranges.Ranges(),
		State:         s.state,
		CreatedAt:     s.CreatedAt,
		LastChunkAt:   s.lastChunkAt,
	}
}

// BytesReceived возвращает суммарное количество принятых байт.
func (s *UploadSession) BytesReceived() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranges.Bytes()
}

// IsFullyReceived возвращает true при покрытии всего заявленного размера.
func (s *UploadSession) IsFullyReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ranges.Bytes() == s.DeclaredSize
}

// SetCompleted фиксирует финальный путь собранного файла.
func (s *UploadSession) SetCompleted(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completedPath = path
}

// CompletedPath возвращает финальный путь (пустая строка до финализации).
func (s *UploadSession) CompletedPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedPath
}

// IdleSince возвращает момент последней активности сессии:
// время последнего принятого чанка или время создания.
// Используется reaper'ом для TTL-политики.
func (s *UploadSession) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastChunkAt.IsZero() {
		return s.CreatedAt
	}
	return s.lastChunkAt
}

// RestoreRanges восстанавливает учёт диапазонов из манифеста
// (recovery после рестарта). Допустимо только до приёма новых чанков.
func (s *UploadSession) RestoreRanges(ranges []rangeset.Range, st state.State, lastChunkAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored, err := rangeset.FromRanges(ranges)
	if err != nil {
		return err
	}
	s.ranges = restored
	s.state = st
	s.lastChunkAt = lastChunkAt
	return nil
}
