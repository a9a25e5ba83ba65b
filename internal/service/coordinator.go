// Пакет service — бизнес-логика Upload Module.
// coordinator.go — координатор сессий загрузки: владеет жизненным
// циклом сессии от init до complete/cancel и связывает реестр,
// chunkstore и манифесты.
package service

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/govideolab/upload-module/internal/api/errors"
	"github.com/bigkaa/govideolab/upload-module/internal/api/middleware"
	"github.com/bigkaa/govideolab/upload-module/internal/config"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/model"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/state"
	"github.com/bigkaa/govideolab/upload-module/internal/registry"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/chunkstore"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/manifest"
)

// CoordinatorError — ошибка координатора с HTTP-кодом.
type CoordinatorError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *CoordinatorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// UploadEvent — событие жизненного цикла сессии для подписчиков
// (WebSocket-уведомления). Доставка fire-and-forget.
type UploadEvent struct {
	Type          string  `json:"type"`
	UploadID      string  `json:"upload_id"`
	Filename      string  `json:"filename,omitempty"`
	BytesReceived int64   `json:"bytes_received,omitempty"`
	TotalSize     int64   `json:"total_size,omitempty"`
	Progress      float64 `json:"progress,omitempty"`
}

// Типы событий жизненного цикла.
const (
	EventInitialized = "initialized"
	EventChunk       = "chunk"
	EventCompleted   = "completed"
	EventCancelled   = "cancelled"
	EventExpired     = "expired"
)

// EventSink — приёмник событий жизненного цикла.
// Реализация не должна блокировать вызывающего.
type EventSink interface {
	Publish(event UploadEvent)
}

// InitParams — параметры инициализации сессии.
type InitParams struct {
	// Filename — оригинальное имя файла
	Filename string
	// Size — заявленный размер файла в байтах
	Size int64
	// CorrelationID — идентификатор логической сессии пользователя
	// (sub из JWT или пустая строка)
	CorrelationID string
}

// InitResult — результат инициализации сессии.
type InitResult struct {
	UploadID string
	Filename string
}

// ChunkResult — результат приёма чанка.
type ChunkResult struct {
	// BytesReceived — суммарное покрытие после слияния
	BytesReceived int64
	// NewBytes — количество ранее не покрытых байт (0 — идемпотентный повтор)
	NewBytes int64
	// IsComplete — покрыт весь заявленный размер
	IsComplete bool
}

// StatusResult — снимок состояния сессии для API.
type StatusResult struct {
	Status model.Status
	// UploadSpeed — средняя скорость приёма, байт/сек с момента создания
	UploadSpeed float64
}

// Coordinator — координатор сессий загрузки.
type Coordinator struct {
	cfg     *config.Config
	reg     *registry.Registry
	store   *chunkstore.ChunkStore
	results *ResultCache
	events  EventSink
	logger  *slog.Logger
}

// NewCoordinator создаёт координатор сессий.
// events может быть nil — события не публикуются.
func NewCoordinator(
	cfg *config.Config,
	reg *registry.Registry,
	store *chunkstore.ChunkStore,
	results *ResultCache,
	events EventSink,
	logger *slog.Logger,
) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		reg:     reg,
		store:   store,
		results: results,
		events:  events,
		logger:  logger.With(slog.String("component", "coordinator")),
	}
}

// Initialize создаёт новую сессию загрузки.
//
// Поток:
//  1. Валидация имени файла и расширения
//  2. Валидация заявленного размера
//  3. Генерация upload_id и имени staging-файла
//  4. Предварительная аллокация staging-файла
//  5. Запись манифеста
//  6. Регистрация сессии в реестре
func (c *Coordinator) Initialize(params InitParams) (*InitResult, *CoordinatorError) {
	// 1. Проверяем имя файла
	filename := strings.TrimSpace(params.Filename)
	if filename == "" {
		return nil, &CoordinatorError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Имя файла не указано",
		}
	}
	if !c.extensionAllowed(filename) {
		return nil, &CoordinatorError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Недопустимое расширение файла, разрешены: %s", strings.Join(c.cfg.AllowedExtensions, ", ")),
		}
	}

	// 2. Проверяем заявленный размер
	if params.Size <= 0 {
		return nil, &CoordinatorError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    "Заявленный размер файла должен быть положительным",
		}
	}
	if params.Size > c.cfg.MaxFileSize {
		return nil, &CoordinatorError{
			StatusCode: 413,
			Code:       apierrors.CodeFileTooLarge,
			Message:    fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", params.Size, c.cfg.MaxFileSize),
		}
	}

	// 3. Генерируем идентификаторы
	uploadID := uuid.New().String()
	storageName := chunkstore.GenerateStorageName(filename)

	// 4. Аллоцируем staging-файл заявленного размера
	if err := c.store.Allocate(storageName, params.Size); err != nil {
		c.logger.Error("Ошибка аллокации staging-файла",
			slog.String("upload_id", uploadID),
			slog.String("storage_name", storageName),
			slog.String("error", err.Error()),
		)
		return nil, &CoordinatorError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageFailure,
			Message:    "Ошибка аллокации файла на диске",
		}
	}

	session := model.NewSession(uploadID, filename, storageName, params.Size, params.CorrelationID)

	// 5. Записываем манифест до регистрации: после рестарта сессия
	// восстановима с момента успешного ответа init
	if err := c.writeManifest(session); err != nil {
		_ = c.store.Discard(storageName)
		c.logger.Error("Ошибка записи манифеста",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
		return nil, &CoordinatorError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageFailure,
			Message:    "Ошибка записи манифеста сессии",
		}
	}

	// 6. Регистрируем сессию
	if err := c.reg.Add(session); err != nil {
		_ = c.store.Discard(storageName)
		_ = manifest.Delete(manifest.PathFor(c.store.StagingPath(storageName)))
		return nil, &CoordinatorError{
			StatusCode: 500,
			Code:       apierrors.CodeInternalError,
			Message:    "Коллизия идентификатора сессии",
		}
	}

	middleware.SessionOperationsTotal.WithLabelValues("init", "success").Inc()
	middleware.ActiveSessions.Inc()

	c.logger.Info("Сессия загрузки создана",
		slog.String("upload_id", uploadID),
		slog.String("filename", filename),
		slog.String("storage_name", storageName),
		slog.Int64("declared_size", params.Size),
		slog.String("correlation_id", params.CorrelationID),
	)

	c.publish(UploadEvent{
		Type:      EventInitialized,
		UploadID:  uploadID,
		Filename:  filename,
		TotalSize: params.Size,
	})

	return &InitResult{UploadID: uploadID, Filename: filename}, nil
}

// AcceptChunk принимает чанк [start, end] сессии uploadID.
//
// Поток:
//  1. Поиск сессии и проверка состояния
//  2. Валидация диапазона против заявленного размера
//  3. Позиционная запись байт в staging-файл
//  4. Слияние диапазона в учёт сессии (после успешной записи)
//  5. Обновление манифеста
//
// Приём идемпотентен: повтор уже покрытого диапазона перезаписывает
// те же байты и не меняет учёт. Конкурентные чанки одной сессии
// пишутся без общего замка, учёт сериализуется на мьютексе сессии.
func (c *Coordinator) AcceptChunk(uploadID string, start, end, total int64, payload []byte) (*ChunkResult, *CoordinatorError) {
	// 1. Ищем сессию
	session := c.reg.Get(uploadID)
	if session == nil {
		return nil, c.notFound(uploadID)
	}
	if st := session.State(); st.IsTerminal() || st == state.StateCompleting {
		return nil, &CoordinatorError{
			StatusCode: 400,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Сессия %s находится в состоянии %s и не принимает чанки", uploadID, st),
		}
	}

	// 2. Валидируем диапазон
	if total != session.DeclaredSize {
		return nil, &CoordinatorError{
			StatusCode: 416,
			Code:       apierrors.CodeInvalidRange,
			Message:    fmt.Sprintf("Общий размер %d не совпадает с заявленным %d", total, session.DeclaredSize),
		}
	}
	if start < 0 || end < start || end >= session.DeclaredSize {
		return nil, &CoordinatorError{
			StatusCode: 416,
			Code:       apierrors.CodeInvalidRange,
			Message:    fmt.Sprintf("Диапазон [%d, %d] выходит за пределы файла размером %d", start, end, session.DeclaredSize),
		}
	}
	if int64(len(payload)) != end-start+1 {
		return nil, &CoordinatorError{
			StatusCode: 416,
			Code:       apierrors.CodeInvalidRange,
			Message:    fmt.Sprintf("Длина тела %d не совпадает с диапазоном [%d, %d]", len(payload), start, end),
		}
	}

	// 3. Пишем байты. Порядок неизменен: сначала байты на диск,
	// потом учёт — диапазон никогда не числится принятым без данных.
	if err := c.store.WriteAt(session.StorageName, start, payload); err != nil {
		middleware.SessionOperationsTotal.WithLabelValues("chunk", "error").Inc()
		c.logger.Error("Ошибка записи чанка",
			slog.String("upload_id", uploadID),
			slog.Int64("start", start),
			slog.Int64("end", end),
			slog.String("error", err.Error()),
		)
		return nil, &CoordinatorError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageFailure,
			Message:    "Ошибка записи чанка на диск",
		}
	}

	// 4. Сливаем диапазон в учёт
	added, err := session.MergeRange(start, end)
	if err != nil {
		return nil, &CoordinatorError{
			StatusCode: 416,
			Code:       apierrors.CodeInvalidRange,
			Message:    err.Error(),
		}
	}

	// 5. Обновляем манифест (снимок после слияния).
	// Ошибка не фатальна: recovery best-effort, клиент дошлёт.
	if err := c.writeManifest(session); err != nil {
		c.logger.Warn("Ошибка обновления манифеста",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}

	snap := session.Snapshot()

	middleware.SessionOperationsTotal.WithLabelValues("chunk", "success").Inc()
	middleware.ChunkBytesTotal.Add(float64(added))

	c.publish(UploadEvent{
		Type:          EventChunk,
		UploadID:      uploadID,
		Filename:      session.OriginalFilename,
		BytesReceived: snap.BytesReceived,
		TotalSize:     snap.DeclaredSize,
		Progress:      snap.Progress(),
	})

	return &ChunkResult{
		BytesReceived: snap.BytesReceived,
		NewBytes:      added,
		IsComplete:    snap.IsComplete(),
	}, nil
}

// Status возвращает снимок состояния сессии.
func (c *Coordinator) Status(uploadID string) (*StatusResult, *CoordinatorError) {
	session := c.reg.Get(uploadID)
	if session == nil {
		return nil, c.notFound(uploadID)
	}

	snap := session.Snapshot()

	var speed float64
	if elapsed := time.Since(snap.CreatedAt).Seconds(); elapsed > 0 {
		speed = float64(snap.BytesReceived) / elapsed
	}

	return &StatusResult{Status: snap, UploadSpeed: speed}, nil
}

// Complete финализирует сессию: проверяет полное покрытие, запечатывает
// staging-файл и переносит его в директорию готовых файлов.
//
// Идемпотентен: повторный вызов возвращает тот же результат, в том
// числе после вычистки сессии из реестра (через кэш результатов).
//
// Поток:
//  1. Кэш результатов (повтор после вычистки)
//  2. Поиск сессии, повтор для уже завершённой
//  3. Проверка полноты покрытия
//  4. Переход в completing (отсекает конкурентный Complete)
//  5. Finalize (fsync + rename)
//  6. Переход в completed, кэширование результата, удаление манифеста
func (c *Coordinator) Complete(uploadID string) (*model.CompletedResult, *CoordinatorError) {
	// 1. Повторный Complete после вычистки сессии
	if cached, ok := c.results.Get(uploadID); ok {
		return cached, nil
	}

	// 2. Ищем сессию
	session := c.reg.Get(uploadID)
	if session == nil {
		return nil, c.notFound(uploadID)
	}
	if session.State() == state.StateCompleted {
		result := &model.CompletedResult{
			Filename: session.StorageName,
			Path:     session.CompletedPath(),
			Size:     session.DeclaredSize,
		}
		return result, nil
	}

	// 3. Проверяем полноту покрытия
	if !session.IsFullyReceived() {
		snap := session.Snapshot()
		return nil, &CoordinatorError{
			StatusCode: 409,
			Code:       apierrors.CodeUploadIncomplete,
			Message: fmt.Sprintf("Получено %d из %d байт, не хватает диапазонов: %v",
				snap.BytesReceived, snap.DeclaredSize, missingSummary(snap)),
		}
	}

	// 4. Переходим в completing: конкурентный Complete получит отказ перехода
	if err := session.TransitionTo(state.StateCompleting); err != nil {
		return nil, &CoordinatorError{
			StatusCode: 409,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Финализация сессии %s уже выполняется", uploadID),
		}
	}

	// 5. Запечатываем staging-файл
	finalPath, err := c.store.Finalize(session.StorageName)
	if err != nil {
		// Возврат в receiving: клиент может повторить Complete
		_ = session.TransitionTo(state.StateReceiving)
		middleware.SessionOperationsTotal.WithLabelValues("complete", "error").Inc()
		c.logger.Error("Ошибка финализации staging-файла",
			slog.String("upload_id", uploadID),
			slog.String("storage_name", session.StorageName),
			slog.String("error", err.Error()),
		)
		return nil, &CoordinatorError{
			StatusCode: 500,
			Code:       apierrors.CodeStorageFailure,
			Message:    "Ошибка финализации файла",
		}
	}

	// 6. Фиксируем результат
	session.SetCompleted(finalPath)
	if err := session.TransitionTo(state.StateCompleted); err != nil {
		c.logger.Error("Ошибка перехода в completed (файл финализирован)",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}

	result := &model.CompletedResult{
		Filename: session.StorageName,
		Path:     finalPath,
		Size:     session.DeclaredSize,
	}
	c.results.Set(uploadID, result)

	// Манифест больше не нужен: staging-файла нет
	_ = manifest.Delete(manifest.PathFor(c.store.StagingPath(session.StorageName)))

	middleware.SessionOperationsTotal.WithLabelValues("complete", "success").Inc()
	middleware.ActiveSessions.Dec()

	c.logger.Info("Сессия загрузки завершена",
		slog.String("upload_id", uploadID),
		slog.String("filename", session.OriginalFilename),
		slog.String("path", finalPath),
		slog.Int64("size", session.DeclaredSize),
	)

	c.publish(UploadEvent{
		Type:          EventCompleted,
		UploadID:      uploadID,
		Filename:      session.OriginalFilename,
		BytesReceived: session.DeclaredSize,
		TotalSize:     session.DeclaredSize,
		Progress:      100,
	})

	return result, nil
}

// Cancel отменяет сессию: удаляет staging-файл, манифест и запись
// в реестре. Частично принятые байты не сохраняются.
//
// Отмена уже терминальной сессии (completed, cancelled, failed) —
// no-op: зачистка со стороны клиента может прийти после завершения.
// Неизвестный upload_id возвращает 404.
func (c *Coordinator) Cancel(uploadID string) *CoordinatorError {
	session := c.reg.Get(uploadID)
	if session == nil {
		return c.notFound(uploadID)
	}
	if session.State().IsTerminal() {
		return nil
	}

	if err := session.TransitionTo(state.StateCancelled); err != nil {
		// Конкурентный переход в терминальное состояние — тоже no-op
		if session.State().IsTerminal() {
			return nil
		}
		return &CoordinatorError{
			StatusCode: 409,
			Code:       apierrors.CodeValidationError,
			Message:    fmt.Sprintf("Сессия %s в состоянии %s не может быть отменена", uploadID, session.State()),
		}
	}

	if err := c.store.Discard(session.StorageName); err != nil {
		c.logger.Warn("Ошибка удаления staging-файла при отмене",
			slog.String("upload_id", uploadID),
			slog.String("error", err.Error()),
		)
	}
	_ = manifest.Delete(manifest.PathFor(c.store.StagingPath(session.StorageName)))
	c.reg.Remove(uploadID)

	middleware.SessionOperationsTotal.WithLabelValues("cancel", "success").Inc()
	middleware.ActiveSessions.Dec()

	c.logger.Info("Сессия загрузки отменена",
		slog.String("upload_id", uploadID),
		slog.String("filename", session.OriginalFilename),
	)

	c.publish(UploadEvent{
		Type:     EventCancelled,
		UploadID: uploadID,
		Filename: session.OriginalFilename,
	})

	return nil
}

// writeManifest записывает текущий снимок сессии в манифест.
func (c *Coordinator) writeManifest(session *model.UploadSession) error {
	snap := session.Snapshot()
	m := &manifest.Manifest{
		UploadID:         session.UploadID,
		OriginalFilename: session.OriginalFilename,
		StorageName:      session.StorageName,
		DeclaredSize:     session.DeclaredSize,
		CorrelationID:    session.CorrelationID,
		State:            string(snap.State),
		CreatedAt:        session.CreatedAt,
		LastChunkAt:      snap.LastChunkAt,
		Ranges:           snap.Ranges,
	}
	return manifest.Write(manifest.PathFor(c.store.StagingPath(session.StorageName)), m)
}

// extensionAllowed проверяет расширение файла против allow-list.
// Пустой список отключает проверку.
func (c *Coordinator) extensionAllowed(filename string) bool {
	if len(c.cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, allowed := range c.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (c *Coordinator) notFound(uploadID string) *CoordinatorError {
	return &CoordinatorError{
		StatusCode: 404,
		Code:       apierrors.CodeNotFound,
		Message:    fmt.Sprintf("Сессия загрузки %s не найдена", uploadID),
	}
}

func (c *Coordinator) publish(event UploadEvent) {
	if c.events != nil {
		c.events.Publish(event)
	}
}

// missingSummary возвращает до трёх недостающих диапазонов для
// сообщения об ошибке.
func missingSummary(snap model.Status) string {
	set, err := rangeset.FromRanges(snap.Ranges)
	if err != nil {
		return "?"
	}
	missing := set.Missing(snap.DeclaredSize)
	if len(missing) > 3 {
		return fmt.Sprintf("%v и ещё %d", missing[:3], len(missing)-3)
	}
	return fmt.Sprintf("%v", missing)
}
