// Пакет client — клиент параллельной чанковой загрузки файлов
// в Upload Module.
//
// Пул из Parallelism worker-ов разбирает чанки через общий
// атомарный курсор: каждый индекс чанка забирается ровно один раз,
// порядок отправки между worker-ами не гарантируется. Сервер
// принимает диапазоны в любом порядке.
//
// Повторы отдельных чанков выполняет retryablehttp: экспоненциальный
// backoff, повтор только сетевых ошибок и 5xx. Ошибки 4xx отдаются
// вызывающему как есть.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docker/go-units"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/bigkaa/govideolab/upload-module/internal/api/generated"
	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
)

// ErrCancelled возвращается из Upload/Resume после вызова Cancel.
var ErrCancelled = errors.New("загрузка отменена")

// Config — параметры клиента загрузки.
type Config struct {
	// BaseURL — адрес Upload Module, например "http://localhost:8030"
	BaseURL string
	// Token — Bearer-токен (опционально)
	Token string
	// Parallelism — размер пула worker-ов (по умолчанию 4)
	Parallelism int
	// MaxRetries — число повторов одного чанка (по умолчанию 3)
	MaxRetries int
	// RetryWaitMin — базовая задержка перед повтором (по умолчанию 500ms)
	RetryWaitMin time.Duration
	// Logger — логгер; nil — slog.Default()
	Logger *slog.Logger
}

// Progress — снимок хода загрузки после очередного принятого чанка.
type Progress struct {
	UploadID  string
	BytesSent int64
	TotalSize int64
	// Percent — процент отправленных байт (0–100)
	Percent float64
	// Speed — мгновенная скорость, байт/сек с момента прошлого снимка.
	// Первый снимок всегда с нулевой скоростью.
	Speed float64
}

// ProgressFunc вызывается после каждого успешно отправленного чанка.
type ProgressFunc func(p Progress)

// Result — итог завершённой загрузки.
type Result struct {
	UploadID string
	Filename string
	Path     string
	Size     int64
}

// APIError — ошибка, возвращённая сервером.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Uploader — клиент загрузки одного или нескольких файлов.
type Uploader struct {
	cfg    Config
	http   *retryablehttp.Client
	logger *slog.Logger

	cancelled atomic.Bool

	mu             sync.Mutex
	activeUploadID string
	bytesSent      int64
	totalSize      int64
	lastReportAt   time.Time
	lastReportSent int64
}

// New создаёт клиент загрузки.
func New(cfg Config) (*Uploader, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BaseURL обязателен")
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "upload_client"))

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = cfg.RetryWaitMin
	rc.RetryWaitMax = cfg.RetryWaitMin * 16
	rc.Logger = &retryableSlog{logger: logger}

	return &Uploader{
		cfg:    cfg,
		http:   rc,
		logger: logger,
	}, nil
}

// ChunkSizeFor возвращает размер чанка по размеру файла.
// Мелкие файлы режутся мелко (меньше накладных расходов на повтор),
// крупные — крупно (меньше запросов). Детерминированно: границы
// чанков — чистая функция от размера файла.
func ChunkSizeFor(fileSize int64) int64 {
	switch {
	case fileSize < 10*units.MiB:
		return 512 * units.KiB
	case fileSize < 100*units.MiB:
		return 2 * units.MiB
	case fileSize < units.GiB:
		return 8 * units.MiB
	default:
		return 16 * units.MiB
	}
}

// Upload загружает файл целиком: init, параллельная отправка чанков,
// complete. Блокируется до завершения, ошибки или отмены.
func (u *Uploader) Upload(ctx context.Context, filePath string, onProgress ProgressFunc) (*Result, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка доступа к файлу: %w", err)
	}
	size := info.Size()
	if size <= 0 {
		return nil, fmt.Errorf("пустой файл: %s", filePath)
	}

	// 1. Инициализация сессии
	uploadID, err := u.init(ctx, filepath.Base(filePath), size)
	if err != nil {
		return nil, err
	}

	u.beginSession(uploadID, size, 0)

	u.logger.Info("Сессия загрузки создана",
		slog.String("upload_id", uploadID),
		slog.String("file", filePath),
		slog.Int64("size", size),
	)

	// 2. Отправка чанков всего файла
	full := []rangeset.Range{{Start: 0, End: size - 1}}
	if err := u.sendRanges(ctx, filePath, uploadID, size, full, onProgress); err != nil {
		return nil, err
	}

	// 3. Финализация
	return u.complete(ctx, uploadID)
}

// Resume докачивает частично загруженный файл: запрашивает статус,
// вычисляет недостающие диапазоны и отправляет только их.
func (u *Uploader) Resume(ctx context.Context, filePath, uploadID string, onProgress ProgressFunc) (*Result, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка доступа к файлу: %w", err)
	}
	size := info.Size()

	// 1. Текущее покрытие на сервере
	status, err := u.Status(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if status.TotalSize != size {
		return nil, fmt.Errorf("размер файла %d не совпадает с заявленным в сессии %d", size, status.TotalSize)
	}

	// 2. Дополнение полученных диапазонов
	missing, err := PlanResume(status.ReceivedRanges, size)
	if err != nil {
		return nil, fmt.Errorf("ошибка планирования докачки: %w", err)
	}

	u.beginSession(uploadID, size, status.BytesReceived)

	u.logger.Info("Докачка запланирована",
		slog.String("upload_id", uploadID),
		slog.Int64("bytes_received", status.BytesReceived),
		slog.Int("missing_ranges", len(missing)),
	)

	// 3. Отправка недостающего
	if len(missing) > 0 {
		if err := u.sendRanges(ctx, filePath, uploadID, size, missing, onProgress); err != nil {
			return nil, err
		}
	}

	// 4. Финализация
	return u.complete(ctx, uploadID)
}

// Cancel запрашивает отмену текущей загрузки. Безопасен в любой момент
// и не ждёт завершения запросов в полёте: worker-ы перестают забирать
// новые чанки, серверу отправляется cancel в фоне.
func (u *Uploader) Cancel() {
	if !u.cancelled.CompareAndSwap(false, true) {
		return
	}

	u.mu.Lock()
	uploadID := u.activeUploadID
	u.mu.Unlock()

	if uploadID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := u.cancelSession(ctx, uploadID); err != nil {
			u.logger.Warn("Ошибка отмены сессии на сервере",
				slog.String("upload_id", uploadID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// Status запрашивает состояние сессии на сервере.
func (u *Uploader) Status(ctx context.Context, uploadID string) (*generated.UploadStatusResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet,
		u.cfg.BaseURL+"/upload/"+uploadID+"/status", nil)
	if err != nil {
		return nil, err
	}
	u.setAuth(req)

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса статуса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	var status generated.UploadStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("ошибка парсинга статуса: %w", err)
	}
	return &status, nil
}

// --- Внутренние операции ---

// beginSession сбрасывает состояние прогресса перед Upload/Resume.
func (u *Uploader) beginSession(uploadID string, totalSize, alreadySent int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.activeUploadID = uploadID
	u.totalSize = totalSize
	u.bytesSent = alreadySent
	u.lastReportAt = time.Time{}
	u.lastReportSent = alreadySent
}

// init выполняет POST /upload/init.
func (u *Uploader) init(ctx context.Context, filename string, size int64) (string, error) {
	body, err := json.Marshal(generated.InitUploadRequest{
		Filename: filename,
		Size:     size,
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		u.cfg.BaseURL+"/upload/init", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	u.setAuth(req)

	resp, err := u.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ошибка инициализации сессии: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp)
	}

	var initResp generated.InitUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&initResp); err != nil {
		return "", fmt.Errorf("ошибка парсинга ответа init: %w", err)
	}
	return initResp.UploadId, nil
}

// chunkSpan — один чанк для отправки, границы включительны.
type chunkSpan struct {
	start int64
	end   int64
}

// buildChunks режет диапазоны на чанки размером не более chunkSize.
func buildChunks(ranges []rangeset.Range, chunkSize int64) []chunkSpan {
	var chunks []chunkSpan
	for _, r := range ranges {
		for start := r.Start; start <= r.End; start += chunkSize {
			end := start + chunkSize - 1
			if end > r.End {
				end = r.End
			}
			chunks = append(chunks, chunkSpan{start: start, end: end})
		}
	}
	return chunks
}

// sendRanges отправляет диапазоны пулом параллельных worker-ов.
// Общий атомарный курсор гарантирует, что каждый чанк забирается
// ровно один раз. Первая ошибка останавливает выдачу новых чанков.
func (u *Uploader) sendRanges(
	ctx context.Context,
	filePath, uploadID string,
	totalSize int64,
	ranges []rangeset.Range,
	onProgress ProgressFunc,
) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("ошибка открытия файла: %w", err)
	}
	defer f.Close()

	chunks := buildChunks(ranges, ChunkSizeFor(totalSize))

	var (
		cursor   atomic.Int64
		failed   atomic.Bool
		errMu    sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	workers := u.cfg.Parallelism
	if workers > len(chunks) {
		workers = len(chunks)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if u.cancelled.Load() || failed.Load() || ctx.Err() != nil {
					return
				}

				idx := cursor.Add(1) - 1
				if idx >= int64(len(chunks)) {
					return
				}
				chunk := chunks[idx]

				payload := make([]byte, chunk.end-chunk.start+1)
				if _, readErr := f.ReadAt(payload, chunk.start); readErr != nil {
					u.recordError(&errMu, &firstErr, &failed,
						fmt.Errorf("ошибка чтения чанка [%d, %d]: %w", chunk.start, chunk.end, readErr))
					return
				}

				if sendErr := u.sendChunk(ctx, uploadID, chunk, totalSize, payload); sendErr != nil {
					u.recordError(&errMu, &firstErr, &failed,
						fmt.Errorf("чанк [%d, %d]: %w", chunk.start, chunk.end, sendErr))
					return
				}

				u.reportProgress(uploadID, int64(len(payload)), onProgress)
			}
		}()
	}

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	if u.cancelled.Load() {
		return ErrCancelled
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// recordError сохраняет первую ошибку и останавливает worker-ов.
func (u *Uploader) recordError(mu *sync.Mutex, firstErr *error, failed *atomic.Bool, err error) {
	failed.Store(true)
	mu.Lock()
	defer mu.Unlock()
	if *firstErr == nil {
		*firstErr = err
	}
}

// sendChunk выполняет PUT /upload/{id} одного чанка.
// Повторы сетевых ошибок и 5xx делает retryablehttp.
func (u *Uploader) sendChunk(ctx context.Context, uploadID string, chunk chunkSpan, totalSize int64, payload []byte) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPut,
		u.cfg.BaseURL+"/upload/"+uploadID, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Range",
		fmt.Sprintf("bytes %d-%d/%d", chunk.start, chunk.end, totalSize))
	u.setAuth(req)

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("сетевая ошибка: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return parseAPIError(resp)
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// complete выполняет POST /upload/{id}/complete.
func (u *Uploader) complete(ctx context.Context, uploadID string) (*Result, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		u.cfg.BaseURL+"/upload/"+uploadID+"/complete", nil)
	if err != nil {
		return nil, err
	}
	u.setAuth(req)

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка финализации: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseAPIError(resp)
	}

	var completeResp generated.CompleteUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&completeResp); err != nil {
		return nil, fmt.Errorf("ошибка парсинга ответа complete: %w", err)
	}

	u.logger.Info("Загрузка завершена",
		slog.String("upload_id", uploadID),
		slog.String("path", completeResp.Path),
	)

	return &Result{
		UploadID: uploadID,
		Filename: completeResp.Filename,
		Path:     completeResp.Path,
		Size:     completeResp.Size,
	}, nil
}

// cancelSession выполняет DELETE /upload/{id}/cancel.
func (u *Uploader) cancelSession(ctx context.Context, uploadID string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodDelete,
		u.cfg.BaseURL+"/upload/"+uploadID+"/cancel", nil)
	if err != nil {
		return err
	}
	u.setAuth(req)

	resp, err := u.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 404 после отмены допустим: сессию мог уже убрать reaper
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return parseAPIError(resp)
	}
	return nil
}

// reportProgress обновляет счётчики и вызывает callback.
func (u *Uploader) reportProgress(uploadID string, n int64, onProgress ProgressFunc) {
	if onProgress == nil {
		u.mu.Lock()
		u.bytesSent += n
		u.mu.Unlock()
		return
	}

	u.mu.Lock()
	u.bytesSent += n
	now := time.Now()

	// Первый снимок — без предыдущей отметки времени, скорость ноль
	speed := 0.0
	if !u.lastReportAt.IsZero() {
		elapsed := now.Sub(u.lastReportAt).Seconds()
		if elapsed > 0 {
			speed = float64(u.bytesSent-u.lastReportSent) / elapsed
		}
	}
	u.lastReportAt = now
	u.lastReportSent = u.bytesSent

	p := Progress{
		UploadID:  uploadID,
		BytesSent: u.bytesSent,
		TotalSize: u.totalSize,
		Speed:     speed,
	}
	if u.totalSize > 0 {
		p.Percent = float64(u.bytesSent) / float64(u.totalSize) * 100
	}
	u.mu.Unlock()

	onProgress(p)
}

// setAuth добавляет Bearer-токен, если настроен.
func (u *Uploader) setAuth(req *retryablehttp.Request) {
	if u.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.Token)
	}
}

// parseAPIError разбирает тело ошибки {"error": ..., "code": ...}.
func parseAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*units.KiB))
	if err != nil {
		apiErr.Message = "не удалось прочитать тело ошибки"
		return apiErr
	}

	var wire generated.ErrorResponse
	if jsonErr := json.Unmarshal(body, &wire); jsonErr == nil && wire.Error != "" {
		apiErr.Code = wire.Code
		apiErr.Message = wire.Error
	} else {
		apiErr.Message = string(body)
	}
	return apiErr
}

// retryableSlog адаптирует slog под LeveledLogger из retryablehttp.
type retryableSlog struct {
	logger *slog.Logger
}

func (l *retryableSlog) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

func (l *retryableSlog) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *retryableSlog) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *retryableSlog) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}
