// upload.go — HTTP handlers жизненного цикла сессий загрузки.
// Init, приём чанков, статус, финализация, отмена.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bigkaa/govideolab/upload-module/internal/api/errors"
	"github.com/bigkaa/govideolab/upload-module/internal/api/generated"
	"github.com/bigkaa/govideolab/upload-module/internal/api/middleware"
	"github.com/bigkaa/govideolab/upload-module/internal/service"
)

// UploadHandler — обработчик endpoints сессий загрузки.
type UploadHandler struct {
	coordinator *service.Coordinator
}

// NewUploadHandler создаёт обработчик endpoints загрузки.
func NewUploadHandler(coordinator *service.Coordinator) *UploadHandler {
	return &UploadHandler{coordinator: coordinator}
}

// InitUpload обрабатывает POST /upload/init.
// Создаёт сессию и резервирует staging-файл заявленного размера.
func (h *UploadHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	var req generated.InitUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка парсинга JSON: %s", err.Error()))
		return
	}

	result, initErr := h.coordinator.Initialize(service.InitParams{
		Filename:      req.Filename,
		Size:          req.Size,
		CorrelationID: middleware.CorrelationIDFromContext(r.Context()),
	})
	if initErr != nil {
		errors.WriteError(w, initErr.StatusCode, initErr.Code, initErr.Message)
		return
	}

	resp := generated.InitUploadResponse{
		UploadId: result.UploadID,
		Filename: result.Filename,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// UploadChunk обрабатывает PUT /upload/{upload_id}.
// Тело — сырые байты диапазона, позиция в заголовке Content-Range.
// Повтор уже принятого диапазона идемпотентен.
func (h *UploadHandler) UploadChunk(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	// 1. Парсим Content-Range
	header := r.Header.Get("Content-Range")
	if header == "" {
		errors.WriteError(w, http.StatusLengthRequired, "VALIDATION_ERROR",
			"Заголовок Content-Range обязателен")
		return
	}

	start, end, total, err := parseContentRange(header)
	if err != nil {
		errors.InvalidRange(w, fmt.Sprintf("Некорректный Content-Range %q: %s", header, err.Error()))
		return
	}

	// 2. Читаем тело. Лимит — заявленная длина чанка плюс байт,
	// чтобы несовпадение длины обнаруживалось как ошибка диапазона.
	payload, err := io.ReadAll(io.LimitReader(r.Body, end-start+2))
	if err != nil {
		errors.ValidationError(w, fmt.Sprintf("Ошибка чтения тела запроса: %s", err.Error()))
		return
	}

	// 3. Передаём чанк координатору
	_, chunkErr := h.coordinator.AcceptChunk(uploadId, start, end, total, payload)
	if chunkErr != nil {
		errors.WriteError(w, chunkErr.StatusCode, chunkErr.Code, chunkErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}\n"))
}

// GetUploadStatus обрабатывает GET /upload/{upload_id}/status.
// Возвращает снимок покрытия для планирования докачки.
func (h *UploadHandler) GetUploadStatus(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	result, statusErr := h.coordinator.Status(uploadId)
	if statusErr != nil {
		errors.WriteError(w, statusErr.StatusCode, statusErr.Code, statusErr.Message)
		return
	}

	st := result.Status

	// Диапазоны сериализуются парами [start, end], границы включительны
	ranges := make([][]int64, 0, len(st.Ranges))
	for _, rng := range st.Ranges {
		ranges = append(ranges, []int64{rng.Start, rng.End})
	}

	resp := generated.UploadStatusResponse{
		UploadId:       st.UploadID,
		Filename:       st.Filename,
		BytesReceived:  st.BytesReceived,
		TotalSize:      st.DeclaredSize,
		Progress:       st.Progress(),
		UploadSpeed:    result.UploadSpeed,
		ReceivedRanges: ranges,
		IsComplete:     st.IsComplete(),
		State:          generated.UploadStatusResponseState(st.State),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// CompleteUpload обрабатывает POST /upload/{upload_id}/complete.
// Идемпотентна: повторный вызов возвращает тот же результат.
func (h *UploadHandler) CompleteUpload(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	result, completeErr := h.coordinator.Complete(uploadId)
	if completeErr != nil {
		errors.WriteError(w, completeErr.StatusCode, completeErr.Code, completeErr.Message)
		return
	}

	resp := generated.CompleteUploadResponse{
		Filename: result.Filename,
		Path:     result.Path,
		Size:     result.Size,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// CancelUpload обрабатывает DELETE /upload/{upload_id}/cancel.
// Удаляет сессию и staging-файл. Для уже терминальной сессии — no-op
// с ответом 200; неизвестный upload_id возвращает 404.
func (h *UploadHandler) CancelUpload(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	if cancelErr := h.coordinator.Cancel(uploadId); cancelErr != nil {
		errors.WriteError(w, cancelErr.StatusCode, cancelErr.Code, cancelErr.Message)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}\n"))
}

// parseContentRange разбирает заголовок вида "bytes {start}-{end}/{total}".
// Границы включительны. Форма "bytes */{total}" не поддерживается.
func parseContentRange(header string) (start, end, total int64, err error) {
	const prefix = "bytes "
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, 0, fmt.Errorf("ожидался префикс %q", prefix)
	}

	rangePart, totalPart, found := strings.Cut(strings.TrimPrefix(header, prefix), "/")
	if !found {
		return 0, 0, 0, fmt.Errorf("отсутствует разделитель '/'")
	}

	startStr, endStr, found := strings.Cut(rangePart, "-")
	if !found {
		return 0, 0, 0, fmt.Errorf("отсутствует разделитель '-'")
	}

	if start, err = strconv.ParseInt(startStr, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("некорректный start: %w", err)
	}
	if end, err = strconv.ParseInt(endStr, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("некорректный end: %w", err)
	}
	if total, err = strconv.ParseInt(totalPart, 10, 64); err != nil {
		return 0, 0, 0, fmt.Errorf("некорректный total: %w", err)
	}

	return start, end, total, nil
}
