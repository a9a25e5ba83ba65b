// handler.go — APIHandler реализует generated.ServerInterface,
// делегируя вызовы в отдельные handler'ы по доменам.
package handlers

import (
	"net/http"

	"github.com/bigkaa/govideolab/upload-module/internal/api/generated"
	"github.com/bigkaa/govideolab/upload-module/internal/server"
)

// APIHandler — единая реализация ServerInterface, собирающая
// все доменные handlers в один объект.
type APIHandler struct {
	upload  *UploadHandler
	system  *SystemHandler
	health  *HealthHandler
	metrics *server.MetricsHandler
}

// NewAPIHandler создаёт единый handler для всех endpoints.
func NewAPIHandler(
	upload *UploadHandler,
	system *SystemHandler,
	health *HealthHandler,
	metrics *server.MetricsHandler,
) *APIHandler {
	return &APIHandler{
		upload:  upload,
		system:  system,
		health:  health,
		metrics: metrics,
	}
}

// --- Upload Sessions ---

func (h *APIHandler) InitUpload(w http.ResponseWriter, r *http.Request) {
	h.upload.InitUpload(w, r)
}

func (h *APIHandler) UploadChunk(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	h.upload.UploadChunk(w, r, uploadId)
}

func (h *APIHandler) GetUploadStatus(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	h.upload.GetUploadStatus(w, r, uploadId)
}

func (h *APIHandler) CompleteUpload(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	h.upload.CompleteUpload(w, r, uploadId)
}

func (h *APIHandler) CancelUpload(w http.ResponseWriter, r *http.Request, uploadId generated.UploadId) {
	h.upload.CancelUpload(w, r, uploadId)
}

// --- System ---

func (h *APIHandler) GetServiceInfo(w http.ResponseWriter, r *http.Request) {
	h.system.GetServiceInfo(w, r)
}

func (h *APIHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	h.system.GetOpenAPISpec(w, r)
}

// --- Health ---

func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// --- Metrics ---

func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)
