// system.go — обработчики GET /api/v1/info и GET /api/v1/openapi.json.
// Публичные endpoints (без аутентификации) для service discovery и мониторинга.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/bigkaa/govideolab/upload-module/internal/api/apispec"
	"github.com/bigkaa/govideolab/upload-module/internal/api/errors"
	"github.com/bigkaa/govideolab/upload-module/internal/api/generated"
	"github.com/bigkaa/govideolab/upload-module/internal/config"
	"github.com/bigkaa/govideolab/upload-module/internal/registry"
)

// DiskUsageFn — функция получения дискового пространства директории
// готовых файлов. Возвращает total, used, available в байтах.
type DiskUsageFn func() (total, used, available int64, err error)

// SystemHandler — обработчик системных endpoints.
type SystemHandler struct {
	cfg       *config.Config
	reg       *registry.Registry
	diskUsage DiskUsageFn
	logger    *slog.Logger
}

// NewSystemHandler создаёт обработчик системных endpoints.
// diskUsage может быть nil — capacity не включается в ответ.
func NewSystemHandler(cfg *config.Config, reg *registry.Registry, diskUsage DiskUsageFn, logger *slog.Logger) *SystemHandler {
	return &SystemHandler{
		cfg:       cfg,
		reg:       reg,
		diskUsage: diskUsage,
		logger:    logger.With(slog.String("component", "system_handler")),
	}
}

// GetServiceInfo обрабатывает GET /api/v1/info.
// Без аутентификации. Возвращает информацию о модуле для service discovery.
func (h *SystemHandler) GetServiceInfo(w http.ResponseWriter, _ *http.Request) {
	extensions := h.cfg.AllowedExtensions
	if extensions == nil {
		extensions = []string{}
	}

	resp := generated.ServiceInfo{
		Service:           "upload-module",
		Version:           config.Version,
		InstanceId:        h.cfg.InstanceID,
		MaxFileSize:       h.cfg.MaxFileSize,
		AllowedExtensions: extensions,
		ActiveSessions:    h.reg.Count(),
	}

	// Ёмкость диска директории готовых файлов
	if h.diskUsage != nil {
		total, used, available, err := h.diskUsage()
		if err != nil {
			h.logger.Warn("Ошибка получения дискового пространства", slog.String("error", err.Error()))
		} else {
			resp.Capacity = &generated.CapacityInfo{
				TotalBytes:     total,
				UsedBytes:      used,
				AvailableBytes: available,
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetOpenAPISpec обрабатывает GET /api/v1/openapi.json.
// Отдаёт встроенную OpenAPI-спецификацию в формате JSON.
func (h *SystemHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	data, err := apispec.JSON()
	if err != nil {
		h.logger.Error("Ошибка загрузки OpenAPI спецификации", slog.String("error", err.Error()))
		errors.InternalError(w, "Ошибка загрузки OpenAPI спецификации")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
