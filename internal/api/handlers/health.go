// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bigkaa/govideolab/upload-module/internal/config"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// RegistryReadinessChecker — интерфейс для проверки готовности реестра сессий.
type RegistryReadinessChecker interface {
	IsReady() bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version string
	// stagingDir — директория незавершённых загрузок (для проверки FS)
	stagingDir string
	// dataDir — директория готовых файлов (для проверки FS)
	dataDir string
	// reg — реестр сессий для проверки готовности после восстановления
	reg RegistryReadinessChecker
}

// NewHealthHandler создаёт обработчик health endpoints.
// Без параметров — базовая проверка (для обратной совместимости).
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		version: config.Version,
	}
}

// NewHealthHandlerFull создаёт обработчик health endpoints с реальными проверками.
func NewHealthHandlerFull(stagingDir, dataDir string, reg RegistryReadinessChecker) *HealthHandler {
	return &HealthHandler{
		version:    config.Version,
		stagingDir: stagingDir,
		dataDir:    dataDir,
		reg:        reg,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "upload-module",
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: staging и data директории на запись, готовность реестра сессий.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	// Проверка staging директории
	stagingCheck := h.checkDir(h.stagingDir, "staging")
	if stagingCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка data директории
	dataCheck := h.checkDir(h.dataDir, "data")
	if dataCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	// Проверка реестра: сессии восстановлены из манифестов
	registryReady := true
	if h.reg != nil {
		registryReady = h.reg.IsReady()
	}
	if !registryReady {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   "upload-module",
		"checks": map[string]any{
			"staging":  stagingCheck,
			"data":     dataCheck,
			"registry": map[string]any{"ready": registryReady},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// checkDir проверяет доступность директории на запись.
func (h *HealthHandler) checkDir(dir, name string) map[string]any {
	if dir == "" {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	testFile := filepath.Join(dir, ".health_check")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": "Директория " + name + " недоступна для записи: " + err.Error(),
		}
	}
	_ = os.Remove(testFile)

	return map[string]any{
		"status": "ok",
	}
}
