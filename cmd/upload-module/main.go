// Точка входа Upload Module — модуля приёма больших файлов по частям.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/bigkaa/govideolab/upload-module/internal/api/handlers"
	"github.com/bigkaa/govideolab/upload-module/internal/api/middleware"
	"github.com/bigkaa/govideolab/upload-module/internal/config"
	"github.com/bigkaa/govideolab/upload-module/internal/registry"
	"github.com/bigkaa/govideolab/upload-module/internal/server"
	"github.com/bigkaa/govideolab/upload-module/internal/service"
	"github.com/bigkaa/govideolab/upload-module/internal/storage/chunkstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Upload Module запускается",
		slog.String("instance_id", cfg.InstanceID),
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("staging_dir", cfg.StagingDir),
		slog.String("data_dir", cfg.DataDir),
	)

	// --- Инициализация компонентов ---

	// 1. Хранилище чанков (staging и директория готовых файлов)
	store, err := chunkstore.New(cfg.StagingDir, cfg.DataDir)
	if err != nil {
		logger.Error("Ошибка инициализации ChunkStore", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. In-memory реестр сессий: восстановление из манифестов
	reg := registry.New(logger)
	if err := reg.BuildFromDir(store); err != nil {
		logger.Error("Ошибка восстановления реестра сессий", slog.String("error", err.Error()))
		os.Exit(1)
	}
	middleware.ActiveSessions.Set(float64(reg.Count()))
	logger.Info("Реестр сессий восстановлен", slog.Int("sessions", reg.Count()))

	// 3. Кэш результатов финализации (идемпотентный complete)
	results := service.NewResultCache(cfg.ResultCacheSize, cfg.ResultCacheTTL)

	// 4. WebSocket-хаб уведомлений о прогрессе
	notifier := service.NewNotifier(logger)

	// 5. Координатор сессий загрузки
	coordinator := service.NewCoordinator(cfg, reg, store, results, notifier, logger)

	// 6. Фоновые процессы
	ctx := context.Background()

	// 6.1 Reaper — очистка просроченных сессий и осиротевших staging-файлов
	reaper := service.NewReaper(reg, store, cfg.SessionTTL, cfg.ReaperInterval, notifier, logger)
	reaper.Start(ctx)

	// 6.2 topologymetrics — мониторинг analysis-pipeline (если настроен)
	var dephealthSvc *service.DephealthService
	if cfg.AnalysisURL != "" {
		dephealthName := cfg.DephealthName
		if dephealthName == "" {
			hostname, _ := os.Hostname()
			dephealthName = parseOwnerName(hostname)
		}

		dephealthSvc, err = service.NewDephealthService(
			dephealthName,
			cfg.DephealthGroup,
			cfg.DephealthDepName,
			cfg.AnalysisURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("analysis_url", cfg.AnalysisURL),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 7. Handlers
	uploadHandler := handlers.NewUploadHandler(coordinator)
	systemHandler := handlers.NewSystemHandler(cfg, reg, diskUsageFn(cfg.DataDir), logger)
	healthHandler := handlers.NewHealthHandlerFull(cfg.StagingDir, cfg.DataDir, reg)
	metricsHandler := server.NewMetricsHandler()

	// Единый API handler
	apiHandler := handlers.NewAPIHandler(
		uploadHandler,
		systemHandler,
		healthHandler,
		metricsHandler,
	)

	// 8. JWT middleware (опционально, по UM_JWKS_URL)
	opts := server.Options{
		WSHandler: notifier,
	}
	if cfg.JWKSUrl != "" {
		jwtAuth, jwtErr := middleware.NewJWTAuth(middleware.JWTAuthConfig{
			JWKSURL:         cfg.JWKSUrl,
			CACertPath:      cfg.JWKSCACert,
			RequiredScope:   cfg.JWTRequiredScope,
			ClientTimeout:   10 * time.Second,
			RefreshInterval: 5 * time.Minute,
			JWTLeeway:       30 * time.Second,
		}, logger)
		if jwtErr != nil {
			// JWT недоступен — запускаем без аутентификации (для разработки)
			logger.Warn("JWT JWKS недоступен, запуск без аутентификации",
				slog.String("jwks_url", cfg.JWKSUrl),
				slog.String("error", jwtErr.Error()),
			)
		} else {
			opts.AuthMiddleware = jwtAuth.Middleware()
			logger.Info("JWT аутентификация настроена",
				slog.String("jwks_url", cfg.JWKSUrl),
			)
		}
	}

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, opts)

	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// --- Graceful shutdown фоновых процессов ---
	logger.Info("Остановка фоновых процессов...")

	reaper.Stop()
	notifier.Close()
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Upload Module остановлен")
}

// diskUsageFn возвращает функцию для получения информации об ёмкости диска.
func diskUsageFn(dataDir string) handlers.DiskUsageFn {
	return func() (int64, int64, int64, error) {
		return getDiskUsage(dataDir)
	}
}

// parseOwnerName извлекает имя владельца пода (Deployment или StatefulSet)
// из hostname, отбрасывая суффиксы ReplicaSet-хэша и ordinal-номера.
// Для непохожих на pod имён возвращает hostname как есть.
func parseOwnerName(hostname string) string {
	parts := strings.Split(hostname, "-")

	// Deployment: <owner>-<replicaset-хэш 8-10 симв.>-<суффикс 5 симв.>
	if len(parts) >= 3 {
		last := parts[len(parts)-1]
		hash := parts[len(parts)-2]
		if looksLikePodSuffix(last, 5, 5) && looksLikePodSuffix(hash, 8, 10) {
			return strings.Join(parts[:len(parts)-2], "-")
		}
	}

	// StatefulSet: <owner>-<ordinal>
	if len(parts) >= 2 && isAllDigits(parts[len(parts)-1]) {
		return strings.Join(parts[:len(parts)-1], "-")
	}

	return hostname
}

// looksLikePodSuffix проверяет, похожа ли строка на сгенерированный
// Kubernetes суффикс: строчные буквы и цифры, хотя бы одна цифра.
func looksLikePodSuffix(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return hasDigit
}

// isAllDigits проверяет, что строка состоит только из цифр.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
