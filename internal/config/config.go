// Пакет config — загрузка и валидация конфигурации Upload Module
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Upload Module.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Уникальный идентификатор инстанса (например, "um-moscow-01")
	InstanceID string
	// Путь к директории неполных staging-файлов
	StagingDir string
	// Путь к директории готовых файлов
	DataDir string
	// Максимальный размер файла в байтах
	MaxFileSize int64
	// Разрешённые расширения файлов без точки, в нижнем регистре.
	// Пустой список отключает проверку.
	AllowedExtensions []string
	// TTL неактивной сессии до отмены reaper'ом
	SessionTTL time.Duration
	// Интервал запуска reaper
	ReaperInterval time.Duration
	// Размер LRU-кэша результатов финализации
	ResultCacheSize int
	// TTL записи в кэше результатов финализации
	ResultCacheTTL time.Duration
	// URL JWKS endpoint (опционально; пустое значение отключает
	// проверку JWT, сессии адресуются только по upload_id)
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string
	// Scope, обязательный для доступа к /upload/* при включённом JWT
	// (опционально; пустое значение отключает проверку scope)
	JWTRequiredScope string
	// Путь к TLS сертификату (опционально; вместе с ключом включает HTTPS)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// URL analysis-pipeline для мониторинга зависимости (опционально)
	AnalysisURL string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics (UM_DEPHEALTH_GROUP)
	DephealthGroup string
	// Имя зависимости (целевого сервиса) в метриках topologymetrics (UM_DEPHEALTH_DEP_NAME)
	DephealthDepName string
	// Имя владельца пода для метки name в topologymetrics (DEPHEALTH_NAME)
	DephealthName string

	// Таймаут graceful shutdown HTTP-сервера.
	// Должен быть меньше K8s terminationGracePeriodSeconds (по умолчанию 30s).
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// UM_PORT — порт HTTP-сервера (по умолчанию 8030)
	port, err := getEnvInt("UM_PORT", 8030)
	if err != nil {
		return nil, fmt.Errorf("UM_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("UM_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// UM_INSTANCE_ID — идентификатор инстанса (по умолчанию hostname)
	hostname, _ := os.Hostname()
	cfg.InstanceID = getEnvDefault("UM_INSTANCE_ID", hostname)

	// UM_STAGING_DIR — обязательный
	cfg.StagingDir, err = getEnvRequired("UM_STAGING_DIR")
	if err != nil {
		return nil, err
	}

	// UM_DATA_DIR — обязательный
	cfg.DataDir, err = getEnvRequired("UM_DATA_DIR")
	if err != nil {
		return nil, err
	}
	if cfg.DataDir == cfg.StagingDir {
		return nil, fmt.Errorf("UM_DATA_DIR: должен отличаться от UM_STAGING_DIR")
	}

	// UM_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 2 GiB).
	// Принимает человекочитаемые значения: "500MB", "2g", "1073741824".
	maxFileSize, err := getEnvSize("UM_MAX_FILE_SIZE", 2*units.GiB)
	if err != nil {
		return nil, fmt.Errorf("UM_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("UM_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// UM_ALLOWED_EXTENSIONS — список расширений через запятую
	// (по умолчанию видеоформаты). Значение "*" отключает проверку.
	extRaw := getEnvDefault("UM_ALLOWED_EXTENSIONS", "mp4,avi,mov,webm,mkv")
	if extRaw != "*" {
		for _, ext := range strings.Split(extRaw, ",") {
			ext = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
			if ext == "" {
				continue
			}
			cfg.AllowedExtensions = append(cfg.AllowedExtensions, ext)
		}
	}

	// UM_SESSION_TTL — TTL неактивной сессии (по умолчанию 2h)
	cfg.SessionTTL, err = getEnvDuration("UM_SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("UM_SESSION_TTL: %w", err)
	}

	// UM_REAPER_INTERVAL — интервал reaper (по умолчанию 5m)
	cfg.ReaperInterval, err = getEnvDuration("UM_REAPER_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UM_REAPER_INTERVAL: %w", err)
	}

	// UM_RESULT_CACHE_SIZE — размер кэша результатов (по умолчанию 1024)
	cfg.ResultCacheSize, err = getEnvInt("UM_RESULT_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("UM_RESULT_CACHE_SIZE: %w", err)
	}

	// UM_RESULT_CACHE_TTL — TTL кэша результатов (по умолчанию 24h)
	cfg.ResultCacheTTL, err = getEnvDuration("UM_RESULT_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("UM_RESULT_CACHE_TTL: %w", err)
	}

	// UM_JWKS_URL — опциональный, пустое значение отключает JWT
	cfg.JWKSUrl = getEnvDefault("UM_JWKS_URL", "")

	// UM_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("UM_JWKS_CA_CERT", "")

	// UM_JWT_REQUIRED_SCOPE — обязательный scope токена (опционально)
	cfg.JWTRequiredScope = getEnvDefault("UM_JWT_REQUIRED_SCOPE", "")

	// UM_TLS_CERT / UM_TLS_KEY — опциональная пара для HTTPS
	cfg.TLSCert = getEnvDefault("UM_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("UM_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("UM_TLS_CERT и UM_TLS_KEY должны задаваться вместе")
	}

	// UM_ANALYSIS_URL — URL analysis-pipeline (опционально)
	cfg.AnalysisURL = getEnvDefault("UM_ANALYSIS_URL", "")

	// UM_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UM_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UM_LOG_LEVEL: %w", err)
	}

	// UM_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("UM_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UM_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// UM_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("UM_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UM_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// UM_DEPHEALTH_GROUP — имя группы в метриках topologymetrics (по умолчанию "upload-module")
	cfg.DephealthGroup = getEnvDefault("UM_DEPHEALTH_GROUP", "upload-module")

	// UM_DEPHEALTH_DEP_NAME — имя зависимости в метриках topologymetrics (по умолчанию "analysis-pipeline")
	cfg.DephealthDepName = getEnvDefault("UM_DEPHEALTH_DEP_NAME", "analysis-pipeline")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics (без префикса модуля)
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	// UM_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("UM_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UM_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvSize возвращает размер в байтах из переменной окружения.
// Принимает человекочитаемые значения ("500MB", "2g") и простые числа.
func getEnvSize(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := units.RAMInBytes(val)
	if err != nil {
		return 0, fmt.Errorf("некорректный размер: %q (используйте формат: 500MB, 2g, 1073741824)", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 5m, 2h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
