// Пакет manifest — чтение и запись манифестов сессий (*.session.json).
// Манифест лежит рядом со staging-файлом и хранит учёт принятых
// диапазонов, что позволяет восстановить незавершённые сессии
// после рестарта процесса. Все записи атомарны: temp → rename.
//
// Манифест обновляется после каждого принятого чанка, поэтому fsync
// на каждую запись не выполняется: восстановление best-effort,
// потерянный диапазон клиент дошлёт повторно (приём идемпотентен).
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
)

// Suffix — суффикс файла манифеста рядом со staging-файлом.
const Suffix = ".session.json"

// Manifest — сериализуемое состояние сессии загрузки.
type Manifest struct {
	// UploadID — идентификатор сессии (UUID v4)
	UploadID string `json:"upload_id"`
	// OriginalFilename — имя файла, заявленное клиентом
	OriginalFilename string `json:"original_filename"`
	// StorageName — имя staging-файла
	StorageName string `json:"storage_name"`
	// DeclaredSize — заявленный размер файла в байтах
	DeclaredSize int64 `json:"declared_size"`
	// CorrelationID — идентификатор логической сессии пользователя
	CorrelationID string `json:"correlation_id,omitempty"`
	// State — состояние жизненного цикла на момент записи
	State string `json:"state"`
	// CreatedAt — время создания сессии (UTC)
	CreatedAt time.Time `json:"created_at"`
	// LastChunkAt — время последнего принятого чанка
	LastChunkAt time.Time `json:"last_chunk_at,omitempty"`
	// Ranges — принятые диапазоны после нормализации
	Ranges []rangeset.Range `json:"ranges"`
}

// PathFor возвращает путь манифеста для данного staging-файла.
// Пример: "/staging/v_123.mp4" → "/staging/v_123.mp4.session.json"
func PathFor(stagingFilePath string) string {
	return stagingFilePath + Suffix
}

// IsManifestFile проверяет, является ли путь файлом манифеста.
func IsManifestFile(path string) bool {
	return strings.HasSuffix(path, Suffix)
}

// Write атомарно записывает манифест.
// Паттерн: JSON → temp файл → atomic rename.
func Write(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации манифеста: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("ошибка записи временного манифеста: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования манифеста: %w", err)
	}

	return nil
}

// Read читает и десериализует манифест.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения манифеста %s: %w", path, err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("ошибка десериализации манифеста %s: %w", path, err)
	}

	return &m, nil
}

// Delete удаляет манифест. Возвращает nil, если файл уже не существует.
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления манифеста %s: %w", path, err)
	}
	return nil
}

// ScanDir возвращает все манифесты в staging-директории.
// Невалидные манифесты пропускаются — соответствующие staging-файлы
// подберёт reaper как осиротевшие.
func ScanDir(dir string) ([]*Manifest, error) {
	pattern := filepath.Join(dir, "*"+Suffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования директории %s: %w", dir, err)
	}

	var result []*Manifest
	for _, path := range matches {
		m, err := Read(path)
		if err != nil {
			continue
		}
		result = append(result, m)
	}

	return result, nil
}
