// Пакет chunkstore — физическое размещение байтовых диапазонов
// в один непрерывный файл, независимо от порядка прихода чанков.
//
// Ключевой инвариант: позиционная запись (WriteAt) в предварительно
// аллоцированный файл, а не append. Конкурентные записи в
// непересекающиеся смещения одного файла не повреждают ранее
// записанные области и не требуют общего файлового замка.
//
// Жизненный цикл staging-файла: Allocate → WriteAt* → Finalize
// (fsync + атомарный rename в директорию готовых файлов) либо Discard.
package chunkstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChunkStore — управление staging-файлами сессий загрузки.
type ChunkStore struct {
	// stagingDir — директория неполных файлов (UM_STAGING_DIR)
	stagingDir string
	// completedDir — директория собранных файлов (UM_DATA_DIR)
	completedDir string
}

// New создаёт ChunkStore. Проверяет и создаёт обе директории,
// если они не существуют.
func New(stagingDir, completedDir string) (*ChunkStore, error) {
	if err := os.MkdirAll(stagingDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать staging-директорию %s: %w", stagingDir, err)
	}
	if err := os.MkdirAll(completedDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", completedDir, err)
	}

	return &ChunkStore{
		stagingDir:   stagingDir,
		completedDir: completedDir,
	}, nil
}

// Allocate создаёт staging-файл и предварительно выделяет под него
// место заявленного размера (truncate). Запись в любое смещение
// внутри [0, size) после этого не меняет длину файла.
func (cs *ChunkStore) Allocate(storageName string, size int64) error {
	path := cs.StagingPath(storageName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка создания staging-файла %s: %w", storageName, err)
	}

	if err := f.Truncate(size); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("ошибка аллокации %d байт для %s: %w", size, storageName, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("ошибка закрытия staging-файла %s: %w", storageName, err)
	}

	return nil
}

// WriteAt записывает payload в staging-файл по смещению offset.
// Безопасен для конкурентных вызовов с непересекающимися смещениями:
// pwrite не сдвигает файловый курсор и не трогает соседние области.
// Файл открывается на каждый вызов — дескриптор не разделяется
// между горутинами.
func (cs *ChunkStore) WriteAt(storageName string, offset int64, payload []byte) error {
	path := cs.StagingPath(storageName)

	f, err := os.OpenFile(path, os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("ошибка открытия staging-файла %s: %w", storageName, err)
	}
	defer f.Close()

	n, err := f.WriteAt(payload, offset)
	if err != nil {
		return fmt.Errorf("ошибка записи %d байт по смещению %d в %s: %w", len(payload), offset, storageName, err)
	}
	if n != len(payload) {
		return fmt.Errorf("неполная запись в %s: %d из %d байт", storageName, n, len(payload))
	}

	return nil
}

// Finalize запечатывает staging-файл: fsync и атомарный rename
// в директорию готовых файлов. Возвращает финальный абсолютный путь.
// Вызывается координатором только после подтверждения полного покрытия.
func (cs *ChunkStore) Finalize(storageName string) (string, error) {
	stagingPath := cs.StagingPath(storageName)
	finalPath := cs.CompletedPath(storageName)

	f, err := os.OpenFile(stagingPath, os.O_RDWR, 0o640)
	if err != nil {
		return "", fmt.Errorf("ошибка открытия staging-файла %s: %w", storageName, err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("ошибка fsync %s: %w", storageName, err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("ошибка закрытия %s: %w", storageName, err)
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		return "", fmt.Errorf("ошибка атомарного переименования %s: %w", storageName, err)
	}

	return finalPath, nil
}

// Discard удаляет staging-файл отменённой или заброшенной сессии.
// Возвращает nil, если файл уже не существует.
func (cs *ChunkStore) Discard(storageName string) error {
	err := os.Remove(cs.StagingPath(storageName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления staging-файла %s: %w", storageName, err)
	}
	return nil
}

// StagingExists проверяет существование staging-файла.
func (cs *ChunkStore) StagingExists(storageName string) bool {
	_, err := os.Stat(cs.StagingPath(storageName))
	return err == nil
}

// StagingSize возвращает размер staging-файла.
func (cs *ChunkStore) StagingSize(storageName string) (int64, error) {
	info, err := os.Stat(cs.StagingPath(storageName))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения информации о %s: %w", storageName, err)
	}
	return info.Size(), nil
}

// StagingPath возвращает абсолютный путь staging-файла.
func (cs *ChunkStore) StagingPath(storageName string) string {
	return filepath.Join(cs.stagingDir, storageName)
}

// CompletedPath возвращает абсолютный путь готового файла.
func (cs *ChunkStore) CompletedPath(storageName string) string {
	return filepath.Join(cs.completedDir, storageName)
}

// StagingDir возвращает путь staging-директории.
func (cs *ChunkStore) StagingDir() string {
	return cs.stagingDir
}

// CompletedDir возвращает путь директории готовых файлов.
func (cs *ChunkStore) CompletedDir() string {
	return cs.completedDir
}

// GenerateStorageName генерирует имя staging-файла.
// Формат: {name}_{timestamp}_{uuid}.{ext}
// Пример: holiday_20260824150405_a1b2c3d4.mp4
func GenerateStorageName(originalFilename string) string {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	name := strings.TrimSuffix(originalFilename, filepath.Ext(originalFilename))

	name = sanitize(name)
	if len(name) > 50 {
		name = name[:50]
	}

	ts := time.Now().UTC().Format("20060102150405")
	uid := uuid.New().String()[:8] // Короткий UUID для уникальности

	if ext != "" {
		return fmt.Sprintf("%s_%s_%s%s", name, ts, uid, ext)
	}
	return fmt.Sprintf("%s_%s_%s", name, ts, uid)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "upload"
	}
	return result.String()
}
