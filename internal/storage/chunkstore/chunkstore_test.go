package chunkstore

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *ChunkStore {
	t.Helper()
	base := t.TempDir()
	cs, err := New(filepath.Join(base, "staging"), filepath.Join(base, "data"))
	if err != nil {
		t.Fatalf("ошибка создания ChunkStore: %v", err)
	}
	return cs
}

// TestNew_CreatesDirectories проверяет создание обеих директорий.
func TestNew_CreatesDirectories(t *testing.T) {
	cs := newTestStore(t)

	for _, dir := range []string{cs.StagingDir(), cs.CompletedDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("директория не создана: %v", err)
		}
		if !info.IsDir() {
			t.Fatalf("путь %s не является директорией", dir)
		}
	}
}

// TestAllocate проверяет предварительную аллокацию файла заявленного размера.
func TestAllocate(t *testing.T) {
	cs := newTestStore(t)

	if err := cs.Allocate("video.mp4", 1000); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}

	size, err := cs.StagingSize("video.mp4")
	if err != nil {
		t.Fatalf("ошибка получения размера: %v", err)
	}
	if size != 1000 {
		t.Errorf("размер: ожидалось 1000, получено %d", size)
	}
}

// TestAllocate_Duplicate проверяет отказ при повторной аллокации того же имени.
func TestAllocate_Duplicate(t *testing.T) {
	cs := newTestStore(t)

	if err := cs.Allocate("dup.mp4", 100); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}
	if err := cs.Allocate("dup.mp4", 100); err == nil {
		t.Error("ожидалась ошибка повторной аллокации")
	}
}

// TestWriteAt_OutOfOrder проверяет запись чанков в обратном порядке:
// итоговое содержимое не зависит от порядка прихода.
func TestWriteAt_OutOfOrder(t *testing.T) {
	cs := newTestStore(t)

	content := []byte("0123456789abcdefghij")
	if err := cs.Allocate("f.bin", int64(len(content))); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}

	// Сначала хвост, потом голова
	if err := cs.WriteAt("f.bin", 10, content[10:]); err != nil {
		t.Fatalf("ошибка записи хвоста: %v", err)
	}
	if err := cs.WriteAt("f.bin", 0, content[:10]); err != nil {
		t.Fatalf("ошибка записи головы: %v", err)
	}

	data, err := os.ReadFile(cs.StagingPath("f.bin"))
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Errorf("содержимое не совпадает: %q != %q", data, content)
	}
}

// TestWriteAt_Concurrent проверяет конкурентные позиционные записи
// в непересекающиеся смещения одного файла.
func TestWriteAt_Concurrent(t *testing.T) {
	cs := newTestStore(t)

	const chunkSize = 1024
	const chunks = 16

	content := make([]byte, chunkSize*chunks)
	for i := range content {
		content[i] = byte(i % 251)
	}

	if err := cs.Allocate("c.bin", int64(len(content))); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, chunks)
	for i := 0; i < chunks; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			off := int64(idx * chunkSize)
			if err := cs.WriteAt("c.bin", off, content[off:off+chunkSize]); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("ошибка конкурентной записи: %v", err)
	}

	data, err := os.ReadFile(cs.StagingPath("c.bin"))
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое повреждено после конкурентных записей")
	}
}

// TestWriteAt_MissingFile проверяет ошибку записи в неаллоцированный файл.
func TestWriteAt_MissingFile(t *testing.T) {
	cs := newTestStore(t)

	if err := cs.WriteAt("ghost.bin", 0, []byte("data")); err == nil {
		t.Error("ожидалась ошибка записи в несуществующий файл")
	}
}

// TestFinalize проверяет перенос staging-файла в директорию готовых.
func TestFinalize(t *testing.T) {
	cs := newTestStore(t)

	content := []byte("final content")
	if err := cs.Allocate("done.bin", int64(len(content))); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}
	if err := cs.WriteAt("done.bin", 0, content); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	path, err := cs.Finalize("done.bin")
	if err != nil {
		t.Fatalf("ошибка финализации: %v", err)
	}

	if path != cs.CompletedPath("done.bin") {
		t.Errorf("неожиданный финальный путь: %s", path)
	}
	if cs.StagingExists("done.bin") {
		t.Error("staging-файл должен быть перенесён")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ошибка чтения готового файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое готового файла не совпадает")
	}
}

// TestFinalize_Missing проверяет ошибку финализации несуществующего файла.
func TestFinalize_Missing(t *testing.T) {
	cs := newTestStore(t)

	if _, err := cs.Finalize("ghost.bin"); err == nil {
		t.Error("ожидалась ошибка финализации несуществующего файла")
	}
}

// TestDiscard проверяет удаление staging-файла.
func TestDiscard(t *testing.T) {
	cs := newTestStore(t)

	if err := cs.Allocate("trash.bin", 10); err != nil {
		t.Fatalf("ошибка аллокации: %v", err)
	}
	if err := cs.Discard("trash.bin"); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if cs.StagingExists("trash.bin") {
		t.Error("staging-файл должен быть удалён")
	}

	// Повторное удаление — не ошибка
	if err := cs.Discard("trash.bin"); err != nil {
		t.Errorf("удаление несуществующего файла не должно быть ошибкой: %v", err)
	}
}

// TestGenerateStorageName проверяет генерацию имени staging-файла.
func TestGenerateStorageName(t *testing.T) {
	name := GenerateStorageName("My Holiday Video.MP4")

	if !strings.HasSuffix(name, ".mp4") {
		t.Errorf("расширение должно приводиться к нижнему регистру: %s", name)
	}
	if strings.Contains(name, " ") {
		t.Errorf("имя не должно содержать пробелов: %s", name)
	}

	// Имена уникальны между вызовами
	if name == GenerateStorageName("My Holiday Video.MP4") {
		t.Error("имена должны быть уникальными")
	}
}

// TestSanitize проверяет очистку строк для имени файла.
func TestSanitize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"video", "video"},
		{"my video", "myvideo"},
		{"cam-01_front", "cam-01_front"},
		{"v@#$%", "v"},
		{"", "upload"},
		{"видео", "видео"},
	}

	for _, tt := range tests {
		if got := sanitize(tt.input); got != tt.expected {
			t.Errorf("sanitize(%q): ожидалось %q, получено %q", tt.input, tt.expected, got)
		}
	}
}
