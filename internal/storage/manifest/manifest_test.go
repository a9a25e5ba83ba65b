package manifest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bigkaa/govideolab/upload-module/internal/domain/rangeset"
)

func testManifest() *Manifest {
	return &Manifest{
		UploadID:         "a1b2c3d4-e5f6-7890-abcd-ef1234567890",
		OriginalFilename: "holiday.mp4",
		StorageName:      "holiday_20260824_a1b2c3d4.mp4",
		DeclaredSize:     1000,
		State:            "receiving",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
		Ranges:           []rangeset.Range{{Start: 0, End: 499}},
	}
}

// TestWriteRead проверяет запись и обратное чтение манифеста.
func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4"+Suffix)

	m := testManifest()
	if err := Write(path, m); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}

	if got.UploadID != m.UploadID {
		t.Errorf("upload_id: ожидалось %s, получено %s", m.UploadID, got.UploadID)
	}
	if got.DeclaredSize != m.DeclaredSize {
		t.Errorf("declared_size: ожидалось %d, получено %d", m.DeclaredSize, got.DeclaredSize)
	}
	if len(got.Ranges) != 1 || got.Ranges[0] != m.Ranges[0] {
		t.Errorf("ranges: ожидалось %v, получено %v", m.Ranges, got.Ranges)
	}
}

// TestWrite_NoTmpFile проверяет отсутствие temp-файла после записи.
func TestWrite_NoTmpFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4"+Suffix)

	if err := Write(path, testManifest()); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("временный файл не должен существовать")
	}
}

// TestRead_Invalid проверяет ошибку чтения повреждённого манифеста.
func TestRead_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Suffix)
	if err := os.WriteFile(path, []byte("{broken"), 0o640); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Error("ожидалась ошибка для невалидного JSON")
	}
}

// TestDelete проверяет удаление манифеста, включая повторное.
func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.mp4"+Suffix)
	if err := Write(path, testManifest()); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	if err := Delete(path); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if err := Delete(path); err != nil {
		t.Errorf("повторное удаление не должно быть ошибкой: %v", err)
	}
}

// TestScanDir проверяет сканирование staging-директории:
// валидные манифесты возвращаются, повреждённые пропускаются.
func TestScanDir(t *testing.T) {
	dir := t.TempDir()

	m1 := testManifest()
	m2 := testManifest()
	m2.UploadID = "ffffffff-0000-0000-0000-000000000000"
	m2.StorageName = "other_20260824_ffffffff.mp4"

	if err := Write(filepath.Join(dir, m1.StorageName+Suffix), m1); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}
	if err := Write(filepath.Join(dir, m2.StorageName+Suffix), m2); err != nil {
		t.Fatalf("ошибка записи: %v", err)
	}

	// Повреждённый манифест и посторонний файл
	if err := os.WriteFile(filepath.Join(dir, "broken.mp4"+Suffix), []byte("???"), 0o640); err != nil {
		t.Fatalf("подготовка: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "data.mp4"), []byte("not a manifest"), 0o640); err != nil {
		t.Fatalf("подготовка: %v", err)
	}

	manifests, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ошибка сканирования: %v", err)
	}
	if len(manifests) != 2 {
		t.Errorf("ожидалось 2 манифеста, получено %d", len(manifests))
	}
}

// TestIsManifestFile проверяет распознавание файлов манифестов.
func TestIsManifestFile(t *testing.T) {
	if !IsManifestFile("/staging/v.mp4" + Suffix) {
		t.Error("файл с суффиксом должен распознаваться")
	}
	if IsManifestFile("/staging/v.mp4") {
		t.Error("файл данных не должен распознаваться")
	}
}
