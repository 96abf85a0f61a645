package filestore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNew_CreatesDirectory проверяет создание директории загрузок.
func TestNew_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if fs.UploadDir() != dir {
		t.Errorf("ожидался путь %s, получен %s", dir, fs.UploadDir())
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("директория не создана: %v", err)
	}
	if !info.IsDir() {
		t.Fatal("путь не является директорией")
	}
}

// TestSaveFile проверяет сохранение файла с подсчётом SHA-256.
func TestSaveFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("Глава первая. Тестовое содержимое книги.")
	reader := bytes.NewReader(content)

	result, err := fs.SaveFile(reader, "voyna-i-mir.pdf", "User_Admin")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	// Проверяем размер
	if result.Size != int64(len(content)) {
		t.Errorf("размер: ожидалось %d, получено %d", len(content), result.Size)
	}

	// Проверяем checksum
	expectedHash := sha256.Sum256(content)
	expectedChecksum := hex.EncodeToString(expectedHash[:])
	if result.Checksum != expectedChecksum {
		t.Errorf("checksum: ожидалось %s, получено %s", expectedChecksum, result.Checksum)
	}

	// Проверяем, что файл существует на диске
	if _, err := os.Stat(result.FullPath); os.IsNotExist(err) {
		t.Error("файл не найден на диске")
	}

	// Проверяем формат имени файла
	if !strings.Contains(result.StoragePath, "voyna-i-mir") {
		t.Errorf("имя файла должно содержать оригинальное имя: %s", result.StoragePath)
	}
	if !strings.Contains(result.StoragePath, "User_Admin") {
		t.Errorf("имя файла должно содержать имя пользователя: %s", result.StoragePath)
	}
	if !strings.HasSuffix(result.StoragePath, ".pdf") {
		t.Errorf("имя файла должно сохранять расширение: %s", result.StoragePath)
	}

	// Проверяем содержимое
	data, err := os.ReadFile(result.FullPath)
	if err != nil {
		t.Fatalf("ошибка чтения файла: %v", err)
	}
	if !bytes.Equal(data, content) {
		t.Error("содержимое файла не совпадает с исходным")
	}
}

// TestSaveFile_NoTempLeftover проверяет отсутствие temp файлов после записи.
func TestSaveFile_NoTempLeftover(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if _, err := fs.SaveFile(bytes.NewReader([]byte("данные")), "book.epub", "admin"); err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ошибка чтения директории: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("обнаружен незачищенный temp файл: %s", e.Name())
		}
	}
}

// TestReadFile проверяет roundtrip запись → чтение.
func TestReadFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	content := []byte("содержимое для чтения")
	result, err := fs.SaveFile(bytes.NewReader(content), "read-test.txt", "member")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	f, err := fs.ReadFile(result.StoragePath)
	if err != nil {
		t.Fatalf("ошибка открытия файла: %v", err)
	}
	defer f.Close()

	buf := make([]byte, len(content))
	if _, err := f.Read(buf); err != nil {
		t.Fatalf("ошибка чтения: %v", err)
	}
	if !bytes.Equal(buf, content) {
		t.Error("прочитанные данные не совпадают с записанными")
	}
}

// TestReadFile_NotFound проверяет ошибку при чтении несуществующего файла.
func TestReadFile_NotFound(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	if _, err := fs.ReadFile("no-such-file.pdf"); err == nil {
		t.Fatal("ожидалась ошибка для несуществующего файла")
	}
}

// TestDeleteFile проверяет удаление и его идемпотентность.
func TestDeleteFile(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	result, err := fs.SaveFile(bytes.NewReader([]byte("удаляемые данные")), "del.pdf", "admin")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	if err := fs.DeleteFile(result.StoragePath); err != nil {
		t.Fatalf("ошибка удаления: %v", err)
	}
	if fs.FileExists(result.StoragePath) {
		t.Error("файл существует после удаления")
	}

	// Повторное удаление — без ошибки
	if err := fs.DeleteFile(result.StoragePath); err != nil {
		t.Errorf("повторное удаление должно быть идемпотентным: %v", err)
	}
}

// TestListFiles проверяет листинг обычных файлов.
func TestListFiles(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	if err != nil {
		t.Fatalf("ошибка создания FileStore: %v", err)
	}

	r1, err := fs.SaveFile(bytes.NewReader([]byte("один")), "a.pdf", "admin")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}
	r2, err := fs.SaveFile(bytes.NewReader([]byte("два")), "b.pdf", "admin")
	if err != nil {
		t.Fatalf("ошибка сохранения: %v", err)
	}

	// Поддиректории игнорируются
	if err := os.Mkdir(filepath.Join(dir, "subdir"), 0o750); err != nil {
		t.Fatalf("ошибка создания поддиректории: %v", err)
	}

	files, err := fs.ListFiles()
	if err != nil {
		t.Fatalf("ошибка листинга: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ожидалось 2 файла, получено %d", len(files))
	}

	found := map[string]bool{}
	for _, f := range files {
		found[f] = true
	}
	if !found[r1.StoragePath] || !found[r2.StoragePath] {
		t.Errorf("листинг не содержит сохранённые файлы: %v", files)
	}
}

// TestGenerateStorageName проверяет уникальность и санитизацию имён.
func TestGenerateStorageName(t *testing.T) {
	n1 := generateStorageName("Война и мир.pdf", "User_Admin")
	n2 := generateStorageName("Война и мир.pdf", "User_Admin")

	if n1 == n2 {
		t.Error("имена для одинаковых входов должны быть уникальными")
	}
	if !strings.HasSuffix(n1, ".pdf") {
		t.Errorf("расширение должно сохраняться: %s", n1)
	}
	if strings.ContainsAny(n1, "/\\ ") {
		t.Errorf("имя содержит небезопасные символы: %s", n1)
	}

	// Пустое после санитизации имя заменяется на file
	n3 := generateStorageName("???.txt", "!!!")
	if !strings.HasPrefix(n3, "file_file_") {
		t.Errorf("ожидался fallback 'file' для пустых имён: %s", n3)
	}
}
