package blobstore

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *BlobStore {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(t.TempDir(), 5*time.Second, logger)
	if err != nil {
		t.Fatalf("не удалось создать BlobStore: %v", err)
	}
	return s
}

// writeTemp создаёт временный файл с содержимым content.
func writeTemp(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "upload-*")
	if err != nil {
		t.Fatalf("ошибка создания temp файла: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("ошибка записи temp файла: %v", err)
	}
	f.Close()
	return f.Name()
}

// --- Тесты дезинфекции ---

// TestSanitizePath проверяет нейтрализацию опасных путей.
func TestSanitizePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a/b", "a/b/"},
		{"/a/b/", "a/b/"},
		{"../../etc", "etc/"},
		{"a//b///c", "a/b/c/"},
		{"..", ""},
		{"", ""},
		{"a/../../b", "a/b/"},
		{`a\b`, "a/b/"},
	}
	for _, c := range cases {
		if got := SanitizePath(c.in); got != c.want {
			t.Errorf("SanitizePath(%q) = %q, ожидался %q", c.in, got, c.want)
		}
	}
}

// TestSanitizePath_NeverEscapesRoot проверяет, что результат
// не может разрешиться вне корня хранилища.
func TestSanitizePath_NeverEscapesRoot(t *testing.T) {
	root := "/srv/cumulus"
	inputs := []string{"../../etc/passwd", "..\\..\\windows", "a/../../../b", "....//etc"}
	for _, in := range inputs {
		full := filepath.Join(root, SanitizePath(in))
		if !strings.HasPrefix(full, root) {
			t.Errorf("SanitizePath(%q): путь %q вышел за корень", in, full)
		}
	}
}

// TestSanitizeName проверяет allow-list символов имени файла.
func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"mon fichier.txt", "mon fichier.txt"},
		{"rapport-2026_v1.pdf", "rapport-2026_v1.pdf"},
		{"../../etc/passwd", "etcpasswd"},
		{"photo..jpg", "photojpg"},
		{"a<b>c|d.txt", "abcd.txt"},
		{"notes~[draft](1).md", "notes~[draft](1).md"},
	}
	for _, c := range cases {
		if got := SanitizeName(c.in); got != c.want {
			t.Errorf("SanitizeName(%q) = %q, ожидался %q", c.in, got, c.want)
		}
	}
}

// TestNormalizeFolderPath проверяет каноническую форму пути метаданных.
func TestNormalizeFolderPath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"a/b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"//a///b", "/a/b"},
		{"../../etc", "/etc"},
		{"", "/"},
		{"/", "/"},
	}
	for _, c := range cases {
		if got := NormalizeFolderPath(c.in); got != c.want {
			t.Errorf("NormalizeFolderPath(%q) = %q, ожидался %q", c.in, got, c.want)
		}
	}
}

// --- Тесты IsReference ---

// TestIsReference проверяет распознавание ссылок по шаблону URL.
func TestIsReference(t *testing.T) {
	if !IsReference("http://example.org/file.pdf") {
		t.Error("http URL не распознан как ссылка")
	}
	if !IsReference("https://example.org/file.pdf") {
		t.Error("https URL не распознан как ссылка")
	}
	if IsReference("/srv/cumulus/a/b/file.pdf") {
		t.Error("дисковый путь распознан как ссылка")
	}
}

// --- Тесты дисковых операций ---

// TestStore_MovesFileAndProbes проверяет перемещение и определение метаданных.
func TestStore_MovesFileAndProbes(t *testing.T) {
	s := newTestStore(t)
	src := writeTemp(t, "<?xml version=\"1.0\"?><doc/>")

	info, err := s.Store(src, "/docs/reports", "rapport.xml")
	if err != nil {
		t.Fatalf("Store вернул ошибку: %v", err)
	}

	if !strings.HasPrefix(info.Location, s.Root()) {
		t.Errorf("блоб %q вне корня %q", info.Location, s.Root())
	}
	if info.Size == 0 {
		t.Error("размер блоба не определён")
	}
	if info.Mimetype == "" {
		t.Error("MIME-тип блоба не определён")
	}
	if _, err := os.Stat(info.Location); err != nil {
		t.Errorf("блоб отсутствует на диске: %v", err)
	}
	// Исходный temp файл должен быть перемещён
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("временный файл не был удалён после перемещения")
	}
}

// TestRename_MovesBlob проверяет перемещение блоба в новую папку.
func TestRename_MovesBlob(t *testing.T) {
	s := newTestStore(t)
	src := writeTemp(t, "contenu")

	stored, err := s.Store(src, "/a", "old.txt")
	if err != nil {
		t.Fatalf("Store вернул ошибку: %v", err)
	}

	moved, err := s.Rename("/a", "old.txt", "/b/c", "new.txt")
	if err != nil {
		t.Fatalf("Rename вернул ошибку: %v", err)
	}

	if _, err := os.Stat(stored.Location); !os.IsNotExist(err) {
		t.Error("старый блоб всё ещё существует после Rename")
	}
	if _, err := os.Stat(moved.Location); err != nil {
		t.Errorf("новый блоб отсутствует: %v", err)
	}
	if !strings.HasSuffix(moved.Location, filepath.Join("b", "c", "new.txt")) {
		t.Errorf("неожиданное расположение после Rename: %q", moved.Location)
	}
}

// TestDelete_FailsLoudlyOnMissing проверяет, что удаление
// несуществующего блоба — ошибка, а не молчаливый успех.
func TestDelete_FailsLoudlyOnMissing(t *testing.T) {
	s := newTestStore(t)

	src := writeTemp(t, "data")
	info, err := s.Store(src, "/x", "f.bin")
	if err != nil {
		t.Fatalf("Store вернул ошибку: %v", err)
	}

	if err := s.Delete(info.Location); err != nil {
		t.Fatalf("Delete существующего блоба вернул ошибку: %v", err)
	}
	if err := s.Delete(info.Location); err == nil {
		t.Error("Delete отсутствующего блоба должен возвращать ошибку")
	}
}

// TestSaveTemp проверяет запись потока во временный файл.
func TestSaveTemp(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveTemp(strings.NewReader("stream body"))
	if err != nil {
		t.Fatalf("SaveTemp вернул ошибку: %v", err)
	}
	t.Cleanup(func() { os.Remove(path) })

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ошибка чтения temp файла: %v", err)
	}
	if string(data) != "stream body" {
		t.Errorf("содержимое temp файла = %q", string(data))
	}
}

// --- Тесты ProbeRemote ---

// TestProbeRemote проверяет извлечение Content-Type и Content-Length.
func TestProbeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("ожидался HEAD, получен %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/pdf; charset=binary")
		w.Header().Set("Content-Length", "12345")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := newTestStore(t)
	info, err := s.ProbeRemote(t.Context(), srv.URL+"/doc.pdf")
	if err != nil {
		t.Fatalf("ProbeRemote вернул ошибку: %v", err)
	}

	if info.Mimetype != "application/pdf" {
		t.Errorf("Mimetype = %q, ожидался application/pdf", info.Mimetype)
	}
	if info.Size != 12345 {
		t.Errorf("Size = %d, ожидался 12345", info.Size)
	}
	if info.Location != srv.URL+"/doc.pdf" {
		t.Errorf("Location = %q", info.Location)
	}
}
