// Пакет blobstore — операции с физическими файлами под корнем хранилища.
// Дезинфекция путей и имён, создание папок, перемещение, удаление,
// определение MIME-типа и размера. Для ссылок (URL) вместо дисковых
// операций выполняется удалённый HEAD-запрос метаданных.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// refPattern — шаблон распознавания ссылок на внешние URL.
// Явного флага типа у записи нет: ссылка — это storage_path,
// начинающийся с http:// или https://.
var refPattern = regexp.MustCompile(`^https?://`)

var (
	// dotRuns — последовательности из двух и более точек (анти path-traversal)
	dotRuns = regexp.MustCompile(`\.{2,}`)
	// sepRuns — последовательности разделителей папок
	sepRuns = regexp.MustCompile(`[/\\]+`)
	// unsafeNameChars — всё, что не входит в консервативный allow-list имени файла
	unsafeNameChars = regexp.MustCompile(`[^\w\s\-_~,;:\[\]().]`)
)

// Права новых папок хранилища.
const dirMode = 0o755

// BlobInfo — результат дисковой операции или удалённого probe.
type BlobInfo struct {
	// Location — абсолютный путь блоба на диске либо URL ссылки
	Location string
	// Mimetype — определённый MIME-тип (пустой, если не определялся)
	Mimetype string
	// Size — размер в байтах (0, если не определялся)
	Size int64
}

// BlobStore — файловые операции под корнем хранилища.
type BlobStore struct {
	root   string
	client *http.Client
	logger *slog.Logger
}

// New создаёт BlobStore с корнем root. Создаёт корневую директорию,
// если она не существует.
func New(root string, probeTimeout time.Duration, logger *slog.Logger) (*BlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("некорректный корень хранилища %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, dirMode); err != nil {
		return nil, fmt.Errorf("не удалось создать корень хранилища %s: %w", abs, err)
	}
	return &BlobStore{
		root:   abs,
		client: &http.Client{Timeout: probeTimeout},
		logger: logger.With(slog.String("component", "blobstore")),
	}, nil
}

// Root возвращает абсолютный путь корня хранилища.
func (s *BlobStore) Root() string {
	return s.root
}

// IsReference сообщает, является ли location внешним URL, а не дисковым путём.
func IsReference(location string) bool {
	return refPattern.MatchString(location)
}

// SanitizePath нейтрализует опасные конструкции в пути папки:
// убирает последовательности "..", схлопывает повторные разделители,
// срезает внешние разделители и добавляет ровно один завершающий "/".
// Результат относителен корню хранилища и не может выйти за него.
func SanitizePath(path string) string {
	p := dotRuns.ReplaceAllString(path, "")
	p = sepRuns.ReplaceAllString(p, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

// SanitizeName убирает из имени файла всё вне allow-list
// (буквы/цифры/подчёркивание, пробелы, -_~,;:[]().) и схлопывает
// последовательности точек (anti path-traversal через расширение).
func SanitizeName(name string) string {
	n := unsafeNameChars.ReplaceAllString(name, "")
	n = dotRuns.ReplaceAllString(n, "")
	return n
}

// NormalizeFolderPath приводит путь папки к канонической форме метаданных:
// ведущий "/", без завершающего, без ".." и повторных разделителей.
// Корень — "/".
func NormalizeFolderPath(path string) string {
	p := dotRuns.ReplaceAllString(path, "")
	p = sepRuns.ReplaceAllString(p, "/")
	p = strings.Trim(p, "/")
	return "/" + p
}

// prepareFolder нормализует путь папки относительно корня и создаёт
// её (рекурсивно) при необходимости. Возвращает абсолютный путь с
// завершающим разделителем.
func (s *BlobStore) prepareFolder(folder string) (string, error) {
	full := filepath.Join(s.root, SanitizePath(folder)) + string(filepath.Separator)
	if err := os.MkdirAll(full, dirMode); err != nil {
		return "", fmt.Errorf("не удалось создать директорию %s: %w", full, err)
	}
	return full, nil
}

// SaveTemp записывает поток во временный файл и возвращает его путь.
// Используется слоем API для приёма multipart-загрузок перед Store.
func (s *BlobStore) SaveTemp(r io.Reader) (string, error) {
	tmpPath := filepath.Join(os.TempDir(), "cumulus-upload-"+uuid.NewString())
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка записи временного файла: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}
	return tmpPath, nil
}

// Store перемещает файл src в папку folder под именем name и
// определяет MIME-тип и размер результата.
func (s *BlobStore) Store(src, folder, name string) (*BlobInfo, error) {
	dstFolder, err := s.prepareFolder(folder)
	if err != nil {
		return nil, err
	}
	dst := dstFolder + SanitizeName(name)

	if err := moveFile(src, dst); err != nil {
		return nil, fmt.Errorf("не удалось переместить файл в хранилище: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения информации о файле %s: %w", dst, err)
	}

	mtype, err := mimetype.DetectFile(dst)
	if err != nil {
		return nil, fmt.Errorf("ошибка определения MIME-типа %s: %w", dst, err)
	}

	return &BlobInfo{
		Location: dst,
		Mimetype: mtype.String(),
		Size:     info.Size(),
	}, nil
}

// Rename перемещает существующий блоб в новую папку и/или под новое имя.
// Возвращает BlobInfo только с новым расположением: содержимое не
// меняется, MIME-тип и размер остаются прежними.
func (s *BlobStore) Rename(oldFolder, oldName, newFolder, newName string) (*BlobInfo, error) {
	srcFolder, err := s.prepareFolder(oldFolder)
	if err != nil {
		return nil, err
	}
	dstFolder, err := s.prepareFolder(newFolder)
	if err != nil {
		return nil, err
	}

	src := srcFolder + SanitizeName(oldName)
	dst := dstFolder + SanitizeName(newName)

	if err := moveFile(src, dst); err != nil {
		return nil, fmt.Errorf("не удалось переместить блоб: %w", err)
	}

	return &BlobInfo{Location: dst}, nil
}

// Delete удаляет блоб по абсолютному пути. Отсутствие файла — ошибка:
// молчаливый успех скрывал бы рассинхронизацию с метаданными.
func (s *BlobStore) Delete(location string) error {
	if err := os.Remove(location); err != nil {
		return fmt.Errorf("не удалось удалить блоб %s: %w", location, err)
	}
	return nil
}

// ProbeRemote выполняет HEAD-запрос к URL ссылки и извлекает
// Content-Type и Content-Length. Заменяет дисковые store/rename
// для записей-ссылок.
func (s *BlobStore) ProbeRemote(ctx context.Context, rawURL string) (*BlobInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("некорректный URL ссылки %s: %w", rawURL, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HEAD-запрос к %s не удался: %w", rawURL, err)
	}
	defer resp.Body.Close()

	info := &BlobInfo{Location: rawURL}

	// Content-Type без параметров (charset и т.п.)
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if idx := strings.Index(ct, ";"); idx >= 0 {
			ct = ct[:idx]
		}
		info.Mimetype = strings.TrimSpace(ct)
	}
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if size, err := strconv.ParseInt(cl, 10, 64); err == nil {
			info.Size = size
		}
	}

	return info, nil
}

// moveFile перемещает файл: сначала пробует rename, при ошибке
// cross-device — копирование с последующим удалением источника.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return os.Remove(src)
}
