package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/cumulus/internal/domain/model"
)

// fileColumns — список столбцов таблицы cumulus_files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `fkey, name, path, storage_path, mimetype, size, owner,
	file_groups, permissions, keywords, license, meta,
	creation_date, last_modification_date`

// defaultOrderBy — стабильный порядок выдачи multi-record запросов.
const defaultOrderBy = "ORDER BY path, name, last_modification_date DESC"

// UpdateFields — частичное обновление записи файла.
// Все поля — указатели, nil = поле не меняется. Для обнуляемых
// колонок передаётся указатель на пустое значение.
type UpdateFields struct {
	// Fkey — новый ключ (при переименовании или перемещении)
	Fkey *string
	// Name — новое имя файла
	Name *string
	// Path — новый путь папки
	Path *string
	// StoragePath — новый путь блоба или внешний URL
	StoragePath *string
	// Mimetype — MIME-тип содержимого
	Mimetype *string
	// Size — размер в байтах
	Size *int64
	// Owner — владелец записи
	Owner *string
	// Groups — группы файла
	Groups *[]string
	// Permissions — строка прав [группы][остальные]
	Permissions *string
	// Keywords — ключевые слова
	Keywords *[]string
	// License — лицензия
	License *string
	// Meta — произвольные метаданные (заменяется целиком)
	Meta *map[string]any
}

// FileRepository — интерфейс доступа к записям таблицы cumulus_files.
type FileRepository interface {
	// GetByKey возвращает запись по ключу файла.
	GetByKey(ctx context.Context, fkey string) (*model.FileRecord, error)
	// QueryMany возвращает записи по готовому WHERE-фрагменту
	// (без слова WHERE; пустая строка — все записи).
	QueryMany(ctx context.Context, where string, args []any) ([]*model.FileRecord, error)
	// DistinctPaths возвращает уникальные пути записей, отсортированные по возрастанию.
	DistinctPaths(ctx context.Context) ([]string, error)
	// Insert создаёт запись. Даты заполняет БД.
	// Дубликат ключа — ErrConflict.
	Insert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, error)
	// UpdatePartial обновляет только заданные поля записи;
	// last_modification_date обновляется всегда.
	// Возвращает количество затронутых строк.
	UpdatePartial(ctx context.Context, fkey string, fields UpdateFields) (int64, error)
	// Delete удаляет запись по ключу. Возвращает количество затронутых строк.
	Delete(ctx context.Context, fkey string) (int64, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// GetByKey возвращает запись по ключу файла или ErrNotFound.
func (r *fileRepo) GetByKey(ctx context.Context, fkey string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM cumulus_files WHERE fkey = $1`, fileColumns)

	f, err := scanFile(r.db.QueryRow(ctx, query, fkey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

// QueryMany возвращает записи по WHERE-фрагменту со стабильной сортировкой.
func (r *fileRepo) QueryMany(ctx context.Context, where string, args []any) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM cumulus_files`, fileColumns)
	if where != "" {
		query += " WHERE " + where
	}
	query += " " + defaultOrderBy

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}
	return result, nil
}

// DistinctPaths возвращает все уникальные пути папок с записями.
func (r *fileRepo) DistinctPaths(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT path FROM cumulus_files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения путей: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("ошибка сканирования пути: %w", err)
		}
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации путей: %w", err)
	}
	return paths, nil
}

// Insert создаёт запись файла и возвращает её с датами, заполненными БД.
func (r *fileRepo) Insert(ctx context.Context, f *model.FileRecord) (*model.FileRecord, error) {
	query := `
		INSERT INTO cumulus_files (
			fkey, name, path, storage_path, mimetype, size, owner,
			file_groups, permissions, keywords, license, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING creation_date, last_modification_date`

	err := r.db.QueryRow(ctx, query,
		f.Fkey, f.Name, f.Path, f.StoragePath, f.Mimetype, f.Size, f.Owner,
		joinSet(f.Groups), f.Permissions, joinSet(f.Keywords), f.License, f.Meta,
	).Scan(&f.CreationDate, &f.LastModificationDate)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return f, nil
}

// UpdatePartial обновляет заданные поля записи.
// last_modification_date обновляется при любом изменении.
//
//nolint:cyclop // сложность обусловлена количеством полей
func (r *fileRepo) UpdatePartial(ctx context.Context, fkey string, fields UpdateFields) (int64, error) {
	var sets []string
	var args []any
	argNum := 1

	appendSet := func(column string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argNum))
		args = append(args, val)
		argNum++
	}

	if fields.Fkey != nil {
		appendSet("fkey", *fields.Fkey)
	}
	if fields.Name != nil {
		appendSet("name", *fields.Name)
	}
	if fields.Path != nil {
		appendSet("path", *fields.Path)
	}
	if fields.StoragePath != nil {
		appendSet("storage_path", *fields.StoragePath)
	}
	if fields.Mimetype != nil {
		appendSet("mimetype", *fields.Mimetype)
	}
	if fields.Size != nil {
		appendSet("size", *fields.Size)
	}
	if fields.Owner != nil {
		appendSet("owner", *fields.Owner)
	}
	if fields.Groups != nil {
		appendSet("file_groups", joinSet(*fields.Groups))
	}
	if fields.Permissions != nil {
		appendSet("permissions", *fields.Permissions)
	}
	if fields.Keywords != nil {
		appendSet("keywords", joinSet(*fields.Keywords))
	}
	if fields.License != nil {
		appendSet("license", *fields.License)
	}
	if fields.Meta != nil {
		appendSet("meta", *fields.Meta)
	}

	// Дата последнего изменения обновляется всегда
	sets = append(sets, "last_modification_date = now()")

	query := fmt.Sprintf(
		`UPDATE cumulus_files SET %s WHERE fkey = $%d`,
		strings.Join(sets, ", "), argNum,
	)
	args = append(args, fkey)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("ошибка обновления записи файла: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete удаляет запись файла по ключу.
func (r *fileRepo) Delete(ctx context.Context, fkey string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM cumulus_files WHERE fkey = $1`, fkey)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanFile сканирует строку с колонками fileColumns в FileRecord.
// Группы и ключевые слова хранятся строкой через запятую.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	var groups, keywords *string
	err := row.Scan(
		&f.Fkey, &f.Name, &f.Path, &f.StoragePath, &f.Mimetype, &f.Size, &f.Owner,
		&groups, &f.Permissions, &keywords, &f.License, &f.Meta,
		&f.CreationDate, &f.LastModificationDate,
	)
	if err != nil {
		return nil, err
	}
	f.Groups = splitSet(groups)
	f.Keywords = splitSet(keywords)
	return f, nil
}

// joinSet сериализует множество в строку через запятую.
// Пустое множество — NULL, чтобы отличаться от пустого элемента.
func joinSet(items []string) *string {
	var clean []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			clean = append(clean, it)
		}
	}
	if len(clean) == 0 {
		return nil
	}
	s := strings.Join(clean, ",")
	return &s
}

// splitSet разбирает строку через запятую в множество.
func splitSet(s *string) []string {
	if s == nil || *s == "" {
		return nil
	}
	var items []string
	for part := range strings.SplitSeq(*s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
