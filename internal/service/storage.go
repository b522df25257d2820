// storage.go — оркестрация блобов и метаданных.
//
// Порядок операций записи: сначала блоб, потом метаданные; при ошибке
// записи метаданных свежесохранённый блоб удаляется. При удалении
// метаданные первичны: если строка удалена, а блоб не удалился,
// операция считается успешной, ошибка логируется.
//
// Межзапросных блокировок по ключу нет: одновременные операции над
// одним ключом упорядочиваются только на уровне БД.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cumulus/internal/auth"
	"github.com/bigkaa/cumulus/internal/domain/model"
	"github.com/bigkaa/cumulus/internal/repository"
	"github.com/bigkaa/cumulus/internal/storage/blobstore"
	"github.com/bigkaa/cumulus/internal/storage/filekey"
)

// Prometheus-метрики операций хранилища.
var operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cumulus_operations_total",
	Help: "Общее количество операций хранилища по типу и результату.",
}, []string{"operation", "status"})

// UploadParams — параметры создания или замены файла.
// Содержимое задаётся либо временным файлом, либо внешним URL.
type UploadParams struct {
	// Path — путь папки (до нормализации)
	Path string
	// Name — имя файла (до санации)
	Name string
	// TempFile — путь временного файла с загруженным содержимым
	TempFile string
	// Reference — внешний URL вместо содержимого
	Reference string
	// Groups — группы файла; nil при обновлении сохраняет существующие
	Groups []string
	// Permissions — строка прав [группы][остальные]
	Permissions *string
	// Keywords — ключевые слова; nil при обновлении сохраняет существующие
	Keywords []string
	// License — лицензия
	License *string
	// Meta — произвольные метаданные
	Meta map[string]any
}

// UpdateParams — частичное обновление метаданных файла.
// nil — поле не меняется.
type UpdateParams struct {
	// Name — новое имя (меняет ключ файла)
	Name *string
	// Path — новый путь (меняет ключ файла)
	Path *string
	// Groups — группы файла
	Groups *[]string
	// Permissions — строка прав
	Permissions *string
	// Keywords — ключевые слова
	Keywords *[]string
	// License — лицензия
	License *string
	// Meta — произвольные метаданные (заменяются целиком)
	Meta *map[string]any
}

// StorageService — бизнес-логика Cumulus поверх блобов и метаданных.
type StorageService struct {
	repo    repository.FileRepository
	blobs   *blobstore.BlobStore
	adapter auth.Adapter
	cache   *RecordCache
	logger  *slog.Logger
}

// NewStorageService создаёт сервис хранилища.
func NewStorageService(
	repo repository.FileRepository,
	blobs *blobstore.BlobStore,
	adapter auth.Adapter,
	cache *RecordCache,
	logger *slog.Logger,
) *StorageService {
	return &StorageService{
		repo:    repo,
		blobs:   blobs,
		adapter: adapter,
		cache:   cache,
		logger:  logger.With(slog.String("component", "storage")),
	}
}

// track обновляет метрику операций.
func track(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(operation, status).Inc()
}

// ComputeKey возвращает ключ файла для пути и имени.
// Путь нормализуется, имя санируется так же, как при загрузке.
func (s *StorageService) ComputeKey(path, name string) string {
	return filekey.Compute(
		blobstore.NormalizeFolderPath(path),
		blobstore.SanitizeName(name),
	)
}

// IsKey сообщает, похожа ли строка на ключ файла.
func (s *StorageService) IsKey(v string) bool {
	return filekey.IsKey(v)
}

// GetByKey возвращает запись файла по ключу с проверкой права чтения.
// Запись кэшируется.
func (s *StorageService) GetByKey(ctx context.Context, key string) (*model.FileRecord, error) {
	rec, err := s.getByKey(ctx, key)
	track("get_by_key", err)
	return rec, err
}

func (s *StorageService) getByKey(ctx context.Context, key string) (*model.FileRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: пустой ключ файла", ErrValidation)
	}

	rec, ok := s.cache.Get(key)
	if !ok {
		var err error
		rec, err = s.repo.GetByKey(ctx, key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		s.cache.Set(key, rec)
	}

	p := auth.PrincipalFrom(ctx, s.adapter)
	if !CheckAccess(rec, p, AccessRead) {
		return nil, ErrPermissionDenied
	}
	return rec, nil
}

// GetAttributesByKey возвращает метаданные файла по ключу.
// Семантика прав совпадает с GetByKey.
func (s *StorageService) GetAttributesByKey(ctx context.Context, key string) (*model.FileRecord, error) {
	rec, err := s.getByKey(ctx, key)
	track("get_attributes", err)
	return rec, err
}

// StoragePath возвращает расположение содержимого файла:
// путь блоба на диске или внешний URL.
func (s *StorageService) StoragePath(ctx context.Context, key string) (string, error) {
	rec, err := s.getByKey(ctx, key)
	if err != nil {
		track("storage_path", err)
		return "", err
	}
	track("storage_path", nil)
	return rec.StoragePath, nil
}

// Search возвращает записи по семантическим параметрам поиска
// с учётом прав принципала. При inverse возвращаются записи,
// НЕ соответствующие предикату целиком, включая фрагмент прав.
func (s *StorageService) Search(ctx context.Context, params repository.SearchParams, inverse bool) ([]*model.FileRecord, error) {
	recs, err := s.search(ctx, params, inverse)
	track("search", err)
	return recs, err
}

func (s *StorageService) search(ctx context.Context, params repository.SearchParams, inverse bool) ([]*model.FileRecord, error) {
	p := auth.PrincipalFrom(ctx, s.adapter)

	where, args := repository.BuildSearchWhere(params, 1)
	rights, rightsArgs := repository.RightsClause(p, len(args)+1)

	clause := combineClauses(where, rights)
	args = append(args, rightsArgs...)

	if inverse {
		if clause == "" {
			// Отрицание пустого предиката — пустая выборка
			clause = "TRUE"
		}
		clause = repository.Negate(clause)
	}

	return s.repo.QueryMany(ctx, clause, args)
}

// combineClauses соединяет предикат поиска и фрагмент прав по AND.
func combineClauses(where, rights string) string {
	switch {
	case where == "":
		return rights
	case rights == "":
		return where
	default:
		return "(" + where + ") AND " + rights
	}
}

// GetByName возвращает записи по имени файла.
// strict — точное совпадение, иначе подстрока с '*' как wildcard.
func (s *StorageService) GetByName(ctx context.Context, name string, strict, inverse bool) ([]*model.FileRecord, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{Name: &name, NameStrict: strict}, inverse)
}

// GetByPath возвращает записи папки; при recursive — включая подпапки.
func (s *StorageService) GetByPath(ctx context.Context, path string, recursive, inverse bool) ([]*model.FileRecord, error) {
	normalized := blobstore.NormalizeFolderPath(path)
	return s.Search(ctx, repository.SearchParams{Path: &normalized, PathRecursive: recursive}, inverse)
}

// GetByKeywords возвращает записи по списку ключевых слов.
// mode — AND (по умолчанию) или OR; префикс '!' — отсутствие слова.
func (s *StorageService) GetByKeywords(ctx context.Context, keywords, mode string, inverse bool) ([]*model.FileRecord, error) {
	if keywords == "" {
		return nil, fmt.Errorf("%w: пустой список ключевых слов", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{Keywords: &keywords, KeywordsMode: mode}, inverse)
}

// GetByGroups возвращает записи по списку групп файла.
func (s *StorageService) GetByGroups(ctx context.Context, groups, mode string, inverse bool) ([]*model.FileRecord, error) {
	if groups == "" {
		return nil, fmt.Errorf("%w: пустой список групп", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{Groups: &groups, GroupsMode: mode}, inverse)
}

// GetByUser возвращает записи по владельцу.
func (s *StorageService) GetByUser(ctx context.Context, user string, inverse bool) ([]*model.FileRecord, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: пустое имя пользователя", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{User: &user}, inverse)
}

// GetByMimetype возвращает записи по MIME-типу.
func (s *StorageService) GetByMimetype(ctx context.Context, mimetype string, inverse bool) ([]*model.FileRecord, error) {
	if mimetype == "" {
		return nil, fmt.Errorf("%w: пустой MIME-тип", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{Mimetype: &mimetype}, inverse)
}

// GetByLicense возвращает записи по лицензии.
func (s *StorageService) GetByLicense(ctx context.Context, license string, inverse bool) ([]*model.FileRecord, error) {
	if license == "" {
		return nil, fmt.Errorf("%w: пустая лицензия", ErrValidation)
	}
	return s.Search(ctx, repository.SearchParams{License: &license}, inverse)
}

// DateQuery — параметры поиска по датам. Даты в формате YYYY-MM-DD,
// сравнение только по дате; Min/Max — строгие границы.
type DateQuery struct {
	CreationDate     string
	MinCreationDate  string
	MaxCreationDate  string
	LastModifDate    string
	MinLastModifDate string
	MaxLastModifDate string
}

// GetByDate возвращает записи по датам создания и изменения.
func (s *StorageService) GetByDate(ctx context.Context, q DateQuery, inverse bool) ([]*model.FileRecord, error) {
	params := repository.SearchParams{}
	hasFilter := false
	for _, f := range []struct {
		val  string
		dest **string
	}{
		{q.CreationDate, &params.CreationDate},
		{q.MinCreationDate, &params.MinCreationDate},
		{q.MaxCreationDate, &params.MaxCreationDate},
		{q.LastModifDate, &params.LastModifDate},
		{q.MinLastModifDate, &params.MinLastModifDate},
		{q.MaxLastModifDate, &params.MaxLastModifDate},
	} {
		if f.val != "" {
			v := f.val
			*f.dest = &v
			hasFilter = true
		}
	}
	if !hasFilter {
		return nil, fmt.Errorf("%w: не задан ни один параметр даты", ErrValidation)
	}
	return s.Search(ctx, params, inverse)
}

// GetFolders возвращает папки под заданным путём: один уровень
// или все вложенные при recursive. Папки выводятся из путей записей,
// видимых принципалу.
func (s *StorageService) GetFolders(ctx context.Context, path string, recursive bool) ([]model.Folder, error) {
	folders, err := s.getFolders(ctx, path, recursive)
	track("get_folders", err)
	return folders, err
}

func (s *StorageService) getFolders(ctx context.Context, path string, recursive bool) ([]model.Folder, error) {
	prefix := blobstore.NormalizeFolderPath(path)

	p := auth.PrincipalFrom(ctx, s.adapter)
	var paths []string
	if p.IsAdmin {
		var err error
		paths, err = s.repo.DistinctPaths(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		// Пути выводятся только из записей, доступных на чтение
		rights, args := repository.RightsClause(p, 1)
		recs, err := s.repo.QueryMany(ctx, rights, args)
		if err != nil {
			return nil, err
		}
		seen := map[string]bool{}
		for _, rec := range recs {
			if !seen[rec.Path] {
				seen[rec.Path] = true
				paths = append(paths, rec.Path)
			}
		}
	}

	return deriveFolders(paths, prefix, recursive), nil
}

// deriveFolders выводит папки из списка путей записей.
// prefix — нормализованный путь ("/" — корень).
func deriveFolders(paths []string, prefix string, recursive bool) []model.Folder {
	base := prefix
	if base != "/" {
		base += "/"
	}

	seen := map[string]model.Folder{}
	for _, p := range paths {
		if p == prefix || !strings.HasPrefix(p, base) {
			continue
		}
		rel := strings.TrimPrefix(p, base)
		if recursive {
			// Каждый промежуточный уровень — отдельная папка
			segments := strings.Split(rel, "/")
			for i := range segments {
				sub := strings.Join(segments[:i+1], "/")
				seen[sub] = model.Folder{Path: base + sub, Name: sub}
			}
		} else {
			first, _, _ := strings.Cut(rel, "/")
			seen[first] = model.Folder{Path: base + first, Name: first}
		}
	}

	folders := make([]model.Folder, 0, len(seen))
	for _, f := range seen {
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Path < folders[j].Path })
	return folders
}

// FolderContents — содержимое папки: вложенные папки и записи файлов.
type FolderContents struct {
	Folders []model.Folder
	Files   []*model.FileRecord
}

// GetFolderContents возвращает содержимое папки: записи с этим путём
// (при recursive — включая подпапки) и папки уровнем ниже.
func (s *StorageService) GetFolderContents(ctx context.Context, path string, recursive bool) (*FolderContents, error) {
	contents, err := s.getFolderContents(ctx, path, recursive)
	track("get_folder_contents", err)
	return contents, err
}

func (s *StorageService) getFolderContents(ctx context.Context, path string, recursive bool) (*FolderContents, error) {
	normalized := blobstore.NormalizeFolderPath(path)

	files, err := s.search(ctx, repository.SearchParams{Path: &normalized, PathRecursive: recursive}, false)
	if err != nil {
		return nil, err
	}
	folders, err := s.getFolders(ctx, path, recursive)
	if err != nil {
		return nil, err
	}
	return &FolderContents{Folders: folders, Files: files}, nil
}

// AddOrUpdateFile создаёт запись файла или заменяет существующую
// с тем же ключом. Содержимое — временный файл или внешний URL.
func (s *StorageService) AddOrUpdateFile(ctx context.Context, params UploadParams) (*model.FileRecord, error) {
	rec, err := s.addOrUpdate(ctx, params)
	track("add_or_update", err)
	return rec, err
}

//nolint:cyclop // последовательность шагов загрузки
func (s *StorageService) addOrUpdate(ctx context.Context, params UploadParams) (*model.FileRecord, error) {
	name := blobstore.SanitizeName(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: пустое имя файла", ErrValidation)
	}
	if (params.TempFile == "") == (params.Reference == "") {
		return nil, fmt.Errorf("%w: требуется либо содержимое, либо URL ссылки", ErrValidation)
	}
	if params.Reference != "" && !blobstore.IsReference(params.Reference) {
		return nil, fmt.Errorf("%w: некорректный URL ссылки", ErrValidation)
	}

	folder := blobstore.SanitizePath(params.Path)
	normalized := blobstore.NormalizeFolderPath(params.Path)
	key := filekey.Compute(normalized, name)

	p := auth.PrincipalFrom(ctx, s.adapter)

	existing, err := s.repo.GetByKey(ctx, key)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		existing = nil
	case err != nil:
		return nil, err
	default:
		if !CheckAccess(existing, p, AccessWrite) {
			return nil, ErrPermissionDenied
		}
	}

	// Сначала блоб (или HEAD-проба ссылки), потом метаданные
	info, err := s.resolveContent(ctx, params, folder, name)
	if err != nil {
		return nil, err
	}
	storedBlob := params.TempFile != ""

	if existing == nil {
		rec := s.buildRecord(key, name, normalized, info, params, p)
		created, err := s.repo.Insert(ctx, rec)
		if err != nil {
			// Осиротевший блоб подчищается
			if storedBlob {
				if derr := s.blobs.Delete(info.Location); derr != nil {
					s.logger.Error("Не удалось удалить осиротевший блоб",
						slog.String("location", info.Location), slog.Any("error", derr))
				}
			}
			if errors.Is(err, repository.ErrConflict) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return created, nil
	}

	// Замена хранимого блоба ссылкой: старый блоб удаляется только
	// после успешного обновления метаданных
	replacedBlob := ""
	if params.Reference != "" && !blobstore.IsReference(existing.StoragePath) {
		replacedBlob = existing.StoragePath
	}

	fields := repository.UpdateFields{
		StoragePath: &info.Location,
	}
	// nil-срез — атрибут не передан, существующее значение сохраняется
	if params.Groups != nil {
		fields.Groups = &params.Groups
	}
	if params.Keywords != nil {
		fields.Keywords = &params.Keywords
	}
	if info.Mimetype != "" {
		fields.Mimetype = &info.Mimetype
	}
	if info.Size > 0 {
		fields.Size = &info.Size
	}
	if p.UserID != "" {
		fields.Owner = &p.UserID
	}
	if params.Permissions != nil {
		fields.Permissions = params.Permissions
	}
	if params.License != nil {
		fields.License = params.License
	}
	if params.Meta != nil {
		fields.Meta = &params.Meta
	}

	if _, err := s.repo.UpdatePartial(ctx, key, fields); err != nil {
		return nil, err
	}
	s.cache.Delete(key)

	if replacedBlob != "" {
		if derr := s.blobs.Delete(replacedBlob); derr != nil {
			s.logger.Error("Не удалось удалить заменённый блоб",
				slog.String("location", replacedBlob), slog.Any("error", derr))
		}
	}

	updated, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// resolveContent сохраняет блоб или определяет метаданные внешней ссылки.
func (s *StorageService) resolveContent(ctx context.Context, params UploadParams, folder, name string) (*blobstore.BlobInfo, error) {
	if params.TempFile != "" {
		info, err := s.blobs.Store(params.TempFile, folder, name)
		if err != nil {
			return nil, fmt.Errorf("ошибка сохранения блоба: %w", err)
		}
		return info, nil
	}

	// Недоступность внешнего URL не мешает регистрации ссылки
	info, err := s.blobs.ProbeRemote(ctx, params.Reference)
	if err != nil {
		s.logger.Warn("Не удалось определить метаданные внешней ссылки",
			slog.String("url", params.Reference), slog.Any("error", err))
		return &blobstore.BlobInfo{Location: params.Reference}, nil
	}
	return info, nil
}

// buildRecord собирает новую запись файла.
func (s *StorageService) buildRecord(
	key, name, path string,
	info *blobstore.BlobInfo,
	params UploadParams,
	p auth.Principal,
) *model.FileRecord {
	rec := &model.FileRecord{
		Fkey:        key,
		Name:        name,
		Path:        path,
		StoragePath: info.Location,
		Groups:      params.Groups,
		Permissions: params.Permissions,
		Keywords:    params.Keywords,
		License:     params.License,
		Meta:        params.Meta,
	}
	if info.Mimetype != "" {
		rec.Mimetype = &info.Mimetype
	}
	if info.Size > 0 {
		rec.Size = &info.Size
	}
	if p.UserID != "" {
		rec.Owner = &p.UserID
	}
	return rec
}

// UpdateByKey обновляет метаданные файла. Изменение имени или пути
// меняет ключ файла и перемещает блоб на диске (ссылки не перемещаются).
func (s *StorageService) UpdateByKey(ctx context.Context, key string, params UpdateParams) (*model.FileRecord, error) {
	rec, err := s.updateByKey(ctx, key, params)
	track("update_by_key", err)
	return rec, err
}

//nolint:cyclop // последовательность шагов переименования
func (s *StorageService) updateByKey(ctx context.Context, key string, params UpdateParams) (*model.FileRecord, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: пустой ключ файла", ErrValidation)
	}

	existing, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p := auth.PrincipalFrom(ctx, s.adapter)
	if !CheckAccess(existing, p, AccessWrite) {
		return nil, ErrPermissionDenied
	}

	fields := repository.UpdateFields{
		Groups:      params.Groups,
		Permissions: params.Permissions,
		Keywords:    params.Keywords,
		License:     params.License,
		Meta:        params.Meta,
	}
	if p.UserID != "" {
		fields.Owner = &p.UserID
	}

	newKey := key
	newName := existing.Name
	newPath := existing.Path
	if params.Name != nil {
		newName = blobstore.SanitizeName(*params.Name)
		if newName == "" {
			return nil, fmt.Errorf("%w: пустое имя файла", ErrValidation)
		}
	}
	if params.Path != nil {
		newPath = blobstore.NormalizeFolderPath(*params.Path)
	}

	renamed := newName != existing.Name || newPath != existing.Path
	if renamed {
		newKey = filekey.Compute(newPath, newName)
		fields.Fkey = &newKey
		fields.Name = &newName
		fields.Path = &newPath

		// Блоб перемещается вместе с записью; внешние ссылки не трогаются
		if !blobstore.IsReference(existing.StoragePath) {
			info, err := s.blobs.Rename(
				blobstore.SanitizePath(existing.Path), existing.Name,
				blobstore.SanitizePath(newPath), newName,
			)
			if err != nil {
				return nil, fmt.Errorf("ошибка перемещения блоба: %w", err)
			}
			fields.StoragePath = &info.Location
		}
	}

	if _, err := s.repo.UpdatePartial(ctx, key, fields); err != nil {
		// Блоб уже перемещён; возвращаем на место, чтобы не разойтись с БД
		if renamed && fields.StoragePath != nil {
			if _, rerr := s.blobs.Rename(
				blobstore.SanitizePath(newPath), newName,
				blobstore.SanitizePath(existing.Path), existing.Name,
			); rerr != nil {
				s.logger.Error("Не удалось вернуть блоб после ошибки обновления",
					slog.String("fkey", key), slog.Any("error", rerr))
			}
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		return nil, err
	}

	s.cache.Delete(key)
	if renamed {
		s.cache.Delete(newKey)
	}

	updated, err := s.repo.GetByKey(ctx, newKey)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteByKey удаляет файл. При keepBlob удаляются только метаданные,
// содержимое остаётся на диске. Если строка удалена, а блоб удалить
// не удалось, операция успешна: метаданные первичны.
func (s *StorageService) DeleteByKey(ctx context.Context, key string, keepBlob bool) (*model.DeleteResult, error) {
	res, err := s.deleteByKey(ctx, key, keepBlob)
	track("delete_by_key", err)
	return res, err
}

func (s *StorageService) deleteByKey(ctx context.Context, key string, keepBlob bool) (*model.DeleteResult, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: пустой ключ файла", ErrValidation)
	}

	existing, err := s.repo.GetByKey(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	p := auth.PrincipalFrom(ctx, s.adapter)
	if !CheckAccess(existing, p, AccessWrite) {
		return nil, ErrPermissionDenied
	}

	n, err := s.repo.Delete(ctx, key)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	s.cache.Delete(key)

	if !keepBlob && !blobstore.IsReference(existing.StoragePath) {
		if derr := s.blobs.Delete(existing.StoragePath); derr != nil {
			s.logger.Error("Метаданные удалены, но блоб удалить не удалось",
				slog.String("fkey", key),
				slog.String("location", existing.StoragePath),
				slog.Any("error", derr))
		}
	}

	return &model.DeleteResult{Deleted: true, Fkey: key, Path: existing.Path}, nil
}
