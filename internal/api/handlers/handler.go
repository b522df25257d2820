// handler.go — основной обработчик API Cumulus.
// Маршруты тонкие: разбор параметров, вызов сервисного слоя,
// трансляция ошибок в HTTP-статусы.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/cumulus/internal/api/errors"
	"github.com/bigkaa/cumulus/internal/domain/model"
	"github.com/bigkaa/cumulus/internal/service"
	"github.com/bigkaa/cumulus/internal/storage/blobstore"
)

// APIHandler — основной обработчик API Cumulus.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	storage *service.StorageService
	blobs   *blobstore.BlobStore
	health  *HealthHandler
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	storage *service.StorageService,
	blobs *blobstore.BlobStore,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		storage: storage,
		blobs:   blobs,
		health:  health,
		logger:  logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует все маршруты API на роутере.
func (h *APIHandler) Routes(r chi.Router) {
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/files", h.handleUploadFile)
		r.Get("/files/{key}", h.handleGetFileContent)
		r.Get("/files/{key}/attributes", h.handleGetFileAttributes)
		r.Patch("/files/{key}", h.handleUpdateFile)
		r.Delete("/files/{key}", h.handleDeleteFile)

		r.Get("/folders", h.handleGetFolders)
		r.Get("/folders/contents", h.handleGetFolderContents)
		r.Get("/search", h.handleSearch)
		r.Get("/by-name", h.handleGetByName)
		r.Get("/by-path", h.handleGetByPath)
		r.Get("/by-keywords", h.handleGetByKeywords)
		r.Get("/by-groups", h.handleGetByGroups)
		r.Get("/by-user", h.handleGetByUser)
		r.Get("/by-mimetype", h.handleGetByMimetype)
		r.Get("/by-license", h.handleGetByLicense)
		r.Get("/by-date", h.handleGetByDate)
	})
}

// --- Представление записей в API ---

// fileResponse — JSON-представление записи файла.
type fileResponse struct {
	Fkey                 string         `json:"fkey"`
	Name                 string         `json:"name"`
	Path                 string         `json:"path"`
	StoragePath          string         `json:"storage_path"`
	Mimetype             *string        `json:"mimetype,omitempty"`
	Size                 *int64         `json:"size,omitempty"`
	Owner                *string        `json:"owner,omitempty"`
	Groups               []string       `json:"groups,omitempty"`
	Permissions          *string        `json:"permissions,omitempty"`
	Keywords             []string       `json:"keywords,omitempty"`
	License              *string        `json:"license,omitempty"`
	Meta                 map[string]any `json:"meta,omitempty"`
	CreationDate         time.Time      `json:"creation_date"`
	LastModificationDate time.Time      `json:"last_modification_date"`
	IsReference          bool           `json:"is_reference"`
}

// fileListResponse — JSON-представление списка записей.
type fileListResponse struct {
	Count int            `json:"count"`
	Files []fileResponse `json:"files"`
}

// toFileResponse конвертирует доменную запись в API-представление.
func toFileResponse(rec *model.FileRecord) fileResponse {
	return fileResponse{
		Fkey:                 rec.Fkey,
		Name:                 rec.Name,
		Path:                 rec.Path,
		StoragePath:          rec.StoragePath,
		Mimetype:             rec.Mimetype,
		Size:                 rec.Size,
		Owner:                rec.Owner,
		Groups:               rec.Groups,
		Permissions:          rec.Permissions,
		Keywords:             rec.Keywords,
		License:              rec.License,
		Meta:                 rec.Meta,
		CreationDate:         rec.CreationDate,
		LastModificationDate: rec.LastModificationDate,
		IsReference:          blobstore.IsReference(rec.StoragePath),
	}
}

// toFileListResponse конвертирует список записей.
func toFileListResponse(recs []*model.FileRecord) fileListResponse {
	files := make([]fileResponse, 0, len(recs))
	for _, rec := range recs {
		files = append(files, toFileResponse(rec))
	}
	return fileListResponse{Count: len(files), Files: files}
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// mapServiceError транслирует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) mapServiceError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrPermissionDenied):
		apierrors.Forbidden(w, "Недостаточно прав для операции")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Файл с таким ключом уже существует")
	case errors.Is(err, service.ErrInvalidState):
		apierrors.InvalidState(w, "Несогласованное состояние хранилища")
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("operation", operation),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// boolParam разбирает булев query-параметр ("true", "1" — истина).
func boolParam(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}
