// files.go — обработчики операций над отдельными файлами:
// загрузка, скачивание, метаданные, обновление, удаление.
package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/cumulus/internal/api/errors"
	"github.com/bigkaa/cumulus/internal/service"
	"github.com/bigkaa/cumulus/internal/storage/blobstore"
)

// maxUploadMemory — лимит памяти разбора multipart-формы; остальное
// уходит во временные файлы net/http.
const maxUploadMemory = 32 << 20

// uploadRequest — JSON-тело PUT /api/v1/files для регистрации
// внешней ссылки или загрузки с параметрами.
type uploadRequest struct {
	Path        string         `json:"path"`
	Name        string         `json:"name"`
	URL         string         `json:"url,omitempty"`
	Groups      []string       `json:"groups,omitempty"`
	Permissions *string        `json:"permissions,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	License     *string        `json:"license,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// updateRequest — JSON-тело PATCH /api/v1/files/{key}.
// Отсутствующие поля не меняются.
type updateRequest struct {
	Name        *string         `json:"name,omitempty"`
	Path        *string         `json:"path,omitempty"`
	Groups      *[]string       `json:"groups,omitempty"`
	Permissions *string         `json:"permissions,omitempty"`
	Keywords    *[]string       `json:"keywords,omitempty"`
	License     *string         `json:"license,omitempty"`
	Meta        *map[string]any `json:"meta,omitempty"`
}

// handleUploadFile — PUT /api/v1/files.
// multipart/form-data — загрузка содержимого (поле file),
// application/json — регистрация внешней ссылки.
func (h *APIHandler) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)

	var params service.UploadParams
	var err error
	if mediaType == "multipart/form-data" {
		params, err = h.parseMultipartUpload(r)
	} else {
		params, err = parseJSONUpload(r)
	}
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.storage.AddOrUpdateFile(r.Context(), params)
	if err != nil {
		h.mapServiceError(w, err, "upload_file")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// parseMultipartUpload разбирает multipart-форму и сохраняет
// содержимое во временный файл хранилища.
func (h *APIHandler) parseMultipartUpload(r *http.Request) (service.UploadParams, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return service.UploadParams{}, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return service.UploadParams{}, err
	}
	defer file.Close()

	tempFile, err := h.blobs.SaveTemp(file)
	if err != nil {
		return service.UploadParams{}, err
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}

	params := service.UploadParams{
		Path:     r.FormValue("path"),
		Name:     name,
		TempFile: tempFile,
		Groups:   splitFormList(r.FormValue("groups")),
		Keywords: splitFormList(r.FormValue("keywords")),
	}
	if v := r.FormValue("permissions"); v != "" {
		params.Permissions = &v
	}
	if v := r.FormValue("license"); v != "" {
		params.License = &v
	}
	if v := r.FormValue("meta"); v != "" {
		if err := json.Unmarshal([]byte(v), &params.Meta); err != nil {
			return service.UploadParams{}, err
		}
	}
	return params, nil
}

// parseJSONUpload разбирает JSON-тело регистрации внешней ссылки.
func parseJSONUpload(r *http.Request) (service.UploadParams, error) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.UploadParams{}, err
	}
	return service.UploadParams{
		Path:        req.Path,
		Name:        req.Name,
		Reference:   req.URL,
		Groups:      req.Groups,
		Permissions: req.Permissions,
		Keywords:    req.Keywords,
		License:     req.License,
		Meta:        req.Meta,
	}, nil
}

// splitFormList разбирает поле формы со списком через запятую.
func splitFormList(v string) []string {
	if v == "" {
		return nil
	}
	var items []string
	for part := range strings.SplitSeq(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}

// handleGetFileContent — GET /api/v1/files/{key}.
// Отдаёт содержимое блоба; для внешних ссылок — redirect.
func (h *APIHandler) handleGetFileContent(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rec, err := h.storage.GetByKey(r.Context(), key)
	if err != nil {
		h.mapServiceError(w, err, "get_file_content")
		return
	}

	if blobstore.IsReference(rec.StoragePath) {
		http.Redirect(w, r, rec.StoragePath, http.StatusFound)
		return
	}

	if rec.Mimetype != nil {
		w.Header().Set("Content-Type", *rec.Mimetype)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": rec.Name}))
	http.ServeFile(w, r, rec.StoragePath)
}

// handleGetFileAttributes — GET /api/v1/files/{key}/attributes.
func (h *APIHandler) handleGetFileAttributes(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rec, err := h.storage.GetAttributesByKey(r.Context(), key)
	if err != nil {
		h.mapServiceError(w, err, "get_file_attributes")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// handleUpdateFile — PATCH /api/v1/files/{key}.
// Частичное обновление метаданных; смена имени или пути меняет ключ.
func (h *APIHandler) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное JSON-тело запроса")
		return
	}

	rec, err := h.storage.UpdateByKey(r.Context(), key, service.UpdateParams{
		Name:        req.Name,
		Path:        req.Path,
		Groups:      req.Groups,
		Permissions: req.Permissions,
		Keywords:    req.Keywords,
		License:     req.License,
		Meta:        req.Meta,
	})
	if err != nil {
		h.mapServiceError(w, err, "update_file")
		return
	}

	writeJSON(w, http.StatusOK, toFileResponse(rec))
}

// handleDeleteFile — DELETE /api/v1/files/{key}.
// Параметр keep_blob оставляет содержимое на диске.
func (h *APIHandler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	keepBlob := boolParam(r, "keep_blob")

	res, err := h.storage.DeleteByKey(r.Context(), key, keepBlob)
	if err != nil {
		h.mapServiceError(w, err, "delete_file")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": res.Deleted,
		"fkey":    res.Fkey,
		"path":    res.Path,
	})
}
