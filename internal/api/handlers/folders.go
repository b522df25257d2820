// folders.go — обработчик списка папок хранилища.
package handlers

import (
	"net/http"

	"github.com/bigkaa/cumulus/internal/domain/model"
)

// folderResponse — JSON-представление папки.
type folderResponse struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

// folderListResponse — JSON-представление списка папок.
type folderListResponse struct {
	Count   int              `json:"count"`
	Folders []folderResponse `json:"folders"`
}

// handleGetFolders — GET /api/v1/folders?path=&recursive=.
// Возвращает папки уровнем ниже path; recursive — всю иерархию.
func (h *APIHandler) handleGetFolders(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	recursive := boolParam(r, "recursive")

	folders, err := h.storage.GetFolders(r.Context(), path, recursive)
	if err != nil {
		h.mapServiceError(w, err, "get_folders")
		return
	}

	writeJSON(w, http.StatusOK, toFolderListResponse(folders))
}

// folderContentsResponse — JSON-представление содержимого папки.
type folderContentsResponse struct {
	Folders []folderResponse `json:"folders"`
	Files   []fileResponse   `json:"files"`
}

// handleGetFolderContents — GET /api/v1/folders/contents?path=&recursive=.
// Возвращает записи папки и папки уровнем ниже.
func (h *APIHandler) handleGetFolderContents(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	recursive := boolParam(r, "recursive")

	contents, err := h.storage.GetFolderContents(r.Context(), path, recursive)
	if err != nil {
		h.mapServiceError(w, err, "get_folder_contents")
		return
	}

	resp := folderContentsResponse{
		Folders: toFolderListResponse(contents.Folders).Folders,
		Files:   toFileListResponse(contents.Files).Files,
	}
	writeJSON(w, http.StatusOK, resp)
}

// toFolderListResponse конвертирует список папок в API-представление.
func toFolderListResponse(folders []model.Folder) folderListResponse {
	items := make([]folderResponse, 0, len(folders))
	for _, f := range folders {
		items = append(items, folderResponse{Path: f.Path, Name: f.Name})
	}
	return folderListResponse{Count: len(items), Folders: items}
}
