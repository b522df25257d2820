// search.go — обработчики поисковых маршрутов Cumulus.
// Все маршруты принимают параметры через query string: значения
// вроде MIME-типов и путей содержат слэши и не годятся для URL-сегментов.
// Параметр inverse инвертирует весь предикат поиска, включая права.
package handlers

import (
	"net/http"

	apierrors "github.com/bigkaa/cumulus/internal/api/errors"
	"github.com/bigkaa/cumulus/internal/repository"
	"github.com/bigkaa/cumulus/internal/service"
)

// handleSearch — GET /api/v1/search.
// Комбинированный поиск по произвольному набору полей.
// Упрощённая форма ?q=терм ищет терм в имени ИЛИ ключевых словах.
func (h *APIHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if term := q.Get("q"); term != "" {
		recs, err := h.storage.Search(r.Context(), repository.SearchParams{
			Name:     &term,
			Keywords: &term,
			Mode:     repository.ModeOr,
		}, boolParam(r, "inverse"))
		if err != nil {
			h.mapServiceError(w, err, "search")
			return
		}
		writeJSON(w, http.StatusOK, toFileListResponse(recs))
		return
	}

	params := repository.SearchParams{
		Key:           optParam(q.Get("key")),
		Path:          optParam(q.Get("path")),
		PathRecursive: boolParam(r, "recursive"),
		Name:          optParam(q.Get("name")),
		NameStrict:    boolParam(r, "strict"),
		Keywords:      optParam(q.Get("keywords")),
		KeywordsMode:  q.Get("keywords_mode"),
		Groups:        optParam(q.Get("groups")),
		GroupsMode:    q.Get("groups_mode"),
		User:          optParam(q.Get("user")),
		Mimetype:      optParam(q.Get("mimetype")),
		License:       optParam(q.Get("license")),

		CreationDate:     optParam(q.Get("creation_date")),
		MinCreationDate:  optParam(q.Get("min_creation_date")),
		MaxCreationDate:  optParam(q.Get("max_creation_date")),
		LastModifDate:    optParam(q.Get("last_modification_date")),
		MinLastModifDate: optParam(q.Get("min_last_modification_date")),
		MaxLastModifDate: optParam(q.Get("max_last_modification_date")),

		Mode: q.Get("mode"),
	}

	recs, err := h.storage.Search(r.Context(), params, boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "search")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByName — GET /api/v1/by-name?name=&strict=&inverse=.
func (h *APIHandler) handleGetByName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		apierrors.ValidationError(w, "Не указан параметр name")
		return
	}

	recs, err := h.storage.GetByName(r.Context(), name, boolParam(r, "strict"), boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_name")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByPath — GET /api/v1/by-path?path=&recursive=&inverse=.
func (h *APIHandler) handleGetByPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		apierrors.ValidationError(w, "Не указан параметр path")
		return
	}

	recs, err := h.storage.GetByPath(r.Context(), path, boolParam(r, "recursive"), boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_path")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByKeywords — GET /api/v1/by-keywords?keywords=&mode=&inverse=.
// keywords — список через запятую, префикс '!' — отсутствие слова.
func (h *APIHandler) handleGetByKeywords(w http.ResponseWriter, r *http.Request) {
	keywords := r.URL.Query().Get("keywords")
	if keywords == "" {
		apierrors.ValidationError(w, "Не указан параметр keywords")
		return
	}

	recs, err := h.storage.GetByKeywords(r.Context(), keywords, r.URL.Query().Get("mode"), boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_keywords")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByGroups — GET /api/v1/by-groups?groups=&mode=&inverse=.
func (h *APIHandler) handleGetByGroups(w http.ResponseWriter, r *http.Request) {
	groups := r.URL.Query().Get("groups")
	if groups == "" {
		apierrors.ValidationError(w, "Не указан параметр groups")
		return
	}

	recs, err := h.storage.GetByGroups(r.Context(), groups, r.URL.Query().Get("mode"), boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_groups")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByUser — GET /api/v1/by-user?user=&inverse=.
func (h *APIHandler) handleGetByUser(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		apierrors.ValidationError(w, "Не указан параметр user")
		return
	}

	recs, err := h.storage.GetByUser(r.Context(), user, boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_user")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByMimetype — GET /api/v1/by-mimetype?mimetype=&inverse=.
func (h *APIHandler) handleGetByMimetype(w http.ResponseWriter, r *http.Request) {
	mimetype := r.URL.Query().Get("mimetype")
	if mimetype == "" {
		apierrors.ValidationError(w, "Не указан параметр mimetype")
		return
	}

	recs, err := h.storage.GetByMimetype(r.Context(), mimetype, boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_mimetype")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByLicense — GET /api/v1/by-license?license=&inverse=.
func (h *APIHandler) handleGetByLicense(w http.ResponseWriter, r *http.Request) {
	license := r.URL.Query().Get("license")
	if license == "" {
		apierrors.ValidationError(w, "Не указан параметр license")
		return
	}

	recs, err := h.storage.GetByLicense(r.Context(), license, boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_license")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// handleGetByDate — GET /api/v1/by-date.
// Даты в формате YYYY-MM-DD; min_*/max_* — строгие границы.
func (h *APIHandler) handleGetByDate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.DateQuery{
		CreationDate:     q.Get("creation_date"),
		MinCreationDate:  q.Get("min_creation_date"),
		MaxCreationDate:  q.Get("max_creation_date"),
		LastModifDate:    q.Get("last_modification_date"),
		MinLastModifDate: q.Get("min_last_modification_date"),
		MaxLastModifDate: q.Get("max_last_modification_date"),
	}

	recs, err := h.storage.GetByDate(r.Context(), query, boolParam(r, "inverse"))
	if err != nil {
		h.mapServiceError(w, err, "get_by_date")
		return
	}

	writeJSON(w, http.StatusOK, toFileListResponse(recs))
}

// optParam возвращает указатель на значение query-параметра
// или nil для пустой строки.
func optParam(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
