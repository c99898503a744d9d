// reference.go — обработчики справочников. Только чтение.
package handlers

import (
	"net/http"
	"time"
)

// referenceItemResponse — элемент справочника.
type referenceItemResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// referenceListResponse — список элементов справочника.
type referenceListResponse struct {
	Items []referenceItemResponse `json:"items"`
}

// ListDepartments — GET /api/v1/reference/departments.
func (h *APIHandler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	deps, err := h.reference.Departments(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения справочника отделов")
		return
	}

	items := make([]referenceItemResponse, len(deps))
	for i, d := range deps {
		items[i] = referenceItemResponse{ID: d.ID, Code: d.Code, Title: d.Title, CreatedAt: d.CreatedAt}
	}

	writeJSON(w, http.StatusOK, referenceListResponse{Items: items})
}

// ListMissionGroups — GET /api/v1/reference/mission-groups.
func (h *APIHandler) ListMissionGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.reference.MissionGroups(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения справочника групп направлений")
		return
	}

	items := make([]referenceItemResponse, len(groups))
	for i, g := range groups {
		items[i] = referenceItemResponse{ID: g.ID, Code: g.Code, Title: g.Title, CreatedAt: g.CreatedAt}
	}

	writeJSON(w, http.StatusOK, referenceListResponse{Items: items})
}
