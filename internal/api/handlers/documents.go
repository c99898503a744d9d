// documents.go — обработчики документов анкеты.
// Байты файлов живут во внешнем хранилище; здесь только привязка
// file_id к анкете и метаданные.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goanketa/admin-module/internal/api/errors"
	"github.com/bigkaa/goanketa/admin-module/internal/api/middleware"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// attachDocumentRequest — payload привязки файла к анкете.
type attachDocumentRequest struct {
	FileID string `json:"fileId"`
}

// documentResponse — документ в ответе API.
type documentResponse struct {
	ID               string    `json:"id"`
	ApplicationID    string    `json:"applicationId"`
	FileID           string    `json:"fileId"`
	OriginalFilename string    `json:"originalFilename"`
	ContentType      string    `json:"contentType"`
	SizeBytes        int64     `json:"sizeBytes"`
	UploadedAt       time.Time `json:"uploadedAt"`
}

// documentListResponse — список документов анкеты.
type documentListResponse struct {
	Items []documentResponse `json:"items"`
}

// mapDocument конвертирует доменный документ в DTO.
func mapDocument(doc *model.Document) documentResponse {
	return documentResponse{
		ID:               doc.ID,
		ApplicationID:    doc.ApplicationID,
		FileID:           doc.FileID,
		OriginalFilename: doc.OriginalFilename,
		ContentType:      doc.ContentType,
		SizeBytes:        doc.SizeBytes,
		UploadedAt:       doc.UploadedAt,
	}
}

// ListDocuments — GET /api/v1/applications/{id}/documents.
func (h *APIHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	docs, err := h.documents.List(r.Context(), applicationID)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения документов анкеты")
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = mapDocument(&docs[i])
	}

	writeJSON(w, http.StatusOK, documentListResponse{Items: items})
}

// AttachDocument — POST /api/v1/applications/{id}/documents.
// Привязывает уже загруженный в хранилище файл к анкете.
// Метаданные (имя, тип, размер) берутся из хранилища, не из payload.
func (h *APIHandler) AttachDocument(w http.ResponseWriter, r *http.Request) {
	applicationID := chi.URLParam(r, "id")

	var req attachDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.FileID) == "" {
		apierrors.ValidationError(w, "Идентификатор файла (fileId) обязателен")
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	doc, err := h.documents.Attach(r.Context(), caller, applicationID, strings.TrimSpace(req.FileID))
	if err != nil {
		h.writeServiceError(w, err, "Ошибка привязки документа")
		return
	}

	writeJSON(w, http.StatusCreated, mapDocument(doc))
}

// DeleteDocument — DELETE /api/v1/documents/{id}.
// Отвязывает документ и удаляет файл из хранилища.
func (h *APIHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	caller := middleware.CallerFromContext(r.Context())
	if err := h.documents.Delete(r.Context(), caller, documentID); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления документа")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
