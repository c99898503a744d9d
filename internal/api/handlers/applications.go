// applications.go — обработчики /api/v1/applications.
// CRUD анкет и частичное обновление (PATCH): разреженный payload,
// нормализация лексики и полная замена групп дочерних записей
// выполняются в сервисном слое.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime/types"

	apierrors "github.com/bigkaa/goanketa/admin-module/internal/api/errors"
	"github.com/bigkaa/goanketa/admin-module/internal/api/middleware"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
	"github.com/bigkaa/goanketa/admin-module/internal/service"
)

// flexString — строка, принимающая в JSON и строку, и число.
// Клиентские формы присылают год выпуска то строкой, то числом;
// дальнейший разбор — зона Collection Reconciler.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	// Число или иной литерал — переносим как есть.
	*s = flexString(data)
	return nil
}

// --- Входные DTO ---

// educationInputDTO — сырая запись об образовании из payload.
type educationInputDTO struct {
	Institution    string     `json:"institution"`
	School         string     `json:"school"`
	Level          string     `json:"level"`
	GraduationYear flexString `json:"graduationYear"`
	GPA            flexString `json:"gpa"`
}

// workExperienceInputDTO — сырая запись об опыте работы из payload.
type workExperienceInputDTO struct {
	Company      string     `json:"company"`
	Organization string     `json:"organization"`
	Position     string     `json:"position"`
	StartDate    flexString `json:"startDate"`
	EndDate      flexString `json:"endDate"`
	Duties       string     `json:"duties"`
}

// governmentServiceInputDTO — сырая запись о госслужбе из payload.
type governmentServiceInputDTO struct {
	Agency     string     `json:"agency"`
	Position   string     `json:"position"`
	StartDate  flexString `json:"startDate"`
	EndDate    flexString `json:"endDate"`
	ReasonLeft string     `json:"reasonLeft"`
}

// applicationPatchRequest — разреженный payload создания/обновления
// анкеты. nil-поле означает «не трогать».
type applicationPatchRequest struct {
	FullName        *string     `json:"fullName"`
	Email           *string     `json:"email"`
	Phone           *string     `json:"phone"`
	BirthDate       *types.Date `json:"birthDate"`
	Gender          *string     `json:"gender"`
	MaritalStatus   *string     `json:"maritalStatus"`
	City            *string     `json:"city"`
	DesiredPosition *string     `json:"desiredPosition"`
	About           *string     `json:"about"`
	Status          *string     `json:"status"`

	Education         *[]educationInputDTO         `json:"education"`
	WorkExperience    *[]workExperienceInputDTO    `json:"workExperience"`
	GovernmentService *[]governmentServiceInputDTO `json:"governmentService"`
}

// toPatch конвертирует payload в доменный ApplicationPatch.
func (req *applicationPatchRequest) toPatch() *model.ApplicationPatch {
	patch := &model.ApplicationPatch{
		FullName:        req.FullName,
		Email:           req.Email,
		Phone:           req.Phone,
		Gender:          req.Gender,
		MaritalStatus:   req.MaritalStatus,
		City:            req.City,
		DesiredPosition: req.DesiredPosition,
		About:           req.About,
		Status:          req.Status,
	}

	if req.BirthDate != nil {
		bd := req.BirthDate.Time
		patch.BirthDate = &bd
	}

	if req.Education != nil {
		entries := make([]model.EducationInput, len(*req.Education))
		for i, e := range *req.Education {
			entries[i] = model.EducationInput{
				Institution:    e.Institution,
				School:         e.School,
				Level:          e.Level,
				GraduationYear: string(e.GraduationYear),
				GPA:            string(e.GPA),
			}
		}
		patch.Education = &entries
	}

	if req.WorkExperience != nil {
		entries := make([]model.WorkExperienceInput, len(*req.WorkExperience))
		for i, e := range *req.WorkExperience {
			entries[i] = model.WorkExperienceInput{
				Company:      e.Company,
				Organization: e.Organization,
				Position:     e.Position,
				StartDate:    string(e.StartDate),
				EndDate:      string(e.EndDate),
				Duties:       e.Duties,
			}
		}
		patch.WorkExperience = &entries
	}

	if req.GovernmentService != nil {
		entries := make([]model.GovernmentServiceInput, len(*req.GovernmentService))
		for i, e := range *req.GovernmentService {
			entries[i] = model.GovernmentServiceInput{
				Agency:     e.Agency,
				Position:   e.Position,
				StartDate:  string(e.StartDate),
				EndDate:    string(e.EndDate),
				ReasonLeft: e.ReasonLeft,
			}
		}
		patch.GovernmentService = &entries
	}

	return patch
}

// --- Выходные DTO ---

// applicationResponse — анкета в ответе API.
type applicationResponse struct {
	ID              string      `json:"id"`
	OwnerUserID     *string     `json:"ownerUserId,omitempty"`
	OwnerExternalID *string     `json:"ownerExternalId,omitempty"`
	FullName        string      `json:"fullName"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	BirthDate       *types.Date `json:"birthDate,omitempty"`
	Gender          string      `json:"gender"`
	MaritalStatus   string      `json:"maritalStatus"`
	City            string      `json:"city"`
	DesiredPosition string      `json:"desiredPosition"`
	About           string      `json:"about"`
	Status          string      `json:"status"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`

	Education         []educationResponse         `json:"education,omitempty"`
	WorkExperience    []workExperienceResponse    `json:"workExperience,omitempty"`
	GovernmentService []governmentServiceResponse `json:"governmentService,omitempty"`
}

type educationResponse struct {
	ID             string   `json:"id"`
	Institution    string   `json:"institution"`
	Level          string   `json:"level"`
	GraduationYear *int     `json:"graduationYear,omitempty"`
	GPA            *float64 `json:"gpa,omitempty"`
}

type workExperienceResponse struct {
	ID        string      `json:"id"`
	Company   string      `json:"company"`
	Position  string      `json:"position"`
	StartDate *types.Date `json:"startDate,omitempty"`
	EndDate   *types.Date `json:"endDate,omitempty"`
	Duties    string      `json:"duties"`
}

type governmentServiceResponse struct {
	ID         string      `json:"id"`
	Agency     string      `json:"agency"`
	Position   string      `json:"position"`
	StartDate  *types.Date `json:"startDate,omitempty"`
	EndDate    *types.Date `json:"endDate,omitempty"`
	ReasonLeft string      `json:"reasonLeft"`
}

// applicationListResponse — список анкет с пагинацией.
type applicationListResponse struct {
	Items   []applicationResponse `json:"items"`
	Total   int                   `json:"total"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
	HasMore bool                  `json:"hasMore"`
}

// mapApplication конвертирует доменную анкету (без дочерних записей).
func mapApplication(app *model.Application) applicationResponse {
	resp := applicationResponse{
		ID:              app.ID,
		OwnerUserID:     app.OwnerUserID,
		OwnerExternalID: app.OwnerExternalID,
		FullName:        app.FullName,
		Email:           app.Email,
		Phone:           app.Phone,
		Gender:          string(app.Gender),
		MaritalStatus:   string(app.MaritalStatus),
		City:            app.City,
		DesiredPosition: app.DesiredPosition,
		About:           app.About,
		Status:          string(app.Status),
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
	resp.BirthDate = datePtr(app.BirthDate)
	return resp
}

// mapApplicationDetails конвертирует анкету с дочерними записями.
func mapApplicationDetails(d *service.ApplicationDetails) applicationResponse {
	resp := mapApplication(d.Application)

	resp.Education = make([]educationResponse, len(d.Education))
	for i, e := range d.Education {
		resp.Education[i] = educationResponse{
			ID:             e.ID,
			Institution:    e.Institution,
			Level:          e.Level,
			GraduationYear: e.GraduationYear,
			GPA:            e.GPA,
		}
	}

	resp.WorkExperience = make([]workExperienceResponse, len(d.WorkExperience))
	for i, e := range d.WorkExperience {
		resp.WorkExperience[i] = workExperienceResponse{
			ID:        e.ID,
			Company:   e.Company,
			Position:  e.Position,
			StartDate: datePtr(e.StartDate),
			EndDate:   datePtr(e.EndDate),
			Duties:    e.Duties,
		}
	}

	resp.GovernmentService = make([]governmentServiceResponse, len(d.GovernmentService))
	for i, e := range d.GovernmentService {
		resp.GovernmentService[i] = governmentServiceResponse{
			ID:         e.ID,
			Agency:     e.Agency,
			Position:   e.Position,
			StartDate:  datePtr(e.StartDate),
			EndDate:    datePtr(e.EndDate),
			ReasonLeft: e.ReasonLeft,
		}
	}

	return resp
}

// datePtr конвертирует *time.Time в *types.Date (формат 2006-01-02).
func datePtr(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return &types.Date{Time: *t}
}

// --- Обработчики ---

// ListApplications — GET /api/v1/applications.
// Список анкет с фильтрацией по статусу и пагинацией.
func (h *APIHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationFromQuery(r)
	status := r.URL.Query().Get("status")

	apps, total, err := h.applications.List(r.Context(), status, limit, offset)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения списка анкет")
		return
	}

	items := make([]applicationResponse, len(apps))
	for i, app := range apps {
		items[i] = mapApplication(app)
	}

	writeJSON(w, http.StatusOK, applicationListResponse{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	})
}

// CreateApplication — POST /api/v1/applications.
// Владелец новой анкеты берётся из идентичности вызывающей стороны.
func (h *APIHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	details, err := h.applications.Create(r.Context(), caller, req.toPatch())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка создания анкеты")
		return
	}

	writeJSON(w, http.StatusCreated, mapApplicationDetails(details))
}

// GetApplication — GET /api/v1/applications/{id}.
func (h *APIHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	details, err := h.applications.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "Ошибка получения анкеты")
		return
	}

	writeJSON(w, http.StatusOK, mapApplicationDetails(details))
}

// UpdateApplication — PATCH /api/v1/applications/{id}.
// Частичное обновление: применяются только присланные поля; затронутые
// группы дочерних записей заменяются целиком. При конкуренции за
// блокировку строки сервис повторяет операцию, исчерпание попыток — 409.
func (h *APIHandler) UpdateApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req applicationPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	details, err := h.applications.Update(r.Context(), caller, id, req.toPatch())
	if err != nil {
		h.writeServiceError(w, err, "Ошибка обновления анкеты")
		return
	}

	writeJSON(w, http.StatusOK, mapApplicationDetails(details))
}

// DeleteApplication — DELETE /api/v1/applications/{id}.
func (h *APIHandler) DeleteApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	caller := middleware.CallerFromContext(r.Context())
	if err := h.applications.Delete(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, err, "Ошибка удаления анкеты")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
