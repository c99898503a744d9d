// entries.go — репозиторий дочерних записей анкеты.
// Частичное обновление группы не поддерживается намеренно:
// группа заменяется целиком (DeleteByApplication + Insert*).
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// EntryRepository — интерфейс доступа к дочерним записям анкеты.
type EntryRepository interface {
	// DeleteByApplication удаляет все записи группы у анкеты.
	// Отсутствие записей ошибкой не считается.
	DeleteByApplication(ctx context.Context, applicationID string, group model.EntryGroup) error

	// InsertEducation вставляет записи об образовании.
	InsertEducation(ctx context.Context, applicationID string, entries []model.EducationEntry) error
	// InsertWorkExperience вставляет записи об опыте работы.
	InsertWorkExperience(ctx context.Context, applicationID string, entries []model.WorkExperienceEntry) error
	// InsertGovernmentService вставляет записи о госслужбе.
	InsertGovernmentService(ctx context.Context, applicationID string, entries []model.GovernmentServiceEntry) error

	// ListEducation возвращает записи об образовании анкеты.
	ListEducation(ctx context.Context, applicationID string) ([]model.EducationEntry, error)
	// ListWorkExperience возвращает записи об опыте работы анкеты.
	ListWorkExperience(ctx context.Context, applicationID string) ([]model.WorkExperienceEntry, error)
	// ListGovernmentService возвращает записи о госслужбе анкеты.
	ListGovernmentService(ctx context.Context, applicationID string) ([]model.GovernmentServiceEntry, error)
}

// entryRepo — реализация EntryRepository.
type entryRepo struct {
	db DBTX
}

// NewEntryRepository создаёт репозиторий дочерних записей.
func NewEntryRepository(db DBTX) EntryRepository {
	return &entryRepo{db: db}
}

// entryTables — соответствие группы и таблицы. Имена таблиц
// подставляются в SQL только из этой таблицы, не из входных данных.
var entryTables = map[model.EntryGroup]string{
	model.GroupEducation:         "education_entries",
	model.GroupWorkExperience:    "work_experience_entries",
	model.GroupGovernmentService: "government_service_entries",
}

func (r *entryRepo) DeleteByApplication(ctx context.Context, applicationID string, group model.EntryGroup) error {
	table, ok := entryTables[group]
	if !ok {
		return fmt.Errorf("неизвестная группа записей: %q", group)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE application_id = $1`, table)
	if _, err := r.db.Exec(ctx, query, applicationID); err != nil {
		return fmt.Errorf("ошибка удаления записей группы %s: %w", group, err)
	}
	return nil
}

func (r *entryRepo) InsertEducation(ctx context.Context, applicationID string, entries []model.EducationEntry) error {
	query := `
		INSERT INTO education_entries (id, application_id, institution, level, graduation_year, gpa)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.ApplicationID = applicationID
		if _, err := r.db.Exec(ctx, query,
			e.ID, applicationID, e.Institution, e.Level, e.GraduationYear, e.GPA,
		); err != nil {
			return fmt.Errorf("ошибка вставки записи об образовании: %w", err)
		}
	}
	return nil
}

func (r *entryRepo) InsertWorkExperience(ctx context.Context, applicationID string, entries []model.WorkExperienceEntry) error {
	query := `
		INSERT INTO work_experience_entries (id, application_id, company, position, start_date, end_date, duties)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.ApplicationID = applicationID
		if _, err := r.db.Exec(ctx, query,
			e.ID, applicationID, e.Company, e.Position, e.StartDate, e.EndDate, e.Duties,
		); err != nil {
			return fmt.Errorf("ошибка вставки записи об опыте работы: %w", err)
		}
	}
	return nil
}

func (r *entryRepo) InsertGovernmentService(ctx context.Context, applicationID string, entries []model.GovernmentServiceEntry) error {
	query := `
		INSERT INTO government_service_entries (id, application_id, agency, position, start_date, end_date, reason_left)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.ApplicationID = applicationID
		if _, err := r.db.Exec(ctx, query,
			e.ID, applicationID, e.Agency, e.Position, e.StartDate, e.EndDate, e.ReasonLeft,
		); err != nil {
			return fmt.Errorf("ошибка вставки записи о госслужбе: %w", err)
		}
	}
	return nil
}

func (r *entryRepo) ListEducation(ctx context.Context, applicationID string) ([]model.EducationEntry, error) {
	query := `
		SELECT id, application_id, institution, level, graduation_year, gpa, created_at
		FROM education_entries
		WHERE application_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей об образовании: %w", err)
	}
	defer rows.Close()

	var result []model.EducationEntry
	for rows.Next() {
		var e model.EducationEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Institution, &e.Level, &e.GraduationYear, &e.GPA, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи об образовании: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода записей об образовании: %w", err)
	}
	return result, nil
}

func (r *entryRepo) ListWorkExperience(ctx context.Context, applicationID string) ([]model.WorkExperienceEntry, error) {
	query := `
		SELECT id, application_id, company, position, start_date, end_date, duties, created_at
		FROM work_experience_entries
		WHERE application_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей об опыте работы: %w", err)
	}
	defer rows.Close()

	var result []model.WorkExperienceEntry
	for rows.Next() {
		var e model.WorkExperienceEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Company, &e.Position, &e.StartDate, &e.EndDate, &e.Duties, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи об опыте работы: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода записей об опыте работы: %w", err)
	}
	return result, nil
}

func (r *entryRepo) ListGovernmentService(ctx context.Context, applicationID string) ([]model.GovernmentServiceEntry, error) {
	query := `
		SELECT id, application_id, agency, position, start_date, end_date, reason_left, created_at
		FROM government_service_entries
		WHERE application_id = $1
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, applicationID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей о госслужбе: %w", err)
	}
	defer rows.Close()

	var result []model.GovernmentServiceEntry
	for rows.Next() {
		var e model.GovernmentServiceEntry
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Agency, &e.Position, &e.StartDate, &e.EndDate, &e.ReasonLeft, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи о госслужбе: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода записей о госслужбе: %w", err)
	}
	return result, nil
}
