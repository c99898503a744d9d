// application.go — репозиторий анкет (таблица applications).
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
)

// FieldUpdate — одно скалярное обновление колонки анкеты.
// Набор и порядок обновлений формирует сервисный слой по явной
// таблице полей; репозиторий только собирает из них SET-клаузу.
type FieldUpdate struct {
	Column string
	Value  any
}

// ApplicationRepository — интерфейс доступа к таблице applications.
type ApplicationRepository interface {
	// Create создаёт новую анкету.
	Create(ctx context.Context, app *model.Application) error
	// GetByID возвращает анкету по UUID.
	GetByID(ctx context.Context, id string) (*model.Application, error)
	// GetByIDForUpdate возвращает анкету по UUID, удерживая блокировку
	// строки до конца транзакции (SELECT ... FOR UPDATE).
	GetByIDForUpdate(ctx context.Context, id string) (*model.Application, error)
	// List возвращает список анкет с фильтрацией по статусу.
	List(ctx context.Context, status *model.Status, limit, offset int) ([]*model.Application, error)
	// Count возвращает количество анкет.
	Count(ctx context.Context, status *model.Status) (int, error)
	// UpdateFields применяет скалярные обновления к анкете и обновляет
	// updated_at. Пустой список updates обновляет только updated_at.
	UpdateFields(ctx context.Context, id string, updates []FieldUpdate) error
	// Delete удаляет анкету (дочерние записи каскадом).
	Delete(ctx context.Context, id string) error
}

// applicationRepo — реализация ApplicationRepository.
type applicationRepo struct {
	db DBTX
}

// NewApplicationRepository создаёт репозиторий анкет.
func NewApplicationRepository(db DBTX) ApplicationRepository {
	return &applicationRepo{db: db}
}

const appColumns = `id, owner_user_id, owner_external_id, full_name, email, phone,
	birth_date, gender, marital_status, city, desired_position, about,
	status, created_at, updated_at`

// scanApplication сканирует строку результата в модель Application.
func scanApplication(row pgx.Row) (*model.Application, error) {
	app := &model.Application{}
	err := row.Scan(
		&app.ID, &app.OwnerUserID, &app.OwnerExternalID, &app.FullName, &app.Email, &app.Phone,
		&app.BirthDate, &app.Gender, &app.MaritalStatus, &app.City, &app.DesiredPosition, &app.About,
		&app.Status, &app.CreatedAt, &app.UpdatedAt,
	)
	return app, err
}

func (r *applicationRepo) Create(ctx context.Context, app *model.Application) error {
	query := `
		INSERT INTO applications (id, owner_user_id, owner_external_id, full_name, email, phone,
			birth_date, gender, marital_status, city, desired_position, about, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		app.ID, app.OwnerUserID, app.OwnerExternalID, app.FullName, app.Email, app.Phone,
		app.BirthDate, app.Gender, app.MaritalStatus, app.City, app.DesiredPosition, app.About,
		app.Status,
	).Scan(&app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: анкета с таким id уже существует", ErrConflict)
		}
		return fmt.Errorf("ошибка создания анкеты: %w", err)
	}
	return nil
}

func (r *applicationRepo) GetByID(ctx context.Context, id string) (*model.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1`, appColumns)
	return r.get(ctx, query, id)
}

func (r *applicationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Application, error) {
	query := fmt.Sprintf(`SELECT %s FROM applications WHERE id = $1 FOR UPDATE`, appColumns)
	return r.get(ctx, query, id)
}

func (r *applicationRepo) get(ctx context.Context, query, id string) (*model.Application, error) {
	app, err := scanApplication(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения анкеты: %w", err)
	}
	return app, nil
}

func (r *applicationRepo) List(ctx context.Context, status *model.Status, limit, offset int) ([]*model.Application, error) {
	var conditions []string
	var args []any
	argNum := 1

	if status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *status)
		argNum++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM applications
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, appColumns, where, argNum, argNum+1)

	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка анкет: %w", err)
	}
	defer rows.Close()

	var result []*model.Application
	for rows.Next() {
		app := &model.Application{}
		if err := rows.Scan(
			&app.ID, &app.OwnerUserID, &app.OwnerExternalID, &app.FullName, &app.Email, &app.Phone,
			&app.BirthDate, &app.Gender, &app.MaritalStatus, &app.City, &app.DesiredPosition, &app.About,
			&app.Status, &app.CreatedAt, &app.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования анкеты: %w", err)
		}
		result = append(result, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка обхода списка анкет: %w", err)
	}
	return result, nil
}

func (r *applicationRepo) Count(ctx context.Context, status *model.Status) (int, error) {
	query := `SELECT COUNT(*) FROM applications`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта анкет: %w", err)
	}
	return count, nil
}

func (r *applicationRepo) UpdateFields(ctx context.Context, id string, updates []FieldUpdate) error {
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]any, 0, len(updates)+1)
	argNum := 1

	for _, u := range updates {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", u.Column, argNum))
		args = append(args, u.Value)
		argNum++
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE applications SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), argNum)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("ошибка обновления анкеты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *applicationRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления анкеты: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
