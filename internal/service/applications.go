// applications.go — сервис анкет: CRUD и частичное обновление.
// Обновление выполняется в транзакции с блокировкой строки анкеты;
// при конкуренции за блокировку операция повторяется целиком
// ограниченное число раз с экспоненциальной задержкой.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/ownership"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/vocab"
	"github.com/bigkaa/goanketa/admin-module/internal/repository"
)

// Параметры повторов обновления при конкуренции за блокировку строки.
const (
	// maxUpdateAttempts — общее число попыток (первая + повторы).
	maxUpdateAttempts = 3
	// retryBaseDelay — базовая задержка перед повтором.
	retryBaseDelay = time.Second
	// retryMaxDelay — потолок экспоненциальной составляющей задержки.
	retryMaxDelay = 3 * time.Second
	// retryJitter — верхняя граница случайной добавки к задержке.
	retryJitter = time.Second
)

// attemptDelay возвращает задержку перед повтором номер attempt
// (attempt = 0 — первый повтор): min(2^attempt * base, max) плюс
// случайная добавка [0, jitter), чтобы конкурирующие обновления
// не просыпались синхронно.
func attemptDelay(attempt int) time.Duration {
	delay := retryBaseDelay << attempt
	if delay > retryMaxDelay || delay <= 0 {
		delay = retryMaxDelay
	}
	return delay + time.Duration(rand.Int64N(int64(retryJitter)))
}

// updateRunner — транзакционная граница обновления анкеты.
// Реализуется repository.TxRunner; в тестах подменяется фейком.
type updateRunner interface {
	RunInTx(ctx context.Context, fn func(store *repository.TxStore) error) error
}

// ApplicationDetails — анкета вместе с дочерними записями.
type ApplicationDetails struct {
	Application       *model.Application
	Education         []model.EducationEntry
	WorkExperience    []model.WorkExperienceEntry
	GovernmentService []model.GovernmentServiceEntry
}

// ApplicationService — сервис анкет.
type ApplicationService struct {
	runner updateRunner
	store  *repository.TxStore
	logger *slog.Logger

	// sleep подменяется в тестах, чтобы не ждать реальные задержки.
	sleep func(time.Duration)
}

// NewApplicationService создаёт сервис анкет.
// store — репозитории поверх пула (чтение вне транзакций),
// runner — транзакционная граница обновлений.
func NewApplicationService(runner updateRunner, store *repository.TxStore, logger *slog.Logger) *ApplicationService {
	return &ApplicationService{
		runner: runner,
		store:  store,
		logger: logger.With(slog.String("component", "application_service")),
		sleep:  time.Sleep,
	}
}

// Create создаёт анкету из patch. Владелец берётся из идентичности
// вызывающей стороны, если она установлена.
func (s *ApplicationService) Create(ctx context.Context, caller *ownership.Caller, patch *model.ApplicationPatch) (*ApplicationDetails, error) {
	app := &model.Application{
		ID:            uuid.NewString(),
		Gender:        vocab.DefaultGender,
		MaritalStatus: vocab.DefaultMaritalStatus,
		Status:        vocab.DefaultStatus,
	}
	if caller != nil {
		if caller.UserID != "" {
			uid := caller.UserID
			app.OwnerUserID = &uid
		}
		if caller.ExternalID != "" {
			ext := caller.ExternalID
			app.OwnerExternalID = &ext
		}
	}

	applyScalars(app, patch)

	var details *ApplicationDetails
	err := s.runner.RunInTx(ctx, func(store *repository.TxStore) error {
		if err := store.Applications.Create(ctx, app); err != nil {
			return err
		}
		if err := replaceGroups(ctx, store, app.ID, patch); err != nil {
			return err
		}
		d, err := loadDetails(ctx, store, app.ID)
		details = d
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Анкета создана",
		slog.String("application_id", app.ID),
		slog.String("status", string(app.Status)),
	)
	return details, nil
}

// Get возвращает анкету с дочерними записями.
func (s *ApplicationService) Get(ctx context.Context, id string) (*ApplicationDetails, error) {
	details, err := loadDetails(ctx, s.store, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение анкеты: %w", err)
	}
	return details, nil
}

// List возвращает список анкет с фильтрацией по статусу и пагинацией.
// Строка статуса нормализуется через vocab; нераспознанная — ошибка
// валидации, а не пустой список.
func (s *ApplicationService) List(ctx context.Context, statusRaw string, limit, offset int) ([]*model.Application, int, error) {
	var status *model.Status
	if raw := strings.TrimSpace(statusRaw); raw != "" {
		st, ok := vocab.NormalizeStatus(raw)
		if !ok {
			return nil, 0, fmt.Errorf("%w: неизвестный статус %q", ErrValidation, raw)
		}
		status = &st
	}

	apps, err := s.store.Applications.List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("получение списка анкет: %w", err)
	}
	total, err := s.store.Applications.Count(ctx, status)
	if err != nil {
		return nil, 0, fmt.Errorf("подсчёт анкет: %w", err)
	}
	return apps, total, nil
}

// Update применяет частичное обновление анкеты.
// Операция атомарна: либо применяются все поля и группы patch,
// либо ничего. При таймауте блокировки строки операция повторяется
// целиком, не более maxUpdateAttempts раз; после исчерпания попыток
// возвращается ErrConflict.
func (s *ApplicationService) Update(ctx context.Context, caller *ownership.Caller, id string, patch *model.ApplicationPatch) (*ApplicationDetails, error) {
	for attempt := 0; ; attempt++ {
		details, err := s.updateOnce(ctx, caller, id, patch)
		if err == nil {
			return details, nil
		}
		if !errors.Is(err, repository.ErrLockTimeout) {
			return nil, err
		}
		if attempt+1 >= maxUpdateAttempts {
			s.logger.Warn("Обновление анкеты не удалось: исчерпаны попытки",
				slog.String("application_id", id),
				slog.Int("attempts", maxUpdateAttempts),
			)
			return nil, fmt.Errorf("%w: анкета занята конкурирующим обновлением", ErrConflict)
		}

		delay := attemptDelay(attempt)
		s.logger.Warn("Конкуренция за блокировку анкеты, повтор обновления",
			slog.String("application_id", id),
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
		)
		s.sleep(delay)
	}
}

// updateOnce — одна попытка обновления: транзакция с блокировкой
// строки, проверкой владельца и полной заменой затронутых групп.
func (s *ApplicationService) updateOnce(ctx context.Context, caller *ownership.Caller, id string, patch *model.ApplicationPatch) (*ApplicationDetails, error) {
	var details *ApplicationDetails
	err := s.runner.RunInTx(ctx, func(store *repository.TxStore) error {
		app, err := store.Applications.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		decision := ownership.Decide(caller, app.OwnerUserID, app.OwnerExternalID)
		if !decision.Allowed {
			s.logger.Warn("Обновление анкеты запрещено: чужая запись",
				slog.String("application_id", id),
			)
			return ErrForbidden
		}
		if decision.Permissive() {
			// Пермиссивные допуски различимы в логах, чтобы политику
			// можно было ужесточить после раскатки идентичности.
			s.logger.Warn("Пермиссивный допуск обновления анкеты",
				slog.String("application_id", id),
				slog.String("reason", string(decision.Reason)),
			)
		}

		// updated_at сдвигается даже при patch без скалярных полей.
		updates := scalarUpdates(patch)
		if err := store.Applications.UpdateFields(ctx, id, updates); err != nil {
			return err
		}

		if err := replaceGroups(ctx, store, id, patch); err != nil {
			return err
		}

		d, err := loadDetails(ctx, store, id)
		details = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return details, nil
}

// Delete удаляет анкету с проверкой владельца.
func (s *ApplicationService) Delete(ctx context.Context, caller *ownership.Caller, id string) error {
	err := s.runner.RunInTx(ctx, func(store *repository.TxStore) error {
		app, err := store.Applications.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrNotFound
			}
			return err
		}

		decision := ownership.Decide(caller, app.OwnerUserID, app.OwnerExternalID)
		if !decision.Allowed {
			return ErrForbidden
		}

		return store.Applications.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Анкета удалена", slog.String("application_id", id))
	return nil
}

// scalarUpdates строит упорядоченный список скалярных обновлений
// по patch. nil-поле — «не трогать»; пустые строковые enum-значения
// тоже пропускаются; нераспознанная лексика enum сводится к значению
// по умолчанию, а не к ошибке.
func scalarUpdates(patch *model.ApplicationPatch) []repository.FieldUpdate {
	var updates []repository.FieldUpdate
	add := func(column string, value any) {
		updates = append(updates, repository.FieldUpdate{Column: column, Value: value})
	}

	if patch.FullName != nil {
		add("full_name", strings.TrimSpace(*patch.FullName))
	}
	if patch.Email != nil {
		add("email", strings.TrimSpace(*patch.Email))
	}
	if patch.Phone != nil {
		add("phone", strings.TrimSpace(*patch.Phone))
	}
	if patch.BirthDate != nil {
		add("birth_date", *patch.BirthDate)
	}
	if patch.City != nil {
		add("city", strings.TrimSpace(*patch.City))
	}
	if patch.DesiredPosition != nil {
		add("desired_position", strings.TrimSpace(*patch.DesiredPosition))
	}
	if patch.About != nil {
		add("about", strings.TrimSpace(*patch.About))
	}
	if patch.Gender != nil {
		if raw := strings.TrimSpace(*patch.Gender); raw != "" {
			gender, ok := vocab.NormalizeGender(raw)
			if !ok {
				gender = vocab.DefaultGender
			}
			add("gender", gender)
		}
	}
	if patch.MaritalStatus != nil {
		if raw := strings.TrimSpace(*patch.MaritalStatus); raw != "" {
			marital, ok := vocab.NormalizeMaritalStatus(raw)
			if !ok {
				marital = vocab.DefaultMaritalStatus
			}
			add("marital_status", marital)
		}
	}
	if patch.Status != nil {
		if raw := strings.TrimSpace(*patch.Status); raw != "" {
			status, ok := vocab.NormalizeStatus(raw)
			if !ok {
				status = vocab.DefaultStatus
			}
			add("status", status)
		}
	}

	return updates
}

// applyScalars переносит скалярные поля patch в новую анкету
// (используется при создании; семантика лексики — как в scalarUpdates).
func applyScalars(app *model.Application, patch *model.ApplicationPatch) {
	if patch.FullName != nil {
		app.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Email != nil {
		app.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		app.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.BirthDate != nil {
		bd := *patch.BirthDate
		app.BirthDate = &bd
	}
	if patch.City != nil {
		app.City = strings.TrimSpace(*patch.City)
	}
	if patch.DesiredPosition != nil {
		app.DesiredPosition = strings.TrimSpace(*patch.DesiredPosition)
	}
	if patch.About != nil {
		app.About = strings.TrimSpace(*patch.About)
	}
	if patch.Gender != nil {
		if raw := strings.TrimSpace(*patch.Gender); raw != "" {
			if gender, ok := vocab.NormalizeGender(raw); ok {
				app.Gender = gender
			}
		}
	}
	if patch.MaritalStatus != nil {
		if raw := strings.TrimSpace(*patch.MaritalStatus); raw != "" {
			if marital, ok := vocab.NormalizeMaritalStatus(raw); ok {
				app.MaritalStatus = marital
			}
		}
	}
	if patch.Status != nil {
		if raw := strings.TrimSpace(*patch.Status); raw != "" {
			if status, ok := vocab.NormalizeStatus(raw); ok {
				app.Status = status
			}
		}
	}
}

// replaceGroups заменяет затронутые группы дочерних записей.
// nil-указатель на срез — группу не трогать; пустой срез — очистить;
// непустой — удалить старые записи и вставить новые.
func replaceGroups(ctx context.Context, store *repository.TxStore, id string, patch *model.ApplicationPatch) error {
	if patch.Education != nil {
		entries, err := reconcileEducation(*patch.Education)
		if err != nil {
			return err
		}
		if err := store.Entries.DeleteByApplication(ctx, id, model.GroupEducation); err != nil {
			return err
		}
		if err := store.Entries.InsertEducation(ctx, id, entries); err != nil {
			return err
		}
	}

	if patch.WorkExperience != nil {
		entries, err := reconcileWorkExperience(*patch.WorkExperience)
		if err != nil {
			return err
		}
		if err := store.Entries.DeleteByApplication(ctx, id, model.GroupWorkExperience); err != nil {
			return err
		}
		if err := store.Entries.InsertWorkExperience(ctx, id, entries); err != nil {
			return err
		}
	}

	if patch.GovernmentService != nil {
		entries, err := reconcileGovernmentService(*patch.GovernmentService)
		if err != nil {
			return err
		}
		if err := store.Entries.DeleteByApplication(ctx, id, model.GroupGovernmentService); err != nil {
			return err
		}
		if err := store.Entries.InsertGovernmentService(ctx, id, entries); err != nil {
			return err
		}
	}

	return nil
}

// loadDetails собирает анкету с дочерними записями.
func loadDetails(ctx context.Context, store *repository.TxStore, id string) (*ApplicationDetails, error) {
	app, err := store.Applications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	education, err := store.Entries.ListEducation(ctx, id)
	if err != nil {
		return nil, err
	}
	work, err := store.Entries.ListWorkExperience(ctx, id)
	if err != nil {
		return nil, err
	}
	gov, err := store.Entries.ListGovernmentService(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ApplicationDetails{
		Application:       app,
		Education:         education,
		WorkExperience:    work,
		GovernmentService: gov,
	}, nil
}
