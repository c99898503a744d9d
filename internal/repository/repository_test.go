package repository

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bigkaa/goanketa/admin-module/internal/config"
	"github.com/bigkaa/goanketa/admin-module/internal/database"
	"github.com/bigkaa/goanketa/admin-module/internal/domain/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestDB запускает PostgreSQL контейнер, применяет миграции.
// Возвращает pgxpool.Pool и функцию очистки.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("Пропуск интеграционного теста: TEST_INTEGRATION не установлена")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("anketa_test"),
		postgres.WithUsername("anketa"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Не удалось запустить PostgreSQL контейнер: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Ошибка остановки контейнера: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Не удалось получить host контейнера: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Не удалось получить port контейнера: %v", err)
	}

	// Настраиваем env для config.Load()
	os.Setenv("AM_DB_HOST", host)
	os.Setenv("AM_DB_PORT", port.Port())
	os.Setenv("AM_DB_NAME", "anketa_test")
	os.Setenv("AM_DB_USER", "anketa")
	os.Setenv("AM_DB_PASSWORD", "test-password")
	os.Setenv("AM_DB_SSL_MODE", "disable")
	os.Setenv("AM_KEYCLOAK_URL", "http://localhost:8080")
	os.Setenv("AM_FILE_STORAGE_URL", "http://localhost:8090")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// Применяем миграции
	if err := database.Migrate(cfg, logger); err != nil {
		t.Fatalf("Ошибка миграций: %v", err)
	}

	// Подключаемся
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Ошибка подключения: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	return pool
}

// newTestApplication создаёт анкету с заполненными полями.
func newTestApplication() *model.Application {
	owner := "user-001"
	return &model.Application{
		ID:              uuid.NewString(),
		OwnerUserID:     &owner,
		FullName:        "Иванов Иван Иванович",
		Email:           "ivanov@example.com",
		Phone:           "+7 900 000-00-01",
		Gender:          model.GenderMale,
		MaritalStatus:   model.MaritalSingle,
		City:            "Москва",
		DesiredPosition: "аналитик",
		Status:          model.StatusPending,
	}
}

// --- Тесты ApplicationRepository ---

func TestApplicationCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewApplicationRepository(pool)

	app := newTestApplication()

	// Create
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if app.CreatedAt.IsZero() {
		t.Error("CreatedAt не установлен")
	}

	// GetByID
	got, err := repo.GetByID(ctx, app.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.FullName != "Иванов Иван Иванович" {
		t.Errorf("FullName = %q, хотели %q", got.FullName, "Иванов Иван Иванович")
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, хотели %q", got.Status, model.StatusPending)
	}
	if got.OwnerUserID == nil || *got.OwnerUserID != "user-001" {
		t.Errorf("OwnerUserID = %v, хотели user-001", got.OwnerUserID)
	}

	// List
	list, err := repo.List(ctx, nil, 10, 0)
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("List() вернул %d записей, хотели 1", len(list))
	}

	// List с фильтром по статусу
	hired := model.StatusHired
	empty, err := repo.List(ctx, &hired, 10, 0)
	if err != nil {
		t.Fatalf("List(HIRED) ошибка: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List(HIRED) вернул %d записей, хотели 0", len(empty))
	}

	// Count
	count, err := repo.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count() ошибка: %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, хотели 1", count)
	}

	// UpdateFields
	updates := []FieldUpdate{
		{Column: "city", Value: "Санкт-Петербург"},
		{Column: "status", Value: model.StatusReviewing},
	}
	if err := repo.UpdateFields(ctx, app.ID, updates); err != nil {
		t.Fatalf("UpdateFields() ошибка: %v", err)
	}
	got2, _ := repo.GetByID(ctx, app.ID)
	if got2.City != "Санкт-Петербург" || got2.Status != model.StatusReviewing {
		t.Errorf("После UpdateFields: City=%q, Status=%q", got2.City, got2.Status)
	}
	if !got2.UpdatedAt.After(got.UpdatedAt) {
		t.Errorf("UpdatedAt не сдвинулся: %v -> %v", got.UpdatedAt, got2.UpdatedAt)
	}

	// Delete
	if err := repo.Delete(ctx, app.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	_, err = repo.GetByID(ctx, app.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

func TestApplicationUpdateFields_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewApplicationRepository(pool)

	err := repo.UpdateFields(ctx, uuid.NewString(), []FieldUpdate{{Column: "city", Value: "Тверь"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateFields() по несуществующему id: %v, ожидали ErrNotFound", err)
	}
}

// --- Тесты EntryRepository ---

// TestEntryReplaceGroup — замена группы тотальна: после
// DeleteByApplication + Insert остаются только новые записи.
func TestEntryReplaceGroup(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)
	entryRepo := NewEntryRepository(pool)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	year := 2015
	first := []model.EducationEntry{
		{Institution: "МГУ", Level: "высшее", GraduationYear: &year},
		{Institution: "Курсы аналитики", Level: "дополнительное"},
	}
	if err := entryRepo.InsertEducation(ctx, app.ID, first); err != nil {
		t.Fatalf("InsertEducation() ошибка: %v", err)
	}

	got, err := entryRepo.ListEducation(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListEducation() ошибка: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ListEducation() вернул %d записей, хотели 2", len(got))
	}

	// Замена: удаляем группу и вставляем одну новую запись
	if err := entryRepo.DeleteByApplication(ctx, app.ID, model.GroupEducation); err != nil {
		t.Fatalf("DeleteByApplication() ошибка: %v", err)
	}
	second := []model.EducationEntry{{Institution: "СПбГУ", Level: "высшее"}}
	if err := entryRepo.InsertEducation(ctx, app.ID, second); err != nil {
		t.Fatalf("InsertEducation() повторный ошибка: %v", err)
	}

	got2, err := entryRepo.ListEducation(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListEducation() ошибка: %v", err)
	}
	if len(got2) != 1 || got2[0].Institution != "СПбГУ" {
		t.Errorf("После замены: %d записей, первая %q; хотели 1 запись СПбГУ",
			len(got2), got2[0].Institution)
	}

	// Очистка группы: DeleteByApplication без вставки
	if err := entryRepo.DeleteByApplication(ctx, app.ID, model.GroupEducation); err != nil {
		t.Fatalf("DeleteByApplication() ошибка: %v", err)
	}
	got3, _ := entryRepo.ListEducation(ctx, app.ID)
	if len(got3) != 0 {
		t.Errorf("После очистки группы осталось %d записей", len(got3))
	}
}

// TestEntryGroupsIndependent — замена одной группы не трогает другие.
func TestEntryGroupsIndependent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)
	entryRepo := NewEntryRepository(pool)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	if err := entryRepo.InsertWorkExperience(ctx, app.ID, []model.WorkExperienceEntry{
		{Company: "ООО Ромашка", Position: "аналитик"},
	}); err != nil {
		t.Fatalf("InsertWorkExperience() ошибка: %v", err)
	}
	if err := entryRepo.InsertGovernmentService(ctx, app.ID, []model.GovernmentServiceEntry{
		{Agency: "Министерство", Position: "специалист", ReasonLeft: "переезд"},
	}); err != nil {
		t.Fatalf("InsertGovernmentService() ошибка: %v", err)
	}

	// Очищаем опыт работы — госслужба должна остаться
	if err := entryRepo.DeleteByApplication(ctx, app.ID, model.GroupWorkExperience); err != nil {
		t.Fatalf("DeleteByApplication() ошибка: %v", err)
	}

	work, _ := entryRepo.ListWorkExperience(ctx, app.ID)
	if len(work) != 0 {
		t.Errorf("Опыт работы не очищен: %d записей", len(work))
	}
	gov, _ := entryRepo.ListGovernmentService(ctx, app.ID)
	if len(gov) != 1 {
		t.Errorf("Госслужба затронута: %d записей, хотели 1", len(gov))
	}
}

// --- Тесты TxRunner ---

// TestRunInTx_RollbackOnError — ошибка из callback откатывает все
// изменения транзакции: частичных обновлений не видно.
func TestRunInTx_RollbackOnError(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)
	runner := NewTxRunner(pool, 0)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	boom := errors.New("сбой после частичного обновления")
	err := runner.RunInTx(ctx, func(store *TxStore) error {
		if err := store.Applications.UpdateFields(ctx, app.ID, []FieldUpdate{
			{Column: "city", Value: "Казань"},
		}); err != nil {
			return err
		}
		if err := store.Entries.InsertEducation(ctx, app.ID, []model.EducationEntry{
			{Institution: "КФУ", Level: "высшее"},
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("RunInTx() вернул %v, ожидали ошибку callback", err)
	}

	got, _ := appRepo.GetByID(ctx, app.ID)
	if got.City == "Казань" {
		t.Error("Скалярное обновление не откатилось")
	}
	entries, _ := NewEntryRepository(pool).ListEducation(ctx, app.ID)
	if len(entries) != 0 {
		t.Errorf("Вставка записей не откатилась: %d записей", len(entries))
	}
}

// TestRunInTx_CommitOnSuccess — успешный callback коммитит изменения.
func TestRunInTx_CommitOnSuccess(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)
	runner := NewTxRunner(pool, 0)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	err := runner.RunInTx(ctx, func(store *TxStore) error {
		return store.Applications.UpdateFields(ctx, app.ID, []FieldUpdate{
			{Column: "status", Value: model.StatusContacted},
		})
	})
	if err != nil {
		t.Fatalf("RunInTx() ошибка: %v", err)
	}

	got, _ := appRepo.GetByID(ctx, app.ID)
	if got.Status != model.StatusContacted {
		t.Errorf("Status = %q, хотели %q", got.Status, model.StatusContacted)
	}
}

// TestRunInTx_LockTimeout — конкурирующая транзакция держит строку,
// вторая транзакция упирается в lock_timeout и получает ErrLockTimeout.
func TestRunInTx_LockTimeout(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	// Первая транзакция захватывает строку и не отпускает
	blocker, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() ошибка: %v", err)
	}
	defer blocker.Rollback(ctx) //nolint:errcheck
	if _, err := NewApplicationRepository(blocker).GetByIDForUpdate(ctx, app.ID); err != nil {
		t.Fatalf("GetByIDForUpdate() ошибка: %v", err)
	}

	// Вторая транзакция с коротким lock_timeout
	runner := NewTxRunner(pool, time.Second)
	err = runner.RunInTx(ctx, func(store *TxStore) error {
		_, err := store.Applications.GetByIDForUpdate(ctx, app.ID)
		return err
	})
	if !errors.Is(err, ErrLockTimeout) {
		t.Errorf("RunInTx() вернул %v, ожидали ErrLockTimeout", err)
	}
}

// --- Тесты DocumentRepository ---

func TestDocumentCRUD(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	appRepo := NewApplicationRepository(pool)
	docRepo := NewDocumentRepository(pool)

	app := newTestApplication()
	if err := appRepo.Create(ctx, app); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}

	doc := &model.Document{
		ID:               uuid.NewString(),
		ApplicationID:    app.ID,
		FileID:           "fs-" + uuid.NewString(),
		OriginalFilename: "resume.pdf",
		ContentType:      "application/pdf",
		SizeBytes:        2048,
	}

	// Create
	if err := docRepo.Create(ctx, doc); err != nil {
		t.Fatalf("Create() ошибка: %v", err)
	}
	if doc.UploadedAt.IsZero() {
		t.Error("UploadedAt не установлен")
	}

	// Дубликат file_id — конфликт
	dup := &model.Document{
		ID: uuid.NewString(), ApplicationID: app.ID, FileID: doc.FileID,
		OriginalFilename: "copy.pdf", ContentType: "application/pdf", SizeBytes: 1,
	}
	if err := docRepo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Errorf("Create() дубликата file_id: %v, ожидали ErrConflict", err)
	}

	// GetByID
	got, err := docRepo.GetByID(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetByID() ошибка: %v", err)
	}
	if got.OriginalFilename != "resume.pdf" {
		t.Errorf("OriginalFilename = %q, хотели %q", got.OriginalFilename, "resume.pdf")
	}

	// ListByApplication
	list, err := docRepo.ListByApplication(ctx, app.ID)
	if err != nil {
		t.Fatalf("ListByApplication() ошибка: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("ListByApplication() вернул %d записей, хотели 1", len(list))
	}

	// Delete
	if err := docRepo.Delete(ctx, doc.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	_, err = docRepo.GetByID(ctx, doc.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("После Delete ожидали ErrNotFound, получили: %v", err)
	}
}

// --- Тесты ReferenceRepository ---

func TestReferenceLists(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	repo := NewReferenceRepository(pool)

	deps, err := repo.ListDepartments(ctx)
	if err != nil {
		t.Fatalf("ListDepartments() ошибка: %v", err)
	}
	if len(deps) == 0 {
		t.Error("ListDepartments() вернул пустой список — сиды миграций не применились")
	}

	groups, err := repo.ListMissionGroups(ctx)
	if err != nil {
		t.Fatalf("ListMissionGroups() ошибка: %v", err)
	}
	if len(groups) == 0 {
		t.Error("ListMissionGroups() вернул пустой список — сиды миграций не применились")
	}
}
