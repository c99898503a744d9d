// Точка входа Admin Module — административный модуль системы Anketa.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиент файлового хранилища, сервисный слой и API handlers,
// запускает мониторинг зависимостей (topologymetrics) и HTTP-сервер
// с JWT middleware, валидацией OpenAPI контракта и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goanketa/admin-module/internal/api/contract"
	"github.com/bigkaa/goanketa/admin-module/internal/api/handlers"
	"github.com/bigkaa/goanketa/admin-module/internal/api/middleware"
	"github.com/bigkaa/goanketa/admin-module/internal/config"
	"github.com/bigkaa/goanketa/admin-module/internal/database"
	"github.com/bigkaa/goanketa/admin-module/internal/fsclient"
	"github.com/bigkaa/goanketa/admin-module/internal/repository"
	"github.com/bigkaa/goanketa/admin-module/internal/server"
	"github.com/bigkaa/goanketa/admin-module/internal/service"
)

// readinessTimeout — таймаут проверок readiness probe.
const readinessTimeout = 5 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Admin Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент файлового хранилища (байты документов живут там)
	fsClient, err := fsclient.New(
		cfg.FileStorageURL,
		cfg.FileStorageCACertPath,
		cfg.FileStorageTimeout,
		nil, // токен пока не требуется: используются public endpoints
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания клиента файлового хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Repositories
	store := repository.NewTxStore(pool)
	docRepo := repository.NewDocumentRepository(pool)
	refRepo := repository.NewReferenceRepository(pool)

	// Транзакционная граница обновлений анкет: read committed +
	// SET LOCAL lock_timeout из конфигурации.
	txRunner := repository.NewTxRunner(pool, cfg.UpdateLockTimeout)

	// 7. Services
	applicationsSvc := service.NewApplicationService(txRunner, store, logger)
	documentsSvc := service.NewDocumentService(fsClient, docRepo, store.Applications, logger)
	referenceSvc := service.NewReferenceService(refRepo, logger)

	// 8. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.FileStorageCACertPath, readinessTimeout)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 9. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		applicationsSvc,
		documentsSvc,
		referenceSvc,
		logger,
	)

	// 10. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.FileStorageCACertPath,
		cfg.JWTIssuer,
		cfg.JWTRolesClaim,
		cfg.JWTTelegramClaim,
		cfg.JWTAdminRoles,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. OpenAPI контракт и валидация запросов
	doc, err := contract.Load()
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}
	validator, err := contract.NewValidator(doc, logger)
	if err != nil {
		logger.Error("Ошибка создания валидатора контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. topologymetrics — мониторинг зависимостей
	// (PostgreSQL + Keycloak + файловое хранилище)
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"admin-module",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.JWTJWKSURL,
		cfg.FileStorageURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth, validator)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Admin Module остановлен")
}
