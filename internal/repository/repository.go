// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт — запись уже существует")
	// ErrLockTimeout — транзакция не получила блокировку за отведённое
	// время. Единственный класс ошибок хранилища, при котором операция
	// обновления повторяется целиком.
	ErrLockTimeout = errors.New("не удалось получить блокировку строки")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// defaultLockTimeout — верхняя граница ожидания блокировок внутри
// одной транзакции обновления.
const defaultLockTimeout = 10 * time.Second

// TxRunner позволяет выполнять операции обновления анкеты в транзакции
// read committed с ограниченным ожиданием блокировок.
type TxRunner struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
// lockTimeout <= 0 — используется значение по умолчанию (10s).
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) *TxRunner {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &TxRunner{pool: pool, lockTimeout: lockTimeout}
}

// RunInTx выполняет fn внутри транзакции read committed.
// Перед fn выставляется SET LOCAL lock_timeout: превышение ожидания
// блокировки строки анкеты прерывает транзакцию ошибкой 55P03,
// которая классифицируется как ErrLockTimeout.
// При ошибке fn — транзакция откатывается. При успехе — коммитится.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(store *TxStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classifyTxError(fmt.Errorf("ошибка начала транзакции: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	// lock_timeout действует только внутри текущей транзакции.
	lockMs := r.lockTimeout.Milliseconds()
	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockMs)); err != nil {
		return classifyTxError(fmt.Errorf("ошибка установки lock_timeout: %w", err))
	}

	if err := fn(NewTxStore(tx)); err != nil {
		return classifyTxError(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyTxError(fmt.Errorf("ошибка коммита транзакции: %w", err))
	}
	return nil
}

// classifyTxError сводит ошибки конкуренции за блокировки к ErrLockTimeout.
// Класс перечислим и закрыт: lock_not_available (55P03, результат
// lock_timeout), deadlock_detected (40P01) и истечение дедлайна контекста
// на границе транзакции. Всё остальное проходит без изменений.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.LockNotAvailable, pgerrcode.DeadlockDetected:
			return fmt.Errorf("%w: %s", ErrLockTimeout, pgErr.Message)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrLockTimeout, err.Error())
	}

	return err
}

// TxStore — набор репозиториев, привязанных к одному DBTX
// (обычно — к открытой транзакции). Передаётся в callback RunInTx,
// чтобы все шаги обновления анкеты шли через одну транзакцию.
type TxStore struct {
	Applications ApplicationRepository
	Entries      EntryRepository
}

// NewTxStore создаёт TxStore поверх db (пул или транзакция).
func NewTxStore(db DBTX) *TxStore {
	return &TxStore{
		Applications: NewApplicationRepository(db),
		Entries:      NewEntryRepository(db),
	}
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}
