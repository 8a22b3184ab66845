package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// pgUniqueViolation код ошибки PostgreSQL для нарушения уникальности.
const pgUniqueViolation = "23505"

// Querier - общий интерфейс *sqlx.DB и *sqlx.Tx для запросов на чтение и запись.
type Querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// GetByID - универсальная функция для получения сущности по ID
func GetByID[T any](ctx context.Context, q Querier, table string, id interface{}, notFoundErr error) (*T, error) {
	return getOne[T](ctx, q, fmt.Sprintf("SELECT * FROM %s WHERE id = $1", table), id, notFoundErr)
}

// GetByIDForUpdate то же, что GetByID, но блокирует строку до конца транзакции.
func GetByIDForUpdate[T any](ctx context.Context, tx *sqlx.Tx, table string, id interface{}, notFoundErr error) (*T, error) {
	return getOne[T](ctx, tx, fmt.Sprintf("SELECT * FROM %s WHERE id = $1 FOR UPDATE", table), id, notFoundErr)
}

func getOne[T any](ctx context.Context, q Querier, query string, id interface{}, notFoundErr error) (*T, error) {
	var entity T
	if err := q.GetContext(ctx, &entity, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return &entity, nil
}

// IsUniqueViolation проверяет, что ошибка - нарушение уникального ограничения.
// Если constraint не пустой, сверяется и имя ограничения.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// AffectedOne возвращает notFoundErr, если запрос не изменил ни одной строки.
func AffectedOne(res sql.Result, notFoundErr error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}
