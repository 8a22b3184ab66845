package repository

import (
	"database/sql"
	"errors"
	"fmt"
)

// wrapNotFound подменяет sql.ErrNoRows на доменную ошибку, остальное оборачивает с контекстом.
func wrapNotFound(err, notFound error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%s %w", op, err)
}

// normalizePage приводит limit/offset к допустимым значениям.
func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
