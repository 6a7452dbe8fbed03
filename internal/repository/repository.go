// Package repository contains the pgx-backed persistence layer. Each store is
// a thin struct over *pgxpool.Pool; callers get sentinel errors for the cases
// they branch on and wrapped driver errors for everything else.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
