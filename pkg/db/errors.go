package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/kairos100/swissluca-backend/pkg/errors"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation matches Postgres 23505 by code and SQLite by message.
// A non-empty constraint narrows the match to that constraint (or, on
// SQLite, the column named in the message).
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if pg, ok := pkgerrors.Postgres(err); ok {
		return pg.Code == pgUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) && constraint == "" {
		return true
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
