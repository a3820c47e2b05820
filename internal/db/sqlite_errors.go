package db

import (
	"errors"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"
)

func IsUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	if sqliteErr.Code != sqlite3.ErrConstraint {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// UniqueConstraintColumn returns the column named by a unique constraint
// violation ("UNIQUE constraint failed: users.email" yields "email"), or ""
// when err is not such a violation.
func UniqueConstraintColumn(err error) string {
	if !IsUniqueConstraintError(err) {
		return ""
	}

	var sqliteErr sqlite3.Error
	errors.As(err, &sqliteErr)
	msg := sqliteErr.Error()

	_, columns, ok := strings.Cut(msg, "constraint failed: ")
	if !ok {
		return ""
	}
	first, _, _ := strings.Cut(columns, ",")
	_, column, ok := strings.Cut(strings.TrimSpace(first), ".")
	if !ok {
		return ""
	}
	return column
}
