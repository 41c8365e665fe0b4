package db

import (
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCheckViolation      = "23514"
)

var (
	sqliteUnique     = strconv.Itoa(int(sqlite3.ErrConstraintUnique))
	sqlitePrimaryKey = strconv.Itoa(int(sqlite3.ErrConstraintPrimaryKey))
	sqliteForeignKey = strconv.Itoa(int(sqlite3.ErrConstraintForeignKey))
	sqliteCheck      = strconv.Itoa(int(sqlite3.ErrConstraintCheck))
)

// IsUniqueViolation reports whether err is a unique or primary key violation.
// A non-empty constraintName must also match the violated constraint.
func IsUniqueViolation(err error, constraintName string) bool {
	if !matches(err, []string{sqlStateUniqueViolation, sqliteUnique, sqlitePrimaryKey},
		"duplicate key value", "UNIQUE constraint failed") {
		return false
	}
	if constraintName == "" {
		return true
	}
	if info := pkgerrors.DBErrorOf(err); info != nil && info.Constraint != "" {
		return info.Constraint == constraintName
	}
	return strings.Contains(err.Error(), constraintName)
}

// IsForeignKeyViolation reports whether err was raised by a foreign key check.
func IsForeignKeyViolation(err error) bool {
	return matches(err, []string{sqlStateForeignKeyViolation, sqliteForeignKey},
		"violates foreign key constraint", "FOREIGN KEY constraint failed")
}

// IsCheckViolation reports whether err was raised by a CHECK constraint, such
// as the non-negative stock quantity guard.
func IsCheckViolation(err error) bool {
	return matches(err, []string{sqlStateCheckViolation, sqliteCheck},
		"violates check constraint", "CHECK constraint failed")
}

// matches prefers the driver code and falls back to message text for errors
// that lost their driver type on the way up.
func matches(err error, codes []string, messages ...string) bool {
	if err == nil {
		return false
	}
	if info := pkgerrors.DBErrorOf(err); info != nil {
		for _, c := range codes {
			if info.Code == c {
				return true
			}
		}
		return false
	}
	msg := err.Error()
	for _, m := range messages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
