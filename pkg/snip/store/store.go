// Package store holds the record store implementations behind the auth and
// links services: a GORM one for real databases and an in-memory one for tests.
package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no live record matches
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert hits a unique index
	ErrDuplicate = errors.New("duplicate record")
)

// isDuplicate recognises unique violations whether or not the GORM
// connection was opened with TranslateError.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
