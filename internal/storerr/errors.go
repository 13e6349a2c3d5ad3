package storerr

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Error kinds surfaced by the store. Callers match with errors.Is.
var (
	ErrNotFound      = errors.New("record not found")
	ErrValidation    = errors.New("validation failed")
	ErrReferential   = errors.New("referential integrity violation")
	ErrUniqueness    = errors.New("unique constraint violation")
	ErrSchemaVersion = errors.New("schema version conflict")
	ErrTransient     = errors.New("transient storage error")
)

// FromDB maps a database error onto one of the store error kinds.
// Unrecognized errors pass through unchanged. The store never retries
// ErrTransient itself; that is the caller's decision.
func FromDB(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrUniqueness, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", ErrReferential, err)
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "lock wait timeout") ||
		strings.Contains(msg, "try again") {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return err
}
