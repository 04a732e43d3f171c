package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/tipcircle/backend/internal/storage"
)

// translate maps driver errors onto the storage error kinds
func translate(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40P01", "57014": // lock_not_available, deadlock_detected, query_canceled
			return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
		case "23514", "23505", "23503", "23502":
			return fmt.Errorf("%w: %v", storage.ErrConstraintViolation, err)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection, insufficient resources, operator intervention
			return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
		}
	}

	return err
}
