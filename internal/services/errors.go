package services

import (
	"errors"

	"github.com/tipcircle/backend/internal/storage"
)

// Precondition failures, returned before any row is locked
var (
	ErrEmptyBatch      = errors.New("tip batch is empty")
	ErrMultipleTeams   = errors.New("tip batch spans more than one team")
	ErrMultipleSenders = errors.New("tip batch has more than one sender")
	ErrDuplicateTip    = errors.New("tip batch contains the same tip twice")
)

// Transactional failures, surfaced from the ledger store
var (
	ErrLockTimeout         = storage.ErrLockTimeout
	ErrConstraintViolation = storage.ErrConstraintViolation
	ErrStoreUnavailable    = storage.ErrStoreUnavailable
	ErrNotFound            = storage.ErrNotFound
)

// IsPrecondition reports whether err is fixed by correcting the batch
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrMultipleTeams) ||
		errors.Is(err, ErrMultipleSenders) ||
		errors.Is(err, ErrDuplicateTip)
}
