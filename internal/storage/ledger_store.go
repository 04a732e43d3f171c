package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tipcircle/backend/internal/models"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrLockTimeout         = errors.New("timed out waiting for row lock")
	ErrConstraintViolation = errors.New("ledger constraint violation")
	ErrStoreUnavailable    = errors.New("ledger store unavailable")
)

// LedgerStore opens transactions against the durable profile/team/tip storage.
type LedgerStore interface {
	BeginTx(ctx context.Context) (LedgerTx, error)
	FindTips(ctx context.Context, ids []int64) ([]models.Tip, error)
	GetProfile(ctx context.Context, id int64) (*models.Profile, error)
	GetTeam(ctx context.Context, id int64) (*models.Team, error)
}

// LedgerTx is one atomic unit of work. Lock* calls take an exclusive row lock
// that is held until Commit or Rollback. Rollback after Commit is a no-op.
type LedgerTx interface {
	LockProfile(ctx context.Context, id int64) (*models.Profile, error)
	UpdateProfile(ctx context.Context, profile *models.Profile) error
	LockTeam(ctx context.Context, id int64) (*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTips(ctx context.Context, ids []int64) error
	LatestTipReceivedAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error)
	LatestTipSentAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error)
	Commit() error
	Rollback() error
}
