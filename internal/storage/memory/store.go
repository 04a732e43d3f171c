package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tipcircle/backend/internal/models"
	"github.com/tipcircle/backend/internal/storage"
)

// rowLock is a mutex that can be abandoned when the caller's context expires.
type rowLock chan struct{}

func newRowLock() rowLock {
	return make(rowLock, 1)
}

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) release() {
	<-l
}

type profileRow struct {
	lock rowLock
	data models.Profile
}

type teamRow struct {
	lock rowLock
	data models.Team
}

// LedgerStore keeps profiles, teams and tips in memory. Row locks are real:
// concurrent transactions touching the same profile serialize on it.
type LedgerStore struct {
	mu          sync.Mutex // protects the maps and committed row data
	profiles    map[int64]*profileRow
	teams       map[int64]*teamRow
	tips        map[int64]models.Tip
	claimed     map[int64]struct{} // tips deleted by an uncommitted transaction
	lockTimeout time.Duration
}

// NewLedgerStore creates an empty store. A zero lockTimeout waits on row
// locks until the caller's context is done.
func NewLedgerStore(lockTimeout time.Duration) *LedgerStore {
	return &LedgerStore{
		profiles:    make(map[int64]*profileRow),
		teams:       make(map[int64]*teamRow),
		tips:        make(map[int64]models.Tip),
		claimed:     make(map[int64]struct{}),
		lockTimeout: lockTimeout,
	}
}

// PutProfile inserts or replaces a profile outside of any transaction.
func (s *LedgerStore) PutProfile(profile models.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.profiles[profile.ID]; ok {
		row.data = profile
		return
	}
	s.profiles[profile.ID] = &profileRow{lock: newRowLock(), data: profile}
}

// PutTeam inserts or replaces a team outside of any transaction.
func (s *LedgerStore) PutTeam(team models.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.teams[team.ID]; ok {
		row.data = team
		return
	}
	s.teams[team.ID] = &teamRow{lock: newRowLock(), data: team}
}

// PutTip records a tip. The store only keeps the log; balances are untouched.
func (s *LedgerStore) PutTip(tip models.Tip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tips[tip.ID] = tip
}

// TipExists reports whether the tip is still stored
func (s *LedgerStore) TipExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tips[id]
	return ok
}

func (s *LedgerStore) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %d: %w", id, storage.ErrNotFound)
	}
	profile := row.data
	return &profile, nil
}

func (s *LedgerStore) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.teams[id]
	if !ok {
		return nil, fmt.Errorf("team %d: %w", id, storage.ErrNotFound)
	}
	team := row.data
	return &team, nil
}

// FindTips returns the requested tips ordered by creation time. Missing ids
// are an error so callers never act on a partial batch.
func (s *LedgerStore) FindTips(ctx context.Context, ids []int64) ([]models.Tip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tips := make([]models.Tip, 0, len(ids))
	for _, id := range ids {
		tip, ok := s.tips[id]
		if !ok {
			return nil, fmt.Errorf("tip %d: %w", id, storage.ErrNotFound)
		}
		tips = append(tips, tip)
	}
	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].CreatedAt.Before(tips[j].CreatedAt)
	})
	return tips, nil
}

func (s *LedgerStore) BeginTx(ctx context.Context) (storage.LedgerTx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin: %w: %v", storage.ErrStoreUnavailable, err)
	}
	return &ledgerTx{
		store:    s,
		profiles: make(map[int64]*models.Profile),
		teams:    make(map[int64]*models.Team),
	}, nil
}

type ledgerTx struct {
	store    *LedgerStore
	held     []rowLock
	profiles map[int64]*models.Profile // staged rows, keyed by locked id
	teams    map[int64]*models.Team
	deleted  []int64
	done     bool
}

func (tx *ledgerTx) acquire(ctx context.Context, lock rowLock) error {
	if tx.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tx.store.lockTimeout)
		defer cancel()
	}
	if err := lock.acquire(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return storage.ErrLockTimeout
		}
		return fmt.Errorf("%w: %v", storage.ErrStoreUnavailable, err)
	}
	tx.held = append(tx.held, lock)
	return nil
}

func (tx *ledgerTx) LockProfile(ctx context.Context, id int64) (*models.Profile, error) {
	if tx.done {
		return nil, fmt.Errorf("lock profile %d: transaction finished: %w", id, storage.ErrStoreUnavailable)
	}
	if staged, ok := tx.profiles[id]; ok {
		profile := *staged
		return &profile, nil
	}

	tx.store.mu.Lock()
	row, ok := tx.store.profiles[id]
	tx.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("profile %d: %w", id, storage.ErrNotFound)
	}

	if err := tx.acquire(ctx, row.lock); err != nil {
		return nil, fmt.Errorf("lock profile %d: %w", id, err)
	}

	tx.store.mu.Lock()
	profile := row.data
	tx.store.mu.Unlock()

	staged := profile
	tx.profiles[id] = &staged
	return &profile, nil
}

func (tx *ledgerTx) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	staged, ok := tx.profiles[profile.ID]
	if !ok {
		return fmt.Errorf("update profile %d: row not locked: %w", profile.ID, storage.ErrConstraintViolation)
	}
	if err := checkProfile(profile); err != nil {
		return err
	}
	*staged = *profile
	return nil
}

func (tx *ledgerTx) LockTeam(ctx context.Context, id int64) (*models.Team, error) {
	if tx.done {
		return nil, fmt.Errorf("lock team %d: transaction finished: %w", id, storage.ErrStoreUnavailable)
	}
	if staged, ok := tx.teams[id]; ok {
		team := *staged
		return &team, nil
	}

	tx.store.mu.Lock()
	row, ok := tx.store.teams[id]
	tx.store.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("team %d: %w", id, storage.ErrNotFound)
	}

	if err := tx.acquire(ctx, row.lock); err != nil {
		return nil, fmt.Errorf("lock team %d: %w", id, err)
	}

	tx.store.mu.Lock()
	team := row.data
	tx.store.mu.Unlock()

	staged := team
	tx.teams[id] = &staged
	return &team, nil
}

func (tx *ledgerTx) UpdateTeam(ctx context.Context, team *models.Team) error {
	staged, ok := tx.teams[team.ID]
	if !ok {
		return fmt.Errorf("update team %d: row not locked: %w", team.ID, storage.ErrConstraintViolation)
	}
	if team.PointsSent < 0 || team.JabsSent < 0 {
		return fmt.Errorf("team %d: negative counter: %w", team.ID, storage.ErrConstraintViolation)
	}
	*staged = *team
	return nil
}

// DeleteTips claims the tips for deletion at commit. A tip that is already
// gone, or claimed by another open transaction, fails the whole call.
func (tx *ledgerTx) DeleteTips(ctx context.Context, ids []int64) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	for _, id := range ids {
		if _, ok := tx.store.tips[id]; !ok {
			return fmt.Errorf("delete tip %d: %w", id, storage.ErrConstraintViolation)
		}
		if _, ok := tx.store.claimed[id]; ok {
			return fmt.Errorf("delete tip %d: already being deleted: %w", id, storage.ErrConstraintViolation)
		}
	}
	for _, id := range ids {
		tx.store.claimed[id] = struct{}{}
	}
	tx.deleted = append(tx.deleted, ids...)
	return nil
}

func (tx *ledgerTx) LatestTipReceivedAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error) {
	return tx.latest(excluding, func(tip models.Tip) bool { return tip.ToProfileID == profileID }), nil
}

func (tx *ledgerTx) LatestTipSentAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error) {
	return tx.latest(excluding, func(tip models.Tip) bool { return tip.FromProfileID == profileID }), nil
}

func (tx *ledgerTx) latest(excluding []int64, match func(models.Tip) bool) *time.Time {
	skip := make(map[int64]struct{}, len(excluding)+len(tx.deleted))
	for _, id := range excluding {
		skip[id] = struct{}{}
	}
	for _, id := range tx.deleted {
		skip[id] = struct{}{}
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()

	var latest *time.Time
	for id, tip := range tx.store.tips {
		if _, ok := skip[id]; ok || !match(tip) {
			continue
		}
		if latest == nil || tip.CreatedAt.After(*latest) {
			at := tip.CreatedAt
			latest = &at
		}
	}
	return latest
}

func (tx *ledgerTx) Commit() error {
	if tx.done {
		return fmt.Errorf("commit: transaction finished: %w", storage.ErrStoreUnavailable)
	}

	now := time.Now().UTC()
	tx.store.mu.Lock()
	for id, staged := range tx.profiles {
		staged.UpdatedAt = now
		tx.store.profiles[id].data = *staged
	}
	for id, staged := range tx.teams {
		staged.UpdatedAt = now
		tx.store.teams[id].data = *staged
	}
	for _, id := range tx.deleted {
		delete(tx.store.tips, id)
		delete(tx.store.claimed, id)
	}
	tx.store.mu.Unlock()

	tx.finish()
	return nil
}

func (tx *ledgerTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.store.mu.Lock()
	for _, id := range tx.deleted {
		delete(tx.store.claimed, id)
	}
	tx.store.mu.Unlock()

	tx.finish()
	return nil
}

func (tx *ledgerTx) finish() {
	tx.done = true
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].release()
	}
	tx.held = nil
}

func checkProfile(profile *models.Profile) error {
	if profile.PointsReceived < 0 || profile.JabsReceived < 0 || profile.PointsSent < 0 || profile.JabsSent < 0 {
		return fmt.Errorf("profile %d: negative counter: %w", profile.ID, storage.ErrConstraintViolation)
	}
	return nil
}

// Compile-time check
var _ storage.LedgerStore = (*LedgerStore)(nil)
