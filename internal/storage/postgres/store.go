package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/tipcircle/backend/internal/models"
	"github.com/tipcircle/backend/internal/storage"
)

const profileColumns = `id, team_id, display_name, points_received, jabs_received, points_sent, jabs_sent,
		balance, last_tip_received_at, last_tip_sent_at, updated_at`

const teamColumns = `id, name, points_sent, jabs_sent, balance, updated_at`

const tipColumns = `id, team_id, from_profile_id, to_profile_id, quantity, kind, source, created_at`

type PostgresLedgerStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// NewPostgresLedgerStore wraps db. lockTimeout bounds every row lock wait
// inside a transaction; zero leaves the server default in place.
func NewPostgresLedgerStore(db *sql.DB, lockTimeout time.Duration) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

func (p *PostgresLedgerStore) BeginTx(ctx context.Context) (storage.LedgerTx, error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", translate(err))
	}

	if p.lockTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.lockTimeout.Milliseconds())
		if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
			dbTx.Rollback()
			return nil, fmt.Errorf("set lock timeout: %w", translate(err))
		}
	}

	return &ledgerTx{tx: dbTx}, nil
}

func (p *PostgresLedgerStore) FindTips(ctx context.Context, ids []int64) ([]models.Tip, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+tipColumns+`
		FROM tips
		WHERE id = ANY($1)
		ORDER BY created_at, id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find tips: %w", translate(err))
	}
	defer rows.Close()

	tips := make([]models.Tip, 0, len(ids))
	for rows.Next() {
		var tip models.Tip
		if err := rows.Scan(&tip.ID, &tip.TeamID, &tip.FromProfileID, &tip.ToProfileID,
			&tip.Quantity, &tip.Kind, &tip.Source, &tip.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tip: %w", translate(err))
		}
		tips = append(tips, tip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find tips: %w", translate(err))
	}

	if len(tips) != len(ids) {
		return nil, fmt.Errorf("found %d of %d tips: %w", len(tips), len(ids), storage.ErrNotFound)
	}
	return tips, nil
}

func (p *PostgresLedgerStore) GetProfile(ctx context.Context, id int64) (*models.Profile, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", id, translate(err))
	}
	return profile, nil
}

func (p *PostgresLedgerStore) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
	team, err := scanTeam(row)
	if err != nil {
		return nil, fmt.Errorf("team %d: %w", id, translate(err))
	}
	return team, nil
}

type ledgerTx struct {
	tx *sql.Tx
}

// LockProfile is idempotent within one transaction: Postgres grants a row
// lock the transaction already holds without blocking. NO KEY UPDATE still
// excludes other ledger writers but lets tip inserts take their foreign key
// share locks; ledger updates never touch keys.
func (t *ledgerTx) LockProfile(ctx context.Context, id int64) (*models.Profile, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+profileColumns+`
		FROM profiles
		WHERE id = $1
		FOR NO KEY UPDATE`, id)
	profile, err := scanProfile(row)
	if err != nil {
		return nil, fmt.Errorf("lock profile %d: %w", id, translate(err))
	}
	return profile, nil
}

func (t *ledgerTx) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE profiles
		SET points_received = $1, jabs_received = $2, points_sent = $3, jabs_sent = $4, balance = $5,
			last_tip_received_at = $6, last_tip_sent_at = $7, updated_at = $8
		WHERE id = $9`,
		profile.PointsReceived, profile.JabsReceived, profile.PointsSent, profile.JabsSent, profile.Balance,
		nullTime(profile.LastTipReceivedAt), nullTime(profile.LastTipSentAt), time.Now().UTC(), profile.ID)
	if err != nil {
		return fmt.Errorf("update profile %d: %w", profile.ID, translate(err))
	}
	return expectOneRow(result, fmt.Sprintf("profile %d", profile.ID))
}

func (t *ledgerTx) LockTeam(ctx context.Context, id int64) (*models.Team, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT `+teamColumns+`
		FROM teams
		WHERE id = $1
		FOR NO KEY UPDATE`, id)
	team, err := scanTeam(row)
	if err != nil {
		return nil, fmt.Errorf("lock team %d: %w", id, translate(err))
	}
	return team, nil
}

func (t *ledgerTx) UpdateTeam(ctx context.Context, team *models.Team) error {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE teams
		SET points_sent = $1, jabs_sent = $2, balance = $3, updated_at = $4
		WHERE id = $5`,
		team.PointsSent, team.JabsSent, team.Balance, time.Now().UTC(), team.ID)
	if err != nil {
		return fmt.Errorf("update team %d: %w", team.ID, translate(err))
	}
	return expectOneRow(result, fmt.Sprintf("team %d", team.ID))
}

// DeleteTips removes every tip or fails. Fewer deleted rows than ids means
// another transaction already removed part of the batch.
func (t *ledgerTx) DeleteTips(ctx context.Context, ids []int64) error {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM tips WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("delete tips: %w", translate(err))
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete tips: %w", translate(err))
	}
	if deleted != int64(len(ids)) {
		return fmt.Errorf("deleted %d of %d tips: %w", deleted, len(ids), storage.ErrConstraintViolation)
	}
	return nil
}

func (t *ledgerTx) LatestTipReceivedAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error) {
	return t.latest(ctx, `
		SELECT MAX(created_at)
		FROM tips
		WHERE to_profile_id = $1 AND NOT (id = ANY($2))`, profileID, excluding)
}

func (t *ledgerTx) LatestTipSentAt(ctx context.Context, profileID int64, excluding []int64) (*time.Time, error) {
	return t.latest(ctx, `
		SELECT MAX(created_at)
		FROM tips
		WHERE from_profile_id = $1 AND NOT (id = ANY($2))`, profileID, excluding)
}

func (t *ledgerTx) latest(ctx context.Context, query string, profileID int64, excluding []int64) (*time.Time, error) {
	if excluding == nil {
		excluding = []int64{}
	}

	var latest sql.NullTime
	if err := t.tx.QueryRowContext(ctx, query, profileID, pq.Array(excluding)).Scan(&latest); err != nil {
		return nil, fmt.Errorf("latest tip for profile %d: %w", profileID, translate(err))
	}
	if !latest.Valid {
		return nil, nil
	}
	at := latest.Time
	return &at, nil
}

func (t *ledgerTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", translate(err))
	}
	return nil
}

func (t *ledgerTx) Rollback() error {
	err := t.tx.Rollback()
	if err == nil || err == sql.ErrTxDone {
		return nil
	}
	return fmt.Errorf("rollback: %w", translate(err))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var profile models.Profile
	var received, sent sql.NullTime
	err := row.Scan(&profile.ID, &profile.TeamID, &profile.DisplayName,
		&profile.PointsReceived, &profile.JabsReceived, &profile.PointsSent, &profile.JabsSent,
		&profile.Balance, &received, &sent, &profile.UpdatedAt)
	if err != nil {
		return nil, err
	}
	profile.LastTipReceivedAt = timePtr(received)
	profile.LastTipSentAt = timePtr(sent)
	return &profile, nil
}

func scanTeam(row rowScanner) (*models.Team, error) {
	var team models.Team
	err := row.Scan(&team.ID, &team.Name, &team.PointsSent, &team.JabsSent, &team.Balance, &team.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func expectOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", what, translate(err))
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update %s: %w", what, storage.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	at := t.Time
	return &at
}

var _ storage.LedgerStore = (*PostgresLedgerStore)(nil)
