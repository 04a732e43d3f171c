package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tipcircle/backend/internal/audit"
	"github.com/tipcircle/backend/internal/models"
	"github.com/tipcircle/backend/internal/monitoring"
	"github.com/tipcircle/backend/internal/storage"
)

const defaultNotifyTimeout = 10 * time.Second

// TipOutcomeService applies a batch of tips to the running totals of the
// recipients, the sender and the team, or rolls a batch back.
//
// Reversal trusts the caller: reversing a batch that was never applied, or
// reversing twice, is not detected unless the tips are also deleted, in which
// case the second deletion fails.
type TipOutcomeService struct {
	store         storage.LedgerStore
	trigger       LeaderboardTrigger
	audit         *audit.AuditLogger
	metrics       *monitoring.MetricsCollector
	logger        *logrus.Logger
	notifyTimeout time.Duration
	pending       sync.WaitGroup
}

type TipOutcomeOption func(*TipOutcomeService)

func WithMetrics(metrics *monitoring.MetricsCollector) TipOutcomeOption {
	return func(s *TipOutcomeService) {
		s.metrics = metrics
	}
}

func WithNotifyTimeout(timeout time.Duration) TipOutcomeOption {
	return func(s *TipOutcomeService) {
		if timeout > 0 {
			s.notifyTimeout = timeout
		}
	}
}

func NewTipOutcomeService(store storage.LedgerStore, trigger LeaderboardTrigger, logger *logrus.Logger, opts ...TipOutcomeOption) *TipOutcomeService {
	s := &TipOutcomeService{
		store:         store,
		trigger:       trigger,
		audit:         audit.NewAuditLogger(logger),
		logger:        logger,
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record applies freshly created tips.
func (s *TipOutcomeService) Record(ctx context.Context, tips []models.Tip) error {
	return s.Apply(ctx, tips, Forward, false)
}

// Retract rolls tips back and deletes them in the same transaction.
func (s *TipOutcomeService) Retract(ctx context.Context, tips []models.Tip) error {
	return s.Apply(ctx, tips, Reverse, true)
}

// Apply moves the batch's deltas onto every affected profile and the team in
// one transaction. With destroy set the tips are deleted in that transaction
// too. On success two leaderboard refreshes are scheduled in the background.
func (s *TipOutcomeService) Apply(ctx context.Context, tips []models.Tip, direction Direction, destroy bool) error {
	start := time.Now()
	batchID := uuid.NewString()

	batch, err := AggregateTips(tips)
	if err != nil {
		s.observe(direction, "rejected", 0, start)
		return err
	}

	if err := s.commit(ctx, batch, direction, destroy); err != nil {
		s.audit.LogError(batchID, batch.TeamID, err)
		s.observe(direction, "failed", 0, start)
		return err
	}

	s.audit.LogOutcome(batchID, batch.TeamID, batch.SenderID, len(batch.TipIDs),
		batch.TotalPoints, batch.TotalJabs, direction.String(), destroy)
	s.observe(direction, "success", len(batch.TipIDs), start)

	s.refreshLeaderboards(batch.TeamID)
	return nil
}

func (s *TipOutcomeService) commit(ctx context.Context, batch *TipBatch, direction Direction, destroy bool) error {
	order := LockOrder(batch.ProfileIDs(), batch.TeamID)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin ledger transaction: %w", err)
	}
	defer tx.Rollback()

	profiles := make(map[int64]*models.Profile, len(order))
	var team *models.Team

	for _, target := range order {
		switch target.Kind {
		case LockProfile:
			profile, err := tx.LockProfile(ctx, target.ID)
			if err != nil {
				return err
			}
			if profile.TeamID != batch.TeamID {
				return fmt.Errorf("profile %d belongs to team %d, not %d: %w",
					profile.ID, profile.TeamID, batch.TeamID, ErrConstraintViolation)
			}
			profiles[target.ID] = profile
		case LockTeam:
			if team, err = tx.LockTeam(ctx, target.ID); err != nil {
				return err
			}
		}
	}

	sign := direction.sign()

	for _, target := range order {
		delta, ok := batch.Recipients[target.ID]
		if target.Kind != LockProfile || !ok {
			continue
		}
		profile := profiles[target.ID]
		profile.PointsReceived += sign * delta.PointsReceived
		profile.JabsReceived += sign * delta.JabsReceived
		profile.Balance += sign * delta.Balance

		if direction == Forward {
			profile.LastTipReceivedAt = later(profile.LastTipReceivedAt, delta.LatestTipAt)
		} else {
			if profile.LastTipReceivedAt, err = tx.LatestTipReceivedAt(ctx, profile.ID, batch.TipIDs); err != nil {
				return err
			}
		}
	}

	sender := profiles[batch.SenderID]
	sender.PointsSent += sign * batch.TotalPoints
	sender.JabsSent += sign * batch.TotalJabs
	sender.Balance += sign * batch.SenderBalanceDelta()
	if direction == Forward {
		sender.LastTipSentAt = later(sender.LastTipSentAt, batch.Latest.CreatedAt)
	} else {
		if sender.LastTipSentAt, err = tx.LatestTipSentAt(ctx, sender.ID, batch.TipIDs); err != nil {
			return err
		}
	}

	team.PointsSent += sign * batch.TotalPoints
	team.JabsSent += sign * batch.TotalJabs
	team.Balance += sign * batch.TeamBalanceDelta()

	for _, target := range order {
		if target.Kind == LockTeam {
			if err := checkTeam(team); err != nil {
				return err
			}
			if err := tx.UpdateTeam(ctx, team); err != nil {
				return err
			}
			continue
		}
		profile := profiles[target.ID]
		if err := checkProfile(profile); err != nil {
			return err
		}
		if err := tx.UpdateProfile(ctx, profile); err != nil {
			return err
		}
	}

	if destroy {
		if err := tx.DeleteTips(ctx, batch.TipIDs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// refreshLeaderboards never blocks the caller and never fails the outcome.
func (s *TipOutcomeService) refreshLeaderboards(teamID int64) {
	if s.trigger == nil {
		return
	}

	for _, variant := range []Variant{VariantPrimary, VariantAlternate} {
		s.pending.Add(1)
		go func(variant Variant) {
			defer s.pending.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.WithField("panic", r).Error("Leaderboard trigger panicked")
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
			defer cancel()

			if err := s.trigger.Schedule(ctx, teamID, variant); err != nil {
				s.logger.WithError(err).WithFields(logrus.Fields{
					"team_id": teamID,
					"variant": variant,
				}).Warn("Failed to schedule leaderboard refresh")
				if s.metrics != nil {
					s.metrics.TriggerFailures.WithLabelValues(string(variant)).Inc()
				}
			}
		}(variant)
	}
}

// Wait blocks until every scheduled leaderboard refresh has been handed off
func (s *TipOutcomeService) Wait() {
	s.pending.Wait()
}

func (s *TipOutcomeService) observe(direction Direction, result string, tips int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.OutcomesTotal.WithLabelValues(direction.String(), result).Inc()
	s.metrics.OutcomeDuration.WithLabelValues(direction.String()).Observe(time.Since(start).Seconds())
	if tips > 0 {
		s.metrics.TipsProcessed.WithLabelValues(direction.String()).Add(float64(tips))
	}
}

func later(current *time.Time, candidate time.Time) *time.Time {
	if current != nil && !candidate.After(*current) {
		return current
	}
	return &candidate
}

func checkProfile(profile *models.Profile) error {
	if profile.PointsReceived < 0 || profile.JabsReceived < 0 || profile.PointsSent < 0 || profile.JabsSent < 0 {
		return fmt.Errorf("profile %d would go negative: %w", profile.ID, ErrConstraintViolation)
	}
	return nil
}

func checkTeam(team *models.Team) error {
	if team.PointsSent < 0 || team.JabsSent < 0 {
		return fmt.Errorf("team %d would go negative: %w", team.ID, ErrConstraintViolation)
	}
	return nil
}
