package services

import (
	"fmt"
	"time"

	"github.com/tipcircle/backend/internal/models"
)

// Direction selects whether a batch is applied or rolled back
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

func (d Direction) sign() int64 {
	if d == Reverse {
		return -1
	}
	return 1
}

// RecipientDelta is what a batch does to one receiving profile
type RecipientDelta struct {
	ProfileID      int64
	PointsReceived int64
	JabsReceived   int64
	Balance        int64
	LatestTipAt    time.Time
	TipCount       int
}

// TipBatch holds the totals of a batch, computed once before any lock is taken.
type TipBatch struct {
	TeamID      int64
	SenderID    int64
	TotalPoints int64
	TotalJabs   int64
	Recipients  map[int64]*RecipientDelta
	Latest      models.Tip
	TipIDs      []int64
}

// SenderBalanceDelta debits the sender for points given. Jabs cost the sender nothing.
func (b *TipBatch) SenderBalanceDelta() int64 {
	return -b.TotalPoints
}

// TeamBalanceDelta is points given minus jabs given
func (b *TipBatch) TeamBalanceDelta() int64 {
	return b.TotalPoints - b.TotalJabs
}

// ProfileIDs lists every profile the batch touches, sender included, without duplicates.
func (b *TipBatch) ProfileIDs() []int64 {
	ids := make([]int64, 0, len(b.Recipients)+1)
	for id := range b.Recipients {
		ids = append(ids, id)
	}
	if _, ok := b.Recipients[b.SenderID]; !ok {
		ids = append(ids, b.SenderID)
	}
	return ids
}

// AggregateTips computes a batch's deltas in one pass. Tips may arrive in any
// order; latest timestamps are chosen chronologically.
func AggregateTips(tips []models.Tip) (*TipBatch, error) {
	if len(tips) == 0 {
		return nil, ErrEmptyBatch
	}

	first := tips[0]
	batch := &TipBatch{
		TeamID:     first.TeamID,
		SenderID:   first.FromProfileID,
		Recipients: make(map[int64]*RecipientDelta),
		Latest:     first,
		TipIDs:     make([]int64, 0, len(tips)),
	}

	seen := make(map[int64]struct{}, len(tips))
	for _, tip := range tips {
		if tip.TeamID != batch.TeamID {
			return nil, fmt.Errorf("tip %d belongs to team %d, batch to team %d: %w",
				tip.ID, tip.TeamID, batch.TeamID, ErrMultipleTeams)
		}
		if tip.FromProfileID != batch.SenderID {
			return nil, fmt.Errorf("tip %d sent by profile %d, batch by profile %d: %w",
				tip.ID, tip.FromProfileID, batch.SenderID, ErrMultipleSenders)
		}
		if _, dup := seen[tip.ID]; dup {
			return nil, fmt.Errorf("tip %d: %w", tip.ID, ErrDuplicateTip)
		}
		seen[tip.ID] = struct{}{}
		batch.TipIDs = append(batch.TipIDs, tip.ID)

		delta, ok := batch.Recipients[tip.ToProfileID]
		if !ok {
			delta = &RecipientDelta{ProfileID: tip.ToProfileID, LatestTipAt: tip.CreatedAt}
			batch.Recipients[tip.ToProfileID] = delta
		}

		if tip.IsJab() {
			batch.TotalJabs += tip.Magnitude()
			delta.JabsReceived += tip.Magnitude()
		} else {
			batch.TotalPoints += tip.Quantity
			delta.PointsReceived += tip.Quantity
		}
		delta.Balance += tip.BalanceDelta()
		delta.TipCount++

		if tip.CreatedAt.After(delta.LatestTipAt) {
			delta.LatestTipAt = tip.CreatedAt
		}
		if tip.CreatedAt.After(batch.Latest.CreatedAt) {
			batch.Latest = tip
		}
	}

	return batch, nil
}
