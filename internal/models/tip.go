package models

import (
	"time"
)

// TipKind distinguishes point transfers from jabs
type TipKind string

const (
	TipKindPoints TipKind = "points"
	TipKindJab    TipKind = "jab"
)

// Tip sources, used by reporting only
const (
	TipSourceManual   = "manual"
	TipSourceReaction = "reaction"
	TipSourceStreak   = "streak"
	TipSourceImport   = "import"
)

// Tip is a single signed movement of points (or a jab) from one profile to another
type Tip struct {
	ID            int64     `json:"id" db:"id"`
	TeamID        int64     `json:"team_id" db:"team_id"`
	FromProfileID int64     `json:"from_profile_id" db:"from_profile_id"`
	ToProfileID   int64     `json:"to_profile_id" db:"to_profile_id"`
	Quantity      int64     `json:"quantity" db:"quantity"`
	Kind          TipKind   `json:"kind" db:"kind"`
	Source        string    `json:"source" db:"source"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// IsJab reports whether the tip counts against the jab columns.
// A negative quantity is always a jab regardless of kind.
func (t Tip) IsJab() bool {
	return t.Kind == TipKindJab || t.Quantity < 0
}

// Magnitude is the absolute quantity
func (t Tip) Magnitude() int64 {
	if t.Quantity < 0 {
		return -t.Quantity
	}
	return t.Quantity
}

// BalanceDelta is the signed contribution of the tip to the recipient's balance
func (t Tip) BalanceDelta() int64 {
	if t.IsJab() {
		return -t.Magnitude()
	}
	return t.Quantity
}
