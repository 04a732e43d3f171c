package models

import (
	"time"
)

// Profile is an individually tracked balance holder within a team
type Profile struct {
	ID                int64      `json:"id" db:"id"`
	TeamID            int64      `json:"team_id" db:"team_id"`
	DisplayName       string     `json:"display_name" db:"display_name"`
	PointsReceived    int64      `json:"points_received" db:"points_received"`
	JabsReceived      int64      `json:"jabs_received" db:"jabs_received"`
	PointsSent        int64      `json:"points_sent" db:"points_sent"`
	JabsSent          int64      `json:"jabs_sent" db:"jabs_sent"`
	Balance           int64      `json:"balance" db:"balance"`
	LastTipReceivedAt *time.Time `json:"last_tip_received_at" db:"last_tip_received_at"`
	LastTipSentAt     *time.Time `json:"last_tip_sent_at" db:"last_tip_sent_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// Team owns a set of profiles and keeps its own running totals
type Team struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	PointsSent int64     `json:"points_sent" db:"points_sent"`
	JabsSent   int64     `json:"jabs_sent" db:"jabs_sent"`
	Balance    int64     `json:"balance" db:"balance"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
