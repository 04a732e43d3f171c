package audit

import (
	"time"

	"github.com/sirupsen/logrus"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	BatchID   string    `json:"batch_id"`
	TeamID    int64     `json:"team_id"`
	ProfileID int64     `json:"profile_id"`
	TipCount  int       `json:"tip_count"`
	Points    int64     `json:"points"`
	Jabs      int64     `json:"jabs"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// AuditLogger writes one structured record per ledger outcome
type AuditLogger struct {
	logger *logrus.Logger
}

func NewAuditLogger(logger *logrus.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogOutcome records a committed batch. direction is "forward" or "reverse".
func (a *AuditLogger) LogOutcome(batchID string, teamID, senderID int64, tipCount int, points, jabs int64, direction string, destroyed bool) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "TIP_OUTCOME",
		BatchID:   batchID,
		TeamID:    teamID,
		ProfileID: senderID,
		TipCount:  tipCount,
		Points:    points,
		Jabs:      jabs,
		Status:    "SUCCESS",
		Details: map[string]any{
			"direction": direction,
			"destroyed": destroyed,
		},
	})
}

func (a *AuditLogger) LogError(batchID string, teamID int64, err error) {
	a.log(AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: "ERROR",
		BatchID:   batchID,
		TeamID:    teamID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	entry := a.logger.WithFields(logrus.Fields{
		"audit":      true,
		"event_type": event.EventType,
		"batch_id":   event.BatchID,
		"team_id":    event.TeamID,
		"status":     event.Status,
		"details":    event.Details,
	})
	if event.ProfileID != 0 {
		entry = entry.WithField("profile_id", event.ProfileID)
	}
	if event.TipCount > 0 {
		entry = entry.WithFields(logrus.Fields{
			"tip_count": event.TipCount,
			"points":    event.Points,
			"jabs":      event.Jabs,
		})
	}

	if event.Status == "FAILED" {
		entry.Warn("AUDIT")
		return
	}
	entry.Info("AUDIT")
}
