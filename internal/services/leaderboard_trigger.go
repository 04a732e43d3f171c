package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Variant selects which leaderboard flavor a refresh recomputes
type Variant string

const (
	VariantPrimary   Variant = "primary"
	VariantAlternate Variant = "alternate"
)

// LeaderboardTrigger schedules a leaderboard refresh for a team. Delivery is
// at-least-once; consumers must treat repeated jobs as idempotent.
type LeaderboardTrigger interface {
	Schedule(ctx context.Context, teamID int64, variant Variant) error
}

// LeaderboardRefreshJob is the payload every transport carries
type LeaderboardRefreshJob struct {
	JobID       string    `json:"job_id"`
	TeamID      int64     `json:"team_id"`
	Variant     Variant   `json:"variant"`
	RequestedAt time.Time `json:"requested_at"`
}

func newRefreshJob(teamID int64, variant Variant) LeaderboardRefreshJob {
	return LeaderboardRefreshJob{
		JobID:       uuid.NewString(),
		TeamID:      teamID,
		Variant:     variant,
		RequestedAt: time.Now().UTC(),
	}
}

// RedisLeaderboardQueue pushes jobs onto a Redis list consumed by the ranking worker
type RedisLeaderboardQueue struct {
	redis *redis.Client
	queue string
}

func NewRedisLeaderboardQueue(client *redis.Client, queue string) *RedisLeaderboardQueue {
	return &RedisLeaderboardQueue{
		redis: client,
		queue: queue,
	}
}

func (q *RedisLeaderboardQueue) Schedule(ctx context.Context, teamID int64, variant Variant) error {
	data, err := json.Marshal(newRefreshJob(teamID, variant))
	if err != nil {
		return err
	}

	if err := q.redis.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("push leaderboard refresh for team %d: %w", teamID, err)
	}
	return nil
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaLeaderboardPublisher publishes jobs keyed by team so one team's
// refreshes stay on one partition.
type KafkaLeaderboardPublisher struct {
	writer messageWriter
}

func NewKafkaLeaderboardPublisher(brokers []string, topic string) *KafkaLeaderboardPublisher {
	return &KafkaLeaderboardPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaLeaderboardPublisher) Schedule(ctx context.Context, teamID int64, variant Variant) error {
	data, err := json.Marshal(newRefreshJob(teamID, variant))
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(teamID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "variant", Value: []byte(variant)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish leaderboard refresh for team %d: %w", teamID, err)
	}
	return nil
}

func (p *KafkaLeaderboardPublisher) Close() error {
	return p.writer.Close()
}

// LoggingLeaderboardTrigger only logs. Used when no queue is reachable.
type LoggingLeaderboardTrigger struct {
	logger *logrus.Logger
}

func NewLoggingLeaderboardTrigger(logger *logrus.Logger) *LoggingLeaderboardTrigger {
	return &LoggingLeaderboardTrigger{logger: logger}
}

func (l *LoggingLeaderboardTrigger) Schedule(ctx context.Context, teamID int64, variant Variant) error {
	l.logger.WithFields(logrus.Fields{
		"team_id": teamID,
		"variant": variant,
	}).Info("Leaderboard refresh requested, no queue configured")
	return nil
}
