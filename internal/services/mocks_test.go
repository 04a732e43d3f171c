package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockLeaderboardTrigger struct {
	mock.Mock
}

func (m *MockLeaderboardTrigger) Schedule(ctx context.Context, teamID int64, variant Variant) error {
	args := m.Called(ctx, teamID, variant)
	return args.Error(0)
}
