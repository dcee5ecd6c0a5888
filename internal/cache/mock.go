package cache

import (
	"context"

	"github.com/npezzotti/go-tripplanner/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockProfileCache struct {
	mock.Mock
}

func (m *MockProfileCache) GetProfile(ctx context.Context, id string) (types.Profile, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Profile), args.Bool(1), args.Error(2)
}

func (m *MockProfileCache) SetProfile(ctx context.Context, p types.Profile) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockProfileCache) Close() error {
	args := m.Called()
	return args.Error(0)
}
