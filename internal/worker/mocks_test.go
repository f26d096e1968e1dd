package worker_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/LatVAlY/specWise/internal/worker"
)

type MockEmbedder struct{ mock.Mock }

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockItemStore struct{ mock.Mock }

func (m *MockItemStore) StoreItem(ctx context.Context, item worker.LineItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

type MockRunner struct{ mock.Mock }

func (m *MockRunner) Run(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}
