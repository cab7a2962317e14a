package mocks

import (
	"context"

	"docflow/internal/notifier"

	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, p notifier.Payload) {
	m.Called(ctx, p)
}
