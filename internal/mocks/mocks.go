package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"ordersync/internal/domain"
)

// MockHTTPDoer stands in for the API client in service tests.
type MockHTTPDoer struct {
	mock.Mock
}

func (m *MockHTTPDoer) Get(ctx context.Context, path string, out any) error {
	args := m.Called(ctx, path, out)
	return args.Error(0)
}

func (m *MockHTTPDoer) Post(ctx context.Context, path string, body, out any) error {
	args := m.Called(ctx, path, body, out)
	return args.Error(0)
}

func (m *MockHTTPDoer) Patch(ctx context.Context, path string, body, out any) error {
	args := m.Called(ctx, path, body, out)
	return args.Error(0)
}

// MockOrderAPI stands in for the order service in dispatcher tests.
type MockOrderAPI struct {
	mock.Mock
}

func (m *MockOrderAPI) UpdateStatus(ctx context.Context, orderID uint64, action domain.Action, otp string) (domain.OrderStatus, error) {
	args := m.Called(ctx, orderID, action, otp)
	return args.Get(0).(domain.OrderStatus), args.Error(1)
}

func (m *MockOrderAPI) Orders(ctx context.Context, role domain.Role) ([]domain.Order, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Order), args.Error(1)
}
