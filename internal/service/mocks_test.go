package service

import (
	"context"

	"github.com/kaspimerchant/ordersync/internal/kaspi"
	"github.com/kaspimerchant/ordersync/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockGateway is a mock implementation of MarketplaceGateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListOrders(ctx context.Context, p kaspi.ListOrdersParams) ([]kaspi.OrderResource, int, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]kaspi.OrderResource), args.Int(1), args.Error(2)
}

func (m *MockGateway) GetOrderByCode(ctx context.Context, code string) (kaspi.OrderResource, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(kaspi.OrderResource), args.Error(1)
}

func (m *MockGateway) GetOrderByID(ctx context.Context, id string) (kaspi.OrderResource, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(kaspi.OrderResource), args.Error(1)
}

func (m *MockGateway) GetOrderEntries(ctx context.Context, orderID string) ([]kaspi.EntryResource, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]kaspi.EntryResource), args.Error(1)
}

func (m *MockGateway) GetProductDescription(ctx context.Context, entryID string) (kaspi.ProductInfo, error) {
	args := m.Called(ctx, entryID)
	return args.Get(0).(kaspi.ProductInfo), args.Error(1)
}

func (m *MockGateway) GetDeliveryPoint(ctx context.Context, entryID string) (kaspi.PointResource, error) {
	args := m.Called(ctx, entryID)
	return args.Get(0).(kaspi.PointResource), args.Error(1)
}

func (m *MockGateway) AcceptOrder(ctx context.Context, orderID, code string) (kaspi.OrderResource, error) {
	args := m.Called(ctx, orderID, code)
	return args.Get(0).(kaspi.OrderResource), args.Error(1)
}

func (m *MockGateway) ChangeOrderStatus(ctx context.Context, orderID, status string, numberOfSpace int) (kaspi.OrderResource, error) {
	args := m.Called(ctx, orderID, status, numberOfSpace)
	return args.Get(0).(kaspi.OrderResource), args.Error(1)
}

func (m *MockGateway) CancelOrder(ctx context.Context, orderID, code string, reason models.CancelReason) (kaspi.OrderResource, error) {
	args := m.Called(ctx, orderID, code, reason)
	return args.Get(0).(kaspi.OrderResource), args.Error(1)
}

func (m *MockGateway) DownloadWaybill(ctx context.Context, waybillURL string) ([]byte, error) {
	args := m.Called(ctx, waybillURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockRepository is a mock implementation of OrderRepository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveOrder(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockRepository) RefreshSummary(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockRepository) IsNotified(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) MarkNotified(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockRepository) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockRepository) GetActiveOrders(ctx context.Context, statuses, states []string) ([]models.Order, error) {
	args := m.Called(ctx, statuses, states)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Order), args.Error(1)
}

func (m *MockRepository) UpdateOrderStatus(ctx context.Context, code, status string) error {
	args := m.Called(ctx, code, status)
	return args.Error(0)
}

func (m *MockRepository) SetWaybill(ctx context.Context, code, waybillURL string, pdf []byte) error {
	args := m.Called(ctx, code, waybillURL, pdf)
	return args.Error(0)
}

func (m *MockRepository) Clear(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
