package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/kaspimerchant/ordersync/internal/kaspi"
	"github.com/kaspimerchant/ordersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func orderSummary(code, status string) kaspi.OrderResource {
	return kaspi.OrderResource{
		Type: "orders",
		ID:   models.OrderIDFromCode(code),
		Attributes: kaspi.OrderAttributes{
			Code:            code,
			Status:          status,
			State:           models.StateNew,
			TotalPrice:      15990,
			DeliveryMode:    models.DeliveryLocal,
			IsKaspiDelivery: false,
			CreationDate:    1700000000000,
		},
	}
}

func entry(id string, qty int, base, total float64) kaspi.EntryResource {
	return kaspi.EntryResource{
		Type: "orderentries",
		ID:   id,
		Attributes: kaspi.EntryAttributes{
			Quantity:   qty,
			BasePrice:  base,
			TotalPrice: total,
		},
	}
}

func TestOrderService_GetNewOrders_FirstObservation(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	summary := orderSummary("100045", models.StatusApprovedByBank)

	gw.On("ListOrders", mock.Anything, mock.MatchedBy(func(p kaspi.ListOrdersParams) bool {
		return assert.ObjectsAreEqual(models.ActiveStatuses, p.Statuses) &&
			assert.ObjectsAreEqual(models.ActiveStates, p.States)
	})).Return([]kaspi.OrderResource{summary}, 1, nil)

	repo.On("IsNotified", mock.Anything, "100045").Return(false, nil)

	gw.On("GetOrderEntries", mock.Anything, summary.ID).Return([]kaspi.EntryResource{
		entry("e1", 2, 7500, 15000),
		entry("e2", 1, 990, 990),
	}, nil)
	gw.On("GetProductDescription", mock.Anything, "e1").Return(kaspi.ProductInfo{Found: true, Code: "SKU-1", Manufacturer: "Tefal"}, nil)
	gw.On("GetProductDescription", mock.Anything, "e2").Return(kaspi.ProductInfo{}, nil)
	gw.On("GetDeliveryPoint", mock.Anything, "e1").Return(kaspi.PointResource{
		ID: "PP1",
		Attributes: kaspi.PointAttributes{
			DisplayName: "Склад Алматы",
		},
	}, nil)

	svc := NewOrderService(gw, repo)

	orders, err := svc.GetNewOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	got := orders[0]
	assert.Equal(t, "100045", got.Code)
	assert.Equal(t, models.StatusApprovedByBank, got.Status)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Tefal, арт. SKU-1", got.Items[0].Description)
	assert.Empty(t, got.Items[1].Description)
	assert.Equal(t, "Склад Алматы", got.WarehouseName)
	assert.Equal(t, "PP1", got.WarehouseID)

	// warehouse is resolved from the first entry only
	gw.AssertNumberOfCalls(t, "GetDeliveryPoint", 1)
}

func TestOrderService_GetNewOrders_NotifiedOrderIsRefreshedNotReturned(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	summary := orderSummary("100045", models.StatusAcceptedByMerchant)

	gw.On("ListOrders", mock.Anything, mock.Anything).Return([]kaspi.OrderResource{summary}, 1, nil)
	repo.On("IsNotified", mock.Anything, "100045").Return(true, nil)
	repo.On("RefreshSummary", mock.Anything, mock.MatchedBy(func(order *models.Order) bool {
		return order.Code == "100045" && order.Status == models.StatusAcceptedByMerchant
	})).Return(nil)

	svc := NewOrderService(gw, repo)

	orders, err := svc.GetNewOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)

	repo.AssertCalled(t, "RefreshSummary", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "GetOrderEntries", mock.Anything, mock.Anything)
}

func TestOrderService_GetNewOrders_ListingFailureAbortsPass(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	gw.On("ListOrders", mock.Anything, mock.Anything).Return(nil, 0, models.NewRemoteError(http.StatusBadRequest, "bad window"))

	svc := NewOrderService(gw, repo)

	_, err := svc.GetNewOrders(context.Background())
	require.Error(t, err)

	var remoteErr models.RemoteError
	assert.True(t, errors.As(err, &remoteErr))
	repo.AssertNotCalled(t, "IsNotified", mock.Anything, mock.Anything)
}

func TestOrderService_GetNewOrders_BrokenOrderIsSkippedBatchContinues(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	broken := orderSummary("100001", models.StatusApprovedByBank)
	healthy := orderSummary("100002", models.StatusApprovedByBank)

	gw.On("ListOrders", mock.Anything, mock.Anything).Return([]kaspi.OrderResource{broken, healthy}, 2, nil)

	repo.On("IsNotified", mock.Anything, "100001").Return(false, nil)
	repo.On("IsNotified", mock.Anything, "100002").Return(false, nil)

	gw.On("GetOrderEntries", mock.Anything, broken.ID).Return(nil, models.NewTransportError("GET entries", errors.New("timeout")))
	gw.On("GetOrderEntries", mock.Anything, healthy.ID).Return([]kaspi.EntryResource{entry("e1", 1, 500, 500)}, nil)
	gw.On("GetProductDescription", mock.Anything, "e1").Return(kaspi.ProductInfo{}, nil)
	gw.On("GetDeliveryPoint", mock.Anything, "e1").Return(kaspi.PointResource{ID: "PP1"}, nil)

	svc := NewOrderService(gw, repo)

	orders, err := svc.GetNewOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "100002", orders[0].Code)
}

func TestOrderService_GetNewOrders_EnrichmentFailureIsNonFatal(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	summary := orderSummary("100045", models.StatusApprovedByBank)

	gw.On("ListOrders", mock.Anything, mock.Anything).Return([]kaspi.OrderResource{summary}, 1, nil)
	repo.On("IsNotified", mock.Anything, "100045").Return(false, nil)
	gw.On("GetOrderEntries", mock.Anything, summary.ID).Return([]kaspi.EntryResource{entry("e1", 1, 500, 500)}, nil)
	gw.On("GetProductDescription", mock.Anything, "e1").Return(kaspi.ProductInfo{}, models.NewTransportError("GET product", errors.New("timeout")))
	gw.On("GetDeliveryPoint", mock.Anything, "e1").Return(kaspi.PointResource{}, models.NewRemoteError(http.StatusInternalServerError, "boom"))

	svc := NewOrderService(gw, repo)

	orders, err := svc.GetNewOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)

	// degraded to placeholder data instead of failing the order
	assert.Empty(t, orders[0].Items[0].Description)
	assert.Equal(t, "Не указан", orders[0].WarehouseName)
	assert.Equal(t, "Адрес не указан", orders[0].WarehouseAddress)
}

func TestOrderService_GetNewOrders_EagerWaybillDownload(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	summary := orderSummary("100045", models.StatusApprovedByBank)
	summary.Attributes.Waybill = "https://kaspi.kz/waybills/100045"
	summary.Attributes.IsKaspiDelivery = true

	gw.On("ListOrders", mock.Anything, mock.Anything).Return([]kaspi.OrderResource{summary}, 1, nil)
	repo.On("IsNotified", mock.Anything, "100045").Return(false, nil)
	gw.On("GetOrderEntries", mock.Anything, summary.ID).Return([]kaspi.EntryResource{entry("e1", 1, 500, 500)}, nil)
	gw.On("GetProductDescription", mock.Anything, "e1").Return(kaspi.ProductInfo{}, nil)
	gw.On("GetDeliveryPoint", mock.Anything, "e1").Return(kaspi.PointResource{ID: "PP1"}, nil)
	gw.On("DownloadWaybill", mock.Anything, "https://kaspi.kz/waybills/100045").Return([]byte("%PDF"), nil)

	svc := NewOrderService(gw, repo)

	orders, err := svc.GetNewOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, []byte("%PDF"), orders[0].WaybillPDF)
}

func TestOrderService_ActiveOrders(t *testing.T) {
	gw := new(MockGateway)
	repo := new(MockRepository)

	stored := []models.Order{{Code: "100045", Status: models.StatusAcceptedByMerchant}}
	repo.On("GetActiveOrders", mock.Anything, models.ActiveStatuses, models.ActiveStates).Return(stored, nil)

	svc := NewOrderService(gw, repo)

	orders, err := svc.ActiveOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stored, orders)
}
