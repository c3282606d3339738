package service

import (
	"context"
	"fmt"

	"github.com/kaspimerchant/ordersync/internal/kaspi"
	"github.com/kaspimerchant/ordersync/internal/logger"
	"github.com/kaspimerchant/ordersync/internal/models"
	"go.uber.org/zap"
)

// MarketplaceGateway is interface for interacting with the Kaspi merchant API
type MarketplaceGateway interface {
	// ListOrders returns one page of orders matching the filter
	ListOrders(ctx context.Context, p kaspi.ListOrdersParams) ([]kaspi.OrderResource, int, error)
	// GetOrderByCode returns order by its human-facing code
	GetOrderByCode(ctx context.Context, code string) (kaspi.OrderResource, error)
	// GetOrderByID returns order by its opaque marketplace id
	GetOrderByID(ctx context.Context, id string) (kaspi.OrderResource, error)
	// GetOrderEntries returns line items of order
	GetOrderEntries(ctx context.Context, orderID string) ([]kaspi.EntryResource, error)
	// GetProductDescription returns product metadata for order entry
	GetProductDescription(ctx context.Context, entryID string) (kaspi.ProductInfo, error)
	// GetDeliveryPoint returns point of service the entry is shipped from
	GetDeliveryPoint(ctx context.Context, entryID string) (kaspi.PointResource, error)
	// AcceptOrder changes order status to ACCEPTED_BY_MERCHANT
	AcceptOrder(ctx context.Context, orderID, code string) (kaspi.OrderResource, error)
	// ChangeOrderStatus is generic status transition primitive
	ChangeOrderStatus(ctx context.Context, orderID, status string, numberOfSpace int) (kaspi.OrderResource, error)
	// CancelOrder changes order status to CANCELLED with given reason
	CancelOrder(ctx context.Context, orderID, code string, reason models.CancelReason) (kaspi.OrderResource, error)
	// DownloadWaybill downloads waybill PDF by absolute url
	DownloadWaybill(ctx context.Context, waybillURL string) ([]byte, error)
}

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// SaveOrder inserts order or updates existing one in place
	SaveOrder(ctx context.Context, order *models.Order) error
	// RefreshSummary updates listing-level fields of already stored order
	RefreshSummary(ctx context.Context, order *models.Order) error
	// IsNotified reports whether notification for order has been sent
	IsNotified(ctx context.Context, code string) (bool, error)
	// MarkNotified sets notified_at once
	MarkNotified(ctx context.Context, code string) error
	// GetOrderByCode returns stored order by code
	GetOrderByCode(ctx context.Context, code string) (*models.Order, error)
	// GetActiveOrders returns orders whose status and state are in given sets
	GetActiveOrders(ctx context.Context, statuses, states []string) ([]models.Order, error)
	// UpdateOrderStatus updates status of stored order
	UpdateOrderStatus(ctx context.Context, code, status string) error
	// SetWaybill stores waybill url and cached PDF
	SetWaybill(ctx context.Context, code, waybillURL string, pdf []byte) error
	// Clear removes all stored orders and returns removed count
	Clear(ctx context.Context) (int64, error)
}

// OrderService assembles composite orders from the marketplace and keeps
// them deduplicated against the store
type OrderService struct {
	gw   MarketplaceGateway
	repo OrderRepository
}

// NewOrderService creates new OrderService instance
func NewOrderService(gw MarketplaceGateway, repo OrderRepository) *OrderService {
	return &OrderService{
		gw:   gw,
		repo: repo,
	}
}

// GetNewOrders returns composite orders that have not been notified yet.
// Orders already marked notified get their stored summary refreshed instead.
// A listing failure aborts the whole pass, a failure on a single order only
// skips that order.
func (os *OrderService) GetNewOrders(ctx context.Context) ([]models.Order, error) {
	summaries, total, err := os.gw.ListOrders(ctx, kaspi.ListOrdersParams{
		Statuses: models.ActiveStatuses,
		States:   models.ActiveStates,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	logger.Log.Info("got orders from marketplace",
		zap.Int("page", len(summaries)),
		zap.Int("total", total))

	var newOrders []models.Order

	for _, summary := range summaries {
		code := summary.Attributes.Code

		notified, err := os.repo.IsNotified(ctx, code)
		if err != nil {
			logger.Log.Warn("notification check failed, skipping order",
				zap.String("code", code), zap.Error(err))
			continue
		}

		if notified {
			// keep stored fields fresh, the status may have moved on
			if err := os.refreshSummary(ctx, summary); err != nil {
				logger.Log.Warn("refresh of notified order failed",
					zap.String("code", code), zap.Error(err))
			}
			continue
		}

		order, err := os.composeOrder(ctx, summary)
		if err != nil {
			logger.Log.Warn("order assembly failed, skipping order",
				zap.String("code", code), zap.Error(err))
			continue
		}

		newOrders = append(newOrders, *order)
	}

	return newOrders, nil
}

// composeOrder assembles one composite order: line items with optional
// product enrichment, warehouse of the first entry, eager waybill download.
func (os *OrderService) composeOrder(ctx context.Context, summary kaspi.OrderResource) (*models.Order, error) {
	entries, err := os.gw.GetOrderEntries(ctx, summary.ID)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}

	order := orderFromResource(summary)

	var warehouse *models.Warehouse

	for i, entry := range entries {
		item := models.LineItem{
			Name:       entry.Attributes.Title(),
			Quantity:   entry.Attributes.Quantity,
			BasePrice:  entry.Attributes.BasePrice,
			TotalPrice: entry.Attributes.TotalPrice,
		}

		product, err := os.gw.GetProductDescription(ctx, entry.ID)
		if err != nil {
			logger.Log.Warn("product description unavailable",
				zap.String("code", order.Code), zap.String("entry", entry.ID), zap.Error(err))
		} else if product.Found {
			item.Description = product.Description()
		}

		// orders are assumed single-warehouse, resolve it from the first
		// entry only
		if i == 0 {
			point, err := os.gw.GetDeliveryPoint(ctx, entry.ID)
			if err != nil {
				logger.Log.Warn("warehouse lookup failed",
					zap.String("code", order.Code), zap.Error(err))
				warehouse = &models.Warehouse{Name: "Не указан", Address: "Адрес не указан"}
			} else {
				warehouse = &models.Warehouse{
					ID:      point.ID,
					Name:    point.Attributes.DisplayName,
					Address: point.Attributes.Address.FormattedAddress,
				}
			}
		}

		order.Items = append(order.Items, item)
	}

	if warehouse != nil {
		order.WarehouseID = warehouse.ID
		order.WarehouseName = warehouse.Name
		order.WarehouseAddress = warehouse.Address
	}

	if order.WaybillURL != "" {
		pdf, err := os.gw.DownloadWaybill(ctx, order.WaybillURL)
		if err != nil {
			// the PDF can still be fetched lazily on status query
			logger.Log.Warn("waybill download failed",
				zap.String("code", order.Code), zap.Error(err))
		} else {
			order.WaybillPDF = pdf
		}
	}

	return &order, nil
}

func (os *OrderService) refreshSummary(ctx context.Context, summary kaspi.OrderResource) error {
	order := orderFromResource(summary)
	return os.repo.RefreshSummary(ctx, &order)
}

// SaveOrder persists composite order
func (os *OrderService) SaveOrder(ctx context.Context, order *models.Order) error {
	return os.repo.SaveOrder(ctx, order)
}

// MarkNotified marks order as notified
func (os *OrderService) MarkNotified(ctx context.Context, code string) error {
	return os.repo.MarkNotified(ctx, code)
}

// ActiveOrders returns stored orders that still require merchant action
func (os *OrderService) ActiveOrders(ctx context.Context) ([]models.Order, error) {
	return os.repo.GetActiveOrders(ctx, models.ActiveStatuses, models.ActiveStates)
}

// Order returns stored order by code
func (os *OrderService) Order(ctx context.Context, code string) (*models.Order, error) {
	return os.repo.GetOrderByCode(ctx, code)
}

// Clear removes all stored orders and returns removed count
func (os *OrderService) Clear(ctx context.Context) (int64, error) {
	return os.repo.Clear(ctx)
}

// Probe lists a few orders without filters, used by the debug command
func (os *OrderService) Probe(ctx context.Context) ([]kaspi.OrderResource, int, error) {
	return os.gw.ListOrders(ctx, kaspi.ListOrdersParams{PageSize: 5})
}

// orderFromResource maps remote order summary to domain order
func orderFromResource(res kaspi.OrderResource) models.Order {
	attrs := res.Attributes

	deliveryAddress := attrs.DeliveryAddress.FormattedAddress
	if deliveryAddress == "" {
		deliveryAddress = "Самовывоз"
	}

	phone := attrs.Customer.CellPhone
	if phone == "" {
		phone = "Не указан"
	}

	return models.Order{
		ID:                  res.ID,
		Code:                attrs.Code,
		Status:              attrs.Status,
		State:               attrs.State,
		TotalPrice:          attrs.TotalPrice,
		CustomerName:        attrs.CustomerName(),
		CustomerPhone:       phone,
		DeliveryMode:        attrs.DeliveryMode,
		DeliveryType:        models.DeliveryTypeText(attrs.DeliveryMode, attrs.IsKaspiDelivery),
		DeliveryAddress:     deliveryAddress,
		PlannedDeliveryDate: attrs.PlannedDeliveryAt(),
		CreationDate:        attrs.CreatedAt(),
		IsKaspiDelivery:     attrs.IsKaspiDelivery,
		IsExpress:           attrs.KaspiDelivery.Express,
		WaybillURL:          attrs.WaybillURL(),
	}
}
