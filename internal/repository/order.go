package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/kaspimerchant/ordersync/internal/models"
	"github.com/kaspimerchant/ordersync/internal/repository/postgres"
)

const (
	upsertOrderQuery = `
						INSERT INTO orders (code, kaspi_id, status, state, total_price,
						                    customer_name, customer_phone, delivery_mode, delivery_type, delivery_address,
						                    warehouse_id, warehouse_name, warehouse_address,
						                    planned_delivery_date, creation_date, is_kaspi_delivery, is_express,
						                    items, waybill_url, waybill_pdf, updated_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
						ON CONFLICT (code) DO UPDATE SET
						    kaspi_id = EXCLUDED.kaspi_id,
						    status = EXCLUDED.status,
						    state = EXCLUDED.state,
						    total_price = EXCLUDED.total_price,
						    customer_name = EXCLUDED.customer_name,
						    customer_phone = EXCLUDED.customer_phone,
						    delivery_mode = EXCLUDED.delivery_mode,
						    delivery_type = EXCLUDED.delivery_type,
						    delivery_address = EXCLUDED.delivery_address,
						    warehouse_id = EXCLUDED.warehouse_id,
						    warehouse_name = EXCLUDED.warehouse_name,
						    warehouse_address = EXCLUDED.warehouse_address,
						    planned_delivery_date = EXCLUDED.planned_delivery_date,
						    creation_date = EXCLUDED.creation_date,
						    is_kaspi_delivery = EXCLUDED.is_kaspi_delivery,
						    is_express = EXCLUDED.is_express,
						    items = EXCLUDED.items,
						    waybill_url = EXCLUDED.waybill_url,
						    waybill_pdf = EXCLUDED.waybill_pdf,
						    updated_at = now()
`
	refreshSummaryQuery = `
						UPDATE orders
						SET status = $1, state = $2, total_price = $3, planned_delivery_date = $4, updated_at = now()
						WHERE code = $5
`
	selectNotifiedAtQuery = `
						SELECT notified_at IS NOT NULL FROM orders
						WHERE code = $1
`
	markNotifiedQuery = `
						UPDATE orders
						SET notified_at = now()
						WHERE code = $1 AND notified_at IS NULL
`
	orderColumns = `code, kaspi_id, status, state, total_price,
						customer_name, customer_phone, delivery_mode, delivery_type, delivery_address,
						warehouse_id, warehouse_name, warehouse_address,
						planned_delivery_date, creation_date, is_kaspi_delivery, is_express,
						items, waybill_url, waybill_pdf, notified_at`

	selectOrderByCodeQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE code = $1
`
	selectActiveOrdersQuery = `
						SELECT ` + orderColumns + ` FROM orders
						WHERE status = ANY($1) AND state = ANY($2)
						ORDER BY creation_date DESC
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, updated_at = now()
						WHERE code = $2
`
	setWaybillQuery = `
						UPDATE orders
						SET waybill_url = $1, waybill_pdf = $2, updated_at = now()
						WHERE code = $3
`
	clearOrdersQuery = `DELETE FROM orders`
)

// OrderRepository is persistent order store keyed by order code
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// SaveOrder inserts order or updates existing one in place. Every field is
// last-write-wins except notified_at which is never touched here.
func (or *OrderRepository) SaveOrder(ctx context.Context, order *models.Order) error {
	items, err := encodeItems(order.Items)
	if err != nil {
		return fmt.Errorf("encode line items: %w", err)
	}

	_, err = or.db.Exec(ctx, upsertOrderQuery,
		order.Code, order.ID, order.Status, order.State, order.TotalPrice,
		order.CustomerName, order.CustomerPhone, order.DeliveryMode, order.DeliveryType, order.DeliveryAddress,
		order.WarehouseID, order.WarehouseName, order.WarehouseAddress,
		order.PlannedDeliveryDate, order.CreationDate, order.IsKaspiDelivery, order.IsExpress,
		items, order.WaybillURL, encodeWaybill(order.WaybillPDF))
	if err != nil {
		return fmt.Errorf("save order %s: %w", order.Code, err)
	}

	return nil
}

// RefreshSummary updates listing-level fields of already stored order
func (or *OrderRepository) RefreshSummary(ctx context.Context, order *models.Order) error {
	cmd, err := or.db.Exec(ctx, refreshSummaryQuery,
		order.Status, order.State, order.TotalPrice, order.PlannedDeliveryDate, order.Code)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

// IsNotified reports whether notification for order has already been sent
func (or *OrderRepository) IsNotified(ctx context.Context, code string) (bool, error) {
	var notified bool
	err := or.db.QueryRow(ctx, selectNotifiedAtQuery, code).Scan(&notified)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	return notified, nil
}

// MarkNotified sets notified_at once. Repeated calls keep the original mark.
func (or *OrderRepository) MarkNotified(ctx context.Context, code string) error {
	_, err := or.db.Exec(ctx, markNotifiedQuery, code)
	return err
}

// GetOrderByCode returns stored order by code
func (or *OrderRepository) GetOrderByCode(ctx context.Context, code string) (*models.Order, error) {
	order, err := scanOrder(or.db.QueryRow(ctx, selectOrderByCodeQuery, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// GetActiveOrders returns orders whose status and state are in given sets
func (or *OrderRepository) GetActiveOrders(ctx context.Context, statuses, states []string) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectActiveOrdersQuery, statuses, states)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateOrderStatus updates status of stored order
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, code, status string) error {
	cmd, err := or.db.Exec(ctx, updateOrderStatusQuery, status, code)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

// SetWaybill stores waybill url and cached PDF
func (or *OrderRepository) SetWaybill(ctx context.Context, code, waybillURL string, pdf []byte) error {
	cmd, err := or.db.Exec(ctx, setWaybillQuery, waybillURL, encodeWaybill(pdf), code)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}

	return nil
}

// Clear removes all stored orders and returns removed count
func (or *OrderRepository) Clear(ctx context.Context) (int64, error) {
	cmd, err := or.db.Exec(ctx, clearOrdersQuery)
	if err != nil {
		return 0, err
	}

	return cmd.RowsAffected(), nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	order := models.Order{}
	var items []byte
	var pdf string

	err := row.Scan(&order.Code, &order.ID, &order.Status, &order.State, &order.TotalPrice,
		&order.CustomerName, &order.CustomerPhone, &order.DeliveryMode, &order.DeliveryType, &order.DeliveryAddress,
		&order.WarehouseID, &order.WarehouseName, &order.WarehouseAddress,
		&order.PlannedDeliveryDate, &order.CreationDate, &order.IsKaspiDelivery, &order.IsExpress,
		&items, &order.WaybillURL, &pdf, &order.NotifiedAt)
	if err != nil {
		return nil, err
	}

	order.Items, err = decodeItems(items)
	if err != nil {
		return nil, fmt.Errorf("decode line items of %s: %w", order.Code, err)
	}

	order.WaybillPDF, err = decodeWaybill(pdf)
	if err != nil {
		return nil, fmt.Errorf("decode waybill of %s: %w", order.Code, err)
	}

	return &order, nil
}

// line items are denormalized into a single JSON column for storage-format
// portability, the waybill PDF into base64 text

func encodeItems(items []models.LineItem) ([]byte, error) {
	if items == nil {
		items = []models.LineItem{}
	}
	return json.Marshal(items)
}

func decodeItems(data []byte) ([]models.LineItem, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var items []models.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func encodeWaybill(pdf []byte) string {
	if len(pdf) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(pdf)
}

func decodeWaybill(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
