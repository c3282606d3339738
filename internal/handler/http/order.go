package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kaspimerchant/ordersync/internal/models"
)

// OrderService is read/maintenance side of the order store
type OrderService interface {
	// ActiveOrders returns stored orders that still require merchant action
	ActiveOrders(ctx context.Context) ([]models.Order, error)
	// Order returns stored order by code
	Order(ctx context.Context, code string) (*models.Order, error)
	// Clear removes all stored orders and returns removed count
	Clear(ctx context.Context) (int64, error)
}

// LifecycleService drives order status transitions
type LifecycleService interface {
	Accept(ctx context.Context, orderID, code string) error
	GenerateLabel(ctx context.Context, orderID, code string, numberOfSpace int) (string, error)
	Cancel(ctx context.Context, orderID, code string, reason models.CancelReason) error
	QueryStatus(ctx context.Context, code string) (*models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	orders    OrderService
	lifecycle LifecycleService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(orders OrderService, lifecycle LifecycleService) *OrderHandler {
	return &OrderHandler{
		orders:    orders,
		lifecycle: lifecycle,
	}
}

type lineItemResponse struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	BasePrice   float64 `json:"base_price"`
	TotalPrice  float64 `json:"total_price"`
}

type orderResponse struct {
	Code                string             `json:"code"`
	Status              string             `json:"status"`
	State               string             `json:"state"`
	TotalPrice          float64            `json:"total_price"`
	CustomerName        string             `json:"customer_name"`
	CustomerPhone       string             `json:"customer_phone"`
	DeliveryType        string             `json:"delivery_type"`
	DeliveryAddress     string             `json:"delivery_address"`
	WarehouseName       string             `json:"warehouse_name"`
	PlannedDeliveryDate *time.Time         `json:"planned_delivery_date,omitempty"`
	IsKaspiDelivery     bool               `json:"is_kaspi_delivery"`
	Items               []lineItemResponse `json:"items"`
	WaybillURL          string             `json:"waybill_url,omitempty"`
	NotifiedAt          *time.Time         `json:"notified_at,omitempty"`
}

func toOrderResponse(order models.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, lineItemResponse(item))
	}

	return orderResponse{
		Code:                order.Code,
		Status:              order.Status,
		State:               order.State,
		TotalPrice:          order.TotalPrice,
		CustomerName:        order.CustomerName,
		CustomerPhone:       order.CustomerPhone,
		DeliveryType:        order.DeliveryType,
		DeliveryAddress:     order.DeliveryAddress,
		WarehouseName:       order.WarehouseName,
		PlannedDeliveryDate: order.PlannedDeliveryDate,
		IsKaspiDelivery:     order.IsKaspiDelivery,
		Items:               items,
		WaybillURL:          order.WaybillURL,
		NotifiedAt:          order.NotifiedAt,
	}
}

// ListActiveOrders returns stored active orders
func (oh *OrderHandler) ListActiveOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := oh.orders.ActiveOrders(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for _, order := range orders {
			resp = append(resp, toOrderResponse(order))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// GetOrder refreshes order status from the marketplace and returns it
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		order, err := oh.lifecycle.QueryStatus(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toOrderResponse(*order))
	}
}

// GetWaybill serves cached waybill PDF
func (oh *OrderHandler) GetWaybill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		order, err := oh.orders.Order(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}

		if len(order.WaybillPDF) == 0 {
			http.Error(w, "waybill is not cached", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="waybill_`+code+`.pdf"`)
		w.WriteHeader(http.StatusOK)
		w.Write(order.WaybillPDF)
	}
}

// AcceptOrder accepts order on the marketplace
func (oh *OrderHandler) AcceptOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		order, err := oh.orders.Order(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := oh.lifecycle.Accept(r.Context(), order.ID, code); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type generateWaybillRequest struct {
	NumberOfSpace int `json:"number_of_space"`
}

type generateWaybillResponse struct {
	WaybillURL string `json:"waybill_url"`
	Pending    bool   `json:"pending"`
}

// GenerateWaybill moves order to ASSEMBLE and reports waybill readiness
func (oh *OrderHandler) GenerateWaybill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		req := generateWaybillRequest{NumberOfSpace: 1}
		if r.Body != nil && r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
		}

		order, err := oh.orders.Order(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}

		url, err := oh.lifecycle.GenerateLabel(r.Context(), order.ID, code, req.NumberOfSpace)
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, generateWaybillResponse{WaybillURL: url, Pending: url == ""})
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels order on the marketplace
func (oh *OrderHandler) CancelOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		var req cancelOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		order, err := oh.orders.Order(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}

		if err := oh.lifecycle.Cancel(r.Context(), order.ID, code, models.CancelReason(req.Reason)); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type clearOrdersResponse struct {
	Removed int64 `json:"removed"`
}

// ClearOrders removes all stored orders
func (oh *OrderHandler) ClearOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		removed, err := oh.orders.Clear(r.Context())
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, clearOrdersResponse{Removed: removed})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses: unknown order is 404,
// a marketplace rejection is 502, a network failure is 504
func writeError(w http.ResponseWriter, err error) {
	var remoteErr models.RemoteError
	var transportErr models.TransportError

	switch {
	case errors.Is(err, models.ErrOrderNotFound):
		http.Error(w, "order not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidReason):
		http.Error(w, "invalid cancellation reason", http.StatusBadRequest)
	case errors.As(err, &remoteErr):
		http.Error(w, "marketplace rejected the request", http.StatusBadGateway)
	case errors.As(err, &transportErr):
		http.Error(w, "marketplace is unreachable", http.StatusGatewayTimeout)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
