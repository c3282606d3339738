package models

import (
	"encoding/base64"
	"time"
)

// order status
const (
	StatusApprovedByBank     = "APPROVED_BY_BANK"
	StatusAcceptedByMerchant = "ACCEPTED_BY_MERCHANT"
	StatusAssemble           = "ASSEMBLE"
	StatusPickup             = "PICKUP"
	StatusCompleted          = "COMPLETED"
	StatusCancelled          = "CANCELLED"
	StatusCancelling         = "CANCELLING"
)

// order state
const (
	StateNew           = "NEW"
	StatePickup        = "PICKUP"
	StateDelivery      = "DELIVERY"
	StateKaspiDelivery = "KASPI_DELIVERY"
	StateArchive       = "ARCHIVE"
)

// delivery mode
const (
	DeliveryLocal          = "DELIVERY_LOCAL"
	DeliveryPickup         = "DELIVERY_PICKUP"
	DeliveryRegionalToDoor = "DELIVERY_REGIONAL_TODOOR"
	DeliveryRegionalPickup = "DELIVERY_REGIONAL_PICKUP"
)

// ActiveStatuses are statuses of orders that still require merchant action.
var ActiveStatuses = []string{StatusApprovedByBank, StatusAcceptedByMerchant}

// ActiveStates are states of orders that are not yet handed to delivery.
var ActiveStates = []string{StateNew, StatePickup, StateDelivery, StateKaspiDelivery}

// CancelReason is reason of order cancellation accepted by the marketplace
type CancelReason string

const (
	CancelBuyerCancellation CancelReason = "BUYER_CANCELLATION"
	CancelBuyerNotReachable CancelReason = "BUYER_NOT_REACHABLE"
	CancelOutOfStock        CancelReason = "MERCHANT_OUT_OF_STOCK"
)

// Order is composite order entity
type Order struct {
	ID                  string
	Code                string
	Status              string
	State               string
	TotalPrice          float64
	CustomerName        string
	CustomerPhone       string
	DeliveryMode        string
	DeliveryType        string
	DeliveryAddress     string
	WarehouseID         string
	WarehouseName       string
	WarehouseAddress    string
	PlannedDeliveryDate *time.Time
	CreationDate        time.Time
	IsKaspiDelivery     bool
	IsExpress           bool
	Items               []LineItem
	WaybillURL          string
	WaybillPDF          []byte
	NotifiedAt          *time.Time
}

// LineItem is single position of order. It has no identity of its own,
// position within Items is the only ordering.
type LineItem struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	BasePrice   float64 `json:"base_price"`
	TotalPrice  float64 `json:"total_price"`
}

// Warehouse is point of service the order is shipped from
type Warehouse struct {
	ID      string
	Name    string
	Address string
}

// deliveryTypes maps delivery mode to human-readable text
var deliveryTypes = map[string]string{
	DeliveryLocal:          "По городу",
	DeliveryPickup:         "Самовывоз",
	DeliveryRegionalToDoor: "Kaspi Доставка",
	DeliveryRegionalPickup: "Доставка по области (самовывоз)",
}

// DeliveryTypeText returns human-readable delivery type for delivery mode
func DeliveryTypeText(mode string, isKaspiDelivery bool) string {
	text, ok := deliveryTypes[mode]
	if !ok {
		return mode
	}

	if isKaspiDelivery {
		switch mode {
		case DeliveryPickup:
			return "Kaspi Postomat"
		case DeliveryLocal:
			return text + " (Kaspi Доставка)"
		}
	}

	return text
}

// OrderIDFromCode derives the opaque marketplace order id from the order code.
// The marketplace has been observed to use base64(code) as the id on the
// waybill path. This is undocumented behavior, do not apply it to entry ids.
func OrderIDFromCode(code string) string {
	return base64.StdEncoding.EncodeToString([]byte(code))
}
