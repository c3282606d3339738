package kaspi

import (
	"strings"
	"time"
)

// The marketplace speaks a JSON:API-shaped protocol: resources are
// {type, id, attributes} envelopes, collections carry a meta block.

type listResponse[T any] struct {
	Data []T  `json:"data"`
	Meta meta `json:"meta"`
}

type singleResponse[T any] struct {
	Data T `json:"data"`
}

type meta struct {
	TotalCount int `json:"totalCount"`
	PageCount  int `json:"pageCount"`
}

type mutationEnvelope struct {
	Data mutationResource `json:"data"`
}

type mutationResource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
}

// OrderResource is remote order summary
type OrderResource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes OrderAttributes `json:"attributes"`
}

// OrderAttributes is attribute set of remote order
type OrderAttributes struct {
	Code                string        `json:"code"`
	Status              string        `json:"status"`
	State               string        `json:"state"`
	TotalPrice          float64       `json:"totalPrice"`
	DeliveryMode        string        `json:"deliveryMode"`
	IsKaspiDelivery     bool          `json:"isKaspiDelivery"`
	Waybill             string        `json:"waybill"`
	PlannedDeliveryDate int64         `json:"plannedDeliveryDate"`
	CreationDate        int64         `json:"creationDate"`
	Customer            customer      `json:"customer"`
	DeliveryAddress     formattedAddr `json:"deliveryAddress"`
	KaspiDelivery       kaspiDelivery `json:"kaspiDelivery"`
}

type customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	CellPhone string `json:"cellPhone"`
}

type formattedAddr struct {
	FormattedAddress string `json:"formattedAddress"`
}

type kaspiDelivery struct {
	Express bool   `json:"express"`
	Waybill string `json:"waybill"`
}

// CustomerName returns customer full name
func (a OrderAttributes) CustomerName() string {
	return strings.TrimSpace(a.Customer.FirstName + " " + a.Customer.LastName)
}

// WaybillURL returns waybill url wherever the marketplace put it
func (a OrderAttributes) WaybillURL() string {
	if a.Waybill != "" {
		return a.Waybill
	}
	return a.KaspiDelivery.Waybill
}

// CreatedAt converts creation date from unix milliseconds
func (a OrderAttributes) CreatedAt() time.Time {
	return time.UnixMilli(a.CreationDate)
}

// PlannedDeliveryAt converts planned delivery date from unix milliseconds,
// nil when the marketplace did not set it
func (a OrderAttributes) PlannedDeliveryAt() *time.Time {
	if a.PlannedDeliveryDate == 0 {
		return nil
	}
	t := time.UnixMilli(a.PlannedDeliveryDate)
	return &t
}

// EntryResource is remote order line item
type EntryResource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes EntryAttributes `json:"attributes"`
}

// EntryAttributes is attribute set of remote order entry
type EntryAttributes struct {
	Quantity   int      `json:"quantity"`
	BasePrice  float64  `json:"basePrice"`
	TotalPrice float64  `json:"totalPrice"`
	Category   category `json:"category"`
	Offer      offer    `json:"offer"`
}

type category struct {
	Title string `json:"title"`
}

type offer struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Title returns display name of entry
func (a EntryAttributes) Title() string {
	if a.Offer.Name != "" {
		return a.Offer.Name
	}
	if a.Category.Title != "" {
		return a.Category.Title
	}
	return "Товар"
}

// ProductResource is remote product linked to order entry
type ProductResource struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Attributes ProductAttributes `json:"attributes"`
}

// ProductAttributes is attribute set of product linked to order entry
type ProductAttributes struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
}

// ProductInfo is product lookup result. Found is false when the marketplace
// has no product description for the entry, which is not an error.
type ProductInfo struct {
	Found        bool
	Code         string
	Name         string
	Manufacturer string
	Category     string
}

// Description assembles human-readable product description from metadata
func (p ProductInfo) Description() string {
	if !p.Found {
		return ""
	}

	parts := make([]string, 0, 2)
	if p.Manufacturer != "" {
		parts = append(parts, p.Manufacturer)
	}
	if p.Code != "" {
		parts = append(parts, "арт. "+p.Code)
	}
	if len(parts) == 0 {
		return p.Name
	}
	return strings.Join(parts, ", ")
}

// PointResource is remote point of service
type PointResource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes PointAttributes `json:"attributes"`
}

// PointAttributes is attribute set of point of service
type PointAttributes struct {
	DisplayName string        `json:"displayName"`
	Address     formattedAddr `json:"address"`
}
