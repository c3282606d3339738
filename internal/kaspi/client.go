package kaspi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kaspimerchant/ordersync/internal/models"
)

const (
	// the marketplace rejects creation date windows wider than 14 days
	maxListingWindow = 14 * 24 * time.Hour

	maxPageSize = 100

	contentTypeJSONAPI = "application/vnd.api+json"

	// cap on remote error body kept for diagnostics
	maxErrorBody = 512
)

// Client issues authenticated requests to the Kaspi merchant API.
// Every call fails with models.TransportError on network-level trouble and
// models.RemoteError on a non-2xx response.
type Client struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewClient creates new Client instance
func NewClient(baseURL, token string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// ListOrdersParams is filter of order listing
type ListOrdersParams struct {
	Statuses   []string
	States     []string
	PageNumber int
	PageSize   int
	// CreatedFrom/CreatedTo bound order creation date. Zero values default
	// to [now-14d, now], the widest window the marketplace accepts.
	CreatedFrom time.Time
	CreatedTo   time.Time
}

// ListOrders returns one page of orders matching the filter along with the
// total order count reported by the marketplace.
func (c *Client) ListOrders(ctx context.Context, p ListOrdersParams) ([]OrderResource, int, error) {
	from := p.CreatedFrom
	if from.IsZero() {
		from = time.Now().Add(-maxListingWindow)
	}
	to := p.CreatedTo
	if to.IsZero() {
		to = time.Now()
	}
	size := p.PageSize
	if size <= 0 || size > maxPageSize {
		size = maxPageSize
	}

	query := url.Values{}
	query.Set("page[number]", strconv.Itoa(p.PageNumber))
	query.Set("page[size]", strconv.Itoa(size))
	query.Set("filter[orders][creationDate][$ge]", strconv.FormatInt(from.UnixMilli(), 10))
	query.Set("filter[orders][creationDate][$le]", strconv.FormatInt(to.UnixMilli(), 10))
	if len(p.Statuses) > 0 {
		query.Set("filter[orders][status]", strings.Join(p.Statuses, ","))
	}
	if len(p.States) > 0 {
		query.Set("filter[orders][state]", strings.Join(p.States, ","))
	}

	var resp listResponse[OrderResource]
	if err := c.get(ctx, "/orders", query, &resp); err != nil {
		return nil, 0, err
	}

	return resp.Data, resp.Meta.TotalCount, nil
}

// GetOrderByCode returns order by its human-facing code
func (c *Client) GetOrderByCode(ctx context.Context, code string) (OrderResource, error) {
	query := url.Values{}
	query.Set("filter[orders][code]", code)

	var resp listResponse[OrderResource]
	if err := c.get(ctx, "/orders", query, &resp); err != nil {
		return OrderResource{}, err
	}

	if len(resp.Data) == 0 {
		return OrderResource{}, models.ErrOrderNotFound
	}

	return resp.Data[0], nil
}

// GetOrderByID returns order by its opaque marketplace id
func (c *Client) GetOrderByID(ctx context.Context, id string) (OrderResource, error) {
	var resp singleResponse[OrderResource]
	if err := c.get(ctx, "/orders/"+url.PathEscape(id), nil, &resp); err != nil {
		return OrderResource{}, err
	}
	return resp.Data, nil
}

// GetOrderEntries returns line items of order
func (c *Client) GetOrderEntries(ctx context.Context, orderID string) ([]EntryResource, error) {
	var resp listResponse[EntryResource]
	if err := c.get(ctx, "/orders/"+url.PathEscape(orderID)+"/entries", nil, &resp); err != nil {
		return nil, err
	}

	return resp.Data, nil
}

// GetProductDescription returns product metadata for order entry.
// Product descriptions are optional enrichment: a 404 yields a result with
// Found=false instead of an error.
func (c *Client) GetProductDescription(ctx context.Context, entryID string) (ProductInfo, error) {
	var resp singleResponse[ProductResource]
	err := c.get(ctx, "/orderentries/"+url.PathEscape(entryID)+"/product", nil, &resp)
	if err != nil {
		var remoteErr models.RemoteError
		if errors.As(err, &remoteErr) && remoteErr.Status == http.StatusNotFound {
			return ProductInfo{}, nil
		}
		return ProductInfo{}, err
	}

	return ProductInfo{
		Found:        true,
		Code:         resp.Data.Attributes.Code,
		Name:         resp.Data.Attributes.Name,
		Manufacturer: resp.Data.Attributes.Manufacturer,
		Category:     resp.Data.Attributes.Category,
	}, nil
}

// GetDeliveryPoint returns point of service the entry is shipped from
func (c *Client) GetDeliveryPoint(ctx context.Context, entryID string) (PointResource, error) {
	var resp singleResponse[PointResource]
	if err := c.get(ctx, "/orderentries/"+url.PathEscape(entryID)+"/deliveryPointOfService", nil, &resp); err != nil {
		return PointResource{}, err
	}
	return resp.Data, nil
}

// GetPointOfService returns point of service by id
func (c *Client) GetPointOfService(ctx context.Context, pointID string) (PointResource, error) {
	var resp singleResponse[PointResource]
	if err := c.get(ctx, "/pointofservices/"+url.PathEscape(pointID), nil, &resp); err != nil {
		return PointResource{}, err
	}
	return resp.Data, nil
}

// AcceptOrder changes order status to ACCEPTED_BY_MERCHANT
func (c *Client) AcceptOrder(ctx context.Context, orderID, code string) (OrderResource, error) {
	payload := mutationEnvelope{
		Data: mutationResource{
			Type: "orders",
			ID:   orderID,
			Attributes: map[string]any{
				"code":   code,
				"status": models.StatusAcceptedByMerchant,
			},
		},
	}

	var resp singleResponse[OrderResource]
	if err := c.post(ctx, "/orders", payload, &resp); err != nil {
		return OrderResource{}, err
	}
	return resp.Data, nil
}

// ChangeOrderStatus is generic status transition primitive. numberOfSpace is
// the number of packages, the marketplace requires it for ASSEMBLE.
func (c *Client) ChangeOrderStatus(ctx context.Context, orderID, status string, numberOfSpace int) (OrderResource, error) {
	payload := mutationEnvelope{
		Data: mutationResource{
			Type: "orders",
			ID:   orderID,
			Attributes: map[string]any{
				"status":        status,
				"numberOfSpace": numberOfSpace,
			},
		},
	}

	var resp singleResponse[OrderResource]
	if err := c.post(ctx, "/orders", payload, &resp); err != nil {
		return OrderResource{}, err
	}
	return resp.Data, nil
}

// CancelOrder changes order status to CANCELLED with given reason
func (c *Client) CancelOrder(ctx context.Context, orderID, code string, reason models.CancelReason) (OrderResource, error) {
	payload := mutationEnvelope{
		Data: mutationResource{
			Type: "orders",
			ID:   orderID,
			Attributes: map[string]any{
				"code":               code,
				"status":             models.StatusCancelled,
				"cancellationReason": string(reason),
			},
		},
	}

	var resp singleResponse[OrderResource]
	if err := c.post(ctx, "/orders", payload, &resp); err != nil {
		return OrderResource{}, err
	}
	return resp.Data, nil
}

// DownloadWaybill downloads waybill PDF by absolute url
func (c *Client) DownloadWaybill(ctx context.Context, waybillURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, waybillURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, models.NewTransportError("GET "+waybillURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, models.NewRemoteError(resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentTypeJSONAPI)
	req.Header.Set("Accept", contentTypeJSONAPI)
	req.Header.Set("X-Auth-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return models.NewTransportError(fmt.Sprintf("%s %s", method, path), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return models.NewRemoteError(resp.StatusCode, string(errBody))
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
