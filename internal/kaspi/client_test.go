package kaspi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/kaspimerchant/ordersync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListOrders_DefaultWindow(t *testing.T) {
	var gotQuery map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Auth-Token"))
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Accept"))

		gotQuery = map[string]string{}
		for key := range r.URL.Query() {
			gotQuery[key] = r.URL.Query().Get(key)
		}

		w.Header().Set("Content-Type", "application/vnd.api+json")
		w.Write([]byte(`{"data":[{"type":"orders","id":"MTAwMDQ1","attributes":{"code":"100045","status":"APPROVED_BY_BANK","state":"NEW","totalPrice":15000}}],"meta":{"totalCount":1,"pageCount":1}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	before := time.Now()
	orders, total, err := client.ListOrders(context.Background(), ListOrdersParams{
		Statuses: []string{"APPROVED_BY_BANK", "ACCEPTED_BY_MERCHANT"},
		States:   []string{"NEW", "KASPI_DELIVERY"},
	})
	after := time.Now()

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, orders, 1)
	assert.Equal(t, "100045", orders[0].Attributes.Code)

	assert.Equal(t, "0", gotQuery["page[number]"])
	assert.Equal(t, "100", gotQuery["page[size]"])
	assert.Equal(t, "APPROVED_BY_BANK,ACCEPTED_BY_MERCHANT", gotQuery["filter[orders][status]"])
	assert.Equal(t, "NEW,KASPI_DELIVERY", gotQuery["filter[orders][state]"])

	// default creation window is exactly [now-14d, now]
	ge, err := strconv.ParseInt(gotQuery["filter[orders][creationDate][$ge]"], 10, 64)
	require.NoError(t, err)
	le, err := strconv.ParseInt(gotQuery["filter[orders][creationDate][$le]"], 10, 64)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, ge, before.Add(-14*24*time.Hour).UnixMilli())
	assert.LessOrEqual(t, ge, after.Add(-14*24*time.Hour).UnixMilli())
	assert.GreaterOrEqual(t, le, before.UnixMilli())
	assert.LessOrEqual(t, le, after.UnixMilli())
}

func TestClient_ListOrders_PageSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("page[size]"))
		w.Write([]byte(`{"data":[],"meta":{"totalCount":0}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	_, _, err := client.ListOrders(context.Background(), ListOrdersParams{PageSize: 500})
	require.NoError(t, err)
}

func TestClient_ListOrders_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"detail":"window too wide"}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	_, _, err := client.ListOrders(context.Background(), ListOrdersParams{})
	require.Error(t, err)

	var remoteErr models.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusBadRequest, remoteErr.Status)
	assert.Contains(t, remoteErr.Body, "window too wide")
}

func TestClient_ListOrders_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL, "test-token")

	_, _, err := client.ListOrders(context.Background(), ListOrdersParams{})
	require.Error(t, err)

	var transportErr models.TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestClient_GetProductDescription_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	product, err := client.GetProductDescription(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.False(t, product.Found)
	assert.Empty(t, product.Description())
}

func TestClient_GetProductDescription_Found(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orderentries/entry-1/product", r.URL.Path)
		w.Write([]byte(`{"data":{"type":"masterproducts","id":"p1","attributes":{"code":"SKU-1","name":"Чайник","manufacturer":"Tefal"}}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	product, err := client.GetProductDescription(context.Background(), "entry-1")
	require.NoError(t, err)
	assert.True(t, product.Found)
	assert.Equal(t, "Tefal, арт. SKU-1", product.Description())
}

func TestClient_GetOrderByCode_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100999", r.URL.Query().Get("filter[orders][code]"))
		w.Write([]byte(`{"data":[],"meta":{"totalCount":0}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	_, err := client.GetOrderByCode(context.Background(), "100999")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestClient_AcceptOrder_Payload(t *testing.T) {
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "application/vnd.api+json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))

		w.Write([]byte(`{"data":{"type":"orders","id":"MTAwMDQ1","attributes":{"code":"100045","status":"ACCEPTED_BY_MERCHANT","state":"NEW"}}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	order, err := client.AcceptOrder(context.Background(), "MTAwMDQ1", "100045")
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED_BY_MERCHANT", order.Attributes.Status)

	data := gotPayload["data"].(map[string]any)
	assert.Equal(t, "orders", data["type"])
	assert.Equal(t, "MTAwMDQ1", data["id"])

	attrs := data["attributes"].(map[string]any)
	assert.Equal(t, "100045", attrs["code"])
	assert.Equal(t, "ACCEPTED_BY_MERCHANT", attrs["status"])
}

func TestClient_ChangeOrderStatus_Payload(t *testing.T) {
	var gotPayload map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.Write([]byte(`{"data":{"type":"orders","id":"MTAwMDQ1","attributes":{"code":"100045","status":"ASSEMBLE"}}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	_, err := client.ChangeOrderStatus(context.Background(), "MTAwMDQ1", "ASSEMBLE", 2)
	require.NoError(t, err)

	attrs := gotPayload["data"].(map[string]any)["attributes"].(map[string]any)
	assert.Equal(t, "ASSEMBLE", attrs["status"])
	assert.Equal(t, float64(2), attrs["numberOfSpace"])
}

func TestClient_DownloadWaybill(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Auth-Token"))
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-token")

	pdf, err := client.DownloadWaybill(context.Background(), srv.URL+"/waybills/100045")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4 fake"), pdf)
}
