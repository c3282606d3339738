package telegram

import (
	"testing"
	"time"

	"github.com/kaspimerchant/ordersync/internal/models"
	"github.com/stretchr/testify/assert"
)

func testOrder() models.Order {
	delivery := time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC)
	return models.Order{
		Code:             "100045",
		Status:           models.StatusApprovedByBank,
		State:            models.StateNew,
		TotalPrice:       15990,
		CustomerName:     "Айдар Касымов",
		CustomerPhone:    "77001234567",
		DeliveryType:     "По городу",
		DeliveryAddress:  "Алматы, ул. Абая 10",
		WarehouseName:    "Склад Алматы",
		WarehouseAddress: "Алматы, ул. Толе би 59",
		PlannedDeliveryDate: &delivery,
		Items: []models.LineItem{
			{Name: "Чайник", Description: "Tefal, арт. SKU-1", Quantity: 2, BasePrice: 7500, TotalPrice: 15000},
			{Name: "Кружка", Quantity: 1, BasePrice: 990, TotalPrice: 990},
		},
	}
}

func TestFormatOrderMessage(t *testing.T) {
	msg := FormatOrderMessage(testOrder())

	assert.Contains(t, msg, "Новый заказ #100045")
	assert.Contains(t, msg, "Чайник x 2 шт — 15 000 ₸")
	assert.Contains(t, msg, "(Tefal, арт. SKU-1)")
	assert.Contains(t, msg, "Кружка x 1 шт — 990 ₸")
	assert.Contains(t, msg, "<b>Итого:</b> 15 990 ₸")
	assert.Contains(t, msg, "Склад Алматы")
	assert.Contains(t, msg, "Айдар Касымов")
	assert.Contains(t, msg, "+77001234567")
	assert.Contains(t, msg, "По городу")
	assert.Contains(t, msg, "20.11.2024")
}

func TestFormatActiveOrders_Empty(t *testing.T) {
	assert.Equal(t, "📋 Нет активных заказов", FormatActiveOrders(nil))
}

func TestFormatActiveOrders(t *testing.T) {
	msg := FormatActiveOrders([]models.Order{testOrder()})

	assert.Contains(t, msg, "Активные заказы (1)")
	assert.Contains(t, msg, "Заказ #100045")
	assert.Contains(t, msg, "Сумма: 15 990 ₸")
	assert.Contains(t, msg, "Срок: 20.11.2024")
}

func TestFormatTenge(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "0"},
		{990, "990"},
		{15990, "15 990"},
		{1234567, "1 234 567"},
		{-15990, "-15 990"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatTenge(tt.amount))
	}
}
