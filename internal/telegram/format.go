package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaspimerchant/ordersync/internal/models"
)

// FormatOrderMessage renders new-order notification as Telegram HTML
func FormatOrderMessage(order models.Order) string {
	parts := []string{
		fmt.Sprintf("🆕 <b>Новый заказ #%s</b>\n", order.Code),
		"📦 <b>Что отправить:</b>",
	}

	for _, item := range order.Items {
		line := fmt.Sprintf("• %s x %d шт — %s ₸", item.Name, item.Quantity, formatTenge(item.TotalPrice))
		if item.Description != "" {
			line += fmt.Sprintf(" (%s)", item.Description)
		}
		parts = append(parts, line)
	}

	parts = append(parts,
		fmt.Sprintf("\n<b>Итого:</b> %s ₸\n", formatTenge(order.TotalPrice)),
		fmt.Sprintf("📍 <b>Склад отправки:</b> %s", order.WarehouseName),
		order.WarehouseAddress+"\n",
		"👤 <b>Клиент:</b>",
		order.CustomerName,
		"+"+order.CustomerPhone+"\n",
		"🚚 <b>Доставка:</b>",
		order.DeliveryType,
		order.DeliveryAddress+"\n",
	)

	if order.PlannedDeliveryDate != nil {
		parts = append(parts, "📅 <b>Срок доставки:</b> "+formatDate(*order.PlannedDeliveryDate))
	}

	return strings.Join(parts, "\n")
}

// FormatActiveOrders renders active order listing as Telegram HTML
func FormatActiveOrders(orders []models.Order) string {
	if len(orders) == 0 {
		return "📋 Нет активных заказов"
	}

	parts := []string{fmt.Sprintf("📋 <b>Активные заказы (%d):</b>\n", len(orders))}

	for _, order := range orders {
		deliveryDate := ""
		if order.PlannedDeliveryDate != nil {
			deliveryDate = formatDate(*order.PlannedDeliveryDate)
		}

		parts = append(parts,
			fmt.Sprintf("🔹 <b>Заказ #%s</b>", order.Code),
			fmt.Sprintf("Сумма: %s ₸", formatTenge(order.TotalPrice)),
			fmt.Sprintf("Клиент: %s (+%s)", order.CustomerName, order.CustomerPhone),
			"Склад: "+order.WarehouseName,
			"Доставка: "+order.DeliveryAddress,
			"Срок: "+deliveryDate+"\n",
		)
	}

	return strings.Join(parts, "\n")
}

// formatTenge renders amount with thousands separated by spaces, no kopecks
func formatTenge(amount float64) string {
	s := strconv.FormatInt(int64(amount), 10)

	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}

	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func formatDate(t time.Time) string {
	return t.Format("02.01.2006")
}
