package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaspimerchant/ordersync/internal/kaspi"
	"github.com/kaspimerchant/ordersync/internal/logger"
	"github.com/kaspimerchant/ordersync/internal/models"
	"go.uber.org/zap"
)

const updatesTimeout = 30 // seconds, long polling

// OrderViewer is read side of the order pipeline used by bot commands
type OrderViewer interface {
	// ActiveOrders returns stored orders that still require merchant action
	ActiveOrders(ctx context.Context) ([]models.Order, error)
	// Order returns stored order by code
	Order(ctx context.Context, code string) (*models.Order, error)
	// Probe lists a few orders without filters
	Probe(ctx context.Context) ([]kaspi.OrderResource, int, error)
}

// LifecycleController drives order status transitions triggered by buttons
type LifecycleController interface {
	Accept(ctx context.Context, orderID, code string) error
	GenerateLabel(ctx context.Context, orderID, code string, numberOfSpace int) (string, error)
	Cancel(ctx context.Context, orderID, code string, reason models.CancelReason) error
}

// Bot dispatches commands and button presses of the notification chat
type Bot struct {
	client    *Client
	orders    OrderViewer
	lifecycle LifecycleController
	chatID    int64
	admins    map[int64]struct{}
	sessions  *SessionStore
}

// NewBot creates new Bot instance
func NewBot(client *Client, orders OrderViewer, lifecycle LifecycleController, chatID int64, adminIDs []int64, sessions *SessionStore) *Bot {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}

	return &Bot{
		client:    client,
		orders:    orders,
		lifecycle: lifecycle,
		chatID:    chatID,
		admins:    admins,
		sessions:  sessions,
	}
}

// SendOrderNotification delivers new-order message with action buttons.
// A cached waybill PDF is attached as a document.
func (b *Bot) SendOrderNotification(ctx context.Context, order models.Order) error {
	keyboard := &InlineKeyboardMarkup{
		InlineKeyboard: [][]InlineKeyboardButton{
			{
				{Text: "✅ Принять", CallbackData: "accept:" + order.Code},
				{Text: "❌ Отменить", CallbackData: "cancel:" + order.Code},
			},
			{
				{Text: "📄 Накладная", CallbackData: "waybill:" + order.Code},
			},
		},
	}

	if order.IsKaspiDelivery && order.WaybillURL != "" {
		keyboard.InlineKeyboard = append(keyboard.InlineKeyboard, []InlineKeyboardButton{
			{Text: "📄 Скачать накладную", URL: order.WaybillURL},
		})
	}

	err := b.client.SendMessage(ctx, OutgoingMessage{
		ChatID:      b.chatID,
		Text:        FormatOrderMessage(order),
		ParseMode:   "HTML",
		ReplyMarkup: keyboard,
	})
	if err != nil {
		return err
	}

	if len(order.WaybillPDF) > 0 {
		if err := b.client.SendDocument(ctx, b.chatID, "waybill_"+order.Code+".pdf", "Накладная к заказу #"+order.Code, order.WaybillPDF); err != nil {
			logger.Log.Warn("waybill attachment failed", zap.String("code", order.Code), zap.Error(err))
		}
	}

	logger.Log.Info("order notification sent", zap.String("code", order.Code))
	return nil
}

// SendStartupMessage announces that monitoring has started
func (b *Bot) SendStartupMessage(ctx context.Context) {
	text := "🤖 <b>Бот запущен!</b>\n\n" +
		"Мониторинг заказов Kaspi активирован.\n\n" +
		"Дата и время запуска: " + time.Now().Format("02.01.2006 15:04:05")

	if err := b.client.SendMessage(ctx, OutgoingMessage{ChatID: b.chatID, Text: text, ParseMode: "HTML"}); err != nil {
		logger.Log.Warn("startup message failed", zap.Error(err))
	}
}

// Run long-polls for updates until the context is cancelled
func (b *Bot) Run(ctx context.Context) {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("bot is done")
			return
		default:
		}

		updates, err := b.client.GetUpdates(ctx, offset, updatesTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Error("get updates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1

			switch {
			case update.Message != nil:
				b.handleMessage(ctx, update.Message)
			case update.CallbackQuery != nil:
				b.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) {
	if msg.From == nil || !b.isAdmin(msg.From.ID) {
		return
	}

	switch cmd, _, _ := strings.Cut(msg.Text, " "); cmd {
	case "/start":
		b.reply(ctx, msg.Chat.ID,
			"🤖 Бот для уведомлений о заказах Kaspi запущен!\n\n"+
				"Доступные команды:\n"+
				"/active - Показать активные заказы\n"+
				"/help - Помощь")
	case "/help":
		b.reply(ctx, msg.Chat.ID,
			"📖 <b>Помощь по боту</b>\n\n"+
				"Бот автоматически отправляет уведомления о новых заказах.\n\n"+
				"<b>Команды:</b>\n"+
				"/active - Показать все активные заказы\n"+
				"/debug - Отладочная информация и проверка API\n"+
				"/help - Показать это сообщение")
	case "/active":
		orders, err := b.orders.ActiveOrders(ctx)
		if err != nil {
			logger.Log.Error("active orders command failed", zap.Error(err))
			b.reply(ctx, msg.Chat.ID, "❌ Произошла ошибка при получении списка заказов")
			return
		}
		b.reply(ctx, msg.Chat.ID, FormatActiveOrders(orders))
	case "/debug":
		b.handleDebug(ctx, msg.Chat.ID)
	}
}

func (b *Bot) handleDebug(ctx context.Context, chatID int64) {
	samples, total, err := b.orders.Probe(ctx)
	if err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("❌ Ошибка при подключении к API:\n%v", err))
		return
	}

	parts := []string{
		"📊 <b>Результат запроса к API:</b>\n",
		fmt.Sprintf("Всего заказов в системе: %d", total),
		fmt.Sprintf("Получено в ответе: %d\n", len(samples)),
	}

	if len(samples) > 0 {
		parts = append(parts, "<b>Примеры заказов:</b>")
		for i, sample := range samples {
			if i == 3 {
				break
			}
			parts = append(parts, fmt.Sprintf("%d. Заказ #%s - статус: %s, состояние: %s",
				i+1, sample.Attributes.Code, sample.Attributes.Status, sample.Attributes.State))
		}
	} else {
		parts = append(parts, "⚠️ Заказов не найдено")
	}

	b.reply(ctx, chatID, strings.Join(parts, "\n"))
}

func (b *Bot) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if !b.isAdmin(cb.From.ID) {
		b.answer(ctx, cb.ID, "Недостаточно прав")
		return
	}

	action, arg, _ := strings.Cut(cb.Data, ":")

	switch action {
	case "accept":
		sid := b.sessions.Put(cb.From.ID, ActionAccept, arg)
		b.askConfirmation(ctx, "Принять заказ #"+arg+"?", [][]InlineKeyboardButton{{
			{Text: "✅ Да, принять", CallbackData: "confirm:" + sid},
			{Text: "Отмена", CallbackData: "dismiss:" + sid},
		}})
		b.answer(ctx, cb.ID, "")
	case "cancel":
		sid := b.sessions.Put(cb.From.ID, ActionCancel, arg)
		b.askConfirmation(ctx, "Причина отмены заказа #"+arg+":", [][]InlineKeyboardButton{
			{{Text: "Покупатель отменил", CallbackData: "reason:" + sid + ":" + string(models.CancelBuyerCancellation)}},
			{{Text: "Недозвон", CallbackData: "reason:" + sid + ":" + string(models.CancelBuyerNotReachable)}},
			{{Text: "Нет в наличии", CallbackData: "reason:" + sid + ":" + string(models.CancelOutOfStock)}},
			{{Text: "Не отменять", CallbackData: "dismiss:" + sid}},
		})
		b.answer(ctx, cb.ID, "")
	case "waybill":
		b.answer(ctx, cb.ID, "Формирую накладную...")
		b.handleWaybill(ctx, arg)
	case "confirm":
		session, ok := b.sessions.Get(arg)
		if !ok {
			b.answer(ctx, cb.ID, "Время подтверждения истекло")
			return
		}
		b.sessions.Delete(arg)
		b.answer(ctx, cb.ID, "")
		b.handleAccept(ctx, session.OrderCode)
	case "reason":
		sid, reason, _ := strings.Cut(arg, ":")
		session, ok := b.sessions.Get(sid)
		if !ok {
			b.answer(ctx, cb.ID, "Время подтверждения истекло")
			return
		}
		b.sessions.Delete(sid)
		b.answer(ctx, cb.ID, "")
		b.handleCancel(ctx, session.OrderCode, models.CancelReason(reason))
	case "dismiss":
		b.sessions.Delete(arg)
		b.answer(ctx, cb.ID, "Действие отменено")
	}
}

func (b *Bot) handleAccept(ctx context.Context, code string) {
	if err := b.lifecycle.Accept(ctx, b.orderID(ctx, code), code); err != nil {
		logger.Log.Error("accept via bot failed", zap.String("code", code), zap.Error(err))
		b.reply(ctx, b.chatID, "❌ Не удалось принять заказ #"+code)
		return
	}
	b.reply(ctx, b.chatID, "✅ Заказ #"+code+" принят")
}

func (b *Bot) handleCancel(ctx context.Context, code string, reason models.CancelReason) {
	if err := b.lifecycle.Cancel(ctx, b.orderID(ctx, code), code, reason); err != nil {
		logger.Log.Error("cancel via bot failed", zap.String("code", code), zap.Error(err))
		b.reply(ctx, b.chatID, "❌ Не удалось отменить заказ #"+code)
		return
	}
	b.reply(ctx, b.chatID, "❌ Заказ #"+code+" отменен")
}

func (b *Bot) handleWaybill(ctx context.Context, code string) {
	url, err := b.lifecycle.GenerateLabel(ctx, b.orderID(ctx, code), code, 1)
	if err != nil {
		logger.Log.Error("waybill via bot failed", zap.String("code", code), zap.Error(err))
		b.reply(ctx, b.chatID, "❌ Не удалось сформировать накладную для заказа #"+code)
		return
	}

	if url == "" {
		b.reply(ctx, b.chatID, "⏳ Накладная для заказа #"+code+" еще формируется, попробуйте позже")
		return
	}

	order, err := b.orders.Order(ctx, code)
	if err == nil && len(order.WaybillPDF) > 0 {
		if err := b.client.SendDocument(ctx, b.chatID, "waybill_"+code+".pdf", "Накладная к заказу #"+code, order.WaybillPDF); err == nil {
			return
		}
	}

	b.reply(ctx, b.chatID, "📄 Накладная для заказа #"+code+":\n"+url)
}

// orderID resolves the opaque marketplace id of the order: the stored one
// when present, otherwise derived from the code.
func (b *Bot) orderID(ctx context.Context, code string) string {
	order, err := b.orders.Order(ctx, code)
	if err == nil && order.ID != "" {
		return order.ID
	}
	if err != nil && !errors.Is(err, models.ErrOrderNotFound) {
		logger.Log.Warn("stored order lookup failed", zap.String("code", code), zap.Error(err))
	}
	return models.OrderIDFromCode(code)
}

func (b *Bot) askConfirmation(ctx context.Context, text string, buttons [][]InlineKeyboardButton) {
	err := b.client.SendMessage(ctx, OutgoingMessage{
		ChatID:      b.chatID,
		Text:        text,
		ReplyMarkup: &InlineKeyboardMarkup{InlineKeyboard: buttons},
	})
	if err != nil {
		logger.Log.Error("confirmation prompt failed", zap.Error(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	err := b.client.SendMessage(ctx, OutgoingMessage{ChatID: chatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		logger.Log.Error("reply failed", zap.Error(err))
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.client.AnswerCallbackQuery(ctx, callbackID, text); err != nil {
		logger.Log.Warn("callback answer failed", zap.Error(err))
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	if len(b.admins) == 0 {
		return userID == b.chatID
	}
	_, ok := b.admins[userID]
	return ok
}
