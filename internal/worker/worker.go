package worker

import (
	"context"
	"time"

	"github.com/kaspimerchant/ordersync/internal/logger"
	"github.com/kaspimerchant/ordersync/internal/models"
	"go.uber.org/zap"
)

// OrderSyncer assembles new composite orders and persists them
type OrderSyncer interface {
	GetNewOrders(ctx context.Context) ([]models.Order, error)
	SaveOrder(ctx context.Context, order *models.Order) error
	MarkNotified(ctx context.Context, code string) error
}

// Notifier delivers composite order to the notification destination
type Notifier interface {
	SendOrderNotification(ctx context.Context, order models.Order) error
}

// SyncProcessor is worker performing periodic order synchronization.
// One pass runs to completion before the next tick is handled, passes never
// overlap.
type SyncProcessor struct {
	svc      OrderSyncer
	notifier Notifier
	interval time.Duration
}

// NewSyncProcessor creates new sync processor
func NewSyncProcessor(svc OrderSyncer, notifier Notifier, interval time.Duration) *SyncProcessor {
	return &SyncProcessor{
		svc:      svc,
		notifier: notifier,
		interval: interval,
	}
}

// Run executes sync passes until the context is cancelled. The first pass
// starts immediately.
func (sp *SyncProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(sp.interval)
	defer ticker.Stop()

	sp.RunPass(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("sync processor is done")
			return
		case <-ticker.C:
			sp.RunPass(ctx)
		}
	}
}

// RunPass performs one synchronization pass: list new orders, then notify,
// persist and mark each one. A failed notification leaves the order
// unmarked so the next pass retries it.
func (sp *SyncProcessor) RunPass(ctx context.Context) {
	orders, err := sp.svc.GetNewOrders(ctx)
	if err != nil {
		logger.Log.Error("sync pass aborted", zap.Error(err))
		return
	}

	if len(orders) == 0 {
		logger.Log.Debug("no new orders")
		return
	}

	logger.Log.Info("new orders found", zap.Int("count", len(orders)))

	for _, order := range orders {
		if err := sp.notifier.SendOrderNotification(ctx, order); err != nil {
			logger.Log.Error("order notification failed",
				zap.String("code", order.Code), zap.Error(err))
			continue
		}

		if err := sp.svc.SaveOrder(ctx, &order); err != nil {
			logger.Log.Error("order save failed",
				zap.String("code", order.Code), zap.Error(err))
			continue
		}

		if err := sp.svc.MarkNotified(ctx, order.Code); err != nil {
			logger.Log.Error("order notification mark failed",
				zap.String("code", order.Code), zap.Error(err))
		}
	}
}
