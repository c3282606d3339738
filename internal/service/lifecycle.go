package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaspimerchant/ordersync/config"
	"github.com/kaspimerchant/ordersync/internal/logger"
	"github.com/kaspimerchant/ordersync/internal/models"
	"go.uber.org/zap"
)

// LifecycleService drives order status transitions. The marketplace is
// authoritative: the remote call always goes first, the store is updated
// only after confirmed success, never speculatively.
type LifecycleService struct {
	gw    MarketplaceGateway
	repo  OrderRepository
	retry config.LabelRetryPolicy
}

// NewLifecycleService creates new LifecycleService instance
func NewLifecycleService(gw MarketplaceGateway, repo OrderRepository, retry config.LabelRetryPolicy) *LifecycleService {
	return &LifecycleService{
		gw:    gw,
		repo:  repo,
		retry: retry,
	}
}

// Accept moves order to ACCEPTED_BY_MERCHANT
func (ls *LifecycleService) Accept(ctx context.Context, orderID, code string) error {
	if _, err := ls.gw.AcceptOrder(ctx, orderID, code); err != nil {
		return fmt.Errorf("accept order %s: %w", code, err)
	}

	if err := ls.repo.UpdateOrderStatus(ctx, code, models.StatusAcceptedByMerchant); err != nil {
		return fmt.Errorf("mirror accepted status of %s: %w", code, err)
	}

	logger.Log.Info("order accepted", zap.String("code", code))
	return nil
}

// GenerateLabel moves order to ASSEMBLE and polls for the waybill url.
// Waybill generation is asynchronous on the marketplace side, so an empty
// url with a nil error means "pending", not "failed". When the url shows up
// the PDF is downloaded and cached before the store update.
func (ls *LifecycleService) GenerateLabel(ctx context.Context, orderID, code string, numberOfSpace int) (string, error) {
	if _, err := ls.gw.ChangeOrderStatus(ctx, orderID, models.StatusAssemble, numberOfSpace); err != nil {
		return "", fmt.Errorf("assemble order %s: %w", code, err)
	}

	// status changed remotely, mirror it even though the waybill may not
	// be ready yet
	if err := ls.repo.UpdateOrderStatus(ctx, code, models.StatusAssemble); err != nil {
		return "", fmt.Errorf("mirror assemble status of %s: %w", code, err)
	}

	waybillURL := ""
	for attempt := 0; attempt < ls.retry.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(ls.retry.Delay(attempt)):
		}

		res, err := ls.gw.GetOrderByID(ctx, orderID)
		if err != nil {
			logger.Log.Warn("waybill readiness check failed",
				zap.String("code", code), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		if url := res.Attributes.WaybillURL(); url != "" {
			waybillURL = url
			break
		}
	}

	if waybillURL == "" {
		logger.Log.Info("waybill is not ready yet", zap.String("code", code))
		return "", nil
	}

	pdf, err := ls.gw.DownloadWaybill(ctx, waybillURL)
	if err != nil {
		logger.Log.Warn("waybill download failed, storing url only",
			zap.String("code", code), zap.Error(err))
		pdf = nil
	}

	if err := ls.repo.SetWaybill(ctx, code, waybillURL, pdf); err != nil {
		return waybillURL, fmt.Errorf("store waybill of %s: %w", code, err)
	}

	logger.Log.Info("waybill generated", zap.String("code", code), zap.String("url", waybillURL))
	return waybillURL, nil
}

// Cancel moves order to CANCELLED with given reason
func (ls *LifecycleService) Cancel(ctx context.Context, orderID, code string, reason models.CancelReason) error {
	switch reason {
	case models.CancelBuyerCancellation, models.CancelBuyerNotReachable, models.CancelOutOfStock:
	default:
		return models.ErrInvalidReason
	}

	if _, err := ls.gw.CancelOrder(ctx, orderID, code, reason); err != nil {
		return fmt.Errorf("cancel order %s: %w", code, err)
	}

	if err := ls.repo.UpdateOrderStatus(ctx, code, models.StatusCancelled); err != nil {
		return fmt.Errorf("mirror cancelled status of %s: %w", code, err)
	}

	logger.Log.Info("order cancelled", zap.String("code", code), zap.String("reason", string(reason)))
	return nil
}

// QueryStatus refreshes order status from the marketplace. A waybill url
// discovered without a cached PDF is downloaded opportunistically, its
// failure does not fail the query.
func (ls *LifecycleService) QueryStatus(ctx context.Context, code string) (*models.Order, error) {
	res, err := ls.gw.GetOrderByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", code, err)
	}

	if err := ls.repo.UpdateOrderStatus(ctx, code, res.Attributes.Status); err != nil && !errors.Is(err, models.ErrOrderNotFound) {
		return nil, err
	}

	stored, err := ls.repo.GetOrderByCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			// not persisted yet, return the remote view as-is
			order := orderFromResource(res)
			return &order, nil
		}
		return nil, err
	}

	if url := res.Attributes.WaybillURL(); url != "" && len(stored.WaybillPDF) == 0 {
		pdf, err := ls.gw.DownloadWaybill(ctx, url)
		if err != nil {
			logger.Log.Warn("opportunistic waybill download failed",
				zap.String("code", code), zap.Error(err))
		} else if err := ls.repo.SetWaybill(ctx, code, url, pdf); err == nil {
			stored.WaybillURL = url
			stored.WaybillPDF = pdf
		}
	}

	return stored, nil
}
