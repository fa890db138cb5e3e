package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
)

// Event задаёт вид уведомления покупателя.
type Event string

const (
	EventPaymentFailed Event = "payment_failed"
	EventRefunded      Event = "refunded"
)

// Notifier доставляет уведомления покупателям. Повторная доставка допустима.
type Notifier interface {
	Notify(ctx context.Context, event Event, order *model.Order) error
}

// LogNotifier пишет уведомления в журнал.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier создаёт уведомитель, пишущий в logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event, order *model.Order) error {
	n.logger.Info("customer notified",
		zap.String("event", string(event)),
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", order.UserID.String()),
		zap.String("amount", order.TotalAmount.StringFixed(2)),
		zap.String("correlation_id", actor.CorrelationID(ctx)),
	)
	return nil
}
