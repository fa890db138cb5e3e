// Package worker связывает каналы очереди с обработчиками сервиса заказов.
package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
	"github.com/twalmsley/FlashSales-sub001/internal/service"
)

// OrderProcessor описывает операции сервиса, вызываемые потребителями очередей.
type OrderProcessor interface {
	ProcessOrderPayment(ctx context.Context, orderID uuid.UUID) (*service.PaymentResult, error)
	ProcessDispatch(ctx context.Context, orderID uuid.UUID) error
	ProcessFailedPayment(ctx context.Context, orderID uuid.UUID) error
	NotifyRefund(ctx context.Context, orderID uuid.UUID) error
}

// Handlers содержит обработчики всех каналов.
type Handlers struct {
	orders    OrderProcessor
	publisher service.Publisher
	logger    *zap.Logger
}

// NewHandlers создаёт обработчики каналов.
func NewHandlers(orders OrderProcessor, publisher service.Publisher, logger *zap.Logger) *Handlers {
	return &Handlers{orders: orders, publisher: publisher, logger: logger}
}

// ProcessOrder обрабатывает оплату и передаёт заказ дальше: в dispatch при успехе,
// в payment-failed при отказе. Повторная доставка снова публикует следующий шаг,
// поэтому сбой между фиксацией статуса и публикацией не теряет заказ.
func (h *Handlers) ProcessOrder(ctx context.Context, orderID uuid.UUID) error {
	res, err := h.orders.ProcessOrderPayment(ctx, orderID)
	if err != nil {
		return err
	}

	var next queue.Channel
	switch res.Status {
	case model.OrderStatusPaid:
		next = queue.ChannelDispatch
	case model.OrderStatusFailed:
		next = queue.ChannelPaymentFailed
	default:
		h.logger.Debug("order already past payment stage",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(res.Status)),
		)
		return nil
	}

	if err := h.publisher.Publish(ctx, next, orderID); err != nil {
		return fmt.Errorf("forward order %s: %w", orderID, err)
	}
	return nil
}

// Routes возвращает обработчик для каждого канала.
func (h *Handlers) Routes() map[queue.Channel]queue.Handler {
	return map[queue.Channel]queue.Handler{
		queue.ChannelProcessOrder:  h.ProcessOrder,
		queue.ChannelPaymentFailed: h.orders.ProcessFailedPayment,
		queue.ChannelDispatch:      h.orders.ProcessDispatch,
		queue.ChannelRefundNotify:  h.orders.NotifyRefund,
	}
}

// Runner описывает долгоживущий компонент, работающий до отмены контекста.
type Runner interface {
	Run(ctx context.Context) error
}

// RunAll запускает runners и ждёт их завершения. Ошибка одного останавливает остальные.
func RunAll(ctx context.Context, runners ...Runner) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range runners {
		g.Go(func() error {
			return r.Run(ctx)
		})
	}
	return g.Wait()
}
