package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/payment"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
	"github.com/twalmsley/FlashSales-sub001/internal/repository"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// PaymentResult описывает исход обработки оплаты заказа.
type PaymentResult struct {
	OrderID uuid.UUID
	Success bool
	// Status содержит статус заказа после обработки.
	Status model.OrderStatus
	// AlreadyProcessed означает, что заказ уже был обработан ранее и платёж не выполнялся.
	AlreadyProcessed bool
}

// CreateOrder резервирует quantity единиц позиции и создаёт заказ в статусе PENDING.
// После фиксации заказ отправляется в канал process-order.
func (s *Service) CreateOrder(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*model.Order, error) {
	started := time.Now()

	order, err := s.createOrder(ctx, userID, itemID, quantity)
	if err != nil {
		s.metrics.RecordRejected(model.KindOf(err).String())
		return nil, err
	}
	s.metrics.RecordCreated(time.Since(started).Seconds())

	log := s.logger.With(zap.String("order_id", order.ID.String()))
	log.Info("order created",
		zap.String("user_id", userID.String()),
		zap.String("item_id", itemID.String()),
		zap.Int("quantity", quantity),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)

	if err := s.publisher.Publish(ctx, queue.ChannelProcessOrder, order.ID); err != nil {
		// Заказ уже зафиксирован; сканер повторно отправит зависший PENDING.
		log.Error("failed to enqueue order for processing", zap.Error(err))
	}

	return order, nil
}

func (s *Service) createOrder(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*model.Order, error) {
	if err := validation.Quantity(quantity); err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, model.Validationf("user id is required")
	}

	now := s.now()

	item, err := s.repo.GetSaleItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.OnSale(now) {
		return nil, fmt.Errorf("%w: item %s", model.ErrSaleNotActive, itemID)
	}

	order := &model.Order{
		ID:              uuid.New(),
		UserID:          userID,
		FlashSaleItemID: itemID,
		Quantity:        quantity,
	}

	// Статус и окно распродажи повторно проверяются внутри транзакции резерва.
	if err := s.repo.CreateOrder(ctx, order, actor.ChangedBy(ctx), now); err != nil {
		return nil, err
	}

	return order, nil
}

// ProcessOrderPayment списывает оплату заказа в статусе PENDING и переводит его в PAID
// или FAILED с возвратом квоты. Для уже обработанного заказа возвращает сохранённый исход
// без повторного списания. Пока оплату держит другая доставка, возвращает
// model.ErrPaymentInProgress.
func (s *Service) ProcessOrderPayment(ctx context.Context, orderID uuid.UUID) (*PaymentResult, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderStatusPending {
		return processedResult(order), nil
	}

	// Списывать может только доставка, захватившая заказ. Брошенный захват
	// перехватывается по истечении paymentClaimTTL; шлюз получает id заказа как ключ
	// идемпотентности, поэтому повторное списание не удваивает платёж.
	now := s.now()
	claimed, err := s.repo.ClaimPayment(ctx, order.ID, now, now.Add(-s.paymentClaimTTL))
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status != model.OrderStatusPending {
			return processedResult(current), nil
		}
		return nil, fmt.Errorf("order %s: %w", orderID, model.ErrPaymentInProgress)
	}

	res, err := s.gateway.Charge(ctx, order.ID, order.TotalAmount)
	if err != nil {
		s.metrics.RecordPayment("error")
		if relErr := s.repo.ReleasePaymentClaim(context.WithoutCancel(ctx), order.ID); relErr != nil {
			s.logger.Error("failed to release payment claim",
				zap.String("order_id", order.ID.String()),
				zap.Error(relErr),
			)
		}
		return nil, fmt.Errorf("charge order %s: %w", order.ID, err)
	}
	s.metrics.RecordPayment(string(res))

	t := repository.Transition{
		OrderID: order.ID,
		From:    []model.OrderStatus{model.OrderStatusPending},
		To:      model.OrderStatusPaid,
	}
	if res != payment.Approved {
		t.To = model.OrderStatusFailed
		t.ReleaseStock = true
	}

	updated, err := s.repo.TransitionOrder(ctx, t, s.now())
	if err != nil {
		var invalid *model.InvalidTransitionError
		if errors.As(err, &invalid) {
			// Параллельная доставка того же сообщения успела обработать заказ.
			current, getErr := s.repo.GetOrder(ctx, orderID)
			if getErr != nil {
				return nil, getErr
			}
			return processedResult(current), nil
		}
		return nil, err
	}
	s.metrics.RecordTransition(string(updated.Status))

	s.logger.Info("order payment processed",
		zap.String("order_id", updated.ID.String()),
		zap.String("result", string(res)),
		zap.String("status", string(updated.Status)),
	)

	return &PaymentResult{
		OrderID: updated.ID,
		Success: updated.Status == model.OrderStatusPaid,
		Status:  updated.Status,
	}, nil
}

// paidStatuses перечисляет статусы, в которые заказ попадает только после успешного списания.
var paidStatuses = []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusDispatched, model.OrderStatusRefunded}

func processedResult(o *model.Order) *PaymentResult {
	return &PaymentResult{
		OrderID:          o.ID,
		Success:          slices.Contains(paidStatuses, o.Status),
		Status:           o.Status,
		AlreadyProcessed: true,
	}
}

// ProcessDispatch переводит оплаченный заказ в DISPATCHED. Повторный вызов для
// отгруженного заказа ничего не делает.
func (s *Service) ProcessDispatch(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == model.OrderStatusDispatched {
		return nil
	}

	updated, err := s.repo.TransitionOrder(ctx, repository.Transition{
		OrderID: orderID,
		From:    []model.OrderStatus{model.OrderStatusPaid},
		To:      model.OrderStatusDispatched,
	}, s.now())
	if err != nil {
		var invalid *model.InvalidTransitionError
		if errors.As(err, &invalid) && invalid.Current == model.OrderStatusDispatched {
			return nil
		}
		return err
	}
	s.metrics.RecordTransition(string(updated.Status))

	s.logger.Info("order dispatched", zap.String("order_id", orderID.String()))
	return nil
}

// ProcessFailedPayment подтверждает, что заказ в статусе FAILED, и уведомляет покупателя.
// Статус заказа не меняется.
func (s *Service) ProcessFailedPayment(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusFailed {
		return &model.InvalidTransitionError{
			OrderID:  order.ID,
			Current:  order.Status,
			Target:   model.OrderStatusFailed,
			Required: []model.OrderStatus{model.OrderStatusFailed},
		}
	}

	if err := s.notifier.Notify(ctx, EventPaymentFailed, order); err != nil {
		return fmt.Errorf("notify payment failure for order %s: %w", orderID, err)
	}
	return nil
}

// refundable перечисляет статусы, из которых допускается возврат.
var refundable = []model.OrderStatus{model.OrderStatusPaid, model.OrderStatusDispatched}

// RefundOrder переводит оплаченный или отгруженный заказ в REFUNDED, возвращает квоту
// и ставит уведомление о возврате в очередь.
func (s *Service) RefundOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	updated, err := s.repo.TransitionOrder(ctx, repository.Transition{
		OrderID:      orderID,
		From:         refundable,
		To:           model.OrderStatusRefunded,
		ChangedBy:    actor.ChangedBy(ctx),
		ReleaseStock: true,
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(updated.Status))

	s.logger.Info("order refunded", zap.String("order_id", orderID.String()))
	s.enqueueRefundNotification(ctx, orderID)

	return updated, nil
}

// enqueueRefundNotification ставит уведомление о возврате в очередь. Возврат к этому
// моменту уже зафиксирован, поэтому ошибка публикации только журналируется.
func (s *Service) enqueueRefundNotification(ctx context.Context, orderID uuid.UUID) {
	if err := s.publisher.Publish(ctx, queue.ChannelRefundNotify, orderID); err != nil {
		s.logger.Error("failed to enqueue refund notification",
			zap.String("order_id", orderID.String()),
			zap.Error(err),
		)
	}
}

// NotifyRefund уведомляет покупателя о возврате. Заказ должен быть в статусе REFUNDED.
func (s *Service) NotifyRefund(ctx context.Context, orderID uuid.UUID) error {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != model.OrderStatusRefunded {
		return &model.InvalidTransitionError{
			OrderID:  order.ID,
			Current:  order.Status,
			Target:   model.OrderStatusRefunded,
			Required: []model.OrderStatus{model.OrderStatusRefunded},
		}
	}

	if err := s.notifier.Notify(ctx, EventRefunded, order); err != nil {
		return fmt.Errorf("notify refund for order %s: %w", orderID, err)
	}
	return nil
}

// UpdateOrderStatus вручную меняет статус заказа по таблице допустимых переходов.
// Переходы в FAILED и REFUNDED возвращают квоту позиции; ручной возврат, как и
// RefundOrder, ставит уведомление о возврате в очередь.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (*model.Order, error) {
	if !status.Valid() {
		return nil, model.Validationf("unknown order status %q", status)
	}

	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(order.Status, status) {
		invalid := &model.InvalidTransitionError{
			OrderID: order.ID,
			Current: order.Status,
			Target:  status,
		}
		if required := model.RequiredStatus(status); required != "" {
			invalid.Required = []model.OrderStatus{required}
		}
		return nil, invalid
	}

	// Статус перепроверяется под блокировкой строки.
	updated, err := s.repo.TransitionOrder(ctx, repository.Transition{
		OrderID:      orderID,
		From:         []model.OrderStatus{order.Status},
		To:           status,
		ChangedBy:    actor.ChangedBy(ctx),
		ReleaseStock: status == model.OrderStatusFailed || status == model.OrderStatusRefunded,
	}, s.now())
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(string(updated.Status))

	s.logger.Info("order status updated manually",
		zap.String("order_id", orderID.String()),
		zap.String("status", string(status)),
	)

	if updated.Status == model.OrderStatusRefunded {
		s.enqueueRefundNotification(ctx, orderID)
	}

	return updated, nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrderHistory возвращает журнал статусов заказа.
func (s *Service) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.GetOrderHistory(ctx, orderID)
}
