package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
)

const orderColumns = `id, user_id, flash_sale_item_id, quantity, total_amount, status, created_at, updated_at`

// Transition описывает запрошенную смену статуса заказа.
type Transition struct {
	OrderID   uuid.UUID
	From      []model.OrderStatus
	To        model.OrderStatus
	ChangedBy uuid.NullUUID
	// ReleaseStock возвращает количество заказа в квоту позиции в той же транзакции.
	ReleaseStock bool
}

// CreateOrder резервирует квоту и сохраняет заказ в статусе PENDING в одной транзакции.
// При нехватке квоты заказ не создаётся; при повторном заказе резерв откатывается.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order, changedBy uuid.NullUUID, now time.Time) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		price, reserved, err := tryReserve(ctx, tx, order.FlashSaleItemID, order.Quantity, now)
		if err != nil {
			return err
		}
		if !reserved {
			return reservationError(ctx, tx, order.FlashSaleItemID, order.Quantity, now)
		}

		order.TotalAmount = price.Mul(decimal.NewFromInt(int64(order.Quantity)))
		order.Status = model.OrderStatusPending
		order.CreatedAt = now
		order.UpdatedAt = now

		_, err = tx.Exec(ctx,
			`INSERT INTO orders (id, user_id, flash_sale_item_id, quantity, total_amount, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			order.ID, order.UserID, order.FlashSaleItemID, order.Quantity, order.TotalAmount, string(order.Status), now,
		)
		if err != nil {
			if isUniqueViolation(err, "orders_user_item_unique") {
				return fmt.Errorf("%w: user %s, item %s", model.ErrDuplicateOrder, order.UserID, order.FlashSaleItemID)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		return insertHistory(ctx, tx, order.ID, "", order.Status, changedBy, now)
	})
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrdersByUser возвращает заказы пользователя, начиная с последних.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// ListStalePendingOrders возвращает до limit заказов, остающихся в PENDING с момента before.
func (r *PostgresRepository) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id FROM orders
		 WHERE status = 'PENDING' AND updated_at <= $1
		 ORDER BY updated_at
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale orders: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("collect stale orders: %w", err)
	}
	return ids, nil
}

// ClaimPayment закрепляет оплату заказа за вызывающим. Заказ должен быть в PENDING и
// не иметь захвата новее staleBefore. Возвращает false, если заказ занят или уже обработан.
func (r *PostgresRepository) ClaimPayment(ctx context.Context, orderID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	var claimed bool
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders
			 SET payment_started_at = $2
			 WHERE id = $1
			   AND status = 'PENDING'
			   AND (payment_started_at IS NULL OR payment_started_at <= $3)`,
			orderID, now, staleBefore,
		)
		if err != nil {
			return fmt.Errorf("claim payment: %w", err)
		}
		claimed = tag.RowsAffected() == 1
		return nil
	})
	return claimed, err
}

// ReleasePaymentClaim снимает захват оплаты с заказа, оставшегося в PENDING.
func (r *PostgresRepository) ReleasePaymentClaim(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_started_at = NULL WHERE id = $1 AND status = 'PENDING'`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("release payment claim: %w", err)
	}
	return nil
}

// TransitionOrder меняет статус заказа, добавляет запись в журнал и при необходимости
// возвращает квоту. Строка заказа блокируется до конца транзакции, поэтому из двух
// одновременных переходов применяется ровно один.
func (r *PostgresRepository) TransitionOrder(ctx context.Context, t Transition, now time.Time) (*model.Order, error) {
	var result *model.Order

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, t.OrderID)
		o, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("order %s: %w", t.OrderID, model.ErrNotFound)
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if !slices.Contains(t.From, o.Status) {
			return &model.InvalidTransitionError{
				OrderID:  o.ID,
				Current:  o.Status,
				Target:   t.To,
				Required: t.From,
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
			o.ID, string(t.To), now,
		)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		if err := insertHistory(ctx, tx, o.ID, o.Status, t.To, t.ChangedBy, now); err != nil {
			return err
		}

		if t.ReleaseStock {
			released, err := release(ctx, tx, o.FlashSaleItemID, o.Quantity)
			if err != nil {
				return err
			}
			if !released {
				return fmt.Errorf("release %d units of item %s for order %s: sold count below quantity",
					o.Quantity, o.FlashSaleItemID, o.ID)
			}
		}

		o.Status = t.To
		o.UpdatedAt = now
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// GetOrderHistory возвращает журнал статусов заказа в порядке добавления.
func (r *PostgresRepository) GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, COALESCE(from_status, ''), to_status, changed_at, changed_by
		 FROM order_status_history
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var res []model.OrderStatusHistory
	for rows.Next() {
		var (
			h          model.OrderStatusHistory
			fromStatus string
			toStatus   string
		)
		if err := rows.Scan(&h.ID, &h.OrderID, &fromStatus, &toStatus, &h.ChangedAt, &h.ChangedBy); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.FromStatus = model.OrderStatus(fromStatus)
		h.ToStatus = model.OrderStatus(toStatus)
		res = append(res, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func insertHistory(ctx context.Context, q dbtx, orderID uuid.UUID, from, to model.OrderStatus, changedBy uuid.NullUUID, now time.Time) error {
	var fromStatus *string
	if from != "" {
		s := string(from)
		fromStatus = &s
	}

	_, err := q.Exec(ctx,
		`INSERT INTO order_status_history (order_id, from_status, to_status, changed_at, changed_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		orderID, fromStatus, string(to), now, changedBy,
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o      model.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.FlashSaleItemID, &o.Quantity, &o.TotalAmount, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}
