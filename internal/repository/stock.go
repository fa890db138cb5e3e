package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// Только резерв и возврат меняют sold_count. Каждая выполняется
// одним условным UPDATE; результат определяется числом затронутых строк.
// Неположительное количество не затрагивает ни одной строки.
const (
	reserveSQL = `UPDATE flash_sale_items i
		 SET sold_count = i.sold_count + $2
		 FROM flash_sales s
		 WHERE i.id = $1
		   AND $2 > 0
		   AND s.id = i.flash_sale_id
		   AND s.status = 'ACTIVE'
		   AND s.start_time <= $3
		   AND s.end_time > $3
		   AND i.sold_count + $2 <= i.allocated_stock
		 RETURNING i.sale_price`

	releaseSQL = `UPDATE flash_sale_items
		 SET sold_count = sold_count - $2
		 WHERE id = $1 AND $2 > 0 AND sold_count >= $2`
)

// tryReserve увеличивает sold_count позиции на quantity, если квоты хватает и распродажа активна.
// Возвращает цену позиции и признак успешного резерва.
func tryReserve(ctx context.Context, q dbtx, itemID uuid.UUID, quantity int, now time.Time) (decimal.Decimal, bool, error) {
	var price decimal.Decimal
	err := q.QueryRow(ctx, reserveSQL, itemID, quantity, now).Scan(&price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("reserve stock: %w", err)
	}
	return price, true, nil
}

func release(ctx context.Context, q dbtx, itemID uuid.UUID, quantity int) (bool, error) {
	tag, err := q.Exec(ctx, releaseSQL, itemID, quantity)
	if err != nil {
		return false, fmt.Errorf("release stock: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// reservationError объясняет причину отказа в резерве: позиция не найдена,
// распродажа не активна или квоты не хватает.
func reservationError(ctx context.Context, q dbtx, itemID uuid.UUID, quantity int, now time.Time) error {
	item, err := getSaleItem(ctx, q, itemID)
	if err != nil {
		return err
	}

	if !item.OnSale(now) {
		return fmt.Errorf("%w: item %s", model.ErrSaleNotActive, itemID)
	}

	return &model.InsufficientStockError{
		ItemID:    itemID,
		Requested: quantity,
		Available: item.Remaining(),
	}
}

// TryReserve атомарно резервирует quantity единиц позиции распродажи.
func (r *PostgresRepository) TryReserve(ctx context.Context, itemID uuid.UUID, quantity int, now time.Time) (bool, error) {
	if err := validation.Quantity(quantity); err != nil {
		return false, err
	}

	var reserved bool
	err := r.withRetry(ctx, func() error {
		var err error
		_, reserved, err = tryReserve(ctx, r.pool, itemID, quantity, now)
		return err
	})
	return reserved, err
}

// Release атомарно возвращает quantity единиц в квоту позиции.
func (r *PostgresRepository) Release(ctx context.Context, itemID uuid.UUID, quantity int) (bool, error) {
	if err := validation.Quantity(quantity); err != nil {
		return false, err
	}

	var released bool
	err := r.withRetry(ctx, func() error {
		var err error
		released, err = release(ctx, r.pool, itemID, quantity)
		return err
	})
	return released, err
}
