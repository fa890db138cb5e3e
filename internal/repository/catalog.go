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
)

const (
	productColumns = `id, name, description, total_physical_stock, base_price, reserved_count, created_at`
	saleColumns    = `id, title, start_time, end_time, status, created_at`
	itemColumns    = `i.id, i.flash_sale_id, i.product_id, i.allocated_stock, i.sold_count, i.sale_price,
		s.status, s.start_time, s.end_time`
)

// CreateProduct сохраняет новый товар.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (id, name, description, total_physical_stock, base_price)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		p.ID, p.Name, p.Description, p.TotalPhysicalStock, p.BasePrice,
	).Scan(&p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "products_name_unique") {
			return fmt.Errorf("%w: product %q", model.ErrDuplicate, p.Name)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProduct возвращает товар по идентификатору.
func (r *PostgresRepository) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)

	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.TotalPhysicalStock, &p.BasePrice, &p.ReservedCount, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// ListProducts возвращает все товары каталога.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.TotalPhysicalStock, &p.BasePrice, &p.ReservedCount, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateSale сохраняет новую распродажу.
func (r *PostgresRepository) CreateSale(ctx context.Context, s *model.FlashSale) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO flash_sales (id, title, start_time, end_time, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		s.ID, s.Title, s.StartTime, s.EndTime, string(s.Status),
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create sale: %w", err)
	}
	return nil
}

// GetSale возвращает распродажу вместе с её позициями.
func (r *PostgresRepository) GetSale(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) {
	s, err := getSale(ctx, r.pool, id, false)
	if err != nil {
		return nil, err
	}

	items, err := r.listSaleItems(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Items = items

	return s, nil
}

// ListSales возвращает распродажи с указанным статусом; пустой статус означает все.
func (r *PostgresRepository) ListSales(ctx context.Context, status model.SaleStatus) ([]model.FlashSale, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+saleColumns+`
		 FROM flash_sales
		 WHERE $1 = '' OR status = $1
		 ORDER BY start_time`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("select sales: %w", err)
	}
	defer rows.Close()

	var res []model.FlashSale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		res = append(res, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// AddSaleItem выделяет квоту товара под распродажу. Квота списывается с физического
// склада товара условным обновлением reserved_count в той же транзакции.
func (r *PostgresRepository) AddSaleItem(ctx context.Context, item *model.FlashSaleItem) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		sale, err := getSale(ctx, tx, item.FlashSaleID, true)
		if err != nil {
			return err
		}
		if sale.Status != model.SaleStatusDraft && sale.Status != model.SaleStatusActive {
			return fmt.Errorf("%w: sale %s is %s", model.ErrSaleNotActive, sale.ID, sale.Status)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE products
			 SET reserved_count = reserved_count + $2
			 WHERE id = $1 AND reserved_count + $2 <= total_physical_stock`,
			item.ProductID, item.AllocatedStock,
		)
		if err != nil {
			return fmt.Errorf("allocate product stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return productAllocationError(ctx, tx, item.ProductID, item.AllocatedStock)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO flash_sale_items (id, flash_sale_id, product_id, allocated_stock, sold_count, sale_price)
			 VALUES ($1, $2, $3, $4, 0, $5)`,
			item.ID, item.FlashSaleID, item.ProductID, item.AllocatedStock, item.SalePrice,
		)
		if err != nil {
			if isUniqueViolation(err, "flash_sale_items_sale_product_unique") {
				return fmt.Errorf("%w: product %s already in sale %s", model.ErrDuplicate, item.ProductID, item.FlashSaleID)
			}
			return fmt.Errorf("insert sale item: %w", err)
		}

		item.SoldCount = 0
		item.SaleStatus = sale.Status
		item.SaleStartTime = sale.StartTime
		item.SaleEndTime = sale.EndTime
		return nil
	})
}

func productAllocationError(ctx context.Context, q dbtx, productID uuid.UUID, requested int) error {
	var total, reserved int
	err := q.QueryRow(ctx,
		`SELECT total_physical_stock, reserved_count FROM products WHERE id = $1`,
		productID,
	).Scan(&total, &reserved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("product %s: %w", productID, model.ErrNotFound)
		}
		return fmt.Errorf("get product stock: %w", err)
	}

	return &model.InsufficientStockError{
		ItemID:    productID,
		Requested: requested,
		Available: total - reserved,
	}
}

// GetSaleItem возвращает позицию распродажи вместе со статусом и окном распродажи.
func (r *PostgresRepository) GetSaleItem(ctx context.Context, id uuid.UUID) (*model.FlashSaleItem, error) {
	return getSaleItem(ctx, r.pool, id)
}

func (r *PostgresRepository) listSaleItems(ctx context.Context, saleID uuid.UUID) ([]model.FlashSaleItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+itemColumns+`
		 FROM flash_sale_items i
		 JOIN flash_sales s ON s.id = i.flash_sale_id
		 WHERE i.flash_sale_id = $1
		 ORDER BY i.id`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("select sale items: %w", err)
	}
	defer rows.Close()

	var res []model.FlashSaleItem
	for rows.Next() {
		item, err := scanSaleItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		res = append(res, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ActivateDraftSales переводит в ACTIVE все черновики, время начала которых наступило.
func (r *PostgresRepository) ActivateDraftSales(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.updateSaleStatuses(ctx,
		`UPDATE flash_sales SET status = 'ACTIVE'
		 WHERE status = 'DRAFT' AND start_time <= $1
		 RETURNING id`,
		now,
	)
}

// CompleteActiveSales переводит в COMPLETED все активные распродажи, время окончания которых наступило.
func (r *PostgresRepository) CompleteActiveSales(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.updateSaleStatuses(ctx,
		`UPDATE flash_sales SET status = 'COMPLETED'
		 WHERE status = 'ACTIVE' AND end_time <= $1
		 RETURNING id`,
		now,
	)
}

func (r *PostgresRepository) updateSaleStatuses(ctx context.Context, query string, now time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	err := r.withRetry(ctx, func() error {
		ids = ids[:0]

		rows, err := r.pool.Query(ctx, query, now)
		if err != nil {
			return fmt.Errorf("update sale statuses: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan sale id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// SaleStats собирает статистику распродажи: заказы по статусам, проданные единицы и выручку.
// Выручка учитывает только оплаченные и отгруженные заказы.
func (r *PostgresRepository) SaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error) {
	if _, err := getSale(ctx, r.pool, saleID, false); err != nil {
		return nil, err
	}

	stats := &model.SaleStats{
		SaleID:         saleID,
		OrdersByStatus: make(map[model.OrderStatus]int),
		Revenue:        decimal.Zero,
	}

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(sold_count), 0), COALESCE(SUM(allocated_stock), 0)
		 FROM flash_sale_items
		 WHERE flash_sale_id = $1`,
		saleID,
	).Scan(&stats.UnitsSold, &stats.UnitsAllocated)
	if err != nil {
		return nil, fmt.Errorf("sum sale units: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT o.status, COUNT(*), COALESCE(SUM(o.total_amount), 0)
		 FROM orders o
		 JOIN flash_sale_items i ON i.id = o.flash_sale_item_id
		 WHERE i.flash_sale_id = $1
		 GROUP BY o.status`,
		saleID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			count  int
			amount decimal.Decimal
		)
		if err := rows.Scan(&status, &count, &amount); err != nil {
			return nil, fmt.Errorf("scan order stats: %w", err)
		}

		st := model.OrderStatus(status)
		stats.OrdersByStatus[st] = count
		if st == model.OrderStatusPaid || st == model.OrderStatusDispatched {
			stats.Revenue = stats.Revenue.Add(amount)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return stats, nil
}

func getSale(ctx context.Context, q dbtx, id uuid.UUID, forUpdate bool) (*model.FlashSale, error) {
	query := `SELECT ` + saleColumns + ` FROM flash_sales WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	s, err := scanSale(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return s, nil
}

func getSaleItem(ctx context.Context, q dbtx, id uuid.UUID) (*model.FlashSaleItem, error) {
	row := q.QueryRow(ctx,
		`SELECT `+itemColumns+`
		 FROM flash_sale_items i
		 JOIN flash_sales s ON s.id = i.flash_sale_id
		 WHERE i.id = $1`,
		id,
	)

	item, err := scanSaleItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sale item %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get sale item: %w", err)
	}
	return item, nil
}

func scanSale(row pgx.Row) (*model.FlashSale, error) {
	var (
		s      model.FlashSale
		status string
	)
	if err := row.Scan(&s.ID, &s.Title, &s.StartTime, &s.EndTime, &status, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SaleStatus(status)
	return &s, nil
}

func scanSaleItem(row pgx.Row) (*model.FlashSaleItem, error) {
	var (
		item   model.FlashSaleItem
		status string
	)
	err := row.Scan(&item.ID, &item.FlashSaleID, &item.ProductID, &item.AllocatedStock, &item.SoldCount, &item.SalePrice,
		&status, &item.SaleStartTime, &item.SaleEndTime)
	if err != nil {
		return nil, err
	}
	item.SaleStatus = model.SaleStatus(status)
	return &item, nil
}
