package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// CreateProduct добавляет товар в каталог.
func (s *Service) CreateProduct(ctx context.Context, name, description string, stock int, basePrice decimal.Decimal) (*model.Product, error) {
	if err := validation.NonEmpty("name", name); err != nil {
		return nil, err
	}
	if err := validation.NonNegative("total_physical_stock", stock); err != nil {
		return nil, err
	}
	if err := validation.Price(basePrice); err != nil {
		return nil, err
	}

	p := &model.Product{
		ID:                 uuid.New(),
		Name:               strings.TrimSpace(name),
		Description:        description,
		TotalPhysicalStock: stock,
		BasePrice:          basePrice,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("product created", zap.String("product_id", p.ID.String()), zap.String("name", p.Name))
	return p, nil
}

// GetProduct возвращает товар.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts возвращает каталог товаров.
func (s *Service) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.repo.ListProducts(ctx)
}

// CreateSale создаёт распродажу в статусе DRAFT. Активацию выполняет сканер.
func (s *Service) CreateSale(ctx context.Context, title string, start, end time.Time) (*model.FlashSale, error) {
	if err := validation.NonEmpty("title", title); err != nil {
		return nil, err
	}
	if err := validation.SaleWindow(start, end, s.minSaleDuration); err != nil {
		return nil, err
	}

	sale := &model.FlashSale{
		ID:        uuid.New(),
		Title:     strings.TrimSpace(title),
		StartTime: start.UTC(),
		EndTime:   end.UTC(),
		Status:    model.SaleStatusDraft,
	}
	if err := s.repo.CreateSale(ctx, sale); err != nil {
		return nil, err
	}

	s.logger.Info("sale created",
		zap.String("sale_id", sale.ID.String()),
		zap.Time("start", sale.StartTime),
		zap.Time("end", sale.EndTime),
	)
	return sale, nil
}

// GetSale возвращает распродажу вместе с позициями.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (*model.FlashSale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales возвращает распродажи в статусе status; пустой статус означает все.
func (s *Service) ListSales(ctx context.Context, status model.SaleStatus) ([]model.FlashSale, error) {
	switch status {
	case "", model.SaleStatusDraft, model.SaleStatusActive, model.SaleStatusCompleted, model.SaleStatusCancelled:
	default:
		return nil, model.Validationf("unknown sale status %q", status)
	}
	return s.repo.ListSales(ctx, status)
}

// AddSaleItem выделяет allocated единиц товара под распродажу по цене price.
func (s *Service) AddSaleItem(ctx context.Context, saleID, productID uuid.UUID, allocated int, price decimal.Decimal) (*model.FlashSaleItem, error) {
	if allocated <= 0 {
		return nil, model.Validationf("allocated stock must be positive, got %d", allocated)
	}
	if err := validation.Price(price); err != nil {
		return nil, err
	}

	item := &model.FlashSaleItem{
		ID:             uuid.New(),
		FlashSaleID:    saleID,
		ProductID:      productID,
		AllocatedStock: allocated,
		SalePrice:      price,
	}
	if err := s.repo.AddSaleItem(ctx, item); err != nil {
		return nil, err
	}

	s.logger.Info("sale item added",
		zap.String("sale_id", saleID.String()),
		zap.String("item_id", item.ID.String()),
		zap.Int("allocated", allocated),
	)
	return item, nil
}

// SaleStats возвращает статистику распродажи.
func (s *Service) SaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error) {
	return s.repo.SaleStats(ctx, saleID)
}
