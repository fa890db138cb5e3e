// Package service реализует бизнес-логику сервиса флеш-распродаж: создание и обработку
// заказов, возвраты, ручную смену статусов и администрирование каталога.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/metrics"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/payment"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
	"github.com/twalmsley/FlashSales-sub001/internal/repository"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	CreateOrder(ctx context.Context, order *model.Order, changedBy uuid.NullUUID, now time.Time) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error)
	TransitionOrder(ctx context.Context, t repository.Transition, now time.Time) (*model.Order, error)
	ClaimPayment(ctx context.Context, orderID uuid.UUID, now, staleBefore time.Time) (bool, error)
	ReleasePaymentClaim(ctx context.Context, orderID uuid.UUID) error

	CreateProduct(ctx context.Context, p *model.Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateSale(ctx context.Context, s *model.FlashSale) error
	GetSale(ctx context.Context, id uuid.UUID) (*model.FlashSale, error)
	ListSales(ctx context.Context, status model.SaleStatus) ([]model.FlashSale, error)
	AddSaleItem(ctx context.Context, item *model.FlashSaleItem) error
	GetSaleItem(ctx context.Context, id uuid.UUID) (*model.FlashSaleItem, error)
	SaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error)
}

// Publisher публикует идентификатор заказа в канал обработки.
type Publisher interface {
	Publish(ctx context.Context, ch queue.Channel, orderID uuid.UUID) error
}

// Options содержит необязательные параметры сервиса.
type Options struct {
	MinSaleDuration time.Duration
	// PaymentClaimTTL задаёт, через сколько захват оплаты считается брошенным.
	PaymentClaimTTL time.Duration
	Notifier        Notifier
	Metrics         *metrics.Metrics
	Now             func() time.Time
}

// Service содержит бизнес-логику сервиса флеш-распродаж.
type Service struct {
	repo      Repository
	publisher Publisher
	gateway   payment.Gateway
	notifier  Notifier
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	minSaleDuration time.Duration
	paymentClaimTTL time.Duration
}

// NewService создаёт сервис с указанными репозиторием, публикатором и платёжным шлюзом.
func NewService(repo Repository, publisher Publisher, gateway payment.Gateway, logger *zap.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Notifier == nil {
		opts.Notifier = NewLogNotifier(logger)
	}
	if opts.PaymentClaimTTL <= 0 {
		opts.PaymentClaimTTL = time.Minute
	}

	return &Service{
		repo:            repo,
		publisher:       publisher,
		gateway:         gateway,
		notifier:        opts.Notifier,
		logger:          logger,
		metrics:         opts.Metrics,
		now:             opts.Now,
		minSaleDuration: opts.MinSaleDuration,
		paymentClaimTTL: opts.PaymentClaimTTL,
	}
}
