// Package scanner периодически продвигает распродажи по жизненному циклу и повторно
// ставит в очередь заказы, застрявшие в PENDING.
package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/metrics"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
)

const requeueBatch = 100

// Repository описывает операции хранилища, нужные сканеру.
type Repository interface {
	ActivateDraftSales(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	CompleteActiveSales(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]uuid.UUID, error)
}

// Publisher публикует заказ в канал.
type Publisher interface {
	Publish(ctx context.Context, ch queue.Channel, orderID uuid.UUID) error
}

// Config задаёт периодичность работы сканера.
type Config struct {
	Interval     time.Duration
	RequeueAfter time.Duration
}

// Scanner активирует и завершает распродажи по времени.
type Scanner struct {
	repo      Repository
	publisher Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cfg       Config
	now       func() time.Time
}

// New создаёт сканер.
func New(repo Repository, publisher Publisher, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Scanner {
	return &Scanner{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ActivateDraftSales переводит в ACTIVE черновики, время начала которых наступило.
func (s *Scanner) ActivateDraftSales(ctx context.Context) (int, error) {
	ids, err := s.repo.ActivateDraftSales(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.report(model.SaleStatusActive, ids)
	return len(ids), nil
}

// CompleteActiveSales переводит в COMPLETED активные распродажи, время окончания которых наступило.
func (s *Scanner) CompleteActiveSales(ctx context.Context) (int, error) {
	ids, err := s.repo.CompleteActiveSales(ctx, s.now())
	if err != nil {
		return 0, err
	}
	s.report(model.SaleStatusCompleted, ids)
	return len(ids), nil
}

func (s *Scanner) report(to model.SaleStatus, ids []uuid.UUID) {
	s.metrics.RecordSaleTransitions(string(to), len(ids))
	for _, id := range ids {
		s.logger.Info("sale status changed", zap.String("sale_id", id.String()), zap.String("status", string(to)))
	}
}

// RequeueStalePending повторно публикует process-order для заказов, которые дольше
// RequeueAfter остаются в PENDING. Обработка оплаты идемпотентна, поэтому дубликаты безопасны.
func (s *Scanner) RequeueStalePending(ctx context.Context) (int, error) {
	if s.cfg.RequeueAfter <= 0 {
		return 0, nil
	}

	ids, err := s.repo.ListStalePendingOrders(ctx, s.now().Add(-s.cfg.RequeueAfter), requeueBatch)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		if err := s.publisher.Publish(ctx, queue.ChannelProcessOrder, id); err != nil {
			return n, err
		}
		n++
	}

	if n > 0 {
		s.logger.Warn("stale pending orders requeued", zap.Int("count", n))
	}
	return n, nil
}

// Run выполняет проверки раз в Interval до отмены ctx. Ошибки отдельных проверок
// журналируются и не останавливают сканер.
func (s *Scanner) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("sale scanner started", zap.Duration("interval", s.cfg.Interval))

	for {
		s.scan(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scanner) scan(ctx context.Context) {
	if _, err := s.ActivateDraftSales(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("failed to activate draft sales", zap.Error(err))
	}
	if _, err := s.CompleteActiveSales(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("failed to complete active sales", zap.Error(err))
	}
	if _, err := s.RequeueStalePending(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("failed to requeue stale orders", zap.Error(err))
	}
}
