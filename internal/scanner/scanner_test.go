package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/metrics"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
)

type stubRepo struct {
	mu      sync.Mutex
	sales   map[uuid.UUID]*model.FlashSale
	stale   []uuid.UUID
	before  time.Time
	err     error
	scanned int
}

func (r *stubRepo) update(from, to model.SaleStatus, due func(*model.FlashSale) bool) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanned++

	if r.err != nil {
		return nil, r.err
	}

	var ids []uuid.UUID
	for _, s := range r.sales {
		if s.Status == from && due(s) {
			s.Status = to
			ids = append(ids, s.ID)
		}
	}
	return ids, nil
}

func (r *stubRepo) ActivateDraftSales(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.update(model.SaleStatusDraft, model.SaleStatusActive, func(s *model.FlashSale) bool {
		return !s.StartTime.After(now)
	})
}

func (r *stubRepo) CompleteActiveSales(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	return r.update(model.SaleStatusActive, model.SaleStatusCompleted, func(s *model.FlashSale) bool {
		return !s.EndTime.After(now)
	})
}

func (r *stubRepo) ListStalePendingOrders(_ context.Context, before time.Time, _ int) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.before = before
	return r.stale, nil
}

func (r *stubRepo) status(id uuid.UUID) model.SaleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sales[id].Status
}

type stubPublisher struct {
	ids []uuid.UUID
	err error
}

func (p *stubPublisher) Publish(_ context.Context, ch queue.Channel, id uuid.UUID) error {
	if p.err != nil {
		return p.err
	}
	if ch == queue.ChannelProcessOrder {
		p.ids = append(p.ids, id)
	}
	return nil
}

var now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newSale(status model.SaleStatus, start, end time.Time) *model.FlashSale {
	return &model.FlashSale{ID: uuid.New(), Status: status, StartTime: start, EndTime: end}
}

func newScanner(repo *stubRepo, pub *stubPublisher, m *metrics.Metrics) *Scanner {
	s := New(repo, pub, Config{Interval: 10 * time.Millisecond, RequeueAfter: 2 * time.Minute}, zap.NewNop(), m)
	s.now = func() time.Time { return now }
	return s
}

func TestActivateDraftSales(t *testing.T) {
	due := newSale(model.SaleStatusDraft, now.Add(-time.Second), now.Add(time.Hour))
	future := newSale(model.SaleStatusDraft, now.Add(time.Minute), now.Add(time.Hour))
	repo := &stubRepo{sales: map[uuid.UUID]*model.FlashSale{due.ID: due, future.ID: future}}
	m := metrics.New(prometheus.NewRegistry())

	n, err := newScanner(repo, &stubPublisher{}, m).ActivateDraftSales(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, model.SaleStatusActive, repo.status(due.ID))
	assert.Equal(t, model.SaleStatusDraft, repo.status(future.ID))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SaleTransitionsTotal.WithLabelValues("ACTIVE")))
}

func TestCompleteActiveSales(t *testing.T) {
	ended := newSale(model.SaleStatusActive, now.Add(-time.Hour), now)
	running := newSale(model.SaleStatusActive, now.Add(-time.Hour), now.Add(time.Second))
	repo := &stubRepo{sales: map[uuid.UUID]*model.FlashSale{ended.ID: ended, running.ID: running}}

	n, err := newScanner(repo, &stubPublisher{}, nil).CompleteActiveSales(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, model.SaleStatusCompleted, repo.status(ended.ID))
	assert.Equal(t, model.SaleStatusActive, repo.status(running.ID))
}

func TestRequeueStalePending(t *testing.T) {
	stale := []uuid.UUID{uuid.New(), uuid.New()}
	repo := &stubRepo{stale: stale}
	pub := &stubPublisher{}

	n, err := newScanner(repo, pub, nil).RequeueStalePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, stale, pub.ids)
	assert.Equal(t, now.Add(-2*time.Minute), repo.before)
}

func TestRequeueStalePending_PublishError(t *testing.T) {
	repo := &stubRepo{stale: []uuid.UUID{uuid.New()}}

	n, err := newScanner(repo, &stubPublisher{err: errors.New("broker down")}, nil).RequeueStalePending(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)
}

func TestRun_ScansUntilCancelled(t *testing.T) {
	sale := newSale(model.SaleStatusDraft, now.Add(-time.Second), now.Add(time.Hour))
	repo := &stubRepo{sales: map[uuid.UUID]*model.FlashSale{sale.ID: sale}}
	s := newScanner(repo, &stubPublisher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.Equal(t, model.SaleStatusActive, repo.status(sale.ID))

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.GreaterOrEqual(t, repo.scanned, 2)
}

func TestRun_SurvivesRepositoryErrors(t *testing.T) {
	repo := &stubRepo{err: errors.New("db down")}
	s := newScanner(repo, &stubPublisher{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	assert.NoError(t, s.Run(ctx))
}
