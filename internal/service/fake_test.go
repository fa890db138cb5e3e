package service

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/payment"
	"github.com/twalmsley/FlashSales-sub001/internal/queue"
	"github.com/twalmsley/FlashSales-sub001/internal/repository"
)

// memRepo хранит данные в памяти. Мьютекс заменяет построчные блокировки базы:
// каждая операция атомарна так же, как условный UPDATE или транзакция.
type memRepo struct {
	mu sync.Mutex

	products map[uuid.UUID]*model.Product
	sales    map[uuid.UUID]*model.FlashSale
	items    map[uuid.UUID]*model.FlashSaleItem
	orders   map[uuid.UUID]*model.Order
	history  []model.OrderStatusHistory
	claims   map[uuid.UUID]time.Time

	transitionCalls int
	releases        int
}

func newMemRepo() *memRepo {
	return &memRepo{
		products: make(map[uuid.UUID]*model.Product),
		sales:    make(map[uuid.UUID]*model.FlashSale),
		items:    make(map[uuid.UUID]*model.FlashSaleItem),
		orders:   make(map[uuid.UUID]*model.Order),
		claims:   make(map[uuid.UUID]time.Time),
	}
}

// seedActiveItem создаёт активную распродажу с одной позицией.
func (r *memRepo) seedActiveItem(now time.Time, allocated int, price string) *model.FlashSaleItem {
	sale := &model.FlashSale{
		ID:        uuid.New(),
		Title:     "sale",
		StartTime: now.Add(-time.Hour),
		EndTime:   now.Add(time.Hour),
		Status:    model.SaleStatusActive,
	}
	item := &model.FlashSaleItem{
		ID:             uuid.New(),
		FlashSaleID:    sale.ID,
		ProductID:      uuid.New(),
		AllocatedStock: allocated,
		SalePrice:      decimal.RequireFromString(price),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sales[sale.ID] = sale
	r.items[item.ID] = item
	return item
}

func (r *memRepo) seedOrder(itemID uuid.UUID, status model.OrderStatus, quantity int) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	item := r.items[itemID]
	item.SoldCount += quantity

	o := &model.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		FlashSaleItemID: itemID,
		Quantity:        quantity,
		TotalAmount:     item.SalePrice.Mul(decimal.NewFromInt(int64(quantity))),
		Status:          status,
	}
	r.orders[o.ID] = o
	return o
}

func (r *memRepo) soldCount(itemID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[itemID].SoldCount
}

func (r *memRepo) status(orderID uuid.UUID) model.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderID].Status
}

func (r *memRepo) historyOf(orderID uuid.UUID) []model.OrderStatusHistory {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.OrderStatusHistory
	for _, h := range r.history {
		if h.OrderID == orderID {
			res = append(res, h)
		}
	}
	return res
}

func (r *memRepo) withItemSale(item *model.FlashSaleItem) *model.FlashSaleItem {
	cp := *item
	sale := r.sales[item.FlashSaleID]
	cp.SaleStatus = sale.Status
	cp.SaleStartTime = sale.StartTime
	cp.SaleEndTime = sale.EndTime
	return &cp
}

func (r *memRepo) appendHistory(orderID uuid.UUID, from, to model.OrderStatus, by uuid.NullUUID, now time.Time) {
	r.history = append(r.history, model.OrderStatusHistory{
		ID:         int64(len(r.history) + 1),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedAt:  now,
		ChangedBy:  by,
	})
}

func (r *memRepo) CreateOrder(_ context.Context, order *model.Order, changedBy uuid.NullUUID, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[order.FlashSaleItemID]
	if !ok {
		return fmt.Errorf("sale item %s: %w", order.FlashSaleItemID, model.ErrNotFound)
	}
	sale := r.sales[item.FlashSaleID]
	if !sale.Open(now) {
		return fmt.Errorf("%w: item %s", model.ErrSaleNotActive, item.ID)
	}
	if item.SoldCount+order.Quantity > item.AllocatedStock {
		return &model.InsufficientStockError{ItemID: item.ID, Requested: order.Quantity, Available: item.Remaining()}
	}
	for _, o := range r.orders {
		if o.UserID == order.UserID && o.FlashSaleItemID == order.FlashSaleItemID {
			return model.ErrDuplicateOrder
		}
	}

	item.SoldCount += order.Quantity
	order.TotalAmount = item.SalePrice.Mul(decimal.NewFromInt(int64(order.Quantity)))
	order.Status = model.OrderStatusPending
	order.CreatedAt = now
	order.UpdatedAt = now

	cp := *order
	r.orders[order.ID] = &cp
	r.appendHistory(order.ID, "", model.OrderStatusPending, changedBy, now)
	return nil
}

func (r *memRepo) GetOrder(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, model.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) GetOrdersByUser(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			res = append(res, *o)
		}
	}
	return res, nil
}

func (r *memRepo) GetOrderHistory(_ context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error) {
	return r.historyOf(orderID), nil
}

func (r *memRepo) TransitionOrder(_ context.Context, t repository.Transition, now time.Time) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitionCalls++

	o, ok := r.orders[t.OrderID]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", t.OrderID, model.ErrNotFound)
	}
	if !slices.Contains(t.From, o.Status) {
		return nil, &model.InvalidTransitionError{OrderID: o.ID, Current: o.Status, Target: t.To, Required: t.From}
	}

	if t.ReleaseStock {
		item := r.items[o.FlashSaleItemID]
		if item.SoldCount < o.Quantity {
			return nil, fmt.Errorf("release: sold count below quantity")
		}
		item.SoldCount -= o.Quantity
		r.releases++
	}

	r.appendHistory(o.ID, o.Status, t.To, t.ChangedBy, now)
	o.Status = t.To
	o.UpdatedAt = now

	cp := *o
	return &cp, nil
}

func (r *memRepo) ClaimPayment(_ context.Context, orderID uuid.UUID, now, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status != model.OrderStatusPending {
		return false, nil
	}
	if started, held := r.claims[orderID]; held && started.After(staleBefore) {
		return false, nil
	}
	r.claims[orderID] = now
	return true, nil
}

func (r *memRepo) ReleasePaymentClaim(_ context.Context, orderID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.orders[orderID]; ok && o.Status == model.OrderStatusPending {
		delete(r.claims, orderID)
	}
	return nil
}

func (r *memRepo) claimed(orderID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.claims[orderID]
	return ok
}

func (r *memRepo) CreateProduct(_ context.Context, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.products {
		if existing.Name == p.Name {
			return fmt.Errorf("%w: product %q", model.ErrDuplicate, p.Name)
		}
	}
	cp := *p
	r.products[p.ID] = &cp
	return nil
}

func (r *memRepo) GetProduct(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, model.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) ListProducts(context.Context) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Product
	for _, p := range r.products {
		res = append(res, *p)
	}
	return res, nil
}

func (r *memRepo) CreateSale(_ context.Context, s *model.FlashSale) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *s
	r.sales[s.ID] = &cp
	return nil
}

func (r *memRepo) GetSale(_ context.Context, id uuid.UUID) (*model.FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sales[id]
	if !ok {
		return nil, fmt.Errorf("sale %s: %w", id, model.ErrNotFound)
	}
	cp := *s
	for _, item := range r.items {
		if item.FlashSaleID == id {
			cp.Items = append(cp.Items, *r.withItemSale(item))
		}
	}
	return &cp, nil
}

func (r *memRepo) ListSales(_ context.Context, status model.SaleStatus) ([]model.FlashSale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.FlashSale
	for _, s := range r.sales {
		if status == "" || s.Status == status {
			res = append(res, *s)
		}
	}
	return res, nil
}

func (r *memRepo) AddSaleItem(_ context.Context, item *model.FlashSaleItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sale, ok := r.sales[item.FlashSaleID]
	if !ok {
		return fmt.Errorf("sale %s: %w", item.FlashSaleID, model.ErrNotFound)
	}
	if sale.Status != model.SaleStatusDraft && sale.Status != model.SaleStatusActive {
		return fmt.Errorf("%w: sale %s is %s", model.ErrSaleNotActive, sale.ID, sale.Status)
	}
	p, ok := r.products[item.ProductID]
	if !ok {
		return fmt.Errorf("product %s: %w", item.ProductID, model.ErrNotFound)
	}
	if p.ReservedCount+item.AllocatedStock > p.TotalPhysicalStock {
		return &model.InsufficientStockError{ItemID: p.ID, Requested: item.AllocatedStock, Available: p.Available()}
	}
	for _, existing := range r.items {
		if existing.FlashSaleID == item.FlashSaleID && existing.ProductID == item.ProductID {
			return fmt.Errorf("%w: product %s already in sale %s", model.ErrDuplicate, item.ProductID, item.FlashSaleID)
		}
	}

	p.ReservedCount += item.AllocatedStock
	cp := *item
	r.items[item.ID] = &cp
	return nil
}

func (r *memRepo) GetSaleItem(_ context.Context, id uuid.UUID) (*model.FlashSaleItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("sale item %s: %w", id, model.ErrNotFound)
	}
	return r.withItemSale(item), nil
}

func (r *memRepo) SaleStats(_ context.Context, saleID uuid.UUID) (*model.SaleStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sales[saleID]; !ok {
		return nil, fmt.Errorf("sale %s: %w", saleID, model.ErrNotFound)
	}

	stats := &model.SaleStats{SaleID: saleID, OrdersByStatus: make(map[model.OrderStatus]int), Revenue: decimal.Zero}
	for _, item := range r.items {
		if item.FlashSaleID != saleID {
			continue
		}
		stats.UnitsSold += item.SoldCount
		stats.UnitsAllocated += item.AllocatedStock
		for _, o := range r.orders {
			if o.FlashSaleItemID != item.ID {
				continue
			}
			stats.OrdersByStatus[o.Status]++
			if o.Status == model.OrderStatusPaid || o.Status == model.OrderStatusDispatched {
				stats.Revenue = stats.Revenue.Add(o.TotalAmount)
			}
		}
	}
	return stats, nil
}

type published struct {
	channel queue.Channel
	orderID uuid.UUID
}

type stubPublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *stubPublisher) Publish(_ context.Context, ch queue.Channel, orderID uuid.UUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{channel: ch, orderID: orderID})
	return nil
}

func (p *stubPublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

// stubGateway возвращает результаты из sequence по порядку вызовов, затем result.
// delay имитирует задержку ответа шлюза.
type stubGateway struct {
	mu       sync.Mutex
	result   payment.Result
	sequence []payment.Result
	err      error
	delay    time.Duration
	calls    int
}

func (g *stubGateway) Charge(context.Context, uuid.UUID, decimal.Decimal) (payment.Result, error) {
	g.mu.Lock()
	g.calls++
	res := g.result
	if g.calls <= len(g.sequence) {
		res = g.sequence[g.calls-1]
	}
	err, delay := g.err, g.delay
	g.mu.Unlock()

	time.Sleep(delay)
	return res, err
}

func (g *stubGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type stubNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *stubNotifier) Notify(_ context.Context, event Event, _ *model.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}
