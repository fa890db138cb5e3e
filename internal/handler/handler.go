// Package handler содержит HTTP-обработчики API сервиса флеш-распродаж.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/twalmsley/FlashSales-sub001/internal/middleware"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	CreateOrder(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	GetOrdersByUser(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	GetOrderHistory(ctx context.Context, orderID uuid.UUID) ([]model.OrderStatusHistory, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus) (*model.Order, error)
	RefundOrder(ctx context.Context, orderID uuid.UUID) (*model.Order, error)

	CreateProduct(ctx context.Context, name, description string, stock int, basePrice decimal.Decimal) (*model.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateSale(ctx context.Context, title string, start, end time.Time) (*model.FlashSale, error)
	GetSale(ctx context.Context, id uuid.UUID) (*model.FlashSale, error)
	ListSales(ctx context.Context, status model.SaleStatus) ([]model.FlashSale, error)
	AddSaleItem(ctx context.Context, saleID, productID uuid.UUID, allocated int, price decimal.Decimal) (*model.FlashSaleItem, error)
	SaleStats(ctx context.Context, saleID uuid.UUID) (*model.SaleStats, error)
}

// Handler реализует HTTP-обработчики API сервиса флеш-распродаж.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	adminKey       string
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// metricsHandler обслуживает /metrics; nil отключает маршрут.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, adminKey string, metricsHandler http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		adminKey:       adminKey,
		metrics:        metricsHandler,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`

	ItemID    *uuid.UUID `json:"item_id,omitempty"`
	Requested *int       `json:"requested,omitempty"`
	Available *int       `json:"available,omitempty"`

	OrderID        *uuid.UUID `json:"order_id,omitempty"`
	CurrentStatus  string     `json:"current_status,omitempty"`
	RequiredStatus []string   `json:"required_status,omitempty"`
}

var statusByKind = map[model.ErrorKind]int{
	model.KindValidation:        http.StatusBadRequest,
	model.KindNotFound:          http.StatusNotFound,
	model.KindDuplicate:         http.StatusConflict,
	model.KindInvalidTransition: http.StatusConflict,
	model.KindInsufficientStock: http.StatusUnprocessableEntity,
	model.KindSaleNotActive:     http.StatusUnprocessableEntity,
}

// writeError переводит доменную ошибку в HTTP-ответ. Неизвестные ошибки журналируются
// и отдаются клиенту без подробностей.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := model.KindOf(err)

	status, ok := statusByKind[kind]
	if !ok {
		h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "internal",
			Message: http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	resp := errorResponse{Error: kind.String(), Message: err.Error()}

	var stockErr *model.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.ItemID = &stockErr.ItemID
		resp.Requested = &stockErr.Requested
		resp.Available = &stockErr.Available
	}

	var transitionErr *model.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		resp.OrderID = &transitionErr.OrderID
		resp.CurrentStatus = string(transitionErr.Current)
		for _, s := range transitionErr.Required {
			resp.RequiredStatus = append(resp.RequiredStatus, string(s))
		}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON разбирает тело запроса; неизвестные поля считаются ошибкой.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return model.Validationf("invalid request body: %v", err)
	}
	return nil
}

// pathID разбирает идентификатор из параметра маршрута.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	return validation.ID(chi.URLParam(r, name))
}
