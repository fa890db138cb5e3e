package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
)

// moneyPlaces задаёт число знаков после запятой в денежных суммах ответа.
const moneyPlaces = 2

type orderResponse struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	FlashSaleItemID string `json:"flash_sale_item_id"`
	Quantity        int    `json:"quantity"`
	TotalAmount     string `json:"total_amount"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

func newOrderResponse(o *model.Order) orderResponse {
	return orderResponse{
		ID:              o.ID.String(),
		UserID:          o.UserID.String(),
		FlashSaleItemID: o.FlashSaleItemID.String(),
		Quantity:        o.Quantity,
		TotalAmount:     o.TotalAmount.StringFixed(moneyPlaces),
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.Format(time.RFC3339),
	}
}

type historyResponse struct {
	FromStatus *string `json:"from_status"`
	ToStatus   string  `json:"to_status"`
	ChangedAt  string  `json:"changed_at"`
	ChangedBy  *string `json:"changed_by"`
}

func newHistoryResponse(h model.OrderStatusHistory) historyResponse {
	resp := historyResponse{
		ToStatus:  string(h.ToStatus),
		ChangedAt: h.ChangedAt.Format(time.RFC3339Nano),
	}
	if h.FromStatus != "" {
		s := string(h.FromStatus)
		resp.FromStatus = &s
	}
	if h.ChangedBy.Valid {
		s := h.ChangedBy.UUID.String()
		resp.ChangedBy = &s
	}
	return resp
}

type productResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	TotalPhysicalStock int    `json:"total_physical_stock"`
	ReservedCount      int    `json:"reserved_count"`
	BasePrice          string `json:"base_price"`
}

func newProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:                 p.ID.String(),
		Name:               p.Name,
		Description:        p.Description,
		TotalPhysicalStock: p.TotalPhysicalStock,
		ReservedCount:      p.ReservedCount,
		BasePrice:          p.BasePrice.StringFixed(moneyPlaces),
	}
}

type saleItemResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	AllocatedStock int    `json:"allocated_stock"`
	SoldCount      int    `json:"sold_count"`
	Remaining      int    `json:"remaining"`
	SalePrice      string `json:"sale_price"`
}

func newSaleItemResponse(i *model.FlashSaleItem) saleItemResponse {
	return saleItemResponse{
		ID:             i.ID.String(),
		ProductID:      i.ProductID.String(),
		AllocatedStock: i.AllocatedStock,
		SoldCount:      i.SoldCount,
		Remaining:      i.Remaining(),
		SalePrice:      i.SalePrice.StringFixed(moneyPlaces),
	}
}

type saleResponse struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	StartTime string             `json:"start_time"`
	EndTime   string             `json:"end_time"`
	Status    string             `json:"status"`
	Items     []saleItemResponse `json:"items,omitempty"`
}

func newSaleResponse(s *model.FlashSale) saleResponse {
	resp := saleResponse{
		ID:        s.ID.String(),
		Title:     s.Title,
		StartTime: s.StartTime.Format(time.RFC3339),
		EndTime:   s.EndTime.Format(time.RFC3339),
		Status:    string(s.Status),
	}
	for i := range s.Items {
		resp.Items = append(resp.Items, newSaleItemResponse(&s.Items[i]))
	}
	return resp
}

type statsResponse struct {
	SaleID         string         `json:"sale_id"`
	OrdersByStatus map[string]int `json:"orders_by_status"`
	UnitsSold      int            `json:"units_sold"`
	UnitsAllocated int            `json:"units_allocated"`
	Revenue        string         `json:"revenue"`
}

func newStatsResponse(s *model.SaleStats) statsResponse {
	resp := statsResponse{
		SaleID:         s.SaleID.String(),
		OrdersByStatus: make(map[string]int, len(s.OrdersByStatus)),
		UnitsSold:      s.UnitsSold,
		UnitsAllocated: s.UnitsAllocated,
		Revenue:        s.Revenue.StringFixed(moneyPlaces),
	}
	for st, n := range s.OrdersByStatus {
		resp.OrdersByStatus[string(st)] = n
	}
	return resp
}

type createOrderRequest struct {
	FlashSaleItemID string `json:"flash_sale_item_id"`
	Quantity        int    `json:"quantity"`
}

type createProductRequest struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	TotalPhysicalStock int             `json:"total_physical_stock"`
	BasePrice          decimal.Decimal `json:"base_price"`
}

type createSaleRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type addSaleItemRequest struct {
	ProductID      string          `json:"product_id"`
	AllocatedStock int             `json:"allocated_stock"`
	SalePrice      decimal.Decimal `json:"sale_price"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type tokenRequest struct {
	UserID string `json:"user_id"`
}

type tokenResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}
