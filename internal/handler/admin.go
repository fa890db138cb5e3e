package handler

import (
	"net/http"

	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// CreateProduct добавляет товар в каталог.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "create product", err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), req.Name, req.Description, req.TotalPhysicalStock, req.BasePrice)
	if err != nil {
		h.writeError(w, r, "create product", err)
		return
	}

	writeJSON(w, http.StatusCreated, newProductResponse(p))
}

// ListProducts возвращает каталог.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		h.writeError(w, r, "list products", err)
		return
	}

	resp := make([]productResponse, 0, len(products))
	for i := range products {
		resp = append(resp, newProductResponse(&products[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetProduct возвращает товар.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "productID")
	if err != nil {
		h.writeError(w, r, "get product", err)
		return
	}

	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get product", err)
		return
	}

	writeJSON(w, http.StatusOK, newProductResponse(p))
}

// CreateSale создаёт распродажу в статусе DRAFT.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "create sale", err)
		return
	}

	sale, err := h.service.CreateSale(r.Context(), req.Title, req.StartTime, req.EndTime)
	if err != nil {
		h.writeError(w, r, "create sale", err)
		return
	}

	writeJSON(w, http.StatusCreated, newSaleResponse(sale))
}

// ListSales возвращает распродажи; параметр status фильтрует по статусу.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	status := model.SaleStatus(r.URL.Query().Get("status"))

	sales, err := h.service.ListSales(r.Context(), status)
	if err != nil {
		h.writeError(w, r, "list sales", err)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for i := range sales {
		resp = append(resp, newSaleResponse(&sales[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// AddSaleItem выделяет квоту товара под распродажу.
func (h *Handler) AddSaleItem(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r, "saleID")
	if err != nil {
		h.writeError(w, r, "add sale item", err)
		return
	}

	var req addSaleItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "add sale item", err)
		return
	}

	productID, err := validation.ID(req.ProductID)
	if err != nil {
		h.writeError(w, r, "add sale item", err)
		return
	}

	item, err := h.service.AddSaleItem(r.Context(), saleID, productID, req.AllocatedStock, req.SalePrice)
	if err != nil {
		h.writeError(w, r, "add sale item", err)
		return
	}

	writeJSON(w, http.StatusCreated, newSaleItemResponse(item))
}

// GetSaleStats возвращает статистику распродажи.
func (h *Handler) GetSaleStats(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r, "saleID")
	if err != nil {
		h.writeError(w, r, "sale stats", err)
		return
	}

	stats, err := h.service.SaleStats(r.Context(), saleID)
	if err != nil {
		h.writeError(w, r, "sale stats", err)
		return
	}

	writeJSON(w, http.StatusOK, newStatsResponse(stats))
}

// GetOrderHistory возвращает журнал статусов заказа.
func (h *Handler) GetOrderHistory(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, "order history", err)
		return
	}

	history, err := h.service.GetOrderHistory(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, "order history", err)
		return
	}

	resp := make([]historyResponse, 0, len(history))
	for _, e := range history {
		resp = append(resp, newHistoryResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// UpdateOrderStatus вручную меняет статус заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	order, err := h.service.UpdateOrderStatus(r.Context(), orderID, model.OrderStatus(req.Status))
	if err != nil {
		h.writeError(w, r, "update order status", err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// RefundOrder оформляет возврат заказа.
func (h *Handler) RefundOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, "refund order", err)
		return
	}

	order, err := h.service.RefundOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, "refund order", err)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// IssueToken выдаёт токен покупателя для указанного идентификатора пользователя.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "issue token", err)
		return
	}

	userID, err := validation.ID(req.UserID)
	if err != nil {
		h.writeError(w, r, "issue token", err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		UserID: userID.String(),
		Token:  h.authMiddleware.Sign(userID),
	})
}
