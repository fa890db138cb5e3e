package handler

import (
	"net/http"

	"github.com/twalmsley/FlashSales-sub001/internal/actor"
	"github.com/twalmsley/FlashSales-sub001/internal/model"
	"github.com/twalmsley/FlashSales-sub001/internal/validation"
)

// CreateOrder создаёт заказ текущего пользователя на позицию распродажи.
// Ответ 202: оплата выполняется асинхронно.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor.UserID(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, "create order", err)
		return
	}

	itemID, err := validation.ID(req.FlashSaleItemID)
	if err != nil {
		h.writeError(w, r, "create order", err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), userID, itemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, "create order", err)
		return
	}

	writeJSON(w, http.StatusAccepted, newOrderResponse(order))
}

// GetOrders возвращает список заказов текущего пользователя.
func (h *Handler) GetOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor.UserID(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orders, err := h.service.GetOrdersByUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, "get orders", err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, newOrderResponse(&orders[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetOrder возвращает заказ текущего пользователя. Чужие заказы не раскрываются.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor.UserID(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	orderID, err := pathID(r, "orderID")
	if err != nil {
		h.writeError(w, r, "get order", err)
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, r, "get order", err)
		return
	}
	if order.UserID != userID {
		h.writeError(w, r, "get order", model.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, newOrderResponse(order))
}

// GetActiveSales возвращает идущие распродажи.
func (h *Handler) GetActiveSales(w http.ResponseWriter, r *http.Request) {
	sales, err := h.service.ListSales(r.Context(), model.SaleStatusActive)
	if err != nil {
		h.writeError(w, r, "list active sales", err)
		return
	}

	resp := make([]saleResponse, 0, len(sales))
	for i := range sales {
		resp = append(resp, newSaleResponse(&sales[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetSale возвращает распродажу с позициями. Черновики покупателям не показываются.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathID(r, "saleID")
	if err != nil {
		h.writeError(w, r, "get sale", err)
		return
	}

	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		h.writeError(w, r, "get sale", err)
		return
	}
	if sale.Status == model.SaleStatusDraft {
		h.writeError(w, r, "get sale", model.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, newSaleResponse(sale))
}
