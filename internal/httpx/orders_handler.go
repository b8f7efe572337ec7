package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/auth"
	"github.com/ferretex/ferretex-api/internal/orders"
)

type OrdersHandler struct {
	Engine     *orders.Engine
	Secret     []byte
	SweepLimit int
	Logger     *zap.Logger
}

type createOrderReq struct {
	DeliveryType  string               `json:"delivery_type"`
	PaymentMethod string               `json:"payment_method"`
	AddressID     string               `json:"address_id"`
	Items         []orders.LineRequest `json:"items"`
}

type orderResp struct {
	ID            string             `json:"id"`
	Status        orders.Status      `json:"status"`
	DeliveryType  string             `json:"delivery_type"`
	PaymentMethod string             `json:"payment_method"`
	AddressID     string             `json:"address_id,omitempty"`
	SubtotalCents int64              `json:"subtotal_cents"`
	ShippingCents int64              `json:"shipping_cents"`
	TotalCents    int64              `json:"total_cents"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
	Items         []orders.OrderLine `json:"items,omitempty"`
}

func toOrderResp(o *orders.Order, lines []orders.OrderLine) orderResp {
	return orderResp{
		ID:            o.ID,
		Status:        o.Status,
		DeliveryType:  string(o.DeliveryType),
		PaymentMethod: string(o.PaymentMethod),
		AddressID:     o.AddressID,
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		ExpiresAt:     o.ExpiresAt,
		Items:         lines,
	}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(auth.Require(h.Secret))
		g.Post("/orders", h.create)
		g.Get("/orders/{id}", h.get)

		g.Group(func(s chi.Router) {
			s.Use(auth.RequireRole(auth.RoleStaff, auth.RoleManager))
			s.Patch("/orders/{id}/status", h.setStatus)
		})
		g.Group(func(m chi.Router) {
			m.Use(auth.RequireRole(auth.RoleManager))
			m.Post("/orders/sweep", h.sweep)
		})
	})
}

func (h *OrdersHandler) create(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, lines, err := h.Engine.CreateOrder(ctx, orders.CreateOrderInput{
		CustomerID:    p.ID,
		DeliveryType:  req.DeliveryType,
		PaymentMethod: req.PaymentMethod,
		AddressID:     req.AddressID,
		Lines:         req.Items,
	})
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResp(order, lines))
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, lines, err := h.Engine.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	if order.UserID != p.ID && !p.IsStaff() {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not authorized"})
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(order, lines))
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Engine.SetStatus(ctx, chi.URLParam(r, "id"), req.Status, p)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(order, nil))
}

func (h *OrdersHandler) sweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit int `json:"limit"`
	}
	// body is optional
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Limit <= 0 {
		req.Limit = h.SweepLimit
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	cancelled, err := h.Engine.Sweep(ctx, req.Limit)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}
