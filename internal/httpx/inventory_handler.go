package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/auth"
	"github.com/ferretex/ferretex-api/internal/inventory"
	"github.com/ferretex/ferretex-api/internal/orders"
)

type InventoryHandler struct {
	Svc    *inventory.Service
	Cache  orders.CacheInvalidator
	Secret []byte
	Logger *zap.Logger
}

func (h *InventoryHandler) Register(r chi.Router) {
	r.Group(func(g chi.Router) {
		g.Use(auth.Require(h.Secret), auth.RequireRole(auth.RoleStaff, auth.RoleManager))
		g.Get("/inventory", h.list)
		g.Patch("/inventory/{productId}", h.patch)
	})
}

func (h *InventoryHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	recs, err := h.Svc.List(ctx)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *InventoryHandler) patch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OnHand *int `json:"stock_on_hand"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OnHand == nil || *req.OnHand < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock_on_hand"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Svc.SetOnHand(ctx, chi.URLParam(r, "productId"), *req.OnHand)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	// manual corrections change available stock
	h.Cache.Invalidate(ctx)
	writeJSON(w, http.StatusOK, rec)
}
