package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ferretex/ferretex-api/internal/auth"
	"github.com/ferretex/ferretex-api/internal/catalog"
)

type ProductsHandler struct {
	Repo   *catalog.Repo
	Cache  *catalog.Cache
	Secret []byte
	Logger *zap.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)

	r.Group(func(g chi.Router) {
		g.Use(auth.Require(h.Secret), auth.RequireRole(auth.RoleStaff, auth.RoleManager))
		g.Post("/products", h.create)
		g.Patch("/products/{id}", h.update)
		g.Delete("/products/{id}", h.deactivate)
	})
}

func parseFilter(r *http.Request) catalog.ListFilter {
	q := r.URL.Query()
	f := catalog.ListFilter{
		Query:    q.Get("q"),
		Category: q.Get("cat"),
		Status:   q.Get("status"),
		InStock:  q.Get("inStock") == "true",
		Sort:     q.Get("sort"),
	}
	if v, err := strconv.ParseInt(q.Get("minPrice"), 10, 64); err == nil {
		f.MinPrice = &v
	}
	if v, err := strconv.ParseInt(q.Get("maxPrice"), 10, 64); err == nil {
		f.MaxPrice = &v
	}
	return f
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	f := parseFilter(r)
	if body, ok := h.Cache.GetListing(ctx, f.Key()); ok {
		w.Header().Set("X-Cache", "HIT")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	ps, err := h.Repo.List(ctx, f)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	body, _ := json.Marshal(ps)
	h.Cache.SetListing(ctx, f.Key(), body)

	w.Header().Set("X-Cache", "MISS")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Repo.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type productReq struct {
	ID          string  `json:"id"`
	SKU         *string `json:"sku"`
	Name        *string `json:"name"`
	Description *string `json:"description"`
	PriceCents  *int64  `json:"price_cents"`
	Status      *string `json:"status"`
	ImageURL    *string `json:"image"`
	Category    *string `json:"category"`
	OnHand      *int    `json:"stock_on_hand"`
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.SKU == nil || *req.SKU == "" || req.Name == nil || *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sku and name are required"})
		return
	}
	if req.PriceCents == nil || *req.PriceCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price_cents"})
		return
	}
	if req.OnHand != nil && *req.OnHand < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock_on_hand"})
		return
	}

	in := catalog.CreateProduct{
		ID:         req.ID,
		SKU:        *req.SKU,
		Name:       *req.Name,
		PriceCents: *req.PriceCents,
	}
	if in.ID == "" {
		in.ID = *req.SKU
	}
	if req.Description != nil {
		in.Description = *req.Description
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.ImageURL != nil {
		in.ImageURL = *req.ImageURL
	}
	if req.Category != nil {
		in.Category = *req.Category
	}
	if req.OnHand != nil {
		in.OnHand = *req.OnHand
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.Create(ctx, in)
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(ctx)
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if (req.SKU != nil && *req.SKU == "") || (req.Name != nil && *req.Name == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sku and name cannot be empty"})
		return
	}
	if req.PriceCents != nil && *req.PriceCents < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price_cents"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Repo.Update(ctx, chi.URLParam(r, "id"), catalog.UpdateProduct{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		PriceCents:  req.PriceCents,
		Status:      req.Status,
		ImageURL:    req.ImageURL,
		Category:    req.Category,
	})
	if err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(ctx)
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	if err := h.Repo.Deactivate(ctx, id); err != nil {
		writeErr(w, h.Logger, err)
		return
	}
	h.Cache.Invalidate(ctx)
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "message": "product deactivated"})
}
