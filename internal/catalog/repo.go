package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound     = errors.New("product not found")
	ErrDuplicateSKU = errors.New("duplicate sku or id")
)

type Product struct {
	ID          string `json:"id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
	Status      string `json:"status"`
	ImageURL    string `json:"image,omitempty"`
	Category    string `json:"category"`
	Active      bool   `json:"active"`
	Stock       int    `json:"stock"` // derived available, floored at zero
}

type ListFilter struct {
	Query    string
	Category string
	Status   string
	InStock  bool
	MinPrice *int64
	MaxPrice *int64
	Sort     string // price_asc (default) | price_desc | name_asc | name_desc
}

// Key is the cache key fragment for this filter combination.
func (f ListFilter) Key() string {
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s&cat=%s&status=%s&stock=%t&sort=%s", f.Query, f.Category, f.Status, f.InStock, f.Sort)
	if f.MinPrice != nil {
		fmt.Fprintf(&b, "&min=%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		fmt.Fprintf(&b, "&max=%d", *f.MaxPrice)
	}
	return b.String()
}

type Repo struct{ DB *pgxpool.Pool }

const productSelect = `
	SELECT p.id, p.sku, p.name, p.description, p.price_cents, p.status,
	       p.image_url, p.category, p.active,
	       GREATEST(i.on_hand - i.reserved, 0) AS stock
	FROM products p
	JOIN inventory i ON i.product_id = p.id`

func (r *Repo) List(ctx context.Context, f ListFilter) ([]Product, error) {
	filters := []string{"p.active"}
	var args []any

	if f.Query != "" {
		args = append(args, "%"+strings.ToLower(f.Query)+"%")
		filters = append(filters, fmt.Sprintf("LOWER(p.name) LIKE $%d", len(args)))
	}
	if f.Category != "" && f.Category != "all" {
		args = append(args, f.Category)
		filters = append(filters, fmt.Sprintf("p.category = $%d", len(args)))
	}
	if f.Status != "" && f.Status != "all" {
		args = append(args, f.Status)
		filters = append(filters, fmt.Sprintf("p.status = $%d", len(args)))
	}
	if f.InStock {
		filters = append(filters, "(i.on_hand - i.reserved) > 0")
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		filters = append(filters, fmt.Sprintf("p.price_cents >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		filters = append(filters, fmt.Sprintf("p.price_cents <= $%d", len(args)))
	}

	orderBy := map[string]string{
		"price_desc": "p.price_cents DESC",
		"name_asc":   "p.name ASC",
		"name_desc":  "p.name DESC",
	}[f.Sort]
	if orderBy == "" {
		orderBy = "p.price_cents ASC"
	}

	sql := productSelect + "\n\tWHERE " + strings.Join(filters, " AND ") + "\n\tORDER BY " + orderBy
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.PriceCents,
		&p.Status, &p.ImageURL, &p.Category, &p.Active, &p.Stock)
	return p, err
}

func (r *Repo) Get(ctx context.Context, id string) (*Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, productSelect+` WHERE p.id = $1 AND p.active`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

type CreateProduct struct {
	ID          string
	SKU         string
	Name        string
	Description string
	PriceCents  int64
	Status      string
	ImageURL    string
	Category    string
	OnHand      int
}

// Create inserts the product and its zero-reserved inventory row in one tx.
func (r *Repo) Create(ctx context.Context, in CreateProduct) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if in.Status == "" {
		in.Status = "none"
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO products (id, sku, name, description, price_cents, status, image_url, category, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,TRUE)`,
		in.ID, in.SKU, in.Name, in.Description, in.PriceCents, in.Status, in.ImageURL, in.Category)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateSKU
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory (product_id, on_hand, reserved) VALUES ($1, $2, 0)`,
		in.ID, in.OnHand); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &Product{
		ID: in.ID, SKU: in.SKU, Name: in.Name, Description: in.Description,
		PriceCents: in.PriceCents, Status: in.Status, ImageURL: in.ImageURL,
		Category: in.Category, Active: true, Stock: in.OnHand,
	}, nil
}

type UpdateProduct struct {
	SKU         *string
	Name        *string
	Description *string
	PriceCents  *int64
	Status      *string
	ImageURL    *string
	Category    *string
}

// Update patches only the provided fields of an active product.
func (r *Repo) Update(ctx context.Context, id string, in UpdateProduct) (*Product, error) {
	var set []string
	var args []any
	push := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if in.SKU != nil {
		push("sku", *in.SKU)
	}
	if in.Name != nil {
		push("name", *in.Name)
	}
	if in.Description != nil {
		push("description", *in.Description)
	}
	if in.PriceCents != nil {
		push("price_cents", *in.PriceCents)
	}
	if in.Status != nil {
		push("status", *in.Status)
	}
	if in.ImageURL != nil {
		push("image_url", *in.ImageURL)
	}
	if in.Category != nil {
		push("category", *in.Category)
	}
	if len(set) == 0 {
		return nil, errors.New("no fields to update")
	}
	set = append(set, "updated_at = now()")

	args = append(args, id)
	sql := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d AND active`, strings.Join(set, ", "), len(args))
	ct, err := r.DB.Exec(ctx, sql, args...)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateSKU
	}
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Deactivate soft-deletes: the product keeps its order history and ledger.
func (r *Repo) Deactivate(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET active = FALSE, updated_at = now()
		WHERE id = $1 AND active`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
