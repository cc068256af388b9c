package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cafe-pos/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo persists the menu in Postgres. Size and add-on options are stored as
// JSONB since the POS only ever reads them whole.
type Repo struct {
	pool  *pgxpool.Pool
	mylog logger.Logger
}

const productSchema = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	category   TEXT NOT NULL,
	base_price DOUBLE PRECISION NOT NULL,
	sizes      JSONB NOT NULL DEFAULT '[]',
	add_ons    JSONB NOT NULL DEFAULT '[]',
	available  BOOLEAN NOT NULL DEFAULT true
)`

func NewRepo(ctx context.Context, pool *pgxpool.Pool, mylog logger.Logger) (*Repo, error) {
	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := pool.Exec(initCtx, productSchema); err != nil {
		return nil, fmt.Errorf("ensure products table: %w", err)
	}
	return &Repo{pool: pool, mylog: mylog}, nil
}

func (r *Repo) LoadAll(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, category, base_price, sizes, add_ons, available FROM products`)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var sizes, addOns []byte
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.BasePrice, &sizes, &addOns, &p.Available); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
			r.mylog.Action("product_sizes_corrupt").With("product_id", p.ID).Warn(err.Error())
		}
		if err := json.Unmarshal(addOns, &p.AddOns); err != nil {
			r.mylog.Action("product_addons_corrupt").With("product_id", p.ID).Warn(err.Error())
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repo) Save(ctx context.Context, p Product) error {
	sizes, err := json.Marshal(p.Sizes)
	if err != nil {
		return fmt.Errorf("marshal sizes: %w", err)
	}
	addOns, err := json.Marshal(p.AddOns)
	if err != nil {
		return fmt.Errorf("marshal add-ons: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO products (id, name, category, base_price, sizes, add_ons, available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = $2, category = $3, base_price = $4, sizes = $5, add_ons = $6, available = $7`,
		p.ID, p.Name, p.Category, p.BasePrice, sizes, addOns, p.Available)
	if err != nil {
		return fmt.Errorf("save product %q: %w", p.ID, err)
	}
	return nil
}
