// Package catalog is the product menu the POS sells from.
package catalog

import (
	"errors"
	"sort"
	"sync"

	"cafe-pos/internal/cart"
)

var ErrNotFound = errors.New("product not found")

type Product struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Category  string            `json:"category"`
	BasePrice float64           `json:"basePrice"`
	Sizes     []cart.SizeOption `json:"sizes,omitempty"`
	AddOns    []cart.AddOn      `json:"addOns,omitempty"`
	Available bool              `json:"available"`
}

// Catalog is the in-memory menu, loaded at startup from the repo or seeded
// directly.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func New(products []Product) *Catalog {
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return &Catalog{products: byID}
}

func (c *Catalog) Get(id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// List returns all products sorted by category then name.
func (c *Catalog) List() []Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Filter returns available products in the category; empty category means
// all categories.
func (c *Catalog) Filter(category string) []Product {
	all := c.List()
	out := make([]Product, 0, len(all))
	for _, p := range all {
		if !p.Available {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) Upsert(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}
