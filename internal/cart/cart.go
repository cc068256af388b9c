// Package cart holds the working order for one producer station. Every
// mutation recomputes line totals and pushes the new state to the attached
// publisher, so the customer display and the order board are a derived
// effect of editing the cart, not something handlers call explicitly.
package cart

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// SizeOption is a product size choice with its surcharge.
type SizeOption struct {
	Name  string  `json:"name"`
	Extra float64 `json:"extra"`
}

// AddOn is an extra with its surcharge. Order is irrelevant: two lines with
// the same add-ons in different order are the same configuration.
type AddOn struct {
	Name  string  `json:"name"`
	Extra float64 `json:"extra"`
}

// Line is one configured product in the cart.
type Line struct {
	ID         string      `json:"id"`
	ProductID  string      `json:"productId"`
	Name       string      `json:"name"`
	BasePrice  float64     `json:"basePrice"`
	Size       *SizeOption `json:"size,omitempty"`
	AddOns     []AddOn     `json:"addOns,omitempty"`
	Note       string      `json:"note,omitempty"`
	Quantity   int         `json:"quantity"`
	TotalPrice float64     `json:"totalPrice"`
}

// UnitPrice is base plus size surcharge plus the sum of add-on surcharges.
func (l Line) UnitPrice() float64 {
	price := l.BasePrice
	if l.Size != nil {
		price += l.Size.Extra
	}
	for _, a := range l.AddOns {
		price += a.Extra
	}
	return price
}

// sameConfig reports whether two lines are the identical product
// configuration and should merge rather than coexist.
func (l Line) sameConfig(other Line) bool {
	if l.ProductID != other.ProductID || l.Note != other.Note {
		return false
	}
	if (l.Size == nil) != (other.Size == nil) {
		return false
	}
	if l.Size != nil && l.Size.Name != other.Size.Name {
		return false
	}
	return addOnKey(l.AddOns) == addOnKey(other.AddOns)
}

func addOnKey(addOns []AddOn) string {
	names := make([]string, len(addOns))
	for i, a := range addOns {
		names[i] = a.Name
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}

// Publisher receives the full cart state after every mutation.
type Publisher interface {
	CartChanged(lines []Line, totalPrice float64, totalItems int)
}

// Cart is safe for concurrent use within its station.
type Cart struct {
	mu        sync.Mutex
	lines     []Line
	publisher Publisher
}

func New(publisher Publisher) *Cart {
	return &Cart{publisher: publisher}
}

// Add merges into an existing line when the configuration is identical,
// otherwise appends a new line. Quantities below 1 are ignored.
func (c *Cart) Add(productID, name string, basePrice float64, size *SizeOption, addOns []AddOn, note string, quantity int) {
	if quantity < 1 {
		return
	}
	incoming := Line{
		ProductID: productID,
		Name:      name,
		BasePrice: basePrice,
		Size:      size,
		AddOns:    addOns,
		Note:      note,
		Quantity:  quantity,
	}

	c.mu.Lock()
	merged := false
	for i := range c.lines {
		if c.lines[i].sameConfig(incoming) {
			c.lines[i].Quantity += quantity
			c.lines[i].TotalPrice = c.lines[i].UnitPrice() * float64(c.lines[i].Quantity)
			merged = true
			break
		}
	}
	if !merged {
		incoming.ID = uuid.NewString()
		incoming.TotalPrice = incoming.UnitPrice() * float64(quantity)
		c.lines = append(c.lines, incoming)
	}
	c.mu.Unlock()

	c.publish()
}

// SetQuantity updates a line's quantity; zero or less removes the line.
func (c *Cart) SetQuantity(lineID string, quantity int) {
	c.mu.Lock()
	for i := range c.lines {
		if c.lines[i].ID != lineID {
			continue
		}
		if quantity <= 0 {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
		} else {
			c.lines[i].Quantity = quantity
			c.lines[i].TotalPrice = c.lines[i].UnitPrice() * float64(quantity)
		}
		break
	}
	c.mu.Unlock()

	c.publish()
}

func (c *Cart) Remove(lineID string) {
	c.SetQuantity(lineID, 0)
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = nil
	c.mu.Unlock()

	c.publish()
}

func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cart) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0.0
	for _, l := range c.lines {
		total += l.TotalPrice
	}
	return total
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, l := range c.lines {
		count += l.Quantity
	}
	return count
}

func (c *Cart) publish() {
	if c.publisher == nil {
		return
	}
	c.mu.Lock()
	lines := c.snapshotLocked()
	total := 0.0
	count := 0
	for _, l := range lines {
		total += l.TotalPrice
		count += l.Quantity
	}
	c.mu.Unlock()

	c.publisher.CartChanged(lines, total, count)
}

func (c *Cart) snapshotLocked() []Line {
	lines := make([]Line, len(c.lines))
	copy(lines, c.lines)
	return lines
}
