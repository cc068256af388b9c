package cart

import (
	"testing"
)

type captured struct {
	lines      []Line
	totalPrice float64
	totalItems int
	calls      int
}

func (c *captured) CartChanged(lines []Line, totalPrice float64, totalItems int) {
	c.lines = lines
	c.totalPrice = totalPrice
	c.totalItems = totalItems
	c.calls++
}

func TestLineTotalInvariant(t *testing.T) {
	c := New(nil)
	size := &SizeOption{Name: "L", Extra: 5000}
	addOns := []AddOn{
		{Name: "Extra shot", Extra: 10000},
		{Name: "Oat milk", Extra: 8000},
	}

	c.Add("ca-phe-sua", "Cà phê sữa", 30000, size, addOns, "", 3)

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	line := lines[0]
	want := (30000.0 + 5000 + 10000 + 8000) * 3
	if line.TotalPrice != want {
		t.Errorf("total = %v, want %v", line.TotalPrice, want)
	}
	if line.UnitPrice()*float64(line.Quantity) != line.TotalPrice {
		t.Errorf("line total %v does not recompute from unit price %v x %d",
			line.TotalPrice, line.UnitPrice(), line.Quantity)
	}
}

func TestMergeOnIdenticalConfiguration(t *testing.T) {
	c := New(nil)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)
	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want a single merged line", len(lines))
	}
	if lines[0].Quantity != 2 {
		t.Errorf("quantity = %d, want 2", lines[0].Quantity)
	}
	if lines[0].TotalPrice != 50000 {
		t.Errorf("total = %v, want 50000", lines[0].TotalPrice)
	}
}

func TestAddOnOrderDoesNotSplitLines(t *testing.T) {
	c := New(nil)
	shot := AddOn{Name: "Extra shot", Extra: 10000}
	oat := AddOn{Name: "Oat milk", Extra: 8000}

	c.Add("ca-phe-sua", "Cà phê sữa", 30000, nil, []AddOn{shot, oat}, "", 1)
	c.Add("ca-phe-sua", "Cà phê sữa", 30000, nil, []AddOn{oat, shot}, "", 1)

	if got := len(c.Lines()); got != 1 {
		t.Fatalf("got %d lines, want 1: add-on order must not matter", got)
	}
}

func TestDifferentConfigurationsStaySeparate(t *testing.T) {
	c := New(nil)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)
	c.Add("ca-phe-den", "Cà phê đen", 25000, &SizeOption{Name: "L", Extra: 5000}, nil, "", 1)
	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "less ice", 1)

	if got := len(c.Lines()); got != 3 {
		t.Fatalf("got %d lines, want 3 distinct configurations", got)
	}
}

func TestZeroQuantityRemovesLine(t *testing.T) {
	c := New(nil)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)
	id := c.Lines()[0].ID

	c.SetQuantity(id, 0)
	if got := len(c.Lines()); got != 0 {
		t.Fatalf("cart has %d lines after set-quantity-0, want empty", got)
	}

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)
	id = c.Lines()[0].ID
	c.SetQuantity(id, -2)
	if got := len(c.Lines()); got != 0 {
		t.Fatalf("cart has %d lines after negative quantity, want empty", got)
	}
}

func TestSetQuantityRecomputesTotal(t *testing.T) {
	c := New(nil)

	c.Add("tra-dao", "Trà đào", 35000, nil, nil, "", 1)
	id := c.Lines()[0].ID

	c.SetQuantity(id, 4)
	line := c.Lines()[0]
	if line.TotalPrice != 140000 {
		t.Errorf("total = %v, want 140000", line.TotalPrice)
	}
}

func TestTotals(t *testing.T) {
	c := New(nil)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 2)
	c.Add("tra-dao", "Trà đào", 35000, nil, nil, "", 1)

	if got := c.TotalPrice(); got != 85000 {
		t.Errorf("TotalPrice = %v, want 85000", got)
	}
	if got := c.TotalItems(); got != 3 {
		t.Errorf("TotalItems = %d, want 3", got)
	}
}

func TestMutationsNotifyPublisher(t *testing.T) {
	pub := &captured{}
	c := New(pub)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 1)
	if pub.calls != 1 || pub.totalItems != 1 {
		t.Fatalf("after add: calls=%d items=%d", pub.calls, pub.totalItems)
	}

	id := pub.lines[0].ID
	c.SetQuantity(id, 3)
	if pub.calls != 2 || pub.totalPrice != 75000 {
		t.Fatalf("after set-quantity: calls=%d price=%v", pub.calls, pub.totalPrice)
	}

	c.Clear()
	if pub.calls != 3 || len(pub.lines) != 0 {
		t.Fatalf("after clear: calls=%d lines=%d", pub.calls, len(pub.lines))
	}
}

func TestIgnoredAddDoesNotPublish(t *testing.T) {
	pub := &captured{}
	c := New(pub)

	c.Add("ca-phe-den", "Cà phê đen", 25000, nil, nil, "", 0)
	if pub.calls != 0 {
		t.Fatalf("zero-quantity add published %d times", pub.calls)
	}
}
