package catalog

import (
	"errors"
	"testing"
)

func testMenu() []Product {
	return []Product{
		{ID: "ca-phe-den", Name: "Cà phê đen", Category: "coffee", BasePrice: 25000, Available: true},
		{ID: "tra-dao", Name: "Trà đào", Category: "tea", BasePrice: 35000, Available: true},
		{ID: "banh-mi", Name: "Bánh mì", Category: "food", BasePrice: 25000, Available: false},
	}
}

func TestGet(t *testing.T) {
	c := New(testMenu())

	p, err := c.Get("ca-phe-den")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.BasePrice != 25000 {
		t.Errorf("price = %v", p.BasePrice)
	}

	if _, err := c.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing product error = %v, want ErrNotFound", err)
	}
}

func TestListIsSorted(t *testing.T) {
	c := New(testMenu())

	list := c.List()
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Category != "coffee" || list[1].Category != "food" || list[2].Category != "tea" {
		t.Errorf("order = %s, %s, %s", list[0].Category, list[1].Category, list[2].Category)
	}
}

func TestFilterSkipsUnavailable(t *testing.T) {
	c := New(testMenu())

	all := c.Filter("")
	if len(all) != 2 {
		t.Fatalf("available products = %d, want 2", len(all))
	}
	food := c.Filter("food")
	if len(food) != 0 {
		t.Fatalf("unavailable product leaked through filter: %v", food)
	}
}

func TestUpsert(t *testing.T) {
	c := New(testMenu())

	c.Upsert(Product{ID: "banh-mi", Name: "Bánh mì", Category: "food", BasePrice: 28000, Available: true})
	p, _ := c.Get("banh-mi")
	if p.BasePrice != 28000 || !p.Available {
		t.Errorf("upsert not applied: %+v", p)
	}
}
