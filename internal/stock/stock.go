// Package stock tracks product and ingredient quantities and raises alerts
// through the station notifier when a counter falls to its threshold. The
// sync core never reads these records; dashboards cross-reference them at
// the UI layer only.
package stock

import (
	"sync"
	"time"

	"cafe-pos/internal/realtime/notify"
	"cafe-pos/pkg/logger"
)

type Kind string

const (
	KindProduct    Kind = "product"
	KindIngredient Kind = "ingredient"
)

type Item struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      Kind    `json:"kind"`
	Unit      string  `json:"unit,omitempty"`
	Quantity  float64 `json:"quantity"`
	Threshold float64 `json:"threshold"`
}

// Alert is the payload of stockAlert / ingredientAlert events.
type Alert struct {
	Item      Item      `json:"item"`
	Remaining float64   `json:"remaining"`
	At        time.Time `json:"at"`
}

type Transaction struct {
	ItemID string    `json:"itemId"`
	Delta  float64   `json:"delta"`
	At     time.Time `json:"at"`
}

type Tracker struct {
	station  string
	notifier *notify.Notifier
	mylog    logger.Logger

	mu    sync.Mutex
	items map[string]*Item
	log   []Transaction
}

func NewTracker(station string, notifier *notify.Notifier, items []Item, mylog logger.Logger) *Tracker {
	byID := make(map[string]*Item, len(items))
	for i := range items {
		item := items[i]
		byID[item.ID] = &item
	}
	return &Tracker{
		station:  station,
		notifier: notifier,
		items:    byID,
		mylog:    mylog,
	}
}

// Consume decrements the counter and alerts once the level reaches the
// threshold. Unknown ids are logged and ignored.
func (t *Tracker) Consume(itemID string, qty float64) {
	t.adjust(itemID, -qty)
}

// Restock increments the counter.
func (t *Tracker) Restock(itemID string, qty float64) {
	t.adjust(itemID, qty)
}

func (t *Tracker) adjust(itemID string, delta float64) {
	t.mu.Lock()
	item, ok := t.items[itemID]
	if !ok {
		t.mu.Unlock()
		t.mylog.Action("stock_unknown_item").With("item_id", itemID).Warn("Adjustment for untracked item")
		return
	}
	item.Quantity += delta
	if item.Quantity < 0 {
		item.Quantity = 0
	}
	now := time.Now()
	t.log = append(t.log, Transaction{ItemID: itemID, Delta: delta, At: now})
	snapshot := *item
	t.mu.Unlock()

	if delta < 0 && snapshot.Quantity <= snapshot.Threshold {
		event := notify.EventStockAlert
		if snapshot.Kind == KindIngredient {
			event = notify.EventIngredientWarn
		}
		t.notifier.Emit(t.station, event, Alert{Item: snapshot, Remaining: snapshot.Quantity, At: now})
	}
}

func (t *Tracker) Level(itemID string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[itemID]
	if !ok {
		return 0, false
	}
	return item.Quantity, true
}

func (t *Tracker) Transactions() []Transaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transaction, len(t.log))
	copy(out, t.log)
	return out
}
