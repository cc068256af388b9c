package stock

import (
	"testing"

	"cafe-pos/internal/realtime/notify"
	"cafe-pos/pkg/logger"
)

func newTracker(items ...Item) (*Tracker, *notify.Notifier) {
	notifier := notify.New(logger.Discard())
	return NewTracker("staff-pos", notifier, items, logger.Discard()), notifier
}

func TestConsumeBelowThresholdAlerts(t *testing.T) {
	tracker, notifier := newTracker(Item{
		ID: "banh-mi", Name: "Bánh mì", Kind: KindProduct, Quantity: 6, Threshold: 5,
	})

	var alerts []Alert
	off, _ := notifier.On("staff-pos", notify.EventStockAlert, func(payload any) {
		if a, ok := payload.(Alert); ok {
			alerts = append(alerts, a)
		}
	})
	defer off()

	tracker.Consume("banh-mi", 1) // 5 == threshold, alerts
	tracker.Consume("banh-mi", 1) // still at/below, alerts again

	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].Remaining != 5 || alerts[1].Remaining != 4 {
		t.Errorf("remaining = %v, %v", alerts[0].Remaining, alerts[1].Remaining)
	}
}

func TestIngredientAlertUsesOwnEvent(t *testing.T) {
	tracker, notifier := newTracker(Item{
		ID: "robusta-beans", Name: "Robusta beans", Kind: KindIngredient, Unit: "g",
		Quantity: 600, Threshold: 500,
	})

	var stockAlerts, ingredientAlerts int
	offStock, _ := notifier.On("staff-pos", notify.EventStockAlert, func(any) { stockAlerts++ })
	defer offStock()
	offIng, _ := notifier.On("staff-pos", notify.EventIngredientWarn, func(any) { ingredientAlerts++ })
	defer offIng()

	tracker.Consume("robusta-beans", 200)

	if stockAlerts != 0 || ingredientAlerts != 1 {
		t.Fatalf("alerts = stock:%d ingredient:%d", stockAlerts, ingredientAlerts)
	}
}

func TestRestockDoesNotAlert(t *testing.T) {
	tracker, notifier := newTracker(Item{
		ID: "banh-mi", Name: "Bánh mì", Kind: KindProduct, Quantity: 2, Threshold: 5,
	})

	alerts := 0
	off, _ := notifier.On("staff-pos", notify.EventStockAlert, func(any) { alerts++ })
	defer off()

	tracker.Restock("banh-mi", 50)
	if alerts != 0 {
		t.Fatalf("restock raised %d alerts", alerts)
	}
	if level, _ := tracker.Level("banh-mi"); level != 52 {
		t.Errorf("level = %v, want 52", level)
	}
}

func TestQuantityFloorsAtZero(t *testing.T) {
	tracker, _ := newTracker(Item{
		ID: "banh-mi", Name: "Bánh mì", Kind: KindProduct, Quantity: 1, Threshold: 0,
	})

	tracker.Consume("banh-mi", 10)
	if level, _ := tracker.Level("banh-mi"); level != 0 {
		t.Errorf("level = %v, want 0", level)
	}
}

func TestTransactionsAreLogged(t *testing.T) {
	tracker, _ := newTracker(Item{
		ID: "banh-mi", Name: "Bánh mì", Kind: KindProduct, Quantity: 10, Threshold: 0,
	})

	tracker.Consume("banh-mi", 2)
	tracker.Restock("banh-mi", 5)
	tracker.Consume("unknown-item", 1)

	log := tracker.Transactions()
	if len(log) != 2 {
		t.Fatalf("log has %d entries, want 2", len(log))
	}
	if log[0].Delta != -2 || log[1].Delta != 5 {
		t.Errorf("deltas = %v, %v", log[0].Delta, log[1].Delta)
	}
}
