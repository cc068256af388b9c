package ordertrack

import (
	"sync"
	"testing"
	"time"

	"cafe-pos/internal/cart"
	"cafe-pos/internal/realtime/notify"
	"cafe-pos/internal/realtime/store"
	"cafe-pos/internal/realtime/transport"
	"cafe-pos/pkg/logger"
)

type fixture struct {
	bus      *transport.Bus
	mirror   *store.FileStore
	notifier *notify.Notifier

	mu        sync.Mutex
	scheduled []func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mirror, err := store.NewFileStore(t.TempDir(), logger.Discard())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return &fixture{
		bus:      transport.NewBus(logger.Discard()),
		mirror:   mirror,
		notifier: notify.New(logger.Discard()),
	}
}

// service returns an ordertrack service whose retention timer is captured
// instead of armed, so tests fire the expiry themselves.
func (f *fixture) service(station string) *Service {
	svc := NewService(station, f.bus, f.mirror, f.notifier,
		time.Hour, 30*time.Second, logger.Discard())
	svc.schedule = func(d time.Duration, fn func()) {
		f.mu.Lock()
		f.scheduled = append(f.scheduled, fn)
		f.mu.Unlock()
	}
	return svc
}

func (f *fixture) fireScheduled(t *testing.T) {
	f.mu.Lock()
	fns := f.scheduled
	f.scheduled = nil
	f.mu.Unlock()
	if len(fns) == 0 {
		t.Fatal("no scheduled removal to fire")
	}
	for _, fn := range fns {
		fn()
	}
}

func lines(n int) []cart.Line {
	out := make([]cart.Line, n)
	for i := range out {
		out[i] = cart.Line{
			ID:         "line",
			ProductID:  "ca-phe-den",
			Name:       "Cà phê đen",
			BasePrice:  25000,
			Quantity:   i + 1,
			TotalPrice: 25000 * float64(i+1),
		}
	}
	return out
}

func TestEmptyCartIsNotTracked(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	if id := svc.SendOrderUpdate(nil, 0, 0, CreatorStaff); id != "" {
		t.Fatalf("empty update returned id %q", id)
	}
	if got := svc.List(); len(got) != 0 {
		t.Fatalf("list has %d records, want 0", len(got))
	}
}

func TestOneCreatingOrderPerCreator(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	// Three growing updates from the same creator collapse into one record.
	svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.SendOrderUpdate(lines(2), 75000, 3, CreatorStaff)
	svc.SendOrderUpdate(lines(3), 150000, 6, CreatorStaff)

	list := svc.List()
	if len(list) != 1 {
		t.Fatalf("list has %d records, want 1", len(list))
	}
	rec := list[0]
	if rec.CreatedBy != CreatorStaff || rec.Status != StatusCreating {
		t.Errorf("record = %s/%s, want staff/creating", rec.CreatedBy, rec.Status)
	}
	if len(rec.Items) != 3 || rec.TotalPrice != 150000 || rec.TotalItems != 6 {
		t.Errorf("record does not match the last call: %+v", rec)
	}
}

func TestDifferentCreatorsGetSeparateOrders(t *testing.T) {
	f := newFixture(t)
	staff := f.service("staff-pos")
	kiosk := f.service("kiosk")

	staff.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	kiosk.SendOrderUpdate(lines(1), 25000, 1, CreatorCustomer)

	list := staff.List()
	if len(list) != 2 {
		t.Fatalf("list has %d records, want 2", len(list))
	}
}

func TestStatusUpdatePreservesIdentity(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	id := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	if id == "" {
		t.Fatal("no id returned")
	}

	svc.UpdateOrderStatus(id, StatusPaid,
		WithPayment(PayCash, PaymentSuccess),
		WithOrderSystemID("POS-20260828-001"),
	)

	list := svc.List()
	if len(list) != 1 {
		t.Fatalf("list has %d records, want 1", len(list))
	}
	rec := list[0]
	if rec.ID != id {
		t.Errorf("id changed: %q -> %q", id, rec.ID)
	}
	if rec.Status != StatusPaid {
		t.Errorf("status = %s, want paid", rec.Status)
	}
	if rec.PaidAt == nil {
		t.Fatal("PaidAt not stamped")
	}
	if rec.PaidAt.Before(rec.Timestamp) {
		t.Errorf("PaidAt %v earlier than creation %v", rec.PaidAt, rec.Timestamp)
	}
	if rec.OrderSystemID != "POS-20260828-001" {
		t.Errorf("orderSystemId = %q", rec.OrderSystemID)
	}
}

func TestStatusMergeKeepsOmittedFields(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	id := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff,
		WithCustomerInfo(CustomerInfo{Name: "Linh", Table: "4"}))
	svc.UpdateOrderStatus(id, StatusPaid, WithPayment(PayQR, PaymentSuccess))
	svc.UpdateOrderStatus(id, StatusPreparing)

	rec := svc.List()[0]
	if rec.PaymentMethod != PayQR || rec.PaymentStatus != PaymentSuccess {
		t.Errorf("payment fields lost: %+v", rec)
	}
	if rec.CustomerInfo == nil || rec.CustomerInfo.Name != "Linh" {
		t.Errorf("customer info lost: %+v", rec.CustomerInfo)
	}
}

func TestCompletedRetentionAndExpiry(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	id := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.UpdateOrderStatus(id, StatusCompleted)

	// Still visible inside the grace window.
	list := svc.List()
	if len(list) != 1 || list[0].Status != StatusCompleted {
		t.Fatalf("completed order missing inside retention window: %+v", list)
	}

	f.fireScheduled(t)

	if got := svc.List(); len(got) != 0 {
		t.Fatalf("expired order still stored: %+v", got)
	}

	// The timer can fire again after another path already removed the
	// record; that must be a no-op.
	svc.expire(id)
}

func TestExpiryReReadsFreshState(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	first := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.UpdateOrderStatus(first, StatusCompleted)

	// A new session starts before the timer fires.
	second := svc.SendOrderUpdate(lines(2), 75000, 3, CreatorStaff)
	if second == first {
		t.Fatal("completed order was reused as the new creating session")
	}

	f.fireScheduled(t)

	list := svc.List()
	if len(list) != 1 || list[0].ID != second {
		t.Fatalf("expiry removed the wrong record: %+v", list)
	}
}

func TestRemoveOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	id := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.RemoveOrder(id)

	if got := svc.List(); len(got) != 0 {
		t.Fatalf("list has %d records after removal", len(got))
	}

	// Removing an absent id is silent.
	svc.RemoveOrder("ord-0-0000")
}

func TestMissingOrderStatusUpdateIsNoOp(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.UpdateOrderStatus("ord-0-0000", StatusPaid)

	rec := svc.List()[0]
	if rec.Status != StatusCreating {
		t.Fatalf("unrelated record mutated: %+v", rec)
	}
}

func TestTransitionsAreNotValidated(t *testing.T) {
	f := newFixture(t)
	svc := f.service("staff-pos")

	id := svc.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)
	svc.UpdateOrderStatus(id, StatusCompleted)
	// Backwards on purpose: the service accepts any transition.
	svc.UpdateOrderStatus(id, StatusPreparing)

	if got := svc.List()[0].Status; got != StatusPreparing {
		t.Fatalf("status = %s, want preparing", got)
	}
}

func TestSubscribeDeliversAndDedupes(t *testing.T) {
	f := newFixture(t)
	producer := f.service("staff-pos")
	consumer := f.service("order-board")

	var mu sync.Mutex
	var deliveries [][]Record
	stop, err := consumer.Subscribe(func(list []Record) {
		mu.Lock()
		deliveries = append(deliveries, list)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	producer.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)

	mu.Lock()
	count := len(deliveries)
	mu.Unlock()
	// Broadcast and store watch both fired for one logical change.
	if count != 1 {
		t.Fatalf("consumer saw %d deliveries, want 1", count)
	}
}

func TestSubscribeColdStart(t *testing.T) {
	f := newFixture(t)
	producer := f.service("staff-pos")
	producer.SendOrderUpdate(lines(1), 25000, 1, CreatorStaff)

	consumer := f.service("order-board")
	var got []Record
	stop, err := consumer.Subscribe(func(list []Record) { got = list })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if len(got) != 1 {
		t.Fatalf("cold start delivered %d records, want 1", len(got))
	}
}

func TestGroupByStatusBuckets(t *testing.T) {
	records := []Record{
		{ID: "a", Status: StatusCreating},
		{ID: "b", Status: StatusConfirmed},
		{ID: "c", Status: StatusPaid},
		{ID: "d", Status: StatusPreparing},
		{ID: "e", Status: StatusCompleted},
		{ID: "f", Status: StatusPaid},
	}

	b := GroupByStatus(records)
	if len(b.Creating) != 1 || len(b.Paid) != 2 || len(b.Preparing) != 1 || len(b.Completed) != 1 {
		t.Fatalf("buckets = %d/%d/%d/%d", len(b.Creating), len(b.Paid), len(b.Preparing), len(b.Completed))
	}
	// Confirmed stays in the list but surfaces in no bucket.
	total := len(b.Creating) + len(b.Paid) + len(b.Preparing) + len(b.Completed)
	if total != len(records)-1 {
		t.Fatalf("bucketed %d of %d records, want all but confirmed", total, len(records))
	}
}
