// Package board holds the observer-side view state: the customer display
// mirrors the cart, the order board sections in-flight orders by status.
package board

import (
	"fmt"
	"sync"
	"time"

	"cafe-pos/internal/realtime/display"
	"cafe-pos/internal/realtime/ordertrack"
)

// CustomerDisplay subscribes once on mount and keeps the latest snapshot.
type CustomerDisplay struct {
	mu     sync.RWMutex
	latest *display.Snapshot
	stop   func()
}

func NewCustomerDisplay(svc *display.Service) (*CustomerDisplay, error) {
	d := &CustomerDisplay{}
	stop, err := svc.Subscribe(func(snap display.Snapshot) {
		d.mu.Lock()
		d.latest = &snap
		d.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	d.stop = stop
	return d, nil
}

// Current returns the latest snapshot, nil before the first delivery.
func (d *CustomerDisplay) Current() *display.Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.latest
}

func (d *CustomerDisplay) Close() {
	d.stop()
}

// OrderBoard keeps the latest order list and groups it for sectioned
// display.
type OrderBoard struct {
	mu     sync.RWMutex
	latest []ordertrack.Record
	stop   func()
}

func NewOrderBoard(svc *ordertrack.Service) (*OrderBoard, error) {
	b := &OrderBoard{}
	stop, err := svc.Subscribe(func(list []ordertrack.Record) {
		b.mu.Lock()
		b.latest = list
		b.mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	b.stop = stop
	return b, nil
}

func (b *OrderBoard) Orders() []ordertrack.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

func (b *OrderBoard) Buckets() ordertrack.Buckets {
	return ordertrack.GroupByStatus(b.Orders())
}

func (b *OrderBoard) Close() {
	b.stop()
}

// RelativeTime renders an order age the way the board shows it: "just now"
// under a minute, minutes up to an hour, clock time beyond that.
func RelativeTime(t, now time.Time) string {
	elapsed := now.Sub(t)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		minutes := int(elapsed.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	default:
		return t.Format("15:04")
	}
}
