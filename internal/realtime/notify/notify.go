// Package notify is the same-station event dispatch. The broadcast
// transport and the store watchers are both cross-station only, so a
// consumer living in the same station as the producer would never hear
// about a write without this path.
package notify

import (
	"errors"
	"fmt"
	"sync"

	"cafe-pos/pkg/logger"
)

const (
	EventDisplayUpdate  = "displayDataUpdate"
	EventOrderTracking  = "orderTrackingUpdate"
	EventStockAlert     = "stockAlert"
	EventIngredientWarn = "ingredientAlert"
)

type Notifier struct {
	mu       sync.RWMutex
	nextID   int64
	handlers map[string]map[int64]*registration
	mylog    logger.Logger
}

type registration struct {
	station string
	handler func(payload any)
}

func New(mylog logger.Logger) *Notifier {
	return &Notifier{
		handlers: make(map[string]map[int64]*registration),
		mylog:    mylog,
	}
}

// On registers a handler for events emitted by the same station.
func (n *Notifier) On(station, name string, handler func(payload any)) (func(), error) {
	if handler == nil {
		return nil, errors.New("event handler cannot be nil")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	id := n.nextID
	key := station + "\x00" + name
	if n.handlers[key] == nil {
		n.handlers[key] = make(map[int64]*registration)
	}
	n.handlers[key][id] = &registration{station: station, handler: handler}
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers[key], id)
	}, nil
}

// Emit dispatches synchronously to every handler the station registered for
// the event. Handler panics are contained.
func (n *Notifier) Emit(station, name string, payload any) {
	key := station + "\x00" + name
	n.mu.RLock()
	regs := make([]*registration, 0, len(n.handlers[key]))
	for _, reg := range n.handlers[key] {
		regs = append(regs, reg)
	}
	n.mu.RUnlock()

	for _, reg := range regs {
		n.safeCall(reg.handler, payload)
	}
}

func (n *Notifier) safeCall(handler func(payload any), payload any) {
	defer func() {
		if r := recover(); r != nil {
			n.mylog.Action("notify_handler_panic").Error(
				"Event handler panicked", fmt.Errorf("%v", r))
		}
	}()
	handler(payload)
}
