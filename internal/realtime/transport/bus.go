package transport

import (
	"fmt"
	"sync"

	"cafe-pos/pkg/logger"
)

// Bus is the in-process Transport. All stations running in one process
// share a single Bus; handles scope publishes and subscriptions to a topic
// and a station.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]map[int64]*busSub
	nextID int64
	closed bool
	mylog  logger.Logger
}

type busSub struct {
	station string
	handler func(Envelope)
}

func NewBus(mylog logger.Logger) *Bus {
	return &Bus{
		topics: make(map[string]map[int64]*busSub),
		mylog:  mylog,
	}
}

func (b *Bus) Open(topic, station string) (Handle, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return &busHandle{bus: b, topic: topic, station: station}, nil
}

// Close stops the bus. Existing handles keep working for unsubscribe only.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	b.topics = make(map[string]map[int64]*busSub)
	return nil
}

func (b *Bus) subscribe(topic, station string, handler func(Envelope)) (func(), error) {
	if handler == nil {
		return nil, ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	b.nextID++
	id := b.nextID
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[int64]*busSub)
	}
	b.topics[topic][id] = &busSub{station: station, handler: handler}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.topics[topic], id)
	}, nil
}

func (b *Bus) dispatch(topic string, env Envelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrClosed
	}
	subs := make([]*busSub, 0, len(b.topics[topic]))
	for _, sub := range b.topics[topic] {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		// Cross-station only: the publisher's own station is skipped.
		if sub.station == env.Origin {
			continue
		}
		b.safeCall(sub.handler, env)
	}
	return nil
}

func (b *Bus) safeCall(handler func(Envelope), env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			b.mylog.Action("bus_handler_panic").Error(
				"Subscriber handler panicked", fmt.Errorf("%v", r))
		}
	}()
	handler(env)
}

type busHandle struct {
	bus     *Bus
	topic   string
	station string

	mu     sync.Mutex
	unsubs []func()
}

func (h *busHandle) Publish(env Envelope) error {
	if env.Origin == "" {
		env.Origin = h.station
	}
	return h.bus.dispatch(h.topic, env)
}

func (h *busHandle) Subscribe(handler func(Envelope)) (func(), error) {
	unsub, err := h.bus.subscribe(h.topic, h.station, handler)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.unsubs = append(h.unsubs, unsub)
	h.mu.Unlock()
	return unsub, nil
}

func (h *busHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, unsub := range h.unsubs {
		unsub()
	}
	h.unsubs = nil
	return nil
}
