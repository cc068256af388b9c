// Package display mirrors the actively edited cart to the customer display.
//
// Every send is a full snapshot that replaces the previous one. Delivery
// fans out over three redundant channels (broadcast, durable mirror,
// same-station notify); subscribers hear the same logical update up to
// three times plus once per poll tick and must dedupe, which Subscribe does
// by content hash.
package display

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"cafe-pos/internal/cart"
	"cafe-pos/internal/realtime/notify"
	"cafe-pos/internal/realtime/store"
	"cafe-pos/internal/realtime/transport"
	"cafe-pos/pkg/logger"
)

const MsgCartUpdate = "cart_update"

type Status string

const (
	StatusCreating  Status = "creating"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusCompleted Status = "completed"
)

type PaymentMethod string

const (
	PayCash PaymentMethod = "cash"
	PayCard PaymentMethod = "card"
	PayQR   PaymentMethod = "qr"
)

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
)

type CustomerInfo struct {
	Name  string `json:"name,omitempty"`
	Table string `json:"table,omitempty"`
}

// Snapshot is the full cart state shown on the customer display.
type Snapshot struct {
	Items         []cart.Line   `json:"items"`
	TotalItems    int           `json:"totalItems"`
	TotalPrice    float64       `json:"totalPrice"`
	Status        Status        `json:"status"`
	CustomerInfo  *CustomerInfo `json:"customerInfo,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SendOption sets the optional snapshot fields.
type SendOption func(*Snapshot)

func WithCustomerInfo(info CustomerInfo) SendOption {
	return func(s *Snapshot) { s.CustomerInfo = &info }
}

func WithPayment(method PaymentMethod, status PaymentStatus) SendOption {
	return func(s *Snapshot) {
		s.PaymentMethod = method
		s.PaymentStatus = status
	}
}

// Service publishes snapshots for one producer station and builds
// subscriptions for observer stations.
type Service struct {
	station      string
	handle       transport.Handle
	mirror       store.Store
	notifier     *notify.Notifier
	pollInterval time.Duration
	mylog        logger.Logger
}

func NewService(station string, tr transport.Transport, mirror store.Store, notifier *notify.Notifier, pollInterval time.Duration, mylog logger.Logger) *Service {
	mylog = mylog.With("station", station)

	// Transport failure is survivable: the mirror write and the poll loop
	// still deliver.
	handle, err := tr.Open(transport.TopicCartDisplay, station)
	if err != nil {
		mylog.Action("display_channel_unavailable").Warn(err.Error())
		handle = nil
	}

	return &Service{
		station:      station,
		handle:       handle,
		mirror:       mirror,
		notifier:     notifier,
		pollInterval: pollInterval,
		mylog:        mylog,
	}
}

// Close releases the broadcast channel. Active subscriptions keep their
// store and notifier paths.
func (s *Service) Close() error {
	if s.handle == nil {
		return nil
	}
	return s.handle.Close()
}

// Send publishes a fresh snapshot through all three channels. Each channel
// failure is isolated so the next one still runs; nothing propagates to the
// caller.
func (s *Service) Send(lines []cart.Line, totalPrice float64, totalItems int, status Status, opts ...SendOption) {
	snap := Snapshot{
		Items:      lines,
		TotalItems: totalItems,
		TotalPrice: totalPrice,
		Status:     status,
		Timestamp:  time.Now(),
	}
	for _, opt := range opts {
		opt(&snap)
	}
	if snap.Items == nil {
		snap.Items = []cart.Line{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.mylog.Action("display_marshal_failed").Error("Cannot serialize snapshot", err)
		return
	}

	s.broadcast(data)
	s.mirrorWrite(data)
	s.notifier.Emit(s.station, notify.EventDisplayUpdate, snap)
}

func (s *Service) broadcast(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.mylog.Action("display_broadcast_panic").Error("Broadcast failed", fmt.Errorf("%v", r))
		}
	}()
	if s.handle == nil {
		return
	}
	if err := s.handle.Publish(transport.Envelope{Type: MsgCartUpdate, Data: data, Origin: s.station}); err != nil {
		s.mylog.Action("display_broadcast_failed").Warn(err.Error())
	}
}

func (s *Service) mirrorWrite(data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.mylog.Action("display_mirror_panic").Error("Mirror write failed", fmt.Errorf("%v", r))
		}
	}()
	if err := s.mirror.Write(s.station, store.KeyCartSnapshot, data); err != nil {
		s.mylog.Action("display_mirror_failed").Warn(err.Error())
	}
}

// Subscribe delivers every distinct snapshot to cb exactly once, no matter
// how many channels carry it. The cold-start read runs before any listener
// attaches so a late-joining display shows the last published state. The
// returned stop func releases every listener and the poll ticker.
func (s *Service) Subscribe(cb func(Snapshot)) (func(), error) {
	sub := &subscription{cb: cb}

	if value, _, _ := s.mirror.Read(store.KeyCartSnapshot); value != nil {
		sub.deliverRaw(value, s.mylog)
	}

	var stops []func()

	if s.handle != nil {
		unsub, err := s.handle.Subscribe(func(env transport.Envelope) {
			if env.Type == MsgCartUpdate {
				sub.deliverRaw(env.Data, s.mylog)
			}
		})
		if err != nil {
			s.mylog.Action("display_subscribe_failed").Warn(err.Error())
		} else {
			stops = append(stops, unsub)
		}
	}

	unwatch, err := s.mirror.Watch(s.station, store.KeyCartSnapshot, func(value []byte) {
		sub.deliverRaw(value, s.mylog)
	})
	if err != nil {
		s.mylog.Action("display_watch_failed").Warn(err.Error())
	} else {
		stops = append(stops, unwatch)
	}

	unlisten, err := s.notifier.On(s.station, notify.EventDisplayUpdate, func(payload any) {
		if snap, ok := payload.(Snapshot); ok {
			sub.deliver(snap)
		}
	})
	if err != nil {
		s.mylog.Action("display_listen_failed").Warn(err.Error())
	} else {
		stops = append(stops, unlisten)
	}

	done := make(chan struct{})
	ticker := time.NewTicker(s.pollInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if value, _, _ := s.mirror.Read(store.KeyCartSnapshot); value != nil {
					sub.deliverRaw(value, s.mylog)
				}
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			for _, fn := range stops {
				fn()
			}
		})
	}
	return stop, nil
}

type subscription struct {
	mu       sync.Mutex
	lastHash [32]byte
	seen     bool
	cb       func(Snapshot)
}

func (s *subscription) deliverRaw(data []byte, mylog logger.Logger) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		mylog.Action("display_decode_failed").Warn(err.Error())
		return
	}
	s.deliver(snap)
}

func (s *subscription) deliver(snap Snapshot) {
	hash := contentHash(snap)

	s.mu.Lock()
	if s.seen && hash == s.lastHash {
		s.mu.Unlock()
		return
	}
	s.lastHash = hash
	s.seen = true
	s.mu.Unlock()

	s.cb(snap)
}

// contentHash ignores the publish timestamp: two sends of the same cart
// state are the same logical update even though each carries a fresh
// timestamp.
func contentHash(snap Snapshot) [32]byte {
	snap.Timestamp = time.Time{}
	data, _ := json.Marshal(snap)
	return sha256.Sum256(data)
}
