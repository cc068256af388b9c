// Package ordertrack tracks every in-flight order for the order board.
//
// The durable mirror holds the full record list under one key; each change
// rewrites the list through a compare-and-swap loop, broadcasts the single
// changed record, and notifies the producing station. Completed orders stay
// visible for a grace window so observers can render the terminal state,
// then expire from the store.
package ordertrack

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"cafe-pos/internal/cart"
	"cafe-pos/internal/realtime/notify"
	"cafe-pos/internal/realtime/store"
	"cafe-pos/internal/realtime/transport"
	"cafe-pos/pkg/logger"
)

const (
	MsgOrderUpdated = "order_updated"
	MsgOrderRemoved = "order_removed"
)

const casAttempts = 3

type Service struct {
	station      string
	handle       transport.Handle
	mirror       store.Store
	notifier     *notify.Notifier
	pollInterval time.Duration
	retention    time.Duration
	mylog        logger.Logger

	// schedule defaults to time.AfterFunc; tests swap it to run the
	// expiry synchronously.
	schedule func(d time.Duration, fn func())
	now      func() time.Time
}

func NewService(station string, tr transport.Transport, mirror store.Store, notifier *notify.Notifier, pollInterval, retention time.Duration, mylog logger.Logger) *Service {
	mylog = mylog.With("station", station)

	handle, err := tr.Open(transport.TopicOrderTracking, station)
	if err != nil {
		mylog.Action("order_channel_unavailable").Warn(err.Error())
		handle = nil
	}

	return &Service{
		station:      station,
		handle:       handle,
		mirror:       mirror,
		notifier:     notifier,
		pollInterval: pollInterval,
		retention:    retention,
		mylog:        mylog,
		schedule: func(d time.Duration, fn func()) {
			time.AfterFunc(d, fn)
		},
		now: time.Now,
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

// UpdateOption sets optional fields on SendOrderUpdate.
type UpdateOption func(*updateParams)

type updateParams struct {
	creatorName  string
	customerInfo *CustomerInfo
	orderID      string
}

func WithCreatorName(name string) UpdateOption {
	return func(p *updateParams) { p.creatorName = name }
}

func WithCustomerInfo(info CustomerInfo) UpdateOption {
	return func(p *updateParams) { p.customerInfo = &info }
}

func WithOrderID(id string) UpdateOption {
	return func(p *updateParams) { p.orderID = id }
}

// SendOrderUpdate upserts the creator's in-progress order. An empty cart is
// not tracked. The match rule keeps at most one creating record per
// creator: an existing record matched by id, or failing that by the same
// creator still in creating status, is overwritten in place; otherwise a
// new record is appended. Returns the record id ("" when nothing was sent).
func (s *Service) SendOrderUpdate(lines []cart.Line, totalPrice float64, totalItems int, createdBy Creator, opts ...UpdateOption) string {
	if len(lines) == 0 {
		return ""
	}
	var params updateParams
	for _, opt := range opts {
		opt(&params)
	}

	now := s.now()
	var result Record

	list := s.mutateList(func(records []Record) []Record {
		idx := -1
		if params.orderID != "" {
			for i := range records {
				if records[i].ID == params.orderID {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			for i := range records {
				if records[i].CreatedBy == createdBy && records[i].Status == StatusCreating {
					idx = i
					break
				}
			}
		}

		if idx >= 0 {
			rec := &records[idx]
			rec.Items = lines
			rec.TotalItems = totalItems
			rec.TotalPrice = totalPrice
			rec.Status = StatusCreating
			rec.LastUpdated = now
			if params.creatorName != "" {
				rec.CreatedByName = params.creatorName
			}
			if params.customerInfo != nil {
				rec.CustomerInfo = params.customerInfo
			}
			result = *rec
			return records
		}

		id := params.orderID
		if id == "" {
			id = newOrderID(now)
		}
		result = Record{
			ID:            id,
			CreatedBy:     createdBy,
			CreatedByName: params.creatorName,
			Items:         lines,
			TotalItems:    totalItems,
			TotalPrice:    totalPrice,
			Status:        StatusCreating,
			CustomerInfo:  params.customerInfo,
			Timestamp:     now,
			LastUpdated:   now,
		}
		return append(records, result)
	})
	if list == nil {
		return ""
	}

	s.broadcast(MsgOrderUpdated, result)
	s.notifier.Emit(s.station, notify.EventOrderTracking, list)
	return result.ID
}

// StatusOption sets optional fields on UpdateOrderStatus. Omitted options
// keep the record's prior values.
type StatusOption func(*statusParams)

type statusParams struct {
	orderSystemID string
	payMethod     PaymentMethod
	payStatus     PaymentStatus
	customerInfo  *CustomerInfo
}

func WithOrderSystemID(id string) StatusOption {
	return func(p *statusParams) { p.orderSystemID = id }
}

func WithPayment(method PaymentMethod, status PaymentStatus) StatusOption {
	return func(p *statusParams) {
		p.payMethod = method
		p.payStatus = status
	}
}

func WithCustomer(info CustomerInfo) StatusOption {
	return func(p *statusParams) { p.customerInfo = &info }
}

// UpdateOrderStatus merges the new status into the record. Transition
// legality is not checked; call sites sequence forward by convention. A
// transition to completed schedules removal after the retention window.
func (s *Service) UpdateOrderStatus(orderID string, status Status, opts ...StatusOption) {
	var params statusParams
	for _, opt := range opts {
		opt(&params)
	}

	now := s.now()
	var result *Record

	list := s.mutateList(func(records []Record) []Record {
		for i := range records {
			if records[i].ID != orderID {
				continue
			}
			rec := &records[i]
			rec.Status = status
			rec.LastUpdated = now
			if params.orderSystemID != "" {
				rec.OrderSystemID = params.orderSystemID
			}
			if params.payMethod != "" {
				rec.PaymentMethod = params.payMethod
			}
			if params.payStatus != "" {
				rec.PaymentStatus = params.payStatus
			}
			if params.customerInfo != nil {
				rec.CustomerInfo = params.customerInfo
			}
			if status == StatusPaid && rec.PaidAt == nil {
				paidAt := now
				rec.PaidAt = &paidAt
			}
			copied := *rec
			result = &copied
			return records
		}
		return records
	})

	if result == nil {
		s.mylog.Action("order_status_missed").With("order_id", orderID).Warn("No such order; status update dropped")
		return
	}

	s.broadcast(MsgOrderUpdated, *result)
	s.notifier.Emit(s.station, notify.EventOrderTracking, list)

	if status == StatusCompleted {
		s.schedule(s.retention, func() { s.expire(orderID) })
	}
}

// RemoveOrder drops the record immediately; used by cancellation paths.
func (s *Service) RemoveOrder(orderID string) {
	s.remove(orderID, "order_removed")
}

// expire is the deferred removal of a completed record. It re-reads the
// store at fire time, so it cannot resurrect a record another path already
// deleted; removing an absent id is a no-op.
func (s *Service) expire(orderID string) {
	s.remove(orderID, "order_expired")
}

func (s *Service) remove(orderID, action string) {
	var removed *Record

	list := s.mutateList(func(records []Record) []Record {
		kept := records[:0]
		for _, rec := range records {
			if rec.ID == orderID {
				copied := rec
				removed = &copied
				continue
			}
			kept = append(kept, rec)
		}
		return kept
	})

	if removed == nil {
		return
	}

	s.mylog.Action(action).With("order_id", orderID).Debug("Order removed from tracking store")
	s.broadcast(MsgOrderRemoved, *removed)
	s.notifier.Emit(s.station, notify.EventOrderTracking, list)
}

// List returns the current stored record list.
func (s *Service) List() []Record {
	value, _, _ := s.mirror.Read(store.KeyOrderTracking)
	return decodeList(value, s.mylog)
}

// mutateList runs the read-modify-write cycle under compare-and-swap,
// retrying on conflict with a concurrent writer. After the attempts run out
// the write degrades to last-write-wins. Returns the written list, nil if
// even the blind write failed.
func (s *Service) mutateList(mutate func([]Record) []Record) []Record {
	var list []Record
	var data []byte

	for attempt := 0; attempt < casAttempts; attempt++ {
		value, version, _ := s.mirror.Read(store.KeyOrderTracking)
		list = mutate(decodeList(value, s.mylog))

		var err error
		data, err = json.Marshal(list)
		if err != nil {
			s.mylog.Action("order_marshal_failed").Error("Cannot serialize order list", err)
			return nil
		}

		err = s.mirror.CompareAndSwap(s.station, store.KeyOrderTracking, data, version)
		if err == nil {
			return list
		}
		if !errors.Is(err, store.ErrVersionConflict) {
			s.mylog.Action("order_mirror_failed").Warn(err.Error())
			return nil
		}
	}

	s.mylog.Action("order_cas_exhausted").Warn("Concurrent writers; falling back to overwrite")
	if err := s.mirror.Write(s.station, store.KeyOrderTracking, data); err != nil {
		s.mylog.Action("order_mirror_failed").Warn(err.Error())
		return nil
	}
	return list
}

func (s *Service) broadcast(msgType string, rec Record) {
	defer func() {
		if r := recover(); r != nil {
			s.mylog.Action("order_broadcast_panic").Error("Broadcast failed", fmt.Errorf("%v", r))
		}
	}()
	if s.handle == nil {
		return
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.mylog.Action("order_marshal_failed").Error("Cannot serialize record", err)
		return
	}
	if err := s.handle.Publish(transport.Envelope{Type: msgType, Data: data, Origin: s.station}); err != nil {
		s.mylog.Action("order_broadcast_failed").Warn(err.Error())
	}
}

// Subscribe delivers the full record list on every distinct change. The
// broadcast channel carries single records, so broadcast arrivals trigger a
// fresh store read instead of being applied directly; the poll ticker and
// the store watcher cover contexts the broadcast cannot reach.
func (s *Service) Subscribe(cb func([]Record)) (func(), error) {
	sub := &listSubscription{cb: cb}

	if value, _, _ := s.mirror.Read(store.KeyOrderTracking); value != nil {
		sub.deliver(decodeList(value, s.mylog))
	}

	var stops []func()

	if s.handle != nil {
		unsub, err := s.handle.Subscribe(func(env transport.Envelope) {
			if env.Type != MsgOrderUpdated && env.Type != MsgOrderRemoved {
				return
			}
			value, _, _ := s.mirror.Read(store.KeyOrderTracking)
			sub.deliver(decodeList(value, s.mylog))
		})
		if err != nil {
			s.mylog.Action("order_subscribe_failed").Warn(err.Error())
		} else {
			stops = append(stops, unsub)
		}
	}

	unwatch, err := s.mirror.Watch(s.station, store.KeyOrderTracking, func(value []byte) {
		sub.deliver(decodeList(value, s.mylog))
	})
	if err != nil {
		s.mylog.Action("order_watch_failed").Warn(err.Error())
	} else {
		stops = append(stops, unwatch)
	}

	unlisten, err := s.notifier.On(s.station, notify.EventOrderTracking, func(payload any) {
		if list, ok := payload.([]Record); ok {
			sub.deliver(list)
		}
	})
	if err != nil {
		s.mylog.Action("order_listen_failed").Warn(err.Error())
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
				value, _, _ := s.mirror.Read(store.KeyOrderTracking)
				if value != nil {
					sub.deliver(decodeList(value, s.mylog))
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

type listSubscription struct {
	mu       sync.Mutex
	lastHash [32]byte
	seen     bool
	cb       func([]Record)
}

func (s *listSubscription) deliver(list []Record) {
	if list == nil {
		list = []Record{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return
	}
	hash := sha256.Sum256(data)

	s.mu.Lock()
	if s.seen && hash == s.lastHash {
		s.mu.Unlock()
		return
	}
	s.lastHash = hash
	s.seen = true
	s.mu.Unlock()

	s.cb(list)
}

func decodeList(value []byte, mylog logger.Logger) []Record {
	if value == nil {
		return nil
	}
	var list []Record
	if err := json.Unmarshal(value, &list); err != nil {
		mylog.Action("order_decode_failed").Warn(err.Error())
		return nil
	}
	return list
}
