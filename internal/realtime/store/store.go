// Package store is the durable mirror behind the broadcast transport. It is
// the catch-up source for late-joining observers and the target of the
// consumers' polling backstop.
//
// Reads never fail on missing or corrupt data: both come back as (nil, 0,
// nil), meaning "no data yet". Writes carry the writing station so watch
// events can be delivered cross-station only, matching storage-event
// semantics.
package store

import (
	"errors"
	"fmt"
	"sync"

	"cafe-pos/pkg/logger"
)

const (
	// KeyCartSnapshot holds the serialized display snapshot.
	KeyCartSnapshot = "cart_snapshot"
	// KeyOrderTracking holds the serialized order record list.
	KeyOrderTracking = "order_tracking_list"
)

// ErrVersionConflict reports a CompareAndSwap against a stale version.
var ErrVersionConflict = errors.New("store version conflict")

// Version numbers every value; 0 means the key has never been written.
type Version int64

type Store interface {
	// Read returns the current value and its version. A missing key or an
	// unreadable value yields (nil, 0, nil).
	Read(key string) ([]byte, Version, error)

	// Write overwrites the key unconditionally.
	Write(station, key string, value []byte) error

	// CompareAndSwap writes only if the stored version still equals expect.
	CompareAndSwap(station, key string, value []byte, expect Version) error

	// Watch registers a handler for writes to key made by other stations.
	Watch(station, key string, handler func(value []byte)) (func(), error)

	Close() error
}

// watcherSet is the in-process change-event registry shared by both
// backends. Cross-process visibility rides on the consumers' polling.
type watcherSet struct {
	mu     sync.RWMutex
	nextID int64
	byKey  map[string]map[int64]*watcher
	mylog  logger.Logger
}

type watcher struct {
	station string
	handler func(value []byte)
}

func newWatcherSet(mylog logger.Logger) *watcherSet {
	return &watcherSet{
		byKey: make(map[string]map[int64]*watcher),
		mylog: mylog,
	}
}

func (w *watcherSet) add(station, key string, handler func(value []byte)) (func(), error) {
	if handler == nil {
		return nil, errors.New("watch handler cannot be nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	id := w.nextID
	if w.byKey[key] == nil {
		w.byKey[key] = make(map[int64]*watcher)
	}
	w.byKey[key][id] = &watcher{station: station, handler: handler}
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.byKey[key], id)
	}, nil
}

// notify fires every watcher on key except those owned by the writing
// station.
func (w *watcherSet) notify(station, key string, value []byte) {
	w.mu.RLock()
	watchers := make([]*watcher, 0, len(w.byKey[key]))
	for _, entry := range w.byKey[key] {
		watchers = append(watchers, entry)
	}
	w.mu.RUnlock()

	for _, entry := range watchers {
		if entry.station == station {
			continue
		}
		w.safeCall(entry.handler, value)
	}
}

func (w *watcherSet) safeCall(handler func(value []byte), value []byte) {
	defer func() {
		if r := recover(); r != nil {
			w.mylog.Action("store_watcher_panic").Error(
				"Watch handler panicked", fmt.Errorf("%v", r))
		}
	}()
	handler(value)
}
