package api

import (
	"net/http"

	"cafe-pos/internal/realtime/display"
	"cafe-pos/internal/realtime/ordertrack"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Display pages are served from the same origin as the POS.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleDisplaySocket streams deduplicated cart snapshots to a customer
// display page. One subscription per socket, released on disconnect.
func (s *Server) handleDisplaySocket() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.mylog.Action("ws_upgrade_failed").Error("Display socket upgrade failed", err)
			return
		}

		updates := make(chan display.Snapshot, 16)
		stop, err := s.displays.Subscribe(func(snap display.Snapshot) {
			select {
			case updates <- snap:
			default:
				// Slow page: skip this update, a newer one follows.
			}
		})
		if err != nil {
			s.mylog.Action("ws_subscribe_failed").Error("Display subscription failed", err)
			conn.Close()
			return
		}

		go func() {
			defer stop()
			defer conn.Close()
			gone := watchPeer(conn)
			for {
				select {
				case <-gone:
					return
				case snap := <-updates:
					if err := conn.WriteJSON(snap); err != nil {
						s.mylog.Action("ws_write_failed").Warn(err.Error())
						return
					}
				}
			}
		}()
	})
}

// handleOrdersSocket streams the grouped order list to an order-board page.
func (s *Server) handleOrdersSocket() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.mylog.Action("ws_upgrade_failed").Error("Orders socket upgrade failed", err)
			return
		}

		updates := make(chan ordertrack.Buckets, 16)
		stop, err := s.orders.Subscribe(func(list []ordertrack.Record) {
			select {
			case updates <- ordertrack.GroupByStatus(list):
			default:
			}
		})
		if err != nil {
			s.mylog.Action("ws_subscribe_failed").Error("Orders subscription failed", err)
			conn.Close()
			return
		}

		go func() {
			defer stop()
			defer conn.Close()
			gone := watchPeer(conn)
			for {
				select {
				case <-gone:
					return
				case buckets := <-updates:
					if err := conn.WriteJSON(buckets); err != nil {
						s.mylog.Action("ws_write_failed").Warn(err.Error())
						return
					}
				}
			}
		}()
	})
}

// watchPeer drains incoming frames and closes the returned channel when the
// peer disconnects.
func watchPeer(conn *websocket.Conn) <-chan struct{} {
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return gone
}
