// Package api exposes the POS over HTTP for the staff register page and
// bridges the two sync subscriptions to display pages over websockets.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cafe-pos/internal/catalog"
	"cafe-pos/internal/checkout"
	"cafe-pos/internal/realtime/display"
	"cafe-pos/internal/realtime/ordertrack"
	"cafe-pos/pkg/logger"
)

var ErrServerClosed = errors.New("server closed")

const shutdownWait = 10 * time.Second

type Server struct {
	mux      *http.ServeMux
	srv      *http.Server
	port     int
	mylog    logger.Logger
	catalog  *catalog.Catalog
	checkout *checkout.Service
	displays *display.Service
	orders   *ordertrack.Service
	mu       sync.Mutex
}

func NewServer(port int, cat *catalog.Catalog, co *checkout.Service, displaySvc *display.Service, orderSvc *ordertrack.Service, mylog logger.Logger) *Server {
	return &Server{
		mux:      http.NewServeMux(),
		port:     port,
		mylog:    mylog,
		catalog:  cat,
		checkout: co,
		displays: displaySvc,
		orders:   orderSvc,
	}
}

// Run configures routes and listens until ctx is cancelled or the listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	s.configure()

	s.mu.Lock()
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.mux,
	}
	s.mu.Unlock()

	s.mylog.Action("server_started").With("port", s.port).Info("POS server is running")

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		} else {
			errCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")

	if s.srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownWait)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
			return fmt.Errorf("http server shutdown: %w", err)
		}
	}

	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

func (s *Server) configure() {
	s.mux.Handle("GET /menu", s.handleMenu())
	s.mux.Handle("POST /cart/items", s.handleAddItem())
	s.mux.Handle("PATCH /cart/items/{id}", s.handleSetQuantity())
	s.mux.Handle("DELETE /cart/items/{id}", s.handleRemoveItem())
	s.mux.Handle("POST /cart/clear", s.handleClearCart())
	s.mux.Handle("GET /cart", s.handleGetCart())

	s.mux.Handle("POST /checkout/confirm", s.handleConfirm())
	s.mux.Handle("POST /checkout/pay", s.handlePay())
	s.mux.Handle("POST /checkout/prepare", s.handlePrepare())
	s.mux.Handle("POST /checkout/complete", s.handleComplete())
	s.mux.Handle("POST /checkout/cancel", s.handleCancel())

	s.mux.Handle("GET /orders", s.handleOrders())

	s.mux.Handle("GET /ws/display", s.handleDisplaySocket())
	s.mux.Handle("GET /ws/orders", s.handleOrdersSocket())
}
