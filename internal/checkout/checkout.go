// Package checkout glues one producer station together: cart mutations flow
// to the display and order-tracking services, and the checkout calls walk
// the order through its lifecycle. Transition legality is not enforced
// here or below; the flow is forward-only by construction.
package checkout

import (
	"fmt"
	"sync"
	"time"

	"cafe-pos/internal/cart"
	"cafe-pos/internal/realtime/display"
	"cafe-pos/internal/realtime/ordertrack"
	"cafe-pos/internal/stock"
	"cafe-pos/pkg/logger"
)

// Producer implements cart.Publisher for one station. Every cart change
// refreshes the customer display and upserts the creator's creating-status
// order.
type Producer struct {
	display     *display.Service
	orders      *ordertrack.Service
	createdBy   ordertrack.Creator
	creatorName string
	mylog       logger.Logger

	mu      sync.Mutex
	orderID string
}

func NewProducer(displaySvc *display.Service, orderSvc *ordertrack.Service, createdBy ordertrack.Creator, creatorName string, mylog logger.Logger) *Producer {
	return &Producer{
		display:     displaySvc,
		orders:      orderSvc,
		createdBy:   createdBy,
		creatorName: creatorName,
		mylog:       mylog,
	}
}

func (p *Producer) CartChanged(lines []cart.Line, totalPrice float64, totalItems int) {
	p.display.Send(lines, totalPrice, totalItems, display.StatusCreating)

	p.mu.Lock()
	current := p.orderID
	p.mu.Unlock()

	opts := []ordertrack.UpdateOption{ordertrack.WithCreatorName(p.creatorName)}
	if current != "" {
		opts = append(opts, ordertrack.WithOrderID(current))
	}
	id := p.orders.SendOrderUpdate(lines, totalPrice, totalItems, p.createdBy, opts...)
	if id != "" {
		p.mu.Lock()
		p.orderID = id
		p.mu.Unlock()
	}
}

// OrderID is the id of the creation session in progress, "" before the
// first nonempty cart update.
func (p *Producer) OrderID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.orderID
}

// reset forgets the session so the next cart change opens a fresh order.
func (p *Producer) reset() {
	p.mu.Lock()
	p.orderID = ""
	p.mu.Unlock()
}

// Service sequences the order lifecycle for a producer station.
type Service struct {
	producer *Producer
	cart     *cart.Cart
	stock    *stock.Tracker
	mylog    logger.Logger

	mu  sync.Mutex
	seq int
}

func NewService(producer *Producer, c *cart.Cart, tracker *stock.Tracker, mylog logger.Logger) *Service {
	return &Service{
		producer: producer,
		cart:     c,
		stock:    tracker,
		mylog:    mylog,
	}
}

func (s *Service) Cart() *cart.Cart {
	return s.cart
}

// Confirm locks the cart in, assigns the order-system id, and shows the
// confirmed state on the display.
func (s *Service) Confirm(info ordertrack.CustomerInfo) (string, error) {
	orderID := s.producer.OrderID()
	if orderID == "" {
		return "", fmt.Errorf("nothing to confirm: cart has no tracked order")
	}

	systemID := s.nextSystemID()
	s.producer.orders.UpdateOrderStatus(orderID, ordertrack.StatusConfirmed,
		ordertrack.WithOrderSystemID(systemID),
		ordertrack.WithCustomer(info),
	)
	s.producer.display.Send(s.cart.Lines(), s.cart.TotalPrice(), s.cart.TotalItems(),
		display.StatusConfirmed,
		display.WithCustomerInfo(display.CustomerInfo{Name: info.Name, Table: info.Table}),
	)

	s.mylog.Action("order_confirmed").With("order_id", orderID, "system_id", systemID).Info("Order confirmed")
	return systemID, nil
}

// Pay records the payment, consumes stock for every line, and shows the
// paid state.
func (s *Service) Pay(method ordertrack.PaymentMethod) error {
	orderID := s.producer.OrderID()
	if orderID == "" {
		return fmt.Errorf("nothing to pay: cart has no tracked order")
	}

	s.producer.orders.UpdateOrderStatus(orderID, ordertrack.StatusPaid,
		ordertrack.WithPayment(method, ordertrack.PaymentSuccess),
	)
	s.producer.display.Send(s.cart.Lines(), s.cart.TotalPrice(), s.cart.TotalItems(),
		display.StatusPaid,
		display.WithPayment(display.PaymentMethod(method), display.PaymentSuccess),
	)

	if s.stock != nil {
		for _, line := range s.cart.Lines() {
			s.stock.Consume(line.ProductID, float64(line.Quantity))
		}
	}

	s.mylog.Action("order_paid").With("order_id", orderID, "method", string(method)).Info("Payment recorded")
	return nil
}

// StartPreparing moves the order onto the kitchen section of the board.
func (s *Service) StartPreparing() error {
	orderID := s.producer.OrderID()
	if orderID == "" {
		return fmt.Errorf("no tracked order to prepare")
	}
	s.producer.orders.UpdateOrderStatus(orderID, ordertrack.StatusPreparing)
	return nil
}

// Complete ends the session: the record enters its retention window, the
// display shows the terminal state, and the cart resets for the next
// customer.
func (s *Service) Complete() error {
	orderID := s.producer.OrderID()
	if orderID == "" {
		return fmt.Errorf("no tracked order to complete")
	}

	s.producer.orders.UpdateOrderStatus(orderID, ordertrack.StatusCompleted)
	s.producer.display.Send(s.cart.Lines(), s.cart.TotalPrice(), s.cart.TotalItems(),
		display.StatusCompleted)

	s.producer.reset()
	s.cart.Clear()
	s.mylog.Action("order_completed").With("order_id", orderID).Info("Order completed")
	return nil
}

// Cancel drops the tracked order and empties the cart.
func (s *Service) Cancel() error {
	orderID := s.producer.OrderID()
	if orderID != "" {
		s.producer.orders.RemoveOrder(orderID)
	}
	s.producer.reset()
	s.cart.Clear()
	s.mylog.Action("order_cancelled").With("order_id", orderID).Info("Order cancelled")
	return nil
}

func (s *Service) nextSystemID() string {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("POS-%s-%03d", time.Now().Format("20060102"), seq)
}
