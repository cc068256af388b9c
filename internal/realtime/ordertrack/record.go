package ordertrack

import (
	"fmt"
	"math/rand/v2"
	"time"

	"cafe-pos/internal/cart"
)

type Status string

const (
	StatusCreating  Status = "creating"
	StatusConfirmed Status = "confirmed"
	StatusPaid      Status = "paid"
	StatusPreparing Status = "preparing"
	StatusCompleted Status = "completed"
)

// Creator partitions orders by who is building them. At most one record per
// creator may sit in creating status at any time.
type Creator string

const (
	CreatorStaff    Creator = "staff"
	CreatorCustomer Creator = "customer"
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
	Phone string `json:"phone,omitempty"`
}

// Record is one tracked order session, from first cart line to completion.
type Record struct {
	ID            string        `json:"id"`
	OrderSystemID string        `json:"orderSystemId,omitempty"`
	CreatedBy     Creator       `json:"createdBy"`
	CreatedByName string        `json:"createdByName,omitempty"`
	Items         []cart.Line   `json:"items"`
	TotalItems    int           `json:"totalItems"`
	TotalPrice    float64       `json:"totalPrice"`
	Status        Status        `json:"status"`
	CustomerInfo  *CustomerInfo `json:"customerInfo,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	LastUpdated   time.Time     `json:"lastUpdated"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
}

// newOrderID is stable for one creation session: time-based with a random
// suffix so two stations creating at the same millisecond cannot collide.
func newOrderID(now time.Time) string {
	return fmt.Sprintf("ord-%d-%04d", now.UnixMilli(), rand.IntN(10000))
}

// Buckets is the order-board grouping. Confirmed records stay in the list
// but surface in no bucket; the board only shows these four sections.
type Buckets struct {
	Creating  []Record `json:"creating"`
	Paid      []Record `json:"paid"`
	Preparing []Record `json:"preparing"`
	Completed []Record `json:"completed"`
}

func GroupByStatus(records []Record) Buckets {
	var b Buckets
	for _, rec := range records {
		switch rec.Status {
		case StatusCreating:
			b.Creating = append(b.Creating, rec)
		case StatusPaid:
			b.Paid = append(b.Paid, rec)
		case StatusPreparing:
			b.Preparing = append(b.Preparing, rec)
		case StatusCompleted:
			b.Completed = append(b.Completed, rec)
		}
	}
	return b
}
