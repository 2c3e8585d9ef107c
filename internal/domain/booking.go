package domain

import "time"

// BookingStatus represents the current lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
	BookingStatusCompleted      BookingStatus = "COMPLETED"
)

// ValidStatus reports whether s is a known booking status.
func ValidStatus(s BookingStatus) bool {
	switch s {
	case BookingStatusPendingPayment, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// BookingLeg references one trip of a booking together with the immutable
// snapshot taken at creation time. Seat labels are advisory display data;
// only their count affects the ledger.
type BookingLeg struct {
	TripID     string
	Snapshot   TripSnapshot
	SeatLabels []string
}

// Passenger holds the ticket-holder details captured at booking time. The
// details are stored for ticketing and never validated against an identity
// system.
type Passenger struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Booking is the reservation aggregate. A booking always has an outbound leg
// and optionally a return leg. PaymentRef is the opaque correlation token
// issued by the payment provider, set at most once.
type Booking struct {
	ID            string
	UserID        string
	Outbound      BookingLeg
	Return        *BookingLeg
	Passengers    []Passenger
	SeatCount     int
	TotalPrice    float64
	PaymentRef    string
	TransactionID string
	Status        BookingStatus
	CreatedAt     time.Time
	ExpiresAt     time.Time
	PaidAt        time.Time
	CancelledAt   time.Time
}

// Legs returns the non-nil legs of the booking, outbound first.
func (b *Booking) Legs() []BookingLeg {
	legs := []BookingLeg{b.Outbound}
	if b.Return != nil {
		legs = append(legs, *b.Return)
	}
	return legs
}

// allowedTransitions is the booking state machine. Anything not listed here
// (and not a CANCELLED->COMPLETED no-op, which callers handle) is invalid.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPendingPayment: {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed:      {BookingStatusCancelled, BookingStatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReleasesCapacity reports whether entering the cancelled state from the
// given status must return held seats to the ledger. Only transitions out of
// capacity-consuming states release; a completed booking never re-credits.
func ReleasesCapacity(from BookingStatus) bool {
	return from == BookingStatusPendingPayment || from == BookingStatusConfirmed
}
