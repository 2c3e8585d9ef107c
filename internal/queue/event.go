package queue

import "time"

// EventType identifies a booking lifecycle event.
type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingConfirmed EventType = "booking.confirmed"
	EventBookingCancelled EventType = "booking.cancelled"
	EventBookingExpired   EventType = "booking.expired"
)

// BookingEvent is published to the broker on every booking lifecycle
// transition. Downstream consumers (email, ticket rendering) are external
// collaborators; the core only emits.
type BookingEvent struct {
	Type       EventType `json:"type"`
	BookingID  string    `json:"booking_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	PaymentRef string    `json:"payment_ref,omitempty"`
	SeatCount  int       `json:"seat_count"`
	TotalPrice float64   `json:"total_price"`
	OccurredAt time.Time `json:"occurred_at"`
}
