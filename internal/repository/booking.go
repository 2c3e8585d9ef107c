package repository

import (
	"context"
	"time"

	"busline/internal/domain"
)

// BookingRepository defines the persistence operations for bookings. All
// status mutations are compare-and-swap on the current status so that racing
// writers cannot both apply a transition.
type BookingRepository interface {
	// Create persists a new booking.
	Create(ctx context.Context, booking *domain.Booking) error

	// GetByID retrieves a booking by ID.
	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetByPaymentRef retrieves a booking by its payment provider reference.
	// Returns (nil, nil) when no booking carries the reference.
	GetByPaymentRef(ctx context.Context, ref string) (*domain.Booking, error)

	// UpdateStatusFrom moves a booking from one status to another in a
	// single conditional write. Returns ErrStaleStatus when the booking was
	// not in the expected status and ErrNotFound when it does not exist.
	UpdateStatusFrom(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error

	// ConfirmPayment atomically transitions a PENDING_PAYMENT booking to
	// CONFIRMED, binding the provider transaction ID and paid-at stamp.
	// Returns ErrStaleStatus when the booking already left PENDING_PAYMENT.
	ConfirmPayment(ctx context.Context, id, transactionID string, paidAt time.Time) error

	// ListExpiredPending returns PENDING_PAYMENT bookings whose expiry
	// window elapsed before the given cutoff, oldest first.
	ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error)
}
