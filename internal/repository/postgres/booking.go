package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"busline/internal/domain"
	"busline/internal/repository"
)

// BookingRepository is a PostgreSQL implementation of repository.BookingRepository.
type BookingRepository struct {
	q Querier
}

// NewBookingRepository creates a new PostgreSQL booking repository.
func NewBookingRepository(db *sql.DB) *BookingRepository {
	return &BookingRepository{q: db}
}

// NewBookingRepositoryWithTx creates a booking repository using a transaction.
func NewBookingRepositoryWithTx(tx *sql.Tx) *BookingRepository {
	return &BookingRepository{q: tx}
}

const bookingColumns = `id, user_id, outbound_trip_id, outbound_snapshot, outbound_seats, return_trip_id, return_snapshot, return_seats, passengers, seat_count, total_price, payment_ref, transaction_id, status, created_at, expires_at, paid_at, cancelled_at`

// legRecord is the JSON persistence shape for a booking leg's snapshot and
// seat labels.
type legRecord struct {
	snapshotJSON []byte
	seatsJSON    []byte
}

func encodeLeg(leg *domain.BookingLeg) (legRecord, error) {
	var rec legRecord
	if leg == nil {
		return rec, nil
	}
	var err error
	if rec.snapshotJSON, err = json.Marshal(leg.Snapshot); err != nil {
		return rec, fmt.Errorf("marshal snapshot: %w", err)
	}
	seats := leg.SeatLabels
	if seats == nil {
		seats = []string{}
	}
	if rec.seatsJSON, err = json.Marshal(seats); err != nil {
		return rec, fmt.Errorf("marshal seat labels: %w", err)
	}
	return rec, nil
}

// Create persists a new booking with its leg snapshots.
func (r *BookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	outbound, err := encodeLeg(&booking.Outbound)
	if err != nil {
		return err
	}
	ret, err := encodeLeg(booking.Return)
	if err != nil {
		return err
	}

	passengers := booking.Passengers
	if passengers == nil {
		passengers = []domain.Passenger{}
	}
	passengersJSON, err := json.Marshal(passengers)
	if err != nil {
		return fmt.Errorf("marshal passengers: %w", err)
	}

	var returnTripID sql.NullString
	var returnSnapshot, returnSeats []byte
	if booking.Return != nil {
		returnTripID = sql.NullString{String: booking.Return.TripID, Valid: true}
		returnSnapshot = ret.snapshotJSON
		returnSeats = ret.seatsJSON
	}

	var paymentRef sql.NullString
	if booking.PaymentRef != "" {
		paymentRef = sql.NullString{String: booking.PaymentRef, Valid: true}
	}
	var transactionID sql.NullString
	if booking.TransactionID != "" {
		transactionID = sql.NullString{String: booking.TransactionID, Valid: true}
	}
	var paidAt, cancelledAt sql.NullTime
	if !booking.PaidAt.IsZero() {
		paidAt = sql.NullTime{Time: booking.PaidAt, Valid: true}
	}
	if !booking.CancelledAt.IsZero() {
		cancelledAt = sql.NullTime{Time: booking.CancelledAt, Valid: true}
	}

	_, err = r.q.ExecContext(ctx, query,
		booking.ID,
		booking.UserID,
		booking.Outbound.TripID,
		outbound.snapshotJSON,
		outbound.seatsJSON,
		returnTripID,
		returnSnapshot,
		returnSeats,
		passengersJSON,
		booking.SeatCount,
		booking.TotalPrice,
		paymentRef,
		transactionID,
		booking.Status,
		booking.CreatedAt,
		booking.ExpiresAt,
		paidAt,
		cancelledAt,
	)

	return err
}

// GetByID retrieves a booking by ID.
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := r.scanBooking(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return booking, nil
}

// GetByPaymentRef retrieves a booking by its payment provider reference.
// Returns (nil, nil) when no booking carries the reference.
func (r *BookingRepository) GetByPaymentRef(ctx context.Context, ref string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE payment_ref = $1`

	booking, err := r.scanBooking(r.q.QueryRowContext(ctx, query, ref))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return booking, nil
}

// UpdateStatusFrom moves a booking between statuses as a compare-and-swap on
// the current status. Racing writers observe ErrStaleStatus instead of
// double-applying the transition.
func (r *BookingRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = $3,
		    cancelled_at = CASE WHEN $3 = 'CANCELLED' THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND status = $2
	`

	result, err := r.q.ExecContext(ctx, query, id, from, to, at)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStaleStatus
}

// ConfirmPayment transitions a PENDING_PAYMENT booking to CONFIRMED, binding
// the provider transaction ID and paid-at stamp in the same conditional
// write. Exactly one of any number of racing confirmation signals succeeds.
func (r *BookingRepository) ConfirmPayment(ctx context.Context, id, transactionID string, paidAt time.Time) error {
	query := `
		UPDATE bookings
		SET status = 'CONFIRMED', transaction_id = $2, paid_at = $3
		WHERE id = $1 AND status = 'PENDING_PAYMENT'
	`

	result, err := r.q.ExecContext(ctx, query, id, transactionID, paidAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrStaleStatus
	}
	return nil
}

// ListExpiredPending returns PENDING_PAYMENT bookings whose expiry window
// elapsed before the cutoff, oldest first.
func (r *BookingRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'PENDING_PAYMENT' AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := r.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BookingRepository) scanBooking(row rowScanner) (*domain.Booking, error) {
	var booking domain.Booking
	var outboundSnapshot, outboundSeats, passengersJSON []byte
	var returnTripID, paymentRef, transactionID sql.NullString
	var returnSnapshot, returnSeats []byte
	var paidAt, cancelledAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.UserID,
		&booking.Outbound.TripID,
		&outboundSnapshot,
		&outboundSeats,
		&returnTripID,
		&returnSnapshot,
		&returnSeats,
		&passengersJSON,
		&booking.SeatCount,
		&booking.TotalPrice,
		&paymentRef,
		&transactionID,
		&booking.Status,
		&booking.CreatedAt,
		&booking.ExpiresAt,
		&paidAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(outboundSnapshot, &booking.Outbound.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal outbound snapshot: %w", err)
	}
	if err := json.Unmarshal(outboundSeats, &booking.Outbound.SeatLabels); err != nil {
		return nil, fmt.Errorf("unmarshal outbound seats: %w", err)
	}
	if len(passengersJSON) > 0 {
		if err := json.Unmarshal(passengersJSON, &booking.Passengers); err != nil {
			return nil, fmt.Errorf("unmarshal passengers: %w", err)
		}
	}

	if returnTripID.Valid {
		leg := domain.BookingLeg{TripID: returnTripID.String}
		if err := json.Unmarshal(returnSnapshot, &leg.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal return snapshot: %w", err)
		}
		if err := json.Unmarshal(returnSeats, &leg.SeatLabels); err != nil {
			return nil, fmt.Errorf("unmarshal return seats: %w", err)
		}
		booking.Return = &leg
	}

	if paymentRef.Valid {
		booking.PaymentRef = paymentRef.String
	}
	if transactionID.Valid {
		booking.TransactionID = transactionID.String
	}
	if paidAt.Valid {
		booking.PaidAt = paidAt.Time
	}
	if cancelledAt.Valid {
		booking.CancelledAt = cancelledAt.Time
	}

	return &booking, nil
}
