package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"busline/internal/domain"
	"busline/internal/repository"
)

func newBookingMockDB(t *testing.T) (*BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBookingRepository(db), mock
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "outbound_trip_id", "outbound_snapshot", "outbound_seats",
		"return_trip_id", "return_snapshot", "return_seats", "passengers",
		"seat_count", "total_price", "payment_ref", "transaction_id", "status",
		"created_at", "expires_at", "paid_at", "cancelled_at",
	})
}

func TestBookingRepository_Create_PersistsLegs(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	booking := &domain.Booking{
		ID:     "booking-1",
		UserID: "user-1",
		Outbound: domain.BookingLeg{
			TripID:     "trip-out",
			Snapshot:   domain.TripSnapshot{OriginCity: "Jakarta", DestinationCity: "Bandung"},
			SeatLabels: []string{"A1", "A2"},
		},
		Return: &domain.BookingLeg{
			TripID:     "trip-ret",
			Snapshot:   domain.TripSnapshot{OriginCity: "Bandung", DestinationCity: "Jakarta"},
			SeatLabels: []string{"B1", "B2"},
		},
		Passengers: []domain.Passenger{{Name: "Ayu Lestari", Phone: "+62811111111"}, {Name: "Budi Santoso"}},
		SeatCount:  2,
		TotalPrice: 600000,
		PaymentRef: "ref-1",
		Status:     domain.BookingStatusPendingPayment,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}

	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), booking); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_GetByID_RoundTripLegs(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	rows := bookingRows().AddRow(
		"booking-1", "user-1",
		"trip-out", []byte(`{"origin_city":"Jakarta","destination_city":"Bandung"}`), []byte(`["A1","A2"]`),
		"trip-ret", []byte(`{"origin_city":"Bandung","destination_city":"Jakarta"}`), []byte(`["B1","B2"]`),
		[]byte(`[{"name":"Ayu Lestari","phone":"+62811111111"}]`),
		2, 600000.0, "ref-1", nil, "PENDING_PAYMENT",
		now, now.Add(30*time.Minute), nil, nil,
	)

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE id = \$1`).
		WithArgs("booking-1").
		WillReturnRows(rows)

	booking, err := repo.GetByID(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if booking.Outbound.Snapshot.OriginCity != "Jakarta" {
		t.Errorf("expected outbound snapshot decoded, got %+v", booking.Outbound.Snapshot)
	}
	if booking.Return == nil || booking.Return.TripID != "trip-ret" {
		t.Errorf("expected return leg decoded, got %+v", booking.Return)
	}
	if len(booking.Outbound.SeatLabels) != 2 {
		t.Errorf("expected 2 outbound seat labels, got %v", booking.Outbound.SeatLabels)
	}
	if booking.PaymentRef != "ref-1" {
		t.Errorf("expected payment ref, got %q", booking.PaymentRef)
	}
	if len(booking.Passengers) != 1 || booking.Passengers[0].Name != "Ayu Lestari" {
		t.Errorf("expected passengers decoded, got %+v", booking.Passengers)
	}
}

func TestBookingRepository_GetByPaymentRef_MissIsNotAnError(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM bookings WHERE payment_ref = \$1`).
		WithArgs("ref-unknown").
		WillReturnRows(bookingRows())

	booking, err := repo.GetByPaymentRef(context.Background(), "ref-unknown")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if booking != nil {
		t.Errorf("expected nil booking, got %+v", booking)
	}
}

func TestBookingRepository_UpdateStatusFrom_AppliesGuardedTransition(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs("booking-1", domain.BookingStatusPendingPayment, domain.BookingStatusCancelled, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatusFrom(context.Background(), "booking-1", domain.BookingStatusPendingPayment, domain.BookingStatusCancelled, now)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_UpdateStatusFrom_StaleStatus(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("booking-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.UpdateStatusFrom(context.Background(), "booking-1", domain.BookingStatusPendingPayment, domain.BookingStatusCancelled, now)
	if !errors.Is(err, repository.ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got: %v", err)
	}
}

func TestBookingRepository_UpdateStatusFrom_UnknownBooking(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	mock.ExpectExec(`UPDATE bookings`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("booking-gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.UpdateStatusFrom(context.Background(), "booking-gone", domain.BookingStatusPendingPayment, domain.BookingStatusCancelled, now)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestBookingRepository_ConfirmPayment_GuardsOnPendingStatus(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	paidAt := time.Now()
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs("booking-1", "txn-1", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.ConfirmPayment(context.Background(), "booking-1", "txn-1", paidAt); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// A second identical signal touches no row.
	mock.ExpectExec(`UPDATE bookings`).
		WithArgs("booking-1", "txn-1", paidAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ConfirmPayment(context.Background(), "booking-1", "txn-1", paidAt)
	if !errors.Is(err, repository.ErrStaleStatus) {
		t.Fatalf("expected ErrStaleStatus, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_ListExpiredPending(t *testing.T) {
	repo, mock := newBookingMockDB(t)

	now := time.Now()
	rows := bookingRows().AddRow(
		"booking-1", "user-1",
		"trip-out", []byte(`{"origin_city":"Jakarta"}`), []byte(`["A1"]`),
		nil, nil, nil, []byte(`[]`),
		1, 150000.0, "ref-1", nil, "PENDING_PAYMENT",
		now.Add(-time.Hour), now.Add(-30*time.Minute), nil, nil,
	)

	mock.ExpectQuery(`SELECT (.+) FROM bookings`).
		WithArgs(now, 100).
		WillReturnRows(rows)

	bookings, err := repo.ListExpiredPending(context.Background(), now, 0)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(bookings) != 1 || bookings[0].ID != "booking-1" {
		t.Errorf("unexpected result: %+v", bookings)
	}
	if bookings[0].Return != nil {
		t.Errorf("expected no return leg, got %+v", bookings[0].Return)
	}
}
