package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"busline/internal/repository"
)

func newMockDB(t *testing.T) (*TripRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock setup failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewTripRepository(db), mock
}

func TestTripRepository_TryReserve_DecrementsWhenCapacityHolds(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.TryReserve(context.Background(), "trip-1", 2); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_TryReserve_InsufficientCapacity(t *testing.T) {
	repo, mock := newMockDB(t)

	// The conditional update touches no row, and the trip turns out to exist.
	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.TryReserve(context.Background(), "trip-1", 5)
	if !errors.Is(err, repository.ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_TryReserve_UnknownTrip(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-gone", 1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("trip-gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.TryReserve(context.Background(), "trip-gone", 1)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_Release_CreditsSeats(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Release(context.Background(), "trip-1", 2); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_Release_UnknownTrip(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE trips`).
		WithArgs("trip-gone", 2).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Release(context.Background(), "trip-gone", 2)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_GetByID_ScansTrip(t *testing.T) {
	repo, mock := newMockDB(t)

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "origin_city", "destination_city", "departure_date", "departure_time",
		"company_id", "company_name", "vehicle_class", "price_per_seat",
		"total_capacity", "seats_available", "created_at",
	}).AddRow("trip-1", "Jakarta", "Bandung", "2026-09-15", "08:30",
		"company-1", "Prima Express", "EXECUTIVE", 150000.0, 40, 38, createdAt)

	mock.ExpectQuery(`SELECT (.+) FROM trips`).
		WithArgs("trip-1").
		WillReturnRows(rows)

	trip, err := repo.GetByID(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if trip.OriginCity != "Jakarta" || trip.SeatsAvailable != 38 {
		t.Errorf("unexpected trip: %+v", trip)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTripRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM trips`).
		WithArgs("trip-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "trip-gone")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestTripRepository_Search_AppliesFilters(t *testing.T) {
	repo, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{
		"id", "origin_city", "destination_city", "departure_date", "departure_time",
		"company_id", "company_name", "vehicle_class", "price_per_seat",
		"total_capacity", "seats_available", "created_at",
	}).AddRow("trip-1", "Jakarta", "Bandung", "2026-09-15", "08:30",
		"company-1", "Prima Express", "EXECUTIVE", 150000.0, 40, 38, time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM trips WHERE 1=1 AND origin_city = \$1 AND destination_city = \$2 ORDER BY departure_date, departure_time LIMIT \$3`).
		WithArgs("Jakarta", "Bandung", 20).
		WillReturnRows(rows)

	trips, err := repo.Search(context.Background(), repository.TripSearch{
		OriginCity:      "Jakarta",
		DestinationCity: "Bandung",
		Limit:           20,
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(trips) != 1 || trips[0].ID != "trip-1" {
		t.Errorf("unexpected result: %+v", trips)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
