package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"busline/internal/domain"
	"busline/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `id, origin_city, destination_city, departure_date, departure_time, company_id, company_name, vehicle_class, price_per_seat, total_capacity, seats_available, created_at`

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.OriginCity,
		trip.DestinationCity,
		trip.DepartureDate,
		trip.DepartureTime,
		trip.CompanyID,
		trip.CompanyName,
		trip.VehicleClass,
		trip.PricePerSeat,
		trip.TotalCapacity,
		trip.SeatsAvailable,
		trip.CreatedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	var trip domain.Trip
	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&trip.ID,
		&trip.OriginCity,
		&trip.DestinationCity,
		&trip.DepartureDate,
		&trip.DepartureTime,
		&trip.CompanyID,
		&trip.CompanyName,
		&trip.VehicleClass,
		&trip.PricePerSeat,
		&trip.TotalCapacity,
		&trip.SeatsAvailable,
		&trip.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &trip, nil
}

// Search retrieves trips matching the given filters, soonest departure first.
func (r *TripRepository) Search(ctx context.Context, q repository.TripSearch) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE 1=1`
	args := make([]any, 0, 6)

	appendFilter := func(clause, value string) {
		if value != "" {
			args = append(args, value)
			query += clause + placeholder(len(args))
		}
	}
	appendFilter(` AND origin_city = `, q.OriginCity)
	appendFilter(` AND destination_city = `, q.DestinationCity)
	appendFilter(` AND departure_date = `, q.DepartureDate)
	appendFilter(` AND company_id = `, q.CompanyID)

	query += ` ORDER BY departure_date, departure_time`

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT ` + placeholder(len(args))
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += ` OFFSET ` + placeholder(len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		var trip domain.Trip
		if err := rows.Scan(
			&trip.ID,
			&trip.OriginCity,
			&trip.DestinationCity,
			&trip.DepartureDate,
			&trip.DepartureTime,
			&trip.CompanyID,
			&trip.CompanyName,
			&trip.VehicleClass,
			&trip.PricePerSeat,
			&trip.TotalCapacity,
			&trip.SeatsAvailable,
			&trip.CreatedAt,
		); err != nil {
			return nil, err
		}
		trips = append(trips, &trip)
	}
	return trips, rows.Err()
}

// TryReserve decrements the trip's remaining seats by the given count. The
// capacity check and the decrement are one conditional UPDATE so concurrent
// reservations against the same trip serialize at the row and can never
// drive seats_available negative.
func (r *TripRepository) TryReserve(ctx context.Context, tripID string, seats int) error {
	query := `
		UPDATE trips
		SET seats_available = seats_available - $2
		WHERE id = $1 AND seats_available >= $2
	`

	result, err := r.q.ExecContext(ctx, query, tripID, seats)
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

	// No row mutated: either the trip is gone or it lacks capacity.
	var exists bool
	err = r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM trips WHERE id = $1)`, tripID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrInsufficientCapacity
}

// Release increments the trip's remaining seats by the given count, capped at
// the trip's total capacity.
func (r *TripRepository) Release(ctx context.Context, tripID string, seats int) error {
	query := `
		UPDATE trips
		SET seats_available = LEAST(seats_available + $2, total_capacity)
		WHERE id = $1
	`

	result, err := r.q.ExecContext(ctx, query, tripID, seats)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// placeholder returns the lib/pq positional placeholder for index n.
func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
