package repository

import (
	"context"

	"busline/internal/domain"
)

// TripSearch holds the filter parameters for trip search queries.
type TripSearch struct {
	OriginCity      string
	DestinationCity string
	DepartureDate   string
	CompanyID       string
	Limit           int
	Offset          int
}

// TripRepository defines the persistence operations for trips, including the
// seat ledger. TryReserve and Release must be single atomic conditional
// writes: a check-then-decrement expressed as two statements is a race.
type TripRepository interface {
	// Create persists a new trip. Trips are normally produced by the
	// external schedule-generation batch job.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// Search retrieves trips matching the given filters.
	Search(ctx context.Context, q TripSearch) ([]*domain.Trip, error)

	// TryReserve atomically decrements the trip's remaining seats by the
	// given count, failing with ErrInsufficientCapacity when fewer seats
	// remain. The check and the decrement are one indivisible operation.
	TryReserve(ctx context.Context, tripID string, seats int) error

	// Release atomically increments the trip's remaining seats by the given
	// count, bounded above by the trip's total capacity.
	Release(ctx context.Context, tripID string, seats int) error
}
