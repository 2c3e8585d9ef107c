package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"busline/internal/domain"
	"busline/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is an in-memory implementation of TripRepository. The
// ledger operations hold the repository lock for the whole check-and-mutate,
// mirroring the atomicity of the real conditional UPDATE.
type MockTripRepository struct {
	mu    sync.Mutex
	trips map[string]*domain.Trip

	// Counters for verification
	TryReserveCallCount int32
	ReleaseCallCount    int32

	// Error injection
	TryReserveError error
	ReleaseError    error
	// ReleaseFailures fails the first N release calls, then succeeds.
	ReleaseFailures int32
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{trips: make(map[string]*domain.Trip)}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) Search(ctx context.Context, q repository.TripSearch) ([]*domain.Trip, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Trip
	for _, t := range m.trips {
		if q.OriginCity != "" && t.OriginCity != q.OriginCity {
			continue
		}
		if q.DestinationCity != "" && t.DestinationCity != q.DestinationCity {
			continue
		}
		if q.DepartureDate != "" && t.DepartureDate != q.DepartureDate {
			continue
		}
		copy := *t
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockTripRepository) TryReserve(ctx context.Context, tripID string, seats int) error {
	atomic.AddInt32(&m.TryReserveCallCount, 1)
	if m.TryReserveError != nil {
		return m.TryReserveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok {
		return repository.ErrNotFound
	}
	if trip.SeatsAvailable < seats {
		return repository.ErrInsufficientCapacity
	}
	trip.SeatsAvailable -= seats
	return nil
}

func (m *MockTripRepository) Release(ctx context.Context, tripID string, seats int) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return m.ReleaseError
	}
	if atomic.AddInt32(&m.ReleaseFailures, -1) >= 0 {
		return context.DeadlineExceeded
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok {
		return repository.ErrNotFound
	}
	trip.SeatsAvailable += seats
	if trip.SeatsAvailable > trip.TotalCapacity {
		trip.SeatsAvailable = trip.TotalCapacity
	}
	return nil
}

// SeatsAvailable returns the current ledger value for test assertions.
func (m *MockTripRepository) SeatsAvailable(tripID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if trip, ok := m.trips[tripID]; ok {
		return trip.SeatsAvailable
	}
	return -1
}

// ──────────────────────────────────────────────
// MOCK BOOKING REPOSITORY
// ──────────────────────────────────────────────

// MockBookingRepository is an in-memory implementation of BookingRepository
// with the same compare-and-swap semantics as the SQL implementation.
type MockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*domain.Booking

	// Counters for verification
	CreateCallCount         int32
	ConfirmPaymentCallCount int32

	// Error injection
	CreateError error
}

// NewMockBookingRepository creates a new mock booking repository.
func NewMockBookingRepository() *MockBookingRepository {
	return &MockBookingRepository{bookings: make(map[string]*domain.Booking)}
}

// AddBooking adds a booking to the mock repository.
func (m *MockBookingRepository) AddBooking(booking *domain.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
}

func (m *MockBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *booking
	m.bookings[booking.ID] = &copy
	return nil
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *booking
	return &copy, nil
}

func (m *MockBookingRepository) GetByPaymentRef(ctx context.Context, ref string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.PaymentRef == ref {
			copy := *b
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockBookingRepository) UpdateStatusFrom(ctx context.Context, id string, from, to domain.BookingStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	if booking.Status != from {
		return repository.ErrStaleStatus
	}
	booking.Status = to
	if to == domain.BookingStatusCancelled {
		booking.CancelledAt = at
	}
	return nil
}

func (m *MockBookingRepository) ConfirmPayment(ctx context.Context, id, transactionID string, paidAt time.Time) error {
	atomic.AddInt32(&m.ConfirmPaymentCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return repository.ErrStaleStatus
	}
	if booking.Status != domain.BookingStatusPendingPayment {
		return repository.ErrStaleStatus
	}
	booking.Status = domain.BookingStatusConfirmed
	booking.TransactionID = transactionID
	booking.PaidAt = paidAt
	return nil
}

func (m *MockBookingRepository) ListExpiredPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Booking
	for _, b := range m.bookings {
		if b.Status == domain.BookingStatusPendingPayment && !b.ExpiresAt.After(cutoff) {
			copy := *b
			result = append(result, &copy)
			if len(result) == limit {
				break
			}
		}
	}
	return result, nil
}

// Status returns the stored status for test assertions.
func (m *MockBookingRepository) Status(id string) domain.BookingStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		return b.Status
	}
	return ""
}

var (
	_ repository.TripRepository    = (*MockTripRepository)(nil)
	_ repository.BookingRepository = (*MockBookingRepository)(nil)
)

// Ensure mocks satisfy the repository interfaces.
var (
	_ repository.TripRepository    = (*MockTripRepository)(nil)
	_ repository.BookingRepository = (*MockBookingRepository)(nil)
)
