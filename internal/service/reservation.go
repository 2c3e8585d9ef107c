package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"busline/internal/cache"
	"busline/internal/domain"
	"busline/internal/queue"
	"busline/internal/repository"
)

// RoleAdmin is the role the external auth service assigns to operators.
const RoleAdmin = "admin"

const (
	// A failed compensating release would leave the ledger reflecting a
	// booking that does not durably exist, so releases retry.
	releaseRetryAttempts = 3
	releaseRetryBackoff  = 100 * time.Millisecond

	sweepBatchSize = 100

	defaultExpiryWindow = 30 * time.Minute
)

// ReservationService creates and cancels bookings. It is the only writer of
// the trip ledger besides the expiry sweep it also owns, and it invalidates
// the cache on every capacity change.
type ReservationService struct {
	tripRepo     repository.TripRepository
	bookingRepo  repository.BookingRepository
	provider     PaymentProvider
	cache        *cache.Facade
	events       *queue.Publisher
	expiryWindow time.Duration
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	tripRepo repository.TripRepository,
	bookingRepo repository.BookingRepository,
	provider PaymentProvider,
	cacheFacade *cache.Facade,
	events *queue.Publisher,
	expiryWindow time.Duration,
) *ReservationService {
	if expiryWindow <= 0 {
		expiryWindow = defaultExpiryWindow
	}
	return &ReservationService{
		tripRepo:     tripRepo,
		bookingRepo:  bookingRepo,
		provider:     provider,
		cache:        cacheFacade,
		events:       events,
		expiryWindow: expiryWindow,
	}
}

// LegRequest selects a trip and the advisory seat labels for one leg. The
// label count is the number of seats reserved; labels themselves are never
// individually locked.
type LegRequest struct {
	TripID     string
	SeatLabels []string
}

// CreateBookingRequest contains the parameters for creating a booking.
// Passengers are stored as provided for ticketing.
type CreateBookingRequest struct {
	UserID     string
	Outbound   LegRequest
	Return     *LegRequest
	Passengers []domain.Passenger
}

// CreateBooking reserves capacity on every leg, registers an invoice with
// the payment provider and persists the booking in PENDING_PAYMENT. The
// operation is all-or-nothing across legs: if any step after a successful
// reserve fails, the held seats are released again before returning.
func (s *ReservationService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*domain.Booking, error) {
	if req.UserID == "" {
		return nil, ErrInvalidUserID
	}
	if req.Outbound.TripID == "" {
		return nil, ErrInvalidTripID
	}
	seatCount := len(req.Outbound.SeatLabels)
	if seatCount == 0 {
		return nil, ErrInvalidSeatSelection
	}
	if req.Return != nil {
		if req.Return.TripID == "" {
			return nil, ErrInvalidTripID
		}
		if len(req.Return.SeatLabels) != seatCount {
			return nil, ErrSeatCountMismatch
		}
	}

	legRequests := []LegRequest{req.Outbound}
	if req.Return != nil {
		legRequests = append(legRequests, *req.Return)
	}

	// Snapshot trip details before touching the ledger. Capacity is not
	// checked here: TryReserve below is the only authoritative check.
	legs := make([]domain.BookingLeg, 0, len(legRequests))
	var totalPrice float64
	for _, lr := range legRequests {
		trip, err := s.tripRepo.GetByID(ctx, lr.TripID)
		if err != nil {
			return nil, err
		}
		legs = append(legs, domain.BookingLeg{
			TripID:     trip.ID,
			Snapshot:   trip.Snapshot(),
			SeatLabels: lr.SeatLabels,
		})
		totalPrice += trip.PricePerSeat * float64(len(lr.SeatLabels))
	}

	// Reserve each leg atomically. On any failure, release what was already
	// taken so a round trip never leaves a partial reservation behind.
	reserved := make([]domain.BookingLeg, 0, len(legs))
	for _, leg := range legs {
		if err := s.tripRepo.TryReserve(ctx, leg.TripID, len(leg.SeatLabels)); err != nil {
			s.releaseLegs(ctx, "", reserved)
			return nil, err
		}
		reserved = append(reserved, leg)
	}

	bookingID := uuid.New().String()
	description := fmt.Sprintf("%s -> %s on %s", legs[0].Snapshot.OriginCity, legs[0].Snapshot.DestinationCity, legs[0].Snapshot.DepartureDate)
	invoice, err := s.provider.CreateInvoice(ctx, totalPrice, description, bookingID)
	if err != nil {
		log.Printf("[RESERVATION] booking=%s invoice creation failed: %v", bookingID, err)
		s.releaseLegs(ctx, bookingID, reserved)
		return nil, ErrPaymentProvider
	}

	now := time.Now()
	booking := &domain.Booking{
		ID:         bookingID,
		UserID:     req.UserID,
		Outbound:   legs[0],
		Passengers: req.Passengers,
		SeatCount:  seatCount,
		TotalPrice: totalPrice,
		PaymentRef: invoice.Ref,
		Status:     domain.BookingStatusPendingPayment,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.expiryWindow),
	}
	if len(legs) > 1 {
		ret := legs[1]
		booking.Return = &ret
	}

	if err := s.bookingRepo.Create(ctx, booking); err != nil {
		log.Printf("[RESERVATION] booking=%s persistence failed, compensating: %v", bookingID, err)
		s.releaseLegs(ctx, bookingID, reserved)
		return nil, err
	}

	s.invalidateLegs(ctx, booking.Legs())
	s.publish(ctx, queue.EventBookingCreated, booking)

	return booking, nil
}

// CancelBookingRequest contains the parameters for cancelling a booking.
type CancelBookingRequest struct {
	BookingID string
	ActorID   string
	ActorRole string
}

// CancelBooking applies the transition to CANCELLED and releases the held
// capacity on every leg exactly once. The caller must be the booking owner
// or an admin.
func (s *ReservationService) CancelBooking(ctx context.Context, req CancelBookingRequest) (*domain.Booking, error) {
	if req.BookingID == "" {
		return nil, ErrInvalidBookingID
	}

	booking, err := s.bookingRepo.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}

	if req.ActorRole != RoleAdmin && booking.UserID != req.ActorID {
		return nil, ErrNotAllowed
	}

	return s.cancel(ctx, booking, queue.EventBookingCancelled)
}

// cancel performs the guarded transition to CANCELLED from whatever status
// the booking was observed in. Winning the compare-and-swap is what makes
// the subsequent ledger release exactly-once.
func (s *ReservationService) cancel(ctx context.Context, booking *domain.Booking, event queue.EventType) (*domain.Booking, error) {
	if !domain.CanTransition(booking.Status, domain.BookingStatusCancelled) {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	err := s.bookingRepo.UpdateStatusFrom(ctx, booking.ID, booking.Status, domain.BookingStatusCancelled, now)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// Another writer moved the booking first; no ledger effect here.
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	if domain.ReleasesCapacity(booking.Status) {
		s.releaseLegs(ctx, booking.ID, booking.Legs())
		s.invalidateLegs(ctx, booking.Legs())
	}

	booking.Status = domain.BookingStatusCancelled
	booking.CancelledAt = now
	s.publish(ctx, event, booking)

	return booking, nil
}

// UpdateStatus applies an admin-initiated status transition, subject to the
// same state machine as every other writer.
func (s *ReservationService) UpdateStatus(ctx context.Context, bookingID string, newStatus domain.BookingStatus, actorRole string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	if actorRole != RoleAdmin {
		return nil, ErrNotAllowed
	}
	if !domain.ValidStatus(newStatus) {
		return nil, ErrInvalidStatus
	}

	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// Setting the current status again, or completing an already-cancelled
	// booking, is a no-op rather than an error so admin retries stay safe.
	if booking.Status == newStatus {
		return booking, nil
	}
	if booking.Status == domain.BookingStatusCancelled && newStatus == domain.BookingStatusCompleted {
		return booking, nil
	}

	if !domain.CanTransition(booking.Status, newStatus) {
		return nil, ErrInvalidTransition
	}

	if newStatus == domain.BookingStatusCancelled {
		return s.cancel(ctx, booking, queue.EventBookingCancelled)
	}

	// CONFIRMED and COMPLETED entries have no ledger effect.
	now := time.Now()
	if err := s.bookingRepo.UpdateStatusFrom(ctx, bookingID, booking.Status, newStatus, now); err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}

	booking.Status = newStatus
	if newStatus == domain.BookingStatusConfirmed {
		s.publish(ctx, queue.EventBookingConfirmed, booking)
	}
	return booking, nil
}

// ExpireStale cancels PENDING_PAYMENT bookings whose payment window has
// elapsed, releasing their held capacity. The sweep is idempotent against
// bookings confirmed concurrently: losing the status compare-and-swap simply
// skips the booking.
func (s *ReservationService) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.bookingRepo.ListExpiredPending(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, booking := range stale {
		if _, err := s.cancel(ctx, booking, queue.EventBookingExpired); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// Confirmed (or cancelled) between listing and sweeping.
				log.Printf("[SWEEP] booking=%s left PENDING_PAYMENT before expiry, skipping", booking.ID)
				continue
			}
			log.Printf("[SWEEP] booking=%s expiry failed: %v", booking.ID, err)
			continue
		}
		expired++
	}
	return expired, nil
}

// releaseLegs returns held seats to the ledger for every leg, retrying each
// release so transient storage failures cannot strand capacity.
func (s *ReservationService) releaseLegs(ctx context.Context, bookingID string, legs []domain.BookingLeg) {
	for _, leg := range legs {
		seats := len(leg.SeatLabels)
		var err error
		for attempt := 1; attempt <= releaseRetryAttempts; attempt++ {
			err = s.tripRepo.Release(ctx, leg.TripID, seats)
			if err == nil || errors.Is(err, repository.ErrNotFound) {
				// A deleted trip has no ledger left to credit.
				err = nil
				break
			}
			log.Printf("[RESERVATION] booking=%s trip=%s release attempt %d failed: %v", bookingID, leg.TripID, attempt, err)
			time.Sleep(time.Duration(attempt) * releaseRetryBackoff)
		}
		if err != nil {
			log.Printf("[RESERVATION] booking=%s trip=%s seats=%d release exhausted retries, ledger may under-report capacity: %v", bookingID, leg.TripID, seats, err)
		}
	}
}

// invalidateLegs drops every cache entry that could include the mutated
// trips.
func (s *ReservationService) invalidateLegs(ctx context.Context, legs []domain.BookingLeg) {
	if s.cache == nil {
		return
	}
	for _, leg := range legs {
		snap := leg.Snapshot
		if err := cache.InvalidateTrip(ctx, s.cache, leg.TripID, snap.OriginCity, snap.DestinationCity, snap.CompanyID); err != nil {
			log.Printf("[RESERVATION] trip=%s cache invalidation incomplete: %v", leg.TripID, err)
		}
	}
}

func (s *ReservationService) publish(ctx context.Context, eventType queue.EventType, booking *domain.Booking) {
	_ = s.events.Publish(ctx, queue.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		Status:     string(booking.Status),
		PaymentRef: booking.PaymentRef,
		SeatCount:  booking.SeatCount,
		TotalPrice: booking.TotalPrice,
		OccurredAt: time.Now(),
	})
}

// GetBooking retrieves a booking, enforcing the owner-or-admin rule.
func (s *ReservationService) GetBooking(ctx context.Context, bookingID, actorID, actorRole string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, ErrInvalidBookingID
	}
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorRole != RoleAdmin && booking.UserID != actorID {
		return nil, ErrNotAllowed
	}
	return booking, nil
}
