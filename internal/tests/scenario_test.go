package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"busline/internal/cache"
	"busline/internal/domain"
	"busline/internal/repository"
	"busline/internal/service"
)

// TestBookingLifecycle_EndToEnd walks one booking through its full life:
// cached search, creation holding seats, confirmation signals from multiple
// channels, an expiry sweep that must leave the paid booking alone, and a
// final cancellation returning the seats.
func TestBookingLifecycle_EndToEnd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	localTier := cache.NewLocalTier(time.Minute)
	defer localTier.Close()
	facade := cache.NewFacade(cache.DefaultOpTimeout, localTier)

	tripRepo := NewMockTripRepository()
	tripRepo.AddTrip(newTestTrip("trip-1", 10))
	bookingRepo := NewMockBookingRepository()
	provider := service.NewMockProvider()

	trips := service.NewTripService(tripRepo, facade)
	reservation := service.NewReservationService(tripRepo, bookingRepo, provider, facade, nil, 30*time.Minute)
	reconcile := service.NewReconciliationService(bookingRepo, provider, nil)

	// A traveller browses the trip. The read lands in the cache.
	trip, err := trips.GetTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("trip read failed: %v", err)
	}
	if trip.SeatsAvailable != 10 {
		t.Fatalf("expected 10 seats before booking, got %d", trip.SeatsAvailable)
	}

	// The traveller books two seats. The ledger drops and the cached detail is
	// invalidated, so the next read sees the new availability.
	booking, err := reservation.CreateBooking(ctx, service.CreateBookingRequest{
		UserID:   "user-1",
		Outbound: service.LegRequest{TripID: "trip-1", SeatLabels: []string{"A1", "A2"}},
	})
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if booking.Status != domain.BookingStatusPendingPayment {
		t.Fatalf("expected PENDING_PAYMENT, got %s", booking.Status)
	}

	trip, err = trips.GetTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("trip read failed: %v", err)
	}
	if trip.SeatsAvailable != 8 {
		t.Errorf("expected 8 seats after booking, got %d", trip.SeatsAvailable)
	}

	// The provider webhook fires first, then the traveller's status poll and the
	// redirect callback repeat the same signal. Only the webhook applies.
	webhook, err := reconcile.ConfirmPayment(ctx, booking.PaymentRef)
	if err != nil {
		t.Fatalf("webhook signal failed: %v", err)
	}
	if !webhook.Applied {
		t.Error("expected webhook signal to apply the confirmation")
	}
	for _, channel := range []string{"poll", "callback"} {
		result, err := reconcile.ConfirmPayment(ctx, booking.PaymentRef)
		if err != nil {
			t.Fatalf("%s signal failed: %v", channel, err)
		}
		if result.Applied {
			t.Errorf("expected %s signal to be a duplicate", channel)
		}
		if result.Booking.Status != domain.BookingStatusConfirmed {
			t.Errorf("%s signal: expected CONFIRMED, got %s", channel, result.Booking.Status)
		}
	}

	// The sweep runs and must not touch the confirmed booking.
	expired, err := reservation.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if expired != 0 {
		t.Errorf("expected sweep to expire nothing, got %d", expired)
	}
	if got := bookingRepo.Status(booking.ID); got != domain.BookingStatusConfirmed {
		t.Errorf("expected booking to stay CONFIRMED, got %s", got)
	}
	if got := tripRepo.SeatsAvailable("trip-1"); got != 8 {
		t.Errorf("expected seats to stay held at 8, got %d", got)
	}

	// Plans change. The confirmed booking is cancelled and the seats return.
	cancelled, err := reservation.CancelBooking(ctx, service.CancelBookingRequest{
		BookingID: booking.ID,
		ActorID:   "user-1",
	})
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != domain.BookingStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", cancelled.Status)
	}

	trip, err = trips.GetTrip(ctx, "trip-1")
	if err != nil {
		t.Fatalf("trip read failed: %v", err)
	}
	if trip.SeatsAvailable != 10 {
		t.Errorf("expected 10 seats after cancellation, got %d", trip.SeatsAvailable)
	}

	// A very late provider signal reports the terminal state, nothing more.
	late, err := reconcile.ConfirmPayment(ctx, booking.PaymentRef)
	if err != nil {
		t.Fatalf("late signal failed: %v", err)
	}
	if late.Applied || late.Booking.Status != domain.BookingStatusCancelled {
		t.Errorf("expected inert late signal on CANCELLED, got applied=%v status=%s", late.Applied, late.Booking.Status)
	}
}

// TestBookingLifecycle_SearchCacheTracksLedger exercises the search read path
// against the same ledger the booking flow mutates.
func TestBookingLifecycle_SearchCacheTracksLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	localTier := cache.NewLocalTier(time.Minute)
	defer localTier.Close()
	facade := cache.NewFacade(cache.DefaultOpTimeout, localTier)

	tripRepo := NewMockTripRepository()
	tripRepo.AddTrip(newTestTrip("trip-1", 6))
	bookingRepo := NewMockBookingRepository()

	trips := service.NewTripService(tripRepo, facade)
	reservation := service.NewReservationService(tripRepo, bookingRepo, service.NewMockProvider(), facade, nil, 30*time.Minute)

	query := repository.TripSearch{OriginCity: "Jakarta", DestinationCity: "Bandung", DepartureDate: "2026-09-15"}

	results, err := trips.Search(ctx, query)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].SeatsAvailable != 6 {
		t.Fatalf("expected one trip with 6 seats, got %+v", results)
	}

	if _, err := reservation.CreateBooking(ctx, service.CreateBookingRequest{
		UserID:   "user-1",
		Outbound: service.LegRequest{TripID: "trip-1", SeatLabels: []string{"A1", "A2", "A3"}},
	}); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// The booking invalidated the search prefix, so the repeated query reads
	// fresh availability instead of the cached result.
	results, err = trips.Search(ctx, query)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 1 || results[0].SeatsAvailable != 3 {
		t.Fatalf("expected one trip with 3 seats after booking, got %+v", results)
	}
}

// TestBookingLifecycle_HotTripDrainsToZero drains a trip across several
// travellers and verifies the ledger and the booking set agree at the end.
func TestBookingLifecycle_HotTripDrainsToZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	tripRepo := NewMockTripRepository()
	tripRepo.AddTrip(newTestTrip("trip-1", 6))
	bookingRepo := NewMockBookingRepository()
	svc := newReservationService(tripRepo, bookingRepo, service.NewMockProvider())

	var bookings []*domain.Booking
	for i := 0; i < 3; i++ {
		booking, err := svc.CreateBooking(ctx, service.CreateBookingRequest{
			UserID:   "user-1",
			Outbound: service.LegRequest{TripID: "trip-1", SeatLabels: []string{"A1", "A2"}},
		})
		if err != nil {
			t.Fatalf("booking %d failed: %v", i+1, err)
		}
		bookings = append(bookings, booking)
	}

	if got := tripRepo.SeatsAvailable("trip-1"); got != 0 {
		t.Fatalf("expected trip drained to 0, got %d", got)
	}

	// The next traveller is turned away.
	_, err := svc.CreateBooking(ctx, service.CreateBookingRequest{
		UserID:   "user-2",
		Outbound: service.LegRequest{TripID: "trip-1", SeatLabels: []string{"B1"}},
	})
	if !errors.Is(err, repository.ErrInsufficientCapacity) {
		t.Fatalf("expected ErrInsufficientCapacity, got: %v", err)
	}

	// One cancellation frees exactly that booking's seats.
	if _, err := svc.CancelBooking(ctx, service.CancelBookingRequest{
		BookingID: bookings[0].ID,
		ActorID:   "user-1",
	}); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got := tripRepo.SeatsAvailable("trip-1"); got != 2 {
		t.Errorf("expected 2 seats after one cancellation, got %d", got)
	}
}
