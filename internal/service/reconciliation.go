package service

import (
	"context"
	"errors"
	"log"
	"time"

	"busline/internal/domain"
	"busline/internal/queue"
	"busline/internal/repository"
)

// ReconciliationService converges the three payment confirmation channels
// (user status poll, provider webhook, provider redirect callback) onto a
// single PENDING_PAYMENT -> CONFIRMED transition. Every channel calls
// ConfirmPayment; any number of calls in any order apply the transition at
// most once.
type ReconciliationService struct {
	bookingRepo repository.BookingRepository
	provider    PaymentProvider
	events      *queue.Publisher
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(bookingRepo repository.BookingRepository, provider PaymentProvider, events *queue.Publisher) *ReconciliationService {
	return &ReconciliationService{
		bookingRepo: bookingRepo,
		provider:    provider,
		events:      events,
	}
}

// ConfirmResult reports the reconciliation outcome for one signal.
type ConfirmResult struct {
	Booking        *domain.Booking
	ProviderStatus ProviderStatus
	// Applied is true only for the one call that performed the transition.
	Applied bool
}

// ConfirmPayment reconciles one confirmation signal for the given payment
// reference. Unknown references fail without side effects; bookings already
// out of PENDING_PAYMENT are reported as-is without mutation; otherwise the
// provider is asked for the authoritative status and a success is applied
// via compare-and-swap so racing signals cannot double-confirm.
func (s *ReconciliationService) ConfirmPayment(ctx context.Context, token string) (*ConfirmResult, error) {
	if token == "" {
		return nil, ErrUnknownReference
	}

	booking, err := s.bookingRepo.GetByPaymentRef(ctx, token)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		log.Printf("[RECONCILE] token=%s no booking for reference", token)
		return nil, ErrUnknownReference
	}

	if booking.Status != domain.BookingStatusPendingPayment {
		// Duplicate or late signal. Not an error: report current state.
		log.Printf("[RECONCILE] booking=%s token=%s duplicate signal in status %s", booking.ID, token, booking.Status)
		return &ConfirmResult{
			Booking:        booking,
			ProviderStatus: providerStatusFor(booking),
			Applied:        false,
		}, nil
	}

	status, transactionID, err := s.provider.Confirm(ctx, token)
	if err != nil {
		log.Printf("[RECONCILE] booking=%s token=%s provider confirm failed: %v", booking.ID, token, err)
		return nil, ErrPaymentProvider
	}

	if status != ProviderStatusPaid {
		// Not paid yet (or failed/expired): leave the booking untouched.
		return &ConfirmResult{Booking: booking, ProviderStatus: status, Applied: false}, nil
	}

	paidAt := time.Now()
	err = s.bookingRepo.ConfirmPayment(ctx, booking.ID, transactionID, paidAt)
	if err != nil {
		if errors.Is(err, repository.ErrStaleStatus) {
			// A racing signal won, or the booking was cancelled meanwhile.
			current, readErr := s.bookingRepo.GetByID(ctx, booking.ID)
			if readErr != nil {
				return nil, readErr
			}
			log.Printf("[RECONCILE] booking=%s token=%s lost confirmation race, now %s", booking.ID, token, current.Status)
			return &ConfirmResult{
				Booking:        current,
				ProviderStatus: providerStatusFor(current),
				Applied:        false,
			}, nil
		}
		return nil, err
	}

	booking.Status = domain.BookingStatusConfirmed
	booking.TransactionID = transactionID
	booking.PaidAt = paidAt
	log.Printf("[RECONCILE] booking=%s token=%s confirmed txn=%s", booking.ID, token, transactionID)

	_ = s.events.Publish(ctx, queue.BookingEvent{
		Type:       queue.EventBookingConfirmed,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		Status:     string(booking.Status),
		PaymentRef: booking.PaymentRef,
		SeatCount:  booking.SeatCount,
		TotalPrice: booking.TotalPrice,
		OccurredAt: paidAt,
	})

	return &ConfirmResult{Booking: booking, ProviderStatus: ProviderStatusPaid, Applied: true}, nil
}

// providerStatusFor maps a settled booking status to the provider-status
// vocabulary used in responses.
func providerStatusFor(booking *domain.Booking) ProviderStatus {
	switch booking.Status {
	case domain.BookingStatusConfirmed, domain.BookingStatusCompleted:
		return ProviderStatusPaid
	case domain.BookingStatusCancelled:
		return ProviderStatusExpired
	default:
		return ProviderStatusPending
	}
}
