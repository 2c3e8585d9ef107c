package service

import "errors"

var (
	// ErrInvalidUserID is returned when the user ID is empty.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidTripID is returned when a leg's trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidBookingID is returned when the booking ID is empty.
	ErrInvalidBookingID = errors.New("invalid booking id")

	// ErrInvalidSeatSelection is returned when a leg selects no seats.
	ErrInvalidSeatSelection = errors.New("at least one seat must be selected")

	// ErrSeatCountMismatch is returned when the return leg selects a
	// different number of seats than the outbound leg.
	ErrSeatCountMismatch = errors.New("return leg must select the same number of seats as the outbound leg")

	// ErrInvalidStatus is returned when a status value is not recognised.
	ErrInvalidStatus = errors.New("invalid booking status")

	// ErrInvalidTransition is returned when a status change is not allowed
	// by the booking state machine.
	ErrInvalidTransition = errors.New("invalid booking status transition")

	// ErrUnknownReference is returned when a payment confirmation signal
	// carries a token no booking was created with.
	ErrUnknownReference = errors.New("unknown payment reference")

	// ErrNotAllowed is returned when the acting user is neither the booking
	// owner nor an admin.
	ErrNotAllowed = errors.New("actor not allowed to modify this booking")

	// ErrPaymentProvider is returned when the payment provider cannot be
	// reached or rejects an invoice request.
	ErrPaymentProvider = errors.New("payment provider unavailable")
)
