package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrInsufficientCapacity is returned by TryReserve when the trip does
	// not have enough remaining seats for the requested count.
	ErrInsufficientCapacity = errors.New("insufficient seat capacity")

	// ErrStaleStatus is returned by conditional status updates when the
	// booking was not in the expected state; the caller lost the race.
	ErrStaleStatus = errors.New("booking not in expected status")
)
