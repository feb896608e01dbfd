package domain

import "errors"

var (
	ErrLotNotFound     = errors.New("parking lot not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")
)

var (
	ErrSlotUnavailable   = errors.New("slot is not available")
	ErrConflict          = errors.New("slot is already booked for this time")
	ErrInvalidTransition = errors.New("invalid booking state transition")
)

var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("not authorized")
)
