package model

import "errors"

// Authorization and scheduling guards. These are benign: the command is
// logged and ignored rather than failed.
var (
	ErrNotOwner  = errors.New("caller is not the owner")
	ErrNotDueYet = errors.New("act not due at this tick")
)

// Resource errors raised by the reservation manager.
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrReservationMissing   = errors.New("reservation missing")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrReservationExhausted = errors.New("reservation exhausted")
	ErrInvalidReservation   = errors.New("invalid reservation request")
)

// Domain errors.
var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAssetExists         = errors.New("asset already registered")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPrice        = errors.New("invalid price")
)

// Arithmetic errors. Either one aborts the enclosing command.
var (
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")
)

// Lifecycle errors.
var (
	ErrNotInitialized = errors.New("instance not initialized")
	ErrTerminated     = errors.New("instance terminated")
	ErrTickZero       = errors.New("cannot start at tick 0")
)
