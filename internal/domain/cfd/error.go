package cfd

import "errors"

// Domain errors
var (
	// Offer errors
	ErrNoOffer            = errors.New("no offer available")
	ErrOfferNotFound      = errors.New("offer not found")
	ErrInvalidOfferParams = errors.New("invalid offer parameters")

	// Quantity errors
	ErrInvalidQuantity    = errors.New("invalid quantity: must be positive")
	ErrQuantityOutOfRange = errors.New("quantity out of offer range")

	// Balance errors
	ErrInsufficientBalance = errors.New("insufficient balance for margin")
)
