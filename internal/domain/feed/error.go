package feed

import "errors"

// Connection errors
var (
	ErrClosed             = errors.New("feed connection closed")
	ErrReconnectExhausted = errors.New("feed reconnect attempts exhausted")
	ErrMalformedFrame     = errors.New("malformed feed frame")
	ErrUnexpectedResponse = errors.New("unexpected feed response")
	ErrAlreadyStarted     = errors.New("feed connection already started")
)
