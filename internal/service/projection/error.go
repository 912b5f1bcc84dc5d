package projection

import (
	"errors"
	"fmt"
)

// ErrDecode is matched by every payload decode failure
var ErrDecode = errors.New("payload decode failed")

// DecodeError describes a discarded occurrence
type DecodeError struct {
	Event string
	Data  []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}
