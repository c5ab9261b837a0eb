package codec

import "fmt"

// DecodeError means a codec rejected its input: truncated bytes, an
// unexpected type tag, a non-canonical encoding, or trailing garbage.
type DecodeError struct {
	Code   uint64
	Reason string
	Cause  error
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec 0x%x: %s: %s", e.Code, e.Reason, e.Cause)
	}
	return fmt.Sprintf("codec 0x%x: %s", e.Code, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
