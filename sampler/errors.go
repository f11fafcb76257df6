package sampler

import (
	"errors"
	"fmt"
)

// NumPads is the size of the pad grid.
const NumPads = 9

// ErrInvalidPad is returned for pad numbers outside 1..NumPads.
var ErrInvalidPad = errors.New("pad number out of range")

// DecodeError reports that a pad's audio could not be fetched or decoded.
// Only the affected pad becomes unusable.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CheckPad validates a 1-based pad number.
func CheckPad(n int) error {
	if n < 1 || n > NumPads {
		return fmt.Errorf("%w: %d", ErrInvalidPad, n)
	}
	return nil
}
