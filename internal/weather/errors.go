package weather

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when geocoding yields no match for a city.
	ErrNotFound = errors.New("location not found")

	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("transport failure")

	// ErrNoBaseline marks a (city, season) pair without historical statistics.
	// Classification treats it as not anomalous.
	ErrNoBaseline = errors.New("no baseline available")

	// ErrMalformedInput marks historical rows that had to be coerced or skipped.
	ErrMalformedInput = errors.New("malformed input")

	// ErrConflictingBaseline is returned when two different baselines exist for
	// the same (city, season).
	ErrConflictingBaseline = errors.New("conflicting baselines")

	// ErrConfig aborts a run before any task starts.
	ErrConfig = errors.New("invalid configuration")

	// ErrTaskPanic wraps a panic recovered from a per-city task.
	ErrTaskPanic = errors.New("task panicked")
)

// TransportError describes a failed call to the weather provider: either the
// request never completed (Err set) or the provider answered with a
// non-success status (StatusCode set, Message from the error payload).
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": transport failure"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Error kinds reported on failed outcomes.
const (
	KindNotFound  = "not_found"
	KindTransport = "transport"
	KindConfig    = "config"
	KindInternal  = "internal"
)

// KindOf maps an error to the kind reported to consumers.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrConfig):
		return KindConfig
	default:
		return KindInternal
	}
}
