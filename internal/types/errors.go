package types

import "errors"

// Error taxonomy shared by every handler boundary. Callers wrap these with
// fmt.Errorf("...: %w", ErrX) and test with errors.Is.
var (
	// ErrValidation marks malformed command arguments. User-correctable;
	// surfaced as a usage message.
	ErrValidation = errors.New("validation error")

	// ErrServiceUnavailable marks transport failure or backoff exhaustion.
	// Never retried beyond the configured attempts.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrMalformedResponse marks an external payload with an unexpected shape.
	// A higher layer may safely retry with a rebuilt prompt.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrStore marks a durable-store read or write failure.
	ErrStore = errors.New("store error")

	// ErrNotReady is returned when input arrives before the session is Ready.
	ErrNotReady = errors.New("session not ready")

	// ErrBusy is returned when input arrives while a dispatch is in flight.
	ErrBusy = errors.New("dispatch in flight")
)
