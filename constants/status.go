package constants

// SessionState is the lifecycle state of one upload session.
type SessionState string

const (
	StateIdle               SessionState = "IDLE"
	StateFileSelected       SessionState = "FILE_SELECTED"
	StateExtracting         SessionState = "EXTRACTING"          // gateway call in flight
	StateAwaitingCorrection SessionState = "AWAITING_CORRECTION" // fields shown for manual correction
	StateSubmitting         SessionState = "SUBMITTING"          // handoff in flight
	StateCompleted          SessionState = "COMPLETED"
	StateFailed             SessionState = "FAILED" // transport or handoff failure, retryable
)

// Busy reports whether an extraction or submission is in flight.
func (s SessionState) Busy() bool {
	return s == StateExtracting || s == StateSubmitting
}
