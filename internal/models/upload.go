package models

// UploadState is the lifecycle position of a single upload attempt
type UploadState string

const (
	UploadStateIdle         UploadState = "idle"
	UploadStateSubmitting   UploadState = "submitting"
	UploadStateSucceeded    UploadState = "succeeded"
	UploadStateFailed       UploadState = "failed"
	UploadStateAwaitingAuth UploadState = "awaiting_auth"
)

// IsTerminal reports whether no further transition happens without user action
func (s UploadState) IsTerminal() bool {
	return s == UploadStateSucceeded || s == UploadStateFailed
}

// CanTransition returns true if the state machine allows moving from s to next.
// AwaitingAuth re-enters Submitting when the login redirect returns.
func (s UploadState) CanTransition(next UploadState) bool {
	switch s {
	case UploadStateIdle:
		return next == UploadStateSubmitting
	case UploadStateSubmitting:
		return next == UploadStateSucceeded || next == UploadStateFailed || next == UploadStateAwaitingAuth
	case UploadStateAwaitingAuth:
		return next == UploadStateSubmitting
	default:
		return false
	}
}
