package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound = errors.New("not_found")
	ErrConflict = errors.New("conflict")
	ErrInvalid  = errors.New("invalid")
	// ErrUnauthorized is returned when an access code or session token is rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidReading covers negative, non-finite and decreasing odometer values.
	ErrInvalidReading = errors.New("invalid_reading")
	// ErrNothingToUndo means history holds no entry-type record.
	ErrNothingToUndo = errors.New("nothing_to_undo")
	// ErrInvalidSettings covers a non-positive price or a negative starting odometer.
	ErrInvalidSettings = errors.New("invalid_settings")
	// ErrUnknownParticipant means the acting user is not one of the configured pair.
	ErrUnknownParticipant = errors.New("unknown_participant")
	// ErrStoreUnavailable wraps any load/save/append/remove failure.
	ErrStoreUnavailable = errors.New("store_unavailable")
)

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidReading) ||
		errors.Is(err, ErrNothingToUndo) ||
		errors.Is(err, ErrInvalidSettings) ||
		errors.Is(err, ErrUnknownParticipant) ||
		errors.Is(err, ErrInvalid)
}
