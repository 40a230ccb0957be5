package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage maps an error to a message that can be shown in the
// UI. Internal detail stays in the logs.
func UserSafeMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "Der Datensatz wurde nicht gefunden."
	case errors.Is(err, ErrCSRFTokenMissing), errors.Is(err, ErrCSRFTokenMismatch):
		return "Die Sitzung ist abgelaufen. Bitte laden Sie die Seite neu und versuchen Sie es erneut."
	default:
		return "Die Anfrage konnte nicht verarbeitet werden. Bitte versuchen Sie es später erneut."
	}
}
