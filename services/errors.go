package services

import "errors"

// Fehler-Taxonomie des Kerns. Die HTTP-Schicht übersetzt die Kategorien in
// Statuscodes; Autorisierungs- und Not-Found-Fehler bleiben getrennt.
var (
	// ErrNotFound: die referenzierte ID hat keinen Datensatz.
	ErrNotFound = errors.New("record not found")
	// ErrForbidden: Rollen-, Besitz- oder Statusprüfung fehlgeschlagen.
	ErrForbidden = errors.New("not authorized")
	// ErrConflict: Unique-Verletzung oder verlorenes Statusübergangs-Rennen.
	ErrConflict = errors.New("conflict")
	// ErrInvalidCredentials: Login fehlgeschlagen, bewusst ohne Unterscheidung
	// zwischen unbekannter E-Mail und falschem Passwort.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotReviewable: Publikation ist aktuell nicht im reviewbaren Zustand.
	ErrNotReviewable = errors.New("publication is not currently pending review")
)

// ValidationError trägt eine an den Aufrufer gerichtete Meldung. Der Aufrufer
// kann den Fehler durch korrigierte Eingabe beheben.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError erstellt einen Validierungsfehler mit Meldung.
func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

// IsValidationError prüft, ob err ein Validierungsfehler ist.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
