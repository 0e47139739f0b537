package diagnosis

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownSymptom  = errors.New("provided symptoms are not valid")
	ErrExternalService = errors.New("external diagnosis service failed")
	ErrPersistence     = errors.New("failed to persist diagnosis results")
)

// Field validation messages
const (
	msgMissingFields   = "year_of_birth, gender and symptoms must be provided."
	msgInvalidYear     = "year_of_birth must be a valid year."
	msgInvalidGender   = "Gender must be male or female."
	msgInvalidSymptoms = "Symptoms must be an array of numbers."
)

// ValidationError reports which request field was rejected. It matches ErrInvalidInput.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
