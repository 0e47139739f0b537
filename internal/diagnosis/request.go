package diagnosis

import (
	"time"

	"stealthcompany.com/symptomcheck/internal/models"
)

// Request is one POST /diagnose call after decoding
type Request struct {
	YearOfBirth int
	Gender      models.Gender
	Symptoms    []int
	Initiator   string
}

// Validate checks the demographics and symptom shape. It does not touch the store.
func (r Request) Validate() error {
	if r.YearOfBirth == 0 && r.Gender == "" && len(r.Symptoms) == 0 {
		return invalid("message", msgMissingFields)
	}
	if r.YearOfBirth < 1 || r.YearOfBirth > time.Now().Year() {
		return invalid("year_of_birth", msgInvalidYear)
	}
	if _, err := models.ParseGender(string(r.Gender)); err != nil {
		return invalid("gender", msgInvalidGender)
	}
	if len(r.Symptoms) == 0 {
		return invalid("symptoms", msgInvalidSymptoms)
	}
	return nil
}
