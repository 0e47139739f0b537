package diagnosis

import (
	"context"
	"fmt"

	"stealthcompany.com/symptomcheck/internal/store"
)

// SymptomsValid reports whether every id exists, stopping at the first miss.
func SymptomsValid(ctx context.Context, symptoms store.SymptomRepository, ids []int) (bool, error) {
	for _, id := range ids {
		ok, err := symptoms.Exists(ctx, id)
		if err != nil {
			return false, fmt.Errorf("check symptom %d: %w", id, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ValidateSymptoms rejects an empty list with ErrInvalidInput and any unknown id with
// ErrUnknownSymptom. The list is accepted or rejected as a whole.
func ValidateSymptoms(ctx context.Context, symptoms store.SymptomRepository, ids []int) error {
	if len(ids) == 0 {
		return invalid("symptoms", msgInvalidSymptoms)
	}
	ok, err := SymptomsValid(ctx, symptoms, ids)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSymptom
	}
	return nil
}
