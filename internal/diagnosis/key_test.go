package diagnosis

import (
	"context"
	"errors"
	"testing"
	"time"

	"stealthcompany.com/symptomcheck/internal/models"
)

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name string
		ids  []int
		want string
	}{
		{"single", []int{7}, "7"},
		{"sorted", []int{1, 2, 3}, "1,2,3"},
		{"reversed", []int{3, 2, 1}, "1,2,3"},
		{"shuffled", []int{2, 3, 1}, "1,2,3"},
		{"numeric not lexical", []int{10, 9, 100}, "9,10,100"},
		{"duplicates kept", []int{2, 1, 2}, "1,2,2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanonicalKey(tt.ids); got != tt.want {
				t.Errorf("CanonicalKey(%v) = %q, want %q", tt.ids, got, tt.want)
			}
		})
	}
}

func TestCanonicalKeyDoesNotMutateInput(t *testing.T) {
	ids := []int{3, 1, 2}
	_ = CanonicalKey(ids)
	if ids[0] != 3 || ids[1] != 1 || ids[2] != 2 {
		t.Errorf("input was reordered: %v", ids)
	}
}

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"valid", Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{1}}, ""},
		{"nothing provided", Request{}, "message"},
		{"zero year", Request{Gender: models.GenderMale, Symptoms: []int{1}}, "year_of_birth"},
		{"future year", Request{YearOfBirth: time.Now().Year() + 1, Gender: models.GenderMale, Symptoms: []int{1}}, "year_of_birth"},
		{"bad gender", Request{YearOfBirth: 1990, Gender: "other", Symptoms: []int{1}}, "gender"},
		{"no symptoms", Request{YearOfBirth: 1990, Gender: models.GenderFemale}, "symptoms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Error("expected error to match ErrInvalidInput")
			}
		})
	}
}

func TestValidateSymptoms(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 1, 2, 3)

	if err := ValidateSymptoms(ctx, st.Symptoms(), []int{3, 1}); err != nil {
		t.Errorf("expected known symptoms to pass, got %v", err)
	}
	if err := ValidateSymptoms(ctx, st.Symptoms(), []int{1, 42, 2}); !errors.Is(err, ErrUnknownSymptom) {
		t.Errorf("expected ErrUnknownSymptom, got %v", err)
	}
	if err := ValidateSymptoms(ctx, st.Symptoms(), nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty list, got %v", err)
	}

	ok, err := SymptomsValid(ctx, st.Symptoms(), []int{2, 2})
	if err != nil || !ok {
		t.Errorf("expected duplicates of a known id to be valid, ok=%v err=%v", ok, err)
	}
}
