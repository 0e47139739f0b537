package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/symptomcheck/internal/diagnosis"
	"stealthcompany.com/symptomcheck/internal/models"
)

// Resolver is the diagnosis engine as seen by the HTTP layer
type Resolver interface {
	Resolve(ctx context.Context, req diagnosis.Request) ([]diagnosis.Result, error)
	SetReviewed(ctx context.Context, id int, reviewed bool) error
	Symptoms(ctx context.Context) ([]models.Symptom, error)
}

// Handlers serves the diagnosis endpoints
type Handlers struct {
	resolver Resolver
}

func NewHandlers(resolver Resolver) *Handlers {
	return &Handlers{resolver: resolver}
}

// HealthHandler reports liveness
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Diagnose handles POST /diagnose
func (h *Handlers) Diagnose(w http.ResponseWriter, r *http.Request) {
	req, verr := decodeDiagnoseRequest(r)
	if verr != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{verr.Field: verr.Message})
		return
	}

	principal, err := GetPrincipalFromContext(r.Context())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": ErrAuthorizationFailed})
		return
	}
	req.Initiator = principal

	results, err := h.resolver.Resolve(r.Context(), req)
	if err != nil {
		writeResolveError(w, r, err)
		return
	}

	log.Info().
		Str("principal", principal).
		Int("yearOfBirth", req.YearOfBirth).
		Str("gender", string(req.Gender)).
		Int("issues", len(results)).
		Msg("Diagnosis resolved")

	writeJSON(w, http.StatusOK, results)
}

// ValidateDiagnosis handles PUT /diagnosis/validate?valid=true|false. Anything other
// than "true" clears the flag; a missing, malformed or unknown id is a successful no-op.
func (h *Handlers) ValidateDiagnosis(w http.ResponseWriter, r *http.Request) {
	reviewed := strings.EqualFold(r.URL.Query().Get("valid"), "true")

	// an empty body or an id that is not a number leaves nothing to update
	var body ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		log.Debug().Err(err).Msg("Ignoring undecodable review request")
		body.ID = nil
	}
	if body.ID == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	if err := h.resolver.SetReviewed(r.Context(), int(*body.ID), reviewed); err != nil {
		log.Error().Err(err).Int("diagnosisID", int(*body.ID)).Msg("Failed to update review flag")
		writeJSON(w, http.StatusInternalServerError, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

// ListSymptoms handles GET /symptoms
func (h *Handlers) ListSymptoms(w http.ResponseWriter, r *http.Request) {
	symptoms, err := h.resolver.Symptoms(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list symptoms")
		writeJSON(w, http.StatusInternalServerError, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, symptoms)
}

func decodeDiagnoseRequest(r *http.Request) (diagnosis.Request, *diagnosis.ValidationError) {
	var body DiagnoseRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, errNotInteger) {
			return diagnosis.Request{}, &diagnosis.ValidationError{Field: "year_of_birth", Message: MsgInvalidYear}
		}
		return diagnosis.Request{}, &diagnosis.ValidationError{Field: "message", Message: MsgMissingFields}
	}
	if body.YearOfBirth == nil || body.Gender == nil || len(body.Symptoms) == 0 || string(body.Symptoms) == "null" {
		return diagnosis.Request{}, &diagnosis.ValidationError{Field: "message", Message: MsgMissingFields}
	}

	gender, err := models.ParseGender(*body.Gender)
	if err != nil {
		return diagnosis.Request{}, &diagnosis.ValidationError{Field: "gender", Message: MsgInvalidGender}
	}

	var raw []flexInt
	if err := json.Unmarshal(body.Symptoms, &raw); err != nil {
		if errors.Is(err, errNotInteger) {
			return diagnosis.Request{}, &diagnosis.ValidationError{Field: "symptoms", Message: MsgInvalidSymptoms}
		}
		return diagnosis.Request{}, &diagnosis.ValidationError{Field: "symptoms", Message: MsgSymptomsNotArray}
	}
	if len(raw) == 0 {
		return diagnosis.Request{}, &diagnosis.ValidationError{Field: "symptoms", Message: MsgSymptomsNotArray}
	}

	symptoms := make([]int, len(raw))
	for i, v := range raw {
		symptoms[i] = int(v)
	}

	return diagnosis.Request{
		YearOfBirth: int(*body.YearOfBirth),
		Gender:      gender,
		Symptoms:    symptoms,
	}, nil
}

func writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *diagnosis.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{verr.Field: verr.Message})
	case errors.Is(err, diagnosis.ErrInvalidInput):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": err.Error()})
	case errors.Is(err, diagnosis.ErrUnknownSymptom):
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": MsgUnknownSymptoms})
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg(LogResolveFailed)
		writeJSON(w, http.StatusInternalServerError, struct{}{})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
