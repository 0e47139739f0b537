package couchbase

import (
	"fmt"
	"strconv"
	"time"

	"stealthcompany.com/symptomcheck/internal/models"
)

// Document shapes stored in the scope collections. Keys are derived from the natural
// identity of each row so that Insert doubles as the uniqueness constraint.

type symptomDoc struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type diagnosisDoc struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	ProfName string `json:"prof_name"`
	Icd      string `json:"icd"`
	IcdName  string `json:"icd_name"`
	Accuracy int    `json:"accuracy"`
	Valid    bool   `json:"valid"`
}

type specializationDoc struct {
	DiagnosisID      int    `json:"diagnosis_id"`
	SpecializationID int    `json:"specialization_id"`
	Name             string `json:"name"`
	SpecialistID     int    `json:"specialist_id"`
	Position         int    `json:"position"`
}

type cacheEntryDoc struct {
	YearOfBirth int       `json:"year_of_birth"`
	Gender      string    `json:"gender"`
	Symptoms    string    `json:"symptoms"`
	DiagnosisID int       `json:"diagnosis_id"`
	Initiator   string    `json:"initiator"`
	Position    int       `json:"position"`
	CreatedAt   time.Time `json:"created_at"`
}

func symptomKey(id int) string { return strconv.Itoa(id) }

func diagnosisKey(id int) string { return strconv.Itoa(id) }

func specializationKey(diagnosisID, specializationID int) string {
	return fmt.Sprintf("%d::%d", diagnosisID, specializationID)
}

func cacheEntryKey(e models.CacheEntry) string {
	return fmt.Sprintf("%d::%s::%s::%d", e.YearOfBirth, e.Gender, e.Symptoms, e.DiagnosisID)
}

func toSymptomDoc(s models.Symptom) symptomDoc {
	return symptomDoc{ID: s.ID, Name: s.Name}
}

func (d symptomDoc) model() models.Symptom {
	return models.Symptom{ID: d.ID, Name: d.Name}
}

func toDiagnosisDoc(d models.Diagnosis) diagnosisDoc {
	return diagnosisDoc{
		ID:       d.ID,
		Name:     d.Name,
		ProfName: d.ProfName,
		Icd:      d.Icd,
		IcdName:  d.IcdName,
		Accuracy: d.Accuracy,
		Valid:    d.Valid,
	}
}

func (d diagnosisDoc) model() *models.Diagnosis {
	return &models.Diagnosis{
		ID:       d.ID,
		Name:     d.Name,
		ProfName: d.ProfName,
		Icd:      d.Icd,
		IcdName:  d.IcdName,
		Accuracy: d.Accuracy,
		Valid:    d.Valid,
	}
}

func toSpecializationDoc(s models.Specialization, position int) specializationDoc {
	return specializationDoc{
		DiagnosisID:      s.DiagnosisID,
		SpecializationID: s.SpecializationID,
		Name:             s.Name,
		SpecialistID:     s.SpecialistID,
		Position:         position,
	}
}

func (d specializationDoc) model() models.Specialization {
	return models.Specialization{
		DiagnosisID:      d.DiagnosisID,
		SpecializationID: d.SpecializationID,
		Name:             d.Name,
		SpecialistID:     d.SpecialistID,
	}
}

func toCacheEntryDoc(e models.CacheEntry, position int) cacheEntryDoc {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return cacheEntryDoc{
		YearOfBirth: e.YearOfBirth,
		Gender:      string(e.Gender),
		Symptoms:    e.Symptoms,
		DiagnosisID: e.DiagnosisID,
		Initiator:   e.Initiator,
		Position:    position,
		CreatedAt:   created,
	}
}

func (d cacheEntryDoc) model() models.CacheEntry {
	return models.CacheEntry{
		YearOfBirth: d.YearOfBirth,
		Gender:      models.Gender(d.Gender),
		Symptoms:    d.Symptoms,
		DiagnosisID: d.DiagnosisID,
		Initiator:   d.Initiator,
		CreatedAt:   d.CreatedAt,
	}
}
