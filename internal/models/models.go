package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Gender of the patient a diagnosis was requested for.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// ParseGender accepts male/female in any case.
func ParseGender(s string) (Gender, error) {
	switch g := Gender(strings.ToLower(strings.TrimSpace(s))); g {
	case GenderMale, GenderFemale:
		return g, nil
	default:
		return "", fmt.Errorf("gender must be male or female, got %q", s)
	}
}

// Symptom is provider reference data.
type Symptom struct {
	bun.BaseModel `bun:"table:symptom,alias:sy"`

	ID   int    `bun:"id,pk" json:"ID"`
	Name string `bun:"name,notnull" json:"Name"`
}

// Diagnosis is a catalog entry. ID comes from the provider and is never generated locally.
type Diagnosis struct {
	bun.BaseModel `bun:"table:diagnosis,alias:d"`

	ID       int    `bun:"id,pk" json:"ID"`
	Name     string `bun:"name,notnull" json:"Name"`
	ProfName string `bun:"prof_name,notnull" json:"ProfName"`
	Icd      string `bun:"icd,notnull" json:"Icd"`
	IcdName  string `bun:"icd_name,notnull" json:"IcdName"`
	Accuracy int    `bun:"accuracy,notnull" json:"Accuracy"`
	Valid    bool   `bun:"valid,notnull" json:"valid"`
}

// Specialization maps a diagnosis to a medical specialty.
type Specialization struct {
	bun.BaseModel `bun:"table:diagnosis_specialization,alias:ds"`

	PKey             int64  `bun:"p_key,pk,autoincrement" json:"-"`
	DiagnosisID      int    `bun:"diagnosis_id,notnull,unique:diagnosis_specialization_key" json:"diagnosis"`
	SpecializationID int    `bun:"specialization_id,notnull,unique:diagnosis_specialization_key" json:"ID"`
	Name             string `bun:"name,notnull" json:"Name"`
	SpecialistID     int    `bun:"specialist_id,notnull" json:"SpecialistID"`
}

// CacheEntry binds one (demographics, symptoms) query to one resolved diagnosis.
type CacheEntry struct {
	bun.BaseModel `bun:"table:patient_info,alias:pi"`

	ID          int64     `bun:"id,pk,autoincrement" json:"-"`
	YearOfBirth int       `bun:"year_of_birth,notnull,unique:patient_info_key" json:"year_of_birth"`
	Gender      Gender    `bun:"gender,notnull,unique:patient_info_key" json:"gender"`
	Symptoms    string    `bun:"symptoms,notnull,unique:patient_info_key" json:"symptoms"`
	DiagnosisID int       `bun:"diagnosis_id,notnull,unique:patient_info_key" json:"diagnosis"`
	Initiator   string    `bun:"initiator,notnull" json:"initiator"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}
