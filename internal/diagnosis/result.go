package diagnosis

import (
	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/priaid"
)

// Issue is the diagnosis half of a result. Cache hits carry the stored review flag and
// the demographics they were requested for.
type Issue struct {
	ID          int           `json:"ID"`
	Name        string        `json:"Name"`
	Accuracy    float64       `json:"Accuracy"`
	Icd         string        `json:"Icd"`
	IcdName     string        `json:"IcdName"`
	ProfName    string        `json:"ProfName"`
	Ranking     int           `json:"Ranking,omitempty"`
	Valid       *bool         `json:"valid,omitempty"`
	Gender      models.Gender `json:"gender,omitempty"`
	YearOfBirth int           `json:"year_of_birth,omitempty"`
}

type Specialisation struct {
	ID           int    `json:"ID"`
	Name         string `json:"Name"`
	SpecialistID int    `json:"SpecialistID"`
}

// Result is one issue with its specialisations, in the shape the provider uses.
type Result struct {
	Issue          Issue            `json:"Issue"`
	Specialisation []Specialisation `json:"Specialisation"`
}

func resultFromProvider(r priaid.DiagnosisResult) Result {
	specs := make([]Specialisation, 0, len(r.Specialisation))
	for _, s := range r.Specialisation {
		specs = append(specs, Specialisation{ID: s.ID, Name: s.Name, SpecialistID: s.SpecialistID})
	}
	return Result{
		Issue: Issue{
			ID:       r.Issue.ID,
			Name:     r.Issue.Name,
			Accuracy: r.Issue.Accuracy,
			Icd:      r.Issue.Icd,
			IcdName:  r.Issue.IcdName,
			ProfName: r.Issue.ProfName,
			Ranking:  r.Issue.Ranking,
		},
		Specialisation: specs,
	}
}

func resultFromCatalog(d *models.Diagnosis, specs []models.Specialization, gender models.Gender, yearOfBirth int) Result {
	valid := d.Valid
	out := make([]Specialisation, 0, len(specs))
	for _, s := range specs {
		out = append(out, Specialisation{ID: s.SpecializationID, Name: s.Name, SpecialistID: s.SpecialistID})
	}
	return Result{
		Issue: Issue{
			ID:          d.ID,
			Name:        d.Name,
			Accuracy:    float64(d.Accuracy),
			Icd:         d.Icd,
			IcdName:     d.IcdName,
			ProfName:    d.ProfName,
			Valid:       &valid,
			Gender:      gender,
			YearOfBirth: yearOfBirth,
		},
		Specialisation: out,
	}
}
