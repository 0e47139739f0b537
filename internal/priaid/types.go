package priaid

// Issue is the diagnosis descriptor of one provider result.
type Issue struct {
	ID       int     `json:"ID"`
	Name     string  `json:"Name"`
	Accuracy float64 `json:"Accuracy"`
	Icd      string  `json:"Icd"`
	IcdName  string  `json:"IcdName"`
	ProfName string  `json:"ProfName"`
	Ranking  int     `json:"Ranking"`
}

// Specialisation is a specialty the provider associates with an issue.
type Specialisation struct {
	ID           int    `json:"ID"`
	Name         string `json:"Name"`
	SpecialistID int    `json:"SpecialistID"`
}

// DiagnosisResult is one element of the provider's /diagnosis response.
type DiagnosisResult struct {
	Issue          Issue            `json:"Issue"`
	Specialisation []Specialisation `json:"Specialisation"`
}

// Symptom is one element of the provider's /symptoms response.
type Symptom struct {
	ID   int    `json:"ID"`
	Name string `json:"Name"`
}

type authResponse struct {
	Token        string `json:"Token"`
	ValidThrough int    `json:"ValidThrough"`
}
