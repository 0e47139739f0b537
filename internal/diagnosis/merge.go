package diagnosis

import (
	"context"
	"fmt"
	"math"
	"time"

	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/priaid"
	"stealthcompany.com/symptomcheck/internal/store"
)

// Query identifies one resolution: who asked, for which demographics and canonical key.
type Query struct {
	YearOfBirth int
	Gender      models.Gender
	Key         string
	Initiator   string
}

// Batch holds the rows staged by one resolution, committed together by Commit.
type Batch struct {
	Diagnoses       []models.Diagnosis
	Specializations []models.Specialization
	Entries         []models.CacheEntry
}

// Empty reports whether there is nothing to write
func (b Batch) Empty() bool {
	return len(b.Diagnoses) == 0 && len(b.Specializations) == 0 && len(b.Entries) == 0
}

// Merge walks the provider results in order. Unknown diagnoses are staged with their
// specialisations; every result gets a cache entry whether or not its diagnosis was new.
// A diagnosis repeated within one response is staged once.
func Merge(ctx context.Context, catalog store.DiagnosisRepository, q Query, results []priaid.DiagnosisResult) (Batch, []Result, error) {
	var batch Batch
	out := make([]Result, 0, len(results))
	staged := make(map[int]bool, len(results))
	createdAt := time.Now().UTC()

	for _, r := range results {
		out = append(out, resultFromProvider(r))

		id := r.Issue.ID
		if _, seen := staged[id]; !seen {
			exists, err := catalog.Exists(ctx, id)
			if err != nil {
				return Batch{}, nil, fmt.Errorf("check diagnosis %d: %w", id, err)
			}
			if !exists {
				batch.Diagnoses = append(batch.Diagnoses, diagnosisFromIssue(r.Issue))
				for _, s := range r.Specialisation {
					batch.Specializations = append(batch.Specializations, models.Specialization{
						DiagnosisID:      id,
						SpecializationID: s.ID,
						Name:             s.Name,
						SpecialistID:     s.SpecialistID,
					})
				}
			}
			batch.Entries = append(batch.Entries, models.CacheEntry{
				YearOfBirth: q.YearOfBirth,
				Gender:      q.Gender,
				Symptoms:    q.Key,
				DiagnosisID: id,
				Initiator:   q.Initiator,
				CreatedAt:   createdAt,
			})
			staged[id] = true
		}
	}

	return batch, out, nil
}

func diagnosisFromIssue(i priaid.Issue) models.Diagnosis {
	return models.Diagnosis{
		ID:       i.ID,
		Name:     i.Name,
		ProfName: i.ProfName,
		Icd:      i.Icd,
		IcdName:  i.IcdName,
		Accuracy: int(math.Round(i.Accuracy)),
		Valid:    false,
	}
}

// Commit writes a batch in one transaction: diagnoses, then specialisations, then cache
// entries. A diagnosis that became visible since Merge ran is skipped together with
// its specialisations, so an existing diagnosis never gains new ones.
func Commit(ctx context.Context, st store.Store, b Batch) error {
	if b.Empty() {
		return nil
	}

	err := st.WithinTx(ctx, func(ctx context.Context, tx store.Repositories) error {
		fresh := make(map[int]bool, len(b.Diagnoses))
		diagnoses := make([]models.Diagnosis, 0, len(b.Diagnoses))
		for _, d := range b.Diagnoses {
			exists, err := tx.Diagnoses().Exists(ctx, d.ID)
			if err != nil {
				return err
			}
			if !exists {
				fresh[d.ID] = true
				diagnoses = append(diagnoses, d)
			}
		}

		specs := make([]models.Specialization, 0, len(b.Specializations))
		for _, s := range b.Specializations {
			if fresh[s.DiagnosisID] {
				specs = append(specs, s)
			}
		}

		if len(diagnoses) > 0 {
			if err := tx.Diagnoses().InsertIfAbsent(ctx, diagnoses); err != nil {
				return err
			}
		}
		if len(specs) > 0 {
			if err := tx.Specializations().InsertIfAbsent(ctx, specs); err != nil {
				return err
			}
		}
		if len(b.Entries) > 0 {
			if err := tx.Cache().Append(ctx, b.Entries); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
