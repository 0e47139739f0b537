package diagnosis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/priaid"
	"stealthcompany.com/symptomcheck/internal/store"
	"stealthcompany.com/symptomcheck/internal/store/sqlstore"
)

func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	st, err := sqlstore.Open(context.Background(), "file::memory:", false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedSymptoms(t *testing.T, st store.Store, ids ...int) {
	t.Helper()
	symptoms := make([]models.Symptom, 0, len(ids))
	for _, id := range ids {
		symptoms = append(symptoms, models.Symptom{ID: id, Name: "symptom"})
	}
	if err := st.Symptoms().InsertIfAbsent(context.Background(), symptoms); err != nil {
		t.Fatalf("seed symptoms: %v", err)
	}
}

type fakeProvider struct {
	mu            sync.Mutex
	results       []priaid.DiagnosisResult
	symptoms      []priaid.Symptom
	err           error
	delay         time.Duration
	diagnoseCalls atomic.Int32
	symptomCalls  atomic.Int32
	lastSymptoms  []int
}

func (f *fakeProvider) Diagnose(ctx context.Context, symptoms []int, _ models.Gender, _ int) ([]priaid.DiagnosisResult, error) {
	f.diagnoseCalls.Add(1)
	f.mu.Lock()
	f.lastSymptoms = symptoms
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeProvider) Symptoms(context.Context) ([]priaid.Symptom, error) {
	f.symptomCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.symptoms, nil
}

// syncSink commits in the caller's goroutine so tests can observe writes immediately.
type syncSink struct {
	st   store.Store
	errs []error
}

func (s *syncSink) Submit(b Batch) {
	if err := Commit(context.Background(), s.st, b); err != nil {
		s.errs = append(s.errs, err)
	}
}

func fluResults() []priaid.DiagnosisResult {
	return []priaid.DiagnosisResult{
		{
			Issue: priaid.Issue{ID: 11, Name: "Flu", Accuracy: 89.6, Icd: "J10", IcdName: "Influenza", ProfName: "Influenza", Ranking: 1},
			Specialisation: []priaid.Specialisation{
				{ID: 15, Name: "General practice", SpecialistID: 0},
				{ID: 19, Name: "Internal medicine", SpecialistID: 0},
			},
		},
		{
			Issue:          priaid.Issue{ID: 281, Name: "Food poisoning", Accuracy: 40, Icd: "A05", IcdName: "Other bacterial foodborne intoxications", ProfName: "Foodborne illness", Ranking: 2},
			Specialisation: []priaid.Specialisation{{ID: 15, Name: "General practice", SpecialistID: 0}},
		},
	}
}

func TestResolveServesReorderedSymptomsFromCache(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 1, 2, 3)
	provider := &fakeProvider{results: fluResults()}
	sink := &syncSink{st: st}
	svc := NewService(st, provider, sink)

	first, err := svc.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{3, 1, 2}, Initiator: "a@b.c"})
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if len(sink.errs) > 0 {
		t.Fatalf("commit failed: %v", sink.errs)
	}
	if len(first) != 2 || first[0].Issue.ID != 11 {
		t.Fatalf("unexpected first results %+v", first)
	}
	if got := provider.lastSymptoms; len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("provider should receive sorted symptoms, got %v", got)
	}

	entries, err := st.Cache().Lookup(ctx, 1990, models.GenderMale, "1,2,3")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Initiator != "a@b.c" {
		t.Fatalf("expected 2 cache entries under key 1,2,3, got %+v", entries)
	}

	second, err := svc.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{2, 3, 1}, Initiator: "x@y.z"})
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if provider.diagnoseCalls.Load() != 1 {
		t.Errorf("expected cache hit, provider was called %d times", provider.diagnoseCalls.Load())
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 cached results, got %d", len(second))
	}

	flu := second[0]
	if flu.Issue.ID != 11 || flu.Issue.Gender != models.GenderMale || flu.Issue.YearOfBirth != 1990 {
		t.Errorf("cached issue not annotated: %+v", flu.Issue)
	}
	if flu.Issue.Valid == nil || *flu.Issue.Valid {
		t.Errorf("expected valid=false on a fresh diagnosis, got %v", flu.Issue.Valid)
	}
	if flu.Issue.Accuracy != 90 {
		t.Errorf("expected stored accuracy 90, got %v", flu.Issue.Accuracy)
	}
	if len(flu.Specialisation) != 2 || flu.Specialisation[0].ID != 15 {
		t.Errorf("unexpected cached specialisations %+v", flu.Specialisation)
	}

	// other demographics do not share the entry
	if _, err := svc.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderFemale, Symptoms: []int{1, 2, 3}}); err != nil {
		t.Fatal(err)
	}
	if provider.diagnoseCalls.Load() != 2 {
		t.Errorf("expected a miss for different gender, calls=%d", provider.diagnoseCalls.Load())
	}
}

func TestResolveKnownDiagnosisOnlyAppendsEntry(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 5)

	err := st.Diagnoses().InsertIfAbsent(ctx, []models.Diagnosis{{ID: 11, Name: "Flu (reviewed)", Valid: true}})
	if err != nil {
		t.Fatal(err)
	}
	err = st.Specializations().InsertIfAbsent(ctx, []models.Specialization{{DiagnosisID: 11, SpecializationID: 15, Name: "General practice"}})
	if err != nil {
		t.Fatal(err)
	}

	sink := &syncSink{st: st}
	svc := NewService(st, &fakeProvider{results: fluResults()}, sink)

	if _, err := svc.Resolve(ctx, Request{YearOfBirth: 1985, Gender: models.GenderFemale, Symptoms: []int{5}}); err != nil {
		t.Fatal(err)
	}
	if len(sink.errs) > 0 {
		t.Fatalf("commit failed: %v", sink.errs)
	}

	d, err := st.Diagnoses().FindByID(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if d.Name != "Flu (reviewed)" || !d.Valid {
		t.Errorf("existing diagnosis was modified: %+v", d)
	}
	specs, err := st.Specializations().ListByDiagnosis(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 1 {
		t.Errorf("existing diagnosis gained specializations: %+v", specs)
	}

	if _, err := st.Diagnoses().FindByID(ctx, 281); err != nil {
		t.Errorf("new diagnosis 281 should be stored: %v", err)
	}

	entries, err := st.Cache().Lookup(ctx, 1985, models.GenderFemale, "5")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].DiagnosisID != 11 || entries[1].DiagnosisID != 281 {
		t.Errorf("expected entries for 11 and 281 in provider order, got %+v", entries)
	}
}

func TestResolveUnknownSymptom(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 20)
	provider := &fakeProvider{results: fluResults()}
	svc := NewService(st, provider, &syncSink{st: st})

	_, err := svc.Resolve(ctx, Request{YearOfBirth: 1985, Gender: models.GenderFemale, Symptoms: []int{10, 20}})
	if !errors.Is(err, ErrUnknownSymptom) {
		t.Fatalf("expected ErrUnknownSymptom, got %v", err)
	}
	if provider.diagnoseCalls.Load() != 0 {
		t.Error("provider must not be called for unknown symptoms")
	}
	if entries, _ := st.Cache().Lookup(ctx, 1985, models.GenderFemale, "10,20"); len(entries) != 0 {
		t.Errorf("expected no writes, got %+v", entries)
	}
}

func TestResolveProviderFailure(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 1)
	svc := NewService(st, &fakeProvider{err: errors.New("connection refused")}, &syncSink{st: st})

	_, err := svc.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{1}})
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if ok, _ := st.Diagnoses().Exists(ctx, 11); ok {
		t.Error("nothing should be written on provider failure")
	}
}

func TestResolveDropsEntriesWithMissingDiagnosis(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 1)
	svc := NewService(st, &fakeProvider{results: fluResults()}, &syncSink{st: st})

	if _, err := svc.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{1}}); err != nil {
		t.Fatal(err)
	}

	hidden := NewService(hidingStore{Store: st, hidden: 11}, &fakeProvider{}, &syncSink{st: st})
	got, err := hidden.Resolve(ctx, Request{YearOfBirth: 1990, Gender: models.GenderMale, Symptoms: []int{1}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Issue.ID != 281 {
		t.Errorf("expected only diagnosis 281 after dropping 11, got %+v", got)
	}
}

// hidingStore reports one diagnosis as missing.
type hidingStore struct {
	store.Store
	hidden int
}

func (h hidingStore) Diagnoses() store.DiagnosisRepository {
	return hidingDiagnoses{DiagnosisRepository: h.Store.Diagnoses(), hidden: h.hidden}
}

type hidingDiagnoses struct {
	store.DiagnosisRepository
	hidden int
}

func (h hidingDiagnoses) FindByID(ctx context.Context, id int) (*models.Diagnosis, error) {
	if id == h.hidden {
		return nil, store.ErrNotFound
	}
	return h.DiagnosisRepository.FindByID(ctx, id)
}

func TestConcurrentMissesConverge(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	seedSymptoms(t, st, 1, 2)
	provider := &fakeProvider{results: fluResults(), delay: 50 * time.Millisecond}
	persister := NewPersister(st, PersisterConfig{Workers: 2, QueueSize: 8})
	persister.Start()
	svc := NewService(st, provider, persister)

	const callers = 4
	var wg sync.WaitGroup
	results := make([][]Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Resolve(ctx, Request{YearOfBirth: 2000, Gender: models.GenderFemale, Symptoms: []int{2, 1}})
		}(i)
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := persister.Shutdown(shutdownCtx); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if len(results[i]) != 2 || results[i][0].Issue.ID != 11 || results[i][1].Issue.ID != 281 {
			t.Errorf("caller %d got %+v", i, results[i])
		}
	}

	for _, id := range []int{11, 281} {
		specs, err := st.Specializations().ListByDiagnosis(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if (id == 11 && len(specs) != 2) || (id == 281 && len(specs) != 1) {
			t.Errorf("diagnosis %d has duplicated or missing specializations: %+v", id, specs)
		}
	}

	entries, err := st.Cache().Lookup(ctx, 2000, models.GenderFemale, "1,2")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected exactly 2 cache entries, got %d", len(entries))
	}
}

func TestSetReviewed(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	svc := NewService(st, &fakeProvider{}, &syncSink{st: st})

	if err := st.Diagnoses().InsertIfAbsent(ctx, []models.Diagnosis{{ID: 7, Name: "Migraine"}}); err != nil {
		t.Fatal(err)
	}

	if err := svc.SetReviewed(ctx, 7, true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetReviewed(ctx, 7, true); err != nil {
		t.Fatalf("second toggle should be idempotent: %v", err)
	}
	d, err := st.Diagnoses().FindByID(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Valid {
		t.Error("expected valid=true")
	}

	if err := svc.SetReviewed(ctx, 404, true); err != nil {
		t.Errorf("unknown id must not fail: %v", err)
	}
}

func TestSymptomsPopulatesOnce(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	provider := &fakeProvider{symptoms: []priaid.Symptom{{ID: 10, Name: "Abdominal pain"}, {ID: 238, Name: "Anxiety"}}}
	svc := NewService(st, provider, &syncSink{st: st})

	first, err := svc.Symptoms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("expected 2 symptoms, got %+v", first)
	}

	second, err := svc.Symptoms(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 2 || second[0].ID != 10 {
		t.Errorf("unexpected stored symptoms %+v", second)
	}
	if provider.symptomCalls.Load() != 1 {
		t.Errorf("expected one provider call, got %d", provider.symptomCalls.Load())
	}
}

func TestSymptomsProviderFailure(t *testing.T) {
	st := newTestStore(t)
	svc := NewService(st, &fakeProvider{err: errors.New("boom")}, &syncSink{st: st})

	if _, err := svc.Symptoms(context.Background()); !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
}
