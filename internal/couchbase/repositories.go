package couchbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/store"
)

// docOps is the small set of document operations the repositories need. It is
// implemented once on plain KV/N1QL calls and once inside a transaction attempt.
type docOps interface {
	get(ctx context.Context, collection, key string, out interface{}) error
	exists(ctx context.Context, collection, key string) (bool, error)
	insertIfAbsent(ctx context.Context, collection, key string, doc interface{}) error
	setField(ctx context.Context, collection, key, path string, value interface{}) error
	query(ctx context.Context, statement string, params []interface{}, onRow func(decode func(interface{}) error) error) error
}

// repositories binds the entity repositories to one docOps implementation.
type repositories struct {
	ops      docOps
	keyspace func(collection string) string
}

func (r repositories) Symptoms() store.SymptomRepository { return symptomRepo(r) }

func (r repositories) Diagnoses() store.DiagnosisRepository { return diagnosisRepo(r) }

func (r repositories) Specializations() store.SpecializationRepository {
	return specializationRepo(r)
}

func (r repositories) Cache() store.CacheRepository { return cacheRepo(r) }

type symptomRepo repositories

func (r symptomRepo) Exists(ctx context.Context, id int) (bool, error) {
	return r.ops.exists(ctx, SymptomCollection, symptomKey(id))
}

func (r symptomRepo) List(ctx context.Context) ([]models.Symptom, error) {
	stmt := fmt.Sprintf("SELECT s.id, s.name FROM %s AS s ORDER BY s.id", r.keyspace(SymptomCollection))

	var symptoms []models.Symptom
	err := r.ops.query(ctx, stmt, nil, func(decode func(interface{}) error) error {
		var doc symptomDoc
		if err := decode(&doc); err != nil {
			return err
		}
		symptoms = append(symptoms, doc.model())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	return symptoms, nil
}

func (r symptomRepo) InsertIfAbsent(ctx context.Context, symptoms []models.Symptom) error {
	for _, s := range symptoms {
		if err := r.ops.insertIfAbsent(ctx, SymptomCollection, symptomKey(s.ID), toSymptomDoc(s)); err != nil {
			return fmt.Errorf("insert symptom %d: %w", s.ID, err)
		}
	}
	return nil
}

type diagnosisRepo repositories

func (r diagnosisRepo) FindByID(ctx context.Context, id int) (*models.Diagnosis, error) {
	var doc diagnosisDoc
	if err := r.ops.get(ctx, DiagnosisCollection, diagnosisKey(id), &doc); err != nil {
		return nil, err
	}
	return doc.model(), nil
}

func (r diagnosisRepo) Exists(ctx context.Context, id int) (bool, error) {
	return r.ops.exists(ctx, DiagnosisCollection, diagnosisKey(id))
}

func (r diagnosisRepo) InsertIfAbsent(ctx context.Context, diagnoses []models.Diagnosis) error {
	for _, d := range diagnoses {
		if err := r.ops.insertIfAbsent(ctx, DiagnosisCollection, diagnosisKey(d.ID), toDiagnosisDoc(d)); err != nil {
			return fmt.Errorf("insert diagnosis %d: %w", d.ID, err)
		}
	}
	return nil
}

func (r diagnosisRepo) SetReviewed(ctx context.Context, id int, reviewed bool) error {
	if err := r.ops.setField(ctx, DiagnosisCollection, diagnosisKey(id), "valid", reviewed); err != nil {
		return fmt.Errorf("set diagnosis %d reviewed: %w", id, err)
	}
	return nil
}

type specializationRepo repositories

func (r specializationRepo) ListByDiagnosis(ctx context.Context, diagnosisID int) ([]models.Specialization, error) {
	stmt := fmt.Sprintf(
		"SELECT sp.* FROM %s AS sp WHERE sp.diagnosis_id = $1 ORDER BY sp.position, sp.specialization_id",
		r.keyspace(SpecializationCollection),
	)

	var specs []models.Specialization
	err := r.ops.query(ctx, stmt, []interface{}{diagnosisID}, func(decode func(interface{}) error) error {
		var doc specializationDoc
		if err := decode(&doc); err != nil {
			return err
		}
		specs = append(specs, doc.model())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list specializations for %d: %w", diagnosisID, err)
	}
	return specs, nil
}

func (r specializationRepo) InsertIfAbsent(ctx context.Context, specs []models.Specialization) error {
	for i, s := range specs {
		key := specializationKey(s.DiagnosisID, s.SpecializationID)
		if err := r.ops.insertIfAbsent(ctx, SpecializationCollection, key, toSpecializationDoc(s, i)); err != nil {
			return fmt.Errorf("insert specialization %s: %w", key, err)
		}
	}
	return nil
}

type cacheRepo repositories

func (r cacheRepo) Lookup(ctx context.Context, yearOfBirth int, gender models.Gender, symptoms string) ([]models.CacheEntry, error) {
	stmt := fmt.Sprintf(
		"SELECT p.* FROM %s AS p WHERE p.year_of_birth = $1 AND p.gender = $2 AND p.symptoms = $3 ORDER BY p.created_at, p.position",
		r.keyspace(CacheCollection),
	)

	var entries []models.CacheEntry
	err := r.ops.query(ctx, stmt, []interface{}{yearOfBirth, string(gender), symptoms}, func(decode func(interface{}) error) error {
		var doc cacheEntryDoc
		if err := decode(&doc); err != nil {
			return err
		}
		entries = append(entries, doc.model())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("lookup cache: %w", err)
	}
	return entries, nil
}

func (r cacheRepo) Append(ctx context.Context, entries []models.CacheEntry) error {
	for i, e := range entries {
		key := cacheEntryKey(e)
		if err := r.ops.insertIfAbsent(ctx, CacheCollection, key, toCacheEntryDoc(e, i)); err != nil {
			return fmt.Errorf("append cache entry %s: %w", key, err)
		}
	}
	return nil
}

// rawExists decodes into a throwaway value; used where only presence matters.
func rawExists(ctx context.Context, ops docOps, collection, key string) (bool, error) {
	var raw json.RawMessage
	err := ops.get(ctx, collection, key, &raw)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
