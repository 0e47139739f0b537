// Package sqlstore is the bun-backed relational store.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"stealthcompany.com/symptomcheck/internal/database"
	"stealthcompany.com/symptomcheck/internal/models"
	"stealthcompany.com/symptomcheck/internal/store"
)

// Store implements store.Store on top of a bun database.
type Store struct {
	db *bun.DB
	repositories
}

// Open connects to the SQLite database at dsn and creates the schema.
func Open(ctx context.Context, dsn string, debug bool) (*Store, error) {
	db, err := database.NewDB(dsn, debug)
	if err != nil {
		return nil, err
	}
	if err := database.CreateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an existing bun database. The schema must already exist.
func New(db *bun.DB) *Store {
	return &Store{db: db, repositories: repositories{idb: db}}
}

// WithinTx runs fn inside a single database transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Repositories) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, repositories{idb: tx})
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// repositories binds every entity repository to one bun.IDB (the DB or a Tx).
type repositories struct {
	idb bun.IDB
}

func (r repositories) Symptoms() store.SymptomRepository { return symptomRepo{r.idb} }

func (r repositories) Diagnoses() store.DiagnosisRepository { return diagnosisRepo{r.idb} }

func (r repositories) Specializations() store.SpecializationRepository {
	return specializationRepo{r.idb}
}

func (r repositories) Cache() store.CacheRepository { return cacheRepo{r.idb} }

type symptomRepo struct{ idb bun.IDB }

func (r symptomRepo) Exists(ctx context.Context, id int) (bool, error) {
	ok, err := r.idb.NewSelect().Model((*models.Symptom)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check symptom %d: %w", id, err)
	}
	return ok, nil
}

func (r symptomRepo) List(ctx context.Context) ([]models.Symptom, error) {
	var symptoms []models.Symptom
	if err := r.idb.NewSelect().Model(&symptoms).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list symptoms: %w", err)
	}
	return symptoms, nil
}

func (r symptomRepo) InsertIfAbsent(ctx context.Context, symptoms []models.Symptom) error {
	if len(symptoms) == 0 {
		return nil
	}
	if _, err := r.idb.NewInsert().Model(&symptoms).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert symptoms: %w", err)
	}
	return nil
}

type diagnosisRepo struct{ idb bun.IDB }

func (r diagnosisRepo) FindByID(ctx context.Context, id int) (*models.Diagnosis, error) {
	d := new(models.Diagnosis)
	err := r.idb.NewSelect().Model(d).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find diagnosis %d: %w", id, err)
	}
	return d, nil
}

func (r diagnosisRepo) Exists(ctx context.Context, id int) (bool, error) {
	ok, err := r.idb.NewSelect().Model((*models.Diagnosis)(nil)).Where("id = ?", id).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check diagnosis %d: %w", id, err)
	}
	return ok, nil
}

func (r diagnosisRepo) InsertIfAbsent(ctx context.Context, diagnoses []models.Diagnosis) error {
	if len(diagnoses) == 0 {
		return nil
	}
	if _, err := r.idb.NewInsert().Model(&diagnoses).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return fmt.Errorf("insert diagnoses: %w", err)
	}
	return nil
}

func (r diagnosisRepo) SetReviewed(ctx context.Context, id int, reviewed bool) error {
	_, err := r.idb.NewUpdate().
		Model((*models.Diagnosis)(nil)).
		Set("valid = ?", reviewed).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set diagnosis %d reviewed: %w", id, err)
	}
	return nil
}

type specializationRepo struct{ idb bun.IDB }

func (r specializationRepo) ListByDiagnosis(ctx context.Context, diagnosisID int) ([]models.Specialization, error) {
	var specs []models.Specialization
	err := r.idb.NewSelect().
		Model(&specs).
		Where("diagnosis_id = ?", diagnosisID).
		OrderExpr("p_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specializations for %d: %w", diagnosisID, err)
	}
	return specs, nil
}

func (r specializationRepo) InsertIfAbsent(ctx context.Context, specs []models.Specialization) error {
	if len(specs) == 0 {
		return nil
	}
	_, err := r.idb.NewInsert().
		Model(&specs).
		On("CONFLICT (diagnosis_id, specialization_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert specializations: %w", err)
	}
	return nil
}

type cacheRepo struct{ idb bun.IDB }

func (r cacheRepo) Lookup(ctx context.Context, yearOfBirth int, gender models.Gender, symptoms string) ([]models.CacheEntry, error) {
	var entries []models.CacheEntry
	err := r.idb.NewSelect().
		Model(&entries).
		Where("year_of_birth = ?", yearOfBirth).
		Where("gender = ?", gender).
		Where("symptoms = ?", symptoms).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("lookup cache: %w", err)
	}
	return entries, nil
}

func (r cacheRepo) Append(ctx context.Context, entries []models.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range entries {
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
	}
	_, err := r.idb.NewInsert().
		Model(&entries).
		On("CONFLICT (year_of_birth, gender, symptoms, diagnosis_id) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("append cache entries: %w", err)
	}
	return nil
}

var _ store.Store = (*Store)(nil)
