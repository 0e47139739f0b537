package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"stealthcompany.com/symptomcheck/internal/models"
)

// NewDB opens a SQLite database and applies the connection pragmas.
//
// SQLite allows a single writer, so the pool is pinned to one connection; callers
// running inside a transaction must use the transaction handle, never the DB.
func NewDB(dsn string, debug bool) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	if _, err := db.Exec(`
        PRAGMA journal_mode = WAL;
        PRAGMA synchronous = NORMAL;
        PRAGMA foreign_keys = ON;
        PRAGMA busy_timeout = 5000;
    `); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return db, nil
}

// CreateSchema creates the four catalog tables and their indexes if missing.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	tables := []struct {
		model       interface{}
		foreignKeys []string
	}{
		{model: (*models.Symptom)(nil)},
		{model: (*models.Diagnosis)(nil)},
		{
			model:       (*models.Specialization)(nil),
			foreignKeys: []string{`("diagnosis_id") REFERENCES "diagnosis" ("id") ON DELETE CASCADE`},
		},
		{
			model:       (*models.CacheEntry)(nil),
			foreignKeys: []string{`("diagnosis_id") REFERENCES "diagnosis" ("id") ON DELETE CASCADE`},
		},
	}

	for _, tbl := range tables {
		q := db.NewCreateTable().Model(tbl.model).IfNotExists()
		for _, fk := range tbl.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_symptom_name ON symptom(name)",
		"CREATE INDEX IF NOT EXISTS idx_diagnosis_name_icd_accuracy ON diagnosis(name, icd, accuracy)",
		"CREATE INDEX IF NOT EXISTS idx_patient_info_symptoms ON patient_info(symptoms)",
		"CREATE INDEX IF NOT EXISTS idx_specialization_diagnosis ON diagnosis_specialization(diagnosis_id)",
	}
	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}
