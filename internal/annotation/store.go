// Package annotation maintains the local clinical-annotation cache: a
// queryable sqlite generation built from the bulk ClinVar summary dataset,
// replaced wholesale on each rebuild.
package annotation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/variantdb-pipeline/internal/domain"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS clinvar_summary (
	nc_accession TEXT NOT NULL,
	nm_hgvs TEXT NOT NULL,
	clinical_significance TEXT NOT NULL,
	conditions TEXT NOT NULL,
	stars INTEGER NOT NULL,
	review_status TEXT NOT NULL
);
`

const cacheIndex = `
CREATE INDEX IF NOT EXISTS idx_clinvar_accession_hgvs
	ON clinvar_summary(nc_accession, nm_hgvs);
`

// Store is a handle to one annotation cache generation.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens an existing cache generation for querying.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotation cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach annotation cache: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// createStore creates a fresh, empty generation file with the cache schema.
// The index is added after loading (see finalize) to keep the bulk insert
// fast.
func createStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotation cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// record is one normalized dataset row ready for loading.
type record struct {
	NCAccession          string
	NMHGVS               string
	ClinicalSignificance string
	Conditions           string
	Stars                domain.StarRating
	ReviewStatus         string
}

// loadBatch inserts records inside one transaction.
func (s *Store) loadBatch(ctx context.Context, records []record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cache load transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clinvar_summary
			(nc_accession, nm_hgvs, clinical_significance, conditions, stars, review_status)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare cache insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.NCAccession, r.NMHGVS, r.ClinicalSignificance, r.Conditions, int(r.Stars), r.ReviewStatus,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert cache record: %w", err)
		}
	}

	return tx.Commit()
}

// finalize builds the lookup index once all records are loaded.
func (s *Store) finalize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, cacheIndex); err != nil {
		return fmt.Errorf("failed to index annotation cache: %w", err)
	}
	return nil
}

// find returns the first record whose accession matches exactly and whose
// stored transcript HGVS begins with nmHGVS, tolerating stored names that
// carry suffix text beyond what the resolver returned. The boolean is false
// on a miss.
func (s *Store) find(ctx context.Context, ncAccession, nmHGVS string) (*domain.AnnotationRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT clinical_significance, conditions, stars, review_status
		FROM clinvar_summary
		WHERE nc_accession = ? AND nm_hgvs LIKE ? ESCAPE '\'
		LIMIT 1
	`, ncAccession, likePrefixPattern(nmHGVS))

	var rec domain.AnnotationRecord
	var stars int
	err := row.Scan(&rec.Classification, &rec.Conditions, &stars, &rec.ReviewStatus)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &domain.StoreError{Op: "annotation lookup", Err: err}
	}
	rec.Stars = domain.StarRating(stars)
	return &rec, true, nil
}

// Close releases the generation handle.
func (s *Store) Close() error {
	return s.db.Close()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefixPattern turns s into a LIKE prefix pattern, escaping the LIKE
// metacharacters (RefSeq accessions contain '_').
func likePrefixPattern(s string) string {
	return likeEscaper.Replace(s) + "%"
}
