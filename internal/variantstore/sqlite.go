package variantstore

import (
	"context"
	"database/sql"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
)

const (
	sqliteInsertPatientVariant = `
		INSERT OR IGNORE INTO patient_variant (patient_ID, variant)
		VALUES (?, ?)`

	sqliteUpsertAnnotation = `
		INSERT INTO variant_annotations
			(variant_NC, variant_NM, variant_NP, gene, HGNC_ID,
			 Classification, Conditions, Stars, Review_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(variant_NC, variant_NM, variant_NP) DO UPDATE SET
			gene = excluded.gene,
			HGNC_ID = excluded.HGNC_ID,
			Classification = excluded.Classification,
			Conditions = excluded.Conditions,
			Stars = excluded.Stars,
			Review_status = excluded.Review_status`
)

// SQLiteStore is the file-backed variant store.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  *logrus.Logger
}

// NewSQLiteStore wraps an open, migrated sqlite handle. path is retained so
// Destroy can remove the file.
func NewSQLiteStore(db *sql.DB, path string, log *logrus.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, path: path, log: log}
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStoreError("begin transaction", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLiteStore) CountPatientVariants(ctx context.Context) (int64, error) {
	return s.count(ctx, "patient_variant")
}

func (s *SQLiteStore) CountAnnotations(ctx context.Context) (int64, error) {
	return s.count(ctx, "variant_annotations")
}

func (s *SQLiteStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	// table is one of the two fixed table names, never user input.
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, domain.NewStoreError("count "+table, err)
	}
	return n, nil
}

// Destroy closes the handle and removes the database file. Used when a batch
// leaves a table empty that should have received rows.
func (s *SQLiteStore) Destroy() error {
	if err := s.db.Close(); err != nil {
		s.log.WithError(err).Warn("Could not close variant store before removal")
	}
	if err := os.Remove(s.path); err != nil {
		return domain.NewStoreError("remove database file", err)
	}
	s.log.WithField("path", s.path).Warn("Variant database removed after failed integrity check")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) InsertPatientVariant(ctx context.Context, pv domain.PatientVariant) error {
	_, err := t.tx.ExecContext(ctx, sqliteInsertPatientVariant, pv.PatientID, pv.GenomicHGVS)
	if err != nil {
		return domain.NewStoreError("insert patient variant", err)
	}
	return nil
}

func (t *sqliteTx) UpsertAnnotation(ctx context.Context, va domain.VariantAnnotation) error {
	_, err := t.tx.ExecContext(ctx, sqliteUpsertAnnotation,
		va.GenomicHGVS, va.TranscriptHGVS, va.ProteinHGVS,
		va.GeneSymbol, va.HGNCID,
		va.Classification, va.Conditions, va.Stars.Glyphs(), va.ReviewStatus)
	if err != nil {
		return domain.NewStoreError("upsert annotation", err)
	}
	return nil
}

func (t *sqliteTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return domain.NewStoreError("commit transaction", err)
	}
	return nil
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}
