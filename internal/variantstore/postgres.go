package variantstore

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
)

const (
	postgresInsertPatientVariant = `
		INSERT INTO patient_variant (patient_ID, variant)
		VALUES ($1, $2)
		ON CONFLICT (patient_ID, variant) DO NOTHING`

	postgresUpsertAnnotation = `
		INSERT INTO variant_annotations
			(variant_NC, variant_NM, variant_NP, gene, HGNC_ID,
			 Classification, Conditions, Stars, Review_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (variant_NC, variant_NM, variant_NP) DO UPDATE SET
			gene = EXCLUDED.gene,
			HGNC_ID = EXCLUDED.HGNC_ID,
			Classification = EXCLUDED.Classification,
			Conditions = EXCLUDED.Conditions,
			Stars = EXCLUDED.Stars,
			Review_status = EXCLUDED.Review_status`
)

// PostgresStore is the server-backed variant store for shared deployments.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(databaseURL string, log *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, domain.NewStoreError("open postgres connection", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, domain.NewStoreError("ping postgres", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return &PostgresStore{db: db, log: log}, nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.NewStoreError("begin transaction", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (s *PostgresStore) CountPatientVariants(ctx context.Context) (int64, error) {
	return s.count(ctx, "patient_variant")
}

func (s *PostgresStore) CountAnnotations(ctx context.Context) (int64, error) {
	return s.count(ctx, "variant_annotations")
}

func (s *PostgresStore) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, domain.NewStoreError("count "+table, err)
	}
	return n, nil
}

// Destroy truncates both tables. The server database itself stays; there is
// no file to remove here, so the nearest equivalent is emptying the store.
func (s *PostgresStore) Destroy() error {
	_, err := s.db.Exec("TRUNCATE TABLE patient_variant, variant_annotations")
	if err != nil {
		return domain.NewStoreError("truncate variant tables", err)
	}
	s.log.Warn("Variant tables truncated after failed integrity check")
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type postgresTx struct {
	tx *sql.Tx
}

func (t *postgresTx) InsertPatientVariant(ctx context.Context, pv domain.PatientVariant) error {
	_, err := t.tx.ExecContext(ctx, postgresInsertPatientVariant, pv.PatientID, pv.GenomicHGVS)
	if err != nil {
		return domain.NewStoreError("insert patient variant", err)
	}
	return nil
}

func (t *postgresTx) UpsertAnnotation(ctx context.Context, va domain.VariantAnnotation) error {
	_, err := t.tx.ExecContext(ctx, postgresUpsertAnnotation,
		va.GenomicHGVS, va.TranscriptHGVS, va.ProteinHGVS,
		va.GeneSymbol, va.HGNCID,
		va.Classification, va.Conditions, va.Stars.Glyphs(), va.ReviewStatus)
	if err != nil {
		return domain.NewStoreError("upsert annotation", err)
	}
	return nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return domain.NewStoreError("commit transaction", err)
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	return t.tx.Rollback()
}
