// Package variantstore persists the patient-variant association and the
// deduplicated variant-annotation tables, behind one interface with sqlite
// and PostgreSQL backends.
package variantstore

import (
	"context"

	"github.com/variantdb-pipeline/internal/domain"
)

// Store is the persistent variant store consumed by the ingestion
// orchestrator, which holds exclusive write access during a batch.
type Store interface {
	// Begin opens a transaction covering one file's writes.
	Begin(ctx context.Context) (Tx, error)

	// CountPatientVariants returns the total row count of patient_variant.
	CountPatientVariants(ctx context.Context) (int64, error)

	// CountAnnotations returns the total row count of variant_annotations.
	CountAnnotations(ctx context.Context) (int64, error)

	// Destroy removes the store entirely; used when a batch ends with a
	// table that should have received rows but is empty.
	Destroy() error

	Close() error
}

// Tx is one batch-file transaction over both tables.
type Tx interface {
	// InsertPatientVariant records a patient-variant pair; the first writer
	// wins on the (patient_ID, variant) unique pair.
	InsertPatientVariant(ctx context.Context, pv domain.PatientVariant) error

	// UpsertAnnotation records an annotation row; the last writer wins on
	// the (variant_NC, variant_NM, variant_NP) unique triple, overwriting
	// every annotation column.
	UpsertAnnotation(ctx context.Context, va domain.VariantAnnotation) error

	Commit() error
	Rollback() error
}
