package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/internal/variantstore"
)

// AnnotationSource answers point queries against the current annotation cache
// generation. The boolean is false on a miss, never an error.
type AnnotationSource interface {
	Find(ctx context.Context, ncAccession, nmHGVS string) (*domain.AnnotationRecord, bool, error)
}

// BatchState is the terminal state of one ingestion batch.
type BatchState string

const (
	// BatchCompleted means at least one table row was written and the
	// integrity check passed. Per-variant failures may still be present in
	// the diagnostics.
	BatchCompleted BatchState = "completed"

	// BatchNoFiles means the batch directory held no variant files; no
	// table mutation was attempted.
	BatchNoFiles BatchState = "no_files"

	// BatchFailed means the schema could not be guaranteed or the integrity
	// check found an empty table and removed the store.
	BatchFailed BatchState = "failed"
)

// BatchResult summarizes one ingestion batch for the caller.
type BatchResult struct {
	ID               uuid.UUID
	State            BatchState
	Files            []string
	VariantsResolved int
	VariantsFailed   int
	AnnotationsFound int
	Diagnostics      []string
}

// Ingestor drives a full ingestion batch: discover variant files, parse each
// one, resolve every token, annotate resolved variants from the local cache,
// and upsert into the persistent tables. Failures below the batch level are
// isolated per item and surfaced as diagnostics; only a missing schema or an
// empty table after a full batch fails the batch itself.
type Ingestor struct {
	parser      *VariantParser
	resolver    Resolver
	annotations AnnotationSource
	store       variantstore.Store
	capture     *domain.CaptureReporter
	log         *logrus.Logger
}

// NewIngestor wires the batch orchestrator. capture must be part of the
// reporter chain used by parser and resolver so their diagnostics appear in
// the batch result.
func NewIngestor(parser *VariantParser, resolver Resolver, annotations AnnotationSource,
	store variantstore.Store, capture *domain.CaptureReporter, log *logrus.Logger) *Ingestor {
	return &Ingestor{
		parser:      parser,
		resolver:    resolver,
		annotations: annotations,
		store:       store,
		capture:     capture,
		log:         log,
	}
}

// Run ingests every variant file in dir as one batch. The returned error is
// non-nil only for batch-level failures; per-item failures are reported in
// the result's diagnostics.
func (in *Ingestor) Run(ctx context.Context, dir string) (*BatchResult, error) {
	result := &BatchResult{ID: uuid.New()}
	batchLog := in.log.WithField("batch_id", result.ID.String())

	files, err := in.discover(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		result.State = BatchNoFiles
		in.capture.Report(fmt.Sprintf("No variant files were found in %s.", dir))
		result.Diagnostics = in.capture.Messages()
		batchLog.WithField("dir", dir).Warn("No variant files found, nothing to ingest")
		return result, domain.ErrNoFiles
	}
	result.Files = files

	batchLog.WithFields(logrus.Fields{
		"dir":   dir,
		"files": len(files),
	}).Info("Starting ingestion batch")

	for _, file := range files {
		in.ingestFile(ctx, filepath.Join(dir, file), result, batchLog)
	}

	state, err := in.integrityCheck(ctx, result, batchLog)
	result.State = state
	result.Diagnostics = in.capture.Messages()
	if err != nil {
		return result, err
	}

	batchLog.WithFields(logrus.Fields{
		"resolved":    result.VariantsResolved,
		"failed":      result.VariantsFailed,
		"annotations": result.AnnotationsFound,
		"state":       string(state),
	}).Info("Ingestion batch finished")
	return result, nil
}

// discover lists the variant files in dir, name-sorted for deterministic
// batch order.
func (in *Ingestor) discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading batch directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !IsVariantFile(entry.Name()) {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// ingestFile processes one file inside its own transaction. Any failure that
// concerns a single token is reported and skipped; a transaction that cannot
// be opened or committed fails the whole file, not the batch.
func (in *Ingestor) ingestFile(ctx context.Context, path string, result *BatchResult, batchLog *logrus.Entry) {
	fileName := filepath.Base(path)
	patientID := patientIDFromFileName(fileName)
	fileLog := batchLog.WithFields(logrus.Fields{
		"file":    fileName,
		"patient": patientID,
	})

	parsed, err := in.parser.Parse(path)
	if err != nil {
		in.capture.Report(fmt.Sprintf("%s could not be processed: %v.", fileName, err))
		fileLog.WithError(err).Warn("Variant file not processed")
		return
	}

	tx, err := in.store.Begin(ctx)
	if err != nil {
		in.capture.Report(fmt.Sprintf("%s could not be stored: %v.", fileName, err))
		fileLog.WithError(err).Error("Could not open store transaction")
		return
	}

	for _, token := range parsed.Tokens {
		if err := in.ingestToken(ctx, tx, patientID, token, result, fileLog); err != nil {
			result.VariantsFailed++
			in.capture.Report(fmt.Sprintf("%s: %v.", fileName, err))
			fileLog.WithError(err).WithField("variant", token).Warn("Variant skipped")
		}
	}

	if err := tx.Commit(); err != nil {
		in.capture.Report(fmt.Sprintf("%s could not be stored: %v.", fileName, err))
		fileLog.WithError(err).Error("Could not commit store transaction")
		if rbErr := tx.Rollback(); rbErr != nil {
			fileLog.WithError(rbErr).Debug("Rollback after failed commit")
		}
		return
	}

	fileLog.Info("Variant file ingested")
}

// ingestToken resolves, annotates, and upserts one variant token. The
// patient-variant row is written for every successful resolution; the
// annotation row only when the cache carries a record for the variant.
func (in *Ingestor) ingestToken(ctx context.Context, tx variantstore.Tx, patientID, token string,
	result *BatchResult, fileLog *logrus.Entry) error {
	resolved, err := in.resolver.Resolve(ctx, token)
	if err != nil {
		return err
	}
	result.VariantsResolved++

	if err := tx.InsertPatientVariant(ctx, domain.PatientVariant{
		PatientID:   patientID,
		GenomicHGVS: resolved.GenomicHGVS,
	}); err != nil {
		return err
	}

	record, found, err := in.annotations.Find(ctx, resolved.GenomicAccession(), resolved.TranscriptHGVS)
	if err != nil {
		return err
	}
	if !found {
		fileLog.WithField("variant", token).Info("No annotation record for variant, annotation row skipped")
		return nil
	}

	if err := tx.UpsertAnnotation(ctx, domain.VariantAnnotation{
		GenomicHGVS:    resolved.GenomicHGVS,
		TranscriptHGVS: resolved.TranscriptHGVS,
		ProteinHGVS:    resolved.ProteinHGVS,
		GeneSymbol:     resolved.GeneSymbol,
		HGNCID:         resolved.HGNCID,
		Classification: record.Classification,
		Conditions:     record.Conditions,
		Stars:          record.Stars,
		ReviewStatus:   record.ReviewStatus,
	}); err != nil {
		return err
	}
	result.AnnotationsFound++
	return nil
}

// integrityCheck verifies that the batch left rows behind. An empty
// patient_variant table after a full batch means nothing usable was ingested;
// the store is removed rather than left as a silently successful empty
// database. The count is table-wide, so a batch that adds nothing to a
// previously populated store passes.
func (in *Ingestor) integrityCheck(ctx context.Context, result *BatchResult, batchLog *logrus.Entry) (BatchState, error) {
	patients, err := in.store.CountPatientVariants(ctx)
	if err != nil {
		return BatchFailed, err
	}

	if patients == 0 {
		in.capture.Report("The uploaded files contained no usable variants; the database was removed.")
		batchLog.Warn("No rows after batch, removing variant database")
		if err := in.store.Destroy(); err != nil {
			batchLog.WithError(err).Error("Could not remove empty variant database")
			return BatchFailed, err
		}
		return BatchFailed, nil
	}

	annotations, err := in.store.CountAnnotations(ctx)
	if err != nil {
		return BatchFailed, err
	}
	batchLog.WithFields(logrus.Fields{
		"patient_variants": patients,
		"annotations":      annotations,
	}).Info("Post-batch integrity check passed")
	return BatchCompleted, nil
}

// patientIDFromFileName derives the patient identifier from the file name
// stem, everything before the first '.'.
func patientIDFromFileName(name string) string {
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}
