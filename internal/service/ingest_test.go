package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/internal/variantstore"
)

// fakeResolver resolves tokens from a fixed table.
type fakeResolver struct {
	resolved map[string]*domain.ResolvedVariant
}

func (f *fakeResolver) Resolve(ctx context.Context, variant string) (*domain.ResolvedVariant, error) {
	if r, ok := f.resolved[variant]; ok {
		return r, nil
	}
	return nil, domain.NewResolverError(domain.FailureNotRecognized, variant, "not recognized")
}

// fakeAnnotations answers from a fixed table keyed by transcript HGVS.
type fakeAnnotations struct {
	records map[string]*domain.AnnotationRecord
}

func (f *fakeAnnotations) Find(ctx context.Context, ncAccession, nmHGVS string) (*domain.AnnotationRecord, bool, error) {
	r, ok := f.records[nmHGVS]
	return r, ok, nil
}

// memStore is an in-memory variantstore.Store capturing writes.
type memStore struct {
	patients    map[string]struct{}
	annotations map[string]domain.VariantAnnotation
	destroyed   bool
}

func newMemStore() *memStore {
	return &memStore{
		patients:    map[string]struct{}{},
		annotations: map[string]domain.VariantAnnotation{},
	}
}

func (s *memStore) Begin(ctx context.Context) (variantstore.Tx, error) { return &memTx{store: s}, nil }

func (s *memStore) CountPatientVariants(ctx context.Context) (int64, error) {
	return int64(len(s.patients)), nil
}

func (s *memStore) CountAnnotations(ctx context.Context) (int64, error) {
	return int64(len(s.annotations)), nil
}

func (s *memStore) Destroy() error {
	s.destroyed = true
	return nil
}

func (s *memStore) Close() error { return nil }

type memTx struct {
	store *memStore
}

func (t *memTx) InsertPatientVariant(ctx context.Context, pv domain.PatientVariant) error {
	t.store.patients[pv.PatientID+"|"+pv.GenomicHGVS] = struct{}{}
	return nil
}

func (t *memTx) UpsertAnnotation(ctx context.Context, va domain.VariantAnnotation) error {
	t.store.annotations[va.GenomicHGVS+"|"+va.TranscriptHGVS+"|"+va.ProteinHGVS] = va
	return nil
}

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func resolvedFixture() *domain.ResolvedVariant {
	return &domain.ResolvedVariant{
		GenomicHGVS:    "NC_000011.10:g.2164285C>T",
		TranscriptHGVS: "NM_000360.4:c.1442G>A",
		ProteinHGVS:    "NP_000351.2:p.(Gly481Asp)",
		GeneSymbol:     "TH",
		HGNCID:         "11782",
	}
}

func newTestIngestor(store variantstore.Store, resolver Resolver, annotations AnnotationSource) (*Ingestor, *domain.CaptureReporter) {
	capture := &domain.CaptureReporter{}
	parser := NewVariantParser(capture, testLogger())
	return NewIngestor(parser, resolver, annotations, store, capture, testLogger()), capture
}

func TestIngestor_NoFiles(t *testing.T) {
	store := newMemStore()
	ingestor, _ := newTestIngestor(store, &fakeResolver{}, &fakeAnnotations{})

	result, err := ingestor.Run(context.Background(), t.TempDir())

	require.ErrorIs(t, err, domain.ErrNoFiles)
	assert.Equal(t, BatchNoFiles, result.State)
	assert.False(t, store.destroyed, "no table mutation may be attempted")
	require.NotEmpty(t, result.Diagnostics)
	assert.Contains(t, result.Diagnostics[0], "No variant files")
}

func TestIngestor_FullBatch(t *testing.T) {
	dir := t.TempDir()
	content := "#CHROM\tPOS\tID\tREF\tALT\n17\t45983420\trs1\tG\tT\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient1.vcf"), []byte(content), 0o644))

	store := newMemStore()
	resolver := &fakeResolver{resolved: map[string]*domain.ResolvedVariant{
		"17-45983420-G-T": resolvedFixture(),
	}}
	annotations := &fakeAnnotations{records: map[string]*domain.AnnotationRecord{
		"NM_000360.4:c.1442G>A": {
			Classification: "Pathogenic",
			Conditions:     "Segawa syndrome",
			Stars:          domain.StarsMultipleSubmitters,
			ReviewStatus:   "criteria provided, multiple submitters, no conflicts",
		},
	}}

	ingestor, _ := newTestIngestor(store, resolver, annotations)
	result, err := ingestor.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, result.State)
	assert.Equal(t, 1, result.VariantsResolved)
	assert.Equal(t, 1, result.AnnotationsFound)
	assert.Contains(t, store.patients, "Patient1|NC_000011.10:g.2164285C>T",
		"patient ID comes from the file name stem")

	va, ok := store.annotations["NC_000011.10:g.2164285C>T|NM_000360.4:c.1442G>A|NP_000351.2:p.(Gly481Asp)"]
	require.True(t, ok)
	assert.Equal(t, "Pathogenic", va.Classification)
	assert.Equal(t, domain.StarsMultipleSubmitters, va.Stars)
}

func TestIngestor_PerTokenFailureIsolation(t *testing.T) {
	dir := t.TempDir()
	content := "17\t45983420\trs1\tG\tT\n17\t999\trs2\tA\tC\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient1.vcf"), []byte(content), 0o644))

	store := newMemStore()
	// Only the first token resolves; the second fails.
	resolver := &fakeResolver{resolved: map[string]*domain.ResolvedVariant{
		"17-45983420-G-T": resolvedFixture(),
	}}

	ingestor, capture := newTestIngestor(store, resolver, &fakeAnnotations{})
	result, err := ingestor.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, result.State)
	assert.Equal(t, 1, result.VariantsResolved)
	assert.Equal(t, 1, result.VariantsFailed)
	assert.Len(t, store.patients, 1, "the failed token must not abort the rest of the file")

	var found bool
	for _, msg := range capture.Messages() {
		found = found || containsAll(msg, "Patient1.vcf", "17-999-A-C")
	}
	assert.True(t, found, "the failed token produces a diagnostic naming file and variant")
}

func TestIngestor_AnnotationMissSkipsAnnotationRow(t *testing.T) {
	dir := t.TempDir()
	content := "17\t45983420\trs1\tG\tT\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient1.vcf"), []byte(content), 0o644))

	store := newMemStore()
	resolver := &fakeResolver{resolved: map[string]*domain.ResolvedVariant{
		"17-45983420-G-T": resolvedFixture(),
	}}

	ingestor, _ := newTestIngestor(store, resolver, &fakeAnnotations{})
	result, err := ingestor.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, BatchCompleted, result.State)
	assert.Len(t, store.patients, 1)
	assert.Empty(t, store.annotations, "a cache miss writes no annotation row")
	assert.Zero(t, result.AnnotationsFound)
}

func TestIngestor_EmptyTableFailsBatchAndRemovesStore(t *testing.T) {
	dir := t.TempDir()
	content := "17\t45983420\trs1\tG\tT\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient1.vcf"), []byte(content), 0o644))

	store := newMemStore()
	// Nothing resolves, so no rows are ever written.
	ingestor, _ := newTestIngestor(store, &fakeResolver{}, &fakeAnnotations{})

	result, err := ingestor.Run(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, BatchFailed, result.State)
	assert.True(t, store.destroyed, "an empty store must not be left behind as a silent success")

	var found bool
	for _, msg := range result.Diagnostics {
		found = found || containsAll(msg, "no usable variants")
	}
	assert.True(t, found)
}

func TestIngestor_IdempotentAcrossBatches(t *testing.T) {
	dir := t.TempDir()
	content := "17\t45983420\trs1\tG\tT\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Patient1.vcf"), []byte(content), 0o644))

	store := newMemStore()
	resolver := &fakeResolver{resolved: map[string]*domain.ResolvedVariant{
		"17-45983420-G-T": resolvedFixture(),
	}}
	ingestor, _ := newTestIngestor(store, resolver, &fakeAnnotations{})

	_, err := ingestor.Run(context.Background(), dir)
	require.NoError(t, err)
	_, err = ingestor.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Len(t, store.patients, 1, "the same (patient, variant) pair yields exactly one row")
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
