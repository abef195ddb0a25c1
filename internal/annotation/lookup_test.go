package annotation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/variantdb-pipeline/internal/domain"
)

func buildGeneration(t *testing.T, path string, records []record) {
	t.Helper()
	buildPath := path + ".building"
	store, err := createStore(buildPath)
	require.NoError(t, err)
	require.NoError(t, store.loadBatch(context.Background(), records))
	require.NoError(t, store.finalize(context.Background()))
	require.NoError(t, store.Close())
	require.NoError(t, os.Rename(buildPath, path))
}

func TestLookup_FindHitAndMiss(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	buildGeneration(t, cachePath, []record{
		{NCAccession: "NC_000011.10", NMHGVS: "NM_000360.4:c.1442G>A",
			ClinicalSignificance: "Pathogenic", Conditions: "Segawa syndrome",
			Stars: domain.StarsMultipleSubmitters, ReviewStatus: "criteria provided, multiple submitters, no conflicts"},
	})

	lookup, err := NewLookup(cachePath, 16, testLogger())
	require.NoError(t, err)
	defer lookup.Close()

	rec, found, err := lookup.Find(context.Background(), "NC_000011.10", "NM_000360.4:c.1442G>A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Pathogenic", rec.Classification)

	_, found, err = lookup.Find(context.Background(), "NC_000011.10", "NM_999999.9:c.1G>A")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLookup_MemoizesHitsAndMisses(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	buildGeneration(t, cachePath, []record{
		{NCAccession: "NC_000011.10", NMHGVS: "NM_000360.4:c.1442G>A",
			ClinicalSignificance: "Pathogenic", Conditions: "x", ReviewStatus: "y"},
	})

	lookup, err := NewLookup(cachePath, 16, testLogger())
	require.NoError(t, err)
	defer lookup.Close()

	_, found, err := lookup.Find(context.Background(), "NC_000011.10", "NM_000360.4:c.1442G>A")
	require.NoError(t, err)
	require.True(t, found)
	_, found, err = lookup.Find(context.Background(), "NC_000011.10", "NM_999999.9:c.1G>A")
	require.NoError(t, err)
	require.False(t, found)

	// Pull the generation out from under the lookup: memoized answers must
	// keep serving without touching the store.
	require.NoError(t, os.Remove(cachePath))

	_, found, err = lookup.Find(context.Background(), "NC_000011.10", "NM_000360.4:c.1442G>A")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = lookup.Find(context.Background(), "NC_000011.10", "NM_999999.9:c.1G>A")
	require.NoError(t, err)
	assert.False(t, found, "misses are memoized too")
}

func TestLookup_ReloadSwapsGenerations(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "cache.db")
	buildGeneration(t, cachePath, []record{
		{NCAccession: "NC_000011.10", NMHGVS: "NM_000360.4:c.1442G>A",
			ClinicalSignificance: "Benign", Conditions: "x", ReviewStatus: "y"},
	})

	lookup, err := NewLookup(cachePath, 16, testLogger())
	require.NoError(t, err)
	defer lookup.Close()

	rec, found, err := lookup.Find(context.Background(), "NC_000011.10", "NM_000360.4:c.1442G>A")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Benign", rec.Classification)

	// Publish a new generation and reload.
	require.NoError(t, os.Remove(cachePath))
	buildGeneration(t, cachePath, []record{
		{NCAccession: "NC_000011.10", NMHGVS: "NM_000360.4:c.1442G>A",
			ClinicalSignificance: "Pathogenic", Conditions: "x", ReviewStatus: "y"},
	})
	require.NoError(t, lookup.Reload())

	rec, found, err = lookup.Find(context.Background(), "NC_000011.10", "NM_000360.4:c.1442G>A")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Pathogenic", rec.Classification,
		"the reloaded generation answers, not the memo of the old one")
}
