package annotation

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/pkg/external"
)

const loadBatchSize = 5000

// noConditions is stored when a record carries only placeholder phenotypes.
const noConditions = "No conditions submitted"

// Builder downloads the bulk variant-summary dataset and loads it into a
// fresh cache generation. The previous generation stays live and intact
// until the new one is complete; the swap is a file rename, so readers see
// either the old generation or the new one, never a partial load.
type Builder struct {
	downloader *external.Downloader
	summaryURL string
	cachePath  string
	log        *logrus.Logger
}

// NewBuilder wires a cache builder.
func NewBuilder(downloader *external.Downloader, summaryURL, cachePath string, log *logrus.Logger) *Builder {
	return &Builder{
		downloader: downloader,
		summaryURL: summaryURL,
		cachePath:  cachePath,
		log:        log,
	}
}

// CacheExists reports whether a built generation is present on disk.
func (b *Builder) CacheExists() bool {
	_, err := os.Stat(b.cachePath)
	return err == nil
}

// Rebuild fetches the dataset and replaces the cache generation. On any
// failure the previous generation (if any) is left untouched.
func (b *Builder) Rebuild(ctx context.Context) error {
	datasetPath := filepath.Join(filepath.Dir(b.cachePath), "variant_summary.txt.gz")

	b.log.WithField("url", b.summaryURL).Info("Downloading bulk annotation dataset; this can take several minutes")
	if err := b.downloader.Download(ctx, b.summaryURL, datasetPath); err != nil {
		return fmt.Errorf("annotation dataset download failed, keeping previous cache: %w", err)
	}

	buildPath := b.cachePath + ".building"
	// Leftovers from a crashed build must not poison this one.
	os.Remove(buildPath)

	store, err := createStore(buildPath)
	if err != nil {
		return err
	}

	loaded, err := b.load(ctx, store, datasetPath)
	closeErr := store.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(buildPath)
		return fmt.Errorf("annotation cache build failed, keeping previous cache: %w", err)
	}

	if err := os.Rename(buildPath, b.cachePath); err != nil {
		os.Remove(buildPath)
		return fmt.Errorf("failed to publish new annotation cache generation: %w", err)
	}

	b.log.WithFields(logrus.Fields{
		"records": loaded,
		"cache":   b.cachePath,
	}).Info("Annotation cache generation rebuilt")
	return nil
}

// load streams the gzipped tab-delimited dataset into store, returning the
// number of records kept.
func (b *Builder) load(ctx context.Context, store *Store, datasetPath string) (int, error) {
	f, err := os.Open(datasetPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open downloaded dataset: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return 0, fmt.Errorf("dataset is not valid gzip: %w", err)
	}
	defer gz.Close()

	reader := csv.NewReader(gz)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read dataset header: %w", err)
	}
	columns, err := datasetColumns(header)
	if err != nil {
		return 0, err
	}

	var (
		batch  []record
		loaded int
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to read dataset row: %w", err)
		}
		if len(row) <= columns.max() {
			continue
		}

		name := row[columns.name]
		if !strings.HasPrefix(name, "NM_") {
			continue
		}

		batch = append(batch, record{
			NCAccession:          row[columns.accession],
			NMHGVS:               canonicalTranscriptHGVS(name),
			ClinicalSignificance: row[columns.significance],
			Conditions:           normalizeConditions(row[columns.phenotypes]),
			Stars:                domain.StarRatingFromReviewStatus(row[columns.reviewStatus]),
			ReviewStatus:         row[columns.reviewStatus],
		})
		loaded++

		if len(batch) >= loadBatchSize {
			if err := store.loadBatch(ctx, batch); err != nil {
				return 0, err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := store.loadBatch(ctx, batch); err != nil {
			return 0, err
		}
	}

	if err := store.finalize(ctx); err != nil {
		return 0, err
	}
	return loaded, nil
}

type columnIndexes struct {
	name         int
	accession    int
	significance int
	phenotypes   int
	reviewStatus int
}

func (c columnIndexes) max() int {
	m := c.name
	for _, i := range []int{c.accession, c.significance, c.phenotypes, c.reviewStatus} {
		if i > m {
			m = i
		}
	}
	return m
}

func datasetColumns(header []string) (columnIndexes, error) {
	idx := map[string]int{}
	for i, col := range header {
		idx[strings.TrimPrefix(col, "#")] = i
	}

	columns := columnIndexes{name: -1, accession: -1, significance: -1, phenotypes: -1, reviewStatus: -1}
	assign := map[string]*int{
		"Name":                 &columns.name,
		"ChromosomeAccession":  &columns.accession,
		"ClinicalSignificance": &columns.significance,
		"PhenotypeList":        &columns.phenotypes,
		"ReviewStatus":         &columns.reviewStatus,
	}
	for col, target := range assign {
		i, ok := idx[col]
		if !ok {
			return columns, fmt.Errorf("dataset header is missing the %s column", col)
		}
		*target = i
	}
	return columns, nil
}

// canonicalTranscriptHGVS strips the parenthesized gene-symbol and
// protein-consequence decorations from a dataset record name:
// "NM_000360.4(TH):c.1442G>A (p.Gly481Asp)" -> "NM_000360.4:c.1442G>A".
func canonicalTranscriptHGVS(name string) string {
	open := strings.Index(name, "(")
	if open < 0 {
		return name
	}
	closing := strings.Index(name, ")")
	if closing < 0 || closing < open {
		return name
	}
	rest := name[closing+1:]
	if space := strings.Index(rest, " "); space >= 0 {
		rest = rest[:space]
	}
	return name[:open] + rest
}

// normalizeConditions collapses placeholder phenotypes, deduplicates the
// remainder preserving order, and joins with "; ".
func normalizeConditions(phenotypeList string) string {
	seen := map[string]struct{}{}
	var kept []string
	for _, phrase := range strings.Split(phenotypeList, "|") {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		lower := strings.ToLower(phrase)
		if lower == "not provided" || lower == "not specified" {
			continue
		}
		if _, dup := seen[phrase]; dup {
			continue
		}
		seen[phrase] = struct{}{}
		kept = append(kept, phrase)
	}
	if len(kept) == 0 {
		return noConditions
	}
	return strings.Join(kept, "; ")
}
