package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/variantdb-pipeline/internal/annotation"
	"github.com/variantdb-pipeline/internal/database"
	"github.com/variantdb-pipeline/internal/domain"
	"github.com/variantdb-pipeline/internal/service"
	"github.com/variantdb-pipeline/internal/variantstore"
	"github.com/variantdb-pipeline/pkg/external"
)

func newIngestCmd(a *app) *cobra.Command {
	var dbName string

	cmd := &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Ingest the variant files in a directory into a database",
		Long: `Ingest parses every .vcf and .csv file in the given directory, resolves
each variant through VariantValidator, annotates resolved variants from the
local ClinVar cache, and upserts the results into the named database. The
patient ID for each file is taken from the file name stem.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), a, args[0], dbName)
		},
	}

	cmd.Flags().StringVar(&dbName, "db", "variants", "name of the target database")
	return cmd
}

func runIngest(parent context.Context, a *app, dir, dbName string) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureAnnotationCache(ctx, a); err != nil {
		return err
	}

	store, err := openStore(a, dbName)
	if err != nil {
		return err
	}
	defer store.Close()

	lookup, err := annotation.NewLookup(a.cfg.ClinVar.CachePath, a.cfg.ClinVar.LookupCacheSize, a.log)
	if err != nil {
		return err
	}
	defer lookup.Close()

	capture := &domain.CaptureReporter{}
	reporter := domain.MultiReporter{&domain.LogReporter{Log: a.log}, capture}

	client := external.NewClient(external.Config{
		BaseURL:      a.cfg.Resolver.BaseURL,
		Timeout:      a.cfg.Resolver.Timeout,
		PaceInterval: a.cfg.Resolver.PaceInterval,
	}, a.log)
	api := external.NewResilientAPI(client, a.log)

	parser := service.NewVariantParser(reporter, a.log)
	resolver := service.NewVariantResolver(api, reporter, a.log)
	ingestor := service.NewIngestor(parser, resolver, lookup, store, capture, a.log)

	result, err := ingestor.Run(ctx, dir)
	if result != nil {
		for _, diagnostic := range result.Diagnostics {
			fmt.Println(diagnostic)
		}
		fmt.Printf("Batch %s finished: %s (%d resolved, %d failed, %d annotated)\n",
			result.ID, result.State, result.VariantsResolved, result.VariantsFailed, result.AnnotationsFound)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNoFiles) {
			return fmt.Errorf("no variant files (.vcf/.csv) found in %s", dir)
		}
		return err
	}
	if result.State != service.BatchCompleted {
		return fmt.Errorf("ingestion batch %s did not complete: %s", result.ID, result.State)
	}
	return nil
}

// ensureAnnotationCache rebuilds the ClinVar cache when no generation exists
// yet, so a first run does not need a separate cache step.
func ensureAnnotationCache(ctx context.Context, a *app) error {
	downloader := external.NewDownloader(a.cfg.ClinVar.DownloadTimeout, external.DefaultRetryPolicy(), a.log)
	builder := annotation.NewBuilder(downloader, a.cfg.ClinVar.SummaryURL, a.cfg.ClinVar.CachePath, a.log)
	if builder.CacheExists() {
		return nil
	}
	a.log.Info("No annotation cache found, building one before ingestion")
	return builder.Rebuild(ctx)
}

// openStore opens the configured persistent store backend with its schema
// applied. Schema failures here are batch-fatal.
func openStore(a *app, dbName string) (variantstore.Store, error) {
	switch a.cfg.Database.Driver {
	case "postgres":
		if err := database.MigrateURL(a.cfg.Database.URL, a.log); err != nil {
			return nil, err
		}
		return variantstore.NewPostgresStore(a.cfg.Database.URL, a.log)
	default:
		path := filepath.Join(a.cfg.Database.Dir, dbName+".db")
		db, err := database.Open(path, a.log)
		if err != nil {
			return nil, err
		}
		if err := database.MigrateSQLite(path, a.log); err != nil {
			db.Close()
			return nil, err
		}
		return variantstore.NewSQLiteStore(db, path, a.log), nil
	}
}
