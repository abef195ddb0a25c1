package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/variantdb-pipeline/internal/annotation"
	"github.com/variantdb-pipeline/pkg/external"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local ClinVar annotation cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Download the ClinVar summary dataset and rebuild the cache",
		Long: `Rebuild downloads the bulk variant summary dataset and builds a fresh
cache generation. The previous generation stays in use until the new one is
complete; on any failure the previous generation is kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			downloader := external.NewDownloader(a.cfg.ClinVar.DownloadTimeout, external.DefaultRetryPolicy(), a.log)
			builder := annotation.NewBuilder(downloader, a.cfg.ClinVar.SummaryURL, a.cfg.ClinVar.CachePath, a.log)
			return builder.Rebuild(ctx)
		},
	})

	return cmd
}
