// Command variantdb ingests patient variant files into annotated sqlite or
// PostgreSQL databases, resolving raw variants through VariantValidator and
// enriching them from a locally cached ClinVar summary dataset.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/variantdb-pipeline/internal/config"
	"github.com/variantdb-pipeline/internal/logging"
)

type app struct {
	cfg *config.Config
	log *logrus.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "variantdb",
		Short:         "Patient variant ingestion and annotation pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager, err := config.NewManager()
			if err != nil {
				return err
			}
			if err := manager.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = manager.GetConfig()
			a.log = logging.New(a.cfg.Logging)
			return nil
		},
	}

	root.AddCommand(newIngestCmd(a))
	root.AddCommand(newCacheCmd(a))
	root.AddCommand(newDBCmd(a))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
