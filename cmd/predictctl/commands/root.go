// Package commands implements predictctl, which runs the prediction engine
// against a directory of inventory CSV exports and prints JSON reports.
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/repository"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	dataDir string
	today   string
	verbose bool

	svc *service.PredictionService
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "predictctl",
		Short:   "Inventory expiry, stockout and demand reports from CSV exports",
		Version: Version,
		Long: `predictctl loads medicines_master.csv, consumption_log.csv and
current_inventory.csv from a data directory and prints prediction reports as JSON.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return load(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "./data", "directory holding the CSV exports")
	cmd.PersistentFlags().StringVar(&today, "today", "", "evaluate as of this date (YYYY-MM-DD) instead of the current date")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging on stderr")

	cmd.AddCommand(
		newSummaryCmd(),
		newExpiryCmd(),
		newStockoutCmd(),
		newAlertsCmd(),
		newItemsCmd(),
		newForecastCmd(),
		newForecastsCmd(),
		newTrendCmd(),
		newAnomaliesCmd(),
	)
	return cmd
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func load(cmd *cobra.Command) error {
	log := logger.Nop()
	if verbose {
		log = logger.NewWithOptions("predictctl", "development", logger.Options{Writer: os.Stderr})
	}

	var opts []engine.Option
	if today != "" {
		day, err := time.Parse("2006-01-02", today)
		if err != nil {
			return fmt.Errorf("invalid --today %q: %w", today, err)
		}
		opts = append(opts, engine.WithClock(func() time.Time { return day }))
	}

	svc = service.NewPredictionService(repository.NewCSVLoader(dataDir), service.Options{
		EngineOptions: opts,
	}, log)

	status, err := svc.Reload(cmd.Context())
	if err != nil {
		return err
	}
	log.Debug().
		Int("items", status.Items).
		Int("batches", status.Batches).
		Int("consumption_records", status.ConsumptionRecords).
		Msg("data loaded")
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
