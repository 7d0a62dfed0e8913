package commands

import (
	"fmt"
	"strconv"

	"github.com/medflow/medpredict-backend/internal/prediction/domain"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/spf13/cobra"
)

func newSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Dashboard summary with the inventory health score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := svc.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func riskFilter(level string, limit int) (service.RiskFilter, error) {
	filter := service.RiskFilter{Limit: limit}
	if level != "" {
		parsed, err := domain.ParseRiskLevel(level)
		if err != nil {
			return filter, err
		}
		filter.Level = &parsed
	}
	return filter, nil
}

func newExpiryCmd() *cobra.Command {
	var (
		level string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "expiry",
		Short: "Batch expiry risks, highest score first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := riskFilter(level, limit)
			if err != nil {
				return err
			}
			risks, err := svc.ExpiryRisks(filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), risks)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only show LOW, MEDIUM, HIGH or CRITICAL risks")
	cmd.Flags().IntVar(&limit, "limit", service.DefaultListLimit, "maximum number of risks")
	return cmd
}

func newStockoutCmd() *cobra.Command {
	var (
		level string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "stockout",
		Short: "Item stockout risks, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := riskFilter(level, limit)
			if err != nil {
				return err
			}
			risks, err := svc.StockoutRisks(filter)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), risks)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only show LOW, MEDIUM, HIGH or CRITICAL risks")
	cmd.Flags().IntVar(&limit, "limit", service.DefaultListLimit, "maximum number of risks")
	return cmd
}

func newAlertsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "CRITICAL and HIGH expiry and stockout alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feed, err := svc.Alerts()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), feed)
		},
	}
}

func newItemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "items",
		Short: "Current stock and consumption rate per item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := svc.Items()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid medicine id %q", arg)
	}
	return id, nil
}

func newForecastCmd() *cobra.Command {
	var (
		days       int
		confidence float64
	)
	cmd := &cobra.Command{
		Use:   "forecast <medicine-id>",
		Short: "Demand forecast with confidence interval for one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			forecast, err := svc.Forecast(id, days, confidence)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), forecast)
		},
	}
	cmd.Flags().IntVar(&days, "days", engine.DefaultForecastDays, "forecast horizon in days")
	cmd.Flags().Float64Var(&confidence, "confidence", engine.DefaultConfidenceLevel, "confidence level of the interval")
	return cmd
}

func newForecastsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "forecasts",
		Short: "Forecast roll-up over every item with enough history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := svc.ForecastSummary(days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().IntVar(&days, "days", engine.DefaultForecastDays, "forecast horizon in days")
	return cmd
}

func newTrendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trend <medicine-id>",
		Short: "Detailed trend report for one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			analysis, err := svc.TrendAnalysis(id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}
}

func newAnomaliesCmd() *cobra.Command {
	var (
		item        int64
		days        int
		threshold   float64
		minSeverity string
	)
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Consumption anomalies for one item or across all items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				found []domain.Anomaly
				err   error
			)
			if item > 0 {
				if !cmd.Flags().Changed("days") {
					days = engine.DefaultAnomalyDays
				}
				found, err = svc.Anomalies(item, days, threshold)
			} else {
				severity, perr := domain.ParseSeverity(minSeverity)
				if perr != nil {
					return perr
				}
				found, err = svc.AllAnomalies(days, severity)
			}
			if err != nil {
				return err
			}
			if found == nil {
				found = []domain.Anomaly{}
			}
			return printJSON(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().Int64Var(&item, "item", 0, "only scan this medicine id")
	cmd.Flags().IntVar(&days, "days", engine.DefaultDetectAllDays, "trailing window in days")
	cmd.Flags().Float64Var(&threshold, "threshold", engine.DefaultAnomalyThreshold, "z-score threshold (single item only)")
	cmd.Flags().StringVar(&minSeverity, "min-severity", domain.SeverityMedium.String(), "lowest severity to report (all items only)")
	return cmd
}
