package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ReviewScraper/internal/app"
	"ReviewScraper/internal/models"
	"ReviewScraper/pkg/config"
)

var scrapePage string

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--page <name|url>] [--max-records N] [--page-size N]",
	Short: "Extracts reviews from the configured pages and stores them.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(configPath)
		if err != nil {
			return err
		}
		defer application.Close()

		limits, err := limitsFromFlags(cmd, application.Config.Limits)
		if err != nil {
			return err
		}

		results, err := application.RunReviewScraper(cmd.Context(), scrapePage, limits)
		if err != nil {
			return err
		}
		app.PrintSummary(os.Stdout, results)

		failed := 0
		for _, r := range results {
			if r.Status != models.RunCompleted {
				failed++
			}
		}
		if failed > 0 {
			application.Logger.Warn("some pages failed", zap.Int("failed", failed), zap.Int("pages", len(results)))
			return fmt.Errorf("%d of %d pages failed", failed, len(results))
		}
		return nil
	},
}

// addLimitFlags registers the per-run overrides of the limits section.
func addLimitFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-records", 0, "Stop once at least this many reviews are collected (0 = use config).")
	cmd.Flags().Int("page-size", 0, "Reviews revealed per click; a short page ends the run (0 = use config).")
	cmd.Flags().Int("max-stalls", 0, "Stop after this many clicks that reveal nothing (0 = use config, negative disables).")
}

// limitsFromFlags applies the limit flags that were set to a non-zero value on top of base.
// Zero means "use config" for every flag, as it does in config.yml.
func limitsFromFlags(cmd *cobra.Command, base config.LimitsConfig) (config.LimitsConfig, error) {
	limits := base
	for name, dst := range map[string]*int{
		"max-records": &limits.MaxRecords,
		"page-size":   &limits.PageSize,
		"max-stalls":  &limits.MaxStalls,
	} {
		v, err := cmd.Flags().GetInt(name)
		if err != nil {
			return base, err
		}
		if v != 0 {
			*dst = v
		}
	}
	if limits.MaxRecords < 0 || limits.PageSize < 0 {
		return base, fmt.Errorf("--max-records and --page-size must not be negative")
	}
	return limits, nil
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapePage, "page", "p", "", "Only scrape the page with this name or URL.")
	addLimitFlags(scrapeCmd)
	rootCmd.AddCommand(scrapeCmd)
}
