package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ReviewScraper/internal/app"
)

var (
	exportPage string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export --page <name|url> [--out <file.csv>]",
	Short: "Writes the stored reviews of one page as CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(configPath)
		if err != nil {
			return err
		}
		defer application.Close()

		n, err := application.ExportCSV(exportPage, exportOut)
		if err != nil {
			return err
		}
		if exportOut != "" && exportOut != "-" {
			fmt.Fprintf(os.Stderr, "exported %d reviews to %s\n", n, exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportPage, "page", "p", "", "Page name from the config, or a page URL.")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (stdout when empty or -).")
	_ = exportCmd.MarkFlagRequired("page")
	rootCmd.AddCommand(exportCmd)
}
