// Package output writes collected reviews and raw page dumps to disk.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ReviewScraper/internal/models"
)

// Header is the first CSV row. Columns follow the review field order.
var Header = []string{"title", "text", "date", "name"}

// WriteCSV writes the header and one row per review, in order.
func WriteCSV(w io.Writer, reviews []models.Review) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, r := range reviews {
		if err := cw.Write([]string{r.Title, r.Text, r.Date, r.Name}); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile creates path (and its directory) and writes reviews to it.
func WriteCSVFile(path string, reviews []models.Review) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create csv directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	if err := WriteCSV(f, reviews); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
