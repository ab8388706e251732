package reporter

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/ethanolivertroy/plugin-vuln-checker/internal/models"
)

// CSVReporter outputs matches in the same layout as the report file
type CSVReporter struct{}

// Report generates CSV output for the given matches
func (r *CSVReporter) Report(matches []models.MatchRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCSV(&buf, Sorted(matches)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCSV writes the header row and one row per match.
func writeCSV(w io.Writer, matches []models.MatchRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(models.ReportHeader); err != nil {
		return err
	}
	for _, m := range matches {
		if err := cw.Write(m.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
