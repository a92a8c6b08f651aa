// Package cli formats answers and ingestion reports for the taxqa command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/hyperjump/taxqa/internal/ingest"
	"github.com/hyperjump/taxqa/internal/models"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// OutputFormat selects how results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat returns the format named by s, or an error for anything but text and json.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (use text or json)", s)
	}
}

// WriteAnswer writes a chat response to w in the given format.
func WriteAnswer(w io.Writer, resp *models.ChatResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "\n%s\n\n", resp.Answer)
	if len(resp.Sources) == 0 {
		fmt.Fprintln(w, "No sources retrieved.")
		return nil
	}
	fmt.Fprintln(w, "Sources:")
	for i, s := range resp.Sources {
		fmt.Fprintf(w, "  %d. %s (similarity %s)\n", i+1, s.Source, s.Similarity)
	}
	return nil
}

// WriteReport writes an ingestion report to w in the given format.
func WriteReport(w io.Writer, report *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, report)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tCHUNKS\tSOURCE\tERROR")
	for _, d := range report.Documents {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", d.State, d.Chunks, d.Source, utils.Truncate(d.Error, 80))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	elapsed := report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(w, "\n%d documents: %d stored, %d skipped, %d failed; %d chunks in %s (run %s)\n",
		len(report.Documents), report.Stored, report.Skipped, report.Failed, report.Chunks, elapsed, report.RunID)
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
