package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintBreakpointResults outputs segmentation reports in the configured format.
func PrintBreakpointResults(reports []schema.BreakpointReport, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, reports)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeBreakpointsCSV(w, reports, fmtFloat, intFmt)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return errors.New("parquet output is not supported for segment")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeBreakpointsTable(w, reports, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

func writeBreakpointsTable(w io.Writer, reports []schema.BreakpointReport, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	eventWidth := getMaxTableEventWidth(cfg)
	var total int
	for _, r := range reports {
		if _, err := fmt.Fprintf(w, "📈 %s: %d change points on %s (cost %s)\n", r.Metric, r.K, r.Field, fmtFloat(r.Cost)); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		table.Header([]string{"Index", "Date", "Value", "Event"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		data := make([][]string, 0, len(r.Rows))
		for _, row := range r.Rows {
			data = append(data, []string{
				strconv.Itoa(row.Index),
				formatDate(row.Date),
				fmtFloat(row.Value),
				contract.TruncateText(row.Event, eventWidth),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
		total += len(r.Rows)
	}

	if _, err := fmt.Fprintf(w, "Found %d change points across %d metrics\n", total, len(reports)); err != nil {
		return err
	}
	return writeSummary(w, cfg, duration)
}

func writeBreakpointsCSV(w io.Writer, reports []schema.BreakpointReport, fmtFloat func(float64) string, intFmt string) error {
	header := []string{"metric", "index", "date", "value", "event"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range reports {
			for _, row := range r.Rows {
				rec := []string{
					r.Metric,
					fmt.Sprintf(intFmt, row.Index),
					formatDate(row.Date),
					fmtFloat(row.Value),
					row.Event,
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
