package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
)

// PrintDispatchResult outputs a dispatch bundle in the configured format.
// JSON carries the full bundle including chart overlays; the other formats
// only carry the impact tables.
func PrintDispatchResult(result schema.DispatchResult, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDispatchCSV(w, result, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquet(cfg.OutputFile, parquetRankings(result.Rankings()))
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeDispatchText(w, result, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

func writeDispatchText(w io.Writer, result schema.DispatchResult, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	if _, err := fmt.Fprintf(w, "⚡ Request %s (trigger: %s)\n", result.RequestID, result.Trigger); err != nil {
		return err
	}
	for _, b := range result.Metrics {
		traces := make([]string, 0, len(b.Overlay.Traces))
		for _, t := range b.Overlay.Traces {
			traces = append(traces, fmt.Sprintf("%s [%s, %d]", t.Name, t.Kind, len(t.X)))
		}
		if _, err := fmt.Fprintf(w, "📊 %s: %s\n", b.Metric, strings.Join(traces, "; ")); err != nil {
			return err
		}
		if len(b.Markers) > 0 {
			dates := make([]string, len(b.Markers))
			for i, d := range b.Markers {
				dates[i] = formatDate(d)
			}
			if _, err := fmt.Fprintf(w, "   Markers: %s\n", strings.Join(dates, ", ")); err != nil {
				return err
			}
		}
	}
	if err := writeRankingTables(w, result.Rankings(), cfg, fmtFloat); err != nil {
		return err
	}
	return writeSummary(w, cfg, duration)
}

func writeDispatchCSV(w io.Writer, result schema.DispatchResult, fmtFloat func(float64) string) error {
	header := []string{"request_id", "trigger", "metric", "horizon", "rank", "date", "absolute_delta", "event"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range result.Rankings() {
			for i, rec := range r.Impacts {
				row := []string{
					result.RequestID,
					string(result.Trigger),
					r.Metric,
					strconv.Itoa(int(r.Horizon)),
					strconv.Itoa(i + 1),
					formatDate(rec.Date),
					fmtFloat(rec.AbsoluteDelta),
					rec.Event,
				}
				if err := cw.Write(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
