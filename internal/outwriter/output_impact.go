package outwriter

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/parquet"
	"github.com/huangsam/shiftpoint/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintImpactResults outputs point impact lookups in the configured format.
// Metrics without a change point on or before the date are shown with empty cells.
func PrintImpactResults(impacts []schema.MetricImpact, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, impacts)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeImpactsCSV(w, impacts, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		var rows []parquet.RankedImpact
		for _, m := range impacts {
			if m.Found {
				rows = append(rows, parquet.ConvertRanking(m.Metric, []schema.ImpactRecord{m.Impact})...)
			}
		}
		return writeParquet(cfg.OutputFile, rows)
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeImpactsTable(w, impacts, cfg, fmtFloat, duration)
		}, "Wrote table")
	}
}

func impactCells(m schema.MetricImpact, fmtFloat func(float64) string) (date, delta, event string) {
	if !m.Found {
		return "-", "-", ""
	}
	return formatDate(m.Impact.Date), fmtFloat(m.Impact.AbsoluteDelta), m.Impact.Event
}

func writeImpactsTable(w io.Writer, impacts []schema.MetricImpact, cfg *contract.Config, fmtFloat func(float64) string, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "As Of", "Horizon", "Change Point", "Abs Delta", "Event"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	eventWidth := getMaxTableEventWidth(cfg)
	data := make([][]string, 0, len(impacts))
	for _, m := range impacts {
		date, delta, event := impactCells(m, fmtFloat)
		data = append(data, []string{
			m.Metric,
			formatDate(m.Date),
			m.Horizon.String(),
			date,
			delta,
			contract.TruncateText(event, eventWidth),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	return writeSummary(w, cfg, duration)
}

func writeImpactsCSV(w io.Writer, impacts []schema.MetricImpact, fmtFloat func(float64) string) error {
	header := []string{"metric", "as_of", "horizon", "found", "change_point", "absolute_delta", "event"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range impacts {
			date, delta, event := impactCells(m, fmtFloat)
			rec := []string{
				m.Metric,
				formatDate(m.Date),
				strconv.Itoa(int(m.Horizon)),
				strconv.FormatBool(m.Found),
				date,
				delta,
				event,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
