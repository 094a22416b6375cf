package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/parquet"
	"github.com/huangsam/shiftpoint/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// rankingJSON is a MetricRanking with rank and label added to each row.
type rankingJSON struct {
	Metric  string                `json:"metric"`
	Horizon schema.Horizon        `json:"horizon"`
	Impacts []schema.RankedImpact `json:"impacts"`
}

// PrintRankingResults outputs impact rankings in the configured format.
func PrintRankingResults(rankings []schema.MetricRanking, cfg *contract.Config, duration time.Duration) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, enrichRankings(rankings))
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeRankingsCSV(w, rankings, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeParquet(cfg.OutputFile, parquetRankings(rankings))
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeRankingTables(w, rankings, cfg, fmtFloat); err != nil {
				return err
			}
			return writeSummary(w, cfg, duration)
		}, "Wrote table")
	}
}

func enrichRankings(rankings []schema.MetricRanking) []rankingJSON {
	out := make([]rankingJSON, len(rankings))
	for i, r := range rankings {
		out[i] = rankingJSON{Metric: r.Metric, Horizon: r.Horizon, Impacts: schema.EnrichImpacts(r.Impacts)}
	}
	return out
}

func parquetRankings(rankings []schema.MetricRanking) []parquet.RankedImpact {
	var rows []parquet.RankedImpact
	for _, r := range rankings {
		rows = append(rows, parquet.ConvertRanking(r.Metric, r.Impacts)...)
	}
	return rows
}

// impactLabel scores magnitude against the largest one in its table.
func impactLabel(magnitude, top float64, useColors bool) string {
	score := contract.RelativeScore(magnitude, top)
	if useColors {
		return contract.GetColorLabel(score)
	}
	return contract.GetPlainLabel(score)
}

func writeRankingTables(w io.Writer, rankings []schema.MetricRanking, cfg *contract.Config, fmtFloat func(float64) string) error {
	eventWidth := getMaxTableEventWidth(cfg)
	for _, r := range rankings {
		if _, err := fmt.Fprintf(w, "🏆 %s: top %d events at %s\n", r.Metric, len(r.Impacts), r.Horizon); err != nil {
			return err
		}

		table := tablewriter.NewWriter(w)
		table.Header([]string{"Rank", "Date", "Horizon", "Abs Delta", "Label", "Event"})
		table.Configure(func(cfg *tablewriter.Config) {
			cfg.Row.Alignment.Global = tw.AlignRight
		})

		top := schema.MaxMagnitude(r.Impacts)
		data := make([][]string, 0, len(r.Impacts))
		for i, rec := range r.Impacts {
			data = append(data, []string{
				strconv.Itoa(i + 1),
				formatDate(rec.Date),
				rec.Horizon.String(),
				fmtFloat(rec.AbsoluteDelta),
				impactLabel(rec.AbsoluteDelta, top, cfg.UseColors),
				contract.TruncateText(rec.Event, eventWidth),
			})
		}
		if err := table.Bulk(data); err != nil {
			return err
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

func writeRankingsCSV(w io.Writer, rankings []schema.MetricRanking, fmtFloat func(float64) string) error {
	header := []string{"metric", "rank", "date", "horizon", "absolute_delta", "label", "event"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range rankings {
			top := schema.MaxMagnitude(r.Impacts)
			for i, rec := range r.Impacts {
				row := []string{
					r.Metric,
					strconv.Itoa(i + 1),
					formatDate(rec.Date),
					strconv.Itoa(int(rec.Horizon)),
					fmtFloat(rec.AbsoluteDelta),
					impactLabel(rec.AbsoluteDelta, top, false),
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
