package iocache

import (
	"errors"
	"fmt"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/internal/parquet"
)

// ExportHistory writes runs and impacts from store into two Parquet files
// named after outputFile.
func ExportHistory(store contract.HistoryStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("history tracking is disabled; set --history-backend")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total runs: %d\n", status.TotalRuns)
	fmt.Printf("Total impact records: %d\n", status.TableSizes[impactsTable])

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	impacts, err := store.GetAllImpacts()
	if err != nil {
		return fmt.Errorf("failed to retrieve impacts: %w", err)
	}

	parquetRuns := parquet.ConvertRunRecords(runs)
	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	fmt.Printf("Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	parquetImpacts := parquet.ConvertImpactRows(impacts)
	impactsFile := outputFile + ".impacts.parquet"
	if err := parquet.WriteImpactsParquet(parquetImpacts, impactsFile); err != nil {
		return fmt.Errorf("failed to write impacts: %w", err)
	}
	fmt.Printf("Exported %d impact records to: %s\n", len(parquetImpacts), impactsFile)

	return nil
}
