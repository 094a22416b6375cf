//go:build basic

// Package integration contains end-to-end tests for the shiftpoint binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
// Or use: make test-integration
package integration

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSegmentFindsLevelShift checks that a single breakpoint lands on the shift and its event.
func TestSegmentFindsLevelShift(t *testing.T) {
	args := append([]string{"segment", "--cache-backend", "none", "--history-backend", "none", "--output", "json"}, writeDataset(t)...)
	out, err := runShiftpoint(t, args...)
	require.NoError(t, err)

	var reports []schema.BreakpointReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, "covid", report.Metric)
	assert.Equal(t, 1, report.K)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, stepDay, report.Rows[0].Index)
	assert.Equal(t, "Lockdown", report.Rows[0].Event)
	assert.InDelta(t, 0, report.Cost, 1e-9)
}

// TestRankCSVMatchesDeltas checks the ranked deltas against the generated table.
func TestRankCSVMatchesDeltas(t *testing.T) {
	for _, tc := range []struct {
		horizon string
		delta   string
	}{
		{"7", "40.00"},
		{"14", "45.00"},
	} {
		t.Run("horizon "+tc.horizon, func(t *testing.T) {
			args := append([]string{
				"rank", "--cache-backend", "none", "--history-backend", "none",
				"--output", "csv", "--horizon", tc.horizon,
			}, writeDataset(t)...)
			out, err := runShiftpoint(t, args...)
			require.NoError(t, err)

			records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "covid", records[1][0])
			assert.Equal(t, "1", records[1][1])
			assert.Equal(t, tc.horizon, records[1][3])
			assert.Equal(t, tc.delta, records[1][4])
			assert.Equal(t, "Lockdown", records[1][6])
		})
	}
}

// TestDispatchRejectsBadClicks checks that validation errors exit non-zero.
func TestDispatchRejectsBadClicks(t *testing.T) {
	args := append([]string{
		"dispatch", "--cache-backend", "none", "--history-backend", "none",
		"--trigger", "recomputeRanked", "--clicks", "-1",
	}, writeDataset(t)...)
	_, err := runShiftpoint(t, args...)
	assert.Error(t, err)
}
