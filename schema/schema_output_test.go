package schema_test

import (
	"testing"

	"github.com/huangsam/shiftpoint/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		expected string
	}{
		{"Critical Score Upper", 100.0, "Critical"},
		{"Critical Score Lower", 80.0, "Critical"},
		{"High Score Upper", 79.9, "High"},
		{"High Score Lower", 60.0, "High"},
		{"Moderate Score Upper", 59.9, "Moderate"},
		{"Moderate Score Lower", 40.0, "Moderate"},
		{"Low Score Upper", 39.9, "Low"},
		{"Low Score Lower", 0.0, "Low"},
		{"Negative Score", -10.0, "Low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, schema.GetPlainLabel(tt.score))
		})
	}
}

func TestEnrichImpacts(t *testing.T) {
	impacts := []schema.ImpactRecord{
		{Event: "Lockdown", AbsoluteDelta: 50},
		{Event: "Reopening", AbsoluteDelta: 35},
		{Event: "Holiday", AbsoluteDelta: 10},
	}

	enriched := schema.EnrichImpacts(impacts)

	require.Len(t, enriched, 3)
	assert.Equal(t, 1, enriched[0].Rank)
	assert.Equal(t, "Critical", enriched[0].Label)
	assert.Equal(t, "Lockdown", enriched[0].Event)
	assert.Equal(t, 2, enriched[1].Rank)
	assert.Equal(t, "High", enriched[1].Label)
	assert.Equal(t, 3, enriched[2].Rank)
	assert.Equal(t, "Low", enriched[2].Label)
}

func TestEnrichImpactsAllZero(t *testing.T) {
	enriched := schema.EnrichImpacts([]schema.ImpactRecord{{Event: "flat"}})
	require.Len(t, enriched, 1)
	assert.Equal(t, "Low", enriched[0].Label)
	assert.Empty(t, schema.EnrichImpacts(nil))
	assert.Zero(t, schema.MaxMagnitude(nil))
}
