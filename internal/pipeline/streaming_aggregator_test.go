package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"testing"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingAggregator_FlushesInBatches(t *testing.T) {
	cfg := DefaultJobConfig("test")
	cfg.OutputDir = t.TempDir()
	cfg.BatchSize = 2

	var batches [][]domain.MinimumStockSuggestion
	agg, err := NewStreamingAggregator(cfg, 7, runDate, func(ctx context.Context, batch []domain.MinimumStockSuggestion) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	for _, branch := range []string{"A", "B", "C"} {
		require.NoError(t, agg.Add(ctx, domain.MinimumStockSuggestion{
			ProductID:    "P1",
			BranchID:     branch,
			DailyAverage: 1.25,
			Confidence:   domain.ConfidenceMedium,
			HasPeak:      branch == "B",
			Suggested:    13,
			Basis:        domain.BasisSales,
			ComputedAt:   runDate,
		}))
	}

	buffered, written := agg.GetBufferStats()
	assert.Equal(t, 1, buffered)
	assert.Equal(t, 3, written)
	require.Len(t, batches, 1)

	path, err := agg.Finalize(ctx)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 2)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, "C", batches[1][0].BranchID)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, reportHeader, records[0])
	assert.Equal(t, []string{"P1", "B", "1.2500", "medium", "true", "13", "sales", "2024-06-30T06:00:00Z"}, records[2])
}

func TestReportFileName(t *testing.T) {
	assert.Equal(t, "20240630_run12.csv", ReportFileName(12, runDate))
}
