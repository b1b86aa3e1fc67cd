package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/rs/zerolog/log"
)

var reportHeader = []string{
	"product_id", "branch_id", "daily_average", "confidence",
	"has_peak", "suggested_minimum", "basis", "computed_at",
}

// StreamingAggregator streams suggestions into a CSV report and hands them to
// the flush callback in batches
type StreamingAggregator struct {
	config        JobConfig
	path          string
	file          *os.File
	writer        *csv.Writer
	buffer        []domain.MinimumStockSuggestion
	written       int
	mu            sync.Mutex
	flushCallback func(ctx context.Context, batch []domain.MinimumStockSuggestion) error
}

// NewStreamingAggregator creates the report file for a run and writes its header
func NewStreamingAggregator(
	config JobConfig,
	runID int64,
	date time.Time,
	flushCallback func(ctx context.Context, batch []domain.MinimumStockSuggestion) error,
) (*StreamingAggregator, error) {
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	path := filepath.Join(config.OutputDir, ReportFileName(runID, date))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(reportHeader); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write report header: %w", err)
	}

	batchSize := config.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	return &StreamingAggregator{
		config:        config,
		path:          path,
		file:          file,
		writer:        writer,
		buffer:        make([]domain.MinimumStockSuggestion, 0, batchSize),
		flushCallback: flushCallback,
	}, nil
}

// ReportFileName names the CSV report of a run
func ReportFileName(runID int64, date time.Time) string {
	return fmt.Sprintf("%s_run%d.csv", date.Format("20060102"), runID)
}

// Add writes one suggestion to the report and buffers it for the callback
func (sa *StreamingAggregator) Add(ctx context.Context, s domain.MinimumStockSuggestion) error {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if err := sa.writer.Write(reportRecord(s)); err != nil {
		return fmt.Errorf("failed to write report row: %w", err)
	}
	sa.written++
	sa.buffer = append(sa.buffer, s)

	if len(sa.buffer) >= cap(sa.buffer) {
		return sa.flushLocked(ctx)
	}

	return nil
}

// Finalize flushes any remaining suggestions, closes the report and returns its path
func (sa *StreamingAggregator) Finalize(ctx context.Context) (string, error) {
	sa.mu.Lock()
	defer sa.mu.Unlock()

	if err := sa.flushLocked(ctx); err != nil {
		sa.file.Close()
		return "", err
	}

	sa.writer.Flush()
	if err := sa.writer.Error(); err != nil {
		sa.file.Close()
		return "", fmt.Errorf("failed to flush report: %w", err)
	}
	if err := sa.file.Close(); err != nil {
		return "", fmt.Errorf("failed to close report: %w", err)
	}

	log.Info().Str("job", sa.config.Name).Int("rows", sa.written).Str("path", sa.path).Msg("pipeline: report written")
	return sa.path, nil
}

// Abort closes the report without flushing
func (sa *StreamingAggregator) Abort() {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	sa.file.Close()
}

// flushLocked hands the buffer to the callback
// Must be called with sa.mu locked
func (sa *StreamingAggregator) flushLocked(ctx context.Context) error {
	if len(sa.buffer) == 0 {
		return nil
	}

	if sa.flushCallback != nil {
		batch := append([]domain.MinimumStockSuggestion(nil), sa.buffer...)
		if err := sa.flushCallback(ctx, batch); err != nil {
			return fmt.Errorf("flush callback failed: %w", err)
		}
	}

	log.Debug().Str("job", sa.config.Name).Int("suggestions", len(sa.buffer)).Msg("pipeline: batch flushed")
	sa.buffer = sa.buffer[:0]

	return nil
}

// GetBufferStats returns current buffer statistics
func (sa *StreamingAggregator) GetBufferStats() (buffered int, written int) {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return len(sa.buffer), sa.written
}

func reportRecord(s domain.MinimumStockSuggestion) []string {
	return []string{
		s.ProductID,
		s.BranchID,
		strconv.FormatFloat(s.DailyAverage, 'f', 4, 64),
		string(s.Confidence),
		strconv.FormatBool(s.HasPeak),
		strconv.FormatInt(s.Suggested, 10),
		string(s.Basis),
		s.ComputedAt.UTC().Format(time.RFC3339),
	}
}
