package pipeline

import (
	"context"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
)

// MinimumStockJobName identifies the minimum-stock suggestion job in run records
const MinimumStockJobName = "minimum_stock"

// Suggester computes one product/branch minimum-stock suggestion
type Suggester interface {
	SuggestMinimumStock(ctx context.Context, productID, branchID string, asOf time.Time) (domain.MinimumStockSuggestion, error)
}

// JobConfig holds configuration for a job instance
type JobConfig struct {
	Name        string
	WorkerCount int    // Number of concurrent workers
	OutputDir   string // Directory for CSV reports
	BatchSize   int    // Suggestions buffered before they are persisted

	// Branches restricts the job; empty means every branch of the ledger
	Branches []string

	// ReportPrefix is the object key prefix used when uploading reports
	ReportPrefix string
}

// DefaultJobConfig returns sensible defaults
func DefaultJobConfig(name string) JobConfig {
	return JobConfig{
		Name:         name,
		WorkerCount:  4,
		OutputDir:    "data/reports/" + name,
		BatchSize:    200,
		ReportPrefix: "reports/" + name,
	}
}

// RunStatus represents the current state of a job run
type RunStatus string

const (
	StatusPending    RunStatus = "pending"
	StatusProcessing RunStatus = "processing"
	StatusCompleted  RunStatus = "completed"
	StatusFailed     RunStatus = "failed"
)

// Run tracks a single execution of a job
type Run struct {
	ID           int64         `json:"id"`
	JobName      string        `json:"job_name"`
	Status       RunStatus     `json:"status"`
	Total        int           `json:"total"`
	Processed    int           `json:"processed"`
	Succeeded    int           `json:"succeeded"`
	Failed       int           `json:"failed"`
	ReportPath   string        `json:"report_path,omitempty"`
	ReportURL    string        `json:"report_url,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// Done reports whether the run reached a final state
func (r *Run) Done() bool {
	return r.Status == StatusCompleted || r.Status == StatusFailed
}

// ItemFailure records one product/branch that could not be processed
type ItemFailure struct {
	ProductID string    `json:"product_id"`
	BranchID  string    `json:"branch_id"`
	Error     string    `json:"error"`
	FailedAt  time.Time `json:"failed_at"`
}

// RunRepository persists run progress
type RunRepository interface {
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id int64) (*Run, error)
	IncrementProgress(ctx context.Context, id int64, succeeded bool) error
	RecordFailure(ctx context.Context, id int64, failure ItemFailure) error
}

// item is one unit of work
type item struct {
	productID string
	branchID  string
}
