package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/repository"
	"github.com/andresuchdata/autodrp/backend-go/internal/storage"
	"github.com/rs/zerolog/log"
)

// Worker runs the minimum-stock job: one suggestion per active product and branch
type Worker struct {
	config    JobConfig
	catalog   repository.ProductReader
	branches  repository.BranchReader
	suggester Suggester
	sink      repository.SuggestionWriter
	repo      RunRepository
	uploader  storage.ObjectStorage
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewWorker creates a new job worker. uploader may be nil.
func NewWorker(
	config JobConfig,
	catalog repository.ProductReader,
	branches repository.BranchReader,
	suggester Suggester,
	sink repository.SuggestionWriter,
	repo RunRepository,
	uploader storage.ObjectStorage,
) *Worker {
	if config.Name == "" {
		config.Name = MinimumStockJobName
	}
	return &Worker{
		config:    config,
		catalog:   catalog,
		branches:  branches,
		suggester: suggester,
		sink:      sink,
		repo:      repo,
		uploader:  uploader,
		now:       time.Now,
	}
}

// Start records a new run and processes it in the background
func (w *Worker) Start(ctx context.Context) (*Run, error) {
	run, err := w.createRun(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := *run
	bg := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.execute(bg, run); err != nil {
			log.Error().Err(err).Int64("run_id", run.ID).Str("job", w.config.Name).Msg("pipeline: run failed")
		}
	}()

	return &snapshot, nil
}

// Wait blocks until every background run started by Start has finished
func (w *Worker) Wait() {
	w.wg.Wait()
}

// Run processes a new run synchronously and returns its final state. The
// error is non-nil only when the run failed as a whole.
func (w *Worker) Run(ctx context.Context) (*Run, error) {
	run, err := w.createRun(ctx)
	if err != nil {
		return nil, err
	}

	execErr := w.execute(ctx, run)

	final, err := w.repo.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	return final, execErr
}

// Get returns the current state of a run
func (w *Worker) Get(ctx context.Context, id int64) (*Run, error) {
	return w.repo.GetRun(ctx, id)
}

func (w *Worker) createRun(ctx context.Context) (*Run, error) {
	run := &Run{
		JobName:   w.config.Name,
		Status:    StatusPending,
		StartedAt: w.now().UTC(),
	}
	if err := w.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

func (w *Worker) execute(ctx context.Context, run *Run) error {
	started := w.now()
	logger := log.With().Int64("run_id", run.ID).Str("job", w.config.Name).Logger()

	run.Status = StatusProcessing
	if err := w.repo.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	items, err := w.collectItems(ctx)
	if err != nil {
		return w.fail(ctx, run, err)
	}

	run.Total = len(items)
	if err := w.repo.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	logger.Info().Int("items", run.Total).Msg("pipeline: run started")

	aggregator, err := NewStreamingAggregator(w.config, run.ID, started, w.sink.SaveMinimumStockSuggestions)
	if err != nil {
		return w.fail(ctx, run, err)
	}

	if err := w.processItemsParallel(ctx, run, items, aggregator); err != nil {
		aggregator.Abort()
		return w.fail(ctx, run, err)
	}

	reportPath, err := aggregator.Finalize(ctx)
	if err != nil {
		return w.fail(ctx, run, fmt.Errorf("aggregation failed: %w", err))
	}
	run.ReportPath = reportPath

	if w.uploader != nil {
		key := path.Join(w.config.ReportPrefix, filepath.Base(reportPath))
		url, err := w.uploader.UploadFile(ctx, key, reportPath)
		if err != nil {
			// the local report is still available
			logger.Warn().Err(err).Str("key", key).Msg("pipeline: report upload failed")
		} else {
			run.ReportURL = url
		}
	}

	run.Status = StatusCompleted
	now := w.now().UTC()
	run.CompletedAt = &now
	if err := w.repo.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	if run.ReportURL != "" {
		w.publishManifest(ctx, run.ID, reportPath)
	}

	logger.Info().Dur("duration", time.Since(started)).Msg("pipeline: run completed")
	return nil
}

// publishManifest uploads the final run state next to the report, so a bucket
// listing shows each report's counts and failures
func (w *Worker) publishManifest(ctx context.Context, runID int64, reportPath string) {
	base := strings.TrimSuffix(filepath.Base(reportPath), filepath.Ext(reportPath))
	key := path.Join(w.config.ReportPrefix, base+".json")

	final, err := w.repo.GetRun(ctx, runID)
	if err != nil {
		log.Warn().Err(err).Int64("run_id", runID).Msg("pipeline: failed to read run for manifest")
		return
	}
	data, err := json.MarshalIndent(final, "", "  ")
	if err != nil {
		log.Warn().Err(err).Int64("run_id", runID).Msg("pipeline: failed to encode manifest")
		return
	}
	if err := w.uploader.UploadObject(ctx, key, data); err != nil {
		log.Warn().Err(err).Int64("run_id", runID).Str("key", key).Msg("pipeline: manifest upload failed")
	}
}

// collectItems expands the active catalog over the configured branches
func (w *Worker) collectItems(ctx context.Context) ([]item, error) {
	products, err := w.catalog.ListActiveProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product catalog: %w", err)
	}

	branchIDs := w.config.Branches
	if len(branchIDs) == 0 {
		branches, err := w.branches.ListBranches(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch branches: %w", err)
		}
		for _, b := range branches {
			branchIDs = append(branchIDs, b.ID)
		}
	}

	items := make([]item, 0, len(products)*len(branchIDs))
	for _, p := range products {
		for _, b := range branchIDs {
			items = append(items, item{productID: p.ID, branchID: b})
		}
	}
	return items, nil
}

// processItemsParallel processes items using a worker pool. Item errors are
// recorded and skipped; only a failing report sink aborts the run.
func (w *Worker) processItemsParallel(ctx context.Context, run *Run, items []item, aggregator *StreamingAggregator) error {
	workerCount := w.config.WorkerCount
	if workerCount < 1 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	itemChan := make(chan item, workerCount)
	errChan := make(chan error, 1)
	var wg sync.WaitGroup

	asOf := w.now()

	// Start workers
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for it := range itemChan {
				if err := w.processItem(ctx, run, it, asOf, aggregator); err != nil {
					select {
					case errChan <- err:
					default:
					}
					cancel()
				}
			}
		}()
	}

	// Enqueue items
enqueue:
	for _, it := range items {
		select {
		case <-ctx.Done():
			break enqueue
		case itemChan <- it:
		}
	}
	close(itemChan)

	// Wait for all workers
	wg.Wait()
	close(errChan)

	if err := <-errChan; err != nil {
		return err
	}
	return ctx.Err()
}

// processItem returns an error only for failures that must stop the run
func (w *Worker) processItem(ctx context.Context, run *Run, it item, asOf time.Time, aggregator *StreamingAggregator) error {
	if ctx.Err() != nil {
		return nil
	}

	suggestion, err := w.suggester.SuggestMinimumStock(ctx, it.productID, it.branchID, asOf)
	if err != nil {
		w.markItemFailed(ctx, run, it, err)
		return nil
	}

	if err := aggregator.Add(ctx, suggestion); err != nil {
		return err
	}

	if err := w.repo.IncrementProgress(ctx, run.ID, true); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("pipeline: failed to increment progress")
	}
	return nil
}

func (w *Worker) markItemFailed(ctx context.Context, run *Run, it item, cause error) {
	log.Warn().Err(cause).
		Int64("run_id", run.ID).
		Str("product_id", it.productID).
		Str("branch_id", it.branchID).
		Msg("pipeline: item failed")

	failure := ItemFailure{
		ProductID: it.productID,
		BranchID:  it.branchID,
		Error:     cause.Error(),
		FailedAt:  w.now().UTC(),
	}
	if err := w.repo.RecordFailure(ctx, run.ID, failure); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("pipeline: failed to record item failure")
	}
	if err := w.repo.IncrementProgress(ctx, run.ID, false); err != nil {
		log.Warn().Err(err).Int64("run_id", run.ID).Msg("pipeline: failed to increment progress")
	}
}

func (w *Worker) fail(ctx context.Context, run *Run, cause error) error {
	run.Status = StatusFailed
	run.ErrorMessage = cause.Error()
	now := w.now().UTC()
	run.CompletedAt = &now
	if err := w.repo.UpdateRun(ctx, run); err != nil {
		log.Error().Err(err).Int64("run_id", run.ID).Msg("pipeline: failed to mark run failed")
	}
	return cause
}
