package importer

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// BatchStats are the counters for one batch (or, summed, for a whole
// import). Invariant: Processed == Valid + Duplicates + Errors, where Valid
// counts new employees but not duplicates.
type BatchStats struct {
	Processed    int `json:"processed"`
	Valid        int `json:"valid"`
	Duplicates   int `json:"duplicates"`
	Errors       int `json:"errors"`
	NewEmployees int `json:"newEmployees"`
}

func (s *BatchStats) add(o BatchStats) {
	s.Processed += o.Processed
	s.Valid += o.Valid
	s.Duplicates += o.Duplicates
	s.Errors += o.Errors
	s.NewEmployees += o.NewEmployees
}

// BatchResult is the outcome of one batch execution. Success false means
// the entire batch failed (malformed dispatch, timeout, or worker panic)
// and no per-row results exist for it.
type BatchResult struct {
	Success      bool              `json:"success"`
	Error        string            `json:"error,omitempty"`
	ValidRecords []ProcessedRecord `json:"validRecords"`
	Duplicates   []ProcessedRecord `json:"duplicates"`
	NewEmployees []ProcessedRecord `json:"newEmployees"`
	Errors       []ProcessedRecord `json:"errors"`
	Stats        BatchStats        `json:"stats"`
	ProcessedAt  time.Time         `json:"processedAt"`
	MemoryUsage  uint64            `json:"memoryUsage"`
}

// BatchFailure records a batch that failed wholesale.
type BatchFailure struct {
	Batch int    `json:"batch"`
	Rows  int    `json:"rows"`
	Error string `json:"error"`
}

// Summary is the import-level aggregate, merged from batch results in
// submission order.
type Summary struct {
	ValidRecords  []ProcessedRecord `json:"validRecords"`
	Duplicates    []ProcessedRecord `json:"duplicates"`
	NewEmployees  []ProcessedRecord `json:"newEmployees"`
	Errors        []ProcessedRecord `json:"errors"`
	Stats         BatchStats        `json:"stats"`
	Batches       int               `json:"batches"`
	FailedBatches []BatchFailure    `json:"failedBatches,omitempty"`
	StartedAt     time.Time         `json:"startedAt"`
	Duration      time.Duration     `json:"duration"`
}

// Executor partitions an import into batches and runs each batch on its own
// goroutine, bounded by a weighted semaphore. Workers share nothing mutable:
// each owns its batch slice and result, and reads the directory snapshot
// only. Results come back over a per-batch channel and are merged by the
// single calling goroutine, so no locks guard the buckets.
type Executor struct {
	opts       Options
	classifier *Classifier
	sem        *semaphore.Weighted
	log        zerolog.Logger
}

// NewExecutor creates an executor; zero-valued options fall back to
// defaults.
func NewExecutor(opts Options, log zerolog.Logger) *Executor {
	opts = opts.withDefaults()
	return &Executor{
		opts:       opts,
		classifier: NewClassifier(opts),
		sem:        semaphore.NewWeighted(int64(opts.PoolSize)),
		log:        log.With().Str("component", "importer").Logger(),
	}
}

type batch struct {
	rows  []any
	start int
}

func partition(rows []any, size int) []batch {
	var batches []batch
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		batches = append(batches, batch{rows: rows[start:end], start: start})
	}
	return batches
}

// SubmitBatch runs one batch on its own goroutine and waits for the result
// or the worker timeout. A worker that exceeds the timeout is told to stop
// and its batch reported failed with no partial credit; same for a worker
// panic or a dispatch with no directory.
func (e *Executor) SubmitBatch(ctx context.Context, rows []any, startIndex int, dir *Directory) BatchResult {
	if dir == nil {
		return failedBatch("dispatch payload has no directory snapshot")
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.WorkerTimeout)
	defer cancel()

	results := make(chan BatchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- failedBatch(fmt.Sprintf("batch worker panic: %v\n%s", r, debug.Stack()))
			}
		}()
		results <- e.processBatch(ctx, rows, startIndex, dir)
	}()

	select {
	case res := <-results:
		return res
	case <-ctx.Done():
		e.log.Warn().
			Int("start_index", startIndex).
			Int("rows", len(rows)).
			Msg("Batch worker timed out")
		return failedBatch(fmt.Sprintf("batch worker gave up: %v", ctx.Err()))
	}
}

// processBatch classifies rows in input order and buckets the results.
// Runs entirely on one worker goroutine. The context is checked between
// rows so a timed-out or cancelled worker stops instead of burning CPU on
// the rest of its batch after the caller has already given up on it.
func (e *Executor) processBatch(ctx context.Context, rows []any, startIndex int, dir *Directory) BatchResult {
	res := BatchResult{
		Success:      true,
		ValidRecords: make([]ProcessedRecord, 0, len(rows)),
		Duplicates:   []ProcessedRecord{},
		NewEmployees: []ProcessedRecord{},
		Errors:       []ProcessedRecord{},
	}
	seen := newDupeSet()

	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return failedBatch(fmt.Sprintf("batch aborted after %d of %d rows: %v", i, len(rows), err))
		}
		pr := e.classifier.Classify(raw, dir, startIndex+i, seen)
		res.Stats.Processed++
		switch {
		case !pr.IsValid:
			res.Errors = append(res.Errors, pr)
			res.Stats.Errors++
		case pr.IsDuplicate:
			res.Duplicates = append(res.Duplicates, pr)
			res.Stats.Duplicates++
		default:
			res.ValidRecords = append(res.ValidRecords, pr)
			res.Stats.Valid++
			if pr.IsNewEmployee {
				res.NewEmployees = append(res.NewEmployees, pr)
				res.Stats.NewEmployees++
			}
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	res.MemoryUsage = ms.HeapAlloc
	res.ProcessedAt = time.Now()
	return res
}

func failedBatch(msg string) BatchResult {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return BatchResult{
		Success:     false,
		Error:       msg,
		ProcessedAt: time.Now(),
		MemoryUsage: ms.HeapAlloc,
	}
}

// Run executes a whole import: partition, dispatch up to PoolSize batches
// concurrently, then merge every batch result in submission order. Batch
// completion order is irrelevant; rows carry their original index. Returns
// an error only when the context is cancelled before all batches are
// dispatched.
func (e *Executor) Run(ctx context.Context, rows []any, dir *Directory) (*Summary, error) {
	started := time.Now()
	batches := partition(rows, e.opts.BatchSize)

	e.log.Info().
		Int("rows", len(rows)).
		Int("batches", len(batches)).
		Int("pool_size", e.opts.PoolSize).
		Msg("Starting import run")

	results := make([]BatchResult, len(batches))
	var wg sync.WaitGroup
	var dispatchErr error
	for i := range batches {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			dispatchErr = err
			break
		}
		wg.Add(1)
		go func(i int, b batch) {
			defer wg.Done()
			defer e.sem.Release(1)
			results[i] = e.SubmitBatch(ctx, b.rows, b.start, dir)
		}(i, batches[i])
	}
	wg.Wait()

	if dispatchErr != nil {
		return nil, fmt.Errorf("import cancelled: %w", dispatchErr)
	}

	sum := &Summary{
		ValidRecords: []ProcessedRecord{},
		Duplicates:   []ProcessedRecord{},
		NewEmployees: []ProcessedRecord{},
		Errors:       []ProcessedRecord{},
		Batches:      len(batches),
		StartedAt:    started,
	}
	for i, res := range results {
		if !res.Success {
			sum.FailedBatches = append(sum.FailedBatches, BatchFailure{
				Batch: i,
				Rows:  len(batches[i].rows),
				Error: res.Error,
			})
			continue
		}
		sum.ValidRecords = append(sum.ValidRecords, res.ValidRecords...)
		sum.Duplicates = append(sum.Duplicates, res.Duplicates...)
		sum.NewEmployees = append(sum.NewEmployees, res.NewEmployees...)
		sum.Errors = append(sum.Errors, res.Errors...)
		sum.Stats.add(res.Stats)
	}
	sum.Duration = time.Since(started)

	e.log.Info().
		Int("processed", sum.Stats.Processed).
		Int("valid", sum.Stats.Valid).
		Int("duplicates", sum.Stats.Duplicates).
		Int("errors", sum.Stats.Errors).
		Int("new_employees", sum.Stats.NewEmployees).
		Int("failed_batches", len(sum.FailedBatches)).
		Dur("duration", sum.Duration).
		Msg("Import run complete")

	return sum, nil
}
