package importer

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecutor(opts Options) *Executor {
	return NewExecutor(opts, zerolog.Nop())
}

func checkStatsInvariant(t *testing.T, stats BatchStats, validRecords, duplicates, errors []ProcessedRecord) {
	t.Helper()
	assert.Equal(t, stats.Processed, stats.Valid+stats.Duplicates+stats.Errors)
	assert.Equal(t, stats.Valid, len(validRecords))
	assert.Equal(t, stats.Duplicates, len(duplicates))
	assert.Equal(t, stats.Errors, len(errors))
}

func TestSubmitBatchBuckets(t *testing.T) {
	e := testExecutor(Options{})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	rows := []any{
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"},         // valid existing
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"},         // in-batch duplicate
		map[string]any{"Employee Name": "Someone Else New", "Date": "2024-01-10"}, // new employee
		map[string]any{"Employee Name": "Jane Doe"},                               // missing date
		42, // malformed
	}

	res := e.SubmitBatch(context.Background(), rows, 0, dir)
	require.True(t, res.Success)

	assert.Equal(t, 5, res.Stats.Processed)
	assert.Equal(t, 2, res.Stats.Valid)
	assert.Equal(t, 1, res.Stats.Duplicates)
	assert.Equal(t, 2, res.Stats.Errors)
	assert.Equal(t, 1, res.Stats.NewEmployees)
	checkStatsInvariant(t, res.Stats, res.ValidRecords, res.Duplicates, res.Errors)

	// New employees appear in both buckets.
	require.Len(t, res.NewEmployees, 1)
	assert.Contains(t, res.ValidRecords, res.NewEmployees[0])

	assert.False(t, res.ProcessedAt.IsZero())
	assert.NotZero(t, res.MemoryUsage)
}

func TestSubmitBatchMalformedRowDoesNotAbortSiblings(t *testing.T) {
	e := testExecutor(Options{})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	rows := []any{
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-08"},
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-09"},
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"},
		42,
		map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-11"},
	}

	res := e.SubmitBatch(context.Background(), rows, 0, dir)
	require.True(t, res.Success)
	assert.Equal(t, 5, res.Stats.Processed)
	assert.Equal(t, 4, res.Stats.Valid)
	assert.Equal(t, 1, res.Stats.Errors)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 3, res.Errors[0].Index)
	assert.Equal(t, ErrInvalidRecordFormat, res.Errors[0].Errors[0].Type)
}

func TestSubmitBatchMissingDirectory(t *testing.T) {
	e := testExecutor(Options{})

	res := e.SubmitBatch(context.Background(), []any{map[string]any{}}, 0, nil)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.Stats.Processed)
}

func TestSubmitBatchEmptyAndSingle(t *testing.T) {
	e := testExecutor(Options{})
	dir := BuildDirectory(nil)

	empty := e.SubmitBatch(context.Background(), nil, 0, dir)
	require.True(t, empty.Success)
	checkStatsInvariant(t, empty.Stats, empty.ValidRecords, empty.Duplicates, empty.Errors)
	assert.Zero(t, empty.Stats.Processed)

	single := e.SubmitBatch(context.Background(), []any{map[string]any{"name": "A", "date": "2024-01-01"}}, 0, dir)
	require.True(t, single.Success)
	assert.Equal(t, 1, single.Stats.Processed)
	checkStatsInvariant(t, single.Stats, single.ValidRecords, single.Duplicates, single.Errors)
}

func TestRunAcrossWorkerPool(t *testing.T) {
	e := testExecutor(Options{BatchSize: 10, PoolSize: 4})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	rows := make([]any, 100)
	for i := range rows {
		rows[i] = map[string]any{
			"Employee Name": "Jane Doe",
			"Date":          fmt.Sprintf("2024-%02d-%02d", i/28+1, i%28+1),
		}
	}

	sum, err := e.Run(context.Background(), rows, dir)
	require.NoError(t, err)

	assert.Equal(t, 10, sum.Batches)
	assert.Empty(t, sum.FailedBatches)
	assert.Equal(t, 100, sum.Stats.Processed)
	assert.Equal(t, 100, sum.Stats.Valid)
	checkStatsInvariant(t, sum.Stats, sum.ValidRecords, sum.Duplicates, sum.Errors)
}

func TestRunMergesInSubmissionOrder(t *testing.T) {
	e := testExecutor(Options{BatchSize: 2, PoolSize: 4})
	dir := BuildDirectory(nil)

	rows := make([]any, 9)
	for i := range rows {
		rows[i] = map[string]any{"name": fmt.Sprintf("Person %d", i), "date": "2024-01-01"}
	}

	sum, err := e.Run(context.Background(), rows, dir)
	require.NoError(t, err)
	require.Len(t, sum.ValidRecords, 9)

	// Rows keep their original indexes and the merged buckets follow
	// submission order regardless of which worker finished first.
	for i, pr := range sum.ValidRecords {
		assert.Equal(t, i, pr.Index)
	}
}

func TestRunEmptyImport(t *testing.T) {
	e := testExecutor(Options{})
	sum, err := e.Run(context.Background(), nil, BuildDirectory(nil))
	require.NoError(t, err)
	assert.Zero(t, sum.Batches)
	assert.Zero(t, sum.Stats.Processed)
	checkStatsInvariant(t, sum.Stats, sum.ValidRecords, sum.Duplicates, sum.Errors)
}

func TestSubmitBatchWorkerTimeout(t *testing.T) {
	e := testExecutor(Options{WorkerTimeout: time.Nanosecond})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	rows := make([]any, 5000)
	for i := range rows {
		rows[i] = map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"}
	}

	res := e.SubmitBatch(context.Background(), rows, 0, dir)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, res.Stats.Processed, "a timed-out batch gets no partial credit")
}

func TestSubmitBatchCancelledContextStopsWorker(t *testing.T) {
	e := testExecutor(Options{})
	dir := BuildDirectory(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows := []any{
		map[string]any{"name": "A", "date": "2024-01-01"},
		map[string]any{"name": "B", "date": "2024-01-01"},
	}

	res := e.SubmitBatch(ctx, rows, 0, dir)
	assert.False(t, res.Success)
	assert.Zero(t, res.Stats.Processed, "worker must bail out before classifying rows")
}

func TestRunReportsTimedOutBatches(t *testing.T) {
	e := testExecutor(Options{WorkerTimeout: time.Nanosecond, BatchSize: 5000, PoolSize: 2})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	rows := make([]any, 10000)
	for i := range rows {
		rows[i] = map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"}
	}

	sum, err := e.Run(context.Background(), rows, dir)
	require.NoError(t, err)

	require.Len(t, sum.FailedBatches, 2)
	assert.Equal(t, 5000, sum.FailedBatches[0].Rows)
	assert.Zero(t, sum.Stats.Processed)
	checkStatsInvariant(t, sum.Stats, sum.ValidRecords, sum.Duplicates, sum.Errors)
}

func TestRunCancelledContext(t *testing.T) {
	e := testExecutor(Options{BatchSize: 1, PoolSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Run(ctx, []any{map[string]any{}, map[string]any{}}, BuildDirectory(nil))
	assert.Error(t, err)
}

func TestPartition(t *testing.T) {
	rows := []any{1, 2, 3, 4, 5}

	batches := partition(rows, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, 0, batches[0].start)
	assert.Equal(t, 2, batches[1].start)
	assert.Equal(t, 4, batches[2].start)
	assert.Len(t, batches[2].rows, 1)

	assert.Nil(t, partition(nil, 2))
	assert.Len(t, partition(rows, 10), 1)
}
