package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fullship/attendance-dashboard-sub008/internal/client"
	"github.com/Fullship/attendance-dashboard-sub008/internal/importer"
	"github.com/Fullship/attendance-dashboard-sub008/internal/repository"
)

// Import event types published to NATS.
const (
	EventImportCompleted = "completed"
	EventImportFailed    = "failed"
)

// DeviceFeed pulls clock events from the access-control device API.
type DeviceFeed interface {
	FetchEvents(ctx context.Context, since time.Time) ([]client.DeviceEvent, error)
}

// ImportService orchestrates one bulk import: directory snapshot, parallel
// classification, durable storage of resolved records, and the resulting
// summary.
type ImportService struct {
	employees  *repository.EmployeeRepository
	attendance *repository.AttendanceRepository
	executor   *importer.Executor
	device     DeviceFeed
	events     *client.EventPublisher
	log        zerolog.Logger
}

// NewImportService creates a new import service. device and events may be
// nil when the corresponding integrations are not configured.
func NewImportService(
	employees *repository.EmployeeRepository,
	attendance *repository.AttendanceRepository,
	executor *importer.Executor,
	device DeviceFeed,
	events *client.EventPublisher,
	log zerolog.Logger,
) *ImportService {
	return &ImportService{
		employees:  employees,
		attendance: attendance,
		executor:   executor,
		device:     device,
		events:     events,
		log:        log.With().Str("component", "import_service").Logger(),
	}
}

// ImportRequest is one bulk import submission.
type ImportRequest struct {
	Rows     []any
	Source   string // "upload" or "device"
	FileName string
}

// ImportSummary is the response to the admin console after an import.
type ImportSummary struct {
	JobID           string                     `json:"jobId"`
	Source          string                     `json:"source"`
	FileName        string                     `json:"fileName,omitempty"`
	Stats           importer.BatchStats        `json:"stats"`
	Stored          int                        `json:"stored"`
	SkippedExisting int                        `json:"skippedExisting"`
	Batches         int                        `json:"batches"`
	FailedBatches   []importer.BatchFailure    `json:"failedBatches,omitempty"`
	Errors          []importer.ProcessedRecord `json:"errors,omitempty"`
	NewEmployees    []importer.ProcessedRecord `json:"newEmployees,omitempty"`
	Duplicates      []importer.ProcessedRecord `json:"duplicates,omitempty"`
	Duration        string                     `json:"duration"`
}

// RunImport executes the full pipeline for a set of raw rows.
func (s *ImportService) RunImport(ctx context.Context, req *ImportRequest) (*ImportSummary, error) {
	if req.Source == "" {
		req.Source = "upload"
	}

	dir, err := s.employees.GetDirectory(ctx)
	if err != nil {
		return nil, fmt.Errorf("build directory snapshot: %w", err)
	}

	job, err := s.attendance.CreateImportJob(ctx, req.Source, req.FileName)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID.String()).
		Str("source", req.Source).
		Int("rows", len(req.Rows)).
		Int("directory_size", dir.Size()).
		Msg("Import started")

	sum, err := s.executor.Run(ctx, req.Rows, dir)
	if err != nil {
		s.failJob(ctx, job, err)
		return nil, err
	}

	stored, skipped, err := s.persist(ctx, req.Source, sum.ValidRecords)
	if err != nil {
		s.failJob(ctx, job, err)
		return nil, err
	}

	job.Status = repository.JobCompleted
	job.Processed = sum.Stats.Processed
	job.Valid = sum.Stats.Valid
	job.Duplicates = sum.Stats.Duplicates
	job.Errors = sum.Stats.Errors
	job.NewEmployees = sum.Stats.NewEmployees
	job.Stored = stored
	if err := s.attendance.CompleteImportJob(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to finalize import job")
	}

	if s.events != nil {
		s.events.PublishImportEvent(EventImportCompleted, client.ImportEvent{
			JobID:        job.ID.String(),
			Source:       req.Source,
			Processed:    sum.Stats.Processed,
			Valid:        sum.Stats.Valid,
			Duplicates:   sum.Stats.Duplicates,
			Errors:       sum.Stats.Errors,
			NewEmployees: sum.Stats.NewEmployees,
			Stored:       stored,
		})
	}

	return &ImportSummary{
		JobID:           job.ID.String(),
		Source:          req.Source,
		FileName:        req.FileName,
		Stats:           sum.Stats,
		Stored:          stored,
		SkippedExisting: skipped,
		Batches:         sum.Batches,
		FailedBatches:   sum.FailedBatches,
		Errors:          sum.Errors,
		NewEmployees:    sum.NewEmployees,
		Duplicates:      sum.Duplicates,
		Duration:        sum.Duration.String(),
	}, nil
}

// SyncDevice pulls clock events since the given time and runs them through
// the pipeline as one import.
func (s *ImportService) SyncDevice(ctx context.Context, since time.Time) (*ImportSummary, error) {
	if s.device == nil {
		return nil, fmt.Errorf("device API is not configured")
	}

	events, err := s.device.FetchEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("fetch device events: %w", err)
	}

	return s.RunImport(ctx, &ImportRequest{
		Rows:   RowsFromDeviceEvents(events),
		Source: "device",
	})
}

// failJob marks a job failed; best effort, the original error is what the
// caller sees.
func (s *ImportService) failJob(ctx context.Context, job *repository.ImportJob, cause error) {
	msg := cause.Error()
	job.Status = repository.JobFailed
	job.ErrorMessage = &msg
	if err := s.attendance.CompleteImportJob(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID.String()).Msg("Failed to mark import job failed")
	}
	if s.events != nil {
		s.events.PublishImportEvent(EventImportFailed, client.ImportEvent{
			JobID:  job.ID.String(),
			Source: job.Source,
		})
	}
}

// persist converts resolved records to storage rows and hands them to the
// sink. Rows classified as new employees have no employee id yet; they are
// surfaced in the summary for manual resolution instead of being stored.
func (s *ImportService) persist(ctx context.Context, source string, records []importer.ProcessedRecord) (stored, skipped int, err error) {
	toStore := make([]repository.AttendanceRecord, 0, len(records))
	for _, pr := range records {
		if pr.IsNewEmployee {
			continue
		}
		date, err := importer.ParseDate(pr.Data.Record[importer.FieldDate])
		if err != nil {
			// Validated upstream; a failure here means the record was
			// tampered with between classification and persistence.
			return 0, 0, fmt.Errorf("record %d: %w", pr.Index, err)
		}

		rec := repository.AttendanceRecord{
			EmployeeID:     pr.Data.EmployeeID,
			AttendanceDate: date,
			Source:         source,
		}
		if v, ok := pr.Data.Record[importer.FieldTimeIn]; ok {
			rec.TimeIn = &v
		}
		if v, ok := pr.Data.Record[importer.FieldTimeOut]; ok {
			rec.TimeOut = &v
		}
		if v, ok := pr.Data.Record[importer.FieldHoursWorked]; ok {
			if hours, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				rec.HoursWorked = &hours
			}
		}
		toStore = append(toStore, rec)
	}

	return s.attendance.InsertRecords(ctx, toStore)
}

// RowsFromDeviceEvents flattens clock events into raw attendance rows, one
// per (employee, day): the earliest "in" event becomes Time In and the
// latest "out" event Time Out.
func RowsFromDeviceEvents(events []client.DeviceEvent) []any {
	type dayKey struct {
		ref  string
		date string
	}

	byDay := make(map[dayKey]map[string]any)
	var order []dayKey

	for _, ev := range events {
		key := dayKey{ref: ev.EmployeeRef, date: ev.Timestamp.Format("2006-01-02")}
		row, ok := byDay[key]
		if !ok {
			row = map[string]any{
				"employee_id": ev.EmployeeRef,
				"name":        ev.Name,
				"date":        key.date,
			}
			byDay[key] = row
			order = append(order, key)
		}

		clock := ev.Timestamp.Format("15:04")
		switch ev.Direction {
		case "in":
			if cur, ok := row["time_in"].(string); !ok || clock < cur {
				row["time_in"] = clock
			}
		case "out":
			if cur, ok := row["time_out"].(string); !ok || clock > cur {
				row["time_out"] = clock
			}
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].date != order[j].date {
			return order[i].date < order[j].date
		}
		return order[i].ref < order[j].ref
	})

	rows := make([]any, 0, len(order))
	for _, key := range order {
		rows = append(rows, byDay[key])
	}
	return rows
}
