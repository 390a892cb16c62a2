package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Fullship/attendance-dashboard-sub008/internal/database"
)

// AttendanceRecord is a validated attendance row ready for durable storage.
type AttendanceRecord struct {
	EmployeeID     int
	AttendanceDate time.Time
	TimeIn         *string
	TimeOut        *string
	HoursWorked    *float64
	Source         string
}

// ImportJob tracks one bulk import from submission to completion.
type ImportJob struct {
	ID           uuid.UUID  `json:"id"`
	Source       string     `json:"source"`
	FileName     string     `json:"fileName,omitempty"`
	Status       string     `json:"status"`
	Processed    int        `json:"processed"`
	Valid        int        `json:"valid"`
	Duplicates   int        `json:"duplicates"`
	Errors       int        `json:"errors"`
	NewEmployees int        `json:"newEmployees"`
	Stored       int        `json:"stored"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// Import job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// AttendanceRepository is the persistence sink for validated records and
// the bookkeeper for import jobs.
type AttendanceRepository struct {
	db *database.DB
}

// NewAttendanceRepository creates a new attendance repository.
func NewAttendanceRepository(db *database.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// InsertRecords stores validated records in one transaction. The durable
// duplicate check lives here: rows colliding on (employee_id,
// attendance_date) with already-stored data are skipped and counted, not
// treated as failures.
func (r *AttendanceRepository) InsertRecords(ctx context.Context, records []AttendanceRecord) (inserted, duplicates int, err error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	err = r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO attendance_records (employee_id, attendance_date, time_in, time_out, hours_worked, source)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (employee_id, attendance_date) DO NOTHING
		`
		for _, rec := range records {
			tag, err := tx.Exec(ctx, query,
				rec.EmployeeID,
				rec.AttendanceDate,
				rec.TimeIn,
				rec.TimeOut,
				rec.HoursWorked,
				rec.Source,
			)
			if err != nil {
				return fmt.Errorf("insert attendance record: %w", err)
			}
			if tag.RowsAffected() == 0 {
				duplicates++
			} else {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return inserted, duplicates, nil
}

// CreateImportJob records the start of an import.
func (r *AttendanceRepository) CreateImportJob(ctx context.Context, source, fileName string) (*ImportJob, error) {
	job := &ImportJob{
		ID:       uuid.New(),
		Source:   source,
		FileName: fileName,
		Status:   JobProcessing,
	}

	query := `
		INSERT INTO import_jobs (id, source, file_name, status)
		VALUES ($1, $2, $3, $4)
		RETURNING started_at
	`
	err := r.db.QueryRow(ctx, query, job.ID, job.Source, job.FileName, job.Status).
		Scan(&job.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	return job, nil
}

// CompleteImportJob stores the final counters and status of an import.
func (r *AttendanceRepository) CompleteImportJob(ctx context.Context, job *ImportJob) error {
	query := `
		UPDATE import_jobs
		SET status = $2,
		    processed = $3,
		    valid = $4,
		    duplicates = $5,
		    errors = $6,
		    new_employees = $7,
		    stored = $8,
		    error_message = $9,
		    completed_at = NOW()
		WHERE id = $1
		RETURNING completed_at
	`
	err := r.db.QueryRow(ctx, query,
		job.ID,
		job.Status,
		job.Processed,
		job.Valid,
		job.Duplicates,
		job.Errors,
		job.NewEmployees,
		job.Stored,
		job.ErrorMessage,
	).Scan(&job.CompletedAt)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("import job %s: %w", job.ID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("complete import job: %w", err)
	}
	return nil
}

// GetImportJob retrieves one import job.
func (r *AttendanceRepository) GetImportJob(ctx context.Context, id uuid.UUID) (*ImportJob, error) {
	query := `
		SELECT id, source, COALESCE(file_name, ''), status,
		       processed, valid, duplicates, errors, new_employees, stored,
		       error_message, started_at, completed_at
		FROM import_jobs
		WHERE id = $1
	`

	job := &ImportJob{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&job.ID,
		&job.Source,
		&job.FileName,
		&job.Status,
		&job.Processed,
		&job.Valid,
		&job.Duplicates,
		&job.Errors,
		&job.NewEmployees,
		&job.Stored,
		&job.ErrorMessage,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("import job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get import job: %w", err)
	}
	return job, nil
}

// ListImportJobs retrieves recent import jobs, newest first.
func (r *AttendanceRepository) ListImportJobs(ctx context.Context, limit, offset int) ([]*ImportJob, int64, error) {
	countQuery := `SELECT COUNT(*) FROM import_jobs`

	var total int64
	if err := r.db.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count import jobs: %w", err)
	}

	query := `
		SELECT id, source, COALESCE(file_name, ''), status,
		       processed, valid, duplicates, errors, new_employees, stored,
		       error_message, started_at, completed_at
		FROM import_jobs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list import jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]*ImportJob, 0)
	for rows.Next() {
		job := &ImportJob{}
		err := rows.Scan(
			&job.ID,
			&job.Source,
			&job.FileName,
			&job.Status,
			&job.Processed,
			&job.Valid,
			&job.Duplicates,
			&job.Errors,
			&job.NewEmployees,
			&job.Stored,
			&job.ErrorMessage,
			&job.StartedAt,
			&job.CompletedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan import job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("read import jobs: %w", err)
	}

	return jobs, total, nil
}
