package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Fullship/attendance-dashboard-sub008/internal/database"
	"github.com/Fullship/attendance-dashboard-sub008/internal/importer"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// EmployeeRepository reads the employee directory.
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new employee repository.
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetDirectory builds a point-in-time directory snapshot of active
// employees, indexed four ways for the ingestion pipeline. Ordered by id so
// repeated snapshots resolve key collisions identically.
func (r *EmployeeRepository) GetDirectory(ctx context.Context) (*importer.Directory, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(full_name, ''), COALESCE(email, '')
		FROM employees
		WHERE status = 'active'
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query employees: %w", err)
	}
	defer rows.Close()

	employees := make([]importer.Employee, 0)
	for rows.Next() {
		var emp importer.Employee
		if err := rows.Scan(&emp.ID, &emp.Name, &emp.FullName, &emp.Email); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read employees: %w", err)
	}

	return importer.BuildDirectory(employees), nil
}

// GetByID retrieves one employee.
func (r *EmployeeRepository) GetByID(ctx context.Context, id int) (*importer.Employee, error) {
	query := `
		SELECT id, COALESCE(name, ''), COALESCE(full_name, ''), COALESCE(email, '')
		FROM employees
		WHERE id = $1
	`

	emp := &importer.Employee{}
	err := r.db.QueryRow(ctx, query, id).Scan(&emp.ID, &emp.Name, &emp.FullName, &emp.Email)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("employee %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return emp, nil
}
