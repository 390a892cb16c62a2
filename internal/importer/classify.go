package importer

import (
	"fmt"
	"runtime/debug"
	"time"
)

// ErrorType categorizes row-level failures.
type ErrorType string

const (
	// ErrInvalidRecordFormat marks a row that is not a key-value mapping.
	ErrInvalidRecordFormat ErrorType = "invalid_record_format"
	// ErrMissingField marks a required canonical field absent after
	// normalization.
	ErrMissingField ErrorType = "missing_field"
	// ErrInvalidDate marks a Date value that matches no accepted layout.
	ErrInvalidDate ErrorType = "invalid_date"
	// ErrProcessing marks a recovered panic during resolution.
	ErrProcessing ErrorType = "processing_error"
)

// RowError is a structured, row-scoped failure. Row errors are data in the
// batch result, never Go errors; they must not abort sibling rows.
type RowError struct {
	Type    ErrorType `json:"type"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Stack   string    `json:"stack,omitempty"`
}

// Employee status values attached to processed data.
const (
	StatusExisting = "existing"
	StatusNew      = "new"
)

// ProcessedData carries the classifier's findings for a row that passed
// validation.
type ProcessedData struct {
	Record         Record       `json:"record,omitempty"`
	EmployeeStatus string       `json:"employeeStatus,omitempty"`
	EmployeeID     int          `json:"employeeId,omitempty"`
	Suggestions    []Suggestion `json:"suggestions,omitempty"`
}

// ProcessedRecord is the terminal classification of one input row. It is
// created once, never mutated afterward, and owned by the batch that
// produced it.
type ProcessedRecord struct {
	Original      any           `json:"originalRow"`
	Index         int           `json:"index"`
	IsValid       bool          `json:"isValid"`
	IsDuplicate   bool          `json:"isDuplicate"`
	IsNewEmployee bool          `json:"isNewEmployee"`
	Errors        []RowError    `json:"errors,omitempty"`
	Data          ProcessedData `json:"processedData"`
}

// dateLayouts are the calendar formats accepted for the Date field, in the
// order they are attempted. Spreadsheet exports use the first three; the
// last shows up in older device dumps.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-Jan-2006",
}

// ParseDate parses a Date value against the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// dupeSet tracks (employee, date) pairs already seen within one batch.
// Owned by a single batch worker, so no locking.
type dupeSet struct {
	seen map[string]struct{}
}

func newDupeSet() *dupeSet {
	return &dupeSet{seen: make(map[string]struct{})}
}

// add records a key and reports whether it was new.
func (d *dupeSet) add(key string) bool {
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}

// Classifier turns raw rows into ProcessedRecords.
type Classifier struct {
	resolver *Resolver
}

// NewClassifier creates a classifier using the given resolution policy.
func NewClassifier(opts Options) *Classifier {
	return &Classifier{resolver: NewResolver(opts)}
}

// Classify normalizes, validates, and resolves one raw row. Every code path
// returns a structured record; a panic anywhere in resolution is recovered
// into a processing_error entry so one poisoned row cannot take down its
// batch. seen may be nil to disable in-batch duplicate tracking.
func (c *Classifier) Classify(raw any, dir *Directory, index int, seen *dupeSet) (pr ProcessedRecord) {
	pr = ProcessedRecord{Original: raw, Index: index}

	row, ok := asRow(raw)
	if !ok {
		pr.Errors = append(pr.Errors, RowError{
			Type:    ErrInvalidRecordFormat,
			Message: fmt.Sprintf("row %d is not a key-value mapping (got %T)", index, raw),
		})
		return pr
	}

	defer func() {
		if r := recover(); r != nil {
			pr.IsValid = false
			pr.IsDuplicate = false
			pr.IsNewEmployee = false
			pr.Errors = append(pr.Errors, RowError{
				Type:    ErrProcessing,
				Message: fmt.Sprintf("row %d: %v", index, r),
				Stack:   string(debug.Stack()),
			})
		}
	}()

	rec := Normalize(row)
	pr.Data.Record = rec

	var parsedDate time.Time
	if _, ok := rec[FieldEmployeeName]; !ok {
		pr.Errors = append(pr.Errors, RowError{
			Type:    ErrMissingField,
			Field:   FieldEmployeeName,
			Message: "employee name is required",
		})
	}
	if date, ok := rec[FieldDate]; !ok {
		pr.Errors = append(pr.Errors, RowError{
			Type:    ErrMissingField,
			Field:   FieldDate,
			Message: "date is required",
		})
	} else {
		var err error
		parsedDate, err = ParseDate(date)
		if err != nil {
			pr.Errors = append(pr.Errors, RowError{
				Type:    ErrInvalidDate,
				Field:   FieldDate,
				Message: err.Error(),
			})
		}
	}
	if len(pr.Errors) > 0 {
		return pr
	}

	res := c.resolver.Resolve(rec, dir)
	if !res.Found {
		pr.IsNewEmployee = true
		pr.Data.EmployeeStatus = StatusNew
		pr.Data.Suggestions = res.Suggestions
	} else {
		pr.Data.EmployeeStatus = StatusExisting
		pr.Data.EmployeeID = res.Employee.ID
		if seen != nil {
			key := fmt.Sprintf("%d|%s", res.Employee.ID, parsedDate.Format("2006-01-02"))
			if !seen.add(key) {
				pr.IsDuplicate = true
			}
		}
	}

	pr.IsValid = true
	return pr
}

// asRow coerces the supported row shapes to a uniform map. Rows arrive as
// map[string]any from JSON payloads and map[string]string from the CSV
// reader; anything else is malformed.
func asRow(raw any) (map[string]any, bool) {
	switch t := raw.(type) {
	case map[string]any:
		return t, true
	case map[string]string:
		row := make(map[string]any, len(t))
		for k, v := range t {
			row[k] = v
		}
		return row, true
	case Record:
		row := make(map[string]any, len(t))
		for k, v := range t {
			row[k] = v
		}
		return row, true
	default:
		return nil, false
	}
}
