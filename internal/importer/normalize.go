package importer

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical attendance-row fields. Normalize emits no other keys.
const (
	FieldEmployeeName = "Employee Name"
	FieldEmployeeID   = "Employee ID"
	FieldEmail        = "Email"
	FieldDate         = "Date"
	FieldTimeIn       = "Time In"
	FieldTimeOut      = "Time Out"
	FieldHoursWorked  = "Hours Worked"
)

// Record is a normalized attendance row. A canonical field is present as a
// key only when a non-empty value was found among its source variants;
// downstream code checks key presence, not emptiness.
type Record map[string]string

// fieldVariants maps each canonical field to its accepted source column
// names in priority order. The first variant with a non-empty value wins.
// Spreadsheet exports and the device feed disagree on header spelling, so
// every list also accepts the canonical name itself, after the observed
// variants.
var fieldVariants = []struct {
	canonical string
	variants  []string
}{
	{FieldEmployeeName, []string{"employeeName", "name", "employee", "Employee", "Name", FieldEmployeeName}},
	{FieldEmployeeID, []string{"employeeId", "id", "emp_id", "employee_id", "ID", FieldEmployeeID}},
	{FieldEmail, []string{"email", FieldEmail, "employee_email", "employeeEmail"}},
	{FieldDate, []string{"date", FieldDate, "attendance_date", "attendanceDate"}},
	{FieldTimeIn, []string{"timeIn", "time_in", "checkin", "check_in", FieldTimeIn}},
	{FieldTimeOut, []string{"timeOut", "time_out", "checkout", "check_out", FieldTimeOut}},
	{FieldHoursWorked, []string{"hoursWorked", "hours_worked", "hours", "Hours", FieldHoursWorked}},
}

// Normalize maps a raw row onto the canonical field set. It never fails; a
// row with no recognizable columns yields an empty Record, which the
// classifier rejects for missing required fields.
func Normalize(raw map[string]any) Record {
	rec := make(Record, len(fieldVariants))
	for _, f := range fieldVariants {
		for _, variant := range f.variants {
			val, ok := raw[variant]
			if !ok {
				continue
			}
			s := stringValue(val)
			if s == "" {
				continue
			}
			rec[f.canonical] = s
			break
		}
	}
	return rec
}

// stringValue renders a cell value as a trimmed string. Spreadsheet readers
// hand numeric cells through JSON as float64.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
