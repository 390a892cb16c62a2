package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fullship/attendance-dashboard-sub008/internal/client"
	"github.com/Fullship/attendance-dashboard-sub008/internal/importer"
)

func ts(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestRowsFromDeviceEvents(t *testing.T) {
	events := []client.DeviceEvent{
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T09:02:00Z"), Direction: "in"},
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T12:30:00Z"), Direction: "out"},
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T13:05:00Z"), Direction: "in"},
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T17:45:00Z"), Direction: "out"},
		{EmployeeRef: "9", Name: "Bob Smith", Timestamp: ts(t, "2024-01-10T08:55:00Z"), Direction: "in"},
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-11T09:00:00Z"), Direction: "in"},
	}

	rows := RowsFromDeviceEvents(events)
	require.Len(t, rows, 3)

	first, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "7", first["employee_id"])
	assert.Equal(t, "2024-01-10", first["date"])
	assert.Equal(t, "09:02", first["time_in"], "earliest in event wins")
	assert.Equal(t, "17:45", first["time_out"], "latest out event wins")

	second := rows[1].(map[string]any)
	assert.Equal(t, "9", second["employee_id"])
	assert.Equal(t, "08:55", second["time_in"])
	_, hasOut := second["time_out"]
	assert.False(t, hasOut, "no out event recorded")

	third := rows[2].(map[string]any)
	assert.Equal(t, "2024-01-11", third["date"])
}

func TestRowsFromDeviceEventsFeedPipeline(t *testing.T) {
	events := []client.DeviceEvent{
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T09:00:00Z"), Direction: "in"},
		{EmployeeRef: "7", Name: "Jane Doe", Timestamp: ts(t, "2024-01-10T17:00:00Z"), Direction: "out"},
	}
	dir := importer.BuildDirectory([]importer.Employee{{ID: 7, FullName: "Jane Doe"}})
	c := importer.NewClassifier(importer.Options{})

	rows := RowsFromDeviceEvents(events)
	require.Len(t, rows, 1)

	pr := c.Classify(rows[0], dir, 0, nil)
	assert.True(t, pr.IsValid)
	assert.False(t, pr.IsNewEmployee)
	assert.Equal(t, 7, pr.Data.EmployeeID)
	assert.Equal(t, "09:00", pr.Data.Record[importer.FieldTimeIn])
	assert.Equal(t, "17:00", pr.Data.Record[importer.FieldTimeOut])
}

func TestRowsFromDeviceEventsEmpty(t *testing.T) {
	assert.Empty(t, RowsFromDeviceEvents(nil))
}
