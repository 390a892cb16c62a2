package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyExistingEmployee(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})

	row := map[string]any{
		"Employee Name": "Jane Doe",
		"Date":          "2024-01-10",
		"Time In":       "09:00",
	}
	pr := c.Classify(row, dir, 0, newDupeSet())

	assert.True(t, pr.IsValid)
	assert.False(t, pr.IsNewEmployee)
	assert.False(t, pr.IsDuplicate)
	assert.Empty(t, pr.Errors)
	assert.Equal(t, 7, pr.Data.EmployeeID)
	assert.Equal(t, StatusExisting, pr.Data.EmployeeStatus)
}

func TestClassifyNewEmployeeWithSuggestions(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory([]Employee{{ID: 2, FullName: "Jane Doe"}})

	row := map[string]any{
		"Employee Name": "Jane Marie Doe",
		"Date":          "2024-01-10",
	}
	pr := c.Classify(row, dir, 0, newDupeSet())

	assert.True(t, pr.IsValid)
	assert.True(t, pr.IsNewEmployee)
	assert.Equal(t, StatusNew, pr.Data.EmployeeStatus)
	require.NotEmpty(t, pr.Data.Suggestions)
	assert.Equal(t, "Jane Doe", pr.Data.Suggestions[0].Employee.FullName)
	assert.Greater(t, pr.Data.Suggestions[0].Score, 0.6)
}

func TestClassifyMissingFields(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory(nil)

	t.Run("missing date", func(t *testing.T) {
		pr := c.Classify(map[string]any{"Employee Name": "Jane Doe"}, dir, 0, nil)
		assert.False(t, pr.IsValid)
		require.Len(t, pr.Errors, 1)
		assert.Equal(t, ErrMissingField, pr.Errors[0].Type)
		assert.Equal(t, FieldDate, pr.Errors[0].Field)
	})

	t.Run("missing name", func(t *testing.T) {
		pr := c.Classify(map[string]any{"Date": "2024-01-10"}, dir, 0, nil)
		assert.False(t, pr.IsValid)
		require.Len(t, pr.Errors, 1)
		assert.Equal(t, ErrMissingField, pr.Errors[0].Type)
		assert.Equal(t, FieldEmployeeName, pr.Errors[0].Field)
	})

	t.Run("missing both", func(t *testing.T) {
		pr := c.Classify(map[string]any{"hours": "8"}, dir, 0, nil)
		assert.False(t, pr.IsValid)
		assert.Len(t, pr.Errors, 2)
	})
}

func TestClassifyInvalidDate(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory(nil)

	pr := c.Classify(map[string]any{
		"Employee Name": "Jane Doe",
		"Date":          "not-a-date",
	}, dir, 0, nil)

	assert.False(t, pr.IsValid)
	require.Len(t, pr.Errors, 1)
	assert.Equal(t, ErrInvalidDate, pr.Errors[0].Type)
	assert.False(t, pr.IsNewEmployee, "invalid rows must not reach resolution")
}

func TestClassifyMalformedRow(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory(nil)

	pr := c.Classify(42, dir, 3, nil)

	assert.False(t, pr.IsValid)
	assert.Equal(t, 3, pr.Index)
	require.Len(t, pr.Errors, 1)
	assert.Equal(t, ErrInvalidRecordFormat, pr.Errors[0].Type)
}

func TestClassifyDuplicateWithinBatch(t *testing.T) {
	c := NewClassifier(Options{})
	dir := BuildDirectory([]Employee{{ID: 7, FullName: "Jane Doe"}})
	seen := newDupeSet()

	row := map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-10"}

	first := c.Classify(row, dir, 0, seen)
	second := c.Classify(row, dir, 1, seen)
	otherDay := c.Classify(map[string]any{"Employee Name": "Jane Doe", "Date": "2024-01-11"}, dir, 2, seen)

	assert.False(t, first.IsDuplicate)
	assert.True(t, second.IsDuplicate)
	assert.True(t, second.IsValid)
	assert.False(t, otherDay.IsDuplicate)
}

func TestParseDateLayouts(t *testing.T) {
	valid := []string{"2024-01-10", "2024/01/10", "01/10/2024", "10-Jan-2024"}
	for _, s := range valid {
		_, err := ParseDate(s)
		assert.NoError(t, err, s)
	}

	invalid := []string{"", "10 January", "2024-13-40", "tomorrow"}
	for _, s := range invalid {
		_, err := ParseDate(s)
		assert.Error(t, err, s)
	}
}
