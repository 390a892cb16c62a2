package handler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRows(t *testing.T) {
	input := strings.Join([]string{
		"Employee Name,Date,Time In,Time Out",
		"Jane Doe,2024-01-10,09:00,17:30",
		"Bob Smith,2024-01-10,08:45",
		"",
	}, "\n")

	rows, err := csvRows(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first, ok := rows[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jane Doe", first["Employee Name"])
	assert.Equal(t, "2024-01-10", first["Date"])
	assert.Equal(t, "17:30", first["Time Out"])

	// Short rows simply lack trailing columns.
	second := rows[1].(map[string]any)
	assert.Equal(t, "Bob Smith", second["Employee Name"])
	_, hasOut := second["Time Out"]
	assert.False(t, hasOut)
}

func TestCSVRowsEmptyInput(t *testing.T) {
	rows, err := csvRows(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVRowsHeaderOnly(t *testing.T) {
	rows, err := csvRows(strings.NewReader("name,date\n"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVRowsSkipsBlankHeaders(t *testing.T) {
	rows, err := csvRows(strings.NewReader("name,,date\nJane,ignored,2024-01-10\n"))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0].(map[string]any)
	assert.Equal(t, "Jane", row["name"])
	assert.Equal(t, "2024-01-10", row["date"])
	assert.Len(t, row, 2)
}
