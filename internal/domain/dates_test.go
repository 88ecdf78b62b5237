package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-08-15", "start_date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("15/08/2024", "start_date")
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "start_date")
}

func TestExpandDates(t *testing.T) {
	start := time.Date(2024, 8, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)

	before, after := ExpandDates(start, end, DefaultWindowDays)

	assert.Equal(t, "2024-07-16", before.Start.Format(DateLayout))
	assert.Equal(t, "2024-08-15", before.End.Format(DateLayout))
	assert.Equal(t, "2024-08-20", after.Start.Format(DateLayout))
	assert.Equal(t, "2024-09-19", after.End.Format(DateLayout))
	assert.Equal(t, "2024-07-16 → 2024-08-15", before.String())
}

func TestExpandDates_NonPositiveWindowUsesDefault(t *testing.T) {
	day := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	before, after := ExpandDates(day, day, 0)
	assert.Equal(t, "2024-01-01", before.Start.Format(DateLayout))
	assert.Equal(t, "2024-03-01", after.End.Format(DateLayout))
}
