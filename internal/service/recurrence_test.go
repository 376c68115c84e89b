package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardn-app/ardn-api/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestExpandOccurrencesWeekly(t *testing.T) {
	dates := ExpandOccurrences(date(2024, time.September, 1), date(2024, time.September, 30), models.RecurrenceWeekly)
	require.Len(t, dates, 5)
	assert.Equal(t, date(2024, time.September, 1), dates[0])
	assert.Equal(t, date(2024, time.September, 8), dates[1])
	assert.Equal(t, date(2024, time.September, 29), dates[4])
}

func TestExpandOccurrencesDailySameDay(t *testing.T) {
	day := date(2024, time.September, 1)
	dates := ExpandOccurrences(day, day, models.RecurrenceDaily)
	require.Len(t, dates, 1)
	assert.Equal(t, day, dates[0])
}

func TestExpandOccurrencesEndBeforeStart(t *testing.T) {
	dates := ExpandOccurrences(date(2024, time.September, 2), date(2024, time.September, 1), models.RecurrenceDaily)
	assert.Empty(t, dates)
}

func TestExpandOccurrencesUnknownType(t *testing.T) {
	start := date(2024, time.September, 1)
	dates := ExpandOccurrences(start, date(2024, time.December, 1), models.RecurrenceType("YEARLY"))
	require.Len(t, dates, 1)
	assert.Equal(t, start, dates[0])
}

func TestExpandOccurrencesMonthlyClampsAndResumes(t *testing.T) {
	dates := ExpandOccurrences(date(2023, time.January, 31), date(2023, time.April, 30), models.RecurrenceMonthly)
	require.Len(t, dates, 4)
	assert.Equal(t, date(2023, time.January, 31), dates[0])
	assert.Equal(t, date(2023, time.February, 28), dates[1])
	assert.Equal(t, date(2023, time.March, 31), dates[2])
	assert.Equal(t, date(2023, time.April, 30), dates[3])
}

func TestExpandOccurrencesMonthlyLeapYear(t *testing.T) {
	dates := ExpandOccurrences(date(2024, time.January, 31), date(2024, time.March, 31), models.RecurrenceMonthly)
	require.Len(t, dates, 3)
	assert.Equal(t, date(2024, time.February, 29), dates[1])
	assert.Equal(t, date(2024, time.March, 31), dates[2])
}

func TestCombineDateTime(t *testing.T) {
	clock := time.Date(2024, time.September, 1, 14, 30, 0, 0, time.UTC)
	combined := combineDateTime(date(2024, time.October, 6), clock)
	assert.Equal(t, time.Date(2024, time.October, 6, 14, 30, 0, 0, time.UTC), combined)
}
