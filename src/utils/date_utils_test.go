package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDate(t *testing.T) {
	parsed := ParseDate("2023-06-15 12:30:00")
	assert.Equal(t, 2023, parsed.Year())
	assert.Equal(t, time.June, parsed.Month())
	assert.Equal(t, 30, parsed.Minute())

	assert.True(t, ParseDate("not a date").IsZero())
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 365, DaysBetween(a, a.AddDate(1, 0, 0)))
	assert.Equal(t, 0, DaysBetween(a, a.Add(23*time.Hour)), "partial days truncate")
	assert.Equal(t, 1, DaysBetween(a, a.Add(25*time.Hour)))
}

func TestMinDecimal(t *testing.T) {
	a := decimal.RequireFromString("1.5")
	b := decimal.RequireFromString("2")

	assert.True(t, MinDecimal(a, b).Equal(a))
	assert.True(t, MinDecimal(b, a).Equal(a))
	assert.True(t, MinDecimal(a, a).Equal(a))
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, "100.01", RoundCents(decimal.RequireFromString("100.005")).StringFixed(2))
	assert.Equal(t, "99.99", RoundCents(decimal.RequireFromString("99.994")).StringFixed(2))
}
