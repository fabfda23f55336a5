package table

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing dates from text.
var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006/01/02",
}

// ParseDate parses s into a timezone-free calendar date. Timestamps carrying a
// zone are first converted to UTC. It reports false when s is not a date.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	return time.Time{}, false
}

// Day truncates t to midnight UTC of its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDates coerces c into a date column. Values that are not dates become
// missing rather than failing.
func ParseDates(c *Column) *Column {
	switch c.kind {
	case Date:
		return c
	case String:
		n := c.Len()
		dates := make([]time.Time, n)
		nulls := make([]bool, n)
		for i := 0; i < n; i++ {
			if c.IsNull(i) {
				nulls[i] = true
				continue
			}
			t, ok := ParseDate(c.strs[i])
			dates[i], nulls[i] = t, !ok
		}
		return NewDateColumn(c.name, dates, nulls)
	default:
		n := c.Len()
		nulls := make([]bool, n)
		for i := range nulls {
			nulls[i] = true
		}
		return NewDateColumn(c.name, make([]time.Time, n), nulls)
	}
}

// ToFloat coerces c into a float column. Non-numeric values become NaN.
func ToFloat(c *Column) *Column {
	switch c.kind {
	case Float:
		return c
	case String:
		nums := make([]float64, c.Len())
		for i := range nums {
			nums[i] = math.NaN()
			if c.IsNull(i) {
				continue
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(c.strs[i]), 64); err == nil {
				nums[i] = v
			}
		}
		return NewFloatColumn(c.name, nums)
	default:
		nums := make([]float64, c.Len())
		for i := range nums {
			nums[i] = math.NaN()
		}
		return NewFloatColumn(c.name, nums)
	}
}
