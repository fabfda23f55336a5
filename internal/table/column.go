package table

import (
	"math"
	"strconv"
	"time"
)

// Kind is the value type held by a Column.
type Kind int

const (
	String Kind = iota
	Float
	Date
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Float:
		return "float"
	case Date:
		return "date"
	default:
		return "unknown"
	}
}

// DateLayout is the canonical text form of a calendar date.
const DateLayout = "2006-01-02"

// Column is a named sequence of values of a single Kind.
//
// Float columns encode a missing value as NaN. String and date columns track
// missing values in a separate null mask.
type Column struct {
	name  string
	kind  Kind
	strs  []string
	nums  []float64
	dates []time.Time
	nulls []bool
}

// NewStringColumn builds a string column. A nil nulls slice means no value is
// missing. The column takes ownership of both slices.
func NewStringColumn(name string, values []string, nulls []bool) *Column {
	return &Column{name: name, kind: String, strs: values, nulls: nulls}
}

// NewFloatColumn builds a float column; NaN entries are missing values.
func NewFloatColumn(name string, values []float64) *Column {
	return &Column{name: name, kind: Float, nums: values}
}

// NewDateColumn builds a date column. A nil nulls slice means no value is
// missing. The column takes ownership of both slices.
func NewDateColumn(name string, values []time.Time, nulls []bool) *Column {
	return &Column{name: name, kind: Date, dates: values, nulls: nulls}
}

func (c *Column) Name() string { return c.name }
func (c *Column) Kind() Kind   { return c.kind }

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.kind {
	case Float:
		return len(c.nums)
	case Date:
		return len(c.dates)
	default:
		return len(c.strs)
	}
}

// IsNull reports whether the value at row i is missing.
func (c *Column) IsNull(i int) bool {
	if c.kind == Float {
		return math.IsNaN(c.nums[i])
	}
	return c.nulls != nil && c.nulls[i]
}

// Str returns the string at row i, or "" for non-string columns.
func (c *Column) Str(i int) string {
	if c.kind != String {
		return ""
	}
	return c.strs[i]
}

// Float returns the number at row i, or NaN for non-float columns.
func (c *Column) Float(i int) float64 {
	if c.kind != Float {
		return math.NaN()
	}
	return c.nums[i]
}

// Date returns the date at row i, or the zero time for non-date columns.
func (c *Column) Date(i int) time.Time {
	if c.kind != Date {
		return time.Time{}
	}
	return c.dates[i]
}

// NullCount returns the number of missing values.
func (c *Column) NullCount() int {
	n := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			n++
		}
	}
	return n
}

// Format renders the value at row i as text. Missing values render as "".
func (c *Column) Format(i int) string {
	if c.IsNull(i) {
		return ""
	}
	switch c.kind {
	case Float:
		return strconv.FormatFloat(c.nums[i], 'g', -1, 64)
	case Date:
		return c.dates[i].Format(DateLayout)
	default:
		return c.strs[i]
	}
}

// Floats returns a copy of the values of a float column.
func (c *Column) Floats() []float64 {
	if c.kind != Float {
		return nil
	}
	out := make([]float64, len(c.nums))
	copy(out, c.nums)
	return out
}

func (c *Column) renamed(name string) *Column {
	cp := *c
	cp.name = name
	return &cp
}

// take gathers the given rows, in order, into a new column.
func (c *Column) take(rows []int) *Column {
	out := &Column{name: c.name, kind: c.kind}
	if c.nulls != nil {
		out.nulls = make([]bool, len(rows))
		for j, i := range rows {
			out.nulls[j] = c.nulls[i]
		}
	}
	switch c.kind {
	case Float:
		out.nums = make([]float64, len(rows))
		for j, i := range rows {
			out.nums[j] = c.nums[i]
		}
	case Date:
		out.dates = make([]time.Time, len(rows))
		for j, i := range rows {
			out.dates[j] = c.dates[i]
		}
	default:
		out.strs = make([]string, len(rows))
		for j, i := range rows {
			out.strs[j] = c.strs[i]
		}
	}
	return out
}

// less orders rows a and b ascending with missing values last.
func (c *Column) less(a, b int) bool {
	na, nb := c.IsNull(a), c.IsNull(b)
	if na || nb {
		return !na && nb
	}
	switch c.kind {
	case Float:
		return c.nums[a] < c.nums[b]
	case Date:
		return c.dates[a].Before(c.dates[b])
	default:
		return c.strs[a] < c.strs[b]
	}
}

func (c *Column) equalAt(a, b int) bool {
	return !c.less(a, b) && !c.less(b, a)
}
