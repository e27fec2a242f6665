package metering

import (
	"iter"
	"time"

	"github.com/cloudbill/backend/internal/domain/shared"
)

// labelLayout is the canonical key layout: year, month, day, hour.
// Lexicographic order on keys matches chronological order.
const labelLayout = "2006010215"

// dayKeyLen is the length of the date-only prefix of a label key.
const dayKeyLen = 8

// ErrUnsupportedTimeValue is returned when a label cannot be constructed
// from the given input.
var ErrUnsupportedTimeValue = shared.NewDomainError("UNSUPPORTED_TIME_VALUE", "Value cannot be interpreted as an hour label")

// TimeLabel is an hour-granularity billing bucket. Two labels are equal
// iff their canonical keys are equal; the zero value is invalid.
// Labels are immutable and always normalized to UTC hour boundaries.
type TimeLabel struct {
	key string
}

// LabelFromTime builds the label containing the given instant,
// truncating minutes and seconds.
func LabelFromTime(t time.Time) TimeLabel {
	return TimeLabel{key: t.UTC().Format(labelLayout)}
}

// LabelFromCanonical parses a canonical YYYYMMDDHH key.
func LabelFromCanonical(key string) (TimeLabel, error) {
	t, err := time.ParseInLocation(labelLayout, key, time.UTC)
	if err != nil {
		return TimeLabel{}, ErrUnsupportedTimeValue
	}
	// Round-trip guards against non-normalized keys such as "2024010199".
	if t.Format(labelLayout) != key {
		return TimeLabel{}, ErrUnsupportedTimeValue
	}
	return TimeLabel{key: key}, nil
}

// Key returns the canonical YYYYMMDDHH key.
func (l TimeLabel) Key() string {
	return l.key
}

// IsZero reports whether the label is the invalid zero value.
func (l TimeLabel) IsZero() bool {
	return l.key == ""
}

// Start returns the first instant of the bucket.
func (l TimeLabel) Start() time.Time {
	t, _ := time.ParseInLocation(labelLayout, l.key, time.UTC)
	return t
}

// Range returns the inclusive [start, start+3599s] span of the bucket.
func (l TimeLabel) Range() (time.Time, time.Time) {
	start := l.Start()
	return start, start.Add(time.Hour - time.Second)
}

// Next returns the label exactly one hour later.
func (l TimeLabel) Next() TimeLabel {
	return LabelFromTime(l.Start().Add(time.Hour))
}

// Previous returns the label exactly one hour earlier.
func (l TimeLabel) Previous() TimeLabel {
	return LabelFromTime(l.Start().Add(-time.Hour))
}

// NextDay returns the label 24 hours later.
func (l TimeLabel) NextDay() TimeLabel {
	return LabelFromTime(l.Start().Add(24 * time.Hour))
}

// Sub returns the signed number of whole hours between l and other.
func (l TimeLabel) Sub(other TimeLabel) int {
	return int(l.Start().Sub(other.Start()) / time.Hour)
}

// Before reports whether l is chronologically before other.
// Lexicographic comparison on the key is safe because the layout is
// fixed-width and zero-padded.
func (l TimeLabel) Before(other TimeLabel) bool {
	return l.key < other.key
}

// After reports whether l is chronologically after other.
func (l TimeLabel) After(other TimeLabel) bool {
	return l.key > other.key
}

// DayKey returns the date-only YYYYMMDD prefix, used for day-level grouping.
func (l TimeLabel) DayKey() string {
	return l.key[:dayKeyLen]
}

// String implements fmt.Stringer.
func (l TimeLabel) String() string {
	return l.key
}

// DaysBetween yields the day keys covering [start, end] inclusive.
// The sequence is lazy and can be ranged over more than once.
func DaysBetween(start, end TimeLabel) iter.Seq[string] {
	return func(yield func(string) bool) {
		if start.After(end) {
			return
		}
		for l := start; ; l = l.NextDay() {
			if !yield(l.DayKey()) {
				return
			}
			if l.DayKey() >= end.DayKey() {
				return
			}
		}
	}
}
