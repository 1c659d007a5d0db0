package convert

import (
	"fmt"
	"math"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/hugr-lab/duckbridge/filter"
)

// unitOf returns the epoch unit of a host temporal value.
func unitOf(id filter.LogicalTypeID) (arrow.TimeUnit, bool) {
	switch id {
	case filter.TypeIDTimestampSec:
		return arrow.Second, true
	case filter.TypeIDTimestampMs:
		return arrow.Millisecond, true
	case filter.TypeIDTimestamp, filter.TypeIDTimestampTZ, filter.TypeIDTime, filter.TypeIDTimeTZ:
		return arrow.Microsecond, true
	case filter.TypeIDTimestampNs:
		return arrow.Nanosecond, true
	}
	return 0, false
}

// unitsPerSecond returns the number of ticks of u in one second.
func unitsPerSecond(u arrow.TimeUnit) int64 {
	switch u {
	case arrow.Second:
		return 1
	case arrow.Millisecond:
		return 1_000
	case arrow.Microsecond:
		return 1_000_000
	}
	return 1_000_000_000
}

// rescale converts n ticks of from into ticks of to. Coarsening is allowed
// only when no precision is lost.
func rescale(n int64, from, to arrow.TimeUnit) (int64, bool) {
	if from == to {
		return n, true
	}
	f, t := unitsPerSecond(from), unitsPerSecond(to)
	if t > f {
		return mulChecked(n, t/f)
	}
	d := f / t
	if n%d != 0 {
		return 0, false
	}
	return n / d, true
}

func mulChecked(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

// dateDays returns a DATE value as days since the epoch. Timestamps are
// accepted only at midnight.
func dateDays(v filter.Value) (int64, error) {
	n, ok := v.Int64()
	if !ok {
		return 0, ErrPayload
	}
	if v.Type.ID == filter.TypeIDDate || v.Type.ID.IsInteger() {
		return n, nil
	}
	if u, ok := unitOf(v.Type.ID); ok && v.Type.ID.IsTimestamp() {
		perDay := unitsPerSecond(u) * 86400
		if n%perDay != 0 {
			return 0, fmt.Errorf("%w: timestamp is not on a day boundary", ErrOutOfRange)
		}
		return n / perDay, nil
	}
	return 0, fmt.Errorf("%w: %s is not a date", ErrPayload, v.Type)
}

// timeIn returns a TIME value in unit u.
func timeIn(v filter.Value, u arrow.TimeUnit) (int64, error) {
	n, ok := v.Int64()
	if !ok {
		return 0, ErrPayload
	}
	from, ok := unitOf(v.Type.ID)
	if !ok || v.Type.ID.IsTimestamp() {
		if v.Type.ID.IsInteger() {
			return n, nil
		}
		return 0, fmt.Errorf("%w: %s is not a time", ErrPayload, v.Type)
	}
	out, ok := rescale(n, from, u)
	if !ok {
		return 0, ErrOutOfRange
	}
	return out, nil
}

// timestampIn returns a timestamp offset in unit u. Integral host values
// without a temporal type are taken to be in u already.
func timestampIn(v filter.Value, u arrow.TimeUnit) (int64, error) {
	n, ok := v.Int64()
	if !ok {
		return 0, ErrPayload
	}
	if v.Type.ID == filter.TypeIDDate {
		return mulOut(n, unitsPerSecond(u)*86400)
	}
	from, ok := unitOf(v.Type.ID)
	if !ok || !v.Type.ID.IsTimestamp() {
		if v.Type.ID.IsInteger() {
			return n, nil
		}
		return 0, fmt.Errorf("%w: %s is not a timestamp", ErrPayload, v.Type)
	}
	out, ok := rescale(n, from, u)
	if !ok {
		return 0, ErrOutOfRange
	}
	return out, nil
}

func mulOut(a, b int64) (int64, error) {
	c, ok := mulChecked(a, b)
	if !ok {
		return 0, ErrOutOfRange
	}
	return c, nil
}
