package domain

import (
	"errors"
	"fmt"
	"time"
)

// DefaultWindow is the width of one extraction window.
const DefaultWindow = time.Hour

// TimeWindow is the half-open interval [Start, End).
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WindowEndingAt returns the last fully closed window before now: now is
// floored to a multiple of size (in UTC) and the window ends there.
func WindowEndingAt(now time.Time, size time.Duration) TimeWindow {
	if size <= 0 {
		size = DefaultWindow
	}
	end := now.UTC().Truncate(size)
	return TimeWindow{Start: end.Add(-size), End: end}
}

// ErrUnalignedWindow reports a window start that is not a multiple of the
// window size.
var ErrUnalignedWindow = errors.New("window start is not aligned to the window size")

// WindowStartingAt returns the window of the given size that contains start.
// start is floored to a multiple of size (in UTC), so windows never overlap.
func WindowStartingAt(start time.Time, size time.Duration) TimeWindow {
	if size <= 0 {
		size = DefaultWindow
	}
	start = start.UTC().Truncate(size)
	return TimeWindow{Start: start, End: start.Add(size)}
}

// AlignedWindowStartingAt is WindowStartingAt for callers naming an exact
// window: a start inside a window instead of on its boundary is an error.
func AlignedWindowStartingAt(start time.Time, size time.Duration) (TimeWindow, error) {
	w := WindowStartingAt(start, size)
	if !w.Start.Equal(start) {
		return TimeWindow{}, fmt.Errorf("%w: %s is inside %s", ErrUnalignedWindow, start.UTC().Format(time.RFC3339), w)
	}
	return w, nil
}

// Contains reports start <= t < end.
func (w TimeWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Size is the window width.
func (w TimeWindow) Size() time.Duration {
	return w.End.Sub(w.Start)
}

// Slug is the window start in a form safe for object keys (no colons).
func (w TimeWindow) Slug() string {
	return w.Start.UTC().Format("2006-01-02T15-04-05")
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.UTC().Format(time.RFC3339), w.End.UTC().Format(time.RFC3339))
}

// HourBuckets lists the UTC hours overlapping the window, formatted as
// HourBucket does. Used by stores that partition records by hour.
func (w TimeWindow) HourBuckets() []string {
	var out []string
	for h := w.Start.UTC().Truncate(time.Hour); h.Before(w.End); h = h.Add(time.Hour) {
		out = append(out, HourBucket(h))
	}
	return out
}

// HourBucket is the partition value for the hour containing t.
func HourBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02T15")
}
