// Package timeinfo reconciles the planned-time attributes of a flow element
// into a consistent start/end/duration triple.
package timeinfo

import (
	"time"

	"github.com/rendis/procperf/pkg/schema"
)

// Resolve derives the TimeInfo of one element. When exactly one of start,
// end and duration is missing it is back-computed from the other two. When
// all three are present they are accepted as given, without a consistency
// check. Malformed values count as missing; the validator reports them.
func Resolve(meta schema.MetaData) schema.TimeInfo {
	var (
		start, end  *time.Time
		duration    int64
		hasDuration bool
	)

	if meta.HasOccurrence() {
		if t, err := ParseTimestamp(meta.Occurrence); err == nil {
			start = &t
		}
	}
	if meta.HasEnd() {
		if t, err := ParseTimestamp(meta.End); err == nil {
			end = &t
		}
	}
	if meta.HasDuration() {
		if d, err := ParseDuration(meta.Duration); err == nil {
			duration, hasDuration = d, true
		}
	}

	switch {
	case start == nil && end != nil && hasDuration:
		t := end.Add(-time.Duration(duration) * time.Millisecond)
		start = &t
	case end == nil && start != nil && hasDuration:
		t := start.Add(time.Duration(duration) * time.Millisecond)
		end = &t
	case !hasDuration && start != nil && end != nil:
		duration = end.Sub(*start).Milliseconds()
	}

	info := schema.TimeInfo{Start: start, End: end, Duration: duration}
	if start != nil {
		info.StartMs = start.UnixMilli()
	}
	if end != nil {
		info.EndMs = end.UnixMilli()
	}
	return info
}
