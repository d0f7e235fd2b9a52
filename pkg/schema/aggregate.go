package schema

import "time"

// Range is a min/expected/max triple produced by the aggregator.
type Range struct {
	Min      float64 `json:"min"`
	Expected float64 `json:"expected"`
	Max      float64 `json:"max"`
}

// DateRange bounds the earliest and latest timestamps of a process.
type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// Aggregate is the aggregator's numeric output for one process. Durations
// are in milliseconds.
type Aggregate struct {
	ProcessID string     `json:"processId"`
	Duration  *Range     `json:"duration,omitempty"`
	Cost      *Range     `json:"cost,omitempty"`
	Start     *DateRange `json:"start,omitempty"`
	End       *DateRange `json:"end,omitempty"`
}

// FormattedRange is a Range rendered for presentation.
type FormattedRange struct {
	Min      string `json:"min"`
	Expected string `json:"expected"`
	Max      string `json:"max"`
}

// FormattedAggregate is the presentation form of an Aggregate. Fields not
// requested by the settings are left nil.
type FormattedAggregate struct {
	ProcessID string          `json:"processId"`
	Duration  *FormattedRange `json:"duration,omitempty"`
	Cost      *FormattedRange `json:"cost,omitempty"`
	Start     *FormattedDates `json:"start,omitempty"`
	End       *FormattedDates `json:"end,omitempty"`
}

// FormattedDates is a DateRange rendered for presentation.
type FormattedDates struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}
