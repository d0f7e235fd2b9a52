// Package format renders aggregated process figures for presentation.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rendis/procperf/pkg/schema"
)

// DefaultCurrency is appended to costs when the settings name none.
const DefaultCurrency = "EUR"

const (
	msPerSecond = int64(time.Second / time.Millisecond)
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// Formatter converts aggregates into strings and drops the figures the
// settings did not ask for.
type Formatter struct {
	settings schema.Settings
	currency string
}

// New creates a Formatter for the given settings.
func New(settings schema.Settings) *Formatter {
	currency := settings.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Formatter{settings: settings, currency: currency}
}

// Format renders one aggregate.
func (f *Formatter) Format(agg schema.Aggregate) schema.FormattedAggregate {
	out := schema.FormattedAggregate{ProcessID: agg.ProcessID}
	if agg.Duration != nil && f.settings.Has(schema.CalcTime) {
		out.Duration = &schema.FormattedRange{
			Min:      Duration(agg.Duration.Min),
			Expected: Duration(agg.Duration.Expected),
			Max:      Duration(agg.Duration.Max),
		}
	}
	if agg.Cost != nil && f.settings.Has(schema.CalcCost) {
		out.Cost = &schema.FormattedRange{
			Min:      Cost(agg.Cost.Min, f.currency),
			Expected: Cost(agg.Cost.Expected, f.currency),
			Max:      Cost(agg.Cost.Max, f.currency),
		}
	}
	if f.settings.Has(schema.CalcDates) {
		out.Start = dates(agg.Start)
		out.End = dates(agg.End)
	}
	return out
}

// FormatAll renders aggregates in order.
func (f *Formatter) FormatAll(aggs []schema.Aggregate) []schema.FormattedAggregate {
	out := make([]schema.FormattedAggregate, len(aggs))
	for i, a := range aggs {
		out[i] = f.Format(a)
	}
	return out
}

// Duration renders milliseconds as "Xd Yh Zm Ws". Sub-second remainders are
// dropped.
func Duration(ms float64) string {
	total := int64(math.Trunc(ms))
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	d := total / msPerDay
	total %= msPerDay
	h := total / msPerHour
	total %= msPerHour
	m := total / msPerMinute
	total %= msPerMinute
	s := total / msPerSecond
	return fmt.Sprintf("%s%dd %dh %dm %ds", sign, d, h, m, s)
}

// Cost renders an amount with two decimals followed by the currency.
func Cost(amount float64, currency string) string {
	return strings.TrimSpace(fmt.Sprintf("%.2f %s", amount, currency))
}

// Date renders t in RFC 3339, UTC.
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func dates(r *schema.DateRange) *schema.FormattedDates {
	if r == nil {
		return nil
	}
	return &schema.FormattedDates{Earliest: Date(r.Earliest), Latest: Date(r.Latest)}
}
