package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/pkg/schema"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	r := &schema.Report{
		ID:        "r-1",
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Source:    "order.yaml",
		Resolved:  true,
		Processes: []*schema.ProcessReport{
			{ProcessID: "Order", ValidationPassed: true, ExtractionSuccessful: true,
				OrderedProcess: schema.Sequence{&schema.ElementInfo{ID: "Start"}}},
			{ProcessID: "Billing", ValidationPassed: false, ExtractionSuccessful: false,
				Problems: []schema.Problem{{ID: "Pay", Code: schema.ProblemMissingTime, Message: "no duration", Severity: schema.SeverityError}},
				Failure:  schema.NewError(schema.ErrCodeDeadEnd, "no outgoing flow").WithElement("Pay")},
		},
	}

	var buf bytes.Buffer
	printReport(&buf, r)
	out := buf.String()

	assert.Contains(t, out, "Report r-1 2026-03-01 09:30:00")
	assert.Contains(t, out, "source: order.yaml")
	assert.Contains(t, out, "✓ Order (1 items)")
	assert.Contains(t, out, "✗ Billing (0 items)")
	assert.Contains(t, out, "linearization DEAD_END at Pay: no outgoing flow")
	assert.Contains(t, out, "error Pay MISSING_TIME no duration")
	assert.Contains(t, out, "2 problem(s) found")
}

func TestPrintReport_Unresolved(t *testing.T) {
	r := &schema.Report{
		ID:       "r-2",
		Problems: []schema.Problem{{ID: "Child", Code: schema.ProblemResolutionFailed, Message: "cannot resolve", Severity: schema.SeverityError}},
	}
	var buf bytes.Buffer
	printReport(&buf, r)
	assert.Contains(t, buf.String(), "✗ resolution failed")
	assert.Contains(t, buf.String(), "Child RESOLUTION_FAILED cannot resolve")
}

func TestPrintReport_AllPassed(t *testing.T) {
	r := &schema.Report{ID: "r-3", Resolved: true, Processes: []*schema.ProcessReport{
		{ProcessID: "Order", ValidationPassed: true, ExtractionSuccessful: true},
	}}
	var buf bytes.Buffer
	printReport(&buf, r)
	assert.Contains(t, buf.String(), "All processes passed")
}

func TestWriteJSON_Query(t *testing.T) {
	r := &schema.Report{ID: "r-1", ProcessID: "Order", Resolved: true,
		Processes: []*schema.ProcessReport{{ProcessID: "Order"}, {ProcessID: "Child"}}}

	var buf bytes.Buffer
	require.NoError(t, writeJSON(context.Background(), &buf, r, "[.processes[].processId]"))
	assert.JSONEq(t, `["Order","Child"]`, buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(context.Background(), &buf, r, ""))
	assert.Contains(t, buf.String(), `"processId": "Order"`)

	assert.Error(t, writeJSON(context.Background(), &buf, r, ".processes[] |"))
}

func TestPrintAggregates(t *testing.T) {
	var buf bytes.Buffer
	printAggregates(&buf, []schema.FormattedAggregate{{
		ProcessID: "Order",
		Duration:  &schema.FormattedRange{Min: "0d 1h 0m 0s", Expected: "0d 2h 0m 0s", Max: "0d 3h 0m 0s"},
		Start:     &schema.FormattedDates{Earliest: "2026-03-01T00:00:00Z", Latest: "2026-03-02T00:00:00Z"},
	}})
	out := buf.String()
	assert.Contains(t, out, "Order")
	assert.Contains(t, out, "duration  0d 1h 0m 0s / 0d 2h 0m 0s / 0d 3h 0m 0s")
	assert.Contains(t, out, "start     2026-03-01T00:00:00Z .. 2026-03-02T00:00:00Z")
	assert.NotContains(t, out, "cost")
}

func TestDecodeAggregates(t *testing.T) {
	one, err := decodeAggregates([]byte(`{"processId":"A","cost":{"min":1,"expected":2,"max":3}}`))
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 2.0, one[0].Cost.Expected)

	many, err := decodeAggregates([]byte(` [{"processId":"A"},{"processId":"B"}] `))
	require.NoError(t, err)
	assert.Len(t, many, 2)

	_, err = decodeAggregates([]byte("  "))
	assert.Error(t, err)
	_, err = decodeAggregates([]byte(`[{"processId":`))
	assert.Error(t, err)
}

func TestPickProcess(t *testing.T) {
	r := &schema.Report{Processes: []*schema.ProcessReport{{ProcessID: "Main"}, {ProcessID: "Child"}}}

	p, err := pickProcess(r, "")
	require.NoError(t, err)
	assert.Equal(t, "Main", p.ProcessID)

	p, err = pickProcess(r, "Child")
	require.NoError(t, err)
	assert.Equal(t, "Child", p.ProcessID)

	_, err = pickProcess(r, "Other")
	assert.Error(t, err)
	_, err = pickProcess(&schema.Report{}, "")
	assert.Error(t, err)
}
