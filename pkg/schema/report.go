package schema

import "time"

// ProcessReport is the per-process output handed to the aggregator.
type ProcessReport struct {
	ProcessID            string    `json:"processId"`
	ValidationPassed     bool      `json:"validationPassed"`
	ExtractionSuccessful bool      `json:"extractionSuccessful"`
	OrderedProcess       Sequence  `json:"orderedProcess"`
	Problems             []Problem `json:"problems"`

	// Failure explains why extraction failed. Nil on success.
	Failure *Error `json:"failure,omitempty"`
}

// Report is the result of analyzing one document: the main process first,
// followed by every called process.
type Report struct {
	ID        string           `json:"id"`
	ProcessID string           `json:"processId"` // main process, as declared
	CreatedAt time.Time        `json:"createdAt"`
	Source    string           `json:"source,omitempty"`
	Resolved  bool             `json:"resolved"`
	Problems  []Problem        `json:"problems,omitempty"` // resolution problems
	Processes []*ProcessReport `json:"processes"`
}

// Main returns the report of the main process, or nil if resolution failed.
func (r *Report) Main() *ProcessReport {
	if len(r.Processes) == 0 {
		return nil
	}
	return r.Processes[0]
}

// Succeeded reports whether every process validated and linearized.
func (r *Report) Succeeded() bool {
	if !r.Resolved {
		return false
	}
	for _, p := range r.Processes {
		if !p.ValidationPassed || !p.ExtractionSuccessful {
			return false
		}
	}
	return true
}
