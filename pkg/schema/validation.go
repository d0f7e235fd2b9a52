package schema

import "fmt"

// ValidationSeverity indicates whether a problem is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// Problem codes produced by the process validator.
const (
	ProblemInAndOut         = "IN_AND_OUT"
	ProblemMissingTime      = "MISSING_TIME"
	ProblemMissingDates     = "MISSING_DATES"
	ProblemMissingCost      = "MISSING_COST"
	ProblemMalformedTime    = "MALFORMED_TIME"
	ProblemDateOrder        = "DATE_ORDER"
	ProblemDateAscension    = "DATE_ASCENSION"
	ProblemRuleViolation    = "RULE_VIOLATION"
	ProblemStructure        = "STRUCTURE"
	ProblemResolutionFailed = ErrCodeResolution
)

// Problem is a single validation finding attached to an element or process.
type Problem struct {
	ID       string             `json:"id"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

// ValidationResult aggregates the problems found for one process, in the
// order they were detected.
type ValidationResult struct {
	Problems []Problem `json:"problems,omitempty"`
}

// Passed returns true if there are no error-severity problems.
func (r *ValidationResult) Passed() bool {
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns the error-severity problems.
func (r *ValidationResult) Errors() []Problem {
	return r.filter(SeverityError)
}

// Warnings returns the warning-severity problems.
func (r *ValidationResult) Warnings() []Problem {
	return r.filter(SeverityWarning)
}

func (r *ValidationResult) filter(sev ValidationSeverity) []Problem {
	var out []Problem
	for _, p := range r.Problems {
		if p.Severity == sev {
			out = append(out, p)
		}
	}
	return out
}

// AddError appends an error-severity problem.
func (r *ValidationResult) AddError(id, code, message string) {
	r.Problems = append(r.Problems, Problem{
		ID: id, Code: code, Message: message, Severity: SeverityError,
	})
}

// AddWarning appends a warning-severity problem.
func (r *ValidationResult) AddWarning(id, code, message string) {
	r.Problems = append(r.Problems, Problem{
		ID: id, Code: code, Message: message, Severity: SeverityWarning,
	})
}

// Merge combines another ValidationResult into this one.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Problems = append(r.Problems, other.Problems...)
}

// ToError converts the result to an Error if it did not pass, nil otherwise.
func (r *ValidationResult) ToError() error {
	if r.Passed() {
		return nil
	}

	errs := r.Errors()
	msg := errs[0].Message
	if len(errs) > 1 {
		msg = fmt.Sprintf("validation failed with %d problems", len(errs))
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(errs),
			"warning_count": len(r.Problems) - len(errs),
			"problems":      r.Problems,
		})
}
