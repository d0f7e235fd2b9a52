package schema

// Calculation names one family of figures the caller wants computed.
type Calculation string

const (
	CalcTime  Calculation = "time"
	CalcCost  Calculation = "cost"
	CalcDates Calculation = "dates"
)

// Settings tune validation, extraction and linearization.
type Settings struct {
	Calculations                       []Calculation `json:"calculations" yaml:"calculations"`
	ConsiderPerformanceInSequenceFlows bool          `json:"considerPerformanceInSequenceFlows" yaml:"considerPerformanceInSequenceFlows"`
	OverwriteWithParentPerformance     bool          `json:"overwriteWithParentPerformance" yaml:"overwriteWithParentPerformance"`
	IgnoreMissingBasicPerformance      bool          `json:"ignoreMissingBasicPerformance" yaml:"ignoreMissingBasicPerformance"`
	IgnoreMissingOptionalPerformance   bool          `json:"ignoreMissingOptionalPerformance" yaml:"ignoreMissingOptionalPerformance"`

	// Currency is appended to formatted costs.
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`

	// Rules are custom per-element checks evaluated during validation.
	Rules []Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

// Has reports whether c is among the requested calculations.
func (s Settings) Has(c Calculation) bool {
	for _, x := range s.Calculations {
		if x == c {
			return true
		}
	}
	return false
}

// DefaultSettings requests every calculation and leaves all flags off.
func DefaultSettings() Settings {
	return Settings{
		Calculations: []Calculation{CalcTime, CalcCost, CalcDates},
		Currency:     "EUR",
	}
}

// Rule is a boolean expression evaluated against every extracted element.
// A false result is reported as a warning with Message.
type Rule struct {
	ID         string `json:"id" yaml:"id"`
	Engine     string `json:"engine,omitempty" yaml:"engine,omitempty"` // cel | expr (default: cel)
	Expression string `json:"expression" yaml:"expression"`
	Message    string `json:"message,omitempty" yaml:"message,omitempty"`
}
