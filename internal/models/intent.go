package models

// TimeContextKind classifies the time frame a question refers to.
type TimeContextKind string

const (
	TimeLatest       TimeContextKind = "latest"
	TimeSpecificYear TimeContextKind = "specific_year"
	TimeUnspecified  TimeContextKind = "unspecified"
)

// TimeContext is the time frame of a question. Year is set only for TimeSpecificYear.
type TimeContext struct {
	Kind TimeContextKind `json:"kind"`
	Year int             `json:"year,omitempty"`
}

// IntentAnalysis is the structured reading of an ambiguous user message.
// It is always fully populated; see DefaultIntentAnalysis.
type IntentAnalysis struct {
	CoreQuestion    string      `json:"core_question"`
	TimeContext     TimeContext `json:"time_context"`
	ImplicitContext string      `json:"implicit_context"`
	RequiredInfo    []string    `json:"required_info"`
}

// DefaultIntentAnalysis is substituted whenever intent analysis fails.
func DefaultIntentAnalysis() IntentAnalysis {
	return IntentAnalysis{
		CoreQuestion:    "",
		TimeContext:     TimeContext{Kind: TimeUnspecified},
		ImplicitContext: "",
		RequiredInfo:    []string{},
	}
}
