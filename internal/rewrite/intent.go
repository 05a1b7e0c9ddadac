package rewrite

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/groundchat/internal/models"
)

type intentWire struct {
	CoreQuestion string `json:"core_question"`
	TimeContext  *struct {
		Kind string `json:"kind"`
		Year int    `json:"year"`
	} `json:"time_context"`
	ImplicitContext string   `json:"implicit_context"`
	RequiredInfo    []string `json:"required_info"`
}

// DecodeIntent parses a model reply into an IntentAnalysis. The reply must be a
// JSON object, optionally inside a code fence. A missing time context reads as
// unspecified; an unknown kind or a specific year without a year is an error.
func DecodeIntent(reply string) (models.IntentAnalysis, error) {
	var w intentWire
	if err := json.Unmarshal([]byte(stripFence(reply)), &w); err != nil {
		return models.IntentAnalysis{}, fmt.Errorf("failed to decode intent: %w", err)
	}

	out := models.DefaultIntentAnalysis()
	out.CoreQuestion = strings.TrimSpace(w.CoreQuestion)
	out.ImplicitContext = strings.TrimSpace(w.ImplicitContext)
	for _, s := range w.RequiredInfo {
		if s = strings.TrimSpace(s); s != "" {
			out.RequiredInfo = append(out.RequiredInfo, s)
		}
	}
	if w.TimeContext == nil {
		return out, nil
	}
	switch kind := models.TimeContextKind(strings.ToLower(strings.TrimSpace(w.TimeContext.Kind))); kind {
	case models.TimeLatest:
		out.TimeContext.Kind = models.TimeLatest
	case models.TimeUnspecified, "":
	case models.TimeSpecificYear:
		if w.TimeContext.Year <= 0 {
			return models.IntentAnalysis{}, fmt.Errorf("specific_year without a year")
		}
		out.TimeContext = models.TimeContext{Kind: models.TimeSpecificYear, Year: w.TimeContext.Year}
	default:
		return models.IntentAnalysis{}, fmt.Errorf("unknown time context kind %q", kind)
	}
	return out, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
