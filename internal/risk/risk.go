// Package risk holds the risk signal record, the two detectors that produce
// it and the sinks that record it.
//
// The two detectors are independent. EventSignal classifies structured
// company events during data generation; Detect scans the structured
// dashboard text. Only Detect decides whether a run needs human approval.
package risk

import (
	"strings"
)

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"

	TypeKeywordMatch = "keyword_match"
)

// Signal is one accumulated risk record on a run.
type Signal struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords,omitempty"`
	OccurredOn  string   `json:"occurred_on,omitempty"`
	SourceURL   string   `json:"source_url,omitempty"`
}

// Keywords are matched case-insensitively against the structured dashboard.
var Keywords = []string{"layoff", "breach", "regulatory", "security incident"}

// Detect reports whether any keyword occurs in text. On a match it returns
// the single aggregate signal listing the full keyword set.
func Detect(text string) (bool, *Signal) {
	lower := strings.ToLower(text)
	for _, k := range Keywords {
		if strings.Contains(lower, k) {
			return true, &Signal{
				Type:        TypeKeywordMatch,
				Severity:    SeverityMedium,
				Description: "Risk keywords found in structured dashboard",
				Keywords:    append([]string(nil), Keywords...),
			}
		}
	}
	return false, nil
}

var eventSeverity = map[string]string{
	"layoff":            SeverityHigh,
	"security_incident": SeverityMedium,
	"regulatory":        SeverityMedium,
	"legal_action":      SeverityMedium,
}

// IsRiskEvent reports whether an event type belongs to the risk set.
func IsRiskEvent(eventType string) bool {
	_, ok := eventSeverity[eventType]
	return ok
}

// EventSignal converts a structured company event into a signal. ok is false
// for event types outside the risk set.
func EventSignal(eventType, description, title, occurredOn, sourceURL string) (Signal, bool) {
	sev, ok := eventSeverity[eventType]
	if !ok {
		return Signal{}, false
	}
	desc := description
	if strings.TrimSpace(desc) == "" {
		desc = title
	}
	if strings.TrimSpace(occurredOn) == "" {
		occurredOn = "Unknown"
	}
	return Signal{
		Type:        eventType,
		Severity:    sev,
		Description: desc,
		OccurredOn:  occurredOn,
		SourceURL:   sourceURL,
	}, true
}
