// Package company loads and normalizes the per-company records the workflow
// runs over. Two layouts are read: assembled payloads under
// {data}/payloads/{id}.json and looser structured records under
// {data}/structured/{id}.json.
package company

import (
	"encoding/json"
	"strconv"
	"strings"

	"ddgraph/internal/risk"
)

const NotDisclosed = "Not disclosed"

// Event is a dated company event extracted upstream (funding, layoff, ...).
type Event struct {
	EventType   string `json:"event_type"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	OccurredOn  string `json:"occurred_on,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// Company is the normalized record. Empty strings mean the field was absent
// in every source.
type Company struct {
	ID            string          `json:"company_id"`
	Name          string          `json:"name"`
	Website       string          `json:"website"`
	Industry      string          `json:"industry"`
	HQCity        string          `json:"hq_city"`
	HQState       string          `json:"hq_state"`
	HQCountry     string          `json:"hq_country"`
	Founded       string          `json:"founded"`
	Funding       string          `json:"funding"`
	Valuation     string          `json:"valuation"`
	LastRound     string          `json:"last_round"`
	RevenueModel  string          `json:"revenue_model"`
	TargetMarket  string          `json:"target_market"`
	RevenueGrowth string          `json:"revenue_growth"`
	EmployeeCount string          `json:"employee_count"`
	Events        []Event         `json:"events"`
	HasRisk       bool            `json:"has_risk"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// DisplayName falls back to the id when no name was recorded.
func (c *Company) DisplayName() string {
	if c == nil {
		return ""
	}
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.ID
}

// RiskSignals classifies the company's events into risk signals, in event order.
func (c *Company) RiskSignals() []risk.Signal {
	if c == nil {
		return nil
	}
	var out []risk.Signal
	for _, ev := range c.Events {
		if sig, ok := risk.EventSignal(ev.EventType, ev.Description, ev.Title, ev.OccurredOn, ev.SourceURL); ok {
			out = append(out, sig)
		}
	}
	return out
}

// Or returns v, or NotDisclosed when v is blank.
func Or(v string) string {
	return OrDefault(v, NotDisclosed)
}

func OrDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// normalize merges a structured record and a payload. The structured record
// supplies the profile fields; payload events replace structured events.
func normalize(id string, structured, payload map[string]any, rawPayload json.RawMessage) *Company {
	c := &Company{ID: id}
	if structured != nil {
		c.Name = firstString(structured, "name", "company_name")
		c.Website = str(structured["website"])
		c.Industry = str(structured["industry"])
		c.HQCity = str(structured["hq_city"])
		c.HQState = str(structured["hq_state"])
		c.HQCountry = str(structured["hq_country"])
		c.Founded = str(structured["founded"])
		c.Funding = str(structured["funding"])
		c.Valuation = str(structured["valuation"])
		c.LastRound = str(structured["last_round"])
		c.RevenueModel = str(structured["revenue_model"])
		c.TargetMarket = str(structured["target_market"])
		c.RevenueGrowth = str(structured["revenue_growth"])
		c.EmployeeCount = str(structured["employee_count"])
		c.Events = events(structured["events"])
	}
	if payload != nil {
		c.Payload = rawPayload
		if evs := events(payload["events"]); len(evs) > 0 {
			c.Events = evs
			for _, ev := range evs {
				if risk.IsRiskEvent(ev.EventType) {
					c.HasRisk = true
					break
				}
			}
		}
		if c.Name == "" {
			c.Name = payloadName(payload)
		}
	}
	return c
}

// payloadName looks for a name in the assembled payload's company record.
func payloadName(payload map[string]any) string {
	for _, k := range []string{"company_record", "company"} {
		if rec, ok := payload[k].(map[string]any); ok {
			if n := firstString(rec, "legal_name", "brand_name", "name", "company_name"); n != "" {
				return n
			}
		}
	}
	return firstString(payload, "company_name", "name")
}

func events(v any) []Event {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Event, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, Event{
			EventType:   str(m["event_type"]),
			Title:       str(m["title"]),
			Description: str(m["description"]),
			OccurredOn:  str(m["occurred_on"]),
			SourceURL:   firstString(m, "source_url", "url"),
		})
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := str(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// str renders scalar JSON values as text. Objects and arrays are re-encoded.
func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
