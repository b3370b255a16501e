package generate

import (
	"fmt"
	"strings"

	"ddgraph/internal/company"
	"ddgraph/internal/retrieval"
)

func StructuredPlaceholder(name, reason string) string {
	return fmt.Sprintf("# Structured Dashboard - %s\n\n*%s*", name, reason)
}

func RAGPlaceholder(name, reason string) string {
	return fmt.Sprintf("# RAG Dashboard - %s\n\n*%s*", name, reason)
}

const (
	reasonNoPayload  = "No payload data available"
	reasonNoRAG      = "No RAG context available"
	reasonStructErr  = "Error generating structured dashboard"
	reasonRAGErr     = "Error generating RAG dashboard"
	sectionNotShared = "Not disclosed."
)

// TemplateDashboard fills the eight investor sections from the loaded record
// without any model call.
func TemplateDashboard(c *company.Company) string {
	name := c.DisplayName()
	var b strings.Builder
	fmt.Fprintf(&b, "# Structured Dashboard - %s\n\n", name)

	b.WriteString("## Company Overview\n")
	fmt.Fprintf(&b, "- **Industry:** %s\n", company.Or(c.Industry))
	fmt.Fprintf(&b, "- **Founded:** %s\n", company.Or(c.Founded))
	fmt.Fprintf(&b, "- **Website:** %s\n", company.Or(c.Website))
	fmt.Fprintf(&b, "- **Headquarters:** %s\n\n", headquarters(c))

	b.WriteString("## Business Model and GTM\n")
	fmt.Fprintf(&b, "- **Revenue Model:** %s\n", company.Or(c.RevenueModel))
	fmt.Fprintf(&b, "- **Target Market:** %s\n\n", company.Or(c.TargetMarket))

	b.WriteString("## Funding & Investor Profile\n")
	fmt.Fprintf(&b, "- **Total Raised:** %s\n", company.Or(c.Funding))
	fmt.Fprintf(&b, "- **Last Round:** %s\n", company.Or(c.LastRound))
	fmt.Fprintf(&b, "- **Valuation:** %s\n\n", company.Or(c.Valuation))

	b.WriteString("## Growth Momentum\n")
	fmt.Fprintf(&b, "- **Revenue Growth:** %s\n", company.Or(c.RevenueGrowth))
	fmt.Fprintf(&b, "- **Employees:** %s\n\n", company.Or(c.EmployeeCount))

	b.WriteString("## Visibility & Market Sentiment\n")
	b.WriteString(sectionNotShared + "\n\n")

	b.WriteString("## Key Events\n")
	if len(c.Events) == 0 {
		b.WriteString(sectionNotShared + "\n\n")
	} else {
		for _, ev := range c.Events {
			text := company.OrDefault(ev.Title, ev.Description)
			fmt.Fprintf(&b, "- %s (%s): %s\n", company.OrDefault(ev.OccurredOn, "date unknown"), strings.ReplaceAll(ev.EventType, "_", " "), company.OrDefault(text, "no details"))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Outlook\n")
	b.WriteString(sectionNotShared + "\n\n")

	b.WriteString("## Disclosure Gaps\n")
	gaps := disclosureGaps(c)
	if len(gaps) == 0 {
		b.WriteString("None identified.\n")
	} else {
		for _, g := range gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func headquarters(c *company.Company) string {
	var parts []string
	for _, p := range []string{c.HQCity, c.HQState, c.HQCountry} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return company.NotDisclosed
	}
	return strings.Join(parts, ", ")
}

func disclosureGaps(c *company.Company) []string {
	fields := []struct{ label, value string }{
		{"Funding", c.Funding},
		{"Valuation", c.Valuation},
		{"Revenue model", c.RevenueModel},
		{"Revenue growth", c.RevenueGrowth},
		{"Employee count", c.EmployeeCount},
	}
	var out []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			out = append(out, f.label+" not disclosed")
		}
	}
	return out
}

// StitchRAG renders retrieved chunks as a sourced dashboard without a model
// call.
func StitchRAG(name string, chunks []retrieval.Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# RAG Dashboard - %s\n\n", name)
	b.WriteString("## Retrieved Context\n")
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n### %d. %s (score %.3f)\n\n%s\n", i+1, c.SourceURL, c.Score, strings.TrimSpace(c.Text))
	}
	b.WriteString("\n## Sources\n")
	seen := map[string]bool{}
	for _, c := range chunks {
		if seen[c.SourceURL] {
			continue
		}
		seen[c.SourceURL] = true
		fmt.Fprintf(&b, "- %s\n", c.SourceURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
