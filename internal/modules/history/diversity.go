package history

import (
	"fmt"
	"strings"
)

// MaxDiversityItems caps how many previous questions are quoted in the prompt.
const MaxDiversityItems = 30

var variationStrategies = []string{
	"Conceptual: ask why a mechanism exists or how it works internally.",
	"Comparative: contrast two approaches, tools or designs and when each fits.",
	"Scenario-based: describe a concrete production situation the candidate must reason through.",
	"Experience-based: ask about a past decision the candidate made and what they learned.",
	"Trade-off based: ask which option to pick under stated constraints and what is given up.",
}

// BuildDiversityInstruction returns a prompt block telling the model not to
// repeat previous. The first MaxDiversityItems non-blank items are quoted
// verbatim. Empty input yields "".
func BuildDiversityInstruction(previous []string) string {
	return buildDiversityInstruction(previous, MaxDiversityItems)
}

func buildDiversityInstruction(previous []string, maxItems int) string {
	if maxItems <= 0 {
		maxItems = MaxDiversityItems
	}

	items := make([]string, 0, min(len(previous), maxItems))
	for _, q := range previous {
		if strings.TrimSpace(q) == "" {
			continue
		}
		items = append(items, q)
		if len(items) == maxItems {
			break
		}
	}
	if len(items) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("## Question diversity requirements\n\n")
	b.WriteString("The candidate has already been asked the questions below. Do NOT repeat any of them, ")
	b.WriteString("and do NOT produce rewordings that test the same point.\n\n")
	b.WriteString("<<<PREVIOUS_QUESTIONS\n")
	for i, q := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, q)
	}
	b.WriteString("PREVIOUS_QUESTIONS\n\n")
	b.WriteString("Vary the new questions using these strategies:\n")
	for _, s := range variationStrategies {
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\nPrefer sub-topics that none of the previous questions explored.")
	return b.String()
}
