package question

import (
	"fmt"
	"strings"
)

const maxReferenceRunes = 6000

// buildPrompt assembles the topic block, an optional reference excerpt and
// the diversity block.
func buildPrompt(topic, difficulty, referenceText, diversity string) string {
	var b strings.Builder
	b.WriteString("## Topic\n")
	if topic = strings.TrimSpace(topic); topic != "" {
		b.WriteString(topic)
	} else {
		b.WriteString("Questions about the reference material below.")
	}
	b.WriteString("\n")
	if difficulty != "" {
		fmt.Fprintf(&b, "Target difficulty: %s\n", difficulty)
	}

	if ref := strings.TrimSpace(referenceText); ref != "" {
		b.WriteString("\n## Reference material\n<<<REFERENCE\n")
		b.WriteString(excerpt(ref, maxReferenceRunes))
		b.WriteString("\nREFERENCE\n")
	}

	if diversity != "" {
		b.WriteString("\n")
		b.WriteString(diversity)
	}
	return strings.TrimRight(b.String(), "\n")
}

func excerpt(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
