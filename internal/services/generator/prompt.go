package generator

import (
	"fmt"
	"strings"

	"pressline/internal/topic"
)

// BuildPrompt renders the article request. The word budget is distributed
// across introduction, main content, examples, and conclusion so drafts land
// near the target length instead of front-loading the introduction.
func BuildPrompt(rec topic.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a comprehensive article about: %s\n\n", rec.Topic)
	b.WriteString("Key requirements:\n")
	fmt.Fprintf(&b, "- Article length: %d words\n", rec.TargetWordCount)
	b.WriteString("- Professional, engaging tone with relevant examples and data\n")
	b.WriteString("- Optimize for readability with subheadings\n\n")
	b.WriteString("Content distribution:\n")
	fmt.Fprintf(&b, "- Introduction: ~%d words\n", rec.TargetWordCount/10)
	fmt.Fprintf(&b, "- Main content: ~%d words\n", rec.TargetWordCount*7/10)
	fmt.Fprintf(&b, "- Examples and data: ~%d words\n", rec.TargetWordCount/10)
	fmt.Fprintf(&b, "- Conclusion: ~%d words\n", rec.TargetWordCount/10)

	if len(rec.Outline) > 0 {
		b.WriteString("\nRequired outline:\n")
		for _, section := range rec.Outline {
			fmt.Fprintf(&b, "- %s\n", section)
		}
	}
	return b.String()
}
