package topic

import (
	"strings"

	"pressline/internal/services"
)

// DefaultWordCount is applied when a topic row carries no word count.
const DefaultWordCount = 3200

// Record identifies one unit of work: a single post to produce.
// Immutable once read from input.
type Record struct {
	Topic           string
	TargetWordCount int
	Outline         []string
	Category        string
	Tags            []string
	SourceRowID     int
}

// Validate rejects records that would waste a paid generation call.
// Failures are permanent and never retried.
func (r Record) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return services.Wrap(services.ErrValidation, "topic", "validate", "topic must not be empty", nil)
	}
	if r.TargetWordCount <= 0 {
		return services.Wrap(services.ErrValidation, "topic", "validate", "target word count must be positive", nil)
	}
	return nil
}
