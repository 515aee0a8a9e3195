package cache

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Stage represents how far a cached topic has progressed.
type Stage string

const (
	StageGenerated     Stage = "generated"
	StageMediaResolved Stage = "media_resolved"
	StagePublished     Stage = "published"
)

var stageOrder = []Stage{
	StageGenerated,
	StageMediaResolved,
	StagePublished,
}

// AllStages returns the ordered list of known stages.
func AllStages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	for _, stage := range stageOrder {
		if stage == normalized {
			return stage, true
		}
	}
	return "", false
}

// rank returns the position of a stage in the forward order. The empty stage
// (no entry yet) ranks before every real stage.
func (s Stage) rank() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i + 1
		}
	}
	return 0
}

// After reports whether s is strictly later than other in the stage order.
func (s Stage) After(other Stage) bool {
	return s.rank() > other.rank()
}

// Entry is the persisted pipeline state for one fingerprint.
type Entry struct {
	Fingerprint  string
	Topic        string
	Stage        Stage
	Title        string
	ArticleBody  string
	MediaJSON    string
	RemotePostID int64
	AttemptCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MediaReference identifies the media attached to a post: a featured image
// and an optional video embed. A zero value means the post ships without media.
type MediaReference struct {
	ImageURL    string `json:"image_url,omitempty"`
	ImageCredit string `json:"image_credit,omitempty"`
	VideoRef    string `json:"video_ref,omitempty"`
}

// IsZero reports whether the reference carries no media at all.
func (m MediaReference) IsZero() bool {
	return m.ImageURL == "" && m.VideoRef == ""
}

// Media decodes the entry's media reference. An empty column decodes to the
// zero reference.
func (e *Entry) Media() (MediaReference, error) {
	if strings.TrimSpace(e.MediaJSON) == "" {
		return MediaReference{}, nil
	}
	var ref MediaReference
	if err := json.Unmarshal([]byte(e.MediaJSON), &ref); err != nil {
		return MediaReference{}, fmt.Errorf("decode media reference: %w", err)
	}
	return ref, nil
}

// SetMedia encodes a media reference onto the entry. The zero reference is
// stored as an empty column so "resolved to nothing" remains distinguishable
// from "not yet resolved" only by stage.
func (e *Entry) SetMedia(ref MediaReference) error {
	if ref.IsZero() {
		e.MediaJSON = ""
		return nil
	}
	encoded, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("encode media reference: %w", err)
	}
	e.MediaJSON = string(encoded)
	return nil
}

// StatsSummary describes aggregated entry counts per stage.
type StatsSummary struct {
	Total         int
	Generated     int
	MediaResolved int
	Published     int
}
