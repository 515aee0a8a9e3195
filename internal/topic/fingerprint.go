package topic

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fingerprint computes the deterministic cache key for a record. Only the
// generation-relevant fields participate: topic, target word count, and
// outline. Two records that differ only in category, tags, or row position
// collide to the same fingerprint.
func (r Record) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(normalizeText(r.Topic)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(r.TargetWordCount)))
	for _, section := range r.Outline {
		h.Write([]byte{0})
		h.Write([]byte(normalizeText(section)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeText folds case, collapses runs of whitespace, and applies NFC so
// visually identical topics fingerprint identically.
func normalizeText(value string) string {
	value = norm.NFC.String(value)
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.Join(strings.Fields(value), " ")
}
