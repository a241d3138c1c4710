package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the stable cache/single-flight key for q: a hash of
// the normalized query text, target language, and human-loop flag. Punctuation
// is preserved; only case and whitespace are normalized, per spec.md §3.
func Fingerprint(q Query) string {
	normalized := normalizeQueryText(q.Text)
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(q.TargetLanguage))
	h.Write([]byte{0})
	if q.EnableHumanLoop {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeQueryText(text string) string {
	lowered := strings.ToLower(text)
	fields := strings.Fields(lowered)
	return strings.Join(fields, " ")
}
