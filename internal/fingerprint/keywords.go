package fingerprint

import (
	"regexp"
	"strings"
)

const maxGenericKeywords = 10

var (
	errorTypePattern = regexp.MustCompile(`(?i)\b(?:[a-z]*error|[a-z]*exception|ts\d+|e\d+)\b`)
	actionPattern    = regexp.MustCompile(`(?i)\bcannot\s+\w+|failed\s+to\s+\w+|unable\s+to\s+\w+|could\s+not\s+\w+`)
	quotedPattern    = regexp.MustCompile(`'[^']+'`)
	wordPattern      = regexp.MustCompile(`\b[a-z]{3,}\b`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "have": true, "has": true, "was": true,
	"were": true, "are": true, "been": true, "being": true, "not": true,
	"but": true, "what": true, "when": true, "where": true, "which": true,
	"who": true, "will": true, "would": true, "could": true, "should": true,
	"may": true,
}

// Keywords derives lowercase search tokens from the normalized message:
// error type names and diagnostic codes, failure phrases, quoted names, and
// at most ten generic words. The result is ordered and free of duplicates.
// It is only used for local fallback matching, never for fingerprinting.
func Keywords(message string) []string {
	normalized := Normalize(message)

	var out []string
	seen := make(map[string]bool)
	add := func(k string) {
		k = strings.ToLower(k)
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}

	for _, m := range errorTypePattern.FindAllString(normalized, -1) {
		add(m)
	}
	for _, m := range actionPattern.FindAllString(normalized, -1) {
		add(m)
	}
	for _, m := range quotedPattern.FindAllString(normalized, -1) {
		add(strings.Trim(m, "'"))
	}

	generic := 0
	for _, w := range wordPattern.FindAllString(normalized, -1) {
		if stopWords[w] {
			continue
		}
		if generic == maxGenericKeywords {
			break
		}
		generic++
		add(w)
	}
	return out
}
