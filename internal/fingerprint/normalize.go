// Package fingerprint canonicalizes error messages and derives the
// deduplication key and search keywords from them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Width is the number of hex characters kept from the SHA-256 digest.
const Width = 16

type replacement struct {
	re   *regexp.Regexp
	with string
}

// Steps run in this exact order. Later patterns see the output of earlier
// ones, so the timestamp pattern accepts the ":X:X" form left by the
// line/column step.
var steps = []replacement{
	// 1. line and column references
	{regexp.MustCompile(`:[0-9]+:[0-9]+`), ":X:X"},
	{regexp.MustCompile(`(?i)\bline\s+[0-9]+`), "line X"},
	{regexp.MustCompile(`(?i)\bcolumn\s+[0-9]+`), "column X"},

	// 2. absolute paths keep only the basename; dot-only segments are
	// skipped so an already collapsed ".../name" is left alone
	{regexp.MustCompile(`(?:/[\w.-]*[\w-][\w.-]*)+/([^/\s:]+)`), ".../$1"},
	{regexp.MustCompile(`[A-Z]:\\(?:[\w.-]+\\)+([^\\\s:]+)`), `...\$1`},

	// 3. memory addresses
	{regexp.MustCompile(`(?i)0x[0-9a-f]+`), "0xXXXX"},

	// 4. ISO-8601 timestamps and epoch milliseconds
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T\s]\d{2}:(?:\d{2}|X):(?:\d{2}|X)(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "TIMESTAMP"},
	{regexp.MustCompile(`\d{13,}`), "TIMESTAMP"},

	// 5. UUIDs
	{regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`), "UUID"},

	// 6. process ids
	{regexp.MustCompile(`(?i)\bPID[:\s]+[0-9]+`), "PID:X"},

	// 7. ports; the terminator is captured and written back
	{regexp.MustCompile(`:\d{4,5}(/|\s|$)`), ":PORT$1"},
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize strips volatile substrings (positions, paths, addresses,
// timestamps, UUIDs, PIDs, ports) from message, collapses whitespace and
// lowercases the result. Normalize(Normalize(m)) == Normalize(m).
func Normalize(message string) string {
	s := message
	for _, st := range steps {
		s = st.re.ReplaceAllString(s, st.with)
	}
	s = strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
	return strings.ToLower(s)
}

// Fingerprint returns the first Width hex characters of the SHA-256 digest of
// the normalized message.
func Fingerprint(message string) string {
	sum := sha256.Sum256([]byte(Normalize(message)))
	return hex.EncodeToString(sum[:])[:Width]
}

// Same reports whether two messages share a fingerprint.
func Same(a, b string) bool {
	return Fingerprint(a) == Fingerprint(b)
}

// Collision reports whether two messages share a fingerprint while their
// normalized text differs.
func Collision(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return false
	}
	return Fingerprint(a) == Fingerprint(b)
}
