// Package detect finds error messages in free-text tool output.
package detect

import (
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/fixhive/internal/fingerprint"
	"github.com/kalambet/fixhive/internal/redact"
)

// StatusUnresolved is the status every freshly detected candidate carries.
const StatusUnresolved = "unresolved"

// Candidate is an error record ready to be persisted. Message and FullOutput
// are already redacted.
type Candidate struct {
	ID          string
	Kind        string
	Message     string
	MessageHash string
	FullOutput  string
	Language    string
	Framework   string
	ToolName    string
	Status      string
	CreatedAt   time.Time
}

// Severity ranks a message for display ordering.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Detector turns raw output into candidates. The zero value is not usable;
// call New.
type Detector struct {
	redactor *redact.Redactor
	now      func() time.Time
}

// New returns a Detector that redacts with r. A nil r selects the
// process-wide default rules.
func New(r *redact.Redactor) *Detector {
	return &Detector{redactor: r, now: time.Now}
}

func (d *Detector) redact(s string) string {
	if d.redactor == nil {
		return redact.Redact(s).Text
	}
	return d.redactor.Redact(s).Text
}

// Detect scans output with the ordered error patterns. Every match is
// redacted and fingerprinted; a fingerprint already produced earlier in this
// call is skipped. Language and framework are inferred from the whole output.
func (d *Detector) Detect(output, toolName string) []Candidate {
	if output == "" {
		return nil
	}

	var (
		candidates []Candidate
		full       string
		lang, fw   string
		seen       = make(map[string]bool)
	)
	for _, p := range errorPatterns {
		for _, m := range p.re.FindAllString(output, -1) {
			msg := d.redact(m)
			hash := fingerprint.Fingerprint(msg)
			if seen[hash] {
				continue
			}
			seen[hash] = true

			if full == "" {
				full = d.redact(output)
				lang, fw = DetectLanguage(output), DetectFramework(output)
			}
			candidates = append(candidates, Candidate{
				ID:          uuid.NewString(),
				Kind:        p.name,
				Message:     msg,
				MessageHash: hash,
				FullOutput:  full,
				Language:    lang,
				Framework:   fw,
				ToolName:    toolName,
				Status:      StatusUnresolved,
				CreatedAt:   d.now().UTC(),
			})
		}
	}
	return candidates
}

// HasError reports whether any error pattern matches output.
func HasError(output string) bool {
	for _, p := range errorPatterns {
		if p.re.MatchString(output) {
			return true
		}
	}
	return false
}

// Detect runs the default detector.
func Detect(output, toolName string) []Candidate {
	return std.Detect(output, toolName)
}

var std = New(nil)

// DetectLanguage returns the first language whose pattern matches, or "".
func DetectLanguage(text string) string { return firstMatch(languagePatterns, text) }

// DetectFramework returns the first framework whose pattern matches, or "".
func DetectFramework(text string) string { return firstMatch(frameworkPatterns, text) }

// SeverityOf classifies msg; the first tier that matches wins.
func SeverityOf(msg string) Severity {
	switch {
	case criticalPattern.MatchString(msg):
		return SeverityCritical
	case highPattern.MatchString(msg):
		return SeverityHigh
	case mediumPattern.MatchString(msg):
		return SeverityMedium
	default:
		return SeverityLow
	}
}
