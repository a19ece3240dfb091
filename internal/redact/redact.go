// Package redact masks secrets, credentials and personal paths in free text
// before it is stored or shared.
package redact

import (
	"fmt"
	"regexp"
	"sync"
)

// HomeCategory is the category reported when a home directory is collapsed to "~".
const HomeCategory = "Home Directory Path"

// Rule replaces every match of Pattern with Replacement. Replacement may use
// $1-style references to submatches.
type Rule struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// Result is the outcome of a redaction pass.
type Result struct {
	Text       string
	Count      int
	Categories []string
}

var homePattern = regexp.MustCompile(`(?:/Users/[^/\s]+|/home/[^/\s]+|C:\\Users\\[^\\\r\n]+)`)

// Redactor applies an ordered rule list followed by home directory
// normalization. It is safe for concurrent use.
type Redactor struct {
	mu    sync.RWMutex
	rules []Rule
}

// New returns a Redactor seeded with the built-in rules followed by extra.
func New(extra ...Rule) *Redactor {
	rules := DefaultRules()
	rules = append(rules, extra...)
	return &Redactor{rules: rules}
}

// Redact replaces every sensitive span in text. Rules run in order and each
// one sees the output of the previous rule.
func (r *Redactor) Redact(text string) Result {
	r.mu.RLock()
	rules := r.rules
	r.mu.RUnlock()

	res := Result{Text: text}
	seen := make(map[string]bool)
	apply := func(name string, re *regexp.Regexp, repl string) {
		matches := re.FindAllStringIndex(res.Text, -1)
		if len(matches) == 0 {
			return
		}
		res.Count += len(matches)
		if !seen[name] {
			seen[name] = true
			res.Categories = append(res.Categories, name)
		}
		res.Text = re.ReplaceAllString(res.Text, repl)
	}

	for _, rule := range rules {
		apply(rule.Name, rule.Pattern, rule.Replacement)
	}
	apply(HomeCategory, homePattern, "~")
	return res
}

// ContainsSensitive reports whether any rule matches text. It stops at the
// first match and builds no output.
func (r *Redactor) ContainsSensitive(text string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rule := range r.rules {
		if rule.Pattern.MatchString(text) {
			return true
		}
	}
	return homePattern.MatchString(text)
}

// AddRule compiles pattern and appends it to the rule list. New rules take
// effect for every subsequent call.
func (r *Redactor) AddRule(name, pattern, replacement string) error {
	if name == "" {
		return fmt.Errorf("rule name is required")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("compiling rule %q: %w", name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Copy so readers holding the old slice never observe the append.
	rules := make([]Rule, len(r.rules), len(r.rules)+1)
	copy(rules, r.rules)
	r.rules = append(rules, Rule{Name: name, Pattern: re, Replacement: replacement})
	return nil
}

// Rules returns a snapshot of the current rule list.
func (r *Redactor) Rules() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

var std = New()

// Redact runs the process-wide redactor.
func Redact(text string) Result { return std.Redact(text) }

// ContainsSensitive runs the process-wide redactor's predicate.
func ContainsSensitive(text string) bool { return std.ContainsSensitive(text) }

// AddRule registers a rule on the process-wide redactor.
func AddRule(name, pattern, replacement string) error {
	return std.AddRule(name, pattern, replacement)
}
