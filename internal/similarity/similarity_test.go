package similarity

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/kalambet/fixhive/internal/remote"
)

type fakeGenerator struct {
	reply     string
	err       error
	prompts   []string
	maxTokens []int
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.maxTokens = append(f.maxTokens, maxTokens)
	return f.reply, f.err
}

func (f *fakeGenerator) Name() string { return "fake" }

func candidates() []remote.Candidate {
	return []remote.Candidate{
		{ID: "a", Message: "ModuleNotFoundError: No module named 'requests'"},
		{ID: "b", Message: "TypeError: Cannot read properties of undefined (reading 'map')"},
		{ID: "c", Message: "TypeError: Cannot read properties of null (reading 'length')"},
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRank_GeneratorOrderGivesSimilarity(t *testing.T) {
	gen := &fakeGenerator{reply: "Sure! Here you go:\n```json\n{\"matches\": [2, 3], \"reasoning\": \"same TypeError\"}\n```"}
	r := NewRanker(gen)

	got := r.Rank(context.Background(), "TypeError: Cannot read properties of undefined", candidates(), 5)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Candidate.ID != "b" || !approx(got[0].Similarity, 1) {
		t.Errorf("first = %+v, want b at 1.0", got[0])
	}
	if got[1].Candidate.ID != "c" || !approx(got[1].Similarity, 0.5) {
		t.Errorf("second = %+v, want c at 0.5", got[1])
	}
	if gen.maxTokens[0] != 500 {
		t.Errorf("maxTokens = %d, want 500", gen.maxTokens[0])
	}
	if !strings.Contains(gen.prompts[0], "2. TypeError: Cannot read properties of undefined") {
		t.Errorf("prompt does not number candidates from 1:\n%s", gen.prompts[0])
	}
}

func TestRank_SkipsOutOfRangeAndRespectsLimit(t *testing.T) {
	gen := &fakeGenerator{reply: `{"matches":[9,3,3,1,2],"reasoning":""}`}
	got := NewRanker(gen).Rank(context.Background(), "q", candidates(), 2)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Candidate.ID != "c" || !approx(got[0].Similarity, 0.8) {
		t.Errorf("first = %+v, want c at 0.8", got[0])
	}
	if got[1].Candidate.ID != "a" || !approx(got[1].Similarity, 0.4) {
		t.Errorf("second = %+v, want a at 0.4", got[1])
	}
}

func TestRank_EmptyMatchesIsAnAnswer(t *testing.T) {
	gen := &fakeGenerator{reply: `{"matches":[],"reasoning":"nothing similar"}`}
	got := NewRanker(gen).Rank(context.Background(), "TypeError: Cannot read properties", candidates(), 5)
	if len(got) != 0 {
		t.Errorf("got %d matches, want none", len(got))
	}
}

func TestRank_FallsBackToKeywords(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generator error", &fakeGenerator{err: errors.New("connection refused")}},
		{"no JSON", &fakeGenerator{reply: "I think number two."}},
		{"bad JSON", &fakeGenerator{reply: `{"matches": "two"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewRanker(tt.gen).Rank(context.Background(), "TypeError: Cannot read properties of undefined", candidates(), 5)
			if len(got) == 0 || got[0].Candidate.ID != "b" {
				t.Fatalf("fallback ranking = %+v, want b first", got)
			}
		})
	}
}

func TestRank_NoGenerator(t *testing.T) {
	got := NewRanker(nil).Rank(context.Background(), "No module named requests", candidates(), 5)
	if len(got) != 1 || got[0].Candidate.ID != "a" {
		t.Fatalf("got %+v, want only a", got)
	}
	if NewRanker(nil).Rank(context.Background(), "x", nil, 5) != nil {
		t.Error("ranking no candidates should return nil")
	}
}

func TestKeywordRank(t *testing.T) {
	// Five keywords survive: "of" is too short.
	got := KeywordRank("TypeError: Cannot read properties of undefined", candidates(), 5)
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2: %+v", len(got), got)
	}
	if got[0].Candidate.ID != "b" || !approx(got[0].Similarity, 1) {
		t.Errorf("first = %+v, want b at 1.0", got[0])
	}
	if got[1].Candidate.ID != "c" || !approx(got[1].Similarity, 0.8) {
		t.Errorf("second = %+v, want c at 0.8", got[1])
	}
}

func TestKeywordRank_LimitAppliesBeforeZeroFilter(t *testing.T) {
	got := KeywordRank("properties undefined", candidates(), 1)
	if len(got) != 1 || got[0].Candidate.ID != "b" {
		t.Fatalf("got %+v, want only b", got)
	}
}

func TestKeywordRank_NoUsableKeywords(t *testing.T) {
	if got := KeywordRank("a bc def", candidates(), 5); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"a":1}`, `{"a":1}`, false},
		{"prefix {\"a\":{\"b\":2}} suffix", `{"a":{"b":2}}`, false},
		{"no braces", "", true},
		{"} backwards {", "", true},
		{`{"matches":[2,1],"reasoning":"same cause"} Note: ignore {other}`, `{"matches":[2,1],"reasoning":"same cause"}`, false},
		{`{"reasoning":"a } inside \"quotes\" {","matches":[1]} trailing }`, `{"reasoning":"a } inside \"quotes\" {","matches":[1]}`, false},
		{`{"unterminated": [1, 2`, "", true},
	}
	for _, tt := range tests {
		got, err := ExtractJSON(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ExtractJSON(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	sols := []remote.Solution{
		{ID: "s1", Resolution: "Guard with optional chaining", Upvotes: 4},
		{ID: "s2", Resolution: "Initialise the array", Upvotes: 1},
	}
	ctx := context.Background()

	if got := NewRanker(nil).Summarize(ctx, "q", nil); got != NoSolutionsSummary {
		t.Errorf("empty = %q", got)
	}
	if got := NewRanker(nil).Summarize(ctx, "q", sols); got != "Guard with optional chaining" {
		t.Errorf("no generator = %q", got)
	}

	gen := &fakeGenerator{reply: "  Use optional chaining or initialise the array.  "}
	if got := NewRanker(gen).Summarize(ctx, "q", sols); got != "Use optional chaining or initialise the array." {
		t.Errorf("generator = %q", got)
	}
	if gen.maxTokens[0] != 300 {
		t.Errorf("maxTokens = %d, want 300", gen.maxTokens[0])
	}
	if !strings.Contains(gen.prompts[0], "1. [+4] Guard with optional chaining") {
		t.Errorf("prompt missing votes:\n%s", gen.prompts[0])
	}

	failing := &fakeGenerator{err: errors.New("timeout")}
	if got := NewRanker(failing).Summarize(ctx, "q", sols); got != "Guard with optional chaining" {
		t.Errorf("failing generator = %q", got)
	}
}
