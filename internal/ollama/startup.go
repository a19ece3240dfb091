package ollama

import (
	"context"
	"fmt"
	"io"
	"time"
)

const warmupTimeout = 30 * time.Second

// EnsureReady makes model usable: the server must be up, a missing model is
// pulled with progress written to w, and the model is loaded with a one
// token chat. A failed warm-up is reported but not returned.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	if !c.IsRunning(ctx) {
		return ErrNotRunning
	}

	if !c.HasModel(ctx, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		if err := c.PullModel(ctx, model, pullPrinter(w)); err != nil {
			return fmt.Errorf("pulling model %s: %w", model, err)
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", model)

	warmCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	ping := []Message{{Role: "user", Content: "ping"}}
	if _, err := c.Chat(warmCtx, model, ping, ChatOptions{MaxTokens: 1}); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed (non-fatal): %v\n", model, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
	return nil
}

// pullPrinter prints each status change and every tenth percent of a
// download, instead of one line per streamed chunk.
func pullPrinter(w io.Writer) func(PullProgress) {
	var lastStatus string
	lastPct := -1
	return func(p PullProgress) {
		pct := p.Percent()
		if p.Status == lastStatus && (pct < 0 || pct/10 == lastPct/10) {
			return
		}
		if p.Status != lastStatus {
			lastPct = -1
		}
		lastStatus, lastPct = p.Status, pct
		if pct >= 0 {
			fmt.Fprintf(w, "  %s %d%%\n", p.Status, pct)
		} else {
			fmt.Fprintf(w, "  %s\n", p.Status)
		}
	}
}
