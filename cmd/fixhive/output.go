package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/kalambet/fixhive/internal/config"
	"github.com/kalambet/fixhive/internal/service"
	"github.com/kalambet/fixhive/internal/storage"
	"github.com/kalambet/fixhive/internal/syncer"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, green("✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, red("✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, yellow("⚠ "+fmt.Sprintf(format, args...)))
}

func printStep(format string, args ...any) {
	fmt.Fprintln(os.Stderr, cyan("→ "+fmt.Sprintf(format, args...)))
}

func printStatus(w io.Writer, label string, format string, args ...any) {
	fmt.Fprintf(w, "  %s %s\n", bold(label+":"), fmt.Sprintf(format, args...))
}

func statusLabel(status string) string {
	switch status {
	case storage.StatusUnresolved:
		return yellow(status)
	case storage.StatusResolved:
		return green(status)
	case storage.StatusUploaded:
		return cyan(status)
	}
	return status
}

func renderList(w io.Writer, res service.ListResult) {
	if res.Count == 0 {
		fmt.Fprintln(w, res.Message)
		fmt.Fprintln(w, gray(res.Hint))
		return
	}
	for _, e := range res.Errors {
		lang := e.Language
		if e.Framework != "" {
			lang += "/" + e.Framework
		}
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(w, "%s  %-10s  %-18s  %s\n",
			gray(e.ID[:8]), statusLabel(e.Status), lang, firstLine(e.Message))
	}
	fmt.Fprintf(w, "\n%d error(s)\n", res.Count)
}

func renderDetail(w io.Writer, d service.ErrorDetail) {
	printStatus(w, "ID", "%s", d.ID)
	printStatus(w, "Status", "%s", statusLabel(d.Status))
	if d.Language != "" {
		printStatus(w, "Language", "%s", d.Language)
	}
	if d.Framework != "" {
		printStatus(w, "Framework", "%s", d.Framework)
	}
	printStatus(w, "Tool", "%s", d.ToolName)
	printStatus(w, "Seen", "%s", d.CreatedAt.Local().Format("2006-01-02 15:04"))
	if d.CloudID != "" {
		printStatus(w, "Cloud ID", "%s", d.CloudID)
	}
	fmt.Fprintf(w, "\n%s\n", d.Message)

	if len(d.Solutions) == 0 {
		fmt.Fprintln(w, gray("\nNo solutions recorded."))
		return
	}
	for i, sol := range d.Solutions {
		fmt.Fprintf(w, "\n%s %s\n", bold(fmt.Sprintf("Solution %d", i+1)), gray(fmt.Sprintf("(+%d/-%d)", sol.Upvotes, sol.Downvotes)))
		fmt.Fprintln(w, sol.Resolution)
		if sol.ResolutionCode != "" {
			fmt.Fprintln(w, gray(sol.ResolutionCode))
		}
	}
}

func renderConfig(w io.Writer, keys []config.KeyInfo) {
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", bold(k.Key), k.Value)
	}
}

func renderStats(w io.Writer, res service.StatsResult) {
	o := res.Overview
	printStatus(w, "Errors", "%d", o.TotalErrors)
	printStatus(w, "Resolved", "%d (%s)", o.ResolvedErrors, o.ResolutionRate)
	printStatus(w, "Uploaded solutions", "%d", o.UploadedSolutions)
	printStatus(w, "Helpful votes", "%d", o.HelpfulVotes)
	if len(res.Breakdown.ByLanguage) > 0 {
		printStatus(w, "Languages", "%s", joinCounts(res.Breakdown.ByLanguage))
	}
	if len(res.Breakdown.ByFramework) > 0 {
		printStatus(w, "Frameworks", "%s", joinCounts(res.Breakdown.ByFramework))
	}

	c := res.Configuration
	cloud := red("disabled")
	if c.CloudEnabled {
		cloud = green("enabled")
	}
	printStatus(w, "Cloud", "%s", cloud)
	printStatus(w, "Pending sync", "%d", c.PendingSync)
	printStatus(w, "Contributor", "%s", c.ContributorID)
	fmt.Fprintln(w, res.Message)
}

func renderReport(w io.Writer, rep syncer.Report) {
	if rep.Processed == 0 {
		fmt.Fprintln(w, "Nothing to sync.")
		return
	}
	failed := fmt.Sprint(rep.Failed)
	if rep.Failed > 0 {
		failed = red(failed)
	}
	fmt.Fprintf(w, "processed %d: %s applied, %s failed, %d skipped\n",
		rep.Processed, green(rep.Applied), failed, rep.Skipped)
}

// joinCounts renders a count map as "a=3, b=1", highest first.
func joinCounts(m map[string]int) string {
	type kv struct {
		k string
		v int
	}
	list := make([]kv, 0, len(m))
	for k, v := range m {
		list = append(list, kv{k, v})
	}
	slices.SortFunc(list, func(a, b kv) int {
		if a.v != b.v {
			return b.v - a.v
		}
		return strings.Compare(a.k, b.k)
	})
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = fmt.Sprintf("%s=%d", e.k, e.v)
	}
	return strings.Join(parts, ", ")
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
