// Package report renders walk results for humans: per-file change bullets,
// optional before/after line diffs, and the closing tally. Output goes to
// an injected writer so tests can capture it; the structured debug trail
// stays on zerolog.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/ianandersonlol/hivemigrate/pkg/engine"
	"github.com/ianandersonlol/hivemigrate/pkg/walker"
)

// Options mirrors the walk options that affect wording.
type Options struct {
	DryRun  bool
	InPlace bool
	Verbose bool
	High    bool
}

// Printer writes the migration report.
type Printer struct {
	out  io.Writer
	opts Options
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer, opts Options) *Printer {
	return &Printer{out: out, opts: opts}
}

// Banner prints the run header and mode notices.
func (p *Printer) Banner(target string) {
	title := color.New(color.Bold, color.FgCyan).Sprint("hivemigrate")
	fmt.Fprintf(p.out, "%s %s\n", title, color.New(color.Faint).Sprint("• "+target))

	if p.opts.High {
		fmt.Fprintln(p.out, "mode: high partition (30 day max)")
	} else {
		fmt.Fprintln(p.out, "mode: low partition (3 day max, auto-requeue)")
	}
	if p.opts.DryRun {
		fmt.Fprintln(p.out, color.New(color.FgYellow).Sprint("*** dry run - no files will be modified ***"))
	}
	if p.opts.InPlace {
		fmt.Fprintln(p.out, color.New(color.FgYellow).Sprint("*** in-place - files will be modified directly ***"))
	}
	fmt.Fprintln(p.out)
}

// Results prints every modified file, skips and failures, then the tally.
func (p *Printer) Results(sum *walker.Summary) {
	for _, res := range sum.Results {
		p.file(res)
	}

	if p.opts.Verbose {
		for _, s := range sum.Skipped {
			fmt.Fprintf(p.out, "%s %s (%s)\n", color.New(color.FgYellow).Sprint("-"), s.Path, s.Reason)
		}
	}
	for _, f := range sum.Failed {
		fmt.Fprintf(p.out, "%s %s: %s\n", color.New(color.FgRed).Sprint("✗"), f.Path, f.Reason)
	}

	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "files checked:  %d\n", sum.Checked)
	if p.opts.DryRun {
		fmt.Fprintf(p.out, "files that would be modified: %d\n", sum.Modified)
	} else {
		fmt.Fprintf(p.out, "files modified: %d\n", sum.Modified)
	}
}

func (p *Printer) file(res *engine.FileResult) {
	symbol := color.New(color.FgBlue).Sprint("⟳")
	verb := "modified"
	if p.opts.DryRun {
		symbol = color.New(color.FgYellow).Sprint("⟳")
		verb = "would modify"
	}
	fmt.Fprintf(p.out, "%s %s %s\n", symbol, verb, res.Path)

	for _, rec := range res.Changes {
		if len(rec.Details) == 1 && rec.Count > 1 {
			fmt.Fprintf(p.out, "    • %s: %s (%d occurrences)\n", rec.RuleName, rec.Details[0], rec.Count)
			continue
		}
		for _, d := range rec.Details {
			fmt.Fprintf(p.out, "    • %s: %s\n", rec.RuleName, d)
		}
	}

	if !p.opts.InPlace && res.OutPath != "" {
		if p.opts.DryRun {
			fmt.Fprintf(p.out, "    output would be: %s\n", res.OutPath)
		} else {
			fmt.Fprintf(p.out, "    → output: %s\n", res.OutPath)
		}
	}

	if p.opts.Verbose {
		p.diff(res.OriginalText, res.FinalText)
	}
}

// diff prints removed/added lines between the original and final text.
func (p *Printer) diff(before, after string) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			for _, line := range splitDiffLines(d.Text) {
				fmt.Fprintf(p.out, "    %s\n", color.New(color.FgRed).Sprint("- "+line))
			}
		case diffmatchpatch.DiffInsert:
			for _, line := range splitDiffLines(d.Text) {
				fmt.Fprintf(p.out, "    %s\n", color.New(color.FgGreen).Sprint("+ "+line))
			}
		}
	}
}

func splitDiffLines(text string) []string {
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
