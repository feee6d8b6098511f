package report

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ianandersonlol/hivemigrate/pkg/engine"
	"github.com/ianandersonlol/hivemigrate/pkg/rules"
	"github.com/ianandersonlol/hivemigrate/pkg/walker"
)

func init() {
	// Stable assertions regardless of the test environment's terminal.
	color.NoColor = true
}

func sampleSummary() *walker.Summary {
	return &walker.Summary{
		Checked:  3,
		Modified: 1,
		Results: []*engine.FileResult{
			{
				Path:         "jobs/fold.sh",
				OutPath:      "jobs/fold_fixed.sh",
				OriginalText: "cd /share/siegellab/data\necho done\n",
				FinalText:    "cd /quobyte/jbsiegelgrp/data\necho done\n",
				Modified:     true,
				Changes: []rules.ChangeRecord{
					{
						RuleName: "general-path",
						Count:    1,
						Details:  []string{"/share/siegellab/ -> /quobyte/jbsiegelgrp/"},
					},
				},
			},
		},
		Skipped: []walker.FileIssue{
			{Path: "jobs/structure.pdb", Reason: "binary"},
		},
	}
}

func TestPrinter_Results(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})
	p.Results(sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "modified jobs/fold.sh")
	assert.Contains(t, out, "general-path: /share/siegellab/ -> /quobyte/jbsiegelgrp/")
	assert.Contains(t, out, "→ output: jobs/fold_fixed.sh")
	assert.Contains(t, out, "files checked:  3")
	assert.Contains(t, out, "files modified: 1")

	// Binary skips only show up under verbose.
	assert.NotContains(t, out, "structure.pdb")
}

func TestPrinter_DryRunWording(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{DryRun: true})
	p.Results(sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "would modify jobs/fold.sh")
	assert.Contains(t, out, "output would be: jobs/fold_fixed.sh")
	assert.Contains(t, out, "files that would be modified: 1")
}

func TestPrinter_VerboseShowsDiffAndSkips(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{Verbose: true})
	p.Results(sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "- cd /share/siegellab/data")
	assert.Contains(t, out, "+ cd /quobyte/jbsiegelgrp/data")
	assert.NotContains(t, out, "- echo done")
	assert.Contains(t, out, "jobs/structure.pdb (binary)")
}

func TestPrinter_OccurrenceCount(t *testing.T) {
	sum := sampleSummary()
	sum.Results[0].Changes[0].Count = 4

	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})
	p.Results(sum)

	assert.Contains(t, buf.String(), "(4 occurrences)")
}

func TestPrinter_FailuresAlwaysShown(t *testing.T) {
	sum := sampleSummary()
	sum.Failed = []walker.FileIssue{
		{Path: "jobs/locked.sh", Reason: "write failed: permission denied"},
	}

	var buf bytes.Buffer
	p := NewPrinter(&buf, Options{})
	p.Results(sum)

	assert.Contains(t, buf.String(), "jobs/locked.sh: write failed: permission denied")
}

func TestPrinter_Banner(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{
			name: "default_mode",
			opts: Options{},
			want: []string{"hivemigrate", "low partition (3 day max"},
		},
		{
			name: "high_and_dry_run",
			opts: Options{High: true, DryRun: true},
			want: []string{"high partition (30 day max)", "dry run"},
		},
		{
			name: "in_place",
			opts: Options{InPlace: true},
			want: []string{"in-place"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewPrinter(&buf, tt.opts).Banner("scripts/")
			for _, want := range tt.want {
				require.Contains(t, buf.String(), want)
			}
		})
	}
}
