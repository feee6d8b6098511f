// Package walker discovers files under a root path, feeds them through the
// rewrite engine, and persists the results according to the selected
// disposition (dry-run, in-place, or a sibling _fixed copy). Per-file
// failures are recorded and never abort the batch.
package walker

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ianandersonlol/hivemigrate/pkg/engine"
	"github.com/ianandersonlol/hivemigrate/pkg/rules"
)

// FixedSuffix is appended to the base name (before the extension) when
// writing a sibling copy instead of editing in place.
const FixedSuffix = "_fixed"

// Options controls a walk.
type Options struct {
	DryRun  bool
	InPlace bool
	Verbose bool

	// Jobs is the number of files rewritten concurrently. Values below 2
	// keep the walk fully synchronous. Reporting order is deterministic
	// either way: results are collected by discovery index.
	Jobs int

	// Ignore is a set of doublestar globs matched against the path
	// relative to the walk root.
	Ignore []string
}

// FileIssue records a per-file problem or skip reason.
type FileIssue struct {
	Path   string
	Reason string
}

// Summary is the accumulator threaded through a walk. No global state: the
// caller owns it.
type Summary struct {
	Checked  int
	Modified int
	Results  []*engine.FileResult
	Skipped  []FileIssue
	Failed   []FileIssue
}

// Walk processes a file or directory tree with the given rule set.
// Directories are traversed depth-first in lexical order so repeated runs
// report identically. Only root resolution is fatal; everything after that
// is recorded in the Summary and the walk continues.
func Walk(ctx context.Context, root string, set rules.RuleSet, opts Options) (*Summary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Errorf("resolving %q: %w", root, err)
	}

	summary := &Summary{}

	if !info.IsDir() {
		processFile(ctx, root, set, opts, summary)
		return summary, nil
	}

	paths, err := discover(ctx, root, opts)
	if err != nil {
		return nil, err
	}

	if opts.Jobs > 1 {
		walkParallel(ctx, paths, set, opts, summary)
		return summary, nil
	}

	for _, path := range paths {
		processFile(ctx, path, set, opts, summary)
	}
	return summary, nil
}

// discover lists candidate files under root. Hidden directories and ignored
// paths are pruned here so the parallel and serial paths agree on ordering.
func discover(ctx context.Context, root string, opts Options) ([]string, error) {
	logger := zerolog.Ctx(ctx)
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable directory entries are non-fatal.
			logger.Debug().Str("path", path).Err(err).Msg("skipping unreadable entry")
			return nil
		}

		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		for _, pattern := range opts.Ignore {
			matched, matchErr := doublestar.Match(pattern, filepath.ToSlash(rel))
			if matchErr != nil {
				logger.Debug().Str("pattern", pattern).Err(matchErr).Msg("bad ignore pattern")
				continue
			}
			if matched {
				return nil
			}
		}

		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking %q: %w", root, err)
	}
	return paths, nil
}

func walkParallel(ctx context.Context, paths []string, set rules.RuleSet, opts Options, summary *Summary) {
	partials := make([]*Summary, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			s := &Summary{}
			processFile(gctx, path, set, opts, s)
			partials[i] = s
			return nil
		})
	}
	// Workers never return errors; failures land in their partials.
	_ = g.Wait()

	for _, s := range partials {
		if s == nil {
			continue
		}
		summary.Checked += s.Checked
		summary.Modified += s.Modified
		summary.Results = append(summary.Results, s.Results...)
		summary.Skipped = append(summary.Skipped, s.Skipped...)
		summary.Failed = append(summary.Failed, s.Failed...)
	}
}

// processFile rewrites one file and applies the output disposition. All
// errors are converted into Summary entries at this boundary.
func processFile(ctx context.Context, path string, set rules.RuleSet, opts Options, summary *Summary) {
	logger := zerolog.Ctx(ctx)

	info, err := os.Stat(path)
	if err != nil {
		summary.Skipped = append(summary.Skipped, FileIssue{Path: path, Reason: "unreadable: " + err.Error()})
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		summary.Skipped = append(summary.Skipped, FileIssue{Path: path, Reason: "unreadable: " + err.Error()})
		return
	}

	if !IsText(data) {
		summary.Skipped = append(summary.Skipped, FileIssue{Path: path, Reason: "binary"})
		return
	}

	summary.Checked++

	text := string(data)
	result, err := engine.Apply(ctx, path, text, set, engine.DetectKind(path))
	if err != nil {
		summary.Failed = append(summary.Failed, FileIssue{Path: path, Reason: err.Error()})
		return
	}

	if !result.Modified {
		return
	}

	result.OutPath = outputPath(path, opts)

	if opts.DryRun {
		summary.Results = append(summary.Results, result)
		summary.Modified++
		return
	}

	// A file only counts as modified once its output actually landed.
	if err := os.WriteFile(result.OutPath, []byte(result.FinalText), info.Mode().Perm()); err != nil {
		summary.Failed = append(summary.Failed, FileIssue{Path: result.OutPath, Reason: "write failed: " + err.Error()})
		return
	}

	summary.Results = append(summary.Results, result)
	summary.Modified++

	logger.Debug().Str("file", path).Str("out", result.OutPath).Int("rules", len(result.Changes)).Msg("file rewritten")
}

func outputPath(path string, opts Options) string {
	if opts.InPlace {
		return path
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	return filepath.Join(filepath.Dir(path), stem+FixedSuffix+ext)
}
