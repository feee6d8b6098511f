// Package engine applies a RuleSet to a single text buffer. It is pure:
// all filesystem I/O belongs to the walker, which makes the rewrite itself
// trivially testable.
package engine

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/ianandersonlol/hivemigrate/pkg/rules"
)

// FileResult is the outcome of rewriting one file. OutPath is filled in by
// the walker once the disposition is known.
type FileResult struct {
	Path         string
	OutPath      string
	OriginalText string
	FinalText    string
	Changes      []rules.ChangeRecord
	Modified     bool
}

// Apply runs the rule set over text in registration order. Each rule sees
// the output of the previous one and scans the whole buffer in a single
// pass, so multi-line rules work without any special casing here.
//
// The set must come from rules.New or rules.Build. Apply only reads it, so
// one set is safe to share across concurrent calls.
func Apply(ctx context.Context, path, text string, set rules.RuleSet, kind rules.FileKind) (*FileResult, error) {
	for i := range set {
		if !set[i].Compiled() {
			return nil, errors.Errorf("rule %q: not compiled, build the set with rules.New", set[i].Name)
		}
	}

	logger := zerolog.Ctx(ctx)
	result := &FileResult{
		Path:         path,
		OriginalText: text,
		FinalText:    text,
	}

	current := text
	for i := range set {
		rule := &set[i]
		if !rule.Matches(path, kind) {
			continue
		}

		next, rec := rule.Apply(current)
		if rec == nil {
			continue
		}

		logger.Debug().
			Str("file", path).
			Str("rule", rec.RuleName).
			Int("count", rec.Count).
			Msg("rule fired")

		result.Changes = append(result.Changes, *rec)
		current = next
	}

	result.FinalText = current
	result.Modified = len(result.Changes) > 0
	return result, nil
}

// DetectKind classifies a file so hinted rules can be skipped. The hint is
// an efficiency filter only; a wrong guess never changes the rewrite,
// because every rule is a no-op on text it does not match. Shell profiles
// are the only kind the builtin table distinguishes, and they are
// recognizable by name alone.
func DetectKind(path string) rules.FileKind {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".bash") || base == ".profile" {
		return rules.KindProfile
	}
	return rules.KindAny
}
