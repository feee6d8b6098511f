// Package rules defines the migration rule table: an ordered set of named
// substitutions that the engine interprets over a file's text. Rules are
// plain data values; registration order is significant because later rules
// see the output of earlier ones, and the general storage-prefix rule must
// run after every software-specific rule that would otherwise lose its
// match.
package rules

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// FileKind is a coarse classification of the file being rewritten. It is
// only ever used to skip rules that cannot apply; a rule applied to the
// wrong kind must still be a no-op.
type FileKind string

const (
	KindAny     FileKind = ""
	KindProfile FileKind = "profile"
)

// TransformFunc rewrites text that cannot be expressed as a find/replace
// pair (directive injection, duration capping, block removal). It returns
// the new text and one human-readable detail per distinct rewrite it made.
// Transforms must be idempotent: running one over its own output makes no
// further changes.
type TransformFunc func(text string) (string, []string)

// Rule is a single named substitution. Exactly one matcher shape must be
// set: FromText (literal), Pattern (regexp), Patterns (several regexps
// sharing one replacement), or Transform.
type Rule struct {
	Name     string
	FromText string
	Pattern  string
	Patterns []string
	ToText   string

	Transform TransformFunc

	// FileFilterGlob restricts the rule to matching base names
	// (doublestar syntax). Empty applies to every file.
	FileFilterGlob string

	// Hints restricts the rule to the listed file kinds. Empty applies
	// to every kind.
	Hints []FileKind

	compiled []*regexp.Regexp
}

// ChangeRecord reports that a rule fired on a file.
type ChangeRecord struct {
	RuleName string
	Count    int
	Details  []string
}

// RuleSet is an ordered sequence of rules defining one migration pass.
type RuleSet []Rule

// New validates and compiles the given rules into a RuleSet.
func New(rs ...Rule) (RuleSet, error) {
	set := RuleSet(rs)
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks every rule and compiles regexp matchers in place.
func (s RuleSet) Validate() error {
	seen := map[string]bool{}
	for i := range s {
		r := &s[i]
		if r.Name == "" {
			return errors.Errorf("rule %d: name is required", i)
		}
		if seen[r.Name] {
			return errors.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true

		matchers := 0
		if r.FromText != "" {
			matchers++
		}
		if r.Pattern != "" {
			matchers++
		}
		if len(r.Patterns) > 0 {
			matchers++
		}
		if r.Transform != nil {
			matchers++
		}
		if matchers != 1 {
			return errors.Errorf("rule %q: exactly one of from_text, pattern, patterns, or transform is required", r.Name)
		}

		if r.FileFilterGlob != "" {
			if !doublestar.ValidatePattern(r.FileFilterGlob) {
				return errors.Errorf("rule %q: invalid file filter glob %q", r.Name, r.FileFilterGlob)
			}
		}

		if err := r.compile(); err != nil {
			return err
		}
	}
	return nil
}

// Compiled reports whether the rule's regexp matchers have been built.
// Rules in a set returned by New or Build are always compiled; a Rule
// literal with a Pattern is not until it goes through Validate.
func (r *Rule) Compiled() bool {
	if r.Pattern == "" && len(r.Patterns) == 0 {
		return true
	}
	return len(r.compiled) > 0
}

func (r *Rule) compile() error {
	patterns := r.Patterns
	if r.Pattern != "" {
		patterns = []string{r.Pattern}
	}
	r.compiled = r.compiled[:0]
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return errors.Errorf("rule %q: compiling pattern %q: %w", r.Name, p, err)
		}
		r.compiled = append(r.compiled, re)
	}
	return nil
}

// Matches reports whether the rule should run against the given file.
func (r *Rule) Matches(path string, kind FileKind) bool {
	if r.FileFilterGlob != "" {
		ok, err := doublestar.Match(r.FileFilterGlob, filepath.Base(path))
		if err != nil || !ok {
			return false
		}
	}
	if len(r.Hints) == 0 || kind == KindAny {
		return true
	}
	for _, h := range r.Hints {
		if h == kind {
			return true
		}
	}
	return false
}

// Apply runs the rule over the whole text buffer and returns the new text
// plus a ChangeRecord, or nil when nothing matched.
func (r *Rule) Apply(text string) (string, *ChangeRecord) {
	if r.Transform != nil {
		out, details := r.Transform(text)
		if len(details) == 0 {
			return text, nil
		}
		return out, &ChangeRecord{RuleName: r.Name, Count: len(details), Details: details}
	}

	if r.FromText != "" {
		count := strings.Count(text, r.FromText)
		if count == 0 {
			return text, nil
		}
		out := strings.ReplaceAll(text, r.FromText, r.ToText)
		return out, &ChangeRecord{
			RuleName: r.Name,
			Count:    count,
			Details:  []string{r.FromText + " -> " + r.ToText},
		}
	}

	out := text
	count := 0
	var details []string
	seen := map[string]bool{}
	for _, re := range r.compiled {
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			rep := re.ReplaceAllString(m, r.ToText)
			// A pattern may match its own replacement (the Rosetta
			// base path does); leaving those alone keeps the rule
			// idempotent.
			if rep == m {
				return m
			}
			count++
			if !seen[m] {
				seen[m] = true
				details = append(details, m+" -> "+rep)
			}
			return rep
		})
	}
	if count == 0 {
		return text, nil
	}
	return out, &ChangeRecord{RuleName: r.Name, Count: count, Details: details}
}
