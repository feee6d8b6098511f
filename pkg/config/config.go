// Copyright 2025 The hivemigrate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads optional site configuration: extra migration rules,
// ignore globs, and flag defaults. Parsers self-register and are selected
// by file extension, so YAML and HCL configs are interchangeable.
package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/ianandersonlol/hivemigrate/pkg/rules"
)

// Parser is the interface for config parsers.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*Config, error)
	CanParse(filename string) bool
}

var parsers []Parser

// Register registers a parser.
func Register(p Parser) {
	parsers = append(parsers, p)
}

// GetParser returns a parser that can handle the given file.
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// RuleSpec is a user-supplied rule. Only the declarative matcher shapes are
// configurable; computed transforms stay in code.
type RuleSpec struct {
	Name    string `json:"name" yaml:"name" hcl:"name,label"`
	From    string `json:"from,omitempty" yaml:"from,omitempty" hcl:"from,optional"`
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty" hcl:"pattern,optional"`
	To      string `json:"to" yaml:"to" hcl:"to,optional"`
	Files   string `json:"files,omitempty" yaml:"files,omitempty" hcl:"files,optional"`
}

// Config is the optional site configuration.
type Config struct {
	Rules  []RuleSpec `json:"rules,omitempty" yaml:"rules,omitempty" hcl:"rule,block"`
	Ignore []string   `json:"ignore,omitempty" yaml:"ignore,omitempty" hcl:"ignore,optional"`
	High   bool       `json:"high,omitempty" yaml:"high,omitempty" hcl:"high,optional"`
}

// DefaultNames are probed, in order, when no --config flag is given.
var DefaultNames = []string{".hivemigrate.yaml", ".hivemigrate.yml", ".hivemigrate.hcl"}

// Load loads configuration from a file.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadDefault probes for a config file in the current directory. A missing
// config is not an error: the builtin table alone is a complete setup.
func LoadDefault(ctx context.Context) (*Config, error) {
	for _, name := range DefaultNames {
		if _, err := os.Stat(name); err == nil {
			return Load(ctx, name)
		}
	}
	return nil, nil
}

// Validate checks the configuration is well formed.
func (cfg *Config) Validate() error {
	seen := map[string]bool{}
	for i, r := range cfg.Rules {
		if r.Name == "" {
			return errors.Errorf("rule %d: name is required", i)
		}
		if seen[r.Name] {
			return errors.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if (r.From == "") == (r.Pattern == "") {
			return errors.Errorf("rule %q: exactly one of from or pattern is required", r.Name)
		}
	}
	return nil
}

// CompileRules converts the configured rule specs into engine rules. The
// caller splices them into the table ahead of the general storage-prefix
// rule, so site rules shadow it the same way the builtin software rules do.
func (cfg *Config) CompileRules() []rules.Rule {
	out := make([]rules.Rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		out = append(out, rules.Rule{
			Name:           r.Name,
			FromText:       r.From,
			Pattern:        r.Pattern,
			ToText:         r.To,
			FileFilterGlob: r.Files,
		})
	}
	return out
}

// YAMLParser implements the Parser interface for YAML files.
type YAMLParser struct{}

func init() {
	Register(&YAMLParser{})
}

func (p *YAMLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".yaml") || strings.HasSuffix(filename, ".yml")
}

func (p *YAMLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// HCLParser implements the Parser interface for HCL files.
type HCLParser struct{}

func init() {
	Register(&HCLParser{})
}

func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var cfg Config
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &cfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	return &cfg, nil
}
