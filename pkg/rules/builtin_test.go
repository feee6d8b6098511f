package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applyAll runs the whole table over text the way the engine does, without
// path filtering, and collects which rules fired.
func applyAll(t *testing.T, set RuleSet, text string) (string, []ChangeRecord) {
	t.Helper()
	var recs []ChangeRecord
	current := text
	for i := range set {
		next, rec := set[i].Apply(current)
		if rec != nil {
			recs = append(recs, *rec)
		}
		current = next
	}
	return current, recs
}

func firedRules(recs []ChangeRecord) []string {
	var names []string
	for _, r := range recs {
		names = append(names, r.RuleName)
	}
	return names
}

func TestDefault_SoftwarePaths(t *testing.T) {
	set, err := Default(Options{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		text     string
		want     string
		wantRule string
	}{
		{
			name:     "colabfold_path_export",
			text:     "export PATH=/toolbox/LocalColabFold/localcolabfold/colabfold-conda/bin:$PATH",
			want:     "export PATH=/quobyte/jbsiegelgrp/software/LocalColabFold/localcolabfold/colabfold-conda/bin:$PATH",
			wantRule: "colabfold-path",
		},
		{
			name:     "ligandmpnn_lowercase",
			text:     "cd /toolbox/ligandMPNN",
			want:     "cd /quobyte/jbsiegelgrp/ligandMPNN",
			wantRule: "ligandmpnn-path",
		},
		{
			name:     "ligandmpnn_uppercase",
			text:     "cd /toolbox/LigandMPNN",
			want:     "cd /quobyte/jbsiegelgrp/LigandMPNN",
			wantRule: "ligandmpnn-path",
		},
		{
			name:     "rfdiffusion_home_location",
			text:     "script=/home/alice/RFdiffusion/run_inference.py",
			want:     "script=/quobyte/jbsiegelgrp/software/RFdiffusion/run_inference.py",
			wantRule: "rfdiffusion-path",
		},
		{
			name:     "rfdiffusion_dollar_home",
			text:     "script=$HOME/RFdiffusion/run_inference.py",
			want:     "script=/quobyte/jbsiegelgrp/software/RFdiffusion/run_inference.py",
			wantRule: "rfdiffusion-path",
		},
		{
			name:     "conda_env_se3_flavor",
			text:     "conda activate SE3nv",
			want:     "conda activate /quobyte/jbsiegelgrp/software/envs/SE3nv",
			wantRule: "rfdiffusion-conda-env",
		},
		{
			name:     "rosetta_base_path",
			text:     "ROSETTA=/share/siegellab/software/kschu/Rosetta/main",
			want:     "ROSETTA=/quobyte/jbsiegelgrp/software/Rosetta_314/rosetta/main",
			wantRule: "rosetta-path",
		},
		{
			name:     "rosetta_binary_suffix",
			text:     "rosetta_scripts.default.linuxgccrelease -s in.pdb",
			want:     "rosetta_scripts.static.linuxgccrelease -s in.pdb",
			wantRule: "rosetta-binary",
		},
		{
			name:     "general_storage_prefix",
			text:     "DATA=/share/siegellab/data/set1",
			want:     "DATA=/quobyte/jbsiegelgrp/data/set1",
			wantRule: "general-path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, recs := applyAll(t, set, tt.text)
			assert.Equal(t, tt.want, got)
			assert.Contains(t, firedRules(recs), tt.wantRule)
		})
	}
}

func TestDefault_SpecificRulesShadowGeneral(t *testing.T) {
	set, err := Default(Options{})
	require.NoError(t, err)

	// The Rosetta path lives under the old storage prefix. The specific
	// rule must claim it before the general prefix rewrite runs, or the
	// result would be /quobyte/jbsiegelgrp/software/kschu/Rosetta/main.
	got, recs := applyAll(t, set, "ROSETTA=/share/siegellab/software/kschu/Rosetta/main")

	assert.Equal(t, "ROSETTA="+newRosettaBase, got)
	assert.Contains(t, firedRules(recs), "rosetta-path")
	assert.NotContains(t, firedRules(recs), GeneralPathRule)
}

func TestDefault_Idempotent(t *testing.T) {
	script := strings.Join([]string{
		"#!/bin/bash",
		"#SBATCH --partition=production",
		"#SBATCH --time=7-00:00:00",
		"#SBATCH --mem=16G",
		"export PATH=/toolbox/LocalColabFold/localcolabfold/colabfold-conda/bin:$PATH",
		"conda activate rfdiff-env",
		"ROSETTA=/share/siegellab/software/kschu/Rosetta/main",
		"$ROSETTA/source/bin/rosetta_scripts.default.linuxgccrelease @flags",
		"python /home/alice/RFdiffusion/run_inference.py",
		"cp results /share/siegellab/outputs/",
		"",
	}, "\n")

	set, err := Default(Options{})
	require.NoError(t, err)

	once, firstRecs := applyAll(t, set, script)
	require.NotEmpty(t, firstRecs)

	twice, secondRecs := applyAll(t, set, once)
	assert.Empty(t, secondRecs, "second pass must not fire any rules, fired: %v", firedRules(secondRecs))
	assert.Equal(t, once, twice)
}

func TestDefault_HighPartitionDropsCompanions(t *testing.T) {
	set, err := Default(Options{HighPartition: true})
	require.NoError(t, err)

	names := map[string]bool{}
	for i := range set {
		names[set[i].Name] = true
	}
	assert.False(t, names["slurm-requeue"])
	assert.False(t, names["slurm-time-limit"])

	text := "#SBATCH --partition=production\n#SBATCH --time=7-00:00:00\n"
	got, _ := applyAll(t, set, text)
	assert.Contains(t, got, "--partition=high")
	assert.Contains(t, got, "--time=7-00:00:00")
	assert.NotContains(t, got, "--requeue")
}

func TestBuild_ExtraRulesRunBeforeGeneral(t *testing.T) {
	extra := Rule{
		Name:     "site-scratch",
		FromText: "/share/siegellab/scratch/",
		ToText:   "/quobyte/jbsiegelgrp/fast-scratch/",
	}

	set, err := Build(Options{}, extra)
	require.NoError(t, err)
	assert.Equal(t, GeneralPathRule, set[len(set)-1].Name)
	assert.Equal(t, "site-scratch", set[len(set)-2].Name)

	got, recs := applyAll(t, set, "cd /share/siegellab/scratch/run1")
	assert.Equal(t, "cd /quobyte/jbsiegelgrp/fast-scratch/run1", got)
	assert.Contains(t, firedRules(recs), "site-scratch")
	assert.NotContains(t, firedRules(recs), GeneralPathRule)
}
