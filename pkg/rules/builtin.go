package rules

// Cluster constants for the Barbera -> HIVE transition.
const (
	oldStoragePrefix = "/share/siegellab/"
	newStoragePrefix = "/quobyte/jbsiegelgrp/"

	oldColabFoldBin = "/toolbox/LocalColabFold/localcolabfold/colabfold-conda/bin"
	newColabFoldBin = "/quobyte/jbsiegelgrp/software/LocalColabFold/localcolabfold/colabfold-conda/bin"

	newRFDiffusionRoot = "/quobyte/jbsiegelgrp/software/RFdiffusion"
	newSE3CondaEnv     = "/quobyte/jbsiegelgrp/software/envs/SE3nv"
	newRosettaBase     = "/quobyte/jbsiegelgrp/software/Rosetta_314/rosetta/main"

	// GeneralPathRule is the catch-all storage prefix rule. It must stay
	// last in the table so software-specific rules shadow it.
	GeneralPathRule = "general-path"
)

// Options selects variants of the builtin table.
type Options struct {
	// HighPartition retargets CPU jobs at the high partition (30 day
	// max) instead of low, and suppresses the requeue and time-cap
	// companions that only make sense on low.
	HighPartition bool
}

// Default returns the builtin HIVE migration table.
func Default(opts Options) (RuleSet, error) {
	return Build(opts)
}

// Build returns the builtin table with any extra rules spliced in just
// before the general storage-prefix rule, so user rules still shadow it.
func Build(opts Options, extra ...Rule) (RuleSet, error) {
	rs := []Rule{
		{
			Name:     "colabfold-path",
			FromText: oldColabFoldBin,
			ToText:   newColabFoldBin,
		},
		{
			Name:    "ligandmpnn-path",
			Pattern: `/toolbox/([Ll]igand[Mm][Pp][Nn][Nn])`,
			ToText:  newStoragePrefix + "$1",
		},
		{
			Name: "rfdiffusion-path",
			Patterns: []string{
				`/home/[^/\s]+/RFdiffusion`,
				`/share/[^/\s]+/[^/\s]+/RFdiffusion`,
				`/toolbox/RFdiffusion`,
				`/opt/RFdiffusion`,
				`/usr/local/RFdiffusion`,
				`\./RFdiffusion`,
				`~/RFdiffusion`,
				`\$HOME/RFdiffusion`,
			},
			ToText: newRFDiffusionRoot,
		},
		{
			Name:      "rfdiffusion-conda-env",
			Transform: condaEnvTransform(),
		},
		{
			Name:    "rosetta-path",
			Pattern: `(/[^ \t\n]+/[Rr]osetta[^ \t\n]*/main)`,
			ToText:  newRosettaBase,
		},
		{
			Name:     "rosetta-binary",
			FromText: ".default.linuxgccrelease",
			ToText:   ".static.linuxgccrelease",
		},
		{
			Name:      "slurm-partition",
			Transform: partitionTransform(opts.HighPartition),
		},
	}

	if !opts.HighPartition {
		rs = append(rs,
			Rule{Name: "slurm-requeue", Transform: requeueTransform()},
			Rule{Name: "slurm-time-limit", Transform: timeLimitTransform()},
		)
	}

	rs = append(rs,
		Rule{
			Name:           "conda-init-block",
			Transform:      condaInitBlockTransform(),
			FileFilterGlob: ".bash*",
			Hints:          []FileKind{KindProfile},
		},
		Rule{
			Name:           "module-load-conda",
			Pattern:        `module\s+load\s+conda\S*`,
			ToText:         "module load conda/latest",
			FileFilterGlob: ".bash*",
			Hints:          []FileKind{KindProfile},
		},
	)

	rs = append(rs, extra...)

	rs = append(rs, Rule{
		Name:     GeneralPathRule,
		FromText: oldStoragePrefix,
		ToText:   newStoragePrefix,
	})

	return New(rs...)
}
