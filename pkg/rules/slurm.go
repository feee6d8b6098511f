package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SLURM constants for the HIVE transition.
const (
	gpuPartition = "gpu-a100"
	oldGPUQueue  = "jbsiegel-gpu"
	gpuAccount   = "genome-center-grp"

	lowPartition  = "low"
	highPartition = "high"

	// Maximum walltime on the low partition.
	lowTimeLimit     = "3-00:00:00"
	lowTimeLimitDays = 3.0
)

var (
	timeFlagRe  = regexp.MustCompile(`--time=(\S+)`)
	timeShortRe = regexp.MustCompile(`-t\s+(\S+)`)
	condaEnvRe  = regexp.MustCompile(`conda\s+activate\s+(\S+)`)
)

func isDirective(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#SBATCH")
}

// partitionTransform renames partitions on #SBATCH lines: the old group GPU
// queue becomes gpu-a100 (which requires an account flag on HIVE), and
// production becomes low or high depending on the selected target.
func partitionTransform(high bool) TransformFunc {
	cpuTarget := lowPartition
	if high {
		cpuTarget = highPartition
	}

	return func(text string) (string, []string) {
		var details []string
		lines := strings.Split(text, "\n")
		gpuDetected := false

		for i, line := range lines {
			if !isDirective(line) {
				continue
			}

			if strings.Contains(line, oldGPUQueue) || strings.Contains(line, gpuPartition) {
				gpuDetected = true

				if strings.Contains(line, oldGPUQueue) {
					line = strings.ReplaceAll(line, "--partition="+oldGPUQueue, "--partition="+gpuPartition)
					line = strings.ReplaceAll(line, "-p "+oldGPUQueue, "-p "+gpuPartition)
					if line != lines[i] {
						details = append(details, fmt.Sprintf("GPU partition: %s -> %s", oldGPUQueue, gpuPartition))
					}
				}

				// GPU jobs need an account on HIVE.
				if strings.Contains(line, gpuPartition) && !hasAccountFlag(line) {
					line += " --account=" + gpuAccount
					details = append(details, "added GPU account: "+gpuAccount)
				}
			} else if strings.Contains(line, "--partition=production") || strings.Contains(line, "-p production") {
				line = strings.ReplaceAll(line, "--partition=production", "--partition="+cpuTarget)
				line = strings.ReplaceAll(line, "-p production", "-p "+cpuTarget)
				details = append(details, fmt.Sprintf("CPU partition: production -> %s", cpuTarget))
			}

			lines[i] = line
		}

		// Fallback for scripts that mention gpu-a100 somewhere other
		// than a partition flag: inject a standalone account directive
		// after the first GPU line.
		if gpuDetected && !hasAccountFlag(strings.Join(lines, "\n")) {
			for i, line := range lines {
				if isDirective(line) && strings.Contains(line, gpuPartition) {
					lines = append(lines[:i+1], append([]string{"#SBATCH --account=" + gpuAccount}, lines[i+1:]...)...)
					details = append(details, "added GPU account line: --account="+gpuAccount)
					break
				}
			}
		}

		if len(details) == 0 {
			return text, nil
		}
		return strings.Join(lines, "\n"), details
	}
}

func hasAccountFlag(s string) bool {
	return strings.Contains(s, "--account=") || strings.Contains(s, "-A ")
}

func targetsLow(text string) bool {
	return strings.Contains(text, "--partition="+lowPartition) ||
		strings.Contains(text, "-p "+lowPartition)
}

// requeueTransform appends #SBATCH --requeue after the last directive when
// the script targets the low partition. Low jobs are preemptible, so they
// must opt back into the queue.
func requeueTransform() TransformFunc {
	return func(text string) (string, []string) {
		if !targetsLow(text) || strings.Contains(text, "--requeue") {
			return text, nil
		}

		lines := strings.Split(text, "\n")
		last := -1
		for i, line := range lines {
			if isDirective(line) {
				last = i
			}
		}
		if last < 0 {
			return text, nil
		}

		lines = append(lines[:last+1], append([]string{"#SBATCH --requeue"}, lines[last+1:]...)...)
		return strings.Join(lines, "\n"), []string{"added --requeue flag for low partition"}
	}
}

// timeLimitTransform caps requested walltime at the low partition maximum.
func timeLimitTransform() TransformFunc {
	return func(text string) (string, []string) {
		if !targetsLow(text) {
			return text, nil
		}

		var details []string
		lines := strings.Split(text, "\n")

		for i, line := range lines {
			if !isDirective(line) {
				continue
			}

			m := timeFlagRe.FindStringSubmatch(line)
			if m == nil {
				m = timeShortRe.FindStringSubmatch(line)
			}
			if m == nil {
				continue
			}

			if parseTimeDays(m[1]) <= lowTimeLimitDays {
				continue
			}

			line = timeFlagRe.ReplaceAllString(line, "--time="+lowTimeLimit)
			line = timeShortRe.ReplaceAllString(line, "-t "+lowTimeLimit)
			lines[i] = line
			details = append(details, fmt.Sprintf("time limit: %s -> %s (low partition max)", m[1], lowTimeLimit))
		}

		if len(details) == 0 {
			return text, nil
		}
		return strings.Join(lines, "\n"), details
	}
}

// parseTimeDays converts a SLURM time spec (D-HH:MM:SS or HH:MM:SS) to
// fractional days. Unparseable values count as zero so they are left alone.
func parseTimeDays(s string) float64 {
	if days, _, ok := strings.Cut(s, "-"); ok {
		d, err := strconv.Atoi(days)
		if err != nil {
			return 0
		}
		return float64(d)
	}
	hours, _, _ := strings.Cut(s, ":")
	h, err := strconv.Atoi(hours)
	if err != nil {
		return 0
	}
	return float64(h) / 24.0
}

// condaEnvTransform points SE3/RFdiffusion-flavored conda environments at
// the shared SE3nv environment shipped with the new RFdiffusion install.
func condaEnvTransform() TransformFunc {
	flavors := []string{"se3", "rfdiff", "rf-diff", "diffusion"}

	return func(text string) (string, []string) {
		var details []string
		out := condaEnvRe.ReplaceAllStringFunc(text, func(m string) string {
			env := condaEnvRe.FindStringSubmatch(m)[1]
			if env == newSE3CondaEnv {
				return m
			}
			lower := strings.ToLower(env)
			for _, f := range flavors {
				if strings.Contains(lower, f) {
					details = append(details, fmt.Sprintf("conda env: %s -> %s", env, newSE3CondaEnv))
					return "conda activate " + newSE3CondaEnv
				}
			}
			return m
		})

		if len(details) == 0 {
			return text, nil
		}
		return out, details
	}
}

// condaInitBlockTransform strips the block that `conda init` writes into
// shell profiles. On HIVE conda comes from `module load conda/latest`, and
// stale init blocks point at home directories that no longer exist.
func condaInitBlockTransform() TransformFunc {
	return func(text string) (string, []string) {
		if !strings.Contains(text, ">>> conda initialize >>>") {
			return text, nil
		}

		lines := strings.Split(text, "\n")
		kept := lines[:0:0]
		inBlock := false
		removed := 0

		for _, line := range lines {
			switch {
			case strings.Contains(line, ">>> conda initialize >>>"):
				inBlock = true
				removed++
			case strings.Contains(line, "<<< conda initialize <<<"):
				inBlock = false
				removed++
			case inBlock:
				removed++
			default:
				kept = append(kept, line)
			}
		}

		return strings.Join(kept, "\n"), []string{fmt.Sprintf("removed conda initialize block (%d lines)", removed)}
	}
}
