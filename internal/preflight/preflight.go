// Package preflight validates the daemon's runtime environment before
// work begins: required binaries, writable directories, and free disk.
package preflight

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"clipdub/internal/config"
	"clipdub/internal/deps"
	"clipdub/internal/logging"
)

// Check is one evaluated readiness item.
type Check struct {
	Name     string
	OK       bool
	Optional bool
	Detail   string
}

// Report aggregates all preflight checks.
type Report struct {
	Checks []Check
}

// Ready reports whether every required check passed.
func (r Report) Ready() bool {
	for _, check := range r.Checks {
		if !check.OK && !check.Optional {
			return false
		}
	}
	return true
}

// Failures returns the required checks that did not pass.
func (r Report) Failures() []Check {
	var failed []Check
	for _, check := range r.Checks {
		if !check.OK && !check.Optional {
			failed = append(failed, check)
		}
	}
	return failed
}

// Run evaluates binaries, directories, and disk space for the given
// configuration.
func Run(cfg *config.Config, logger *slog.Logger) Report {
	log := logging.NewComponentLogger(logger, "preflight")
	var report Report

	for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
		report.Checks = append(report.Checks, Check{
			Name:     status.Name,
			OK:       status.Available,
			Optional: status.Optional,
			Detail:   status.Detail,
		})
	}

	report.Checks = append(report.Checks, checkDirectory("Work directory", cfg.Paths.WorkDir))
	report.Checks = append(report.Checks, checkDisk(cfg.Paths.WorkDir, cfg.Workflow.MinFreeDiskGiB))

	for _, check := range report.Checks {
		if !check.OK {
			log.Warn("preflight check failed",
				logging.String("check", check.Name),
				logging.Bool("optional", check.Optional),
				logging.String("detail", check.Detail))
		}
	}
	return report
}

func checkDirectory(name, dir string) Check {
	check := Check{Name: name}
	if dir == "" {
		check.Detail = "not configured"
		return check
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		check.Detail = err.Error()
		return check
	}
	probe, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		check.Detail = fmt.Sprintf("not writable: %v", err)
		return check
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = os.Remove(probePath)
	check.OK = true
	return check
}

func checkDisk(dir string, minFreeGiB int) Check {
	check := Check{Name: "Free disk space"}
	free, err := freeBytes(dir)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	required := uint64(minFreeGiB) << 30
	if minFreeGiB > 0 && free < required {
		check.Detail = fmt.Sprintf("%.1f GiB free, %d GiB required", float64(free)/(1<<30), minFreeGiB)
		return check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("%.1f GiB free", float64(free)/(1<<30))
	return check
}

func freeBytes(dir string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %q: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}
