// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/randomizedcoder/runproc/internal/process"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if !c.Passed {
		r.Passed = false
	}
}

// RunAll executes all preflight checks for running spec with the given
// parallelism.
func RunAll(parallel int, spec process.Spec) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	result.add(checkExecutable(spec.Path))
	if spec.Dir != "" {
		result.add(checkWorkingDir(spec.Dir))
	}
	result.add(checkFileDescriptors(parallel))
	result.add(checkProcessLimit(parallel))

	return result
}

// fdsPerRun covers the two pipe read ends the parent holds per run, the
// write ends held briefly during spawn and the child's process handle.
const fdsPerRun = 5

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(parallel int) Check {
	var limit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit); err != nil {
		return Check{
			Name:    "file_descriptors",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check: %v", err),
		}
	}

	// Plus runner overhead (metrics server, logging, etc.)
	required := parallel*fdsPerRun + 64
	actual := int(min(limit.Cur, uint64(1<<31-1)))

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d parallel runs)", actual, required, parallel),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(parallel int) Check {
	required := parallel + 50

	actual, err := maxProcesses()
	if err != nil || actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkExecutable verifies the program resolves to an executable file.
func checkExecutable(path string) Check {
	if path == "" {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: "no program given",
		}
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}

	return Check{
		Name:    "executable",
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkWorkingDir verifies the working directory exists.
func checkWorkingDir(dir string) Check {
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		return Check{
			Name:    "working_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", dir, err),
		}
	case !info.IsDir():
		return Check{
			Name:    "working_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	return Check{
		Name:    "working_dir",
		Passed:  true,
		Message: dir,
	}
}

// PrintResults writes the preflight check results to w.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 8192 (or lower -parallel)"
	case "process_limit":
		return "ulimit -u 4096 (or lower -parallel)"
	case "executable":
		return "check the program path and its execute permission"
	case "working_dir":
		return "create the directory or fix -dir"
	default:
		return "see -help"
	}
}
