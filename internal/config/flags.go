package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// envList is a repeatable -env KEY=VALUE flag.
type envList map[string]string

func (e envList) String() string {
	return strings.Join(EnvPairs(e), ", ")
}

// EnvPairs returns env as KEY=VALUE strings sorted by key.
func EnvPairs(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+env[k])
	}
	return pairs
}

func (e envList) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", value)
	}
	e[key] = val
	return nil
}

// ParseFlags parses os.Args and returns a Config.
func ParseFlags() (*Config, error) {
	return ParseArgs(os.Args[1:], os.Stderr)
}

// ParseArgs parses args into a Config. Usage and errors are written to out.
//
// The first positional argument is the executable, the rest are passed to it.
// Use "--" before the executable when its arguments start with a dash.
// A -job file fills in anything not given explicitly on the command line.
func ParseArgs(args []string, out io.Writer) (*Config, error) {
	cfg := DefaultConfig()
	env := envList{}

	fs := flag.NewFlagSet("runproc", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, `runproc - run a process and capture its exit code, run time and output

Usage:
  runproc [flags] <path> [args...]
  runproc [flags] -- <path> [-args...]

Process Flags:
`)
		printFlagCategory(fs, out, []string{"dir", "env", "user", "job"})

		fmt.Fprintf(out, "\nCancellation:\n")
		printFlagCategory(fs, out, []string{"timeout", "grace"})

		fmt.Fprintf(out, "\nSwarm:\n")
		printFlagCategory(fs, out, []string{"runs", "parallel", "ramp-rate", "ramp-jitter"})

		fmt.Fprintf(out, "\nSafety & Diagnostics:\n")
		printFlagCategory(fs, out, []string{"print-cmd", "check", "skip-preflight"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"metrics", "v", "q", "log-format", "log-level", "tui"})

		fmt.Fprintf(out, `
Exit Status:
  A single run exits with the child's exit code, 124 on timeout,
  130 on interrupt, 126 if the file is not executable and 127 if the
  process could not be started. A swarm exits 0 when every run exited 0,
  130 on interrupt and 1 otherwise. Usage errors exit 2.

Examples:
  # Capture one run
  runproc -timeout 30s /usr/bin/make test

  # 200 runs, 20 at a time, 10 starts per second
  runproc -runs 200 -parallel 20 -ramp-rate 10 ./flaky-test.sh

`)
	}

	// Process
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "Working directory for the process")
	fs.Var(env, "env", "Set an environment variable KEY=VALUE (can repeat)")
	fs.StringVar(&cfg.User, "user", cfg.User, "Run the process as this user")
	fs.StringVar(&cfg.JobFile, "job", cfg.JobFile, "YAML job file describing the process")

	// Cancellation
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Cancel each run after this long (0 = no timeout)")
	fs.DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "How long to wait for a killed process to exit")

	// Swarm
	fs.IntVar(&cfg.Runs, "runs", cfg.Runs, "Number of runs")
	fs.IntVar(&cfg.Parallel, "parallel", cfg.Parallel, "Maximum concurrent runs")
	fs.IntVar(&cfg.RampRate, "ramp-rate", cfg.RampRate, "Runs to start per second (0 = unlimited)")
	fs.DurationVar(&cfg.RampJitter, "ramp-jitter", cfg.RampJitter, "Random jitter per run start")

	// Safety & Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the command line and exit")
	fs.BoolVar(&cfg.Check, "check", cfg.Check, "Validate config, run preflight and a single verbose run")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	// Observability
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address (empty = disabled)")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	fs.BoolVar(&cfg.Quiet, "q", cfg.Quiet, "Do not echo captured output")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Live terminal dashboard for swarms")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if len(env) > 0 {
		cfg.Env = env
	}

	// Positional arguments: executable and its arguments
	if rest := fs.Args(); len(rest) >= 1 {
		cfg.Path = rest[0]
		cfg.Args = rest[1:]
	}

	if cfg.JobFile != "" {
		job, err := LoadJobFile(cfg.JobFile)
		if err != nil {
			return nil, err
		}
		set := make(map[string]bool)
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		job.applyTo(cfg, set)
	}

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	switch f.DefValue {
	case "true", "false":
		return ""
	}

	if strings.HasSuffix(f.DefValue, "s") || strings.HasSuffix(f.DefValue, "m") || strings.HasSuffix(f.DefValue, "h") {
		return "duration"
	}

	if _, err := fmt.Sscanf(f.DefValue, "%d", new(int)); err == nil {
		return "int"
	}

	return "string"
}
