package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Job is the on-disk description of a process to run.
//
//	path: /usr/bin/make
//	args: [test]
//	dir: /src/project
//	env:
//	  GOFLAGS: -count=1
//	timeout: 10m
//	runs: 20
//	parallel: 4
type Job struct {
	Path     string            `yaml:"path"`
	Args     []string          `yaml:"args"`
	Dir      string            `yaml:"dir"`
	Env      map[string]string `yaml:"env"`
	User     string            `yaml:"user"`
	Timeout  time.Duration     `yaml:"timeout"`
	Grace    time.Duration     `yaml:"grace"`
	Runs     int               `yaml:"runs"`
	Parallel int               `yaml:"parallel"`
}

// LoadJobFile reads and decodes a YAML job file. Unknown keys are rejected.
func LoadJobFile(path string) (*Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("job file: %w", err)
	}
	defer f.Close()

	var job Job
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&job); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}
	return &job, nil
}

// applyTo copies job values into cfg for every setting not given on the
// command line. set holds the names of flags that were given.
func (j *Job) applyTo(cfg *Config, set map[string]bool) {
	// Positional arguments replace path and args together.
	if cfg.Path == "" {
		cfg.Path = j.Path
		cfg.Args = j.Args
	}
	if !set["dir"] && j.Dir != "" {
		cfg.Dir = j.Dir
	}
	if len(j.Env) > 0 {
		merged := make(map[string]string, len(j.Env)+len(cfg.Env))
		for k, v := range j.Env {
			merged[k] = v
		}
		for k, v := range cfg.Env {
			merged[k] = v
		}
		cfg.Env = merged
	}
	if !set["user"] && j.User != "" {
		cfg.User = j.User
	}
	if !set["timeout"] && j.Timeout != 0 {
		cfg.Timeout = j.Timeout
	}
	if !set["grace"] && j.Grace != 0 {
		cfg.GracePeriod = j.Grace
	}
	if !set["runs"] && j.Runs != 0 {
		cfg.Runs = j.Runs
	}
	if !set["parallel"] && j.Parallel != 0 {
		cfg.Parallel = j.Parallel
	}
}
