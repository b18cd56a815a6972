package process

import (
	"errors"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// Spec describes how to launch a process.
// A Spec is copied by Start; later changes by the caller have no effect on a run.
type Spec struct {
	// Path is the executable to run. Bare names are resolved via PATH.
	Path string

	// Args are the command-line arguments, excluding the program name.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds environment overrides merged over the parent environment.
	// A nil map inherits the parent environment unchanged.
	Env map[string]string

	// Credential runs the process under another identity, where supported.
	Credential *Credential
}

// Credential identifies an alternate user to launch the process as.
//
// On Unix only Username is used; it is resolved to a uid/gid pair.
// Password is ignored and a non-empty Domain is rejected at launch.
type Credential struct {
	Username string
	Password string
	Domain   string
}

// errEmptyPath is wrapped in a LaunchError when Spec.Path is empty.
var errEmptyPath = errors.New("executable path is empty")

// clone returns a deep copy so the run never observes caller mutations.
func (s Spec) clone() Spec {
	c := Spec{
		Path: s.Path,
		Dir:  s.Dir,
	}
	if s.Args != nil {
		c.Args = append([]string(nil), s.Args...)
	}
	if s.Env != nil {
		c.Env = make(map[string]string, len(s.Env))
		for k, v := range s.Env {
			c.Env[k] = v
		}
	}
	if s.Credential != nil {
		cred := *s.Credential
		c.Credential = &cred
	}
	return c
}

// String returns the command line for logging. It is not shell-quoted.
func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Path
	}
	return s.Path + " " + strings.Join(s.Args, " ")
}

// command builds an unstarted exec.Cmd for the spec.
// Stdio wiring is left to the launcher.
func (s Spec) command() (*exec.Cmd, error) {
	if s.Path == "" {
		return nil, errEmptyPath
	}

	cmd := exec.Command(s.Path, s.Args...)
	if cmd.Err != nil {
		// exec.Command records LookPath failures here; Start would return it anyway.
		return nil, cmd.Err
	}
	cmd.Dir = s.Dir

	if s.Env != nil {
		cmd.Env = mergeEnv(os.Environ(), s.Env)
	}

	if s.Credential != nil {
		if err := applyCredential(cmd, s.Credential); err != nil {
			return nil, err
		}
	}

	return cmd, nil
}

// mergeEnv overlays overrides onto base (KEY=VALUE form).
// Keys from base keep their order; new keys are appended sorted.
func mergeEnv(base []string, overrides map[string]string) []string {
	merged := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))

	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if !ok {
			merged = append(merged, kv)
			continue
		}
		if v, override := overrides[key]; override {
			if !seen[key] {
				merged = append(merged, key+"="+v)
				seen[key] = true
			}
			continue
		}
		merged = append(merged, kv)
	}

	extra := make([]string, 0, len(overrides))
	for k := range overrides {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		merged = append(merged, k+"="+overrides[k])
	}

	return merged
}
