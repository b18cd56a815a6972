// Package fixture is a deterministic child process for exercising runproc.
//
// Test binaries re-execute themselves with EnvVar set and hand control to
// Main before any tests run:
//
//	func TestMain(m *testing.M) {
//		if fixture.Active() {
//			os.Exit(fixture.Main(os.Args[1:]))
//		}
//		os.Exit(m.Run())
//	}
package fixture

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvVar switches a re-executed test binary into fixture mode.
const EnvVar = "RUNPROC_FIXTURE"

// Active reports whether the current process was started as a fixture.
func Active() bool {
	return os.Getenv(EnvVar) == "1"
}

// Args is the fixture's behavior.
type Args struct {
	ExitCode    int
	Sleep       time.Duration
	StdoutLines int
	StderrLines int
}

// Strings encodes a for the command line, in the order Main parses it.
func (a Args) Strings() []string {
	return []string{
		strconv.Itoa(a.ExitCode),
		strconv.FormatInt(a.Sleep.Milliseconds(), 10),
		strconv.Itoa(a.StdoutLines),
		strconv.Itoa(a.StderrLines),
	}
}

// Line returns the text of the n-th line (1-based) on either stream.
func Line(n int) string {
	return "line #" + strconv.Itoa(n)
}

// Parse decodes "exitCode sleepMs stdoutLines stderrLines".
func Parse(argv []string) (Args, error) {
	if len(argv) != 4 {
		return Args{}, fmt.Errorf("want 4 arguments, got %d", len(argv))
	}
	var n [4]int
	for i, s := range argv {
		v, err := strconv.Atoi(s)
		if err != nil {
			return Args{}, fmt.Errorf("argument %d: %w", i+1, err)
		}
		n[i] = v
	}
	return Args{
		ExitCode:    n[0],
		Sleep:       time.Duration(n[1]) * time.Millisecond,
		StdoutLines: n[2],
		StderrLines: n[3],
	}, nil
}

// Main writes the requested lines, sleeps, and returns the exit code.
// Output is flushed before returning.
func Main(argv []string) int {
	a, err := Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fixture:", err)
		return 2
	}

	stdout := bufio.NewWriter(os.Stdout)
	for i := 1; i <= a.StdoutLines; i++ {
		stdout.WriteString(Line(i))
		stdout.WriteByte('\n')
	}
	stdout.Flush()

	stderr := bufio.NewWriter(os.Stderr)
	for i := 1; i <= a.StderrLines; i++ {
		stderr.WriteString(Line(i))
		stderr.WriteByte('\n')
	}
	stderr.Flush()

	if a.Sleep > 0 {
		time.Sleep(a.Sleep)
	}

	return a.ExitCode
}

// Env returns the environment override that activates fixture mode.
func Env() map[string]string {
	return map[string]string{EnvVar: "1"}
}
