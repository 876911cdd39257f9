// Package ripgreptest provides a scripted stand-in for the ripgrep binary.
package ripgreptest

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// Behavior describes what the fake engine does on every run.
type Behavior struct {
	Stdout   string
	Stderr   string
	ExitCode int
	// Delay keeps the process alive for this long before writing output.
	Delay time.Duration
}

// Engine is a shell script that records its arguments, working directory,
// number of runs and overlapping runs.
type Engine struct {
	Binary string
	dir    string
}

// New writes a fake engine into a temp dir. Skips the test on Windows.
func New(tb testing.TB, behavior Behavior) *Engine {
	tb.Helper()
	if runtime.GOOS == "windows" {
		tb.Skip("fake engine requires a POSIX shell")
	}

	dir := tb.TempDir()
	write := func(name, content string, perm os.FileMode) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), perm); err != nil {
			tb.Fatalf("writing fake engine %s: %v", name, err)
		}
	}
	write("stdout", behavior.Stdout, 0644)
	write("stderr", behavior.Stderr, 0644)

	var sleep string
	if behavior.Delay > 0 {
		sleep = "sleep " + strconv.FormatFloat(behavior.Delay.Seconds(), 'f', 3, 64)
	}

	script := fmt.Sprintf(`#!/bin/sh
d=%[1]q
echo run >> "$d/calls"
mkdir "$d/running" 2>/dev/null || echo overlap >> "$d/overlaps"
pwd > "$d/cwd"
: > "$d/args"
for a in "$@"; do printf '%%s\n' "$a" >> "$d/args"; done
%[2]s
cat "$d/stdout"
cat "$d/stderr" >&2
rmdir "$d/running" 2>/dev/null
exit %[3]d
`, dir, sleep, behavior.ExitCode)

	bin := filepath.Join(dir, "rg")
	write("rg", script, 0755)

	return &Engine{Binary: bin, dir: dir}
}

// Args returns the arguments of the most recent run.
func (e *Engine) Args(tb testing.TB) []string {
	tb.Helper()
	content := e.read(tb, "args")
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// Dir returns the working directory of the most recent run.
func (e *Engine) Dir(tb testing.TB) string {
	tb.Helper()
	return strings.TrimSpace(e.read(tb, "cwd"))
}

// Calls returns how many times the engine ran.
func (e *Engine) Calls(tb testing.TB) int {
	tb.Helper()
	return strings.Count(e.read(tb, "calls"), "run")
}

// Overlaps returns how many runs started while another was still running.
func (e *Engine) Overlaps(tb testing.TB) int {
	tb.Helper()
	return strings.Count(e.read(tb, "overlaps"), "overlap")
}

func (e *Engine) read(tb testing.TB, name string) string {
	tb.Helper()
	b, err := os.ReadFile(filepath.Join(e.dir, name))
	if os.IsNotExist(err) {
		return ""
	}
	if err != nil {
		tb.Fatalf("reading fake engine %s: %v", name, err)
	}
	return string(b)
}
