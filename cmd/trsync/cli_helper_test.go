package main

import (
	"bytes"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

// runCLI executes this package's cobra CLI in a helper subprocess with a
// scratch HOME, so neither a real config file nor os.Exit() leak into tests.
func runCLI(t *testing.T, env []string, args ...string) (stdoutStderr string, exitCode int) {
	t.Helper()

	cmd := exec.Command(os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
	cmd.Dir = t.TempDir()
	cmd.Env = append(os.Environ(),
		"GO_WANT_HELPER_PROCESS=1",
		"HOME="+t.TempDir(),
		"NO_COLOR=1",
		"TERM=dumb",
	)
	cmd.Env = append(cmd.Env, env...)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()

	if err == nil {
		return stripANSI(buf.String()), 0
	}

	if ee, ok := err.(*exec.ExitError); ok {
		return stripANSI(buf.String()), ee.ExitCode()
	}

	t.Fatalf("unexpected error running CLI: %v", err)
	return "", 0
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	// Args are: <testbin> -test.run=TestHelperProcess -- <cli args...>
	idx := -1
	for i, a := range os.Args {
		if a == "--" {
			idx = i
			break
		}
	}
	if idx == -1 {
		os.Exit(2)
	}

	cliArgs := os.Args[idx+1:]
	// never start a live sync from a test
	if len(cliArgs) == 0 {
		os.Exit(2)
	}

	rootCmd.SetArgs(cliArgs)
	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	if err := rootCmd.Execute(); err != nil {
		msg := strings.TrimSpace(stripANSI(err.Error()))
		if msg != "" {
			_, _ = os.Stderr.WriteString(msg + "\n")
		}
		os.Exit(1)
	}
	os.Exit(0)
}
