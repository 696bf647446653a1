// Package expect drives the installed steward binary through a real
// pseudo-terminal. These tests cover what unit tests cannot: flag
// parsing through the actual entry point, terminal detection, and the
// interactive console rendering to a live tty. They skip when no
// steward binary is on PATH.
package expect

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"testing"
	"time"

	expect "github.com/Netflix/go-expect"
	"github.com/creack/pty"
)

// Key sequences for driving the console.
const (
	KeyUp     = "\x1b[A"
	KeyDown   = "\x1b[B"
	KeyEnter  = "\r"
	KeyTab    = "\t"
	KeyEscape = "\x1b"
	KeyCtrlC  = "\x03"
)

// DefaultTimeout is how long Expect waits for output before failing.
const DefaultTimeout = 10 * time.Second

// CLISession is a steward process attached to a pseudo-terminal.
type CLISession struct {
	console *expect.Console
	cmd     *exec.Cmd
	timeout time.Duration
	env     []string
	output  io.Writer
}

// SessionOption configures a CLISession.
type SessionOption func(*CLISession)

// WithTimeout sets the expect timeout for the session.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *CLISession) {
		s.timeout = d
	}
}

// WithEnv appends environment entries for the spawned process. Later
// entries win over the inherited environment.
func WithEnv(entries ...string) SessionOption {
	return func(s *CLISession) {
		s.env = append(s.env, entries...)
	}
}

// WithOutput mirrors everything the process writes to w, for debugging
// failing expectations.
func WithOutput(w io.Writer) SessionOption {
	return func(s *CLISession) {
		s.output = w
	}
}

// NewSession starts steward with the given arguments on a fresh
// pseudo-terminal sized 100x32.
func NewSession(args []string, opts ...SessionOption) (*CLISession, error) {
	binary, err := exec.LookPath("steward")
	if err != nil {
		return nil, fmt.Errorf("steward binary not found: %w", err)
	}

	s := &CLISession{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}

	consoleOpts := []expect.ConsoleOpt{expect.WithDefaultTimeout(s.timeout)}
	if s.output != nil {
		consoleOpts = append(consoleOpts, expect.WithStdout(s.output))
	}
	console, err := expect.NewConsole(consoleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create console: %w", err)
	}
	if err := pty.Setsize(console.Tty(), &pty.Winsize{Rows: 32, Cols: 100}); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to size pty: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Stdin = console.Tty()
	cmd.Stdout = console.Tty()
	cmd.Stderr = console.Tty()
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	cmd.Env = append(cmd.Env, s.env...)

	if err := cmd.Start(); err != nil {
		console.Close()
		return nil, fmt.Errorf("failed to start steward: %w", err)
	}

	s.console = console
	s.cmd = cmd
	return s, nil
}

// Send writes raw bytes to the terminal.
func (s *CLISession) Send(text string) error {
	_, err := s.console.Send(text)
	return err
}

// SendLine writes text followed by a newline.
func (s *CLISession) SendLine(text string) error {
	_, err := s.console.SendLine(text)
	return err
}

// Expect waits for the exact string to appear in the output.
func (s *CLISession) Expect(text string) (string, error) {
	return s.console.ExpectString(text)
}

// ExpectRegex waits for output matching the pattern.
func (s *CLISession) ExpectRegex(pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return s.console.Expect(expect.Regexp(re))
}

// ExpectEOF waits for the process to close its terminal.
func (s *CLISession) ExpectEOF() (string, error) {
	return s.console.ExpectEOF()
}

// Close waits for the process to exit, killing it if it does not, and
// releases the terminal. It returns the process's exit error, if any.
func (s *CLISession) Close() error {
	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	var exitErr error
	select {
	case exitErr = <-done:
	case <-time.After(5 * time.Second):
		s.cmd.Process.Kill()
		<-done
		exitErr = errors.New("steward did not exit; killed")
	}
	s.console.Close()
	return exitErr
}

// SkipIfStewardMissing skips the test when no steward binary is
// installed. The expect suite runs against a built binary, not the
// package under test.
func SkipIfStewardMissing(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("steward"); err != nil {
		t.Skip("steward binary not found in PATH, skipping")
	}
}
