package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"
)

type rootFlags struct {
	config  string
	server  string
	noColor bool
}

func withRootFlags(t *testing.T, f rootFlags) {
	t.Helper()
	old := rootFlags{
		config:  flagConfig,
		server:  flagServer,
		noColor: flagNoColor,
	}
	flagConfig = f.config
	flagServer = f.server
	flagNoColor = f.noColor

	t.Cleanup(func() {
		flagConfig = old.config
		flagServer = old.server
		flagNoColor = old.noColor
	})
}

func withUsersGlobals(t *testing.T, filter string, json bool) {
	t.Helper()
	oldFilter, oldJSON := usersFilter, usersJSON
	usersFilter = filter
	usersJSON = json
	t.Cleanup(func() {
		usersFilter = oldFilter
		usersJSON = oldJSON
	})
}

func withAuditGlobals(t *testing.T, limit, days int) {
	t.Helper()
	oldLimit, oldDays := auditLimit, pruneDays
	auditLimit = limit
	pruneDays = days
	t.Cleanup(func() {
		auditLimit = oldLimit
		pruneDays = oldDays
	})
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() failed: %v", err)
	}
	os.Stdout = w

	outC := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		outC <- buf.String()
	}()

	fn()
	_ = w.Close()
	os.Stdout = old
	out := <-outC
	_ = r.Close()
	return out
}
