package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// testConfigFile points the --config flag at a file under a temp dir and
// keeps EnsureDirectories away from the real home.
func testConfigFile(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))

	// Keep ambient overrides out of the loaded values
	t.Setenv("STEWARD_SERVER_URL", "")
	t.Setenv("STEWARD_SERVER_SOCKET", "")
	t.Setenv("STEWARD_LOG_LEVEL", "")
	t.Setenv("STEWARD_DEBUG", "")

	configFile := filepath.Join(tmp, "config.yaml")
	withRootFlags(t, rootFlags{config: configFile})
	return configFile
}

func TestConfigCmd_SetGetRoundTrip(t *testing.T) {
	configFile := testConfigFile(t)

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"server.url", "http://dir.example:17170"}); err != nil {
			t.Errorf("set failed: %v", err)
		}
	})
	if !strings.Contains(out, "server.url") || !strings.Contains(out, "http://dir.example:17170") {
		t.Errorf("set output should echo key and value, got %q", out)
	}
	if !strings.Contains(out, configFile) {
		t.Errorf("set output should name the saved file, got %q", out)
	}

	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("set should create the config file: %v", err)
	}

	out = captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"server.url"}); err != nil {
			t.Errorf("get failed: %v", err)
		}
	})
	if strings.TrimSpace(out) != "http://dir.example:17170" {
		t.Errorf("get = %q, want the stored value", out)
	}
}

func TestConfigCmd_List(t *testing.T) {
	configFile := testConfigFile(t)

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, nil); err != nil {
			t.Errorf("list failed: %v", err)
		}
	})

	for _, key := range []string{
		"server.url",
		"server.timeout_ms",
		"console.page_size",
		"console.confirm_destructive",
		"audit.enabled",
		"audit.retention_days",
		"log.level",
	} {
		if !strings.Contains(out, key) {
			t.Errorf("list output should contain %q", key)
		}
	}
	if !strings.Contains(out, "Config file: "+configFile) {
		t.Errorf("list output should name the config file, got %q", out)
	}
	if !strings.Contains(out, "(not set)") {
		t.Error("list output should mark empty values as (not set)")
	}
}

func TestConfigCmd_GetUnknownKey(t *testing.T) {
	testConfigFile(t)

	if err := runConfig(configCmd, []string{"server.shoesize"}); err == nil {
		t.Error("get of an unknown key should fail")
	}
	if err := runConfig(configCmd, []string{"nosuchsection.url"}); err == nil {
		t.Error("get of an unknown section should fail")
	}
}

func TestConfigCmd_SetRejectsBadValues(t *testing.T) {
	configFile := testConfigFile(t)

	if err := runConfig(configCmd, []string{"server.url", "ftp://nope"}); err == nil {
		t.Error("set should reject a non-http server url")
	}
	if err := runConfig(configCmd, []string{"server.timeout_ms", "soon"}); err == nil {
		t.Error("set should reject a non-numeric timeout")
	}
	if err := runConfig(configCmd, []string{"audit.retention_days", "-3"}); err == nil {
		t.Error("set should reject negative retention")
	}

	// Nothing should have been written
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		t.Error("rejected set should not create the config file")
	}
}

func TestConfigCmd_SetClampsPageSize(t *testing.T) {
	testConfigFile(t)

	captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"console.page_size", "3"}); err != nil {
			t.Errorf("set failed: %v", err)
		}
	})

	out := captureStdout(t, func() {
		if err := runConfig(configCmd, []string{"console.page_size"}); err != nil {
			t.Errorf("get failed: %v", err)
		}
	})
	if strings.TrimSpace(out) != "10" {
		t.Errorf("page_size = %q, want clamped minimum 10", out)
	}
}

func TestConfigPathCmd(t *testing.T) {
	configFile := testConfigFile(t)

	out := captureStdout(t, func() {
		runConfigPath(configPathCmd, nil)
	})

	if !strings.Contains(out, configFile) {
		t.Errorf("path output should contain the config location, got %q", out)
	}
	if !strings.Contains(out, "audit.db") {
		t.Errorf("path output should contain the audit database location, got %q", out)
	}
	if !strings.Contains(out, "steward.log") {
		t.Errorf("path output should contain the log location, got %q", out)
	}
}
