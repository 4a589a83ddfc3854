package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rifatshampod/typeless-forms-chrome-extension/internal/config"
)

func testConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	return &config.RuntimeConfig{
		Bind:        "127.0.0.1",
		Port:        "9871",
		StateDir:    t.TempDir(),
		StoreDriver: config.StoreJSON,
		Banner:      true,
		Highlight:   true,
		LogLevel:    "error",
	}
}

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, cfg *config.RuntimeConfig, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd(cfg)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), errOut.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := run(t, testConfig(t), "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if out != "typeless dev\n" {
		t.Errorf("version = %q", out)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "redis"
	if _, _, err := run(t, cfg, "", "pairs", "list"); err == nil || !strings.Contains(err.Error(), "unknown store") {
		t.Errorf("err = %v", err)
	}
}

func TestUnknownFlag(t *testing.T) {
	_, _, err := run(t, testConfig(t), "", "pairs", "list", "--bogus")
	if err == nil || !strings.Contains(err.Error(), "see typeless pairs list --help") {
		t.Errorf("err = %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	path := t.TempDir() + "/config.json"
	t.Setenv("TYPELESS_CONFIG", path)
	cfg := testConfig(t)
	cfg.Token = "supersecrettoken"

	out, _, err := run(t, cfg, "", "config", "init")
	if err != nil || !strings.Contains(out, path) {
		t.Fatalf("init: %q %v", out, err)
	}
	if _, _, err := run(t, cfg, "", "config", "init"); err == nil {
		t.Error("second init without --force should fail")
	}
	if _, _, err := run(t, cfg, "", "config", "init", "--force"); err != nil {
		t.Errorf("init --force: %v", err)
	}

	out, _, err = run(t, cfg, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "supersecrettoken") || !strings.Contains(out, "supe...oken") {
		t.Errorf("token not masked:\n%s", out)
	}

	out, _, _ = run(t, cfg, "", "config", "path")
	if strings.TrimSpace(out) != path {
		t.Errorf("path = %q", out)
	}
}
