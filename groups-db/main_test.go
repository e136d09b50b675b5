package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	conf := fmt.Sprintf(`{
	// Admin tool test config.
	"log": {"level": "warn"},
	"store_config": {
		"use_adapter": "sqlite",
		"adapters": {"sqlite": {"database": %q}}
	},
	"groups": [
		{"node": "golang", "name": "Go"},
		{"node": "test", "name": "Test group"}
	]
}`, filepath.Join(dir, "groups.db"))
	path := filepath.Join(dir, "groups.conf")
	if err := os.WriteFile(path, []byte(conf), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func runTool(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(args, &stdout, &stderr)
	return stdout.String(), err
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--config", "x.conf", "--upsert", "go", "--name", "Go", "--list"})
	if err != nil {
		t.Fatal(err)
	}
	if opts.conffile != "x.conf" || opts.upsert != "go" || opts.name != "Go" || !opts.list {
		t.Errorf("Flags not parsed: %+v", opts)
	}
	if _, err = parseFlags([]string{"--upsert", "go", "--remove", "go"}); err == nil {
		t.Error("Conflicting flags must be rejected")
	}
}

func TestNoInit(t *testing.T) {
	conf := writeConfig(t)
	if _, err := runTool(t, "--config", conf, "--no_init"); err == nil {
		t.Error("Missing database must be reported with --no_init")
	}
}

func TestInitSyncAndList(t *testing.T) {
	conf := writeConfig(t)

	out, err := runTool(t, "--config", conf, "--list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "golang\tGo\t0 subscriber(s)") || !strings.Contains(out, "test\tTest group\t0 subscriber(s)") {
		t.Errorf("Unexpected listing:\n%s", out)
	}

	// Schema exists now, --no_init is fine.
	if _, err = runTool(t, "--config", conf, "--no_init", "--upsert", "misc", "--name", "Miscellaneous"); err != nil {
		t.Fatal(err)
	}
	if _, err = runTool(t, "--config", conf, "--remove", "golang"); err != nil {
		t.Fatal(err)
	}

	out, err = runTool(t, "--config", conf, "--no_sync", "--list")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "golang") {
		t.Errorf("Removed group is listed:\n%s", out)
	}
	if !strings.Contains(out, "misc\tMiscellaneous") {
		t.Errorf("Upserted group is not listed:\n%s", out)
	}

	if _, err = runTool(t, "--config", conf, "--no_sync", "--remove", "golang"); err == nil {
		t.Error("Removing a missing group must fail")
	}
}

func TestReset(t *testing.T) {
	conf := writeConfig(t)
	if _, err := runTool(t, "--config", conf, "--upsert", "misc"); err != nil {
		t.Fatal(err)
	}

	out, err := runTool(t, "--config", conf, "--reset", "--no_sync", "--list")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Errorf("Database must be empty after reset, got:\n%s", out)
	}
}
