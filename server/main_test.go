package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

const testConfig = `// Test config.
{
	"listen": "-",
	"log": {"level": "debug"},
	"component": {
		"server": "localhost:5347",
		"jid": "groups.example.com",
		"password": "secret"
	},
	"uid_key": "la6YsO+bNX/+XIkOqc5Svw==",
	"init_db": true,
	"store_config": {
		"use_adapter": "memory"
	},
	"groups": [
		{"node": "test", "name": "Test group"}
	]
}
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "groups.conf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	config, err := loadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	if config.Listen != "-" || config.Log.Level != "debug" || config.Component.Jid != "groups.example.com" {
		t.Errorf("Config not parsed: %+v", config)
	}
	if len(config.UidKey) != 16 {
		t.Errorf("uid_key must decode to 16 bytes, got %d", len(config.UidKey))
	}
	if len(config.Groups) != 1 || config.Groups[0].Node != "test" {
		t.Errorf("Groups not parsed: %+v", config.Groups)
	}
}

func TestLoadConfigSyntaxError(t *testing.T) {
	// Comments are allowed and must not shift the reported position.
	_, err := loadConfig(writeConfig(t, "{\n\t// groups\n\t\"listen\": \":6060\",\n\t\"groups\": [}\n}"))
	if err == nil {
		t.Fatal("Expected syntax error")
	}
	if !strings.Contains(err.Error(), "syntax error in config file at 4:") {
		t.Errorf("Error must report the position, got: %v", err)
	}
}

func TestOpenStore(t *testing.T) {
	config, err := loadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatal(err)
	}
	st, err := openStore(config, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	group, err := st.GetGroup("test")
	if err != nil {
		t.Fatal(err)
	}
	if group == nil || group.Name != "Test group" {
		t.Errorf("Configured group not created: %+v", group)
	}
}
