package main

import (
	"bytes"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("no entropy")
}

func TestGenerate(t *testing.T) {
	var out bytes.Buffer
	if code := generate(&out, rand.Reader); code != 0 {
		t.Fatalf("Expected exit code 0, got %d", code)
	}
	line := strings.TrimSpace(out.String())
	if !strings.HasPrefix(line, `"uid_key": "`) {
		t.Fatalf("Unexpected output %s", line)
	}
	key := strings.TrimSuffix(strings.TrimPrefix(line, `"uid_key": "`), `"`)

	out.Reset()
	if code := validate(&out, key); code != 0 {
		t.Errorf("Generated key must be valid: %s", out.String())
	}
}

func TestGenerateFailure(t *testing.T) {
	var out bytes.Buffer
	if code := generate(&out, failingReader{}); code != 1 {
		t.Errorf("Expected exit code 1, got %d", code)
	}
}

func TestValidateInvalid(t *testing.T) {
	for _, key := range []string{"not base64!", "c2hvcnQ=", ""} {
		var out bytes.Buffer
		if code := validate(&out, key); code != 1 {
			t.Errorf("Key '%s': expected exit code 1, got %d", key, code)
		}
		if !strings.HasPrefix(out.String(), "INVALID") {
			t.Errorf("Key '%s': unexpected output %s", key, out.String())
		}
	}
}

func TestValidateDefaultKey(t *testing.T) {
	var out bytes.Buffer
	if code := validate(&out, "la6YsO+bNX/+XIkOqc5Svw=="); code != 0 {
		t.Errorf("Expected exit code 0, got %d: %s", code, out.String())
	}
}
