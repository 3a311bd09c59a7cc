package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunInitFreshDirectory(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "palaver.yaml"))
	if err != nil {
		t.Fatalf("palaver.yaml not created: %v", err)
	}
	if !strings.Contains(string(data), "telegram:") {
		t.Error("starter config missing telegram section")
	}
	if !strings.Contains(buf.String(), "palaver.yaml") {
		t.Errorf("output does not mention the config file:\n%s", buf.String())
	}
}

func TestRunInitNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "palaver.yaml")
	if err := os.WriteFile(cfgPath, []byte("my: customizations\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "my: customizations\n" {
		t.Errorf("existing config was overwritten:\n%s", data)
	}
}

func TestRunInitCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "workspace")
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "palaver.yaml")); err != nil {
		t.Errorf("config not created in new directory: %v", err)
	}
}
