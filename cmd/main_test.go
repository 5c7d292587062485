package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackupAndRestoreCommands(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DB_FILE", filepath.Join(dataDir, "db.json"))
	t.Setenv("LOG_LEVEL", "ERROR")
	outDir := t.TempDir()

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"backup", "-o", outDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("backup: %v", err)
	}
	file := strings.TrimSpace(out.String())
	if !strings.HasPrefix(filepath.Base(file), "db-backup-") {
		t.Fatalf("backup file %q", file)
	}
	if _, err := os.Stat(file); err != nil {
		t.Fatalf("stat: %v", err)
	}

	out.Reset()
	cmd = rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"restore", "--mode", "merge", file})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !strings.Contains(out.String(), "mode=merge products=0") {
		t.Fatalf("restore output %q", out.String())
	}
}

func TestRestoreCommandRejectsUnknownMode(t *testing.T) {
	t.Setenv("DB_FILE", filepath.Join(t.TempDir(), "db.json"))
	t.Setenv("LOG_LEVEL", "ERROR")
	file := filepath.Join(t.TempDir(), "b.json")
	if err := os.WriteFile(file, []byte(`{"products":[],"orders":[],"pushSubscriptions":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"restore", "--mode", "upsert", file})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
