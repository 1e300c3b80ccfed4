package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func sqliteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "kbinfer.yaml")
	content := "store:\n  driver: sqlite\n  path: " + filepath.Join(dir, "kb.db") + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDemoCommand(t *testing.T) {
	out, err := execute(t, "demo")
	if err != nil {
		t.Fatalf("demo failed: %v", err)
	}
	if !strings.Contains(out, "target achieved") {
		t.Errorf("Expected achieved target, got:\n%s", out)
	}
	if !strings.Contains(out, "+ rule_dog_is_mammal") {
		t.Errorf("Expected applied rule in trace, got:\n%s", out)
	}
}

// TestPersistentWorkflow runs demo, verdicts and clean against one sqlite file
func TestPersistentWorkflow(t *testing.T) {
	cfg := sqliteConfig(t)

	if _, err := execute(t, "--config", cfg, "demo"); err != nil {
		t.Fatalf("demo failed: %v", err)
	}
	// second run reuses the seeded store and finds the target right away
	out, err := execute(t, "--config", cfg, "demo")
	if err != nil {
		t.Fatalf("second demo failed: %v", err)
	}
	if !strings.Contains(out, "target achieved") || strings.Contains(out, "[tier") {
		t.Errorf("Expected immediate success without rules, got:\n%s", out)
	}

	out, err = execute(t, "--config", cfg, "verdicts", "--model", "demo_input")
	if err != nil {
		t.Fatalf("verdicts failed: %v", err)
	}
	if got := strings.Count(out, "satisfiable("); got != 3 {
		t.Errorf("Expected 3 verdict lines, got %d:\n%s", got, out)
	}

	out, err = execute(t, "--config", cfg, "clean")
	if err != nil {
		t.Fatalf("clean failed: %v", err)
	}
	if !strings.Contains(out, "removed 3 of 3") {
		t.Errorf("Unexpected clean output: %s", out)
	}
}

func TestApplyCommand(t *testing.T) {
	cfg := sqliteConfig(t)
	if _, err := execute(t, "--config", cfg, "demo"); err != nil {
		t.Fatalf("demo failed: %v", err)
	}

	out, err := execute(t, "--config", cfg, "apply", "--target", "demo_target", "--rules", "demo_rule_set", "--input", "demo_input")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !strings.Contains(out, "target achieved") {
		t.Errorf("Expected achieved target, got:\n%s", out)
	}

	if _, err := execute(t, "apply"); err == nil {
		t.Error("apply without --target should fail")
	}
	if _, err := execute(t, "--config", cfg, "apply", "--target", "missing_target"); err == nil {
		t.Error("apply with unknown target should fail")
	}
}

func TestBuildEngineBadConfig(t *testing.T) {
	if _, _, err := buildEngine(context.Background(), "/nonexistent/kbinfer.yaml"); err == nil {
		t.Error("Expected error for missing config file")
	}
}
