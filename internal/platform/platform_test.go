package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// writeTool drops a fake executable into dir so exec.LookPath resolves it.
func writeTool(t *testing.T, dir, name string, exitCode int) {
	t.Helper()

	script := fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode)
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write fake %s: %v", name, err)
	}
}

// setEUID pins the effective UID the preflight observes.
func setEUID(t *testing.T, uid int) {
	t.Helper()

	orig := geteuid
	geteuid = func() int { return uid }
	t.Cleanup(func() { geteuid = orig })
}

func hasWarning(d *Diagnostics, fragment string) bool {
	for _, w := range d.Warnings {
		if strings.Contains(w, fragment) {
			return true
		}
	}
	return false
}

func toolByName(t *testing.T, d *Diagnostics, name string) ToolStatus {
	t.Helper()

	for _, tool := range d.Tools {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("Tool %s missing from diagnostics", name)
	return ToolStatus{}
}

func TestDiagnoseAllToolsPresent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell executables require a POSIX shell")
	}

	dir := t.TempDir()
	for _, name := range requiredTools {
		writeTool(t, dir, name, 0)
	}
	t.Setenv("PATH", dir)
	setEUID(t, 0)

	d := Diagnose(context.Background())

	if !d.Healthy() {
		t.Errorf("Expected healthy diagnostics, got warnings: %v", d.Warnings)
	}
	if !d.Root {
		t.Error("Expected root to be detected for uid 0")
	}
	if d.EffectiveUID != 0 {
		t.Errorf("Expected effective uid 0, got %d", d.EffectiveUID)
	}

	for _, name := range requiredTools {
		tool := toolByName(t, d, name)
		if !tool.Available {
			t.Errorf("Expected %s to be available", name)
		}
		if !tool.Required {
			t.Errorf("Expected %s to be required", name)
		}
		if tool.Path != filepath.Join(dir, name) {
			t.Errorf("Expected %s resolved in fake PATH, got %s", name, tool.Path)
		}
	}

	// Root hosts never need sudo.
	if sudo := toolByName(t, d, "sudo"); sudo.Required {
		t.Error("Expected sudo to be optional when running as root")
	}

	if runtime.GOOS == "linux" && d.Kernel == "" {
		t.Error("Expected kernel release to be detected on linux")
	}
}

func TestDiagnoseMissingTools(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	setEUID(t, 0)

	d := Diagnose(context.Background())

	if d.Healthy() {
		t.Error("Expected unhealthy diagnostics with empty PATH")
	}
	for _, name := range requiredTools {
		if !hasWarning(d, name+" not found") {
			t.Errorf("Expected warning about missing %s, got %v", name, d.Warnings)
		}
	}
}

func TestDiagnoseNonRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell executables require a POSIX shell")
	}

	dir := t.TempDir()
	for _, name := range requiredTools {
		writeTool(t, dir, name, 0)
	}
	writeTool(t, dir, "sudo", 0)
	t.Setenv("PATH", dir)
	setEUID(t, 1000)

	d := Diagnose(context.Background())

	if !d.Healthy() {
		t.Errorf("Expected healthy diagnostics with passwordless sudo, got warnings: %v", d.Warnings)
	}
	if d.Root {
		t.Error("Expected non-root detection for uid 1000")
	}

	sudo := toolByName(t, d, "sudo")
	if !sudo.Required {
		t.Error("Expected sudo to be required for non-root")
	}
	if !sudo.Available {
		t.Error("Expected sudo to be available")
	}

	if !hasWarning(d, "not running as root") {
		t.Errorf("Expected non-root warning, got %v", d.Warnings)
	}
	if hasWarning(d, "non-interactive use failed") {
		t.Errorf("Expected no sudo probe warning for passwordless sudo, got %v", d.Warnings)
	}
}

func TestDiagnoseNonRootSudoPromptRequired(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell executables require a POSIX shell")
	}

	dir := t.TempDir()
	for _, name := range requiredTools {
		writeTool(t, dir, name, 0)
	}
	// sudo -n fails when a password would be required.
	writeTool(t, dir, "sudo", 1)
	t.Setenv("PATH", dir)
	setEUID(t, 1000)

	d := Diagnose(context.Background())

	if !hasWarning(d, "non-interactive use failed") {
		t.Errorf("Expected sudo probe warning, got %v", d.Warnings)
	}
	// A sudo that may still be usable for specific commands is a warning,
	// not a failed preflight.
	if !d.Healthy() {
		t.Error("Expected sudo probe failure to stay non-fatal")
	}
}

func TestDiagnoseNonRootWithoutSudo(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell executables require a POSIX shell")
	}

	dir := t.TempDir()
	for _, name := range requiredTools {
		writeTool(t, dir, name, 0)
	}
	t.Setenv("PATH", dir)
	setEUID(t, 1000)

	d := Diagnose(context.Background())

	if d.Healthy() {
		t.Error("Expected unhealthy diagnostics for non-root host without sudo")
	}
	if !hasWarning(d, "sudo not found") {
		t.Errorf("Expected missing sudo warning, got %v", d.Warnings)
	}
}

func TestLookupTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake shell executables require a POSIX shell")
	}

	dir := t.TempDir()
	writeTool(t, dir, "docker", 0)
	t.Setenv("PATH", dir)

	found := lookupTool("docker", true)
	if !found.Available || found.Path == "" {
		t.Errorf("Expected docker resolved, got %+v", found)
	}

	missing := lookupTool("nsenter", true)
	if missing.Available || missing.Path != "" {
		t.Errorf("Expected nsenter unresolved, got %+v", missing)
	}
}
