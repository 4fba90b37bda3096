package cli

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func repoRoot(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd failed: %v", err)
	}
	// internal/cli -> repo root
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func goExe() string {
	if runtime.GOOS == "windows" {
		return "go.exe"
	}
	return "go"
}

func buildOrganvmBinary(t *testing.T) string {
	t.Helper()

	outPath := filepath.Join(t.TempDir(), "organvm-test")
	if runtime.GOOS == "windows" {
		outPath += ".exe"
	}

	cmd := exec.Command(goExe(), "build", "-o", outPath, "./cmd/organvm")
	cmd.Dir = repoRoot(t)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to build organvm binary: %v; output=%s", err, string(out))
	}

	return outPath
}

// binaryEnv keeps the child away from the developer's workspace and config.
func binaryEnv(t *testing.T) []string {
	out := make([]string, 0, len(os.Environ())+1)
	for _, e := range os.Environ() {
		if strings.HasPrefix(e, "ORGANVM_") || strings.HasPrefix(e, "HOME=") {
			continue
		}
		out = append(out, e)
	}
	return append(out, "HOME="+t.TempDir())
}

func exitCode(t *testing.T, err error, out []byte) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T: %v; output=%s", err, err, string(out))
	}
	return exitErr.ProcessState.ExitCode()
}

func TestBinary_ExitCodes(t *testing.T) {
	binary := buildOrganvmBinary(t)
	clean := registryFile(t, cleanRegistry)
	violating := registryFile(t, violatingRegistry)

	tests := []struct {
		name string
		args []string
		want int
		text string
	}{
		{
			name: "clean registry",
			args: []string{"governance", "check-deps", "--registry", clean},
			want: 0,
			text: "Result: PASS",
		},
		{
			name: "violations",
			args: []string{"governance", "check-deps", "--registry", violating},
			want: 1,
			text: "Result: FAIL",
		},
		{
			name: "missing registry",
			args: []string{"governance", "check-deps", "--registry", filepath.Join(t.TempDir(), "registry-v2.json")},
			want: 3,
			text: "Error:",
		},
		{
			name: "out format cannot be inferred",
			args: []string{"governance", "check-deps", "--registry", clean, "--out", "results.unknown"},
			want: 3,
			text: "cannot infer output format",
		},
		{
			name: "unknown flag",
			args: []string{"registry", "list", "--bogus"},
			want: 3,
			text: "unknown flag: --bogus",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := exec.Command(binary, tt.args...)
			cmd.Env = binaryEnv(t)
			out, err := cmd.CombinedOutput()
			if code := exitCode(t, err, out); code != tt.want {
				t.Fatalf("expected exit code %d, got %d; output=%s", tt.want, code, string(out))
			}
			if !strings.Contains(string(out), tt.text) {
				t.Fatalf("expected output to contain %q; output=%s", tt.text, string(out))
			}
		})
	}
}

func TestBinary_Help_DocumentsOutputAndExitCodes(t *testing.T) {
	binary := buildOrganvmBinary(t)
	cmd := exec.Command(binary, "--help")
	cmd.Env = binaryEnv(t)

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("expected zero exit; err=%v; output=%s", err, string(out))
	}

	s := string(out)
	required := []string{
		"Output:",
		"Exit codes:",
		"run.started",
		"run.finished",
	}
	for _, r := range required {
		if !strings.Contains(s, r) {
			t.Fatalf("expected --help to contain %q; output=%s", r, s)
		}
	}
}
