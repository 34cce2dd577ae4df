package target

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	sol := writeFile(t, dir, "Vault.sol", "contract Vault {}")

	paths, err := Validate([]string{sol})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(paths) != 1 || !filepath.IsAbs(paths[0]) {
		t.Errorf("expected one absolute path, got %v", paths)
	}
}

func TestValidateEmpty(t *testing.T) {
	if _, err := Validate(nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestValidateMissing(t *testing.T) {
	if _, err := Validate([]string{filepath.Join(t.TempDir(), "missing.sol")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateDirectoryRejected(t *testing.T) {
	if _, err := Validate([]string{t.TempDir()}); err == nil {
		t.Error("expected error for directory target")
	}
}

func TestValidateUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	txt := writeFile(t, dir, "notes.txt", "hello")
	if _, err := Validate([]string{txt}); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func TestValidateFailsFastOnFirstBadTarget(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "Good.sol", "contract G {}")
	bad := filepath.Join(dir, "missing.sol")

	if _, err := Validate([]string{good, bad}); err == nil {
		t.Error("expected whole batch to fail")
	}
}

func TestCollectRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "A.sol", "contract A {}")
	writeFile(t, dir, filepath.Join("nested", "B.sol"), "contract B {}")
	writeFile(t, dir, "README.md", "docs")

	paths, err := Collect(dir)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("expected 2 contracts, got %v", paths)
	}
}

func TestCollectSingleFile(t *testing.T) {
	dir := t.TempDir()
	sol := writeFile(t, dir, "A.sol", "contract A {}")

	paths, err := Collect(sol)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("expected single file batch, got %v", paths)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported("x/Vault.sol") || !IsSupported("UPPER.SOL") {
		t.Error("sol files should be supported")
	}
	if IsSupported("main.go") || IsSupported("noext") {
		t.Error("non-sol files should be rejected")
	}
}
