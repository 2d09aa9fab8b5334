package detect_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/detect"
	"github.com/albertocavalcante/modlayer/cmd/modlayer/internal/kinds"
)

func TestKinds_Empty(t *testing.T) {
	tmpDir := t.TempDir()

	got, err := detect.Kinds(tmpDir)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Kinds() = %v, want empty", got)
	}
}

func TestKinds_Image(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, tmpDir, "ui/icons/sword.png")
	createFile(t, tmpDir, "ui/icons/shield.PNG")

	got, err := detect.Kinds(tmpDir)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if !slices.Equal(got, []string{kinds.Image}) {
		t.Errorf("Kinds() = %v, want [image]", got)
	}
}

func TestKinds_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, tmpDir, "ui/hud.png")
	createFile(t, tmpDir, "lang/en.txt")
	createFile(t, tmpDir, "README.md")

	got, err := detect.Kinds(tmpDir)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	want := []string{kinds.Image, kinds.Table}
	if !slices.Equal(got, want) {
		t.Errorf("Kinds() = %v, want %v", got, want)
	}
}

func TestKinds_IgnoresHiddenDirs(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, tmpDir, ".git/logo.png")
	createFile(t, tmpDir, ".modlayer/roots/x/derived/cache.txt")

	got, err := detect.Kinds(tmpDir)
	if err != nil {
		t.Fatalf("Kinds() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Kinds() = %v, want empty (hidden dirs should be ignored)", got)
	}
}

func TestCounts(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, tmpDir, "a.png")
	createFile(t, tmpDir, "b/c.png")
	createFile(t, tmpDir, "lang/en.lang")

	got, err := detect.Counts(tmpDir)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if got[kinds.Image] != 2 || got[kinds.Table] != 1 {
		t.Errorf("Counts() = %v, want image=2 table=1", got)
	}
}

func TestHasKind(t *testing.T) {
	tmpDir := t.TempDir()
	createFile(t, tmpDir, "lang/en.txt")

	ok, err := detect.HasKind(tmpDir, kinds.Table)
	if err != nil || !ok {
		t.Errorf("HasKind(table) = %v, %v; want true, nil", ok, err)
	}
	ok, err = detect.HasKind(tmpDir, kinds.Image)
	if err != nil || ok {
		t.Errorf("HasKind(image) = %v, %v; want false, nil", ok, err)
	}
}

func TestCounts_MissingRoot(t *testing.T) {
	if _, err := detect.Counts(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Counts() on missing root should fail")
	}
}

func createFile(t *testing.T, base, path string) {
	t.Helper()
	fullPath := filepath.Join(base, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fullPath, []byte("content"), 0o644); err != nil {
		t.Fatal(err)
	}
}
