package file

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList_Basic(t *testing.T) {
	t.Parallel()

	content := `
# comment line
in/a.csv
   # indented comment
in/b.csv

   in/c.csv
`
	path := writeTempFile(t, t.TempDir(), "list.txt", content)

	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}

	want := []string{"in/a.csv", "in/b.csv", "in/c.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ReadList(%q) = %#v, want %#v", path, got, want)
	}
}

func TestReadList_EmptyFile(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, t.TempDir(), "list.txt", "")
	got, err := ReadList(path)
	if err != nil {
		t.Fatalf("ReadList error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty slice, got %#v", got)
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := ReadList("does-not-exist-12345.txt")
	if err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.csv", "x")
	b := writeTempFile(t, dir, "b.csv", "x")
	writeTempFile(t, dir, "notes.txt", "x")
	list := writeTempFile(t, dir, "inputs.txt", "# inputs\n"+b+"\n"+filepath.Join(dir, "missing.csv")+"\n")

	got, err := Expand([]string{filepath.Join(dir, "*.csv"), "@" + list, a})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{a, b, filepath.Join(dir, "missing.csv")}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Expand = %v; want %v", got, want)
	}
}

func TestExpand_RejectsNestedLists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	inner := writeTempFile(t, dir, "inner.txt", "a.csv\n")
	outer := writeTempFile(t, dir, "outer.txt", "@"+inner+"\n")

	if _, err := Expand([]string{"@" + outer}); err == nil {
		t.Fatal("expected an error for a nested list file")
	}
}
