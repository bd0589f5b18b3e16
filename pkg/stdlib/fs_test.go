package stdlib_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/agenthands/drasm/pkg/stdlib"
)

func TestFSSandbox(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("foo.drasm", "class Foo public\nend\n")
	write("lib/bar.drasm", "class Bar public\nend\n")
	write("notes.txt", "ignored")
	write("big.drasm", string(make([]byte, 2048)))

	sandbox := stdlib.NewFSSandbox(dir, 1024)

	src, err := sandbox.ReadSource("foo.drasm")
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if src != "class Foo public\nend\n" {
		t.Errorf("unexpected content %q", src)
	}

	if _, err := sandbox.ReadSource("../../etc/passwd"); !errors.Is(err, stdlib.ErrPathEscape) {
		t.Errorf("expected ErrPathEscape, got %v", err)
	}
	if _, err := sandbox.ReadSource("big.drasm"); !errors.Is(err, stdlib.ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if _, err := sandbox.ReadSource("lib"); err == nil {
		t.Error("expected error reading a directory")
	}

	units, err := sandbox.ListSources()
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	want := []string{"big.drasm", "foo.drasm", filepath.Join("lib", "bar.drasm")}
	if !reflect.DeepEqual(units, want) {
		t.Errorf("expected %v, got %v", want, units)
	}
}
