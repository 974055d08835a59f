package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piarun/maroon/pkg/builder"
	"github.com/piarun/maroon/pkg/ir"
)

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected builder error: %v", err)
	}
}

func writeProgram(t *testing.T, dir, name, text string, delta uint32) string {
	t.Helper()
	b := builder.New()
	must(t, b.Source("cli.mrn"))
	must(t, b.BeginNamespace("demo", 1+delta))
	must(t, b.BeginFiber("global", 2+delta))
	must(t, b.BeginFunction("main", nil, 3+delta))
	must(t, b.Stmt(`DEBUG("`+text+`")`, 4+delta))
	must(t, b.Stmt("RETURN()", 5+delta))
	must(t, b.EndFunction())
	must(t, b.EndFiber())
	must(t, b.EndNamespace())
	must(t, b.TestFiber("demo", "global", []string{text}, 6+delta))
	prog, err := b.Finalize()
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	data, err := ir.Encode(prog)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestDiffCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeProgram(t, dir, "a.json", "hello", 0)
	shifted := writeProgram(t, dir, "b.json", "hello", 50)
	other := writeProgram(t, dir, "c.json", "goodbye", 0)

	if code := run([]string{"diff", "--a", a, "--b", shifted}); code != 0 {
		t.Fatalf("line-shifted programs reported unequal (exit %d)", code)
	}
	if code := run([]string{"diff", "--a", a, "--b", other}); code != 1 {
		t.Fatalf("different programs reported equal (exit %d)", code)
	}
	if code := run([]string{"diff", "--a", a}); code != 1 {
		t.Fatalf("missing --b accepted (exit %d)", code)
	}
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeProgram(t, dir, "ok.json", "hello", 0)
	if code := run([]string{"run", path}); code != 0 {
		t.Fatalf("passing suite exited %d", code)
	}
}

func TestSchemaCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "schema.md")
	if code := run([]string{"schema", "--out", out}); code != 0 {
		t.Fatalf("schema emit exited %d", code)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading schema output: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("schema output is empty")
	}
}

func TestUnknownCommand(t *testing.T) {
	if code := run([]string{"frobnicate"}); code != 1 {
		t.Fatalf("unknown command exited %d", code)
	}
}
