package execctx_test

import (
	"testing"

	"github.com/conduitrun/conduit/execctx"
)

func TestJoin(t *testing.T) {
	t.Parallel()

	if got := execctx.Join("", "func1"); got != "func1" {
		t.Fatalf("Join(%q, func1) = %q, want func1", "", got)
	}
	if got := execctx.Join("func1", "step1"); got != "func1:step1" {
		t.Fatalf("Join(func1, step1) = %q, want func1:step1", got)
	}
}

func TestParent(t *testing.T) {
	t.Parallel()

	if _, ok := execctx.Parent("func1"); ok {
		t.Fatalf("Parent(func1) reported a parent, want none")
	}
	parent, ok := execctx.Parent("func1:step1")
	if !ok || parent != "func1" {
		t.Fatalf("Parent(func1:step1) = (%q, %v), want (func1, true)", parent, ok)
	}
	parent, ok = execctx.Parent("func1:step1:child")
	if !ok || parent != "func1:step1" {
		t.Fatalf("Parent(func1:step1:child) = (%q, %v), want (func1:step1, true)", parent, ok)
	}
}

func TestRoot(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"func1":              "func1",
		"func1:step1":        "func1",
		"func1:step1:child":  "func1",
	}
	for path, want := range cases {
		if got := execctx.Root(path); got != want {
			t.Fatalf("Root(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestTargetsOrDescends(t *testing.T) {
	t.Parallel()

	if !execctx.TargetsOrDescends("func1", "func1") {
		t.Fatalf("self path should target")
	}
	if !execctx.TargetsOrDescends("func1:step1", "func1") {
		t.Fatalf("descendant taskID should target ancestor fullPath")
	}
	if execctx.TargetsOrDescends("func1", "func1:step1") {
		t.Fatalf("ancestor taskID should not target a deeper fullPath")
	}
	if execctx.TargetsOrDescends("func2", "func1") {
		t.Fatalf("unrelated path should not target")
	}
}
