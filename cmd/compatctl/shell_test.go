package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	lf := &loadFlags{source: writeCatalog(t)}
	var out bytes.Buffer
	o := &IO{Out: &out, Err: &out}
	eng, _, err := lf.load(context.Background(), o)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	sh, err := newShell(eng, lf, o)
	if err != nil {
		t.Fatalf("newShell() error = %v", err)
	}
	return sh, &out
}

func execLines(t *testing.T, sh *shell, out *bytes.Buffer, lines ...string) string {
	t.Helper()
	out.Reset()
	for _, l := range lines {
		if _, err := sh.exec(context.Background(), l); err != nil {
			t.Fatalf("exec(%q) error = %v", l, err)
		}
	}
	return out.String()
}

func TestShell_SearchFilterSort(t *testing.T) {
	sh, out := newTestShell(t)

	got := execLines(t, sh, out, "q sonoff")
	if !strings.HasSuffix(got, "3 rows, page 1 of 1\n") {
		t.Errorf("after search: %q", got)
	}

	got = execLines(t, sh, out, "filter deviceCategory=plug")
	if !strings.HasSuffix(got, "2 rows, page 1 of 1\n") {
		t.Errorf("after filter: %q", got)
	}

	got = execLines(t, sh, out, "unfilter deviceCategory", "q", "sort deviceModel desc")
	lines := strings.Split(strings.TrimSpace(got), "\n")
	// Last print: header, 4 rows, blank, footer.
	last := lines[len(lines)-7:]
	if !strings.Contains(last[1], "Aqara") {
		t.Errorf("first sorted row = %q", last[1])
	}

	if sh.in.Q != "" || len(sh.in.Enums) != 0 || len(sh.in.Sort) != 1 || !sh.in.Sort[0].Desc {
		t.Errorf("state = %+v", sh.in)
	}
}

func TestShell_Paging(t *testing.T) {
	sh, out := newTestShell(t)

	got := execLines(t, sh, out, "size 3", "next")
	if !strings.HasSuffix(got, "4 rows, page 2 of 2\n") {
		t.Errorf("after next: %q", got)
	}

	// Beyond the last page the engine clamps.
	execLines(t, sh, out, "next")
	if sh.in.Page != 2 {
		t.Errorf("page = %d, want 2", sh.in.Page)
	}

	execLines(t, sh, out, "prev", "prev")
	if sh.in.Page != 1 {
		t.Errorf("page = %d, want 1", sh.in.Page)
	}

	execLines(t, sh, out, "page 2", "clear")
	if sh.in.Page != 1 || sh.in.PageSize != 3 {
		t.Errorf("after clear: %+v", sh.in)
	}
}

func TestShell_InfoCommands(t *testing.T) {
	sh, out := newTestShell(t)

	got := execLines(t, sh, out, "facets deviceBrand")
	if !strings.Contains(got, "SONOFF") || !strings.Contains(got, "Aqara") {
		t.Errorf("facets output = %q", got)
	}

	got = execLines(t, sh, out, "stats")
	if !strings.Contains(got, "4 rows, 3 devices, updateTime 42") {
		t.Errorf("stats output = %q", got)
	}

	got = execLines(t, sh, out, "reload")
	if !strings.Contains(got, "reloaded 4 rows from 3 devices") {
		t.Errorf("reload output = %q", got)
	}

	got = execLines(t, sh, out, "columns deviceModel, matterDeviceType", "show")
	if !strings.HasPrefix(got, "Model") {
		t.Errorf("custom columns header = %q", got)
	}
}

func TestShell_Errors(t *testing.T) {
	sh, _ := newTestShell(t)

	for _, line := range []string{
		"bogus",
		"filter",
		"filter nope=x",
		"unfilter",
		"sort a b c",
		"sort deviceModel sideways",
		"page zero",
		"size 0",
		"columns nope",
	} {
		if _, err := sh.exec(context.Background(), line); err == nil {
			t.Errorf("exec(%q) should fail", line)
		}
	}

	// A rejected filter must not stick.
	if len(sh.in.Enums) != 0 {
		t.Errorf("filters = %v after errors", sh.in.Enums)
	}
	if quit, err := sh.exec(context.Background(), "quit"); !quit || err != nil {
		t.Errorf("quit = %v, %v", quit, err)
	}
}

func TestShell_Complete(t *testing.T) {
	sh, _ := newTestShell(t)

	if diff := cmp.Diff([]string{"filter", "facets"}, sh.complete("f")); diff != "" {
		t.Errorf("command completion mismatch (-want +got):\n%s", diff)
	}
	got := sh.complete("sort deviceMo")
	if diff := cmp.Diff([]string{"sort deviceModel"}, got); diff != "" {
		t.Errorf("column completion mismatch (-want +got):\n%s", diff)
	}
}
