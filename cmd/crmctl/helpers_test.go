package main

import (
	"strings"
	"testing"

	"github.com/abelbrown/crmdesk/internal/catalog"
)

func TestKVFlag(t *testing.T) {
	f := make(kvFlag)
	for _, v := range []string{"name=Hotel Azul", "phone=+52 55=1"} {
		if err := f.Set(v); err != nil {
			t.Fatalf("Set(%q): %v", v, err)
		}
	}
	if f["name"] != "Hotel Azul" || f["phone"] != "+52 55=1" {
		t.Errorf("values = %v", f)
	}
	if f.String() != "name,phone" {
		t.Errorf("String() = %q", f.String())
	}
	for _, bad := range []string{"novalue", "=x"} {
		if err := f.Set(bad); err == nil {
			t.Errorf("Set(%q) should fail", bad)
		}
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct{ total, limit, want int }{
		{0, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 1},
	}
	for _, tt := range tests {
		if got := pageCount(tt.total, tt.limit); got != tt.want {
			t.Errorf("pageCount(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
		}
	}
}

func TestRenderRows(t *testing.T) {
	rows := []catalog.Row{
		{"id": "h1", "name": "Hotel Azul", "status": float64(2)},
	}
	out := renderRows(rows, func(key string, _ ...any) string { return key })
	for _, want := range []string{"ID", "STATUS", "Hotel Azul", catalog.StateTerminated.MessageKey()} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("Hotel Laguna Azul", 8); got != "Hotel..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("Sol", 8); got != "Sol" {
		t.Errorf("truncate short = %q", got)
	}
}
