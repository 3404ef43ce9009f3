package main

import (
	"strings"
	"testing"
)

const sampleLog = `{"t":"2026-10-18T12:00:00Z","level":"info","kind":"http","comp":"api","qid":"aaa111","status":200,"source":"catalogs/hotel","dur_ms":12.5}
not json
{"t":"2026-10-18T12:00:01Z","level":"error","kind":"http","comp":"api","qid":"bbb222","status":500,"source":"catalogs/hotel","err":"boom"}

{"t":"2026-10-18T12:00:02Z","level":"error","kind":"diagnostic","comp":"mutate","tag":"ERROR_HANDLE_POST_SEND_DATA_catalogs/hotel","source":"catalogs/hotel"}
{"t":"2026-10-18T12:00:03Z","level":"warn","kind":"cache","comp":"query","source":"catalogs/room"}
`

func TestReadTailLinesKeepsLastMatches(t *testing.T) {
	all := func(eventRecord) bool { return true }
	got := readTailLines(strings.NewReader(sampleLog), 2, all)
	if len(got) != 2 {
		t.Fatalf("got %d lines, want 2", len(got))
	}
	if got[0].ev.Kind != "diagnostic" || got[1].ev.Comp != "query" {
		t.Errorf("wrong tail: %+v", got)
	}
	if !strings.Contains(string(got[1].raw), `"catalogs/room"`) {
		t.Errorf("raw = %s", got[1].raw)
	}
}

func TestReadTailLinesZero(t *testing.T) {
	if got := readTailLines(strings.NewReader(sampleLog), 0, func(eventRecord) bool { return true }); len(got) != 0 {
		t.Errorf("got %d lines, want 0", len(got))
	}
}

func TestEventFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter eventFilter
		want   int
	}{
		{"no filter", eventFilter{}, 4},
		{"min level warn", eventFilter{level: "warn"}, 3},
		{"component", eventFilter{comp: "api"}, 2},
		{"qid prefix", eventFilter{qid: "bbb"}, 1},
		{"tag substring", eventFilter{tag: "POST_SEND"}, 1},
		{"resource", eventFilter{resource: "catalogs/room"}, 1},
		{"kind prefix", eventFilter{kind: "ht"}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readTailLines(strings.NewReader(sampleLog), 10, tt.filter.match)
			if len(got) != tt.want {
				t.Errorf("matched %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFormatEvent(t *testing.T) {
	lines := readTailLines(strings.NewReader(sampleLog), 10, func(eventRecord) bool { return true })
	first := formatEvent(lines[0].ev)
	for _, want := range []string{"12:00:00.000", "INFO", "200", "(12.5ms)", "src=catalogs/hotel"} {
		if !strings.Contains(first, want) {
			t.Errorf("%q missing %q", first, want)
		}
	}
	if got := formatEvent(lines[2].ev); !strings.Contains(got, "tag=ERROR_HANDLE_POST_SEND_DATA_catalogs/hotel") {
		t.Errorf("tag missing: %q", got)
	}
	if got := formatEvent(eventRecord{}); !strings.Contains(got, "?") {
		t.Errorf("empty level should render '?': %q", got)
	}
}

func TestDurPrecision(t *testing.T) {
	tests := []struct {
		ms   float64
		want int
	}{{250, 0}, {12.5, 1}, {0.3, 2}}
	for _, tt := range tests {
		if got := durPrecision(tt.ms); got != tt.want {
			t.Errorf("durPrecision(%v) = %d, want %d", tt.ms, got, tt.want)
		}
	}
}
