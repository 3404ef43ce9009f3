package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/crmdesk/internal/otel"
)

func TestDebugContentNilRing(t *testing.T) {
	if got := debugContent(nil); got != "" {
		t.Errorf("debugContent(nil) should return empty string, got %q", got)
	}
}

func TestDebugContentRendersStats(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	now := time.Now()
	ring.Push(otel.Event{Kind: otel.KindCatalogList, Time: now})
	ring.Push(otel.Event{Kind: otel.KindCatalogList, Time: now})
	ring.Push(otel.Event{Kind: otel.KindCatalogError, Time: now})
	ring.Push(otel.Event{Kind: otel.KindSelectSearch, Time: now})
	ring.Push(otel.Event{Kind: otel.KindSelectDiscard, Time: now})

	got := debugContent(ring)

	if !strings.Contains(got, "Request Stats") {
		t.Error("content should contain 'Request Stats' header")
	}
	if !strings.Contains(got, "2 loaded, 1 errors") {
		t.Errorf("content should show listing stats, got:\n%s", got)
	}
	if !strings.Contains(got, "1 issued, 1 discarded") {
		t.Errorf("content should show search stats, got:\n%s", got)
	}
	if !strings.Contains(got, "5 / 64 events") {
		t.Errorf("content should show buffer stats, got:\n%s", got)
	}
}

func TestDebugContentRecentEvents(t *testing.T) {
	ring := otel.NewRingBuffer(64)
	ring.Push(otel.Event{Kind: otel.KindAPIRequest, Time: time.Now(), Status: 404, Source: "catalogs/hotel"})
	ring.Push(otel.Event{Kind: otel.KindMutateError, Time: time.Now(), Err: "timeout"})
	ring.Push(otel.Event{Kind: otel.KindQueryFetch, Time: time.Now(), QueryID: "abcdef1234567890"})

	got := debugContent(ring)

	if !strings.Contains(got, "Recent Events") {
		t.Error("content should contain 'Recent Events' header")
	}
	if !strings.Contains(got, "404  catalogs/hotel") {
		t.Errorf("content should show status and source, got:\n%s", got)
	}
	if !strings.Contains(got, "ERR:timeout") {
		t.Errorf("content should show error, got:\n%s", got)
	}
	if !strings.Contains(got, "qid:abcdef1…") {
		t.Errorf("content should show truncated query ID, got:\n%s", got)
	}
}

func TestDebugToggle(t *testing.T) {
	ring := otel.NewRingBuffer(16)
	ring.Push(otel.Event{Kind: otel.KindStartup, Time: time.Now(), Msg: "hello world"})
	app := NewAppWithConfig(AppConfig{
		Features: Features{Debug: true},
		Obs:      ObsConfig{Ring: ring},
	})
	m, _ := app.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	app = m.(App)

	if app.debugVisible {
		t.Error("debug should be hidden initially")
	}

	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	updated := model.(App)
	if !updated.debugVisible {
		t.Error("? should show debug overlay")
	}

	view := updated.View()
	if !strings.Contains(view, "[DEBUG]") || !strings.Contains(view, "hello world") {
		t.Errorf("debug view should contain '[DEBUG]' and the event, got:\n%s", view)
	}

	model, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	updated = model.(App)
	if updated.debugVisible {
		t.Error("second ? should hide debug overlay")
	}
}

func TestDebugRequiresFeature(t *testing.T) {
	app := NewAppWithConfig(AppConfig{Obs: ObsConfig{Ring: otel.NewRingBuffer(4)}})
	model, _ := app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	if model.(App).debugVisible {
		t.Error("debug overlay opened without the feature flag")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"catalogs/hotel", 8, "catalog…"},
		{"México", 4, "Méx…"},
	}
	for _, tt := range tests {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		dur  time.Duration
		want string
	}{
		{0, "0ms"},
		{50 * time.Millisecond, "50ms"},
		{999 * time.Millisecond, "999ms"},
		{1500 * time.Millisecond, "1.5s"},
		{30 * time.Second, "30.0s"},
		{90 * time.Second, "2m"}, // 1.5 minutes rounds to 2 with %.0f
		{5 * time.Minute, "5m"},
	}
	for _, tt := range tests {
		got := formatAge(tt.dur)
		if got != tt.want {
			t.Errorf("formatAge(%v) = %q, want %q", tt.dur, got, tt.want)
		}
	}
}

func TestFormatAgeNegative(t *testing.T) {
	got := formatAge(-5 * time.Second)
	if got != "0ms" {
		t.Errorf("formatAge(-5s) = %q, want \"0ms\"", got)
	}
}
