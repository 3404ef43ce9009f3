package ui

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/abelbrown/crmdesk/internal/otel"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugContent renders request stats and recent events for the debug
// viewport. Returns empty string if ring is nil.
func debugContent(ring *otel.RingBuffer) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()

	// Keyed lookups, not map iteration.
	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Request Stats"))
	lines = append(lines, fmt.Sprintf("  Requests:   %d sent", stats[otel.KindAPIRequest]))
	lines = append(lines, fmt.Sprintf("  Listings:   %d loaded, %d errors",
		stats[otel.KindCatalogList], stats[otel.KindCatalogError]))
	lines = append(lines, fmt.Sprintf("  Cache:      %d fetches, %d invalidations, %d evictions",
		stats[otel.KindQueryFetch], stats[otel.KindQueryInvalidate], stats[otel.KindQueryEvict]))
	lines = append(lines, fmt.Sprintf("  Writes:     %d state, %d send, %d errors",
		stats[otel.KindMutateState], stats[otel.KindMutateSend], stats[otel.KindMutateError]))
	lines = append(lines, fmt.Sprintf("  Search:     %d issued, %d discarded",
		stats[otel.KindSelectSearch], stats[otel.KindSelectDiscard]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range ring.Last(40) {
		line := fmt.Sprintf("  %6s  %-18s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.Status != 0 {
			line += fmt.Sprintf("  %d", e.Status)
		}
		if e.Source != "" {
			line += "  " + truncateRunes(e.Source, 24)
		}
		if e.Msg != "" {
			line += "  " + truncateRunes(e.Msg, 40)
		}
		if e.Err != "" {
			line += "  ERR:" + truncateRunes(e.Err, 30)
		}
		if e.QueryID != "" {
			line += "  qid:" + truncateRunes(e.QueryID, 8)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// debugOverlay frames the scrolled debug viewport.
func (a App) debugOverlay() string {
	if a.cfg.Obs.Ring == nil {
		return ""
	}
	return DebugPanel.Width(a.debugView.Width).Render(a.debugView.View())
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// truncateRunes cuts s to n runes, appending "…" when shortened.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// typeName names a message type for trace events.
func typeName(msg any) string {
	if msg == nil {
		return "<nil>"
	}
	return reflect.TypeOf(msg).String()
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("?") + StatusBarText.Render(":close ") +
		StatusBarKey.Render("↑↓") + StatusBarText.Render(":scroll")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
