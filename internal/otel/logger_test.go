package otel

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for i, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", i, err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitWritesValidJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindCatalogList, Level: LevelInfo, Comp: "catalog", Source: "catalogs/hotel"})
	l.Close()

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["kind"] != "catalog.list" {
		t.Errorf("kind = %v", lines[0]["kind"])
	}
	if lines[0]["source"] != "catalogs/hotel" {
		t.Errorf("source = %v", lines[0]["source"])
	}
	if lines[0]["session_id"] != l.SessionID() {
		t.Errorf("session_id = %v, want %s", lines[0]["session_id"], l.SessionID())
	}
}

func TestEmitSetsTime(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Close()
	after := time.Now()

	var ev Event
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Time.Before(before) || ev.Time.After(after) {
		t.Errorf("time %v not in [%v, %v]", ev.Time, before, after)
	}
	if len(ev.SessionID) != 16 {
		t.Errorf("session_id should be 16 chars, got %q", ev.SessionID)
	}
}

func TestDurToMs(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindQueryFetch, Dur: 1500 * time.Millisecond})
	l.Close()

	lines := decodeLines(t, &buf)
	if got, _ := lines[0]["dur_ms"].(float64); got != 1500 {
		t.Errorf("dur_ms = %v, want 1500", lines[0]["dur_ms"])
	}
}

func TestOmitempty(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindStartup})
	l.Close()

	line := strings.TrimSpace(buf.String())
	for _, field := range []string{"dur_ms", "count", "source", "query", "tag", "status", "err", "msg", "extra", "qid"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("field %q should be omitted: %s", field, line)
		}
	}
}

func TestDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Diagnostic(KindCatalogError, "catalog", CatalogTag("catalogs/hotel"), "catalogs/hotel", 500, errors.New("boom"))
	l.Close()

	lines := decodeLines(t, &buf)
	got := lines[0]
	if got["tag"] != "ERROR_GET_CATALOG_CATALOGS_HOTEL" {
		t.Errorf("tag = %v", got["tag"])
	}
	if got["level"] != "error" || got["err"] != "boom" {
		t.Errorf("level/err = %v/%v", got["level"], got["err"])
	}
	if got["status"].(float64) != 500 {
		t.Errorf("status = %v", got["status"])
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CatalogTag("catalogs/hotel"), "ERROR_GET_CATALOG_CATALOGS_HOTEL"},
		{CatalogTag("clients/clients-lazy"), "ERROR_GET_CATALOG_CLIENTS_CLIENTS-LAZY"},
		{SendTag("post", "catalogs/hotel"), "ERROR_HANDLE_POST_SEND_DATA_catalogs/hotel"},
		{SendTag("PATCH", "rates/rate"), "ERROR_HANDLE_PATCH_SEND_DATA_rates/rate"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Emit(Event{Kind: KindAPIRequest, Comp: "api"})
		}()
	}
	wg.Wait()
	l.Close()

	if n := len(decodeLines(t, &buf)); n != 100 {
		t.Errorf("expected 100 lines, got %d", n)
	}
}

func TestNilLoggerIsNoop(t *testing.T) {
	var l *Logger
	l.Emit(Event{Kind: KindStartup})
	l.Info(KindStartup, "main", "hi")
	l.Close()
}

func TestEmitAfterCloseDrops(t *testing.T) {
	l := NewNullLogger()
	l.Close()
	l.Emit(Event{Kind: KindShutdown})
	if l.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", l.Dropped())
	}
	l.Close() // idempotent
}

func TestDropCounter(t *testing.T) {
	bw := &blockingWriter{
		started: make(chan struct{}),
		block:   make(chan struct{}),
	}
	l := NewLogger(bw)

	l.Emit(Event{Kind: KindAPIRequest})
	<-bw.started

	for i := 0; i < writerChanSize+10; i++ {
		l.Emit(Event{Kind: KindAPIRequest})
	}
	if l.Dropped() == 0 {
		t.Error("expected drops when channel is full")
	}

	close(bw.block)
	l.Close()
}

type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

func TestConvenienceHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info(KindStartup, "main", "starting")
	l.Warn(KindSelectDiscard, "select", "stale token")
	l.Error(KindMutateError, "mutate", errors.New("conflict"))
	l.Close()

	lines := decodeLines(t, &buf)
	want := []struct{ level, kind, comp string }{
		{"info", "sys.startup", "main"},
		{"warn", "select.discard", "select"},
		{"error", "mutate.error", "mutate"},
	}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, w := range want {
		if lines[i]["level"] != w.level || lines[i]["kind"] != w.kind || lines[i]["comp"] != w.comp {
			t.Errorf("line %d = %v, want %+v", i, lines[i], w)
		}
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l, f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	l.Info(KindStartup, "main", "x")
	l.Close()
	if err := f.Close(); err != nil {
		t.Errorf("close file: %v", err)
	}
}

func TestNewQueryIDUnique(t *testing.T) {
	a, b := NewQueryID(), NewQueryID()
	if a == "" || a == b {
		t.Errorf("NewQueryID returned %q and %q", a, b)
	}
}
