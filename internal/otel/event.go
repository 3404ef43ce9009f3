// Package otel is the diagnostic channel for crmdesk.
//
// Events are typed structs written as JSONL by an async Logger. Failures in
// the data-access layer carry a Tag such as ERROR_GET_CATALOG_CATALOGS_HOTEL
// so a log line can be traced back to the resource and operation that
// produced it. An optional RingBuffer feeds the dev overlay.
package otel

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Transport
	KindAPIRequest EventKind = "api.request"

	// Catalog services
	KindCatalogList  EventKind = "catalog.list"
	KindCatalogError EventKind = "catalog.error"
	KindCatalogWrite EventKind = "catalog.write"

	// Query engine
	KindQueryFetch      EventKind = "query.fetch"
	KindQueryInvalidate EventKind = "query.invalidate"
	KindQueryEvict      EventKind = "query.evict"

	// Mutations
	KindMutateState EventKind = "mutate.state"
	KindMutateSend  EventKind = "mutate.send"
	KindMutateError EventKind = "mutate.error"

	// Remote search select
	KindSelectSearch  EventKind = "select.search"
	KindSelectDiscard EventKind = "select.discard"

	// Session
	KindSessionLanguage EventKind = "session.language"

	// System
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	// Trace (CRMDESK_TRACE)
	KindMsgReceived EventKind = "trace.msg_received"
)

// Event is the universal diagnostic record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // "api", "catalog", "query", "mutate", "select", "ui"
	SessionID string         `json:"session_id,omitempty"` // same for the whole app run
	QueryID   string         `json:"qid,omitempty"`        // request correlation ID
	Tag       string         `json:"tag,omitempty"`        // e.g. ERROR_HANDLE_POST_SEND_DATA_catalogs/hotel
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"` // computed from Dur at marshal time
	Status    int            `json:"status,omitempty"` // HTTP status when known
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"` // resource path
	Query     string         `json:"query,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON implements json.Marshaler, converting Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// NewQueryID returns a fresh correlation ID.
func NewQueryID() string {
	return uuid.NewString()
}

// CatalogTag builds the read-failure tag for a resource:
// "catalogs/hotel" -> "ERROR_GET_CATALOG_CATALOGS_HOTEL".
func CatalogTag(resource string) string {
	return "ERROR_GET_CATALOG_" + strings.ReplaceAll(strings.ToUpper(resource), "/", "_")
}

// SendTag builds the write-failure tag for a create ("POST") or update ("PATCH").
// The resource is kept as given.
func SendTag(method, resource string) string {
	return "ERROR_HANDLE_" + strings.ToUpper(method) + "_SEND_DATA_" + resource
}
