package otel

import (
	"os"
	"sync/atomic"
)

// traceEnabled is read on the UI goroutine for every message, so it is an
// atomic set once at init.
var traceEnabled atomic.Bool

func init() {
	traceEnabled.Store(os.Getenv("CRMDESK_TRACE") != "")
}

// TraceEnabled reports whether CRMDESK_TRACE is set.
func TraceEnabled() bool {
	return traceEnabled.Load()
}

// setTraceEnabled overrides the flag for tests.
func setTraceEnabled(v bool) {
	traceEnabled.Store(v)
}
