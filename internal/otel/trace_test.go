package otel

import "testing"

func TestTraceEnabledToggle(t *testing.T) {
	orig := TraceEnabled()
	defer setTraceEnabled(orig)

	for _, want := range []bool{true, false} {
		setTraceEnabled(want)
		if TraceEnabled() != want {
			t.Errorf("TraceEnabled() = %v after setTraceEnabled(%v)", TraceEnabled(), want)
		}
	}
}
