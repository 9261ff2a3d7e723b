package ace

import (
	"context"
	"testing"
)

func TestEmptyRailHasTraceId(t *testing.T) {
	rail := EmptyRail()
	if rail.TraceId() == "" {
		t.Fatal("empty rail must carry a trace id")
	}
}

func TestNewRailKeepsExistingTraceId(t *testing.T) {
	r1 := EmptyRail()
	r2 := NewRail(r1.Context())
	if r1.TraceId() != r2.TraceId() {
		t.Fatalf("trace id must be preserved, %v != %v", r1.TraceId(), r2.TraceId())
	}
}

func TestWithCancel(t *testing.T) {
	rail, cancel := EmptyRail().WithCancel()
	if rail.IsDone() {
		t.Fatal("rail should not be done yet")
	}
	cancel()
	if !rail.IsDone() {
		t.Fatal("rail should be done after cancel")
	}
	select {
	case <-rail.Done():
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestNewRailFromBackground(t *testing.T) {
	rail := NewRail(context.Background())
	if rail.TraceId() == "" {
		t.Fatal("rail must generate a trace id")
	}
}
