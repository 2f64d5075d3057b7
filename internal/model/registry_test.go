package model

import (
	"testing"
	"time"
)

func TestOperationRegistryGetRoundTrip(t *testing.T) {
	r := NewOperationRegistry()
	op := NewOperation()
	r.Add(op)

	got := r.Get(op.TraceID)
	if got == nil || got.TraceID != op.TraceID {
		t.Fatalf("expected to retrieve the registered operation, got %v", got)
	}
}

func TestOperationRegistryGetUnknownReturnsNil(t *testing.T) {
	r := NewOperationRegistry()
	if got := r.Get("no-such-trace"); got != nil {
		t.Errorf("expected nil for unknown trace id, got %v", got)
	}
}

func TestOperationRegistryGetGCsOldTerminalOperation(t *testing.T) {
	r := NewOperationRegistry()
	op := NewOperation()
	op.Finish(StatusSucceeded, "done")
	stale := time.Now().Add(-(OperationGCAge + time.Minute))
	op.EndedAt = &stale
	r.Add(op)

	if got := r.Get(op.TraceID); got != nil {
		t.Errorf("P9: expected an operation finished over %v ago to be evicted, got %v", OperationGCAge, got)
	}
	if got := r.Get(op.TraceID); got != nil {
		t.Errorf("expected eviction to persist on a second lookup, got %v", got)
	}
}

func TestOperationRegistryGetKeepsRecentTerminalOperation(t *testing.T) {
	r := NewOperationRegistry()
	op := NewOperation()
	op.Finish(StatusSucceeded, "done")
	r.Add(op)

	if got := r.Get(op.TraceID); got == nil {
		t.Error("expected a just-finished operation to still be addressable")
	}
}

func TestOperationRegistryGCSweepsOnly(t *testing.T) {
	r := NewOperationRegistry()

	fresh := NewOperation()
	fresh.Finish(StatusSucceeded, "done")
	r.Add(fresh)

	stale := NewOperation()
	stale.Finish(StatusFailed, "boom")
	staleTime := time.Now().Add(-(OperationGCAge + time.Minute))
	stale.EndedAt = &staleTime
	r.Add(stale)

	ongoing := NewOperation()
	r.Add(ongoing)

	evicted := r.GC()
	if evicted != 1 {
		t.Fatalf("expected exactly 1 eviction, got %d", evicted)
	}
	if r.Get(fresh.TraceID) == nil {
		t.Error("expected fresh terminal operation to survive GC")
	}
	if r.Get(ongoing.TraceID) == nil {
		t.Error("expected ongoing operation to survive GC")
	}
}
