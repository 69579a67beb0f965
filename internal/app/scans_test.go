package app

import (
	"context"
	"testing"
	"time"

	"github.com/graaaaa/roomcheck/internal/domain"
	"github.com/graaaaa/roomcheck/internal/ingest"
)

func TestScanResultService_Last(t *testing.T) {
	slot := ingest.NewResultSlot()
	svc := ScanResultService{Buffer: slot}
	ctx := context.Background()

	if _, ok := svc.Last(ctx); ok {
		t.Fatal("expected no pending result")
	}

	slot.Put(domain.ScanResult{ID: "a", Status: domain.ScanStatusSuccess, At: base})
	slot.Put(domain.ScanResult{ID: "b", Status: domain.ScanStatusError, At: base.Add(time.Second)})

	got, ok := svc.Last(ctx)
	if !ok {
		t.Fatal("expected a pending result")
	}
	if got.ID != "b" {
		t.Errorf("ID = %q, want b (latest wins)", got.ID)
	}
	if _, ok := svc.Last(ctx); ok {
		t.Error("result must be consumed by the first read")
	}
}

func TestScanResultService_NilBuffer(t *testing.T) {
	if _, ok := (ScanResultService{}).Last(context.Background()); ok {
		t.Error("expected ok=false without a buffer")
	}
}
