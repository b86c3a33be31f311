package idhash

import (
	"testing"
	"time"
)

var (
	start = time.Date(2024, 5, 10, 17, 0, 0, 0, time.UTC)
	end   = time.Date(2024, 5, 12, 2, 0, 0, 0, time.UTC)
)

func TestComputeWindowID(t *testing.T) {
	got := ComputeWindowID("storm_p99", start, end)
	if len(got) != 64 {
		t.Fatalf("length = %d, want 64", len(got))
	}
	if got != ComputeWindowID("storm_p99", start, end) {
		t.Error("ComputeWindowID not deterministic")
	}

	// Same instant in another zone is the same window.
	if got != ComputeWindowID("storm_p99", start.In(time.FixedZone("X", 3600)), end) {
		t.Error("window id depends on location")
	}
	if got == ComputeWindowID("storm_p95", start, end) {
		t.Error("different label should produce different id")
	}
	if got == ComputeWindowID("storm_p99", start, end.Add(time.Hour)) {
		t.Error("different end should produce different id")
	}
}

func TestConfigSignature(t *testing.T) {
	type cfg struct {
		Workers int
		Offsets []int
		Labels  map[string]float64
	}

	a, err := ConfigSignature(cfg{Workers: 4, Offsets: []int{1, 2}, Labels: map[string]float64{"a": 1, "b": 2}})
	if err != nil {
		t.Fatalf("ConfigSignature: %v", err)
	}
	b, _ := ConfigSignature(cfg{Workers: 4, Offsets: []int{1, 2}, Labels: map[string]float64{"b": 2, "a": 1}})
	if a != b {
		t.Error("map insertion order changed the signature")
	}
	c, _ := ConfigSignature(cfg{Workers: 8, Offsets: []int{1, 2}})
	if a == c {
		t.Error("different config should produce different signature")
	}

	if _, err := ConfigSignature(func() {}); err == nil {
		t.Error("expected error for unencodable value")
	}
}
