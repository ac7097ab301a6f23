package alloc

import (
	"testing"

	. "github.com/weberc2/blockfs/pkg/types"
)

func TestFreeMapAllocBatch(t *testing.T) {
	fm := NewFreeMap(16)

	sectors, ok := fm.AllocBatch(10)
	if !ok {
		t.Fatal("AllocBatch(10): unexpected failure")
	}
	if len(sectors) != 10 {
		t.Fatalf("AllocBatch(10): wanted 10 sectors; found %d", len(sectors))
	}

	seen := make(map[Sector]bool)
	for _, s := range sectors {
		if seen[s] {
			t.Fatalf("AllocBatch(10): sector `%d` returned twice", s)
		}
		seen[s] = true
		if !fm.InUse(s) {
			t.Fatalf("AllocBatch(10): sector `%d` not marked in use", s)
		}
	}
}

func TestFreeMapAllocBatchAllOrNothing(t *testing.T) {
	fm := NewFreeMap(8)

	if _, ok := fm.AllocBatch(3); !ok {
		t.Fatal("AllocBatch(3): unexpected failure")
	}

	// only 5 sectors remain; the batch must fail and roll back its
	// partial prefix
	if _, ok := fm.AllocBatch(6); ok {
		t.Fatal("AllocBatch(6): wanted failure; found success")
	}
	if sectors, ok := fm.AllocBatch(5); !ok || len(sectors) != 5 {
		t.Fatalf(
			"AllocBatch(5) after failed batch: wanted 5 sectors; "+
				"found %d (ok=%t)",
			len(sectors),
			ok,
		)
	}
}

func TestFreeMapRelease(t *testing.T) {
	fm := NewFreeMap(4)

	sectors, ok := fm.AllocBatch(4)
	if !ok {
		t.Fatal("AllocBatch(4): unexpected failure")
	}
	if _, ok := fm.AllocBatch(1); ok {
		t.Fatal("AllocBatch(1) on a full map: wanted failure")
	}

	fm.Release(sectors[2], 1)
	if fm.InUse(sectors[2]) {
		t.Fatalf("Release(): sector `%d` still in use", sectors[2])
	}

	found, ok := fm.AllocBatch(1)
	if !ok {
		t.Fatal("AllocBatch(1) after release: unexpected failure")
	}
	if found[0] != sectors[2] {
		t.Fatalf(
			"AllocBatch(1) after release: wanted sector `%d`; found `%d`",
			sectors[2],
			found[0],
		)
	}
}

func TestFreeMapReserve(t *testing.T) {
	fm := NewFreeMap(4)
	fm.Reserve(0, 2)

	sectors, ok := fm.AllocBatch(2)
	if !ok {
		t.Fatal("AllocBatch(2): unexpected failure")
	}
	for _, s := range sectors {
		if s < 2 {
			t.Fatalf("AllocBatch(2): handed out reserved sector `%d`", s)
		}
	}
}
