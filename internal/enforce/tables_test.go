package enforce

import (
	"math"
	"testing"
)

func TestAccessTimeTable_UpdateAndLookup(t *testing.T) {
	tbl := newAccessTimeTable(4)

	if _, ok := tbl.lastAccess(1); ok {
		t.Fatal("empty table should have no entry")
	}

	if !tbl.update(1, 100, 10) {
		t.Fatal("insert into empty table failed")
	}
	last, ok := tbl.lastAccess(1)
	if !ok || last != 100 {
		t.Errorf("lastAccess = (%d, %v), want (100, true)", last, ok)
	}

	// Refresh in place
	if !tbl.update(1, 150, 10) {
		t.Fatal("refresh failed")
	}
	last, _ = tbl.lastAccess(1)
	if last != 150 {
		t.Errorf("after refresh lastAccess = %d, want 150", last)
	}
	if tbl.size() != 1 {
		t.Errorf("size = %d, want 1", tbl.size())
	}
}

func TestAccessTimeTable_InsertEvictsExpiredEntries(t *testing.T) {
	tbl := newAccessTimeTable(2)

	tbl.update(1, 100, 10) // expires at 110
	tbl.update(2, 100, 50) // expires at 150

	// At 120 key 1 is expired, key 2 is live: the insert evicts only key 1
	if !tbl.update(3, 120, 10) {
		t.Fatal("insert should succeed by evicting the expired entry")
	}
	if _, ok := tbl.lastAccess(1); ok {
		t.Error("expired entry should have been evicted")
	}
	if _, ok := tbl.lastAccess(2); !ok {
		t.Error("live entry must survive the eviction scan")
	}
	if tbl.size() != 2 {
		t.Errorf("size = %d, want 2", tbl.size())
	}
}

func TestAccessTimeTable_FullWithLiveEntriesRejectsInsert(t *testing.T) {
	tbl := newAccessTimeTable(2)

	tbl.update(1, 100, 100)
	tbl.update(2, 100, 100)

	if tbl.update(3, 110, 10) {
		t.Error("insert into a full table of live entries should fail")
	}

	// A refresh of a tracked key still succeeds at capacity
	if !tbl.update(1, 110, 100) {
		t.Error("refresh must succeed even when the table is full")
	}
}

func TestAccessCountTable_IncrementAndLookup(t *testing.T) {
	tbl := newAccessCountTable(4)

	if _, ok := tbl.count(1); ok {
		t.Fatal("empty table should have no entry")
	}

	for i := 0; i < 3; i++ {
		if !tbl.increment(1) {
			t.Fatalf("increment %d failed", i+1)
		}
	}
	count, ok := tbl.count(1)
	if !ok || count != 3 {
		t.Errorf("count = (%d, %v), want (3, true)", count, ok)
	}
}

func TestAccessCountTable_SaturatesInsteadOfWrapping(t *testing.T) {
	tbl := newAccessCountTable(1)
	tbl.entries = append(tbl.entries, accessCount{keyID: 1, count: math.MaxUint32})

	if !tbl.increment(1) {
		t.Fatal("increment of a tracked key must succeed")
	}
	count, _ := tbl.count(1)
	if count != math.MaxUint32 {
		t.Errorf("count = %d, want saturation at MaxUint32", count)
	}
}

func TestAccessCountTable_NoEvictionAtCapacity(t *testing.T) {
	tbl := newAccessCountTable(2)

	tbl.increment(1)
	tbl.increment(2)

	if tbl.increment(3) {
		t.Error("insert into a full count table should fail; no eviction within a boot session")
	}

	// Tracked keys keep counting
	if !tbl.increment(1) {
		t.Error("tracked key must keep counting at capacity")
	}
	count, _ := tbl.count(1)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
