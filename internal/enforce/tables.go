package enforce

import "math"

// accessTime records when a rate-limited key was last used and how long its
// entry stays relevant. Entries older than their own timeout are eligible
// for eviction on the next insert scan.
type accessTime struct {
	keyID      KeyID
	accessTime uint64
	timeout    uint32
}

// accessTimeTable is a bounded unordered list scanned by KeyID equality.
// Cardinality of concurrently rate-limited keys is expected to be small,
// so a linear scan is fine.
type accessTimeTable struct {
	entries []accessTime
	maxSize int
}

func newAccessTimeTable(maxSize int) accessTimeTable {
	return accessTimeTable{maxSize: maxSize}
}

// lastAccess returns the last recorded access time for the key. A missing
// entry means the rate limit is trivially satisfied.
func (t *accessTimeTable) lastAccess(keyID KeyID) (uint64, bool) {
	for _, e := range t.entries {
		if e.keyID == keyID {
			return e.accessTime, true
		}
	}
	return 0, false
}

// update refreshes the key's entry in place, or inserts a new one. A
// refresh always succeeds regardless of fullness. An insert first evicts
// entries whose own timeout has elapsed; if no slot can be freed and the
// table is at capacity it reports failure rather than evicting a live
// entry.
func (t *accessTimeTable) update(keyID KeyID, now uint64, timeout uint32) bool {
	for i := range t.entries {
		if t.entries[i].keyID == keyID {
			t.entries[i].accessTime = now
			t.entries[i].timeout = timeout
			return true
		}
	}

	live := t.entries[:0]
	for _, e := range t.entries {
		if now-e.accessTime >= uint64(e.timeout) {
			continue
		}
		live = append(live, e)
	}
	t.entries = live

	if len(t.entries) >= t.maxSize {
		return false
	}
	t.entries = append(t.entries, accessTime{keyID: keyID, accessTime: now, timeout: timeout})
	return true
}

func (t *accessTimeTable) size() int { return len(t.entries) }

// accessCount tracks per-boot uses of a count-limited key.
type accessCount struct {
	keyID KeyID
	count uint32
}

// accessCountTable is bounded like the time table but has no eviction:
// per-boot use counts must survive for the whole boot session and are only
// discarded when the process restarts.
type accessCountTable struct {
	entries []accessCount
	maxSize int
}

func newAccessCountTable(maxSize int) accessCountTable {
	return accessCountTable{maxSize: maxSize}
}

// count returns the recorded use count for the key, if any.
func (t *accessCountTable) count(keyID KeyID) (uint32, bool) {
	for _, e := range t.entries {
		if e.keyID == keyID {
			return e.count, true
		}
	}
	return 0, false
}

// increment bumps the key's counter, saturating instead of wrapping.
// Inserting a first entry fails only when the table is at capacity.
func (t *accessCountTable) increment(keyID KeyID) bool {
	for i := range t.entries {
		if t.entries[i].keyID == keyID {
			if t.entries[i].count < math.MaxUint32 {
				t.entries[i].count++
			}
			return true
		}
	}

	if len(t.entries) >= t.maxSize {
		return false
	}
	t.entries = append(t.entries, accessCount{keyID: keyID, count: 1})
	return true
}

func (t *accessCountTable) size() int { return len(t.entries) }
