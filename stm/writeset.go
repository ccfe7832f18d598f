/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package stm

import "unsafe"

// logEntry is one (address, desired-value) record of a write-set (§3.4).
type logEntry struct {
	addr *rawCell
	val  uint64
}

// WriteSet is a per-thread redo log with an intrusive open-addressing hash
// index so lookups stay O(1) once a transaction's store count grows past
// ArrayLookupThreshold (§4.C). The log itself is never shared across
// goroutines: an owner mutates its own buffer during speculation, and a
// helper that needs another thread's committed write-set reads an immutable
// snapshot (snapshot/copyFromLog) the owner published at commit time, never
// the owner's live buffer.
type WriteSet struct {
	log   []logEntry
	index []int32 // 0 = empty, else (log index + 1)

	maxStores            int
	arrayLookupThreshold int
	helperStride         int
	readOnly             bool
}

func newWriteSet(opts Options) *WriteSet {
	return &WriteSet{
		log:                  make([]logEntry, 0, opts.WriteSetArrayLookupThreshold),
		index:                make([]int32, opts.WriteSetHashBuckets),
		maxStores:            opts.WriteSetMaxStores,
		arrayLookupThreshold: opts.WriteSetArrayLookupThreshold,
		helperStride:         opts.HelperStride,
		readOnly:             true,
	}
}

// reset clears the log and index for reuse by the next transaction attempt.
func (ws *WriteSet) reset() {
	ws.log = ws.log[:0]
	for i := range ws.index {
		ws.index[i] = 0
	}
	ws.readOnly = true
}

func (ws *WriteSet) bucket(addr *rawCell) int {
	p := uintptr(unsafe.Pointer(addr))
	h := uint64(p ^ (p >> 33))
	h *= 0x9E3779B185EBCA87
	return int(h % uint64(len(ws.index)))
}

// indexLookup returns the log position of addr via the hash index, probing
// linearly past collisions until it finds addr or an empty bucket.
func (ws *WriteSet) indexLookup(addr *rawCell) (int, bool) {
	n := len(ws.index)
	if n == 0 {
		return 0, false
	}
	i := ws.bucket(addr)
	for probed := 0; probed < n; probed++ {
		slotVal := ws.index[i]
		if slotVal == 0 {
			return 0, false
		}
		pos := int(slotVal - 1)
		if pos < len(ws.log) && ws.log[pos].addr == addr {
			return pos, true
		}
		i = (i + 1) % n
	}
	return 0, false
}

func (ws *WriteSet) indexInsert(addr *rawCell, pos int) {
	n := len(ws.index)
	if n == 0 {
		return
	}
	i := ws.bucket(addr)
	for probed := 0; probed < n; probed++ {
		if ws.index[i] == 0 {
			ws.index[i] = int32(pos + 1)
			return
		}
		i = (i + 1) % n
	}
	// Hash index is full; the linear-scan fallback for small logs and the
	// generous default bucket count (§6) make this unreachable in practice.
	// A transaction that fills every bucket has already tripped maxStores.
}

// addOrReplace adds a new (addr, val) record, or replaces the value of an
// existing one in place, so the log always records the last writer to addr
// (§4.C). Panics with CapacityExceededError if the log is already at
// maxStores and addr is new.
func (ws *WriteSet) addOrReplace(addr *rawCell, val uint64) {
	ws.readOnly = false
	if len(ws.log) <= ws.arrayLookupThreshold {
		for i := range ws.log {
			if ws.log[i].addr == addr {
				ws.log[i].val = val
				return
			}
		}
	} else if pos, ok := ws.indexLookup(addr); ok {
		ws.log[pos].val = val
		return
	}
	if len(ws.log) >= ws.maxStores {
		panic(CapacityExceededError{Log: "write-set", Limit: ws.maxStores, ItemSize: uint64(unsafe.Sizeof(logEntry{}))})
	}
	ws.log = append(ws.log, logEntry{addr: addr, val: val})
	ws.indexInsert(addr, len(ws.log)-1)
}

// lookupAddr returns the logged value for addr, or fallback if addr has no
// entry in this write-set yet.
func (ws *WriteSet) lookupAddr(addr *rawCell, fallback uint64) uint64 {
	if len(ws.log) <= ws.arrayLookupThreshold {
		for i := range ws.log {
			if ws.log[i].addr == addr {
				return ws.log[i].val
			}
		}
		return fallback
	}
	if pos, ok := ws.indexLookup(addr); ok {
		return ws.log[pos].val
	}
	return fallback
}

// copyFrom value-copies another write-set's log, without its hash index —
// a helper applying it only ever walks the log linearly (§3.4), so the
// index never needs rebuilding. other must not be concurrently mutated by
// another goroutine while this runs: unlike copyFromLog, it reads other's
// live log slice directly, so it is only safe against a write-set the
// caller already owns or otherwise has exclusive, synchronized access to.
func (ws *WriteSet) copyFrom(other *WriteSet) {
	ws.log = append(ws.log[:0], other.log...)
	ws.readOnly = other.readOnly
}

// snapshot returns an independent copy of the log, safe for another
// goroutine to read without synchronizing against this write-set's owner.
// The owner publishes the result of snapshot (never the live WriteSet
// itself) for helpers to apply, which is what makes helpApply's cross-thread
// read race-free (§3.4, §4.F.2).
func (ws *WriteSet) snapshot() []logEntry {
	out := make([]logEntry, len(ws.log))
	copy(out, ws.log)
	return out
}

// copyFromLog value-copies an already-immutable log snapshot into ws. This
// is the cross-thread counterpart of copyFrom: a helper uses it to pull a
// published snapshot into its own scratch buffer before applying it, never
// touching another thread's live WriteSet.
func (ws *WriteSet) copyFromLog(log []logEntry) {
	ws.log = append(ws.log[:0], log...)
}

// apply walks the log and rawStores every entry at seq, starting at an
// offset derived from the applying thread's id so concurrent helpers spread
// out across the log rather than racing over the same prefix (§4.C, §9).
func (ws *WriteSet) apply(seq uint64, helperID int) {
	applyLog(ws.log, ws.helperStride, helperID, seq)
}

// applyLog is the free-function core of WriteSet.apply. helpApply reaches it
// through apply on the helper's scratch WriteSet, after copyFromLog.
func applyLog(log []logEntry, helperStride, helperID int, seq uint64) {
	n := len(log)
	if n == 0 {
		return
	}
	offset := (helperID * helperStride) % n
	for i := 0; i < n; i++ {
		e := log[(offset+i)%n]
		e.addr.rawStore(e.val, seq)
	}
}
