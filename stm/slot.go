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

import "sync/atomic"

// pair is the boxed (value, seq) tuple every §3.2/§3.3 "cell" is built from.
// Rather than hand-rolling a tagged-pointer pool to emulate a 128-bit DCAS
// (the distilled spec's fallback strategy, §9), the pair is boxed behind one
// atomic.Pointer: a "DCAS" becomes an ordinary pointer CAS guarded by a
// seq-ordering check, and the small boxed structs are reclaimed by Go's
// ordinary GC once unreferenced — the same boxed-pointer idiom the teacher's
// own NonLockingReadMap uses for its growable bitmap backing slice.
type pair[V any] struct {
	val V
	seq uint64
}

// slot is the generic two-word cell primitive. rawCell (§4.B) instantiates
// it with V = uint64; the operation and result arrays (§4.E) instantiate it
// with V = *txClosure and V = uint64 respectively, so all three "each entry
// itself a cell" arrays in §3.3 share one implementation.
type slot[V any] struct {
	box atomic.Pointer[pair[V]]
}

// load returns the currently published (value, seq); the zero value and
// seq 0 if nothing has ever been stored.
func (s *slot[V]) load() (val V, seq uint64) {
	p := s.box.Load()
	if p == nil {
		return val, 0
	}
	return p.val, p.seq
}

// store publishes (val, seq) unconditionally. Used only by a slot's sole
// owner (a cell's allocator before publication, or a thread announcing its
// own operation) — never under contention.
func (s *slot[V]) store(val V, seq uint64) {
	s.box.Store(&pair[V]{val: val, seq: seq})
}

// rawStore is the apply-phase primitive: a CAS of the boxed pair from
// whatever is currently published to (val, seq), but only when the
// currently published seq is strictly less than seq. Multiple callers
// (owner, committer, opportunistic helpers) may race to rawStore the same
// target seq; exactly one CAS succeeds and the others observe seq is no
// longer < seq and return false having done nothing, so concurrent
// redundant applies are harmless.
func (s *slot[V]) rawStore(val V, seq uint64) bool {
	for {
		old := s.box.Load()
		if old != nil && old.seq >= seq {
			return false
		}
		if s.box.CompareAndSwap(old, &pair[V]{val: val, seq: seq}) {
			return true
		}
	}
}
