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

import "cmp"

// rawCell is the untyped (value, seq) pair a Cell[T] is built from, and also
// the type the write-set's log entries point at (§3.4).
type rawCell = slot[uint64]

// Cell[T] is the unit of shared mutable state (§3.2). T must fit in 64 bits;
// wider payloads must be stored as a pointer into arena-managed storage
// (§3.8) and held as Cell[*X] instead, per DESIGN NOTES §9.
type Cell[T any] struct {
	raw rawCell
}

// NewCell constructs a published Cell holding v, with seq 0. Intended for
// initialization before any transaction has observed the cell, matching the
// "writing outside any transaction is permitted only for initialization
// before publication" rule of §4.F.5.
func NewCell[T any](v T) *Cell[T] {
	checkWordSized[T]()
	c := &Cell[T]{}
	c.raw.store(wordOf(v), 0)
	return c
}

// Load returns the cell's value. Outside a transaction (th.attempt == nil)
// this is a relaxed read of the published value. Inside a transaction it
// first consults the caller's write-set (so a transaction sees its own
// uncommitted stores), then falls back to the published value, raising the
// internal abortSignal if that value was written at a seq later than the
// caller's snapshot.
func (c *Cell[T]) Load(th *Thread) T {
	attempt := th.attempt.Load()
	if attempt == nil {
		val, _ := c.raw.load()
		return valueOf[T](val)
	}
	return valueOf[T](attempt.loadCell(&c.raw))
}

// Store sets the cell's value. Outside a transaction it is a relaxed write
// that bypasses the write-set entirely (initialization use only, §4.F.5).
// Inside a transaction it adds or replaces an entry in the caller's
// write-set; the published value is left untouched until commit.
func (c *Cell[T]) Store(th *Thread, v T) {
	w := wordOf(v)
	attempt := th.attempt.Load()
	if attempt == nil {
		_, seq := c.raw.load()
		c.raw.store(w, seq)
		return
	}
	attempt.storeCell(&c.raw, w)
}

// rawLoad exposes the published (value, seq) pair without going through a
// transaction's write-set. Every read of the boxed pair in this
// implementation is already internally consistent (§9 DCAS emulation), so
// unlike the original's double-read validation dance this never fails.
func (c *Cell[T]) rawLoad() (uint64, uint64) {
	return c.raw.load()
}

// Add atomically adds delta to a numeric Cell's decoded value within th's
// transaction and returns the new value, mirroring the arithmetic
// conveniences promised in §6.
func Add[T Numeric](th *Thread, c *Cell[T], delta T) T {
	v := c.Load(th) + delta
	c.Store(th, v)
	return v
}

// CompareLess reports whether a's decoded value orders before b's, both
// read within th's transaction.
func CompareLess[T cmp.Ordered](th *Thread, a, b *Cell[T]) bool {
	return a.Load(th) < b.Load(th)
}

// CompareEq reports whether a and b hold equal decoded values, both read
// within th's transaction.
func CompareEq[T comparable](th *Thread, a, b *Cell[T]) bool {
	return a.Load(th) == b.Load(th)
}

// Numeric is the constraint satisfied by Cell payloads Add can operate on.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr |
		~float32 | ~float64
}
