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

import "testing"

func mustJoin(t *testing.T, rt *Runtime) *Thread {
	t.Helper()
	th, err := rt.Join()
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	t.Cleanup(th.Leave)
	return th
}

// TestCellRoundTrip exercises testable property 6: Store(v); Load() == v
// inside a single transaction.
func TestCellRoundTrip(t *testing.T) {
	rt := New()
	th := mustJoin(t, rt)

	c := NewCell(0)
	UpdateTx(th, func() bool {
		c.Store(th, 42)
		if got := c.Load(th); got != 42 {
			t.Fatalf("Load after Store = %d, want 42", got)
		}
		return true
	})

	if got := c.Load(th); got != 42 {
		t.Fatalf("Load after commit = %d, want 42", got)
	}
}

// TestCellMonotoneSeq exercises testable property 1 for a single cell:
// consecutive observed seq values never decrease.
func TestCellMonotoneSeq(t *testing.T) {
	rt := New()
	th := mustJoin(t, rt)
	c := NewCell(0)

	var lastSeq uint64
	for i := 1; i <= 20; i++ {
		UpdateTx(th, func() bool {
			c.Store(th, i)
			return true
		})
		_, seq := c.rawLoad()
		if seq < lastSeq {
			t.Fatalf("cell seq went backwards: %d -> %d", lastSeq, seq)
		}
		lastSeq = seq
	}
}

func TestUpdateTxReturnsValue(t *testing.T) {
	rt := New()
	th := mustJoin(t, rt)
	a := NewCell(1)
	b := NewCell(2)

	sum := UpdateTx(th, func() int {
		return a.Load(th) + b.Load(th)
	})
	if sum != 3 {
		t.Fatalf("sum = %d, want 3", sum)
	}
}

func TestReadTxSeesCommittedValue(t *testing.T) {
	rt := New()
	th := mustJoin(t, rt)
	c := NewCell(0)

	UpdateTx(th, func() bool {
		c.Store(th, 7)
		return true
	})

	got := ReadTx(th, func() int {
		return c.Load(th)
	})
	if got != 7 {
		t.Fatalf("ReadTx observed %d, want 7", got)
	}
}

func TestAddAndCompare(t *testing.T) {
	rt := New()
	th := mustJoin(t, rt)
	c := NewCell(10)

	UpdateTx(th, func() bool {
		Add(th, c, 5)
		return true
	})
	if c.Load(th) != 15 {
		t.Fatalf("Add result = %d, want 15", c.Load(th))
	}

	other := NewCell(15)
	eq := UpdateTx(th, func() bool {
		return CompareEq(th, c, other)
	})
	if !eq {
		t.Fatalf("CompareEq = false, want true")
	}

	less := UpdateTx(th, func() bool {
		return CompareLess(th, other, c)
	})
	if less {
		t.Fatalf("CompareLess(equal cells) = true, want false")
	}
}
