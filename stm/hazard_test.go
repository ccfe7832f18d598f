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

type countingRetirable struct {
	freed *int
}

func (c countingRetirable) reclaim() {
	*c.freed++
}

func TestHazardErasFreesUnprotected(t *testing.T) {
	h := newHazardEras(4, 0)
	for i := range h.eras {
		h.clear(i)
	}

	freed := 0
	h.retireUser(0, countingRetirable{&freed}, 5, 5)
	h.clean(0, 6)

	if freed != 1 {
		t.Fatalf("freed = %d, want 1 (object unprotected at currentEra 6)", freed)
	}
}

func TestHazardErasKeepsProtected(t *testing.T) {
	h := newHazardEras(4, 0)
	h.protect(1, 5) // thread 1 still reading era 5

	freed := 0
	h.retireUser(0, countingRetirable{&freed}, 5, 5)
	h.clean(0, 6)

	if freed != 0 {
		t.Fatalf("freed = %d, want 0 (era 5 still protected by thread 1)", freed)
	}
}

func TestHazardErasSkipsCurrentEra(t *testing.T) {
	h := newHazardEras(4, 0)
	for i := range h.eras {
		h.clear(i)
	}

	freed := 0
	h.retireUser(0, countingRetirable{&freed}, 6, 6)
	h.clean(0, 6) // deathEra == currentEra: must not free yet

	if freed != 0 {
		t.Fatalf("freed = %d, want 0 (deathEra equals currentEra)", freed)
	}

	h.clean(0, 7)
	if freed != 1 {
		t.Fatalf("freed = %d, want 1 once currentEra has moved past deathEra", freed)
	}
}

func TestHazardErasClosureList(t *testing.T) {
	h := newHazardEras(2, 0)
	for i := range h.eras {
		h.clear(i)
	}
	freed := 0
	h.retireClosure(0, countingRetirable{&freed}, 1, 1)
	h.clean(0, 2)
	if freed != 1 {
		t.Fatalf("closure freed = %d, want 1", freed)
	}
}
