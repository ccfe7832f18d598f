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

func TestRegistryAssignsDenseIDs(t *testing.T) {
	rt := New(WithMaxThreads(4))
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		th, err := rt.Join()
		if err != nil {
			t.Fatalf("Join %d: %v", i, err)
		}
		if seen[th.ID()] {
			t.Fatalf("duplicate thread id %d", th.ID())
		}
		seen[th.ID()] = true
	}
}

func TestRegistryFullErrorsOnOverflow(t *testing.T) {
	rt := New(WithMaxThreads(2))
	if _, err := rt.Join(); err != nil {
		t.Fatalf("Join 1: %v", err)
	}
	if _, err := rt.Join(); err != nil {
		t.Fatalf("Join 2: %v", err)
	}
	if _, err := rt.Join(); err == nil {
		t.Fatalf("expected ThreadRegistryFullError on third Join")
	} else if _, ok := err.(ThreadRegistryFullError); !ok {
		t.Fatalf("err = %#v, want ThreadRegistryFullError", err)
	}
}

func TestRegistryReusesReleasedID(t *testing.T) {
	rt := New(WithMaxThreads(1))
	th, err := rt.Join()
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	id := th.ID()
	th.Leave()

	th2, err := rt.Join()
	if err != nil {
		t.Fatalf("rejoin after Leave: %v", err)
	}
	if th2.ID() != id {
		t.Fatalf("rejoin got id %d, want reused id %d", th2.ID(), id)
	}
}
