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

import (
	"fmt"

	units "github.com/docker/go-units"
)

// InvalidArgumentError is raised (as a recoverable panic) when a transaction
// is asked to operate on a disallowed value, such as a nil key.
type InvalidArgumentError struct {
	What string
}

func (e InvalidArgumentError) Error() string {
	return "stm: invalid argument: " + e.What
}

// CapacityExceededError is raised when a transaction grows a write-set,
// allocation log or retire log past its configured limit. It is a fatal,
// boundary-level condition: raise the corresponding Option or shrink the
// transaction.
type CapacityExceededError struct {
	Log      string
	Limit    int
	ItemSize uint64
}

func (e CapacityExceededError) Error() string {
	if e.ItemSize == 0 {
		return fmt.Sprintf("stm: %s capacity exceeded (limit %d)", e.Log, e.Limit)
	}
	return fmt.Sprintf("stm: %s capacity exceeded (limit %d entries, ~%s)", e.Log, e.Limit, units.BytesSize(float64(uint64(e.Limit)*e.ItemSize)))
}

// ThreadRegistryFullError is raised when Join is called while MaxThreads
// threads are already registered.
type ThreadRegistryFullError struct {
	MaxThreads int
}

func (e ThreadRegistryFullError) Error() string {
	return fmt.Sprintf("stm: thread registry full (max %d threads)", e.MaxThreads)
}

// abortSignal is the internal, never-exported panic value used to unwind a
// speculative transaction attempt back to its retry loop. It carries no
// payload; the snapshot seq it aborted against is already recorded on the
// txAttempt that panicked.
type abortSignal struct{}

var theAbortSignal = abortSignal{}
