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

// Package stm implements the OneFile wait-free software transactional
// memory core: a consensus-style commit protocol built on a single CAS,
// a per-thread redo-log write-set, Hazard-Eras based reclamation, and
// thread-announcement helping so a stalled thread's transaction is still
// completed by others.
//
// There is no process-wide hidden singleton: every collaborator (thread
// registry, write-sets, hazard eras, the commit sequence) lives on a
// *Runtime value constructed by New. Default is the one conventionally
// shared package-level instance, for callers who only ever need a single
// runtime per process.
package stm

// Default is the package-level Runtime most callers use, constructed with
// every boundary constant at its §6 default. Construct a private *Runtime
// via New instead when a process needs more than one independently
// configured STM instance.
var Default = New()

// Join reserves a thread handle on Default.
func Join() (*Thread, error) {
	return Default.Join()
}
