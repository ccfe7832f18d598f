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

// wordOf and valueOf reinterpret a pointer-sized payload as a raw uint64 and
// back, the same bit-for-bit cast the original C++ does with (uint64_t)val.
// Every Cell[T] is required to fit in one machine word; anything wider must
// be stored as a pointer into arena-resident storage instead.
func wordOf[T any](v T) uint64 {
	var w uint64
	*(*T)(unsafe.Pointer(&w)) = v
	return w
}

func valueOf[T any](w uint64) T {
	return *(*T)(unsafe.Pointer(&w))
}

func checkWordSized[T any]() {
	var zero T
	if unsafe.Sizeof(zero) > 8 {
		panic(InvalidArgumentError{What: "Cell[T] payload must fit in 64 bits; store a pointer into arena-managed storage instead"})
	}
}
