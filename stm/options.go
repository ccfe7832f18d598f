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

// Options carries the build-time boundary constants of §6. There are no
// configuration files and nothing is re-read at runtime; a Runtime is
// configured once, at construction, via functional options.
type Options struct {
	MaxThreads int

	WriteSetMaxStores            int
	WriteSetHashBuckets          int
	WriteSetArrayLookupThreshold int

	TxMaxAllocs  int
	TxMaxRetires int

	MaxReadTries int

	HazardEraReclaimThreshold int

	// HelperStride is the "8" in the original's tid*8 mod N offset heuristic
	// (§9 open questions). Kept exposed rather than hard-coded, and kept at
	// its original value rather than re-tuned.
	HelperStride int
}

// Option configures a Runtime at construction time.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxThreads:                   128,
		WriteSetMaxStores:            40960,
		WriteSetHashBuckets:          1024,
		WriteSetArrayLookupThreshold: 30,
		TxMaxAllocs:                  10240,
		TxMaxRetires:                 10240,
		MaxReadTries:                 4,
		HazardEraReclaimThreshold:    0,
		HelperStride:                 8,
	}
}

// WithMaxThreads overrides the registry/operation/result/era array size.
func WithMaxThreads(n int) Option {
	return func(o *Options) { o.MaxThreads = n }
}

// WithWriteSetLimits overrides the write-set's capacity, hash index size and
// linear-vs-hash switchover point.
func WithWriteSetLimits(maxStores, hashBuckets, arrayLookupThreshold int) Option {
	return func(o *Options) {
		o.WriteSetMaxStores = maxStores
		o.WriteSetHashBuckets = hashBuckets
		o.WriteSetArrayLookupThreshold = arrayLookupThreshold
	}
}

// WithTxLogLimits overrides the per-transaction allocation-log and
// retire-log capacities.
func WithTxLogLimits(maxAllocs, maxRetires int) Option {
	return func(o *Options) {
		o.TxMaxAllocs = maxAllocs
		o.TxMaxRetires = maxRetires
	}
}

// WithMaxReadTries overrides how many snapshot attempts ReadTx makes before
// falling through to UpdateTx (§4.F.4).
func WithMaxReadTries(n int) Option {
	return func(o *Options) { o.MaxReadTries = n }
}

// WithHazardEraReclaimThreshold overrides the minimum retired-list length
// before HazardEras.clean scans it.
func WithHazardEraReclaimThreshold(n int) Option {
	return func(o *Options) { o.HazardEraReclaimThreshold = n }
}

// WithHelperStride overrides the write-set apply offset multiplier (§9).
func WithHelperStride(n int) Option {
	return func(o *Options) { o.HelperStride = n }
}
