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

// NoEra is the published hazard-era value of a thread that is not currently
// protecting any era.
const NoEra = ^uint64(0)

// Retirable is anything Hazard Eras can defer-free once no thread's
// published era still protects it: arena slots (§3.8, §4.G) and transaction
// closures (§3.7) both implement it.
type Retirable interface {
	reclaim()
}

type retiredObj struct {
	obj      Retirable
	birthEra uint64
	deathEra uint64
}

// hazardEras is the era-based reclaimer of §4.D. Cleaning is purely local —
// a thread only ever frees objects it itself retired — so retired lists
// never need synchronization; only the published era slots are shared.
type hazardEras struct {
	eras             []atomic.Uint64
	retiredUser      [][]retiredObj
	retiredClosures  [][]retiredObj
	reclaimThreshold int
}

func newHazardEras(maxThreads, reclaimThreshold int) *hazardEras {
	h := &hazardEras{
		eras:             make([]atomic.Uint64, maxThreads),
		retiredUser:      make([][]retiredObj, maxThreads),
		retiredClosures:  make([][]retiredObj, maxThreads),
		reclaimThreshold: reclaimThreshold,
	}
	for i := range h.eras {
		h.eras[i].Store(NoEra)
	}
	return h
}

// protect publishes era as the era tid is currently reading at. Per §5's
// memory-ordering rules this must happen-before any subsequent load of a
// managed pointer; atomic.Uint64.Store/Load already carry the required
// release/acquire semantics.
func (h *hazardEras) protect(tid int, era uint64) {
	h.eras[tid].Store(era)
}

// clear publishes NoEra, releasing tid's protection.
func (h *hazardEras) clear(tid int) {
	h.eras[tid].Store(NoEra)
}

func (h *hazardEras) isProtected(birth, death uint64) bool {
	for i := range h.eras {
		e := h.eras[i].Load()
		if e == NoEra {
			continue
		}
		if e >= birth && e <= death {
			return true
		}
	}
	return false
}

// retireUser appends obj to tid's user-object retired list and cleans it if
// its length exceeds the configured threshold.
func (h *hazardEras) retireUser(tid int, obj Retirable, birthEra, deathEra uint64) {
	h.retiredUser[tid] = append(h.retiredUser[tid], retiredObj{obj: obj, birthEra: birthEra, deathEra: deathEra})
	if len(h.retiredUser[tid]) > h.reclaimThreshold {
		h.cleanList(tid, &h.retiredUser[tid], deathEra)
	}
}

// retireClosure appends obj (a *txClosure wrapper) to tid's transaction
// closure retired list (§3.7: a closure is destroyed once every thread's
// protected era has advanced past its death era).
func (h *hazardEras) retireClosure(tid int, obj Retirable, birthEra, deathEra uint64) {
	h.retiredClosures[tid] = append(h.retiredClosures[tid], retiredObj{obj: obj, birthEra: birthEra, deathEra: deathEra})
	if len(h.retiredClosures[tid]) > h.reclaimThreshold {
		h.cleanList(tid, &h.retiredClosures[tid], deathEra)
	}
}

// clean walks tid's two retired lists, freeing whatever no published era
// still protects. currentEra is excluded from "safe to free" because an
// object retired at exactly the current era might still be referenced by a
// transaction still in flight at that same era (§4.D). Each list is only
// scanned once its length exceeds reclaimThreshold.
func (h *hazardEras) clean(tid int, currentEra uint64) {
	if len(h.retiredUser[tid]) > h.reclaimThreshold {
		h.cleanList(tid, &h.retiredUser[tid], currentEra)
	}
	if len(h.retiredClosures[tid]) > h.reclaimThreshold {
		h.cleanList(tid, &h.retiredClosures[tid], currentEra)
	}
}

func (h *hazardEras) cleanList(tid int, list *[]retiredObj, currentEra uint64) {
	kept := (*list)[:0]
	for _, r := range *list {
		if r.deathEra != currentEra && !h.isProtected(r.birthEra, r.deathEra) {
			r.obj.reclaim()
		} else {
			kept = append(kept, r)
		}
	}
	*list = kept
}
