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
	"sync/atomic"
)

// idxBits is the width reserved for the committing thread's id inside
// curTx (§3.1: "idx (10 bits)"); the remaining high bits carry seq.
const idxBits = 10
const idxMask = (uint64(1) << idxBits) - 1

func encodeTx(seq uint64, idx int) uint64 {
	return (seq << idxBits) | (uint64(idx) & idxMask)
}

func decodeTx(v uint64) (seq uint64, idx int) {
	return v >> idxBits, int(v & idxMask)
}

// txClosure is the boxed transaction body the operation array (§3.3, §4.E)
// announces. fn returns the word-encoded result. The coordinator does not
// retire closures through Hazard Eras: an announced closure stays referenced
// by its thread's operation slot until that thread announces the next one,
// and Go's GC collects it once no helper still holds it.
type txClosure struct {
	fn func() uint64
}

// reclaim makes txClosure satisfy Retirable (for hazardEras.retireClosure):
// there is nothing to release beyond the reference itself, so it only drops
// fn.
func (c *txClosure) reclaim() {
	c.fn = nil
}

// txAttempt is one thread's tentative, speculative transaction: a snapshot
// seq, the write-set being built against it, and the scratch allocation and
// retire logs for rollback-on-abort (§3.5, §4.F).
type txAttempt struct {
	rt          *Runtime
	th          *Thread
	snapshotSeq uint64
	readOnly    bool
	ws          *WriteSet
	allocLog    []allocLogEntry
	retireLog   []retireLogEntry
	maxAllocs   int
	maxRetires  int
}

func (a *txAttempt) loadCell(addr *rawCell) uint64 {
	if val, _, found := a.lookupLogged(addr); found {
		return val
	}
	val, seq := addr.load()
	if seq > a.snapshotSeq {
		panic(theAbortSignal)
	}
	return val
}

// lookupLogged is the ok-returning sibling of WriteSet.lookupAddr, used so
// loadCell never confuses "absent" with a logged value that happens to
// equal the sentinel fallback.
func (a *txAttempt) lookupLogged(addr *rawCell) (val uint64, seq uint64, found bool) {
	ws := a.ws
	if len(ws.log) <= ws.arrayLookupThreshold {
		for i := range ws.log {
			if ws.log[i].addr == addr {
				return ws.log[i].val, a.snapshotSeq, true
			}
		}
		return 0, 0, false
	}
	if pos, ok := ws.indexLookup(addr); ok {
		return ws.log[pos].val, a.snapshotSeq, true
	}
	return 0, 0, false
}

func (a *txAttempt) storeCell(addr *rawCell, val uint64) {
	a.ws.addOrReplace(addr, val)
	a.readOnly = false
}

func (a *txAttempt) recordAlloc(s Retirable) {
	if len(a.allocLog) >= a.maxAllocs {
		panic(CapacityExceededError{Log: "allocation log", Limit: a.maxAllocs})
	}
	a.allocLog = append(a.allocLog, allocLogEntry{slot: s})
}

func (a *txAttempt) recordRetire(obj Retirable, birthEra uint64) {
	if len(a.retireLog) >= a.maxRetires {
		panic(CapacityExceededError{Log: "retire log", Limit: a.maxRetires})
	}
	a.retireLog = append(a.retireLog, retireLogEntry{obj: obj, birthEra: birthEra})
}

// rollback discards every tentative effect of an aborted attempt: allocated
// slots are poisoned and returned to their arena, retired objects are
// forgotten (their destructor already ran logically, but nothing published
// ever observed them, per §4.G), and the write-set is cleared.
func (a *txAttempt) rollback() {
	for _, e := range a.allocLog {
		e.slot.reclaim()
	}
	a.allocLog = a.allocLog[:0]
	a.retireLog = a.retireLog[:0]
	a.ws.reset()
}

// Runtime bundles the three process-wide collaborators the distilled spec
// treats as singletons (Thread Registry, Hazard Eras, Coordinator) into one
// explicit value, per DESIGN NOTES §9 — no hidden global construction beyond
// the one conventionally-shared Default instance (§6, stm.go).
type Runtime struct {
	opts     Options
	registry *registry
	hazard   *hazardEras

	curTx atomic.Uint64

	operations []slot[*txClosure]
	results    []slot[uint64]

	writeSets     []*WriteSet // owner's own in-progress buffer, per tid
	helperScratch []*WriteSet // scratch buffer for copy-then-apply, per tid

	// published holds, per tid, an immutable snapshot of the write-set that
	// tid most recently tagged for commit, alongside the seq it was tagged
	// for. commit stores here before attempting its CAS, so any helper that
	// later observes curTx naming (seq, tid) is guaranteed to see a snapshot
	// already tagged for that exact seq (or a newer one, which helpApply's
	// seq check rejects) — never the live, concurrently-mutated WriteSet in
	// writeSets[tid] (§3.4, §4.F.2).
	published []atomic.Pointer[publishedWriteSet]

	// threads maps a dense thread id back to its *Thread handle, so a
	// helper replaying another thread's announced closure (which captured
	// that thread's handle when it was built, per §4.E) can retarget the
	// call into the helper's own in-progress attempt: runAttempt's transform
	// phase swaps the victim's Thread.attempt to the committer's attempt for
	// the duration of the replay, then restores it (§4.F.3).
	threads []atomic.Pointer[Thread]

	appliedSeq atomic.Uint64
}

// publishedWriteSet is the seq-tagged, immutable write-set snapshot a
// commit publishes for helpers to apply. The seq tag lets helpApply
// distinguish "this snapshot is the one committed at the seq I'm helping"
// from a stale snapshot left behind by an earlier or since-superseded
// attempt by the same tid.
type publishedWriteSet struct {
	seq uint64
	log []logEntry
}

// New constructs a Runtime configured by opts, defaulting per §6's table.
func New(opts ...Option) *Runtime {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	rt := &Runtime{
		opts:          o,
		registry:      newRegistry(o.MaxThreads),
		hazard:        newHazardEras(o.MaxThreads, o.HazardEraReclaimThreshold),
		operations:    make([]slot[*txClosure], o.MaxThreads),
		results:       make([]slot[uint64], o.MaxThreads),
		writeSets:     make([]*WriteSet, o.MaxThreads),
		helperScratch: make([]*WriteSet, o.MaxThreads),
		published:     make([]atomic.Pointer[publishedWriteSet], o.MaxThreads),
		threads:       make([]atomic.Pointer[Thread], o.MaxThreads),
	}
	for i := 0; i < o.MaxThreads; i++ {
		rt.writeSets[i] = newWriteSet(o)
		rt.helperScratch[i] = newWriteSet(o)
	}
	rt.curTx.Store(encodeTx(1, 0))
	rt.appliedSeq.Store(1)
	return rt
}

// Join reserves a dense thread id and returns the handle a goroutine threads
// through every subsequent UpdateTx/ReadTx call (§4.A).
func (rt *Runtime) Join() (*Thread, error) {
	tid, err := rt.registry.join()
	if err != nil {
		return nil, err
	}
	th := &Thread{rt: rt, tid: tid}
	rt.threads[tid].Store(th)
	return th, nil
}

func (rt *Runtime) newAttempt(th *Thread) *txAttempt {
	seq, _ := decodeTx(rt.curTx.Load())
	rt.hazard.protect(th.tid, seq)
	// Re-read after publishing our era, per §5's ordering rule: the era
	// publication must precede the snapshot it protects.
	seq, idx := decodeTx(rt.curTx.Load())
	// Make sure the write-set committed at seq is applied before reading
	// cells against it.
	rt.helpApply(th.tid, idx, seq)
	ws := rt.writeSets[th.tid]
	ws.reset()
	return &txAttempt{
		rt:          rt,
		th:          th,
		snapshotSeq: seq,
		readOnly:    true,
		ws:          ws,
		maxAllocs:   rt.opts.TxMaxAllocs,
		maxRetires:  rt.opts.TxMaxRetires,
	}
}

// helpApply brings cell state up to date with the write-set most recently
// published at seq by thread idx, if it has not already been applied. Any
// number of threads may call this concurrently and redundantly: each
// per-cell rawStore is itself seq-guarded, so redundant application is
// idempotent and harmless (§4.F.2, §9).
//
// It reads rt.published[idx], never rt.writeSets[idx]: the former is an
// immutable snapshot tagged with the seq it was published for, so a stale
// or not-yet-updated read is merely ignored (the seq tag won't match) rather
// than racing the owner, who may already be resetting writeSets[idx] to
// build its next attempt by the time a helper gets around to reading it.
func (rt *Runtime) helpApply(helperTid, idx int, seq uint64) {
	if rt.appliedSeq.Load() >= seq {
		return
	}
	published := rt.published[idx].Load()
	if published == nil || published.seq != seq {
		return
	}
	scratch := rt.helperScratch[helperTid]
	scratch.copyFromLog(published.log)
	scratch.apply(seq, helperTid)
	for {
		old := rt.appliedSeq.Load()
		if old >= seq {
			return
		}
		if rt.appliedSeq.CompareAndSwap(old, seq) {
			return
		}
	}
}

// runAttempt executes f and the transform-phase replay of other threads'
// unfinished announced operations within one speculative attempt, then
// tries to commit. It returns (done, result): done is true when this
// attempt committed, and result is then the word-encoded result of th's own
// closure. When the attempt aborted it returns (false, 0); updateTx checks
// whether a helper already finished th's operation before retrying.
func (rt *Runtime) runAttempt(th *Thread, myClosure *txClosure) (done bool, result uint64) {
	curSeq, curIdx := decodeTx(rt.curTx.Load())
	rt.helpApply(th.tid, curIdx, curSeq)

	attempt := rt.newAttempt(th)
	th.attempt.Store(attempt)
	defer th.attempt.Store(nil)

	committed := false
	var selfResult uint64
	func() {
		defer func() {
			if r := recover(); r != nil {
				attempt.rollback()
				if _, ok := r.(abortSignal); ok {
					return
				}
				rt.hazard.clear(th.tid)
				panic(r)
			}
			committed = true
		}()

		selfResult = myClosure.fn()

		// Transform phase (§4.F.3): replay every other thread's unfinished
		// announced operation inside this same attempt, so one commit CAS
		// publishes all of them atomically. The closure was built with
		// UpdateTx(victimTh, ...) and so closes over victimTh, not th — left
		// alone, its Cell/tmDelete calls would route through victimTh's own
		// attempt (nil if victimTh is idle, or victimTh's own in-flight one
		// if it is concurrently retrying), never through this attempt. We
		// retarget victimTh.attempt to ours for the duration of the replay
		// so the helped writes land in this attempt's write-set and ride
		// this commit's single CAS, then restore it.
		helped := make(map[int]uint64)
		active := rt.registry.active()
		for t := 0; t < active; t++ {
			if t == th.tid {
				continue
			}
			closure, opSeq := rt.operations[t].load()
			if closure == nil {
				continue
			}
			_, resSeq := rt.results[t].load()
			if resSeq > opSeq {
				continue // already complete
			}
			victimTh := rt.threads[t].Load()
			if victimTh == nil {
				continue
			}
			func() {
				prev := victimTh.attempt.Swap(attempt)
				defer victimTh.attempt.Store(prev)
				helped[t] = closure.fn()
			}()
		}

		rt.commit(th, attempt, myClosure, selfResult, helped)
	}()

	if !committed {
		return false, 0
	}
	return true, selfResult
}

// commit performs the single CAS that serializes this attempt, applies its
// write-set, stamps retired objects' death eras, and publishes results for
// this thread and everyone it helped. If read-only (no cell was ever
// stored to, by this thread or any helped one), the CAS is skipped entirely
// per §4.C's read-only edge case: there is nothing to serialize.
func (rt *Runtime) commit(th *Thread, attempt *txAttempt, myClosure *txClosure, selfResult uint64, helped map[int]uint64) {
	if attempt.ws.readOnly {
		rt.publishResult(th.tid, selfResult)
		for t, v := range helped {
			rt.publishResult(t, v)
		}
		attempt.allocLog = attempt.allocLog[:0]
		attempt.retireLog = attempt.retireLog[:0]
		return
	}

	for {
		old := rt.curTx.Load()
		oldSeq, _ := decodeTx(old)
		newSeq := oldSeq + 1
		newVal := encodeTx(newSeq, th.tid)

		// Publish the snapshot this candidate seq would commit before
		// attempting the CAS, not after: a helper that observes curTx
		// naming (newSeq, th.tid) must never be able to find rt.published
		// still holding an older generation's snapshot (§4.F.2 step 1).
		// If this CAS loses the race, the tagged seq below is simply never
		// the one curTx ends up naming for th.tid, so no helper ever reads
		// it — the retried attempt publishes a fresh one for its own
		// candidate seq.
		rt.published[th.tid].Store(&publishedWriteSet{seq: newSeq, log: attempt.ws.snapshot()})

		// The CAS only runs from the seq this attempt's snapshot was taken
		// at; a stale snapshot takes the lost-race path below.
		if oldSeq == attempt.snapshotSeq && rt.curTx.CompareAndSwap(old, newVal) {
			trace("tid=%d committed seq=%d", th.tid, newSeq)
			attempt.ws.apply(newSeq, th.tid)
			rt.appliedSeq.Store(newSeq)
			for _, e := range attempt.retireLog {
				rt.hazard.retireUser(th.tid, e.obj, e.birthEra, newSeq)
			}
			attempt.retireLog = attempt.retireLog[:0]
			attempt.allocLog = attempt.allocLog[:0]
			rt.hazard.clean(th.tid, newSeq)

			rt.publishResult(th.tid, selfResult)
			for t, v := range helped {
				rt.publishResult(t, v)
			}
			return
		}
		// Lost the race: help the winner catch cell state up, discard this
		// attempt's speculative work, and let the caller retry against a
		// fresh snapshot — the winner's own transform phase may already
		// have completed our announced operation for us in the meantime.
		winnerSeq, winnerIdx := decodeTx(rt.curTx.Load())
		rt.helpApply(th.tid, winnerIdx, winnerSeq)
		attempt.rollback()
		panic(theAbortSignal)
	}
}

func (rt *Runtime) publishResult(tid int, val uint64) {
	_, opSeq := rt.operations[tid].load()
	rt.results[tid].rawStore(val, opSeq+1)
}

// UpdateTx runs f as a read-write transaction and returns its result. f may
// be invoked more than once (every retried or helped-out attempt re-runs
// it), so f must have no externally-visible side effects other than through
// Cell/tmNew/tmDelete operations on th.
func UpdateTx[R any](th *Thread, f func() R) R {
	checkWordSized[R]()
	closure := &txClosure{fn: func() uint64 { return wordOf(f()) }}
	return valueOf[R](th.rt.updateTx(th, closure))
}

func (rt *Runtime) updateTx(th *Thread, closure *txClosure) uint64 {
	_, resSeq := rt.results[th.tid].load()
	rt.operations[th.tid].store(closure, resSeq)

	for {
		res, resSeq2 := rt.results[th.tid].load()
		_, opSeq := rt.operations[th.tid].load()
		if resSeq2 > opSeq {
			return res
		}
		if done, result := rt.runAttempt(th, closure); done {
			return result
		}
	}
}

// ReadTx runs f as a read-only transaction, retrying up to MaxReadTries
// snapshots before falling through to UpdateTx so progress stays bounded
// (§4.F.4). A read-only attempt runs f against a private write-set that is
// discarded afterwards; it never runs the transform phase for other threads'
// announced operations and never commits. It succeeds when curTx still names
// the snapshot seq after f returns.
func ReadTx[R any](th *Thread, f func() R) R {
	checkWordSized[R]()
	rt := th.rt
	for try := 0; try < rt.opts.MaxReadTries; try++ {
		seq, idx := decodeTx(rt.curTx.Load())
		rt.helpApply(th.tid, idx, seq)
		rt.hazard.protect(th.tid, seq)
		ok, result := readAttempt(th, f, seq)
		rt.hazard.clear(th.tid)
		if ok {
			return result
		}
	}
	return UpdateTx(th, f)
}

func readAttempt[R any](th *Thread, f func() R, snapshotSeq uint64) (ok bool, result R) {
	defer func() {
		if r := recover(); r != nil {
			if _, isAbort := r.(abortSignal); isAbort {
				ok = false
				return
			}
			panic(r)
		}
	}()

	attempt := &txAttempt{
		rt:          th.rt,
		th:          th,
		snapshotSeq: snapshotSeq,
		readOnly:    true,
		ws:          newWriteSet(th.rt.opts),
	}
	th.attempt.Store(attempt)
	defer th.attempt.Store(nil)

	result = f()

	after, _ := decodeTx(th.rt.curTx.Load())
	if after != snapshotSeq {
		return false, result
	}
	return true, result
}
