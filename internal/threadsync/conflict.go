// Package threadsync proves which memory accesses of a device kernel can
// race across logical threads at one storage scope and rewrites the kernel
// with the barriers needed to order them. The pass is sound but not
// complete: whenever the bounds prover cannot establish safety it inserts
// a barrier, and it relies on two documented approximations (identical
// single-point indices and same-iteration double-buffer fill writes are
// taken as race-free).
package threadsync

import (
	"github.com/kestrel-lang/kestrel/internal/access"
	"github.com/kestrel-lang/kestrel/internal/arith"
	"github.com/kestrel-lang/kestrel/internal/kir"
)

// detector decides whether a candidate access can race with any pending
// unsynchronized access. It carries the analyzer pre-bound with the thread
// ranges active at the nesting level being planned.
type detector struct {
	an *arith.Analyzer
}

func newDetector(threads []access.ThreadBinding) *detector {
	an := &arith.Analyzer{}
	for _, t := range threads {
		an.Bind(t.IterVar.Var, t.Min, t.Extent)
	}
	return &detector{an: an}
}

// conflicts reports whether candidate may race with any entry of pending.
// loopCarry marks checks of one iteration against the next, which disables
// the double-buffer exemption. projected marks a candidate whose range was
// shifted by the serial-loop projection; a shifted range that lands on a
// pending one names the same location in two different iterations, so the
// same-point exemption must not apply.
func (d *detector) conflicts(pending []access.Entry, candidate access.Entry, loopCarry, projected bool) bool {
	for _, x := range pending {
		if x.Buf != candidate.Buf || x.Buf == nil {
			continue
		}
		// Identical single-point indices are assumed race-free without a
		// separate time-disjointness proof.
		if !projected && candidate.Touched.IsSinglePoint() && x.Touched.IsSinglePoint() {
			if d.an.Equal(d.an.Simplify(candidate.Touched.Point()), d.an.Simplify(x.Touched.Point())) {
				continue
			}
		}
		if d.disjoint(x.Touched, candidate.Touched) {
			continue
		}
		// Double-buffer fill writes never conflict with same-iteration
		// reads; across iterations the exemption does not apply.
		if x.DoubleBufferWrite && candidate.Kind == access.Read && !loopCarry {
			continue
		}
		return true
	}
	return false
}

// disjoint reports whether one range provably ends before the other begins.
func (d *detector) disjoint(a, b arith.IntSet) bool {
	if a.Max() != nil && b.Min() != nil && d.an.CanProve(kir.LT(a.Max(), b.Min())) {
		return true
	}
	if b.Max() != nil && a.Min() != nil && d.an.CanProve(kir.LT(b.Max(), a.Min())) {
		return true
	}
	return false
}
