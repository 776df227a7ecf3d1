// Package arith provides the interval sets and the conservative bounds
// prover that synchronization planning relies on. The prover only ever
// answers "proven" or "unknown"; callers must treat "unknown" as unsafe.
package arith

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

// IntSet is a possibly-symbolic integer interval [Min, Max] over buffer
// indices. A nil bound means unbounded on that side.
type IntSet struct {
	min kir.Expr
	max kir.Expr
}

// SinglePoint returns the set containing exactly e.
func SinglePoint(e kir.Expr) IntSet { return IntSet{min: e, max: e} }

// Interval returns the set [min, max]. Either bound may be nil for
// unbounded.
func Interval(min, max kir.Expr) IntSet { return IntSet{min: min, max: max} }

// Everything returns the set of all integers.
func Everything() IntSet { return IntSet{} }

// Min returns the lower bound expression, or nil if unbounded below.
func (s IntSet) Min() kir.Expr { return s.min }

// Max returns the upper bound expression, or nil if unbounded above.
func (s IntSet) Max() kir.Expr { return s.max }

// IsSinglePoint reports whether both bounds are the same expression node.
// Sets built by SinglePoint satisfy this; sets whose bounds merely happen
// to be equal in value do not, which is the conservative direction.
func (s IntSet) IsSinglePoint() bool { return s.min != nil && s.min == s.max }

// Point returns the single contained expression; valid only when
// IsSinglePoint reports true.
func (s IntSet) Point() kir.Expr { return s.min }

// IsEverything reports whether the set is unbounded on both sides.
func (s IntSet) IsEverything() bool { return s.min == nil && s.max == nil }

func (s IntSet) String() string {
	if s.IsEverything() {
		return "[-inf, +inf]"
	}
	if s.IsSinglePoint() {
		return fmt.Sprintf("{%s}", kir.FormatExpr(s.min))
	}
	lo, hi := "-inf", "+inf"
	if s.min != nil {
		lo = kir.FormatExpr(s.min)
	}
	if s.max != nil {
		hi = kir.FormatExpr(s.max)
	}
	return fmt.Sprintf("[%s, %s]", lo, hi)
}

// SubstituteVar replaces v by repl in both bounds. Used for loop-carry
// projection, where the substitution is exact rather than a relaxation.
func (s IntSet) SubstituteVar(v *kir.Var, repl kir.Expr) IntSet {
	if s.IsSinglePoint() {
		return SinglePoint(kir.SubstituteVar(s.min, v, repl))
	}
	out := IntSet{}
	if s.min != nil {
		out.min = kir.SubstituteVar(s.min, v, repl)
	}
	if s.max != nil {
		out.max = kir.SubstituteVar(s.max, v, repl)
	}
	return out
}

// Relax widens the set so it covers every value v takes in [lo, hi].
// Bounds that are not linear in v widen to unbounded.
func (s IntSet) Relax(v *kir.Var, lo, hi kir.Expr) IntSet {
	out := IntSet{}
	if s.min != nil {
		out.min = relaxBound(s.min, v, lo, hi, false)
	}
	if s.max != nil {
		out.max = relaxBound(s.max, v, lo, hi, true)
	}
	return out
}

// relaxBound returns the bound with v replaced by whichever of lo/hi gives
// the wanted extreme, or nil (unbounded) when the dependence on v is not
// linear.
func relaxBound(e kir.Expr, v *kir.Var, lo, hi kir.Expr, wantUpper bool) kir.Expr {
	lf, ok := linearize(e)
	if !ok {
		if !kir.UsesVar(e, v) {
			return e
		}
		return nil
	}
	c := lf.coeff[v]
	if c == 0 {
		return e
	}
	repl := lo
	if (c > 0) == wantUpper {
		repl = hi
	}
	if repl == nil {
		return nil
	}
	return kir.SubstituteVar(e, v, repl)
}
