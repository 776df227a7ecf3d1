package arith

import (
	"sort"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

// Analyzer proves facts about integer expressions under a set of variable
// range bindings. Zero value is ready to use. An Analyzer never guesses:
// every query answers true only when the fact holds for all values of the
// bound variables, and false otherwise.
type Analyzer struct {
	bounds map[*kir.Var]varBound
}

type varBound struct {
	lo    int64
	hi    int64
	hasLo bool
	hasHi bool
}

// Bind records that v ranges over [min, min+extent). Non-constant bounds
// contribute only the constant part they can; a fully symbolic bound leaves
// that side unbounded.
func (a *Analyzer) Bind(v *kir.Var, min, extent kir.Expr) {
	if a.bounds == nil {
		a.bounds = make(map[*kir.Var]varBound)
	}
	var b varBound
	if lo, ok := constValue(min); ok {
		b.lo, b.hasLo = lo, true
		if ext, ok := constValue(extent); ok {
			b.hi, b.hasHi = lo+ext-1, true
		}
	}
	a.bounds[v] = b
}

// linForm is a linearized expression: constant + sum(coeff[v] * v).
type linForm struct {
	coeff map[*kir.Var]int64
	c     int64
}

func linearize(e kir.Expr) (linForm, bool) {
	switch x := e.(type) {
	case *kir.IntImm:
		return linForm{c: x.Value}, true
	case *kir.Var:
		return linForm{coeff: map[*kir.Var]int64{x: 1}}, true
	case *kir.Binary:
		lhs, lok := linearize(x.LHS)
		rhs, rok := linearize(x.RHS)
		if !lok || !rok {
			return linForm{}, false
		}
		switch x.Op {
		case kir.OpAdd:
			return addScaled(lhs, rhs, 1), true
		case kir.OpSub:
			return addScaled(lhs, rhs, -1), true
		case kir.OpMul:
			if len(rhs.coeff) == 0 {
				return scale(lhs, rhs.c), true
			}
			if len(lhs.coeff) == 0 {
				return scale(rhs, lhs.c), true
			}
			return linForm{}, false
		default:
			return linForm{}, false
		}
	default:
		return linForm{}, false
	}
}

func addScaled(a, b linForm, k int64) linForm {
	out := linForm{c: a.c + k*b.c, coeff: make(map[*kir.Var]int64, len(a.coeff)+len(b.coeff))}
	for v, c := range a.coeff {
		out.coeff[v] = c
	}
	for v, c := range b.coeff {
		out.coeff[v] += k * c
	}
	for v, c := range out.coeff {
		if c == 0 {
			delete(out.coeff, v)
		}
	}
	return out
}

func scale(a linForm, k int64) linForm {
	out := linForm{c: a.c * k}
	if k != 0 && len(a.coeff) > 0 {
		out.coeff = make(map[*kir.Var]int64, len(a.coeff))
		for v, c := range a.coeff {
			out.coeff[v] = c * k
		}
	}
	return out
}

// Simplify canonicalizes linear integer expressions: constants fold, like
// terms merge, terms sort by variable name. Non-linear expressions are
// returned unchanged.
func (a *Analyzer) Simplify(e kir.Expr) kir.Expr {
	lf, ok := linearize(e)
	if !ok {
		return e
	}
	return lf.rebuild()
}

func (lf linForm) rebuild() kir.Expr {
	vars := make([]*kir.Var, 0, len(lf.coeff))
	for v := range lf.coeff {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	var out kir.Expr
	for _, v := range vars {
		var term kir.Expr = v
		if c := lf.coeff[v]; c != 1 {
			term = kir.Mul(kir.Int(c), v)
		}
		if out == nil {
			out = term
		} else {
			out = kir.Add(out, term)
		}
	}
	if out == nil {
		return kir.Int(lf.c)
	}
	if lf.c != 0 {
		out = kir.Add(out, kir.Int(lf.c))
	}
	return out
}

// Equal reports whether lhs and rhs are provably equal for every value of
// the free variables.
func (a *Analyzer) Equal(lhs, rhs kir.Expr) bool {
	lf, ok := linearize(kir.Sub(lhs, rhs))
	if ok {
		return lf.c == 0 && len(lf.coeff) == 0
	}
	return structEqual(lhs, rhs)
}

func structEqual(x, y kir.Expr) bool {
	switch a := x.(type) {
	case *kir.IntImm:
		b, ok := y.(*kir.IntImm)
		return ok && a.Value == b.Value
	case *kir.StringImm:
		b, ok := y.(*kir.StringImm)
		return ok && a.Value == b.Value
	case *kir.Var:
		return x == y
	case *kir.Binary:
		b, ok := y.(*kir.Binary)
		return ok && a.Op == b.Op && structEqual(a.LHS, b.LHS) && structEqual(a.RHS, b.RHS)
	case *kir.Load:
		b, ok := y.(*kir.Load)
		if !ok || a.Buf != b.Buf || !structEqual(a.Index, b.Index) {
			return false
		}
		if (a.Extent == nil) != (b.Extent == nil) {
			return false
		}
		return a.Extent == nil || structEqual(a.Extent, b.Extent)
	case *kir.Call:
		b, ok := y.(*kir.Call)
		if !ok || a.Name != b.Name || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if !structEqual(a.Args[i], b.Args[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CanProve reports whether the comparison e holds for every value of the
// bound variables. Unknown comparisons and unbound variables yield false.
func (a *Analyzer) CanProve(e kir.Expr) bool {
	bin, ok := e.(*kir.Binary)
	if !ok {
		return false
	}
	if bin.Op == kir.OpAnd {
		return a.CanProve(bin.LHS) && a.CanProve(bin.RHS)
	}
	lf, ok := linearize(kir.Sub(bin.LHS, bin.RHS))
	if !ok {
		return false
	}
	lo, hi := a.rangeOf(lf)
	switch bin.Op {
	case kir.OpLT:
		return hi.known && hi.v < 0
	case kir.OpLE:
		return hi.known && hi.v <= 0
	case kir.OpGT:
		return lo.known && lo.v > 0
	case kir.OpGE:
		return lo.known && lo.v >= 0
	case kir.OpEQ:
		return lo.known && hi.known && lo.v == 0 && hi.v == 0
	case kir.OpNE:
		return (hi.known && hi.v < 0) || (lo.known && lo.v > 0)
	default:
		return false
	}
}

type bound struct {
	v     int64
	known bool
}

// rangeOf evaluates the min and max the linear form can take under the
// current bindings.
func (a *Analyzer) rangeOf(lf linForm) (lo, hi bound) {
	lo = bound{v: lf.c, known: true}
	hi = bound{v: lf.c, known: true}
	for v, c := range lf.coeff {
		vlo := a.bounds[v]
		vhi := vlo
		if c > 0 {
			lo = addBound(lo, vlo.hasLo, c*vlo.lo)
			hi = addBound(hi, vhi.hasHi, c*vhi.hi)
		} else {
			lo = addBound(lo, vhi.hasHi, c*vhi.hi)
			hi = addBound(hi, vlo.hasLo, c*vlo.lo)
		}
	}
	return lo, hi
}

func addBound(b bound, ok bool, delta int64) bound {
	if !b.known || !ok {
		return bound{}
	}
	return bound{v: b.v + delta, known: true}
}

func constValue(e kir.Expr) (int64, bool) {
	lf, ok := linearize(e)
	if ok && len(lf.coeff) == 0 {
		return lf.c, true
	}
	return 0, false
}

// ConstValue evaluates e to an integer constant if possible.
func ConstValue(e kir.Expr) (int64, bool) { return constValue(e) }
