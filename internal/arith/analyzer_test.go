package arith

import (
	"testing"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

func intVar(name string) *kir.Var {
	return &kir.Var{Name: name, Type: kir.TInt32}
}

func TestSimplifyFoldsConstants(t *testing.T) {
	an := &Analyzer{}
	e := an.Simplify(kir.Add(kir.Int(2), kir.Mul(kir.Int(3), kir.Int(4))))
	v, ok := ConstValue(e)
	if !ok || v != 14 {
		t.Fatalf("got %s, want 14", kir.FormatExpr(e))
	}
}

func TestSimplifyMergesLikeTerms(t *testing.T) {
	an := &Analyzer{}
	x := intVar("x")
	// (x + 1) + (x - 1) -> 2*x
	e := an.Simplify(kir.Add(kir.Add(x, kir.Int(1)), kir.Sub(x, kir.Int(1))))
	bin, ok := e.(*kir.Binary)
	if !ok || bin.Op != kir.OpMul {
		t.Fatalf("got %s, want 2*x", kir.FormatExpr(e))
	}
	if c, ok := ConstValue(bin.LHS); !ok || c != 2 {
		t.Fatalf("got %s, want coefficient 2", kir.FormatExpr(e))
	}
	if bin.RHS != kir.Expr(x) {
		t.Fatalf("got %s, want 2*x", kir.FormatExpr(e))
	}
}

func TestEqual(t *testing.T) {
	an := &Analyzer{}
	x, y := intVar("x"), intVar("y")
	cases := []struct {
		name string
		lhs  kir.Expr
		rhs  kir.Expr
		want bool
	}{
		{"commuted sum", kir.Add(x, kir.Int(1)), kir.Add(kir.Int(1), x), true},
		{"distinct vars", x, y, false},
		{"offset", kir.Add(x, kir.Int(1)), x, false},
		{"cancelled", kir.Sub(kir.Add(x, y), y), x, true},
	}
	for _, tc := range cases {
		if got := an.Equal(tc.lhs, tc.rhs); got != tc.want {
			t.Errorf("%s: Equal(%s, %s) = %v, want %v", tc.name,
				kir.FormatExpr(tc.lhs), kir.FormatExpr(tc.rhs), got, tc.want)
		}
	}
}

func TestCanProveWithBoundVar(t *testing.T) {
	an := &Analyzer{}
	tx := intVar("tx")
	an.Bind(tx, kir.Int(0), kir.Int(128))

	if !an.CanProve(kir.LT(tx, kir.Int(128))) {
		t.Error("tx < 128 should be provable for tx in [0, 128)")
	}
	if an.CanProve(kir.LT(tx, kir.Int(127))) {
		t.Error("tx < 127 must not be provable, tx can be 127")
	}
	if !an.CanProve(kir.Bin(kir.OpGE, tx, kir.Int(0))) {
		t.Error("tx >= 0 should be provable")
	}
	// The shifted copy stays strictly ahead regardless of bindings.
	if !an.CanProve(kir.LT(tx, kir.Add(tx, kir.Int(1)))) {
		t.Error("tx < tx+1 should be provable")
	}
}

func TestCanProveConservativeOnUnbound(t *testing.T) {
	an := &Analyzer{}
	n := intVar("n")
	if an.CanProve(kir.LT(n, kir.Int(1000))) {
		t.Error("comparison over an unbound variable must not be provable")
	}
	if an.CanProve(kir.LT(kir.LoadOf(&kir.Buffer{Name: "B"}, n), kir.Int(1))) {
		t.Error("non-linear expressions must not be provable")
	}
}

func TestCanProveConjunction(t *testing.T) {
	an := &Analyzer{}
	tx := intVar("tx")
	an.Bind(tx, kir.Int(0), kir.Int(8))
	e := kir.And(kir.LT(tx, kir.Int(8)), kir.Bin(kir.OpGE, tx, kir.Int(0)))
	if !an.CanProve(e) {
		t.Error("conjunction of provable facts should be provable")
	}
}

func TestBindSymbolicExtent(t *testing.T) {
	an := &Analyzer{}
	i, n := intVar("i"), intVar("n")
	an.Bind(i, kir.Int(0), n)
	if !an.CanProve(kir.Bin(kir.OpGE, i, kir.Int(0))) {
		t.Error("lower bound should survive a symbolic extent")
	}
	if an.CanProve(kir.LT(i, kir.Int(1))) {
		t.Error("upper bound must be unknown under a symbolic extent")
	}
}
