package arith

import (
	"testing"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

func TestSinglePoint(t *testing.T) {
	x := intVar("x")
	s := SinglePoint(x)
	if !s.IsSinglePoint() {
		t.Fatal("SinglePoint set should report IsSinglePoint")
	}
	if s.Point() != kir.Expr(x) {
		t.Fatal("Point should return the original expression")
	}
	iv := Interval(kir.Int(0), kir.Int(7))
	if iv.IsSinglePoint() {
		t.Fatal("a genuine interval must not report IsSinglePoint")
	}
}

func TestSubstituteVarKeepsPointness(t *testing.T) {
	i := intVar("i")
	s := SinglePoint(kir.Add(i, kir.Int(1)))
	next := s.SubstituteVar(i, kir.Add(i, kir.Int(1)))
	if !next.IsSinglePoint() {
		t.Fatal("substitution must keep a point a point")
	}
	an := &Analyzer{}
	if !an.Equal(next.Point(), kir.Add(i, kir.Int(2))) {
		t.Fatalf("got %s, want i+2", kir.FormatExpr(next.Point()))
	}
}

func TestSubstituteVarAbsentVarSharesNodes(t *testing.T) {
	i, j := intVar("i"), intVar("j")
	s := SinglePoint(kir.Add(j, kir.Int(1)))
	out := s.SubstituteVar(i, kir.Int(0))
	if out != s {
		t.Fatal("substituting an absent var should return an identical set")
	}
}

func TestRelaxAscending(t *testing.T) {
	i := intVar("i")
	an := &Analyzer{}
	s := SinglePoint(i).Relax(i, kir.Int(0), kir.Int(7))
	if s.IsSinglePoint() {
		t.Fatal("relaxing over a range must widen the point")
	}
	if !an.Equal(s.Min(), kir.Int(0)) || !an.Equal(s.Max(), kir.Int(7)) {
		t.Fatalf("got %s, want [0, 7]", s)
	}
}

func TestRelaxDescending(t *testing.T) {
	i := intVar("i")
	an := &Analyzer{}
	// 10 - i is decreasing in i, so the lower bound comes from i = 7.
	s := SinglePoint(kir.Sub(kir.Int(10), i)).Relax(i, kir.Int(0), kir.Int(7))
	if !an.Equal(s.Min(), kir.Int(3)) || !an.Equal(s.Max(), kir.Int(10)) {
		t.Fatalf("got %s, want [3, 10]", s)
	}
}

func TestRelaxNonLinearWidensToUnbounded(t *testing.T) {
	i := intVar("i")
	b := &kir.Buffer{Name: "idx", Elem: kir.TInt32}
	s := SinglePoint(kir.LoadOf(b, i)).Relax(i, kir.Int(0), kir.Int(7))
	if s.Min() != nil || s.Max() != nil {
		t.Fatalf("got %s, want unbounded", s)
	}
}

func TestRelaxUntouchedVar(t *testing.T) {
	i, tx := intVar("i"), intVar("tx")
	s := SinglePoint(tx).Relax(i, kir.Int(0), kir.Int(7))
	if !s.IsSinglePoint() {
		t.Fatalf("got %s, want the untouched point tx", s)
	}
}
