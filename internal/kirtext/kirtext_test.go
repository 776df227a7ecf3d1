package kirtext

import (
	"strings"
	"testing"

	"github.com/kestrel-lang/kestrel/internal/kir"
	"github.com/kestrel-lang/kestrel/internal/threadsync"
)

const sample = `
format: 1.0.0
name: stage
params: [n]
buffers:
  - {name: A, elem: f32, scope: global}
  - {name: S, elem: f32, scope: shared}
  - {name: L, elem: f32, scope: local}
body:
  - thread_extent: {var: tx, tag: threadIdx.x, extent: "128"}
    body:
      - store: {buf: S, index: "0", extent: "n", value: "0"}
      - store: {buf: L, index: "tx", value: "S[tx - 1]"}
`

func TestDecodeSample(t *testing.T) {
	m, err := Decode([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "stage" {
		t.Errorf("name = %q", m.Name)
	}
	attr, ok := m.Body.(*kir.AttrStmt)
	if !ok || attr.Kind != kir.AttrThreadExtent {
		t.Fatalf("root = %T, want thread extent", m.Body)
	}
	if attr.IterVar.Tag != "threadIdx.x" {
		t.Errorf("tag = %q", attr.IterVar.Tag)
	}
	seq, ok := attr.Body.(*kir.SeqStmt)
	if !ok || len(seq.Stmts) != 2 {
		t.Fatalf("body = %T, want two statements", attr.Body)
	}
	bulk, ok := seq.Stmts[0].(*kir.StoreStmt)
	if !ok || bulk.Extent == nil || bulk.Buf.Name != "S" {
		t.Fatalf("first statement should be a bulk store to S")
	}
	if bulk.Buf.Scope.Rank != kir.RankShared {
		t.Errorf("scope = %v, want shared", bulk.Buf.Scope)
	}
}

func TestDecodeThenSyncPipeline(t *testing.T) {
	m, err := Decode([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if err := threadsync.Apply(m, "shared"); err != nil {
		t.Fatal(err)
	}
	out := kir.Format(m.Body)
	if !strings.Contains(out, `storage_sync("shared")`) {
		t.Fatalf("expected a shared barrier in:\n%s", out)
	}
}

func TestDecodeRejectsUnsupportedFormat(t *testing.T) {
	for _, v := range []string{"2.0.0", "0.9.0", "not-a-version", ""} {
		src := strings.Replace(sample, "format: 1.0.0", "format: "+v, 1)
		if v == "" {
			src = strings.Replace(sample, "format: 1.0.0\n", "", 1)
		}
		if _, err := Decode([]byte(src)); err == nil {
			t.Errorf("format %q should be rejected", v)
		}
	}
}

func TestDecodeAcceptsNewerPatch(t *testing.T) {
	src := strings.Replace(sample, "format: 1.0.0", "format: 1.3.2", 1)
	if _, err := Decode([]byte(src)); err != nil {
		t.Errorf("1.3.2 should satisfy %s: %v", FormatConstraint, err)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"unknown variable", `
format: 1.0.0
buffers: [{name: B, elem: f32, scope: shared}]
body:
  - store: {buf: B, index: "oops", value: "0"}
`},
		{"unknown buffer", `
format: 1.0.0
body:
  - store: {buf: B, index: "0", value: "0"}
`},
		{"bad scope", `
format: 1.0.0
buffers: [{name: B, elem: f32, scope: texture}]
body: []
`},
		{"bad loop kind", `
format: 1.0.0
params: [n]
body:
  - for: {var: i, extent: "n", kind: sideways}
    body: []
`},
		{"statement without kind", `
format: 1.0.0
body:
  - then: []
`},
	}
	for _, tc := range cases {
		if _, err := Decode([]byte(tc.src)); err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
	}
}

func TestParseExpr(t *testing.T) {
	sym := newSymtab()
	i := &kir.Var{Name: "i", Type: kir.TInt32}
	sym.vars["i"] = i
	sym.bufs["B"] = &kir.Buffer{Name: "B", Elem: kir.TFloat32}

	e, err := parseExpr("B[2*i + 1] < min(i, 3)", sym)
	if err != nil {
		t.Fatal(err)
	}
	cmp, ok := e.(*kir.Binary)
	if !ok || cmp.Op != kir.OpLT {
		t.Fatalf("got %s", kir.FormatExpr(e))
	}
	if _, ok := cmp.LHS.(*kir.Load); !ok {
		t.Fatalf("lhs = %s, want a load", kir.FormatExpr(cmp.LHS))
	}
	if m, ok := cmp.RHS.(*kir.Binary); !ok || m.Op != kir.OpMin {
		t.Fatalf("rhs = %s, want min", kir.FormatExpr(cmp.RHS))
	}

	if _, err := parseExpr("B[0 : 8]", sym); err != nil {
		t.Errorf("range load: %v", err)
	}
	if _, err := parseExpr(`storage_sync("shared")`, sym); err != nil {
		t.Errorf("intrinsic call: %v", err)
	}
	for _, bad := range []string{"", "i +", "B[", "unknown", "i @ 2", `"open`} {
		if _, err := parseExpr(bad, sym); err == nil {
			t.Errorf("%q should fail to parse", bad)
		}
	}
}
