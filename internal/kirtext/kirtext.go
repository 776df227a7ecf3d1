// Package kirtext reads kernels from the YAML interchange form used by the
// command-line tools and tests. Files carry a semver format field; a file
// whose format the tool does not support is rejected up front rather than
// misparsed.
package kirtext

import (
	"fmt"
	"os"

	semver "github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

// FormatConstraint is the range of file format versions this build reads.
const FormatConstraint = ">= 1.0.0, < 2.0.0"

type fileKernel struct {
	Format  string       `yaml:"format"`
	Name    string       `yaml:"name"`
	Params  []string     `yaml:"params"`
	Buffers []fileBuffer `yaml:"buffers"`
	Body    []stmtSpec   `yaml:"body"`
}

type fileBuffer struct {
	Name  string `yaml:"name"`
	Elem  string `yaml:"elem"`
	Scope string `yaml:"scope"`
}

// stmtSpec is one statement in file form; exactly one of the kind fields
// is set.
type stmtSpec struct {
	ThreadExtent *threadSpec `yaml:"thread_extent"`
	For          *forSpec    `yaml:"for"`
	If           *ifSpec     `yaml:"if"`
	Store        *storeSpec  `yaml:"store"`
	Eval         string      `yaml:"eval"`
	DoubleBuffer *bufSpec    `yaml:"double_buffer_write"`

	Body []stmtSpec `yaml:"body"`
	Then []stmtSpec `yaml:"then"`
	Else []stmtSpec `yaml:"else"`
}

type threadSpec struct {
	Var    string `yaml:"var"`
	Tag    string `yaml:"tag"`
	Extent string `yaml:"extent"`
}

type forSpec struct {
	Var    string `yaml:"var"`
	Min    string `yaml:"min"`
	Extent string `yaml:"extent"`
	Kind   string `yaml:"kind"`
}

type ifSpec struct {
	Cond string `yaml:"cond"`
}

type storeSpec struct {
	Buf    string `yaml:"buf"`
	Index  string `yaml:"index"`
	Extent string `yaml:"extent"`
	Value  string `yaml:"value"`
}

type bufSpec struct {
	Buf string `yaml:"buf"`
}

// LoadFile reads and decodes one kernel file.
func LoadFile(path string) (*kir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Decode builds a module from YAML kernel text.
func Decode(data []byte) (*kir.Module, error) {
	var f fileKernel
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("kirtext: %w", err)
	}
	if err := checkFormat(f.Format); err != nil {
		return nil, err
	}
	d := &decoder{m: kir.NewModule(f.Name), sym: newSymtab()}
	for _, p := range f.Params {
		if err := d.declareVar(p, &kir.Var{Name: p, Type: kir.TInt32}); err != nil {
			return nil, err
		}
	}
	for _, b := range f.Buffers {
		if err := d.declareBuffer(b); err != nil {
			return nil, err
		}
	}
	body, err := d.stmts(f.Body)
	if err != nil {
		return nil, err
	}
	d.m.Body = body
	return d.m, nil
}

func checkFormat(v string) error {
	if v == "" {
		return fmt.Errorf("kirtext: missing format version")
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("kirtext: bad format version %q: %w", v, err)
	}
	con, err := semver.NewConstraint(FormatConstraint)
	if err != nil {
		return err
	}
	if !con.Check(ver) {
		return fmt.Errorf("kirtext: format %s outside supported range %s", ver, FormatConstraint)
	}
	return nil
}

type decoder struct {
	m   *kir.Module
	sym *symtab
}

func (d *decoder) declareVar(name string, v *kir.Var) error {
	if _, dup := d.sym.vars[name]; dup {
		return fmt.Errorf("kirtext: duplicate variable %q", name)
	}
	if _, dup := d.sym.bufs[name]; dup {
		return fmt.Errorf("kirtext: %q is already a buffer", name)
	}
	d.sym.vars[name] = v
	return nil
}

func (d *decoder) declareBuffer(b fileBuffer) error {
	if _, dup := d.sym.bufs[b.Name]; dup {
		return fmt.Errorf("kirtext: duplicate buffer %q", b.Name)
	}
	elem, err := parseDType(b.Elem)
	if err != nil {
		return err
	}
	scope, err := kir.ParseStorageScope(b.Scope)
	if err != nil {
		return err
	}
	d.sym.bufs[b.Name] = &kir.Buffer{Name: b.Name, Elem: elem, Scope: scope}
	return nil
}

func parseDType(s string) (kir.DType, error) {
	switch s {
	case "i32":
		return kir.TInt32, nil
	case "i64":
		return kir.TInt64, nil
	case "f16":
		return kir.TFloat16, nil
	case "f32", "":
		return kir.TFloat32, nil
	case "f64":
		return kir.TFloat64, nil
	case "bool":
		return kir.TBool, nil
	default:
		return kir.TInvalid, fmt.Errorf("kirtext: unknown element type %q", s)
	}
}

func (d *decoder) stmts(specs []stmtSpec) (kir.Stmt, error) {
	out := make([]kir.Stmt, 0, len(specs))
	for i := range specs {
		s, err := d.stmt(&specs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return d.m.Seq(out...), nil
}

func (d *decoder) stmt(s *stmtSpec) (kir.Stmt, error) {
	switch {
	case s.ThreadExtent != nil:
		return d.threadExtent(s)
	case s.For != nil:
		return d.forStmt(s)
	case s.If != nil:
		return d.ifStmt(s)
	case s.Store != nil:
		return d.storeStmt(s.Store)
	case s.Eval != "":
		e, err := parseExpr(s.Eval, d.sym)
		if err != nil {
			return nil, err
		}
		return d.m.Eval(e), nil
	case s.DoubleBuffer != nil:
		buf, ok := d.sym.bufs[s.DoubleBuffer.Buf]
		if !ok {
			return nil, fmt.Errorf("kirtext: unknown buffer %q", s.DoubleBuffer.Buf)
		}
		body, err := d.stmts(s.Body)
		if err != nil {
			return nil, err
		}
		return d.m.DoubleBufferWrite(buf, body), nil
	default:
		return nil, fmt.Errorf("kirtext: statement without a kind")
	}
}

func (d *decoder) threadExtent(s *stmtSpec) (kir.Stmt, error) {
	spec := s.ThreadExtent
	if _, err := kir.ParseThreadTag(spec.Tag); err != nil {
		return nil, err
	}
	extent, err := parseExpr(spec.Extent, d.sym)
	if err != nil {
		return nil, err
	}
	v := &kir.Var{Name: spec.Var, Type: kir.TInt32}
	if err := d.declareVar(spec.Var, v); err != nil {
		return nil, err
	}
	defer delete(d.sym.vars, spec.Var)
	body, err := d.stmts(s.Body)
	if err != nil {
		return nil, err
	}
	return d.m.ThreadExtent(&kir.IterVar{Var: v, Tag: spec.Tag}, extent, body), nil
}

func (d *decoder) forStmt(s *stmtSpec) (kir.Stmt, error) {
	spec := s.For
	min, err := parseExpr(defaultStr(spec.Min, "0"), d.sym)
	if err != nil {
		return nil, err
	}
	extent, err := parseExpr(spec.Extent, d.sym)
	if err != nil {
		return nil, err
	}
	kind, err := parseForKind(spec.Kind)
	if err != nil {
		return nil, err
	}
	v := &kir.Var{Name: spec.Var, Type: kir.TInt32}
	if err := d.declareVar(spec.Var, v); err != nil {
		return nil, err
	}
	defer delete(d.sym.vars, spec.Var)
	body, err := d.stmts(s.Body)
	if err != nil {
		return nil, err
	}
	return d.m.For(v, min, extent, kind, body), nil
}

func parseForKind(s string) (kir.ForKind, error) {
	switch s {
	case "serial", "":
		return kir.ForSerial, nil
	case "parallel":
		return kir.ForParallel, nil
	case "unrolled":
		return kir.ForUnrolled, nil
	case "vectorized":
		return kir.ForVectorized, nil
	default:
		return 0, fmt.Errorf("kirtext: unknown loop kind %q", s)
	}
}

func (d *decoder) ifStmt(s *stmtSpec) (kir.Stmt, error) {
	cond, err := parseExpr(s.If.Cond, d.sym)
	if err != nil {
		return nil, err
	}
	then, err := d.stmts(s.Then)
	if err != nil {
		return nil, err
	}
	var els kir.Stmt
	if len(s.Else) > 0 {
		if els, err = d.stmts(s.Else); err != nil {
			return nil, err
		}
	}
	return d.m.If(cond, then, els), nil
}

func (d *decoder) storeStmt(spec *storeSpec) (kir.Stmt, error) {
	buf, ok := d.sym.bufs[spec.Buf]
	if !ok {
		return nil, fmt.Errorf("kirtext: unknown buffer %q", spec.Buf)
	}
	index, err := parseExpr(spec.Index, d.sym)
	if err != nil {
		return nil, err
	}
	value, err := parseExpr(spec.Value, d.sym)
	if err != nil {
		return nil, err
	}
	if spec.Extent != "" {
		extent, err := parseExpr(spec.Extent, d.sym)
		if err != nil {
			return nil, err
		}
		return d.m.StoreRange(buf, index, extent, value), nil
	}
	return d.m.Store(buf, index, value), nil
}

func defaultStr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
