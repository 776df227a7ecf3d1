// Package access walks a kernel body in program order and produces, per
// statement, the ordered log of memory accesses it performs together with
// the thread bindings and conditional depth active at that point. Scope
// passes plug a Summarizer into the walk to reduce each nesting level
// (loop body, branch arm, thread extent) to the access summary its
// enclosing level sees.
package access

import (
	"fmt"

	"github.com/kestrel-lang/kestrel/internal/arith"
	"github.com/kestrel-lang/kestrel/internal/kir"
)

// Kind classifies one access record.
type Kind int

const (
	Read Kind = iota
	Write
	Sync
)

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Sync:
		return "sync"
	default:
		return "unknown"
	}
}

// ThreadBinding is one active environment thread: an iteration variable
// bound to a hardware dimension with a known range.
type ThreadBinding struct {
	IterVar *kir.IterVar
	Min     kir.Expr
	Extent  kir.Expr
}

// Entry is one immutable access record.
type Entry struct {
	Threads           []ThreadBinding
	Buf               *kir.Buffer
	Elem              kir.DType
	Touched           arith.IntSet
	Kind              Kind
	Scope             kir.StorageScope
	DoubleBufferWrite bool
}

// StmtEntry pairs a statement identity with its ordered access records.
type StmtEntry struct {
	ID     kir.StmtID
	Access []Entry
}

// Summarizer reduces the access log of one nesting level. Walk calls
// Summarize with the level's ordered statement entries and, when the level
// is a loop body, the enclosing loop; the returned records become the
// level's summary at the next level up.
type Summarizer interface {
	// Enabled reports whether accesses to buf at the given scope are
	// interesting to this pass. Disabled accesses are not logged.
	Enabled(buf *kir.Buffer, scope kir.StorageScope) bool
	// Summarize reduces one level. loop is non-nil only for loop bodies.
	Summarize(w *Walker, seq []StmtEntry, loop *kir.ForStmt) ([]Entry, error)
}

// Walker drives one program-order traversal. It is created by Walk and
// handed to the Summarizer so level reduction can observe traversal state.
type Walker struct {
	sum         Summarizer
	envThreads  []ThreadBinding
	scopes      [][]StmtEntry
	condCounter int
	inDeviceEnv bool
	dbWrite     *kir.Buffer
}

// Walk traverses root in program order, feeding each nesting level through
// s.Summarize. Accesses outside any thread extent are not logged.
func Walk(root kir.Stmt, s Summarizer) error {
	w := &Walker{sum: s}
	w.scopes = append(w.scopes, nil)
	return w.stmt(root)
}

// ConditionDepth reports how many conditional branch arms enclose the
// current traversal point.
func (w *Walker) ConditionDepth() int { return w.condCounter }

// EnvThreads returns the active thread bindings, outermost first. The
// returned slice is shared; callers must not retain it across statements.
func (w *Walker) EnvThreads() []ThreadBinding { return w.envThreads }

func (w *Walker) top() *[]StmtEntry { return &w.scopes[len(w.scopes)-1] }

func (w *Walker) stmt(s kir.Stmt) error {
	switch x := s.(type) {
	case nil:
		return nil
	case *kir.SeqStmt:
		for _, c := range x.Stmts {
			if err := w.stmt(c); err != nil {
				return err
			}
		}
		return nil
	case *kir.StoreStmt:
		return w.leafStmt(x, func(curr *StmtEntry) error {
			if err := w.expr(x.Value, curr); err != nil {
				return err
			}
			if err := w.expr(x.Index, curr); err != nil {
				return err
			}
			if w.inDeviceEnv && w.sum.Enabled(x.Buf, x.Buf.Scope) {
				curr.Access = append(curr.Access, w.newEntry(x.Buf, Write, x.Index, x.Extent))
			}
			return nil
		})
	case *kir.EvalStmt:
		return w.leafStmt(x, func(curr *StmtEntry) error {
			return w.expr(x.Value, curr)
		})
	case *kir.ForStmt:
		return w.forStmt(x)
	case *kir.IfStmt:
		return w.ifStmt(x)
	case *kir.AttrStmt:
		return w.attrStmt(x)
	default:
		return fmt.Errorf("access: unhandled statement %T", s)
	}
}

// leafStmt collects the access records of one non-compound statement and
// appends the resulting entry to the current level.
func (w *Walker) leafStmt(s kir.Stmt, collect func(*StmtEntry) error) error {
	curr := StmtEntry{ID: s.ID()}
	if err := collect(&curr); err != nil {
		return err
	}
	if _, isStore := s.(*kir.StoreStmt); isStore || len(curr.Access) > 0 {
		t := w.top()
		*t = append(*t, curr)
	}
	return nil
}

// expr collects reads and sync intrinsics from an expression. curr is nil
// in positions where logged accesses are not allowed (loop bounds, branch
// conditions); an enabled access there is a structural error.
func (w *Walker) expr(e kir.Expr, curr *StmtEntry) error {
	switch x := e.(type) {
	case nil, *kir.Var, *kir.IntImm, *kir.StringImm:
		return nil
	case *kir.Binary:
		if err := w.expr(x.LHS, curr); err != nil {
			return err
		}
		return w.expr(x.RHS, curr)
	case *kir.Load:
		if err := w.expr(x.Index, curr); err != nil {
			return err
		}
		if w.inDeviceEnv && w.sum.Enabled(x.Buf, x.Buf.Scope) {
			if curr == nil {
				return fmt.Errorf("access: read of %s in a control position", x.Buf.Name)
			}
			curr.Access = append(curr.Access, w.newEntry(x.Buf, Read, x.Index, x.Extent))
		}
		return nil
	case *kir.Call:
		if x.Name == kir.IntrinStorageSync {
			return w.syncCall(x, curr)
		}
		for _, a := range x.Args {
			if err := w.expr(a, curr); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("access: unhandled expression %T", e)
	}
}

func (w *Walker) syncCall(c *kir.Call, curr *StmtEntry) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("access: %s without scope argument", kir.IntrinStorageSync)
	}
	tag, ok := c.Args[0].(*kir.StringImm)
	if !ok {
		return fmt.Errorf("access: %s scope argument must be a string", kir.IntrinStorageSync)
	}
	scope, err := kir.ParseStorageScope(tag.Value)
	if err != nil {
		return err
	}
	if scope.Rank == kir.RankWarp || !w.inDeviceEnv {
		return nil
	}
	if curr == nil {
		return fmt.Errorf("access: %s in a control position", kir.IntrinStorageSync)
	}
	curr.Access = append(curr.Access, Entry{
		Threads: w.threadsSnapshot(),
		Kind:    Sync,
		Scope:   scope,
	})
	return nil
}

func (w *Walker) newEntry(buf *kir.Buffer, kind Kind, index, extent kir.Expr) Entry {
	touched := arith.SinglePoint(index)
	if extent != nil {
		touched = arith.Interval(index, kir.Sub(kir.Add(index, extent), kir.Int(1)))
	}
	return Entry{
		Threads:           w.threadsSnapshot(),
		Buf:               buf,
		Elem:              buf.Elem,
		Touched:           touched,
		Kind:              kind,
		Scope:             buf.Scope,
		DoubleBufferWrite: kind == Write && buf == w.dbWrite,
	}
}

func (w *Walker) threadsSnapshot() []ThreadBinding {
	out := make([]ThreadBinding, len(w.envThreads))
	copy(out, w.envThreads)
	return out
}

func (w *Walker) forStmt(f *kir.ForStmt) error {
	if err := w.expr(f.Min, nil); err != nil {
		return err
	}
	if err := w.expr(f.Extent, nil); err != nil {
		return err
	}
	w.scopes = append(w.scopes, nil)
	err := w.stmt(f.Body)
	seq := *w.top()
	w.scopes = w.scopes[:len(w.scopes)-1]
	if err != nil {
		return err
	}
	sum, err := w.sum.Summarize(w, seq, f)
	if err != nil {
		return err
	}
	if len(sum) == 0 {
		return nil
	}
	// Widen the summary so the enclosing level sees the union over all
	// iterations of the loop.
	hi := kir.Sub(kir.Add(f.Min, f.Extent), kir.Int(1))
	entry := StmtEntry{ID: f.ID()}
	for _, e := range sum {
		if e.Buf != nil {
			e.Touched = e.Touched.Relax(f.LoopVar, f.Min, hi)
		}
		entry.Access = append(entry.Access, e)
	}
	t := w.top()
	*t = append(*t, entry)
	return nil
}

func (w *Walker) ifStmt(s *kir.IfStmt) error {
	if err := w.expr(s.Cond, nil); err != nil {
		return err
	}
	w.condCounter++
	defer func() { w.condCounter-- }()

	entry := StmtEntry{ID: s.ID()}
	for _, arm := range []kir.Stmt{s.Then, s.Else} {
		if arm == nil {
			continue
		}
		w.scopes = append(w.scopes, nil)
		err := w.stmt(arm)
		seq := *w.top()
		w.scopes = w.scopes[:len(w.scopes)-1]
		if err != nil {
			return err
		}
		sum, err := w.sum.Summarize(w, seq, nil)
		if err != nil {
			return err
		}
		entry.Access = append(entry.Access, sum...)
	}
	t := w.top()
	*t = append(*t, entry)
	return nil
}

func (w *Walker) attrStmt(s *kir.AttrStmt) error {
	switch s.Kind {
	case kir.AttrThreadExtent:
		return w.threadExtent(s)
	case kir.AttrDoubleBufferWrite:
		return w.doubleBufferWrite(s)
	default:
		return w.stmt(s.Body)
	}
}

func (w *Walker) threadExtent(s *kir.AttrStmt) error {
	if _, err := kir.ParseThreadTag(s.IterVar.Tag); err != nil {
		return err
	}
	if err := w.expr(s.Value, nil); err != nil {
		return err
	}
	w.envThreads = append(w.envThreads, ThreadBinding{
		IterVar: s.IterVar,
		Min:     kir.Int(0),
		Extent:  s.Value,
	})
	defer func() { w.envThreads = w.envThreads[:len(w.envThreads)-1] }()

	if w.inDeviceEnv {
		return w.stmt(s.Body)
	}
	w.inDeviceEnv = true
	w.scopes = append(w.scopes, nil)
	err := w.stmt(s.Body)
	seq := *w.top()
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.inDeviceEnv = false
	if err != nil {
		return err
	}
	// The kernel launch boundary is itself a synchronization point; the
	// summary is not propagated to the host level.
	_, err = w.sum.Summarize(w, seq, nil)
	return err
}

func (w *Walker) doubleBufferWrite(s *kir.AttrStmt) error {
	if w.dbWrite != nil {
		return fmt.Errorf("access: nested %s attributes", kir.AttrDoubleBufferWrite)
	}
	w.dbWrite = s.Buf
	w.scopes = append(w.scopes, nil)
	err := w.stmt(s.Body)
	seq := *w.top()
	w.scopes = w.scopes[:len(w.scopes)-1]
	w.dbWrite = nil
	if err != nil {
		return err
	}
	sum, err := w.sum.Summarize(w, seq, nil)
	if err != nil {
		return err
	}
	if len(sum) == 0 {
		return nil
	}
	t := w.top()
	*t = append(*t, StmtEntry{ID: s.ID(), Access: sum})
	return nil
}
