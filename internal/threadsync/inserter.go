package threadsync

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kestrel-lang/kestrel/internal/kir"
)

// ErrThreadNestMismatch reports that two global barriers observed thread
// nestings of different dimensionality; the cached (block count, leader)
// pair cannot be reused and the input kernel is structurally inconsistent.
var ErrThreadNestMismatch = errors.New("threadsync: thread nesting dimensionality mismatch for global barrier")

// rwStats counts global-scope traffic per buffer between two successive
// global barriers, to decide which buffers must be made non-cacheable.
type rwStats struct {
	reads  int
	writes int
}

// inserter is the top-down rewriting pass: it materializes a barrier
// before every statement the planner flagged, synthesizing cross-block
// bookkeeping when the target scope is global. Compound statements are
// updated in place so every identity the planner consumed stays valid.
type inserter struct {
	m      *kir.Module
	target kir.StorageScope
	syncs  map[kir.StmtID]bool

	stats       map[*kir.Buffer]*rwStats
	inThreadEnv bool
	threadNest  []*kir.AttrStmt

	// cached cross-block barrier pair, reset on leaving the outermost
	// thread scope
	numWorkDim int
	numBlocks  kir.Expr
	isLead     kir.Expr
}

func newInserter(m *kir.Module, target kir.StorageScope, syncs map[kir.StmtID]bool) *inserter {
	return &inserter{
		m:      m,
		target: target,
		syncs:  syncs,
		stats:  make(map[*kir.Buffer]*rwStats),
	}
}

func (in *inserter) rewrite(s kir.Stmt) (kir.Stmt, error) {
	if s == nil {
		return nil, nil
	}
	if !in.syncs[s.ID()] {
		return in.rewriteInner(s)
	}
	barrier, err := in.makeBarrier()
	if err != nil {
		return nil, err
	}
	body, err := in.rewriteInner(s)
	if err != nil {
		return nil, err
	}
	return in.m.Seq(barrier, body), nil
}

func (in *inserter) rewriteInner(s kir.Stmt) (kir.Stmt, error) {
	switch x := s.(type) {
	case *kir.SeqStmt:
		for i, c := range x.Stmts {
			nc, err := in.rewrite(c)
			if err != nil {
				return nil, err
			}
			x.Stmts[i] = nc
		}
		return x, nil
	case *kir.ForStmt:
		body, err := in.rewrite(x.Body)
		if err != nil {
			return nil, err
		}
		x.Body = body
		return x, nil
	case *kir.IfStmt:
		then, err := in.rewrite(x.Then)
		if err != nil {
			return nil, err
		}
		x.Then = then
		els, err := in.rewrite(x.Else)
		if err != nil {
			return nil, err
		}
		x.Else = els
		return x, nil
	case *kir.StoreStmt:
		in.countStore(x)
		return x, nil
	case *kir.EvalStmt:
		in.countExpr(x.Value)
		return x, nil
	case *kir.AttrStmt:
		if x.Kind == kir.AttrThreadExtent {
			return in.threadExtent(x)
		}
		body, err := in.rewrite(x.Body)
		if err != nil {
			return nil, err
		}
		x.Body = body
		return x, nil
	default:
		return nil, fmt.Errorf("threadsync: unhandled statement %T", s)
	}
}

func (in *inserter) threadExtent(x *kir.AttrStmt) (kir.Stmt, error) {
	in.countExpr(x.Value)
	wasIn := in.inThreadEnv
	in.inThreadEnv = true
	in.threadNest = append(in.threadNest, x)
	body, err := in.rewrite(x.Body)
	in.threadNest = in.threadNest[:len(in.threadNest)-1]
	in.inThreadEnv = wasIn
	if err != nil {
		return nil, err
	}
	x.Body = body
	if wasIn || in.target.Rank != kir.RankGlobal {
		return x, nil
	}
	// Outermost thread scope under a global target: one-time barrier setup.
	ret := in.initGlobalBarrier(x)
	in.numBlocks, in.isLead = nil, nil
	return ret, nil
}

// initGlobalBarrier wraps the outermost thread scope with the one-time
// setup a cross-block barrier needs: a host-side prepare call before the
// scope, barrier-state init at the top of the body, and non-cacheable
// annotations for every buffer both read and written since the last reset.
func (in *inserter) initGlobalBarrier(x *kir.AttrStmt) kir.Stmt {
	prep := in.m.Eval(&kir.Call{Name: kir.IntrinPrepareGlobalBarrier})
	body := x.Body
	var vol []*kir.Buffer
	for buf, st := range in.stats {
		if st.reads != 0 && st.writes != 0 {
			vol = append(vol, buf)
		}
	}
	sort.Slice(vol, func(i, j int) bool { return vol[i].Name < vol[j].Name })
	for _, buf := range vol {
		body = in.m.Volatile(buf, body)
	}
	in.stats = make(map[*kir.Buffer]*rwStats)
	kinit := in.m.Eval(&kir.Call{Name: kir.IntrinGlobalBarrierInit})
	x.Body = in.m.Seq(kinit, body)
	return in.m.Seq(prep, x)
}

// makeBarrier emits the synchronization statement for one flagged point.
func (in *inserter) makeBarrier() (kir.Stmt, error) {
	if in.target.Rank != kir.RankGlobal {
		call := &kir.Call{
			Name: kir.IntrinStorageSync,
			Args: []kir.Expr{kir.Str(in.target.String())},
		}
		return in.m.Eval(call), nil
	}
	if in.numBlocks == nil && in.isLead == nil {
		if err := in.deriveGlobalBarrier(); err != nil {
			return nil, err
		}
	} else if in.numWorkDim != len(in.threadNest) {
		return nil, fmt.Errorf("%w: cached %d dimensions, found %d",
			ErrThreadNestMismatch, in.numWorkDim, len(in.threadNest))
	}
	numBlocks, isLead := in.numBlocks, in.isLead
	if numBlocks == nil {
		numBlocks = kir.Int(1)
	}
	if isLead == nil {
		isLead = kir.Int(1)
	}
	call := &kir.Call{
		Name: kir.IntrinStorageSync,
		Args: []kir.Expr{kir.Str(in.target.String()), isLead, numBlocks},
	}
	return in.m.Eval(call), nil
}

// deriveGlobalBarrier computes and caches the (block count, leader
// predicate) pair for the current thread nesting: block count is the
// product of the block-rank extents, the leader predicate requires every
// thread-rank index to be zero.
func (in *inserter) deriveGlobalBarrier() error {
	in.numWorkDim = len(in.threadNest)
	for _, attr := range in.threadNest {
		rank, err := kir.ParseThreadTag(attr.IterVar.Tag)
		if err != nil {
			return err
		}
		switch rank {
		case kir.ThreadRankBlock:
			if in.numBlocks == nil {
				in.numBlocks = attr.Value
			} else {
				in.numBlocks = kir.Mul(attr.Value, in.numBlocks)
			}
		case kir.ThreadRankThread:
			cond := kir.EQ(attr.IterVar.Var, kir.Int(0))
			if in.isLead == nil {
				in.isLead = cond
			} else {
				in.isLead = kir.And(in.isLead, cond)
			}
		}
	}
	return nil
}

// countStore accumulates read/write statistics for global buffers while
// the pass targets the global scope.
func (in *inserter) countStore(s *kir.StoreStmt) {
	if in.target.Rank == kir.RankGlobal && s.Buf.Scope.Rank == kir.RankGlobal {
		in.stat(s.Buf).writes++
	}
	in.countExpr(s.Value)
	in.countExpr(s.Index)
}

func (in *inserter) countExpr(e kir.Expr) {
	if in.target.Rank != kir.RankGlobal {
		return
	}
	kir.WalkExpr(e, func(sub kir.Expr) {
		if ld, ok := sub.(*kir.Load); ok && ld.Buf.Scope.Rank == kir.RankGlobal {
			in.stat(ld.Buf).reads++
		}
	})
}

func (in *inserter) stat(buf *kir.Buffer) *rwStats {
	st := in.stats[buf]
	if st == nil {
		st = &rwStats{}
		in.stats[buf] = st
	}
	return st
}
