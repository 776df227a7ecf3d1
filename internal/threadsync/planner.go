package threadsync

import (
	"errors"
	"fmt"

	"github.com/kestrel-lang/kestrel/internal/access"
	"github.com/kestrel-lang/kestrel/internal/kir"
)

// ErrBarrierInCondition reports a barrier request inside an open
// conditional branch. Barriers must be reachable by every logical thread
// unconditionally, so this is a structural defect of the input kernel.
var ErrBarrierInCondition = errors.New("threadsync: cannot insert barrier inside a conditional branch")

// planner consumes the access log level by level, bottom-up, and
// accumulates the set of statements that need a barrier directly before
// them.
type planner struct {
	target kir.StorageScope
	syncs  map[kir.StmtID]bool
}

func newPlanner(target kir.StorageScope) *planner {
	return &planner{target: target, syncs: make(map[kir.StmtID]bool)}
}

// Enabled implements access.Summarizer.
func (p *planner) Enabled(buf *kir.Buffer, scope kir.StorageScope) bool {
	return scope == p.target
}

// Summarize implements access.Summarizer. It scans one nesting level for
// hazards (plus a one-iteration loop-carry scan when loop is non-nil) and
// reduces the level to the head/tail summary its enclosing level plans
// against.
func (p *planner) Summarize(w *access.Walker, seq []access.StmtEntry, loop *kir.ForStmt) ([]access.Entry, error) {
	det := newDetector(w.EnvThreads())
	var reads, writes []access.Entry

	// Intra-level scan.
	for i := range seq {
		s := &seq[i]
		syncBefore := p.syncs[s.ID]
		if syncBefore {
			reads, writes = reads[:0], writes[:0]
		}
		for _, acc := range s.Access {
			switch acc.Kind {
			case access.Read:
				if det.conflicts(writes, acc, false, false) {
					syncBefore = true
				}
			case access.Write:
				if det.conflicts(reads, acc, false, false) {
					syncBefore = true
				}
			case access.Sync:
				reads, writes = reads[:0], writes[:0]
			}
			if syncBefore {
				break
			}
		}
		if syncBefore {
			reads, writes = reads[:0], writes[:0]
		}
		for _, acc := range s.Access {
			switch acc.Kind {
			case access.Read:
				reads = append(reads, acc)
			case access.Write:
				writes = append(writes, acc)
			case access.Sync:
				reads, writes = reads[:0], writes[:0]
			}
		}
		if syncBefore {
			if err := p.flag(w, s.ID); err != nil {
				return nil, err
			}
		}
	}

	// Loop-carry scan: test each access projected one iteration forward
	// against the leftovers of the intra-level scan. One barrier suffices;
	// the loop body re-enters it on every iteration.
	if loop != nil {
		next := kir.Add(loop.LoopVar, kir.Int(1))
		for i := range seq {
			s := &seq[i]
			if p.syncs[s.ID] {
				break
			}
			if len(reads) == 0 && len(writes) == 0 {
				break
			}
			syncBefore := false
			for _, acc := range s.Access {
				proj := acc
				projected := false
				if loop.Kind == kir.ForSerial && acc.Buf != nil {
					proj.Touched = acc.Touched.SubstituteVar(loop.LoopVar, next)
					projected = proj.Touched != acc.Touched
				}
				switch proj.Kind {
				case access.Read:
					if det.conflicts(writes, proj, true, projected) {
						syncBefore = true
					}
				case access.Write:
					if det.conflicts(reads, proj, true, projected) {
						syncBefore = true
					}
				case access.Sync:
					reads, writes = reads[:0], writes[:0]
				}
				if syncBefore {
					break
				}
			}
			if syncBefore {
				if err := p.flag(w, s.ID); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	return p.reduce(w, seq, loop), nil
}

func (p *planner) flag(w *access.Walker, id kir.StmtID) error {
	if w.ConditionDepth() != 0 {
		return fmt.Errorf("%w (statement %d)", ErrBarrierInCondition, id)
	}
	p.syncs[id] = true
	return nil
}

// reduce partitions the level into head (up to and including the first
// barrier, folded into one synthetic sync record) and tail (after the last
// barrier), dropping everything made dead in between.
func (p *planner) reduce(w *access.Walker, seq []access.StmtEntry, loop *kir.ForStmt) []access.Entry {
	esync := access.Entry{
		Threads: append([]access.ThreadBinding(nil), w.EnvThreads()...),
		Kind:    access.Sync,
		Scope:   p.target,
	}
	var head, tail []access.Entry
	syncCount := 0
	countSync := func() {
		if syncCount != 0 {
			tail = tail[:0]
		} else {
			head = append(head, esync)
		}
		syncCount++
	}
	for i := range seq {
		s := &seq[i]
		if p.syncs[s.ID] {
			countSync()
		}
		for _, acc := range s.Access {
			if acc.Kind == access.Sync {
				countSync()
				continue
			}
			if syncCount != 0 {
				tail = append(tail, acc)
			} else {
				head = append(head, acc)
			}
		}
	}
	head = append(head, tail...)
	if loop != nil {
		// The double-buffer exemption does not outlive one full iteration.
		for i := range head {
			head[i].DoubleBufferWrite = false
		}
	}
	return head
}

// Plan computes, without rewriting, the set of statement identities that
// need a barrier directly before them when enforcing the given scope.
func Plan(m *kir.Module, scopeName string) (map[kir.StmtID]bool, error) {
	scope, err := kir.ParseStorageScope(scopeName)
	if err != nil {
		return nil, err
	}
	p := newPlanner(scope)
	if err := access.Walk(m.Body, p); err != nil {
		return nil, err
	}
	return p.syncs, nil
}
