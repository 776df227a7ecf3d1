package kir

// Module owns one kernel body plus the statement arena behind it. Every
// statement built through a Module receives the next free StmtID, and keeps
// it for the lifetime of the Module; rewriting passes allocate replacement
// statements from the same Module so side tables keyed by StmtID stay valid.
type Module struct {
	Name string
	Body Stmt

	stmts []Stmt // arena; index == StmtID-1
}

// NewModule returns an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// Lookup returns the statement registered under id, or nil.
func (m *Module) Lookup(id StmtID) Stmt {
	if id <= 0 || int(id) > len(m.stmts) {
		return nil
	}
	return m.stmts[id-1]
}

// NumStmts reports how many statements the arena holds.
func (m *Module) NumStmts() int { return len(m.stmts) }

func (m *Module) register(s Stmt, node *stmtNode) Stmt {
	m.stmts = append(m.stmts, s)
	node.id = StmtID(len(m.stmts))
	return s
}

// Seq builds a sequence statement.
func (m *Module) Seq(stmts ...Stmt) *SeqStmt {
	s := &SeqStmt{Stmts: stmts}
	m.register(s, &s.stmtNode)
	return s
}

// For builds a loop statement.
func (m *Module) For(v *Var, min, extent Expr, kind ForKind, body Stmt) *ForStmt {
	s := &ForStmt{LoopVar: v, Min: min, Extent: extent, Kind: kind, Body: body}
	m.register(s, &s.stmtNode)
	return s
}

// If builds a conditional statement; els may be nil.
func (m *Module) If(cond Expr, then, els Stmt) *IfStmt {
	s := &IfStmt{Cond: cond, Then: then, Else: els}
	m.register(s, &s.stmtNode)
	return s
}

// Store builds a scalar store Buf[index] = value.
func (m *Module) Store(buf *Buffer, index, value Expr) *StoreStmt {
	s := &StoreStmt{Buf: buf, Index: index, Value: value}
	m.register(s, &s.stmtNode)
	return s
}

// StoreRange builds a bulk store covering [index, index+extent).
func (m *Module) StoreRange(buf *Buffer, index, extent, value Expr) *StoreStmt {
	s := &StoreStmt{Buf: buf, Index: index, Extent: extent, Value: value}
	m.register(s, &s.stmtNode)
	return s
}

// Eval builds an expression statement.
func (m *Module) Eval(e Expr) *EvalStmt {
	s := &EvalStmt{Value: e}
	m.register(s, &s.stmtNode)
	return s
}

// ThreadExtent binds iv to a thread dimension of the given extent around body.
func (m *Module) ThreadExtent(iv *IterVar, extent Expr, body Stmt) *AttrStmt {
	s := &AttrStmt{Kind: AttrThreadExtent, IterVar: iv, Value: extent, Body: body}
	m.register(s, &s.stmtNode)
	return s
}

// Volatile marks buf non-cacheable around body.
func (m *Module) Volatile(buf *Buffer, body Stmt) *AttrStmt {
	s := &AttrStmt{Kind: AttrVolatile, Buf: buf, Value: Int(1), Body: body}
	m.register(s, &s.stmtNode)
	return s
}

// DoubleBufferWrite marks writes to buf inside body as pipeline fill writes.
func (m *Module) DoubleBufferWrite(buf *Buffer, body Stmt) *AttrStmt {
	s := &AttrStmt{Kind: AttrDoubleBufferWrite, Buf: buf, Value: Int(1), Body: body}
	m.register(s, &s.stmtNode)
	return s
}

// Expression helpers. Expressions carry no arena identity; they are plain
// immutable trees.

// Int returns an integer constant expression.
func Int(v int64) *IntImm { return &IntImm{Value: v} }

// Str returns a string constant expression.
func Str(s string) *StringImm { return &StringImm{Value: s} }

// Bin returns a binary expression.
func Bin(op BinOp, lhs, rhs Expr) *Binary { return &Binary{Op: op, LHS: lhs, RHS: rhs} }

// Add returns lhs + rhs.
func Add(lhs, rhs Expr) *Binary { return Bin(OpAdd, lhs, rhs) }

// Sub returns lhs - rhs.
func Sub(lhs, rhs Expr) *Binary { return Bin(OpSub, lhs, rhs) }

// Mul returns lhs * rhs.
func Mul(lhs, rhs Expr) *Binary { return Bin(OpMul, lhs, rhs) }

// LT returns lhs < rhs.
func LT(lhs, rhs Expr) *Binary { return Bin(OpLT, lhs, rhs) }

// EQ returns lhs == rhs.
func EQ(lhs, rhs Expr) *Binary { return Bin(OpEQ, lhs, rhs) }

// And returns lhs && rhs.
func And(lhs, rhs Expr) *Binary { return Bin(OpAnd, lhs, rhs) }

// LoadOf returns a scalar load expression Buf[index].
func LoadOf(buf *Buffer, index Expr) *Load { return &Load{Buf: buf, Index: index} }

// LoadRange returns a bulk load expression over [index, index+extent).
func LoadRange(buf *Buffer, index, extent Expr) *Load {
	return &Load{Buf: buf, Index: index, Extent: extent}
}
