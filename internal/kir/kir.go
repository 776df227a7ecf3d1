// Package kir defines the Kestrel kernel IR: the structured statement and
// expression tree that device-kernel passes analyze and rewrite. Statements
// carry stable arena-assigned identities so passes can key side tables by
// statement without caring about node addresses.
package kir

// DType is the scalar element type of a value or buffer.
type DType int

const (
	TInvalid DType = iota
	TInt32
	TInt64
	TFloat16
	TFloat32
	TFloat64
	TBool
)

func (t DType) String() string {
	switch t {
	case TInt32:
		return "i32"
	case TInt64:
		return "i64"
	case TFloat16:
		return "f16"
	case TFloat32:
		return "f32"
	case TFloat64:
		return "f64"
	case TBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Var is a named scalar variable. Vars are compared by pointer identity.
type Var struct {
	Name string
	Type DType
}

// Buffer is a linear memory region addressed by element index.
// Buffers are compared by pointer identity.
type Buffer struct {
	Name  string
	Elem  DType
	Scope StorageScope
}

// IterVar binds a Var to a hardware thread-hierarchy dimension
// (e.g. threadIdx.x) for the extent of an AttrThreadExtent statement.
type IterVar struct {
	Var *Var
	Tag string
}

// Expr is implemented by all KIR expressions.
type Expr interface{ isExpr() }

// IntImm is an integer constant.
type IntImm struct{ Value int64 }

// StringImm is a string constant, used for intrinsic arguments.
type StringImm struct{ Value string }

// Binary applies a binary operator to two operands.
type Binary struct {
	Op  BinOp
	LHS Expr
	RHS Expr
}

// Load reads Buf[Index] (or the range [Index, Index+Extent) when Extent
// is non-nil, for bulk transfers).
type Load struct {
	Buf    *Buffer
	Index  Expr
	Extent Expr
}

// Call invokes a named intrinsic.
type Call struct {
	Name string
	Args []Expr
}

func (*Var) isExpr()       {}
func (*IntImm) isExpr()    {}
func (*StringImm) isExpr() {}
func (*Binary) isExpr()    {}
func (*Load) isExpr()      {}
func (*Call) isExpr()      {}

// BinOp enumerates KIR binary operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
	OpNE
	OpAnd
	OpOr
)

func (op BinOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpMod:
		return "%"
	case OpMin:
		return "min"
	case OpMax:
		return "max"
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "=="
	case OpNE:
		return "!="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	default:
		return "?"
	}
}

// StmtID is a stable arena index identifying one statement of a Module.
type StmtID int32

// InvalidStmt is the zero StmtID; no registered statement carries it.
const InvalidStmt StmtID = 0

// Stmt is implemented by all KIR statements.
type Stmt interface {
	isStmt()
	// ID reports the arena identity assigned when the statement was built.
	ID() StmtID
}

// stmtNode carries the arena identity shared by all statement kinds.
type stmtNode struct{ id StmtID }

func (s *stmtNode) ID() StmtID { return s.id }

// SeqStmt executes its children in order.
type SeqStmt struct {
	stmtNode
	Stmts []Stmt
}

// ForKind classifies how a loop's iterations execute.
type ForKind int

const (
	ForSerial ForKind = iota
	ForParallel
	ForUnrolled
	ForVectorized
)

func (k ForKind) String() string {
	switch k {
	case ForSerial:
		return "serial"
	case ForParallel:
		return "parallel"
	case ForUnrolled:
		return "unrolled"
	case ForVectorized:
		return "vectorized"
	default:
		return "unknown"
	}
}

// ForStmt iterates Body with LoopVar ranging over [Min, Min+Extent).
type ForStmt struct {
	stmtNode
	LoopVar *Var
	Min     Expr
	Extent  Expr
	Kind    ForKind
	Body    Stmt
}

// IfStmt guards Then (and optionally Else) behind Cond.
type IfStmt struct {
	stmtNode
	Cond Expr
	Then Stmt
	Else Stmt
}

// StoreStmt writes Value to Buf[Index] (or fills [Index, Index+Extent)
// when Extent is non-nil).
type StoreStmt struct {
	stmtNode
	Buf    *Buffer
	Index  Expr
	Extent Expr
	Value  Expr
}

// EvalStmt evaluates an expression for its effect, typically an intrinsic Call.
type EvalStmt struct {
	stmtNode
	Value Expr
}

// AttrKind classifies AttrStmt annotations.
type AttrKind int

const (
	// AttrThreadExtent binds IterVar to a thread dimension of extent Value
	// for the duration of Body.
	AttrThreadExtent AttrKind = iota
	// AttrVolatile marks Buf as non-cacheable within Body.
	AttrVolatile
	// AttrDoubleBufferWrite marks writes to Buf within Body as the fill
	// phase of a double-buffering pipeline.
	AttrDoubleBufferWrite
)

func (k AttrKind) String() string {
	switch k {
	case AttrThreadExtent:
		return "thread_extent"
	case AttrVolatile:
		return "volatile_scope"
	case AttrDoubleBufferWrite:
		return "double_buffer_write"
	default:
		return "unknown"
	}
}

// AttrStmt attaches an annotation to Body. Thread extents use IterVar and
// Value; buffer annotations use Buf.
type AttrStmt struct {
	stmtNode
	Kind    AttrKind
	IterVar *IterVar
	Buf     *Buffer
	Value   Expr
	Body    Stmt
}

func (*SeqStmt) isStmt()   {}
func (*ForStmt) isStmt()   {}
func (*IfStmt) isStmt()    {}
func (*StoreStmt) isStmt() {}
func (*EvalStmt) isStmt()  {}
func (*AttrStmt) isStmt()  {}

// Intrinsic call names understood by the synchronization passes and backends.
const (
	// IntrinStorageSync is a barrier over one storage scope. Args: scope tag,
	// and for global scope additionally the leader predicate and block count.
	IntrinStorageSync = "storage_sync"
	// IntrinPrepareGlobalBarrier performs one-time host-side setup before a
	// kernel that uses cross-block barriers.
	IntrinPrepareGlobalBarrier = "prepare_global_barrier"
	// IntrinGlobalBarrierInit initializes per-launch barrier state at the top
	// of a kernel body.
	IntrinGlobalBarrierInit = "global_barrier_init"
)
