package kir

// SubstituteVar returns e with every occurrence of v replaced by repl.
// Subtrees without v are shared, not copied.
func SubstituteVar(e Expr, v *Var, repl Expr) Expr {
	switch x := e.(type) {
	case *Var:
		if x == v {
			return repl
		}
		return x
	case *IntImm, *StringImm:
		return e
	case *Binary:
		lhs := SubstituteVar(x.LHS, v, repl)
		rhs := SubstituteVar(x.RHS, v, repl)
		if lhs == x.LHS && rhs == x.RHS {
			return x
		}
		return &Binary{Op: x.Op, LHS: lhs, RHS: rhs}
	case *Load:
		idx := SubstituteVar(x.Index, v, repl)
		ext := x.Extent
		if ext != nil {
			ext = SubstituteVar(ext, v, repl)
		}
		if idx == x.Index && ext == x.Extent {
			return x
		}
		return &Load{Buf: x.Buf, Index: idx, Extent: ext}
	case *Call:
		changed := false
		args := make([]Expr, len(x.Args))
		for i, a := range x.Args {
			args[i] = SubstituteVar(a, v, repl)
			if args[i] != a {
				changed = true
			}
		}
		if !changed {
			return x
		}
		return &Call{Name: x.Name, Args: args}
	default:
		return e
	}
}

// UsesVar reports whether v occurs anywhere in e.
func UsesVar(e Expr, v *Var) bool {
	found := false
	WalkExpr(e, func(sub Expr) {
		if sub == Expr(v) {
			found = true
		}
	})
	return found
}

// WalkExpr calls fn for e and every subexpression of e, preorder.
func WalkExpr(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	switch x := e.(type) {
	case *Binary:
		WalkExpr(x.LHS, fn)
		WalkExpr(x.RHS, fn)
	case *Load:
		WalkExpr(x.Index, fn)
		WalkExpr(x.Extent, fn)
	case *Call:
		for _, a := range x.Args {
			WalkExpr(a, fn)
		}
	}
}
