package kir

import (
	"fmt"
	"strings"
)

// FormatExpr renders an expression in a compact C-like syntax.
func FormatExpr(e Expr) string {
	switch x := e.(type) {
	case nil:
		return "<nil>"
	case *Var:
		return x.Name
	case *IntImm:
		return fmt.Sprintf("%d", x.Value)
	case *StringImm:
		return fmt.Sprintf("%q", x.Value)
	case *Binary:
		if x.Op == OpMin || x.Op == OpMax {
			return fmt.Sprintf("%s(%s, %s)", x.Op, FormatExpr(x.LHS), FormatExpr(x.RHS))
		}
		return fmt.Sprintf("(%s %s %s)", FormatExpr(x.LHS), x.Op, FormatExpr(x.RHS))
	case *Load:
		if x.Extent != nil {
			return fmt.Sprintf("%s[%s : +%s]", x.Buf.Name, FormatExpr(x.Index), FormatExpr(x.Extent))
		}
		return fmt.Sprintf("%s[%s]", x.Buf.Name, FormatExpr(x.Index))
	case *Call:
		args := make([]string, len(x.Args))
		for i, a := range x.Args {
			args[i] = FormatExpr(a)
		}
		return fmt.Sprintf("%s(%s)", x.Name, strings.Join(args, ", "))
	default:
		return "<?expr>"
	}
}

// Format renders a statement tree with indentation, one statement per line.
func Format(s Stmt) string {
	var b strings.Builder
	formatStmt(&b, s, 0)
	return b.String()
}

func formatStmt(b *strings.Builder, s Stmt, depth int) {
	ind := strings.Repeat("  ", depth)
	switch x := s.(type) {
	case nil:
		return
	case *SeqStmt:
		for _, c := range x.Stmts {
			formatStmt(b, c, depth)
		}
	case *ForStmt:
		fmt.Fprintf(b, "%sfor %s %s in [%s, %s+%s) {\n", ind, x.Kind, x.LoopVar.Name,
			FormatExpr(x.Min), FormatExpr(x.Min), FormatExpr(x.Extent))
		formatStmt(b, x.Body, depth+1)
		fmt.Fprintf(b, "%s}\n", ind)
	case *IfStmt:
		fmt.Fprintf(b, "%sif %s {\n", ind, FormatExpr(x.Cond))
		formatStmt(b, x.Then, depth+1)
		if x.Else != nil {
			fmt.Fprintf(b, "%s} else {\n", ind)
			formatStmt(b, x.Else, depth+1)
		}
		fmt.Fprintf(b, "%s}\n", ind)
	case *StoreStmt:
		if x.Extent != nil {
			fmt.Fprintf(b, "%s%s[%s : +%s] = %s\n", ind, x.Buf.Name,
				FormatExpr(x.Index), FormatExpr(x.Extent), FormatExpr(x.Value))
		} else {
			fmt.Fprintf(b, "%s%s[%s] = %s\n", ind, x.Buf.Name,
				FormatExpr(x.Index), FormatExpr(x.Value))
		}
	case *EvalStmt:
		fmt.Fprintf(b, "%s%s\n", ind, FormatExpr(x.Value))
	case *AttrStmt:
		switch x.Kind {
		case AttrThreadExtent:
			fmt.Fprintf(b, "%sattr [%s: %s] %s = %s {\n", ind, x.IterVar.Var.Name,
				x.IterVar.Tag, x.Kind, FormatExpr(x.Value))
		default:
			fmt.Fprintf(b, "%sattr [%s] %s = %s {\n", ind, x.Buf.Name, x.Kind, FormatExpr(x.Value))
		}
		formatStmt(b, x.Body, depth+1)
		fmt.Fprintf(b, "%s}\n", ind)
	default:
		fmt.Fprintf(b, "%s<?stmt>\n", ind)
	}
}
