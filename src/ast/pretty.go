package ast

import (
	"fmt"
	"io"
	"strings"
)

// Dump writes an indented recursive trace of prog, in the same spirit as the
// teacher's ir.Node.Print: a debugging aid, not an authoritative
// serialization (spec.md §9, "Pretty-printer fidelity").
func Dump(w io.Writer, prog *Program) {
	fmt.Fprintln(w, "PROGRAM")
	for _, d := range prog.Decls {
		dumpDecl(w, d, 1)
	}
}

func indent(w io.Writer, depth int) {
	fmt.Fprint(w, strings.Repeat("  ", depth))
}

func dumpDecl(w io.Writer, d Declaration, depth int) {
	indent(w, depth)
	switch v := d.(type) {
	case *FunctionDecl:
		fmt.Fprintf(w, "FUNCTION %s (%s) : %s\n", v.NameTok.Lexeme, v.Flag, v.ReturnType)
		for _, p := range v.Params {
			indent(w, depth+1)
			fmt.Fprintf(w, "PARAM %s : %s\n", p.Name, p.Type)
		}
		if v.Body != nil {
			dumpStmt(w, v.Body, depth+1)
		}
	case *ExternalFunctionDecl:
		fmt.Fprintf(w, "EXTERNAL FUNCTION %s : %s\n", v.NameTok.Lexeme, v.ReturnType)
		for _, p := range v.Params {
			indent(w, depth+1)
			fmt.Fprintf(w, "PARAM %s : %s\n", p.Name, p.Type)
		}
	case *VariableDecl:
		fmt.Fprintf(w, "VARIABLE %s : %s (%s)\n", v.Token.Lexeme, v.Type, v.Flag)
		if v.Init != nil {
			dumpExpr(w, v.Init, depth+1)
		}
	default:
		fmt.Fprintf(w, "<unknown declaration %T>\n", v)
	}
}

func dumpStmt(w io.Writer, s Statement, depth int) {
	indent(w, depth)
	switch v := s.(type) {
	case *BlockStmt:
		fmt.Fprintln(w, "BLOCK")
		for _, item := range v.Items {
			switch it := item.(type) {
			case Declaration:
				dumpDecl(w, it, depth+1)
			case Statement:
				dumpStmt(w, it, depth+1)
			}
		}
	case *ReturnStmt:
		fmt.Fprintln(w, "RETURN")
		dumpExpr(w, v.Expr, depth+1)
	case *ExprStmt:
		fmt.Fprintln(w, "EXPR_STATEMENT")
		dumpExpr(w, v.Expr, depth+1)
	case *VoidStmt:
		fmt.Fprintln(w, "VOID")
	case *IfStmt:
		fmt.Fprintln(w, "IF")
		dumpExpr(w, v.Cond, depth+1)
		dumpStmt(w, v.Then, depth+1)
		if v.Else != nil {
			dumpStmt(w, v.Else, depth+1)
		}
	case *WhileStmt:
		fmt.Fprintf(w, "WHILE id=%d\n", v.ID)
		dumpExpr(w, v.Cond, depth+1)
		dumpStmt(w, v.Body, depth+1)
	case *LoopStmt:
		fmt.Fprintf(w, "LOOP id=%d\n", v.ID)
		dumpStmt(w, v.Body, depth+1)
	case *ForStmt:
		fmt.Fprintf(w, "FOR id=%d\n", v.ID)
		dumpExpr(w, v.Init, depth+1)
		dumpExpr(w, v.Cond, depth+1)
		dumpExpr(w, v.Post, depth+1)
		dumpStmt(w, v.Body, depth+1)
	case *BreakStmt:
		fmt.Fprintf(w, "BREAK id=%d\n", v.ID)
	case *ContinueStmt:
		fmt.Fprintf(w, "CONTINUE id=%d\n", v.ID)
	default:
		fmt.Fprintf(w, "<unknown statement %T>\n", v)
	}
}

func dumpExpr(w io.Writer, e Expression, depth int) {
	indent(w, depth)
	switch v := e.(type) {
	case *IntLiteral:
		fmt.Fprintf(w, "INT %d\n", v.Value)
	case *UnaryExpr:
		fmt.Fprintf(w, "UNARY %s\n", v.Op.Lexeme)
		dumpExpr(w, v.X, depth+1)
	case *BinaryExpr:
		fmt.Fprintf(w, "BINARY %s\n", v.Op.Lexeme)
		dumpExpr(w, v.L, depth+1)
		dumpExpr(w, v.R, depth+1)
	case *AssignmentExpr:
		fmt.Fprintln(w, "ASSIGN")
		dumpExpr(w, v.LValue, depth+1)
		dumpExpr(w, v.Value, depth+1)
	case *NameAccess:
		fmt.Fprintf(w, "NAME %s\n", v.Tok.Lexeme)
	case *CallExpr:
		fmt.Fprintf(w, "CALL %s external=%v\n", v.NameTok.Lexeme, v.IsExternal)
		for _, a := range v.Args {
			dumpExpr(w, a, depth+1)
		}
	default:
		fmt.Fprintf(w, "<unknown expression %T>\n", v)
	}
}

// PrintExpr renders e as fully parenthesized source text, covering the
// integer-arithmetic subset the round-trip property (spec.md §8) requires:
// integer literals, unary -/+/~, and binary arithmetic. It is not
// authoritative for any other expression shape.
func PrintExpr(e Expression) string {
	switch v := e.(type) {
	case *IntLiteral:
		return fmt.Sprintf("%d", v.Value)
	case *UnaryExpr:
		return fmt.Sprintf("(%s%s)", v.Op.Lexeme, PrintExpr(v.X))
	case *BinaryExpr:
		return fmt.Sprintf("(%s %s %s)", PrintExpr(v.L), v.Op.Lexeme, PrintExpr(v.R))
	case *NameAccess:
		return v.Tok.Lexeme
	default:
		return "<?>"
	}
}
