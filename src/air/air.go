// Package air defines the three-address IR (spec component C6's output
// shape, spec.md §3 "AIR") and the generator that lowers a resolved,
// type-checked AST into it: short-circuit and/or, loop/break/continue,
// and call-argument materialization. The method-naming convention
// (make_temporary_name, generate_declaration/statement/expression) follows
// original_source/Anthem/src/AIR/AIR.cpp, whose return/unary/int-literal
// lowering the original only partially implements; the loop, call, and
// short-circuit lowerings here are built from spec.md §4.6 directly.
package air

import (
	"fmt"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/token"
	"anthem/src/types"
)

// Op is the AIR unary operator set.
type Op int

const (
	OpNegate Op = iota
	OpComplement
	OpNot
	OpNone
)

func (o Op) String() string {
	switch o {
	case OpNegate:
		return "NEGATE"
	case OpComplement:
		return "COMPLEMENT"
	case OpNot:
		return "NOT"
	case OpNone:
		return "NONE"
	default:
		return "OP(?)"
	}
}

// BinOp is the AIR binary operator set: arithmetic, the eager bitwise
// '&'/'|' operators (named And/Or in the enum, distinct from the
// short-circuit 'and'/'or' keywords the generator lowers via jumps), and
// relational comparisons.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
	Div
	Rem
	BitAnd
	BitOr
	Lt
	Gt
	Le
	Ge
	Eq
	Ne
)

func (o BinOp) String() string {
	names := [...]string{"ADD", "SUB", "MUL", "DIV", "REM", "AND", "OR", "LT", "GT", "LE", "GE", "EQ", "NE"}
	if int(o) < len(names) {
		return names[o]
	}
	return "BINOP(?)"
}

func (o BinOp) IsRelational() bool {
	switch o {
	case Lt, Gt, Le, Ge, Eq, Ne:
		return true
	}
	return false
}

// Value is an AIR operand: an immediate Integer or a named Variable.
type Value interface{ isValue() }

type Integer int64

func (Integer) isValue() {}

// Variable names an AIR-level value. Flagged mirrors whether its
// declaration's flag is non-Local (spec.md glossary: "Flagged variable").
type Variable struct {
	Name    string
	Flagged bool
}

func (Variable) isValue() {}

// Instruction is the AIR instruction sum type.
type Instruction interface{ isInstr() }

type UnaryInstr struct {
	Op  Op
	Src Value
	Dst Variable
}

func (UnaryInstr) isInstr() {}

type BinaryInstr struct {
	Op   BinOp
	A, B Value
	Dst  Variable
}

func (BinaryInstr) isInstr() {}

type SetInstr struct {
	Var Variable
	Val Value
}

func (SetInstr) isInstr() {}

type ReturnInstr struct{ Val Value }

func (ReturnInstr) isInstr() {}

type LabelInstr struct{ Name string }

func (LabelInstr) isInstr() {}

type JumpInstr struct{ Label string }

func (JumpInstr) isInstr() {}

type JumpIfZeroInstr struct {
	Cond  Value
	Label string
}

func (JumpIfZeroInstr) isInstr() {}

type JumpIfNotZeroInstr struct {
	Cond  Value
	Label string
}

func (JumpIfNotZeroInstr) isInstr() {}

type CallInstr struct {
	Func       string
	Args       []Variable
	Dst        Variable
	IsExternal bool
}

func (CallInstr) isInstr() {}

// Function is a flat instruction list with the parameter names (in ABI
// order) the code generator needs to marshal incoming arguments. spec.md's
// AIR data model does not spell this field out explicitly, but C7's
// documented parameter-marshalling algorithm (spec.md §4.7(a)) has no other
// source for it once AST Params are gone; it is carried here as the
// necessary link between the two passes.
type Function struct {
	Name         string
	Params       []string
	Flag         ast.Flag
	Instructions []Instruction
}

// FlaggedVar is a non-local variable declaration that survives into the
// ASM tree as data, or (when External with no initializer) as a symbol
// reference resolved at link time.
type FlaggedVar struct {
	Name        string
	Flag        ast.Flag
	Initializer *int64
}

// Program is the AIR generator's complete output.
type Program struct {
	Functions []*Function
	Vars      []*FlaggedVar
}

// Generator lowers a resolved, type-checked AST into AIR. Its temp/label
// counters are single fields spanning the whole program, matching the
// original AIRGenerator's m_temp_counter (one instance processes the
// entire translation unit).
type Generator struct {
	diags        *diag.Diagnostics
	syms         *types.SymbolTable
	tempCounter  int
	labelCounter int
	cur          []Instruction
}

// New returns a Generator that reports into diags.
func New(diags *diag.Diagnostics) *Generator {
	return &Generator{diags: diags}
}

func (g *Generator) makeTemporaryName() string {
	n := fmt.Sprintf("#%d", g.tempCounter)
	g.tempCounter++
	return n
}

func (g *Generator) newLabelID() int {
	id := g.labelCounter
	g.labelCounter++
	return id
}

func (g *Generator) emit(i Instruction) { g.cur = append(g.cur, i) }

func (g *Generator) makeVariable(name string) Variable {
	flagged := false
	if sym, ok := g.syms.Lookup(name); ok {
		if v, ok := sym.(types.VariableSymbol); ok {
			flagged = v.Flag != ast.FlagLocal
		}
	}
	return Variable{Name: name, Flagged: flagged}
}

func (g *Generator) freshVariable() Variable {
	return g.makeVariable(g.makeTemporaryName())
}

// Generate lowers prog into a Program. syms is the symbol table produced by
// the type checker, used only to propagate the "flagged" bit onto
// Variables.
func (g *Generator) Generate(prog *ast.Program, syms *types.SymbolTable) *Program {
	g.syms = syms
	out := &Program{}
	for _, d := range prog.Decls {
		switch v := d.(type) {
		case *ast.FunctionDecl:
			out.Functions = append(out.Functions, g.generateFunction(v))
		case *ast.VariableDecl:
			out.Vars = append(out.Vars, g.generateFlaggedVar(v))
		case *ast.ExternalFunctionDecl:
			// external functions contribute no AIR declaration of their
			// own; Call instructions reference them by name directly.
		}
	}
	return out
}

func (g *Generator) generateFlaggedVar(v *ast.VariableDecl) *FlaggedVar {
	fv := &FlaggedVar{Name: v.Token.Lexeme, Flag: v.Flag}
	if lit, ok := v.Init.(*ast.IntLiteral); ok {
		n := lit.Value
		fv.Initializer = &n
	}
	return fv
}

func (g *Generator) generateFunction(fn *ast.FunctionDecl) *Function {
	g.cur = nil
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = p.Name
	}
	if fn.Body != nil {
		g.generateStatement(fn.Body)
	}
	// Every function unconditionally ends with Return(0); dead code if a
	// return already executed, harmless otherwise (spec.md §4.6).
	g.emit(ReturnInstr{Val: Integer(0)})
	return &Function{Name: fn.NameTok.Lexeme, Params: params, Flag: fn.Flag, Instructions: g.cur}
}

func (g *Generator) generateStatement(s ast.Statement) {
	switch v := s.(type) {
	case *ast.BlockStmt:
		for _, item := range v.Items {
			switch it := item.(type) {
			case ast.Statement:
				g.generateStatement(it)
			case ast.Declaration:
				// Local variable declarations with initializers lower to a
				// Set against the freshly materialized initializer value;
				// declarations without one need no instruction.
				if vd, ok := it.(*ast.VariableDecl); ok && vd.Init != nil {
					val := g.resolveExpression(vd.Init)
					g.emit(SetInstr{Var: g.makeVariable(vd.Token.Lexeme), Val: val})
				}
			}
		}
	case *ast.ReturnStmt:
		val := g.resolveExpression(v.Expr)
		g.emit(ReturnInstr{Val: val})
	case *ast.ExprStmt:
		g.resolveExpression(v.Expr)
	case *ast.VoidStmt:
		// no-op
	case *ast.IfStmt:
		cond := g.resolveExpression(v.Cond)
		lfalse := fmt.Sprintf("if.false.%d", g.newLabelID())
		lend := fmt.Sprintf("if.end.%d", g.newLabelID())
		g.emit(JumpIfZeroInstr{Cond: cond, Label: lfalse})
		g.generateStatement(v.Then)
		if v.Else != nil {
			g.emit(JumpInstr{Label: lend})
			g.emit(LabelInstr{Name: lfalse})
			g.generateStatement(v.Else)
			g.emit(LabelInstr{Name: lend})
		} else {
			g.emit(LabelInstr{Name: lfalse})
		}
	case *ast.LoopStmt:
		loopLabel := fmt.Sprintf("loop.%d", v.ID)
		exitLabel := fmt.Sprintf("exit.%d", v.ID)
		g.emit(LabelInstr{Name: loopLabel})
		g.generateStatement(v.Body)
		g.emit(JumpInstr{Label: loopLabel})
		g.emit(LabelInstr{Name: exitLabel})
	case *ast.WhileStmt:
		loopLabel := fmt.Sprintf("loop.%d", v.ID)
		exitLabel := fmt.Sprintf("exit.%d", v.ID)
		g.emit(LabelInstr{Name: loopLabel})
		cond := g.resolveExpression(v.Cond)
		g.emit(JumpIfZeroInstr{Cond: cond, Label: exitLabel})
		g.generateStatement(v.Body)
		g.emit(JumpInstr{Label: loopLabel})
		g.emit(LabelInstr{Name: exitLabel})
	case *ast.ForStmt:
		loopLabel := fmt.Sprintf("loop.%d", v.ID)
		exitLabel := fmt.Sprintf("exit.%d", v.ID)
		g.resolveExpression(v.Init)
		g.emit(LabelInstr{Name: loopLabel})
		cond := g.resolveExpression(v.Cond)
		g.emit(JumpIfZeroInstr{Cond: cond, Label: exitLabel})
		g.generateStatement(v.Body)
		g.resolveExpression(v.Post)
		g.emit(JumpInstr{Label: loopLabel})
		g.emit(LabelInstr{Name: exitLabel})
	case *ast.BreakStmt:
		g.emit(JumpInstr{Label: fmt.Sprintf("exit.%d", v.ID)})
	case *ast.ContinueStmt:
		// For 'for' loops this jumps to the loop head, which skips the
		// post-iteration expression. spec.md §9 records this as an
		// observed, deliberately preserved ambiguity.
		g.emit(JumpInstr{Label: fmt.Sprintf("loop.%d", v.ID)})
	}
}

func (g *Generator) resolveExpression(e ast.Expression) Value {
	switch v := e.(type) {
	case *ast.IntLiteral:
		return Integer(v.Value)
	case *ast.NameAccess:
		return g.makeVariable(v.Tok.Lexeme)
	case *ast.UnaryExpr:
		return g.unaryOperation(v)
	case *ast.BinaryExpr:
		if v.Op.Kind == token.AND {
			return g.shortCircuitAnd(v)
		}
		if v.Op.Kind == token.OR {
			return g.shortCircuitOr(v)
		}
		a := g.resolveExpression(v.L)
		b := g.resolveExpression(v.R)
		dst := g.freshVariable()
		g.emit(BinaryInstr{Op: binOpFor(v.Op.Kind), A: a, B: b, Dst: dst})
		return dst
	case *ast.AssignmentExpr:
		src := g.resolveExpression(v.Value)
		lv := g.resolveExpression(v.LValue).(Variable)
		g.emit(SetInstr{Var: lv, Val: src})
		return lv
	case *ast.CallExpr:
		args := make([]Variable, len(v.Args))
		for i, a := range v.Args {
			val := g.resolveExpression(a)
			tmp := g.freshVariable()
			g.emit(SetInstr{Var: tmp, Val: val})
			args[i] = tmp
		}
		dst := g.freshVariable()
		g.emit(CallInstr{Func: v.NameTok.Lexeme, Args: args, Dst: dst, IsExternal: v.IsExternal})
		return dst
	}
	return Integer(0)
}

func (g *Generator) unaryOperation(u *ast.UnaryExpr) Value {
	src := g.resolveExpression(u.X)
	dst := g.freshVariable()
	op, ok := unaryOpFor(u.Op.Kind)
	if !ok {
		return src
	}
	g.emit(UnaryInstr{Op: op, Src: src, Dst: dst})
	return dst
}

func unaryOpFor(k token.Kind) (Op, bool) {
	switch k {
	case token.MINUS:
		return OpNegate, true
	case token.PLUS:
		return OpNone, true
	case token.TILDE:
		return OpComplement, true
	case token.BANG:
		return OpNot, true
	}
	return OpNone, false
}

func binOpFor(k token.Kind) BinOp {
	switch k {
	case token.PLUS:
		return Add
	case token.MINUS:
		return Sub
	case token.STAR:
		return Mul
	case token.SLASH:
		return Div
	case token.PERCENT:
		return Rem
	case token.AMP:
		return BitAnd
	case token.PIPE:
		return BitOr
	case token.LESS:
		return Lt
	case token.GREATER:
		return Gt
	case token.LESSEQ:
		return Le
	case token.GREATEREQ:
		return Ge
	case token.EQEQ:
		return Eq
	case token.BANGEQ:
		return Ne
	}
	return Add
}

// shortCircuitAnd implements spec.md §4.6's 'and' lowering: evaluate each
// operand, short-circuiting to 0 the moment one is zero.
func (g *Generator) shortCircuitAnd(b *ast.BinaryExpr) Value {
	lend := fmt.Sprintf("end.%d", g.newLabelID())
	lshort := fmt.Sprintf("short.%d", g.newLabelID())
	dst := g.freshVariable()

	l := g.resolveExpression(b.L)
	g.emit(JumpIfZeroInstr{Cond: l, Label: lshort})
	r := g.resolveExpression(b.R)
	g.emit(JumpIfZeroInstr{Cond: r, Label: lshort})
	g.emit(SetInstr{Var: dst, Val: Integer(1)})
	g.emit(JumpInstr{Label: lend})
	g.emit(LabelInstr{Name: lshort})
	g.emit(SetInstr{Var: dst, Val: Integer(0)})
	g.emit(LabelInstr{Name: lend})
	return dst
}

// shortCircuitOr implements spec.md §4.6's 'or' lowering: JumpIfNotZero in
// place of JumpIfZero, with the 0/1 results swapped.
func (g *Generator) shortCircuitOr(b *ast.BinaryExpr) Value {
	lend := fmt.Sprintf("end.%d", g.newLabelID())
	lshort := fmt.Sprintf("short.%d", g.newLabelID())
	dst := g.freshVariable()

	l := g.resolveExpression(b.L)
	g.emit(JumpIfNotZeroInstr{Cond: l, Label: lshort})
	r := g.resolveExpression(b.R)
	g.emit(JumpIfNotZeroInstr{Cond: r, Label: lshort})
	g.emit(SetInstr{Var: dst, Val: Integer(0)})
	g.emit(JumpInstr{Label: lend})
	g.emit(LabelInstr{Name: lshort})
	g.emit(SetInstr{Var: dst, Val: Integer(1)})
	g.emit(LabelInstr{Name: lend})
	return dst
}
