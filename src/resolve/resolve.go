// Package resolve implements the two-phase semantic resolver (spec
// component C4): a global pre-pass that only catches duplicate function
// declarations, then a scoped pass that α-renames locals, attaches loop
// ids to break/continue, and validates name references. The scope-stack
// shape (a global map plus a stack of copied local maps) is carried over
// directly from original_source/Anthem/src/SemanticAnalyzer/
// SemanticAnalyzer.cpp's m_global_map / m_local_map_stack.
package resolve

import (
	"fmt"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/util"
)

type scope map[string]string

// Resolver holds the scope stack and monotone counters for one resolution
// pass. Per spec.md §5/§9, these counters are scalar fields on a single
// pass instance — never shared globals.
type Resolver struct {
	diags *diag.Diagnostics

	globals scope
	locals  []scope

	loopStack     util.Stack
	loopCounter   int64
	uniqueCounter int64
}

// New returns a Resolver that reports into diags.
func New(diags *diag.Diagnostics) *Resolver {
	return &Resolver{diags: diags}
}

// Resolve rewrites prog in place: identifiers are renamed, loop ids are
// attached, and any legality violation is reported to the diagnostics
// collector.
func (r *Resolver) Resolve(prog *ast.Program) {
	r.globals = scope{}
	r.locals = []scope{{}}

	for _, d := range prog.Decls {
		r.saveDeclaration(d)
	}
	if r.diags.HasErrors() {
		return
	}
	for _, d := range prog.Decls {
		r.resolveDeclaration(d)
	}
}

func (r *Resolver) current() scope { return r.locals[len(r.locals)-1] }

func (r *Resolver) pushScope(copyFrom scope) {
	next := make(scope, len(copyFrom))
	for k, v := range copyFrom {
		next[k] = v
	}
	r.locals = append(r.locals, next)
}

func (r *Resolver) popScope() {
	r.locals = r.locals[:len(r.locals)-1]
}

func (r *Resolver) newLoop() int64 {
	id := r.loopCounter
	r.loopStack.Push(id)
	r.loopCounter++
	return id
}

func (r *Resolver) currentLoop() int64 {
	return r.loopStack.Peek().(int64)
}

func (r *Resolver) popLoop() {
	r.loopStack.Pop()
}

func (r *Resolver) makeUnique(name string) string {
	n := fmt.Sprintf("%s#%d", name, r.uniqueCounter)
	r.uniqueCounter++
	return n
}

// saveDeclaration is the global pre-pass. It registers only function
// duplicates, mirroring the original's save_declaration: variable
// declarations are deliberately skipped here and checked in the main pass
// instead, and external declarations are not duplicate-checked at all.
func (r *Resolver) saveDeclaration(d ast.Declaration) {
	fn, ok := d.(*ast.FunctionDecl)
	if !ok {
		return
	}
	name := fn.NameTok.Lexeme
	if _, dup := r.globals[name]; dup {
		r.diags.Reportf(fn.Pos(), "Function '%s' is already defined", name)
	}
	r.globals[name] = name
}

func (r *Resolver) resolveDeclaration(d ast.Declaration) {
	switch v := d.(type) {
	case *ast.VariableDecl:
		r.resolveVariable(v)
	case *ast.FunctionDecl:
		r.globals[v.NameTok.Lexeme] = v.NameTok.Lexeme
		if len(v.Params) == 0 {
			r.resolveStatement(v.Body)
			return
		}
		r.pushScope(r.current())
		for i := range v.Params {
			name := v.Params[i].Name
			if _, dup := r.current()[name]; dup {
				r.diags.Reportf(v.Pos(), "Variable '%s' is already defined", name)
			}
			renamed := r.makeUnique(name)
			r.current()[name] = renamed
			v.Params[i].Name = renamed
		}
		r.resolveStatement(v.Body)
		r.popScope()
	case *ast.ExternalFunctionDecl:
		r.globals[v.NameTok.Lexeme] = v.NameTok.Lexeme
	}
}

func (r *Resolver) resolveVariable(v *ast.VariableDecl) {
	name := v.Token.Lexeme
	// A scope starts as a copy of its parent, so a name whose mapping still
	// equals the parent's was inherited and may be shadowed here; only a
	// name declared in this very scope is a redeclaration.
	mapped, inLocal := r.current()[name]
	if inLocal && len(r.locals) > 1 {
		if parent, ok := r.locals[len(r.locals)-2][name]; ok && parent == mapped {
			inLocal = false
		}
	}
	_, inGlobal := r.globals[name]
	if inLocal || inGlobal {
		r.diags.Reportf(v.Pos(), "Variable '%s' is already defined", name)
	}

	if v.Init != nil {
		r.resolveExpression(v.Init)
	}

	if v.Flag == ast.FlagLocal {
		renamed := r.makeUnique(name)
		r.current()[name] = renamed
		v.Token.Lexeme = renamed
		return
	}

	renamed := name
	if v.Flag == ast.FlagInternal {
		renamed = r.makeUnique(name)
	}
	r.globals[name] = renamed
	v.Token.Lexeme = renamed
}

func (r *Resolver) resolveStatement(s ast.Statement) {
	switch v := s.(type) {
	case *ast.BlockStmt:
		r.pushScope(r.current())
		for _, item := range v.Items {
			switch it := item.(type) {
			case ast.Statement:
				r.resolveStatement(it)
			case ast.Declaration:
				r.resolveDeclaration(it)
			}
		}
		r.popScope()
	case *ast.ExprStmt:
		r.resolveExpression(v.Expr)
	case *ast.ReturnStmt:
		r.resolveExpression(v.Expr)
	case *ast.IfStmt:
		r.resolveExpression(v.Cond)
		r.resolveStatement(v.Then)
		if v.Else != nil {
			r.resolveStatement(v.Else)
		}
	case *ast.WhileStmt:
		v.ID = r.newLoop()
		r.resolveExpression(v.Cond)
		r.resolveStatement(v.Body)
		r.popLoop()
	case *ast.LoopStmt:
		v.ID = r.newLoop()
		r.resolveStatement(v.Body)
		r.popLoop()
	case *ast.ForStmt:
		v.ID = r.newLoop()
		r.resolveExpression(v.Init)
		r.resolveExpression(v.Cond)
		r.resolveExpression(v.Post)
		r.resolveStatement(v.Body)
		r.popLoop()
	case *ast.BreakStmt:
		if r.loopStack.Size() == 0 {
			r.diags.Reportf(v.Pos(), "Cannot use break outside of a loop")
			return
		}
		v.ID = r.currentLoop()
	case *ast.ContinueStmt:
		if r.loopStack.Size() == 0 {
			r.diags.Reportf(v.Pos(), "Cannot use continue outside of a loop")
			return
		}
		v.ID = r.currentLoop()
	case *ast.VoidStmt:
		// nothing to resolve
	}
}

func (r *Resolver) resolveExpression(e ast.Expression) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ast.UnaryExpr:
		r.resolveExpression(v.X)
	case *ast.BinaryExpr:
		r.resolveExpression(v.L)
		r.resolveExpression(v.R)
	case *ast.AssignmentExpr:
		if _, ok := v.LValue.(*ast.NameAccess); !ok {
			r.diags.Reportf(v.Pos(), "Invalid assignment target")
		}
		r.resolveExpression(v.LValue)
		r.resolveExpression(v.Value)
	case *ast.NameAccess:
		name := v.Tok.Lexeme
		if renamed, ok := r.current()[name]; ok {
			v.Tok.Lexeme = renamed
		} else if renamed, ok := r.globals[name]; ok {
			v.Tok.Lexeme = renamed
		} else {
			r.diags.Reportf(v.Pos(), "Variable '%s' is not defined in this scope", name)
		}
	case *ast.CallExpr:
		name := v.NameTok.Lexeme
		if _, ok := r.globals[name]; !ok {
			r.diags.Reportf(v.Pos(), "Function '%s' is not defined", name)
		}
		// Function names are never renamed (spec.md §4.4), so there is no
		// rewrite to perform here once existence is confirmed.
		for _, arg := range v.Args {
			r.resolveExpression(arg)
		}
	case *ast.IntLiteral:
		// nothing to resolve
	}
}
