// Package types implements the type checker and symbol table construction
// (spec component C5), grounded on original_source/Anthem/src/
// SemanticAnalyzer/TypeChecker.cpp's two-pass shape: a pre-pass registers
// every function's signature, then a main pass visits declarations and
// expressions to validate initializers and call arity.
package types

import (
	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/token"
)

// Symbol is the sum type stored in a SymbolTable: either a VariableSymbol or
// a FunctionSymbol.
type Symbol interface {
	symbolNode()
}

type VariableSymbol struct {
	ReturnType  token.Kind
	Flag        ast.Flag
	Initializer ast.Expression
}

func (VariableSymbol) symbolNode() {}

type FunctionSymbol struct {
	ReturnType token.Kind
	ParamTypes []token.Kind
	IsExternal bool
	Flag       ast.Flag
}

func (FunctionSymbol) symbolNode() {}

// SymbolTable maps a resolved (unique) name to its Symbol.
type SymbolTable struct {
	symbols map[string]Symbol
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: map[string]Symbol{}}
}

func (t *SymbolTable) Lookup(name string) (Symbol, bool) {
	s, ok := t.symbols[name]
	return s, ok
}

func (t *SymbolTable) set(name string, s Symbol) {
	t.symbols[name] = s
}

// Checker builds a SymbolTable while validating the invariants spec.md
// §4.5 describes. The type lattice collapses to I32 everywhere; the token
// kind distinctions are preserved only so future extension can resume them.
type Checker struct {
	diags *diag.Diagnostics
	syms  *SymbolTable
}

// New returns a Checker that reports into diags.
func New(diags *diag.Diagnostics) *Checker {
	return &Checker{diags: diags, syms: newSymbolTable()}
}

// Check runs the pre-pass and main pass over prog and returns the resulting
// SymbolTable. prog is expected to have already gone through the resolver.
func (c *Checker) Check(prog *ast.Program) *SymbolTable {
	for _, d := range prog.Decls {
		c.trackFunction(d)
	}
	for _, d := range prog.Decls {
		c.checkDeclaration(d)
	}
	return c.syms
}

func (c *Checker) trackFunction(d ast.Declaration) {
	switch v := d.(type) {
	case *ast.FunctionDecl:
		c.syms.set(v.NameTok.Lexeme, FunctionSymbol{
			ReturnType: v.ReturnType,
			ParamTypes: paramTypes(v.Params),
			IsExternal: false,
			Flag:       v.Flag,
		})
	case *ast.ExternalFunctionDecl:
		c.syms.set(v.NameTok.Lexeme, FunctionSymbol{
			ReturnType: v.ReturnType,
			ParamTypes: paramTypes(v.Params),
			IsExternal: true,
			Flag:       ast.FlagExternal,
		})
	}
}

func paramTypes(params []ast.Param) []token.Kind {
	out := make([]token.Kind, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

func (c *Checker) checkDeclaration(d ast.Declaration) {
	switch v := d.(type) {
	case *ast.VariableDecl:
		c.checkVariable(v)
	case *ast.FunctionDecl:
		c.checkStatement(v.Body)
	case *ast.ExternalFunctionDecl:
		// no body to recurse into
	}
}

func (c *Checker) checkVariable(v *ast.VariableDecl) {
	switch v.Flag {
	case ast.FlagExternal:
		if v.Init != nil {
			c.diags.Reportf(v.Pos(), "External variable declarations cannot have an initializer")
		}
	case ast.FlagGlobal, ast.FlagInternal:
		if v.Init != nil {
			if _, ok := v.Init.(*ast.IntLiteral); !ok {
				c.diags.Reportf(v.Pos(), "Global/internal variable declarations cannot have a non-constant initializer")
			}
		}
	}
	c.syms.set(v.Token.Lexeme, VariableSymbol{ReturnType: v.Type, Flag: v.Flag, Initializer: v.Init})
	if v.Init != nil {
		c.checkExpression(v.Init)
	}
}

func (c *Checker) checkStatement(s ast.Statement) {
	switch v := s.(type) {
	case *ast.BlockStmt:
		for _, item := range v.Items {
			switch it := item.(type) {
			case ast.Statement:
				c.checkStatement(it)
			case ast.Declaration:
				c.checkDeclaration(it)
			}
		}
	case *ast.ReturnStmt:
		c.checkExpression(v.Expr)
	case *ast.ExprStmt:
		c.checkExpression(v.Expr)
	case *ast.IfStmt:
		c.checkExpression(v.Cond)
		c.checkStatement(v.Then)
		if v.Else != nil {
			c.checkStatement(v.Else)
		}
	case *ast.WhileStmt:
		c.checkExpression(v.Cond)
		c.checkStatement(v.Body)
	case *ast.LoopStmt:
		c.checkStatement(v.Body)
	case *ast.ForStmt:
		c.checkExpression(v.Init)
		c.checkExpression(v.Cond)
		c.checkExpression(v.Post)
		c.checkStatement(v.Body)
	}
}

func (c *Checker) checkExpression(e ast.Expression) {
	if e == nil {
		return
	}
	switch v := e.(type) {
	case *ast.UnaryExpr:
		c.checkExpression(v.X)
	case *ast.BinaryExpr:
		c.checkExpression(v.L)
		c.checkExpression(v.R)
	case *ast.AssignmentExpr:
		c.checkExpression(v.LValue)
		c.checkExpression(v.Value)
	case *ast.CallExpr:
		sym, ok := c.syms.Lookup(v.NameTok.Lexeme)
		if ok {
			if fn, ok := sym.(FunctionSymbol); ok {
				if len(fn.ParamTypes) != len(v.Args) {
					c.diags.Reportf(v.Pos(), "Function call '%s' expected %d arguments but got %d",
						v.NameTok.Lexeme, len(fn.ParamTypes), len(v.Args))
				}
				v.IsExternal = fn.IsExternal
			}
		}
		for _, a := range v.Args {
			c.checkExpression(a)
		}
	}
}
