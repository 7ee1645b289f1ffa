// Package parser implements recursive-descent parsing with precedence
// climbing for expressions (spec component C3), grounded on
// original_source/Anthem/src/Parser/Parser.cpp's structure (a single
// Parser object walking a flat token list with a `current` index) adapted
// to Go's interface-based AST instead of shared_ptr<ASTNode>.
package parser

import (
	"strconv"

	"anthem/src/ast"
	"anthem/src/diag"
	"anthem/src/token"
)

// precedence is the operator table from spec.md §4.3, plus the eager
// bitwise '&' and '|', which share the equality level. Higher binds tighter;
// all entries are left-associative except EQ (assignment), which recurses
// at the same precedence to build a right-leaning Assignment chain.
var precedence = map[token.Kind]int{
	token.STAR: 6, token.SLASH: 6, token.PERCENT: 6,
	token.PLUS: 5, token.MINUS: 5,
	token.LESS: 4, token.GREATER: 4, token.LESSEQ: 4, token.GREATEREQ: 4,
	token.EQEQ: 3, token.BANGEQ: 3,
	token.AMP: 3, token.PIPE: 3,
	token.AND: 2,
	token.OR:  1,
	token.EQ:  0,
}

// stabilizeStops are the token kinds stabilize() treats as the start of a
// new top-level or statement construct it is safe to resume parsing at.
var stabilizeStops = map[token.Kind]bool{
	token.FN: true, token.LET: true, token.IF: true, token.WHILE: true,
	token.FOR: true, token.LOOP: true, token.LBRACE: true,
}

// Parser walks a flat token slice built by the lexer.
type Parser struct {
	toks  []token.Token
	pos   int
	diags *diag.Diagnostics
}

// New returns a Parser over toks, which must end with an EOF token.
func New(toks []token.Token, diags *diag.Diagnostics) *Parser {
	return &Parser{toks: toks, diags: diags}
}

// Parse consumes the whole token stream and returns the Program it denotes.
// Declarations that fail to parse are skipped (via stabilize) so later
// declarations can still be checked in the same pass.
func (p *Parser) Parse() *ast.Program {
	var decls []ast.Declaration
	for !p.check(token.EOF) {
		before := p.pos
		if d := p.declaration(); d != nil {
			decls = append(decls, d)
		}
		if p.pos == before {
			// declaration() made no progress (e.g. it bailed before
			// consuming anything); force progress to avoid looping forever.
			p.advance()
		}
	}
	return &ast.Program{Decls: decls}
}

// ---- token stream helpers ----

func (p *Parser) peek() token.Token  { return p.toks[p.pos] }
func (p *Parser) check(k token.Kind) bool { return p.peek().Kind == k }

func (p *Parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// expect consumes the current token if it has kind k, else reports
// "Expected <X>, got <Y>" and returns the (unconsumed) current token so
// callers can keep building a best-effort node.
func (p *Parser) expect(k token.Kind, what string) token.Token {
	if p.check(k) {
		return p.advance()
	}
	cur := p.peek()
	p.diags.Reportf(cur.Pos, "Expected %s, got %s", what, cur.Kind)
	return cur
}

// stabilize implements the parser's error-recovery routine from spec.md §9:
// skip until ';' (consumed) or one of {FN, LET, IF, WHILE, FOR, LOOP, '{',
// EOF}.
func (p *Parser) stabilize() {
	for !p.check(token.EOF) {
		if p.check(token.SEMI) {
			p.advance()
			return
		}
		if stabilizeStops[p.peek().Kind] {
			return
		}
		p.advance()
	}
}

// ---- declarations ----

func (p *Parser) declaration() ast.Declaration {
	switch p.peek().Kind {
	case token.FN:
		return p.functionDecl(ast.FlagGlobal)
	case token.EXTERNAL:
		p.advance()
		if p.check(token.FN) {
			return p.externalFunctionDecl()
		}
		return p.variableDecl(ast.FlagExternal)
	case token.INTERNAL:
		p.advance()
		if p.check(token.FN) {
			return p.functionDecl(ast.FlagInternal)
		}
		return p.variableDecl(ast.FlagInternal)
	case token.GLOBAL:
		p.advance()
		return p.variableDecl(ast.FlagGlobal)
	case token.LET:
		p.advance()
		return p.variableDecl(ast.FlagLocal)
	default:
		p.diags.Reportf(p.peek().Pos, "Expected a declaration")
		p.stabilize()
		return nil
	}
}

func (p *Parser) parseParams() []ast.Param {
	var params []ast.Param
	if p.check(token.RPAREN) {
		return params
	}
	for {
		nameTok := p.expect(token.IDENT, "identifier")
		p.expect(token.COLON, "':'")
		typ := p.parseType()
		params = append(params, ast.Param{Name: nameTok.Lexeme, Type: typ})
		if !p.match(token.COMMA) {
			break
		}
	}
	return params
}

func (p *Parser) parseType() token.Kind {
	t := p.peek()
	if token.IsType(t.Kind) {
		p.advance()
		return t.Kind
	}
	p.diags.Reportf(t.Pos, "Expected identifier/type after ':'")
	return token.I32
}

func (p *Parser) functionDecl(flag ast.Flag) ast.Declaration {
	p.advance() // 'fn'
	nameTok := p.expect(token.IDENT, "identifier")
	p.expect(token.LPAREN, "'('")
	params := p.parseParams()
	p.expect(token.RPAREN, "')'")
	p.expect(token.COLON, "':'")
	rt := p.parseType()
	body := p.statement()
	return &ast.FunctionDecl{NameTok: nameTok, Params: params, Body: body, ReturnType: rt, Flag: flag}
}

func (p *Parser) externalFunctionDecl() ast.Declaration {
	p.advance() // 'fn'
	nameTok := p.expect(token.IDENT, "identifier")
	p.expect(token.LPAREN, "'('")
	params := p.parseParams()
	p.expect(token.RPAREN, "')'")
	p.expect(token.COLON, "':'")
	rt := p.parseType()
	p.expect(token.SEMI, "';'")
	return &ast.ExternalFunctionDecl{NameTok: nameTok, Params: params, ReturnType: rt}
}

func (p *Parser) variableDecl(flag ast.Flag) ast.Declaration {
	nameTok := p.expect(token.IDENT, "identifier")
	p.expect(token.COLON, "':'")
	typ := p.parseType()
	var init ast.Expression
	if p.match(token.EQ) {
		init = p.expression(0)
	}
	p.expect(token.SEMI, "';'")
	return &ast.VariableDecl{Token: nameTok, Type: typ, Init: init, Flag: flag}
}

// ---- statements ----

func (p *Parser) statement() ast.Statement {
	switch p.peek().Kind {
	case token.RETURN:
		kw := p.advance()
		e := p.expression(0)
		p.expect(token.SEMI, "';'")
		return &ast.ReturnStmt{Expr: e, Kw: kw.Pos}
	case token.IF:
		kw := p.advance()
		cond := p.expression(0)
		p.expect(token.ARROW, "'->'")
		then := p.statement()
		var els ast.Statement
		if p.match(token.ELSE) {
			els = p.statement()
		}
		return &ast.IfStmt{Cond: cond, Then: then, Else: els, Kw: kw.Pos}
	case token.WHILE:
		kw := p.advance()
		cond := p.expression(0)
		p.expect(token.ARROW, "'->'")
		body := p.statement()
		return &ast.WhileStmt{Cond: cond, Body: body, ID: ast.NoLoop, Kw: kw.Pos}
	case token.FOR:
		kw := p.advance()
		init := p.expression(0)
		p.expect(token.SEMI, "';'")
		cond := p.expression(0)
		p.expect(token.SEMI, "';'")
		post := p.expression(0)
		p.expect(token.ARROW, "'->'")
		body := p.statement()
		return &ast.ForStmt{Init: init, Cond: cond, Post: post, Body: body, ID: ast.NoLoop, Kw: kw.Pos}
	case token.LOOP:
		kw := p.advance()
		body := p.statement()
		return &ast.LoopStmt{Body: body, ID: ast.NoLoop, Kw: kw.Pos}
	case token.BREAK:
		kw := p.advance()
		p.expect(token.SEMI, "';'")
		return &ast.BreakStmt{ID: ast.NoLoop, Kw: kw.Pos}
	case token.CONTINUE:
		kw := p.advance()
		p.expect(token.SEMI, "';'")
		return &ast.ContinueStmt{ID: ast.NoLoop, Kw: kw.Pos}
	case token.LBRACE:
		return p.block()
	case token.SEMI:
		kw := p.advance()
		return &ast.VoidStmt{Semi: kw.Pos}
	default:
		e := p.expression(0)
		p.expect(token.SEMI, "';'")
		return &ast.ExprStmt{Expr: e}
	}
}

func (p *Parser) block() ast.Statement {
	lbrace := p.expect(token.LBRACE, "'{'")
	var items []ast.BlockItem
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		items = append(items, p.blockItem())
	}
	p.expect(token.RBRACE, "'}'")
	return &ast.BlockStmt{Items: items, Brace: lbrace.Pos}
}

func (p *Parser) blockItem() ast.BlockItem {
	switch p.peek().Kind {
	case token.LET, token.GLOBAL, token.INTERNAL, token.EXTERNAL, token.FN:
		if d := p.declaration(); d != nil {
			return d
		}
		return &ast.VoidStmt{Semi: p.peek().Pos}
	default:
		return p.statement()
	}
}

// ---- expressions ----

func (p *Parser) expression(minPrec int) ast.Expression {
	left := p.factor()
	for {
		op := p.peek()
		pr, ok := precedence[op.Kind]
		if !ok || pr < minPrec {
			break
		}
		p.advance()
		if op.Kind == token.EQ {
			right := p.expression(pr) // right-associative: recurse at the same precedence
			left = &ast.AssignmentExpr{LValue: left, Value: right, Tok: op}
		} else {
			right := p.expression(pr + 1)
			left = &ast.BinaryExpr{Op: op, L: left, R: right}
		}
	}
	return left
}

func (p *Parser) factor() ast.Expression {
	t := p.peek()
	switch t.Kind {
	case token.INT:
		p.advance()
		n, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return &ast.IntLiteral{Value: n, Tok: t}
	case token.MINUS, token.PLUS, token.TILDE, token.BANG:
		p.advance()
		x := p.factor()
		return &ast.UnaryExpr{Op: t, X: x}
	case token.LPAREN:
		p.advance()
		e := p.expression(0)
		p.expect(token.RPAREN, "')'")
		return e
	case token.IDENT:
		p.advance()
		if p.match(token.LPAREN) {
			var args []ast.Expression
			if !p.check(token.RPAREN) {
				for {
					args = append(args, p.expression(0))
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			p.expect(token.RPAREN, "')'")
			return &ast.CallExpr{NameTok: t, Args: args}
		}
		return &ast.NameAccess{Tok: t}
	default:
		p.diags.Reportf(t.Pos, "Expected expression")
		p.stabilize()
		return &ast.IntLiteral{Value: 0, Tok: t}
	}
}
