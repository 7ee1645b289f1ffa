// Package lexer implements the single linear scan from source text to a
// token list (spec component C2). The scanning technique — one rune of
// lookahead, an explicit start/current index pair, helper methods named
// advance/peek/match — is carried over from the teacher's frontend/lexer.go
// state-function scanner. The teacher drives that scanner with a goroutine
// and an output channel so concurrent passes could start consuming tokens
// before lexing finished; Anthem's pipeline is synchronous end to end (see
// spec.md §5), so the scan here runs to completion and returns a plain
// slice instead.
package lexer

import (
	"anthem/src/diag"
	"anthem/src/token"
)

// Lexer holds scanning state for one source file.
type Lexer struct {
	file string
	src  string
	diag *diag.Diagnostics

	start int // byte offset where the token under construction began
	cur   int // byte offset of the next unread byte
	line  int // current 1-indexed line
}

// New returns a Lexer ready to scan src, which was read from file.
func New(file, src string, diags *diag.Diagnostics) *Lexer {
	return &Lexer{file: file, src: src, diag: diags, line: 1}
}

// Lex scans the entire source and returns its tokens, always terminated by
// exactly one EOF token. The lexer does not recover from a scan error: the
// first ERROR token it produces is immediately followed by EOF and returned
// without examining the remainder of the input.
func (l *Lexer) Lex() []token.Token {
	var out []token.Token
	for {
		l.skipWhitespaceAndComments()
		l.start = l.cur
		tok := l.scanOne()
		out = append(out, tok)
		if tok.Kind == token.ERROR {
			out = append(out, l.makeToken(token.EOF))
			return out
		}
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func (l *Lexer) atEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.cur]
}

func (l *Lexer) peekNext() byte {
	if l.cur+1 >= len(l.src) {
		return 0
	}
	return l.src[l.cur+1]
}

func (l *Lexer) advance() byte {
	c := l.src[l.cur]
	l.cur++
	return c
}

// match consumes the next byte if it equals expected, folding two-character
// operators like "->" and "==" into one token.
func (l *Lexer) match(expected byte) bool {
	if l.atEnd() || l.src[l.cur] != expected {
		return false
	}
	l.cur++
	return true
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEnd() {
		switch c := l.peek(); c {
		case ' ', '\t', '\r':
			l.cur++
		case '\n':
			l.cur++
			l.line++
		case '/':
			if l.peekNext() == '/' {
				for !l.atEnd() && l.peek() != '\n' {
					l.cur++
				}
			} else if l.peekNext() == '*' {
				l.cur += 2
				for !l.atEnd() && !(l.peek() == '*' && l.peekNext() == '/') {
					if l.peek() == '\n' {
						l.line++
					}
					l.cur++
				}
				if !l.atEnd() {
					l.cur += 2 // consume "*/"
				}
			} else {
				return // a lone '/' terminates whitespace handling; re-examined as an operator
			}
		default:
			return
		}
	}
}

func (l *Lexer) makeToken(kind token.Kind) token.Token {
	return token.Token{
		Kind:   kind,
		Lexeme: l.src[l.start:l.cur],
		Pos: token.Position{
			File:  l.file,
			Start: l.start,
			End:   l.cur - 1,
			Line:  l.line,
		},
	}
}

func (l *Lexer) errorToken(format string, args ...interface{}) token.Token {
	pos := token.Position{File: l.file, Start: l.start, End: l.cur - 1, Line: l.line}
	if pos.End < pos.Start {
		pos.End = pos.Start
	}
	l.diag.Reportf(pos, format, args...)
	return token.Token{Kind: token.ERROR, Lexeme: l.src[l.start:l.cur], Pos: pos}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool      { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlphaNumeric(c byte) bool { return isAlpha(c) || isDigit(c) }

func (l *Lexer) scanOne() token.Token {
	if l.atEnd() {
		return l.makeToken(token.EOF)
	}
	c := l.advance()

	switch {
	case isDigit(c):
		return l.number()
	case isAlpha(c):
		return l.identifier()
	}

	switch c {
	case '(':
		return l.makeToken(token.LPAREN)
	case ')':
		return l.makeToken(token.RPAREN)
	case '{':
		return l.makeToken(token.LBRACE)
	case '}':
		return l.makeToken(token.RBRACE)
	case '[':
		return l.makeToken(token.LBRACKET)
	case ']':
		return l.makeToken(token.RBRACKET)
	case '^':
		return l.makeToken(token.CARET)
	case '%':
		return l.makeToken(token.PERCENT)
	case '&':
		return l.makeToken(token.AMP)
	case '~':
		return l.makeToken(token.TILDE)
	case '|':
		return l.makeToken(token.PIPE)
	case '.':
		return l.makeToken(token.DOT)
	case ',':
		return l.makeToken(token.COMMA)
	case ';':
		return l.makeToken(token.SEMI)
	case ':':
		return l.makeToken(token.COLON)
	case '+':
		if l.match('=') {
			return l.makeToken(token.PLUSEQ)
		}
		return l.makeToken(token.PLUS)
	case '-':
		if l.match('>') {
			return l.makeToken(token.ARROW)
		}
		if l.match('=') {
			return l.makeToken(token.MINUSEQ)
		}
		return l.makeToken(token.MINUS)
	case '*':
		if l.match('=') {
			return l.makeToken(token.STAREQ)
		}
		return l.makeToken(token.STAR)
	case '/':
		if l.match('=') {
			return l.makeToken(token.SLASHEQ)
		}
		return l.makeToken(token.SLASH)
	case '!':
		if l.match('=') {
			return l.makeToken(token.BANGEQ)
		}
		return l.makeToken(token.BANG)
	case '=':
		if l.match('=') {
			return l.makeToken(token.EQEQ)
		}
		return l.makeToken(token.EQ)
	case '<':
		if l.match('=') {
			return l.makeToken(token.LESSEQ)
		}
		return l.makeToken(token.LESS)
	case '>':
		if l.match('=') {
			return l.makeToken(token.GREATEREQ)
		}
		return l.makeToken(token.GREATER)
	case '"':
		// Strings are reserved but unimplemented: the caller has no string
		// support yet, so this returns an empty ERROR token, with no
		// diagnostic, rather than consuming (and misreporting) the literal's
		// contents; like any ERROR token it ends the scan.
		return token.Token{Kind: token.ERROR, Lexeme: "", Pos: token.Position{File: l.file, Start: l.start, End: l.start, Line: l.line}}
	}

	return l.errorToken("Unknown Character '%c'", c)
}

func (l *Lexer) number() token.Token {
	isFloat := false
	for isDigit(l.peek()) {
		l.cur++
	}
	if l.peek() == '.' {
		isFloat = true
		l.cur++
		for isDigit(l.peek()) {
			l.cur++
		}
		if l.peek() == '.' {
			l.diag.Reportf(token.Position{File: l.file, Start: l.cur, End: l.cur, Line: l.line}, "Unexpected '.'")
			l.cur++ // skip the stray dot and keep scanning digits
			for isDigit(l.peek()) {
				l.cur++
			}
		}
	}
	if isFloat {
		return l.makeToken(token.FLOAT)
	}
	return l.makeToken(token.INT)
}

func (l *Lexer) identifier() token.Token {
	for isAlphaNumeric(l.peek()) {
		l.cur++
	}
	text := l.src[l.start:l.cur]
	if kind, ok := keywordKind(text); ok {
		return l.makeToken(kind)
	}
	return l.makeToken(token.IDENT)
}

// keywordKind folds identifiers into reserved words, bucketing candidates by
// length first the way the teacher's frontend/lang.go reserved-word table
// does, rather than doing a single large string-keyed map lookup.
var keywordsByLen = buildKeywordTable()

type keywordEntry struct {
	word string
	kind token.Kind
}

func buildKeywordTable() map[int][]keywordEntry {
	table := make(map[int][]keywordEntry)
	for word, kind := range token.Keywords {
		n := len(word)
		table[n] = append(table[n], keywordEntry{word: word, kind: kind})
	}
	return table
}

func keywordKind(text string) (token.Kind, bool) {
	for _, e := range keywordsByLen[len(text)] {
		if e.word == text {
			return e.kind, true
		}
	}
	return 0, false
}
