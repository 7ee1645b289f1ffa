package token

import (
	"fmt"
	"io"
)

// Dump writes one line per token, in the same indented-trace spirit as
// ast.Dump: a debugging aid (spec.md §9, "Pretty-printer fidelity"), not an
// authoritative serialization.
func Dump(w io.Writer, toks []Token) {
	for _, t := range toks {
		fmt.Fprintf(w, "%-12s %-12q %s\n", t.Kind, t.Lexeme, t.Pos)
	}
}
