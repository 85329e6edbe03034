// outline.go — outline parser: groups tokens into definition chunks
//
// OVERVIEW
// --------
// The outline parser is the cheapest structural pass: it watches the token
// stream for definition-boundary keywords (let, type, module, open,
// exception, val) and bracket/begin-end structure, and cuts the stream into
// Chunks — syntactically self-contained top-level units. A chunk's identity
// for incremental purposes is its raw source text: two chunks are "the
// same" exactly when their raw text is byte-identical, which is what the
// history layer's Sync compares.
//
// Boundary rules:
//   • A definition keyword at nesting depth 0 starts a new chunk, unless the
//     previous token shows we are mid-expression (after "=", "->", "in",
//     "then", ...): "let a = let b = 1 in b" is one chunk.
//   • ";;" at depth 0 closes the current chunk explicitly.
//   • struct/sig/begin/(/[/{ push depth; end/)/]/} pop it. Inner
//     definitions inside a module body therefore never split the chunk.
//
// Malformed or unterminated constructs at end of input yield a best-effort
// partial chunk (Partial=true) rather than failing — the editor still gets
// feedback on an incomplete buffer.
//
// The outliner is streaming: Push hands it newly lexed tokens and returns
// the chunks that closed; Flush drains the trailing partial chunk at end of
// input.

package merlin

import "strings"

// Chunk is a syntactically-complete top-level unit as delimited by the
// outline parser.
type Chunk struct {
	Kind    string // "let" | "type" | "module" | "open" | "exception" | "val" | "expr"
	Name    string // best-effort defined name ("" when none applies)
	Tokens  []Token
	Raw     string // raw source slice; the incremental identity
	Loc     Location
	Partial bool // cut short by end of input with structure still open
}

// ChunkRaw is the raw-input extractor used when building a History over
// chunks.
func ChunkRaw(c Chunk) string { return c.Raw }

// Outliner cuts a token stream into chunks. src must return the buffer text
// between two absolute byte offsets; the outliner itself never stores the
// buffer.
type Outliner struct {
	src   func(start, end int) string
	cur   []Token
	depth int
}

// NewOutliner returns an outliner reading raw text through src.
func NewOutliner(src func(start, end int) string) *Outliner {
	return &Outliner{src: src}
}

// Push consumes newly lexed tokens and returns the chunks that closed.
func (o *Outliner) Push(toks []Token) []Chunk {
	var out []Chunk
	for _, t := range toks {
		if o.depth == 0 && len(o.cur) > 0 && DefinitionKeyword(t.Type) && o.expressionClosed() {
			out = append(out, o.close(false))
		}
		o.cur = append(o.cur, t)
		switch t.Type {
		case LPAREN, LBRACKET, LBRACE, STRUCT, SIG, BEGIN:
			o.depth++
		case RPAREN, RBRACKET, RBRACE, END:
			if o.depth > 0 {
				o.depth--
			}
		case SEMISEMI:
			if o.depth == 0 {
				out = append(out, o.close(false))
			}
		}
	}
	return out
}

// Flush returns the trailing chunk at end of input, if any. The chunk is
// marked Partial when bracket/begin-end structure was still open.
func (o *Outliner) Flush() (Chunk, bool) {
	if len(o.cur) == 0 {
		return Chunk{}, false
	}
	return o.close(o.depth != 0), true
}

// Depth reports the current nesting depth (used by tests and diagnostics).
func (o *Outliner) Depth() int { return o.depth }

//// END_OF_PUBLIC

// expressionClosed reports whether the previous token can legally end an
// expression. A definition keyword right after one of these is a new
// definition; after "=", "in", "->" etc. it is a nested expression head.
func (o *Outliner) expressionClosed() bool {
	prev := o.cur[len(o.cur)-1].Type
	switch prev {
	case IDENT, UIDENT, INT, FLOAT, STRING, TRUE, FALSE,
		RPAREN, RBRACKET, RBRACE, END, SEMISEMI:
		return true
	}
	return false
}

func (o *Outliner) close(partial bool) Chunk {
	toks := o.cur
	o.cur = nil
	o.depth = 0
	first, last := toks[0], toks[len(toks)-1]
	c := Chunk{
		Kind:    chunkKind(first.Type),
		Name:    chunkName(toks),
		Tokens:  toks,
		Raw:     o.src(first.StartByte, last.EndByte),
		Partial: partial,
	}
	c.Loc = Location{
		Start: Position{Line: first.Line, Col: first.Col},
		End:   tokenEnd(last),
	}
	return c
}

func chunkKind(t TokenType) string {
	switch t {
	case LET:
		return "let"
	case TYPE:
		return "type"
	case MODULE:
		return "module"
	case OPEN:
		return "open"
	case EXCEPTION:
		return "exception"
	case VAL:
		return "val"
	}
	return "expr"
}

// chunkName extracts the defined name: the first identifier after the
// definition keyword, skipping "rec".
func chunkName(toks []Token) string {
	if len(toks) == 0 || !DefinitionKeyword(toks[0].Type) {
		return ""
	}
	for _, t := range toks[1:] {
		switch t.Type {
		case REC:
			continue
		case IDENT, UIDENT:
			return t.Lexeme
		default:
			return ""
		}
	}
	return ""
}

// tokenEnd computes the position just past a token. Only string literals can
// span lines.
func tokenEnd(t Token) Position {
	if n := strings.Count(t.Lexeme, "\n"); n > 0 {
		lastNL := strings.LastIndexByte(t.Lexeme, '\n')
		return Position{Line: t.Line + n, Col: len(t.Lexeme) - lastNL - 1}
	}
	return Position{Line: t.Line, Col: t.Col + len(t.Lexeme)}
}
