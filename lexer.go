// lexer.go — resumable outline lexer for the analyzed ML-flavored surface
//
// OVERVIEW
// --------
// This lexer consumes raw buffer text incrementally: the editor feeds text
// in arbitrary fragments (the protocol's "tell" command) and end-of-buffer
// is signaled explicitly. The lexer therefore carries explicit resumable
// state — the unconsumed buffered text and the position it starts at — and
// exposes exactly the interface the pipeline needs:
//
//	Feed(text)  append text, return the tokens that completed
//	Finish()    no more text; flush the rest, or report what was left open
//
// Suspension rule: a token is only emitted once we know it cannot extend.
// Any token that would end exactly at the end of the buffered text is held
// back (an identifier may grow, "-" may become "->", a string may not have
// closed). Comments are (* ... *) with nesting and produce no tokens; an
// open comment simply suspends the scan until more text arrives. Only
// Finish turns a still-open string or comment into UnterminatedTokenError —
// mid-stream they are not errors, per the interactive contract. An illegal
// character never stops the scan either: it is recorded (TakeErrs), skipped,
// and the text after it still tokenizes.
//
// Positions: Line is 1-based, Col is a 0-based byte column, and every token
// carries absolute byte offsets so the outline parser can slice raw chunk
// text out of the buffer.
//
// DEPENDENCIES
// ------------
// errors.go: LexError, UnterminatedTokenError.

package merlin

import (
	"errors"
	"fmt"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	ILLEGAL TokenType = iota

	// Literals & identifiers
	IDENT  // lowercase-initial identifier
	UIDENT // uppercase-initial identifier (modules, constructors)
	INT
	FLOAT
	STRING

	// Punctuation
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	COMMA
	SEMI
	SEMISEMI // ";;" — explicit top-level terminator
	COLON
	DOT
	PIPE

	// Operators
	EQUAL
	ARROW // "->"
	PLUS
	MINUS
	STAR
	SLASH
	LESS
	GREATER
	LESSEQ
	GREATEREQ
	NOTEQ // "<>"

	// Keywords
	LET
	REC
	IN
	ANDKW
	TYPE
	MODULE
	OPEN
	EXCEPTION
	OF
	VAL
	STRUCT
	SIG
	BEGIN
	END
	FUN
	MATCH
	WITH
	IF
	THEN
	ELSE
	TRUE
	FALSE
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL",
	IDENT:   "IDENT", UIDENT: "UIDENT", INT: "INT", FLOAT: "FLOAT", STRING: "STRING",
	LPAREN: "LPAREN", RPAREN: "RPAREN", LBRACKET: "LBRACKET", RBRACKET: "RBRACKET",
	LBRACE: "LBRACE", RBRACE: "RBRACE", COMMA: "COMMA", SEMI: "SEMI",
	SEMISEMI: "SEMISEMI", COLON: "COLON", DOT: "DOT", PIPE: "PIPE",
	EQUAL: "EQUAL", ARROW: "ARROW", PLUS: "PLUS", MINUS: "MINUS", STAR: "STAR",
	SLASH: "SLASH", LESS: "LESS", GREATER: "GREATER", LESSEQ: "LESSEQ",
	GREATEREQ: "GREATEREQ", NOTEQ: "NOTEQ",
	LET: "LET", REC: "REC", IN: "IN", ANDKW: "AND", TYPE: "TYPE", MODULE: "MODULE",
	OPEN: "OPEN", EXCEPTION: "EXCEPTION", OF: "OF", VAL: "VAL", STRUCT: "STRUCT",
	SIG: "SIG", BEGIN: "BEGIN", END: "END", FUN: "FUN", MATCH: "MATCH",
	WITH: "WITH", IF: "IF", THEN: "THEN", ELSE: "ELSE", TRUE: "TRUE", FALSE: "FALSE",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a lexical unit with its own source range.
type Token struct {
	Type      TokenType
	Lexeme    string
	Line      int // 1-based
	Col       int // 0-based byte column
	StartByte int // absolute offset in the session buffer
	EndByte   int
}

var keywords = map[string]TokenType{
	"let":       LET,
	"rec":       REC,
	"in":        IN,
	"and":       ANDKW,
	"type":      TYPE,
	"module":    MODULE,
	"open":      OPEN,
	"exception": EXCEPTION,
	"of":        OF,
	"val":       VAL,
	"struct":    STRUCT,
	"sig":       SIG,
	"begin":     BEGIN,
	"end":       END,
	"fun":       FUN,
	"match":     MATCH,
	"with":      WITH,
	"if":        IF,
	"then":      THEN,
	"else":      ELSE,
	"true":      TRUE,
	"false":     FALSE,
}

// DefinitionKeyword reports whether t opens a top-level definition chunk.
func DefinitionKeyword(t TokenType) bool {
	switch t {
	case LET, TYPE, MODULE, OPEN, EXCEPTION, VAL:
		return true
	}
	return false
}

// Lexer scans fed text into tokens, suspending at incomplete input.
type Lexer struct {
	src      string // fed, not-yet-consumed text plus consumed prefix
	consumed int    // src[:consumed] has been fully tokenized
	finished bool

	// position of src[consumed] in the overall buffer
	line   int
	col    int
	origin int // absolute byte offset of src[0]

	errs []error // illegal characters seen so far, drained by TakeErrs
}

// NewLexer returns a lexer positioned at the start of an empty buffer.
func NewLexer() *Lexer { return NewLexerAt(0, Position{Line: 1, Col: 0}) }

// NewLexerAt returns a lexer that resumes scanning at the given absolute
// byte offset and position. Used after "seek" repositions the session: the
// validated prefix is not re-fed, so the lexer must start mid-buffer.
func NewLexerAt(offset int, pos Position) *Lexer {
	return &Lexer{line: pos.Line, col: pos.Col, origin: offset}
}

// Pos reports the position of the first unconsumed byte.
func (l *Lexer) Pos() Position { return Position{Line: l.line, Col: l.col} }

// Offset reports the absolute byte offset of the first unconsumed byte.
func (l *Lexer) Offset() int { return l.origin + l.consumed }

// Pending reports whether unconsumed text is buffered (a suspended token or
// trailing whitespace).
func (l *Lexer) Pending() bool { return l.consumed < len(l.src) }

// Feed appends text and returns the tokens that completed. Feeding after
// Finish is a caller bug and panics.
func (l *Lexer) Feed(text string) []Token {
	if l.finished {
		panic("merlin: Feed after Finish")
	}
	l.src += text
	toks, _ := l.pump(false)
	return toks
}

// Finish signals end of input and flushes whatever remains. A still-open
// string or comment is reported as UnterminatedTokenError; tokens scanned
// before the open point are still returned.
func (l *Lexer) Finish() ([]Token, error) {
	l.finished = true
	return l.pump(true)
}

// TakeErrs drains the illegal-character errors accumulated since the last
// call. An illegal character never stops the scan: it is recorded here,
// skipped, and tokenization continues after it.
func (l *Lexer) TakeErrs() []error {
	errs := l.errs
	l.errs = nil
	return errs
}

//// END_OF_PUBLIC

// pump scans as many tokens as the buffered text supports. With atEOF unset
// it holds back any token that touches the end of the buffer; with atEOF set
// it drains everything and classifies open constructs as unterminated.
func (l *Lexer) pump(atEOF bool) ([]Token, error) {
	var out []Token
	for {
		l.skipBlank()
		if l.consumed >= len(l.src) {
			return out, nil
		}
		// Comments: consumed silently; an open one suspends (or errors at EOF).
		if strings.HasPrefix(l.src[l.consumed:], "(*") {
			ok, err := l.skipComment(atEOF)
			if err != nil {
				return out, err
			}
			if !ok {
				return out, nil // suspended mid-comment
			}
			continue
		}
		tok, n, complete, err := l.scanOne(atEOF)
		if err != nil {
			var le *LexError
			if errors.As(err, &le) {
				// Record, skip the offending byte and keep scanning.
				l.errs = append(l.errs, err)
				l.advanceBy(1)
				continue
			}
			return out, err
		}
		if !complete {
			return out, nil
		}
		// Hold-back rule: without EOF, a token ending flush with the buffer
		// might still extend.
		if !atEOF && l.consumed+n == len(l.src) {
			return out, nil
		}
		l.advanceBy(n)
		tok.EndByte = l.origin + l.consumed
		out = append(out, tok)
	}
}

// skipBlank consumes spaces, tabs and newlines, updating line/col.
func (l *Lexer) skipBlank() {
	for l.consumed < len(l.src) {
		switch l.src[l.consumed] {
		case ' ', '\t', '\r':
			l.consumed++
			l.col++
		case '\n':
			l.consumed++
			l.line++
			l.col = 0
		default:
			return
		}
	}
}

// skipComment consumes a (* ... *) comment with nesting. Returns ok=false
// when the comment is still open and more text may arrive.
func (l *Lexer) skipComment(atEOF bool) (ok bool, err error) {
	startLine, startCol := l.line, l.col
	i := l.consumed
	depth := 0
	for i < len(l.src) {
		if strings.HasPrefix(l.src[i:], "(*") {
			depth++
			i += 2
			continue
		}
		if strings.HasPrefix(l.src[i:], "*)") {
			depth--
			i += 2
			if depth == 0 {
				l.advanceBy(i - l.consumed)
				return true, nil
			}
			continue
		}
		i++
	}
	if atEOF {
		return false, &UnterminatedTokenError{Line: startLine, Col: startCol, What: "comment"}
	}
	return false, nil
}

// scanOne scans a single token starting at l.consumed without consuming it.
// complete=false means the token ran off the end of the buffer (only
// possible for strings here; other shapes always terminate).
func (l *Lexer) scanOne(atEOF bool) (tok Token, n int, complete bool, err error) {
	s := l.src[l.consumed:]
	mk := func(tt TokenType, n int) (Token, int, bool, error) {
		return Token{
			Type:      tt,
			Lexeme:    s[:n],
			Line:      l.line,
			Col:       l.col,
			StartByte: l.origin + l.consumed,
		}, n, true, nil
	}

	c := s[0]
	switch c {
	case '(':
		return mk(LPAREN, 1)
	case ')':
		return mk(RPAREN, 1)
	case '[':
		return mk(LBRACKET, 1)
	case ']':
		return mk(RBRACKET, 1)
	case '{':
		return mk(LBRACE, 1)
	case '}':
		return mk(RBRACE, 1)
	case ',':
		return mk(COMMA, 1)
	case '.':
		return mk(DOT, 1)
	case '|':
		return mk(PIPE, 1)
	case '+':
		return mk(PLUS, 1)
	case '*':
		return mk(STAR, 1)
	case '/':
		return mk(SLASH, 1)
	case '=':
		return mk(EQUAL, 1)
	case ';':
		if len(s) > 1 && s[1] == ';' {
			return mk(SEMISEMI, 2)
		}
		return mk(SEMI, 1)
	case ':':
		return mk(COLON, 1)
	case '-':
		if len(s) > 1 && s[1] == '>' {
			return mk(ARROW, 2)
		}
		return mk(MINUS, 1)
	case '<':
		if len(s) > 1 && s[1] == '=' {
			return mk(LESSEQ, 2)
		}
		if len(s) > 1 && s[1] == '>' {
			return mk(NOTEQ, 2)
		}
		return mk(LESS, 1)
	case '>':
		if len(s) > 1 && s[1] == '=' {
			return mk(GREATEREQ, 2)
		}
		return mk(GREATER, 1)
	}

	if c == '"' {
		n, closed := scanString(s)
		if !closed {
			if atEOF {
				return Token{}, 0, false, &UnterminatedTokenError{Line: l.line, Col: l.col, What: "string"}
			}
			return Token{}, 0, false, nil
		}
		return mk(STRING, n)
	}

	if isDigit(c) {
		n := 1
		isFloat := false
		for n < len(s) && (isDigit(s[n]) || s[n] == '.' || s[n] == '_') {
			if s[n] == '.' {
				if isFloat {
					break
				}
				isFloat = true
			}
			n++
		}
		if isFloat {
			return mk(FLOAT, n)
		}
		return mk(INT, n)
	}

	if isAlpha(c) {
		n := 1
		for n < len(s) && isAlphaNum(s[n]) {
			n++
		}
		word := s[:n]
		if tt, ok := keywords[word]; ok {
			return mk(tt, n)
		}
		if word[0] >= 'A' && word[0] <= 'Z' {
			return mk(UIDENT, n)
		}
		return mk(IDENT, n)
	}

	return Token{}, 0, false, &LexError{
		Line: l.line, Col: l.col,
		Msg: fmt.Sprintf("unexpected character: %q", c),
	}
}

// advanceBy consumes n bytes, updating line/col across newlines.
func (l *Lexer) advanceBy(n int) {
	end := l.consumed + n
	for l.consumed < end {
		if l.src[l.consumed] == '\n' {
			l.line++
			l.col = 0
		} else {
			l.col++
		}
		l.consumed++
	}
}

// scanString scans a double-quoted string with backslash escapes starting at
// s[0] == '"'. Returns the byte length including quotes and whether the
// closing quote was found.
func scanString(s string) (n int, closed bool) {
	i := 1
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
		case '"':
			return i + 1, true
		default:
			i++
		}
	}
	return 0, false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b) || b == '\''
}

// LineTable maps between byte offsets and positions for a buffer snapshot.
type LineTable struct {
	starts []int // byte offset of each line start; starts[0] == 0
	length int
}

// NewLineTable indexes text for offset/position conversions.
func NewLineTable(text string) *LineTable {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineTable{starts: starts, length: len(text)}
}

// PosToOffset converts a Position to an absolute byte offset, clamped to the
// buffer bounds.
func (t *LineTable) PosToOffset(p Position) int {
	line := p.Line
	if line < 1 {
		line = 1
	}
	if line > len(t.starts) {
		return t.length
	}
	off := t.starts[line-1] + p.Col
	lineEnd := t.length
	if line < len(t.starts) {
		lineEnd = t.starts[line] - 1
	}
	if off > lineEnd {
		off = lineEnd
	}
	return off
}

// OffsetToPos converts an absolute byte offset to a Position.
func (t *LineTable) OffsetToPos(off int) Position {
	if off < 0 {
		off = 0
	}
	if off > t.length {
		off = t.length
	}
	// binary search for the line containing off
	lo, hi := 0, len(t.starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.starts[mid] <= off {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Position{Line: lo + 1, Col: off - t.starts[lo]}
}
