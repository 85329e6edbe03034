// errors.go: stage error types and caret-snippet rendering
//
// What this file does
// -------------------
// Defines the typed errors each pipeline stage produces, the recoverable
// sentinel conditions of the history layer, and a renderer that turns a
// located error into a readable snippet with a caret pointing at the
// offending column:
//
//	PARSE ERROR at 3:12: unexpected token ')'
//
//	   2 | let x = (1 + 2
//	   3 |              )
//	       |            ^
//	   4 | end
//
// The transport's classifier (cmd/merlin) recognizes these types to decide
// which wire tag a failure maps to: located stage errors become "error"
// responses carrying a Location; everything unrecognized becomes "exception".
//
// Behavior guarantees
// -------------------
//   - Line/column are 1-based in rendered output; out-of-range coordinates
//     are clamped so the caret renders safely on any source, including "".
//   - ErrAtBoundary and ErrMalformedPosition are sentinels meant for
//     errors.Is; commands test for them rather than treating them as bugs.

package merlin

import (
	"errors"
	"fmt"
	"strings"
)

/* ===========================
   PUBLIC API
   =========================== */

// ErrAtBoundary is returned by History movement at either end of the
// sequence. It is a normal, recoverable condition, not a failure.
var ErrAtBoundary = errors.New("at history boundary")

// LexError is a lexical failure at a source position. Col is 0-based.
type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ParseError is a syntactic failure at a source position. Col is 0-based.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// TypeError is a typing failure scoped to a location.
type TypeError struct {
	Loc Location
	Msg string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("TYPE ERROR at %s: %s", e.Loc.Start, e.Msg)
}

// UnterminatedTokenError reports a token (string or comment) left open at
// explicit end of input. The lexer never produces it mid-stream: partial
// tokens simply wait for more text.
type UnterminatedTokenError struct {
	Line int
	Col  int
	What string // "string" | "comment"
}

func (e *UnterminatedTokenError) Error() string {
	return fmt.Sprintf("unterminated %s at %d:%d", e.What, e.Line, e.Col)
}

// ErrorLocation extracts a Location from the stage errors above. The second
// result is false when err carries no position.
func ErrorLocation(err error) (Location, bool) {
	switch e := err.(type) {
	case *LexError:
		p := Position{Line: e.Line, Col: e.Col}
		return Location{Start: p, End: p}, true
	case *ParseError:
		p := Position{Line: e.Line, Col: e.Col}
		return Location{Start: p, End: p}, true
	case *TypeError:
		return e.Loc, true
	case *UnterminatedTokenError:
		p := Position{Line: e.Line, Col: e.Col}
		return Location{Start: p, End: p}, true
	}
	return Location{}, false
}

// WrapErrorWithSource returns an error augmented with a caret-annotated
// snippet of the provided source. It recognizes the located stage errors and
// leaves other errors untouched.
func WrapErrorWithSource(err error, src string) error {
	switch e := err.(type) {
	case *LexError:
		// Lexer Col is 0-based; render as 1-based.
		return fmt.Errorf("%s", prettyErrorString(src, "LEXICAL ERROR", e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", prettyErrorString(src, "PARSE ERROR", e.Line, e.Col+1, e.Msg))
	case *TypeError:
		return fmt.Errorf("%s", prettyErrorString(src, "TYPE ERROR", e.Loc.Start.Line, e.Loc.Start.Col+1, e.Msg))
	default:
		return err
	}
}

//// END_OF_PUBLIC

/* ===========================
   PRIVATE: snippet rendering
   =========================== */

// prettyErrorString builds a Python-like snippet with a header and a caret.
// It shows at most one previous and one next line when available.
// Coordinates are treated as 1-based and clamped to the source bounds.
func prettyErrorString(src, header string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if col < 1 {
		col = 1
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}
	lineTxt := lines[line-1]

	var b strings.Builder
	fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lineTxt)
	caretPad := col - 1
	if caretPad < 0 {
		caretPad = 0
	}
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", caretPad))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
