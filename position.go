// position.go
//
// ROLE: Canonical source positions and ranges, plus their wire encoding.
//
// What lives here
//   • Position (1-based line, 0-based column) and Location (start/end pair).
//   • JSON encode/decode helpers used by the protocol layer. Decoding is
//     strict: a position object must carry integer "line" and "col" fields,
//     anything else fails with ErrMalformedPosition.
//   • WithLocation, which merges a Location's start/end keys with extra
//     payload fields into one JSON object. Every command that reports a
//     source range alongside a payload goes through it.
//
// What does NOT live here
//   • No byte-offset math against buffer text (see LineTable in lexer.go).
//   • No protocol envelopes (see cmd/merlin).

package merlin

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedPosition reports a JSON value that does not describe a position.
var ErrMalformedPosition = errors.New("malformed position")

// Position is a point in the source buffer. Line is 1-based, Col is a 0-based
// byte offset from the start of the line (not an absolute file offset).
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// Location is a half-open range in document order. Invariant: Start <= End.
type Location struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Before reports whether p is strictly before q in document order.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

// AtOrBefore reports whether p is at or before q in document order.
func (p Position) AtOrBefore(q Position) bool { return !q.Before(p) }

// Contains reports whether pos falls inside the location (start inclusive,
// end exclusive).
func (l Location) Contains(pos Position) bool {
	return l.Start.AtOrBefore(pos) && pos.Before(l.End)
}

func (p Position) String() string { return fmt.Sprintf("%d:%d", p.Line, p.Col) }

// DecodePosition parses a JSON value into a Position. The value must be an
// object with integer "line" and "col" members; everything else (missing
// fields, non-integers, wrong JSON kind) fails with ErrMalformedPosition.
func DecodePosition(v any) (Position, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Position{}, ErrMalformedPosition
	}
	line, okL := jsonInt(obj["line"])
	col, okC := jsonInt(obj["col"])
	if !okL || !okC {
		return Position{}, ErrMalformedPosition
	}
	return Position{Line: line, Col: col}, nil
}

// EncodePosition renders a Position as the generic JSON object shape used on
// the wire. Kept symmetric with DecodePosition for round-trip tests.
func EncodePosition(p Position) map[string]any {
	return map[string]any{"line": p.Line, "col": p.Col}
}

// WithLocation merges loc's "start"/"end" keys with extra fields into a single
// JSON object. Extra keys named "start" or "end" are overwritten by the
// location; callers own their key naming.
func WithLocation(loc Location, extra map[string]any) map[string]any {
	out := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		out[k] = v
	}
	out["start"] = EncodePosition(loc.Start)
	out["end"] = EncodePosition(loc.End)
	return out
}

// jsonInt accepts the numeric shapes a JSON decoder may hand us. Floats are
// accepted only when integral (encoding/json decodes all numbers as float64).
func jsonInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}
