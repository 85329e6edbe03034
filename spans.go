// spans.go — sidecar spans for syntax-fragment S-expressions
//
// WHAT THIS MODULE DOES
// =====================
// Associates source byte spans with nodes of a fragment AST (the
// S-expression type S from parser.go) without modifying the AST itself.
// Spans are half-open byte intervals [StartByte, EndByte) relative to the
// *chunk* the fragment was parsed from, so they stay valid when an earlier
// edit shifts the chunk within the buffer.
//
// HOW SPANS ARE ASSOCIATED TO NODES
// =================================
// A sidecar SpanIndex is keyed by a stable structural address, a NodePath:
// a slice of child indexes into the tree. Paths are defined against the
// S-expression shape where a node is []any{tag, elem0, elem1, ...}; child
// index i addresses the i-th element after the tag that is itself an S.
//
// This file does not compute spans. The parser records one Span per AST
// node in post-order (children before parent) while constructing the tree;
// BuildSpanIndexPostOrder then binds those spans to concrete paths via a
// deterministic walk in the same order. A count mismatch means the producer
// desynchronized and yields a nil index, which every consumer treats as
// "no span information" rather than an error.
//
// The index is read-only after construction.

package merlin

import "strconv"

// S is the S-expression node type: a slice whose first element is a string
// tag, followed by atoms and child nodes.
type S = []any

// Span is a half-open byte interval relative to the chunk start.
type Span struct {
	StartByte int
	EndByte   int
}

// NodePath addresses a node structurally: each element is a child index
// counting only S-valued elements... see package comment. An empty path is
// the root.
type NodePath []int

// Key renders the path as a map key.
func (p NodePath) Key() string {
	out := ""
	for i, c := range p {
		if i > 0 {
			out += "."
		}
		out += strconv.Itoa(c)
	}
	return out
}

// SpanIndex maps NodePaths to Spans.
type SpanIndex struct {
	spans map[string]Span
	paths []NodePath // all paths, in post-order
}

// Get returns the span recorded for the node at path p.
func (x *SpanIndex) Get(p NodePath) (Span, bool) {
	if x == nil {
		return Span{}, false
	}
	sp, ok := x.spans[p.Key()]
	return sp, ok
}

// Enclosing returns the path of the innermost node whose span contains the
// chunk-relative offset, preferring deeper (later post-order) nodes on
// ties. ok is false when no node contains the offset.
func (x *SpanIndex) Enclosing(off int) (NodePath, bool) {
	if x == nil {
		return nil, false
	}
	best := NodePath(nil)
	bestLen := -1
	found := false
	for _, p := range x.paths {
		sp := x.spans[p.Key()]
		if off < sp.StartByte || off >= sp.EndByte {
			continue
		}
		width := sp.EndByte - sp.StartByte
		if !found || width < bestLen || (width == bestLen && len(p) > len(best)) {
			best, bestLen, found = p, width, true
		}
	}
	return best, found
}

// BuildSpanIndexPostOrder binds spans (recorded children-first) to node
// paths. Returns nil when the span count does not match the node count.
func BuildSpanIndexPostOrder(ast S, spans []Span) *SpanIndex {
	idx := &SpanIndex{spans: make(map[string]Span, len(spans))}
	i := 0
	var walk func(n S, path NodePath) bool
	walk = func(n S, path NodePath) bool {
		for ci := 1; ci < len(n); ci++ {
			if child, ok := n[ci].(S); ok {
				cp := append(append(NodePath(nil), path...), ci-1)
				if !walk(child, cp) {
					return false
				}
			}
		}
		if i >= len(spans) {
			return false
		}
		idx.spans[path.Key()] = spans[i]
		idx.paths = append(idx.paths, append(NodePath(nil), path...))
		i++
		return true
	}
	if !walk(ast, nil) || i != len(spans) {
		return nil
	}
	return idx
}

// NodeAt resolves a path against the tree. A path element i addresses the
// element at position i+1, which must itself be an S.
func NodeAt(ast S, p NodePath) (S, bool) {
	n := ast
	for _, want := range p {
		if want < 0 || want+1 >= len(n) {
			return nil, false
		}
		child, ok := n[want+1].(S)
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}
