// outline_test.go
package merlin

import (
	"fmt"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/require"
)

// chunksOf runs lexer and outliner over a complete source text.
func chunksOf(t *testing.T, src string) []Chunk {
	t.Helper()
	l := NewLexer()
	toks := l.Feed(src)
	rest, err := l.Finish()
	require.NoError(t, err)
	toks = append(toks, rest...)

	o := NewOutliner(func(s, e int) string { return src[s:e] })
	out := o.Push(toks)
	if c, ok := o.Flush(); ok {
		out = append(out, c)
	}
	return out
}

// dumpChunks renders chunks one per line for diff-based comparison.
func dumpChunks(chunks []Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "%s %q partial=%v raw=%q\n", c.Kind, c.Name, c.Partial, c.Raw)
	}
	return b.String()
}

func requireChunkDump(t *testing.T, want string, chunks []Chunk) {
	t.Helper()
	got := dumpChunks(chunks)
	if got != want {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(want),
			B:        difflib.SplitLines(got),
			FromFile: "want",
			ToFile:   "got",
			Context:  3,
		})
		t.Fatalf("chunk dump mismatch:\n%s", diff)
	}
}

func Test_Outline_SplitsTopLevelDefinitions(t *testing.T) {
	src := "let a = 1\nlet b = 2\ntype t = int\nopen List"
	requireChunkDump(t, ""+
		"let \"a\" partial=false raw=\"let a = 1\"\n"+
		"let \"b\" partial=false raw=\"let b = 2\"\n"+
		"type \"t\" partial=false raw=\"type t = int\"\n"+
		"open \"List\" partial=false raw=\"open List\"\n",
		chunksOf(t, src))
}

func Test_Outline_LetInIsOneChunk(t *testing.T) {
	src := "let a = let b = 1 in b"
	cs := chunksOf(t, src)
	require.Len(t, cs, 1)
	require.Equal(t, "let", cs[0].Kind)
	require.Equal(t, "a", cs[0].Name)
	require.Equal(t, src, cs[0].Raw)
}

func Test_Outline_ModuleBodyDoesNotSplit(t *testing.T) {
	src := "module M = struct let x = 1 let y = 2 end\nlet z = 3"
	cs := chunksOf(t, src)
	require.Len(t, cs, 2)
	require.Equal(t, "module", cs[0].Kind)
	require.Equal(t, "M", cs[0].Name)
	require.Equal(t, "let", cs[1].Kind)
	require.Equal(t, "z", cs[1].Name)
}

func Test_Outline_SemiSemiClosesChunk(t *testing.T) {
	src := "let a = 1;; let b = 2"
	cs := chunksOf(t, src)
	require.Len(t, cs, 2)
	require.Equal(t, "let a = 1;;", cs[0].Raw)
}

func Test_Outline_BareExpressionChunk(t *testing.T) {
	src := "print_string \"hi\""
	cs := chunksOf(t, src)
	require.Len(t, cs, 1)
	require.Equal(t, "expr", cs[0].Kind)
	require.Equal(t, "", cs[0].Name)
}

func Test_Outline_PartialChunkAtEndOfInput(t *testing.T) {
	src := "let a = 1\nmodule M = struct let x = 2"
	cs := chunksOf(t, src)
	require.Len(t, cs, 2)
	require.False(t, cs[0].Partial)
	require.True(t, cs[1].Partial, "open struct at EOF yields a partial chunk")
	require.Equal(t, "module", cs[1].Kind)
}

func Test_Outline_Locations(t *testing.T) {
	src := "let a = 1\nlet b = 2"
	cs := chunksOf(t, src)
	require.Equal(t, Position{Line: 1, Col: 0}, cs[0].Loc.Start)
	require.Equal(t, Position{Line: 1, Col: 9}, cs[0].Loc.End)
	require.Equal(t, Position{Line: 2, Col: 0}, cs[1].Loc.Start)
}

func Test_Outline_StreamingMatchesBatch(t *testing.T) {
	src := "let a = 1\nlet b = (2,\n3)\ntype t = int"

	// streaming: feed in small pieces
	l := NewLexer()
	o := NewOutliner(func(s, e int) string { return src[s:e] })
	var streamed []Chunk
	for i := 0; i < len(src); i += 4 {
		end := i + 4
		if end > len(src) {
			end = len(src)
		}
		streamed = append(streamed, o.Push(l.Feed(src[i:end]))...)
	}
	rest, err := l.Finish()
	require.NoError(t, err)
	streamed = append(streamed, o.Push(rest)...)
	if c, ok := o.Flush(); ok {
		streamed = append(streamed, c)
	}

	requireChunkDump(t, dumpChunks(chunksOf(t, src)), streamed)
}

func Test_Outline_ChunkRawIsIncrementalIdentity(t *testing.T) {
	a := chunksOf(t, "let a = 1\nlet b = 2")
	b := chunksOf(t, "let a = 1\nlet b = 99")
	require.Equal(t, ChunkRaw(a[0]), ChunkRaw(b[0]))
	require.NotEqual(t, ChunkRaw(a[1]), ChunkRaw(b[1]))
}
