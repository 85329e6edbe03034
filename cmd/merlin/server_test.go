// cmd/merlin/server_test.go
package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarcWeber/merlin/internal/config"
)

// req builds one request line.
func req(t *testing.T, name string, args ...any) string {
	t.Helper()
	b, err := json.Marshal(append([]any{name}, args...))
	require.NoError(t, err)
	return string(b)
}

type response struct {
	tag     string
	payload any
}

// run feeds the request lines through a fresh server and decodes one
// tagged response per line.
func run(t *testing.T, lines ...string) []response {
	t.Helper()
	cfg := config.Defaults()
	var out strings.Builder
	srv, err := newServer(&cfg, strings.NewReader(strings.Join(lines, "\n")+"\n"), &out)
	require.NoError(t, err)
	defer srv.close()
	srv.loop()

	var rs []response
	if raw := strings.TrimSpace(out.String()); raw != "" {
		for _, line := range strings.Split(raw, "\n") {
			var arr []any
			require.NoError(t, json.Unmarshal([]byte(line), &arr), "response line %q", line)
			require.Len(t, arr, 2)
			tag, _ := arr[0].(string)
			rs = append(rs, response{tag: tag, payload: arr[1]})
		}
	}
	want := 0
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			want++
		}
	}
	require.Len(t, rs, want, "one response per request")
	return rs
}

func pos(line, col int) map[string]any {
	return map[string]any{"line": line, "col": col}
}

func Test_Server_TellReturnsCompletion(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let foo = 42"),
		req(t, "tell", "struct", nil),
	)
	require.Equal(t, response{tag: "return", payload: false}, rs[0])
	require.Equal(t, response{tag: "return", payload: true}, rs[1])
}

func Test_Server_UnknownCommand(t *testing.T) {
	rs := run(t, req(t, "frobnicate"))
	require.Equal(t, response{tag: "failure", payload: "unknown command"}, rs[0])
}

func Test_Server_MalformedInput(t *testing.T) {
	rs := run(t,
		"this is not json",
		`"just a string"`,
		`[]`,
		`[42]`,
	)
	for i, r := range rs {
		require.Equal(t, "failure", r.tag, "line %d", i)
		require.Equal(t, "malformed command", r.payload, "line %d", i)
	}
}

func Test_Server_EmptyLinesSkipped(t *testing.T) {
	rs := run(t,
		"",
		req(t, "protocol", "version"),
		"",
	)
	require.Len(t, rs, 1)
	require.Equal(t, "return", rs[0].tag)
}

func Test_Server_ArityFailures(t *testing.T) {
	rs := run(t,
		req(t, "tell"),
		req(t, "tell", 1, 2),
		req(t, "seek", "sideways", pos(1, 0)),
		req(t, "dump", "nonsense"),
	)
	for i, r := range rs {
		require.Equal(t, "failure", r.tag, "request %d", i)
	}
}

func Test_Server_MalformedPositionIsFailure(t *testing.T) {
	rs := run(t, req(t, "seek", "exact", "1:0"))
	require.Equal(t, "failure", rs[0].tag)
}

func Test_Server_TypeAt(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let foo = 42"),
		req(t, "tell", "struct", nil),
		req(t, "type", "at", pos(1, 10)),
	)
	require.Equal(t, "return", rs[2].tag)
	m, ok := rs[2].payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, "int", m["type"])
	require.Equal(t, map[string]any{"line": float64(1), "col": float64(10)}, m["start"])
}

func Test_Server_TypeAtOutsideBufferIsError(t *testing.T) {
	rs := run(t, req(t, "type", "at", pos(5, 0)))
	require.Equal(t, "error", rs[0].tag)
	m, _ := rs[0].payload.(map[string]any)
	require.Contains(t, m["message"], "no typed tree")
}

func Test_Server_TypeExpr(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let n = 3"),
		req(t, "tell", "struct", nil),
		req(t, "type", "expr", "string_of_int n"),
	)
	require.Equal(t, "return", rs[2].tag)
	m, _ := rs[2].payload.(map[string]any)
	require.Equal(t, "string", m["type"])
}

func Test_Server_Errors(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = nope"),
		req(t, "tell", "struct", nil),
		req(t, "errors"),
	)
	require.Equal(t, "return", rs[2].tag)
	list, ok := rs[2].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	d, _ := list[0].(map[string]any)
	require.Contains(t, d["message"], "unbound value nope")
	require.Equal(t, float64(2), d["start"].(map[string]any)["line"])
}

func Test_Server_Outline(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\ntype t = int\nmodule M = struct end"),
		req(t, "tell", "struct", nil),
		req(t, "outline"),
	)
	list, ok := rs[2].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 3)
	first, _ := list[0].(map[string]any)
	require.Equal(t, "let", first["kind"])
	require.Equal(t, "a", first["name"])
	last, _ := list[2].(map[string]any)
	require.Equal(t, "module", last["kind"])
	require.Equal(t, "M", last["name"])
}

func Test_Server_Complete(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let prime = 7"),
		req(t, "tell", "struct", nil),
		req(t, "complete", "prefix", "pri"),
	)
	list, ok := rs[2].payload.([]any)
	require.True(t, ok)
	names := make([]string, 0, len(list))
	for _, e := range list {
		m, _ := e.(map[string]any)
		names = append(names, m["name"].(string))
	}
	require.Contains(t, names, "prime")
	require.Contains(t, names, "print_string")
}

func Test_Server_SeekAndRetell(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "seek", "exact", pos(2, 0)),
		req(t, "tell", "struct", "let b = 99"),
		req(t, "tell", "struct", nil),
		req(t, "dump", "typed"),
	)
	require.Equal(t, "return", rs[2].tag)
	require.Equal(t, map[string]any{"line": float64(2), "col": float64(0)}, rs[2].payload)

	list, ok := rs[5].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	second, _ := list[1].(map[string]any)
	require.Equal(t, "b", second["name"])
}

func Test_Server_SeekReusesValidatedFuture(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = a + 1"),
		req(t, "tell", "struct", nil),
		req(t, "seek", "before", pos(1, 0)),
		// Retelling identical text promotes the retained results.
		req(t, "tell", "struct", "let a = 1\nlet b = a + 1"),
		req(t, "tell", "struct", nil),
		req(t, "errors"),
	)
	require.Equal(t, "return", rs[5].tag)
	require.Empty(t, rs[5].payload)
}

func Test_Server_RetellWithLeadingBlankLines(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "seek", "before", pos(1, 0)),
		// Same definitions pushed down two lines: the raw chunk text is
		// unchanged, so every location must still move.
		req(t, "tell", "struct", "\n\nlet a = 1\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "outline"),
	)
	list, ok := rs[5].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	first, _ := list[0].(map[string]any)
	require.Equal(t, float64(3), first["start"].(map[string]any)["line"])
	second, _ := list[1].(map[string]any)
	require.Equal(t, float64(4), second["start"].(map[string]any)["line"])
}

func Test_Server_SeekBeforeStopsShortOfBoundary(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "seek", "exact", pos(1, 9)),
		req(t, "seek", "before", pos(1, 9)),
	)
	// "exact" accepts the boundary ending at the position; "before" stops
	// at the last boundary strictly before it.
	require.Equal(t, map[string]any{"line": float64(2), "col": float64(0)}, rs[2].payload)
	require.Equal(t, map[string]any{"line": float64(1), "col": float64(0)}, rs[3].payload)
}

func Test_Server_ErrorsIncludeSkippedCharacters(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1 $\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "errors"),
	)
	list, ok := rs[2].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	d, _ := list[0].(map[string]any)
	require.Contains(t, d["message"], "unexpected character")
	require.Equal(t, float64(1), d["start"].(map[string]any)["line"])
	require.Equal(t, float64(10), d["start"].(map[string]any)["col"])
}

func Test_Server_OversizedLineAnswersBeforeShutdown(t *testing.T) {
	cfg := config.Defaults()
	cfg.Protocol.MaxLineBytes = 64

	var out strings.Builder
	in := req(t, "protocol", "version") + "\n" + strings.Repeat("x", 200) + "\n"
	srv, err := newServer(&cfg, strings.NewReader(in), &out)
	require.NoError(t, err)
	defer srv.close()
	srv.loop()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	var arr []any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &arr))
	require.Equal(t, "failure", arr[0])
	require.Contains(t, arr[1], "too long")
}

func Test_Server_Reset(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = nope"),
		req(t, "tell", "struct", nil),
		req(t, "reset"),
		req(t, "errors"),
	)
	require.Equal(t, response{tag: "return", payload: true}, rs[2])
	require.Empty(t, rs[3].payload)
}

func Test_Server_DumpChunks(t *testing.T) {
	rs := run(t,
		req(t, "tell", "struct", "let a = 1\nlet b = 2"),
		req(t, "tell", "struct", nil),
		req(t, "dump", "chunks"),
	)
	list, ok := rs[2].payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	c0, _ := list[0].(map[string]any)
	require.Equal(t, "let", c0["kind"])
	require.Equal(t, true, c0["validated"])
	require.Equal(t, false, c0["partial"])
}

func Test_Server_PathCommands(t *testing.T) {
	dir := t.TempDir()
	rs := run(t,
		req(t, "path", "add", "source", dir),
		req(t, "path", "list"),
		req(t, "path", "add", "bogus", dir),
		req(t, "path", "reset"),
		req(t, "path", "list"),
	)
	require.Equal(t, "return", rs[0].tag)
	m, _ := rs[1].payload.(map[string]any)
	require.Equal(t, []any{dir}, m["source"])
	require.Equal(t, "failure", rs[2].tag)
	m, _ = rs[4].payload.(map[string]any)
	require.Empty(t, m["source"])
}

func Test_Server_PathAddRetypesBuffer(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geom.ml"), []byte("let area = 3"), 0o644))

	rs := run(t,
		req(t, "tell", "struct", "open Geom\nlet z = area"),
		req(t, "tell", "struct", nil),
		req(t, "errors"),
		req(t, "path", "add", "source", dir),
		req(t, "errors"),
	)
	before, _ := rs[2].payload.([]any)
	require.NotEmpty(t, before, "unresolved open diagnoses")
	require.Equal(t, "return", rs[3].tag)
	after, _ := rs[4].payload.([]any)
	require.Empty(t, after, "path add retypes the whole buffer")
}

func Test_Server_ProjectLoad(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "geom.ml"), []byte("let area = 3"), 0o644))
	desc := filepath.Join(dir, ".merlin")
	require.NoError(t, os.WriteFile(desc, []byte("S src\nPKG str\n"), 0o644))

	rs := run(t,
		req(t, "project", "load", desc),
		req(t, "which", "path", "Geom"),
	)
	require.Equal(t, "return", rs[0].tag)
	m, _ := rs[0].payload.(map[string]any)
	require.Equal(t, []any{"str"}, m["packages"])

	require.Equal(t, "return", rs[1].tag)
	require.Equal(t, filepath.Join(src, "geom.ml"), rs[1].payload)
}

func Test_Server_WhichMissingIsError(t *testing.T) {
	rs := run(t, req(t, "which", "path", "Nowhere"))
	require.Equal(t, "error", rs[0].tag)
}

func Test_Server_ProtocolVersion(t *testing.T) {
	rs := run(t, req(t, "protocol", "version"))
	require.Equal(t, "return", rs[0].tag)
	m, _ := rs[0].payload.(map[string]any)
	require.Equal(t, float64(protocolVersion), m["selected"])
	require.Contains(t, m["merlin"], "merlin ")
}

func Test_Server_Help(t *testing.T) {
	rs := run(t, req(t, "help"))
	require.Equal(t, "return", rs[0].tag)
	list, ok := rs[0].payload.([]any)
	require.True(t, ok)
	names := make([]string, 0, len(list))
	for _, e := range list {
		m, _ := e.(map[string]any)
		names = append(names, m["name"].(string))
	}
	require.Contains(t, names, "tell")
	require.Contains(t, names, "seek")
	require.True(t, sort.StringsAreSorted(names))
}

func Test_Server_ProtocolLogTee(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "wire.log")
	cfg := config.Defaults()
	cfg.Log.File = logPath

	var out strings.Builder
	in := req(t, "protocol", "version") + "\n"
	srv, err := newServer(&cfg, strings.NewReader(in), &out)
	require.NoError(t, err)
	srv.loop()
	srv.close()

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "> "))
	require.True(t, strings.HasPrefix(lines[1], "< "))
}
