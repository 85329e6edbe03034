// cmd/merlin/commands.go
//
// ROLE: The command handlers behind every wire request.
//
// What lives here
//   • registry() building the full command table.
//   • One handler per command: tell, seek, path, project, reset, type,
//     complete, errors, outline, dump, which, protocol, help.
//   • Argument decoding helpers. Arity and type mismatches are
//     "failure" conditions; recognized analysis misses are "error".
//
// What does NOT live here
//   • No pipeline mechanics (state.go), no framing (transport.go).

package main

import (
	"fmt"
	"sort"
	"strings"

	merlin "github.com/MarcWeber/merlin"
)

func registry() map[string]command {
	reg := make(map[string]command)
	add := func(name, usage string, run handler) {
		reg[name] = command{name: name, usage: usage, run: run}
	}

	add("tell", "tell <scope> <text|null>: feed source text; null ends the buffer", cmdTell)
	add("seek", "seek before|exact <position>: move the analysis cursor", cmdSeek)
	add("path", "path list|add|remove|reset [build|source] [dir]: manage search paths", cmdPath)
	add("project", "project load <file>: load a project descriptor", cmdProject)
	add("reset", "reset [name]: drop the buffer and restart", cmdReset)
	add("type", "type at <position> | type expr <string>: query types", cmdType)
	add("complete", "complete prefix <string> [at <position>]: identifier completion", cmdComplete)
	add("errors", "errors: all diagnostics for the analyzed buffer", cmdErrors)
	add("outline", "outline: top-level definitions with locations", cmdOutline)
	add("dump", "dump tokens|chunks|typed: inspect a pipeline layer", cmdDump)
	add("which", "which path <module>: resolve a module name to its file", cmdWhich)
	add("protocol", "protocol version: report the wire protocol version", cmdProtocol)

	add("help", "help: list available commands", func(s *session, args []any) (any, error) {
		names := make([]string, 0, len(reg))
		for name := range reg {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, 0, len(names))
		for _, name := range names {
			out = append(out, map[string]any{"name": name, "usage": reg[name].usage})
		}
		return out, nil
	})

	return reg
}

// ---------------- buffer commands ----------------

func cmdTell(s *session, args []any) (any, error) {
	if len(args) != 2 {
		return nil, failuref("tell expects 2 arguments, got %d", len(args))
	}
	if _, ok := args[0].(string); !ok {
		return nil, failuref("tell: scope must be a string")
	}
	if args[1] == nil {
		s.finish()
		return true, nil
	}
	text, ok := args[1].(string)
	if !ok {
		return nil, failuref("tell: text must be a string or null")
	}
	s.feed(text)
	return false, nil
}

func cmdSeek(s *session, args []any) (any, error) {
	if len(args) != 2 {
		return nil, failuref("seek expects 2 arguments, got %d", len(args))
	}
	mode, ok := args[0].(string)
	if !ok || (mode != "before" && mode != "exact") {
		return nil, failuref("seek: mode must be \"before\" or \"exact\"")
	}
	pos, err := merlin.DecodePosition(args[1])
	if err != nil {
		return nil, err
	}
	return merlin.EncodePosition(s.seek(pos, mode == "exact")), nil
}

func cmdReset(s *session, args []any) (any, error) {
	if len(args) > 1 {
		return nil, failuref("reset expects at most 1 argument")
	}
	s.clearBuffer()
	return true, nil
}

// ---------------- configuration commands ----------------

func cmdPath(s *session, args []any) (any, error) {
	if len(args) == 0 {
		return nil, failuref("path expects a subcommand")
	}
	sub, _ := args[0].(string)
	switch sub {
	case "list":
		p := s.loader.Paths()
		return map[string]any{"build": p.Build, "source": p.Source}, nil
	case "reset":
		s.loader.ResetPaths()
		s.rebuildTyped()
		return true, nil
	case "add", "remove":
		if len(args) != 3 {
			return nil, failuref("path %s expects a path kind and a directory", sub)
		}
		kind, _ := args[1].(string)
		dir, ok := args[2].(string)
		if !ok {
			return nil, failuref("path %s: directory must be a string", sub)
		}
		var done bool
		if sub == "add" {
			done = s.loader.AddPath(kind, dir)
		} else {
			done = s.loader.RemovePath(kind, dir)
		}
		if !done {
			return nil, failuref("path %s: unknown path kind %q", sub, kind)
		}
		// Module resolution feeds the env baseline; everything typed is
		// suspect now.
		s.rebuildTyped()
		return true, nil
	}
	return nil, failuref("path: unknown subcommand %q", sub)
}

func cmdProject(s *session, args []any) (any, error) {
	if len(args) != 2 {
		return nil, failuref("project expects \"load\" and a file path")
	}
	if sub, _ := args[0].(string); sub != "load" {
		return nil, failuref("project: unknown subcommand")
	}
	file, ok := args[1].(string)
	if !ok {
		return nil, failuref("project load: file must be a string")
	}
	p, err := merlin.LoadProject(file)
	if err != nil {
		return nil, &queryError{msg: err.Error()}
	}
	p.Apply(s.loader)
	s.rebuildTyped()
	return map[string]any{
		"loaded":   p.Path,
		"build":    p.Build,
		"source":   p.Source,
		"packages": p.Packages,
		"warnings": p.Warnings,
	}, nil
}

// ---------------- query commands ----------------

func cmdType(s *session, args []any) (any, error) {
	if len(args) != 2 {
		return nil, failuref("type expects a subcommand and one argument")
	}
	sub, _ := args[0].(string)
	switch sub {
	case "at":
		pos, err := merlin.DecodePosition(args[1])
		if err != nil {
			return nil, err
		}
		tf, ok := s.fragmentAt(pos)
		if !ok {
			return nil, &queryError{msg: "no typed tree available at this position"}
		}
		t, loc, ok := tf.TypeAtPosition(pos)
		if !ok {
			return nil, &queryError{msg: "no type information at this position", loc: &tf.Loc}
		}
		return merlin.WithLocation(loc, map[string]any{"type": merlin.FormatType(t)}), nil
	case "expr":
		src, ok := args[1].(string)
		if !ok {
			return nil, failuref("type expr: expression must be a string")
		}
		t, diags, err := merlin.TypeExpr(src, s.env, s.loader)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":   merlin.FormatType(t),
			"errors": encodeDiagnostics(diags),
		}, nil
	}
	return nil, failuref("type: unknown subcommand %q", sub)
}

func cmdComplete(s *session, args []any) (any, error) {
	if len(args) != 2 && len(args) != 4 {
		return nil, failuref("complete expects \"prefix\" <string> [\"at\" <position>]")
	}
	if sub, _ := args[0].(string); sub != "prefix" {
		return nil, failuref("complete: unknown subcommand")
	}
	prefix, ok := args[1].(string)
	if !ok {
		return nil, failuref("complete prefix: prefix must be a string")
	}
	env := s.env
	if len(args) == 4 {
		if at, _ := args[2].(string); at != "at" {
			return nil, failuref("complete: expected \"at\" before the position")
		}
		pos, err := merlin.DecodePosition(args[3])
		if err != nil {
			return nil, err
		}
		if tf, ok := s.fragmentAt(pos); ok {
			env = tf.Before
		}
	}

	names := env.Names()
	keys := make([]string, 0, len(names))
	for name := range names {
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	out := make([]any, 0, len(keys))
	for _, name := range keys {
		out = append(out, map[string]any{
			"name": name,
			"kind": "value",
			"desc": merlin.FormatType(names[name]),
		})
	}
	return out, nil
}

func cmdErrors(s *session, args []any) (any, error) {
	if len(args) != 0 {
		return nil, failuref("errors expects no arguments")
	}
	return encodeDiagnostics(s.allDiagnostics()), nil
}

func cmdOutline(s *session, args []any) (any, error) {
	if len(args) != 0 {
		return nil, failuref("outline expects no arguments")
	}
	out := []any{}
	for _, c := range s.chunks.Items() {
		out = append(out, merlin.WithLocation(c.Loc, map[string]any{
			"kind": c.Kind,
			"name": c.Name,
		}))
	}
	return out, nil
}

func cmdDump(s *session, args []any) (any, error) {
	if len(args) != 1 {
		return nil, failuref("dump expects a layer name")
	}
	layer, _ := args[0].(string)
	switch layer {
	case "tokens":
		out := []any{}
		for _, c := range s.chunks.Items() {
			for _, t := range c.Tokens {
				out = append(out, map[string]any{
					"type":   t.Type.String(),
					"lexeme": t.Lexeme,
					"line":   t.Line,
					"col":    t.Col,
				})
			}
		}
		return out, nil
	case "chunks":
		out := []any{}
		for i, c := range s.chunks.Items() {
			out = append(out, merlin.WithLocation(c.Loc, map[string]any{
				"index":     i,
				"kind":      c.Kind,
				"name":      c.Name,
				"partial":   c.Partial,
				"validated": i < s.chunks.PastLen(),
			}))
		}
		return out, nil
	case "typed":
		out := []any{}
		for i, tf := range s.typed.Items() {
			delta := []any{}
			for _, b := range tf.Delta {
				delta = append(delta, map[string]any{
					"name": b.Name,
					"type": merlin.FormatType(b.Type),
				})
			}
			out = append(out, map[string]any{
				"index":  i,
				"kind":   tf.Kind,
				"name":   tf.Name,
				"delta":  delta,
				"errors": len(tf.Diags),
			})
		}
		return out, nil
	}
	return nil, failuref("dump: unknown layer %q", layer)
}

func cmdWhich(s *session, args []any) (any, error) {
	if len(args) != 2 {
		return nil, failuref("which expects \"path\" and a module name")
	}
	if sub, _ := args[0].(string); sub != "path" {
		return nil, failuref("which: unknown subcommand")
	}
	name, ok := args[1].(string)
	if !ok {
		return nil, failuref("which path: module name must be a string")
	}
	p, err := s.loader.Locate(name)
	if err != nil {
		return nil, &queryError{msg: err.Error()}
	}
	return p, nil
}

func cmdProtocol(s *session, args []any) (any, error) {
	if len(args) != 1 {
		return nil, failuref("protocol expects \"version\"")
	}
	if sub, _ := args[0].(string); sub != "version" {
		return nil, failuref("protocol: unknown subcommand")
	}
	return map[string]any{
		"selected": protocolVersion,
		"latest":   protocolVersion,
		"merlin":   fmt.Sprintf("merlin %s", version),
	}, nil
}

// encodeDiagnostics renders diagnostics in wire shape, document order.
func encodeDiagnostics(diags []merlin.Diagnostic) []any {
	out := []any{}
	for _, d := range diags {
		out = append(out, merlin.WithLocation(d.Loc, map[string]any{
			"message":  d.Message,
			"code":     d.Code,
			"severity": d.Severity,
		}))
	}
	return out
}
