// cmd/merlin/state.go
//
// ROLE: Session state and the incremental pipeline plumbing.
//
// What lives here
//   • The session struct: buffer text, resumable lexer, outliner, the
//     three history layers (chunks, syntax, typed), module loader, and
//     the environment at the cursor.
//   • The integration path driving one chunk through parse and type,
//     reusing the validated future when raw text matches.
//   • seek / reset / typed-layer rebuild.
//
// Ownership: one session per server, mutated only between a request and
// its response. No locks; ownership transfers command-by-command with
// the dispatch loop.
//
// What does NOT live here
//   • No wire concerns, no handler argument parsing (commands.go).

package main

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	merlin "github.com/MarcWeber/merlin"
	"github.com/MarcWeber/merlin/internal/config"
)

type session struct {
	id  string
	log commonlog.Logger
	cfg *config.Config

	buf      []byte
	lex      *merlin.Lexer
	outliner *merlin.Outliner

	chunks *merlin.History[merlin.Chunk]
	syntax *merlin.History[merlin.SyntaxFragment]
	typed  *merlin.History[merlin.TypedFragment]

	loader   *merlin.ModuleLoader
	baseline *merlin.Env
	env      *merlin.Env // environment after the last validated fragment

	// diverged flips once an incoming chunk mismatches the retained
	// future; every later chunk is then computed fresh.
	diverged bool
	done     bool // end-of-buffer has been told
	lexDiags []merlin.Diagnostic
}

func newSession(cfg *config.Config) (*session, error) {
	loader, err := merlin.NewModuleLoader(cfg.CacheMaxCost())
	if err != nil {
		return nil, err
	}
	for _, d := range cfg.Paths.Build {
		loader.AddPath("build", d)
	}
	for _, d := range cfg.Paths.Source {
		loader.AddPath("source", d)
	}

	s := &session{
		id:     uuid.NewString(),
		log:    commonlog.GetLogger("merlin.session"),
		cfg:    cfg,
		loader: loader,
	}
	s.clearBuffer()
	s.log.Noticef("session %s ready", s.id)
	return s, nil
}

// clearBuffer restarts the buffer-dependent state; paths and loader
// survive.
func (s *session) clearBuffer() {
	s.buf = nil
	s.lex = merlin.NewLexer()
	s.outliner = merlin.NewOutliner(s.slice)
	s.chunks = merlin.NewHistory(merlin.ChunkRaw)
	s.syntax = merlin.NewHistory(merlin.FragmentRaw)
	s.typed = merlin.NewHistory(merlin.TypedRaw)
	s.baseline = merlin.BaseEnv()
	s.env = s.baseline
	s.diverged = false
	s.done = false
	s.lexDiags = nil
}

// slice is the raw-text accessor handed to the outliner.
func (s *session) slice(start, end int) string {
	if start < 0 || end > len(s.buf) || start > end {
		return ""
	}
	return string(s.buf[start:end])
}

// feed appends editor text and advances the pipeline over every chunk
// that closed.
func (s *session) feed(text string) {
	if s.done {
		// The buffer was previously completed; further text reopens it
		// at its end.
		pos := merlin.NewLineTable(string(s.buf)).OffsetToPos(len(s.buf))
		s.lex = merlin.NewLexerAt(len(s.buf), pos)
		s.done = false
	}
	s.buf = append(s.buf, text...)
	toks := s.lex.Feed(text)
	s.drainLexErrs()
	for _, c := range s.outliner.Push(toks) {
		s.integrate(c)
	}
}

// drainLexErrs converts skipped illegal characters into diagnostics.
func (s *session) drainLexErrs() {
	for _, err := range s.lex.TakeErrs() {
		if loc, ok := merlin.ErrorLocation(err); ok {
			s.lexDiags = append(s.lexDiags, merlin.Diagnostic{
				Loc: loc, Code: "lexer", Message: err.Error(), Severity: "error",
			})
		}
	}
}

// finish signals end-of-buffer: flush the lexer and outliner, integrate
// the trailing chunk, and drop whatever retained future lies beyond the
// end of the buffer.
func (s *session) finish() {
	toks, err := s.lex.Finish()
	s.drainLexErrs()
	if err != nil {
		if loc, ok := merlin.ErrorLocation(err); ok {
			s.lexDiags = append(s.lexDiags, merlin.Diagnostic{
				Loc: loc, Code: "lexer", Message: err.Error(), Severity: "error",
			})
		}
	}
	for _, c := range s.outliner.Push(toks) {
		s.integrate(c)
	}
	if c, ok := s.outliner.Flush(); ok {
		s.integrate(c)
	}
	s.chunks.Truncate()
	s.syntax.Truncate()
	s.typed.Truncate()
	s.done = true
}

// integrate advances one chunk through the pipeline. While the incoming
// chunks keep matching the retained future byte-for-byte at the same
// location the validated results are promoted without recomputation; the
// first mismatch drops the future everywhere and switches to fresh
// computation. The location check matters: chunk raw text excludes
// surrounding trivia, so inserting blank lines leaves Raw identical while
// every retained Loc (and diagnostic) is stale.
func (s *session) integrate(c merlin.Chunk) {
	if !s.diverged {
		if fut, ok := s.chunks.Cursor(); ok && fut.Raw == c.Raw && fut.Loc == c.Loc {
			tf, _ := s.typed.Cursor()
			s.chunks.Forward()
			s.syntax.Forward()
			s.typed.Forward()
			s.env = tf.After
			return
		}
		s.diverged = true
	}
	s.chunks.Insert(c)
	frag := merlin.ParseChunk(c)
	s.syntax.Insert(frag)
	tf := merlin.TypeFragment(frag, s.env, s.loader)
	s.typed.Insert(tf)
	s.env = tf.After
}

// seek repositions the cursor at a chunk boundary near pos (or the end
// of the validated sequence when pos lies beyond it) and re-anchors the
// lexer there. With exact set the cursor lands on a boundary at pos when
// pos is one; otherwise it stops at the last boundary strictly before
// pos. Returns the cursor position.
func (s *session) seek(pos merlin.Position, exact bool) merlin.Position {
	items := s.chunks.Items()
	target := 0
	for _, c := range items {
		if c.Loc.End.Before(pos) || (exact && c.Loc.End == pos) {
			target++
			continue
		}
		break
	}

	for s.chunks.PastLen() > target {
		s.chunks.Backward()
		s.syntax.Backward()
		s.typed.Backward()
	}
	for s.chunks.PastLen() < target {
		s.chunks.Forward()
		s.syntax.Forward()
		s.typed.Forward()
	}

	if target > 0 {
		tf, _ := s.typed.At(target - 1)
		s.env = tf.After
	} else {
		s.env = s.baseline
	}
	s.diverged = false
	s.done = false

	// Re-anchor the lexer at the chunk boundary; pending text beyond it
	// is discarded and will be re-told.
	offset := len(s.buf)
	cursor := merlin.NewLineTable(string(s.buf)).OffsetToPos(offset)
	if c, ok := s.chunks.Cursor(); ok && len(c.Tokens) > 0 {
		offset = c.Tokens[0].StartByte
		cursor = c.Loc.Start
	}
	s.buf = s.buf[:offset]
	s.lex = merlin.NewLexerAt(offset, cursor)
	s.outliner = merlin.NewOutliner(s.slice)
	return cursor
}

// rebuildTyped recomputes the whole typed layer from a fresh baseline.
// Called after any search-path mutation: module resolution feeds the
// environment chain, so every typed fragment is suspect while the
// outline and syntax layers stay valid.
func (s *session) rebuildTyped() {
	s.baseline = merlin.BaseEnv()
	pastLen := s.syntax.PastLen()
	items := s.syntax.Items()

	s.typed = merlin.NewHistory(merlin.TypedRaw)
	env := s.baseline
	for _, frag := range items {
		tf := merlin.TypeFragment(frag, env, s.loader)
		env = tf.After
		s.typed.Insert(tf)
	}
	for s.typed.PastLen() > pastLen {
		s.typed.Backward()
	}
	if pastLen > 0 {
		tf, _ := s.typed.At(pastLen - 1)
		s.env = tf.After
	} else {
		s.env = s.baseline
	}
	s.log.Infof("session %s: retyped %d fragments", s.id, len(items))
}

// fragmentAt returns the typed fragment whose chunk contains pos.
func (s *session) fragmentAt(pos merlin.Position) (merlin.TypedFragment, bool) {
	for _, tf := range s.typed.Items() {
		if tf.Loc.Contains(pos) {
			return tf, true
		}
	}
	return merlin.TypedFragment{}, false
}

// allDiagnostics collects lexer, parser and typer diagnostics in
// document order.
func (s *session) allDiagnostics() []merlin.Diagnostic {
	var out []merlin.Diagnostic
	out = append(out, s.lexDiags...)
	for _, tf := range s.typed.Items() {
		out = append(out, tf.Diags...)
	}
	return out
}
