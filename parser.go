// parser.go — chunk parser producing compact S-expression fragments
//
// OVERVIEW
// --------
// Parses one Chunk's token list into a SyntaxFragment: an S-expression
// subtree scoped to that chunk, plus a sidecar span index (spans.go) and
// any diagnostics. A syntax failure never aborts the pipeline: the fragment
// degrades to a ("broken") placeholder carrying a diagnostic at the
// offending location, and later chunks are parsed normally.
//
// The expression grammar is a conventional precedence-climbing parser over
// the ML-flavored surface. The AST is encoded in the tiny serializable S
// shape from spans.go. **This list is the reference.**
//
// Top-level nodes (one per chunk):
//
//	("let",    name, expr)            // let name p1 p2 = e  (params become nested "fun")
//	("letrec", name, expr)
//	("expr",   e)                     // bare expression, or let ... in ...
//	("typedef", name, ty)             // ty may be ("variants", ("ctor", name, ty?)...)
//	("module", name, def1, def2, ...) // module N = struct ... end
//	("open",   name)
//	("exception", name)               // or ("exception", name, ty)
//	("val",    name, ty)
//	("broken")                        // parse failed; see fragment diagnostics
//
// Expressions:
//
//	("id", name) ("uid", name) ("get", modpath, name)
//	("int", int64) ("float", float64) ("str", string) ("bool", bool) ("unit")
//	("app", f, arg)                   // juxtaposition, left-assoc
//	("fun", param, body)
//	("if", cond, then)                // or ("if", cond, then, else)
//	("letin", name, value, body)
//	("binop", op, lhs, rhs)           // + - * / = < > <= >= <>
//	("tuple", e1, e2, ...)
//	("list", e1, ...)
//	("match", scrutinee, ("arm", pat, e)...)
//
// Patterns: ("pid", name) ("pany") ("pctor", name) / ("pctor", name, sub)
// ("pint", v) ("pstr", s) ("pbool", b) ("ptuple", p1, ...)
//
// Types: ("tcon", name) ("tarrow", a, b) ("ttuple", t1, ...)
// ("tapp", con, arg) ("variants", ...)
//
// Spans are recorded per node in post-order during construction and bound
// by BuildSpanIndexPostOrder; see spans.go for why the order matters.

package merlin

import (
	"fmt"
	"strconv"
)

// Diagnostic is a located analysis finding from any pipeline stage.
type Diagnostic struct {
	Loc      Location
	Code     string // "syntax" | "type" | "unbound" | "incomplete" | ...
	Message  string
	Severity string // "error" | "warning"
}

// SyntaxFragment is the parser output for one chunk.
type SyntaxFragment struct {
	Kind    string
	Name    string
	Raw     string // the chunk's raw text; the incremental identity
	Loc     Location
	Tree    S
	Spans   *SpanIndex // chunk-relative; nil when the parse failed
	Diags   []Diagnostic
	Partial bool
}

// FragmentRaw is the raw-input extractor for a History over fragments.
func FragmentRaw(f SyntaxFragment) string { return f.Raw }

// ParseChunk parses one chunk. It always returns a fragment; failures are
// reported through the fragment's Diags and a ("broken") tree.
func ParseChunk(c Chunk) SyntaxFragment {
	frag := SyntaxFragment{Kind: c.Kind, Name: c.Name, Raw: c.Raw, Loc: c.Loc, Partial: c.Partial}
	if len(c.Tokens) == 0 {
		frag.Tree = S{"broken"}
		return frag
	}
	p := &parser{toks: c.Tokens, base: c.Tokens[0].StartByte}
	tree, err := p.parseTop()
	if err != nil {
		frag.Tree = S{"broken"}
		frag.Diags = append(frag.Diags, diagFromParseErr(err, c))
		return frag
	}
	if !p.atEnd() {
		// Trailing tokens the grammar did not consume: report, keep the tree.
		t := p.peek()
		frag.Diags = append(frag.Diags, Diagnostic{
			Loc:      tokenLoc(t),
			Code:     "syntax",
			Message:  fmt.Sprintf("unexpected token %q after definition", t.Lexeme),
			Severity: "error",
		})
	}
	if c.Partial {
		frag.Diags = append(frag.Diags, Diagnostic{
			Loc:      c.Loc,
			Code:     "incomplete",
			Message:  "incomplete definition at end of input",
			Severity: "warning",
		})
	}
	frag.Tree = tree
	frag.Spans = BuildSpanIndexPostOrder(tree, p.spans)
	return frag
}

// ParseExprString parses a standalone expression (the "type expr" command).
func ParseExprString(src string) (S, *SpanIndex, error) {
	lex := NewLexer()
	toks := lex.Feed(src)
	rest, err := lex.Finish()
	if err != nil {
		return nil, nil, err
	}
	toks = append(toks, rest...)
	if errs := lex.TakeErrs(); len(errs) > 0 {
		return nil, nil, errs[0]
	}
	if len(toks) == 0 {
		return nil, nil, &ParseError{Line: 1, Col: 0, Msg: "empty expression"}
	}
	p := &parser{toks: toks, base: toks[0].StartByte}
	e, err := p.parseExpr()
	if err != nil {
		return nil, nil, err
	}
	return e, BuildSpanIndexPostOrder(e, p.spans), nil
}

//// END_OF_PUBLIC

type parser struct {
	toks  []Token
	pos   int
	base  int
	spans []Span
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() Token {
	if p.atEnd() {
		last := p.toks[len(p.toks)-1]
		return Token{Type: ILLEGAL, Line: last.Line, Col: last.Col + len(last.Lexeme), StartByte: last.EndByte, EndByte: last.EndByte}
	}
	return p.toks[p.pos]
}

func (p *parser) next() Token {
	t := p.peek()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *parser) check(tt TokenType) bool { return !p.atEnd() && p.toks[p.pos].Type == tt }

func (p *parser) accept(tt TokenType) (Token, bool) {
	if p.check(tt) {
		return p.next(), true
	}
	return Token{}, false
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	if p.check(tt) {
		return p.next(), nil
	}
	return Token{}, p.errHere("expected " + what)
}

func (p *parser) errHere(msg string) error {
	t := p.peek()
	if p.atEnd() {
		return &ParseError{Line: t.Line, Col: t.Col, Msg: msg + " (at end of definition)"}
	}
	return &ParseError{Line: t.Line, Col: t.Col, Msg: fmt.Sprintf("%s, found %q", msg, t.Lexeme)}
}

// prevEnd is the byte offset just past the last consumed token.
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return p.base
	}
	return p.toks[p.pos-1].EndByte
}

// node finishes an S node whose first token started at absolute offset
// start, recording its chunk-relative span in post-order.
func (p *parser) node(start int, tag string, elems ...any) S {
	n := append(S{tag}, elems...)
	p.spans = append(p.spans, Span{StartByte: start - p.base, EndByte: p.prevEnd() - p.base})
	return n
}

func tokenLoc(t Token) Location {
	return Location{
		Start: Position{Line: t.Line, Col: t.Col},
		End:   tokenEnd(t),
	}
}

func diagFromParseErr(err error, c Chunk) Diagnostic {
	loc, ok := ErrorLocation(err)
	if !ok {
		loc = c.Loc
	}
	return Diagnostic{Loc: loc, Code: "syntax", Message: err.Error(), Severity: "error"}
}

// ---------------- top level ----------------

func (p *parser) parseTop() (S, error) {
	t := p.peek()
	switch t.Type {
	case LET:
		return p.parseLetTop()
	case TYPE:
		return p.parseTypeDef()
	case MODULE:
		return p.parseModule()
	case OPEN:
		start := p.next().StartByte
		name, err := p.expect(UIDENT, "module name after 'open'")
		if err != nil {
			return nil, err
		}
		p.acceptTerminator()
		return p.node(start, "open", name.Lexeme), nil
	case EXCEPTION:
		start := p.next().StartByte
		name, err := p.expect(UIDENT, "exception name")
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(OF); ok {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			p.acceptTerminator()
			return p.node(start, "exception", name.Lexeme, ty), nil
		}
		p.acceptTerminator()
		return p.node(start, "exception", name.Lexeme), nil
	case VAL:
		start := p.next().StartByte
		name, err := p.expect(IDENT, "value name after 'val'")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "':' in val declaration"); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		p.acceptTerminator()
		return p.node(start, "val", name.Lexeme, ty), nil
	default:
		start := t.StartByte
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.acceptTerminator()
		return p.node(start, "expr", e), nil
	}
}

// acceptTerminator swallows an optional trailing ";;".
func (p *parser) acceptTerminator() { p.accept(SEMISEMI) }

// parseLetTop parses a top-level let. When an "in" follows, the whole chunk
// is really an expression and is wrapped as ("expr", ("letin", ...)).
func (p *parser) parseLetTop() (S, error) {
	start := p.next().StartByte // LET
	_, rec := p.accept(REC)
	name, err := p.expect(IDENT, "name after 'let'")
	if err != nil {
		return nil, err
	}

	var params []Token
	for p.check(IDENT) {
		params = append(params, p.next())
	}
	// Optional result annotation: let f x : t = ...
	if _, ok := p.accept(COLON); ok {
		if _, err := p.parseType(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(EQUAL, "'=' in let binding"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	value := p.foldParams(params, body)

	if _, ok := p.accept(IN); ok {
		rest, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		letin := p.node(start, "letin", name.Lexeme, value, rest)
		p.acceptTerminator()
		return p.node(start, "expr", letin), nil
	}

	p.acceptTerminator()
	tag := "let"
	if rec {
		tag = "letrec"
	}
	return p.node(start, tag, name.Lexeme, value), nil
}

// foldParams wraps body in one ("fun") per parameter, innermost last.
func (p *parser) foldParams(params []Token, body S) S {
	out := body
	for i := len(params) - 1; i >= 0; i-- {
		out = p.node(params[i].StartByte, "fun", params[i].Lexeme, out)
	}
	return out
}

func (p *parser) parseTypeDef() (S, error) {
	start := p.next().StartByte // TYPE
	name, err := p.expect(IDENT, "type name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(EQUAL, "'=' in type definition"); err != nil {
		return nil, err
	}
	var ty S
	if p.check(PIPE) || p.check(UIDENT) {
		ty, err = p.parseVariants()
	} else {
		ty, err = p.parseType()
	}
	if err != nil {
		return nil, err
	}
	p.acceptTerminator()
	return p.node(start, "typedef", name.Lexeme, ty), nil
}

func (p *parser) parseVariants() (S, error) {
	start := p.peek().StartByte
	var ctors []any
	for {
		p.accept(PIPE)
		name, err := p.expect(UIDENT, "constructor name")
		if err != nil {
			return nil, err
		}
		if _, ok := p.accept(OF); ok {
			ty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			ctors = append(ctors, p.node(name.StartByte, "ctor", name.Lexeme, ty))
		} else {
			ctors = append(ctors, p.node(name.StartByte, "ctor", name.Lexeme))
		}
		if !p.check(PIPE) {
			break
		}
	}
	return p.node(start, "variants", ctors...), nil
}

func (p *parser) parseModule() (S, error) {
	start := p.next().StartByte // MODULE
	name, err := p.expect(UIDENT, "module name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(EQUAL, "'=' in module definition"); err != nil {
		return nil, err
	}
	if _, err := p.expect(STRUCT, "'struct'"); err != nil {
		return nil, err
	}
	var defs []any
	for !p.check(END) && !p.atEnd() {
		d, err := p.parseTop()
		if err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	if _, err := p.expect(END, "'end' closing module body"); err != nil {
		return nil, err
	}
	p.acceptTerminator()
	elems := append([]any{name.Lexeme}, defs...)
	return p.node(start, "module", elems...), nil
}

// ---------------- expressions ----------------

func (p *parser) parseExpr() (S, error) {
	t := p.peek()
	switch t.Type {
	case LET:
		return p.parseLetIn()
	case FUN:
		return p.parseFun()
	case IF:
		return p.parseIf()
	case MATCH:
		return p.parseMatch()
	}
	return p.parseTuple()
}

func (p *parser) parseLetIn() (S, error) {
	start := p.next().StartByte // LET
	p.accept(REC)
	name, err := p.expect(IDENT, "name after 'let'")
	if err != nil {
		return nil, err
	}
	var params []Token
	for p.check(IDENT) {
		params = append(params, p.next())
	}
	if _, err := p.expect(EQUAL, "'=' in let binding"); err != nil {
		return nil, err
	}
	value, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	value = p.foldParams(params, value)
	if _, err := p.expect(IN, "'in' after let binding"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return p.node(start, "letin", name.Lexeme, value, body), nil
}

func (p *parser) parseFun() (S, error) {
	start := p.next().StartByte // FUN
	var params []Token
	for p.check(IDENT) {
		params = append(params, p.next())
	}
	if len(params) == 0 {
		return nil, p.errHere("expected parameter after 'fun'")
	}
	if _, err := p.expect(ARROW, "'->' in function"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	out := body
	for i := len(params) - 1; i >= 0; i-- {
		at := params[i].StartByte
		if i == 0 {
			at = start
		}
		out = p.node(at, "fun", params[i].Lexeme, out)
	}
	return out, nil
}

func (p *parser) parseIf() (S, error) {
	start := p.next().StartByte // IF
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(THEN, "'then'"); err != nil {
		return nil, err
	}
	thn, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(ELSE); ok {
		els, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return p.node(start, "if", cond, thn, els), nil
	}
	return p.node(start, "if", cond, thn), nil
}

func (p *parser) parseMatch() (S, error) {
	start := p.next().StartByte // MATCH
	scrut, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(WITH, "'with'"); err != nil {
		return nil, err
	}
	var arms []any
	p.accept(PIPE)
	for {
		armStart := p.peek().StartByte
		pat, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ARROW, "'->' in match arm"); err != nil {
			return nil, err
		}
		body, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		arms = append(arms, p.node(armStart, "arm", pat, body))
		if _, ok := p.accept(PIPE); !ok {
			break
		}
	}
	if len(arms) == 0 {
		return nil, p.errHere("expected at least one match arm")
	}
	elems := append([]any{scrut}, arms...)
	return p.node(start, "match", elems...), nil
}

func (p *parser) parsePattern() (S, error) {
	t := p.peek()
	switch t.Type {
	case IDENT:
		p.next()
		if t.Lexeme == "_" {
			return p.node(t.StartByte, "pany"), nil
		}
		return p.node(t.StartByte, "pid", t.Lexeme), nil
	case UIDENT:
		p.next()
		if sub, ok := p.tryPatternAtom(); ok {
			return p.node(t.StartByte, "pctor", t.Lexeme, sub), nil
		}
		return p.node(t.StartByte, "pctor", t.Lexeme), nil
	case INT:
		p.next()
		v, _ := strconv.ParseInt(t.Lexeme, 10, 64)
		return p.node(t.StartByte, "pint", v), nil
	case STRING:
		p.next()
		return p.node(t.StartByte, "pstr", unquote(t.Lexeme)), nil
	case TRUE, FALSE:
		p.next()
		return p.node(t.StartByte, "pbool", t.Type == TRUE), nil
	case LPAREN:
		p.next()
		first, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if p.check(COMMA) {
			elems := []any{first}
			for {
				if _, ok := p.accept(COMMA); !ok {
					break
				}
				sub, err := p.parsePattern()
				if err != nil {
					return nil, err
				}
				elems = append(elems, sub)
			}
			if _, err := p.expect(RPAREN, "')' closing tuple pattern"); err != nil {
				return nil, err
			}
			return p.node(t.StartByte, "ptuple", elems...), nil
		}
		if _, err := p.expect(RPAREN, "')' closing pattern"); err != nil {
			return nil, err
		}
		return first, nil
	}
	return nil, p.errHere("expected pattern")
}

// tryPatternAtom parses an optional constructor argument pattern.
func (p *parser) tryPatternAtom() (S, bool) {
	switch p.peek().Type {
	case IDENT, INT, STRING, TRUE, FALSE, LPAREN, UIDENT:
		pat, err := p.parsePattern()
		if err != nil {
			return nil, false
		}
		return pat, true
	}
	return nil, false
}

func (p *parser) parseTuple() (S, error) {
	start := p.peek().StartByte
	first, err := p.parseCompare()
	if err != nil {
		return nil, err
	}
	if !p.check(COMMA) {
		return first, nil
	}
	elems := []any{first}
	for {
		if _, ok := p.accept(COMMA); !ok {
			break
		}
		e, err := p.parseCompare()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return p.node(start, "tuple", elems...), nil
}

func (p *parser) parseCompare() (S, error) {
	start := p.peek().StartByte
	lhs, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case EQUAL:
			op = "="
		case LESS:
			op = "<"
		case GREATER:
			op = ">"
		case LESSEQ:
			op = "<="
		case GREATEREQ:
			op = ">="
		case NOTEQ:
			op = "<>"
		default:
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		lhs = p.node(start, "binop", op, lhs, rhs)
	}
}

func (p *parser) parseAdditive() (S, error) {
	start := p.peek().StartByte
	lhs, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case PLUS:
			op = "+"
		case MINUS:
			op = "-"
		default:
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		lhs = p.node(start, "binop", op, lhs, rhs)
	}
}

func (p *parser) parseMultiplicative() (S, error) {
	start := p.peek().StartByte
	lhs, err := p.parseApplication()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.peek().Type {
		case STAR:
			op = "*"
		case SLASH:
			op = "/"
		default:
			return lhs, nil
		}
		p.next()
		rhs, err := p.parseApplication()
		if err != nil {
			return nil, err
		}
		lhs = p.node(start, "binop", op, lhs, rhs)
	}
}

// parseApplication parses juxtaposition: f x y.
func (p *parser) parseApplication() (S, error) {
	start := p.peek().StartByte
	f, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.startsAtom() {
		arg, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		f = p.node(start, "app", f, arg)
	}
	return f, nil
}

func (p *parser) startsAtom() bool {
	switch p.peek().Type {
	case IDENT, UIDENT, INT, FLOAT, STRING, TRUE, FALSE, LPAREN, LBRACKET, BEGIN:
		return true
	}
	return false
}

func (p *parser) parseAtom() (S, error) {
	t := p.peek()
	switch t.Type {
	case IDENT:
		p.next()
		return p.node(t.StartByte, "id", t.Lexeme), nil
	case UIDENT:
		return p.parseQualified()
	case INT:
		p.next()
		v, err := strconv.ParseInt(t.Lexeme, 10, 64)
		if err != nil {
			return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: "invalid integer literal"}
		}
		return p.node(t.StartByte, "int", v), nil
	case FLOAT:
		p.next()
		v, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			return nil, &ParseError{Line: t.Line, Col: t.Col, Msg: "invalid float literal"}
		}
		return p.node(t.StartByte, "float", v), nil
	case STRING:
		p.next()
		return p.node(t.StartByte, "str", unquote(t.Lexeme)), nil
	case TRUE, FALSE:
		p.next()
		return p.node(t.StartByte, "bool", t.Type == TRUE), nil
	case LPAREN:
		p.next()
		if _, ok := p.accept(RPAREN); ok {
			return p.node(t.StartByte, "unit"), nil
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	case BEGIN:
		p.next()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(END, "'end'"); err != nil {
			return nil, err
		}
		return e, nil
	case LBRACKET:
		p.next()
		var elems []any
		for !p.check(RBRACKET) {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
			if _, ok := p.accept(SEMI); !ok {
				break
			}
		}
		if _, err := p.expect(RBRACKET, "']' closing list"); err != nil {
			return nil, err
		}
		return p.node(t.StartByte, "list", elems...), nil
	}
	return nil, p.errHere("expected expression")
}

// parseQualified parses M.x / M.N.x access or a bare constructor.
func (p *parser) parseQualified() (S, error) {
	t := p.next() // UIDENT
	path := t.Lexeme
	for p.check(DOT) {
		save := p.pos
		p.next() // DOT
		if n, ok := p.accept(UIDENT); ok {
			path += "." + n.Lexeme
			continue
		}
		if n, ok := p.accept(IDENT); ok {
			return p.node(t.StartByte, "get", path, n.Lexeme), nil
		}
		p.pos = save
		break
	}
	return p.node(t.StartByte, "uid", path), nil
}

// ---------------- types ----------------

func (p *parser) parseType() (S, error) {
	start := p.peek().StartByte
	lhs, err := p.parseTypeTuple()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(ARROW); ok {
		rhs, err := p.parseType() // right-assoc
		if err != nil {
			return nil, err
		}
		return p.node(start, "tarrow", lhs, rhs), nil
	}
	return lhs, nil
}

func (p *parser) parseTypeTuple() (S, error) {
	start := p.peek().StartByte
	first, err := p.parseTypeAtom()
	if err != nil {
		return nil, err
	}
	if !p.check(STAR) {
		return first, nil
	}
	elems := []any{first}
	for {
		if _, ok := p.accept(STAR); !ok {
			break
		}
		e, err := p.parseTypeAtom()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return p.node(start, "ttuple", elems...), nil
}

func (p *parser) parseTypeAtom() (S, error) {
	t := p.peek()
	var base S
	switch t.Type {
	case IDENT:
		p.next()
		base = p.node(t.StartByte, "tcon", t.Lexeme)
	case UIDENT:
		p.next()
		path := t.Lexeme
		for {
			if _, ok := p.accept(DOT); !ok {
				break
			}
			n := p.next()
			path += "." + n.Lexeme
			if n.Type == IDENT {
				break
			}
		}
		base = p.node(t.StartByte, "tcon", path)
	case LPAREN:
		p.next()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')' in type"); err != nil {
			return nil, err
		}
		base = inner
	default:
		return nil, p.errHere("expected type")
	}
	// Postfix constructor application: "int list".
	for p.check(IDENT) {
		con := p.next()
		base = p.node(t.StartByte, "tapp", con.Lexeme, base)
	}
	return base, nil
}

// unquote strips the quotes of a STRING lexeme and resolves simple escapes.
func unquote(lexeme string) string {
	if len(lexeme) < 2 {
		return lexeme
	}
	body := lexeme[1 : len(lexeme)-1]
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '\\':
				out = append(out, '\\')
			case '"':
				out = append(out, '"')
			default:
				out = append(out, '\\', body[i])
			}
			continue
		}
		out = append(out, body[i])
	}
	return string(out)
}
