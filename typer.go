// typer.go — the typing stage of the incremental pipeline
//
// OVERVIEW
// --------
// TypeFragment folds one syntax fragment into a TypedFragment: the
// environment after its definitions, the bindings it introduced, per-node
// inferred types (keyed by NodePath, backing the "type at" command) and
// type diagnostics.
//
// Fragments chain: each one is typed against the After environment of its
// predecessor, which is why the typed layer is the most invalidation-prone
// stage. The checker itself is single-pass and liberal: anything it cannot
// decide becomes the unknown type ("tany"), and diagnostics are emitted
// only for contradictions it is sure about.
//
// Failure policy: TypeFragment never returns an error. A ("broken") tree
// yields a fragment that binds nothing and carries the parser's
// diagnostics forward.

package merlin

import "fmt"

// Binding is one top-level name introduced by a fragment.
type Binding struct {
	Name string
	Type S
}

// TypedFragment is the typing result for one fragment.
type TypedFragment struct {
	Kind  string
	Name  string
	Raw   string // carried through; the incremental identity
	Loc   Location
	Tree  S
	Spans *SpanIndex

	Before *Env
	After  *Env
	Delta  []Binding

	// NodeTypes maps NodePath keys to inferred types for span queries.
	NodeTypes map[string]S

	Diags []Diagnostic
}

// TypedRaw is the raw-input extractor for a History over typed fragments.
func TypedRaw(f TypedFragment) string { return f.Raw }

// TypeAtOffset returns the inferred type of the innermost typed node
// containing the chunk-relative byte offset, with the node's span.
func (f *TypedFragment) TypeAtOffset(off int) (S, Span, bool) {
	if f.Spans == nil {
		return nil, Span{}, false
	}
	// Enclosing finds the innermost node; walk outward until one of the
	// enclosing nodes carries a type (patterns and names may not).
	p, ok := f.Spans.Enclosing(off)
	if !ok {
		return nil, Span{}, false
	}
	for {
		if t, ok := f.NodeTypes[p.Key()]; ok {
			sp, _ := f.Spans.Get(p)
			return t, sp, true
		}
		if len(p) == 0 {
			return nil, Span{}, false
		}
		p = p[:len(p)-1]
	}
}

// TypeAtPosition is the buffer-coordinate variant of TypeAtOffset: pos is
// translated into the fragment's chunk-relative offset, and the matched
// node's span is translated back to buffer coordinates.
func (f *TypedFragment) TypeAtPosition(pos Position) (S, Location, bool) {
	if f.Raw == "" {
		return nil, Location{}, false
	}
	lines := NewLineTable(f.Raw)
	rel := pos
	base := f.Loc.Start
	if pos.Line == base.Line {
		rel = Position{Line: 1, Col: pos.Col - base.Col}
	} else {
		rel = Position{Line: pos.Line - base.Line + 1, Col: pos.Col}
	}
	t, sp, ok := f.TypeAtOffset(lines.PosToOffset(rel))
	if !ok {
		return nil, Location{}, false
	}
	c := &checkCtx{frag: &SyntaxFragment{Raw: f.Raw, Loc: f.Loc}, lines: lines}
	return t, c.locForSpan(sp), true
}

// Resolver resolves external module names to their signatures. A nil
// resolver means no search paths are configured and every "open" of an
// unknown module diagnoses.
type Resolver interface {
	ResolveModule(name string) (*ModuleSignature, error)
}

// TypeFragment types one fragment against the environment left by its
// predecessor.
func TypeFragment(frag SyntaxFragment, before *Env, res Resolver) TypedFragment {
	out := TypedFragment{
		Kind:      frag.Kind,
		Name:      frag.Name,
		Raw:       frag.Raw,
		Loc:       frag.Loc,
		Tree:      frag.Tree,
		Spans:     frag.Spans,
		Before:    before,
		After:     NewEnv(before),
		NodeTypes: make(map[string]S),
	}
	out.Diags = append(out.Diags, frag.Diags...)

	c := &checkCtx{frag: &frag, out: &out, env: out.After, res: res}
	if frag.Raw != "" {
		c.lines = NewLineTable(frag.Raw)
	}
	c.foldTop(frag.Tree)
	return out
}

// TypeExpr types a standalone expression against env (the "type expr"
// command). The environment is not modified.
func TypeExpr(src string, env *Env, res Resolver) (S, []Diagnostic, error) {
	tree, spans, err := ParseExprString(src)
	if err != nil {
		return nil, nil, err
	}
	frag := SyntaxFragment{Raw: src, Tree: tree, Spans: spans}
	out := TypedFragment{Spans: spans, NodeTypes: make(map[string]S)}
	c := &checkCtx{frag: &frag, out: &out, env: NewEnv(env), res: res, lines: NewLineTable(src)}
	t := c.infer(tree)
	return t, out.Diags, nil
}

//// END_OF_PUBLIC

type checkCtx struct {
	frag  *SyntaxFragment
	out   *TypedFragment
	env   *Env
	res   Resolver
	lines *LineTable
	path  NodePath
}

// childCtx descends into the child at element slot (slot 1 is the first
// element after the tag).
func (c *checkCtx) childCtx(slot int) *checkCtx {
	cc := *c
	if slot >= 1 {
		cc.path = append(append(NodePath(nil), c.path...), slot-1)
	}
	return &cc
}

// stamp records the inferred type of the current node.
func (c *checkCtx) stamp(t S) S {
	c.out.NodeTypes[c.path.Key()] = t
	return t
}

// locHere is the source location of the current node, falling back to the
// fragment location when no span was recorded.
func (c *checkCtx) locHere() Location {
	if c.frag.Spans == nil || c.lines == nil {
		return c.frag.Loc
	}
	sp, ok := c.frag.Spans.Get(c.path)
	if !ok {
		return c.frag.Loc
	}
	return c.locForSpan(sp)
}

// locForSpan translates a chunk-relative span to buffer positions.
func (c *checkCtx) locForSpan(sp Span) Location {
	start := c.rebase(c.lines.OffsetToPos(sp.StartByte))
	end := c.rebase(c.lines.OffsetToPos(sp.EndByte))
	return Location{Start: start, End: end}
}

// rebase shifts a position measured within the chunk to buffer
// coordinates using the chunk's start location.
func (c *checkCtx) rebase(p Position) Position {
	base := c.frag.Loc.Start
	if p.Line == 1 {
		return Position{Line: base.Line, Col: base.Col + p.Col}
	}
	return Position{Line: base.Line + p.Line - 1, Col: p.Col}
}

func (c *checkCtx) diag(code, msg string) {
	c.out.Diags = append(c.out.Diags, Diagnostic{
		Loc: c.locHere(), Code: code, Message: msg, Severity: "error",
	})
}

func (c *checkCtx) diagf(code, format string, a ...any) {
	c.diag(code, fmt.Sprintf(format, a...))
}

// bind introduces a top-level binding, recording it in the delta.
func (c *checkCtx) bind(name string, t S) {
	c.env.Define(name, t)
	c.out.Delta = append(c.out.Delta, Binding{Name: name, Type: t})
}

// ---------------- top level ----------------

func (c *checkCtx) foldTop(n S) {
	switch nodeTag(n) {
	case "let":
		name, _ := n[1].(string)
		t := c.childCtx(2).infer(asNode(n[2]))
		c.bind(name, t)
		c.stamp(t)
	case "letrec":
		name, _ := n[1].(string)
		// The name is visible inside its own body with an open type.
		c.env.Define(name, TAny())
		t := c.childCtx(2).infer(asNode(n[2]))
		c.bind(name, t)
		c.stamp(t)
	case "expr":
		t := c.childCtx(1).infer(asNode(n[1]))
		c.stamp(t)
	case "typedef":
		c.foldTypedef(n)
	case "module":
		c.foldModule(n)
	case "open":
		c.foldOpen(n)
	case "exception":
		name, _ := n[1].(string)
		ctor := Ctor{Result: "exn"}
		if len(n) >= 3 {
			ctor.Arg = asNode(n[2])
		}
		c.env.DefineCtor(name, ctor)
		c.stamp(TCon("exn"))
	case "val":
		name, _ := n[1].(string)
		t := asNode(n[2])
		c.bind(name, t)
		c.stamp(t)
	case "broken":
		// Parser already diagnosed; nothing binds.
	}
}

func (c *checkCtx) foldTypedef(n S) {
	name, _ := n[1].(string)
	def := asNode(n[2])
	c.env.DefineType(name, def)
	if nodeTag(def) == "variants" {
		for i := 1; i < len(def); i++ {
			ct := asNode(def[i])
			if nodeTag(ct) != "ctor" || len(ct) < 2 {
				continue
			}
			cname, _ := ct[1].(string)
			ctor := Ctor{Result: name}
			if len(ct) >= 3 {
				ctor.Arg = asNode(ct[2])
			}
			c.env.DefineCtor(cname, ctor)
		}
	}
	c.stamp(TCon(name))
}

func (c *checkCtx) foldModule(n S) {
	name, _ := n[1].(string)
	// Module bodies type in a child scope; the resulting frame becomes
	// the signature.
	body := *c
	body.env = NewEnv(c.env)
	sig := NewModuleSignature(name)
	for i := 2; i < len(n); i++ {
		def := asNode(n[i])
		dc := c.childCtx(i)
		dc.env = body.env
		dc.foldTop(def)
	}
	for bname, t := range body.env.vars {
		sig.Values[bname] = t
	}
	for tname, t := range body.env.types {
		sig.Types[tname] = t
	}
	for cname, ct := range body.env.ctors {
		sig.Ctors[cname] = ct
	}
	// Module-internal deltas were recorded by foldTop through dc.bind;
	// they belong to the module, not the buffer scope.
	var kept []Binding
	for _, b := range c.out.Delta {
		if _, inner := sig.Values[b.Name]; !inner {
			kept = append(kept, b)
		}
	}
	c.out.Delta = kept
	c.env.DefineModule(sig)
	c.stamp(TCon(name))
}

func (c *checkCtx) foldOpen(n S) {
	name, _ := n[1].(string)
	if sig, ok := c.env.LookupModule(name); ok {
		c.env.Include(sig)
		c.stamp(TCon("unit"))
		return
	}
	if c.res != nil {
		sig, err := c.res.ResolveModule(name)
		if err == nil && sig != nil {
			c.env.Include(sig)
			c.stamp(TCon("unit"))
			return
		}
		if err != nil {
			c.diagf("unbound", "cannot open module %s: %v", name, err)
			c.stamp(TCon("unit"))
			return
		}
	}
	c.diagf("unbound", "unbound module %s", name)
	c.stamp(TCon("unit"))
}

// ---------------- expressions ----------------

func (c *checkCtx) infer(n S) S {
	switch nodeTag(n) {
	case "id":
		name, _ := n[1].(string)
		t, ok := c.env.Lookup(name)
		if !ok {
			c.diagf("unbound", "unbound value %s", name)
			return c.stamp(TAny())
		}
		return c.stamp(t)
	case "uid":
		return c.stamp(c.inferCtor(n))
	case "get":
		return c.stamp(c.inferGet(n))
	case "int":
		return c.stamp(TCon("int"))
	case "float":
		return c.stamp(TCon("float"))
	case "str":
		return c.stamp(TCon("string"))
	case "bool":
		return c.stamp(TCon("bool"))
	case "unit":
		return c.stamp(TCon("unit"))
	case "app":
		return c.stamp(c.inferApp(n))
	case "fun":
		return c.stamp(c.inferFun(n))
	case "if":
		return c.stamp(c.inferIf(n))
	case "letin":
		return c.stamp(c.inferLetIn(n))
	case "binop":
		return c.stamp(c.inferBinop(n))
	case "tuple":
		out := S{"ttuple"}
		for i := 1; i < len(n); i++ {
			out = append(out, c.childCtx(i).infer(asNode(n[i])))
		}
		return c.stamp(out)
	case "list":
		elem := TAny()
		for i := 1; i < len(n); i++ {
			et := c.childCtx(i).infer(asNode(n[i]))
			u, ok := Unify(elem, et)
			if !ok {
				c.childCtx(i).diagf("type",
					"list element has type %s but earlier elements have type %s",
					FormatType(et), FormatType(elem))
				u = TAny()
			}
			elem = u
		}
		return c.stamp(S{"tapp", "list", elem})
	case "match":
		return c.stamp(c.inferMatch(n))
	}
	return c.stamp(TAny())
}

// inferCtor types a constructor reference, including qualified M.Ctor.
func (c *checkCtx) inferCtor(n S) S {
	name, _ := n[1].(string)
	ctor, ok := c.env.LookupCtor(name)
	if !ok {
		if mod, cname, qok := splitQualified(name); qok {
			if sig, found := c.lookupModule(mod); found {
				ctor, ok = sig.Ctors[cname]
			}
		}
	}
	if !ok {
		c.diagf("unbound", "unbound constructor %s", name)
		return TAny()
	}
	if ctor.Arg != nil {
		return TArrow(ctor.Arg, TCon(ctor.Result))
	}
	return TCon(ctor.Result)
}

// inferGet types qualified access M.x.
func (c *checkCtx) inferGet(n S) S {
	modpath, _ := n[1].(string)
	field, _ := n[2].(string)
	sig, ok := c.lookupModule(modpath)
	if !ok {
		c.diagf("unbound", "unbound module %s", modpath)
		return TAny()
	}
	t, ok := sig.Values[field]
	if !ok {
		c.diagf("unbound", "module %s has no value %s", modpath, field)
		return TAny()
	}
	return t
}

// lookupModule resolves a possibly dotted module path, trying in-buffer
// modules first and the external resolver second.
func (c *checkCtx) lookupModule(path string) (*ModuleSignature, bool) {
	head := path
	if mod, _, ok := splitQualified(path); ok {
		head = mod
	}
	if sig, ok := c.env.LookupModule(head); ok {
		return sig, true
	}
	if c.res != nil {
		if sig, err := c.res.ResolveModule(head); err == nil && sig != nil {
			return sig, true
		}
	}
	return nil, false
}

func (c *checkCtx) inferApp(n S) S {
	ft := c.childCtx(1).infer(asNode(n[1]))
	at := c.childCtx(2).infer(asNode(n[2]))
	switch TypeTag(ft) {
	case "tany":
		return TAny()
	case "tarrow":
		param, ret := asType(ft[1]), asType(ft[2])
		if !Compatible(at, param) {
			c.childCtx(2).diagf("type",
				"this expression has type %s but an expression was expected of type %s",
				FormatType(at), FormatType(param))
		}
		return ret
	}
	c.childCtx(1).diagf("type",
		"this expression has type %s and is not a function; it cannot be applied",
		FormatType(ft))
	return TAny()
}

func (c *checkCtx) inferFun(n S) S {
	param, _ := n[1].(string)
	body := c.childCtx(2)
	body.env = NewEnv(c.env)
	body.env.Define(param, TAny())
	ret := body.infer(asNode(n[2]))
	return TArrow(TAny(), ret)
}

func (c *checkCtx) inferIf(n S) S {
	condT := c.childCtx(1).infer(asNode(n[1]))
	if !Compatible(condT, TCon("bool")) {
		c.childCtx(1).diagf("type",
			"this expression has type %s but a condition must have type bool",
			FormatType(condT))
	}
	thenT := c.childCtx(2).infer(asNode(n[2]))
	if len(n) < 4 {
		// if without else evaluates to unit.
		if !Compatible(thenT, TCon("unit")) {
			c.childCtx(2).diagf("type",
				"this branch has type %s but an if without else must have type unit",
				FormatType(thenT))
		}
		return TCon("unit")
	}
	elseT := c.childCtx(3).infer(asNode(n[3]))
	u, ok := Unify(thenT, elseT)
	if !ok {
		c.childCtx(3).diagf("type",
			"this branch has type %s but the then branch has type %s",
			FormatType(elseT), FormatType(thenT))
		return TAny()
	}
	return u
}

func (c *checkCtx) inferLetIn(n S) S {
	name, _ := n[1].(string)
	vt := c.childCtx(2).infer(asNode(n[2]))
	body := c.childCtx(3)
	body.env = NewEnv(c.env)
	body.env.Define(name, vt)
	return body.infer(asNode(n[3]))
}

func (c *checkCtx) inferBinop(n S) S {
	op, _ := n[1].(string)
	lt := c.childCtx(2).infer(asNode(n[2]))
	rt := c.childCtx(3).infer(asNode(n[3]))
	switch op {
	case "+", "-", "*", "/":
		numeric := func(t S) bool {
			return IsAny(t) || TypeTag(t) == "tcon" && (t[1] == "int" || t[1] == "float")
		}
		if !numeric(lt) {
			c.childCtx(2).diagf("type",
				"this expression has type %s but an operand of %s must be numeric",
				FormatType(lt), op)
			return TAny()
		}
		if !numeric(rt) {
			c.childCtx(3).diagf("type",
				"this expression has type %s but an operand of %s must be numeric",
				FormatType(rt), op)
			return TAny()
		}
		if isCon(lt, "float") || isCon(rt, "float") {
			return TCon("float")
		}
		if IsAny(lt) || IsAny(rt) {
			return TAny()
		}
		return TCon("int")
	case "=", "<>", "<", ">", "<=", ">=":
		if _, ok := Unify(lt, rt); !ok {
			c.childCtx(3).diagf("type",
				"this expression has type %s but the left operand has type %s",
				FormatType(rt), FormatType(lt))
		}
		return TCon("bool")
	}
	return TAny()
}

func (c *checkCtx) inferMatch(n S) S {
	scrutT := c.childCtx(1).infer(asNode(n[1]))
	result := TAny()
	for i := 2; i < len(n); i++ {
		arm := asNode(n[i])
		if nodeTag(arm) != "arm" || len(arm) < 3 {
			continue
		}
		ac := c.childCtx(i)
		ac.env = NewEnv(c.env)
		pc := ac.childCtx(1)
		pc.bindPattern(asNode(arm[1]), scrutT, ac.env)
		bt := ac.childCtx(2).infer(asNode(arm[2]))
		u, ok := Unify(result, bt)
		if !ok {
			ac.childCtx(2).diagf("type",
				"this arm has type %s but earlier arms have type %s",
				FormatType(bt), FormatType(result))
			u = TAny()
		}
		result = u
	}
	return result
}

// bindPattern introduces a pattern's names against the matched type,
// diagnosing constructor and literal mismatches.
func (c *checkCtx) bindPattern(pat S, t S, into *Env) {
	switch nodeTag(pat) {
	case "pid":
		name, _ := pat[1].(string)
		into.Define(name, t)
		c.stamp(t)
	case "pany":
		c.stamp(t)
	case "pctor":
		name, _ := pat[1].(string)
		ctor, ok := c.env.LookupCtor(name)
		if !ok {
			c.diagf("unbound", "unbound constructor %s", name)
			return
		}
		if !Compatible(t, TCon(ctor.Result)) {
			c.diagf("type",
				"constructor %s belongs to type %s but a pattern was expected of type %s",
				name, ctor.Result, FormatType(t))
		}
		if len(pat) >= 3 {
			if ctor.Arg == nil {
				c.diagf("type", "constructor %s takes no argument", name)
				return
			}
			c.childCtx(2).bindPattern(asNode(pat[2]), ctor.Arg, into)
		} else if ctor.Arg != nil {
			c.diagf("type", "constructor %s expects an argument", name)
		}
		c.stamp(t)
	case "pint":
		c.checkLiteralPattern(t, "int")
	case "pstr":
		c.checkLiteralPattern(t, "string")
	case "pbool":
		c.checkLiteralPattern(t, "bool")
	case "ptuple":
		elems := make([]S, 0, len(pat)-1)
		if TypeTag(t) == "ttuple" && len(t)-1 == len(pat)-1 {
			for i := 1; i < len(t); i++ {
				elems = append(elems, asType(t[i]))
			}
		} else {
			if !IsAny(t) {
				c.diagf("type",
					"this pattern matches a tuple but the value has type %s", FormatType(t))
			}
			for range pat[1:] {
				elems = append(elems, TAny())
			}
		}
		for i := 1; i < len(pat); i++ {
			c.childCtx(i).bindPattern(asNode(pat[i]), elems[i-1], into)
		}
		c.stamp(t)
	}
}

func (c *checkCtx) checkLiteralPattern(t S, want string) {
	if !Compatible(t, TCon(want)) {
		c.diagf("type",
			"this pattern has type %s but a pattern was expected of type %s",
			want, FormatType(t))
	}
	c.stamp(TCon(want))
}

// ---------------- small helpers ----------------

func nodeTag(n S) string {
	if len(n) == 0 {
		return ""
	}
	tag, _ := n[0].(string)
	return tag
}

func asNode(v any) S {
	if n, ok := v.(S); ok {
		return n
	}
	return nil
}

func isCon(t S, name string) bool {
	return TypeTag(t) == "tcon" && len(t) >= 2 && t[1] == name
}

// splitQualified splits "M.x" into ("M", "x"). ok is false without a dot.
func splitQualified(name string) (mod, rest string, ok bool) {
	for i := 0; i < len(name); i++ {
		if name[i] == '.' {
			return name[:i], name[i+1:], true
		}
	}
	return "", "", false
}
