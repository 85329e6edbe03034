// env.go — lexical typing environments
//
// An Env is one frame of a parent-linked chain mapping names to type
// terms. Frames are cheap and never mutated after the fragment that
// produced them is finished, so a TypedFragment can hold its before/after
// environments as plain pointers and the incremental layer can re-enter
// the chain at any fragment boundary.

package merlin

// Ctor describes one variant constructor.
type Ctor struct {
	Result string // the defined type's name
	Arg    S      // nil for nullary constructors
}

// ModuleSignature is the externally visible surface of a module: its
// value bindings, type definitions and constructors.
type ModuleSignature struct {
	Name   string
	Values map[string]S
	Types  map[string]S
	Ctors  map[string]Ctor
}

// NewModuleSignature returns an empty signature for name.
func NewModuleSignature(name string) *ModuleSignature {
	return &ModuleSignature{
		Name:   name,
		Values: make(map[string]S),
		Types:  make(map[string]S),
		Ctors:  make(map[string]Ctor),
	}
}

// Env is one scope frame. Lookups walk toward the root.
type Env struct {
	parent *Env
	vars   map[string]S
	types  map[string]S
	ctors  map[string]Ctor
	mods   map[string]*ModuleSignature
}

// NewEnv returns an empty frame chained to parent (nil for the root).
func NewEnv(parent *Env) *Env {
	return &Env{
		parent: parent,
		vars:   make(map[string]S),
		types:  make(map[string]S),
		ctors:  make(map[string]Ctor),
		mods:   make(map[string]*ModuleSignature),
	}
}

// Define binds a value name to a type in this frame, shadowing outer
// frames.
func (e *Env) Define(name string, t S) { e.vars[name] = t }

// DefineType binds a type name to its definition in this frame.
func (e *Env) DefineType(name string, def S) { e.types[name] = def }

// DefineCtor registers a variant constructor in this frame.
func (e *Env) DefineCtor(name string, c Ctor) { e.ctors[name] = c }

// Lookup resolves a value name, innermost frame first.
func (e *Env) Lookup(name string) (S, bool) {
	for f := e; f != nil; f = f.parent {
		if t, ok := f.vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// LookupType resolves a type name, innermost frame first.
func (e *Env) LookupType(name string) (S, bool) {
	for f := e; f != nil; f = f.parent {
		if t, ok := f.types[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// DefineModule registers an in-buffer module signature in this frame.
func (e *Env) DefineModule(sig *ModuleSignature) { e.mods[sig.Name] = sig }

// LookupModule resolves a module name, innermost frame first.
func (e *Env) LookupModule(name string) (*ModuleSignature, bool) {
	for f := e; f != nil; f = f.parent {
		if m, ok := f.mods[name]; ok {
			return m, true
		}
	}
	return nil, false
}

// Include merges a module signature's bindings into this frame, as the
// "open" construct does.
func (e *Env) Include(sig *ModuleSignature) {
	for name, t := range sig.Values {
		e.vars[name] = t
	}
	for name, t := range sig.Types {
		e.types[name] = t
	}
	for name, c := range sig.Ctors {
		e.ctors[name] = c
	}
}

// LookupCtor resolves a constructor name, innermost frame first.
func (e *Env) LookupCtor(name string) (Ctor, bool) {
	for f := e; f != nil; f = f.parent {
		if c, ok := f.ctors[name]; ok {
			return c, true
		}
	}
	return Ctor{}, false
}

// Names collects every bound value and constructor name visible from e,
// innermost binding winning, in no particular order. Used by completion.
func (e *Env) Names() map[string]S {
	out := make(map[string]S)
	// Walk root-first so inner frames overwrite outer ones.
	var frames []*Env
	for f := e; f != nil; f = f.parent {
		frames = append(frames, f)
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		for name, t := range f.vars {
			out[name] = t
		}
		for name, c := range f.ctors {
			if c.Arg != nil {
				out[name] = TArrow(c.Arg, TCon(c.Result))
			} else {
				out[name] = TCon(c.Result)
			}
		}
	}
	return out
}

// BaseEnv returns the root environment carrying the primitive operations
// every buffer starts from.
func BaseEnv() *Env {
	e := NewEnv(nil)
	intT, strT, boolT, unitT := TCon("int"), TCon("string"), TCon("bool"), TCon("unit")
	e.Define("print_string", TArrow(strT, unitT))
	e.Define("print_int", TArrow(intT, unitT))
	e.Define("print_newline", TArrow(unitT, unitT))
	e.Define("string_of_int", TArrow(intT, strT))
	e.Define("int_of_string", TArrow(strT, intT))
	e.Define("string_length", TArrow(strT, intT))
	e.Define("not", TArrow(boolT, boolT))
	e.Define("ignore", TArrow(TAny(), unitT))
	e.DefineType("int", intT)
	e.DefineType("float", TCon("float"))
	e.DefineType("string", strT)
	e.DefineType("bool", boolT)
	e.DefineType("unit", unitT)
	return e
}
