// modules.go — external module resolution and signature loading
//
// OVERVIEW
// --------
// "open M" and qualified access M.x may refer to modules living outside the
// edited buffer. The loader maps a module name to a source file on the
// session's search paths, runs the full analysis pipeline over that file
// and snapshots its top-level surface into a ModuleSignature.
//
// Resolution rules:
//   - The module name Foo is tried as foo.ml and Foo.ml.
//   - Build paths are searched first (they may hold generated sources),
//     then source paths, then each root on the MERLINPATH environment
//     variable.
//   - The canonical identity is the cleaned absolute path of the file.
//
// Cycle detection uses a per-loader stack of canonical identities and
// reports the chain as `A -> B -> A`.
//
// Caching:
//   - Only successful loads are cached, keyed by canonical path.
//   - Failures are never cached, so a fixed file is picked up on the
//     next query.
//   - Editing the search path configuration clears the cache wholesale;
//     signatures may depend on other modules that just became
//     (un)reachable.
//
// Concurrency: none. A loader belongs to one session, like everything
// else in the session state.

package merlin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto/v2"
)

// MerlinPath is the environment variable holding extra search roots.
const MerlinPath = "MERLINPATH"

// SearchPaths holds the two kinds of lookup roots a session carries.
type SearchPaths struct {
	Build  []string
	Source []string
}

// ModuleLoader resolves module names to signatures. It implements
// Resolver.
type ModuleLoader struct {
	paths     SearchPaths
	cache     *ristretto.Cache[string, *ModuleSignature]
	loadStack []string
}

// NewModuleLoader returns a loader with empty search paths.
func NewModuleLoader(cacheMaxCost int64) (*ModuleLoader, error) {
	if cacheMaxCost <= 0 {
		cacheMaxCost = 1 << 24
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *ModuleSignature]{
		NumCounters: 1e4,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("module cache: %w", err)
	}
	return &ModuleLoader{cache: cache}, nil
}

// Paths returns a copy of the current search paths.
func (l *ModuleLoader) Paths() SearchPaths {
	return SearchPaths{
		Build:  append([]string(nil), l.paths.Build...),
		Source: append([]string(nil), l.paths.Source...),
	}
}

// AddPath appends dir to the named path list ("build" or "source").
// Duplicate entries are ignored. Returns false for an unknown list name.
func (l *ModuleLoader) AddPath(kind, dir string) bool {
	list := l.pathList(kind)
	if list == nil {
		return false
	}
	for _, d := range *list {
		if d == dir {
			return true
		}
	}
	*list = append(*list, dir)
	l.invalidate()
	return true
}

// RemovePath removes dir from the named path list. Returns false for an
// unknown list name.
func (l *ModuleLoader) RemovePath(kind, dir string) bool {
	list := l.pathList(kind)
	if list == nil {
		return false
	}
	out := (*list)[:0]
	for _, d := range *list {
		if d != dir {
			out = append(out, d)
		}
	}
	*list = out
	l.invalidate()
	return true
}

// ResetPaths clears both path lists.
func (l *ModuleLoader) ResetPaths() {
	l.paths = SearchPaths{}
	l.invalidate()
}

// Locate resolves a module name to the file that would define it.
func (l *ModuleLoader) Locate(name string) (string, error) {
	return l.resolveFile(name)
}

// ResolveModule loads the signature of the named module, from cache when
// possible.
func (l *ModuleLoader) ResolveModule(name string) (*ModuleSignature, error) {
	canon, err := l.resolveFile(name)
	if err != nil {
		return nil, err
	}
	for _, s := range l.loadStack {
		if s == canon {
			return nil, fmt.Errorf("module cycle detected: %s", l.cycleChain(canon))
		}
	}
	if sig, ok := l.cache.Get(canon); ok {
		return sig, nil
	}

	l.loadStack = append(l.loadStack, canon)
	defer func() { l.loadStack = l.loadStack[:len(l.loadStack)-1] }()

	b, err := os.ReadFile(canon)
	if err != nil {
		return nil, fmt.Errorf("cannot read module %s: %w", name, err)
	}
	sig, err := SignatureOfSource(name, string(b), l)
	if err != nil {
		return nil, fmt.Errorf("cannot load module %s: %w", name, err)
	}
	l.cache.Set(canon, sig, int64(len(b)))
	l.cache.Wait()
	return sig, nil
}

// SignatureOfSource runs the pipeline over a whole source text and
// snapshots the resulting top-level surface. res resolves the source's
// own opens; it may be nil.
func SignatureOfSource(name, src string, res Resolver) (*ModuleSignature, error) {
	lex := NewLexer()
	toks := lex.Feed(src)
	rest, err := lex.Finish()
	if err != nil {
		return nil, err
	}
	toks = append(toks, rest...)

	out := NewOutliner(func(s, e int) string { return src[s:e] })
	chunks := out.Push(toks)
	if c, ok := out.Flush(); ok {
		chunks = append(chunks, c)
	}

	sig := NewModuleSignature(name)
	env := BaseEnv()
	for _, c := range chunks {
		tf := TypeFragment(ParseChunk(c), env, res)
		env = tf.After
		for _, b := range tf.Delta {
			sig.Values[b.Name] = b.Type
		}
		for tname, t := range tf.After.types {
			sig.Types[tname] = t
		}
		for cname, ct := range tf.After.ctors {
			sig.Ctors[cname] = ct
		}
	}
	return sig, nil
}

//// END_OF_PUBLIC

func (l *ModuleLoader) pathList(kind string) *[]string {
	switch kind {
	case "build":
		return &l.paths.Build
	case "source":
		return &l.paths.Source
	}
	return nil
}

// invalidate drops every cached signature. Reachability may have changed
// for any of them.
func (l *ModuleLoader) invalidate() {
	l.cache.Clear()
}

// resolveFile maps a module name to the canonical path of its source.
func (l *ModuleLoader) resolveFile(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid module name %q", name)
	}
	candidates := []string{strings.ToLower(name) + ".ml", name + ".ml"}

	roots := make([]string, 0, len(l.paths.Build)+len(l.paths.Source)+2)
	roots = append(roots, l.paths.Build...)
	roots = append(roots, l.paths.Source...)
	if sp := os.Getenv(MerlinPath); sp != "" {
		for _, r := range filepath.SplitList(sp) {
			if r != "" {
				roots = append(roots, r)
			}
		}
	}

	for _, root := range roots {
		for _, cand := range candidates {
			p := filepath.Join(root, cand)
			if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
				abs, err := filepath.Abs(p)
				if err != nil {
					return "", err
				}
				return filepath.Clean(abs), nil
			}
		}
	}
	return "", fmt.Errorf("module %s not found on search path", name)
}

// cycleChain renders the loading stack from the repeated entry onward.
func (l *ModuleLoader) cycleChain(again string) string {
	i := 0
	for idx, s := range l.loadStack {
		if s == again {
			i = idx
			break
		}
	}
	chain := append(append([]string(nil), l.loadStack[i:]...), again)
	parts := make([]string, len(chain))
	for k, s := range chain {
		base := filepath.Base(s)
		parts[k] = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return strings.Join(parts, " -> ")
}
