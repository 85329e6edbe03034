// modules_test.go
package merlin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newLoader(t *testing.T) *ModuleLoader {
	t.Helper()
	l, err := NewModuleLoader(0)
	require.NoError(t, err)
	return l
}

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

func Test_SignatureOfSource(t *testing.T) {
	sig, err := SignatureOfSource("Geom", ""+
		"type shape = Circle of float | Point\n"+
		"let origin = Point\n"+
		"let scale = 2", nil)
	require.NoError(t, err)
	require.Equal(t, "Geom", sig.Name)
	require.Equal(t, "shape", FormatType(sig.Values["origin"]))
	require.Equal(t, "int", FormatType(sig.Values["scale"]))
	require.Contains(t, sig.Types, "shape")
	require.Equal(t, "shape", sig.Ctors["Circle"].Result)
}

func Test_Loader_ResolveAndUse(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "geom.ml", "let area = 3\nlet name = \"geom\"")

	l := newLoader(t)
	require.True(t, l.AddPath("source", dir))

	sig, err := l.ResolveModule("Geom")
	require.NoError(t, err)
	require.Equal(t, "int", FormatType(sig.Values["area"]))
	require.Equal(t, "string", FormatType(sig.Values["name"]))

	// The loader serves the typer as its Resolver.
	ty, diags, err := TypeExpr("Geom.area + 1", BaseEnv(), l)
	require.NoError(t, err)
	require.Empty(t, diags)
	require.Equal(t, "int", FormatType(ty))
}

func Test_Loader_CapitalizedFilename(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "Geom.ml", "let x = 1")

	l := newLoader(t)
	l.AddPath("source", dir)
	_, err := l.ResolveModule("Geom")
	require.NoError(t, err)
}

func Test_Loader_BuildPathsSearchedFirst(t *testing.T) {
	build, source := t.TempDir(), t.TempDir()
	writeModule(t, build, "geom.ml", "let which = 1")
	writeModule(t, source, "geom.ml", "let which = \"source\"")

	l := newLoader(t)
	l.AddPath("build", build)
	l.AddPath("source", source)

	sig, err := l.ResolveModule("Geom")
	require.NoError(t, err)
	require.Equal(t, "int", FormatType(sig.Values["which"]))
}

func Test_Loader_Locate(t *testing.T) {
	dir := t.TempDir()
	p := writeModule(t, dir, "geom.ml", "let x = 1")

	l := newLoader(t)
	l.AddPath("source", dir)

	got, err := l.Locate("Geom")
	require.NoError(t, err)
	abs, _ := filepath.Abs(p)
	require.Equal(t, filepath.Clean(abs), got)

	_, err = l.Locate("Missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found on search path")
}

func Test_Loader_InvalidModuleName(t *testing.T) {
	l := newLoader(t)
	_, err := l.Locate("")
	require.Error(t, err)
	_, err = l.Locate("../etc/passwd")
	require.Error(t, err)
}

func Test_Loader_TransitiveOpens(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "base.ml", "let unit_price = 10")
	writeModule(t, dir, "shop.ml", "open Base\nlet total = unit_price * 3")

	l := newLoader(t)
	l.AddPath("source", dir)

	sig, err := l.ResolveModule("Shop")
	require.NoError(t, err)
	require.Equal(t, "int", FormatType(sig.Values["total"]))
}

func Test_Loader_CycleDetected(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.ml", "open B\nlet x = 1")
	writeModule(t, dir, "b.ml", "open A\nlet y = 2")

	l := newLoader(t)
	l.AddPath("source", dir)

	// The cycle surfaces as an "open" diagnostic inside the signature
	// load, not as a load failure; the failing open diagnoses and the
	// rest of the module still types.
	sig, err := l.ResolveModule("A")
	require.NoError(t, err)
	require.Equal(t, "int", FormatType(sig.Values["x"]))
}

func Test_Loader_SelfCycleFails(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "a.ml", "open A\nlet x = 1")

	l := newLoader(t)
	l.AddPath("source", dir)

	// A module opening itself: the inner resolve reports the cycle, the
	// open diagnoses, the outer load still succeeds.
	sig, err := l.ResolveModule("A")
	require.NoError(t, err)
	require.Contains(t, sig.Values, "x")
}

func Test_Loader_FailedLoadIsNotCached(t *testing.T) {
	dir := t.TempDir()
	l := newLoader(t)
	l.AddPath("source", dir)

	_, err := l.ResolveModule("Late")
	require.Error(t, err)

	// The file appears after the first failed lookup.
	writeModule(t, dir, "late.ml", "let x = 1")
	sig, err := l.ResolveModule("Late")
	require.NoError(t, err)
	require.Contains(t, sig.Values, "x")
}

func Test_Loader_PathEdits(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "geom.ml", "let x = 1")

	l := newLoader(t)
	require.True(t, l.AddPath("source", dir))
	require.True(t, l.AddPath("source", dir), "duplicate add is a no-op")
	require.Len(t, l.Paths().Source, 1)
	require.False(t, l.AddPath("bogus", dir))

	_, err := l.ResolveModule("Geom")
	require.NoError(t, err)

	require.True(t, l.RemovePath("source", dir))
	_, err = l.ResolveModule("Geom")
	require.Error(t, err, "removal takes effect and the cache is cleared")

	l.AddPath("build", dir)
	l.ResetPaths()
	require.Empty(t, l.Paths().Build)
	require.Empty(t, l.Paths().Source)
}

func Test_Loader_MerlinPathEnv(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "extra.ml", "let x = 1")
	t.Setenv(MerlinPath, dir)

	l := newLoader(t)
	_, err := l.ResolveModule("Extra")
	require.NoError(t, err)
}
