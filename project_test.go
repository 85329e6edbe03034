// project_test.go
package merlin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeDescriptor(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, ".merlin")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func Test_Project_Load(t *testing.T) {
	dir := t.TempDir()
	p := writeDescriptor(t, dir, ""+
		"# build artifacts\n"+
		"B _build\n"+
		"S src\n"+
		"S lib\n"+
		"\n"+
		"PKG str\n")

	proj, err := LoadProject(p)
	require.NoError(t, err)
	require.Empty(t, proj.Warnings)
	require.Equal(t, []string{filepath.Join(dir, "_build")}, proj.Build)
	require.Equal(t, []string{filepath.Join(dir, "src"), filepath.Join(dir, "lib")}, proj.Source)
	require.Equal(t, []string{"str"}, proj.Packages)
}

func Test_Project_AbsoluteDirsKeptAsIs(t *testing.T) {
	dir := t.TempDir()
	abs := t.TempDir()
	p := writeDescriptor(t, dir, "S "+abs+"\n")

	proj, err := LoadProject(p)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Clean(abs)}, proj.Source)
}

func Test_Project_MalformedLinesWarn(t *testing.T) {
	dir := t.TempDir()
	p := writeDescriptor(t, dir, ""+
		"B _build\n"+
		"B\n"+
		"FLG -w +a\n"+
		"S src\n")

	proj, err := LoadProject(p)
	require.NoError(t, err)
	require.Len(t, proj.Build, 1)
	require.Len(t, proj.Source, 1)
	require.Len(t, proj.Warnings, 2)
	require.Contains(t, proj.Warnings[0], "malformed directive")
	require.Contains(t, proj.Warnings[1], "unknown directive")
}

func Test_Project_MissingFile(t *testing.T) {
	_, err := LoadProject(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot load project")
}

func Test_Project_ApplyIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0o755))
	writeModule(t, src, "util.ml", "let answer = 40 + 2")
	p := writeDescriptor(t, dir, "S src\n")

	proj, err := LoadProject(p)
	require.NoError(t, err)

	l := newLoader(t)
	proj.Apply(l)
	proj.Apply(l)
	require.Len(t, l.Paths().Source, 1)

	sig, err := l.ResolveModule("Util")
	require.NoError(t, err)
	require.Equal(t, "int", FormatType(sig.Values["answer"]))
}
