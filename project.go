// project.go — project descriptor files
//
// A project descriptor is a plain text file listing per-project analysis
// configuration, one directive per line:
//
//	B <dir>      build path
//	S <dir>      source path
//	PKG <name>   package dependency
//	# ...        comment
//
// Relative directories are resolved against the descriptor's own
// directory, so a descriptor checked into a project root works from any
// working directory. Blank lines are skipped; malformed lines are
// collected as warnings rather than failing the load, because a half
// broken descriptor should still configure what it can.

package merlin

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Project is the parsed content of one descriptor file.
type Project struct {
	Path     string // descriptor file, cleaned absolute
	Build    []string
	Source   []string
	Packages []string
	Warnings []string
}

// LoadProject reads and parses the descriptor at path.
func LoadProject(path string) (*Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot load project: %w", err)
	}
	defer f.Close()

	p := &Project{Path: filepath.Clean(abs)}
	base := filepath.Dir(p.Path)

	sc := bufio.NewScanner(f)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		directive, arg, ok := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if !ok || arg == "" {
			p.Warnings = append(p.Warnings, fmt.Sprintf("%s:%d: malformed directive %q", p.Path, lineno, line))
			continue
		}
		switch directive {
		case "B":
			p.Build = append(p.Build, resolveDir(base, arg))
		case "S":
			p.Source = append(p.Source, resolveDir(base, arg))
		case "PKG":
			p.Packages = append(p.Packages, arg)
		default:
			p.Warnings = append(p.Warnings, fmt.Sprintf("%s:%d: unknown directive %q", p.Path, lineno, directive))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("cannot load project: %w", err)
	}
	return p, nil
}

// Apply installs the project's paths into the loader. Reapplying the same
// descriptor is idempotent since AddPath skips duplicates.
func (p *Project) Apply(l *ModuleLoader) {
	for _, d := range p.Build {
		l.AddPath("build", d)
	}
	for _, d := range p.Source {
		l.AddPath("source", d)
	}
}

//// END_OF_PUBLIC

func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Clean(filepath.Join(base, dir))
}
