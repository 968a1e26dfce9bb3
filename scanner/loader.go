package scanner

import (
	"context"
	"errors"
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/metadata"
)

// Loader extracts entity metadata from a directory of Go sources.
type Loader interface {
	Load(s *Session, dir string) ([]*metadata.ModelMeta, error)
}

// ScanDirectory scans every entity declared under dir. It tries the
// whole-package loader first and falls back to walking files one by one
// when the directory does not parse as a single package.
func (s *Session) ScanDirectory(dir string) ([]*metadata.ModelMeta, error) {
	if strings.Contains(dir, ".") && !strings.ContainsAny(dir, `/\`) && dir != "." && dir != ".." {
		if _, err := os.Stat(dir); err != nil {
			return nil, &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("%q looks like a dotted import path, pass a directory path instead", dir)}
		}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("cannot read %q: %v", dir, err)}
	}
	if !info.IsDir() {
		return nil, &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("%q is not a directory", dir)}
	}

	models, err := (PackageLoader{}).Load(s, dir)
	if err == nil {
		return models, nil
	}
	s.log.Warn(context.Background(), "package scan of %s failed, falling back to per-file scan: %v", dir, err)

	models, walkErr := (FileWalker{}).Load(s, dir)
	if len(models) > 0 {
		if walkErr != nil {
			s.log.Warn(context.Background(), "per-file scan of %s completed with errors: %v", dir, walkErr)
		}
		return models, nil
	}
	if walkErr != nil {
		return nil, walkErr
	}
	return nil, &crerrors.ScanError{File: dir, Reason: "no scannable entities found"}
}

// ScanModule is ScanDirectory under the name the configuration uses.
func (s *Session) ScanModule(path string) ([]*metadata.ModelMeta, error) {
	return s.ScanDirectory(path)
}

// PackageLoader parses a directory as one Go package and resolves
// cross-file relationships strictly.
type PackageLoader struct{}

func (PackageLoader) Load(s *Session, dir string) ([]*metadata.ModelMeta, error) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi fs.FileInfo) bool {
		return includeSourceFile(fi.Name())
	}, parser.ParseComments)
	if err != nil {
		return nil, &crerrors.ScanError{File: dir, Reason: "package parse failed", Err: err}
	}

	var names []string
	for name := range pkgs {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, &crerrors.ScanError{File: dir, Reason: "no Go sources found"}
	}
	if len(names) > 1 {
		sort.Strings(names)
		return nil, &crerrors.ScanError{File: dir, Reason: fmt.Sprintf("multiple packages declared: %s", strings.Join(names, ", "))}
	}

	pkg := pkgs[names[0]]
	module := modulePath(dir)

	known := map[string]*sourceStruct{}
	var order []string
	var files []string
	for filename := range pkg.Files {
		files = append(files, filename)
	}
	sort.Strings(files)
	for _, filename := range files {
		collectStructs(pkg.Files[filename], filename, known, &order)
	}

	return s.scanKnown(known, order, module)
}

// FileWalker parses files one at a time and keeps going past files that
// fail, so one broken source does not hide every other entity.
type FileWalker struct{}

func (FileWalker) Load(s *Session, dir string) ([]*metadata.ModelMeta, error) {
	var (
		models   []*metadata.ModelMeta
		failures []error
	)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			failures = append(failures, err)
			return nil
		}
		if d.IsDir() {
			if path != dir && s.excludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !includeSourceFile(d.Name()) {
			return nil
		}

		fset := token.NewFileSet()
		file, parseErr := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if parseErr != nil {
			failures = append(failures, &crerrors.ScanError{File: path, Reason: "parse failed", Err: parseErr})
			return nil
		}

		known := map[string]*sourceStruct{}
		var order []string
		collectStructs(file, path, known, &order)

		scanned, scanErr := s.scanKnown(known, order, modulePath(filepath.Dir(path)))
		if scanErr != nil {
			failures = append(failures, scanErr)
		}
		models = append(models, scanned...)
		return nil
	})
	if err != nil {
		failures = append(failures, err)
	}

	return models, errors.Join(failures...)
}

// scanKnown classifies and scans the structs of one scan unit, caching
// results under the session for later lookup.
func (s *Session) scanKnown(known map[string]*sourceStruct, order []string, module string) ([]*metadata.ModelMeta, error) {
	var (
		models   []*metadata.ModelMeta
		failures []error
	)
	for _, name := range order {
		st := known[name]
		if !isEntity(st) || s.excludedModel(name) {
			continue
		}

		cacheKey := module + "." + name
		if cached, ok := s.cache[cacheKey]; ok {
			models = append(models, cached)
			continue
		}

		model, err := s.scanSource(st, module, known)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		s.cache[cacheKey] = model
		s.order = append(s.order, cacheKey)
		models = append(models, model)
	}
	return models, errors.Join(failures...)
}

// includeSourceFile filters the files a scan considers: Go sources that
// are not tests and not hidden or tool-ignored.
func includeSourceFile(name string) bool {
	if !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
		return false
	}
	return !strings.HasPrefix(name, ".") && !strings.HasPrefix(name, "_")
}

func (s *Session) excludedDir(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
		return true
	}
	for _, excluded := range s.excludeDirs {
		if name == excluded {
			return true
		}
	}
	return false
}

// modulePath derives a stable module identifier for a directory: the
// enclosing Go module's path joined with the directory's relative
// location, or the cleaned directory itself when no go.mod is found.
func modulePath(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(filepath.Clean(dir))
	}

	current := abs
	for {
		data, err := os.ReadFile(filepath.Join(current, "go.mod"))
		if err == nil {
			if name := moduleName(string(data)); name != "" {
				rel, relErr := filepath.Rel(current, abs)
				if relErr == nil && rel != "." {
					return name + "/" + filepath.ToSlash(rel)
				}
				return name
			}
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return filepath.ToSlash(abs)
}

func moduleName(gomod string) string {
	for _, line := range strings.Split(gomod, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "module ") {
			return strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, "module ")), `"`)
		}
	}
	return ""
}
