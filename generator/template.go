package generator

import (
	"bytes"
	"embed"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/jinzhu/inflection"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/naming"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// templateSet resolves and renders the generation templates. A template
// directory, when set, overrides the embedded defaults file by file.
type templateSet struct {
	overrideDir string
	funcs       template.FuncMap
}

func newTemplateSet(overrideDir string) *templateSet {
	return &templateSet{
		overrideDir: overrideDir,
		funcs: template.FuncMap{
			"snake":  naming.SnakeCase,
			"pascal": naming.PascalCase,
			"camel":  naming.CamelCase,
			"plural": inflection.Plural,
			"now":    func() string { return time.Now().Format(time.RFC3339) },
		},
	}
}

// lookup returns the template source, preferring the override directory.
func (ts *templateSet) lookup(name string) ([]byte, error) {
	if ts.overrideDir != "" {
		path := filepath.Join(ts.overrideDir, name)
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		} else if !os.IsNotExist(err) {
			return nil, &crerrors.GenerationError{Template: name, Reason: "cannot read template override", Err: err}
		}
	}
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, &crerrors.GenerationError{Template: name, Reason: "template not found", Err: err}
	}
	return data, nil
}

// render executes one template against data.
func (ts *templateSet) render(name string, data any) ([]byte, error) {
	source, err := ts.lookup(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(ts.funcs).Parse(string(source))
	if err != nil {
		return nil, &crerrors.GenerationError{Template: name, Reason: "template does not parse", Err: err}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, &crerrors.GenerationError{Template: name, Reason: "template execution failed", Err: err}
	}
	return buf.Bytes(), nil
}
