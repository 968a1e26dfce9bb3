// Package generator renders the CRUD data layer from scanned model
// metadata: one repository file per table model plus the shared config,
// database and registry files, all formatted before they hit disk.
package generator

import (
	"context"
	"fmt"
	"go/format"
	"os"
	"path"
	"path/filepath"
	"strings"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/logger"
	"github.com/crudgen/crudgen/metadata"
	"github.com/crudgen/crudgen/naming"
)

// RuntimeImport is the import path of the repository runtime the generated
// code builds on.
const RuntimeImport = "github.com/crudgen/crudgen/crud"

// Options configure a generation run.
type Options struct {
	OutputDir     string
	ModelsDir     string // when set, model sources are copied under the output
	ModelsImport  string // import path of the models package in generated code
	TemplateDir   string // overrides the embedded templates file by file
	DatabasePath  string
	PackageName   string
	CrudSuffix    string   // suffix of generated repository type names
	Generators    []string // subset of {crud, schemas}; empty means crud only
	SkipDataLayer bool     // leave out the shared config/database/registry files
	Backup        bool
	BackupSuffix  string
	DryRun        bool
	ExcludeModels []string
	Logger        logger.Interface
	Version       string
}

// Generator renders and writes the data layer.
type Generator struct {
	opts      Options
	templates *templateSet
	log       logger.Interface
}

// Result reports what a generation run produced. In dry-run mode Written
// lists the files that would have been written.
type Result struct {
	Written []string
	Skipped []string
	DryRun  bool
}

// New validates the options and returns a generator.
func New(opts Options) (*Generator, error) {
	if opts.OutputDir == "" {
		return nil, &crerrors.ConfigError{Field: "output_dir", Reason: "output directory is required"}
	}
	if opts.ModelsImport == "" {
		return nil, &crerrors.ConfigError{Field: "models_import", Reason: "models import path is required"}
	}
	if opts.PackageName == "" {
		opts.PackageName = "crud"
	}
	if opts.CrudSuffix == "" {
		opts.CrudSuffix = "Repository"
	}
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = ".bak"
	}
	if opts.DatabasePath == "" {
		opts.DatabasePath = "data.db"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	return &Generator{
		opts:      opts,
		templates: newTemplateSet(opts.TemplateDir),
		log:       opts.Logger,
	}, nil
}

type plannedFile struct {
	path    string
	content []byte
}

type fileData struct {
	Package       string
	Version       string
	CrudSuffix    string
	ModelsImport  string
	ModelsPackage string
	RuntimeImport string
	DatabasePath  string
	Models        []*modelData
	Model         *modelData
}

type modelData struct {
	Name            string
	TableName       string
	PrimaryKey      string
	Helpers         []helperData
	SchemaFields    []schemaField
	NeedsTime       bool
	NeedsUUID       bool
	SchemaNeedsTime bool
	SchemaNeedsUUID bool
}

type helperData struct {
	Method string
	Column string
	GoType string
	List   bool
}

type schemaField struct {
	GoName     string
	Column     string
	CreateType string
	UpdateType string
	Required   bool
}

// Generate renders the data layer for the given models and writes it under
// the output directory. Shared files come first, then one repository file
// per table model; excluded and non-table models are skipped.
func (g *Generator) Generate(models []*metadata.ModelMeta) (*Result, error) {
	result := &Result{DryRun: g.opts.DryRun}

	var tableModels []*modelData
	for _, m := range models {
		if !m.IsTable || g.excluded(m.Name) {
			result.Skipped = append(result.Skipped, m.Name)
			continue
		}
		md, err := g.buildModelData(m)
		if err != nil {
			return nil, err
		}
		tableModels = append(tableModels, md)
	}
	if len(tableModels) == 0 {
		return nil, &crerrors.GenerationError{Reason: "no table models to generate"}
	}

	generators := g.opts.Generators
	if len(generators) == 0 {
		generators = []string{"crud"}
	}

	var planned []plannedFile
	if containsString(generators, "crud") {
		base := g.fileData()
		base.Models = tableModels

		crudDir := filepath.Join(g.opts.OutputDir, g.opts.PackageName)
		if !g.opts.SkipDataLayer {
			for _, shared := range []struct{ template, file string }{
				{"config.go.tmpl", "config.go"},
				{"database.go.tmpl", "database.go"},
				{"registry.go.tmpl", "registry.go"},
			} {
				content, err := g.renderGo(shared.template, base)
				if err != nil {
					return nil, err
				}
				planned = append(planned, plannedFile{path: filepath.Join(crudDir, shared.file), content: content})
			}
		}

		for _, md := range tableModels {
			data := g.fileData()
			data.Model = md
			content, err := g.renderGo("crud.go.tmpl", data)
			if err != nil {
				return nil, err
			}
			planned = append(planned, plannedFile{path: filepath.Join(crudDir, naming.SnakeCase(md.Name)+".go"), content: content})
		}
	}

	if containsString(generators, "schemas") {
		schemasDir := filepath.Join(g.opts.OutputDir, "schemas")
		for _, md := range tableModels {
			data := g.fileData()
			data.Package = "schemas"
			data.Model = md
			content, err := g.renderGo("schemas.go.tmpl", data)
			if err != nil {
				return nil, err
			}
			planned = append(planned, plannedFile{path: filepath.Join(schemasDir, naming.SnakeCase(md.Name)+".go"), content: content})
		}
	}

	if err := g.writeFiles(planned, result); err != nil {
		return nil, err
	}
	g.copyModels(result)

	g.log.Info(context.Background(), "generated %d files for %d models (skipped %d)", len(result.Written), len(tableModels), len(result.Skipped))
	return result, nil
}

func (g *Generator) fileData() *fileData {
	return &fileData{
		Package:       g.opts.PackageName,
		Version:       g.opts.Version,
		CrudSuffix:    g.opts.CrudSuffix,
		ModelsImport:  g.opts.ModelsImport,
		ModelsPackage: path.Base(g.opts.ModelsImport),
		RuntimeImport: RuntimeImport,
		DatabasePath:  g.opts.DatabasePath,
	}
}

// renderGo renders a template and formats the output as Go source. Format
// failures are logged and the raw rendering kept, so a bad template edit
// still leaves inspectable output.
func (g *Generator) renderGo(name string, data *fileData) ([]byte, error) {
	content, err := g.templates.render(name, data)
	if err != nil {
		return nil, err
	}
	formatted, err := format.Source(content)
	if err != nil {
		g.log.Warn(context.Background(), "generated output of %s does not format, writing raw: %v", name, err)
		return content, nil
	}
	return formatted, nil
}

func (g *Generator) buildModelData(m *metadata.ModelMeta) (*modelData, error) {
	md := &modelData{
		Name:      m.Name,
		TableName: m.TableName,
	}

	switch {
	case len(m.PrimaryKeys) > 0:
		md.PrimaryKey = m.PrimaryKeys[0]
	case m.Field("id") != nil:
		md.PrimaryKey = "id"
	default:
		return nil, &crerrors.GenerationError{Model: m.Name, Reason: "model has no primary key"}
	}

	for _, f := range m.Fields {
		if f.Name == md.PrimaryKey || f.IsRelationship() {
			continue
		}
		goType := helperGoType(f.Type)
		if goType == "" {
			continue
		}

		switch {
		case f.Unique:
			md.Helpers = append(md.Helpers, helperData{
				Method: "GetBy" + naming.PascalCase(f.Name),
				Column: f.Name,
				GoType: goType,
			})
		case f.Index:
			md.Helpers = append(md.Helpers, helperData{
				Method: "ListBy" + naming.PascalCase(f.Name),
				Column: f.Name,
				GoType: goType,
				List:   true,
			})
		default:
			continue
		}
		if goType == "time.Time" {
			md.NeedsTime = true
		}
		if goType == "uuid.UUID" {
			md.NeedsUUID = true
		}
	}

	g.buildSchemaFields(m, md)
	return md, nil
}

// buildSchemaFields derives the transfer-schema shape of a model: every
// caller-supplied column, with optional ones as pointers. Keys, timestamps
// and relationships stay out.
func (g *Generator) buildSchemaFields(m *metadata.ModelMeta, md *modelData) {
	for _, f := range m.Fields {
		if f.Name == md.PrimaryKey || f.IsRelationship() {
			continue
		}
		if f.Name == "created_at" || f.Name == "updated_at" || f.Name == "deleted_at" || f.Name == "is_deleted" {
			continue
		}
		base := schemaGoType(f.Type)

		sf := schemaField{
			GoName:     naming.PascalCase(f.Name),
			Column:     f.Name,
			Required:   f.IsRequired(),
			CreateType: base,
			UpdateType: optionalType(base),
		}
		if !sf.Required {
			sf.CreateType = optionalType(base)
		}
		md.SchemaFields = append(md.SchemaFields, sf)

		if base == "time.Time" {
			md.SchemaNeedsTime = true
		}
		if base == "uuid.UUID" {
			md.SchemaNeedsUUID = true
		}
	}
}

// schemaGoType maps a field type to its transfer-schema Go type.
func schemaGoType(t metadata.FieldType) string {
	if g := helperGoType(t); g != "" {
		return g
	}
	switch t {
	case metadata.TypeJSON:
		return "map[string]any"
	case metadata.TypeBytes:
		return "[]byte"
	case metadata.TypeList:
		return "[]any"
	}
	return "any"
}

// optionalType wraps a type for an optional field; nilable types stay as
// they are.
func optionalType(base string) string {
	switch {
	case strings.HasPrefix(base, "[]"), strings.HasPrefix(base, "map["), base == "any":
		return base
	}
	return "*" + base
}

// helperGoType maps a field type to the Go parameter type of its lookup
// helper. Types without a natural scalar parameter get no helper.
func helperGoType(t metadata.FieldType) string {
	switch t {
	case metadata.TypeString, metadata.TypeEnum:
		return "string"
	case metadata.TypeInteger:
		return "int64"
	case metadata.TypeFloat, metadata.TypeDecimal:
		return "float64"
	case metadata.TypeBoolean:
		return "bool"
	case metadata.TypeDatetime, metadata.TypeDate, metadata.TypeTime:
		return "time.Time"
	case metadata.TypeUUID:
		return "uuid.UUID"
	}
	return ""
}

// writeFiles commits the planned files to disk. Dry runs log the plan and
// touch nothing; existing files are backed up first when requested.
func (g *Generator) writeFiles(planned []plannedFile, result *Result) error {
	for _, file := range planned {
		result.Written = append(result.Written, file.path)
		if g.opts.DryRun {
			g.log.Info(context.Background(), "dry run: would write %s (%d bytes)", file.path, len(file.content))
			continue
		}

		if err := os.MkdirAll(filepath.Dir(file.path), 0o755); err != nil {
			return &crerrors.StorageError{Op: "mkdir", Path: filepath.Dir(file.path), Reason: "cannot create output directory", Err: err}
		}
		if g.opts.Backup {
			if existing, err := os.ReadFile(file.path); err == nil {
				if err := os.WriteFile(file.path+g.opts.BackupSuffix, existing, 0o644); err != nil {
					return &crerrors.StorageError{Op: "backup", Path: file.path, Reason: "cannot write backup", Err: err}
				}
			}
		}
		if err := os.WriteFile(file.path, file.content, 0o644); err != nil {
			return &crerrors.StorageError{Op: "write", Path: file.path, Reason: "cannot write generated file", Err: err}
		}
	}
	return nil
}

// copyModels mirrors the model sources into the output tree so the
// generated package is self-contained. Failures here degrade to warnings;
// the generated code is already on disk.
func (g *Generator) copyModels(result *Result) {
	if g.opts.ModelsDir == "" || g.opts.DryRun {
		return
	}

	entries, err := os.ReadDir(g.opts.ModelsDir)
	if err != nil {
		g.log.Warn(context.Background(), "cannot read models directory %s: %v", g.opts.ModelsDir, err)
		return
	}

	target := filepath.Join(g.opts.OutputDir, "models")
	if _, err := os.Stat(target); err == nil {
		g.log.Warn(context.Background(), "models copy already exists at %s, skipping", target)
		return
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		g.log.Warn(context.Background(), "cannot create %s: %v", target, err)
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(g.opts.ModelsDir, name))
		if err != nil {
			g.log.Warn(context.Background(), "cannot read model source %s: %v", name, err)
			continue
		}
		dest := filepath.Join(target, name)
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			g.log.Warn(context.Background(), "cannot copy model source to %s: %v", dest, err)
			continue
		}
		result.Written = append(result.Written, dest)
	}
}

func (g *Generator) excluded(name string) bool {
	return containsString(g.opts.ExcludeModels, name)
}

func containsString(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}

// OutputConflicts reports whether out sits inside models or the other way
// around, which would make generation overwrite its own inputs.
func OutputConflicts(modelsDir, outputDir string) error {
	absModels, err := filepath.Abs(modelsDir)
	if err != nil {
		return nil
	}
	absOut, err := filepath.Abs(outputDir)
	if err != nil {
		return nil
	}
	if within(absModels, absOut) {
		return &crerrors.ConfigError{Field: "output_dir", Reason: fmt.Sprintf("output directory %s lies inside the models directory %s", outputDir, modelsDir)}
	}
	if within(absOut, absModels) {
		return &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("models directory %s lies inside the output directory %s", modelsDir, outputDir)}
	}
	return nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && rel != "")
}
