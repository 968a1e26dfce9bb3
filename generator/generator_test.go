package generator

import (
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudgen/crudgen/metadata"
)

func sampleModels() []*metadata.ModelMeta {
	return []*metadata.ModelMeta{
		{
			Name:      "User",
			TableName: "users",
			IsTable:   true,
			Fields: []*metadata.FieldMeta{
				{Name: "id", Type: metadata.TypeInteger, PrimaryKey: true},
				{Name: "email", Type: metadata.TypeString, Unique: true},
				{Name: "name", Type: metadata.TypeString, Index: true},
				{Name: "posts", Type: metadata.TypeRelationship, RelationshipModel: "Post"},
			},
			PrimaryKeys: []string{"id"},
		},
		{
			Name:      "Post",
			TableName: "posts",
			IsTable:   true,
			Fields: []*metadata.FieldMeta{
				{Name: "id", Type: metadata.TypeInteger, PrimaryKey: true},
				{Name: "title", Type: metadata.TypeString},
				{Name: "author_id", Type: metadata.TypeInteger, Index: true},
			},
			PrimaryKeys: []string{"id"},
		},
		{
			Name:    "UserCreate",
			IsTable: false,
			Fields: []*metadata.FieldMeta{
				{Name: "email", Type: metadata.TypeString},
			},
		},
	}
}

func newGenerator(t *testing.T, opts Options) *Generator {
	t.Helper()
	if opts.OutputDir == "" {
		opts.OutputDir = t.TempDir()
	}
	if opts.ModelsImport == "" {
		opts.ModelsImport = "example.com/app/models"
	}
	g, err := New(opts)
	require.NoError(t, err)
	return g
}

func readOutput(t *testing.T, g *Generator, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(g.opts.OutputDir, "crud", name))
	require.NoError(t, err)
	return string(data)
}

func TestGenerate(t *testing.T) {
	g := newGenerator(t, Options{})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.False(t, result.DryRun)
	assert.Len(t, result.Written, 5)
	assert.Equal(t, []string{"UserCreate"}, result.Skipped)

	user := readOutput(t, g, "user.go")
	assert.Contains(t, user, "package crud")
	assert.Contains(t, user, "type UserRepository struct")
	assert.Contains(t, user, `crud.NewRepository[models.User](db, "users", "id")`)
	assert.Contains(t, user, "func (r *UserRepository) GetByEmail(ctx context.Context, value string)")
	assert.Contains(t, user, "func (r *UserRepository) ListByName(ctx context.Context, value string)")
	assert.NotContains(t, user, "Posts")

	post := readOutput(t, g, "post.go")
	assert.Contains(t, post, "ListByAuthorId(ctx context.Context, value int64)")
	assert.NotContains(t, post, "GetByTitle")

	registry := readOutput(t, g, "registry.go")
	assert.Contains(t, registry, "Users *UserRepository")
	assert.Contains(t, registry, "Posts *PostRepository")
	assert.Contains(t, registry, "Users: NewUserRepository(db)")
	assert.NotContains(t, registry, "UserCreate")

	database := readOutput(t, g, "database.go")
	assert.Contains(t, database, `sql.Open("sqlite3", path)`)

	config := readOutput(t, g, "config.go")
	assert.Contains(t, config, `DatabasePath: "data.db"`)
}

func TestGeneratedFilesAreValidGo(t *testing.T) {
	g := newGenerator(t, Options{})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)

	fset := token.NewFileSet()
	for _, path := range result.Written {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = parser.ParseFile(fset, path, data, 0)
		require.NoError(t, err, "generated file %s must parse", path)
		// already formatted on the way out
		formatted, err := format.Source(data)
		require.NoError(t, err)
		assert.Equal(t, string(formatted), string(data), "generated file %s must be gofmt clean", path)
	}
}

func TestGenerateSchemas(t *testing.T) {
	g := newGenerator(t, Options{Generators: []string{"crud", "schemas"}})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.Len(t, result.Written, 7)

	data, err := os.ReadFile(filepath.Join(g.opts.OutputDir, "schemas", "user.go"))
	require.NoError(t, err)
	user := string(data)
	assert.Contains(t, user, "package schemas")
	assert.Contains(t, user, "type UserCreate struct")
	assert.Contains(t, user, "type UserUpdate struct")
	assert.Contains(t, user, "Email string")
	assert.Contains(t, user, "Email *string")
	assert.NotContains(t, user, "Posts")
	assert.NotContains(t, user, "Id ")

	fset := token.NewFileSet()
	_, err = parser.ParseFile(fset, "user.go", data, 0)
	require.NoError(t, err)
}

func TestGenerateSchemasOnly(t *testing.T) {
	g := newGenerator(t, Options{Generators: []string{"schemas"}})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.Len(t, result.Written, 2)

	_, err = os.Stat(filepath.Join(g.opts.OutputDir, "crud"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateDryRun(t *testing.T) {
	out := t.TempDir()
	g := newGenerator(t, Options{OutputDir: out, DryRun: true})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Len(t, result.Written, 5)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerateBackup(t *testing.T) {
	out := t.TempDir()
	g := newGenerator(t, Options{OutputDir: out, Backup: true})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)

	// second run backs up the first run's output
	_, err = g.Generate(sampleModels())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "crud", "user.go.bak"))
	assert.NoError(t, err)
}

func TestGenerateCrudSuffix(t *testing.T) {
	g := newGenerator(t, Options{CrudSuffix: "CRUD"})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)

	user := readOutput(t, g, "user.go")
	assert.Contains(t, user, "type UserCRUD struct")
	assert.Contains(t, user, "func NewUserCRUD(db *sql.DB)")

	registry := readOutput(t, g, "registry.go")
	assert.Contains(t, registry, "Users *UserCRUD")
}

func TestGenerateSkipDataLayer(t *testing.T) {
	g := newGenerator(t, Options{SkipDataLayer: true})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.Len(t, result.Written, 2)

	_, err = os.Stat(filepath.Join(g.opts.OutputDir, "crud", "registry.go"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(g.opts.OutputDir, "crud", "user.go"))
	assert.NoError(t, err)
}

func TestGenerateBackupSuffix(t *testing.T) {
	out := t.TempDir()
	g := newGenerator(t, Options{OutputDir: out, Backup: true, BackupSuffix: ".orig"})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)
	_, err = g.Generate(sampleModels())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(out, "crud", "user.go.orig"))
	assert.NoError(t, err)
}

func TestGenerateExcludesModels(t *testing.T) {
	g := newGenerator(t, Options{ExcludeModels: []string{"Post"}})
	result, err := g.Generate(sampleModels())
	require.NoError(t, err)
	assert.Contains(t, result.Skipped, "Post")

	_, err = os.Stat(filepath.Join(g.opts.OutputDir, "crud", "post.go"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateNoPrimaryKey(t *testing.T) {
	g := newGenerator(t, Options{})
	_, err := g.Generate([]*metadata.ModelMeta{{
		Name:      "Orphan",
		TableName: "orphans",
		IsTable:   true,
		Fields:    []*metadata.FieldMeta{{Name: "value", Type: metadata.TypeString}},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no primary key")
}

func TestGenerateIDFallback(t *testing.T) {
	g := newGenerator(t, Options{})
	result, err := g.Generate([]*metadata.ModelMeta{{
		Name:      "Log",
		TableName: "logs",
		IsTable:   true,
		Fields: []*metadata.FieldMeta{
			{Name: "id", Type: metadata.TypeInteger},
			{Name: "line", Type: metadata.TypeString},
		},
	}})
	require.NoError(t, err)
	require.NotEmpty(t, result.Written)

	log := readOutput(t, g, "log.go")
	assert.Contains(t, log, `"logs", "id"`)
}

func TestGenerateNoTableModels(t *testing.T) {
	g := newGenerator(t, Options{})
	_, err := g.Generate([]*metadata.ModelMeta{{Name: "OnlySchema", IsTable: false}})
	assert.Error(t, err)
}

func TestGenerateCopiesModels(t *testing.T) {
	modelsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "user.go"), []byte("package models\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "user_test.go"), []byte("package models\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "notes.txt"), []byte("x"), 0o644))

	g := newGenerator(t, Options{ModelsDir: modelsDir})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)

	copied := filepath.Join(g.opts.OutputDir, "models")
	_, err = os.Stat(filepath.Join(copied, "user.go"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(copied, "user_test.go"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(copied, "notes.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateSkipsExistingModelsCopy(t *testing.T) {
	modelsDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "user.go"), []byte("package models\n"), 0o644))

	out := t.TempDir()
	existing := filepath.Join(out, "models")
	require.NoError(t, os.MkdirAll(existing, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(existing, "keep.go"), []byte("package models\n\n// keep\n"), 0o644))

	g := newGenerator(t, Options{OutputDir: out, ModelsDir: modelsDir})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)

	// an existing copy is left alone
	_, err = os.Stat(filepath.Join(existing, "user.go"))
	assert.True(t, os.IsNotExist(err))
	data, err := os.ReadFile(filepath.Join(existing, "keep.go"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep")
}

func TestTemplateOverride(t *testing.T) {
	overrides := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(overrides, "config.go.tmpl"),
		[]byte("// custom\npackage {{ .Package }}\n"), 0o644))

	g := newGenerator(t, Options{TemplateDir: overrides})
	_, err := g.Generate(sampleModels())
	require.NoError(t, err)

	config := readOutput(t, g, "config.go")
	assert.Contains(t, config, "// custom")
}

func TestOutputConflicts(t *testing.T) {
	base := t.TempDir()
	models := filepath.Join(base, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))

	assert.Error(t, OutputConflicts(models, filepath.Join(models, "out")))
	assert.Error(t, OutputConflicts(filepath.Join(base, "out", "models"), filepath.Join(base, "out")))
	assert.NoError(t, OutputConflicts(models, filepath.Join(base, "out")))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{ModelsImport: "x"})
	assert.Error(t, err)
	_, err = New(Options{OutputDir: "x"})
	assert.Error(t, err)
}
