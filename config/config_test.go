package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "generated", cfg.OutputDir)
	assert.Equal(t, ".crudgen_snapshot.json", cfg.SnapshotFile)
	assert.Equal(t, []string{"all"}, cfg.Generators)
	assert.Equal(t, "Repository", cfg.CrudSuffix)
	assert.Equal(t, []string{"Create", "Update", "Response"}, cfg.SchemaSuffixes)
	assert.True(t, cfg.DataLayer)
	assert.Equal(t, ".bak", cfg.BackupSuffix)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".crudgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models_path: ./models
output_dir: ./out
models_import: example.com/app/models
generators:
  - crud
exclude_models:
  - AuditLog
backup: true
table_prefix: app_
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./models", cfg.ModelsPath)
	assert.Equal(t, "./out", cfg.OutputDir)
	assert.Equal(t, []string{"crud"}, cfg.Generators)
	assert.Equal(t, []string{"AuditLog"}, cfg.ExcludeModels)
	assert.True(t, cfg.Backup)
	assert.Equal(t, "app_", cfg.TablePrefix)
	// unset keys keep their defaults
	assert.Equal(t, ".crudgen_snapshot.json", cfg.SnapshotFile)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".crudgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models_path: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CRUDGEN_OUTPUT_DIR", "/tmp/env-out")
	t.Setenv("CRUDGEN_MODELS_PATH", "/tmp/env-models")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env-out", cfg.OutputDir)
	assert.Equal(t, "/tmp/env-models", cfg.ModelsPath)
}

func TestValidate(t *testing.T) {
	base := t.TempDir()
	models := filepath.Join(base, "models")
	require.NoError(t, os.MkdirAll(models, 0o755))

	cfg := Default()
	assert.Error(t, cfg.Validate(), "missing models path")

	cfg.ModelsPath = filepath.Join(base, "nope")
	assert.Error(t, cfg.Validate(), "models path must exist")

	cfg.ModelsPath = models
	cfg.OutputDir = filepath.Join(base, "out")
	require.NoError(t, cfg.Validate())

	cfg.Generators = []string{"crud", "bogus"}
	assert.Error(t, cfg.Validate())
	cfg.Generators = []string{"all"}

	cfg.OutputDir = filepath.Join(models, "out")
	assert.Error(t, cfg.Validate(), "output inside models")

	cfg.OutputDir = base
	assert.Error(t, cfg.Validate(), "models inside output")
}

func TestEffectiveGenerators(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"crud", "schemas"}, cfg.EffectiveGenerators())

	cfg.Generators = []string{"crud", "crud"}
	assert.Equal(t, []string{"crud"}, cfg.EffectiveGenerators())

	cfg.Generators = []string{"schemas", "all"}
	assert.Equal(t, []string{"schemas", "crud"}, cfg.EffectiveGenerators())
}

func TestNamer(t *testing.T) {
	cfg := Default()
	cfg.TablePrefix = "app_"
	assert.Equal(t, "app_users", cfg.Namer().TableName("User"))

	cfg.SingularTable = true
	assert.Equal(t, "app_user", cfg.Namer().TableName("User"))
}
