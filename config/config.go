// Package config loads and validates the crudgen settings, merged from the
// config file, CRUDGEN_* environment variables and flag overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/generator"
	"github.com/crudgen/crudgen/naming"
)

// FileName is the default config file base name, looked up in the working
// directory as .crudgen.yaml.
const FileName = ".crudgen"

// knownGenerators are the accepted values of the generators setting; the
// pseudo-generator "all" expands to every real one.
var knownGenerators = []string{"crud", "schemas"}

// Config is the merged tool configuration.
type Config struct {
	ModelsPath     string   `mapstructure:"models_path"`
	OutputDir      string   `mapstructure:"output_dir"`
	ModelsImport   string   `mapstructure:"models_import"`
	SnapshotFile   string   `mapstructure:"snapshot_file"`
	TemplateDir    string   `mapstructure:"template_dir"`
	DatabasePath   string   `mapstructure:"database_path"`
	Generators     []string `mapstructure:"generators"`
	ExcludeModels  []string `mapstructure:"exclude_models"`
	CrudSuffix     string   `mapstructure:"crud_suffix"`     // suffix of generated repository type names
	SchemaSuffixes []string `mapstructure:"schema_suffixes"` // struct name suffixes marking transfer schemas
	DataLayer      bool     `mapstructure:"data_layer"`      // render the shared config/database/registry files
	Backup         bool     `mapstructure:"backup"`
	BackupSuffix   string   `mapstructure:"backup_suffix"`
	DryRun         bool     `mapstructure:"dry_run"`
	Force          bool     `mapstructure:"force"`
	LogLevel       string   `mapstructure:"log_level"`
	TablePrefix    string   `mapstructure:"table_prefix"`
	SingularTable  bool     `mapstructure:"singular_table"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		OutputDir:      "generated",
		SnapshotFile:   ".crudgen_snapshot.json",
		DatabasePath:   "data.db",
		Generators:     []string{"all"},
		CrudSuffix:     "Repository",
		SchemaSuffixes: []string{"Create", "Update", "Response"},
		DataLayer:      true,
		BackupSuffix:   ".bak",
		LogLevel:       "warn",
	}
}

// Load reads the configuration. An explicit file path must exist; with an
// empty path the default file is optional and built-in defaults apply.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
	}

	defaults := Default()
	v.SetDefault("models_path", defaults.ModelsPath)
	v.SetDefault("output_dir", defaults.OutputDir)
	v.SetDefault("models_import", defaults.ModelsImport)
	v.SetDefault("snapshot_file", defaults.SnapshotFile)
	v.SetDefault("template_dir", defaults.TemplateDir)
	v.SetDefault("database_path", defaults.DatabasePath)
	v.SetDefault("generators", defaults.Generators)
	v.SetDefault("exclude_models", defaults.ExcludeModels)
	v.SetDefault("crud_suffix", defaults.CrudSuffix)
	v.SetDefault("schema_suffixes", defaults.SchemaSuffixes)
	v.SetDefault("data_layer", defaults.DataLayer)
	v.SetDefault("backup", defaults.Backup)
	v.SetDefault("backup_suffix", defaults.BackupSuffix)
	v.SetDefault("dry_run", defaults.DryRun)
	v.SetDefault("force", defaults.Force)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("table_prefix", defaults.TablePrefix)
	v.SetDefault("singular_table", defaults.SingularTable)

	v.SetEnvPrefix("CRUDGEN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, &crerrors.ConfigError{Field: "config", Reason: fmt.Sprintf("cannot read configuration: %v", err)}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &crerrors.ConfigError{Field: "config", Reason: fmt.Sprintf("cannot decode configuration: %v", err)}
	}
	return cfg, nil
}

// Validate checks the merged configuration before any scanning or
// generation starts, so a bad setup fails with nothing written.
func (c *Config) Validate() error {
	if c.ModelsPath == "" {
		return &crerrors.ConfigError{Field: "models_path", Reason: "models path is required"}
	}
	if info, err := os.Stat(c.ModelsPath); err != nil {
		return &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("cannot read %q: %v", c.ModelsPath, err)}
	} else if !info.IsDir() {
		return &crerrors.ConfigError{Field: "models_path", Reason: fmt.Sprintf("%q is not a directory", c.ModelsPath)}
	}
	if c.OutputDir == "" {
		return &crerrors.ConfigError{Field: "output_dir", Reason: "output directory is required"}
	}

	for _, g := range c.Generators {
		if g == "all" {
			continue
		}
		if !contains(knownGenerators, g) {
			return &crerrors.ConfigError{Field: "generators", Reason: fmt.Sprintf("unknown generator %q, valid values are %s and all", g, strings.Join(knownGenerators, ", "))}
		}
	}

	// the output tree must never overlap the model sources
	return generator.OutputConflicts(c.ModelsPath, c.OutputDir)
}

// EffectiveGenerators expands "all" into the concrete generator list.
func (c *Config) EffectiveGenerators() []string {
	var out []string
	for _, g := range c.Generators {
		if g == "all" {
			for _, known := range knownGenerators {
				if !contains(out, known) {
					out = append(out, known)
				}
			}
			continue
		}
		if !contains(out, g) {
			out = append(out, g)
		}
	}
	return out
}

// Namer returns the naming strategy the configuration selects.
func (c *Config) Namer() naming.Namer {
	return naming.Strategy{TablePrefix: c.TablePrefix, SingularTable: c.SingularTable}
}

func contains(list []string, item string) bool {
	for _, v := range list {
		if v == item {
			return true
		}
	}
	return false
}
