package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/crudgen/crudgen/config"
	"github.com/crudgen/crudgen/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string

	modelsPath   string
	outputDir    string
	modelsImport string
	snapshotFile string
	templateDir  string
	exclude      []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "crudgen",
		Short:         "Generate a CRUD data layer from annotated Go models",
		Long:          "crudgen scans a directory of annotated model structs, tracks how they change between runs and regenerates the CRUD data layer only when needed.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "config file (default .crudgen.yaml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: silent, error, warn or info")
	flags.StringVarP(&opts.modelsPath, "models", "m", "", "directory containing the model sources")
	flags.StringVarP(&opts.outputDir, "output", "o", "", "directory for the generated code")
	flags.StringVar(&opts.modelsImport, "models-import", "", "import path of the models package in generated code")
	flags.StringVar(&opts.snapshotFile, "snapshot", "", "snapshot file location")
	flags.StringVar(&opts.templateDir, "templates", "", "directory of template overrides")
	flags.StringSliceVar(&opts.exclude, "exclude", nil, "model names to skip")

	cmd.AddCommand(
		newGenerateCmd(opts),
		newScanCmd(opts),
		newDiffCmd(opts),
		newInitCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig merges the config file with the flag overrides.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}

	if o.modelsPath != "" {
		cfg.ModelsPath = o.modelsPath
	}
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.modelsImport != "" {
		cfg.ModelsImport = o.modelsImport
	}
	if o.snapshotFile != "" {
		cfg.SnapshotFile = o.snapshotFile
	}
	if o.templateDir != "" {
		cfg.TemplateDir = o.templateDir
	}
	if len(o.exclude) > 0 {
		cfg.ExcludeModels = append(cfg.ExcludeModels, o.exclude...)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cfg *config.Config) logger.Interface {
	return logger.New(log.New(os.Stderr, "", log.LstdFlags), logger.Config{
		LogLevel: logger.ParseLevel(cfg.LogLevel),
	})
}
