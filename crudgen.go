// Package crudgen wires the model scanner, the change detector and the
// code generator into one pipeline: scan the model sources, diff them
// against the last snapshot, regenerate when something changed and save
// the new snapshot.
package crudgen

import (
	"context"
	"path/filepath"

	"github.com/crudgen/crudgen/config"
	"github.com/crudgen/crudgen/detector"
	"github.com/crudgen/crudgen/generator"
	"github.com/crudgen/crudgen/logger"
	"github.com/crudgen/crudgen/metadata"
	"github.com/crudgen/crudgen/scanner"
)

// Report summarizes one pipeline run.
type Report struct {
	Models    []*metadata.ModelMeta
	Changes   *detector.Changes
	Generated *generator.Result
	UpToDate  bool
}

// Scan validates the configuration and scans the model sources.
func Scan(cfg *config.Config, log logger.Interface) ([]*metadata.ModelMeta, error) {
	if log == nil {
		log = logger.Default
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	session := scanner.NewSession(scanner.Options{
		Namer:          cfg.Namer(),
		Logger:         log,
		ExcludeModels:  cfg.ExcludeModels,
		SchemaSuffixes: cfg.SchemaSuffixes,
		ExcludeDirs:    []string{filepath.Base(cfg.OutputDir)},
	})
	return session.ScanDirectory(cfg.ModelsPath)
}

// Diff scans the model sources and reports what changed against the
// snapshot without generating anything.
func Diff(cfg *config.Config, log logger.Interface) (*detector.Changes, error) {
	models, err := Scan(cfg, log)
	if err != nil {
		return nil, err
	}
	det, err := detector.New(cfg.SnapshotFile, log)
	if err != nil {
		return nil, err
	}
	return det.DetectChanges(models), nil
}

// Generate runs the full pipeline. Without changes (and without Force) it
// returns an up-to-date report and writes nothing; dry runs render
// everything but leave the disk and the snapshot untouched.
func Generate(cfg *config.Config, log logger.Interface) (*Report, error) {
	if log == nil {
		log = logger.Default
	}

	models, err := Scan(cfg, log)
	if err != nil {
		return nil, err
	}

	det, err := detector.New(cfg.SnapshotFile, log)
	if err != nil {
		return nil, err
	}
	changes := det.DetectChanges(models)

	report := &Report{Models: models, Changes: changes}
	if !changes.HasChanges() && !cfg.Force {
		report.UpToDate = true
		log.Info(context.Background(), "models unchanged, nothing to generate")
		return report, nil
	}

	modelsImport := cfg.ModelsImport
	if modelsImport == "" && len(models) > 0 {
		modelsImport = models[0].Module
	}

	gen, err := generator.New(generator.Options{
		OutputDir:     cfg.OutputDir,
		ModelsDir:     cfg.ModelsPath,
		ModelsImport:  modelsImport,
		TemplateDir:   cfg.TemplateDir,
		DatabasePath:  cfg.DatabasePath,
		CrudSuffix:    cfg.CrudSuffix,
		Generators:    cfg.EffectiveGenerators(),
		SkipDataLayer: !cfg.DataLayer,
		Backup:        cfg.Backup,
		BackupSuffix:  cfg.BackupSuffix,
		DryRun:        cfg.DryRun,
		ExcludeModels: cfg.ExcludeModels,
		Logger:        log,
		Version:       Version,
	})
	if err != nil {
		return nil, err
	}

	result, err := gen.Generate(models)
	if err != nil {
		return nil, err
	}
	report.Generated = result

	if !cfg.DryRun {
		if err := det.SaveSnapshot(models); err != nil {
			return nil, err
		}
	}
	return report, nil
}
