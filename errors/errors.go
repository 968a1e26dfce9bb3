// Package errors defines the error taxonomy shared by the scanner, detector,
// generator and CRUD layer. Typed errors carry the offending identifier so
// callers can report failures without inspecting internals.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors, matchable with errors.Is.
var (
	// ErrNotFound is returned when an entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidEntity is returned when a value passed to the scanner is not
	// a recognizable entity type.
	ErrInvalidEntity = errors.New("invalid entity type")

	// ErrLoadFailure is returned when a source file or package cannot be
	// loaded during a directory scan.
	ErrLoadFailure = errors.New("source load failed")

	// ErrInvalidConfig is returned for configuration problems detected before
	// any scanning or generation work begins.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrGeneration is returned when rendering or assembling an output file
	// fails.
	ErrGeneration = errors.New("generation failed")

	// ErrStorage is returned for snapshot load/save failures.
	ErrStorage = errors.New("storage failed")

	// ErrInvalidInput is returned when CRUD input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ScanError reports a failure while scanning a file or model.
type ScanError struct {
	File   string
	Model  string
	Reason string
	Err    error
}

func (e *ScanError) Error() string {
	switch {
	case e.File != "" && e.Model != "":
		return fmt.Sprintf("scan failed for model %q in %s: %s", e.Model, e.File, e.Reason)
	case e.File != "":
		return fmt.Sprintf("scan failed for %s: %s", e.File, e.Reason)
	case e.Model != "":
		return fmt.Sprintf("scan failed for model %q: %s", e.Model, e.Reason)
	}
	return fmt.Sprintf("scan failed: %s", e.Reason)
}

// Is distinguishes the two scan failure kinds: errors naming only a file
// are load failures, errors naming a model (or nothing) reject the entity.
func (e *ScanError) Is(target error) bool {
	if e.File != "" && e.Model == "" {
		return target == ErrLoadFailure
	}
	return target == ErrInvalidEntity
}

func (e *ScanError) Unwrap() error { return e.Err }

// GenerationError reports a per-model or per-template generation failure.
type GenerationError struct {
	Model    string
	Template string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	switch {
	case e.Model != "" && e.Template != "":
		return fmt.Sprintf("generation failed for model %q (template %s): %s", e.Model, e.Template, e.Reason)
	case e.Model != "":
		return fmt.Sprintf("generation failed for model %q: %s", e.Model, e.Reason)
	case e.Template != "":
		return fmt.Sprintf("generation failed for template %s: %s", e.Template, e.Reason)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}

func (e *GenerationError) Unwrap() error { return e.Err }

// StorageError reports a snapshot persistence failure.
type StorageError struct {
	Op     string // load, save, clear
	Path   string
	Reason string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("snapshot %s failed for %s: %s", e.Op, e.Path, e.Reason)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error { return e.Err }

// NotFoundError reports a missing record in the CRUD layer.
type NotFoundError struct {
	Type string
	Key  any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %v not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
