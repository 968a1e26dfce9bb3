// Package detector compares freshly scanned model metadata against the
// snapshot persisted by the previous generation run and reports what
// changed, so regeneration can be skipped when nothing did.
package detector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/logger"
	"github.com/crudgen/crudgen/metadata"
)

// Detector owns one snapshot file. The snapshot is read once at
// construction; a missing file means a first run and compares as empty.
type Detector struct {
	path     string
	snapshot metadata.Snapshot
	log      logger.Interface
}

// New opens the snapshot at path. A missing file is not an error; an
// unreadable or malformed one is.
func New(path string, log logger.Interface) (*Detector, error) {
	if log == nil {
		log = logger.Default
	}
	d := &Detector{path: path, log: log, snapshot: metadata.Snapshot{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return d, nil
	}
	if err != nil {
		return nil, &crerrors.StorageError{Op: "read", Path: path, Reason: "cannot read snapshot", Err: err}
	}

	snapshot, err := metadata.UnmarshalSnapshot(data)
	if err != nil {
		return nil, &crerrors.StorageError{Op: "decode", Path: path, Reason: "snapshot is not valid JSON", Err: err}
	}
	d.snapshot = snapshot
	return d, nil
}

// Path returns the snapshot file location.
func (d *Detector) Path() string { return d.path }

// AttrChange records one field attribute that differs between runs.
type AttrChange struct {
	Attr string `json:"attr"`
	Old  any    `json:"old"`
	New  any    `json:"new"`
}

// FieldChange records the attribute-level differences of one field.
type FieldChange struct {
	Name  string       `json:"name"`
	Attrs []AttrChange `json:"attrs"`
}

// ModelChange records the differences of one model: model-level attribute
// changes (table name, primary-key set) plus field-level changes.
type ModelChange struct {
	Name           string        `json:"name"`
	Attrs          []AttrChange  `json:"attrs,omitempty"`
	AddedFields    []string      `json:"added_fields,omitempty"`
	RemovedFields  []string      `json:"removed_fields,omitempty"`
	ModifiedFields []FieldChange `json:"modified_fields,omitempty"`
}

// Changes is the full diff between the snapshot and the current scan.
type Changes struct {
	AddedModels    []string      `json:"added_models,omitempty"`
	RemovedModels  []string      `json:"removed_models,omitempty"`
	ModifiedModels []ModelChange `json:"modified_models,omitempty"`
}

// HasChanges reports whether anything differs.
func (c *Changes) HasChanges() bool {
	return len(c.AddedModels) > 0 || len(c.RemovedModels) > 0 || len(c.ModifiedModels) > 0
}

// Summary renders the diff for human consumption, one bucket per line.
func (c *Changes) Summary() string {
	if !c.HasChanges() {
		return "no changes detected"
	}

	var (
		addedFields, removedFields, modifiedFields []string
		modifiedModels                             []string
	)
	for _, m := range c.ModifiedModels {
		modifiedModels = append(modifiedModels, m.Name)
		for _, f := range m.AddedFields {
			addedFields = append(addedFields, m.Name+"."+f)
		}
		for _, f := range m.RemovedFields {
			removedFields = append(removedFields, m.Name+"."+f)
		}
		for _, f := range m.ModifiedFields {
			var attrs []string
			for _, a := range f.Attrs {
				attrs = append(attrs, a.Attr)
			}
			modifiedFields = append(modifiedFields, fmt.Sprintf("%s.%s (%s)", m.Name, f.Name, strings.Join(attrs, ", ")))
		}
	}

	var b strings.Builder
	writeBucket := func(label string, items []string) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s (%d): %s\n", label, len(items), strings.Join(items, ", "))
	}
	writeBucket("added models", c.AddedModels)
	writeBucket("removed models", c.RemovedModels)
	writeBucket("modified models", modifiedModels)
	writeBucket("added fields", addedFields)
	writeBucket("removed fields", removedFields)
	writeBucket("modified fields", modifiedFields)
	return strings.TrimRight(b.String(), "\n")
}

// DetectChanges diffs the scanned models against the snapshot. Models are
// keyed by name; field comparison covers the fixed attribute set the
// generated code depends on.
func (d *Detector) DetectChanges(models []*metadata.ModelMeta) *Changes {
	current := metadata.Snapshot{}
	for _, m := range models {
		current[m.Name] = m
	}

	changes := &Changes{}

	var names []string
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		previous, ok := d.snapshot[name]
		if !ok {
			changes.AddedModels = append(changes.AddedModels, name)
			continue
		}
		if mc := compareModel(previous, current[name]); mc != nil {
			changes.ModifiedModels = append(changes.ModifiedModels, *mc)
		}
	}

	var removed []string
	for name := range d.snapshot {
		if _, ok := current[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	changes.RemovedModels = removed

	return changes
}

// HasChanges is DetectChanges reduced to a boolean.
func (d *Detector) HasChanges(models []*metadata.ModelMeta) bool {
	return d.DetectChanges(models).HasChanges()
}

// SaveSnapshot persists the scanned models as the new snapshot.
func (d *Detector) SaveSnapshot(models []*metadata.ModelMeta) error {
	snapshot := metadata.Snapshot{}
	for _, m := range models {
		snapshot[m.Name] = m
	}

	data, err := snapshot.Marshal()
	if err != nil {
		return &crerrors.StorageError{Op: "encode", Path: d.path, Reason: "cannot encode snapshot", Err: err}
	}

	if dir := filepath.Dir(d.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &crerrors.StorageError{Op: "write", Path: d.path, Reason: "cannot create snapshot directory", Err: err}
		}
	}
	if err := os.WriteFile(d.path, data, 0o644); err != nil {
		return &crerrors.StorageError{Op: "write", Path: d.path, Reason: "cannot write snapshot", Err: err}
	}

	d.snapshot = snapshot
	d.log.Info(context.Background(), "snapshot saved to %s (%d models)", d.path, len(snapshot))
	return nil
}

// ClearSnapshot removes the snapshot file, forcing full regeneration on
// the next run. A missing file is fine.
func (d *Detector) ClearSnapshot() error {
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return &crerrors.StorageError{Op: "remove", Path: d.path, Reason: "cannot remove snapshot", Err: err}
	}
	d.snapshot = metadata.Snapshot{}
	return nil
}

func compareModel(previous, current *metadata.ModelMeta) *ModelChange {
	mc := &ModelChange{Name: current.Name}

	if previous.TableName != current.TableName {
		mc.Attrs = append(mc.Attrs, AttrChange{Attr: "table_name", Old: previous.TableName, New: current.TableName})
	}
	if !equalKeySet(previous.PrimaryKeys, current.PrimaryKeys) {
		mc.Attrs = append(mc.Attrs, AttrChange{Attr: "primary_keys", Old: previous.PrimaryKeys, New: current.PrimaryKeys})
	}

	previousFields := map[string]*metadata.FieldMeta{}
	for _, f := range previous.Fields {
		previousFields[f.Name] = f
	}
	currentFields := map[string]*metadata.FieldMeta{}
	for _, f := range current.Fields {
		currentFields[f.Name] = f
	}

	for _, f := range current.Fields {
		old, ok := previousFields[f.Name]
		if !ok {
			mc.AddedFields = append(mc.AddedFields, f.Name)
			continue
		}
		if attrs := compareField(old, f); len(attrs) > 0 {
			mc.ModifiedFields = append(mc.ModifiedFields, FieldChange{Name: f.Name, Attrs: attrs})
		}
	}
	for _, f := range previous.Fields {
		if _, ok := currentFields[f.Name]; !ok {
			mc.RemovedFields = append(mc.RemovedFields, f.Name)
		}
	}

	if len(mc.Attrs) == 0 && len(mc.AddedFields) == 0 && len(mc.RemovedFields) == 0 && len(mc.ModifiedFields) == 0 {
		return nil
	}
	return mc
}

// equalKeySet compares primary-key name lists as sets.
func equalKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// compareAttrs is the fixed set of field attributes whose change requires
// regeneration. Attributes outside this set never trigger one.
var compareAttrs = []struct {
	name string
	get  func(*metadata.FieldMeta) any
}{
	{"field_type", func(f *metadata.FieldMeta) any { return string(f.Type) }},
	{"nullable", func(f *metadata.FieldMeta) any { return f.Nullable }},
	{"primary_key", func(f *metadata.FieldMeta) any { return f.PrimaryKey }},
	{"default", func(f *metadata.FieldMeta) any { return f.Default }},
	{"foreign_key", func(f *metadata.FieldMeta) any { return f.ForeignKey }},
	{"unique", func(f *metadata.FieldMeta) any { return f.Unique }},
	{"index", func(f *metadata.FieldMeta) any { return f.Index }},
	{"max_length", func(f *metadata.FieldMeta) any {
		if f.MaxLength == nil {
			return nil
		}
		return *f.MaxLength
	}},
	{"description", func(f *metadata.FieldMeta) any { return f.Description }},
}

func compareField(old, current *metadata.FieldMeta) []AttrChange {
	var attrs []AttrChange
	for _, attr := range compareAttrs {
		oldValue := attr.get(old)
		newValue := attr.get(current)
		if oldValue == metadata.Undefined || newValue == metadata.Undefined {
			continue
		}
		if !equalValue(oldValue, newValue) {
			attrs = append(attrs, AttrChange{Attr: attr.name, Old: oldValue, New: newValue})
		}
	}
	return attrs
}

// equalValue compares attribute values across a JSON round trip: numbers
// normalize to float64 and times to RFC 3339 strings, so a value written
// by the previous run compares equal to the same value freshly scanned.
func equalValue(a, b any) bool {
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func normalize(v any) any {
	switch value := v.(type) {
	case nil:
		return nil
	case time.Time:
		return value.UTC().Format(time.RFC3339)
	case string:
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
		return value
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	}
	return v
}
