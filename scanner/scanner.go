// Package scanner converts entity definitions into metadata. It supports two
// inputs: live struct types (reflection over `crud` tags) and Go source
// trees (AST extraction via the package/file loaders).
package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/now"

	"github.com/crudgen/crudgen/crud"
	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/logger"
	"github.com/crudgen/crudgen/metadata"
	"github.com/crudgen/crudgen/naming"
)

// Options configure a scan session.
type Options struct {
	Namer          naming.Namer
	Logger         logger.Interface
	ExcludeModels  []string
	SchemaSuffixes []string // struct name suffixes marking pure transfer schemas
	ExcludeDirs    []string // directory names skipped during directory scans
}

// Session owns the scan cache for one generation run. It is not safe for
// concurrent use; construct one session per run and discard it afterwards.
type Session struct {
	namer          naming.Namer
	log            logger.Interface
	excludeModels  []string
	schemaSuffixes []string
	excludeDirs    []string

	cache      map[string]*metadata.ModelMeta
	order      []string
	inProgress map[reflect.Type]bool
}

var defaultExcludeDirs = []string{"testdata", "vendor", "node_modules", ".git"}

// NewSession creates a scan session with defaults filled in.
func NewSession(opts Options) *Session {
	if opts.Namer == nil {
		opts.Namer = naming.Strategy{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default
	}
	if len(opts.SchemaSuffixes) == 0 {
		opts.SchemaSuffixes = []string{"Create", "Update", "Response"}
	}
	return &Session{
		namer:          opts.Namer,
		log:            opts.Logger,
		excludeModels:  opts.ExcludeModels,
		schemaSuffixes: opts.SchemaSuffixes,
		excludeDirs:    append(append([]string{}, defaultExcludeDirs...), opts.ExcludeDirs...),
		cache:          map[string]*metadata.ModelMeta{},
		inProgress:     map[reflect.Type]bool{},
	}
}

var (
	baseModelType       = reflect.TypeOf(crud.Model{})
	softDeleteModelType = reflect.TypeOf(crud.SoftDeleteModel{})
	timeType            = reflect.TypeOf(time.Time{})
	uuidType            = reflect.TypeOf(uuid.UUID{})
	bytesType           = reflect.TypeOf([]byte{})
)

// ScanModel reflects over a live entity type and returns its metadata.
// The input may be a struct value, pointer or slice; anything that is not a
// named struct type with exported fields fails with ErrInvalidEntity.
// Results are cached per (module, name) for the session lifetime.
func (s *Session) ScanModel(entity any) (*metadata.ModelMeta, error) {
	if entity == nil {
		return nil, &crerrors.ScanError{Reason: "nil entity"}
	}

	modelType := reflect.TypeOf(entity)
	for modelType.Kind() == reflect.Slice || modelType.Kind() == reflect.Array || modelType.Kind() == reflect.Ptr {
		modelType = modelType.Elem()
	}

	if modelType.Kind() != reflect.Struct {
		if modelType.PkgPath() == "" {
			return nil, &crerrors.ScanError{Reason: fmt.Sprintf("unsupported value %+v, entities must be struct types", entity)}
		}
		return nil, &crerrors.ScanError{Model: modelType.Name(), Reason: fmt.Sprintf("unsupported type %s, entities must be struct types", modelType)}
	}
	if modelType == baseModelType || modelType == softDeleteModelType {
		return nil, &crerrors.ScanError{Model: modelType.Name(), Reason: "the base model type is not a scannable entity"}
	}
	if modelType.NumField() == 0 {
		return nil, &crerrors.ScanError{Model: modelType.Name(), Reason: "entity has no declared fields"}
	}

	cacheKey := modelType.PkgPath() + "." + modelType.Name()
	if cached, ok := s.cache[cacheKey]; ok {
		return cached, nil
	}

	model := &metadata.ModelMeta{
		Name:        modelType.Name(),
		Module:      modelType.PkgPath(),
		ForeignKeys: map[string]string{},
	}

	value := reflect.New(modelType)
	if describer, ok := value.Interface().(crud.Describer); ok {
		model.Description = describer.ModelDescription()
	}

	if s.isSchemaOnly(modelType) {
		model.IsTable = false
	} else {
		model.IsTable = true
		if tabler, ok := value.Interface().(crud.Tabler); ok {
			model.TableName = tabler.TableName()
		} else {
			model.TableName = s.namer.TableName(model.Name)
		}
	}

	// cache before relationship resolution so mutually-referencing entities
	// terminate; relationship fields only carry name references
	s.cache[cacheKey] = model
	s.order = append(s.order, cacheKey)
	s.inProgress[modelType] = true
	defer delete(s.inProgress, modelType)

	sink := newModelIndexSink(model.TableName)
	if err := s.scanFields(model, modelType, sink); err != nil {
		// relationship fields may have cached nested models after this
		// entry, so drop this key specifically rather than the last one
		delete(s.cache, cacheKey)
		for i, key := range s.order {
			if key == cacheKey {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
		return nil, err
	}

	s.finishModel(model, sink)
	return model, nil
}

// scanFields walks the struct fields in declaration order, flattening
// embedded structs the way their columns would flatten in storage.
func (s *Session) scanFields(model *metadata.ModelMeta, modelType reflect.Type, sink *modelIndexSink) error {
	for i := 0; i < modelType.NumField(); i++ {
		structField := modelType.Field(i)
		if !structField.IsExported() {
			continue
		}

		if structField.Anonymous {
			embedded := structField.Type
			for embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				if err := s.scanFields(model, embedded, sink); err != nil {
					return err
				}
				continue
			}
		}

		rawTag := structField.Tag.Get(TagName)
		settings := ParseTagSetting(rawTag, ";")
		if settings["-"] != "" {
			continue
		}

		field, err := s.parseField(model, structField, settings)
		if err != nil {
			return err
		}
		if field.Index && !field.IsRelationship() {
			s.applyFieldIndexes(sink, field.Name, rawTag)
		}
		model.Fields = append(model.Fields, field)
	}
	return nil
}

// parseField extracts one field's metadata from its type and tag settings.
// Tag settings win over type-derived facts, mirroring how table-level
// metadata takes precedence over declared-field metadata.
func (s *Session) parseField(model *metadata.ModelMeta, structField reflect.StructField, settings map[string]string) (*metadata.FieldMeta, error) {
	field := &metadata.FieldMeta{
		Name:         s.namer.ColumnName(structField.Name),
		DeclaredType: structField.Type.String(),
	}

	indirect := structField.Type
	if indirect.Kind() == reflect.Ptr {
		field.Nullable = true
		indirect = indirect.Elem()
	}

	field.Type = s.fieldType(indirect, settings)

	if field.Type == metadata.TypeRelationship {
		return s.resolveRelationship(field, indirect, settings)
	}

	if name, ok := settings["COLUMN"]; ok {
		field.Name = name
	}
	if settings["PRIMARYKEY"] != "" {
		field.PrimaryKey = true
	}
	if settings["NULLABLE"] != "" {
		field.Nullable = true
	}
	if settings["UNIQUE"] != "" {
		field.Unique = true
	}
	if settings["INDEX"] != "" || settings["UNIQUEINDEX"] != "" {
		field.Index = true
	}
	if v, ok := settings["COMMENT"]; ok {
		field.Description = v
	}
	if v, ok := settings["FOREIGNKEY"]; ok && strings.Contains(v, ".") {
		field.ForeignKey = v
	}
	if v, ok := settings["DEFAULTFUNC"]; ok {
		field.DefaultFunc = v
	}
	if v, ok := settings["SIZE"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			field.MaxLength = &n
		}
	}
	if v, ok := settings["REGEX"]; ok {
		field.Regex = v
	}
	for key, dst := range map[string]**float64{"GE": &field.GE, "LE": &field.LE, "GT": &field.GT, "LT": &field.LT} {
		if v, ok := settings[key]; ok {
			bound, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &crerrors.ScanError{Model: model.Name, Reason: fmt.Sprintf("invalid %s bound %q on field %s", strings.ToLower(key), v, field.Name)}
			}
			*dst = &bound
		}
	}

	if v, ok := settings["DEFAULT"]; ok {
		if err := s.parseDefault(field, v); err != nil {
			return nil, &crerrors.ScanError{Model: model.Name, Reason: err.Error()}
		}
	}

	// autoIncrement implies a storage-assigned value, recorded as a default
	// function so the field is not reported required
	if settings["AUTOINCREMENT"] != "" && field.DefaultFunc == "" {
		field.DefaultFunc = "autoincrement"
	}

	return field, nil
}

// fieldType maps a Go type to its storage-level tag. An explicit `type:`
// setting wins.
func (s *Session) fieldType(indirect reflect.Type, settings map[string]string) metadata.FieldType {
	if override, ok := settings["TYPE"]; ok {
		switch strings.ToLower(override) {
		case "date":
			return metadata.TypeDate
		case "time":
			return metadata.TypeTime
		case "datetime":
			return metadata.TypeDatetime
		case "decimal":
			return metadata.TypeDecimal
		case "enum":
			return metadata.TypeEnum
		case "json":
			return metadata.TypeJSON
		case "uuid":
			return metadata.TypeUUID
		}
	}
	if settings["MANY2MANY"] != "" {
		return metadata.TypeRelationship
	}

	switch indirect {
	case timeType:
		return metadata.TypeDatetime
	case uuidType:
		return metadata.TypeUUID
	case bytesType:
		return metadata.TypeBytes
	}

	switch indirect.Kind() {
	case reflect.Bool:
		return metadata.TypeBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return metadata.TypeInteger
	case reflect.Float32, reflect.Float64:
		return metadata.TypeFloat
	case reflect.String:
		return metadata.TypeString
	case reflect.Map:
		return metadata.TypeJSON
	case reflect.Struct:
		return metadata.TypeRelationship
	case reflect.Slice, reflect.Array:
		elem := indirect.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		if elem.Kind() == reflect.Struct && elem != timeType && elem != uuidType {
			return metadata.TypeRelationship
		}
		return metadata.TypeList
	}
	return metadata.TypeUnknown
}

// resolveRelationship fills the name reference and cardinality of a
// relationship field. Resolution is two-phase: a strict pass scans the
// referenced entity through the session (cross-references terminate via the
// cache); when that fails, cardinality and target name are inferred from
// the type shape alone.
func (s *Session) resolveRelationship(field *metadata.FieldMeta, indirect reflect.Type, settings map[string]string) (*metadata.FieldMeta, error) {
	target := indirect
	switch indirect.Kind() {
	case reflect.Slice, reflect.Array:
		field.RelationshipKind = metadata.OneToMany
		target = indirect.Elem()
		for target.Kind() == reflect.Ptr {
			target = target.Elem()
		}
	default:
		field.RelationshipKind = metadata.OneToOne
	}
	if settings["MANY2MANY"] != "" {
		field.RelationshipKind = metadata.ManyToMany
	}
	field.Nullable = true
	field.RelationshipModel = target.Name()

	if s.inProgress[target] {
		// already being scanned higher in the call chain; the name
		// reference is all a relationship carries
		return field, nil
	}

	if _, err := s.ScanModel(reflect.New(target).Interface()); err != nil {
		s.log.Warn(context.Background(), "relationship target %s not scannable, falling back to type-shape inference: %v", target.Name(), err)
	}
	return field, nil
}

// parseDefault interprets a `default:` setting against the field type.
// Function-shaped values ("time.Now()") become default functions rather
// than literal defaults.
func (s *Session) parseDefault(field *metadata.FieldMeta, value string) error {
	if strings.Contains(value, "(") && strings.Contains(value, ")") {
		field.DefaultFunc = value
		return nil
	}
	if strings.EqualFold(value, "null") {
		field.Nullable = true
		return nil
	}

	switch field.Type {
	case metadata.TypeBoolean:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("failed to parse %q as default for boolean field %s: %w", value, field.Name, err)
		}
		field.Default = parsed
	case metadata.TypeInteger:
		parsed, err := strconv.ParseInt(value, 0, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q as default for integer field %s: %w", value, field.Name, err)
		}
		field.Default = parsed
	case metadata.TypeFloat, metadata.TypeDecimal:
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("failed to parse %q as default for float field %s: %w", value, field.Name, err)
		}
		field.Default = parsed
	case metadata.TypeDatetime, metadata.TypeDate, metadata.TypeTime:
		parsed, err := now.Parse(value)
		if err != nil {
			return fmt.Errorf("failed to parse %q as default for time field %s: %w", value, field.Name, err)
		}
		field.Default = parsed
	case metadata.TypeString, metadata.TypeEnum:
		field.Default = strings.Trim(strings.Trim(value, `'`), `"`)
	case metadata.TypeUnknown:
		// the default cannot be typed, record the sentinel so the change
		// detector skips it instead of diffing an opaque string
		field.Default = metadata.Undefined
	default:
		field.Default = value
	}
	return nil
}

// finishModel derives the model-level facts from the scanned fields:
// primary keys (with the conventional id fallback), foreign keys, indexes
// and unique constraints.
func (s *Session) finishModel(model *metadata.ModelMeta, sink *modelIndexSink) {
	for _, f := range model.Fields {
		if f.PrimaryKey {
			model.PrimaryKeys = append(model.PrimaryKeys, f.Name)
		}
		if f.ForeignKey != "" {
			model.ForeignKeys[f.Name] = f.ForeignKey
		}
	}

	if len(model.PrimaryKeys) == 0 {
		if f := model.Field("id"); f != nil {
			f.PrimaryKey = true
			model.PrimaryKeys = []string{f.Name}
		}
	}

	if !model.IsTable {
		return
	}
	for _, name := range sink.order {
		entry := sink.entries[name]
		model.Indexes = append(model.Indexes, metadata.IndexMeta{
			Name:    name,
			Columns: entry.columns,
			Unique:  entry.unique,
			Where:   entry.where,
			Dialect: entry.dialect,
		})
		if entry.unique {
			model.UniqueConstraints = append(model.UniqueConstraints, entry.columns)
		}
	}
}

func (s *Session) isSchemaOnly(modelType reflect.Type) bool {
	for _, suffix := range s.schemaSuffixes {
		if strings.HasSuffix(modelType.Name(), suffix) && modelType.Name() != suffix {
			return true
		}
	}
	for i := 0; i < modelType.NumField(); i++ {
		if ParseTagSetting(modelType.Field(i).Tag.Get(TagName), ";")["SCHEMAONLY"] != "" {
			return true
		}
	}
	return false
}

// GetCachedModel returns a previously scanned model. With a module it
// matches the exact cache key, otherwise the first model with that name.
func (s *Session) GetCachedModel(name string, module string) *metadata.ModelMeta {
	if module != "" {
		return s.cache[module+"."+name]
	}
	if m, ok := s.cache[name]; ok {
		return m
	}
	for _, key := range s.order {
		if strings.HasSuffix(key, "."+name) {
			return s.cache[key]
		}
	}
	return nil
}

// AllCachedModels returns every model scanned in this session, in scan order.
func (s *Session) AllCachedModels() []*metadata.ModelMeta {
	out := make([]*metadata.ModelMeta, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.cache[key])
	}
	return out
}

// ClearCache resets the session cache.
func (s *Session) ClearCache() {
	s.cache = map[string]*metadata.ModelMeta{}
	s.order = nil
}

func (s *Session) excludedModel(name string) bool {
	for _, excluded := range s.excludeModels {
		if name == excluded {
			return true
		}
	}
	return false
}
