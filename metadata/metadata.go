// Package metadata defines the value objects describing a scanned entity:
// its fields, constraints, indexes and relationships. Values are built once
// by the scanner and treated as immutable afterwards; the JSON form is the
// snapshot persistence contract used by the change detector.
package metadata

// FieldType tags the storage-level kind of a field.
type FieldType string

const (
	TypeString       FieldType = "string"
	TypeInteger      FieldType = "integer"
	TypeFloat        FieldType = "float"
	TypeBoolean      FieldType = "boolean"
	TypeDatetime     FieldType = "datetime"
	TypeDate         FieldType = "date"
	TypeTime         FieldType = "time"
	TypeDecimal      FieldType = "decimal"
	TypeJSON         FieldType = "json"
	TypeList         FieldType = "list"
	TypeUUID         FieldType = "uuid"
	TypeBytes        FieldType = "bytes"
	TypeEnum         FieldType = "enum"
	TypeRelationship FieldType = "relationship"
	TypeUnknown      FieldType = "unknown"
)

// RelationshipKind tags the cardinality of a relationship field.
type RelationshipKind string

const (
	OneToOne   RelationshipKind = "one-to-one"
	OneToMany  RelationshipKind = "one-to-many"
	ManyToMany RelationshipKind = "many-to-many"
)

// Undefined marks an attribute the scanner could not introspect. The change
// detector skips comparisons involving this placeholder.
const Undefined = "<undefined>"

// FieldMeta describes one attribute of a scanned entity.
type FieldMeta struct {
	Name         string    `json:"name"`
	Type         FieldType `json:"field_type"`
	DeclaredType string    `json:"declared_type,omitempty"`
	Nullable     bool      `json:"nullable"`
	PrimaryKey   bool      `json:"primary_key"`
	Default      any       `json:"default,omitempty"`
	DefaultFunc  string    `json:"default_func,omitempty"`
	ForeignKey   string    `json:"foreign_key,omitempty"` // "table.column"
	Unique       bool      `json:"unique"`
	Index        bool      `json:"index"`
	Description  string    `json:"description,omitempty"`
	MaxLength    *int      `json:"max_length,omitempty"`
	GE           *float64  `json:"ge,omitempty"`
	LE           *float64  `json:"le,omitempty"`
	GT           *float64  `json:"gt,omitempty"`
	LT           *float64  `json:"lt,omitempty"`
	Regex        string    `json:"regex,omitempty"`

	// Relationship fields reference the target entity by name only; the
	// scanner resolves names within its session, never via live pointers.
	RelationshipModel string           `json:"relationship_model,omitempty"`
	RelationshipKind  RelationshipKind `json:"relationship_type,omitempty"`
}

// IsRequired reports whether a value must be supplied for this field:
// not nullable and without a default or default function.
func (f *FieldMeta) IsRequired() bool {
	return !f.Nullable && f.Default == nil && f.DefaultFunc == ""
}

// IsAutoIncrement reports whether this field is an auto-assigned primary key:
// flagged primary with no explicit default.
func (f *FieldMeta) IsAutoIncrement() bool {
	return f.PrimaryKey && f.Default == nil
}

// IsRelationship reports whether the field references another entity.
func (f *FieldMeta) IsRelationship() bool {
	return f.Type == TypeRelationship
}

// IndexMeta describes one table index, including partial indexes.
type IndexMeta struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
	Where   string   `json:"where,omitempty"`   // partial index condition
	Dialect string   `json:"dialect,omitempty"` // engine the Where clause targets
}

// ModelMeta describes one scanned entity.
type ModelMeta struct {
	Name              string            `json:"name"`
	TableName         string            `json:"table_name,omitempty"`
	Module            string            `json:"module,omitempty"`
	Fields            []*FieldMeta      `json:"fields"`
	PrimaryKeys       []string          `json:"primary_keys"`
	ForeignKeys       map[string]string `json:"foreign_keys,omitempty"`
	Indexes           []IndexMeta       `json:"indexes,omitempty"`
	UniqueConstraints [][]string        `json:"unique_constraints,omitempty"`
	Description       string            `json:"description,omitempty"`
	IsTable           bool              `json:"is_table"`
}

// Field returns the field with the given name, or nil.
func (m *ModelMeta) Field(name string) *FieldMeta {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// RequiredFields returns the fields a caller must supply on create.
func (m *ModelMeta) RequiredFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if f.IsRequired() {
			out = append(out, f)
		}
	}
	return out
}

// OptionalFields returns the fields with a default or nullable type.
func (m *ModelMeta) OptionalFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if !f.IsRequired() {
			out = append(out, f)
		}
	}
	return out
}

// RelationshipFields returns the fields referencing other entities.
func (m *ModelMeta) RelationshipFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if f.IsRelationship() {
			out = append(out, f)
		}
	}
	return out
}

// PrimaryKeyFields returns the fields flagged as primary keys, in
// declaration order.
func (m *ModelMeta) PrimaryKeyFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if f.PrimaryKey {
			out = append(out, f)
		}
	}
	return out
}

// IndexedFields returns the single-column indexed fields.
func (m *ModelMeta) IndexedFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if f.Index {
			out = append(out, f)
		}
	}
	return out
}

// UniqueFields returns the fields carrying a unique constraint.
func (m *ModelMeta) UniqueFields() []*FieldMeta {
	var out []*FieldMeta
	for _, f := range m.Fields {
		if f.Unique {
			out = append(out, f)
		}
	}
	return out
}

// HasPartialIndexes reports whether any index carries a WHERE condition.
func (m *ModelMeta) HasPartialIndexes() bool {
	for _, idx := range m.Indexes {
		if idx.Where != "" {
			return true
		}
	}
	return false
}
