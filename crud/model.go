// Package crud provides the reusable CRUD base layer generated code builds
// on: a base model type and a generic repository over database/sql.
package crud

import "time"

// Model is the base entity type. Embed it to inherit an auto-increment
// primary key and timestamp columns.
type Model struct {
	ID        int64     `crud:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `crud:"defaultFunc:time.Now" json:"created_at"`
	UpdatedAt time.Time `crud:"defaultFunc:time.Now" json:"updated_at"`
}

// SoftDeleteModel extends Model with logical-delete columns. Records flagged
// deleted are filtered out of default repository reads.
type SoftDeleteModel struct {
	Model
	IsDeleted bool       `crud:"index;default:false" json:"is_deleted"`
	DeletedAt *time.Time `crud:"index" json:"deleted_at,omitempty"`
}

// Tabler lets an entity override its derived table name.
type Tabler interface {
	TableName() string
}

// Describer lets an entity supply a description for generated documentation.
type Describer interface {
	ModelDescription() string
}
