package crud

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/logger"
	"github.com/crudgen/crudgen/naming"
	"github.com/crudgen/crudgen/utils"
)

// Repository is a generic data-access layer over database/sql. Generated
// repositories embed it; the column mapping comes from the entity's crud
// tags the same way the scanner reads them.
type Repository[T any] struct {
	db      *sql.DB
	table   string
	pk      string
	columns []column
	byName  map[string]*column
	soft    bool
	log     logger.Interface
}

type column struct {
	name      string
	index     []int
	auto      bool
	createdAt bool
	updatedAt bool
	deletedAt bool
	isDeleted bool
	jsonCodec bool
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte{})
)

// NewRepository maps T's fields to table columns and returns a repository
// bound to db. The primary key column must exist on T.
func NewRepository[T any](db *sql.DB, table string, pk string) *Repository[T] {
	r := &Repository[T]{
		db:     db,
		table:  table,
		pk:     pk,
		byName: map[string]*column{},
		log:    logger.Default,
	}

	var zero T
	r.collectColumns(reflect.TypeOf(zero), nil)
	for i := range r.columns {
		c := &r.columns[i]
		r.byName[c.name] = c
		if c.isDeleted {
			r.soft = true
		}
	}
	return r
}

// WithLogger replaces the repository logger.
func (r *Repository[T]) WithLogger(log logger.Interface) *Repository[T] {
	r.log = log
	return r
}

// Table returns the mapped table name.
func (r *Repository[T]) Table() string { return r.table }

// PrimaryKey returns the primary key column.
func (r *Repository[T]) PrimaryKey() string { return r.pk }

// SoftDelete reports whether deletes flag rows instead of removing them.
func (r *Repository[T]) SoftDelete() bool { return r.soft }

// Columns returns the mapped column names in declaration order.
func (r *Repository[T]) Columns() []string {
	out := make([]string, len(r.columns))
	for i, c := range r.columns {
		out[i] = c.name
	}
	return out
}

func (r *Repository[T]) collectColumns(t reflect.Type, index []int) {
	if t == nil || t.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		path := append(append([]int{}, index...), i)

		if f.Anonymous {
			embedded := f.Type
			if embedded.Kind() == reflect.Ptr {
				embedded = embedded.Elem()
			}
			if embedded.Kind() == reflect.Struct {
				r.collectColumns(embedded, path)
				continue
			}
		}

		settings := utils.ParseTagSetting(f.Tag.Get("crud"), ";")
		if settings["-"] != "" || settings["MANY2MANY"] != "" {
			continue
		}
		if isRelationshipType(f.Type) {
			continue
		}

		name := naming.SnakeCase(f.Name)
		if v, ok := settings["COLUMN"]; ok {
			name = v
		}

		ft := f.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		r.columns = append(r.columns, column{
			name:      name,
			index:     path,
			auto:      settings["AUTOINCREMENT"] != "",
			createdAt: name == "created_at" && ft == timeType,
			updatedAt: name == "updated_at" && ft == timeType,
			deletedAt: name == "deleted_at",
			isDeleted: name == "is_deleted",
			jsonCodec: needsJSONCodec(f.Type),
		})
	}
}

func isRelationshipType(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return t != timeType && !hasValuer(t)
	case reflect.Slice:
		elem := t.Elem()
		for elem.Kind() == reflect.Ptr {
			elem = elem.Elem()
		}
		return elem.Kind() == reflect.Struct && elem != timeType && !hasValuer(elem)
	}
	return false
}

var valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()

func hasValuer(t reflect.Type) bool {
	return t.Implements(valuerType) || reflect.PtrTo(t).Implements(valuerType)
}

func needsJSONCodec(t reflect.Type) bool {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Map:
		return true
	case reflect.Slice:
		return t != bytesType
	}
	return false
}

// jsonCell marshals a field through JSON for storage in a text column.
type jsonCell struct{ target any }

func (c jsonCell) Value() (driver.Value, error) {
	data, err := json.Marshal(c.target)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (c jsonCell) Scan(src any) error {
	if src == nil {
		return nil
	}
	switch data := src.(type) {
	case []byte:
		return json.Unmarshal(data, c.target)
	case string:
		return json.Unmarshal([]byte(data), c.target)
	}
	return fmt.Errorf("cannot scan %T into JSON column", src)
}

func (r *Repository[T]) fieldValue(entity *T, c *column) reflect.Value {
	v := reflect.ValueOf(entity).Elem()
	for _, i := range c.index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v
}

func (r *Repository[T]) scanDest(entity *T, c *column) any {
	field := r.fieldValue(entity, c)
	if c.jsonCodec {
		return jsonCell{target: field.Addr().Interface()}
	}
	return field.Addr().Interface()
}

func (r *Repository[T]) writeValue(entity *T, c *column) any {
	field := r.fieldValue(entity, c)
	if c.jsonCodec {
		return jsonCell{target: field.Interface()}
	}
	return field.Interface()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *Repository[T]) selectClause() string {
	parts := make([]string, len(r.columns))
	for i, c := range r.columns {
		parts[i] = quote(c.name)
	}
	return strings.Join(parts, ", ")
}

func (r *Repository[T]) scanRow(scan func(...any) error) (*T, error) {
	entity := new(T)
	dests := make([]any, len(r.columns))
	for i := range r.columns {
		dests[i] = r.scanDest(entity, &r.columns[i])
	}
	if err := scan(dests...); err != nil {
		return nil, err
	}
	return entity, nil
}

// Get fetches one record by primary key. Missing records return (nil, nil);
// soft-deleted records count as missing.
func (r *Repository[T]) Get(ctx context.Context, id any) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", r.selectClause(), quote(r.table), quote(r.pk))
	if r.soft {
		query += ` AND "is_deleted" = 0`
	}

	entity, err := r.scanRow(r.db.QueryRowContext(ctx, query, id).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", r.table, err)
	}
	return entity, nil
}

// GetOrErr fetches one record by primary key and fails when it is missing.
func (r *Repository[T]) GetOrErr(ctx context.Context, id any) (*T, error) {
	entity, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, &crerrors.NotFoundError{Type: r.table, Key: fmt.Sprint(id)}
	}
	return entity, nil
}

// First fetches the first record matching column = value.
func (r *Repository[T]) First(ctx context.Context, col string, value any) (*T, error) {
	if _, ok := r.byName[col]; !ok {
		return nil, fmt.Errorf("%w: unknown column %q on %s", crerrors.ErrInvalidInput, col, r.table)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", r.selectClause(), quote(r.table), quote(col))
	if r.soft {
		query += ` AND "is_deleted" = 0`
	}
	query += " LIMIT 1"

	entity, err := r.scanRow(r.db.QueryRowContext(ctx, query, value).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s first: %w", r.table, err)
	}
	return entity, nil
}

// ListOptions shape a List query.
type ListOptions struct {
	Limit          int
	Offset         int
	OrderBy        string
	Desc           bool
	Filters        map[string]any
	IncludeDeleted bool
}

// List fetches records with optional filtering, ordering and paging.
// Unknown filter or order columns fail with ErrInvalidInput.
func (r *Repository[T]) List(ctx context.Context, opts ListOptions) ([]*T, error) {
	query, args, err := r.buildList("SELECT "+r.selectClause(), opts)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s list: %w", r.table, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		entity, err := r.scanRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s list scan: %w", r.table, err)
		}
		out = append(out, entity)
	}
	return out, rows.Err()
}

// ListBy fetches every record matching column = value.
func (r *Repository[T]) ListBy(ctx context.Context, col string, value any) ([]*T, error) {
	return r.List(ctx, ListOptions{Filters: map[string]any{col: value}})
}

func (r *Repository[T]) buildList(head string, opts ListOptions) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	fmt.Fprintf(&b, "%s FROM %s", head, quote(r.table))

	var conds []string
	if r.soft && !opts.IncludeDeleted {
		conds = append(conds, `"is_deleted" = 0`)
	}

	var filterCols []string
	for col := range opts.Filters {
		filterCols = append(filterCols, col)
	}
	// deterministic argument order
	sort.Strings(filterCols)
	for _, col := range filterCols {
		if _, ok := r.byName[col]; !ok {
			return "", nil, fmt.Errorf("%w: unknown filter column %q on %s", crerrors.ErrInvalidInput, col, r.table)
		}
		value := opts.Filters[col]
		if value == nil {
			conds = append(conds, quote(col)+" IS NULL")
			continue
		}
		conds = append(conds, quote(col)+" = ?")
		args = append(args, value)
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}

	if opts.OrderBy != "" {
		if _, ok := r.byName[opts.OrderBy]; !ok {
			return "", nil, fmt.Errorf("%w: unknown order column %q on %s", crerrors.ErrInvalidInput, opts.OrderBy, r.table)
		}
		b.WriteString(" ORDER BY " + quote(opts.OrderBy))
		if opts.Desc {
			b.WriteString(" DESC")
		}
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
		if opts.Offset > 0 {
			fmt.Fprintf(&b, " OFFSET %d", opts.Offset)
		}
	} else if opts.Offset > 0 {
		fmt.Fprintf(&b, " LIMIT -1 OFFSET %d", opts.Offset)
	}

	return b.String(), args, nil
}

// Create inserts one record. Auto-increment keys are filled from the
// database; zero timestamp columns are stamped with the current time.
func (r *Repository[T]) Create(ctx context.Context, entity *T) error {
	return r.create(ctx, r.db, entity)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository[T]) create(ctx context.Context, db execer, entity *T) error {
	now := time.Now()
	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for i := range r.columns {
		c := &r.columns[i]
		if c.auto {
			continue
		}
		if c.createdAt || c.updatedAt {
			field := r.fieldValue(entity, c)
			if t, ok := field.Interface().(time.Time); ok && t.IsZero() {
				field.Set(reflect.ValueOf(now))
			}
		}
		cols = append(cols, quote(c.name))
		placeholders = append(placeholders, "?")
		args = append(args, r.writeValue(entity, c))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quote(r.table), strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s create: %w", r.table, err)
	}

	for i := range r.columns {
		c := &r.columns[i]
		if !c.auto {
			continue
		}
		id, err := result.LastInsertId()
		if err != nil {
			break
		}
		field := r.fieldValue(entity, c)
		if field.Kind() >= reflect.Int && field.Kind() <= reflect.Int64 {
			field.SetInt(id)
		}
	}
	return nil
}

// CreateBatch inserts records inside one transaction; any failure rolls
// the whole batch back.
func (r *Repository[T]) CreateBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s create batch: %w", r.table, err)
	}
	for _, entity := range entities {
		if err := r.create(ctx, tx, entity); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Update applies the given column changes and returns the updated record.
// The primary key cannot be changed; unknown columns fail with
// ErrInvalidInput and a missing record with NotFoundError.
func (r *Repository[T]) Update(ctx context.Context, id any, changes map[string]any) (*T, error) {
	if len(changes) == 0 {
		return r.GetOrErr(ctx, id)
	}

	var cols []string
	for col := range changes {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var (
		sets []string
		args []any
	)
	for _, col := range cols {
		c, ok := r.byName[col]
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q on %s", crerrors.ErrInvalidInput, col, r.table)
		}
		if col == r.pk {
			return nil, fmt.Errorf("%w: primary key %q cannot be updated", crerrors.ErrInvalidInput, col)
		}
		value := changes[col]
		if c.jsonCodec && value != nil {
			value = jsonCell{target: value}
		}
		sets = append(sets, quote(col)+" = ?")
		args = append(args, value)
	}

	if c, ok := r.byName["updated_at"]; ok && c.updatedAt {
		if _, explicit := changes["updated_at"]; !explicit {
			sets = append(sets, `"updated_at" = ?`)
			args = append(args, time.Now())
		}
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(r.table), strings.Join(sets, ", "), quote(r.pk))
	if r.soft {
		query += ` AND "is_deleted" = 0`
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s update: %w", r.table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, &crerrors.NotFoundError{Type: r.table, Key: fmt.Sprint(id)}
	}
	return r.GetOrErr(ctx, id)
}

// Delete removes a record. Soft-delete tables flag the row instead of
// removing it; missing records fail with NotFoundError.
func (r *Repository[T]) Delete(ctx context.Context, id any) error {
	var (
		query string
		args  []any
	)
	if r.soft {
		sets := `"is_deleted" = 1`
		if _, ok := r.byName["deleted_at"]; ok {
			sets += `, "deleted_at" = ?`
			args = append(args, time.Now())
		}
		query = fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? AND "is_deleted" = 0`, quote(r.table), sets, quote(r.pk))
	} else {
		query = fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(r.table), quote(r.pk))
	}
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s delete: %w", r.table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &crerrors.NotFoundError{Type: r.table, Key: fmt.Sprint(id)}
	}
	return nil
}

// Restore un-deletes a soft-deleted record.
func (r *Repository[T]) Restore(ctx context.Context, id any) error {
	if !r.soft {
		return fmt.Errorf("%w: %s does not soft delete", crerrors.ErrInvalidInput, r.table)
	}
	sets := `"is_deleted" = 0`
	if _, ok := r.byName["deleted_at"]; ok {
		sets += `, "deleted_at" = NULL`
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? AND "is_deleted" = 1`, quote(r.table), sets, quote(r.pk))

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s restore: %w", r.table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &crerrors.NotFoundError{Type: r.table, Key: fmt.Sprint(id)}
	}
	return nil
}

// Count returns the number of records matching the filters.
func (r *Repository[T]) Count(ctx context.Context, filters map[string]any) (int64, error) {
	query, args, err := r.buildList("SELECT COUNT(*)", ListOptions{Filters: filters})
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s count: %w", r.table, err)
	}
	return n, nil
}

// Exists reports whether a record with the given primary key is present.
func (r *Repository[T]) Exists(ctx context.Context, id any) (bool, error) {
	entity, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return entity != nil, nil
}
