package scanner

import (
	"context"
	"fmt"
	"go/ast"
	"go/types"
	"reflect"
	"strconv"
	"strings"

	crerrors "github.com/crudgen/crudgen/errors"
	"github.com/crudgen/crudgen/metadata"
)

// sourceStruct is one struct type declaration lifted out of a parsed file,
// before entity classification.
type sourceStruct struct {
	name    string
	doc     string
	file    string
	fields  []*ast.Field
	methods map[string]string // literal returns of TableName/ModelDescription
}

// collectStructs lifts every struct type declaration out of a file, along
// with the string-literal returns of its Tabler/Describer methods. Order
// records declaration order so scan output stays deterministic.
func collectStructs(file *ast.File, filename string, into map[string]*sourceStruct, order *[]string) {
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			for _, spec := range d.Specs {
				typeSpec, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				structType, ok := typeSpec.Type.(*ast.StructType)
				if !ok {
					continue
				}
				doc := typeSpec.Doc.Text()
				if doc == "" {
					doc = d.Doc.Text()
				}
				if existing, ok := into[typeSpec.Name.Name]; ok {
					// placeholder created when a method was seen first
					if existing.fields == nil {
						*order = append(*order, typeSpec.Name.Name)
					}
					existing.doc = strings.TrimSpace(doc)
					existing.file = filename
					existing.fields = structType.Fields.List
					continue
				}
				into[typeSpec.Name.Name] = &sourceStruct{
					name:    typeSpec.Name.Name,
					doc:     strings.TrimSpace(doc),
					file:    filename,
					fields:  structType.Fields.List,
					methods: map[string]string{},
				}
				*order = append(*order, typeSpec.Name.Name)
			}
		case *ast.FuncDecl:
			if d.Recv == nil || len(d.Recv.List) != 1 {
				continue
			}
			if d.Name.Name != "TableName" && d.Name.Name != "ModelDescription" {
				continue
			}
			recv := receiverTypeName(d.Recv.List[0].Type)
			if recv == "" {
				continue
			}
			if lit := literalReturn(d.Body); lit != "" {
				st, ok := into[recv]
				if !ok {
					st = &sourceStruct{name: recv, methods: map[string]string{}}
					into[recv] = st
				}
				st.methods[d.Name.Name] = lit
			}
		}
	}
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	}
	return ""
}

// literalReturn extracts the value of a single `return "literal"` statement.
func literalReturn(body *ast.BlockStmt) string {
	if body == nil {
		return ""
	}
	for _, stmt := range body.List {
		ret, ok := stmt.(*ast.ReturnStmt)
		if !ok || len(ret.Results) != 1 {
			continue
		}
		lit, ok := ret.Results[0].(*ast.BasicLit)
		if !ok {
			continue
		}
		if value, err := strconv.Unquote(lit.Value); err == nil {
			return value
		}
	}
	return ""
}

// isEntity reports whether a struct declaration is a scannable entity: it
// carries at least one crud tag or embeds one of the base model types.
func isEntity(st *sourceStruct) bool {
	for _, f := range st.fields {
		if len(f.Names) == 0 && isBaseModelExpr(f.Type) {
			return true
		}
		if f.Tag != nil {
			if _, ok := fieldTag(f).Lookup(TagName); ok {
				return true
			}
		}
	}
	return false
}

func isBaseModelExpr(expr ast.Expr) bool {
	name := embeddedTypeName(expr)
	return name == "Model" || name == "SoftDeleteModel" ||
		name == "crud.Model" || name == "crud.SoftDeleteModel"
}

func embeddedTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return embeddedTypeName(t.X)
	case *ast.SelectorExpr:
		if pkg, ok := t.X.(*ast.Ident); ok {
			return pkg.Name + "." + t.Sel.Name
		}
	}
	return ""
}

// scanSource converts one struct declaration into model metadata. known
// holds every struct name found in the same scan unit and is used for
// strict relationship resolution; unresolved references fall back to
// type-shape inference.
func (s *Session) scanSource(st *sourceStruct, module string, known map[string]*sourceStruct) (*metadata.ModelMeta, error) {
	if len(st.fields) == 0 {
		return nil, &crerrors.ScanError{File: st.file, Model: st.name, Reason: "entity has no declared fields"}
	}

	model := &metadata.ModelMeta{
		Name:        st.name,
		Module:      module,
		ForeignKeys: map[string]string{},
		Description: st.doc,
	}
	if desc := st.methods["ModelDescription"]; desc != "" {
		model.Description = desc
	}

	if s.isSchemaOnlySource(st) {
		model.IsTable = false
	} else {
		model.IsTable = true
		if table := st.methods["TableName"]; table != "" {
			model.TableName = table
		} else {
			model.TableName = s.namer.TableName(model.Name)
		}
	}

	sink := newModelIndexSink(model.TableName)
	if err := s.scanSourceFields(model, st, known, sink); err != nil {
		return nil, err
	}

	s.finishModel(model, sink)
	return model, nil
}

func (s *Session) scanSourceFields(model *metadata.ModelMeta, st *sourceStruct, known map[string]*sourceStruct, sink *modelIndexSink) error {
	for _, astField := range st.fields {
		rawTag := ""
		if astField.Tag != nil {
			rawTag = fieldTag(astField).Get(TagName)
		}
		settings := ParseTagSetting(rawTag, ";")
		if settings["-"] != "" {
			continue
		}

		if len(astField.Names) == 0 {
			if err := s.expandEmbedded(model, st, astField.Type, known, sink); err != nil {
				return err
			}
			continue
		}

		for _, name := range astField.Names {
			if !ast.IsExported(name.Name) {
				continue
			}
			field, err := s.parseSourceField(model, st, name.Name, astField, settings, known)
			if err != nil {
				return err
			}
			if field.Index && !field.IsRelationship() {
				s.applyFieldIndexes(sink, field.Name, rawTag)
			}
			model.Fields = append(model.Fields, field)
		}
	}
	return nil
}

// expandEmbedded flattens an embedded struct. The base model types expand
// to their known columns; other embedded structs expand from their source
// declaration when it is in the same scan unit.
func (s *Session) expandEmbedded(model *metadata.ModelMeta, st *sourceStruct, expr ast.Expr, known map[string]*sourceStruct, sink *modelIndexSink) error {
	name := embeddedTypeName(expr)
	switch name {
	case "Model", "crud.Model":
		model.Fields = append(model.Fields, baseModelFields()...)
		return nil
	case "SoftDeleteModel", "crud.SoftDeleteModel":
		model.Fields = append(model.Fields, baseModelFields()...)
		model.Fields = append(model.Fields, softDeleteFields()...)
		for _, f := range model.Fields[len(model.Fields)-2:] {
			sink.add(s.namer.IndexName(sink.table, f.Name), f.Name, false, "", "")
		}
		return nil
	}

	short := name
	if i := strings.LastIndex(short, "."); i >= 0 {
		short = short[i+1:]
	}
	if embedded, ok := known[short]; ok {
		return s.scanSourceFields(model, embedded, known, sink)
	}
	return &crerrors.ScanError{File: st.file, Model: st.name, Reason: fmt.Sprintf("embedded type %s is not declared in the scanned sources", name)}
}

func baseModelFields() []*metadata.FieldMeta {
	return []*metadata.FieldMeta{
		{Name: "id", Type: metadata.TypeInteger, DeclaredType: "int64", PrimaryKey: true, DefaultFunc: "autoincrement"},
		{Name: "created_at", Type: metadata.TypeDatetime, DeclaredType: "time.Time", DefaultFunc: "time.Now"},
		{Name: "updated_at", Type: metadata.TypeDatetime, DeclaredType: "time.Time", DefaultFunc: "time.Now"},
	}
}

func softDeleteFields() []*metadata.FieldMeta {
	return []*metadata.FieldMeta{
		{Name: "is_deleted", Type: metadata.TypeBoolean, DeclaredType: "bool", Default: false, Index: true},
		{Name: "deleted_at", Type: metadata.TypeDatetime, DeclaredType: "*time.Time", Nullable: true, Index: true},
	}
}

func (s *Session) parseSourceField(model *metadata.ModelMeta, st *sourceStruct, fieldName string, astField *ast.Field, settings map[string]string, known map[string]*sourceStruct) (*metadata.FieldMeta, error) {
	field := &metadata.FieldMeta{
		Name:         s.namer.ColumnName(fieldName),
		DeclaredType: types.ExprString(astField.Type),
	}

	expr := astField.Type
	if star, ok := expr.(*ast.StarExpr); ok {
		field.Nullable = true
		expr = star.X
	}

	field.Type = s.sourceFieldType(expr, settings)

	if field.Type == metadata.TypeRelationship {
		return s.resolveSourceRelationship(field, expr, settings, known)
	}

	if desc := strings.TrimSpace(astField.Doc.Text()); desc != "" {
		field.Description = desc
	} else if desc := strings.TrimSpace(astField.Comment.Text()); desc != "" {
		field.Description = desc
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
				return nil, &crerrors.ScanError{File: st.file, Model: model.Name, Reason: fmt.Sprintf("invalid %s bound %q on field %s", strings.ToLower(key), v, field.Name)}
			}
			*dst = &bound
		}
	}

	if v, ok := settings["DEFAULT"]; ok {
		if err := s.parseDefault(field, v); err != nil {
			return nil, &crerrors.ScanError{File: st.file, Model: model.Name, Reason: err.Error()}
		}
	}

	if settings["AUTOINCREMENT"] != "" && field.DefaultFunc == "" {
		field.DefaultFunc = "autoincrement"
	}

	return field, nil
}

// sourceFieldType maps a type expression to its storage-level tag. Types
// that cannot be classified from syntax alone come back unknown rather
// than failing the scan.
func (s *Session) sourceFieldType(expr ast.Expr, settings map[string]string) metadata.FieldType {
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

	switch t := expr.(type) {
	case *ast.Ident:
		switch t.Name {
		case "string":
			return metadata.TypeString
		case "bool":
			return metadata.TypeBoolean
		case "int", "int8", "int16", "int32", "int64",
			"uint", "uint8", "uint16", "uint32", "uint64", "byte", "rune":
			return metadata.TypeInteger
		case "float32", "float64":
			return metadata.TypeFloat
		}
		if ast.IsExported(t.Name) {
			return metadata.TypeRelationship
		}
		return metadata.TypeUnknown
	case *ast.SelectorExpr:
		switch types.ExprString(t) {
		case "time.Time":
			return metadata.TypeDatetime
		case "uuid.UUID":
			return metadata.TypeUUID
		}
		return metadata.TypeRelationship
	case *ast.MapType:
		return metadata.TypeJSON
	case *ast.ArrayType:
		elem := t.Elt
		if star, ok := elem.(*ast.StarExpr); ok {
			elem = star.X
		}
		if ident, ok := elem.(*ast.Ident); ok {
			if ident.Name == "byte" {
				return metadata.TypeBytes
			}
			if ast.IsExported(ident.Name) {
				return metadata.TypeRelationship
			}
		}
		if _, ok := elem.(*ast.SelectorExpr); ok {
			return metadata.TypeRelationship
		}
		return metadata.TypeList
	case *ast.StarExpr:
		return s.sourceFieldType(t.X, settings)
	}
	return metadata.TypeUnknown
}

// resolveSourceRelationship mirrors the reflection path: strict resolution
// against the scan unit first, type-shape inference as the fallback.
func (s *Session) resolveSourceRelationship(field *metadata.FieldMeta, expr ast.Expr, settings map[string]string, known map[string]*sourceStruct) (*metadata.FieldMeta, error) {
	target := expr
	switch t := expr.(type) {
	case *ast.ArrayType:
		field.RelationshipKind = metadata.OneToMany
		target = t.Elt
		if star, ok := target.(*ast.StarExpr); ok {
			target = star.X
		}
	default:
		field.RelationshipKind = metadata.OneToOne
	}
	if settings["MANY2MANY"] != "" {
		field.RelationshipKind = metadata.ManyToMany
	}
	field.Nullable = true

	name := types.ExprString(target)
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	field.RelationshipModel = name

	if _, ok := known[name]; !ok {
		s.log.Warn(context.Background(), "relationship target %s not declared in the scanned sources, keeping the type-shape inference", name)
	}
	return field, nil
}

func (s *Session) isSchemaOnlySource(st *sourceStruct) bool {
	for _, suffix := range s.schemaSuffixes {
		if strings.HasSuffix(st.name, suffix) && st.name != suffix {
			return true
		}
	}
	for _, f := range st.fields {
		if f.Tag == nil {
			continue
		}
		if ParseTagSetting(fieldTag(f).Get(TagName), ";")["SCHEMAONLY"] != "" {
			return true
		}
	}
	return false
}

// fieldTag decodes a field's tag literal, whichever quoting style the
// source uses.
func fieldTag(f *ast.Field) reflect.StructTag {
	if f.Tag == nil {
		return ""
	}
	if unquoted, err := strconv.Unquote(f.Tag.Value); err == nil {
		return reflect.StructTag(unquoted)
	}
	return reflect.StructTag(strings.Trim(f.Tag.Value, "`"))
}
