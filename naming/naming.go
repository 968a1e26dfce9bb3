// Package naming provides the case-conversion helpers and the table/column
// naming strategy shared by the scanner and the code generator.
package naming

import (
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Namer derives storage names from Go identifiers.
type Namer interface {
	TableName(model string) string
	ColumnName(field string) string
	JoinTableName(field string) string
	IndexName(table, column string) string
}

// Strategy is the default Namer: snake_case columns, pluralized snake_case
// table names unless SingularTable is set.
type Strategy struct {
	TablePrefix   string
	SingularTable bool
}

// TableName converts a model name to its table name.
func (s Strategy) TableName(model string) string {
	if s.SingularTable {
		return s.TablePrefix + SnakeCase(model)
	}
	return s.TablePrefix + inflection.Plural(SnakeCase(model))
}

// ColumnName converts a field name to its column name.
func (s Strategy) ColumnName(field string) string {
	return SnakeCase(field)
}

// JoinTableName converts a relationship field name to a join table name.
func (s Strategy) JoinTableName(field string) string {
	return s.TablePrefix + inflection.Plural(SnakeCase(field))
}

// IndexName derives a deterministic index name for a single column.
func (s Strategy) IndexName(table, column string) string {
	return "idx_" + table + "_" + SnakeCase(column)
}

var (
	smap sync.Map
	// https://github.com/golang/lint/blob/master/lint.go#L770
	commonInitialisms         = []string{"API", "ASCII", "CPU", "CSS", "DNS", "EOF", "GUID", "HTML", "HTTP", "HTTPS", "ID", "IP", "JSON", "LHS", "QPS", "RAM", "RHS", "RPC", "SLA", "SMTP", "SSH", "TLS", "TTL", "UID", "UI", "UUID", "URI", "URL", "UTF8", "VM", "XML", "XSRF", "XSS"}
	commonInitialismsReplacer *strings.Replacer
	titleCaser                = cases.Title(language.English, cases.NoLower)
)

func init() {
	var pairs []string
	for _, initialism := range commonInitialisms {
		pairs = append(pairs, initialism, titleCaser.String(strings.ToLower(initialism)))
	}
	commonInitialismsReplacer = strings.NewReplacer(pairs...)
}

// SnakeCase converts a Go identifier to lowercase underscore form.
// Initialism runs collapse to a single word: "APIKey" -> "api_key".
func SnakeCase(name string) string {
	if name == "" {
		return ""
	} else if v, ok := smap.Load(name); ok {
		return v.(string)
	}

	var (
		value                          = commonInitialismsReplacer.Replace(name)
		buf                            strings.Builder
		lastCase, nextCase, nextNumber bool // upper case == true
		curCase                        = value[0] <= 'Z' && value[0] >= 'A'
	)

	for i, v := range value[:len(value)-1] {
		nextCase = value[i+1] <= 'Z' && value[i+1] >= 'A'
		nextNumber = value[i+1] >= '0' && value[i+1] <= '9'

		if curCase {
			if lastCase && (nextCase || nextNumber) {
				buf.WriteRune(v + 32)
			} else {
				if i > 0 && value[i-1] != '_' && value[i+1] != '_' {
					buf.WriteByte('_')
				}
				buf.WriteRune(v + 32)
			}
		} else {
			buf.WriteRune(v)
		}

		lastCase = curCase
		curCase = nextCase
	}

	if curCase {
		if !lastCase && len(value) > 1 {
			buf.WriteByte('_')
		}
		buf.WriteByte(value[len(value)-1] + 32)
	} else {
		buf.WriteByte(value[len(value)-1])
	}

	out := buf.String()
	smap.Store(name, out)
	return out
}

// PascalCase converts an underscore-separated name to PascalCase:
// "user_profile" -> "UserProfile".
func PascalCase(name string) string {
	if name == "" {
		return ""
	}
	parts := strings.Split(name, "_")
	var buf strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		buf.WriteString(titleCaser.String(strings.ToLower(part[:1])))
		if len(part) > 1 {
			buf.WriteString(part[1:])
		}
	}
	return buf.String()
}

// CamelCase converts an underscore-separated name to camelCase:
// "user_profile" -> "userProfile".
func CamelCase(name string) string {
	pascal := PascalCase(name)
	if pascal == "" {
		return ""
	}
	return strings.ToLower(pascal[:1]) + pascal[1:]
}
