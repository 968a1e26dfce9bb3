package scanner

import (
	"strings"
)

// applyFieldIndexes parses the index settings of one field's raw tag and
// merges them into the model's index list. Multiple fields naming the same
// index compose a multi-column index in field declaration order.
func (s *Session) applyFieldIndexes(sink *modelIndexSink, fieldColumn string, rawTag string) {
	for _, value := range strings.Split(rawTag, ";") {
		if value == "" {
			continue
		}
		v := strings.Split(value, ":")
		k := strings.TrimSpace(strings.ToUpper(v[0]))
		if k != "INDEX" && k != "UNIQUEINDEX" {
			continue
		}

		var (
			name     string
			tag      = strings.Join(v[1:], ":")
			settings = map[string]string{}
		)

		names := strings.Split(tag, ",")
		for i := 0; i < len(names); i++ {
			if len(names[i]) > 0 {
				j := i
				for {
					if names[j][len(names[j])-1] == '\\' && i+1 < len(names) {
						i++
						names[j] = names[j][0:len(names[j])-1] + names[i]
						names[i] = ""
					} else {
						break
					}
				}
			}

			if i == 0 {
				name = names[0]
			}

			values := strings.Split(names[i], ":")
			key := strings.TrimSpace(strings.ToUpper(values[0]))

			if len(values) >= 2 {
				settings[key] = strings.Join(values[1:], ":")
			} else if key != "" {
				settings[key] = key
			}
		}

		if name == "" || strings.Contains(name, ":") {
			name = s.namer.IndexName(sink.table, fieldColumn)
		}

		unique := k == "UNIQUEINDEX" || settings["UNIQUE"] != ""
		sink.add(name, fieldColumn, unique, settings["WHERE"], settings["DIALECT"])
	}
}

// modelIndexSink accumulates index declarations for one model while its
// fields are being parsed.
type modelIndexSink struct {
	table   string
	order   []string
	entries map[string]*indexEntry
}

type indexEntry struct {
	columns []string
	unique  bool
	where   string
	dialect string
}

func newModelIndexSink(table string) *modelIndexSink {
	return &modelIndexSink{table: table, entries: map[string]*indexEntry{}}
}

func (sink *modelIndexSink) add(name, column string, unique bool, where, dialect string) {
	entry, ok := sink.entries[name]
	if !ok {
		entry = &indexEntry{}
		sink.entries[name] = entry
		sink.order = append(sink.order, name)
	}
	entry.columns = append(entry.columns, column)
	entry.unique = entry.unique || unique
	if where != "" {
		entry.where = where
	}
	if dialect != "" {
		entry.dialect = dialect
	}
}
