package scanner

import (
	"github.com/crudgen/crudgen/utils"
)

// TagName is the struct tag key carrying entity field settings.
const TagName = "crud"

// ParseTagSetting splits a `crud` tag value into uppercase-keyed settings.
func ParseTagSetting(str string, sep string) map[string]string {
	return utils.ParseTagSetting(str, sep)
}
