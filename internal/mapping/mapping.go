// Package mapping manages the search indices holding record documents: their
// settings, the dynamic templates mapping each suffix to an index type, and
// administrative operations.
package mapping

import (
	"math"

	"github.com/syntrixbase/searchsync/internal/fieldtype"
)

// SourceIDsField is the document field holding the content row ids that
// produced each value of a tracked field. It is stored but never indexed.
const SourceIDsField = "source_ids"

// MaxResultWindow is the largest result window an index accepts.
const MaxResultWindow = math.MaxInt32

// TotalFieldsLimit bounds the number of mapped fields per index.
const TotalFieldsLimit = 20000

const dateFormat = "strict_date_optional_time||uuuu-MM-dd'T'HH:mm:ssXXX||epoch_second"

// Settings returns the index settings, including analysis.
func Settings() map[string]any {
	s := DynamicSettings()
	s["analysis"] = map[string]any{
		"analyzer": map[string]any{
			"keyword_lowercase": map[string]any{
				"tokenizer": "keyword",
				"filter":    []any{"lowercase"},
			},
			"whitespace": map[string]any{
				"tokenizer": "whitespace",
				"filter":    []any{"lowercase"},
			},
		},
		"normalizer": map[string]any{
			"lowercase_normalizer": map[string]any{
				"type":   "custom",
				"filter": []any{"lowercase"},
			},
		},
	}
	return s
}

// DynamicSettings returns the settings that can be changed on an open index.
func DynamicSettings() map[string]any {
	return map[string]any{
		"max_result_window":                MaxResultWindow,
		"index.mapping.total_fields.limit": TotalFieldsLimit,
	}
}

// Mappings returns the index mappings.
func Mappings() map[string]any {
	return map[string]any{
		"_source":           map[string]any{"enabled": true},
		"dynamic":           true,
		"dynamic_templates": DynamicTemplates(),
		"properties": map[string]any{
			SourceIDsField: map[string]any{"type": "object", "enabled": false},
		},
	}
}

// DynamicTemplates maps every suffix to its index type.
func DynamicTemplates() []any {
	templates := make([]any, 0, len(fieldtype.AllSuffixes))
	for _, s := range fieldtype.AllSuffixes {
		templates = append(templates, map[string]any{
			"suffix" + s.Name(): map[string]any{
				"path_match": "*." + s.Name(),
				"mapping":    FieldMapping(s),
			},
		})
	}
	return templates
}

// FieldMapping returns the mapping for values stored under suffix s.
func FieldMapping(s fieldtype.Suffix) map[string]any {
	switch s {
	case fieldtype.SuffixText:
		return map[string]any{
			"type": "text",
			"fields": map[string]any{
				fieldtype.SortSubField: map[string]any{
					"type":         "keyword",
					"normalizer":   "lowercase_normalizer",
					"ignore_above": 256,
				},
			},
		}
	case fieldtype.SuffixIdno:
		return map[string]any{"type": "text", "analyzer": "keyword_lowercase"}
	case fieldtype.SuffixTokenizeWS:
		return map[string]any{"type": "text", "analyzer": "whitespace"}
	case fieldtype.SuffixKeyword:
		return map[string]any{"type": "keyword"}
	case fieldtype.SuffixInteger:
		return map[string]any{"type": "integer"}
	case fieldtype.SuffixFloat, fieldtype.SuffixTime:
		return map[string]any{"type": "float"}
	case fieldtype.SuffixDouble, fieldtype.SuffixCurrency:
		return map[string]any{"type": "double"}
	case fieldtype.SuffixBool:
		return map[string]any{"type": "boolean"}
	case fieldtype.SuffixLong:
		return map[string]any{"type": "long"}
	case fieldtype.SuffixLongRange:
		return map[string]any{"type": "long_range"}
	case fieldtype.SuffixIntegerRange:
		return map[string]any{"type": "integer_range"}
	case fieldtype.SuffixDoubleRange:
		return map[string]any{"type": "double_range"}
	case fieldtype.SuffixTimeRange:
		return map[string]any{"type": "float_range"}
	case fieldtype.SuffixWildcard:
		return map[string]any{"type": "wildcard"}
	case fieldtype.SuffixGeoShape:
		return map[string]any{"type": "geo_shape"}
	case fieldtype.SuffixGeoPoint:
		return map[string]any{"type": "geo_point"}
	case fieldtype.SuffixObject:
		return map[string]any{"type": "object"}
	case fieldtype.SuffixDate, fieldtype.SuffixTimestamp:
		return map[string]any{"type": "date", "format": dateFormat}
	case fieldtype.SuffixDateRange:
		return map[string]any{"type": "date_range", "format": dateFormat}
	}
	return map[string]any{"type": "keyword"}
}

// IndexBody returns the body used to create an index.
func IndexBody() map[string]any {
	return map[string]any{
		"settings": Settings(),
		"mappings": Mappings(),
	}
}

// TemplateBody returns the index template applied to every index of prefix.
func TemplateBody(prefix string) map[string]any {
	body := IndexBody()
	body["index_patterns"] = []any{prefix + "_*"}
	return body
}
