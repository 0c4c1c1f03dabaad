package fieldtype

import (
	"sort"
	"strings"
)

// Values maps suffixed sub-field names to encoded values.
type Values map[string]any

// Fragment maps field keys ("table/field") to the values one piece of content
// encodes to. An empty fragment means the value is omitted from the document.
type Fragment map[string]Values

// Keys returns the fragment's field keys in sorted order.
func (f Fragment) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Options are per-field indexing options.
type Options struct {
	// DontTokenize stores text under the keyword suffix for exact matching.
	DontTokenize bool
	// IndexAsIdno treats the value as an identifier and expands it through the
	// table's numbering.
	IndexAsIdno bool
	// RelationshipType, when set, additionally nests the values under this name.
	RelationshipType string
}

// Recognized option names.
const (
	OptionDontTokenize     = "DONT_TOKENIZE"
	OptionIndexAsIdno      = "INDEX_AS_IDNO"
	optionRelationshipType = "RELATIONSHIP_TYPE="
)

// ParseOptions builds Options from option strings such as "DONT_TOKENIZE" or
// "RELATIONSHIP_TYPE=creator". Unknown options are ignored.
func ParseOptions(opts []string) Options {
	var o Options
	for _, opt := range opts {
		opt = strings.TrimSpace(opt)
		switch {
		case strings.EqualFold(opt, OptionDontTokenize):
			o.DontTokenize = true
		case strings.EqualFold(opt, OptionIndexAsIdno):
			o.IndexAsIdno = true
		case len(opt) > len(optionRelationshipType) && strings.EqualFold(opt[:len(optionRelationshipType)], optionRelationshipType):
			o.RelationshipType = strings.TrimSpace(opt[len(optionRelationshipType):])
		}
	}
	return o
}

func single(key string, suffix Suffix, value any) Fragment {
	return Fragment{key: Values{suffix.Name(): value}}
}
