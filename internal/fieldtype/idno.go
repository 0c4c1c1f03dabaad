package fieldtype

import "strings"

// IDNumbering expands an identifier into the values it should be findable by.
type IDNumbering interface {
	IndexValues(value string) []string
}

// SeparatorNumbering splits identifiers on a separator. "2020.14.3" with "."
// indexes the whole value, each leading prefix ("2020", "2020.14") and each
// component. Without a separator values are split on whitespace.
type SeparatorNumbering struct {
	Separator string
}

func (n SeparatorNumbering) IndexValues(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if n.Separator == "" {
		return strings.Fields(value)
	}

	parts := strings.Split(value, n.Separator)
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	add(value)
	for i := 1; i < len(parts); i++ {
		add(strings.Join(parts[:i], n.Separator))
	}
	for _, p := range parts {
		add(p)
	}
	return out
}
