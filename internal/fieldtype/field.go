package fieldtype

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/syntrixbase/searchsync/internal/schema"
)

// New returns the encoder for a resolved field, dispatching on the element
// datatype. Intrinsic fields always use the intrinsic encoder.
func New(env *Env, ref schema.FieldRef) FieldType {
	if ref.Element == nil {
		return NewIntrinsic(env, ref.Table, ref.Name)
	}
	switch ref.Element.Datatype {
	case schema.DatatypeDateRange:
		return NewDateRange(env, ref.Table, ref.Name)
	case schema.DatatypeGeocode:
		return NewGeocode(env, ref.Table, ref.Name)
	case schema.DatatypeCurrency:
		return NewCurrency(env, ref.Table, ref.Name)
	case schema.DatatypeLength:
		return NewLength(env, ref.Table, ref.Name)
	case schema.DatatypeWeight:
		return NewWeight(env, ref.Table, ref.Name)
	case schema.DatatypeTimecode:
		return NewTimecode(env, ref.Table, ref.Name)
	case schema.DatatypeInteger:
		return NewInteger(env, ref.Table, ref.Name)
	case schema.DatatypeNumeric:
		return NewNumeric(env, ref.Table, ref.Name)
	case schema.DatatypeList:
		return NewListItem(env, ref.Table, ref.Name, ref.Element.ListCode)
	case schema.DatatypeURL:
		return newGeneric(env, ref.Table, ref.Name, "url", SuffixKeyword)
	default:
		return NewGeneric(env, ref.Table, ref.Name)
	}
}

// Encode encodes content with ft. When opts names a relationship type the
// values are also nested beneath it, so a query can target one relationship.
func Encode(ctx context.Context, ft FieldType, content any, opts Options) Fragment {
	frag := ft.Encode(ctx, content, opts)
	if opts.RelationshipType == "" {
		return frag
	}
	for _, vals := range frag {
		nested := maps.Clone(vals)
		vals[opts.RelationshipType] = nested
	}
	return frag
}

// Registry resolves and caches encoders by table and field name.
type Registry struct {
	env   *Env
	mu    sync.RWMutex
	cache map[string]FieldType
}

// NewRegistry creates a registry for env.
func NewRegistry(env *Env) *Registry {
	return &Registry{env: env, cache: make(map[string]FieldType)}
}

// Env returns the registry's environment.
func (r *Registry) Env() *Env {
	return r.env
}

// Get returns the encoder for a content field name of table. Names may be
// intrinsic names, element codes, "I<num>" or "A<id>".
func (r *Registry) Get(table, name string) (FieldType, error) {
	key := table + "\x00" + name
	r.mu.RLock()
	ft, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return ft, nil
	}

	if r.env == nil || r.env.Schema == nil {
		return nil, fmt.Errorf("fieldtype: no schema configured")
	}
	ref, err := r.env.Schema.Resolve(table, name)
	if err != nil {
		return nil, err
	}
	ft = New(r.env, ref)

	r.mu.Lock()
	r.cache[key] = ft
	r.mu.Unlock()
	return ft, nil
}

// ChangeLog returns the change log date encoder for name.
func (r *Registry) ChangeLog(name string) FieldType {
	key := ChangeLogTable + "\x00" + name
	r.mu.RLock()
	ft, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return ft
	}
	if name == "modified_by" {
		ft = NewGeneric(r.env, ChangeLogTable, name)
	} else {
		ft = NewChangeLogDate(r.env, name)
	}
	r.mu.Lock()
	r.cache[key] = ft
	r.mu.Unlock()
	return ft
}
