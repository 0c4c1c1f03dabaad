package fieldtype

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/searchsync/internal/schema"
)

type MockVocabulary struct {
	mock.Mock
}

func (m *MockVocabulary) Label(ctx context.Context, listCode, item string) (string, error) {
	args := m.Called(ctx, listCode, item)
	return args.String(0), args.Error(1)
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Config{
		Tables: []schema.Table{
			{
				Name:          "ca_objects",
				IdnoField:     "idno",
				IdnoSortField: "idno_sort",
				IdnoSeparator: ".",
				LabelTable:    "ca_object_labels",
				Fields: []schema.Field{
					{Name: "object_id", Type: schema.TypeNumber},
					{Name: "idno"},
					{Name: "idno_sort"},
					{Name: "is_deaccessioned", Type: schema.TypeBit},
					{Name: "source_id", Type: schema.TypeNumber, ListCode: "object_sources"},
					{Name: "hier_left", Type: schema.TypeNumber},
					{Name: "acquisition_date", Type: schema.TypeHistoricDateRange},
					{Name: "duration", Type: schema.TypeTimecode},
				},
			},
			{
				Name:           "ca_object_labels",
				IsLabel:        true,
				LabelSortField: "name_sort",
				Fields:         []schema.Field{{Name: "name"}, {Name: "name_sort"}},
			},
		},
		Elements: []schema.Element{
			{ID: 10, Code: "description", Datatype: schema.DatatypeText},
			{ID: 11, Code: "dates_value", Datatype: schema.DatatypeDateRange},
			{ID: 12, Code: "georeference", Datatype: schema.DatatypeGeocode},
			{ID: 13, Code: "price", Datatype: schema.DatatypeCurrency},
			{ID: 14, Code: "dimensions_length", Datatype: schema.DatatypeLength},
			{ID: 15, Code: "dimensions_weight", Datatype: schema.DatatypeWeight},
			{ID: 16, Code: "runtime", Datatype: schema.DatatypeTimecode},
			{ID: 17, Code: "page_count", Datatype: schema.DatatypeInteger},
			{ID: 18, Code: "ratio", Datatype: schema.DatatypeNumeric},
			{ID: 19, Code: "material", Datatype: schema.DatatypeList, ListCode: "materials"},
			{ID: 20, Code: "website", Datatype: schema.DatatypeURL},
		},
	})
	require.NoError(t, err)
	return s
}

func testRegistry(t *testing.T, vocab Vocabulary) *Registry {
	t.Helper()
	return NewRegistry(&Env{Schema: testSchema(t), Vocabulary: vocab})
}

func mustGet(t *testing.T, r *Registry, table, name string) FieldType {
	t.Helper()
	ft, err := r.Get(table, name)
	require.NoError(t, err)
	return ft
}
