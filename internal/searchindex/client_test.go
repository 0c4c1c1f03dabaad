package searchindex

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnmappedSortField(t *testing.T) {
	structured := &ResponseError{
		Status: 400,
		Type:   "search_phase_execution_exception",
		Reason: "all shards failed",
		RootCauses: []ErrorCause{{
			Type:   "query_shard_exception",
			Reason: "No mapping found for [ca_objects/idno_sort.-s.sort] in order to sort on",
		}},
	}

	tests := []struct {
		name  string
		err   error
		field string
		ok    bool
	}{
		{"structured", structured, "ca_objects/idno_sort.-s.sort", true},
		{"wrapped", fmt.Errorf("search: %w", structured), "ca_objects/idno_sort.-s.sort", true},
		{"message only", errors.New("No mapping found for [x.-kw] in order to sort on"), "x.-kw", true},
		{"other error", &ResponseError{Status: 500, Reason: "boom"}, "", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field, ok := UnmappedSortField(tt.err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.field, field)
		})
	}
}

func TestResponseError_Error(t *testing.T) {
	err := &ResponseError{Status: 400, Type: "parse_exception", Reason: "bad", RootCauses: []ErrorCause{{Type: "x", Reason: "y"}}}
	assert.Equal(t, "search index error [400] parse_exception: bad; x: y", err.Error())
}

func TestBulkResponse_Failures(t *testing.T) {
	resp := &BulkResponse{Items: []BulkItemResult{
		{Type: OpIndex, ID: "1", Status: 201},
		{Type: OpUpdate, ID: "2", Status: 400, Error: &ErrorCause{Type: "mapper_parsing_exception", Reason: "bad"}},
		{Type: OpDelete, ID: "3", Status: 404},
	}}
	failed := resp.Failures()
	assert.Len(t, failed, 1)
	assert.Equal(t, "2", failed[0].ID)

	var nilResp *BulkResponse
	assert.Nil(t, nilResp.Failures())
}

func TestIndexName(t *testing.T) {
	assert.Equal(t, "collection_ca_objects", IndexName("collection", "ca_objects"))
	assert.Equal(t, "ca_objects", IndexName("", "ca_objects"))
}
