// Package elastic implements searchindex.Client on Elasticsearch.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/syntrixbase/searchsync/internal/searchindex"
)

// Config holds the connection settings.
type Config struct {
	Addresses      []string
	Username       string
	Password       string
	MaxRetries     int
	RequestTimeout time.Duration
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client talks to Elasticsearch over its REST API.
type Client struct {
	es      *elasticsearch.Client
	timeout time.Duration
	logger  *slog.Logger
}

var _ searchindex.Client = (*Client)(nil)

// New creates a client. No request is made until the first call.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
		Transport:  cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{
		es:      es,
		timeout: cfg.RequestTimeout,
		logger:  logger.With("component", "elastic"),
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) Get(ctx context.Context, index, id string) (map[string]any, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Get(index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", index, id, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, searchindex.ErrNotFound
	}
	if res.IsError() {
		return nil, decodeError(res)
	}

	var body struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode get response: %w", err)
	}
	if !body.Found {
		return nil, searchindex.ErrNotFound
	}
	return body.Source, nil
}

func (c *Client) Bulk(ctx context.Context, ops []searchindex.BulkOp) (*searchindex.BulkResponse, error) {
	if len(ops) == 0 {
		return &searchindex.BulkResponse{}, nil
	}
	body, err := encodeBulk(ops)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Bulk(bytes.NewReader(body), c.es.Bulk.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("bulk request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}
	return decodeBulk(res.Body)
}

// encodeBulk renders operations as newline-delimited JSON.
func encodeBulk(ops []searchindex.BulkOp) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, op := range ops {
		meta := map[string]any{string(op.Type): map[string]any{"_index": op.Index, "_id": op.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to encode bulk metadata: %w", err)
		}
		var doc any
		switch op.Type {
		case searchindex.OpIndex:
			doc = op.Doc
		case searchindex.OpUpdate:
			doc = map[string]any{"doc": op.Doc, "doc_as_upsert": true}
		case searchindex.OpDelete:
			continue
		default:
			return nil, fmt.Errorf("unknown bulk operation %q", op.Type)
		}
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode document %s/%s: %w", op.Index, op.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func decodeBulk(r io.Reader) (*searchindex.BulkResponse, error) {
	var body struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Index  string                  `json:"_index"`
			ID     string                  `json:"_id"`
			Status int                     `json:"status"`
			Error  *searchindex.ErrorCause `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	resp := &searchindex.BulkResponse{Items: make([]searchindex.BulkItemResult, 0, len(body.Items))}
	for _, item := range body.Items {
		for op, res := range item {
			resp.Items = append(resp.Items, searchindex.BulkItemResult{
				Type:   searchindex.OpType(op),
				Index:  res.Index,
				ID:     res.ID,
				Status: res.Status,
				Error:  res.Error,
			})
		}
	}
	return resp, nil
}

func (c *Client) Search(ctx context.Context, index string, body map[string]any) (*searchindex.SearchResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, decodeError(res)
	}

	var out struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string         `json:"_index"`
				ID     string         `json:"_id"`
				Score  *float64       `json:"_score"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	resp := &searchindex.SearchResponse{Total: out.Hits.Total.Value, Hits: make([]searchindex.Hit, 0, len(out.Hits.Hits))}
	for _, h := range out.Hits.Hits {
		hit := searchindex.Hit{Index: h.Index, ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		resp.Hits = append(resp.Hits, hit)
	}
	return resp, nil
}

func (c *Client) Refresh(ctx context.Context, indices ...string) error {
	return c.do(ctx, "refresh", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.Refresh(c.es.Indices.Refresh.WithContext(ctx), c.es.Indices.Refresh.WithIndex(indices...))
	})
}

func (c *Client) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode index body: %w", err)
	}
	return c.do(ctx, "create index", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.Create(index, c.es.Indices.Create.WithContext(ctx), c.es.Indices.Create.WithBody(bytes.NewReader(data)))
	})
}

func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("index exists: %w", err)
	}
	defer res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	}
	return false, decodeError(res)
}

func (c *Client) DeleteIndices(ctx context.Context, indices ...string) error {
	if len(indices) == 0 {
		return nil
	}
	return c.do(ctx, "delete indices", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.Delete(indices,
			c.es.Indices.Delete.WithContext(ctx),
			c.es.Indices.Delete.WithIgnoreUnavailable(true))
	})
}

func (c *Client) PutSettings(ctx context.Context, index string, settings map[string]any) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return c.do(ctx, "put settings", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.PutSettings(bytes.NewReader(data),
			c.es.Indices.PutSettings.WithContext(ctx),
			c.es.Indices.PutSettings.WithIndex(index))
	})
}

func (c *Client) PutMapping(ctx context.Context, index string, mapping map[string]any) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	return c.do(ctx, "put mapping", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.PutMapping([]string{index}, bytes.NewReader(data), c.es.Indices.PutMapping.WithContext(ctx))
	})
}

func (c *Client) PutTemplate(ctx context.Context, name string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode template: %w", err)
	}
	return c.do(ctx, "put template", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.PutIndexTemplate(name, bytes.NewReader(data), c.es.Indices.PutIndexTemplate.WithContext(ctx))
	})
}

func (c *Client) ForceMerge(ctx context.Context, indices ...string) error {
	return c.do(ctx, "force merge", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Indices.Forcemerge(
			c.es.Indices.Forcemerge.WithContext(ctx),
			c.es.Indices.Forcemerge.WithIndex(indices...),
			c.es.Indices.Forcemerge.WithMaxNumSegments(1))
	})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "ping", func(ctx context.Context) (*esapi.Response, error) {
		return c.es.Ping(c.es.Ping.WithContext(ctx))
	})
}

// do runs a request whose response body is not needed.
func (c *Client) do(ctx context.Context, op string, call func(context.Context) (*esapi.Response, error)) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	res, err := call(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		err := decodeError(res)
		c.logger.Debug("Request failed", "op", op, "error", err)
		return err
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

// decodeError converts an error response into a *searchindex.ResponseError.
func decodeError(res *esapi.Response) error {
	data, _ := io.ReadAll(res.Body)
	rerr := &searchindex.ResponseError{Status: res.StatusCode}

	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Error) == 0 {
		rerr.Reason = string(bytes.TrimSpace(data))
		return rerr
	}

	var detail struct {
		Type      string                   `json:"type"`
		Reason    string                   `json:"reason"`
		RootCause []searchindex.ErrorCause `json:"root_cause"`
	}
	if err := json.Unmarshal(body.Error, &detail); err != nil {
		var msg string
		if json.Unmarshal(body.Error, &msg) == nil {
			rerr.Reason = msg
		}
		return rerr
	}
	rerr.Type = detail.Type
	rerr.Reason = detail.Reason
	rerr.RootCauses = detail.RootCause
	return rerr
}
