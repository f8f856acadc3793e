// Package qdrant implements vectorstore.Store against the Qdrant REST API.
// Adapted from the teacher's memory_manager/providers/storer/qdrant storer:
// same raw-HTTP-with-generic-envelope style, generalized from a single
// implicit vector per point to named vectors, and from no filter support to
// the full must/should/and/or Filter tree.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chronofact/chronofact/chronoerr"
	getsafe "github.com/chronofact/chronofact/util/get_safe"
	"github.com/chronofact/chronofact/vectorstore"
)

type store struct {
	options vectorstore.Options
	client  *http.Client
}

// New constructs a Store talking to a Qdrant deployment (docker or cloud
// mode - see config.VectorStoreMode) at opts' Location.
func New(opts ...vectorstore.Option) vectorstore.Store {
	options := vectorstore.NewOptions(opts...)

	if len(options.Location) == 0 {
		panic("missing location for qdrant vector store")
	}

	return &store{
		options: options,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *store) EnsureCollection(ctx context.Context, name string, vectors []vectorstore.VectorSpec, indexes []vectorstore.PayloadIndexSpec) error {
	exists, err := s.collectionExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	vectorsConfig := map[string]any{}
	for _, v := range vectors {
		vectorsConfig[v.Name] = map[string]any{
			"size":     v.Dim,
			"distance": "Cosine",
		}
	}

	req := map[string]any{"vectors": vectorsConfig}

	var rsp envelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s", url.PathEscape(name))
	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}
	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return fmt.Errorf("%w: %s", chronoerr.ErrSchemaMismatch, rsp.Status.Error)
	}

	for _, idx := range indexes {
		if err := s.createIndex(ctx, name, idx); err != nil {
			return err
		}
	}

	return nil
}

func (s *store) createIndex(ctx context.Context, collection string, idx vectorstore.PayloadIndexSpec) error {
	req := map[string]any{
		"field_name": idx.Field,
		"field_schema": idx.FieldType,
	}
	path := fmt.Sprintf("/collections/%s/index", url.PathEscape(collection))
	var rsp envelope[json.RawMessage]
	return s.do(ctx, http.MethodPut, path, req, &rsp)
}

func (s *store) collectionExists(ctx context.Context, name string) (bool, error) {
	path := fmt.Sprintf("/collections/%s", url.PathEscape(name))
	var rsp envelope[json.RawMessage]
	err := s.do(ctx, http.MethodGet, path, nil, &rsp)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, err
	}
	return strings.EqualFold(rsp.Status.State, "ok"), nil
}

func (s *store) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	qdrantPoints := make([]map[string]any, 0, len(points))
	for _, p := range points {
		vec := map[string]any{}
		for name, v := range p.Vectors {
			vec[name] = v
		}
		qdrantPoints = append(qdrantPoints, map[string]any{
			"id":      p.ID,
			"vector":  vec,
			"payload": p.Payload,
		})
	}

	req := map[string]any{"points": qdrantPoints}

	var rsp envelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	if err := s.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}
	if !strings.EqualFold(rsp.Status.State, "ok") && len(rsp.Status.Error) > 0 {
		return errors.New(rsp.Status.Error)
	}
	return nil
}

func (s *store) Query(ctx context.Context, collection string, using string, vector []float32, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	if limit < 1 {
		return nil, nil
	}

	req := map[string]any{
		"vector":       map[string]any{"name": using, "vector": vector},
		"limit":        limit,
		"with_vector":  true,
		"with_payload": true,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}

	var rsp envelope[[]pointResult]
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(collection))
	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}

	return toScoredPoints(rsp.Result), nil
}

// SparseQuery is implemented as a client-side BM25-style scan over a
// payload scroll, rather than Qdrant's native sparse-vector indices. The
// retriever's primary BM25 path goes through its own bleve index (see
// retriever/bm25.go); this method exists to satisfy the Store contract and
// to keep parity with the other backends for tests that exercise Store
// directly.
func (s *store) SparseQuery(ctx context.Context, collection string, using string, terms []vectorstore.SparseTerm, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	if limit < 1 {
		return nil, nil
	}

	result, err := s.Scroll(ctx, collection, filter, "", limit*5)
	if err != nil {
		return nil, err
	}

	scored := make([]vectorstore.ScoredPoint, 0, len(result.Points))
	for _, p := range result.Points {
		text := strings.ToLower(getsafe.String(p.Payload, "text"))
		var score float64
		for _, t := range terms {
			if strings.Contains(text, strings.ToLower(t.Term)) {
				score += t.Weight
			}
		}
		if score <= 0 {
			continue
		}
		scored = append(scored, vectorstore.ScoredPoint{Point: p, Score: score})
	}

	if len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (s *store) Scroll(ctx context.Context, collection string, filter vectorstore.Filter, cursor string, batch int) (vectorstore.ScrollResult, error) {
	req := map[string]any{
		"limit":        batch,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := buildFilter(filter); f != nil {
		req["filter"] = f
	}
	if len(cursor) > 0 {
		req["offset"] = cursor
	}

	var rsp envelope[scrollResult]
	path := fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(collection))
	if err := s.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return vectorstore.ScrollResult{}, err
	}

	out := vectorstore.ScrollResult{}
	for _, pr := range rsp.Result.Points {
		out.Points = append(out.Points, vectorstore.Point{ID: pr.ID, Payload: pr.Payload})
	}
	if rsp.Result.NextOffset != nil {
		out.Cursor = fmt.Sprintf("%v", rsp.Result.NextOffset)
	}

	return out, nil
}

func (s *store) Delete(ctx context.Context, collection string, ids []string) error {
	req := map[string]any{"points": ids}
	var rsp envelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(collection))
	return s.do(ctx, http.MethodPost, path, req, &rsp)
}

func (s *store) SetPayload(ctx context.Context, collection string, id string, patch map[string]any) error {
	req := map[string]any{
		"payload": patch,
		"points":  []string{id},
	}
	var rsp envelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points/payload?wait=true", url.PathEscape(collection))
	return s.do(ctx, http.MethodPost, path, req, &rsp)
}

func buildFilter(f vectorstore.Filter) map[string]any {
	if f.IsEmpty() {
		return nil
	}

	must := make([]map[string]any, 0, len(f.Must)+len(f.And))
	for _, c := range f.Must {
		must = append(must, buildCondition(c))
	}
	for _, sub := range f.And {
		if nested := buildFilter(sub); nested != nil {
			must = append(must, nested)
		}
	}

	out := map[string]any{}
	if len(must) > 0 {
		out["must"] = must
	}

	if len(f.Should) > 0 {
		should := make([]map[string]any, 0, len(f.Should))
		for _, c := range f.Should {
			should = append(should, buildCondition(c))
		}
		for _, sub := range f.Or {
			if nested := buildFilter(sub); nested != nil {
				should = append(should, nested)
			}
		}
		out["should"] = should
	} else if len(f.Or) > 0 {
		should := make([]map[string]any, 0, len(f.Or))
		for _, sub := range f.Or {
			if nested := buildFilter(sub); nested != nil {
				should = append(should, nested)
			}
		}
		out["should"] = should
	}

	return out
}

func buildCondition(c vectorstore.Condition) map[string]any {
	switch c.Op {
	case vectorstore.OpGTE:
		return map[string]any{"key": c.Field, "range": map[string]any{"gte": c.Value}}
	case vectorstore.OpLTE:
		return map[string]any{"key": c.Field, "range": map[string]any{"lte": c.Value}}
	case vectorstore.OpIn:
		return map[string]any{"key": c.Field, "match": map[string]any{"any": c.Value}}
	default:
		return map[string]any{"key": c.Field, "match": map[string]any{"value": c.Value}}
	}
}

func toScoredPoints(results []pointResult) []vectorstore.ScoredPoint {
	out := make([]vectorstore.ScoredPoint, 0, len(results))
	for _, r := range results {
		out = append(out, vectorstore.ScoredPoint{
			Point: vectorstore.Point{
				ID:      r.ID,
				Payload: r.Payload,
			},
			Score: r.Score,
		})
	}
	return out
}

func (s *store) do(ctx context.Context, method string, path string, req any, rsp any) error {
	u := s.options.Location + path

	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}

	request, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if len(s.options.ApiKey) > 0 {
		request.Header.Set("api-key", s.options.ApiKey)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: qdrant 404 %s", chronoerr.ErrNotFound, string(payload))
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}

	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}

	return nil
}
