// Package memory is the zero-dependency vectorstore.Store backend: an
// in-process map, used by tests and the memory vector_store.mode. Adapted
// from the teacher's session-memory map storer, generalized from a single
// implicit vector to named vectors and from a flat record to an arbitrary
// payload filter.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/chronofact/chronofact/vectorstore"
)

type collection struct {
	vectors []vectorstore.VectorSpec
	points  map[string]vectorstore.Point
}

type memoryStore struct {
	mtx         sync.RWMutex
	collections map[string]*collection
}

func (s *memoryStore) EnsureCollection(ctx context.Context, name string, vectors []vectorstore.VectorSpec, indexes []vectorstore.PayloadIndexSpec) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil
	}

	s.collections[name] = &collection{
		vectors: vectors,
		points:  map[string]vectorstore.Point{},
	}

	return nil
}

func (s *memoryStore) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	col, ok := s.collections[name]
	if !ok {
		col = &collection{points: map[string]vectorstore.Point{}}
		s.collections[name] = col
	}

	for _, p := range points {
		cpy := vectorstore.Point{
			ID:      p.ID,
			Vectors: cloneVectors(p.Vectors),
			Payload: clonePayload(p.Payload),
		}
		col.points[p.ID] = cpy
	}

	return nil
}

func (s *memoryStore) Query(ctx context.Context, name string, using string, vector []float32, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}

	candidates := make([]vectorstore.ScoredPoint, 0, len(col.points))

	for _, p := range col.points {
		if !matches(p.Payload, filter) {
			continue
		}
		v, ok := p.Vectors[using]
		if !ok {
			continue
		}
		score := cosineSimilarity(vector, v)
		candidates = append(candidates, vectorstore.ScoredPoint{Point: p, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if len(candidates) > limit && limit > 0 {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

// SparseQuery does a naive term-overlap scoring. The in-memory backend
// exists for tests and the zero-dependency quick start, not for production
// BM25 ranking - that lives in the bleve-backed index the retriever builds
// alongside any Store (see retriever/bm25.go).
func (s *memoryStore) SparseQuery(ctx context.Context, name string, using string, terms []vectorstore.SparseTerm, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return nil, nil
	}

	candidates := make([]vectorstore.ScoredPoint, 0, len(col.points))

	for _, p := range col.points {
		if !matches(p.Payload, filter) {
			continue
		}
		text, _ := p.Payload["text"].(string)
		text = strings.ToLower(text)

		var score float64
		for _, t := range terms {
			if strings.Contains(text, strings.ToLower(t.Term)) {
				score += t.Weight
			}
		}
		if score <= 0 {
			continue
		}
		candidates = append(candidates, vectorstore.ScoredPoint{Point: p, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	if len(candidates) > limit && limit > 0 {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

func (s *memoryStore) Scroll(ctx context.Context, name string, filter vectorstore.Filter, cursor string, batch int) (vectorstore.ScrollResult, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	col, ok := s.collections[name]
	if !ok {
		return vectorstore.ScrollResult{}, nil
	}

	ids := make([]string, 0, len(col.points))
	for id := range col.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if len(cursor) > 0 {
		for i, id := range ids {
			if id > cursor {
				start = i
				break
			}
		}
	}

	end := start + batch
	if end > len(ids) || batch <= 0 {
		end = len(ids)
	}

	var out vectorstore.ScrollResult
	for _, id := range ids[start:end] {
		p := col.points[id]
		if matches(p.Payload, filter) {
			out.Points = append(out.Points, p)
		}
	}

	if end < len(ids) {
		out.Cursor = ids[end-1]
	}

	return out, nil
}

func (s *memoryStore) Delete(ctx context.Context, name string, ids []string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(col.points, id)
	}
	return nil
}

func (s *memoryStore) SetPayload(ctx context.Context, name string, id string, patch map[string]any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	col, ok := s.collections[name]
	if !ok {
		return nil
	}
	p, ok := col.points[id]
	if !ok {
		return nil
	}
	if p.Payload == nil {
		p.Payload = map[string]any{}
	}
	for k, v := range patch {
		p.Payload[k] = v
	}
	col.points[id] = p
	return nil
}

func matches(payload map[string]any, filter vectorstore.Filter) bool {
	if filter.IsEmpty() {
		return true
	}

	for _, c := range filter.Must {
		if !evalCondition(payload, c) {
			return false
		}
	}

	if len(filter.Should) > 0 {
		any := false
		for _, c := range filter.Should {
			if evalCondition(payload, c) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	for _, sub := range filter.And {
		if !matches(payload, sub) {
			return false
		}
	}

	if len(filter.Or) > 0 {
		any := false
		for _, sub := range filter.Or {
			if matches(payload, sub) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}

	return true
}

func evalCondition(payload map[string]any, c vectorstore.Condition) bool {
	v, ok := payload[c.Field]
	if !ok {
		return false
	}

	switch c.Op {
	case vectorstore.OpEquals:
		return v == c.Value
	case vectorstore.OpGTE:
		a, b := toFloat(v), toFloat(c.Value)
		return a >= b
	case vectorstore.OpLTE:
		a, b := toFloat(v), toFloat(c.Value)
		return a <= b
	case vectorstore.OpIn:
		set, ok := c.Value.([]string)
		if !ok {
			return false
		}
		s, ok := v.(string)
		if !ok {
			return false
		}
		for _, item := range set {
			if item == s {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func cloneVectors(in map[string][]float32) map[string][]float32 {
	if in == nil {
		return nil
	}
	out := make(map[string][]float32, len(in))
	for k, v := range in {
		cpy := make([]float32, len(v))
		copy(cpy, v)
		out[k] = cpy
	}
	return out
}

func clonePayload(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// New constructs the in-memory Store.
func New() vectorstore.Store {
	return &memoryStore{
		collections: map[string]*collection{},
	}
}
