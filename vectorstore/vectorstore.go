// Package vectorstore defines the C2 capability surface: CRUD plus typed
// query over named-vector collections with payload filters. Concrete
// backends (qdrant, postgres, sqlite, memory) live in subpackages and all
// implement Store.
package vectorstore

import "context"

// Point is a single stored item: an id, one or more named vectors, and a
// JSON-shaped payload used for filtering and hydration.
type Point struct {
	ID      string
	Vectors map[string][]float32
	Payload map[string]any
}

// VectorSpec declares the dimension of one named vector in a collection.
type VectorSpec struct {
	Name string
	Dim  int
}

// PayloadIndexSpec declares a payload field that should be indexed for
// filtering (equality, range, or set membership depending on FieldType).
type PayloadIndexSpec struct {
	Field     string
	FieldType string // "keyword", "float", "integer", "bool", "datetime"
}

// FilterOp is the comparison applied by one Condition.
type FilterOp string

const (
	OpEquals  FilterOp = "eq"
	OpGTE     FilterOp = "gte"
	OpLTE     FilterOp = "lte"
	OpIn      FilterOp = "in"
)

// Condition is one leaf test against an indexed payload field.
type Condition struct {
	Field string
	Op    FilterOp
	Value any
}

// Filter is a tree of conjunctions/disjunctions over Conditions. A zero
// value Filter (no conditions, no children) matches everything.
type Filter struct {
	Must   []Condition
	Should []Condition
	And    []Filter
	Or     []Filter
}

// IsEmpty reports whether the filter has no conditions at all.
func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.Should) == 0 && len(f.And) == 0 && len(f.Or) == 0
}

// ScoredPoint is a Point returned from a similarity query, with its rank
// score.
type ScoredPoint struct {
	Point
	Score float64
}

// SparseTerm is one term/weight pair of a BM25-style sparse query vector.
type SparseTerm struct {
	Term   string
	Weight float64
}

// ScrollResult is one page of a cursor-paginated scan.
type ScrollResult struct {
	Points []Point
	Cursor string // empty when exhausted
}

// Store is the capability surface every vectorstore backend implements.
type Store interface {
	EnsureCollection(ctx context.Context, name string, vectors []VectorSpec, indexes []PayloadIndexSpec) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, using string, vector []float32, filter Filter, limit int) ([]ScoredPoint, error)
	SparseQuery(ctx context.Context, collection string, using string, terms []SparseTerm, filter Filter, limit int) ([]ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter Filter, cursor string, batch int) (ScrollResult, error)
	Delete(ctx context.Context, collection string, ids []string) error
	SetPayload(ctx context.Context, collection string, id string, patch map[string]any) error
}
