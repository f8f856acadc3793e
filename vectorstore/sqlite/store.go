// Package sqlite implements vectorstore.Store on top of a local SQLite file,
// backing config.ModeLocal. Adapted from ob-labs-powermem-go's sqlite vector
// store client: vectors and payload are stored as JSON TEXT columns, and
// similarity search scans candidates and ranks them with an in-process
// cosine similarity, same approach, generalized here to multiple named
// vectors per point and to the Store interface's filter tree rather than a
// flat user/agent id pair.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/chronofact/chronofact/vectorstore"
)

type store struct {
	options vectorstore.Options
	db      *sql.DB
}

// New constructs a Store backed by a SQLite file at opts' Path.
func New(opts ...vectorstore.Option) vectorstore.Store {
	options := vectorstore.NewOptions(opts...)

	if len(options.Path) == 0 {
		panic("missing path for sqlite vector store")
	}

	if dir := filepath.Dir(options.Path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite3", options.Path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		panic(fmt.Errorf("sqlite vector store: %w", err))
	}
	if err := db.Ping(); err != nil {
		panic(fmt.Errorf("sqlite vector store: %w", err))
	}

	return &store{options: options, db: db}
}

func tableName(collection string) string {
	return "chronofact_" + collection
}

func (s *store) EnsureCollection(ctx context.Context, name string, vectors []vectorstore.VectorSpec, indexes []vectorstore.PayloadIndexSpec) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			vectors TEXT NOT NULL,
			payload TEXT NOT NULL
		)
	`, tableName(name))

	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *store) Upsert(ctx context.Context, collection string, points []vectorstore.Point) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, vectors, payload) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET vectors = excluded.vectors, payload = excluded.payload
	`, tableName(collection))

	for _, p := range points {
		vectorsJSON, err := json.Marshal(p.Vectors)
		if err != nil {
			return err
		}
		payloadJSON, err := json.Marshal(p.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, p.ID, string(vectorsJSON), string(payloadJSON)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *store) scanAll(ctx context.Context, collection string) ([]vectorstore.Point, error) {
	query := fmt.Sprintf("SELECT id, vectors, payload FROM %s", tableName(collection))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []vectorstore.Point
	for rows.Next() {
		var id, vecJSON, payloadJSON string
		if err := rows.Scan(&id, &vecJSON, &payloadJSON); err != nil {
			return nil, err
		}
		var vectors map[string][]float32
		if err := json.Unmarshal([]byte(vecJSON), &vectors); err != nil {
			return nil, err
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return nil, err
		}
		points = append(points, vectorstore.Point{ID: id, Vectors: vectors, Payload: payload})
	}

	return points, rows.Err()
}

func (s *store) Query(ctx context.Context, collection string, using string, vector []float32, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	all, err := s.scanAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	scored := make([]vectorstore.ScoredPoint, 0, len(all))
	for _, p := range all {
		if !matches(p.Payload, filter) {
			continue
		}
		v, ok := p.Vectors[using]
		if !ok {
			continue
		}
		scored = append(scored, vectorstore.ScoredPoint{Point: p, Score: cosine(vector, v)})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (s *store) SparseQuery(ctx context.Context, collection string, using string, terms []vectorstore.SparseTerm, filter vectorstore.Filter, limit int) ([]vectorstore.ScoredPoint, error) {
	all, err := s.scanAll(ctx, collection)
	if err != nil {
		return nil, err
	}

	scored := make([]vectorstore.ScoredPoint, 0, len(all))
	for _, p := range all {
		if !matches(p.Payload, filter) {
			continue
		}
		text := strings.ToLower(fmt.Sprintf("%v", p.Payload["text"]))
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

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}

	return scored, nil
}

func (s *store) Scroll(ctx context.Context, collection string, filter vectorstore.Filter, cursor string, batch int) (vectorstore.ScrollResult, error) {
	all, err := s.scanAll(ctx, collection)
	if err != nil {
		return vectorstore.ScrollResult{}, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := 0
	if len(cursor) > 0 {
		for i, p := range all {
			if p.ID > cursor {
				start = i
				break
			}
		}
	}
	end := start + batch
	if batch <= 0 || end > len(all) {
		end = len(all)
	}

	var out vectorstore.ScrollResult
	for _, p := range all[start:end] {
		if matches(p.Payload, filter) {
			out.Points = append(out.Points, p)
		}
	}
	if end < len(all) {
		out.Cursor = all[end-1].ID
	}

	return out, nil
}

func (s *store) Delete(ctx context.Context, collection string, ids []string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", tableName(collection))
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, query, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) SetPayload(ctx context.Context, collection string, id string, patch map[string]any) error {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE id = ?", tableName(collection))
	var payloadJSON string
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&payloadJSON); err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	for k, v := range patch {
		payload[k] = v
	}

	newJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	update := fmt.Sprintf("UPDATE %s SET payload = ? WHERE id = ?", tableName(collection))
	_, err = s.db.ExecContext(ctx, update, string(newJSON), id)
	return err
}

func matches(payload map[string]any, filter vectorstore.Filter) bool {
	if filter.IsEmpty() {
		return true
	}
	for _, c := range filter.Must {
		if !eval(payload, c) {
			return false
		}
	}
	for _, sub := range filter.And {
		if !matches(payload, sub) {
			return false
		}
	}
	if len(filter.Should) > 0 {
		ok := false
		for _, c := range filter.Should {
			if eval(payload, c) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func eval(payload map[string]any, c vectorstore.Condition) bool {
	v, ok := payload[c.Field]
	if !ok {
		return false
	}
	switch c.Op {
	case vectorstore.OpGTE:
		return toFloat(v) >= toFloat(c.Value)
	case vectorstore.OpLTE:
		return toFloat(v) <= toFloat(c.Value)
	case vectorstore.OpIn:
		set, ok := c.Value.([]string)
		if !ok {
			return false
		}
		sv, ok := v.(string)
		if !ok {
			return false
		}
		for _, item := range set {
			if item == sv {
				return true
			}
		}
		return false
	default:
		return v == c.Value
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
