// Similar-memory consolidation - spec.md §4.7 "consolidate_similar": merges
// near-duplicate same-session memories into one representative, bounding
// collection growth. Grounded on ob-labs-powermem-go's dedup.go clustering
// approach and memory_manager/utils.go's CosineSimilarity helper pattern
// (reimplemented locally to avoid importing the teacher's unrelated
// memory_manager package for one function).
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/chronofact/chronofact/chronoerr"
	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/vectorstore"
)

const defaultConsolidationThreshold = 0.85

// sessionMemory pairs a decoded Memory with the vector it was stored under,
// needed for pairwise similarity.
type sessionMemory struct {
	mem domain.Memory
	vec []float32
}

// ConsolidateSimilar clusters same-session memories whose pairwise cosine
// similarity exceeds threshold (0 uses the spec default of 0.85), replacing
// each cluster of size >= 2 with one consolidated memory carrying the
// longest member's content, the cluster's max relevance_score, and the
// cluster's ids as parent_memories. A cluster is skipped entirely, rather
// than merged, if any member's last_accessed has moved since it was read.
func (e *Engine) ConsolidateSimilar(ctx context.Context, threshold float64) (consolidated int, err error) {
	if threshold <= 0 {
		threshold = defaultConsolidationThreshold
	}

	bySession, err := e.loadBySession(ctx)
	if err != nil {
		return 0, err
	}

	for _, members := range bySession {
		clusters := clusterBySimilarity(members, threshold)
		for _, cluster := range clusters {
			if len(cluster) < 2 {
				continue
			}
			merged, err := e.mergeCluster(ctx, cluster)
			if err != nil {
				return consolidated, err
			}
			if merged {
				consolidated++
			}
		}
	}

	return consolidated, nil
}

func (e *Engine) loadBySession(ctx context.Context) (map[string][]sessionMemory, error) {
	bySession := map[string][]sessionMemory{}
	cursor := ""

	for {
		page, err := e.store.Scroll(ctx, e.collection, vectorstore.Filter{}, cursor, decayBatchSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
		}

		for _, point := range page.Points {
			mem := fromPoint(point)
			if mem.IsConsolidated {
				continue
			}
			vec := point.Vectors[domain.VectorText]
			bySession[mem.SessionID] = append(bySession[mem.SessionID], sessionMemory{mem: mem, vec: vec})
		}

		if len(page.Cursor) == 0 {
			break
		}
		cursor = page.Cursor
	}

	return bySession, nil
}

// clusterBySimilarity performs single-link agglomeration: any two members
// whose cosine similarity exceeds threshold are placed in the same cluster.
func clusterBySimilarity(members []sessionMemory, threshold float64) [][]sessionMemory {
	n := len(members)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if cosineSimilarity(members[i].vec, members[j].vec) > threshold {
				union(i, j)
			}
		}
	}

	groups := map[int][]sessionMemory{}
	for i, m := range members {
		root := find(i)
		groups[root] = append(groups[root], m)
	}

	clusters := make([][]sessionMemory, 0, len(groups))
	for _, g := range groups {
		clusters = append(clusters, g)
	}
	return clusters
}

// mergeCluster re-reads each member's current last_accessed immediately
// before merging and skips the whole cluster if any of them has moved since
// the loadBySession snapshot - the spec's MUST check-and-skip, guarding
// against losing a RetrieveAndReinforce that landed between the scroll and
// the delete below.
func (e *Engine) mergeCluster(ctx context.Context, cluster []sessionMemory) (bool, error) {
	sort.Slice(cluster, func(i, j int) bool {
		return len(cluster[i].mem.Content) > len(cluster[j].mem.Content)
	})

	longest := cluster[0].mem
	maxRelevance := 0.0
	ids := make([]uuid.UUID, 0, len(cluster))
	childIDs := make([]string, 0, len(cluster))
	for _, m := range cluster {
		if m.mem.RelevanceScore > maxRelevance {
			maxRelevance = m.mem.RelevanceScore
		}
		ids = append(ids, m.mem.MemoryID)
		childIDs = append(childIDs, m.mem.MemoryID.String())
	}

	current, err := e.currentLastAccessed(ctx, longest.SessionID)
	if err != nil {
		return false, err
	}
	for _, m := range cluster {
		seenAt, ok := current[m.mem.MemoryID]
		if !ok || !seenAt.Equal(m.mem.LastAccessed) {
			return false, nil
		}
	}

	now := time.Now().UTC()
	consolidated := domain.Memory{
		MemoryID:       uuid.New(),
		SessionID:      longest.SessionID,
		Content:        longest.Content,
		MemoryType:     longest.MemoryType,
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    0,
		RelevanceScore: maxRelevance,
		DecayRate:      longest.DecayRate,
		IsConsolidated: true,
		ParentMemories: ids,
	}

	if err := e.store.Upsert(ctx, e.collection, []vectorstore.Point{toPoint(consolidated, cluster[0].vec)}); err != nil {
		return false, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
	}

	if err := e.store.Delete(ctx, e.collection, childIDs); err != nil {
		return false, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
	}

	return true, nil
}

// currentLastAccessed re-scrolls one session's memories and returns each
// one's current last_accessed, used to detect a concurrent reinforcement
// write racing a consolidation pass.
func (e *Engine) currentLastAccessed(ctx context.Context, sessionID string) (map[uuid.UUID]time.Time, error) {
	out := map[uuid.UUID]time.Time{}
	cursor := ""
	filter := vectorstore.Filter{Must: []vectorstore.Condition{
		{Field: "session_id", Op: vectorstore.OpEquals, Value: sessionID},
	}}

	for {
		page, err := e.store.Scroll(ctx, e.collection, filter, cursor, decayBatchSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", chronoerr.ErrBackendBusy, err)
		}
		for _, point := range page.Points {
			mem := fromPoint(point)
			out[mem.MemoryID] = mem.LastAccessed
		}
		if len(page.Cursor) == 0 {
			break
		}
		cursor = page.Cursor
	}

	return out, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
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
