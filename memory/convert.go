package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/chronofact/chronofact/domain"
	"github.com/chronofact/chronofact/vectorstore"
)

func toPoint(mem domain.Memory, vec []float32) vectorstore.Point {
	parents := make([]any, len(mem.ParentMemories))
	for i, p := range mem.ParentMemories {
		parents[i] = p.String()
	}

	return vectorstore.Point{
		ID:      mem.MemoryID.String(),
		Vectors: map[string][]float32{domain.VectorText: vec},
		Payload: map[string]any{
			"session_id":      mem.SessionID,
			"content":         mem.Content,
			"memory_type":     string(mem.MemoryType),
			"created_at":      mem.CreatedAt.Format(time.RFC3339Nano),
			"last_accessed":   mem.LastAccessed.Format(time.RFC3339Nano),
			"access_count":    mem.AccessCount,
			"relevance_score": mem.RelevanceScore,
			"decay_rate":      mem.DecayRate,
			"is_consolidated": mem.IsConsolidated,
			"parent_memories": parents,
		},
	}
}

func fromPoint(p vectorstore.Point) domain.Memory {
	mem := domain.Memory{}

	if id, err := uuid.Parse(p.ID); err == nil {
		mem.MemoryID = id
	}
	if v, ok := p.Payload["session_id"].(string); ok {
		mem.SessionID = v
	}
	if v, ok := p.Payload["content"].(string); ok {
		mem.Content = v
	}
	if v, ok := p.Payload["memory_type"].(string); ok {
		mem.MemoryType = domain.MemoryType(v)
	}
	if v, ok := p.Payload["created_at"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			mem.CreatedAt = ts
		}
	}
	if v, ok := p.Payload["last_accessed"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			mem.LastAccessed = ts
		}
	}
	if v, ok := p.Payload["access_count"].(int); ok {
		mem.AccessCount = v
	} else if v, ok := p.Payload["access_count"].(float64); ok {
		mem.AccessCount = int(v)
	}
	if v, ok := p.Payload["relevance_score"].(float64); ok {
		mem.RelevanceScore = v
	}
	if v, ok := p.Payload["decay_rate"].(float64); ok {
		mem.DecayRate = v
	}
	if v, ok := p.Payload["is_consolidated"].(bool); ok {
		mem.IsConsolidated = v
	}
	if raw, ok := p.Payload["parent_memories"].([]any); ok {
		parents := make([]uuid.UUID, 0, len(raw))
		for _, r := range raw {
			if s, ok := r.(string); ok {
				if id, err := uuid.Parse(s); err == nil {
					parents = append(parents, id)
				}
			}
		}
		mem.ParentMemories = parents
	}

	return mem
}
