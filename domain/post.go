// Package domain holds the three collection-backed record types shared by
// the vector store, retriever, generator, and memory engine: Post, Fact, and
// Memory. All three share an opaque uuid primary key and a filterable
// payload shape, differing only in semantic role and required fields.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Post is the unit of retrieval, persisted in the x_posts collection.
type Post struct {
	PostID           uuid.UUID `json:"post_id"`
	Text             string    `json:"text"`
	Author           string    `json:"author"`
	Timestamp        time.Time `json:"timestamp"`
	CredibilityScore float64   `json:"credibility_score"`

	Location       string   `json:"location,omitempty"`
	IsVerified     bool     `json:"is_verified,omitempty"`
	FaveCount      int      `json:"fave_count,omitempty"`
	RetweetCount   int      `json:"retweet_count,omitempty"`
	MediaURLs      []string `json:"media_urls,omitempty"`
	ImageCaption   string   `json:"image_caption,omitempty"`
}

// Vectors names the named vectors a Post point may carry.
const (
	VectorText       = "text"
	VectorImage      = "image"
	VectorMultimodal = "multimodal"
)

// VerificationStatus is the verification state of a Fact.
type VerificationStatus string

const (
	Verified   VerificationStatus = "verified"
	Disputed   VerificationStatus = "disputed"
	Unverified VerificationStatus = "unverified"
)

// Fact is a verified claim used for grounding, persisted in the
// knowledge_facts collection.
type Fact struct {
	FactID             uuid.UUID           `json:"fact_id"`
	Statement          string              `json:"statement"`
	Sources            []string            `json:"sources"`
	VerificationStatus VerificationStatus  `json:"verification_status"`
	VerifiedAt         time.Time           `json:"verified_at"`
}

// MemoryType classifies a Memory's provenance.
type MemoryType string

const (
	MemoryInteraction MemoryType = "interaction"
	MemoryFact        MemoryType = "fact"
	MemoryPreference  MemoryType = "preference"
)

// Memory is an evolving per-session recollection, persisted in the
// session_memory collection.
type Memory struct {
	MemoryID        uuid.UUID   `json:"memory_id"`
	SessionID       string      `json:"session_id"`
	Content         string      `json:"content"`
	MemoryType      MemoryType  `json:"memory_type"`
	CreatedAt       time.Time   `json:"created_at"`
	LastAccessed    time.Time   `json:"last_accessed"`
	AccessCount     int         `json:"access_count"`
	RelevanceScore  float64     `json:"relevance_score"`
	DecayRate       float64     `json:"decay_rate"`
	IsConsolidated  bool        `json:"is_consolidated"`
	ParentMemories  []uuid.UUID `json:"parent_memories,omitempty"`
}
