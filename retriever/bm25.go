// BM25 sparse index, built process-locally alongside any vectorstore.Store
// backend and joined by point id - grounded on nico-hyperjump-sagasu's
// internal/keyword bleve wrapper, generalized from a title/content document
// shape to a Post's text/author/timestamp/credibility/location fields and
// simplified to the plain MatchQuery path (no title-boost/fuzzy/phrase
// scoring - that tuning solves a different ranking problem than RRF fusion
// needs here).
package retriever

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/chronofact/chronofact/domain"
)

// SparseHit is one BM25 match, carrying enough of the original Post fields
// (stored directly in the bleve document) to participate in fusion and
// diversity without a round trip to the vector store.
type SparseHit struct {
	ID    string
	Score float64
	Post  domain.Post
}

type bm25Doc struct {
	Author           string    `json:"author"`
	Text             string    `json:"text"`
	Timestamp        time.Time `json:"timestamp"`
	CredibilityScore float64   `json:"credibility_score"`
	Location         string    `json:"location"`
	MediaURLs        []string  `json:"media_urls"`
}

// BM25Index is an in-memory bleve index of x_posts' text, kept in sync with
// vectorstore upserts/deletes by the caller.
type BM25Index struct {
	mtx   sync.Mutex
	index bleve.Index
}

// NewBM25Index builds an empty, process-local (memory-only) bleve index.
func NewBM25Index() (*BM25Index, error) {
	mapping := bleve.NewIndexMapping()
	index, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, fmt.Errorf("build bleve index: %w", err)
	}
	return &BM25Index{index: index}, nil
}

// Index adds or overwrites a post's document.
func (b *BM25Index) Index(post domain.Post) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	doc := bm25Doc{
		Author:           post.Author,
		Text:             post.Text,
		Timestamp:        post.Timestamp,
		CredibilityScore: post.CredibilityScore,
		Location:         post.Location,
		MediaURLs:        post.MediaURLs,
	}
	return b.index.Index(post.PostID.String(), doc)
}

// Delete removes a post's document, if present.
func (b *BM25Index) Delete(postID string) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	return b.index.Delete(postID)
}

// Search runs a BM25 match query over refinedText (lowercase, unicode-aware
// tokenized, stopwords removed by bleve's standard analyzer) and returns up
// to limit hits ranked by bleve's score.
func (b *BM25Index) Search(refinedText string, limit int) ([]SparseHit, error) {
	if limit < 1 {
		return nil, nil
	}

	query := bleve.NewMatchQuery(refinedText)
	req := bleve.NewSearchRequest(query)
	req.Size = limit
	req.Fields = []string{"*"}

	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	hits := make([]SparseHit, 0, len(results.Hits))
	for _, hit := range results.Hits {
		hits = append(hits, SparseHit{
			ID:    hit.ID,
			Score: hit.Score,
			Post:  postFromFields(hit.ID, hit.Fields),
		})
	}

	return hits, nil
}

func postFromFields(id string, fields map[string]any) domain.Post {
	post := domain.Post{}
	if parsed, err := parsePostID(id); err == nil {
		post.PostID = parsed
	}
	if v, ok := fields["author"].(string); ok {
		post.Author = v
	}
	if v, ok := fields["text"].(string); ok {
		post.Text = v
	}
	if v, ok := fields["credibility_score"].(float64); ok {
		post.CredibilityScore = v
	}
	if v, ok := fields["location"].(string); ok {
		post.Location = v
	}
	if v, ok := fields["timestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			post.Timestamp = ts
		}
	}
	// bleve returns a single stored value as a string and several as a slice.
	switch v := fields["media_urls"].(type) {
	case string:
		post.MediaURLs = []string{v}
	case []any:
		for _, u := range v {
			if s, ok := u.(string); ok {
				post.MediaURLs = append(post.MediaURLs, s)
			}
		}
	}
	return post
}
