package retriever

import (
	"time"

	"github.com/google/uuid"
)

func parsePostID(id string) (uuid.UUID, error) {
	return uuid.Parse(id)
}

func parseRFC3339(v string) (time.Time, error) {
	return time.Parse(time.RFC3339, v)
}
