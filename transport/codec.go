package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/maxpert/feedwire/feed"
	"github.com/rs/zerolog/log"
)

// span identifies a delta by the positions it covers. The log is
// append-only, so the encoding of a span never changes.
type span struct {
	from int
	to   int
}

// deltaCache memoises JSON encodings of deltas shared by many subscribers
// sitting at the same cursor.
type deltaCache struct {
	entries *lru.Cache[span, []byte]
}

func newDeltaCache(size int) (*deltaCache, error) {
	if size <= 0 {
		return &deltaCache{}, nil
	}
	entries, err := lru.New[span, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create delta cache: %w", err)
	}
	return &deltaCache{entries: entries}, nil
}

// encode returns the JSON form of d. The returned slice is shared and must
// not be modified.
func (c *deltaCache) encode(d feed.Delta) ([]byte, error) {
	key := span{from: d.From(), to: d.Last}
	if c.entries != nil {
		if b, ok := c.entries.Get(key); ok {
			return b, nil
		}
	}

	if d.Users == nil {
		d.Users = []feed.Record{}
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode delta: %w", err)
	}

	if c.entries != nil {
		c.entries.Add(key, b)
	}
	return b, nil
}

// writeJSON writes an already encoded JSON body with status 200.
func writeJSON(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Debug().Err(err).Msg("Failed to write delta response")
	}
}
