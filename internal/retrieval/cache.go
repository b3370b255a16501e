package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached memoizes successful searches for ttl. Errors are not cached.
type Cached struct {
	next  Searcher
	cache *expirable.LRU[string, []Chunk]
}

func NewCached(next Searcher, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 256
	}
	return &Cached{next: next, cache: expirable.NewLRU[string, []Chunk](size, nil, ttl)}
}

func (c *Cached) Search(ctx context.Context, companyID, query string, topK int) ([]Chunk, error) {
	key := fmt.Sprintf("%s\x00%s\x00%d", strings.TrimSpace(companyID), strings.ToLower(strings.TrimSpace(query)), topK)
	if hit, ok := c.cache.Get(key); ok {
		return append([]Chunk(nil), hit...), nil
	}
	res, err := c.next.Search(ctx, companyID, query, topK)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, append([]Chunk(nil), res...))
	return res, nil
}

func (c *Cached) Len() int { return c.cache.Len() }
