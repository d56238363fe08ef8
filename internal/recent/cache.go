// Package recent keeps a bounded most-recently-used set of quick-pick entries,
// such as the folders a user visited last.
package recent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity is five visible recents plus one slot for the current entry
const DefaultCapacity = 5 + 1

// Entry is one remembered selection
type Entry struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Touched time.Time `json:"touched"`
}

// Less orders entries for display
type Less func(a, b Entry) bool

// ByNameIgnoreCase is the default display order
func ByNameIgnoreCase(a, b Entry) bool {
	an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if an != bn {
		return an < bn
	}
	return a.ID < b.ID
}

// Persister loads and saves cache contents. Implementations live with the
// storage backends; the cache itself never touches storage.
type Persister interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entries []Entry) error
}

// Option configures a Cache
type Option func(*Cache)

// WithLess replaces the display comparator
func WithLess(less Less) Option {
	return func(c *Cache) {
		if less != nil {
			c.less = less
		}
	}
}

// WithClock overrides the time source used to stamp touches
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// Cache is safe for concurrent use
type Cache struct {
	entries  *lru.Cache[string, Entry]
	capacity int
	less     Less
	now      func() time.Time
}

// New creates a cache holding at most capacity entries
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("recent cache capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, Entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create recent cache: %w", err)
	}
	c := &Cache{
		entries:  entries,
		capacity: capacity,
		less:     ByNameIgnoreCase,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Touch inserts e or promotes it to most recently used. It reports whether
// another entry was evicted to make room.
func (c *Cache) Touch(e Entry) bool {
	if e.ID == "" {
		return false
	}
	e.Touched = c.now()
	return c.entries.Add(e.ID, e)
}

// Snapshot returns every entry except exclude, in display order.
// Recency decides what is kept, not how it is shown.
func (c *Cache) Snapshot(exclude string) []Entry {
	values := c.entries.Values()
	out := make([]Entry, 0, len(values))
	for _, v := range values {
		if exclude != "" && v.ID == exclude {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return c.less(out[i], out[j]) })
	return out
}

// Entries returns the entries from least to most recently touched
func (c *Cache) Entries() []Entry {
	return c.entries.Values()
}

// Restore replaces the contents with entries, keeping the most recently
// touched ones when there are more than the capacity.
func (c *Cache) Restore(entries []Entry) {
	c.entries.Purge()
	sorted := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.ID != "" {
			sorted = append(sorted, e)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Touched.Before(sorted[j].Touched) })
	if len(sorted) > c.capacity {
		sorted = sorted[len(sorted)-c.capacity:]
	}
	for _, e := range sorted {
		c.entries.Add(e.ID, e)
	}
}

// Contains reports whether id is cached, without changing its recency
func (c *Cache) Contains(id string) bool {
	return c.entries.Contains(id)
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Capacity returns the configured bound
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.entries.Purge()
}
