package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/piotrusio02/reservation-system-api/internal/domain"
)

// Page is one cached page of an availability listing.
type Page struct {
	Slots     []domain.TimeSlot
	NextToken string
}

type serviceEntry struct {
	pages    map[string]Page
	storedAt time.Time
}

// Availability caches availability listings per service. Entries are bounded
// by an LRU over services, expire after a short TTL, and are dropped whole on
// any mutation of the service's ledger. Staleness here is acceptable for
// display; the reserve decision never reads through this cache.
type Availability struct {
	mu  sync.Mutex
	lru *lru.Cache[string, *serviceEntry]
	ttl time.Duration
}

// New builds a cache holding listings for up to size services.
func New(size int, ttl time.Duration) (*Availability, error) {
	c, err := lru.New[string, *serviceEntry](size)
	if err != nil {
		return nil, err
	}
	return &Availability{lru: c, ttl: ttl}, nil
}

// PageKey derives the cache key for one listing request.
func PageKey(from, to time.Time, token string, limit int) string {
	return fmt.Sprintf("%d|%d|%s|%d", from.UnixNano(), to.UnixNano(), token, limit)
}

// Get returns a cached page, if fresh.
func (c *Availability) Get(serviceID, pageKey string, now time.Time) (Page, bool) {
	if c == nil {
		return Page{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(serviceID)
	if !ok {
		return Page{}, false
	}
	if now.Sub(entry.storedAt) > c.ttl {
		c.lru.Remove(serviceID)
		return Page{}, false
	}
	page, ok := entry.pages[pageKey]
	return page, ok
}

// Put stores one page under the service's entry.
func (c *Availability) Put(serviceID, pageKey string, page Page, now time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.lru.Get(serviceID)
	if !ok || now.Sub(entry.storedAt) > c.ttl {
		entry = &serviceEntry{pages: make(map[string]Page), storedAt: now}
		c.lru.Add(serviceID, entry)
	}
	entry.pages[pageKey] = page
}

// Invalidate drops every cached page of the service.
func (c *Availability) Invalidate(serviceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(serviceID)
}
