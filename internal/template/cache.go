package template

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// DefaultLoadTimeout bounds a shared store read started on a cache miss.
const DefaultLoadTimeout = 30 * time.Second

// Loader reads raw layout bytes by key. storage.Storage satisfies it.
type Loader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// CacheConfig contains configuration options for the compiled template cache
type CacheConfig struct {
	// MaxSize is the maximum number of compiled templates kept. 0 means unbounded.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration
	// LoadTimeout bounds the store read shared by concurrent misses.
	LoadTimeout time.Duration
}

// Cache is a read-through cache of compiled templates keyed by store key.
// Concurrent misses for the same key share one load and one compile.
type Cache struct {
	loader Loader
	config CacheConfig
	logger *logrus.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	lru     *list.List
	group   singleflight.Group
}

type cacheEntry struct {
	key      string
	compiled *Compiled
	expiry   time.Time
	element  *list.Element
}

// NewCache creates a cache reading layouts through loader.
func NewCache(loader Loader, config CacheConfig, logger *logrus.Logger) *Cache {
	if config.LoadTimeout <= 0 {
		config.LoadTimeout = DefaultLoadTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{
		loader:  loader,
		config:  config,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
	}
}

// Get returns the compiled template for key, loading and compiling it on a miss.
// Store and compile failures are returned as is and never cached.
func (c *Cache) Get(ctx context.Context, key string) (*Compiled, error) {
	if compiled, ok := c.lookup(key); ok {
		return compiled, nil
	}

	// Общая загрузка отвязана от ctx и ограничена LoadTimeout,
	// каждый вызывающий ждет результат по своему ctx.
	ch := c.group.DoChan(key, func() (interface{}, error) {
		if compiled, ok := c.lookup(key); ok {
			return compiled, nil
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.LoadTimeout)
		defer cancel()

		src, err := c.loader.Load(loadCtx, key)
		if err != nil {
			return nil, fmt.Errorf("load template %s: %w", key, err)
		}

		compiled, err := Compile(key, src)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"template": key,
			}).WithError(err).Warn("Шаблон не скомпилирован")
			return nil, err
		}

		c.store(key, compiled)
		c.logger.WithFields(logrus.Fields{
			"template": key,
			"digest":   compiled.Digest,
		}).Debug("Шаблон скомпилирован и добавлен в кэш")
		return compiled, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Compiled), nil
	}
}

// Invalidate drops key so the next Get reloads it from the store.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Clear drops every cached template.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.lru.Init()
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) lookup(key string) (*Compiled, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// entry may have been replaced or evicted between the locks
	if current, ok := c.entries[key]; !ok || current != entry {
		return nil, false
	}
	if c.config.TTL > 0 && c.now().After(entry.expiry) {
		c.removeLocked(key)
		return nil, false
	}
	c.lru.MoveToFront(entry.element)
	return entry.compiled, true
}

func (c *Cache) store(key string, compiled *Compiled) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)

	if c.config.MaxSize > 0 {
		for c.lru.Len() >= c.config.MaxSize {
			oldest := c.lru.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest.Value.(*cacheEntry).key)
		}
	}

	entry := &cacheEntry{
		key:      key,
		compiled: compiled,
	}
	if c.config.TTL > 0 {
		entry.expiry = c.now().Add(c.config.TTL)
	}
	entry.element = c.lru.PushFront(entry)
	c.entries[key] = entry
}

func (c *Cache) removeLocked(key string) {
	entry, exists := c.entries[key]
	if !exists {
		return
	}
	c.lru.Remove(entry.element)
	delete(c.entries, key)
}
