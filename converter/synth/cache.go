package synth

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"pdfslides/converter/domain"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte oriented cache backend
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// MemoryStore is a thread-safe LRU cache with TTL support
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	lru      *list.List
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates a new LRU store with the given capacity
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryStore{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a value from the store
func (c *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}

	ent := elem.Value.(*memoryEntry)

	// Check if expired
	if !ent.expiresAt.IsZero() && time.Now().After(ent.expiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return nil, ErrCacheMiss
	}

	// Move to front (most recently used)
	c.lru.MoveToFront(elem)
	return ent.value, nil
}

// Set adds or updates a value in the store
func (c *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	// Update existing entry
	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		ent := elem.Value.(*memoryEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		return nil
	}

	elem := c.lru.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	// Evict oldest if over capacity
	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*memoryEntry).key)
		}
	}
	return nil
}

// Len returns the number of items in the store
func (c *MemoryStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Close is a no-op for the memory store
func (c *MemoryStore) Close() error {
	return nil
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL    string
	Prefix string
}

// RedisStore implements Store using Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pdfslides:"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Get retrieves a value from Redis
func (c *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

// Set stores a value in Redis with TTL
func (c *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisStore) Close() error {
	return c.client.Close()
}

// CachedSynthesizer wraps a SlideSynthesizer and caches content results
type CachedSynthesizer struct {
	next   SlideSynthesizer
	store  Store
	model  string
	ttl    time.Duration
	logger zerolog.Logger
	group  singleflight.Group
}

// NewCachedSynthesizer creates a caching wrapper.
// The model name is part of the key so switching models never serves stale slides.
func NewCachedSynthesizer(next SlideSynthesizer, store Store, model string, ttl time.Duration, logger zerolog.Logger) *CachedSynthesizer {
	return &CachedSynthesizer{next: next, store: store, model: model, ttl: ttl, logger: logger}
}

// cachedSlide is the stored form of a slide; the image is restored from the page.
// A default title is rebuilt for the requesting page.
type cachedSlide struct {
	Title        string   `json:"title"`
	DefaultTitle bool     `json:"defaultTitle,omitempty"`
	Points       []string `json:"points"`
	Notes        string   `json:"notes,omitempty"`
	ImageAltText string   `json:"imageAltText,omitempty"`
}

// Synthesize checks the store before calling the wrapped synthesizer
func (c *CachedSynthesizer) Synthesize(ctx context.Context, page domain.PageRecord) domain.SlideResult {
	key := c.Key(page)

	if data, err := c.store.Get(ctx, key); err == nil {
		var cached cachedSlide
		if err := json.Unmarshal(data, &cached); err == nil {
			c.logger.Debug().Int("page", page.PageNumber).Msg("slide cache hit")
			title := cached.Title
			if cached.DefaultTitle {
				title = defaultTitle(page)
			}
			return domain.Content(domain.SlideRecord{
				PageNumber:   page.PageNumber,
				Title:        title,
				Points:       cached.Points,
				Notes:        cached.Notes,
				Image:        page.Image,
				ImageAltText: cached.ImageAltText,
			})
		}
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn().Err(err).Int("page", page.PageNumber).Msg("slide cache read failed")
	}

	// identical pages synthesized concurrently share one generator call
	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.next.Synthesize(ctx, page), nil
	})
	result := v.(domain.SlideResult)
	if result.Slide.PageNumber != page.PageNumber {
		// degraded records describe the page that failed, so they are never shared
		if result.IsDegraded() {
			return c.next.Synthesize(ctx, page)
		}
		result.Slide = rebase(result.Slide, page)
	}
	if result.IsDegraded() {
		return result
	}

	data, err := json.Marshal(cachedSlide{
		Title:        result.Slide.Title,
		DefaultTitle: result.Slide.Title == defaultTitle(page),
		Points:       result.Slide.Points,
		Notes:        result.Slide.Notes,
		ImageAltText: result.Slide.ImageAltText,
	})
	if err == nil {
		err = c.store.Set(ctx, key, data, c.ttl)
	}
	if err != nil {
		c.logger.Warn().Err(err).Int("page", page.PageNumber).Msg("slide cache write failed")
	}
	return result
}

// rebase moves a slide synthesized for another page with the same key onto page
func rebase(slide domain.SlideRecord, page domain.PageRecord) domain.SlideRecord {
	origin := page
	origin.PageNumber = slide.PageNumber
	if slide.Title == defaultTitle(origin) {
		slide.Title = defaultTitle(page)
	}
	slide.PageNumber = page.PageNumber
	slide.Image = page.Image
	slide.Points = append([]string(nil), slide.Points...)
	return slide
}

// Key derives the cache key for a page
func (c *CachedSynthesizer) Key(page domain.PageRecord) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(page.Text))
	h.Write([]byte{0})
	if page.Image != nil {
		h.Write([]byte(page.Image.MIMEType))
		h.Write([]byte{0})
		h.Write(page.Image.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}
