package providers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sourcegraph/conc/pool"

	"medialib/models"
)

const (
	recentCacheSize    = 64
	defaultRecentTTL   = 15 * time.Minute
	maxConcurrentFetch = 4
)

// Store persists cached provider results in SQLite, fronted by an in-memory
// LRU of the most recently read providers.
type Store struct {
	db     *sql.DB
	recent *expirable.LRU[string, []models.SearchResult]
}

// NewStore wraps a migrated database. ttl <= 0 uses the default.
func NewStore(db *sql.DB, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultRecentTTL
	}
	return &Store{
		db:     db,
		recent: expirable.NewLRU[string, []models.SearchResult](recentCacheSize, nil, ttl),
	}
}

// Save upserts results for provider under a new batch. It returns the batch
// id and the number of rows written; results without a title or link are
// skipped.
func (s *Store) Save(ctx context.Context, provider string, results []models.SearchResult) (string, int, error) {
	batchID := uuid.NewString()
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, fmt.Errorf("begin cache batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provider_cache (provider, batch_id, title, link, hash, seeders, leechers, size, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, link) DO UPDATE SET
			batch_id = excluded.batch_id,
			title = excluded.title,
			hash = excluded.hash,
			seeders = excluded.seeders,
			leechers = excluded.leechers,
			size = excluded.size,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		return "", 0, fmt.Errorf("prepare cache upsert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, r := range results {
		title, link := TitleAndURL(r)
		if title == "" || link == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, provider, batchID, title, link, r.Hash, r.Seeders, r.Leechers, Size(r), now); err != nil {
			return "", 0, fmt.Errorf("upsert %q: %w", title, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("commit cache batch: %w", err)
	}
	s.recent.Remove(provider)
	return batchID, written, nil
}

// Load returns the cached results for provider, newest first.
func (s *Store) Load(ctx context.Context, provider string) ([]models.SearchResult, error) {
	if cached, ok := s.recent.Get(provider); ok {
		return cached, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT title, link, hash, seeders, leechers, size
		FROM provider_cache
		WHERE provider = ?
		ORDER BY fetched_at DESC, id DESC`, provider)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	defer rows.Close()

	var results []models.SearchResult
	for rows.Next() {
		var r models.SearchResult
		if err := rows.Scan(&r.Title, &r.Link, &r.Hash, &r.Seeders, &r.Leechers, &r.Size); err != nil {
			return nil, fmt.Errorf("scan cache row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache: %w", err)
	}
	s.recent.Add(provider, results)
	return results, nil
}

// Clear drops every cached row for provider.
func (s *Store) Clear(ctx context.Context, provider string) error {
	s.recent.Remove(provider)
	if _, err := s.db.ExecContext(ctx, `DELETE FROM provider_cache WHERE provider = ?`, provider); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// Cache is a provider's RSS cache.
type Cache struct {
	provider Provider
	store    *Store

	mu          sync.Mutex
	lastUpdated time.Time
}

func NewCache(p Provider, store *Store) *Cache {
	return &Cache{provider: p, store: store}
}

func (c *Cache) Provider() Provider { return c.provider }

// SearchParams are the queries an RSS refresh runs.
func (c *Cache) SearchParams() SearchStrings {
	params := SearchStrings{ModeRSS: {""}}
	if cp, ok := c.provider.(cacheParamsProvider); ok {
		params = params.Merge(cp.CacheSearchParams())
	}
	return params
}

// Update runs an RSS search and stores the results. It returns the number of
// rows written.
func (c *Cache) Update(ctx context.Context) (int, error) {
	if !c.provider.Capabilities().CanDaily {
		return 0, fmt.Errorf("%s does not serve an RSS feed", c.provider.Name())
	}
	results, err := c.provider.Search(ctx, c.SearchParams())
	if err != nil {
		return 0, fmt.Errorf("%s rss search: %w", c.provider.Name(), err)
	}
	batchID, written, err := c.store.Save(ctx, c.provider.Name(), results)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.lastUpdated = time.Now()
	c.mu.Unlock()

	log.Printf("[cache] %s: stored %d of %d results (batch %s)", c.provider.Name(), written, len(results), batchID)
	return written, nil
}

// Results returns the cached results.
func (c *Cache) Results(ctx context.Context) ([]models.SearchResult, error) {
	return c.store.Load(ctx, c.provider.Name())
}

func (c *Cache) LastUpdated() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUpdated
}

// UpdateAll refreshes caches concurrently. Counts are keyed by provider name;
// failures are joined into the returned error.
func UpdateAll(ctx context.Context, caches []*Cache) (map[string]int, error) {
	var (
		mu     sync.Mutex
		counts = make(map[string]int, len(caches))
		errs   []error
	)

	p := pool.New().WithContext(ctx).WithMaxGoroutines(maxConcurrentFetch)
	for _, c := range caches {
		p.Go(func(ctx context.Context) error {
			n, err := c.Update(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("[cache] %s refresh failed: %v", c.provider.Name(), err)
				errs = append(errs, err)
				return nil
			}
			counts[c.provider.Name()] = n
			return nil
		})
	}
	_ = p.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return counts, errors.Join(errs...)
}
