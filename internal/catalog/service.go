package catalog

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/domain"
)

const (
	snapshotCacheKey = "catalog:snapshot:v1"

	// DefaultLoadTimeout bounds a shared snapshot load when WithLoadTimeout is not used.
	DefaultLoadTimeout = 60 * time.Second
)

// Cache stores serialized snapshots for a short time.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service hands out catalog snapshots, loading them from the data source on a cache miss.
type Service struct {
	categories  *CategoryRepository
	products    *ProductRepository
	cache       Cache
	ttl         time.Duration
	loads       singleflight.Group
	loadTimeout time.Duration
	now         func() time.Time
}

// NewService creates a Service. A nil cache or a non-positive ttl disables caching.
func NewService(source DataSource, tables Tables, cache Cache, ttl time.Duration) *Service {
	return &Service{
		categories:  NewCategoryRepository(source, tables.Categories),
		products:    NewProductRepository(source, tables.Products),
		cache:       cache,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
	}
}

// WithLoadTimeout bounds each shared source load. Non-positive values are ignored.
func (s *Service) WithLoadTimeout(d time.Duration) *Service {
	if d > 0 {
		s.loadTimeout = d
	}
	return s
}

// Snapshot returns the current catalog. Concurrent misses share one load, which runs
// detached from any single caller: a caller that gives up only stops waiting.
func (s *Service) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	if snap, ok := s.cached(ctx); ok {
		return snap, nil
	}

	ch := s.loads.DoChan(snapshotCacheKey, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()

		snap, err := s.load(lctx)
		if err != nil {
			return domain.Snapshot{}, err
		}
		s.store(lctx, snap)
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return domain.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.Snapshot{}, res.Err
		}
		return res.Val.(domain.Snapshot), nil
	}
}

// Hierarchy is a convenience for Snapshot followed by NewHierarchy.
func (s *Service) Hierarchy(ctx context.Context) (*Hierarchy, domain.Snapshot, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, domain.Snapshot{}, err
	}
	return NewHierarchy(snap.Categories), snap, nil
}

// Product returns one product, preferring the snapshot and falling back to a direct fetch.
func (s *Service) Product(ctx context.Context, id string) (*domain.Product, error) {
	snap, err := s.Snapshot(ctx)
	if err == nil {
		if p, ok := FindProduct(snap.Products, id); ok {
			return &p, nil
		}
	}
	return s.products.Get(ctx, id, snap.Categories)
}

func (s *Service) load(ctx context.Context) (domain.Snapshot, error) {
	var categoryRecords, productRecords []airtable.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.categories.records(gctx)
		categoryRecords = recs
		return err
	})
	g.Go(func() error {
		recs, err := s.products.records(gctx)
		productRecords = recs
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	categories := NormalizeCategories(categoryRecords)
	snap := domain.Snapshot{
		Categories: categories,
		Products:   NormalizeProducts(productRecords, categories),
		LoadedAt:   s.now().UTC(),
	}
	log.WithFields(log.Fields{"categories": len(snap.Categories), "products": len(snap.Products)}).Debug("catalog: snapshot loaded")
	return snap, nil
}

func (s *Service) cached(ctx context.Context) (domain.Snapshot, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return domain.Snapshot{}, false
	}
	raw, ok, err := s.cache.Get(ctx, snapshotCacheKey)
	if err != nil {
		log.WithError(err).Warn("catalog: cache read failed, loading from source")
		return domain.Snapshot{}, false
	}
	if !ok {
		return domain.Snapshot{}, false
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.WithError(err).Warn("catalog: discarding undecodable cached snapshot")
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (s *Service) store(ctx context.Context, snap domain.Snapshot) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		log.WithError(err).Warn("catalog: cannot encode snapshot for cache")
		return
	}
	if err := s.cache.Set(ctx, snapshotCacheKey, raw, s.ttl); err != nil {
		log.WithError(err).Warn("catalog: cache write failed")
	}
}
