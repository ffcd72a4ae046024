package catalog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/domain"
)

type mapCache struct {
	mu     sync.Mutex
	values map[string][]byte
	getErr error
	sets   int
}

func newMapCache() *mapCache { return &mapCache{values: map[string][]byte{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.values[key] = value
	return nil
}

func seededSource() *fakeSource {
	source := newFakeSource()
	source.tables["Categories"] = []airtable.Record{
		rec("A", map[string]any{"Name": "Cotton"}),
		rec("B", map[string]any{"Name": "Winter Cotton", "ParentCategory": []any{"A"}}),
	}
	source.tables["Products"] = []airtable.Record{
		rec("P1", map[string]any{"Name": "Flannel", "Sub Category": []any{"B"}, "PricePerMeter": 9.5}),
	}
	return source
}

var testTables = Tables{Categories: "Categories", Products: "Products"}

func TestService_Snapshot_UsesCache(t *testing.T) {
	source := seededSource()
	cache := newMapCache()
	svc := NewService(source, testTables, cache, time.Minute)

	first, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, first.Categories, 2)
	assert.Len(t, first.Products, 1)
	assert.Equal(t, 2, source.listCalls())
	assert.Equal(t, 1, cache.sets)

	second, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, source.listCalls(), "second snapshot comes from the cache")
	assert.Equal(t, "A", second.Products[0].MainCategoryID)
	assert.True(t, first.Products[0].PricePerMeter.Equal(second.Products[0].PricePerMeter))
}

func TestService_Snapshot_CacheErrorFallsBackToSource(t *testing.T) {
	source := seededSource()
	cache := newMapCache()
	cache.getErr = errors.New("connection refused")
	svc := NewService(source, testTables, cache, time.Minute)

	snap, err := svc.Snapshot(context.Background())

	require.NoError(t, err)
	assert.Len(t, snap.Categories, 2)
}

func TestService_Snapshot_NoCache(t *testing.T) {
	source := seededSource()
	svc := NewService(source, testTables, nil, time.Minute)

	_, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	_, err = svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, source.listCalls())
}

func TestService_Snapshot_SourceFailure(t *testing.T) {
	source := seededSource()
	source.listErr["Products"] = &airtable.DataSourceError{Op: "list", Table: "Products", StatusCode: 502}
	cache := newMapCache()
	svc := NewService(source, testTables, cache, time.Minute)

	_, err := svc.Snapshot(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataSource))
	assert.Equal(t, 0, cache.sets, "failed loads are not cached")
}

func TestService_Hierarchy(t *testing.T) {
	svc := NewService(seededSource(), testTables, nil, 0)

	h, snap, err := svc.Hierarchy(context.Background())

	require.NoError(t, err)
	assert.Len(t, h.MainCategories(), 1)
	assert.Equal(t, []string{"P1"}, productIDs(h.ProductsOf(snap.Products, "A", true)))
}

func TestService_Product(t *testing.T) {
	source := seededSource()
	svc := NewService(source, testTables, nil, 0)

	p, err := svc.Product(context.Background(), "P1")
	require.NoError(t, err)
	assert.Equal(t, "Flannel", p.Name)

	_, err = svc.Product(context.Background(), "P404")
	assert.True(t, errors.Is(err, ErrProductNotFound))
}

// gatedSource blocks every listing until release is closed or the call's context ends.
type gatedSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
}

func (g *gatedSource) ListRecords(ctx context.Context, table string) ([]airtable.Record, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return g.fakeSource.ListRecords(ctx, table)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestService_Snapshot_CancelledCallerDoesNotFailOthers(t *testing.T) {
	source := &gatedSource{fakeSource: seededSource(), started: make(chan struct{}, 4), release: make(chan struct{})}
	svc := NewService(source, testTables, nil, 0)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := svc.Snapshot(ctxA)
		errA <- err
	}()
	<-source.started

	type result struct {
		snap domain.Snapshot
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		snap, err := svc.Snapshot(context.Background())
		resB <- result{snap: snap, err: err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	time.Sleep(20 * time.Millisecond)
	close(source.release)

	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Len(t, res.snap.Categories, 2)
		assert.Len(t, res.snap.Products, 1)
	case <-time.After(2 * time.Second):
		t.Fatal("waiting caller never received the snapshot")
	}
	assert.Equal(t, 2, source.listCalls(), "one shared load for both callers")
}

func TestService_Snapshot_LoadTimeout(t *testing.T) {
	source := &gatedSource{fakeSource: seededSource(), started: make(chan struct{}, 4), release: make(chan struct{})}
	svc := NewService(source, testTables, nil, 0).WithLoadTimeout(20 * time.Millisecond)

	_, err := svc.Snapshot(context.Background())

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
