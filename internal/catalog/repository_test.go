package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/domain"
)

// fakeSource is an in-memory DataSource keyed by table name.
type fakeSource struct {
	mu      sync.Mutex
	tables  map[string][]airtable.Record
	listErr map[string]error
	getErr  error
	lists   int
}

func newFakeSource() *fakeSource {
	return &fakeSource{tables: map[string][]airtable.Record{}, listErr: map[string]error{}}
}

func (f *fakeSource) ListRecords(_ context.Context, table string) ([]airtable.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if err := f.listErr[table]; err != nil {
		return nil, err
	}
	return f.tables[table], nil
}

func (f *fakeSource) GetRecord(_ context.Context, table, id string) (*airtable.Record, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, rec := range f.tables[table] {
		if rec.ID == id {
			rec := rec
			return &rec, nil
		}
	}
	return nil, &airtable.DataSourceError{Op: "get", Table: table, StatusCode: 404, Err: airtable.ErrRecordNotFound}
}

func (f *fakeSource) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func rec(id string, fields map[string]any) airtable.Record {
	return airtable.Record{ID: id, Fields: fields}
}

func TestCategoryRepository_LoadAll_ParentEncodings(t *testing.T) {
	source := newFakeSource()
	source.tables["Categories"] = []airtable.Record{
		rec("recNil", map[string]any{"Name": "Nil parent", "ParentCategory": nil}),
		rec("recEmpty", map[string]any{"Name": "Empty parent", "ParentCategory": []any{}}),
		rec("recBlank", map[string]any{"Name": "Blank parent", "ParentCategory": []any{""}}),
		rec("recAbsent", map[string]any{"Name": "Absent parent"}),
		rec("recBlankString", map[string]any{"Name": "Blank string", "ParentCategory": ""}),
		rec("recJunk", map[string]any{"Name": "Junk parent", "ParentCategory": 17.0}),
		rec("recSub", map[string]any{"Name": "Sub", "ParentCategory": []any{"recNil"}}),
	}
	repo := NewCategoryRepository(source, "Categories")

	categories, err := repo.LoadAll(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 7)
	for _, c := range categories[:6] {
		assert.True(t, c.IsMain(), "category %s should be main", c.ID)
		assert.Equal(t, []string{}, c.ParentIDs, "category %s should share one no-parent representation", c.ID)
	}
	assert.False(t, categories[6].IsMain())
	assert.Equal(t, "recNil", categories[6].ParentID())
}

func TestCategoryRepository_LoadAll_Normalization(t *testing.T) {
	source := newFakeSource()
	source.tables["Categories"] = []airtable.Record{
		rec("recA", map[string]any{"Name": "Cotton", "Description": "Breathable", "ProductsCount": 4.0}),
		rec("recB", map[string]any{"ParentCategory": []any{"recA", "recC"}}),
		rec("recSelf", map[string]any{"Name": "Loop", "ParentCategory": []any{"recSelf"}}),
		rec("", map[string]any{"Name": "No id"}),
		rec("recLinks", map[string]any{"Name": "Linked", "ParentCategory": []any{map[string]any{"id": "recA"}}}),
	}
	repo := NewCategoryRepository(source, "Categories")

	categories, err := repo.LoadAll(context.Background())

	require.NoError(t, err)
	require.Len(t, categories, 4)

	assert.Equal(t, "Cotton", categories[0].Name)
	assert.Equal(t, "Breathable", categories[0].Description)
	assert.Equal(t, 4, categories[0].ProductCount)

	assert.Equal(t, domain.UnknownName, categories[1].Name)
	assert.Equal(t, []string{"recA"}, categories[1].ParentIDs, "first parent wins")

	assert.True(t, categories[2].IsMain(), "self reference is dropped")
	assert.Equal(t, "recA", categories[3].ParentID())
}

func TestNormalizeCategories_UnknownParentBecomesMain(t *testing.T) {
	categories := NormalizeCategories([]airtable.Record{
		rec("recA", map[string]any{"Name": "Cotton"}),
		rec("recOrphan", map[string]any{"Name": "Lace", "ParentCategory": []any{"recDeleted"}}),
		rec("recB", map[string]any{"Name": "Poplin", "ParentCategory": []any{"recA"}}),
	})

	require.Len(t, categories, 3)
	assert.True(t, categories[1].IsMain(), "a missing parent must not hide the category")
	assert.Equal(t, []string{}, categories[1].ParentIDs)
	assert.Equal(t, "recA", categories[2].ParentID())

	h := NewHierarchy(categories)
	mainIDs := make([]string, 0)
	for _, m := range h.MainCategories() {
		mainIDs = append(mainIDs, m.ID)
	}
	assert.Equal(t, []string{"recA", "recOrphan"}, mainIDs)
}

func TestCategoryRepository_LoadAll_SourceFailure(t *testing.T) {
	source := newFakeSource()
	source.listErr["Categories"] = &airtable.DataSourceError{Op: "list", Table: "Categories", StatusCode: 500}
	repo := NewCategoryRepository(source, "Categories")

	categories, err := repo.LoadAll(context.Background())

	require.Error(t, err)
	assert.Nil(t, categories)
	assert.True(t, errors.Is(err, ErrDataSource))
}

func TestProductRepository_LoadAll_ResolvesMainFromSub(t *testing.T) {
	categories := []domain.Category{
		{ID: "A", Name: "Cotton", ParentIDs: []string{}},
		{ID: "B", Name: "Winter Cotton", ParentIDs: []string{"A"}},
		{ID: "C", Name: "Silk", ParentIDs: []string{}},
	}
	source := newFakeSource()
	source.tables["Products"] = []airtable.Record{
		rec("P1", map[string]any{"Name": "Flannel", "Sub Category": []any{"B"}, "PricePerMeter": 12.5}),
		rec("P2", map[string]any{"Name": "Charmeuse", "Main Category": []any{"C"}, "PricePerMeter": "40"}),
		rec("P3", map[string]any{"Name": "Generic", "Category": []any{"B"}}),
		rec("P4", map[string]any{"Name": "Orphan", "Sub Category": []any{"recGhost"}}),
		rec("P5", map[string]any{"Name": "Both", "Main Category": []any{"C"}, "Sub Category": []any{"B"}}),
	}
	repo := NewProductRepository(source, "Products")

	products, err := repo.LoadAll(context.Background(), categories)

	require.NoError(t, err)
	require.Len(t, products, 5)

	assert.Equal(t, "A", products[0].MainCategoryID, "main derived from the sub category's first parent")
	assert.Equal(t, "B", products[0].SubCategoryID)
	assert.Equal(t, []string{"B"}, products[0].CategoryIDs, "derived main is not a direct link")
	assert.True(t, decimal.RequireFromString("12.5").Equal(products[0].PricePerMeter))

	assert.Equal(t, "C", products[1].MainCategoryID)
	assert.Equal(t, "", products[1].SubCategoryID)
	assert.True(t, decimal.NewFromInt(40).Equal(products[1].PricePerMeter))

	assert.Equal(t, "A", products[2].MainCategoryID, "generic links are classified through the category set")
	assert.Equal(t, "B", products[2].SubCategoryID)

	assert.Equal(t, "", products[3].MainCategoryID, "unresolvable sub reference leaves no main")
	assert.Equal(t, []string{"recGhost"}, products[3].CategoryIDs)

	assert.Equal(t, "C", products[4].MainCategoryID, "a direct main link is never overridden")
	assert.Equal(t, []string{"C", "B"}, products[4].CategoryIDs)
}

func TestProductRepository_LoadAll_PermissiveFields(t *testing.T) {
	source := newFakeSource()
	source.tables["Products"] = []airtable.Record{
		rec("P1", map[string]any{"PricePerMeter": "n/a", "Sub Category": 3.0}),
		rec("P2", map[string]any{"Name": "Refund", "PricePerMeter": -5.0}),
		rec("P3", nil),
	}
	repo := NewProductRepository(source, "Products")

	products, err := repo.LoadAll(context.Background(), nil)

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, domain.UnknownName, products[0].Name)
	assert.True(t, products[0].PricePerMeter.IsZero())
	assert.Empty(t, products[0].CategoryIDs)
	assert.True(t, products[1].PricePerMeter.IsZero(), "negative price is clamped")
	assert.Equal(t, domain.UnknownName, products[2].Name)
}

func TestProductRepository_Get(t *testing.T) {
	source := newFakeSource()
	source.tables["Products"] = []airtable.Record{
		rec("P1", map[string]any{"Name": "Flannel", "Sub Category": []any{"B"}}),
	}
	categories := []domain.Category{
		{ID: "A", ParentIDs: []string{}},
		{ID: "B", ParentIDs: []string{"A"}},
	}
	repo := NewProductRepository(source, "Products")

	p, err := repo.Get(context.Background(), "P1", categories)
	require.NoError(t, err)
	assert.Equal(t, "Flannel", p.Name)
	assert.Equal(t, "A", p.MainCategoryID)

	_, err = repo.Get(context.Background(), "P404", categories)
	assert.True(t, errors.Is(err, ErrProductNotFound))

	source.getErr = &airtable.DataSourceError{Op: "get", Table: "Products", StatusCode: 503}
	_, err = repo.Get(context.Background(), "P1", categories)
	assert.True(t, errors.Is(err, ErrDataSource))
	assert.False(t, errors.Is(err, ErrProductNotFound))
}
