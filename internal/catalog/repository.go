package catalog

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"fabrics-catalog-service/internal/airtable"
	"fabrics-catalog-service/internal/domain"
)

var (
	// ErrDataSource matches failures of the underlying catalog data source.
	ErrDataSource       = airtable.ErrDataSource
	ErrCategoryNotFound = errors.New("catalog: category not found")
	ErrProductNotFound  = errors.New("catalog: product not found")
)

// DataSource is the record store behind the catalog (an Airtable base in production).
type DataSource interface {
	ListRecords(ctx context.Context, table string) ([]airtable.Record, error)
	GetRecord(ctx context.Context, table, id string) (*airtable.Record, error)
}

// Tables names the source tables the repositories read.
type Tables struct {
	Categories string
	Products   string
}

// CategoryRepository reads raw category records and normalizes them.
type CategoryRepository struct {
	source DataSource
	table  string
}

// NewCategoryRepository creates a CategoryRepository over table.
func NewCategoryRepository(source DataSource, table string) *CategoryRepository {
	return &CategoryRepository{source: source, table: table}
}

// LoadAll returns every category in source order. A bad field on one record never
// fails the load; only an unreachable source or malformed listing does.
func (r *CategoryRepository) LoadAll(ctx context.Context) ([]domain.Category, error) {
	records, err := r.records(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeCategories(records), nil
}

func (r *CategoryRepository) records(ctx context.Context) ([]airtable.Record, error) {
	records, err := r.source.ListRecords(ctx, r.table)
	return records, errors.Wrap(err, "catalog: load categories")
}

// NormalizeCategories converts raw records into categories, skipping records without an id.
func NormalizeCategories(records []airtable.Record) []domain.Category {
	categories := make([]domain.Category, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			log.Warn("catalog: skipping category record without id")
			continue
		}
		categories = append(categories, normalizeCategory(rec))
	}
	promoteOrphans(categories)
	return categories
}

// promoteOrphans turns categories whose parent is not in the set into main categories,
// so they stay reachable.
func promoteOrphans(categories []domain.Category) {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.ID] = struct{}{}
	}
	for i, c := range categories {
		if c.IsMain() {
			continue
		}
		if _, ok := known[c.ParentIDs[0]]; !ok {
			log.WithFields(log.Fields{"category": c.ID, "parent": c.ParentIDs[0]}).
				Warn("catalog: parent category not found, treating as main")
			categories[i].ParentIDs = []string{}
		}
	}
}

func normalizeCategory(rec airtable.Record) domain.Category {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	cat := domain.Category{ID: rec.ID, Name: domain.UnknownName, ParentIDs: []string{}}

	if name, ok := textField(fields, FieldName); ok && name != "" {
		cat.Name = name
	} else if !ok {
		logParseError(&ParseError{RecordID: rec.ID, Field: FieldName, Value: fields[FieldName]})
	}
	if desc, ok := textField(fields, FieldDescription); ok {
		cat.Description = desc
	}
	if count, ok := decimalField(fields, FieldProductsCount); ok && count.IsPositive() {
		cat.ProductCount = int(count.IntPart())
	}

	cat.ParentIDs = parentLinks(rec.ID, fields[FieldParent])
	return cat
}

// parentLinks applies the single-parent policy: the first non-blank id wins,
// a self reference is dropped, and an unreadable value means "no parent".
func parentLinks(recordID string, raw any) []string {
	ids := ExtractLinkedIDs(raw)
	if len(ids) == 0 {
		if raw != nil && !isEmptyLink(raw) {
			logParseError(&ParseError{RecordID: recordID, Field: FieldParent, Value: raw})
		}
		return []string{}
	}
	if len(ids) > 1 {
		log.WithFields(log.Fields{"category": recordID, "parents": ids}).
			Warn("catalog: category has several parents, keeping the first")
	}
	if ids[0] == recordID {
		log.WithField("category", recordID).Warn("catalog: category lists itself as parent, treating as main")
		return []string{}
	}
	return ids[:1]
}

// isEmptyLink reports the encodings that legitimately mean "no link": "", [], [""].
func isEmptyLink(raw any) bool {
	switch v := raw.(type) {
	case string:
		return true
	case []string:
		return true
	case []any:
		for _, item := range v {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	}
	return false
}

func logParseError(err *ParseError) {
	log.WithFields(log.Fields{"record": err.RecordID, "field": err.Field}).WithError(err).Warn("catalog: recovered from field parse error")
}

// ProductRepository reads raw product records and resolves their category chain.
type ProductRepository struct {
	source DataSource
	table  string
}

// NewProductRepository creates a ProductRepository over table.
func NewProductRepository(source DataSource, table string) *ProductRepository {
	return &ProductRepository{source: source, table: table}
}

// LoadAll returns every product, resolving main categories against categories.
func (r *ProductRepository) LoadAll(ctx context.Context, categories []domain.Category) ([]domain.Product, error) {
	records, err := r.records(ctx)
	if err != nil {
		return nil, err
	}
	return NormalizeProducts(records, categories), nil
}

func (r *ProductRepository) records(ctx context.Context) ([]airtable.Record, error) {
	records, err := r.source.ListRecords(ctx, r.table)
	return records, errors.Wrap(err, "catalog: load products")
}

// Get fetches a single product by record id.
func (r *ProductRepository) Get(ctx context.Context, id string, categories []domain.Category) (*domain.Product, error) {
	rec, err := r.source.GetRecord(ctx, r.table, id)
	if err != nil {
		if errors.Is(err, airtable.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "catalog: get product %s", id)
	}
	p := normalizeProduct(*rec, indexCategories(categories))
	return &p, nil
}

// NormalizeProducts converts raw records into products.
func NormalizeProducts(records []airtable.Record, categories []domain.Category) []domain.Product {
	index := indexCategories(categories)
	products := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			log.Warn("catalog: skipping product record without id")
			continue
		}
		products = append(products, normalizeProduct(rec, index))
	}
	return products
}

func normalizeProduct(rec airtable.Record, index map[string]domain.Category) domain.Product {
	fields := rec.Fields
	if fields == nil {
		fields = map[string]any{}
	}

	p := domain.Product{ID: rec.ID, Name: domain.UnknownName}
	if name, ok := textField(fields, FieldName); ok && name != "" {
		p.Name = name
	}
	if desc, ok := textField(fields, FieldDescription); ok {
		p.Description = desc
	}
	p.Image = imageField(fields, FieldImage)

	price, ok := decimalField(fields, FieldPricePerMeter)
	switch {
	case !ok:
		logParseError(&ParseError{RecordID: rec.ID, Field: FieldPricePerMeter, Value: fields[FieldPricePerMeter]})
	case price.IsNegative():
		log.WithFields(log.Fields{"product": rec.ID, "price": price.String()}).Warn("catalog: negative price per meter, using zero")
	default:
		p.PricePerMeter = price
	}

	mainLinks := ExtractLinkedIDs(fields[FieldMainCategory])
	subLinks := ExtractLinkedIDs(fields[FieldSubCategory])
	generic := ExtractLinkedIDs(fields[FieldCategory])

	for _, id := range generic {
		cat, known := index[id]
		switch {
		case !known:
		case cat.IsMain():
			mainLinks = append(mainLinks, id)
		default:
			subLinks = append(subLinks, id)
		}
	}

	p.CategoryIDs = mergeIDs(ExtractLinkedIDs(fields[FieldMainCategory]), ExtractLinkedIDs(fields[FieldSubCategory]), generic)
	if len(mainLinks) > 0 {
		p.MainCategoryID = mainLinks[0]
	}
	if len(subLinks) > 0 {
		p.SubCategoryID = subLinks[0]
	}
	if p.MainCategoryID == "" && len(subLinks) > 0 {
		p.MainCategoryID = resolveMain(rec.ID, subLinks, index)
	}
	return p
}

// resolveMain derives the main category from the first sub link whose parent is known.
func resolveMain(productID string, subLinks []string, index map[string]domain.Category) string {
	for _, subID := range subLinks {
		sub, ok := index[subID]
		if !ok || sub.ParentID() == "" {
			continue
		}
		return sub.ParentID()
	}
	log.WithFields(log.Fields{"product": productID, "sub_categories": subLinks}).
		Warn("catalog: could not resolve main category from sub category links, dropping")
	return ""
}

func mergeIDs(groups ...[]string) []string {
	merged := make([]string, 0, 2)
	seen := make(map[string]struct{})
	for _, group := range groups {
		for _, id := range group {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	return merged
}

func indexCategories(categories []domain.Category) map[string]domain.Category {
	index := make(map[string]domain.Category, len(categories))
	for _, c := range categories {
		index[c.ID] = c
	}
	return index
}
