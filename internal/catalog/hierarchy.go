package catalog

import "fabrics-catalog-service/internal/domain"

// Hierarchy answers main/sub questions over one set of normalized categories.
// It is immutable and safe for concurrent use.
type Hierarchy struct {
	categories []domain.Category
	byID       map[string]domain.Category
}

// NewHierarchy indexes categories, keeping their source order.
func NewHierarchy(categories []domain.Category) *Hierarchy {
	return &Hierarchy{categories: categories, byID: indexCategories(categories)}
}

// Category looks a category up by id.
func (h *Hierarchy) Category(id string) (domain.Category, bool) {
	c, ok := h.byID[id]
	return c, ok
}

// All returns every category in source order.
func (h *Hierarchy) All() []domain.Category {
	return h.categories
}

// MainCategories returns the categories without a parent, in source order.
func (h *Hierarchy) MainCategories() []domain.Category {
	mains := make([]domain.Category, 0)
	for _, c := range h.categories {
		if c.IsMain() {
			mains = append(mains, c)
		}
	}
	return mains
}

// SubCategories returns the categories whose parent links contain parentID.
func (h *Hierarchy) SubCategories(parentID string) []domain.Category {
	subs := make([]domain.Category, 0)
	if parentID == "" {
		return subs
	}
	for _, c := range h.categories {
		for _, p := range c.ParentIDs {
			if p == parentID {
				subs = append(subs, c)
				break
			}
		}
	}
	return subs
}

// ProductsOf lists the products of categoryID. With includeChildren the products of its
// direct sub categories are appended. The result has no duplicate ids and keeps
// first-seen order.
func (h *Hierarchy) ProductsOf(products []domain.Product, categoryID string, includeChildren bool) []domain.Product {
	targets := map[string]struct{}{categoryID: {}}
	if includeChildren {
		for _, sub := range h.SubCategories(categoryID) {
			targets[sub.ID] = struct{}{}
		}
	}

	result := make([]domain.Product, 0)
	seen := make(map[string]struct{})
	for _, p := range products {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		for _, id := range p.CategoryIDs {
			if _, hit := targets[id]; hit {
				seen[p.ID] = struct{}{}
				result = append(result, p)
				break
			}
		}
	}
	return result
}

// BuildTree attaches every main category's direct sub categories. Depth beyond
// main→sub is not represented.
func (h *Hierarchy) BuildTree() []domain.CategoryNode {
	mains := h.MainCategories()
	tree := make([]domain.CategoryNode, 0, len(mains))
	for _, main := range mains {
		tree = append(tree, domain.CategoryNode{
			Category:      main,
			SubCategories: h.SubCategories(main.ID),
		})
	}
	return tree
}

// FindProduct returns the product with id from products.
func FindProduct(products []domain.Product, id string) (domain.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Product{}, false
}
