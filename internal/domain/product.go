package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownName is used when a record arrives without a usable display name.
const UnknownName = "unknown"

// Category represents a catalog category as normalized from the data source.
// The json tags correspond to the fields exposed by the REST API.
type Category struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	ParentIDs    []string `json:"parent_ids"`    // Zero or one element after normalization
	ProductCount int      `json:"product_count"` // Denormalized, 0 when absent
}

// IsMain reports whether the category sits at the top of the hierarchy.
func (c Category) IsMain() bool {
	return len(c.ParentIDs) == 0
}

// ParentID returns the single effective parent, or "" for main categories.
func (c Category) ParentID() string {
	if len(c.ParentIDs) == 0 {
		return ""
	}
	return c.ParentIDs[0]
}

// Product represents a fabric in the catalog.
// CategoryIDs holds the direct links only; MainCategoryID may be derived through a
// sub category's parent and is never merged back into CategoryIDs.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Image          string          `json:"image,omitempty"`
	PricePerMeter  decimal.Decimal `json:"price_per_meter"`
	CategoryIDs    []string        `json:"category_ids"`
	MainCategoryID string          `json:"main_category_id,omitempty"`
	SubCategoryID  string          `json:"sub_category_id,omitempty"`
}

// LinkedTo reports whether the product is directly linked to categoryID.
func (p Product) LinkedTo(categoryID string) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// CategoryNode is one main category with its direct sub categories.
type CategoryNode struct {
	Category
	SubCategories []Category `json:"sub_categories"`
}

// Snapshot is a read-only view of the catalog taken at LoadedAt.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
	LoadedAt   time.Time  `json:"loaded_at"`
}
