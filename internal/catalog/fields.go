package catalog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Airtable field names read by the repositories.
const (
	FieldName          = "Name"
	FieldDescription   = "Description"
	FieldParent        = "ParentCategory"
	FieldProductsCount = "ProductsCount"
	FieldPricePerMeter = "PricePerMeter"
	FieldImage         = "Image"
	FieldMainCategory  = "Main Category"
	FieldSubCategory   = "Sub Category"
	FieldCategory      = "Category"
)

// ParseError describes a field that could not be read on a single record.
// It is logged and recovered from; it never aborts a batch load.
type ParseError struct {
	RecordID string
	Field    string
	Value    any
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("catalog: record %s: cannot parse field %q from %T", e.RecordID, e.Field, e.Value)
}

// ExtractLinkedIDs unwraps a linked-record field into an ordered, de-duplicated list of ids.
// Accepted shapes: a bare string, a list of strings, a list of link objects carrying an "id",
// or a single link object. Blank ids are dropped; anything else yields an empty list.
func ExtractLinkedIDs(value any) []string {
	ids := make([]string, 0, 1)
	seen := make(map[string]struct{})
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	switch v := value.(type) {
	case string:
		add(v)
	case []string:
		for _, id := range v {
			add(id)
		}
	case []any:
		for _, item := range v {
			switch it := item.(type) {
			case string:
				add(it)
			case map[string]any:
				add(linkObjectID(it))
			}
		}
	case map[string]any:
		add(linkObjectID(v))
	}
	return ids
}

func linkObjectID(obj map[string]any) string {
	id, _ := obj["id"].(string)
	return id
}

// textField reads a string-ish field. Lookup/rollup fields can arrive as arrays;
// the first string element is used then.
func textField(fields map[string]any, name string) (string, bool) {
	switch v := fields[name].(type) {
	case string:
		return strings.TrimSpace(v), true
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	case nil:
		return "", true
	}
	return "", false
}

// decimalField reads a number that may arrive as a JSON number or a numeric string.
func decimalField(fields map[string]any, name string) (decimal.Decimal, bool) {
	switch v := fields[name].(type) {
	case nil:
		return decimal.Zero, true
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return decimal.Zero, true
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	}
	return decimal.Zero, false
}

// imageField reads an attachment field ([{"url": ...}]) or a plain URL string.
func imageField(fields map[string]any, name string) string {
	switch v := fields[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				if u, ok := obj["url"].(string); ok && u != "" {
					return u
				}
			}
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
