package conversation

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnknownPayload is returned by ParseToken for payloads this bot never issued.
var ErrUnknownPayload = errors.New("conversation: unknown payload")

const (
	prefixMainCategory = "MAIN_CATEGORY_"
	prefixSubCategory  = "SUB_CATEGORY_"
	prefixProduct      = "PRODUCT_"
	prefixOrder        = "ORDER_"

	// BackToMain returns the customer to the main category list.
	BackToMain = "BACK_TO_MAIN"
)

// Action is what a postback token asks the engine to do.
type Action int

const (
	ActionShowMain Action = iota
	ActionMainCategory
	ActionSubCategory
	ActionProduct
)

func (a Action) String() string {
	switch a {
	case ActionShowMain:
		return "show_main"
	case ActionMainCategory:
		return "main_category"
	case ActionSubCategory:
		return "sub_category"
	case ActionProduct:
		return "product"
	}
	return "unknown"
}

// Token is a decoded postback payload. It carries all conversation context.
type Token struct {
	Action    Action
	MainID    string
	SubID     string
	ProductID string
}

// MainCategoryToken encodes a main category selection.
func MainCategoryToken(mainID string) string { return prefixMainCategory + mainID }

// SubCategoryToken encodes a sub category selection under mainID.
func SubCategoryToken(mainID, subID string) string {
	return prefixSubCategory + mainID + "_" + subID
}

// ProductToken encodes a product selection.
func ProductToken(productID string) string { return prefixProduct + productID }

// ParseToken decodes a postback payload. Anything that is not a well-formed token
// yields ErrUnknownPayload.
func ParseToken(payload string) (Token, error) {
	payload = strings.TrimSpace(payload)
	switch {
	case payload == BackToMain:
		return Token{Action: ActionShowMain}, nil

	case strings.HasPrefix(payload, prefixMainCategory):
		id := strings.TrimPrefix(payload, prefixMainCategory)
		if !validID(id) {
			break
		}
		return Token{Action: ActionMainCategory, MainID: id}, nil

	case strings.HasPrefix(payload, prefixSubCategory):
		mainID, subID, ok := strings.Cut(strings.TrimPrefix(payload, prefixSubCategory), "_")
		if !ok || !validID(mainID) || !validID(subID) {
			break
		}
		return Token{Action: ActionSubCategory, MainID: mainID, SubID: subID}, nil

	case strings.HasPrefix(payload, prefixProduct), strings.HasPrefix(payload, prefixOrder):
		id := strings.TrimPrefix(strings.TrimPrefix(payload, prefixProduct), prefixOrder)
		if !validID(id) {
			break
		}
		return Token{Action: ActionProduct, ProductID: id}, nil
	}
	return Token{}, errors.Wrapf(ErrUnknownPayload, "%q", payload)
}

// validID rejects empty ids and ids that would make the token ambiguous.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, "_ \t\n")
}
