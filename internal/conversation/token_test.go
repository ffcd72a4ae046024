package conversation

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		payload string
		want    Token
	}{
		{payload: "BACK_TO_MAIN", want: Token{Action: ActionShowMain}},
		{payload: "MAIN_CATEGORY_recA", want: Token{Action: ActionMainCategory, MainID: "recA"}},
		{payload: "SUB_CATEGORY_recA_recB", want: Token{Action: ActionSubCategory, MainID: "recA", SubID: "recB"}},
		{payload: "PRODUCT_recP1", want: Token{Action: ActionProduct, ProductID: "recP1"}},
		{payload: "ORDER_recP1", want: Token{Action: ActionProduct, ProductID: "recP1"}},
		{payload: "  MAIN_CATEGORY_recA \n", want: Token{Action: ActionMainCategory, MainID: "recA"}},
	}
	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := ParseToken(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseToken_Unknown(t *testing.T) {
	for _, payload := range []string{
		"",
		"GET_STARTED",
		"MAIN_CATEGORY_",
		"SUB_CATEGORY_recA",
		"SUB_CATEGORY_recA_",
		"SUB_CATEGORY__recB",
		"SUB_CATEGORY_recA_recB_recC",
		"PRODUCT_",
		"back_to_main",
		"MAIN_CATEGORY_rec A",
	} {
		t.Run(payload, func(t *testing.T) {
			_, err := ParseToken(payload)
			assert.True(t, errors.Is(err, ErrUnknownPayload))
		})
	}
}

func TestTokenEncodersRoundTrip(t *testing.T) {
	tok, err := ParseToken(SubCategoryToken("recMain", "recSub"))
	require.NoError(t, err)
	assert.Equal(t, "recMain", tok.MainID)
	assert.Equal(t, "recSub", tok.SubID)

	tok, err = ParseToken(MainCategoryToken("recMain"))
	require.NoError(t, err)
	assert.Equal(t, ActionMainCategory, tok.Action)

	tok, err = ParseToken(ProductToken("recP"))
	require.NoError(t, err)
	assert.Equal(t, "recP", tok.ProductID)
}
