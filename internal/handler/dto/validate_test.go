package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklane/stacklane/internal/apperr"
)

func TestValidate(t *testing.T) {
	neg := -1
	long := strings.Repeat("x", 256)

	tests := []struct {
		name      string
		req       any
		wantField string
	}{
		{"valid create", &CreateItemRequest{Name: "Widget", Quantity: 1}, ""},
		{"missing name", &CreateItemRequest{}, "name"},
		{"name too long", &CreateItemRequest{Name: long}, "name"},
		{"multibyte name at limit", &CreateItemRequest{Name: strings.Repeat("é", 255)}, ""},
		{"negative quantity", &CreateItemRequest{Name: "x", Quantity: -1}, "quantity"},
		{"update nothing", &UpdateItemRequest{}, ""},
		{"update negative quantity", &UpdateItemRequest{Quantity: &neg}, "quantity"},
		{"update long name", &UpdateItemRequest{Name: &long}, "name"},
		{"order without item", &PlaceOrderRequest{Quantity: 1}, "item_id"},
		{"order zero quantity passes schema", &PlaceOrderRequest{ItemID: "i1"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			e, ok := apperr.As(err)
			require.True(t, ok, "want domain error, got %v", err)
			assert.Equal(t, apperr.KindValidation, e.Kind)
			assert.Equal(t, tt.wantField, e.Field)
			assert.Contains(t, e.Message, tt.wantField)
		})
	}
}
