package service

import (
	"strings"
	"unicode/utf8"

	"github.com/stacklane/stacklane/internal/apperr"
	"github.com/stacklane/stacklane/internal/model"
)

// MaxItemNameLength is the longest accepted item name, in characters.
const MaxItemNameLength = 255

// ValidateItemName enforces the item naming rule.
func ValidateItemName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperr.Validation("Item name cannot be empty", "name")
	}
	if utf8.RuneCountInString(name) > MaxItemNameLength {
		return apperr.Validation("Item name cannot exceed 255 characters", "name")
	}
	return nil
}

func validateItemCreate(in model.ItemCreate) error {
	if err := ValidateItemName(in.Name); err != nil {
		return err
	}
	return validateAmounts(&in.Quantity, &in.UnitPriceCents)
}

func validateItemUpdate(in model.ItemUpdate) error {
	if in.Name != nil {
		if err := ValidateItemName(*in.Name); err != nil {
			return err
		}
	}
	return validateAmounts(in.Quantity, in.UnitPriceCents)
}

func validateAmounts(qty *int, price *int64) error {
	if qty != nil && *qty < 0 {
		return apperr.Validation("Quantity cannot be negative", "quantity")
	}
	if price != nil && *price < 0 {
		return apperr.Validation("Unit price cannot be negative", "unit_price_cents")
	}
	return nil
}
