package model

import (
	"reflect"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestItem_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := &Item{ID: "i1", Name: "Widget", Description: strPtr("blue")}
	clone := orig.Clone()

	*clone.Description = "red"
	clone.Name = "Gadget"

	if *orig.Description != "blue" {
		t.Errorf("Description mutated through clone: %s", *orig.Description)
	}
	if orig.Name != "Widget" {
		t.Errorf("Name mutated through clone: %s", orig.Name)
	}
}

func TestItemUpdate_Apply(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := created.Add(time.Hour)
	item := &Item{ID: "i1", Name: "Widget", IsActive: true, Quantity: 5, CreatedAt: created, UpdatedAt: created}

	inactive := false
	qty := 9
	got := ItemUpdate{Name: strPtr("Gadget"), IsActive: &inactive, Quantity: &qty}.Apply(item, now)

	if got.Name != "Gadget" || got.IsActive || got.Quantity != 9 {
		t.Errorf("unexpected result: %+v", got)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, now)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt changed: %v", got.CreatedAt)
	}
	if item.Name != "Widget" || item.Quantity != 5 {
		t.Errorf("original item mutated: %+v", item)
	}
}

func TestItemUpdate_IsEmpty(t *testing.T) {
	t.Parallel()

	if !(ItemUpdate{}).IsEmpty() {
		t.Error("zero update should be empty")
	}
	if (ItemUpdate{Name: strPtr("x")}).IsEmpty() {
		t.Error("update with name should not be empty")
	}
}

func TestItem_HasStock(t *testing.T) {
	t.Parallel()

	item := &Item{Quantity: 3}
	cases := map[int]bool{0: false, -1: false, 1: true, 3: true, 4: false}
	for qty, want := range cases {
		if got := item.HasStock(qty); got != want {
			t.Errorf("HasStock(%d) = %v, want %v", qty, got, want)
		}
	}
}

func TestCachedItem_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	tests := []struct {
		name string
		item *Item
	}{
		{
			name: "with description",
			item: &Item{ID: "i1", Name: "Widget", Description: strPtr("blue"), IsActive: true, Quantity: 4, UnitPriceCents: 1999, CreatedAt: now, UpdatedAt: now},
		},
		{
			name: "empty description is kept",
			item: &Item{ID: "i2", Name: "Gadget", Description: strPtr(""), CreatedAt: now, UpdatedAt: now},
		},
		{
			name: "nil description",
			item: &Item{ID: "i3", Name: "Bolt", CreatedAt: now, UpdatedAt: now},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.item.ToCachedItem().ToItem()
			if err != nil {
				t.Fatalf("ToItem: %v", err)
			}
			if !reflect.DeepEqual(got, tt.item) {
				t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, tt.item)
			}
		})
	}
}

func TestCachedItem_Malformed(t *testing.T) {
	t.Parallel()

	cached := &CachedItem{ID: "i1", Quantity: "lots"}
	if _, err := cached.ToItem(); err == nil {
		t.Error("expected error for malformed quantity")
	}
}

func TestPrincipal_HasScope(t *testing.T) {
	testCases := []struct {
		name     string
		scopes   []string
		checkFor string
		want     bool
	}{
		{"has exact scope", []string{ScopeRead, ScopeWrite}, ScopeRead, true},
		{"does not have scope", []string{ScopeRead}, ScopeWrite, false},
		{"admin implies read", []string{ScopeAdmin}, ScopeRead, true},
		{"admin implies write", []string{ScopeAdmin}, ScopeWrite, true},
		{"empty scopes", []string{}, ScopeRead, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := &Principal{Scopes: tc.scopes}
			if got := p.HasScope(tc.checkFor); got != tc.want {
				t.Errorf("HasScope(%s) = %v, want %v", tc.checkFor, got, tc.want)
			}
		})
	}

	var nilPrincipal *Principal
	if nilPrincipal.HasScope(ScopeRead) {
		t.Error("nil principal should have no scopes")
	}
}
