package promo

import (
	"context"
	"testing"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

func definition(promoType PromotionType) *Definition {
	return &Definition{
		Catalog: entity.NewCatalog("PR-1", "test promotion"),
		Type:    promoType,
	}
}

func cartOf(lines ...CartLine) Cart {
	return Cart{Lines: lines}
}

func line(itemID id.ID, qty float64, price string) CartLine {
	return CartLine{
		ItemID:    itemID,
		Quantity:  types.NewQuantityFromFloat64(qty),
		UnitPrice: types.MustMoney(price),
	}
}

func TestEvaluate_Percentage(t *testing.T) {
	itemA := id.New()
	cap := types.MustMoney("3.00")

	tests := []struct {
		name string
		def  func(*Definition)
		cart Cart
		want string
	}{
		{
			name: "ten percent of subtotal",
			def: func(d *Definition) {
				d.Value = types.MustMoney("10")
			},
			cart: cartOf(line(itemA, 2, "20.00")),
			want: "4",
		},
		{
			name: "below minimum amount yields nothing",
			def: func(d *Definition) {
				d.Value = types.MustMoney("10")
				d.MinimumAmount = types.MustMoney("50.00")
			},
			cart: cartOf(line(itemA, 2, "20.00")),
			want: "0",
		},
		{
			name: "capped by maximum discount",
			def: func(d *Definition) {
				d.Value = types.MustMoney("10")
				d.MaximumDiscount = &cap
			},
			cart: cartOf(line(itemA, 2, "20.00")),
			want: "3",
		},
		{
			name: "over one hundred percent clamps to base",
			def: func(d *Definition) {
				d.Value = types.MustMoney("150")
			},
			cart: cartOf(line(itemA, 1, "10.00")),
			want: "10",
		},
		{
			name: "item scoped ignores other lines",
			def: func(d *Definition) {
				d.Value = types.MustMoney("50")
				d.ItemIDs = []id.ID{itemA}
			},
			cart: cartOf(line(itemA, 1, "10.00"), line(id.New(), 5, "99.00")),
			want: "5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := definition(TypePercentage)
			tt.def(d)
			got, err := Evaluate(d, tt.cart)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("discount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_FixedAmount(t *testing.T) {
	itemA := id.New()

	tests := []struct {
		name string
		def  func(*Definition)
		cart Cart
		want string
	}{
		{
			name: "flat amount over threshold",
			def: func(d *Definition) {
				d.Value = types.MustMoney("5.00")
				d.MinimumAmount = types.MustMoney("30.00")
			},
			cart: cartOf(line(itemA, 2, "20.00")),
			want: "5",
		},
		{
			name: "under threshold yields nothing",
			def: func(d *Definition) {
				d.Value = types.MustMoney("5.00")
				d.MinimumAmount = types.MustMoney("50.00")
			},
			cart: cartOf(line(itemA, 2, "20.00")),
			want: "0",
		},
		{
			name: "never exceeds applicable subtotal",
			def: func(d *Definition) {
				d.Value = types.MustMoney("15.00")
			},
			cart: cartOf(line(itemA, 1, "8.00")),
			want: "8",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := definition(TypeFixedAmount)
			tt.def(d)
			got, err := Evaluate(d, tt.cart)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("discount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_QuantityBreak(t *testing.T) {
	itemA := id.New()

	// Three for ten dollars on a four dollar item.
	d := definition(TypeQuantityBreak)
	d.ItemIDs = []id.ID{itemA}
	d.MinimumQuantity = types.NewQuantityFromFloat64(3)
	d.Value = types.MustMoney("10.00")

	tests := []struct {
		name string
		qty  float64
		want string
	}{
		{"no complete bundle", 2, "0"},
		{"one bundle", 3, "2"},
		{"partial units earn nothing", 5, "2"},
		{"two bundles", 7, "4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(d, cartOf(line(itemA, tt.qty, "4.00")))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("discount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_QuantityBreak_MergesLinesOfSameItem(t *testing.T) {
	itemA := id.New()
	d := definition(TypeQuantityBreak)
	d.ItemIDs = []id.ID{itemA}
	d.MinimumQuantity = types.NewQuantityFromFloat64(3)
	d.Value = types.MustMoney("10.00")

	// 2 + 1 units across two lines form one bundle.
	got, err := Evaluate(d, cartOf(line(itemA, 2, "4.00"), line(itemA, 1, "4.00")))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if got.String() != "2" {
		t.Errorf("discount = %s, want 2", got)
	}
}

func TestEvaluate_QuantityBreak_Misconfigured(t *testing.T) {
	d := definition(TypeQuantityBreak)
	d.MinimumQuantity = types.NewQuantityFromFloat64(3)
	d.Value = types.MustMoney("10.00")
	// No item scope: a bundled price cannot apply to arbitrary items.
	_, err := Evaluate(d, cartOf(line(id.New(), 3, "4.00")))
	if !isPromotionMisconfigured(err) {
		t.Fatalf("expected misconfigured, got %v", err)
	}
}

func TestEvaluate_BuyXGetY(t *testing.T) {
	itemA := id.New()

	// Pay 2, receive 3: every third unit is free.
	d := definition(TypeBuyXGetY)
	d.ItemIDs = []id.ID{itemA}
	d.MinimumQuantity = types.NewQuantityFromFloat64(2)
	d.Value = types.MustMoney("3")

	tests := []struct {
		name string
		qty  float64
		want string
	}{
		{"below bundle", 2, "0"},
		{"one bundle one free", 3, "4"},
		{"partial second bundle", 5, "4"},
		{"two bundles two free", 7, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(d, cartOf(line(itemA, tt.qty, "4.00")))
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("discount = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluate_BuyXGetY_NoFreeUnits(t *testing.T) {
	d := definition(TypeBuyXGetY)
	d.MinimumQuantity = types.NewQuantityFromFloat64(3)
	d.Value = types.MustMoney("3")
	_, err := Evaluate(d, cartOf(line(id.New(), 6, "4.00")))
	if !isPromotionMisconfigured(err) {
		t.Fatalf("expected misconfigured, got %v", err)
	}
}

func isPromotionMisconfigured(err error) bool {
	appErr, ok := apperror.AsAppError(err)
	return ok && appErr.Code == apperror.CodePromotionMisconfigured
}

func TestDefinition_Validate_RejectsMisconfiguration(t *testing.T) {
	itemA := id.New()

	tests := []struct {
		name string
		def  func(*Definition)
	}{
		{
			name: "negative percentage",
			def: func(d *Definition) {
				d.Type = TypePercentage
				d.Value = types.MustMoney("-5")
			},
		},
		{
			name: "quantity break without items",
			def: func(d *Definition) {
				d.Type = TypeQuantityBreak
				d.MinimumQuantity = types.NewQuantityFromFloat64(3)
				d.Value = types.MustMoney("10.00")
			},
		},
		{
			name: "buy x get y with no free units",
			def: func(d *Definition) {
				d.Type = TypeBuyXGetY
				d.MinimumQuantity = types.NewQuantityFromFloat64(3)
				d.Value = types.MustMoney("3")
				d.ItemIDs = []id.ID{itemA}
			},
		},
		{
			name: "buy x get y receiving fewer than paid",
			def: func(d *Definition) {
				d.Type = TypeBuyXGetY
				d.MinimumQuantity = types.NewQuantityFromFloat64(3)
				d.Value = types.MustMoney("2")
				d.ItemIDs = []id.ID{itemA}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := definition(TypeBuyXGetY)
			tt.def(d)
			if err := d.Validate(context.Background()); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}

	// A working buy-x-get-y still passes.
	d := definition(TypeBuyXGetY)
	d.MinimumQuantity = types.NewQuantityFromFloat64(2)
	d.Value = types.MustMoney("3")
	d.ItemIDs = []id.ID{itemA}
	if err := d.Validate(context.Background()); err != nil {
		t.Errorf("valid definition rejected: %v", err)
	}
}
