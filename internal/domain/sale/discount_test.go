package sale

import (
	"testing"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

func lineFixture(name, price string, qty float64) *CartLine {
	p := types.MustMoney(price)
	return &CartLine{
		LineID:         id.New(),
		ItemID:         id.New(),
		ItemName:       name,
		Quantity:       types.NewQuantityFromFloat64(qty),
		UnitPrice:      p,
		OriginalPrice:  p,
		UnitCost:       types.Zero(),
		UnitDiscount:   types.Zero(),
		DiscountAmount: types.Zero(),
	}
}

func totalDiscount(lines []*CartLine) types.Money {
	total := types.Zero()
	for _, l := range lines {
		total = total.Add(l.DiscountAmount)
	}
	return total
}

func TestDistribute_Proportional(t *testing.T) {
	lines := []*CartLine{
		lineFixture("a", "30.00", 1),
		lineFixture("b", "10.00", 1),
	}
	meta := DiscountMeta{Reason: "loyal customer", Authorizer: "sup-1", Role: "supervisor"}

	if err := Distribute(lines, types.MustMoney("4.00"), meta); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if got := lines[0].UnitDiscount.String(); got != "3" {
		t.Errorf("line a discount = %s, want 3", got)
	}
	if got := lines[1].UnitDiscount.String(); got != "1" {
		t.Errorf("line b discount = %s, want 1", got)
	}
	if got := lines[0].UnitPrice.String(); got != "27" {
		t.Errorf("line a price = %s, want 27", got)
	}
	if lines[0].DiscountReason != "loyal customer" || lines[0].DiscountAuthorizer != "sup-1" {
		t.Error("audit metadata not stamped on line")
	}
}

func TestDistribute_LastLineAbsorbsRemainder(t *testing.T) {
	// Three equal thirds cannot split $10.00 evenly in cents.
	lines := []*CartLine{
		lineFixture("a", "3.33", 1),
		lineFixture("b", "3.33", 1),
		lineFixture("c", "3.34", 1),
	}
	lump := types.MustMoney("1.00")

	if err := Distribute(lines, lump, DiscountMeta{Reason: "r", Authorizer: "a"}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if !totalDiscount(lines).Equal(lump) {
		t.Errorf("distributed shares sum to %s, want exactly %s", totalDiscount(lines), lump)
	}
	// First two shares round to 0.33, last absorbs 0.34.
	if got := lines[2].DiscountAmount.String(); got != "0.34" {
		t.Errorf("last line share = %s, want 0.34", got)
	}
}

func TestDistribute_ExactWithFractionalQuantities(t *testing.T) {
	// A dollar over 9.99 + 0.01 puts the whole share on a qty-3 line.
	// 1.00 has no finite per-unit representation over 3 units; the line
	// amount must still carry it in full.
	lines := []*CartLine{
		lineFixture("a", "3.33", 3),
		lineFixture("b", "0.01", 1),
	}
	lump := types.MustMoney("1.00")

	if err := Distribute(lines, lump, DiscountMeta{Reason: "r", Authorizer: "a"}); err != nil {
		t.Fatalf("distribute: %v", err)
	}

	if !totalDiscount(lines).Equal(lump) {
		t.Errorf("line discounts sum to %s, want exactly %s", totalDiscount(lines), lump)
	}
	if got := lines[0].Subtotal().String(); got != "8.99" {
		t.Errorf("line a subtotal = %s, want 8.99", got)
	}
	// Derived per-unit view rounds down and never feeds back into totals.
	if got := lines[0].UnitDiscount.String(); got != "0.3333" {
		t.Errorf("line a unit discount = %s, want 0.3333", got)
	}
	if err := lines[0].checkConsistent(); err != nil {
		t.Errorf("line a inconsistent after distribution: %v", err)
	}
}

func TestDistribute_FullDiscountToZero(t *testing.T) {
	lines := []*CartLine{
		lineFixture("a", "5.00", 2),
	}
	if err := Distribute(lines, types.MustMoney("10.00"), DiscountMeta{Reason: "r", Authorizer: "a"}); err != nil {
		t.Fatalf("distribute to zero should be allowed: %v", err)
	}
	if !lines[0].UnitPrice.IsZero() {
		t.Errorf("unit price = %s, want 0", lines[0].UnitPrice)
	}
}

func TestDistribute_AllOrNothing(t *testing.T) {
	tests := []struct {
		name  string
		lines []*CartLine
		lump  string
	}{
		{"exceeds subtotal", []*CartLine{lineFixture("a", "5.00", 1)}, "6.00"},
		{"zero amount", []*CartLine{lineFixture("a", "5.00", 1)}, "0.00"},
		{"negative amount", []*CartLine{lineFixture("a", "5.00", 1)}, "-1.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Distribute(tt.lines, types.MustMoney(tt.lump), DiscountMeta{Reason: "r", Authorizer: "a"})
			if !apperror.IsInvalidDiscount(err) {
				t.Fatalf("expected invalid discount, got %v", err)
			}
			for _, l := range tt.lines {
				if !l.DiscountAmount.IsZero() || !l.UnitDiscount.IsZero() || !l.UnitPrice.Equal(l.OriginalPrice) {
					t.Error("failed distribution must leave lines untouched")
				}
			}
		})
	}
}

func TestDistribute_EmptyCart(t *testing.T) {
	err := Distribute(nil, types.MustMoney("1.00"), DiscountMeta{Reason: "r", Authorizer: "a"})
	if !apperror.IsEmptyCart(err) {
		t.Fatalf("expected empty cart error, got %v", err)
	}
}

func TestApplyManualDiscount_RequiresAudit(t *testing.T) {
	cart := NewCart()
	soda := goodsFixture("soda", 10, "2.50")
	cart.AddLine(soda, types.NewQuantityFromFloat64(2))

	if err := ApplyManualDiscount(cart, types.MustMoney("1.00"), DiscountMeta{Authorizer: "sup-1"}); err == nil {
		t.Error("missing reason should fail")
	}
	if err := ApplyManualDiscount(cart, types.MustMoney("1.00"), DiscountMeta{Reason: "damaged box"}); err == nil {
		t.Error("missing authorizer should fail")
	}
	if err := ApplyManualDiscount(cart, types.MustMoney("1.00"), DiscountMeta{Reason: "damaged box", Authorizer: "sup-1"}); err != nil {
		t.Fatalf("valid manual discount: %v", err)
	}
	if !cart.TotalDiscount().Equal(types.MustMoney("1.00")) {
		t.Errorf("cart total discount = %s, want 1.00", cart.TotalDiscount())
	}
}
