package promo

import (
	"context"
	"testing"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/entity"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
)

type fakeRepo struct {
	defs []*Definition
}

func (r *fakeRepo) Create(_ context.Context, def *Definition) error {
	r.defs = append(r.defs, def)
	return nil
}

func (r *fakeRepo) Update(context.Context, *Definition) error { return nil }

func (r *fakeRepo) GetByID(_ context.Context, defID id.ID) (*Definition, error) {
	for _, d := range r.defs {
		if d.ID == defID {
			return d, nil
		}
	}
	return nil, apperror.NewNotFound("promotion", defID.String())
}

func (r *fakeRepo) ListActive(_ context.Context, at time.Time) ([]*Definition, error) {
	var out []*Definition
	for _, d := range r.defs {
		if d.IsActiveAt(at) {
			out = append(out, d)
		}
	}
	return out, nil
}

func percentPromo(name string, percent string, priority int, combinable bool) *Definition {
	d := &Definition{
		Catalog:    entity.NewCatalog("PR-"+name, name),
		Type:       TypePercentage,
		Value:      types.MustMoney(percent),
		Combinable: combinable,
		Priority:   priority,
	}
	return d
}

func newTestEngine(t *testing.T, defs ...*Definition) *Engine {
	t.Helper()
	engine, err := NewEngine(&fakeRepo{defs: defs})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func TestEngine_CombinablePromotionsStack(t *testing.T) {
	engine := newTestEngine(t,
		percentPromo("spring", "10", 1, true),
		percentPromo("loyalty", "5", 2, true),
	)

	cart := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "15" {
		t.Errorf("stacked discount = %s, want 15", total)
	}
}

func TestEngine_NonCombinableStopsEvaluation(t *testing.T) {
	engine := newTestEngine(t,
		percentPromo("exclusive", "20", 1, false),
		percentPromo("later", "10", 2, true),
	)

	cart := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "20" {
		t.Errorf("discount = %s, want 20 (exclusive only)", total)
	}
}

func TestEngine_ZeroYieldNonCombinableDoesNotStop(t *testing.T) {
	exclusive := percentPromo("exclusive", "20", 1, false)
	exclusive.MinimumAmount = types.MustMoney("500.00")
	engine := newTestEngine(t,
		exclusive,
		percentPromo("later", "10", 2, true),
	)

	cart := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "10" {
		t.Errorf("discount = %s, want 10 (exclusive yielded nothing)", total)
	}
}

func TestEngine_PriorityOrdersEvaluation(t *testing.T) {
	// The non-combinable promotion sits at a lower priority number, so it
	// runs first and wins regardless of list order.
	engine := newTestEngine(t,
		percentPromo("second", "10", 5, true),
		percentPromo("first", "25", 1, false),
	)

	cart := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "25" {
		t.Errorf("discount = %s, want 25", total)
	}
}

func TestEngine_TotalCappedAtSubtotal(t *testing.T) {
	engine := newTestEngine(t,
		percentPromo("a", "80", 1, true),
		percentPromo("b", "80", 2, true),
	)

	cart := cartOf(line(id.New(), 1, "10.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "10" {
		t.Errorf("discount = %s, want capped at 10", total)
	}
}

func TestEngine_ExpiredPromotionSkipped(t *testing.T) {
	expired := percentPromo("expired", "50", 1, true)
	expired.ValidFrom = time.Now().Add(-48 * time.Hour)
	expired.ValidTo = time.Now().Add(-24 * time.Hour)
	engine := newTestEngine(t, expired)

	cart := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), cart)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("discount = %s, want 0", total)
	}
}

func TestEngine_ConditionGatesEligibility(t *testing.T) {
	gated := percentPromo("bulk", "10", 1, true)
	gated.Condition = "subtotal >= 50.0 && line_count >= 2"
	engine := newTestEngine(t, gated)

	small := cartOf(line(id.New(), 1, "100.00"))
	total, err := engine.PreviewDiscount(context.Background(), small)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("single line cart must not qualify, got %s", total)
	}

	qualifying := cartOf(line(id.New(), 1, "60.00"), line(id.New(), 1, "40.00"))
	total, err = engine.PreviewDiscount(context.Background(), qualifying)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if total.String() != "10" {
		t.Errorf("discount = %s, want 10", total)
	}
}

func TestEngine_BadConditionSurfacesMisconfiguration(t *testing.T) {
	broken := percentPromo("broken", "10", 1, true)
	broken.Condition = "subtotal ++ nonsense"
	engine := newTestEngine(t, broken)

	cart := cartOf(line(id.New(), 1, "100.00"))
	_, err := engine.PreviewDiscount(context.Background(), cart)
	if !isPromotionMisconfigured(err) {
		t.Fatalf("expected misconfigured, got %v", err)
	}
}

func TestEngine_EmptyCartShortCircuits(t *testing.T) {
	engine := newTestEngine(t, percentPromo("any", "10", 1, true))
	total, err := engine.PreviewDiscount(context.Background(), Cart{})
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if !total.IsZero() {
		t.Errorf("empty cart discount = %s, want 0", total)
	}
}
