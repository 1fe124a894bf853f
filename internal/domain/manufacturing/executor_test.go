package manufacturing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/id"
	"tillpoint/internal/core/types"
	"tillpoint/internal/domain/catalogs/item"
	"tillpoint/internal/domain/ledger"
)

type fakeItems struct {
	items map[id.ID]*item.StockItem
	saved map[id.ID]item.StockItem
}

func newFakeItems(items ...*item.StockItem) *fakeItems {
	s := &fakeItems{items: make(map[id.ID]*item.StockItem)}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *fakeItems) GetForUpdate(_ context.Context, itemID id.ID) (*item.StockItem, error) {
	it, ok := s.items[itemID]
	if !ok {
		return nil, apperror.NewNotFound("item", itemID.String())
	}
	return it, nil
}

func (s *fakeItems) SetUnitCost(_ context.Context, itemID id.ID, cost types.Money) error {
	it, ok := s.items[itemID]
	if !ok {
		return apperror.NewNotFound("item", itemID.String())
	}
	it.UnitCost = cost
	return nil
}

func (s *fakeItems) AdjustQuantity(_ context.Context, itemID id.ID, delta types.Quantity) (types.Quantity, types.Quantity, error) {
	it, ok := s.items[itemID]
	if !ok {
		return 0, 0, apperror.NewNotFound("item", itemID.String())
	}
	before := it.Quantity
	after := before + delta
	if after.IsNegative() {
		return 0, 0, apperror.NewInsufficientStock(apperror.Shortfall{
			ItemID:    itemID.String(),
			Name:      it.Name,
			Requested: delta.Abs().Float64(),
			Available: before.Float64(),
		})
	}
	it.Quantity = after
	return before, after, nil
}

func (s *fakeItems) snapshot() {
	s.saved = make(map[id.ID]item.StockItem, len(s.items))
	for itemID, it := range s.items {
		s.saved[itemID] = *it
	}
}

func (s *fakeItems) restore() {
	for itemID, it := range s.saved {
		copied := it
		*s.items[itemID] = copied
	}
}

type fakeLedgerRepo struct {
	movements []ledger.StockMovement
}

func (r *fakeLedgerRepo) CreateMovements(_ context.Context, movements []ledger.StockMovement) error {
	r.movements = append(r.movements, movements...)
	return nil
}

func (r *fakeLedgerRepo) GetMovementsByReference(_ context.Context, referenceID id.ID) ([]ledger.StockMovement, error) {
	var out []ledger.StockMovement
	for _, m := range r.movements {
		if m.ReferenceID == referenceID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeLedgerRepo) GetMovementHistory(_ context.Context, itemID id.ID, _ ledger.MovementFilter) ([]ledger.StockMovement, error) {
	return nil, nil
}

func (r *fakeLedgerRepo) GetTurnover(context.Context, ledger.TurnoverFilter) (ledger.Turnover, error) {
	return ledger.Turnover{}, nil
}

type fakeProcessRepo struct {
	processes map[id.ID]*Process
}

func (r *fakeProcessRepo) Create(_ context.Context, p *Process) error {
	r.processes[p.ID] = p
	return nil
}

func (r *fakeProcessRepo) Update(_ context.Context, p *Process) error {
	r.processes[p.ID] = p
	return nil
}

func (r *fakeProcessRepo) GetByID(_ context.Context, processID id.ID) (*Process, error) {
	p, ok := r.processes[processID]
	if !ok {
		return nil, apperror.NewNotFound("process", processID.String())
	}
	return p, nil
}

func (r *fakeProcessRepo) List(context.Context, bool) ([]Process, error) { return nil, nil }

type fakeBatchRepo struct {
	batches map[id.ID]*Batch
	marks   map[id.ID]Batch
}

func (r *fakeBatchRepo) Create(_ context.Context, b *Batch) error {
	r.batches[b.ID] = b
	return nil
}

func (r *fakeBatchRepo) Update(_ context.Context, b *Batch) error {
	r.batches[b.ID] = b
	return nil
}

func (r *fakeBatchRepo) GetByID(_ context.Context, batchID id.ID) (*Batch, error) {
	b, ok := r.batches[batchID]
	if !ok {
		return nil, apperror.NewNotFound("batch", batchID.String())
	}
	return b, nil
}

func (r *fakeBatchRepo) List(context.Context, BatchFilter) ([]Batch, error) { return nil, nil }

func (r *fakeBatchRepo) snapshot() {
	r.marks = make(map[id.ID]Batch, len(r.batches))
	for batchID, b := range r.batches {
		r.marks[batchID] = *b
	}
}

func (r *fakeBatchRepo) restore() {
	for batchID := range r.batches {
		if saved, ok := r.marks[batchID]; ok {
			copied := saved
			*r.batches[batchID] = copied
		} else {
			delete(r.batches, batchID)
		}
	}
}

type fakeNumbers struct{ n int }

func (f *fakeNumbers) Next(context.Context, time.Time) (string, error) {
	f.n++
	return fmt.Sprintf("MB-%06d", f.n), nil
}

type fakeTx struct {
	items   *fakeItems
	ledger  *fakeLedgerRepo
	batches *fakeBatchRepo
}

func (f *fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.items.snapshot()
	f.batches.snapshot()
	mark := len(f.ledger.movements)
	if err := fn(ctx); err != nil {
		f.items.restore()
		f.batches.restore()
		f.ledger.movements = f.ledger.movements[:mark]
		return err
	}
	return nil
}

type harness struct {
	items     *fakeItems
	ledger    *fakeLedgerRepo
	processes *fakeProcessRepo
	batches   *fakeBatchRepo
	exec      *Executor
}

func newHarness(items ...*item.StockItem) *harness {
	store := newFakeItems(items...)
	ledgerRepo := &fakeLedgerRepo{}
	processRepo := &fakeProcessRepo{processes: make(map[id.ID]*Process)}
	batchRepo := &fakeBatchRepo{batches: make(map[id.ID]*Batch)}
	stock := ledger.NewService(ledgerRepo, store)
	exec := NewExecutor(processRepo, batchRepo, store, stock, &fakeNumbers{}, &fakeTx{
		items:   store,
		ledger:  ledgerRepo,
		batches: batchRepo,
	})
	return &harness{items: store, ledger: ledgerRepo, processes: processRepo, batches: batchRepo, exec: exec}
}

func stockFixture(name string, qty float64, cost string) *item.StockItem {
	it := item.NewStockItem("M-"+name, name, item.TypeGoods)
	it.Quantity = types.NewQuantityFromFloat64(qty)
	it.UnitCost = types.MustMoney(cost)
	return it
}

func processFixture(output *item.StockItem, wastage string, ingredients ...Ingredient) *Process {
	p := &Process{
		OutputItemID:   output.ID,
		WastagePercent: types.MustMoney(wastage),
		Ingredients:    ingredients,
	}
	p.ID = id.New()
	p.Code = "P-" + output.Code
	p.Name = output.Name + " process"
	return p
}

func TestComputeMaxYield_MinOverIngredients(t *testing.T) {
	flour := stockFixture("flour", 10, "2.00")
	water := stockFixture("water", 100, "0.10")
	bread := stockFixture("bread", 0, "0.00")
	h := newHarness(flour, water, bread)

	// One bread takes 2 flour and 1 water: flour bounds yield at 5.
	process := processFixture(bread, "0",
		Ingredient{ItemID: flour.ID, PerUnit: types.NewQuantityFromFloat64(2)},
		Ingredient{ItemID: water.ID, PerUnit: types.NewQuantityFromFloat64(1)},
	)
	h.processes.processes[process.ID] = process

	yield, err := h.exec.ComputeMaxYield(context.Background(), process.ID)
	if err != nil {
		t.Fatalf("max yield: %v", err)
	}
	if got := yield.Float64(); got != 5 {
		t.Errorf("max yield = %v, want 5", got)
	}
}

func TestComputeMaxYield_FractionalFloor(t *testing.T) {
	syrup := stockFixture("syrup", 1, "3.00")
	out := stockFixture("drink", 0, "0.00")
	h := newHarness(syrup, out)

	process := processFixture(out, "0",
		Ingredient{ItemID: syrup.ID, PerUnit: types.NewQuantityFromFloat64(0.3)},
	)
	h.processes.processes[process.ID] = process

	yield, err := h.exec.ComputeMaxYield(context.Background(), process.ID)
	if err != nil {
		t.Fatalf("max yield: %v", err)
	}
	// 1 / 0.3 floored at quantity resolution.
	if got := yield.Float64(); got != 3.3333 {
		t.Errorf("max yield = %v, want 3.3333", got)
	}
}

func TestExecuteBatch_ConsumesAndProduces(t *testing.T) {
	flour := stockFixture("flour", 10, "2.00")
	water := stockFixture("water", 100, "0.10")
	bread := stockFixture("bread", 0, "0.00")
	h := newHarness(flour, water, bread)

	process := processFixture(bread, "0",
		Ingredient{ItemID: flour.ID, PerUnit: types.NewQuantityFromFloat64(2)},
		Ingredient{ItemID: water.ID, PerUnit: types.NewQuantityFromFloat64(1)},
	)
	h.processes.processes[process.ID] = process

	ctx := context.Background()
	batch, err := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(4))
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if batch.Status != StatusPlanned || batch.Number == "" {
		t.Fatalf("planned batch malformed: %+v", batch)
	}

	done, err := h.exec.ExecuteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if done.Status != StatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if got := flour.Quantity.Float64(); got != 2 {
		t.Errorf("flour stock = %v, want 2", got)
	}
	if got := water.Quantity.Float64(); got != 96 {
		t.Errorf("water stock = %v, want 96", got)
	}
	if got := bread.Quantity.Float64(); got != 4 {
		t.Errorf("bread stock = %v, want 4", got)
	}
	// 8 flour at 2.00 plus 4 water at 0.10.
	if !done.IngredientCost.Equal(types.MustMoney("16.40")) {
		t.Errorf("ingredient cost = %s, want 16.40", done.IngredientCost)
	}
	if !done.UnitCost.Equal(types.MustMoney("4.10")) {
		t.Errorf("batch unit cost = %s, want 4.10", done.UnitCost)
	}
	if !bread.UnitCost.Equal(types.MustMoney("4.10")) {
		t.Errorf("output cost = %s, want 4.10", bread.UnitCost)
	}
	// Two outbound movements plus one inbound.
	if len(h.ledger.movements) != 3 {
		t.Fatalf("movements = %d, want 3", len(h.ledger.movements))
	}
	for _, m := range h.ledger.movements {
		if !m.Reconciles() {
			t.Errorf("movement does not reconcile: %+v", m)
		}
		if m.ReferenceID != batch.ID {
			t.Error("movement must reference the batch")
		}
	}
}

func TestExecuteBatch_WeightedAverageCost(t *testing.T) {
	sugar := stockFixture("sugar", 50, "1.00")
	candy := stockFixture("candy", 10, "2.00")
	h := newHarness(sugar, candy)

	process := processFixture(candy, "0",
		Ingredient{ItemID: sugar.ID, PerUnit: types.NewQuantityFromFloat64(1)},
	)
	h.processes.processes[process.ID] = process

	ctx := context.Background()
	batch, _ := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(10))
	if _, err := h.exec.ExecuteBatch(ctx, batch.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Existing 10 at 2.00 merged with produced 10 costing 10.00 total.
	if !candy.UnitCost.Equal(types.MustMoney("1.50")) {
		t.Errorf("weighted cost = %s, want 1.50", candy.UnitCost)
	}
	if got := candy.Quantity.Float64(); got != 20 {
		t.Errorf("candy stock = %v, want 20", got)
	}
}

func TestExecuteBatch_Wastage(t *testing.T) {
	milk := stockFixture("milk", 100, "0.50")
	cheese := stockFixture("cheese", 0, "0.00")
	h := newHarness(milk, cheese)

	process := processFixture(cheese, "10",
		Ingredient{ItemID: milk.ID, PerUnit: types.NewQuantityFromFloat64(5)},
	)
	h.processes.processes[process.ID] = process

	ctx := context.Background()
	batch, _ := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(10))
	done, err := h.exec.ExecuteBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if got := done.ProducedQuantity.Float64(); got != 9 {
		t.Errorf("produced = %v, want 9 (10 minus 10%% wastage)", got)
	}
	if got := cheese.Quantity.Float64(); got != 9 {
		t.Errorf("cheese stock = %v, want 9", got)
	}
	// Full requested consumption: 50 milk at 0.50 spread over 9 produced.
	if !done.IngredientCost.Equal(types.MustMoney("25.00")) {
		t.Errorf("ingredient cost = %s, want 25.00", done.IngredientCost)
	}
}

func TestExecuteBatch_ShortfallRollsBack(t *testing.T) {
	flour := stockFixture("flour", 3, "2.00")
	water := stockFixture("water", 1, "0.10")
	bread := stockFixture("bread", 0, "0.00")
	h := newHarness(flour, water, bread)

	process := processFixture(bread, "0",
		Ingredient{ItemID: flour.ID, PerUnit: types.NewQuantityFromFloat64(2)},
		Ingredient{ItemID: water.ID, PerUnit: types.NewQuantityFromFloat64(1)},
	)
	h.processes.processes[process.ID] = process

	ctx := context.Background()
	batch, _ := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(4))
	_, err := h.exec.ExecuteBatch(ctx, batch.ID)
	if !apperror.IsInsufficientStock(err) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	appErr, _ := apperror.AsAppError(err)
	shortfalls, _ := appErr.Details["shortfalls"].([]apperror.Shortfall)
	if len(shortfalls) != 2 {
		t.Errorf("shortfalls = %d, want 2 (flour and water)", len(shortfalls))
	}
	if flour.Quantity.Float64() != 3 || water.Quantity.Float64() != 1 {
		t.Error("failed execution must leave stock untouched")
	}
	if got := h.batches.batches[batch.ID].Status; got != StatusPlanned {
		t.Errorf("batch status = %s, want planned after rollback", got)
	}
	if len(h.ledger.movements) != 0 {
		t.Error("failed execution must write no movements")
	}
}

func TestExecuteBatch_StateGuards(t *testing.T) {
	sugar := stockFixture("sugar", 50, "1.00")
	candy := stockFixture("candy", 0, "0.00")
	h := newHarness(sugar, candy)

	process := processFixture(candy, "0",
		Ingredient{ItemID: sugar.ID, PerUnit: types.NewQuantityFromFloat64(1)},
	)
	h.processes.processes[process.ID] = process

	ctx := context.Background()
	batch, _ := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(5))
	if _, err := h.exec.ExecuteBatch(ctx, batch.ID); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if _, err := h.exec.ExecuteBatch(ctx, batch.ID); err == nil {
		t.Error("re-executing a completed batch must fail")
	}
	if _, err := h.exec.CancelBatch(ctx, batch.ID); err == nil {
		t.Error("cancelling a completed batch must fail")
	}

	second, _ := h.exec.PlanBatch(ctx, process.ID, types.NewQuantityFromFloat64(5))
	cancelled, err := h.exec.CancelBatch(ctx, second.ID)
	if err != nil {
		t.Fatalf("cancel planned: %v", err)
	}
	if cancelled.Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if _, err := h.exec.ExecuteBatch(ctx, second.ID); err == nil {
		t.Error("executing a cancelled batch must fail")
	}
}
