package promo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"tillpoint/internal/core/apperror"
	"tillpoint/internal/core/types"
	"tillpoint/pkg/logger"
)

// Engine evaluates all active promotions against a cart.
//
// Policy: promotions are evaluated in ascending priority order; discounts
// of combinable promotions are summed; the first non-combinable promotion
// that yields a non-zero discount stops evaluation of all subsequent
// promotions.
type Engine struct {
	repo Repository

	celEnv *cel.Env

	// compiled condition programs, keyed by definition ID + version
	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEngine creates a promotion engine.
func NewEngine(repo Repository) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("total_quantity", cel.DoubleType),
		cel.Variable("line_count", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	return &Engine{
		repo:     repo,
		celEnv:   env,
		programs: make(map[string]cel.Program),
	}, nil
}

// PreviewDiscount computes the total automatic discount for the cart as of
// now. Used both by the presentation layer (preview) and by the checkout
// orchestrator (authoritative pricing).
func (e *Engine) PreviewDiscount(ctx context.Context, cart Cart) (types.Money, error) {
	if len(cart.Lines) == 0 {
		return types.Zero(), nil
	}

	defs, err := e.repo.ListActive(ctx, time.Now().UTC())
	if err != nil {
		return types.Zero(), fmt.Errorf("list active promotions: %w", err)
	}

	return e.Total(ctx, defs, cart)
}

// Total evaluates the given definitions against the cart.
func (e *Engine) Total(ctx context.Context, defs []*Definition, cart Cart) (types.Money, error) {
	sorted := make([]*Definition, len(defs))
	copy(sorted, defs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	subtotal := cart.Subtotal()
	total := types.Zero()

	for _, def := range sorted {
		eligible, err := e.conditionHolds(ctx, def, cart)
		if err != nil {
			return types.Zero(), err
		}
		if !eligible {
			continue
		}

		discount, err := Evaluate(def, cart)
		if err != nil {
			return types.Zero(), err
		}
		if !discount.IsPositive() {
			continue
		}

		total = total.Add(discount)
		logger.Debug(ctx, "promotion applied",
			"promotion_id", def.ID,
			"type", def.Type,
			"discount", discount,
		)

		if !def.Combinable {
			break
		}
	}

	// Stacked promotions must never exceed what the cart is worth.
	if total.GreaterThan(subtotal) {
		total = subtotal
	}
	return total, nil
}

// conditionHolds evaluates the optional CEL eligibility expression.
func (e *Engine) conditionHolds(ctx context.Context, def *Definition, cart Cart) (bool, error) {
	if def.Condition == "" {
		return true, nil
	}

	prg, err := e.program(def)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"subtotal":       cart.Subtotal().InexactFloat64(),
		"total_quantity": cart.TotalQuantity().Float64(),
		"line_count":     int64(len(cart.Lines)),
	})
	if err != nil {
		return false, apperror.NewPromotionMisconfigured(def.ID.String(),
			"condition evaluation failed").WithCause(err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, apperror.NewPromotionMisconfigured(def.ID.String(),
			"condition must evaluate to a boolean")
	}
	return result, nil
}

func (e *Engine) program(def *Definition) (cel.Program, error) {
	key := fmt.Sprintf("%s:%d", def.ID, def.Version)

	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[key]; ok {
		return prg, nil
	}

	ast, issues := e.celEnv.Compile(def.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, apperror.NewPromotionMisconfigured(def.ID.String(),
			"condition does not compile").WithCause(issues.Err())
	}

	prg, err := e.celEnv.Program(ast)
	if err != nil {
		return nil, apperror.NewPromotionMisconfigured(def.ID.String(),
			"condition program construction failed").WithCause(err)
	}

	e.programs[key] = prg
	return prg, nil
}
