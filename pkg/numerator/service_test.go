package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences upsert: every call bumps the
// stored value by the increment argument (1 for strict).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.calls++
	return &mockRow{val: m.currentValue}
}

var testPeriod = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("TK")

	num, err := svc.GetNextNumber(ctx, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TK-2026-00001" {
		t.Errorf("expected TK-2026-00001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TK-2026-00002" {
		t.Errorf("expected TK-2026-00002, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("strict strategy must hit the DB per number, calls = %d", q.calls)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("MB")
	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	// First call reserves 1..10; DB value jumps to 10.
	num, err := svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "MB-2026-00001" {
		t.Errorf("expected MB-2026-00001, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value 10, got %d", q.currentValue)
	}

	// Second call comes from memory; DB untouched.
	num, _ = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if num != "MB-2026-00002" {
		t.Errorf("expected MB-2026-00002, got %s", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to stay 10, got %d", q.currentValue)
	}

	// Exhausting the range triggers a fresh reservation.
	for i := 0; i < 8; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	}
	num, _ = svc.GetNextNumber(ctx, cfg, opts, testPeriod)
	if num != "MB-2026-00011" {
		t.Errorf("expected MB-2026-00011, got %s", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value 20, got %d", q.currentValue)
	}
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	tests := []struct {
		reset string
		want  string
	}{
		{"year", "TK_2026"},
		{"month", "TK_2026_03"},
		{"never", "TK"},
	}
	for _, tt := range tests {
		cfg := Config{Prefix: "TK", ResetPeriod: tt.reset}
		if got := buildKey(cfg, testPeriod); got != tt.want {
			t.Errorf("buildKey(%s) = %s, want %s", tt.reset, got, tt.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	if got := ParseNumber("TK-2026-00042"); got != 42 {
		t.Errorf("ParseNumber = %d, want 42", got)
	}
	if got := ParseNumber("TK-00007"); got != 7 {
		t.Errorf("ParseNumber = %d, want 7", got)
	}
	if got := ParseNumber("garbage"); got != -1 {
		t.Errorf("ParseNumber = %d, want -1", got)
	}
}

func TestSequence_Next(t *testing.T) {
	q := &mockQuerier{}
	seq := NewSequence(New(q), "TK", StrategyStrict)

	num, err := seq.Next(context.Background(), testPeriod)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "TK-2026-00001" {
		t.Errorf("expected TK-2026-00001, got %s", num)
	}
}
