package types

import (
	"encoding/json"
	"testing"
)

func TestQuantity_FixedPointRoundTrip(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0000"},
		{1, "1.0000"},
		{2.5, "2.5000"},
		{0.0001, "0.0001"},
		{-3.25, "-3.2500"},
		{1234.5678, "1234.5678"},
	}
	for _, tt := range tests {
		q := NewQuantityFromFloat64(tt.in)
		if got := q.String(); got != tt.want {
			t.Errorf("Quantity(%v).String() = %q, want %q", tt.in, got, tt.want)
		}
		if got := q.Float64(); got != tt.in {
			t.Errorf("Quantity(%v).Float64() = %v", tt.in, got)
		}
	}
}

func TestQuantity_Mul(t *testing.T) {
	a := NewQuantityFromFloat64(2.5)
	b := NewQuantityFromFloat64(0.5)
	if got := a.Mul(b).Float64(); got != 1.25 {
		t.Errorf("2.5 * 0.5 = %v, want 1.25", got)
	}
}

func TestQuantity_JSON(t *testing.T) {
	q := NewQuantityFromFloat64(3.75)
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	// Encodes as a bare JSON number with four fixed digits.
	if string(data) != "3.7500" {
		t.Errorf("marshal = %s, want 3.7500", data)
	}

	// Quoted strings parse as well.
	var fromString Quantity
	if err := json.Unmarshal([]byte(`"1.25"`), &fromString); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if fromString.Float64() != 1.25 {
		t.Errorf("from string = %v, want 1.25", fromString)
	}

	var back Quantity
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != q {
		t.Errorf("round trip = %v, want %v", back, q)
	}

	// Bare numbers parse too.
	if err := json.Unmarshal([]byte("2.5"), &back); err != nil {
		t.Fatalf("unmarshal bare number: %v", err)
	}
	if back.Float64() != 2.5 {
		t.Errorf("bare number = %v, want 2.5", back)
	}
}

func TestMoney_Construction(t *testing.T) {
	m := MustMoney("19.99")
	if got := m.StringFixed(2); got != "19.99" {
		t.Errorf("StringFixed = %s", got)
	}
	if _, err := NewMoneyFromString("not a number"); err == nil {
		t.Error("invalid money string must fail")
	}
}
