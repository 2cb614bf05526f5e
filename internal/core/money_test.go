package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"1200", 120000, true},
		{"-1", -100, true},
		{"0", 0, true},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.cents {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.cents, got.Cents, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := FromCents(1050)
	b := FromCents(550)

	if got := a.Add(b).Cents; got != 1600 {
		t.Errorf("Add = %d, want 1600", got)
	}
	if got := a.Sub(b).Cents; got != 500 {
		t.Errorf("Sub = %d, want 500", got)
	}
	if got := b.Sub(a); !got.IsNegative() {
		t.Errorf("Sub = %d, want negative", got.Cents)
	}
	if !a.GreaterOrEqual(b) || b.GreaterOrEqual(a) {
		t.Error("GreaterOrEqual ordering wrong")
	}
	if got := a.String(); got != "10.50" {
		t.Errorf("String = %q, want 10.50", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := FromCents(100).Validate(); err != nil {
		t.Errorf("positive amount rejected: %v", err)
	}
	if err := FromCents(0).Validate(); err == nil {
		t.Error("zero amount accepted")
	}
	if err := FromCents(-5).Validate(); err == nil {
		t.Error("negative amount accepted")
	}
}
