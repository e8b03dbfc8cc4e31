package math_test

import (
	"DepositsDetector/internal/math"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount_Valid(t *testing.T) {
	cases := map[string]string{
		"12.34567": "12.34567",
		"3.0000":   "3",
		"  7 ":     "7",
		"0.1":      "0.1",
		".5":       "0.5",
		"-1.25":    "-1.25",
	}
	for in, want := range cases {
		got, err := math.ParseAmount(in)
		if err != nil {
			t.Errorf("ParseAmount(%q): unexpected error %v", in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("ParseAmount(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseAmount_RejectsCultureSpecific(t *testing.T) {
	for _, in := range []string{"", "1,000.50", "1.000,50", "1e5", "abc", "1.2.3", "NaN", "1 000"} {
		if _, err := math.ParseAmount(in); !errors.Is(err, math.ErrMalformedAmount) {
			t.Errorf("ParseAmount(%q): got %v, want ErrMalformedAmount", in, err)
		}
	}
}

func TestTruncate_NeverRoundsUp(t *testing.T) {
	cases := []struct {
		in       string
		accuracy int
		want     string
	}{
		{"12.34567", 2, "12.34"},
		{"12.349999", 2, "12.34"},
		{"0.999", 0, "0"},
		{"5", 8, "5"},
		{"1.23456789123", 8, "1.23456789"},
		{"-1.239", 2, "-1.23"},
	}
	for _, tc := range cases {
		got, err := math.Truncate(decimal.RequireFromString(tc.in), tc.accuracy)
		if err != nil {
			t.Fatalf("Truncate(%s, %d): %v", tc.in, tc.accuracy, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("Truncate(%s, %d) = %s, want %s", tc.in, tc.accuracy, got, tc.want)
		}
	}
}

func TestTruncate_InvalidAccuracy(t *testing.T) {
	if _, err := math.Truncate(decimal.NewFromInt(1), -1); !errors.Is(err, math.ErrInvalidAccuracy) {
		t.Errorf("got %v, want ErrInvalidAccuracy", err)
	}
	if _, err := math.Truncate(decimal.NewFromInt(1), math.MaxAccuracy+1); !errors.Is(err, math.ErrInvalidAccuracy) {
		t.Errorf("got %v, want ErrInvalidAccuracy", err)
	}
}

func TestToFixedPoint(t *testing.T) {
	units, err := math.ToFixedPoint(decimal.RequireFromString("12.34567"), 2)
	if err != nil {
		t.Fatalf("ToFixedPoint: %v", err)
	}
	if units != 1234 {
		t.Errorf("units: got %d, want 1234", units)
	}

	back := math.FromFixedPoint(units, 2)
	if !back.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("FromFixedPoint: got %s, want 12.34", back)
	}
}

func TestToFixedPoint_Overflow(t *testing.T) {
	_, err := math.ToFixedPoint(decimal.RequireFromString("99999999999999999999"), 8)
	if !errors.Is(err, math.ErrAmountOverflow) {
		t.Errorf("got %v, want ErrAmountOverflow", err)
	}
}
