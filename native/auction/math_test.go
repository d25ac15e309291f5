package auction

import (
	"errors"
	"math"
	"testing"
)

func TestMinimumStartingBidRoundsUp(t *testing.T) {
	tests := []struct {
		name    string
		reserve uint64
		fee     uint64
		want    uint64
	}{
		{name: "five percent", reserve: 100, fee: 50_000_000, want: 106},
		{name: "exact division", reserve: 95, fee: 50_000_000, want: 100},
		{name: "no fee", reserve: 100, fee: 0, want: 100},
		{name: "zero reserve", reserve: 0, fee: 50_000_000, want: 0},
		{name: "half fee", reserve: 7, fee: 500_000_000, want: 14},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MinimumStartingBid(tc.reserve, tc.fee)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestMinimumStartingBidNeverUndershoots(t *testing.T) {
	fee := uint64(33_333_333)
	for reserve := uint64(1); reserve < 2_000; reserve += 37 {
		minimum, err := MinimumStartingBid(reserve, fee)
		if err != nil {
			t.Fatalf("reserve %d: %v", reserve, err)
		}
		charged, err := FacilitatorFee(minimum, fee)
		if err != nil {
			t.Fatalf("fee for %d: %v", minimum, err)
		}
		if minimum-charged < reserve {
			t.Fatalf("reserve %d: minimum %d leaves %d after fee", reserve, minimum, minimum-charged)
		}
	}
}

func TestArithmeticOverflow(t *testing.T) {
	if _, err := MinimumStartingBid(100, MaxFacilitatorFee); !errors.Is(err, ErrNumericalOverflow) {
		t.Fatalf("expected overflow for zero divisor, got %v", err)
	}
	if _, err := MinimumStartingBid(100, MaxFacilitatorFee+1); !errors.Is(err, ErrNumericalOverflow) {
		t.Fatalf("expected overflow for fee above maximum, got %v", err)
	}
	if _, err := MinimumStartingBid(math.MaxUint64, 500_000_000); !errors.Is(err, ErrNumericalOverflow) {
		t.Fatalf("expected overflow for oversized result, got %v", err)
	}
	if _, err := MinimumNextBid(math.MaxUint64, MaxBidIncrement); !errors.Is(err, ErrNumericalOverflow) {
		t.Fatalf("expected overflow on increment add, got %v", err)
	}
	if _, err := RedeemPayment(100, 1, 0); !errors.Is(err, ErrNumericalOverflow) {
		t.Fatalf("expected overflow for zero supply, got %v", err)
	}
	// The 256-bit intermediate keeps large products exact.
	got, err := RedeemPayment(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	if err != nil || got != math.MaxUint64 {
		t.Fatalf("expected exact wide product, got %d (%v)", got, err)
	}
}

func TestBidIncrementAndFee(t *testing.T) {
	next, err := MinimumNextBid(106, 100_000_000)
	if err != nil {
		t.Fatalf("next bid: %v", err)
	}
	if next != 116 {
		t.Fatalf("expected 116, got %d", next)
	}
	fee, err := FacilitatorFee(1000, 50_000_000)
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee != 50 {
		t.Fatalf("expected 50, got %d", fee)
	}
	payment, err := RedeemPayment(950, 333, 1000)
	if err != nil {
		t.Fatalf("redeem payment: %v", err)
	}
	if payment != 316 {
		t.Fatalf("expected floor 316, got %d", payment)
	}
}
