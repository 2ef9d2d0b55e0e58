package elo

import (
	"math"
	"testing"
)

func TestUpdateScenario(t *testing.T) {
	a, b := DefaultRating, DefaultRating

	a, b = Update(a, b, 1, KFactor)
	if a != 1512 || b != 1488 {
		t.Fatalf("after A wins: got %v/%v, want 1512/1488", a, b)
	}

	a, b = Update(a, b, 0, KFactor)
	if a != 1499 || b != 1501 {
		t.Fatalf("after B wins: got %v/%v, want 1499/1501", a, b)
	}
}

func TestUpdateAntisymmetricForEqualRatings(t *testing.T) {
	for _, start := range []float64{800, 1500, 2100} {
		for _, r := range []float64{0, 0.5, 1} {
			n1, n2 := Update(start, start, r, KFactor)
			d1, d2 := n1-start, n2-start
			if d1 != -d2 {
				t.Errorf("start=%v result=%v: deltas %v and %v are not opposite", start, r, d1, d2)
			}
		}
	}
}

func TestUpdateOrderIndependent(t *testing.T) {
	tests := []struct {
		name    string
		r1, r2  float64
		outcome float64
	}{
		{"favourite wins", 1700, 1400, 1},
		{"underdog wins", 1400, 1700, 1},
		{"draw", 1620, 1480, 0.5},
		{"player2 wins", 1500, 1530, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a1, b1 := Update(tt.r1, tt.r2, tt.outcome, KFactor)
			// Same game with the seats swapped.
			b2, a2 := Update(tt.r2, tt.r1, 1-tt.outcome, KFactor)
			if a1 != a2 || b1 != b2 {
				t.Errorf("swapped seats disagree: (%v,%v) vs (%v,%v)", a1, b1, a2, b2)
			}
		})
	}
}

func TestUpdateZeroSum(t *testing.T) {
	n1, n2 := Update(1733, 1288, 0.5, KFactor)
	if math.Abs((n1+n2)-(1733+1288)) > 1e-9 {
		t.Errorf("ratings not conserved: %v + %v", n1, n2)
	}
}

func TestExpectedScore(t *testing.T) {
	if got := ExpectedScore(1500, 1500); got != 0.5 {
		t.Errorf("ExpectedScore(equal) = %v, want 0.5", got)
	}
	hi := ExpectedScore(1900, 1500)
	lo := ExpectedScore(1500, 1900)
	if math.Abs(hi+lo-1) > 1e-12 {
		t.Errorf("expected scores should sum to 1, got %v + %v", hi, lo)
	}
	if hi < 0.9 || hi > 0.92 {
		t.Errorf("ExpectedScore(1900,1500) = %v, want about 0.909", hi)
	}
}
