package loan

import (
	"math/big"
	"testing"
)

func TestFeeAmount(t *testing.T) {
	cases := []struct {
		principal string
		feeBps    uint64
		want      string
	}{
		{"100000", 250, "2500"},
		{"100000", 0, "0"},
		{"1", 250, "0"},   // floors to zero
		{"399", 250, "9"}, // floor(399*250/10000) = floor(9.975)
		{"1000000000000000000", 250, "25000000000000000"},
		{"100000", 10000, "100000"}, // full principal
	}
	for _, tc := range cases {
		principal, _ := new(big.Int).SetString(tc.principal, 10)
		got := FeeAmount(principal, tc.feeBps)
		if got.String() != tc.want {
			t.Fatalf("FeeAmount(%s, %d) = %s, want %s", tc.principal, tc.feeBps, got, tc.want)
		}
	}
}

func TestInterestAccrued(t *testing.T) {
	oneEther, _ := new(big.Int).SetString("1000000000000000000", 10)

	// 100% APR for 7 days: floor(1e18 * 10000 * 604800 / (10000 * 31536000)).
	got := InterestAccrued(oneEther, 10_000, 7*86_400)
	if got.String() != "19178082191780821" {
		t.Fatalf("7 days at 100%% APR: got %s", got)
	}

	// A full year at 100% APR doubles the principal's interest share exactly.
	got = InterestAccrued(oneEther, 10_000, secondsPerYear)
	if got.Cmp(oneEther) != 0 {
		t.Fatalf("365 days at 100%% APR: got %s, want %s", got, oneEther)
	}

	if got := InterestAccrued(oneEther, 500, 0); got.Sign() != 0 {
		t.Fatalf("zero elapsed time accrued %s", got)
	}
	if got := InterestAccrued(oneEther, 500, -5); got.Sign() != 0 {
		t.Fatalf("negative elapsed time accrued %s", got)
	}

	// Small products floor to zero rather than round.
	if got := InterestAccrued(big.NewInt(100), 1, 1); got.Sign() != 0 {
		t.Fatalf("sub-unit interest should floor to zero, got %s", got)
	}
}

func TestInterestMonotonicity(t *testing.T) {
	principal, _ := new(big.Int).SetString("123456789012345678", 10)
	prev := big.NewInt(-1)
	for _, elapsed := range []int64{0, 1, 60, 3600, 86_400, 7 * 86_400, 30 * 86_400, secondsPerYear} {
		current := InterestAccrued(principal, 1375, elapsed)
		if current.Cmp(prev) < 0 {
			t.Fatalf("interest decreased at elapsed=%d: %s < %s", elapsed, current, prev)
		}
		prev = current
	}
}

func TestTotalRepayment(t *testing.T) {
	principal := big.NewInt(100_000)
	total := TotalRepayment(principal, 1000, 30*86_400)
	interest := InterestAccrued(principal, 1000, 30*86_400)
	want := new(big.Int).Add(principal, interest)
	if total.Cmp(want) != 0 {
		t.Fatalf("TotalRepayment = %s, want %s", total, want)
	}
}
