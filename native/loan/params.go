package loan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Params groups the governance controlled limits applied when validating loan
// offers. Offer and loan records always snapshot the values current at the
// moment they are written; later parameter changes never retroactively affect
// existing entries.
type Params struct {
	// FeeBps is the protocol fee deducted from the borrower's disbursement,
	// expressed in basis points of the principal.
	FeeBps uint64 `json:"feeBps"`
	// MinDurationSeconds and MaxDurationSeconds bound the loan duration
	// accepted at offer creation, inclusive on both ends.
	MinDurationSeconds uint64 `json:"minDurationSeconds"`
	MaxDurationSeconds uint64 `json:"maxDurationSeconds"`
	// MinInterestRateBps and MaxInterestRateBps bound the annualized rate,
	// inclusive on both ends.
	MinInterestRateBps uint64 `json:"minInterestRateBps"`
	MaxInterestRateBps uint64 `json:"maxInterestRateBps"`
	// BatchLimit caps the number of items accepted by any batch operation.
	BatchLimit uint64 `json:"batchLimit"`
	// Treasury receives the protocol fee extracted at acceptance time.
	Treasury common.Address `json:"treasury"`
}

// DefaultParams returns a conservative starting configuration. The treasury is
// deliberately left zero so deployments must configure it explicitly.
func DefaultParams() Params {
	return Params{
		FeeBps:             250,
		MinDurationSeconds: 86_400,
		MaxDurationSeconds: 365 * 86_400,
		MinInterestRateBps: 1,
		MaxInterestRateBps: 50_000,
		BatchLimit:         20,
	}
}

// Clone returns a copy of the parameters.
func (p Params) Clone() Params { return p }

// Validate ensures the parameter set is internally consistent.
func (p Params) Validate() error {
	if p.FeeBps > 10_000 {
		return fmt.Errorf("loan params: fee bps %d exceeds 10000", p.FeeBps)
	}
	if p.MinDurationSeconds == 0 {
		return fmt.Errorf("loan params: minimum duration must be positive")
	}
	if p.MinDurationSeconds > p.MaxDurationSeconds {
		return fmt.Errorf("loan params: minimum duration %d exceeds maximum %d", p.MinDurationSeconds, p.MaxDurationSeconds)
	}
	if p.MinInterestRateBps > p.MaxInterestRateBps {
		return fmt.Errorf("loan params: minimum interest rate %d exceeds maximum %d", p.MinInterestRateBps, p.MaxInterestRateBps)
	}
	if p.BatchLimit == 0 {
		return fmt.Errorf("loan params: batch limit must be positive")
	}
	if p.Treasury == (common.Address{}) {
		return fmt.Errorf("loan params: treasury not configured")
	}
	return nil
}
