package loan

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// LoanOffer captures a lender's published willingness to lend fixed terms
// against collateral from a whitelisted collection. Every field except Active
// is immutable after creation; Active flips to false exactly once, on
// acceptance or cancellation, and never becomes true again.
type LoanOffer struct {
	// ID is the sequential offer identifier, assigned from 0 with no gaps.
	ID uint64 `json:"id"`
	// Lender is the principal that created the offer and funds the loan.
	Lender common.Address `json:"lender"`
	// Collection identifies the whitelisted asset collection the offer targets.
	Collection common.Address `json:"collection"`
	// Principal is the amount of fungible token to lend, in base units.
	Principal *big.Int `json:"principal"`
	// InterestRateBps is the annualized interest rate in basis points.
	InterestRateBps uint64 `json:"interestRateBps"`
	// Duration is the fixed loan length in seconds.
	Duration int64 `json:"duration"`
	// Expiry is the unix timestamp after which the offer can no longer be
	// accepted.
	Expiry int64 `json:"expiry"`
	// Active reports whether the offer can still be accepted or cancelled.
	Active bool `json:"active"`
}

// Clone returns a deep copy of the offer so callers can safely mutate the copy
// without affecting the stored instance.
func (o *LoanOffer) Clone() *LoanOffer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Principal != nil {
		clone.Principal = new(big.Int).Set(o.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	return &clone
}

// Loan records a borrowing position created when an offer is accepted. The
// Repaid and CollateralClaimed flags are mutually exclusive terminal states and
// each may be written at most once.
type Loan struct {
	// ID is the sequential loan identifier, independent of offer IDs.
	ID       uint64         `json:"id"`
	Borrower common.Address `json:"borrower"`
	Lender   common.Address `json:"lender"`
	// Collection and TokenID identify the collateral asset held in custody by
	// the engine for the lifetime of the loan.
	Collection common.Address `json:"collection"`
	TokenID    uint64         `json:"tokenId"`
	// Principal is copied from the offer at acceptance time.
	Principal *big.Int `json:"principal"`
	// Fee is the protocol fee computed from the fee rate current at acceptance
	// time. It only reduced the borrower's disbursement; repayment never
	// includes it.
	Fee             *big.Int `json:"fee"`
	InterestRateBps uint64   `json:"interestRateBps"`
	Duration        int64    `json:"duration"`
	// StartTime is the unix timestamp of acceptance.
	StartTime         int64 `json:"startTime"`
	Repaid            bool  `json:"repaid"`
	CollateralClaimed bool  `json:"collateralClaimed"`
}

// EndTime returns the last instant at which the loan is still repayable.
// Strictly after this instant the lender may claim the collateral instead.
func (l *Loan) EndTime() int64 {
	if l == nil {
		return 0
	}
	return l.StartTime + l.Duration
}

// Clone returns a deep copy of the loan.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Principal != nil {
		clone.Principal = new(big.Int).Set(l.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	if l.Fee != nil {
		clone.Fee = new(big.Int).Set(l.Fee)
	} else {
		clone.Fee = big.NewInt(0)
	}
	return &clone
}
