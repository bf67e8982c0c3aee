package loan

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errNilState            = errors.New("loan engine: state not configured")
	errNilTokenLedger      = errors.New("loan engine: token ledger not configured")
	errNilAssetRegistry    = errors.New("loan engine: asset registry not configured")
	errParamsNotConfigured = errors.New("loan engine: params not configured")

	// ErrInvalidAmount rejects nil or non-positive principals.
	ErrInvalidAmount = errors.New("loan engine: principal must be positive")
	// ErrCollectionNotWhitelisted rejects offers against collections outside
	// the whitelist.
	ErrCollectionNotWhitelisted = errors.New("loan engine: collection not whitelisted")
	// ErrInvalidDuration rejects durations outside the configured bounds.
	ErrInvalidDuration = errors.New("loan engine: duration out of range")
	// ErrInvalidInterestRate rejects rates outside the configured bounds.
	ErrInvalidInterestRate = errors.New("loan engine: interest rate out of range")
	// ErrInvalidOfferExpiry rejects offer expiries already in the past.
	ErrInvalidOfferExpiry = errors.New("loan engine: offer expiry in the past")
	// ErrInsufficientBalance signals the lender cannot cover the principal.
	ErrInsufficientBalance = errors.New("loan engine: insufficient balance")
	// ErrInsufficientAllowance signals the lender has not granted the engine
	// enough spending allowance.
	ErrInsufficientAllowance = errors.New("loan engine: insufficient allowance")

	// ErrOfferNotFound signals an unknown offer identifier.
	ErrOfferNotFound = errors.New("loan engine: offer not found")
	// ErrOfferInactive signals the offer was already accepted or cancelled.
	ErrOfferInactive = errors.New("loan engine: offer inactive")
	// ErrOfferExpired signals the offer expiry has passed.
	ErrOfferExpired = errors.New("loan engine: offer expired")
	// ErrNotAssetOwner signals the caller does not own the collateral token.
	ErrNotAssetOwner = errors.New("loan engine: caller does not own collateral")
	// ErrNotLender signals a lender-only operation invoked by someone else.
	ErrNotLender = errors.New("loan engine: caller is not the lender")
	// ErrNotBorrower signals a borrower-only operation invoked by someone else.
	ErrNotBorrower = errors.New("loan engine: caller is not the borrower")

	// ErrLoanNotFound signals an unknown loan identifier.
	ErrLoanNotFound = errors.New("loan engine: loan not found")
	// ErrLoanAlreadyRepaid guards the repaid terminal state.
	ErrLoanAlreadyRepaid = errors.New("loan engine: loan already repaid")
	// ErrCollateralAlreadyClaimed guards the defaulted terminal state.
	ErrCollateralAlreadyClaimed = errors.New("loan engine: collateral already claimed")
	// ErrLoanNotExpired signals a default claim before the loan window closed.
	ErrLoanNotExpired = errors.New("loan engine: loan not expired")
	// ErrLoanExpired signals a repayment attempt after the loan window closed.
	ErrLoanExpired = errors.New("loan engine: repayment window closed")

	// ErrBatchLengthZero rejects empty batches.
	ErrBatchLengthZero = errors.New("loan engine: batch length cannot be zero")
	// ErrBatchLimitExceeded rejects batches above the configured limit.
	ErrBatchLimitExceeded = errors.New("loan engine: batch limit exceeded")
	// ErrLengthMismatch rejects batch calls whose parallel slices differ in length.
	ErrLengthMismatch = errors.New("loan engine: input parameter length mismatch")

	// ErrZeroTreasury rejects configuring the zero address as fee recipient.
	ErrZeroTreasury = errors.New("loan engine: treasury cannot be the zero address")
)

// InvalidOfferExpiryError carries the rejected expiry and the clock reading
// used for the comparison.
type InvalidOfferExpiryError struct {
	Expiry int64
	Now    int64
}

func (e *InvalidOfferExpiryError) Error() string {
	return fmt.Sprintf("%s: expiry %d before current time %d", ErrInvalidOfferExpiry, e.Expiry, e.Now)
}

func (e *InvalidOfferExpiryError) Unwrap() error { return ErrInvalidOfferExpiry }

// InsufficientBalanceError carries the current and required balance so callers
// can correct and retry.
type InsufficientBalanceError struct {
	Balance  *big.Int
	Required *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: have %s, need %s", ErrInsufficientBalance, e.Balance, e.Required)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InsufficientAllowanceError carries the current and required allowance.
type InsufficientAllowanceError struct {
	Allowance *big.Int
	Required  *big.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("%s: have %s, need %s", ErrInsufficientAllowance, e.Allowance, e.Required)
}

func (e *InsufficientAllowanceError) Unwrap() error { return ErrInsufficientAllowance }

// NotAssetOwnerError carries the actual owner alongside the rejected caller.
type NotAssetOwnerError struct {
	Owner  common.Address
	Caller common.Address
}

func (e *NotAssetOwnerError) Error() string {
	return fmt.Sprintf("%s: owned by %s, caller %s", ErrNotAssetOwner, e.Owner.Hex(), e.Caller.Hex())
}

func (e *NotAssetOwnerError) Unwrap() error { return ErrNotAssetOwner }

// NotLenderError carries the expected lender and the rejected caller.
type NotLenderError struct {
	Expected common.Address
	Actual   common.Address
}

func (e *NotLenderError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrNotLender, e.Expected.Hex(), e.Actual.Hex())
}

func (e *NotLenderError) Unwrap() error { return ErrNotLender }

// NotBorrowerError carries the expected borrower and the rejected caller.
type NotBorrowerError struct {
	Expected common.Address
	Actual   common.Address
}

func (e *NotBorrowerError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", ErrNotBorrower, e.Expected.Hex(), e.Actual.Hex())
}

func (e *NotBorrowerError) Unwrap() error { return ErrNotBorrower }

// LoanExpiredError carries the clock reading and the loan end time.
type LoanExpiredError struct {
	Now     int64
	EndTime int64
}

func (e *LoanExpiredError) Error() string {
	return fmt.Sprintf("%s: now %d, window closed at %d", ErrLoanExpired, e.Now, e.EndTime)
}

func (e *LoanExpiredError) Unwrap() error { return ErrLoanExpired }

// BatchLimitExceededError carries the rejected batch size and the configured
// limit.
type BatchLimitExceededError struct {
	Size  uint64
	Limit uint64
}

func (e *BatchLimitExceededError) Error() string {
	return fmt.Sprintf("%s: size %d, limit %d", ErrBatchLimitExceeded, e.Size, e.Limit)
}

func (e *BatchLimitExceededError) Unwrap() error { return ErrBatchLimitExceeded }
