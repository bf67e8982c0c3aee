package loan

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// checkBatchBounds enforces the shared batch preconditions: a non-zero length
// within the configured limit.
func (e *Engine) checkBatchBounds(size int) error {
	if size == 0 {
		return ErrBatchLengthZero
	}
	params, err := e.params()
	if err != nil {
		return err
	}
	if uint64(size) > params.BatchLimit {
		return &BatchLimitExceededError{Size: uint64(size), Limit: params.BatchLimit}
	}
	return nil
}

// BatchCreateOffers creates several offers from the same lender in one atomic
// operation. Beyond the per-item validation it pre-checks, once, that the
// lender's balance and allowance cover the sum of all requested principals:
// a fail-fast so an obviously underfunded batch aborts before any work.
func (e *Engine) BatchCreateOffers(lender common.Address, collections []common.Address, principals []*big.Int, interestRates []uint64, durations, expiries []int64) ([]uint64, error) {
	var ids []uint64
	err := e.run(func() error {
		if err := e.checkBatchBounds(len(collections)); err != nil {
			return err
		}
		if len(principals) != len(collections) || len(interestRates) != len(collections) ||
			len(durations) != len(collections) || len(expiries) != len(collections) {
			return ErrLengthMismatch
		}
		total := new(big.Int)
		for _, principal := range principals {
			if principal == nil || principal.Sign() <= 0 {
				return ErrInvalidAmount
			}
			total.Add(total, principal)
		}
		balance, err := e.tokens.BalanceOf(lender)
		if err != nil {
			return err
		}
		if balance.Cmp(total) < 0 {
			return &InsufficientBalanceError{Balance: balance, Required: total}
		}
		allowance, err := e.tokens.Allowance(lender, e.custody)
		if err != nil {
			return err
		}
		if allowance.Cmp(total) < 0 {
			return &InsufficientAllowanceError{Allowance: allowance, Required: total}
		}

		ids = make([]uint64, 0, len(collections))
		for i := range collections {
			id, err := e.createOffer(lender, collections[i], principals[i], interestRates[i], durations[i], expiries[i])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// BatchAcceptOffers accepts several offers with one collateral token each.
// The whole batch fails as a unit when any single acceptance fails.
func (e *Engine) BatchAcceptOffers(borrower common.Address, offerIDs, tokenIDs []uint64) ([]uint64, error) {
	var ids []uint64
	err := e.run(func() error {
		if err := e.checkBatchBounds(len(offerIDs)); err != nil {
			return err
		}
		if len(tokenIDs) != len(offerIDs) {
			return ErrLengthMismatch
		}
		ids = make([]uint64, 0, len(offerIDs))
		for i := range offerIDs {
			id, err := e.acceptOffer(borrower, offerIDs[i], tokenIDs[i])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// BatchCancelOffers cancels several offers atomically.
func (e *Engine) BatchCancelOffers(caller common.Address, offerIDs []uint64) error {
	return e.run(func() error {
		if err := e.checkBatchBounds(len(offerIDs)); err != nil {
			return err
		}
		for _, id := range offerIDs {
			if err := e.cancelOffer(caller, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchRepay repays several loans atomically.
func (e *Engine) BatchRepay(caller common.Address, loanIDs []uint64) error {
	return e.run(func() error {
		if err := e.checkBatchBounds(len(loanIDs)); err != nil {
			return err
		}
		for _, id := range loanIDs {
			if err := e.repay(caller, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// BatchClaimCollateral claims collateral for several defaulted loans
// atomically.
func (e *Engine) BatchClaimCollateral(caller common.Address, loanIDs []uint64) error {
	return e.run(func() error {
		if err := e.checkBatchBounds(len(loanIDs)); err != nil {
			return err
		}
		for _, id := range loanIDs {
			if err := e.claimCollateral(caller, id); err != nil {
				return err
			}
		}
		return nil
	})
}
