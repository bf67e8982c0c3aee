package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"nftlend/core/types"
)

var (
	errNilState = errors.New("token ledger: state not configured")

	// ErrInsufficientBalance signals the sender cannot cover the transfer.
	ErrInsufficientBalance = errors.New("token ledger: insufficient balance")
	// ErrInsufficientAllowance signals the spender exceeds its granted
	// allowance.
	ErrInsufficientAllowance = errors.New("token ledger: insufficient allowance")
	// ErrInvalidAmount rejects nil or negative amounts.
	ErrInvalidAmount = errors.New("token ledger: amount must be non-negative")
)

// accountState is the persistence surface the ledger reads and writes. A nil
// account means the address has never held tokens.
type accountState interface {
	GetAccount(addr common.Address) (*types.Account, error)
	PutAccount(addr common.Address, account *types.Account) error
}

// Ledger implements the fungible token collaborator: balances, spender
// allowances and the transfer-from primitive. It holds no state of its own;
// every operation reads and writes account records through the shared state so
// the caller's snapshot discipline covers it.
type Ledger struct {
	state accountState
}

// NewLedger constructs a token ledger over the given account state.
func NewLedger(state accountState) *Ledger {
	return &Ledger{state: state}
}

func (l *Ledger) loadAccount(addr common.Address) (*types.Account, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	account, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return account.EnsureDefaults(), nil
}

// BalanceOf returns the spendable balance of the address.
func (l *Ledger) BalanceOf(addr common.Address) (*big.Int, error) {
	account, err := l.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(account.Balance), nil
}

// Allowance returns the amount the spender may move out of the owner's
// balance.
func (l *Ledger) Allowance(owner, spender common.Address) (*big.Int, error) {
	account, err := l.loadAccount(owner)
	if err != nil {
		return nil, err
	}
	if allowance, ok := account.Allowances[spender.Hex()]; ok && allowance != nil {
		return new(big.Int).Set(allowance), nil
	}
	return big.NewInt(0), nil
}

// Approve sets the spender's allowance over the owner's balance, replacing any
// previous value.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := l.loadAccount(owner)
	if err != nil {
		return err
	}
	account.Allowances[spender.Hex()] = new(big.Int).Set(amount)
	return l.state.PutAccount(owner, account)
}

// Mint credits freshly issued tokens to the address.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	account, err := l.loadAccount(to)
	if err != nil {
		return err
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return l.state.PutAccount(to, account)
}

// TransferFrom moves amount from one address to another on behalf of spender.
// When the spender is not the owner the granted allowance is checked and
// reduced. A zero amount is a no-op.
func (l *Ledger) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromAcc, err := l.loadAccount(from)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromAcc.Balance, amount)
	}
	if spender != from {
		allowance := fromAcc.Allowances[spender.Hex()]
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return fmt.Errorf("%w: spender %s", ErrInsufficientAllowance, spender.Hex())
		}
		fromAcc.Allowances[spender.Hex()] = new(big.Int).Sub(allowance, amount)
	}
	if from == to {
		return l.state.PutAccount(from, fromAcc)
	}
	toAcc, err := l.loadAccount(to)
	if err != nil {
		return err
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}
