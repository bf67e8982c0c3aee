package types

import "math/big"

// Account holds the fungible token position for a single address: the spendable
// balance plus the allowances granted to third-party spenders. Allowance keys
// are the checksummed hex form of the spender address.
type Account struct {
	Nonce      uint64              `json:"nonce"`
	Balance    *big.Int            `json:"balance"`
	Allowances map[string]*big.Int `json:"allowances,omitempty"`
}

// EnsureDefaults populates nil fields so callers can mutate the account
// without nil checks.
func (a *Account) EnsureDefaults() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0), Allowances: make(map[string]*big.Int)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	if a.Allowances == nil {
		a.Allowances = make(map[string]*big.Int)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0), Allowances: make(map[string]*big.Int, len(a.Allowances))}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	for spender, amount := range a.Allowances {
		if amount != nil {
			clone.Allowances[spender] = new(big.Int).Set(amount)
		}
	}
	return clone
}
