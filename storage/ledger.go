package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"nftlend/core/types"
	"nftlend/native/loan"
)

const (
	keyOfferPrefix = "loan/offer/"
	keyLoanPrefix  = "loan/loan/"
	keyOfferCount  = "loan/offers"
	keyLoanCount   = "loan/loans"
	keyParams      = "loan/params"
	keyWhitelist   = "loan/wl/"
	keyAccount     = "acct/"
	keyAsset       = "nft/"
)

// journalEntry remembers the value a key held before a write so the write can
// be undone.
type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// Ledger adapts a raw key-value Database into the typed state surfaces
// consumed by the loan engine, the token ledger and the asset registry.
// Writes are journaled: Snapshot marks a point in the journal and RevertTo
// restores every key written since, giving callers all-or-nothing operation
// semantics over any backend.
type Ledger struct {
	db      Database
	journal []journalEntry
}

// NewLedger wraps the database.
func NewLedger(db Database) *Ledger {
	return &Ledger{db: db}
}

// Snapshot returns a marker for the current journal position.
func (l *Ledger) Snapshot() int {
	return len(l.journal)
}

// RevertTo undoes every write recorded after the snapshot marker, most recent
// first.
func (l *Ledger) RevertTo(snapshot int) {
	if snapshot < 0 || snapshot > len(l.journal) {
		return
	}
	for i := len(l.journal) - 1; i >= snapshot; i-- {
		entry := l.journal[i]
		if entry.existed {
			_ = l.db.Put([]byte(entry.key), entry.prev)
		} else {
			_ = l.db.Delete([]byte(entry.key))
		}
	}
	l.journal = l.journal[:snapshot]
}

// Commit discards the undo records accumulated since the snapshot marker so
// the journal does not grow without bound. Reverting past a committed marker
// is no longer possible afterwards.
func (l *Ledger) Commit(snapshot int) {
	if snapshot < 0 || snapshot > len(l.journal) {
		return
	}
	l.journal = l.journal[:snapshot]
}

func (l *Ledger) write(key string, value []byte) error {
	prev, err := l.db.Get([]byte(key))
	existed := true
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			return err
		}
		existed = false
		prev = nil
	}
	if err := l.db.Put([]byte(key), value); err != nil {
		return err
	}
	l.journal = append(l.journal, journalEntry{key: key, prev: prev, existed: existed})
	return nil
}

func (l *Ledger) read(key string, out interface{}) (bool, error) {
	raw, err := l.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return true, nil
}

func (l *Ledger) writeJSON(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	return l.write(key, raw)
}

func (l *Ledger) readCounter(key string) (uint64, error) {
	raw, err := l.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("storage: malformed counter %s", key)
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (l *Ledger) writeCounter(key string, value uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return l.write(key, raw)
}

func offerKey(id uint64) string { return fmt.Sprintf("%s%016x", keyOfferPrefix, id) }
func loanKey(id uint64) string  { return fmt.Sprintf("%s%016x", keyLoanPrefix, id) }

// OfferGet returns the stored offer, or nil when the identifier is unknown.
func (l *Ledger) OfferGet(id uint64) (*loan.LoanOffer, error) {
	offer := new(loan.LoanOffer)
	ok, err := l.read(offerKey(id), offer)
	if err != nil || !ok {
		return nil, err
	}
	return offer, nil
}

// OfferPut persists the offer record.
func (l *Ledger) OfferPut(offer *loan.LoanOffer) error {
	if offer == nil {
		return fmt.Errorf("storage: nil offer")
	}
	return l.writeJSON(offerKey(offer.ID), offer)
}

// OfferCount returns the number of offers ever created.
func (l *Ledger) OfferCount() (uint64, error) { return l.readCounter(keyOfferCount) }

// SetOfferCount persists the offer counter.
func (l *Ledger) SetOfferCount(count uint64) error { return l.writeCounter(keyOfferCount, count) }

// LoanGet returns the stored loan, or nil when the identifier is unknown.
func (l *Ledger) LoanGet(id uint64) (*loan.Loan, error) {
	record := new(loan.Loan)
	ok, err := l.read(loanKey(id), record)
	if err != nil || !ok {
		return nil, err
	}
	return record, nil
}

// LoanPut persists the loan record.
func (l *Ledger) LoanPut(record *loan.Loan) error {
	if record == nil {
		return fmt.Errorf("storage: nil loan")
	}
	return l.writeJSON(loanKey(record.ID), record)
}

// LoanCount returns the number of loans ever created.
func (l *Ledger) LoanCount() (uint64, error) { return l.readCounter(keyLoanCount) }

// SetLoanCount persists the loan counter.
func (l *Ledger) SetLoanCount(count uint64) error { return l.writeCounter(keyLoanCount, count) }

// ParamsGet returns the stored protocol parameters, or nil when unset.
func (l *Ledger) ParamsGet() (*loan.Params, error) {
	params := new(loan.Params)
	ok, err := l.read(keyParams, params)
	if err != nil || !ok {
		return nil, err
	}
	return params, nil
}

// ParamsPut persists the protocol parameters.
func (l *Ledger) ParamsPut(params *loan.Params) error {
	if params == nil {
		return fmt.Errorf("storage: nil params")
	}
	return l.writeJSON(keyParams, params)
}

// IsWhitelisted reports whitelist membership for the collection.
func (l *Ledger) IsWhitelisted(collection common.Address) (bool, error) {
	_, err := l.db.Get([]byte(keyWhitelist + collection.Hex()))
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// SetWhitelisted adds or removes the collection from the whitelist.
func (l *Ledger) SetWhitelisted(collection common.Address, allowed bool) error {
	key := keyWhitelist + collection.Hex()
	if allowed {
		return l.write(key, []byte{1})
	}
	prev, err := l.db.Get([]byte(key))
	if errors.Is(err, ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := l.db.Delete([]byte(key)); err != nil {
		return err
	}
	l.journal = append(l.journal, journalEntry{key: key, prev: prev, existed: true})
	return nil
}

// GetAccount returns the token account for the address, or nil when the
// address has never held tokens.
func (l *Ledger) GetAccount(addr common.Address) (*types.Account, error) {
	account := new(types.Account)
	ok, err := l.read(keyAccount+addr.Hex(), account)
	if err != nil || !ok {
		return nil, err
	}
	return account, nil
}

// PutAccount persists the token account record.
func (l *Ledger) PutAccount(addr common.Address, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("storage: nil account")
	}
	return l.writeJSON(keyAccount+addr.Hex(), account)
}

func assetKey(collection common.Address, tokenID uint64) string {
	return fmt.Sprintf("%s%s/%016x", keyAsset, collection.Hex(), tokenID)
}

// AssetOwner returns the recorded owner, or the zero address when the token
// was never minted.
func (l *Ledger) AssetOwner(collection common.Address, tokenID uint64) (common.Address, error) {
	raw, err := l.db.Get([]byte(assetKey(collection, tokenID)))
	if errors.Is(err, ErrKeyNotFound) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(raw), nil
}

// SetAssetOwner records token ownership.
func (l *Ledger) SetAssetOwner(collection common.Address, tokenID uint64, owner common.Address) error {
	return l.write(assetKey(collection, tokenID), owner.Bytes())
}
