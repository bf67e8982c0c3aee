package loan

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"nftlend/core/events"
	"nftlend/core/types"
)

// AssetReceivedAck is the fixed acknowledgment value the engine returns from
// its asset receipt hook, mirroring the ERC-721 onERC721Received selector.
var AssetReceivedAck = [4]byte{0x15, 0x0b, 0x7a, 0x02}

// engineState is the persistence surface the engine mutates. Snapshot and
// RevertTo bracket every public operation so that any failure unwinds all
// writes performed since the snapshot.
type engineState interface {
	OfferGet(id uint64) (*LoanOffer, error)
	OfferPut(offer *LoanOffer) error
	OfferCount() (uint64, error)
	SetOfferCount(count uint64) error

	LoanGet(id uint64) (*Loan, error)
	LoanPut(loan *Loan) error
	LoanCount() (uint64, error)
	SetLoanCount(count uint64) error

	ParamsGet() (*Params, error)
	ParamsPut(params *Params) error

	IsWhitelisted(collection common.Address) (bool, error)
	SetWhitelisted(collection common.Address, allowed bool) error

	Snapshot() int
	RevertTo(snapshot int)
	Commit(snapshot int)
}

// TokenLedger is the fungible token collaborator. TransferFrom must verify
// balance and, when the spender differs from the owner, allowance; a returned
// error aborts the whole calling operation.
type TokenLedger interface {
	BalanceOf(addr common.Address) (*big.Int, error)
	Allowance(owner, spender common.Address) (*big.Int, error)
	TransferFrom(spender, from, to common.Address, amount *big.Int) error
}

// AssetRegistry is the non-fungible asset collaborator. SafeTransferFrom
// follows the safe-transfer convention: when the recipient exposes a receipt
// hook the registry invokes it and requires the fixed acknowledgment value.
type AssetRegistry interface {
	OwnerOf(collection common.Address, tokenID uint64) (common.Address, error)
	SafeTransferFrom(collection common.Address, from, to common.Address, tokenID uint64, data []byte) error
}

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

// Engine owns the offer and loan ledgers and drives every state transition of
// the lending protocol. All operations are fully serialized behind a single
// mutex, matching the atomic transaction semantics the ledger requires: no
// operation ever observes another one mid-flight.
type Engine struct {
	mu      sync.Mutex
	state   engineState
	tokens  TokenLedger
	assets  AssetRegistry
	custody common.Address
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a loan engine. The custody address identifies the
// engine itself in both collaborator ledgers: collateral is parked under it
// and token allowances must be granted to it.
func NewEngine(custody common.Address) *Engine {
	return &Engine{
		custody: custody,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTokenLedger configures the fungible token collaborator.
func (e *Engine) SetTokenLedger(tokens TokenLedger) { e.tokens = tokens }

// SetAssetRegistry configures the non-fungible asset collaborator.
func (e *Engine) SetAssetRegistry(assets AssetRegistry) { e.assets = assets }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Custody returns the address under which the engine holds collateral.
func (e *Engine) Custody() common.Address { return e.custody }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.tokens == nil {
		return errNilTokenLedger
	}
	if e.assets == nil {
		return errNilAssetRegistry
	}
	return nil
}

func (e *Engine) params() (*Params, error) {
	params, err := e.state.ParamsGet()
	if err != nil {
		return nil, err
	}
	if params == nil {
		return nil, errParamsNotConfigured
	}
	return params, nil
}

// OnAssetReceived acknowledges collateral arriving in engine custody. The
// handler is deliberately pure: state was already committed before the
// registry invoked it, so a reentrant call cannot observe partial writes.
func (e *Engine) OnAssetReceived(common.Address, common.Address, uint64, []byte) [4]byte {
	return AssetReceivedAck
}

// run executes fn inside a state snapshot, reverting every write when fn
// fails. Combined with the engine mutex this gives each public operation
// all-or-nothing semantics.
func (e *Engine) run(fn func() error) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	snapshot := e.state.Snapshot()
	if err := fn(); err != nil {
		e.state.RevertTo(snapshot)
		return err
	}
	e.state.Commit(snapshot)
	return nil
}

// CreateOffer validates and appends a new loan offer. No funds move: the
// engine only verifies the lender could cover the principal right now. The
// new offer identifier is returned.
func (e *Engine) CreateOffer(lender, collection common.Address, principal *big.Int, interestRateBps uint64, duration, expiry int64) (uint64, error) {
	var id uint64
	err := e.run(func() error {
		var err error
		id, err = e.createOffer(lender, collection, principal, interestRateBps, duration, expiry)
		return err
	})
	return id, err
}

func (e *Engine) createOffer(lender, collection common.Address, principal *big.Int, interestRateBps uint64, duration, expiry int64) (uint64, error) {
	if principal == nil || principal.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}
	params, err := e.params()
	if err != nil {
		return 0, err
	}
	whitelisted, err := e.state.IsWhitelisted(collection)
	if err != nil {
		return 0, err
	}
	if !whitelisted {
		return 0, ErrCollectionNotWhitelisted
	}
	if duration < 0 || uint64(duration) < params.MinDurationSeconds || uint64(duration) > params.MaxDurationSeconds {
		return 0, ErrInvalidDuration
	}
	if interestRateBps < params.MinInterestRateBps || interestRateBps > params.MaxInterestRateBps {
		return 0, ErrInvalidInterestRate
	}
	now := e.now()
	if expiry < now {
		return 0, &InvalidOfferExpiryError{Expiry: expiry, Now: now}
	}
	balance, err := e.tokens.BalanceOf(lender)
	if err != nil {
		return 0, err
	}
	if balance.Cmp(principal) < 0 {
		return 0, &InsufficientBalanceError{Balance: balance, Required: new(big.Int).Set(principal)}
	}
	allowance, err := e.tokens.Allowance(lender, e.custody)
	if err != nil {
		return 0, err
	}
	if allowance.Cmp(principal) < 0 {
		return 0, &InsufficientAllowanceError{Allowance: allowance, Required: new(big.Int).Set(principal)}
	}

	id, err := e.state.OfferCount()
	if err != nil {
		return 0, err
	}
	offer := &LoanOffer{
		ID:              id,
		Lender:          lender,
		Collection:      collection,
		Principal:       new(big.Int).Set(principal),
		InterestRateBps: interestRateBps,
		Duration:        duration,
		Expiry:          expiry,
		Active:          true,
	}
	if err := e.state.OfferPut(offer); err != nil {
		return 0, err
	}
	if err := e.state.SetOfferCount(id + 1); err != nil {
		return 0, err
	}
	e.emit(NewOfferCreatedEvent(offer))
	return id, nil
}

// AcceptOffer converts an active, unexpired offer into a loan. The caller must
// own the collateral token. Ledger writes happen before any collaborator
// transfer so a reentrant callback can never observe a still-active offer.
func (e *Engine) AcceptOffer(borrower common.Address, offerID, tokenID uint64) (uint64, error) {
	var id uint64
	err := e.run(func() error {
		var err error
		id, err = e.acceptOffer(borrower, offerID, tokenID)
		return err
	})
	return id, err
}

func (e *Engine) acceptOffer(borrower common.Address, offerID, tokenID uint64) (uint64, error) {
	offer, err := e.state.OfferGet(offerID)
	if err != nil {
		return 0, err
	}
	if offer == nil {
		return 0, ErrOfferNotFound
	}
	if !offer.Active {
		return 0, ErrOfferInactive
	}
	now := e.now()
	if now > offer.Expiry {
		return 0, ErrOfferExpired
	}
	owner, err := e.assets.OwnerOf(offer.Collection, tokenID)
	if err != nil {
		return 0, err
	}
	if owner != borrower {
		return 0, &NotAssetOwnerError{Owner: owner, Caller: borrower}
	}
	params, err := e.params()
	if err != nil {
		return 0, err
	}

	fee := FeeAmount(offer.Principal, params.FeeBps)
	amountToBorrower := new(big.Int).Sub(offer.Principal, fee)

	offer.Active = false
	if err := e.state.OfferPut(offer); err != nil {
		return 0, err
	}
	loanID, err := e.state.LoanCount()
	if err != nil {
		return 0, err
	}
	loan := &Loan{
		ID:              loanID,
		Borrower:        borrower,
		Lender:          offer.Lender,
		Collection:      offer.Collection,
		TokenID:         tokenID,
		Principal:       new(big.Int).Set(offer.Principal),
		Fee:             fee,
		InterestRateBps: offer.InterestRateBps,
		Duration:        offer.Duration,
		StartTime:       now,
	}
	if err := e.state.LoanPut(loan); err != nil {
		return 0, err
	}
	if err := e.state.SetLoanCount(loanID + 1); err != nil {
		return 0, err
	}

	// External effects, in custody-first order. Any failure reverts the
	// snapshot taken by the caller.
	if err := e.assets.SafeTransferFrom(offer.Collection, borrower, e.custody, tokenID, nil); err != nil {
		return 0, err
	}
	if err := e.tokens.TransferFrom(e.custody, offer.Lender, borrower, amountToBorrower); err != nil {
		return 0, err
	}
	if fee.Sign() > 0 {
		if err := e.tokens.TransferFrom(e.custody, offer.Lender, params.Treasury, fee); err != nil {
			return 0, err
		}
	}
	e.emit(NewLoanStartedEvent(loan, offer.ID))
	return loanID, nil
}

// CancelOffer deactivates an open offer. Only the lender who created the
// offer may cancel it; no funds move because nothing was escrowed at
// creation time.
func (e *Engine) CancelOffer(caller common.Address, offerID uint64) error {
	return e.run(func() error { return e.cancelOffer(caller, offerID) })
}

func (e *Engine) cancelOffer(caller common.Address, offerID uint64) error {
	offer, err := e.state.OfferGet(offerID)
	if err != nil {
		return err
	}
	if offer == nil {
		return ErrOfferNotFound
	}
	if !offer.Active {
		return ErrOfferInactive
	}
	if offer.Lender != caller {
		return &NotLenderError{Expected: offer.Lender, Actual: caller}
	}
	offer.Active = false
	if err := e.state.OfferPut(offer); err != nil {
		return err
	}
	e.emit(NewOfferCancelledEvent(offer))
	return nil
}

// Repay settles a loan within its window. Interest accrues pro-rata on the
// elapsed time, so early repayment charges strictly less than the full-term
// amount. The collateral returns to the borrower and principal plus interest
// flows to the lender.
func (e *Engine) Repay(caller common.Address, loanID uint64) error {
	return e.run(func() error { return e.repay(caller, loanID) })
}

func (e *Engine) repay(caller common.Address, loanID uint64) error {
	loan, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrLoanNotFound
	}
	if loan.Repaid {
		return ErrLoanAlreadyRepaid
	}
	if loan.Borrower != caller {
		return &NotBorrowerError{Expected: loan.Borrower, Actual: caller}
	}
	now := e.now()
	if now > loan.EndTime() {
		return &LoanExpiredError{Now: now, EndTime: loan.EndTime()}
	}

	elapsed := now - loan.StartTime
	interest := InterestAccrued(loan.Principal, loan.InterestRateBps, elapsed)
	total := new(big.Int).Add(loan.Principal, interest)

	loan.Repaid = true
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	if err := e.assets.SafeTransferFrom(loan.Collection, e.custody, loan.Borrower, loan.TokenID, nil); err != nil {
		return err
	}
	if err := e.tokens.TransferFrom(e.custody, loan.Borrower, loan.Lender, total); err != nil {
		return err
	}
	e.emit(NewLoanRepaidEvent(loan, interest, total))
	return nil
}

// ClaimCollateral transfers the collateral to the lender once the loan window
// has strictly elapsed without repayment. The boundary instant itself is still
// repayable and not yet claimable.
func (e *Engine) ClaimCollateral(caller common.Address, loanID uint64) error {
	return e.run(func() error { return e.claimCollateral(caller, loanID) })
}

func (e *Engine) claimCollateral(caller common.Address, loanID uint64) error {
	loan, err := e.state.LoanGet(loanID)
	if err != nil {
		return err
	}
	if loan == nil {
		return ErrLoanNotFound
	}
	if loan.Repaid {
		return ErrLoanAlreadyRepaid
	}
	if loan.CollateralClaimed {
		return ErrCollateralAlreadyClaimed
	}
	if e.now() <= loan.EndTime() {
		return ErrLoanNotExpired
	}
	if loan.Lender != caller {
		return &NotLenderError{Expected: loan.Lender, Actual: caller}
	}

	loan.CollateralClaimed = true
	if err := e.state.LoanPut(loan); err != nil {
		return err
	}
	if err := e.assets.SafeTransferFrom(loan.Collection, e.custody, loan.Lender, loan.TokenID, nil); err != nil {
		return err
	}
	e.emit(NewCollateralClaimedEvent(loan))
	return nil
}

// GetOffer returns a copy of the stored offer.
func (e *Engine) GetOffer(offerID uint64) (*LoanOffer, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, err := e.state.OfferGet(offerID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	return offer.Clone(), nil
}

// GetLoan returns a copy of the stored loan.
func (e *Engine) GetLoan(loanID uint64) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	loan, err := e.state.LoanGet(loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// OfferCount returns the number of offers ever created.
func (e *Engine) OfferCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.OfferCount()
}

// LoanCount returns the number of loans ever created.
func (e *Engine) LoanCount() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.LoanCount()
}

// IsWhitelisted reports whether the collection may back new offers.
func (e *Engine) IsWhitelisted(collection common.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsWhitelisted(collection)
}

// Params returns a snapshot of the current protocol parameters.
func (e *Engine) Params() (Params, error) {
	if e == nil || e.state == nil {
		return Params{}, errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	params, err := e.params()
	if err != nil {
		return Params{}, err
	}
	return params.Clone(), nil
}

// InitParams seeds the parameter record when none exists yet. Existing
// parameters are left untouched so restarts never clobber admin changes.
func (e *Engine) InitParams(params Params) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, err := e.state.ParamsGet()
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	if err := params.Validate(); err != nil {
		return err
	}
	return e.state.ParamsPut(&params)
}

// SetWhitelisted adds or removes a collection from the collateral whitelist.
// Membership is only checked at offer creation, never re-checked at
// acceptance.
func (e *Engine) SetWhitelisted(collection common.Address, allowed bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.state.SetWhitelisted(collection, allowed); err != nil {
		return err
	}
	e.emit(NewCollectionWhitelistedEvent(collection, allowed))
	return nil
}

// SetFeeBps updates the protocol fee rate applied to future acceptances.
func (e *Engine) SetFeeBps(value uint64) error {
	return e.updateParams("feeBps", strconv.FormatUint(value, 10), func(p *Params) { p.FeeBps = value })
}

// SetMinDuration updates the minimum accepted loan duration in seconds.
func (e *Engine) SetMinDuration(value uint64) error {
	return e.updateParams("minDurationSeconds", strconv.FormatUint(value, 10), func(p *Params) { p.MinDurationSeconds = value })
}

// SetMaxDuration updates the maximum accepted loan duration in seconds.
func (e *Engine) SetMaxDuration(value uint64) error {
	return e.updateParams("maxDurationSeconds", strconv.FormatUint(value, 10), func(p *Params) { p.MaxDurationSeconds = value })
}

// SetMinInterestRate updates the minimum accepted annualized rate in bps.
func (e *Engine) SetMinInterestRate(value uint64) error {
	return e.updateParams("minInterestRateBps", strconv.FormatUint(value, 10), func(p *Params) { p.MinInterestRateBps = value })
}

// SetMaxInterestRate updates the maximum accepted annualized rate in bps.
func (e *Engine) SetMaxInterestRate(value uint64) error {
	return e.updateParams("maxInterestRateBps", strconv.FormatUint(value, 10), func(p *Params) { p.MaxInterestRateBps = value })
}

// SetBatchLimit updates the maximum batch size.
func (e *Engine) SetBatchLimit(value uint64) error {
	return e.updateParams("batchLimit", strconv.FormatUint(value, 10), func(p *Params) { p.BatchLimit = value })
}

// SetTreasury updates the protocol fee recipient. The zero address is
// rejected.
func (e *Engine) SetTreasury(treasury common.Address) error {
	if treasury == (common.Address{}) {
		return ErrZeroTreasury
	}
	return e.updateParams("treasury", treasury.Hex(), func(p *Params) { p.Treasury = treasury })
}

func (e *Engine) updateParams(field, value string, mutate func(*Params)) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	params, err := e.params()
	if err != nil {
		return err
	}
	updated := params.Clone()
	mutate(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}
	if err := e.state.ParamsPut(&updated); err != nil {
		return err
	}
	e.emit(NewParamsUpdatedEvent(field, value))
	return nil
}
