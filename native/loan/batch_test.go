package loan

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestBatchCreateOffers(t *testing.T) {
	engine, state, tokens, _ := newTestEngine(t)
	fundLender(tokens, big.NewInt(6000))

	collections := []common.Address{collection, collection, collection}
	principals := []*big.Int{big.NewInt(1000), big.NewInt(2000), big.NewInt(3000)}
	rates := []uint64{500, 500, 500}
	durations := []int64{30 * 86_400, 30 * 86_400, 30 * 86_400}
	expiries := []int64{testNow + 3600, testNow + 3600, testNow + 3600}

	ids, err := engine.BatchCreateOffers(lender, collections, principals, rates, durations, expiries)
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if state.offerCount != 3 {
		t.Fatalf("unexpected offer count: %d", state.offerCount)
	}
}

func TestBatchCreateOffersBounds(t *testing.T) {
	engine, state, tokens, _ := newTestEngine(t)
	fundLender(tokens, big.NewInt(1_000_000))

	if _, err := engine.BatchCreateOffers(lender, nil, nil, nil, nil, nil); !errors.Is(err, ErrBatchLengthZero) {
		t.Fatalf("expected ErrBatchLengthZero, got %v", err)
	}

	size := 6 // batch limit in testParams is 5
	collections := make([]common.Address, size)
	principals := make([]*big.Int, size)
	rates := make([]uint64, size)
	durations := make([]int64, size)
	expiries := make([]int64, size)
	for i := 0; i < size; i++ {
		collections[i] = collection
		principals[i] = big.NewInt(1000)
		rates[i] = 500
		durations[i] = 30 * 86_400
		expiries[i] = testNow + 3600
	}
	_, err := engine.BatchCreateOffers(lender, collections, principals, rates, durations, expiries)
	var limitErr *BatchLimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected BatchLimitExceededError, got %v", err)
	}
	if limitErr.Size != 6 || limitErr.Limit != 5 {
		t.Fatalf("unexpected error detail: %+v", limitErr)
	}
	if state.offerCount != 0 {
		t.Fatalf("offers created despite limit breach: %d", state.offerCount)
	}

	if _, err := engine.BatchCreateOffers(lender, collections[:2], principals[:3], rates[:2], durations[:2], expiries[:2]); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestBatchCreateOffersAggregateFunding(t *testing.T) {
	engine, state, tokens, _ := newTestEngine(t)
	// Each principal fits the balance individually. The sum does not.
	fundLender(tokens, big.NewInt(1500))

	collections := []common.Address{collection, collection}
	principals := []*big.Int{big.NewInt(1000), big.NewInt(1000)}
	rates := []uint64{500, 500}
	durations := []int64{30 * 86_400, 30 * 86_400}
	expiries := []int64{testNow + 3600, testNow + 3600}

	if _, err := engine.BatchCreateOffers(lender, collections, principals, rates, durations, expiries); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if state.offerCount != 0 {
		t.Fatalf("offers created despite failed aggregate check: %d", state.offerCount)
	}
}

func TestBatchCancelOffersRollsBack(t *testing.T) {
	engine, _, tokens, _ := newTestEngine(t)
	fundLender(tokens, big.NewInt(2000))
	first, err := engine.CreateOffer(lender, collection, big.NewInt(1000), 500, 30*86_400, testNow+3600)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}

	// The first cancellation succeeds, the second hits a missing offer. The
	// batch must leave the first offer untouched.
	if err := engine.BatchCancelOffers(lender, []uint64{first, 99}); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
	offer, err := engine.GetOffer(first)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if !offer.Active {
		t.Fatalf("offer cancelled despite batch failure")
	}

	if err := engine.BatchCancelOffers(lender, []uint64{first}); err != nil {
		t.Fatalf("batch cancel: %v", err)
	}
	offer, _ = engine.GetOffer(first)
	if offer.Active {
		t.Fatalf("offer still active after successful batch")
	}
}

func TestBatchAcceptOffers(t *testing.T) {
	engine, state, tokens, assets := newTestEngine(t)
	fundLender(tokens, big.NewInt(3000))
	var offerIDs []uint64
	for i := 0; i < 2; i++ {
		id, err := engine.CreateOffer(lender, collection, big.NewInt(1000), 500, 30*86_400, testNow+3600)
		if err != nil {
			t.Fatalf("create offer %d: %v", i, err)
		}
		offerIDs = append(offerIDs, id)
	}
	assets.mint(collection, 1, borrower)
	assets.mint(collection, 2, borrower)

	loanIDs, err := engine.BatchAcceptOffers(borrower, offerIDs, []uint64{1, 2})
	if err != nil {
		t.Fatalf("batch accept: %v", err)
	}
	if len(loanIDs) != 2 || loanIDs[0] != 0 || loanIDs[1] != 1 {
		t.Fatalf("unexpected loan ids: %v", loanIDs)
	}
	if state.loanCount != 2 {
		t.Fatalf("unexpected loan count: %d", state.loanCount)
	}
	for _, tokenID := range []uint64{1, 2} {
		if owner, _ := assets.OwnerOf(collection, tokenID); owner != custody {
			t.Fatalf("token %d owner: got %s want custody", tokenID, owner.Hex())
		}
	}
}

func TestBatchAcceptOffersMismatch(t *testing.T) {
	engine, _, tokens, _ := newTestEngine(t)
	offerID := mustCreateOffer(t, engine, tokens, big.NewInt(1000), 500, 30*86_400)
	if _, err := engine.BatchAcceptOffers(borrower, []uint64{offerID}, []uint64{1, 2}); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestBatchRepayAndClaim(t *testing.T) {
	engine, _, tokens, assets := newTestEngine(t)
	fundLender(tokens, big.NewInt(4000))
	duration := int64(30 * 86_400)
	var loanIDs []uint64
	for i := uint64(1); i <= 2; i++ {
		offerID, err := engine.CreateOffer(lender, collection, big.NewInt(1000), 500, duration, testNow+3600)
		if err != nil {
			t.Fatalf("create offer: %v", err)
		}
		assets.mint(collection, i, borrower)
		loanID, err := engine.AcceptOffer(borrower, offerID, i)
		if err != nil {
			t.Fatalf("accept offer: %v", err)
		}
		loanIDs = append(loanIDs, loanID)
	}
	fundBorrower(tokens, big.NewInt(10_000))

	if err := engine.BatchRepay(borrower, loanIDs); err != nil {
		t.Fatalf("batch repay: %v", err)
	}
	for i, loanID := range loanIDs {
		record, _ := engine.GetLoan(loanID)
		if !record.Repaid {
			t.Fatalf("loan %d not repaid", i)
		}
		if owner, _ := assets.OwnerOf(collection, uint64(i+1)); owner != borrower {
			t.Fatalf("token %d owner: got %s want borrower", i+1, owner.Hex())
		}
	}

	// A fresh defaulted loan can be claimed through the batch path.
	offerID, err := engine.CreateOffer(lender, collection, big.NewInt(1000), 500, duration, testNow+3600)
	if err != nil {
		t.Fatalf("create offer: %v", err)
	}
	assets.mint(collection, 3, borrower)
	loanID, err := engine.AcceptOffer(borrower, offerID, 3)
	if err != nil {
		t.Fatalf("accept offer: %v", err)
	}
	engine.SetNowFunc(func() int64 { return testNow + duration + 1 })
	if err := engine.BatchClaimCollateral(lender, []uint64{loanID}); err != nil {
		t.Fatalf("batch claim: %v", err)
	}
	if owner, _ := assets.OwnerOf(collection, 3); owner != lender {
		t.Fatalf("token 3 owner after claim: got %s want lender", owner.Hex())
	}
}
