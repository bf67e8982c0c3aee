package loan

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"nftlend/core/types"
)

const (
	EventTypeOfferCreated          = "loan.offer_created"
	EventTypeOfferCancelled        = "loan.offer_cancelled"
	EventTypeLoanStarted           = "loan.started"
	EventTypeLoanRepaid            = "loan.repaid"
	EventTypeCollateralClaimed     = "loan.collateral_claimed"
	EventTypeParamsUpdated         = "loan.params_updated"
	EventTypeCollectionWhitelisted = "loan.collection_whitelisted"
)

// NewOfferCreatedEvent returns the canonical payload for a newly created
// offer.
func NewOfferCreatedEvent(o *LoanOffer) *types.Event { return newOfferEvent(EventTypeOfferCreated, o) }

// NewOfferCancelledEvent returns the canonical payload emitted when a lender
// withdraws an open offer.
func NewOfferCancelledEvent(o *LoanOffer) *types.Event {
	return newOfferEvent(EventTypeOfferCancelled, o)
}

// NewLoanStartedEvent returns the canonical payload emitted when an offer is
// accepted and the loan window opens.
func NewLoanStartedEvent(l *Loan, offerID uint64) *types.Event {
	evt := newLoanEvent(EventTypeLoanStarted, l)
	evt.Attributes["offerId"] = strconv.FormatUint(offerID, 10)
	return evt
}

// NewLoanRepaidEvent returns the payload emitted on successful repayment,
// including the accrued interest and total transferred back to the lender.
func NewLoanRepaidEvent(l *Loan, interest, total *big.Int) *types.Event {
	evt := newLoanEvent(EventTypeLoanRepaid, l)
	if interest != nil {
		evt.Attributes["interest"] = interest.String()
	}
	if total != nil {
		evt.Attributes["total"] = total.String()
	}
	return evt
}

// NewCollateralClaimedEvent returns the payload emitted when the lender takes
// the collateral after default.
func NewCollateralClaimedEvent(l *Loan) *types.Event {
	return newLoanEvent(EventTypeCollateralClaimed, l)
}

// NewParamsUpdatedEvent returns the payload emitted by administrative
// parameter changes.
func NewParamsUpdatedEvent(field, value string) *types.Event {
	return &types.Event{Type: EventTypeParamsUpdated, Attributes: map[string]string{
		"field": field,
		"value": value,
	}}
}

// NewCollectionWhitelistedEvent returns the payload emitted when a collection
// is added to or removed from the whitelist.
func NewCollectionWhitelistedEvent(collection common.Address, allowed bool) *types.Event {
	return &types.Event{Type: EventTypeCollectionWhitelisted, Attributes: map[string]string{
		"collection": collection.Hex(),
		"allowed":    strconv.FormatBool(allowed),
	}}
}

func newOfferEvent(eventType string, o *LoanOffer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["offerId"] = strconv.FormatUint(o.ID, 10)
	attrs["lender"] = o.Lender.Hex()
	attrs["collection"] = o.Collection.Hex()
	if o.Principal != nil {
		attrs["principal"] = o.Principal.String()
	}
	attrs["interestRateBps"] = strconv.FormatUint(o.InterestRateBps, 10)
	attrs["duration"] = strconv.FormatInt(o.Duration, 10)
	attrs["expiry"] = strconv.FormatInt(o.Expiry, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newLoanEvent(eventType string, l *Loan) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["loanId"] = strconv.FormatUint(l.ID, 10)
	attrs["borrower"] = l.Borrower.Hex()
	attrs["lender"] = l.Lender.Hex()
	attrs["collection"] = l.Collection.Hex()
	attrs["tokenId"] = strconv.FormatUint(l.TokenID, 10)
	if l.Principal != nil {
		attrs["principal"] = l.Principal.String()
	}
	if l.Fee != nil {
		attrs["fee"] = l.Fee.String()
	}
	attrs["interestRateBps"] = strconv.FormatUint(l.InterestRateBps, 10)
	attrs["startTime"] = strconv.FormatInt(l.StartTime, 10)
	attrs["duration"] = strconv.FormatInt(l.Duration, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
