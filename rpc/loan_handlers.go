package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type createOfferParams struct {
	Lender          string `json:"lender"`
	Collection      string `json:"collection"`
	Principal       string `json:"principal"`
	InterestRateBps uint64 `json:"interestRateBps"`
	Duration        int64  `json:"duration"`
	Expiry          int64  `json:"expiry"`
}

type acceptOfferParams struct {
	Borrower string `json:"borrower"`
	OfferID  uint64 `json:"offerId"`
	TokenID  uint64 `json:"tokenId"`
}

type offerIDParams struct {
	Caller  string `json:"caller"`
	OfferID uint64 `json:"offerId"`
}

type loanIDParams struct {
	Caller string `json:"caller"`
	LoanID uint64 `json:"loanId"`
}

type batchCreateParams struct {
	Lender        string   `json:"lender"`
	Collections   []string `json:"collections"`
	Principals    []string `json:"principals"`
	InterestRates []uint64 `json:"interestRates"`
	Durations     []int64  `json:"durations"`
	Expiries      []int64  `json:"expiries"`
}

type batchAcceptParams struct {
	Borrower string   `json:"borrower"`
	OfferIDs []uint64 `json:"offerIds"`
	TokenIDs []uint64 `json:"tokenIds"`
}

type batchIDParams struct {
	Caller string   `json:"caller"`
	IDs    []uint64 `json:"ids"`
}

type whitelistParams struct {
	Collection string `json:"collection"`
	Allowed    bool   `json:"allowed"`
}

type valueParams struct {
	Value uint64 `json:"value"`
}

type addressParams struct {
	Address string `json:"address"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected exactly one parameter object")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(field, value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, value)
	}
	return common.HexToAddress(trimmed), nil
}

func parseAmount(field, value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s amount %q", field, value)
	}
	return amount, nil
}

func (s *Server) handleCreateOffer(w http.ResponseWriter, req *RPCRequest) {
	var params createOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	lender, err := parseAddress("lender", params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	principal, err := parseAmount("principal", params.Principal)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.CreateOffer(lender, collection, principal, params.InterestRateBps, params.Duration, params.Expiry)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"offerId": id})
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, req *RPCRequest) {
	var params acceptOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	id, err := s.engine.AcceptOffer(borrower, params.OfferID, params.TokenID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"loanId": id})
}

func (s *Server) handleCancelOffer(w http.ResponseWriter, req *RPCRequest) {
	var params offerIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.CancelOffer(caller, params.OfferID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleRepay(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.Repay(caller, params.LoanID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"repaid": true})
}

func (s *Server) handleClaimCollateral(w http.ResponseWriter, req *RPCRequest) {
	var params loanIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.ClaimCollateral(caller, params.LoanID); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"claimed": true})
}

func (s *Server) handleBatchCreateOffers(w http.ResponseWriter, req *RPCRequest) {
	var params batchCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	lender, err := parseAddress("lender", params.Lender)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collections := make([]common.Address, 0, len(params.Collections))
	for _, raw := range params.Collections {
		collection, err := parseAddress("collection", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		collections = append(collections, collection)
	}
	principals := make([]*big.Int, 0, len(params.Principals))
	for _, raw := range params.Principals {
		principal, err := parseAmount("principal", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
		principals = append(principals, principal)
	}
	ids, err := s.engine.BatchCreateOffers(lender, collections, principals, params.InterestRates, params.Durations, params.Expiries)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string][]uint64{"offerIds": ids})
}

func (s *Server) handleBatchAcceptOffers(w http.ResponseWriter, req *RPCRequest) {
	var params batchAcceptParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ids, err := s.engine.BatchAcceptOffers(borrower, params.OfferIDs, params.TokenIDs)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string][]uint64{"loanIds": ids})
}

func (s *Server) handleBatchCancelOffers(w http.ResponseWriter, req *RPCRequest) {
	s.handleBatchByID(w, req, func(caller common.Address, ids []uint64) error {
		return s.engine.BatchCancelOffers(caller, ids)
	})
}

func (s *Server) handleBatchRepay(w http.ResponseWriter, req *RPCRequest) {
	s.handleBatchByID(w, req, func(caller common.Address, ids []uint64) error {
		return s.engine.BatchRepay(caller, ids)
	})
}

func (s *Server) handleBatchClaimCollateral(w http.ResponseWriter, req *RPCRequest) {
	s.handleBatchByID(w, req, func(caller common.Address, ids []uint64) error {
		return s.engine.BatchClaimCollateral(caller, ids)
	})
}

func (s *Server) handleBatchByID(w http.ResponseWriter, req *RPCRequest, fn func(common.Address, []uint64) error) {
	var params batchIDParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := fn(caller, params.IDs); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleGetOffer(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		OfferID uint64 `json:"offerId"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	offer, err := s.engine.GetOffer(params.OfferID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, offer)
}

func (s *Server) handleGetLoan(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		LoanID uint64 `json:"loanId"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	record, err := s.engine.GetLoan(params.LoanID)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, record)
}

func (s *Server) handleGetOfferCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.OfferCount()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": count})
}

func (s *Server) handleGetLoanCount(w http.ResponseWriter, req *RPCRequest) {
	count, err := s.engine.LoanCount()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": count})
}

func (s *Server) handleIsWhitelisted(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	whitelisted, err := s.engine.IsWhitelisted(collection)
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"whitelisted": whitelisted})
}

func (s *Server) handleGetParams(w http.ResponseWriter, req *RPCRequest) {
	params, err := s.engine.Params()
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, params)
}

func (s *Server) handleAdminSetWhitelisted(w http.ResponseWriter, req *RPCRequest) {
	var params whitelistParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	collection, err := parseAddress("collection", params.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetWhitelisted(collection, params.Allowed); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAdminSetFeeBps(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetFeeBps)
}

func (s *Server) handleAdminSetMinDuration(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetMinDuration)
}

func (s *Server) handleAdminSetMaxDuration(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetMaxDuration)
}

func (s *Server) handleAdminSetMinRate(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetMinInterestRate)
}

func (s *Server) handleAdminSetMaxRate(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetMaxInterestRate)
}

func (s *Server) handleAdminSetBatchLimit(w http.ResponseWriter, req *RPCRequest) {
	s.handleAdminValue(w, req, s.engine.SetBatchLimit)
}

func (s *Server) handleAdminValue(w http.ResponseWriter, req *RPCRequest, fn func(uint64) error) {
	var params valueParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	if err := fn(params.Value); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleAdminSetTreasury(w http.ResponseWriter, req *RPCRequest) {
	var params addressParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameters", err.Error())
		return
	}
	treasury, err := parseAddress("treasury", params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := s.engine.SetTreasury(treasury); err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}
