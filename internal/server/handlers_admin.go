package server

import (
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"remitrails/internal/oracle"
)

// Admin requests carry the caller address explicitly; the ledger enforces
// ownership, the HMAC layer only proves the request came from the admin
// channel.

type feeRateRequest struct {
	CallerAddress string `json:"callerAddress"`
	RateBps       uint32 `json:"rateBps"`
}

func (s *Server) handleSetFeeRate(w http.ResponseWriter, r *http.Request) {
	var payload feeRateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return
	}
	if err := s.ledger.SetPlatformFeeRate(r.Context(), caller, payload.RateBps); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type addressTargetRequest struct {
	CallerAddress string `json:"callerAddress"`
	Address       string `json:"address"`
}

func (s *Server) handleSetFeeCollector(w http.ResponseWriter, r *http.Request) {
	caller, target, ok := s.decodeAddressTarget(w, r)
	if !ok {
		return
	}
	if err := s.ledger.SetFeeCollector(caller, target); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleAddOperator(w http.ResponseWriter, r *http.Request) {
	caller, target, ok := s.decodeAddressTarget(w, r)
	if !ok {
		return
	}
	if err := s.ledger.AddOperator(caller, target); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// handleRemoveOperator takes the operator from the path; the caller still
// arrives in the body like every other admin request.
func (s *Server) handleRemoveOperator(w http.ResponseWriter, r *http.Request) {
	target, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid operator address")
		return
	}
	caller, ok := s.decodeCaller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.RemoveOperator(caller, target); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, target, ok := s.decodeAddressTarget(w, r)
	if !ok {
		return
	}
	if err := s.ledger.TransferOwnership(caller, target); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type callerOnlyRequest struct {
	CallerAddress string `json:"callerAddress"`
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.decodeCaller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Pause(r.Context(), caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.decodeCaller(w, r)
	if !ok {
		return
	}
	if err := s.ledger.Unpause(r.Context(), caller); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type priceFeedRequest struct {
	CallerAddress string `json:"callerAddress"`
	Asset         string `json:"asset"`
	FeedAddress   string `json:"feedAddress,omitempty"`
	StaticPrice   string `json:"staticPrice,omitempty"`
	AssetDecimals uint8  `json:"assetDecimals"`
}

// handleSetPriceFeed binds an asset to either an on-chain aggregator (when a
// feed factory is configured) or a fixed-price feed for offline deployments.
func (s *Server) handleSetPriceFeed(w http.ResponseWriter, r *http.Request) {
	var payload priceFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return
	}
	asset, err := parseAsset(payload.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid asset address")
		return
	}

	var feed oracle.Feed
	switch {
	case payload.FeedAddress != "":
		if s.feedFactory == nil {
			writeError(w, http.StatusUnprocessableEntity, "no_chain_connection", "no chain connection configured for aggregator feeds")
			return
		}
		feedAddr, err := parseAddress(payload.FeedAddress)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_address", "invalid feed address")
			return
		}
		if feed, err = s.feedFactory(feedAddr); err != nil {
			writeError(w, http.StatusBadGateway, "feed_unavailable", err.Error())
			return
		}
	case payload.StaticPrice != "":
		price, err := parseAmount(payload.StaticPrice)
		if err != nil || price.Sign() <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_amount", "static price must be a positive integer")
			return
		}
		feed = oracle.NewStaticFeed(price, uint8(s.cfg.StaticPriceDecimals))
	default:
		writeError(w, http.StatusBadRequest, "invalid_feed", "either feedAddress or staticPrice is required")
		return
	}

	if err := s.ledger.SetPriceFeed(caller, asset, feed, payload.AssetDecimals); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type supportRequest struct {
	CallerAddress string `json:"callerAddress"`
	Code          string `json:"code"`
	Supported     bool   `json:"supported"`
}

func (s *Server) handleSetCountry(w http.ResponseWriter, r *http.Request) {
	var payload supportRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return
	}
	if err := s.ledger.SetCountrySupport(caller, payload.Code, payload.Supported); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var payload supportRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return
	}
	if err := s.ledger.SetProviderSupport(caller, payload.Code, payload.Supported); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

type withdrawRequest struct {
	CallerAddress      string `json:"callerAddress"`
	Asset              string `json:"asset"`
	Amount             string `json:"amount"`
	DestinationAddress string `json:"destinationAddress"`
}

func (s *Server) handleEmergencyWithdraw(w http.ResponseWriter, r *http.Request) {
	var payload withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return
	}
	asset, err := parseAsset(payload.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid asset address")
		return
	}
	amount, err := parseAmount(payload.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_amount", "invalid amount")
		return
	}
	dest, err := parseAddress(payload.DestinationAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid destination address")
		return
	}
	if err := s.ledger.EmergencyWithdraw(r.Context(), caller, asset, amount, dest); err != nil {
		writeLedgerError(w, err)
		return
	}
	s.refreshLedgerGauges(asset)
	writeJSON(w, http.StatusOK, struct {
		OK        bool   `json:"ok"`
		Remaining string `json:"remaining"`
	}{
		OK:        true,
		Remaining: s.ledger.GetBalance(asset).String(),
	})
}

func (s *Server) decodeAddressTarget(w http.ResponseWriter, r *http.Request) (caller, target common.Address, ok bool) {
	var payload addressTargetRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return common.Address{}, common.Address{}, false
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return common.Address{}, common.Address{}, false
	}
	target, err = parseAddress(payload.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid target address")
		return common.Address{}, common.Address{}, false
	}
	return caller, target, true
}

func (s *Server) decodeCaller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	var payload callerOnlyRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return common.Address{}, false
	}
	caller, err := parseAddress(payload.CallerAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid caller address")
		return common.Address{}, false
	}
	return caller, true
}
