package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"remitrails/internal/funding"
	"remitrails/internal/ledger"
	"remitrails/internal/oracle"
)

type okResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: message})
}

// writeLedgerError maps domain sentinels onto HTTP statuses. Authorization
// failures are 403, state conflicts 409, validation 400/422, upstream feed
// or funding trouble 502.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, ledger.ErrNotOperator):
		writeError(w, http.StatusForbidden, "not_operator", err.Error())
	case errors.Is(err, ledger.ErrPaused):
		writeError(w, http.StatusConflict, "paused", err.Error())
	case errors.Is(err, ledger.ErrNotPaused):
		writeError(w, http.StatusConflict, "not_paused", err.Error())
	case errors.Is(err, ledger.ErrRecordNotPending):
		writeError(w, http.StatusConflict, "not_pending", err.Error())
	case errors.Is(err, ledger.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ledger.ErrAmountBelowMinimum):
		writeError(w, http.StatusBadRequest, "amount_below_minimum", err.Error())
	case errors.Is(err, ledger.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "invalid_phone", err.Error())
	case errors.Is(err, ledger.ErrCountryNotSupported):
		writeError(w, http.StatusBadRequest, "country_not_supported", err.Error())
	case errors.Is(err, ledger.ErrProviderNotSupported):
		writeError(w, http.StatusBadRequest, "provider_not_supported", err.Error())
	case errors.Is(err, ledger.ErrValueMismatch):
		writeError(w, http.StatusBadRequest, "value_mismatch", err.Error())
	case errors.Is(err, ledger.ErrFeeRateTooHigh):
		writeError(w, http.StatusBadRequest, "fee_rate_too_high", err.Error())
	case errors.Is(err, ledger.ErrInvalidAddress):
		writeError(w, http.StatusBadRequest, "invalid_address", err.Error())
	case errors.Is(err, ledger.ErrInsufficientEscrow):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_escrow", err.Error())
	case errors.Is(err, funding.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_funds", err.Error())
	case errors.Is(err, funding.ErrUnknownAsset):
		writeError(w, http.StatusUnprocessableEntity, "unknown_asset", err.Error())
	case errors.Is(err, oracle.ErrPriceFeedUnbound):
		writeError(w, http.StatusUnprocessableEntity, "price_feed_unbound", err.Error())
	case errors.Is(err, oracle.ErrInvalidPriceReading):
		writeError(w, http.StatusBadGateway, "invalid_price_reading", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
