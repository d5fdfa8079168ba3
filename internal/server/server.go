package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"remitrails/internal/audit"
	"remitrails/internal/config"
	"remitrails/internal/funding"
	"remitrails/internal/hmacauth"
	"remitrails/internal/idempotency"
	"remitrails/internal/ledger"
	"remitrails/internal/oracle"
)

// FeedFactory builds a price feed from an aggregator address, used by the
// admin price-feed binding endpoint. Nil when the service runs without a
// chain connection.
type FeedFactory func(address common.Address) (oracle.Feed, error)

type Server struct {
	cfg         config.Config
	ledger      *ledger.Ledger
	store       idempotency.Store
	audit       audit.Log
	feedFactory FeedFactory

	apiHMAC      *hmacauth.Verifier
	operatorHMAC *hmacauth.Verifier
	adminHMAC    *hmacauth.Verifier

	httpServer  *http.Server
	metrics     *metricsRegistry
	log         zerolog.Logger
	dbHealthFn  func(context.Context) error
	rpcHealthFn func(context.Context) error
}

type Options struct {
	Store       idempotency.Store
	Audit       audit.Log
	FeedFactory FeedFactory
	RPCHealthFn func(context.Context) error
}

func NewServer(cfg config.Config, led *ledger.Ledger, opts Options, log zerolog.Logger) *Server {
	if opts.Store == nil {
		opts.Store = idempotency.NewMemoryStore()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NopLog{}
	}

	s := &Server{
		cfg:         cfg,
		ledger:      led,
		store:       opts.Store,
		audit:       opts.Audit,
		feedFactory: opts.FeedFactory,
		metrics:     newMetricsRegistry(),
		log:         log,
		rpcHealthFn: opts.RPCHealthFn,
	}

	s.apiHMAC = &hmacauth.Verifier{
		Secret:  cfg.APIHMACSecret,
		MaxSkew: cfg.HMACClockSkew(),
	}
	s.operatorHMAC = &hmacauth.Verifier{
		Secret:          cfg.OperatorHMACSecret,
		MaxSkew:         cfg.HMACClockSkew(),
		SignatureHeader: "X-Operator-Signature",
		TimestampHeader: "X-Request-Timestamp",
	}
	s.adminHMAC = &hmacauth.Verifier{
		Secret:          cfg.AdminHMACSecret,
		MaxSkew:         cfg.HMACClockSkew(),
		SignatureHeader: "X-Admin-Signature",
		TimestampHeader: "X-Request-Timestamp",
	}

	if checker, ok := opts.Store.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	} else if checker, ok := opts.Audit.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.ServerPort),
		Handler:           s.routes(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.apiHMAC.Middleware)
			r.Post("/transfers", s.handleInitiateTransfer)
		})
		r.Group(func(r chi.Router) {
			r.Use(s.operatorHMAC.Middleware)
			r.Post("/transfers/{id}/complete", s.handleCompleteTransfer)
		})

		r.Get("/transfers/{id}", s.handleGetTransfer)
		r.Get("/stats", s.handleStats)
		r.Get("/balances/{asset}", s.handleBalance)
		r.Get("/price/{asset}", s.handlePrice)
		r.Get("/support", s.handleSupport)
		r.Get("/operators/{address}", s.handleOperatorStatus)
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", s.metrics.handler())

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.adminHMAC.Middleware)
			r.Post("/fee-rate", s.handleSetFeeRate)
			r.Post("/fee-collector", s.handleSetFeeCollector)
			r.Post("/operators", s.handleAddOperator)
			r.Delete("/operators/{address}", s.handleRemoveOperator)
			r.Post("/pause", s.handlePause)
			r.Post("/unpause", s.handleUnpause)
			r.Post("/price-feeds", s.handleSetPriceFeed)
			r.Post("/countries", s.handleSetCountry)
			r.Post("/providers", s.handleSetProvider)
			r.Post("/withdraw", s.handleEmergencyWithdraw)
			r.Post("/ownership", s.handleTransferOwnership)
		})
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("API listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type initiateTransferRequest struct {
	SenderAddress  string `json:"senderAddress"`
	Asset          string `json:"asset"`
	Amount         string `json:"amount"`
	AttachedValue  string `json:"attachedValue"`
	RecipientPhone string `json:"recipientPhone"`
	CountryCode    string `json:"countryCode"`
	ProviderCode   string `json:"providerCode"`
}

type initiateTransferResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	NetAmount string `json:"netAmount"`
	FeeAmount string `json:"feeAmount"`
}

func (s *Server) handleInitiateTransfer(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing_idempotency_key", "missing X-Idempotency-Key header")
		return
	}

	ctx := r.Context()

	if existing, _ := s.store.Get(ctx, key); existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.StatusCode)
		_, _ = w.Write(existing.Response)
		s.metrics.incTransfer("cached")
		return
	}

	var payload initiateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}

	sender, err := parseAddress(payload.SenderAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid sender address")
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
	attached := new(big.Int)
	if payload.AttachedValue != "" {
		if attached, err = parseAmount(payload.AttachedValue); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_amount", "invalid attached value")
			return
		}
	}

	id, err := s.ledger.InitiateTransfer(ctx, sender, asset, amount,
		payload.RecipientPhone, payload.CountryCode, payload.ProviderCode, attached)
	if err != nil {
		s.metrics.incTransfer("rejected")
		writeLedgerError(w, err)
		return
	}

	rec, err := s.ledger.GetTransfer(id)
	if err != nil {
		s.metrics.incTransfer("rejected")
		writeLedgerError(w, err)
		return
	}
	if err := s.audit.RecordInitiated(ctx, rec); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("id", id.Hex()).Msg("audit write failed")
	}
	s.refreshLedgerGauges(asset)

	respBody := initiateTransferResponse{
		ID:        id.Hex(),
		Status:    rec.Status.String(),
		NetAmount: rec.NetAmount.String(),
		FeeAmount: rec.FeeAmount.String(),
	}
	b, _ := json.Marshal(respBody)

	record := idempotency.Record{
		StatusCode: http.StatusCreated,
		Response:   b,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(s.cfg.IdempotencyWindow()),
	}
	_ = s.store.Save(ctx, key, record)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(b)
	s.metrics.incTransfer("created")
}

type completeTransferRequest struct {
	OperatorAddress string `json:"operatorAddress"`
	Success         bool   `json:"success"`
	SettlementRef   string `json:"settlementRef"`
}

type completeTransferResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleCompleteTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid transfer id")
		return
	}

	var payload completeTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json payload")
		return
	}
	operator, err := parseAddress(payload.OperatorAddress)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid operator address")
		return
	}

	ctx := r.Context()
	if err := s.ledger.CompleteTransfer(ctx, operator, id, payload.Success, payload.SettlementRef); err != nil {
		s.metrics.incCompletion("rejected")
		writeLedgerError(w, err)
		return
	}

	rec, err := s.ledger.GetTransfer(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if err := s.audit.RecordCompleted(ctx, id, rec.Status, rec.SettlementRef); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("id", id.Hex()).Msg("audit write failed")
	}
	if payload.Success {
		s.metrics.incCompletion("success")
	} else {
		s.metrics.incCompletion("failure")
	}

	writeJSON(w, http.StatusOK, completeTransferResponse{
		ID:     id.Hex(),
		Status: rec.Status.String(),
	})
}

type transferResponse struct {
	ID             string    `json:"id"`
	Sender         string    `json:"sender"`
	Asset          string    `json:"asset"`
	GrossAmount    string    `json:"grossAmount"`
	NetAmount      string    `json:"netAmount"`
	FeeAmount      string    `json:"feeAmount"`
	RecipientPhone string    `json:"recipientPhone"`
	CountryCode    string    `json:"countryCode"`
	ProviderCode   string    `json:"providerCode"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	SettlementRef  string    `json:"settlementRef,omitempty"`
}

func (s *Server) handleGetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "invalid transfer id")
		return
	}
	rec, err := s.ledger.GetTransfer(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transferResponse{
		ID:             rec.ID.Hex(),
		Sender:         rec.Sender.Hex(),
		Asset:          rec.Asset.Hex(),
		GrossAmount:    rec.GrossAmount.String(),
		NetAmount:      rec.NetAmount.String(),
		FeeAmount:      rec.FeeAmount.String(),
		RecipientPhone: rec.RecipientPhone,
		CountryCode:    rec.CountryCode,
		ProviderCode:   rec.ProviderCode,
		Status:         rec.Status.String(),
		CreatedAt:      rec.CreatedAt,
		SettlementRef:  rec.SettlementRef,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.ledger.GetStats()
	writeJSON(w, http.StatusOK, struct {
		TotalTransactions uint64 `json:"totalTransactions"`
		TotalVolumeUSD    string `json:"totalVolumeUSD"`
		Paused            bool   `json:"paused"`
		FeeRateBps        uint32 `json:"feeRateBps"`
		FeeCollector      string `json:"feeCollector"`
	}{
		TotalTransactions: stats.TotalTransactions,
		TotalVolumeUSD:    stats.TotalVolumeUSD.String(),
		Paused:            s.ledger.Paused(),
		FeeRateBps:        s.ledger.FeeRateBps(),
		FeeCollector:      s.ledger.FeeCollector().Hex(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid asset address")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}{
		Asset:   asset.Hex(),
		Balance: s.ledger.GetBalance(asset).String(),
	})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	asset, err := parseAsset(chi.URLParam(r, "asset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid asset address")
		return
	}
	price, updatedAt, err := s.ledger.LatestPrice(r.Context(), asset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	decimals, err := s.ledger.PriceDecimals(r.Context(), asset)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Asset     string    `json:"asset"`
		PriceUSD  string    `json:"priceUsd"`
		Decimals  uint8     `json:"decimals"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{
		Asset:     asset.Hex(),
		PriceUSD:  price.String(),
		Decimals:  decimals,
		UpdatedAt: updatedAt,
	})
}

func (s *Server) handleSupport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Countries []string `json:"countries"`
		Providers []string `json:"providers"`
	}{
		Countries: s.ledger.SupportedCountries(),
		Providers: s.ledger.SupportedProviders(),
	})
}

func (s *Server) handleOperatorStatus(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_address", "invalid operator address")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Address  string `json:"address"`
		Operator bool   `json:"operator"`
	}{
		Address:  addr.Hex(),
		Operator: s.ledger.IsOperator(addr),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !overallHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, struct {
		Status   string      `json:"status"`
		Paused   bool        `json:"paused"`
		RPC      interface{} `json:"rpc"`
		Database interface{} `json:"database"`
	}{
		Status:   status,
		Paused:   s.ledger.Paused(),
		RPC:      rpcInfo,
		Database: dbInfo,
	})
}

func (s *Server) refreshLedgerGauges(asset common.Address) {
	bal, _ := new(big.Float).SetInt(s.ledger.GetBalance(asset)).Float64()
	s.metrics.setEscrow(asset.Hex(), bal)
	vol, _ := new(big.Float).SetInt(s.ledger.GetStats().TotalVolumeUSD).Float64()
	s.metrics.setVolumeUSD(vol)
}

func parseAddress(raw string) (common.Address, error) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("invalid address %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// parseAsset accepts "native" (or empty) for the native asset, otherwise a
// hex token contract address.
func parseAsset(raw string) (common.Address, error) {
	if raw == "" || strings.EqualFold(raw, "native") {
		return funding.NativeAsset, nil
	}
	return parseAddress(raw)
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func parseID(raw string) (common.Hash, error) {
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		return common.Hash{}, errors.New("invalid id")
	}
	b, err := hex.DecodeString(raw[2:])
	if err != nil {
		return common.Hash{}, errors.New("invalid id")
	}
	return common.BytesToHash(b), nil
}

// requestIDMiddleware tags every request with an id, echoes it on the
// response and scopes the logger to it so handler logs carry the id.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		logger := s.log.With().Str("requestId", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}
