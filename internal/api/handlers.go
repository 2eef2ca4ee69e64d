package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"manga/offchain/internal/artifacts"
	"manga/offchain/internal/errs"
	"manga/offchain/internal/stats"
	"manga/offchain/internal/validate"
)

// StatsReader serves creator and investor statistics
type StatsReader interface {
	CreatorStats(ctx context.Context, creator common.Address) (*stats.CreatorStats, error)
	InvestorStats(ctx context.Context, investor common.Address) (*stats.InvestorStats, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store  artifacts.Store
	stats  StatsReader
	logger *zap.Logger
}

// NewHandler creates a new API handler. stats may be nil when no hub
// address is configured; the stats endpoints then answer 503.
func NewHandler(store artifacts.Store, stats StatsReader, logger *zap.Logger) *Handler {
	return &Handler{
		store:  store,
		stats:  stats,
		logger: logger,
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
		Stats:   h.stats != nil,
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Deployments ====================

// HandleListDeployments handles GET /api/v1/deployments
func (h *Handler) HandleListDeployments(w http.ResponseWriter, r *http.Request) {
	keys, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list deployments", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list deployments", err)
		return
	}

	response := ListDeploymentsResponse{Keys: keys}
	if len(keys) > 0 {
		response.Latest = keys[len(keys)-1]
	}
	respondJSON(w, http.StatusOK, response)
}

// HandleGetDeployment handles GET /api/v1/deployments/{key}
// The key "latest" returns the most recent record
func (h *Handler) HandleGetDeployment(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if key == "" {
		key = artifacts.LatestKey
	}

	h.logger.Debug("Getting deployment", zap.String("key", key))

	record, err := h.store.Load(r.Context(), key)
	if err != nil {
		h.logger.Warn("Failed to load deployment", zap.String("key", key), zap.Error(err))
		respondError(w, statusFor(err), "Failed to load deployment", err)
		return
	}

	respondJSON(w, http.StatusOK, record)
}

// ==================== Stats ====================

// HandleCreatorStats handles GET /api/v1/creators/{address}/stats
func (h *Handler) HandleCreatorStats(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.subject(w, r)
	if !ok {
		return
	}

	result, err := h.stats.CreatorStats(r.Context(), addr)
	if err != nil {
		h.logger.Warn("Failed to get creator stats", zap.String("creator", addr.Hex()), zap.Error(err))
		respondError(w, statusFor(err), "Failed to get creator stats", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// HandleInvestorStats handles GET /api/v1/investors/{address}/stats
func (h *Handler) HandleInvestorStats(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.subject(w, r)
	if !ok {
		return
	}

	result, err := h.stats.InvestorStats(r.Context(), addr)
	if err != nil {
		h.logger.Warn("Failed to get investor stats", zap.String("investor", addr.Hex()), zap.Error(err))
		respondError(w, statusFor(err), "Failed to get investor stats", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// subject validates the {address} path variable and checks stats are enabled
func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	if h.stats == nil {
		respondError(w, http.StatusServiceUnavailable, "Stats are not configured", nil)
		return common.Address{}, false
	}

	addr, err := validate.Address(mux.Vars(r)["address"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid address", err)
		return common.Address{}, false
	}
	return addr, true
}

// ==================== Helper Functions ====================

// statusFor maps the error taxonomy to an HTTP status
func statusFor(err error) int {
	var (
		validation *errs.ValidationError
		notFound   *errs.NotFoundError
		query      *errs.QueryError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &query):
		// the hub reverts with "... data not found" for unknown subjects
		if strings.Contains(err.Error(), "data not found") {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't send response since headers already written
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
