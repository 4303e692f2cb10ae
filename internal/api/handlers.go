/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's query
 * endpoints: the authenticated balance lookup and the internal failed-sync
 * listing used by the reconciliation sweep.
 *
 * @dependencies
 * - net/http, encoding/json, strconv: Standard Go libraries.
 * - internal/app: The service layer containing business logic.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/kudipay/wallet-service/internal/app"
	"github.com/kudipay/wallet-service/internal/domain"
	"github.com/kudipay/wallet-service/internal/store"
)

// WalletHandlers holds dependencies for the wallet query handlers.
type WalletHandlers struct {
	Service *app.Service
}

// NewWalletHandlers creates a new WalletHandlers instance.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{Service: service}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed to marshal response\" err=%v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal Server Error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// GetBalanceHandler returns the authenticated user's wallet balance.
func (h *WalletHandlers) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Could not identify user from token")
		return
	}

	balance, err := h.Service.GetWalletBalance(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			respondWithError(w, http.StatusNotFound, "Wallet account not found")
			return
		}
		log.Printf("level=error component=api msg=\"balance lookup failed\" user_id=%s err=%v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch wallet balance")
		return
	}

	respondWithJSON(w, http.StatusOK, balance)
}

// ListFailedSyncsHandler lists failed-sync records for the internal
// reconciliation sweep. Guarded by the internal API key middleware.
func (h *WalletHandlers) ListFailedSyncsHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)

	records, err := h.Service.ListFailedSyncs(r.Context(), limit, offset)
	if err != nil {
		log.Printf("level=error component=api msg=\"failed sync listing failed\" err=%v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list failed syncs")
		return
	}
	if records == nil {
		records = []domain.FailedSync{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(records),
		"items": records,
	})
}

// ListVerificationAttemptsHandler lists rejected-delivery audit records for
// manual inspection. Guarded by the internal API key middleware.
func (h *WalletHandlers) ListVerificationAttemptsHandler(w http.ResponseWriter, r *http.Request) {
	limit := parseQueryInt(r, "limit", 50)
	offset := parseQueryInt(r, "offset", 0)

	records, err := h.Service.ListVerificationAttempts(r.Context(), limit, offset)
	if err != nil {
		log.Printf("level=error component=api msg=\"verification attempt listing failed\" err=%v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to list verification attempts")
		return
	}
	if records == nil {
		records = []domain.VerificationAttempt{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(records),
		"items": records,
	})
}

func parseQueryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
