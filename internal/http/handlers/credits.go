package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/arnav-rishi/creativia-nexus-sub000/internal/domain"
)

const defaultTransactionLimit = 50

type balanceResponse struct {
	UserID         string `json:"user_id"`
	Balance        int64  `json:"balance"`
	TotalPurchased int64  `json:"total_purchased"`
	TotalSpent     int64  `json:"total_spent"`
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description"`
	JobID       string    `json:"job_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreditsBalance returns the caller's account snapshot, provisioning the
// account with the signup bonus on first contact.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	if err := a.Ledger.EnsureAccount(r.Context(), userID); err != nil {
		a.Log.Error().Err(err).Str("user_id", userID).Msg("ensure account")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	account, err := a.Ledger.Balance(r.Context(), userID)
	if err != nil {
		a.Log.Error().Err(err).Str("user_id", userID).Msg("load balance")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	a.json(w, http.StatusOK, balanceResponse{
		UserID:         account.UserID,
		Balance:        account.Balance,
		TotalPurchased: account.TotalPurchased,
		TotalSpent:     account.TotalSpent,
	})
}

// CreditsTransactions lists the caller's ledger history, newest first.
func (a *App) CreditsTransactions(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	txs, err := a.Ledger.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		a.Log.Error().Err(err).Str("user_id", userID).Msg("list transactions")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load transactions")
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, toTransactionResponse(tx))
	}
	a.json(w, http.StatusOK, map[string]any{"transactions": items})
}

func toTransactionResponse(tx domain.CreditTransaction) transactionResponse {
	return transactionResponse{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Type:        string(tx.Type),
		Description: tx.Description,
		JobID:       tx.JobID,
		CreatedAt:   tx.CreatedAt,
	}
}
