package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wallet-score-lab/internal/domain"
	"wallet-score-lab/internal/storage"
)

// DefaultTransactionLimit caps /transactions when no limit is given.
const DefaultTransactionLimit = 1000

// TransactionHandler exposes the stored lending transactions.
type TransactionHandler struct {
	Transactions storage.TransactionStore
	Logger       *zap.Logger
}

type transactionView struct {
	Wallet        string    `json:"wallet"`
	TxHash        string    `json:"tx_hash"`
	Timestamp     time.Time `json:"timestamp"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	ContractLabel string    `json:"contract_label"`
	Action        string    `json:"action"`
	Value         string    `json:"value"`
}

func (h *TransactionHandler) Register(r *gin.Engine) {
	r.GET("/transactions", h.list)
	r.GET("/wallets/:wallet/transactions", h.walletTransactions)
}

// list returns stored rows, optionally narrowed by ?action= and capped by ?limit=.
func (h *TransactionHandler) list(c *gin.Context) {
	limit := DefaultTransactionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(c, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	action := c.Query("action")

	records, err := h.Transactions.GetAll(c.Request.Context())
	if err != nil {
		h.internalError(c, err)
		return
	}

	out := make([]transactionView, 0)
	matched := 0
	for _, r := range records {
		if action != "" && r.Action != action {
			continue
		}
		matched++
		if len(out) < limit {
			out = append(out, toTransactionView(r))
		}
	}
	Ok(c, out, map[string]any{"count": len(out), "total": matched})
}

func (h *TransactionHandler) walletTransactions(c *gin.Context) {
	wallet, err := domain.CanonicalWallet(c.Param("wallet"))
	if err != nil {
		Error(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	records, err := h.Transactions.GetByWallet(c.Request.Context(), wallet)
	if err != nil {
		h.internalError(c, err)
		return
	}
	if len(records) == 0 {
		Error(c, http.StatusNotFound, "no transactions stored for wallet", nil)
		return
	}

	out := make([]transactionView, 0, len(records))
	for _, r := range records {
		out = append(out, toTransactionView(r))
	}
	Ok(c, out, map[string]any{"wallet": wallet, "count": len(out)})
}

func (h *TransactionHandler) internalError(c *gin.Context, err error) {
	if h.Logger != nil {
		h.Logger.Error("transaction store query failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	Error(c, http.StatusInternalServerError, "internal error", nil)
}

func toTransactionView(r *domain.TransactionRecord) transactionView {
	return transactionView{
		Wallet:        r.Wallet,
		TxHash:        r.TxHash,
		Timestamp:     r.Timestamp,
		From:          r.From,
		To:            r.To,
		ContractLabel: r.ContractLabel,
		Action:        r.Action,
		Value:         r.Value,
	}
}
