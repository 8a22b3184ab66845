package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/http/handlers/common"
	"github.com/ignatzorin/skillhire-backend/internal/models"
)

// LedgerOperations чтение журнала и запрос вывода.
type LedgerOperations interface {
	ListTransactions(ctx context.Context, p models.Principal, filter models.TransactionFilter) (*models.TransactionPage, error)
	GetTransaction(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Transaction, error)
	EarningsSummary(ctx context.Context, freelancerID uuid.UUID) (*models.EarningsSummary, error)
	ComputeAvailableBalance(ctx context.Context, freelancerID uuid.UUID) (models.Balance, error)
	RequestWithdrawal(ctx context.Context, p models.Principal, amount valueobject.Money, method string) (*models.Transaction, error)
	CommissionSummary(ctx context.Context, recent int) (*models.CommissionSummary, error)
}

type PaymentHandler struct {
	ledger LedgerOperations
}

func NewPaymentHandler(ledger LedgerOperations) *PaymentHandler {
	return &PaymentHandler{ledger: ledger}
}

// GetBalance GET /payments/balance
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	balance, err := h.ledger.ComputeAvailableBalance(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// GetEarnings GET /payments/earnings
func (h *PaymentHandler) GetEarnings(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	summary, err := h.ledger.EarningsSummary(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RequestWithdrawal POST /payments/withdraw
func (h *PaymentHandler) RequestWithdrawal(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req struct {
		Amount        valueobject.Money `json:"amount"`
		PaymentMethod string            `json:"payment_method"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	txn, err := h.ledger.RequestWithdrawal(c.Request.Context(), p, req.Amount, req.PaymentMethod)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// ListTransactions GET /payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	page, err := h.ledger.ListTransactions(c.Request.Context(), p, models.TransactionFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// GetTransaction GET /payments/transactions/:id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	txn, err := h.ledger.GetTransaction(c.Request.Context(), p, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
