package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/http/handlers/common"
	"github.com/ignatzorin/skillhire-backend/internal/models"
)

// WithdrawalOperations согласование выводов администратором.
type WithdrawalOperations interface {
	Approve(ctx context.Context, admin models.Principal, id uuid.UUID) (*models.Transaction, error)
	Reject(ctx context.Context, admin models.Principal, id uuid.UUID, reason string) (*models.Transaction, error)
	List(ctx context.Context, admin models.Principal, status string, limit, offset int) (*models.TransactionPage, error)
}

// AdminHandler маршруты /admin: выводы средств и комиссии.
type AdminHandler struct {
	withdrawals WithdrawalOperations
	ledger      LedgerOperations
}

func NewAdminHandler(withdrawals WithdrawalOperations, ledger LedgerOperations) *AdminHandler {
	return &AdminHandler{withdrawals: withdrawals, ledger: ledger}
}

// ListWithdrawals GET /admin/withdrawals?status=&page=&limit=
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	admin, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, _ := common.GetPagination(c)
	page := common.ParseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}

	result, err := h.withdrawals.List(c.Request.Context(), admin, c.Query("status"), limit, (page-1)*limit)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"withdrawals":  result.Items,
		"total":        result.Total,
		"pendingCount": result.PendingCount,
		"page":         page,
		"limit":        limit,
	})
}

// ApproveWithdrawal PUT /admin/withdrawals/:id/approve
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	admin, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	txn, err := h.withdrawals.Approve(c.Request.Context(), admin, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// RejectWithdrawal PUT /admin/withdrawals/:id/reject
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	admin, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := common.BindJSON(c, &req); err != nil {
			common.Fail(c, err)
			return
		}
	}

	txn, err := h.withdrawals.Reject(c.Request.Context(), admin, id, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

// Commissions GET /admin/commissions
func (h *AdminHandler) Commissions(c *gin.Context) {
	recent := common.ParseIntQuery(c, "recent", 10)
	summary, err := h.ledger.CommissionSummary(c.Request.Context(), recent)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
