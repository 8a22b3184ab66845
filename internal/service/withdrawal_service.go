package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// EventWithdrawalUpdated событие для исполнителя о решении по выводу.
const EventWithdrawalUpdated = "withdrawal:updated"

// withdrawalStatusAll снимает фильтр по статусу в списке выводов.
const withdrawalStatusAll = "all"

// WithdrawalLedger - примитивы журнала, через которые проходит согласование выводов.
type WithdrawalLedger interface {
	ApproveWithdrawal(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error)
}

// WithdrawalQueries - выборки журнала для админки.
type WithdrawalQueries interface {
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	CountByStatus(ctx context.Context, txnType valueobject.TransactionType, status valueobject.TransactionStatus) (int, error)
}

// WithdrawalService - согласование выводов администратором.
type WithdrawalService struct {
	ledger  WithdrawalLedger
	queries WithdrawalQueries
	hub     WSNotifier
}

func NewWithdrawalService(ledger WithdrawalLedger, queries WithdrawalQueries) *WithdrawalService {
	return &WithdrawalService{ledger: ledger, queries: queries}
}

// SetHub устанавливает WebSocket hub для отправки уведомлений.
func (s *WithdrawalService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// Approve подтверждает вывод. Повторный вызов возвращает AlreadyResolved.
func (s *WithdrawalService) Approve(ctx context.Context, admin models.Principal, id uuid.UUID) (*models.Transaction, error) {
	if !admin.IsAdmin() {
		return nil, apperror.ErrAdminOnly
	}
	txn, err := s.ledger.ApproveWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolved(admin, txn)
	return txn, nil
}

// Reject отклоняет вывод с причиной.
func (s *WithdrawalService) Reject(ctx context.Context, admin models.Principal, id uuid.UUID, reason string) (*models.Transaction, error) {
	if !admin.IsAdmin() {
		return nil, apperror.ErrAdminOnly
	}
	txn, err := s.ledger.RejectWithdrawal(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	s.resolved(admin, txn)
	return txn, nil
}

func (s *WithdrawalService) resolved(admin models.Principal, txn *models.Transaction) {
	logger.Log.WithFields(logrus.Fields{
		"admin_id":       admin.ID,
		"transaction_id": txn.TransactionID,
		"status":         txn.Status,
	}).Info("withdrawal: решение принято")

	if s.hub == nil || txn.FromUserID == nil {
		return
	}
	if err := s.hub.BroadcastToUser(*txn.FromUserID, EventWithdrawalUpdated, txn); err != nil {
		logger.Log.WithError(err).Warn("withdrawal: не удалось отправить уведомление")
	}
}

// List возвращает выводы с фильтром по статусу (по умолчанию pending, "all" - все)
// и отдельно число ожидающих заявок для счётчика в админке.
func (s *WithdrawalService) List(ctx context.Context, admin models.Principal, status string, limit, offset int) (*models.TransactionPage, error) {
	if !admin.IsAdmin() {
		return nil, apperror.ErrAdminOnly
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		status = string(valueobject.TransactionStatusPending)
	case withdrawalStatusAll:
		status = ""
	default:
		if !valueobject.TransactionStatus(status).IsValid() {
			return nil, apperror.Validation("некорректный статус вывода")
		}
	}

	items, total, err := s.queries.ListTransactions(ctx, models.TransactionFilter{
		Type:   string(valueobject.TransactionTypeWithdrawal),
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, translate(err)
	}
	pending, err := s.queries.CountByStatus(ctx, valueobject.TransactionTypeWithdrawal, valueobject.TransactionStatusPending)
	if err != nil {
		return nil, translate(err)
	}
	return &models.TransactionPage{Items: items, Total: total, PendingCount: pending}, nil
}
