package service

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

// earningsMonths глубина помесячной статистики заработка.
const earningsMonths = 6

// LedgerRepository описывает журнал транзакций.
type LedgerRepository interface {
	RecordJobPayment(ctx context.Context, jobID uuid.UUID, build repository.PaymentBuilder) (*models.PaymentRecord, error)
	GetBalance(ctx context.Context, freelancerID uuid.UUID) (models.Balance, error)
	CreateWithdrawal(ctx context.Context, req models.WithdrawalRequest, guard repository.BalanceGuard) (*models.Transaction, error)
	ResolveWithdrawal(ctx context.Context, id uuid.UUID, status valueobject.TransactionStatus, reason *string, guard repository.TransactionGuard) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error)
	CountByStatus(ctx context.Context, txnType valueobject.TransactionType, status valueobject.TransactionStatus) (int, error)
	SumWithdrawals(ctx context.Context, freelancerID uuid.UUID, status valueobject.TransactionStatus) (valueobject.Money, error)
	MonthlyEarnings(ctx context.Context, freelancerID uuid.UUID, since time.Time) ([]models.MonthlyEarning, error)
	CommissionTotals(ctx context.Context) (valueobject.Money, int, error)
}

// CommissionRateSource отдаёт актуальную ставку комиссии.
type CommissionRateSource interface {
	CommissionRate(ctx context.Context) (decimal.Decimal, error)
}

// UserDirectory - источник данных о пользователях для проверок прав.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error)
}

// AmountResolver определяет сумму оплаты по заблокированному заказу.
type AmountResolver func(job *models.Job, accepted *models.Application) (valueobject.Money, error)

// LedgerService - денежный журнал: комиссия, оплата заказов, баланс и выводы.
type LedgerService struct {
	repo          LedgerRepository
	rates         CommissionRateSource
	users         UserDirectory
	minWithdrawal valueobject.Money
	now           func() time.Time
}

func NewLedgerService(repo LedgerRepository, rates CommissionRateSource, users UserDirectory, minWithdrawal valueobject.Money) *LedgerService {
	return &LedgerService{
		repo:          repo,
		rates:         rates,
		users:         users,
		minWithdrawal: minWithdrawal,
		now:           time.Now,
	}
}

// ApplyCommission делит сумму на комиссию площадки и чистую выплату.
func (s *LedgerService) ApplyCommission(amount valueobject.Money, rate decimal.Decimal) (commission, net valueobject.Money, err error) {
	return valueobject.SplitCommission(amount, rate)
}

// RecordJobPayment завершает заказ и атомарно записывает оплату и комиссию.
// Ставка берётся на момент записи и сохраняется в обеих транзакциях.
func (s *LedgerService) RecordJobPayment(ctx context.Context, jobID uuid.UUID, resolve AmountResolver) (*models.PaymentRecord, error) {
	rate, err := s.rates.CommissionRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger service: commission rate %w", err)
	}

	record, err := s.repo.RecordJobPayment(ctx, jobID, func(job *models.Job, accepted *models.Application) (*models.JobPayment, error) {
		amount, err := resolve(job, accepted)
		if err != nil {
			return nil, err
		}
		if !amount.IsPositive() {
			return nil, apperror.ErrInvalidPaymentAmount
		}
		if job.HiredFreelancerID == nil {
			return nil, apperror.ErrJobNotInProgress
		}
		commission, net, err := s.ApplyCommission(amount, rate)
		if err != nil {
			return nil, err
		}
		return &models.JobPayment{
			JobID:          job.ID,
			JobTitle:       job.Title,
			ClientID:       job.ClientID,
			FreelancerID:   *job.HiredFreelancerID,
			Amount:         amount,
			CommissionRate: rate,
			Commission:     commission,
			NetAmount:      net,
			Currency:       currencyOrDefault(job.Currency),
			PaymentTxnID:   s.newTransactionID(),
			CommissionTxID: s.newTransactionID(),
		}, nil
	})
	if err != nil {
		return nil, translate(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"job_id":     jobID,
		"amount":     record.Payment.Amount.String(),
		"commission": record.Commission.Amount.String(),
		"rate":       rate.String(),
	}).Info("ledger: оплата заказа записана")
	return record, nil
}

// ComputeAvailableBalance возвращает баланс исполнителя: заработок минус выводы
// в статусах pending и completed. Отрицательное значение означает нарушение
// целостности журнала, оно логируется, а наружу отдаётся ноль.
func (s *LedgerService) ComputeAvailableBalance(ctx context.Context, freelancerID uuid.UUID) (models.Balance, error) {
	balance, err := s.repo.GetBalance(ctx, freelancerID)
	if err != nil {
		return models.Balance{}, translate(err)
	}
	return clampBalance(balance), nil
}

func clampBalance(b models.Balance) models.Balance {
	if b.Available < 0 {
		logger.Log.WithFields(logrus.Fields{
			"freelancer_id": b.FreelancerID,
			"lifetime":      b.LifetimeEarnings.String(),
			"reserved":      b.Reserved.String(),
		}).Error("ledger: выводы превышают заработок")
		b.Available = 0
	}
	return b
}

// RequestWithdrawal создаёт заявку на вывод в статусе pending.
// Проверка баланса и вставка выполняются под блокировкой строки исполнителя.
func (s *LedgerService) RequestWithdrawal(ctx context.Context, p models.Principal, amount valueobject.Money, method string) (*models.Transaction, error) {
	if !p.IsFreelancer() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "выводить средства могут только исполнители")
	}
	if p.IsSuspended {
		return nil, apperror.ErrAccountSuspended
	}
	if !amount.IsPositive() {
		return nil, apperror.Validation("сумма вывода должна быть положительной")
	}
	if amount < s.minWithdrawal {
		return nil, apperror.Validation(fmt.Sprintf("минимальная сумма вывода %s", s.minWithdrawal))
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		method = models.PaymentMethodBank
	}
	if _, ok := models.ValidWithdrawalMethods[method]; !ok {
		return nil, apperror.Validation("способ вывода должен быть bank, paypal или card")
	}

	req := models.WithdrawalRequest{
		FreelancerID:  p.ID,
		Amount:        amount,
		Currency:      valueobject.DefaultCurrency,
		Method:        method,
		TransactionID: s.newTransactionID(),
	}
	txn, err := s.repo.CreateWithdrawal(ctx, req, func(balance models.Balance) error {
		if amount > clampBalance(balance).Available {
			return apperror.ErrInsufficientBalance.WithDetails(map[string]any{
				"available": balance.Available,
				"requested": amount,
			})
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"freelancer_id":  p.ID,
		"transaction_id": txn.TransactionID,
		"amount":         amount.String(),
	}).Info("ledger: заявка на вывод создана")
	return txn, nil
}

// ApproveWithdrawal подтверждает вывод. Баланс не меняется: он пересчитывается при чтении.
func (s *LedgerService) ApproveWithdrawal(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return s.resolveWithdrawal(ctx, id, valueobject.TransactionStatusCompleted, nil)
}

// RejectWithdrawal отклоняет вывод, зарезервированная сумма снова становится доступной.
func (s *LedgerService) RejectWithdrawal(ctx context.Context, id uuid.UUID, reason string) (*models.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Rejected by admin"
	}
	return s.resolveWithdrawal(ctx, id, valueobject.TransactionStatusFailed, &reason)
}

func (s *LedgerService) resolveWithdrawal(ctx context.Context, id uuid.UUID, status valueobject.TransactionStatus, reason *string) (*models.Transaction, error) {
	txn, err := s.repo.ResolveWithdrawal(ctx, id, status, reason, func(txn *models.Transaction) error {
		if txn.Type != valueobject.TransactionTypeWithdrawal {
			return apperror.ErrNotAWithdrawal
		}
		if txn.Status != valueobject.TransactionStatusPending {
			return apperror.AlreadyResolved(string(txn.Status))
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return txn, nil
}

// GetTransaction возвращает транзакцию, видимую пользователю.
func (s *LedgerService) GetTransaction(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Transaction, error) {
	txn, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	if !p.IsAdmin() && !involves(txn, p.ID) {
		return nil, apperror.ErrTransactionNotFound
	}
	return txn, nil
}

func involves(txn *models.Transaction, userID uuid.UUID) bool {
	return (txn.FromUserID != nil && *txn.FromUserID == userID) ||
		(txn.ToUserID != nil && *txn.ToUserID == userID)
}

// ListTransactions возвращает историю транзакций пользователя. Администратор видит все записи.
func (s *LedgerService) ListTransactions(ctx context.Context, p models.Principal, filter models.TransactionFilter) (*models.TransactionPage, error) {
	if filter.Type != "" && !valueobject.TransactionType(filter.Type).IsValid() {
		return nil, apperror.Validation("некорректный тип транзакции")
	}
	if filter.Status != "" && !valueobject.TransactionStatus(filter.Status).IsValid() {
		return nil, apperror.Validation("некорректный статус транзакции")
	}
	if !p.IsAdmin() {
		id := p.ID
		filter.UserID = &id
	}
	items, total, err := s.repo.ListTransactions(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return &models.TransactionPage{Items: items, Total: total}, nil
}

// EarningsSummary собирает сводку заработка исполнителя параллельными запросами.
func (s *LedgerService) EarningsSummary(ctx context.Context, freelancerID uuid.UUID) (*models.EarningsSummary, error) {
	var (
		summary models.EarningsSummary
		balance models.Balance
		user    *models.User
	)
	now := s.now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(earningsMonths - 1), 0)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.users.GetByID(gctx, freelancerID)
		return err
	})
	g.Go(func() (err error) {
		balance, err = s.repo.GetBalance(gctx, freelancerID)
		return err
	})
	g.Go(func() (err error) {
		summary.TotalWithdrawn, err = s.repo.SumWithdrawals(gctx, freelancerID, valueobject.TransactionStatusCompleted)
		return err
	})
	g.Go(func() (err error) {
		summary.PendingWithdrawals, err = s.repo.SumWithdrawals(gctx, freelancerID, valueobject.TransactionStatusPending)
		return err
	})
	var monthly []models.MonthlyEarning
	g.Go(func() (err error) {
		monthly, err = s.repo.MonthlyEarnings(gctx, freelancerID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translate(err)
	}

	balance = clampBalance(balance)
	summary.TotalEarned = balance.LifetimeEarnings
	summary.AvailableBalance = balance.Available
	summary.CompletedJobs = user.CompletedJobs
	summary.Monthly = fillMonths(monthly, since, earningsMonths)
	return &summary, nil
}

// fillMonths дополняет пропущенные месяцы нулями, чтобы график всегда имел n точек.
func fillMonths(rows []models.MonthlyEarning, since time.Time, n int) []models.MonthlyEarning {
	byMonth := make(map[string]models.MonthlyEarning, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r
	}
	out := make([]models.MonthlyEarning, 0, n)
	for i := 0; i < n; i++ {
		key := since.AddDate(0, i, 0).Format("2006-01")
		row, ok := byMonth[key]
		if !ok {
			row = models.MonthlyEarning{Month: key}
		}
		out = append(out, row)
	}
	return out
}

// CommissionSummary сводка комиссий площадки для администратора.
func (s *LedgerService) CommissionSummary(ctx context.Context, recent int) (*models.CommissionSummary, error) {
	total, count, err := s.repo.CommissionTotals(ctx)
	if err != nil {
		return nil, translate(err)
	}
	items, _, err := s.repo.ListTransactions(ctx, models.TransactionFilter{
		Type:   string(valueobject.TransactionTypeCommission),
		Status: string(valueobject.TransactionStatusCompleted),
		Limit:  recent,
	})
	if err != nil {
		return nil, translate(err)
	}
	return &models.CommissionSummary{Total: total, Count: count, Recent: items}, nil
}

// newTransactionID формирует идентификатор вида TXN-<unix ms>-<9 символов base36>.
func (s *LedgerService) newTransactionID() string {
	id := uuid.New()
	suffix := strings.ToUpper(strconv.FormatUint(binary.BigEndian.Uint64(id[:8]), 36))
	if len(suffix) < 9 {
		suffix = strings.Repeat("0", 9-len(suffix)) + suffix
	}
	return fmt.Sprintf("TXN-%d-%s", s.now().UnixMilli(), suffix[:9])
}

func currencyOrDefault(c string) string {
	if c == "" {
		return valueobject.DefaultCurrency
	}
	return c
}
