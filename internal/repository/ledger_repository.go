package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/repository/common"
)

var (
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrPaymentAlreadyRecorded = errors.New("payment already recorded for job")
	ErrJobNotInProgress       = errors.New("job is not in progress")
)

const (
	constraintJobPayment    = "uq_transactions_job_payment"
	constraintJobCommission = "uq_transactions_job_commission"
)

// PaymentBuilder вычисляет оплату по заблокированному заказу и его принятому отклику.
// accepted равен nil, если принятого отклика нет.
type PaymentBuilder func(job *models.Job, accepted *models.Application) (*models.JobPayment, error)

// BalanceGuard проверяет заявку на вывод против баланса, посчитанного под блокировкой.
type BalanceGuard func(balance models.Balance) error

// TransactionGuard проверяет транзакцию под блокировкой.
type TransactionGuard func(txn *models.Transaction) error

// LedgerRepository - журнал денежных операций площадки.
// Доступный баланс не хранится, он всегда выводится из total_earnings и выводов.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// RecordJobPayment завершает заказ и записывает оплату с комиссией одной транзакцией:
// заказ -> completed, сданная работа -> approved, две записи в журнале,
// заработок и число завершённых заказов исполнителя.
func (r *LedgerRepository) RecordJobPayment(ctx context.Context, jobID uuid.UUID, build PaymentBuilder) (*models.PaymentRecord, error) {
	record := &models.PaymentRecord{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", jobID, ErrJobNotFound)
		if err != nil {
			return err
		}
		accepted, err := acceptedApplication(ctx, tx, jobID)
		if err != nil && !errors.Is(err, ErrApplicationNotFound) {
			return err
		}

		p, err := build(job, accepted)
		if err != nil {
			return err
		}

		var completed models.Job
		err = tx.GetContext(ctx, &completed, `
			UPDATE jobs
			SET status = 'completed',
			    submission_status = CASE WHEN submission_status = 'pending' THEN 'approved' ELSE submission_status END,
			    payment_status = 'released', completed_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'in-progress'
			RETURNING *
		`, jobID)
		if err != nil {
			return wrapNotFound(err, ErrJobNotInProgress, "ledger repository: complete job")
		}
		record.Job = &completed

		var payment models.Transaction
		err = tx.GetContext(ctx, &payment, `
			INSERT INTO transactions (transaction_id, type, amount, currency, status, from_user_id, to_user_id,
			                          job_id, commission_rate, commission, net_amount, payment_method, description, completed_at)
			VALUES ($1, 'payment', $2, $3, 'completed', $4, $5, $6, $7, $8, $9, $10, $11, NOW())
			RETURNING *
		`, p.PaymentTxnID, p.Amount, p.Currency, p.ClientID, p.FreelancerID, p.JobID,
			p.CommissionRate, p.Commission, p.NetAmount, models.PaymentMethodPlatform,
			fmt.Sprintf("Payment for job: %s", p.JobTitle))
		if err != nil {
			return paymentInsertErr(err, "payment")
		}
		record.Payment = &payment

		var commission models.Transaction
		err = tx.GetContext(ctx, &commission, `
			INSERT INTO transactions (transaction_id, type, amount, currency, status, from_user_id,
			                          job_id, commission_rate, commission, payment_method, description, completed_at)
			VALUES ($1, 'commission', $2, $3, 'completed', $4, $5, $6, $2, $7, $8, NOW())
			RETURNING *
		`, p.CommissionTxID, p.Commission, p.Currency, p.FreelancerID, p.JobID,
			p.CommissionRate, models.PaymentMethodPlatform,
			fmt.Sprintf("Platform commission for job: %s", p.JobTitle))
		if err != nil {
			return paymentInsertErr(err, "commission")
		}
		record.Commission = &commission

		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET total_earnings = total_earnings + $2, completed_jobs = completed_jobs + 1, updated_at = NOW()
			WHERE id = $1
		`, p.FreelancerID, p.NetAmount)
		if err != nil {
			return fmt.Errorf("ledger repository: credit freelancer %w", err)
		}
		return common.AffectedOne(res, ErrUserNotFound)
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func paymentInsertErr(err error, kind string) error {
	if common.IsUniqueViolation(err, constraintJobPayment) || common.IsUniqueViolation(err, constraintJobCommission) {
		return ErrPaymentAlreadyRecorded
	}
	return fmt.Errorf("ledger repository: insert %s %w", kind, err)
}

// balanceQuery считает заработок и зарезервированные выводы исполнителя.
const balanceQuery = `
	SELECT u.total_earnings AS lifetime,
	       COALESCE((
	           SELECT SUM(t.amount)::BIGINT FROM transactions t
	           WHERE t.from_user_id = u.id AND t.type = 'withdrawal' AND t.status IN ('pending', 'completed')
	       ), 0) AS reserved
	FROM users u
	WHERE u.id = $1
`

type balanceRow struct {
	Lifetime valueobject.Money `db:"lifetime"`
	Reserved valueobject.Money `db:"reserved"`
}

func loadBalance(ctx context.Context, q common.Querier, freelancerID uuid.UUID, lock bool) (models.Balance, error) {
	query := balanceQuery
	if lock {
		query += " FOR UPDATE OF u"
	}
	var row balanceRow
	if err := q.GetContext(ctx, &row, query, freelancerID); err != nil {
		return models.Balance{}, wrapNotFound(err, ErrUserNotFound, "ledger repository: balance")
	}
	return models.Balance{
		FreelancerID:     freelancerID,
		LifetimeEarnings: row.Lifetime,
		Reserved:         row.Reserved,
		Available:        row.Lifetime - row.Reserved,
	}, nil
}

// GetBalance возвращает текущий баланс исполнителя без блокировки.
func (r *LedgerRepository) GetBalance(ctx context.Context, freelancerID uuid.UUID) (models.Balance, error) {
	return loadBalance(ctx, r.db, freelancerID, false)
}

// CreateWithdrawal создаёт заявку на вывод. Строка пользователя блокируется,
// поэтому заявки одного исполнителя проверяются по балансу строго по очереди.
func (r *LedgerRepository) CreateWithdrawal(ctx context.Context, req models.WithdrawalRequest, guard BalanceGuard) (*models.Transaction, error) {
	var txn models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		balance, err := loadBalance(ctx, tx, req.FreelancerID, true)
		if err != nil {
			return err
		}
		if err := guard(balance); err != nil {
			return err
		}
		err = tx.GetContext(ctx, &txn, `
			INSERT INTO transactions (transaction_id, type, amount, currency, status, from_user_id,
			                          net_amount, payment_method, description)
			VALUES ($1, 'withdrawal', $2, $3, 'pending', $4, $2, $5, $6)
			RETURNING *
		`, req.TransactionID, req.Amount, req.Currency, req.FreelancerID, req.Method,
			fmt.Sprintf("Withdrawal via %s", req.Method))
		if err != nil {
			return fmt.Errorf("ledger repository: create withdrawal %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ResolveWithdrawal переводит вывод в completed или failed.
// Строка транзакции блокируется, guard видит её актуальный статус.
func (r *LedgerRepository) ResolveWithdrawal(ctx context.Context, id uuid.UUID, status valueobject.TransactionStatus, reason *string, guard TransactionGuard) (*models.Transaction, error) {
	var updated models.Transaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		txn, err := common.GetByIDForUpdate[models.Transaction](ctx, tx, "transactions", id, ErrTransactionNotFound)
		if err != nil {
			return err
		}
		if err := guard(txn); err != nil {
			return err
		}

		now := time.Now().UTC()
		var completedAt, failedAt *time.Time
		if status == valueobject.TransactionStatusCompleted {
			completedAt = &now
		} else {
			failedAt = &now
		}
		err = tx.GetContext(ctx, &updated, `
			UPDATE transactions
			SET status = $2, failure_reason = $3, completed_at = $4, failed_at = $5, updated_at = $6
			WHERE id = $1
			RETURNING *
		`, id, status, reason, completedAt, failedAt, now)
		if err != nil {
			return fmt.Errorf("ledger repository: resolve withdrawal %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetTransaction возвращает запись журнала по внутреннему идентификатору.
func (r *LedgerRepository) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return common.GetByID[models.Transaction](ctx, r.db, "transactions", id, ErrTransactionNotFound)
}

// ListTransactions возвращает страницу журнала и общее число записей.
func (r *LedgerRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != nil {
		add("(from_user_id = $%[1]d OR to_user_id = $%[1]d)", *filter.UserID)
	}
	if filter.Type != "" {
		add("type = $%d", filter.Type)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM transactions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("ledger repository: count transactions %w", err)
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT * FROM transactions%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	items := []models.Transaction{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("ledger repository: list transactions %w", err)
	}
	return items, total, nil
}

// CountByStatus считает записи заданного типа и статуса.
func (r *LedgerRepository) CountByStatus(ctx context.Context, txnType valueobject.TransactionType, status valueobject.TransactionStatus) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM transactions WHERE type = $1 AND status = $2`, txnType, status)
	if err != nil {
		return 0, fmt.Errorf("ledger repository: count by status %w", err)
	}
	return count, nil
}

// SumWithdrawals суммирует выводы исполнителя в заданном статусе.
func (r *LedgerRepository) SumWithdrawals(ctx context.Context, freelancerID uuid.UUID, status valueobject.TransactionStatus) (valueobject.Money, error) {
	var sum valueobject.Money
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT FROM transactions
		WHERE from_user_id = $1 AND type = 'withdrawal' AND status = $2
	`, freelancerID, status)
	if err != nil {
		return 0, fmt.Errorf("ledger repository: sum withdrawals %w", err)
	}
	return sum, nil
}

// MonthlyEarnings группирует чистый заработок исполнителя по месяцам начиная с since.
func (r *LedgerRepository) MonthlyEarnings(ctx context.Context, freelancerID uuid.UUID, since time.Time) ([]models.MonthlyEarning, error) {
	rows := []models.MonthlyEarning{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT to_char(date_trunc('month', created_at), 'YYYY-MM') AS month,
		       COALESCE(SUM(net_amount), 0)::BIGINT AS amount,
		       COUNT(*) AS jobs
		FROM transactions
		WHERE to_user_id = $1 AND type = 'payment' AND status = 'completed' AND created_at >= $2
		GROUP BY 1
		ORDER BY 1
	`, freelancerID, since)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: monthly earnings %w", err)
	}
	return rows, nil
}

// CommissionTotals возвращает сумму и число записей комиссии площадки.
func (r *LedgerRepository) CommissionTotals(ctx context.Context) (valueobject.Money, int, error) {
	var row struct {
		Total valueobject.Money `db:"total"`
		Count int               `db:"count"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT COALESCE(SUM(amount), 0)::BIGINT AS total, COUNT(*) AS count
		FROM transactions WHERE type = 'commission' AND status = 'completed'
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("ledger repository: commission totals %w", err)
	}
	return row.Total, row.Count, nil
}
