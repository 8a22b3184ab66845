package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
)

// Способы вывода средств
const (
	PaymentMethodPlatform = "platform"
	PaymentMethodBank     = "bank"
	PaymentMethodPayPal   = "paypal"
	PaymentMethodCard     = "card"
)

// ValidWithdrawalMethods допустимые способы вывода
var ValidWithdrawalMethods = map[string]struct{}{
	PaymentMethodBank:   {},
	PaymentMethodPayPal: {},
	PaymentMethodCard:   {},
}

// Transaction - неизменяемая запись леджера. Меняются только статус и временные метки завершения.
type Transaction struct {
	ID             uuid.UUID                     `db:"id" json:"id"`
	TransactionID  string                        `db:"transaction_id" json:"transaction_id"`
	Type           valueobject.TransactionType   `db:"type" json:"type"`
	Amount         valueobject.Money             `db:"amount" json:"amount"`
	Currency       string                        `db:"currency" json:"currency"`
	Status         valueobject.TransactionStatus `db:"status" json:"status"`
	FromUserID     *uuid.UUID                    `db:"from_user_id" json:"from_user_id,omitempty"`
	ToUserID       *uuid.UUID                    `db:"to_user_id" json:"to_user_id,omitempty"`
	JobID          *uuid.UUID                    `db:"job_id" json:"job_id,omitempty"`
	CommissionRate decimal.Decimal               `db:"commission_rate" json:"commission_rate"`
	Commission     valueobject.Money             `db:"commission" json:"commission"`
	NetAmount      *valueobject.Money            `db:"net_amount" json:"net_amount,omitempty"`
	PaymentMethod  string                        `db:"payment_method" json:"payment_method"`
	Description    string                        `db:"description" json:"description"`
	FailureReason  *string                       `db:"failure_reason" json:"failure_reason,omitempty"`
	CompletedAt    *time.Time                    `db:"completed_at" json:"completed_at,omitempty"`
	FailedAt       *time.Time                    `db:"failed_at" json:"failed_at,omitempty"`
	CreatedAt      time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time                     `db:"updated_at" json:"updated_at"`
}

// JobPayment - всё, что нужно для атомарной записи оплаты завершённого заказа.
type JobPayment struct {
	JobID          uuid.UUID
	JobTitle       string
	ClientID       uuid.UUID
	FreelancerID   uuid.UUID
	Amount         valueobject.Money
	CommissionRate decimal.Decimal
	Commission     valueobject.Money
	NetAmount      valueobject.Money
	Currency       string
	PaymentTxnID   string
	CommissionTxID string
}

// PaymentRecord результат записи оплаты: обе транзакции и обновлённый заказ.
type PaymentRecord struct {
	Job        *Job         `json:"job"`
	Payment    *Transaction `json:"payment"`
	Commission *Transaction `json:"commission"`
}

// WithdrawalRequest заявка на вывод средств.
type WithdrawalRequest struct {
	FreelancerID  uuid.UUID
	Amount        valueobject.Money
	Currency      string
	Method        string
	TransactionID string
}

// TransactionFilter параметры выборки истории транзакций.
type TransactionFilter struct {
	UserID *uuid.UUID
	Type   string
	Status string
	Limit  int
	Offset int
}

// TransactionPage страница транзакций.
type TransactionPage struct {
	Items        []Transaction `json:"items"`
	Total        int           `json:"total"`
	PendingCount int           `json:"pending_count,omitempty"`
}

// Balance разложение доступного баланса исполнителя.
type Balance struct {
	FreelancerID     uuid.UUID         `json:"freelancer_id"`
	LifetimeEarnings valueobject.Money `json:"lifetime_earnings"`
	Reserved         valueobject.Money `json:"reserved"`
	Available        valueobject.Money `json:"available"`
}

// MonthlyEarning заработок за календарный месяц.
type MonthlyEarning struct {
	Month  string            `db:"month" json:"month"`
	Amount valueobject.Money `db:"amount" json:"amount"`
	Jobs   int               `db:"jobs" json:"jobs"`
}

// EarningsSummary сводка по заработку исполнителя.
type EarningsSummary struct {
	TotalEarned        valueobject.Money `json:"total_earned"`
	CompletedJobs      int               `json:"completed_jobs"`
	TotalWithdrawn     valueobject.Money `json:"total_withdrawn"`
	PendingWithdrawals valueobject.Money `json:"pending_withdrawals"`
	AvailableBalance   valueobject.Money `json:"available_balance"`
	Monthly            []MonthlyEarning  `json:"monthly"`
}

// CommissionSummary сводка комиссий площадки.
type CommissionSummary struct {
	Total  valueobject.Money `json:"total"`
	Count  int               `json:"count"`
	Recent []Transaction     `json:"recent"`
}
