package valueobject

import "github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"

type JobStatus string

const (
	JobStatusOpen       JobStatus = "open"
	JobStatusInProgress JobStatus = "in-progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusClosed     JobStatus = "closed"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusOpen:       {JobStatusInProgress, JobStatusCancelled, JobStatusClosed},
	JobStatusInProgress: {JobStatusCompleted, JobStatusClosed},
	JobStatusCancelled:  {JobStatusClosed},
	JobStatusCompleted:  {},
	JobStatusClosed:     {},
}

func (s JobStatus) IsValid() bool {
	_, ok := jobTransitions[s]
	return ok
}

func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return contains(jobTransitions[s], next)
}

func NewJobStatus(status string) (JobStatus, error) {
	s := JobStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("некорректный статус заказа")
	}
	return s, nil
}

type ApplicationStatus string

const (
	ApplicationStatusPending     ApplicationStatus = "pending"
	ApplicationStatusShortlisted ApplicationStatus = "shortlisted"
	ApplicationStatusAccepted    ApplicationStatus = "accepted"
	ApplicationStatusRejected    ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn   ApplicationStatus = "withdrawn"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending: {
		ApplicationStatusShortlisted, ApplicationStatusAccepted,
		ApplicationStatusRejected, ApplicationStatusWithdrawn,
	},
	ApplicationStatusShortlisted: {
		ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusWithdrawn,
	},
	ApplicationStatusAccepted:  {},
	ApplicationStatusRejected:  {},
	ApplicationStatusWithdrawn: {},
}

func (s ApplicationStatus) IsValid() bool {
	_, ok := applicationTransitions[s]
	return ok
}

func (s ApplicationStatus) IsTerminal() bool {
	return len(applicationTransitions[s]) == 0
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	return contains(applicationTransitions[s], next)
}

// NewApplicationDecision принимает только решения клиента по отклику.
func NewApplicationDecision(status string) (ApplicationStatus, error) {
	switch s := ApplicationStatus(status); s {
	case ApplicationStatusShortlisted, ApplicationStatusAccepted, ApplicationStatusRejected:
		return s, nil
	}
	return "", apperror.Validation("статус должен быть shortlisted, accepted или rejected")
}

// SubmissionStatus пустая строка означает, что работа ещё не сдавалась.
type SubmissionStatus string

const (
	SubmissionStatusNone     SubmissionStatus = ""
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

var submissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionStatusNone:     {SubmissionStatusPending},
	SubmissionStatusPending:  {SubmissionStatusApproved, SubmissionStatusRejected},
	SubmissionStatusRejected: {SubmissionStatusPending},
	SubmissionStatusApproved: {},
}

func (s SubmissionStatus) CanTransitionTo(next SubmissionStatus) bool {
	return contains(submissionTransitions[s], next)
}

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusDeclined InviteStatus = "declined"
)

func (s InviteStatus) CanTransitionTo(next InviteStatus) bool {
	return s == InviteStatusPending && (next == InviteStatusAccepted || next == InviteStatusDeclined)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusEscrowed PaymentStatus = "escrowed"
	PaymentStatusReleased PaymentStatus = "released"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type TransactionType string

const (
	TransactionTypePayment    TransactionType = "payment"
	TransactionTypeWithdrawal TransactionType = "withdrawal"
	TransactionTypeCommission TransactionType = "commission"
	TransactionTypeRefund     TransactionType = "refund"
	TransactionTypeBonus      TransactionType = "bonus"
)

func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePayment, TransactionTypeWithdrawal, TransactionTypeCommission,
		TransactionTypeRefund, TransactionTypeBonus:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusCancelled TransactionStatus = "cancelled"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:   {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCompleted: {TransactionStatusRefunded},
	TransactionStatusFailed:    {},
	TransactionStatusCancelled: {},
	TransactionStatusRefunded:  {},
}

func (s TransactionStatus) IsValid() bool {
	_, ok := transactionTransitions[s]
	return ok
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return contains(transactionTransitions[s], next)
}

// ReservesBalance сообщает, уменьшает ли вывод в этом статусе доступный баланс.
func (s TransactionStatus) ReservesBalance() bool {
	return s == TransactionStatusPending || s == TransactionStatusCompleted
}

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// IsUserType сообщает, может ли пользователь отправить сообщение такого типа.
func (t MessageType) IsUserType() bool {
	return t == MessageTypeText || t == MessageTypeImage || t == MessageTypeFile
}

func contains[T comparable](list []T, v T) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
