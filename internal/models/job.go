package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
)

// Job - заказ клиента вместе с данными о найме и сданной работе.
type Job struct {
	ID                    uuid.UUID                    `db:"id" json:"id"`
	ClientID              uuid.UUID                    `db:"client_id" json:"client_id"`
	SkillID               uuid.UUID                    `db:"skill_id" json:"skill_id"`
	Title                 string                       `db:"title" json:"title"`
	Description           string                       `db:"description" json:"description"`
	BudgetMin             valueobject.Money            `db:"budget_min" json:"budget_min"`
	BudgetMax             valueobject.Money            `db:"budget_max" json:"budget_max"`
	BudgetType            valueobject.BudgetType       `db:"budget_type" json:"budget_type"`
	Currency              string                       `db:"currency" json:"currency"`
	Deadline              *time.Time                   `db:"deadline" json:"deadline,omitempty"`
	Status                valueobject.JobStatus        `db:"status" json:"status"`
	HiredFreelancerID     *uuid.UUID                   `db:"hired_freelancer_id" json:"hired_freelancer_id,omitempty"`
	HiredAt               *time.Time                   `db:"hired_at" json:"hired_at,omitempty"`
	SubmissionDescription string                       `db:"submission_description" json:"submission_description,omitempty"`
	SubmissionAttachments pq.StringArray               `db:"submission_attachments" json:"submission_attachments"`
	SubmissionStatus      valueobject.SubmissionStatus `db:"submission_status" json:"submission_status,omitempty"`
	SubmissionFeedback    string                       `db:"submission_feedback" json:"submission_feedback,omitempty"`
	SubmittedAt           *time.Time                   `db:"submitted_at" json:"submitted_at,omitempty"`
	ApplicationsCount     int                          `db:"applications_count" json:"applications_count"`
	PaymentStatus         valueobject.PaymentStatus    `db:"payment_status" json:"payment_status"`
	CompletedAt           *time.Time                   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt             time.Time                    `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time                    `db:"updated_at" json:"updated_at"`
}

// IsHired проверяет, что пользователь - нанятый исполнитель заказа.
func (j *Job) IsHired(userID uuid.UUID) bool {
	return j.HiredFreelancerID != nil && *j.HiredFreelancerID == userID
}

// JobFilter параметры выборки заказов.
type JobFilter struct {
	Status   string
	SkillID  *uuid.UUID
	ClientID *uuid.UUID
	Search   string
	Limit    int
	Offset   int
}

// Submission данные сдачи работы исполнителем.
type Submission struct {
	Description string   `json:"description"`
	Attachments []string `json:"attachments"`
}

// Application - отклик исполнителя на заказ.
type Application struct {
	ID                uuid.UUID                     `db:"id" json:"id"`
	JobID             uuid.UUID                     `db:"job_id" json:"job_id"`
	FreelancerID      uuid.UUID                     `db:"freelancer_id" json:"freelancer_id"`
	CoverLetter       string                        `db:"cover_letter" json:"cover_letter"`
	ProposedBudget    valueobject.Money             `db:"proposed_budget" json:"proposed_budget"`
	EstimatedDuration string                        `db:"estimated_duration" json:"estimated_duration"`
	Status            valueobject.ApplicationStatus `db:"status" json:"status"`
	Notes             *string                       `db:"notes" json:"notes,omitempty"`
	DecidedAt         *time.Time                    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt         time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time                     `db:"updated_at" json:"updated_at"`
}

// JobInvite - приглашение исполнителя на заказ.
type JobInvite struct {
	ID           uuid.UUID                `db:"id" json:"id"`
	JobID        uuid.UUID                `db:"job_id" json:"job_id"`
	FreelancerID uuid.UUID                `db:"freelancer_id" json:"freelancer_id"`
	Message      string                   `db:"message" json:"message"`
	Status       valueobject.InviteStatus `db:"status" json:"status"`
	InvitedAt    time.Time                `db:"invited_at" json:"invited_at"`
	RespondedAt  *time.Time               `db:"responded_at" json:"responded_at,omitempty"`
}

// HireResult итог принятия отклика.
type HireResult struct {
	Job         *Job          `json:"job,omitempty"`
	Application *Application  `json:"application"`
	Rejected    []Application `json:"-"`
	Chat        *Chat         `json:"chat,omitempty"`
	Warning     string        `json:"warning,omitempty"`
}

// InviteResponse итог ответа на приглашение.
type InviteResponse struct {
	Invite      *JobInvite   `json:"invite"`
	Application *Application `json:"application,omitempty"`
}
