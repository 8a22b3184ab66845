package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/logger"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
	"github.com/ignatzorin/skillhire-backend/internal/validation"
)

// JobRepository описывает хранилище заказов, откликов и приглашений.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error)
	ListApplicationsByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Application, error)
	CreateApplication(ctx context.Context, app *models.Application, guard repository.JobGuard) error
	DecideApplication(ctx context.Context, appID uuid.UUID, status valueobject.ApplicationStatus, notes *string, guard repository.ApplicationGuard) (*models.Application, error)
	AcceptApplication(ctx context.Context, appID uuid.UUID, notes *string, guard repository.ApplicationGuard) (*models.HireResult, error)
	WithdrawApplication(ctx context.Context, appID uuid.UUID, guard repository.ApplicationGuard) (*models.Application, error)
	SubmitWork(ctx context.Context, jobID uuid.UUID, submission models.Submission, guard repository.JobGuard) (*models.Job, error)
	RejectSubmission(ctx context.Context, jobID uuid.UUID, feedback string, guard repository.JobGuard) (*models.Job, error)
	UpdateStatus(ctx context.Context, jobID uuid.UUID, status valueobject.JobStatus, guard repository.JobGuard) (*models.Job, error)
	CreateInvite(ctx context.Context, invite *models.JobInvite, guard repository.JobGuard) error
	RespondInvite(ctx context.Context, inviteID uuid.UUID, accept bool, proposal models.Application, guard repository.InviteGuard) (*models.InviteResponse, error)
	ListInvitesByFreelancer(ctx context.Context, freelancerID uuid.UUID, status string) ([]models.JobInvite, error)
	ListInvitesByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobInvite, error)
}

// SkillDirectory отвечает на вопросы о навыках и пройденных тестах.
type SkillDirectory interface {
	SkillExists(ctx context.Context, skillID uuid.UUID) (bool, error)
	HasPassedSkill(ctx context.Context, userID, skillID uuid.UUID) (bool, error)
}

// PaymentRecorder - часть журнала, которая завершает заказ оплатой.
type PaymentRecorder interface {
	RecordJobPayment(ctx context.Context, jobID uuid.UUID, resolve AmountResolver) (*models.PaymentRecord, error)
}

// ChatOpener открывает чат между клиентом и нанятым исполнителем.
type ChatOpener interface {
	EnsureJobChat(ctx context.Context, clientID, freelancerID, jobID uuid.UUID, jobTitle string) (*models.Chat, error)
}

// JobService - жизненный цикл заказа: отклики, найм, сдача работы, завершение, приглашения.
type JobService struct {
	repo   JobRepository
	skills SkillDirectory
	users  UserDirectory
	ledger PaymentRecorder
	chats  ChatOpener
	hub    WSNotifier
}

func NewJobService(repo JobRepository, skills SkillDirectory, users UserDirectory, ledger PaymentRecorder, chats ChatOpener) *JobService {
	return &JobService{repo: repo, skills: skills, users: users, ledger: ledger, chats: chats}
}

// SetHub устанавливает WebSocket hub для отправки уведомлений.
func (s *JobService) SetHub(hub WSNotifier) {
	s.hub = hub
}

// CreateJobInput описывает входные данные.
type CreateJobInput struct {
	SkillID     uuid.UUID
	Title       string
	Description string
	BudgetMin   valueobject.Money
	BudgetMax   valueobject.Money
	BudgetType  valueobject.BudgetType
	Currency    string
	Deadline    *time.Time
}

// CreateJob публикует заказ клиента.
func (s *JobService) CreateJob(ctx context.Context, p models.Principal, in CreateJobInput) (*models.Job, error) {
	if !p.IsClient() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать заказы могут только клиенты")
	}
	if p.IsSuspended {
		return nil, apperror.ErrAccountSuspended
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateJobText(title, description); err != nil {
		return nil, err
	}
	budget, err := valueobject.NewBudget(in.BudgetMin, in.BudgetMax, in.BudgetType)
	if err != nil {
		return nil, err
	}
	if in.Deadline != nil && in.Deadline.Before(time.Now()) {
		return nil, apperror.Validation("срок сдачи не может быть в прошлом")
	}
	exists, err := s.skills.SkillExists(ctx, in.SkillID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apperror.ErrSkillNotFound
	}

	job := &models.Job{
		ClientID:    p.ID,
		SkillID:     in.SkillID,
		Title:       title,
		Description: description,
		BudgetMin:   budget.Min,
		BudgetMax:   budget.Max,
		BudgetType:  budget.Type,
		Currency:    currencyOrDefault(strings.ToUpper(strings.TrimSpace(in.Currency))),
		Deadline:    in.Deadline,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, translate(err)
	}
	return job, nil
}

// GetJob возвращает заказ.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	return job, translate(err)
}

// ListJobs возвращает страницу заказов. По умолчанию показываются открытые.
func (s *JobService) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	if filter.Status == "" {
		filter.Status = string(valueobject.JobStatusOpen)
	} else if filter.Status == "all" {
		filter.Status = ""
	} else if _, err := valueobject.NewJobStatus(filter.Status); err != nil {
		return nil, 0, err
	}
	jobs, total, err := s.repo.List(ctx, filter)
	return jobs, total, translate(err)
}

// ListClientJobs возвращает заказы клиента во всех статусах.
func (s *JobService) ListClientJobs(ctx context.Context, p models.Principal, filter models.JobFilter) ([]models.Job, int, error) {
	id := p.ID
	filter.ClientID = &id
	if filter.Status == "" {
		filter.Status = "all"
	}
	return s.ListJobs(ctx, filter)
}

// ListJobApplications возвращает отклики заказа его владельцу.
func (s *JobService) ListJobApplications(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.Application, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, translate(err)
	}
	if job.ClientID != p.ID && !p.IsAdmin() {
		return nil, apperror.ErrNotJobOwner
	}
	apps, err := s.repo.ListApplicationsByJob(ctx, jobID)
	return apps, translate(err)
}

// ListMyApplications возвращает отклики исполнителя.
func (s *JobService) ListMyApplications(ctx context.Context, p models.Principal, limit, offset int) ([]models.Application, error) {
	apps, err := s.repo.ListApplicationsByFreelancer(ctx, p.ID, limit, offset)
	return apps, translate(err)
}

// ApplyInput данные отклика.
type ApplyInput struct {
	CoverLetter       string
	ProposedBudget    valueobject.Money
	EstimatedDuration string
}

// ApplyForJob создаёт отклик. Проверки идут в порядке: заказ открыт, аккаунт
// не заблокирован, тест по навыку пройден, повторного отклика нет.
func (s *JobService) ApplyForJob(ctx context.Context, p models.Principal, jobID uuid.UUID, in ApplyInput) (*models.Application, error) {
	if !p.IsFreelancer() {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться могут только исполнители")
	}
	if !in.ProposedBudget.IsPositive() {
		return nil, apperror.Validation("предлагаемый бюджет должен быть больше нуля")
	}
	if err := validation.ValidateApplication(in.CoverLetter, in.EstimatedDuration); err != nil {
		return nil, err
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, translate(err)
	}
	passed, err := s.skills.HasPassedSkill(ctx, p.ID, job.SkillID)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		JobID:             jobID,
		FreelancerID:      p.ID,
		CoverLetter:       strings.TrimSpace(in.CoverLetter),
		ProposedBudget:    in.ProposedBudget,
		EstimatedDuration: strings.TrimSpace(in.EstimatedDuration),
	}
	err = s.repo.CreateApplication(ctx, app, func(job *models.Job) error {
		if job.Status != valueobject.JobStatusOpen {
			return apperror.ErrJobNotOpen
		}
		if p.IsSuspended {
			return apperror.ErrAccountSuspended
		}
		if !passed {
			return apperror.SkillNotVerified(job.SkillID.String())
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.notify(job.ClientID, EventApplicationNew, map[string]interface{}{
		"jobId":         job.ID,
		"jobTitle":      job.Title,
		"applicationId": app.ID,
		"freelancerId":  p.ID,
	})
	return app, nil
}

// DecideApplication фиксирует решение клиента по отклику. При принятии заказ
// переходит в работу, остальные отклики отклоняются, открывается чат.
// Ошибка открытия чата не отменяет найм и возвращается в поле Warning.
func (s *JobService) DecideApplication(ctx context.Context, p models.Principal, appID uuid.UUID, decision string, notes *string) (*models.HireResult, error) {
	status, err := valueobject.NewApplicationDecision(decision)
	if err != nil {
		return nil, err
	}

	guard := func(job *models.Job, app *models.Application) error {
		if job.ClientID != p.ID {
			return apperror.ErrNotJobOwner
		}
		if !app.Status.CanTransitionTo(status) {
			return apperror.ErrApplicationFinalized
		}
		if status == valueobject.ApplicationStatusAccepted && job.Status != valueobject.JobStatusOpen {
			return apperror.ErrJobNotOpen
		}
		return nil
	}

	if status != valueobject.ApplicationStatusAccepted {
		app, err := s.repo.DecideApplication(ctx, appID, status, notes, guard)
		if err != nil {
			return nil, translate(err)
		}
		s.notify(app.FreelancerID, EventApplicationUpdated, app)
		return &models.HireResult{Application: app}, nil
	}

	result, err := s.repo.AcceptApplication(ctx, appID, notes, guard)
	if err != nil {
		return nil, translate(err)
	}

	job, hired := result.Job, result.Application
	logger.Log.WithFields(logrus.Fields{
		"job_id":        job.ID,
		"freelancer_id": hired.FreelancerID,
		"rejected":      len(result.Rejected),
	}).Info("jobs: исполнитель нанят")

	chat, err := s.chats.EnsureJobChat(ctx, job.ClientID, hired.FreelancerID, job.ID, job.Title)
	if err != nil {
		logger.Log.WithError(err).WithField("job_id", job.ID).Error("jobs: не удалось открыть чат после найма")
		result.Warning = "исполнитель нанят, но чат не удалось создать"
	} else {
		result.Chat = chat
	}

	s.notify(hired.FreelancerID, EventApplicationUpdated, hired)
	for i := range result.Rejected {
		s.notify(result.Rejected[i].FreelancerID, EventApplicationUpdated, &result.Rejected[i])
	}
	return result, nil
}

// WithdrawApplication отзывает отклик исполнителем.
func (s *JobService) WithdrawApplication(ctx context.Context, p models.Principal, appID uuid.UUID) (*models.Application, error) {
	app, err := s.repo.WithdrawApplication(ctx, appID, func(_ *models.Job, app *models.Application) error {
		if app.FreelancerID != p.ID {
			return apperror.ErrNotApplicationOwner
		}
		if app.Status == valueobject.ApplicationStatusAccepted {
			return apperror.ErrAcceptedNotWithdraw
		}
		if !app.Status.CanTransitionTo(valueobject.ApplicationStatusWithdrawn) {
			return apperror.ErrApplicationFinalized
		}
		return nil
	})
	return app, translate(err)
}

// SubmitWork отправляет работу на проверку клиенту.
func (s *JobService) SubmitWork(ctx context.Context, p models.Principal, jobID uuid.UUID, submission models.Submission) (*models.Job, error) {
	submission.Description = strings.TrimSpace(submission.Description)
	if err := validation.ValidateSubmission(submission.Description, submission.Attachments); err != nil {
		return nil, err
	}
	job, err := s.repo.SubmitWork(ctx, jobID, submission, func(job *models.Job) error {
		if !job.IsHired(p.ID) {
			return apperror.ErrNotHiredFreelancer
		}
		if job.Status != valueobject.JobStatusInProgress {
			return apperror.ErrJobNotInProgress
		}
		if !job.SubmissionStatus.CanTransitionTo(valueobject.SubmissionStatusPending) {
			return apperror.ErrSubmissionPending
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	s.notify(job.ClientID, EventSubmissionUpdated, submissionEvent(job))
	return job, nil
}

// RejectSubmission возвращает работу на доработку.
func (s *JobService) RejectSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, feedback string) (*models.Job, error) {
	if err := validation.ValidateLength("комментарий", feedback, 0, validation.MaxRejectReasonLength); err != nil {
		return nil, err
	}
	job, err := s.repo.RejectSubmission(ctx, jobID, strings.TrimSpace(feedback), func(job *models.Job) error {
		if job.ClientID != p.ID {
			return apperror.ErrNotJobOwner
		}
		if job.Status != valueobject.JobStatusInProgress {
			return apperror.ErrJobNotInProgress
		}
		if job.SubmissionStatus != valueobject.SubmissionStatusPending {
			return apperror.ErrSubmissionNotPending
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	if job.HiredFreelancerID != nil {
		s.notify(*job.HiredFreelancerID, EventSubmissionUpdated, submissionEvent(job))
	}
	return job, nil
}

// ApproveSubmission принимает работу и завершает заказ оплатой.
// force позволяет завершить заказ без сданной работы.
// Сумма: бюджет принятого отклика, иначе максимальный бюджет заказа.
func (s *JobService) ApproveSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, force bool) (*models.PaymentRecord, error) {
	record, err := s.ledger.RecordJobPayment(ctx, jobID, func(job *models.Job, accepted *models.Application) (valueobject.Money, error) {
		if job.ClientID != p.ID {
			return 0, apperror.ErrNotJobOwner
		}
		if job.Status != valueobject.JobStatusInProgress {
			return 0, apperror.ErrJobNotInProgress
		}
		if !force && job.SubmissionStatus != valueobject.SubmissionStatusPending {
			return 0, apperror.ErrSubmissionNotPending
		}
		return resolvePaymentAmount(job, accepted), nil
	})
	if err != nil {
		return nil, err
	}

	if freelancer := record.Job.HiredFreelancerID; freelancer != nil {
		s.notify(*freelancer, EventJobCompleted, map[string]interface{}{
			"jobId":     record.Job.ID,
			"jobTitle":  record.Job.Title,
			"amount":    record.Payment.Amount,
			"netAmount": record.Payment.NetAmount,
		})
	}
	return record, nil
}

func resolvePaymentAmount(job *models.Job, accepted *models.Application) valueobject.Money {
	if accepted != nil && accepted.ProposedBudget.IsPositive() {
		return accepted.ProposedBudget
	}
	return job.BudgetMax
}

// CancelJob отменяет открытый заказ.
func (s *JobService) CancelJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.repo.UpdateStatus(ctx, jobID, valueobject.JobStatusCancelled, func(job *models.Job) error {
		if job.ClientID != p.ID {
			return apperror.ErrNotJobOwner
		}
		return checkJobTransition(job, valueobject.JobStatusCancelled)
	})
	return job, translate(err)
}

// CloseJob закрывает заказ администратором.
func (s *JobService) CloseJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error) {
	if !p.IsAdmin() {
		return nil, apperror.ErrAdminOnly
	}
	job, err := s.repo.UpdateStatus(ctx, jobID, valueobject.JobStatusClosed, func(job *models.Job) error {
		return checkJobTransition(job, valueobject.JobStatusClosed)
	})
	return job, translate(err)
}

func checkJobTransition(job *models.Job, next valueobject.JobStatus) error {
	if !job.Status.CanTransitionTo(next) {
		return apperror.Newf(apperror.ErrCodeInvalidState, "заказ в статусе %s нельзя перевести в %s", job.Status, next)
	}
	return nil
}

// InviteFreelancer приглашает исполнителя на открытый заказ.
func (s *JobService) InviteFreelancer(ctx context.Context, p models.Principal, jobID, freelancerID uuid.UUID, message string) (*models.JobInvite, error) {
	if err := validation.ValidateLength("сообщение", message, 0, validation.MaxInviteMessageLength); err != nil {
		return nil, err
	}
	target, err := s.users.GetPrincipal(ctx, freelancerID)
	if err != nil {
		return nil, translate(err)
	}
	if !target.IsFreelancer() {
		return nil, apperror.Validation("пригласить можно только исполнителя")
	}
	if target.IsSuspended {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "аккаунт исполнителя заблокирован")
	}

	invite := &models.JobInvite{JobID: jobID, FreelancerID: freelancerID, Message: strings.TrimSpace(message)}
	var title string
	err = s.repo.CreateInvite(ctx, invite, func(job *models.Job) error {
		if job.ClientID != p.ID {
			return apperror.ErrNotJobOwner
		}
		if job.Status != valueobject.JobStatusOpen {
			return apperror.ErrJobNotOpen
		}
		title = job.Title
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.notify(freelancerID, EventJobInvited, map[string]interface{}{
		"inviteId": invite.ID,
		"jobId":    jobID,
		"jobTitle": title,
		"message":  invite.Message,
	})
	return invite, nil
}

// RespondInviteInput ответ исполнителя на приглашение.
type RespondInviteInput struct {
	Accept         bool
	ProposedBudget valueobject.Money
	CoverLetter    string
}

// RespondToInvite принимает или отклоняет приглашение. Принятие создаёт отклик.
func (s *JobService) RespondToInvite(ctx context.Context, p models.Principal, inviteID uuid.UUID, in RespondInviteInput) (*models.InviteResponse, error) {
	var clientID uuid.UUID
	proposal := models.Application{ProposedBudget: in.ProposedBudget, CoverLetter: strings.TrimSpace(in.CoverLetter)}
	resp, err := s.repo.RespondInvite(ctx, inviteID, in.Accept, proposal, func(job *models.Job, invite *models.JobInvite) error {
		if invite.FreelancerID != p.ID {
			return apperror.ErrNotInviteRecipient
		}
		if invite.Status != valueobject.InviteStatusPending {
			return apperror.ErrInviteNotPending
		}
		if in.Accept {
			if job.Status != valueobject.JobStatusOpen {
				return apperror.ErrJobNotOpen
			}
			if p.IsSuspended {
				return apperror.ErrAccountSuspended
			}
			passed, err := s.skills.HasPassedSkill(ctx, p.ID, job.SkillID)
			if err != nil {
				return err
			}
			if !passed {
				return apperror.SkillNotVerified(job.SkillID.String())
			}
		}
		clientID = job.ClientID
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	s.notify(clientID, EventInviteResponded, resp)
	return resp, nil
}

// ListMyInvites возвращает приглашения исполнителя.
func (s *JobService) ListMyInvites(ctx context.Context, p models.Principal, status string) ([]models.JobInvite, error) {
	invites, err := s.repo.ListInvitesByFreelancer(ctx, p.ID, status)
	return invites, translate(err)
}

// ListJobInvites возвращает приглашения заказа его владельцу.
func (s *JobService) ListJobInvites(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.JobInvite, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, translate(err)
	}
	if job.ClientID != p.ID {
		return nil, apperror.ErrNotJobOwner
	}
	invites, err := s.repo.ListInvitesByJob(ctx, jobID)
	return invites, translate(err)
}

func submissionEvent(job *models.Job) map[string]interface{} {
	return map[string]interface{}{
		"jobId":    job.ID,
		"jobTitle": job.Title,
		"status":   job.SubmissionStatus,
		"feedback": job.SubmissionFeedback,
	}
}

func (s *JobService) notify(userID uuid.UUID, event string, data interface{}) {
	if s.hub == nil {
		return
	}
	if err := s.hub.BroadcastToUser(userID, event, data); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{
			"event":   event,
			"user_id": userID,
		}).Warn("jobs: не удалось отправить уведомление")
	}
}
