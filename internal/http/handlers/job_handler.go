package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/http/handlers/common"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/service"
)

// JobOperations операции жизненного цикла заказа.
type JobOperations interface {
	CreateJob(ctx context.Context, p models.Principal, in service.CreateJobInput) (*models.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error)
	ListClientJobs(ctx context.Context, p models.Principal, filter models.JobFilter) ([]models.Job, int, error)
	CancelJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error)
	CloseJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error)

	ApplyForJob(ctx context.Context, p models.Principal, jobID uuid.UUID, in service.ApplyInput) (*models.Application, error)
	ListJobApplications(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.Application, error)
	ListMyApplications(ctx context.Context, p models.Principal, limit, offset int) ([]models.Application, error)
	DecideApplication(ctx context.Context, p models.Principal, appID uuid.UUID, decision string, notes *string) (*models.HireResult, error)
	WithdrawApplication(ctx context.Context, p models.Principal, appID uuid.UUID) (*models.Application, error)

	SubmitWork(ctx context.Context, p models.Principal, jobID uuid.UUID, submission models.Submission) (*models.Job, error)
	RejectSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, feedback string) (*models.Job, error)
	ApproveSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, force bool) (*models.PaymentRecord, error)

	InviteFreelancer(ctx context.Context, p models.Principal, jobID, freelancerID uuid.UUID, message string) (*models.JobInvite, error)
	RespondToInvite(ctx context.Context, p models.Principal, inviteID uuid.UUID, in service.RespondInviteInput) (*models.InviteResponse, error)
	ListMyInvites(ctx context.Context, p models.Principal, status string) ([]models.JobInvite, error)
	ListJobInvites(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.JobInvite, error)
}

type JobHandler struct {
	jobs JobOperations
}

func NewJobHandler(jobs JobOperations) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type createJobRequest struct {
	SkillID     uuid.UUID              `json:"skill_id" binding:"required"`
	Title       string                 `json:"title" binding:"required,max=200"`
	Description string                 `json:"description" binding:"required"`
	BudgetMin   valueobject.Money      `json:"budget_min"`
	BudgetMax   valueobject.Money      `json:"budget_max"`
	BudgetType  valueobject.BudgetType `json:"budget_type"`
	Currency    string                 `json:"currency"`
	Deadline    *time.Time             `json:"deadline"`
}

// CreateJob POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req createJobRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), p, service.CreateJobInput{
		SkillID:     req.SkillID,
		Title:       req.Title,
		Description: req.Description,
		BudgetMin:   req.BudgetMin,
		BudgetMax:   req.BudgetMax,
		BudgetType:  req.BudgetType,
		Currency:    req.Currency,
		Deadline:    req.Deadline,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func jobFilter(c *gin.Context) (models.JobFilter, error) {
	limit, offset := common.GetPagination(c)
	skillID, err := common.OptionalUUIDQuery(c, "skill_id")
	if err != nil {
		return models.JobFilter{}, err
	}
	return models.JobFilter{
		Status:  c.Query("status"),
		SkillID: skillID,
		Search:  c.Query("search"),
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// ListJobs GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filter, err := jobFilter(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobs, total, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": total})
}

// ListMyJobs GET /jobs/my
func (h *JobHandler) ListMyJobs(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	filter, err := jobFilter(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobs, total, err := h.jobs.ListClientJobs(c.Request.Context(), p, filter)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": total})
}

// GetJob GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// jobAction общий код для действий над заказом без тела запроса.
func (h *JobHandler) jobAction(c *gin.Context, action func(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error)) {
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
	job, err := action(c.Request.Context(), p, id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelJob POST /jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.jobAction(c, h.jobs.CancelJob)
}

// CloseJob POST /jobs/:id/close
func (h *JobHandler) CloseJob(c *gin.Context) {
	h.jobAction(c, h.jobs.CloseJob)
}

type applyRequest struct {
	CoverLetter       string            `json:"cover_letter"`
	ProposedBudget    valueobject.Money `json:"proposed_budget"`
	EstimatedDuration string            `json:"estimated_duration"`
}

// Apply POST /jobs/:id/applications
func (h *JobHandler) Apply(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req applyRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	app, err := h.jobs.ApplyForJob(c.Request.Context(), p, jobID, service.ApplyInput{
		CoverLetter:       req.CoverLetter,
		ProposedBudget:    req.ProposedBudget,
		EstimatedDuration: req.EstimatedDuration,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app)
}

// ListJobApplications GET /jobs/:id/applications
func (h *JobHandler) ListJobApplications(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	apps, err := h.jobs.ListJobApplications(c.Request.Context(), p, jobID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

// ListMyApplications GET /applications/my
func (h *JobHandler) ListMyApplications(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	limit, offset := common.GetPagination(c)
	apps, err := h.jobs.ListMyApplications(c.Request.Context(), p, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps})
}

type decideRequest struct {
	Status string  `json:"status" binding:"required"`
	Notes  *string `json:"notes"`
}

// DecideApplication PUT /applications/:id/status
func (h *JobHandler) DecideApplication(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	appID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req decideRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.jobs.DecideApplication(c.Request.Context(), p, appID, req.Status, req.Notes)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// WithdrawApplication PUT /applications/:id/withdraw
func (h *JobHandler) WithdrawApplication(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	appID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	app, err := h.jobs.WithdrawApplication(c.Request.Context(), p, appID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

// SubmitWork POST /jobs/:id/submission
func (h *JobHandler) SubmitWork(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req models.Submission
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	job, err := h.jobs.SubmitWork(c.Request.Context(), p, jobID, req)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// RejectSubmission POST /jobs/:id/submission/reject
func (h *JobHandler) RejectSubmission(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Feedback string `json:"feedback"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	job, err := h.jobs.RejectSubmission(c.Request.Context(), p, jobID, req.Feedback)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// CompleteJob POST /jobs/:id/complete. Тело необязательно: {"force": true}
// завершает заказ без сданной работы.
func (h *JobHandler) CompleteJob(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		Force bool `json:"force"`
	}
	if c.Request.ContentLength > 0 {
		if err := common.BindJSON(c, &req); err != nil {
			common.Fail(c, err)
			return
		}
	}

	record, err := h.jobs.ApproveSubmission(c.Request.Context(), p, jobID, req.Force)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// InviteFreelancer POST /jobs/:id/invites
func (h *JobHandler) InviteFreelancer(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req struct {
		FreelancerID uuid.UUID `json:"freelancer_id" binding:"required"`
		Message      string    `json:"message"`
	}
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	invite, err := h.jobs.InviteFreelancer(c.Request.Context(), p, jobID, req.FreelancerID, req.Message)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

// ListJobInvites GET /jobs/:id/invites
func (h *JobHandler) ListJobInvites(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	invites, err := h.jobs.ListJobInvites(c.Request.Context(), p, jobID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

// ListMyInvites GET /invites/my
func (h *JobHandler) ListMyInvites(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	invites, err := h.jobs.ListMyInvites(c.Request.Context(), p, c.Query("status"))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invites": invites})
}

type respondInviteRequest struct {
	Accept         bool              `json:"accept"`
	ProposedBudget valueobject.Money `json:"proposed_budget"`
	CoverLetter    string            `json:"cover_letter"`
}

// RespondToInvite PUT /invites/:id/respond
func (h *JobHandler) RespondToInvite(c *gin.Context) {
	p, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return
	}
	inviteID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req respondInviteRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	resp, err := h.jobs.RespondToInvite(c.Request.Context(), p, inviteID, service.RespondInviteInput{
		Accept:         req.Accept,
		ProposedBudget: req.ProposedBudget,
		CoverLetter:    req.CoverLetter,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
