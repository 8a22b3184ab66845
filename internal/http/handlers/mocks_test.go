package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/http/middleware"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newRouter собирает gin с обработчиком ошибок и, если p задан, аутентифицированным пользователем.
func newRouter(p *models.Principal) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	if p != nil {
		principal := *p
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextUserIDKey, principal.ID)
			c.Set(middleware.ContextRoleKey, principal.Role)
			c.Set(middleware.ContextPrincipalKey, principal)
		})
	}
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newPrincipal(role string) models.Principal {
	return models.Principal{ID: uuid.New(), Name: role, Role: role}
}

type MockJobOperations struct {
	mock.Mock
}

func (m *MockJobOperations) CreateJob(ctx context.Context, p models.Principal, in service.CreateJobInput) (*models.Job, error) {
	args := m.Called(ctx, p, in)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) ListJobs(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	args := m.Called(ctx, filter)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Int(1), args.Error(2)
}

func (m *MockJobOperations) ListClientJobs(ctx context.Context, p models.Principal, filter models.JobFilter) ([]models.Job, int, error) {
	args := m.Called(ctx, p, filter)
	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Int(1), args.Error(2)
}

func (m *MockJobOperations) CancelJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, p, jobID)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) CloseJob(ctx context.Context, p models.Principal, jobID uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, p, jobID)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) ApplyForJob(ctx context.Context, p models.Principal, jobID uuid.UUID, in service.ApplyInput) (*models.Application, error) {
	args := m.Called(ctx, p, jobID, in)
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

func (m *MockJobOperations) ListJobApplications(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.Application, error) {
	args := m.Called(ctx, p, jobID)
	apps, _ := args.Get(0).([]models.Application)
	return apps, args.Error(1)
}

func (m *MockJobOperations) ListMyApplications(ctx context.Context, p models.Principal, limit, offset int) ([]models.Application, error) {
	args := m.Called(ctx, p, limit, offset)
	apps, _ := args.Get(0).([]models.Application)
	return apps, args.Error(1)
}

func (m *MockJobOperations) DecideApplication(ctx context.Context, p models.Principal, appID uuid.UUID, decision string, notes *string) (*models.HireResult, error) {
	args := m.Called(ctx, p, appID, decision, notes)
	res, _ := args.Get(0).(*models.HireResult)
	return res, args.Error(1)
}

func (m *MockJobOperations) WithdrawApplication(ctx context.Context, p models.Principal, appID uuid.UUID) (*models.Application, error) {
	args := m.Called(ctx, p, appID)
	app, _ := args.Get(0).(*models.Application)
	return app, args.Error(1)
}

func (m *MockJobOperations) SubmitWork(ctx context.Context, p models.Principal, jobID uuid.UUID, submission models.Submission) (*models.Job, error) {
	args := m.Called(ctx, p, jobID, submission)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) RejectSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, feedback string) (*models.Job, error) {
	args := m.Called(ctx, p, jobID, feedback)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *MockJobOperations) ApproveSubmission(ctx context.Context, p models.Principal, jobID uuid.UUID, force bool) (*models.PaymentRecord, error) {
	args := m.Called(ctx, p, jobID, force)
	rec, _ := args.Get(0).(*models.PaymentRecord)
	return rec, args.Error(1)
}

func (m *MockJobOperations) InviteFreelancer(ctx context.Context, p models.Principal, jobID, freelancerID uuid.UUID, message string) (*models.JobInvite, error) {
	args := m.Called(ctx, p, jobID, freelancerID, message)
	inv, _ := args.Get(0).(*models.JobInvite)
	return inv, args.Error(1)
}

func (m *MockJobOperations) RespondToInvite(ctx context.Context, p models.Principal, inviteID uuid.UUID, in service.RespondInviteInput) (*models.InviteResponse, error) {
	args := m.Called(ctx, p, inviteID, in)
	resp, _ := args.Get(0).(*models.InviteResponse)
	return resp, args.Error(1)
}

func (m *MockJobOperations) ListMyInvites(ctx context.Context, p models.Principal, status string) ([]models.JobInvite, error) {
	args := m.Called(ctx, p, status)
	inv, _ := args.Get(0).([]models.JobInvite)
	return inv, args.Error(1)
}

func (m *MockJobOperations) ListJobInvites(ctx context.Context, p models.Principal, jobID uuid.UUID) ([]models.JobInvite, error) {
	args := m.Called(ctx, p, jobID)
	inv, _ := args.Get(0).([]models.JobInvite)
	return inv, args.Error(1)
}

type MockLedgerOperations struct {
	mock.Mock
}

func (m *MockLedgerOperations) ListTransactions(ctx context.Context, p models.Principal, filter models.TransactionFilter) (*models.TransactionPage, error) {
	args := m.Called(ctx, p, filter)
	page, _ := args.Get(0).(*models.TransactionPage)
	return page, args.Error(1)
}

func (m *MockLedgerOperations) GetTransaction(ctx context.Context, p models.Principal, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, p, id)
	txn, _ := args.Get(0).(*models.Transaction)
	return txn, args.Error(1)
}

func (m *MockLedgerOperations) EarningsSummary(ctx context.Context, freelancerID uuid.UUID) (*models.EarningsSummary, error) {
	args := m.Called(ctx, freelancerID)
	s, _ := args.Get(0).(*models.EarningsSummary)
	return s, args.Error(1)
}

func (m *MockLedgerOperations) ComputeAvailableBalance(ctx context.Context, freelancerID uuid.UUID) (models.Balance, error) {
	args := m.Called(ctx, freelancerID)
	return args.Get(0).(models.Balance), args.Error(1)
}

func (m *MockLedgerOperations) RequestWithdrawal(ctx context.Context, p models.Principal, amount valueobject.Money, method string) (*models.Transaction, error) {
	args := m.Called(ctx, p, amount, method)
	txn, _ := args.Get(0).(*models.Transaction)
	return txn, args.Error(1)
}

func (m *MockLedgerOperations) CommissionSummary(ctx context.Context, recent int) (*models.CommissionSummary, error) {
	args := m.Called(ctx, recent)
	s, _ := args.Get(0).(*models.CommissionSummary)
	return s, args.Error(1)
}

type MockWithdrawalOperations struct {
	mock.Mock
}

func (m *MockWithdrawalOperations) Approve(ctx context.Context, admin models.Principal, id uuid.UUID) (*models.Transaction, error) {
	args := m.Called(ctx, admin, id)
	txn, _ := args.Get(0).(*models.Transaction)
	return txn, args.Error(1)
}

func (m *MockWithdrawalOperations) Reject(ctx context.Context, admin models.Principal, id uuid.UUID, reason string) (*models.Transaction, error) {
	args := m.Called(ctx, admin, id, reason)
	txn, _ := args.Get(0).(*models.Transaction)
	return txn, args.Error(1)
}

func (m *MockWithdrawalOperations) List(ctx context.Context, admin models.Principal, status string, limit, offset int) (*models.TransactionPage, error) {
	args := m.Called(ctx, admin, status, limit, offset)
	page, _ := args.Get(0).(*models.TransactionPage)
	return page, args.Error(1)
}

type MockChatOperations struct {
	mock.Mock
}

func (m *MockChatOperations) StartChat(ctx context.Context, p models.Principal, otherID uuid.UUID, jobID *uuid.UUID) (*models.ChatView, error) {
	args := m.Called(ctx, p, otherID, jobID)
	v, _ := args.Get(0).(*models.ChatView)
	return v, args.Error(1)
}

func (m *MockChatOperations) ListChats(ctx context.Context, p models.Principal) ([]models.ChatView, error) {
	args := m.Called(ctx, p)
	v, _ := args.Get(0).([]models.ChatView)
	return v, args.Error(1)
}

func (m *MockChatOperations) GetChat(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ChatView, error) {
	args := m.Called(ctx, p, chatID)
	v, _ := args.Get(0).(*models.ChatView)
	return v, args.Error(1)
}

func (m *MockChatOperations) ListMessages(ctx context.Context, p models.Principal, chatID uuid.UUID, beforeSeq int64, limit int) ([]models.Message, error) {
	args := m.Called(ctx, p, chatID, beforeSeq, limit)
	v, _ := args.Get(0).([]models.Message)
	return v, args.Error(1)
}

func (m *MockChatOperations) SendMessage(ctx context.Context, p models.Principal, chatID uuid.UUID, content string, msgType valueobject.MessageType) (*models.Message, error) {
	args := m.Called(ctx, p, chatID, content, msgType)
	v, _ := args.Get(0).(*models.Message)
	return v, args.Error(1)
}

func (m *MockChatOperations) MarkRead(ctx context.Context, p models.Principal, chatID uuid.UUID) (*models.ReadReceipt, error) {
	args := m.Called(ctx, p, chatID)
	v, _ := args.Get(0).(*models.ReadReceipt)
	return v, args.Error(1)
}

// ChatIDsForUser позволяет использовать мок как ws.ChatActions.
func (m *MockChatOperations) ChatIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, userID)
	v, _ := args.Get(0).([]uuid.UUID)
	return v, args.Error(1)
}

type MockTokenParser struct {
	mock.Mock
}

func (m *MockTokenParser) ParseAccess(token string) (uuid.UUID, string, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.String(1), args.Error(2)
}

type MockPrincipalLoader struct {
	mock.Mock
}

func (m *MockPrincipalLoader) GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Principal), args.Error(1)
}
