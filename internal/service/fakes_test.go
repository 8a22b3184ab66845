package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

// memStore - хранилище в памяти. Каждая операция выполняется под общим мьютексом,
// что повторяет блокировку строк в транзакциях Postgres.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*models.User
	jobs     map[uuid.UUID]*models.Job
	apps     map[uuid.UUID]*models.Application
	invites  map[uuid.UUID]*models.JobInvite
	txns     []*models.Transaction
	chats    map[uuid.UUID]*models.Chat
	messages map[uuid.UUID][]models.Message
	seq      int64
	now      time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*models.User),
		jobs:     make(map[uuid.UUID]*models.Job),
		apps:     make(map[uuid.UUID]*models.Application),
		invites:  make(map[uuid.UUID]*models.JobInvite),
		chats:    make(map[uuid.UUID]*models.Chat),
		messages: make(map[uuid.UUID][]models.Message),
		now:      time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addUser(role, name string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{ID: uuid.New(), Name: name, Role: role, Email: name + "@example.com"}
	s.users[u.ID] = u
	return u
}

func (s *memStore) user(id uuid.UUID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memStore) job(id uuid.UUID) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) app(id uuid.UUID) models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.apps[id]
}

func (s *memStore) addJob(clientID, skillID uuid.UUID, max valueobject.Money) *models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &models.Job{
		ID: uuid.New(), ClientID: clientID, SkillID: skillID, Title: "Landing page",
		BudgetMin: max, BudgetMax: max, BudgetType: valueobject.BudgetTypeFixed, Currency: "USD",
		Status: valueobject.JobStatusOpen, PaymentStatus: valueobject.PaymentStatusPending,
	}
	s.jobs[j.ID] = j
	return j
}

func (s *memStore) addApplication(jobID, freelancerID uuid.UUID, budget valueobject.Money) *models.Application {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &models.Application{
		ID: uuid.New(), JobID: jobID, FreelancerID: freelancerID,
		ProposedBudget: budget, Status: valueobject.ApplicationStatusPending,
	}
	s.apps[a.ID] = a
	s.jobs[jobID].ApplicationsCount++
	return a
}

// jobRepo ---------------------------------------------------------------

type fakeJobRepo struct{ *memStore }

func (r fakeJobRepo) Create(_ context.Context, job *models.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.ID = uuid.New()
	job.Status = valueobject.JobStatusOpen
	job.PaymentStatus = valueobject.PaymentStatusPending
	job.CreatedAt = r.now
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r fakeJobRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (r fakeJobRepo) List(_ context.Context, f models.JobFilter) ([]models.Job, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, j := range r.jobs {
		if f.Status != "" && string(j.Status) != f.Status {
			continue
		}
		if f.ClientID != nil && j.ClientID != *f.ClientID {
			continue
		}
		out = append(out, *j)
	}
	return out, len(out), nil
}

func (r fakeJobRepo) GetApplication(_ context.Context, id uuid.UUID) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, repository.ErrApplicationNotFound
	}
	cp := *a
	return &cp, nil
}

func (r fakeJobRepo) ListApplicationsByJob(_ context.Context, jobID uuid.UUID) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Application
	for _, a := range r.apps {
		if a.JobID == jobID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r fakeJobRepo) ListApplicationsByFreelancer(_ context.Context, freelancerID uuid.UUID, _, _ int) ([]models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Application
	for _, a := range r.apps {
		if a.FreelancerID == freelancerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r fakeJobRepo) lockedJob(id uuid.UUID) (*models.Job, models.Job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, models.Job{}, repository.ErrJobNotFound
	}
	return j, *j, nil
}

func (r fakeJobRepo) hasApplication(jobID, freelancerID uuid.UUID) bool {
	for _, a := range r.apps {
		if a.JobID == jobID && a.FreelancerID == freelancerID {
			return true
		}
	}
	return false
}

func (r fakeJobRepo) insertApplication(app *models.Application) error {
	if r.hasApplication(app.JobID, app.FreelancerID) {
		return repository.ErrDuplicateApplication
	}
	app.ID = uuid.New()
	app.Status = valueobject.ApplicationStatusPending
	cp := *app
	r.apps[app.ID] = &cp
	r.jobs[app.JobID].ApplicationsCount++
	return nil
}

func (r fakeJobRepo) CreateApplication(_ context.Context, app *models.Application, guard repository.JobGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, snapshot, err := r.lockedJob(app.JobID)
	if err != nil {
		return err
	}
	if err := guard(&snapshot); err != nil {
		return err
	}
	return r.insertApplication(app)
}

func (r fakeJobRepo) lockedApplication(appID uuid.UUID) (*models.Job, *models.Application, error) {
	a, ok := r.apps[appID]
	if !ok {
		return nil, nil, repository.ErrApplicationNotFound
	}
	return r.jobs[a.JobID], a, nil
}

func (r fakeJobRepo) DecideApplication(_ context.Context, appID uuid.UUID, status valueobject.ApplicationStatus, notes *string, guard repository.ApplicationGuard) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, app, err := r.lockedApplication(appID)
	if err != nil {
		return nil, err
	}
	js, as := *job, *app
	if err := guard(&js, &as); err != nil {
		return nil, err
	}
	app.Status = status
	app.Notes = notes
	cp := *app
	return &cp, nil
}

func (r fakeJobRepo) AcceptApplication(_ context.Context, appID uuid.UUID, notes *string, guard repository.ApplicationGuard) (*models.HireResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, app, err := r.lockedApplication(appID)
	if err != nil {
		return nil, err
	}
	js, as := *job, *app
	if err := guard(&js, &as); err != nil {
		return nil, err
	}
	if job.Status != valueobject.JobStatusOpen {
		return nil, repository.ErrJobNotOpen
	}
	now := r.now
	job.Status = valueobject.JobStatusInProgress
	job.HiredFreelancerID = &app.FreelancerID
	job.HiredAt = &now
	app.Status = valueobject.ApplicationStatusAccepted
	app.Notes = notes

	var rejected []models.Application
	for _, other := range r.apps {
		if other.JobID == job.ID && other.ID != app.ID &&
			(other.Status == valueobject.ApplicationStatusPending || other.Status == valueobject.ApplicationStatusShortlisted) {
			other.Status = valueobject.ApplicationStatusRejected
			rejected = append(rejected, *other)
		}
	}
	jc, ac := *job, *app
	return &models.HireResult{Job: &jc, Application: &ac, Rejected: rejected}, nil
}

func (r fakeJobRepo) WithdrawApplication(_ context.Context, appID uuid.UUID, guard repository.ApplicationGuard) (*models.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, app, err := r.lockedApplication(appID)
	if err != nil {
		return nil, err
	}
	js, as := *job, *app
	if err := guard(&js, &as); err != nil {
		return nil, err
	}
	app.Status = valueobject.ApplicationStatusWithdrawn
	if job.ApplicationsCount > 0 {
		job.ApplicationsCount--
	}
	cp := *app
	return &cp, nil
}

func (r fakeJobRepo) updateJob(jobID uuid.UUID, guard repository.JobGuard, mutate func(*models.Job)) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, snapshot, err := r.lockedJob(jobID)
	if err != nil {
		return nil, err
	}
	if err := guard(&snapshot); err != nil {
		return nil, err
	}
	mutate(job)
	cp := *job
	return &cp, nil
}

func (r fakeJobRepo) SubmitWork(_ context.Context, jobID uuid.UUID, sub models.Submission, guard repository.JobGuard) (*models.Job, error) {
	return r.updateJob(jobID, guard, func(j *models.Job) {
		now := r.now
		j.SubmissionDescription = sub.Description
		j.SubmissionAttachments = sub.Attachments
		j.SubmissionStatus = valueobject.SubmissionStatusPending
		j.SubmissionFeedback = ""
		j.SubmittedAt = &now
	})
}

func (r fakeJobRepo) RejectSubmission(_ context.Context, jobID uuid.UUID, feedback string, guard repository.JobGuard) (*models.Job, error) {
	return r.updateJob(jobID, guard, func(j *models.Job) {
		j.SubmissionStatus = valueobject.SubmissionStatusRejected
		j.SubmissionFeedback = feedback
	})
}

func (r fakeJobRepo) UpdateStatus(_ context.Context, jobID uuid.UUID, status valueobject.JobStatus, guard repository.JobGuard) (*models.Job, error) {
	return r.updateJob(jobID, guard, func(j *models.Job) { j.Status = status })
}

func (r fakeJobRepo) CreateInvite(_ context.Context, invite *models.JobInvite, guard repository.JobGuard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, snapshot, err := r.lockedJob(invite.JobID)
	if err != nil {
		return err
	}
	if err := guard(&snapshot); err != nil {
		return err
	}
	if r.hasApplication(invite.JobID, invite.FreelancerID) {
		return repository.ErrAlreadyApplied
	}
	for _, inv := range r.invites {
		if inv.JobID == invite.JobID && inv.FreelancerID == invite.FreelancerID {
			return repository.ErrAlreadyInvited
		}
	}
	invite.ID = uuid.New()
	invite.Status = valueobject.InviteStatusPending
	invite.InvitedAt = r.now
	cp := *invite
	r.invites[invite.ID] = &cp
	return nil
}

func (r fakeJobRepo) RespondInvite(_ context.Context, inviteID uuid.UUID, accept bool, proposal models.Application, guard repository.InviteGuard) (*models.InviteResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[inviteID]
	if !ok {
		return nil, repository.ErrInviteNotFound
	}
	job := r.jobs[inv.JobID]
	js, is := *job, *inv
	if err := guard(&js, &is); err != nil {
		return nil, err
	}
	now := r.now
	inv.RespondedAt = &now
	inv.Status = valueobject.InviteStatusDeclined
	if accept {
		inv.Status = valueobject.InviteStatusAccepted
	}
	ic := *inv
	resp := &models.InviteResponse{Invite: &ic}
	if !accept {
		return resp, nil
	}
	app := proposal
	app.JobID = job.ID
	app.FreelancerID = inv.FreelancerID
	if app.ProposedBudget == 0 {
		app.ProposedBudget = job.BudgetMax
	}
	if err := r.insertApplication(&app); err != nil {
		return nil, err
	}
	resp.Application = &app
	return resp, nil
}

func (r fakeJobRepo) ListInvitesByFreelancer(_ context.Context, freelancerID uuid.UUID, status string) ([]models.JobInvite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.JobInvite
	for _, inv := range r.invites {
		if inv.FreelancerID == freelancerID && (status == "" || string(inv.Status) == status) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (r fakeJobRepo) ListInvitesByJob(_ context.Context, jobID uuid.UUID) ([]models.JobInvite, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.JobInvite
	for _, inv := range r.invites {
		if inv.JobID == jobID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

// ledgerRepo ------------------------------------------------------------

type fakeLedgerRepo struct{ *memStore }

func (r fakeLedgerRepo) RecordJobPayment(_ context.Context, jobID uuid.UUID, build repository.PaymentBuilder) (*models.PaymentRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repository.ErrJobNotFound
	}
	var accepted *models.Application
	for _, a := range r.apps {
		if a.JobID == jobID && a.Status == valueobject.ApplicationStatusAccepted {
			cp := *a
			accepted = &cp
		}
	}
	js := *job
	p, err := build(&js, accepted)
	if err != nil {
		return nil, err
	}
	if job.Status != valueobject.JobStatusInProgress {
		return nil, repository.ErrJobNotInProgress
	}
	for _, t := range r.txns {
		if t.JobID != nil && *t.JobID == jobID && t.Type == valueobject.TransactionTypePayment {
			return nil, repository.ErrPaymentAlreadyRecorded
		}
	}

	now := r.now
	job.Status = valueobject.JobStatusCompleted
	if job.SubmissionStatus == valueobject.SubmissionStatusPending {
		job.SubmissionStatus = valueobject.SubmissionStatusApproved
	}
	job.PaymentStatus = valueobject.PaymentStatusReleased
	job.CompletedAt = &now

	jid, client, freelancer, net := p.JobID, p.ClientID, p.FreelancerID, p.NetAmount
	payment := &models.Transaction{
		ID: uuid.New(), TransactionID: p.PaymentTxnID, Type: valueobject.TransactionTypePayment,
		Amount: p.Amount, Currency: p.Currency, Status: valueobject.TransactionStatusCompleted,
		FromUserID: &client, ToUserID: &freelancer, JobID: &jid,
		CommissionRate: p.CommissionRate, Commission: p.Commission, NetAmount: &net,
		CompletedAt: &now, CreatedAt: now,
	}
	commission := &models.Transaction{
		ID: uuid.New(), TransactionID: p.CommissionTxID, Type: valueobject.TransactionTypeCommission,
		Amount: p.Commission, Currency: p.Currency, Status: valueobject.TransactionStatusCompleted,
		FromUserID: &freelancer, JobID: &jid, CommissionRate: p.CommissionRate, Commission: p.Commission,
		CompletedAt: &now, CreatedAt: now,
	}
	r.txns = append(r.txns, payment, commission)
	u := r.users[freelancer]
	u.TotalEarnings += net
	u.CompletedJobs++

	jc, pc, cc := *job, *payment, *commission
	return &models.PaymentRecord{Job: &jc, Payment: &pc, Commission: &cc}, nil
}

func (r fakeLedgerRepo) balance(freelancerID uuid.UUID) (models.Balance, error) {
	u, ok := r.users[freelancerID]
	if !ok {
		return models.Balance{}, repository.ErrUserNotFound
	}
	var reserved valueobject.Money
	for _, t := range r.txns {
		if t.Type == valueobject.TransactionTypeWithdrawal && t.FromUserID != nil && *t.FromUserID == freelancerID && t.Status.ReservesBalance() {
			reserved += t.Amount
		}
	}
	return models.Balance{
		FreelancerID: freelancerID, LifetimeEarnings: u.TotalEarnings,
		Reserved: reserved, Available: u.TotalEarnings - reserved,
	}, nil
}

func (r fakeLedgerRepo) GetBalance(_ context.Context, freelancerID uuid.UUID) (models.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance(freelancerID)
}

func (r fakeLedgerRepo) CreateWithdrawal(_ context.Context, req models.WithdrawalRequest, guard repository.BalanceGuard) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, err := r.balance(req.FreelancerID)
	if err != nil {
		return nil, err
	}
	if err := guard(b); err != nil {
		return nil, err
	}
	from, net := req.FreelancerID, req.Amount
	t := &models.Transaction{
		ID: uuid.New(), TransactionID: req.TransactionID, Type: valueobject.TransactionTypeWithdrawal,
		Amount: req.Amount, Currency: req.Currency, Status: valueobject.TransactionStatusPending,
		FromUserID: &from, NetAmount: &net, PaymentMethod: req.Method, CreatedAt: r.now,
	}
	r.txns = append(r.txns, t)
	cp := *t
	return &cp, nil
}

func (r fakeLedgerRepo) find(id uuid.UUID) *models.Transaction {
	for _, t := range r.txns {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (r fakeLedgerRepo) ResolveWithdrawal(_ context.Context, id uuid.UUID, status valueobject.TransactionStatus, reason *string, guard repository.TransactionGuard) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.find(id)
	if t == nil {
		return nil, repository.ErrTransactionNotFound
	}
	snapshot := *t
	if err := guard(&snapshot); err != nil {
		return nil, err
	}
	now := r.now
	t.Status = status
	t.FailureReason = reason
	if status == valueobject.TransactionStatusCompleted {
		t.CompletedAt = &now
	} else {
		t.FailedAt = &now
	}
	cp := *t
	return &cp, nil
}

func (r fakeLedgerRepo) GetTransaction(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.find(id)
	if t == nil {
		return nil, repository.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (r fakeLedgerRepo) ListTransactions(_ context.Context, f models.TransactionFilter) ([]models.Transaction, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.txns {
		if f.UserID != nil && !involves(t, *f.UserID) {
			continue
		}
		if f.Type != "" && string(t.Type) != f.Type {
			continue
		}
		if f.Status != "" && string(t.Status) != f.Status {
			continue
		}
		out = append(out, *t)
	}
	return out, len(out), nil
}

func (r fakeLedgerRepo) CountByStatus(_ context.Context, txnType valueobject.TransactionType, status valueobject.TransactionStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.txns {
		if t.Type == txnType && t.Status == status {
			n++
		}
	}
	return n, nil
}

func (r fakeLedgerRepo) SumWithdrawals(_ context.Context, freelancerID uuid.UUID, status valueobject.TransactionStatus) (valueobject.Money, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum valueobject.Money
	for _, t := range r.txns {
		if t.Type == valueobject.TransactionTypeWithdrawal && t.Status == status && t.FromUserID != nil && *t.FromUserID == freelancerID {
			sum += t.Amount
		}
	}
	return sum, nil
}

func (r fakeLedgerRepo) MonthlyEarnings(_ context.Context, freelancerID uuid.UUID, since time.Time) ([]models.MonthlyEarning, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMonth := map[string]*models.MonthlyEarning{}
	for _, t := range r.txns {
		if t.Type != valueobject.TransactionTypePayment || t.ToUserID == nil || *t.ToUserID != freelancerID || t.CreatedAt.Before(since) {
			continue
		}
		key := t.CreatedAt.Format("2006-01")
		if byMonth[key] == nil {
			byMonth[key] = &models.MonthlyEarning{Month: key}
		}
		byMonth[key].Amount += *t.NetAmount
		byMonth[key].Jobs++
	}
	out := make([]models.MonthlyEarning, 0, len(byMonth))
	for _, m := range byMonth {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

func (r fakeLedgerRepo) CommissionTotals(_ context.Context) (valueobject.Money, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total valueobject.Money
	n := 0
	for _, t := range r.txns {
		if t.Type == valueobject.TransactionTypeCommission {
			total += t.Amount
			n++
		}
	}
	return total, n, nil
}

// users -----------------------------------------------------------------

type fakeUsers struct{ *memStore }

func (r fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUsers) GetPrincipal(ctx context.Context, id uuid.UUID) (models.Principal, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Principal{}, err
	}
	return models.PrincipalOf(u), nil
}

func (r fakeUsers) GetPeer(ctx context.Context, id uuid.UUID) (*models.ChatPeer, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ChatPeer{ID: u.ID, Name: u.Name, IsOnline: u.IsOnline}, nil
}

// chats -----------------------------------------------------------------

type fakeChatRepo struct{ *memStore }

func (r fakeChatRepo) EnsureChat(_ context.Context, x, y uuid.UUID, jobID *uuid.UUID) (*models.Chat, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, b := models.OrderedPair(x, y)
	for _, c := range r.chats {
		if c.ParticipantA == a && c.ParticipantB == b {
			if c.JobID == nil {
				c.JobID = jobID
			}
			cp := *c
			return &cp, false, nil
		}
	}
	c := &models.Chat{ID: uuid.New(), ParticipantA: a, ParticipantB: b, JobID: jobID, IsActive: true, CreatedAt: r.now}
	r.chats[c.ID] = c
	cp := *c
	return &cp, true, nil
}

func (r fakeChatRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, repository.ErrChatNotFound
	}
	cp := *c
	return &cp, nil
}

func (r fakeChatRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, c := range r.chats {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r fakeChatRepo) ListIDsByUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	chats, _ := r.ListByUser(ctx, userID)
	ids := make([]uuid.UUID, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r fakeChatRepo) CreateMessage(_ context.Context, in models.NewMessage, guard repository.ChatGuard) (*models.Message, *models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[in.ChatID]
	if !ok {
		return nil, nil, repository.ErrChatNotFound
	}
	snapshot := *c
	if err := guard(&snapshot); err != nil {
		return nil, nil, err
	}
	r.seq++
	msg := models.Message{
		ID: uuid.New(), Seq: r.seq, ChatID: in.ChatID, SenderID: in.SenderID,
		SenderName: r.users[in.SenderID].Name, Content: in.Content, Type: in.Type, CreatedAt: r.now,
	}
	r.messages[in.ChatID] = append(r.messages[in.ChatID], msg)
	c.LastMessageID = &msg.ID
	c.LastMessageAt = &msg.CreatedAt
	if c.ParticipantA != in.SenderID {
		c.UnreadA++
	}
	if c.ParticipantB != in.SenderID {
		c.UnreadB++
	}
	cc := *c
	return &msg, &cc, nil
}

func (r fakeChatRepo) MarkRead(_ context.Context, chatID, readerID uuid.UUID, guard repository.ChatGuard) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatID]
	if !ok {
		return 0, repository.ErrChatNotFound
	}
	snapshot := *c
	if err := guard(&snapshot); err != nil {
		return 0, err
	}
	n := 0
	msgs := r.messages[chatID]
	for i := range msgs {
		if msgs[i].SenderID != readerID && !msgs[i].IsRead {
			msgs[i].IsRead = true
			n++
		}
	}
	if c.ParticipantA == readerID {
		c.UnreadA = 0
	}
	if c.ParticipantB == readerID {
		c.UnreadB = 0
	}
	return n, nil
}

func (r fakeChatRepo) ListMessages(_ context.Context, chatID uuid.UUID, _ int64, _ int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Message(nil), r.messages[chatID]...), nil
}

func (r fakeChatRepo) GetMessages(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := map[uuid.UUID]models.Message{}
	for _, msgs := range r.messages {
		for _, m := range msgs {
			if want[m.ID] {
				out[m.ID] = m
			}
		}
	}
	return out, nil
}

// realtime --------------------------------------------------------------

type sentEvent struct {
	UserID uuid.UUID
	Room   string
	Event  string
	Data   interface{}
}

// recordingHub запоминает всё, что сервисы отправляют пользователям.
type recordingHub struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	events []sentEvent
	joined map[uuid.UUID][]string
	pushes []uuid.UUID
}

func newRecordingHub() *recordingHub {
	return &recordingHub{online: map[uuid.UUID]bool{}, joined: map[uuid.UUID][]string{}}
}

func (h *recordingHub) BroadcastToUser(userID uuid.UUID, event string, data interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{UserID: userID, Event: event, Data: data})
	return nil
}

func (h *recordingHub) BroadcastToRoom(room, event string, data interface{}, _ *uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{Room: room, Event: event, Data: data})
}

func (h *recordingHub) SendToUser(userID uuid.UUID, event string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, sentEvent{UserID: userID, Event: event, Data: data})
}

func (h *recordingHub) JoinRoom(userID uuid.UUID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined[userID] = append(h.joined[userID], room)
}

func (h *recordingHub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online[userID]
}

func (h *recordingHub) PushToUser(userID uuid.UUID, _, _ string, _ map[string]string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushes = append(h.pushes, userID)
}

func (h *recordingHub) eventsFor(userID uuid.UUID, event string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.events {
		if e.UserID == userID && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (h *recordingHub) roomEvents(room, event string) []sentEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []sentEvent
	for _, e := range h.events {
		if e.Room == room && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
