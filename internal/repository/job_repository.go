package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
	"github.com/ignatzorin/skillhire-backend/internal/models"
	"github.com/ignatzorin/skillhire-backend/internal/repository/common"
)

var (
	ErrJobNotFound          = errors.New("job not found")
	ErrApplicationNotFound  = errors.New("application not found")
	ErrInviteNotFound       = errors.New("invite not found")
	ErrDuplicateApplication = errors.New("application already exists")
	ErrAlreadyInvited       = errors.New("freelancer already invited")
	ErrAlreadyApplied       = errors.New("freelancer already applied")
	// ErrJobNotOpen - CAS open -> in-progress не сработал, заказ уже занят.
	ErrJobNotOpen = errors.New("job is not open")
)

// Ограничения, нарушение которых переводится в доменные ошибки.
const (
	constraintApplicationUnique = "applications_job_id_freelancer_id_key"
	constraintOneAccepted       = "uq_applications_one_accepted"
	constraintInviteUnique      = "job_invites_job_id_freelancer_id_key"
)

// JobGuard проверяет бизнес-правила над заблокированной строкой заказа.
// Ошибка guard откатывает транзакцию и возвращается вызывающему как есть.
type JobGuard func(job *models.Job) error

// ApplicationGuard проверяет правила над заказом и откликом под блокировкой.
type ApplicationGuard func(job *models.Job, app *models.Application) error

// InviteGuard проверяет правила над заказом и приглашением под блокировкой.
type InviteGuard func(job *models.Job, invite *models.JobInvite) error

// JobRepository хранит заказы, отклики и приглашения.
// Все переходы состояний выполняются в транзакции с блокировкой строки заказа.
type JobRepository struct {
	db *sqlx.DB
}

func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create создаёт заказ в статусе open.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (client_id, skill_id, title, description, budget_min, budget_max, budget_type, currency, deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`
	err := r.db.QueryRowxContext(ctx, query,
		job.ClientID, job.SkillID, job.Title, job.Description,
		job.BudgetMin, job.BudgetMax, job.BudgetType, job.Currency, job.Deadline,
	).StructScan(job)
	if err != nil {
		return fmt.Errorf("job repository: create %w", err)
	}
	return nil
}

// GetByID возвращает заказ.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return common.GetByID[models.Job](ctx, r.db, "jobs", id, ErrJobNotFound)
}

// List возвращает страницу заказов и общее число подходящих записей.
func (r *JobRepository) List(ctx context.Context, filter models.JobFilter) ([]models.Job, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.SkillID != nil {
		add("skill_id = $%d", *filter.SkillID)
	}
	if filter.ClientID != nil {
		add("client_id = $%d", *filter.ClientID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		add("(title ILIKE $%[1]d OR description ILIKE $%[1]d)", "%"+s+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM jobs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: count %w", err)
	}

	limit, offset := normalizePage(filter.Limit, filter.Offset)
	query := fmt.Sprintf("SELECT * FROM jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d", where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	jobs := []models.Job{}
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("job repository: list %w", err)
	}
	return jobs, total, nil
}

// GetApplication возвращает отклик.
func (r *JobRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return common.GetByID[models.Application](ctx, r.db, "applications", id, ErrApplicationNotFound)
}

// GetAcceptedApplication возвращает принятый отклик заказа.
func (r *JobRepository) GetAcceptedApplication(ctx context.Context, jobID uuid.UUID) (*models.Application, error) {
	return acceptedApplication(ctx, r.db, jobID)
}

func acceptedApplication(ctx context.Context, q common.Querier, jobID uuid.UUID) (*models.Application, error) {
	var app models.Application
	err := q.GetContext(ctx, &app, `SELECT * FROM applications WHERE job_id = $1 AND status = 'accepted'`, jobID)
	if err != nil {
		return nil, wrapNotFound(err, ErrApplicationNotFound, "job repository: accepted application")
	}
	return &app, nil
}

// ListApplicationsByJob возвращает отклики на заказ, новые первыми.
func (r *JobRepository) ListApplicationsByJob(ctx context.Context, jobID uuid.UUID) ([]models.Application, error) {
	apps := []models.Application{}
	err := r.db.SelectContext(ctx, &apps, `SELECT * FROM applications WHERE job_id = $1 ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job repository: list applications %w", err)
	}
	return apps, nil
}

// ListApplicationsByFreelancer возвращает отклики исполнителя.
func (r *JobRepository) ListApplicationsByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Application, error) {
	limit, offset = normalizePage(limit, offset)
	apps := []models.Application{}
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM applications
		WHERE freelancer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, freelancerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("job repository: list my applications %w", err)
	}
	return apps, nil
}

// CreateApplication сохраняет отклик и увеличивает счётчик откликов заказа.
func (r *JobRepository) CreateApplication(ctx context.Context, app *models.Application, guard JobGuard) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", app.JobID, ErrJobNotFound)
		if err != nil {
			return err
		}
		if err := guard(job); err != nil {
			return err
		}
		if err := insertApplication(ctx, tx, app); err != nil {
			return err
		}
		return incrementApplications(ctx, tx, job.ID, 1)
	})
}

func insertApplication(ctx context.Context, tx *sqlx.Tx, app *models.Application) error {
	err := tx.QueryRowxContext(ctx, `
		INSERT INTO applications (job_id, freelancer_id, cover_letter, proposed_budget, estimated_duration)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *
	`, app.JobID, app.FreelancerID, app.CoverLetter, app.ProposedBudget, app.EstimatedDuration).StructScan(app)
	if err != nil {
		if common.IsUniqueViolation(err, constraintApplicationUnique) {
			return ErrDuplicateApplication
		}
		return fmt.Errorf("job repository: insert application %w", err)
	}
	return nil
}

func incrementApplications(ctx context.Context, tx *sqlx.Tx, jobID uuid.UUID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE jobs SET applications_count = GREATEST(applications_count + $2, 0), updated_at = NOW()
		WHERE id = $1
	`, jobID, delta)
	if err != nil {
		return fmt.Errorf("job repository: applications count %w", err)
	}
	return nil
}

// lockApplication блокирует заказ и отклик в одном порядке (сначала заказ),
// чтобы параллельные решения по одному заказу не взаимоблокировались.
func lockApplication(ctx context.Context, tx *sqlx.Tx, appID uuid.UUID) (*models.Job, *models.Application, error) {
	var jobID uuid.UUID
	if err := tx.GetContext(ctx, &jobID, `SELECT job_id FROM applications WHERE id = $1`, appID); err != nil {
		return nil, nil, wrapNotFound(err, ErrApplicationNotFound, "job repository: application job")
	}
	job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", jobID, ErrJobNotFound)
	if err != nil {
		return nil, nil, err
	}
	app, err := common.GetByIDForUpdate[models.Application](ctx, tx, "applications", appID, ErrApplicationNotFound)
	if err != nil {
		return nil, nil, err
	}
	return job, app, nil
}

// DecideApplication переводит отклик в shortlisted или rejected.
func (r *JobRepository) DecideApplication(ctx context.Context, appID uuid.UUID, status valueobject.ApplicationStatus, notes *string, guard ApplicationGuard) (*models.Application, error) {
	var updated models.Application
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, app, err := lockApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		if err := guard(job, app); err != nil {
			return err
		}
		return tx.QueryRowxContext(ctx, `
			UPDATE applications
			SET status = $2, notes = COALESCE($3, notes), decided_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, appID, status, notes).StructScan(&updated)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AcceptApplication нанимает исполнителя: заказ переходит open -> in-progress
// через CAS, отклик становится accepted, остальные активные отклики отклоняются.
func (r *JobRepository) AcceptApplication(ctx context.Context, appID uuid.UUID, notes *string, guard ApplicationGuard) (*models.HireResult, error) {
	result := &models.HireResult{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, app, err := lockApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		if err := guard(job, app); err != nil {
			return err
		}

		var hired models.Job
		err = tx.GetContext(ctx, &hired, `
			UPDATE jobs
			SET status = 'in-progress', hired_freelancer_id = $2, hired_at = NOW(), updated_at = NOW()
			WHERE id = $1 AND status = 'open'
			RETURNING *
		`, job.ID, app.FreelancerID)
		if err != nil {
			return wrapNotFound(err, ErrJobNotOpen, "job repository: hire")
		}

		var accepted models.Application
		err = tx.GetContext(ctx, &accepted, `
			UPDATE applications
			SET status = 'accepted', notes = COALESCE($2, notes), decided_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, app.ID, notes)
		if err != nil {
			if common.IsUniqueViolation(err, constraintOneAccepted) {
				return ErrJobNotOpen
			}
			return fmt.Errorf("job repository: accept application %w", err)
		}

		rejected := []models.Application{}
		err = tx.SelectContext(ctx, &rejected, `
			UPDATE applications
			SET status = 'rejected', decided_at = NOW(), updated_at = NOW()
			WHERE job_id = $1 AND id <> $2 AND status IN ('pending', 'shortlisted')
			RETURNING *
		`, job.ID, app.ID)
		if err != nil {
			return fmt.Errorf("job repository: reject others %w", err)
		}

		result.Job = &hired
		result.Application = &accepted
		result.Rejected = rejected
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// WithdrawApplication отзывает отклик исполнителем и уменьшает счётчик откликов.
func (r *JobRepository) WithdrawApplication(ctx context.Context, appID uuid.UUID, guard ApplicationGuard) (*models.Application, error) {
	var updated models.Application
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, app, err := lockApplication(ctx, tx, appID)
		if err != nil {
			return err
		}
		if err := guard(job, app); err != nil {
			return err
		}
		err = tx.GetContext(ctx, &updated, `
			UPDATE applications SET status = 'withdrawn', updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, appID)
		if err != nil {
			return fmt.Errorf("job repository: withdraw application %w", err)
		}
		return incrementApplications(ctx, tx, job.ID, -1)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// updateLocked блокирует заказ, проверяет guard и выполняет UPDATE ... RETURNING *.
func (r *JobRepository) updateLocked(ctx context.Context, jobID uuid.UUID, guard JobGuard, op, query string, args ...interface{}) (*models.Job, error) {
	var updated models.Job
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", jobID, ErrJobNotFound)
		if err != nil {
			return err
		}
		if err := guard(job); err != nil {
			return err
		}
		if err := tx.GetContext(ctx, &updated, query, append([]interface{}{jobID}, args...)...); err != nil {
			return fmt.Errorf("job repository: %s %w", op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SubmitWork сохраняет сданную работу и переводит её на проверку.
func (r *JobRepository) SubmitWork(ctx context.Context, jobID uuid.UUID, submission models.Submission, guard JobGuard) (*models.Job, error) {
	attachments := submission.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	return r.updateLocked(ctx, jobID, guard, "submit work", `
		UPDATE jobs
		SET submission_description = $2, submission_attachments = $3, submission_status = 'pending',
		    submission_feedback = '', submitted_at = NOW(), updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, submission.Description, pq.StringArray(attachments))
}

// RejectSubmission возвращает работу на доработку с комментарием клиента.
func (r *JobRepository) RejectSubmission(ctx context.Context, jobID uuid.UUID, feedback string, guard JobGuard) (*models.Job, error) {
	return r.updateLocked(ctx, jobID, guard, "reject submission", `
		UPDATE jobs
		SET submission_status = 'rejected', submission_feedback = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, feedback)
}

// UpdateStatus меняет статус заказа (отмена, закрытие).
func (r *JobRepository) UpdateStatus(ctx context.Context, jobID uuid.UUID, status valueobject.JobStatus, guard JobGuard) (*models.Job, error) {
	return r.updateLocked(ctx, jobID, guard, "update status", `
		UPDATE jobs SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING *
	`, status)
}

// CreateInvite приглашает исполнителя на заказ.
func (r *JobRepository) CreateInvite(ctx context.Context, invite *models.JobInvite, guard JobGuard) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", invite.JobID, ErrJobNotFound)
		if err != nil {
			return err
		}
		if err := guard(job); err != nil {
			return err
		}

		var applied bool
		err = tx.GetContext(ctx, &applied, `
			SELECT EXISTS (SELECT 1 FROM applications WHERE job_id = $1 AND freelancer_id = $2)
		`, invite.JobID, invite.FreelancerID)
		if err != nil {
			return fmt.Errorf("job repository: check applied %w", err)
		}
		if applied {
			return ErrAlreadyApplied
		}

		err = tx.QueryRowxContext(ctx, `
			INSERT INTO job_invites (job_id, freelancer_id, message)
			VALUES ($1, $2, $3)
			RETURNING *
		`, invite.JobID, invite.FreelancerID, invite.Message).StructScan(invite)
		if err != nil {
			if common.IsUniqueViolation(err, constraintInviteUnique) {
				return ErrAlreadyInvited
			}
			return fmt.Errorf("job repository: create invite %w", err)
		}
		return nil
	})
}

// GetInvite возвращает приглашение.
func (r *JobRepository) GetInvite(ctx context.Context, id uuid.UUID) (*models.JobInvite, error) {
	return common.GetByID[models.JobInvite](ctx, r.db, "job_invites", id, ErrInviteNotFound)
}

// RespondInvite фиксирует ответ на приглашение. При согласии из proposal создаётся
// отклик в статусе pending; если бюджет не указан, берётся максимальный бюджет заказа.
func (r *JobRepository) RespondInvite(ctx context.Context, inviteID uuid.UUID, accept bool, proposal models.Application, guard InviteGuard) (*models.InviteResponse, error) {
	resp := &models.InviteResponse{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var jobID uuid.UUID
		if err := tx.GetContext(ctx, &jobID, `SELECT job_id FROM job_invites WHERE id = $1`, inviteID); err != nil {
			return wrapNotFound(err, ErrInviteNotFound, "job repository: invite job")
		}
		job, err := common.GetByIDForUpdate[models.Job](ctx, tx, "jobs", jobID, ErrJobNotFound)
		if err != nil {
			return err
		}
		invite, err := common.GetByIDForUpdate[models.JobInvite](ctx, tx, "job_invites", inviteID, ErrInviteNotFound)
		if err != nil {
			return err
		}
		if err := guard(job, invite); err != nil {
			return err
		}

		status := valueobject.InviteStatusDeclined
		if accept {
			status = valueobject.InviteStatusAccepted
		}
		var updated models.JobInvite
		err = tx.GetContext(ctx, &updated, `
			UPDATE job_invites SET status = $2, responded_at = $3
			WHERE id = $1
			RETURNING *
		`, inviteID, status, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("job repository: respond invite %w", err)
		}
		resp.Invite = &updated

		if !accept {
			return nil
		}
		app := &proposal
		app.JobID = job.ID
		app.FreelancerID = invite.FreelancerID
		if app.ProposedBudget == 0 {
			app.ProposedBudget = job.BudgetMax
		}
		if err := insertApplication(ctx, tx, app); err != nil {
			return err
		}
		resp.Application = app
		return incrementApplications(ctx, tx, job.ID, 1)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListInvitesByFreelancer возвращает приглашения исполнителя.
func (r *JobRepository) ListInvitesByFreelancer(ctx context.Context, freelancerID uuid.UUID, status string) ([]models.JobInvite, error) {
	query := `SELECT * FROM job_invites WHERE freelancer_id = $1`
	args := []interface{}{freelancerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY invited_at DESC`

	invites := []models.JobInvite{}
	if err := r.db.SelectContext(ctx, &invites, query, args...); err != nil {
		return nil, fmt.Errorf("job repository: list invites %w", err)
	}
	return invites, nil
}

// ListInvitesByJob возвращает приглашения по заказу.
func (r *JobRepository) ListInvitesByJob(ctx context.Context, jobID uuid.UUID) ([]models.JobInvite, error) {
	invites := []models.JobInvite{}
	err := r.db.SelectContext(ctx, &invites, `SELECT * FROM job_invites WHERE job_id = $1 ORDER BY invited_at DESC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("job repository: list job invites %w", err)
	}
	return invites, nil
}
