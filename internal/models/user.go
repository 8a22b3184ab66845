package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/skillhire-backend/internal/domain/valueobject"
)

// Роли пользователей
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// User описывает пользователя платформы.
// TotalEarnings и CompletedJobs - кэш, который меняется только вместе с записью оплаты в леджере.
type User struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	Name          string            `db:"name" json:"name"`
	Email         string            `db:"email" json:"email"`
	Role          string            `db:"role" json:"role"`
	IsSuspended   bool              `db:"is_suspended" json:"is_suspended"`
	TotalEarnings valueobject.Money `db:"total_earnings" json:"total_earnings"`
	CompletedJobs int               `db:"completed_jobs" json:"completed_jobs"`
	IsOnline      bool              `db:"is_online" json:"is_online"`
	LastSeen      *time.Time        `db:"last_seen" json:"last_seen,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// Principal - аутентифицированный пользователь, от имени которого выполняется операция.
type Principal struct {
	ID          uuid.UUID
	Name        string
	Role        string
	IsSuspended bool
}

func (p Principal) IsAdmin() bool      { return p.Role == RoleAdmin }
func (p Principal) IsClient() bool     { return p.Role == RoleClient }
func (p Principal) IsFreelancer() bool { return p.Role == RoleFreelancer }

// PrincipalOf строит Principal из записи пользователя.
func PrincipalOf(u *User) Principal {
	return Principal{ID: u.ID, Name: u.Name, Role: u.Role, IsSuspended: u.IsSuspended}
}
