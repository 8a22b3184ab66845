package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SkillRepository - справочник навыков и результатов тестирования исполнителей.
type SkillRepository struct {
	db *sqlx.DB
}

func NewSkillRepository(db *sqlx.DB) *SkillRepository {
	return &SkillRepository{db: db}
}

// SkillExists проверяет, что активный навык существует.
func (r *SkillRepository) SkillExists(ctx context.Context, skillID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM skills WHERE id = $1 AND is_active)`, skillID)
	if err != nil {
		return false, fmt.Errorf("skill repository: exists %w", err)
	}
	return exists, nil
}

// HasPassedSkill проверяет, что исполнитель сдал тест по навыку.
func (r *SkillRepository) HasPassedSkill(ctx context.Context, userID, skillID uuid.UUID) (bool, error) {
	var passed bool
	err := r.db.GetContext(ctx, &passed, `
		SELECT EXISTS (
			SELECT 1 FROM freelancer_skills
			WHERE user_id = $1 AND skill_id = $2 AND passed
		)
	`, userID, skillID)
	if err != nil {
		return false, fmt.Errorf("skill repository: has passed %w", err)
	}
	return passed, nil
}
