package service

import (
	"errors"

	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
	"github.com/ignatzorin/skillhire-backend/internal/repository"
)

// repoErrors сопоставляет ошибки хранилища доменным ошибкам.
var repoErrors = []struct {
	repo error
	app  *apperror.AppError
}{
	{repository.ErrUserNotFound, apperror.ErrUserNotFound},
	{repository.ErrJobNotFound, apperror.ErrJobNotFound},
	{repository.ErrApplicationNotFound, apperror.ErrApplicationNotFound},
	{repository.ErrInviteNotFound, apperror.ErrInviteNotFound},
	{repository.ErrTransactionNotFound, apperror.ErrTransactionNotFound},
	{repository.ErrChatNotFound, apperror.ErrChatNotFound},
	{repository.ErrNotificationNotFound, apperror.ErrNotificationNotFound},
	{repository.ErrDuplicateApplication, apperror.ErrDuplicateApplication},
	{repository.ErrAlreadyInvited, apperror.ErrAlreadyInvited},
	{repository.ErrAlreadyApplied, apperror.ErrAlreadyApplied},
	{repository.ErrJobNotOpen, apperror.ErrJobNotOpen},
	{repository.ErrJobNotInProgress, apperror.ErrJobNotInProgress},
	{repository.ErrPaymentAlreadyRecorded, apperror.ErrPaymentRecorded},
}

// translate переводит ошибку репозитория в AppError. Ошибки guard уже являются AppError
// и возвращаются без изменений, прочие уходят наверх как внутренние.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range repoErrors {
		if errors.Is(err, m.repo) {
			return m.app
		}
	}
	return err
}
