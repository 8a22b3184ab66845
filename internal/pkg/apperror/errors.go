package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound             ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeInvalidState         ErrorCode = "INVALID_STATE"
	ErrCodeDuplicateEntity      ErrorCode = "DUPLICATE_ENTITY"
	ErrCodeInsufficientBalance  ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeAlreadyResolved      ErrorCode = "ALREADY_RESOLVED"
	ErrCodeInvalidPaymentAmount ErrorCode = "INVALID_PAYMENT_AMOUNT"
	ErrCodeInvalidType          ErrorCode = "INVALID_TYPE"
	ErrCodeValidation           ErrorCode = "VALIDATION_ERROR"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы errors.Is работал
// и для копий, созданных через WithDetails.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// WithDetails возвращает копию ошибки с дополнительными полями для клиента.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	for k, v := range details {
		cp.Details[k] = v
	}
	return &cp
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Newf(code ErrorCode, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func Validation(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInsufficientBalance, ErrCodeInvalidType:
		return http.StatusBadRequest
	case ErrCodeInvalidState, ErrCodeDuplicateEntity, ErrCodeAlreadyResolved:
		return http.StatusConflict
	case ErrCodeInvalidPaymentAmount:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}

func IsForbidden(err error) bool {
	return CodeOf(err) == ErrCodeForbidden
}

func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

var (
	ErrUnauthorized = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden    = New(ErrCodeForbidden, "недостаточно прав")
	ErrInternal     = New(ErrCodeInternal, "внутренняя ошибка сервера")

	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrSkillNotFound        = New(ErrCodeNotFound, "навык не найден")
	ErrJobNotFound          = New(ErrCodeNotFound, "заказ не найден")
	ErrApplicationNotFound  = New(ErrCodeNotFound, "отклик не найден")
	ErrInviteNotFound       = New(ErrCodeNotFound, "приглашение не найдено")
	ErrTransactionNotFound  = New(ErrCodeNotFound, "транзакция не найдена")
	ErrChatNotFound         = New(ErrCodeNotFound, "чат не найден")
	ErrNotificationNotFound = New(ErrCodeNotFound, "уведомление не найдено")

	ErrAccountSuspended     = New(ErrCodeForbidden, "аккаунт заблокирован")
	ErrSkillNotVerified     = New(ErrCodeForbidden, "необходимо пройти тест по навыку этого заказа")
	ErrNotJobOwner          = New(ErrCodeForbidden, "только автор заказа может выполнить это действие")
	ErrNotHiredFreelancer   = New(ErrCodeForbidden, "только нанятый исполнитель может сдать работу")
	ErrNotApplicationOwner  = New(ErrCodeForbidden, "это не ваш отклик")
	ErrNotInviteRecipient   = New(ErrCodeForbidden, "это приглашение адресовано другому пользователю")
	ErrNotAParticipant      = New(ErrCodeForbidden, "вы не участник этого чата")
	ErrAdminOnly            = New(ErrCodeForbidden, "действие доступно только администратору")
	ErrJobNotOpen           = New(ErrCodeInvalidState, "заказ больше не принимает отклики")
	ErrJobNotInProgress     = New(ErrCodeInvalidState, "заказ не находится в работе")
	ErrApplicationFinalized = New(ErrCodeInvalidState, "решение по отклику уже принято")
	ErrAcceptedNotWithdraw  = New(ErrCodeInvalidState, "принятый отклик нельзя отозвать")
	ErrSubmissionNotPending = New(ErrCodeInvalidState, "нет работы, ожидающей проверки")
	ErrSubmissionPending    = New(ErrCodeInvalidState, "работа уже отправлена и ожидает проверки")
	ErrInviteNotPending     = New(ErrCodeInvalidState, "приглашение уже обработано")
	ErrChatInactive         = New(ErrCodeInvalidState, "чат закрыт")
	ErrDuplicateApplication = New(ErrCodeDuplicateEntity, "вы уже откликнулись на этот заказ")
	ErrAlreadyInvited       = New(ErrCodeDuplicateEntity, "исполнитель уже приглашён")
	ErrAlreadyApplied       = New(ErrCodeDuplicateEntity, "исполнитель уже откликнулся на заказ")
	ErrInsufficientBalance  = New(ErrCodeInsufficientBalance, "недостаточно средств")
	ErrNotAWithdrawal       = New(ErrCodeInvalidType, "транзакция не является выводом средств")
	ErrInvalidPaymentAmount = New(ErrCodeInvalidPaymentAmount, "сумма оплаты должна быть положительной")
	ErrPaymentRecorded      = New(ErrCodeInvalidState, "оплата по заказу уже записана")
	ErrCannotChatWithSelf   = New(ErrCodeValidation, "нельзя начать чат с самим собой")
)

// AlreadyResolved сообщает, что вывод уже обработан, и называет его текущий статус.
func AlreadyResolved(status string) *AppError {
	return Newf(ErrCodeAlreadyResolved, "вывод уже %s", status).WithDetails(map[string]any{"status": status})
}

// SkillNotVerified прикладывает идентификатор навыка, чтобы клиент мог открыть тест.
func SkillNotVerified(skillID string) *AppError {
	return ErrSkillNotVerified.WithDetails(map[string]any{"skillId": skillID})
}
