package validation

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/ignatzorin/skillhire-backend/internal/pkg/apperror"
)

// Константы валидации
const (
	MaxJobTitleLength       = 200
	MaxJobDescriptionLength = 5000
	MaxCoverLetterLength    = 2000
	MaxDurationLength       = 100
	MaxSubmissionLength     = 5000
	MaxInviteMessageLength  = 1000
	MaxRejectReasonLength   = 1000
	MaxAttachmentsCount     = 20
	MaxAttachmentURLLength  = 500
)

// ValidateLength проверяет длину строки в символах. Ноль отключает границу.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Validation(fmt.Sprintf("%s должно быть не менее %d символов", fieldName, min))
	}
	if max > 0 && length > max {
		return apperror.Validation(fmt.Sprintf("%s должно быть не более %d символов", fieldName, max))
	}
	return nil
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Validation(fmt.Sprintf("%s не может быть пустым", fieldName))
	}
	return nil
}

// ValidateJobText проверяет название и описание заказа.
func ValidateJobText(title, description string) error {
	if strings.TrimSpace(title) == "" || strings.TrimSpace(description) == "" {
		return apperror.Validation("название и описание заказа обязательны")
	}
	if err := ValidateLength("название заказа", title, 0, MaxJobTitleLength); err != nil {
		return err
	}
	return ValidateLength("описание заказа", description, 0, MaxJobDescriptionLength)
}

// ValidateApplication проверяет текстовые поля отклика. Оба поля необязательны.
func ValidateApplication(coverLetter, duration string) error {
	if err := ValidateLength("сопроводительное письмо", coverLetter, 0, MaxCoverLetterLength); err != nil {
		return err
	}
	return ValidateLength("срок выполнения", duration, 0, MaxDurationLength)
}

// ValidateSubmission проверяет сданную работу: описание обязательно, вложения - ссылки http(s).
func ValidateSubmission(description string, attachments []string) error {
	if strings.TrimSpace(description) == "" {
		return apperror.Validation("описание работы обязательно")
	}
	if err := ValidateLength("описание работы", description, 0, MaxSubmissionLength); err != nil {
		return err
	}
	if len(attachments) > MaxAttachmentsCount {
		return apperror.Validation(fmt.Sprintf("можно приложить не более %d файлов", MaxAttachmentsCount))
	}
	for _, link := range attachments {
		if err := ValidateAttachmentURL(link); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAttachmentURL проверяет ссылку на вложение.
func ValidateAttachmentURL(link string) error {
	link = strings.TrimSpace(link)
	if err := ValidateLength("ссылка", link, 1, MaxAttachmentURLLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return apperror.Validation("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return apperror.Validation("ссылка должна начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return apperror.Validation("ссылка должна содержать доменное имя")
	}
	return nil
}
