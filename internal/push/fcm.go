package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

// FCMSender отправляет уведомления через Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender инициализирует Firebase по файлу сервисного аккаунта.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("fcm: init app %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client %w", err)
	}
	return &FCMSender{client: client}, nil
}

// Send рассылает уведомление пачкой. Токены, которые FCM больше не знает,
// возвращаются для удаления.
func (s *FCMSender) Send(ctx context.Context, tokens []string, n Notification) ([]string, error) {
	resp, err := s.client.SendMulticast(ctx, buildMessage(tokens, n))
	if err != nil {
		return nil, err
	}

	var stale []string
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if messaging.IsRegistrationTokenNotRegistered(r.Error) || messaging.IsInvalidArgument(r.Error) {
			stale = append(stale, tokens[i])
		}
	}
	return stale, nil
}

func buildMessage(tokens []string, n Notification) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "messages",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: n.Title, Body: n.Body},
					Sound: "default",
				},
			},
		},
	}
}
