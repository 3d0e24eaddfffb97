package notify

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

const (
	androidChannel = "candid_notification_channel"
	androidColor   = "#839ED6"
	androidIcon    = "ic_stat_logo"
	defaultSound   = "default"
)

type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCMPusher sends through Firebase Cloud Messaging.
type FCMPusher struct {
	client MulticastSender
}

func NewFCMPusher(client MulticastSender) *FCMPusher {
	return &FCMPusher{client: client}
}

// NewFCMClient builds a messaging client from a service account file.
func NewFCMClient(ctx context.Context, credentialsFile, projectID string) (*messaging.Client, error) {
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, err
	}
	return app.Messaging(ctx)
}

func multicast(tokens []string, msg Message) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens:       tokens,
		Data:         msg.Data,
		Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Title:     msg.Title,
				Body:      msg.Body,
				ChannelID: androidChannel,
				Color:     androidColor,
				Sound:     defaultSound,
				Icon:      androidIcon,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert:            &messaging.ApsAlert{Title: msg.Title, Body: msg.Body},
					Sound:            defaultSound,
					ContentAvailable: true,
				},
			},
		},
	}
}

func (p *FCMPusher) Push(ctx context.Context, tokens []string, msg Message) ([]string, error) {
	resp, err := p.client.SendEachForMulticast(ctx, multicast(tokens, msg))
	if err != nil {
		return nil, err
	}
	log.Debug().Int("success", resp.SuccessCount).Int("failure", resp.FailureCount).Msg("push sent")
	var gone []string
	for i, r := range resp.Responses {
		if r.Success || i >= len(tokens) {
			continue
		}
		if messaging.IsUnregistered(r.Error) {
			gone = append(gone, tokens[i])
		}
	}
	return gone, nil
}

// LogPusher only logs; used when no push credentials are configured.
type LogPusher struct{}

func (LogPusher) Push(_ context.Context, tokens []string, msg Message) ([]string, error) {
	log.Info().Int("tokens", len(tokens)).Str("title", msg.Title).Msg("push skipped, no provider")
	return nil, nil
}
