package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// pushRequest FCM-style send request
type pushRequest struct {
	To           string            `json:"to"`
	Priority     string            `json:"priority"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data"`
	Android      pushAndroid       `json:"android"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type pushAndroid struct {
	Priority     string `json:"priority"`
	Notification struct {
		ChannelID string `json:"channel_id"`
	} `json:"notification"`
}

// pushResponse per-message delivery counters returned by the gateway
type pushResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
	Results []struct {
		MessageID string `json:"message_id"`
		Error     string `json:"error"`
	} `json:"results"`
}

// PushNotifier sends mobile push notifications through an HTTP push gateway
type PushNotifier struct {
	httpClient *resty.Client
	endpoint   string
	logger     *zap.Logger
}

// NewPushNotifier creates a push notifier posting to endpoint with the given server key
func NewPushNotifier(endpoint, serverKey string, timeout time.Duration, logger *zap.Logger) *PushNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if serverKey != "" {
		client.SetHeader("Authorization", "key="+serverKey)
	}

	return &PushNotifier{
		httpClient: client,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// Send pushes title/body to the device token
func (n *PushNotifier) Send(ctx context.Context, target, title, body string) error {
	request := pushRequest{
		To:       target,
		Priority: "high",
		Notification: pushNotification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"title":   title,
			"message": body,
			"popup":   "true",
		},
	}
	request.Android.Priority = "high"
	request.Android.Notification.ChannelID = "default"

	var response pushResponse
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&response).
		Post(n.endpoint)
	if err != nil {
		return fmt.Errorf("failed to call push gateway: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("push gateway returned %s", resp.Status())
	}
	if response.Failure > 0 {
		reason := "unknown"
		if len(response.Results) > 0 && response.Results[0].Error != "" {
			reason = response.Results[0].Error
		}
		return fmt.Errorf("push rejected: %s", reason)
	}

	n.logger.Debug("Push notification sent",
		zap.String("title", title),
	)
	return nil
}
