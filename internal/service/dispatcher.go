package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/metrics"
	"github.com/Nordur12/SmartAquaria/internal/models"
	"github.com/Nordur12/SmartAquaria/internal/notifier"

	"go.uber.org/zap"
)

// TokenResolver resolves a user to their notification target
type TokenResolver interface {
	GetNotificationToken(ctx context.Context, userID string) (string, error)
}

// AlertRecorder persists delivered alerts to the user's notification history
type AlertRecorder interface {
	RecordAlert(ctx context.Context, userID, title, message, aquariumName string, createdAt time.Time) (string, error)
}

// AlertDispatcher resolves the target, sends, then records one alert (implements evaluator.Dispatcher)
type AlertDispatcher struct {
	tokens   TokenResolver
	notifier notifier.Notifier
	recorder AlertRecorder
	logger   *zap.Logger
}

// NewAlertDispatcher creates an alert dispatcher
func NewAlertDispatcher(
	tokens TokenResolver,
	n notifier.Notifier,
	recorder AlertRecorder,
	logger *zap.Logger,
) *AlertDispatcher {
	return &AlertDispatcher{
		tokens:   tokens,
		notifier: n,
		recorder: recorder,
		logger:   logger,
	}
}

// Dispatch delivers the event. The alert is recorded only after a successful send;
// a recording failure is logged and does not fail the dispatch.
func (d *AlertDispatcher) Dispatch(ctx context.Context, event models.AlertEvent) models.DispatchResult {
	// 1. resolve target
	token, err := d.tokens.GetNotificationToken(ctx, event.UserID)
	if err != nil {
		if !errors.Is(err, models.ErrNoNotificationTarget) {
			// lookup failed, the target is unknown
			err = fmt.Errorf("%w: %v", models.ErrNoNotificationTarget, err)
		}
		metrics.AlertsDispatchedTotal.WithLabelValues(event.Rule, "no_target").Inc()
		d.logger.Warn("No notification target for alert",
			zap.String("user_id", event.UserID),
			zap.String("device_id", event.DeviceID),
			zap.String("rule", event.Rule),
			zap.Error(err),
		)
		return failed(event, err)
	}

	// 2. send
	if err := d.notifier.Send(ctx, token, event.Title, event.Message); err != nil {
		metrics.AlertsDispatchedTotal.WithLabelValues(event.Rule, "failed").Inc()
		d.logger.Error("Failed to deliver alert",
			zap.String("event_id", event.EventID),
			zap.String("device_id", event.DeviceID),
			zap.String("rule", event.Rule),
			zap.Error(err),
		)
		return failed(event, fmt.Errorf("%w: %v", models.ErrNotifyFailure, err))
	}
	metrics.AlertsDispatchedTotal.WithLabelValues(event.Rule, "sent").Inc()

	// 3. record
	if _, err := d.recorder.RecordAlert(ctx, event.UserID, event.Title, event.Message, event.AquariumName, event.TriggeredAt); err != nil {
		metrics.AlertRecordFailuresTotal.Inc()
		d.logger.Error("Failed to record delivered alert",
			zap.String("event_id", event.EventID),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}

	d.logger.Info("Alert delivered",
		zap.String("event_id", event.EventID),
		zap.String("device_id", event.DeviceID),
		zap.String("rule", event.Rule),
		zap.String("aquarium_name", event.AquariumName),
	)

	return models.DispatchResult{Event: event, Success: true}
}

func failed(event models.AlertEvent, err error) models.DispatchResult {
	return models.DispatchResult{
		Event:   event,
		Success: false,
		Err:     err,
		Error:   err.Error(),
	}
}
