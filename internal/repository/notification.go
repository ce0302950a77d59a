package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotificationRepository per-user notification history
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) *NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// RecordAlert stores a delivered alert as an unread notification and returns its id
func (r *NotificationRepository) RecordAlert(
	ctx context.Context,
	userID, title, message, aquariumName string,
	createdAt time.Time,
) (string, error) {
	notificationID := uuid.New().String()

	query := `
		INSERT INTO notifications (
			notification_id, user_id, title, message, aquarium_name, created_at, is_read
		) VALUES ($1, $2, $3, $4, $5, $6, false)
	`

	_, err := r.db.ExecContext(ctx, query,
		notificationID,
		userID,
		title,
		message,
		aquariumName,
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert notification: %w", err)
	}

	r.logger.Debug("Recorded notification",
		zap.String("notification_id", notificationID),
		zap.String("user_id", userID),
	)

	return notificationID, nil
}
