package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"go.uber.org/zap"
)

// UserRepository user lookups for notification delivery
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// GetNotificationToken returns the user's push token.
// An unknown user or an empty token returns models.ErrNoNotificationTarget.
func (r *UserRepository) GetNotificationToken(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT fcm_token
		FROM users
		WHERE user_id = $1
	`

	var token sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&token)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("user %s not found: %w", userID, models.ErrNoNotificationTarget)
		}
		return "", fmt.Errorf("failed to query user token: %w", err)
	}

	if !token.Valid || token.String == "" {
		return "", fmt.Errorf("user %s has no token: %w", userID, models.ErrNoNotificationTarget)
	}

	return token.String, nil
}
