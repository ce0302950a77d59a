package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"go.uber.org/zap"
)

// UnknownAquariumName display name used when an aquarium has no name set
const UnknownAquariumName = "Unknown Aquarium"

// AquariumRepository aquarium lookups
type AquariumRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAquariumRepository creates an aquarium repository
func NewAquariumRepository(db *sql.DB, logger *zap.Logger) *AquariumRepository {
	return &AquariumRepository{
		db:     db,
		logger: logger,
	}
}

// GetAquariumName returns the aquarium's display name.
// Unknown ids return models.ErrAquariumNotFound.
func (r *AquariumRepository) GetAquariumName(ctx context.Context, aquariumID string) (string, error) {
	query := `
		SELECT name
		FROM aquariums
		WHERE aquarium_id = $1
	`

	var name sql.NullString
	err := r.db.QueryRowContext(ctx, query, aquariumID).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("aquarium %s: %w", aquariumID, models.ErrAquariumNotFound)
		}
		return "", fmt.Errorf("failed to query aquarium: %w", err)
	}

	if !name.Valid || name.String == "" {
		r.logger.Debug("Aquarium has no name",
			zap.String("aquarium_id", aquariumID),
		)
		return UnknownAquariumName, nil
	}

	return name.String, nil
}
