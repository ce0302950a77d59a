package evaluator

import (
	"time"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/google/uuid"
)

// AlertEventBuilder builds alert events for fired rules
type AlertEventBuilder struct {
	now func() time.Time
}

// NewAlertEventBuilder creates a builder stamping events with the wall clock
func NewAlertEventBuilder() *AlertEventBuilder {
	return &AlertEventBuilder{now: time.Now}
}

// BuildAlertEvent renders rule's title and message for the reading
func (b *AlertEventBuilder) BuildAlertEvent(reading models.DeviceReading, aquariumName string, rule ThresholdRule) models.AlertEvent {
	return models.AlertEvent{
		EventID:      uuid.New().String(),
		DeviceID:     reading.DeviceID,
		UserID:       reading.UserID,
		AquariumName: aquariumName,
		Rule:         rule.Name,
		Metric:       rule.Metric,
		Title:        rule.Title,
		Message:      rule.Message(aquariumName, reading),
		TriggeredAt:  b.now().UTC(),
	}
}
