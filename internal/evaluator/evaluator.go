package evaluator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/consumer"
	"github.com/Nordur12/SmartAquaria/internal/metrics"
	"github.com/Nordur12/SmartAquaria/internal/models"

	"go.uber.org/zap"
)

// AquariumResolver resolves an aquarium id to its display name
type AquariumResolver interface {
	GetAquariumName(ctx context.Context, aquariumID string) (string, error)
}

// Dispatcher delivers one alert event
type Dispatcher interface {
	Dispatch(ctx context.Context, event models.AlertEvent) models.DispatchResult
}

// Evaluator change detector: decides which fired rules are new alerts for a device,
// dispatches them and writes the device state back (implements consumer.Processor)
type Evaluator struct {
	rules      *RuleSet
	store      consumer.StateStore
	aquariums  AquariumResolver
	dispatcher Dispatcher
	builder    *AlertEventBuilder
	dedupMode  string
	logger     *zap.Logger

	// read-check-write of one device's state is exclusive across the poll loop and the direct path
	devices *deviceLocks
}

// NewEvaluator creates an evaluator. dedupMode is config.DedupModeValue or config.DedupModeEpisode.
func NewEvaluator(
	rules *RuleSet,
	store consumer.StateStore,
	aquariums AquariumResolver,
	dispatcher Dispatcher,
	dedupMode string,
	logger *zap.Logger,
) *Evaluator {
	if dedupMode == "" {
		dedupMode = config.DedupModeValue
	}
	return &Evaluator{
		rules:      rules,
		store:      store,
		aquariums:  aquariums,
		dispatcher: dispatcher,
		builder:    NewAlertEventBuilder(),
		dedupMode:  dedupMode,
		logger:     logger,
		devices:    newDeviceLocks(),
	}
}

// Detect returns the alert events the reading produces relative to prior, in rule order.
//
// Value mode: a fired rule alerts iff the metric's raw value differs from the last
// stored value. A value pinned out of range alerts once; a value that leaves range
// and comes back to the same number does not alert again.
// Episode mode: a fired rule alerts iff it was not already violating.
func (e *Evaluator) Detect(reading models.DeviceReading, prior models.DeviceState, aquariumName string) []models.AlertEvent {
	var events []models.AlertEvent
	for _, rule := range e.rules.Fired(reading) {
		if !e.isNew(rule, reading, prior) {
			continue
		}
		events = append(events, e.builder.BuildAlertEvent(reading, aquariumName, rule))
	}
	return events
}

func (e *Evaluator) isNew(rule ThresholdRule, reading models.DeviceReading, prior models.DeviceState) bool {
	if e.dedupMode == config.DedupModeEpisode {
		return !prior.Violations[rule.Name]
	}
	return !prior.SameValue(rule.Metric, reading)
}

// NextState computes the state to store after an evaluation.
// Metrics of undelivered alerts keep their prior value so the alert is retried next cycle.
func (e *Evaluator) NextState(reading models.DeviceReading, prior models.DeviceState, undelivered []models.AlertEvent) models.DeviceState {
	next := models.StateFromReading(reading)
	pending := make(map[string]bool, len(undelivered))
	for _, ev := range undelivered {
		next = next.WithValueFrom(ev.Metric, prior)
		pending[ev.Rule] = true
	}

	if e.dedupMode == config.DedupModeEpisode {
		next.Violations = make(map[string]bool)
		for _, rule := range e.rules.Rules() {
			violating := rule.Violates(reading)
			if pending[rule.Name] {
				violating = prior.Violations[rule.Name]
			}
			if violating {
				next.Violations[rule.Name] = true
			}
		}
	}
	return next
}

// Process evaluates one reading end to end: resolve aquarium, detect, dispatch, store state.
// A reading without DeviceID is evaluated against an empty state and nothing is stored.
// The returned error wraps one of the models.Err* sentinels.
func (e *Evaluator) Process(ctx context.Context, reading models.DeviceReading) (*models.DeviceOutcome, error) {
	outcome := &models.DeviceOutcome{DeviceID: reading.DeviceID}

	if !reading.Evaluable() {
		return e.skip(outcome, fmt.Errorf("device %s: %w", reading.DeviceID, models.ErrMissingIdentifier))
	}

	aquariumName, err := e.resolveAquariumName(ctx, reading)
	if err != nil {
		return e.skip(outcome, err)
	}
	outcome.AquariumName = aquariumName

	stateful := reading.DeviceID != ""
	var prior models.DeviceState
	if stateful {
		unlock := e.devices.lock(reading.DeviceID)
		defer unlock()

		prior, err = e.store.Get(ctx, reading.DeviceID)
		if err != nil {
			metrics.StateStoreErrorsTotal.WithLabelValues("get").Inc()
			return e.skip(outcome, fmt.Errorf("failed to load state for device %s: %w", reading.DeviceID, err))
		}
	}

	events := e.Detect(reading, prior, aquariumName)

	var undelivered []models.AlertEvent
	var dispatchErr error
	for i, event := range events {
		result := e.dispatcher.Dispatch(ctx, event)
		outcome.Alerts = append(outcome.Alerts, result)
		if !result.Success {
			// remaining alerts of this device are not attempted
			undelivered = events[i:]
			dispatchErr = result.Err
			break
		}
	}

	if stateful {
		next := e.NextState(reading, prior, undelivered)
		if err := e.store.Set(ctx, reading.DeviceID, next); err != nil {
			metrics.StateStoreErrorsTotal.WithLabelValues("set").Inc()
			e.logger.Error("Failed to store device state",
				zap.String("device_id", reading.DeviceID),
				zap.Error(err),
			)
		}
	}

	switch {
	case errors.Is(dispatchErr, models.ErrNoNotificationTarget):
		outcome.Status = models.OutcomeSkipped
		outcome.Reason = dispatchErr.Error()
	case dispatchErr != nil:
		outcome.Status = models.OutcomeDeliveryFailed
		outcome.Reason = dispatchErr.Error()
	case len(events) > 0:
		outcome.Status = models.OutcomeAlerted
	default:
		outcome.Status = models.OutcomeNoAlert
	}
	metrics.DevicesEvaluatedTotal.WithLabelValues(string(outcome.Status)).Inc()

	return outcome, dispatchErr
}

func (e *Evaluator) resolveAquariumName(ctx context.Context, reading models.DeviceReading) (string, error) {
	if reading.AquariumName != "" {
		return reading.AquariumName, nil
	}
	name, err := e.aquariums.GetAquariumName(ctx, reading.AquariumID)
	if err != nil {
		if errors.Is(err, models.ErrAquariumNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to resolve aquarium %s: %w", reading.AquariumID, err)
	}
	return name, nil
}

func (e *Evaluator) skip(outcome *models.DeviceOutcome, err error) (*models.DeviceOutcome, error) {
	outcome.Status = models.OutcomeSkipped
	outcome.Reason = err.Error()
	metrics.DevicesEvaluatedTotal.WithLabelValues(string(outcome.Status)).Inc()
	return outcome, err
}
