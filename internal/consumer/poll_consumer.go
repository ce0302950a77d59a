package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/metrics"
	"github.com/Nordur12/SmartAquaria/internal/models"

	"go.uber.org/zap"
)

// Processor evaluates one device reading (rules, de-duplication, dispatch, state update)
type Processor interface {
	// Process always returns a non-nil outcome; err wraps a models.Err* sentinel
	Process(ctx context.Context, reading models.DeviceReading) (*models.DeviceOutcome, error)
}

// PollConsumer poll cycle driver: one pass over all device readings per cycle
type PollConsumer struct {
	config    *config.Config
	source    ReadingSource
	processor Processor
	logger    *zap.Logger

	// at most one cycle at a time
	running sync.Mutex
}

// NewPollConsumer creates a poll consumer
func NewPollConsumer(
	cfg *config.Config,
	source ReadingSource,
	processor Processor,
	logger *zap.Logger,
) *PollConsumer {
	return &PollConsumer{
		config:    cfg,
		source:    source,
		processor: processor,
		logger:    logger,
	}
}

// Start runs a cycle immediately and then every PollInterval seconds until ctx is done.
// With PollInterval 0 it only waits; cycles are then triggered externally through RunCycle.
func (c *PollConsumer) Start(ctx context.Context) error {
	if c.config.Alarm.PollInterval <= 0 {
		c.logger.Info("Poll ticker disabled, waiting for external triggers")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("Poll consumer started",
		zap.Int("poll_interval", c.config.Alarm.PollInterval),
		zap.String("failure_policy", c.config.Alarm.FailurePolicy),
	)

	ticker := time.NewTicker(time.Duration(c.config.Alarm.PollInterval) * time.Second)
	defer ticker.Stop()

	c.runScheduled(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Poll consumer stopped")
			return nil
		case <-ticker.C:
			c.runScheduled(ctx)
		}
	}
}

func (c *PollConsumer) runScheduled(ctx context.Context) {
	if _, err := c.RunCycle(ctx); err != nil {
		// the next tick is the only retry
		c.logger.Error("Poll cycle failed",
			zap.Error(err),
		)
	}
}

// RunCycle fetches all readings and processes them one at a time in batch order.
// Per-device failures are logged and recorded in the report. Under the fail_fast policy
// the first notify failure aborts the remaining devices. A source failure aborts the
// whole cycle and returns an error wrapping models.ErrSourceUnavailable.
func (c *PollConsumer) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !c.running.TryLock() {
		metrics.PollCyclesTotal.WithLabelValues("skipped_in_progress").Inc()
		return nil, models.ErrCycleInProgress
	}
	defer c.running.Unlock()

	report := &models.CycleReport{StartedAt: time.Now().UTC()}
	defer func() {
		metrics.PollCycleDuration.Observe(time.Since(report.StartedAt).Seconds())
	}()

	readings, err := c.source.FetchAll(ctx)
	if err != nil {
		metrics.PollCyclesTotal.WithLabelValues("source_unavailable").Inc()
		if !errors.Is(err, models.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrSourceUnavailable, err)
		}
		return nil, err
	}
	metrics.PollDevicesFetched.Set(float64(len(readings)))

	c.logger.Debug("Evaluating devices",
		zap.Int("device_count", len(readings)),
	)

	for _, reading := range readings {
		select {
		case <-ctx.Done():
			report.Aborted = true
		default:
		}
		if report.Aborted {
			break
		}

		outcome, err := c.processor.Process(ctx, reading)
		if outcome != nil {
			report.Devices = append(report.Devices, *outcome)
			for _, alert := range outcome.Alerts {
				if alert.Success {
					report.AlertsSent++
				}
			}
		}
		if err == nil {
			continue
		}

		report.Failures++
		if errors.Is(err, models.ErrMissingIdentifier) {
			c.logger.Debug("Skipping device without user or aquarium",
				zap.String("device_id", reading.DeviceID),
			)
			continue
		}

		c.logger.Warn("Device evaluation failed",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err),
		)

		if c.config.Alarm.FailurePolicy == config.FailurePolicyFailFast && errors.Is(err, models.ErrNotifyFailure) {
			c.logger.Error("Aborting poll cycle after notify failure",
				zap.String("device_id", reading.DeviceID),
			)
			report.Aborted = true
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	if report.Aborted {
		metrics.PollCyclesTotal.WithLabelValues("aborted").Inc()
	} else {
		metrics.PollCyclesTotal.WithLabelValues("completed").Inc()
	}

	c.logger.Info("Poll cycle finished",
		zap.Int("device_count", len(readings)),
		zap.Int("alerts_sent", report.AlertsSent),
		zap.Int("failures", report.Failures),
		zap.Bool("aborted", report.Aborted),
	)

	return report, nil
}
