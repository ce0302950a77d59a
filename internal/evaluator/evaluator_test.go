package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/config"
	"github.com/Nordur12/SmartAquaria/internal/consumer"
	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockAquariumResolver struct {
	mock.Mock
}

func (m *mockAquariumResolver) GetAquariumName(ctx context.Context, aquariumID string) (string, error) {
	args := m.Called(ctx, aquariumID)
	return args.String(0), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Dispatch(ctx context.Context, event models.AlertEvent) models.DispatchResult {
	args := m.Called(ctx, event)
	result := models.DispatchResult{Event: event, Success: true}
	if err := args.Error(0); err != nil {
		result.Success = false
		result.Err = err
		result.Error = err.Error()
	}
	return result
}

type failingStore struct {
	consumer.StateStore
}

func (failingStore) Get(context.Context, string) (models.DeviceState, error) {
	return models.DeviceState{}, errors.New("redis: connection refused")
}

func forRule(name string) interface{} {
	return mock.MatchedBy(func(e models.AlertEvent) bool { return e.Rule == name })
}

func setupEvaluator(t *testing.T, dedupMode string) (*Evaluator, *consumer.MemoryStateStore, *mockAquariumResolver, *mockDispatcher) {
	t.Helper()
	store := consumer.NewMemoryStateStore()
	aquariums := &mockAquariumResolver{}
	dispatcher := &mockDispatcher{}
	e := NewEvaluator(DefaultRules(), store, aquariums, dispatcher, dedupMode, zap.NewNop())
	return e, store, aquariums, dispatcher
}

func phReading(ph float64) models.DeviceReading {
	return models.DeviceReading{
		DeviceID:   "d1",
		UserID:     "u1",
		AquariumID: "a1",
		PHLevel:    models.Float64Ptr(ph),
	}
}

func alertRules(outcome *models.DeviceOutcome) []string {
	var rules []string
	for _, a := range outcome.Alerts {
		rules = append(rules, a.Event.Rule)
	}
	return rules
}

// ============================================
// Value de-duplication
// ============================================

func TestProcess_EndToEndHighPH(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	outcome, err := e.Process(ctx, phReading(9.0))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlerted, outcome.Status)
	assert.Equal(t, "Reef", outcome.AquariumName)
	require.Len(t, outcome.Alerts, 1)

	event := outcome.Alerts[0].Event
	assert.Equal(t, RulePHHigh, event.Rule)
	assert.Equal(t, "⚠️ High pH Alert!", event.Title)
	assert.Contains(t, event.Message, "Reef")
	assert.Equal(t, "u1", event.UserID)

	state, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, state.PHLevel)
	assert.Equal(t, 9.0, *state.PHLevel)

	// identical reading stays silent
	outcome, err = e.Process(ctx, phReading(9.0))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoAlert, outcome.Status)
	assert.Empty(t, outcome.Alerts)
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestProcess_DistinctOutOfRangeValuesAlertEachTime(t *testing.T) {
	e, _, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, forRule(RulePHHigh)).Return(nil)

	first, err := e.Process(ctx, phReading(9.0))
	require.NoError(t, err)
	second, err := e.Process(ctx, phReading(9.3))
	require.NoError(t, err)

	assert.Equal(t, []string{RulePHHigh}, alertRules(first))
	assert.Equal(t, []string{RulePHHigh}, alertRules(second))
	assert.Contains(t, second.Alerts[0].Event.Message, "9.3")
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 2)
}

func TestProcess_MultipleRulesInOrder(t *testing.T) {
	e, _, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	reading := phReading(9.0)
	reading.Temperature = models.Float64Ptr(20)

	outcome, err := e.Process(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, []string{RulePHHigh, RuleTemperatureLow}, alertRules(outcome))
}

func TestProcess_InRangeReadingUpdatesState(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)

	outcome, err := e.Process(ctx, phReading(7.2))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNoAlert, outcome.Status)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)

	state, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 7.2, *state.PHLevel)
}

func TestProcess_ReturnToSameValueDoesNotRealert(t *testing.T) {
	e, _, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	for _, ph := range []float64{9.0, 9.0, 9.0} {
		_, err := e.Process(ctx, phReading(ph))
		require.NoError(t, err)
	}
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)

	// the in-range value replaces 9.0, so 9.0 is new again
	for _, ph := range []float64{7.0, 9.0} {
		_, err := e.Process(ctx, phReading(ph))
		require.NoError(t, err)
	}
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 2)
}

func TestProcess_UnreportedMetricComesBack(t *testing.T) {
	e, _, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	_, err := e.Process(ctx, phReading(9.0))
	require.NoError(t, err)

	noPH := phReading(0)
	noPH.PHLevel = nil
	_, err = e.Process(ctx, noPH)
	require.NoError(t, err)

	outcome, err := e.Process(ctx, phReading(9.0))
	require.NoError(t, err)
	assert.Equal(t, []string{RulePHHigh}, alertRules(outcome))
}

func TestProcess_ConcurrentIdenticalReadingsAlertOnce(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).After(50 * time.Millisecond).Return(nil)

	// poll loop and direct path racing on the same device
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Process(ctx, phReading(9.0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
	state, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, *state.PHLevel)
	assert.Equal(t, 0, e.devices.len())
}

func TestDeviceLocks_OtherDevicesNotBlocked(t *testing.T) {
	locks := newDeviceLocks()

	unlockD1 := locks.lock("d1")
	done := make(chan struct{})
	go func() {
		unlock := locks.lock("d2")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("d2 blocked by d1")
	}

	unlockD1()
	assert.Equal(t, 0, locks.len())
}

// ============================================
// Episode de-duplication
// ============================================

func TestProcess_EpisodeModeRealertsAfterRecovery(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeEpisode)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	counts := []int{}
	for _, ph := range []float64{9.0, 9.2, 7.0, 9.0} {
		outcome, err := e.Process(ctx, phReading(ph))
		require.NoError(t, err)
		counts = append(counts, len(outcome.Alerts))
	}

	// 9.2 continues the episode, 9.0 after 7.0 starts a new one
	assert.Equal(t, []int{1, 0, 0, 1}, counts)

	state, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, state.Violations[RulePHHigh])
}

// ============================================
// Failures
// ============================================

func TestProcess_DeliveryFailureKeepsAlertPending(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, forRule(RulePHHigh)).
		Return(fmt.Errorf("push: %w", models.ErrNotifyFailure)).Once()
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	reading := phReading(9.0)
	reading.Temperature = models.Float64Ptr(20)

	outcome, err := e.Process(ctx, reading)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrNotifyFailure)
	assert.Equal(t, models.OutcomeDeliveryFailed, outcome.Status)
	// remaining alerts of the device are not attempted
	require.Len(t, outcome.Alerts, 1)
	assert.False(t, outcome.Alerts[0].Success)

	state, err := store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, state.PHLevel)
	assert.Nil(t, state.Temperature)

	// both alerts go out once delivery recovers
	outcome, err = e.Process(ctx, reading)
	require.NoError(t, err)
	assert.Equal(t, []string{RulePHHigh, RuleTemperatureLow}, alertRules(outcome))

	state, err = store.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, *state.PHLevel)
	assert.Equal(t, 20.0, *state.Temperature)
}

func TestProcess_NoNotificationTarget(t *testing.T) {
	e, _, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything).
		Return(fmt.Errorf("user u1: %w", models.ErrNoNotificationTarget))

	outcome, err := e.Process(context.Background(), phReading(9.0))
	assert.ErrorIs(t, err, models.ErrNoNotificationTarget)
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	assert.NotEmpty(t, outcome.Reason)
}

func TestProcess_MissingIdentifier(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)

	reading := phReading(9.0)
	reading.UserID = ""

	outcome, err := e.Process(context.Background(), reading)
	assert.ErrorIs(t, err, models.ErrMissingIdentifier)
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	aquariums.AssertNotCalled(t, "GetAquariumName", mock.Anything, mock.Anything)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Equal(t, 0, store.Len())
}

func TestProcess_AquariumNotFound(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)

	aquariums.On("GetAquariumName", mock.Anything, "a1").
		Return("", fmt.Errorf("aquarium a1: %w", models.ErrAquariumNotFound))

	outcome, err := e.Process(context.Background(), phReading(9.0))
	assert.ErrorIs(t, err, models.ErrAquariumNotFound)
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	assert.Equal(t, 0, store.Len())
}

func TestProcess_StateStoreUnavailable(t *testing.T) {
	aquariums := &mockAquariumResolver{}
	dispatcher := &mockDispatcher{}
	e := NewEvaluator(DefaultRules(), failingStore{}, aquariums, dispatcher, "", zap.NewNop())

	aquariums.On("GetAquariumName", mock.Anything, "a1").Return("Reef", nil)

	outcome, err := e.Process(context.Background(), phReading(9.0))
	require.Error(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.Status)
	dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

// ============================================
// Direct alert path
// ============================================

func TestProcess_StatelessWithoutDeviceID(t *testing.T) {
	e, store, aquariums, dispatcher := setupEvaluator(t, config.DedupModeValue)
	ctx := context.Background()

	dispatcher.On("Dispatch", mock.Anything, mock.Anything).Return(nil)

	reading := models.DeviceReading{
		UserID:       "u1",
		AquariumName: "Nano Cube",
		PHLevel:      models.Float64Ptr(9.0),
	}

	for i := 0; i < 2; i++ {
		outcome, err := e.Process(ctx, reading)
		require.NoError(t, err)
		require.Len(t, outcome.Alerts, 1)
		assert.Contains(t, outcome.Alerts[0].Event.Message, "Nano Cube")
	}

	aquariums.AssertNotCalled(t, "GetAquariumName", mock.Anything, mock.Anything)
	assert.Equal(t, 0, store.Len())
}

func TestNextState_EpisodeKeepsPendingViolation(t *testing.T) {
	e, _, _, _ := setupEvaluator(t, config.DedupModeEpisode)

	prior := models.DeviceState{PHLevel: models.Float64Ptr(7.0), Violations: map[string]bool{}}
	reading := phReading(9.0)
	reading.Temperature = models.Float64Ptr(30)
	undelivered := []models.AlertEvent{{Rule: RulePHHigh, Metric: models.MetricPH}}

	next := e.NextState(reading, prior, undelivered)

	assert.Equal(t, 7.0, *next.PHLevel)
	assert.Equal(t, 30.0, *next.Temperature)
	assert.False(t, next.Violations[RulePHHigh])
	assert.True(t, next.Violations[RuleTemperatureHigh])
}
