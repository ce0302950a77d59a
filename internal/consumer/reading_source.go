package consumer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ReadingSource supplies the current batch of device readings
type ReadingSource interface {
	FetchAll(ctx context.Context) ([]models.DeviceReading, error)
}

// deviceDocument one entry under /devices in the Realtime Database
type deviceDocument struct {
	AquariumID string `json:"aquariumId"`
	UserID     string `json:"userId"`
	PH         *struct {
		PHLevel *float64 `json:"pHLevel"`
	} `json:"ph"`
	Turbidity *struct {
		Condition *string `json:"condition"`
	} `json:"turbidity"`
	Temperature *struct {
		Temperature *float64 `json:"temperature"`
	} `json:"temperature"`
}

// FirebaseReadingSource reads device documents through the Realtime Database REST API
type FirebaseReadingSource struct {
	httpClient *resty.Client
	authToken  string
	logger     *zap.Logger
}

// NewFirebaseReadingSource creates a source for databaseURL (e.g. https://<db>.firebasedatabase.app)
func NewFirebaseReadingSource(databaseURL, authToken string, timeout time.Duration, logger *zap.Logger) *FirebaseReadingSource {
	client := resty.New().
		SetBaseURL(strings.TrimRight(databaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(1 * time.Second).
		SetHeader("Accept", "application/json")

	return &FirebaseReadingSource{
		httpClient: client,
		authToken:  authToken,
		logger:     logger,
	}
}

// FetchAll returns every device reading ordered by device id.
// Any transport or status failure is reported as models.ErrSourceUnavailable.
func (s *FirebaseReadingSource) FetchAll(ctx context.Context) ([]models.DeviceReading, error) {
	var docs map[string]deviceDocument

	req := s.httpClient.R().
		SetContext(ctx).
		SetResult(&docs)
	if s.authToken != "" {
		req.SetQueryParam("auth", s.authToken)
	}

	resp, err := req.Get("/devices.json")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch devices: %v", models.ErrSourceUnavailable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: unexpected status %s", models.ErrSourceUnavailable, resp.Status())
	}

	readings := make([]models.DeviceReading, 0, len(docs))
	for deviceID, doc := range docs {
		readings = append(readings, doc.toReading(deviceID))
	}
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].DeviceID < readings[j].DeviceID
	})

	s.logger.Debug("Fetched device readings",
		zap.Int("device_count", len(readings)),
	)

	return readings, nil
}

func (d deviceDocument) toReading(deviceID string) models.DeviceReading {
	reading := models.DeviceReading{
		DeviceID:   deviceID,
		UserID:     d.UserID,
		AquariumID: d.AquariumID,
	}
	if d.PH != nil {
		reading.PHLevel = d.PH.PHLevel
	}
	if d.Turbidity != nil && d.Turbidity.Condition != nil && *d.Turbidity.Condition != "" {
		reading.TurbidityCondition = models.ConditionPtr(models.TurbidityCondition(*d.Turbidity.Condition))
	}
	if d.Temperature != nil {
		reading.Temperature = d.Temperature.Temperature
	}
	return reading
}
