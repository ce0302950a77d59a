package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Nordur12/SmartAquaria/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// alertRequest direct alert body as sent by the mobile app / sensor bridge
type alertRequest struct {
	DeviceID     string   `json:"deviceId"`
	UserID       string   `json:"userId"`
	AquariumID   string   `json:"aquariumId"`
	AquariumName string   `json:"aquariumName"`
	PHLevel      *float64 `json:"pHLevel"`
	NTUCondition *string  `json:"NTUCondition"`
	Temperature  *float64 `json:"temperature"`
}

func (r alertRequest) toReading() models.DeviceReading {
	reading := models.DeviceReading{
		DeviceID:     r.DeviceID,
		UserID:       r.UserID,
		AquariumID:   r.AquariumID,
		AquariumName: r.AquariumName,
		PHLevel:      r.PHLevel,
		Temperature:  r.Temperature,
	}
	if r.NTUCondition != nil && *r.NTUCondition != "" {
		reading.TurbidityCondition = models.ConditionPtr(models.TurbidityCondition(*r.NTUCondition))
	}
	return reading
}

// handleAlert evaluates one reading immediately
// POST /api/v1/alerts
func (s *Server) handleAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Fail("invalid request body: "+err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	outcome, err := s.processor.Process(ctx, req.toReading())
	if err != nil {
		s.logger.Warn("Direct alert failed",
			zap.String("device_id", req.DeviceID),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		c.JSON(alertErrorStatus(err), FailWith(err.Error(), outcome))
		return
	}

	c.JSON(http.StatusOK, Ok(outcome))
}

// handlePoll runs one poll cycle now
// POST /api/v1/poll
func (s *Server) handlePoll(c *gin.Context) {
	report, err := s.cycles.RunCycle(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, models.ErrCycleInProgress):
			c.JSON(http.StatusConflict, Fail(err.Error()))
		case errors.Is(err, models.ErrSourceUnavailable):
			c.JSON(http.StatusServiceUnavailable, Fail(err.Error()))
		default:
			c.JSON(http.StatusInternalServerError, Fail(err.Error()))
		}
		return
	}

	c.JSON(http.StatusOK, Ok(report))
}

// handleDeleteState deprovisions a device
// DELETE /api/v1/devices/:deviceId/state
func (s *Server) handleDeleteState(c *gin.Context) {
	deviceID := c.Param("deviceId")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, Fail("deviceId is required"))
		return
	}

	if err := s.states.Delete(c.Request.Context(), deviceID); err != nil {
		s.logger.Error("Failed to delete device state",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, Fail(err.Error()))
		return
	}

	s.logger.Info("Device state deleted",
		zap.String("device_id", deviceID),
	)
	c.JSON(http.StatusOK, Ok(gin.H{"device_id": deviceID}))
}

func alertErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrMissingIdentifier):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrAquariumNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoNotificationTarget):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotifyFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
