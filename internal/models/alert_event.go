package models

import "time"

// AlertEvent one notification-worthy threshold crossing
type AlertEvent struct {
	EventID      string    `json:"event_id"`
	DeviceID     string    `json:"device_id"`
	UserID       string    `json:"user_id"`
	AquariumName string    `json:"aquarium_name"`
	Rule         string    `json:"rule"`
	Metric       Metric    `json:"metric"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// DispatchResult outcome of dispatching one AlertEvent
type DispatchResult struct {
	Event   AlertEvent `json:"event"`
	Success bool       `json:"success"`
	Err     error      `json:"-"`
	Error   string     `json:"error,omitempty"`
}

// OutcomeStatus summarises what happened to one device in one evaluation
type OutcomeStatus string

const (
	OutcomeNoAlert        OutcomeStatus = "no_alert"
	OutcomeAlerted        OutcomeStatus = "alerted"
	OutcomeSkipped        OutcomeStatus = "skipped"
	OutcomeDeliveryFailed OutcomeStatus = "delivery_failed"
)

// DeviceOutcome result of evaluating one device
type DeviceOutcome struct {
	DeviceID     string           `json:"device_id"`
	AquariumName string           `json:"aquarium_name,omitempty"`
	Status       OutcomeStatus    `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Alerts       []DispatchResult `json:"alerts,omitempty"`
}

// CycleReport result of one poll cycle
type CycleReport struct {
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Devices    []DeviceOutcome `json:"devices"`
	AlertsSent int             `json:"alerts_sent"`
	Failures   int             `json:"failures"`
	Aborted    bool            `json:"aborted"`
}
