package models

// TurbidityCondition water clarity reported by the turbidity sensor ("CLEAR", "CLOUDY", ...)
type TurbidityCondition string

// TurbidityClear is the only in-range turbidity condition
const TurbidityClear TurbidityCondition = "CLEAR"

// Metric identifies a monitored sensor value
type Metric string

const (
	MetricPH          Metric = "ph"
	MetricTurbidity   Metric = "turbidity"
	MetricTemperature Metric = "temperature"
)

// DeviceReading snapshot of one device's current sensor values.
// A nil metric was not reported this cycle.
type DeviceReading struct {
	DeviceID     string `json:"device_id"`
	UserID       string `json:"user_id"`
	AquariumID   string `json:"aquarium_id,omitempty"`
	AquariumName string `json:"aquarium_name,omitempty"` // set by the direct-alert path, resolved otherwise

	PHLevel            *float64            `json:"ph_level,omitempty"`
	TurbidityCondition *TurbidityCondition `json:"turbidity_condition,omitempty"`
	Temperature        *float64            `json:"temperature,omitempty"`
}

// Evaluable reports whether the reading carries a user and an aquarium reference
func (r DeviceReading) Evaluable() bool {
	return r.UserID != "" && (r.AquariumID != "" || r.AquariumName != "")
}

// Float64Ptr returns a pointer to v
func Float64Ptr(v float64) *float64 {
	return &v
}

// ConditionPtr returns a pointer to c
func ConditionPtr(c TurbidityCondition) *TurbidityCondition {
	return &c
}
