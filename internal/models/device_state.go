package models

// DeviceState last observed values per metric for one device.
// The zero value means the device has never been seen.
type DeviceState struct {
	PHLevel            *float64            `json:"ph_level,omitempty"`
	TurbidityCondition *TurbidityCondition `json:"turbidity_condition,omitempty"`
	Temperature        *float64            `json:"temperature,omitempty"`

	// Violations rule name -> currently violating; only maintained in episode de-duplication mode
	Violations map[string]bool `json:"violations,omitempty"`
}

// SameValue reports whether the reading's value for metric equals the stored one.
// Absent and present never compare equal.
func (s DeviceState) SameValue(metric Metric, r DeviceReading) bool {
	switch metric {
	case MetricPH:
		return equalFloat(s.PHLevel, r.PHLevel)
	case MetricTurbidity:
		return equalCondition(s.TurbidityCondition, r.TurbidityCondition)
	case MetricTemperature:
		return equalFloat(s.Temperature, r.Temperature)
	}
	return false
}

// WithValueFrom returns a copy of s whose value for metric is taken from src
func (s DeviceState) WithValueFrom(metric Metric, src DeviceState) DeviceState {
	switch metric {
	case MetricPH:
		s.PHLevel = src.PHLevel
	case MetricTurbidity:
		s.TurbidityCondition = src.TurbidityCondition
	case MetricTemperature:
		s.Temperature = src.Temperature
	}
	return s
}

// StateFromReading captures the reading's metric values
func StateFromReading(r DeviceReading) DeviceState {
	return DeviceState{
		PHLevel:            r.PHLevel,
		TurbidityCondition: r.TurbidityCondition,
		Temperature:        r.Temperature,
	}
}

func equalFloat(a, b *float64) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}

func equalCondition(a, b *TurbidityCondition) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}
