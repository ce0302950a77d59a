package evaluator

import (
	"fmt"
	"strconv"

	"github.com/Nordur12/SmartAquaria/internal/models"
)

// Safe water ranges. Boundaries are exclusive: a value equal to a limit is in range.
const (
	PHHighLimit          = 8.5
	PHLowLimit           = 6.0
	TemperatureHighLimit = 28.0
	TemperatureLowLimit  = 23.0
)

// Rule names
const (
	RulePHHigh          = "ph_high"
	RulePHLow           = "ph_low"
	RuleTurbidity       = "turbidity"
	RuleTemperatureHigh = "temperature_high"
	RuleTemperatureLow  = "temperature_low"
)

// ThresholdRule one out-of-range condition over a single metric
type ThresholdRule struct {
	Name   string
	Metric models.Metric
	Title  string

	violates func(r models.DeviceReading) bool
	message  func(aquariumName string, r models.DeviceReading) string
}

// Violates reports whether the reading's value for the rule's metric is out of range.
// An absent metric never violates.
func (t ThresholdRule) Violates(r models.DeviceReading) bool {
	return t.violates(r)
}

// Message renders the alert body for the given aquarium
func (t ThresholdRule) Message(aquariumName string, r models.DeviceReading) string {
	return t.message(aquariumName, r)
}

// RuleSet ordered, immutable list of threshold rules
type RuleSet struct {
	rules []ThresholdRule
}

// DefaultRules the five aquarium rules in evaluation order:
// pH high, pH low, turbidity, temperature high, temperature low
func DefaultRules() *RuleSet {
	return &RuleSet{rules: []ThresholdRule{
		{
			Name:   RulePHHigh,
			Metric: models.MetricPH,
			Title:  "⚠️ High pH Alert!",
			violates: func(r models.DeviceReading) bool {
				return r.PHLevel != nil && *r.PHLevel > PHHighLimit
			},
			message: func(name string, r models.DeviceReading) string {
				return fmt.Sprintf("Your aquarium '%s' has a high pH level (%s)!", name, formatNumber(*r.PHLevel))
			},
		},
		{
			Name:   RulePHLow,
			Metric: models.MetricPH,
			Title:  "⚠️ Low pH Alert!",
			violates: func(r models.DeviceReading) bool {
				return r.PHLevel != nil && *r.PHLevel < PHLowLimit
			},
			message: func(name string, r models.DeviceReading) string {
				return fmt.Sprintf("Your aquarium '%s' has a low pH level (%s)!", name, formatNumber(*r.PHLevel))
			},
		},
		{
			Name:   RuleTurbidity,
			Metric: models.MetricTurbidity,
			Title:  "⚠️ Turbidity Alert!",
			violates: func(r models.DeviceReading) bool {
				return r.TurbidityCondition != nil && *r.TurbidityCondition != "" && *r.TurbidityCondition != models.TurbidityClear
			},
			message: func(name string, r models.DeviceReading) string {
				return fmt.Sprintf("Your aquarium '%s' has %s water condition!", name, *r.TurbidityCondition)
			},
		},
		{
			Name:   RuleTemperatureHigh,
			Metric: models.MetricTemperature,
			Title:  "⚠️ High Temperature Alert!",
			violates: func(r models.DeviceReading) bool {
				return r.Temperature != nil && *r.Temperature > TemperatureHighLimit
			},
			message: func(name string, r models.DeviceReading) string {
				return fmt.Sprintf("Your aquarium '%s' temperature is too high (%s°C)!", name, formatNumber(*r.Temperature))
			},
		},
		{
			Name:   RuleTemperatureLow,
			Metric: models.MetricTemperature,
			Title:  "⚠️ Cold Temperature Alert!",
			violates: func(r models.DeviceReading) bool {
				return r.Temperature != nil && *r.Temperature < TemperatureLowLimit
			},
			message: func(name string, r models.DeviceReading) string {
				return fmt.Sprintf("Your aquarium '%s' temperature is too Cold (%s°C)!", name, formatNumber(*r.Temperature))
			},
		},
	}}
}

// Rules returns the rules in evaluation order
func (s *RuleSet) Rules() []ThresholdRule {
	out := make([]ThresholdRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Fired returns, in evaluation order, the rules the reading currently violates
func (s *RuleSet) Fired(r models.DeviceReading) []ThresholdRule {
	var fired []ThresholdRule
	for _, rule := range s.rules {
		if rule.Violates(r) {
			fired = append(fired, rule)
		}
	}
	return fired
}

// formatNumber shortest representation that round-trips (9 not 9.000000)
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
