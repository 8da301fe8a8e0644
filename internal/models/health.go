package models

import "time"

// UnknownMinResponseTime is reported for a processor that was never probed.
const UnknownMinResponseTime = 9999

// ProcessorHealth is this service's current belief about one processor.
type ProcessorHealth struct {
	Failing             bool       `json:"failing"`
	MinResponseTime     int        `json:"minResponseTime"`
	LastCheckedAt       *time.Time `json:"lastCheckedAt"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// AssumeFailing is the record used before the first probe completes.
func AssumeFailing() ProcessorHealth {
	return ProcessorHealth{
		Failing:         true,
		MinResponseTime: UnknownMinResponseTime,
	}
}

// HealthStatus is the payload of GET /payments/service-health.
type HealthStatus struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}
