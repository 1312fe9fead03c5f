package models

import "time"

// BalanceResponse is returned by GET /account/balance
type BalanceResponse struct {
	Balance float64 `json:"balance"`
}

// ErrorResponse is the body the control plane sends with non-2xx statuses
type ErrorResponse struct {
	Message string   `json:"message,omitempty"`
	Detail  string   `json:"detail,omitempty"`
	Error   string   `json:"error,omitempty"`
	Balance *float64 `json:"balance,omitempty"`
}

// Text returns the first populated message field
func (e *ErrorResponse) Text() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Detail != "":
		return e.Detail
	default:
		return e.Error
	}
}

// Usage is the consumption record reported once per session
type Usage struct {
	SessionID string        `json:"sessionId"`
	Region    string        `json:"region,omitempty"`
	State     SessionState  `json:"state"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   time.Time     `json:"endedAt"`
	Duration  time.Duration `json:"duration"`
	Bytes     int64         `json:"bytes"`
}

// UsageTotals aggregates recorded usage
type UsageTotals struct {
	Sessions int64         `json:"sessions"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
	Bytes    int64         `json:"bytes"`
}
