package models

import (
	"strings"
	"time"
)

// SessionState represents where a session is in its client-side lifecycle
type SessionState string

const (
	StatePending  SessionState = "PENDING"
	StateClaimed  SessionState = "CLAIMED"
	StateReady    SessionState = "READY"
	StateRunning  SessionState = "RUNNING"
	StateFinished SessionState = "FINISHED"
	StateFailed   SessionState = "FAILED"
)

// Terminal reports whether no further transitions are allowed from s
func (s SessionState) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Session represents one remote browser session as tracked by this process
type Session struct {
	ID               string       `json:"id"`
	State            SessionState `json:"state"`
	Region           string       `json:"region,omitempty"`
	ProfileID        string       `json:"profileId,omitempty"`
	URL              string       `json:"url,omitempty"`
	CreatedAt        time.Time    `json:"createdAt"`
	EndedAt          time.Time    `json:"endedAt,omitempty"`
	LiveViewURL      string       `json:"liveViewUrl,omitempty"`
	Endpoint         string       `json:"endpoint,omitempty"`
	BytesTransferred int64        `json:"bytesTransferred"`
	BackendStatus    string       `json:"backendStatus,omitempty"` // last status string the backend reported
	FailureReason    string       `json:"failureReason,omitempty"`
}

// SessionSpec describes the session a caller wants
type SessionSpec struct {
	Region    string `json:"region,omitempty" yaml:"region"`
	ProfileID string `json:"profileId,omitempty" yaml:"profile_id"`
	URL       string `json:"url,omitempty" yaml:"url"`
}

// CreateSessionRequest is the payload for POST /sessions
type CreateSessionRequest struct {
	Region    string `json:"region,omitempty"`
	ProfileID string `json:"profile_id,omitempty"`
	URL       string `json:"url,omitempty"`
}

// CreateSessionResponse is returned by POST /sessions
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	ID        string `json:"id,omitempty"`
	Status    string `json:"status"`
}

// Identifier returns whichever id field the backend populated
func (r *CreateSessionResponse) Identifier() string {
	if r.SessionID != "" {
		return r.SessionID
	}
	return r.ID
}

// SessionStatusResponse is returned by GET /sessions/{id}
type SessionStatusResponse struct {
	SessionID    string `json:"session_id,omitempty"`
	Status       string `json:"status"`
	LiveViewURL  string `json:"live_view_url,omitempty"`
	Endpoint     string `json:"endpoint,omitempty"`
	WSEndpoint   string `json:"ws_endpoint,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	BlockedURL   string `json:"blocked_url,omitempty"`
	BlockedCode  int    `json:"blocked_status,omitempty"`
}

// ControlEndpoint returns the CDP endpoint under either of its wire names
func (r *SessionStatusResponse) ControlEndpoint() string {
	if r.Endpoint != "" {
		return r.Endpoint
	}
	return r.WSEndpoint
}

// BackendStatus is the normalized status vocabulary of the control plane
type BackendStatus string

const (
	BackendPending  BackendStatus = "pending"
	BackendClaimed  BackendStatus = "claimed"
	BackendReady    BackendStatus = "ready"
	BackendRunning  BackendStatus = "running"
	BackendFailed   BackendStatus = "failed"
	BackendBlocked  BackendStatus = "blocked"
	BackendFinished BackendStatus = "finished"
	BackendUnknown  BackendStatus = "unknown"
)

// ParseBackendStatus maps the status strings seen on the wire onto BackendStatus
func ParseBackendStatus(raw string) BackendStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "queued":
		return BackendPending
	case "claimed", "provisioning", "starting":
		return BackendClaimed
	case "ready", "available":
		return BackendReady
	case "running":
		return BackendRunning
	case "failed", "error", "crashed":
		return BackendFailed
	case "blocked":
		return BackendBlocked
	case "finished", "completed", "terminated":
		return BackendFinished
	default:
		return BackendUnknown
	}
}
