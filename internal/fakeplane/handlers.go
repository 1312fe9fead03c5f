package fakeplane

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// session is the fake backend's view of one session
type session struct {
	ID        string               `json:"session_id"`
	Status    models.BackendStatus `json:"status"`
	Region    string               `json:"region,omitempty"`
	ProfileID string               `json:"profile_id,omitempty"`
	URL       string               `json:"url,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	Polls     int                  `json:"polls"`
	scenario  Scenario
}

// CreateSession handles POST /v1/sessions
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Invalid request body: " + err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balance <= 0 {
		balance := s.balance
		writeJSON(w, http.StatusPaymentRequired, models.ErrorResponse{
			Message: "Insufficient funds",
			Balance: &balance,
		})
		return
	}

	// a retried create with the same key returns the session it already made
	key := r.Header.Get("Idempotency-Key")
	if id, ok := s.createKeys[key]; ok && key != "" {
		sess := s.sessions[id]
		writeJSON(w, http.StatusOK, models.CreateSessionResponse{SessionID: sess.ID, Status: string(sess.Status)})
		return
	}

	sess := &session{
		ID:        uuid.New().String(),
		Status:    models.BackendPending,
		Region:    req.Region,
		ProfileID: req.ProfileID,
		URL:       req.URL,
		CreatedAt: time.Now(),
		scenario:  s.scenario,
	}
	s.sessions[sess.ID] = sess
	if key != "" {
		s.createKeys[key] = sess.ID
	}

	s.log.WithField("session_id", sess.ID).Info("session created")
	writeJSON(w, http.StatusCreated, models.CreateSessionResponse{SessionID: sess.ID, Status: string(sess.Status)})
}

// GetSession handles GET /v1/sessions/{id}
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Session not found"})
		return
	}

	resp := models.SessionStatusResponse{SessionID: sess.ID}
	if sess.Status == models.BackendPending || sess.Status == models.BackendClaimed {
		sess.Polls++
		sess.Status = s.advance(sess)
	}
	resp.Status = string(sess.Status)

	switch sess.Status {
	case models.BackendReady, models.BackendRunning:
		if !sess.scenario.NoEndpoint {
			resp.Endpoint = fmt.Sprintf("ws://%s/cdp/%s", r.Host, sess.ID)
		}
		resp.LiveViewURL = fmt.Sprintf("http://%s/live/%s", r.Host, sess.ID)
	case models.BackendFailed:
		resp.ErrorMessage = sess.scenario.FailWith
	case models.BackendBlocked:
		resp.BlockedURL = sess.scenario.BlockURL
		resp.BlockedCode = sess.scenario.BlockStatus
	}

	writeJSON(w, http.StatusOK, resp)
}

// advance computes the status a provisioning session reports on this poll
func (s *Server) advance(sess *session) models.BackendStatus {
	sc := sess.scenario
	if sc.NeverReady || sess.Polls <= sc.ReadyAfter {
		return models.BackendClaimed
	}
	switch {
	case sc.FailWith != "":
		return models.BackendFailed
	case sc.BlockURL != "":
		return models.BackendBlocked
	default:
		return models.BackendReady
	}
}

// ListSessions handles GET /v1/sessions
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	status := models.BackendStatus(r.URL.Query().Get("status"))

	s.mu.Lock()
	sessions := make([]session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if status != "" && sess.Status != status {
			continue
		}
		sessions = append(sessions, *sess)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, sessions)
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Session not found"})
		return
	}

	sess.Status = models.BackendFinished
	s.log.WithField("session_id", id).Info("session finished")
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance handles GET /v1/account/balance
func (s *Server) GetBalance(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	balance := s.balance
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, models.BalanceResponse{Balance: balance})
}

// HandleLiveView handles GET /live/{id}
func (s *Server) HandleLiveView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, ok := s.SessionStatus(id); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, "<html><body>live view for session %s</body></html>", id)
}

// SessionStatus returns the backend status of a session
func (s *Server) SessionStatus(id string) (models.BackendStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return "", false
	}
	return sess.Status, true
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
