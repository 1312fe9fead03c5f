package fakeplane

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleCDP serves a websocket that echoes every message back, standing in
// for a browser's CDP endpoint while the session is ready or running.
func (s *Server) HandleCDP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, ok := s.SessionStatus(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	if status != models.BackendReady && status != models.BackendRunning {
		http.Error(w, "Session is not ready", http.StatusConflict)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("failed to upgrade CDP connection")
		return
	}
	defer conn.Close()

	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok && sess.Status == models.BackendReady {
		sess.Status = models.BackendRunning
	}
	s.mu.Unlock()

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(messageType, message); err != nil {
			return
		}
	}
}
