// Package proxy relays local CDP websocket clients to remote sessions.
package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Sessions looks up live sessions by ID
type Sessions interface {
	Get(id string) (*session.Handle, bool)
}

// Server accepts websocket clients at /cdp/{id} and pipes them to the
// session's remote CDP endpoint
type Server struct {
	sessions    Sessions
	dialer      *websocket.Dialer
	dialTimeout time.Duration
	log         *logrus.Entry
}

// NewServer creates a relay over the given sessions
func NewServer(sessions Sessions) *Server {
	return &Server{
		sessions:    sessions,
		dialer:      websocket.DefaultDialer,
		dialTimeout: 10 * time.Second,
		log:         logging.NewLogger("relay"),
	}
}

// Handler returns the relay's HTTP handler
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/cdp/{id}", func(w http.ResponseWriter, r *http.Request) {
		s.HandleDebugConnection(w, r, mux.Vars(r)["id"])
	}).Methods("GET")
	return r
}

// HandleDebugConnection relays one client to sessionID's endpoint until
// either side disconnects
func (s *Server) HandleDebugConnection(w http.ResponseWriter, r *http.Request, sessionID string) {
	handle, ok := s.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	endpoint, err := handle.Endpoint()
	if err != nil {
		http.Error(w, err.Error(), http.StatusGone)
		return
	}

	log := s.log.WithField("session_id", sessionID)

	ctx, cancel := context.WithTimeout(r.Context(), s.dialTimeout)
	defer cancel()

	remote, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		log.WithError(err).Warn("failed to connect to remote CDP endpoint")
		if ferr := handle.Fail("remote CDP endpoint unreachable: " + err.Error()); ferr != nil {
			log.WithError(ferr).Debug("session already terminal")
		}
		http.Error(w, "Failed to connect to session", http.StatusBadGateway)
		return
	}
	defer remote.Close()

	client, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("failed to upgrade client connection")
		return
	}
	defer client.Close()

	log.Info("client attached")

	errChan := make(chan error, 2)
	go func() {
		errChan <- s.pump(client, remote, handle, "client->remote")
	}()
	go func() {
		errChan <- s.pump(remote, client, handle, "remote->client")
	}()

	if err := <-errChan; err != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.WithError(err).Debug("relay stopped")
	}
	log.WithField("bytes", handle.Session().BytesTransferred).Info("client detached")
}

func (s *Server) pump(src, dst *websocket.Conn, handle *session.Handle, direction string) error {
	for {
		messageType, message, err := src.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.WithError(err).WithField("direction", direction).Warn("websocket error")
			}
			return err
		}
		handle.AddBytes(int64(len(message)))

		if err := dst.WriteMessage(messageType, message); err != nil {
			s.log.WithError(err).WithField("direction", direction).Warn("failed to write message")
			return err
		}
	}
}
