// Package fakeplane is an in-memory control plane that speaks the same HTTP
// API as the real provisioning backend. Tests and the fakeplane command use
// it to script provisioning delays, failures and transient errors.
package fakeplane

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/internal/ratelimit"
)

// Route names used for call counting and reply injection
const (
	RouteCreate  = "POST /sessions"
	RouteList    = "GET /sessions"
	RouteGet     = "GET /sessions/{id}"
	RouteDelete  = "DELETE /sessions/{id}"
	RouteBalance = "GET /account/balance"
)

// Scenario controls how newly created sessions provision
type Scenario struct {
	// ReadyAfter is the number of polls answered "claimed" before "ready".
	ReadyAfter int
	// NeverReady keeps sessions "claimed" forever.
	NeverReady bool
	// FailWith makes sessions report "failed" with this message after ReadyAfter polls.
	FailWith string
	// BlockURL makes sessions report "blocked" after ReadyAfter polls.
	BlockURL    string
	BlockStatus int
	// NoEndpoint reports "ready" without a CDP endpoint.
	NoEndpoint bool
}

// Reply is a scripted response served before normal handling
type Reply struct {
	Status int
	Header map[string]string
	Body   interface{}
}

// Server holds all fake control plane state
type Server struct {
	apiKey string

	mu         sync.Mutex
	balance    float64
	scenario   Scenario
	sessions   map[string]*session
	createKeys map[string]string
	injected   map[string][]Reply
	calls      map[string]int
	limiter    *ratelimit.Limiter

	log *logrus.Entry
}

// NewServer creates a fake control plane accepting apiKey with the given balance
func NewServer(apiKey string, balance float64) *Server {
	return &Server{
		apiKey:     apiKey,
		balance:    balance,
		sessions:   make(map[string]*session),
		createKeys: make(map[string]string),
		injected:   make(map[string][]Reply),
		calls:      make(map[string]int),
		log:        logging.NewLogger("fakeplane"),
	}
}

// SetBalance changes the account balance
func (s *Server) SetBalance(balance float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
}

// SetScenario changes provisioning behaviour for sessions created afterwards
func (s *Server) SetScenario(sc Scenario) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenario = sc
}

// SetRateLimit enables per-API-key rate limiting
func (s *Server) SetRateLimit(l *ratelimit.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limiter = l
}

// Inject queues replies served, in order, by the next calls to route
func (s *Server) Inject(route string, replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.injected[route] = append(s.injected[route], replies...)
}

// Calls returns how many requests reached route
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Handler returns the HTTP handler serving the API under /v1 plus the CDP
// and live view endpoints handed out for ready sessions.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.authMiddleware, s.rateLimitMiddleware)

	api.HandleFunc("/sessions", s.route(RouteCreate, s.CreateSession)).Methods("POST")
	api.HandleFunc("/sessions", s.route(RouteList, s.ListSessions)).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.route(RouteGet, s.GetSession)).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.route(RouteDelete, s.DeleteSession)).Methods("DELETE")
	api.HandleFunc("/account/balance", s.route(RouteBalance, s.GetBalance)).Methods("GET")

	r.HandleFunc("/cdp/{id}", s.HandleCDP).Methods("GET")
	r.HandleFunc("/live/{id}", s.HandleLiveView).Methods("GET")

	return r
}

// route records the call under name and serves the next injected reply, if
// one is queued, instead of h
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		var reply *Reply
		if queue := s.injected[name]; len(queue) > 0 {
			reply = &queue[0]
			s.injected[name] = queue[1:]
		}
		s.mu.Unlock()

		if reply != nil {
			for k, v := range reply.Header {
				w.Header().Set(k, v)
			}
			writeJSON(w, reply.Status, reply.Body)
			return
		}
		h(w, r)
	}
}
